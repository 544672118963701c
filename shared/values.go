package shared

import (
	"math"
	"unsafe"
)

type KeyType = uint64
type PayloadType = float64

// KeyValuePair is the unit handed to bulk loading.
type KeyValuePair struct {
	Key     KeyType
	Payload PayloadType
}

const KeySize = int(unsafe.Sizeof(KeyType(0)))
const PayloadSize = int(unsafe.Sizeof(PayloadType(0)))
const BlockSize = KeySize + PayloadSize
const MaxKey KeyType = math.MaxUint64
const MinKey KeyType = 0

// KMaxDensity Variables related to resizing (expansions and contractions)
// Density after contracting, also determines the expansion threshold
const KMaxDensity = 0.8

// KInitialDensity Density of data nodes after bulk loading
const KInitialDensity = 0.7

// KMinDensity Density after expanding, also determines the contraction threshold
const KMinDensity = 0.6

// KExpSearchIterationsWeight Intra-node cost weights
const KExpSearchIterationsWeight = 20.0

// KShiftsWeight Intra-node cost weights
const KShiftsWeight = 0.5

// KNodeLookupsWeight TraverseToLeaf cost weights
const KNodeLookupsWeight = 20.0

// KModelSizeWeight TraverseToLeaf cost weights
const KModelSizeWeight = 5e-7

// KDefaultMaxDataNodeBytes By default, maximum data node size is 16MB
const KDefaultMaxDataNodeBytes = 1 << 24

// MaxSlots The maximum number of slots in a data node
const MaxSlots = KDefaultMaxDataNodeBytes / BlockSize

// KDefaultMaxFanout Maximum number of child pointers of a model node (8-byte pointers in 16MB)
const KDefaultMaxFanout = KDefaultMaxDataNodeBytes / 8

// KEndSentinel Placed at the end of the key/data slots if there are gaps after the max key
const KEndSentinel = MaxKey

// CatastropheCheckFrequency The frequency of catastrophic checks while inserting keys to a data node.
const CatastropheCheckFrequency = 64

// NumKeysDataNodeRetrainThreshold The number of keys that must be inserted before the model on a data node is retrained.
const NumKeysDataNodeRetrainThreshold = 50

// KMaxSplitAttempts Bounds the split/retry loop of a single insert. Keys that still
// cannot be separated after this many attempts are placed by growing their data node.
const KMaxSplitAttempts = 64

const (
	// 0 means always split node in 2
	AlwaysSplitNodeInTwo = iota
	// 1 means decide between no splitting or splitting in 2
	DecideBetweenNoSplittingOrSplittingInTwo = iota
)

// Policy when a data node experiences significant cost deviation.
const SplittingPolicyMethod int = DecideBetweenNoSplittingOrSplittingInTwo
