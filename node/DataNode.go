package node

import (
	"alex_bench/bitmap"
	"alex_bench/cost_models"
	"alex_bench/linear_model"
	"alex_bench/shared"
)

type DataNode struct {
	// Parameters from the Node interface
	DuplicationFactor int
	Level             int
	LinearModel       linear_model.LinearModel
	Cost              float64

	NextLeaf *DataNode
	PrevLeaf *DataNode

	// Holds the keys. Gaps hold the key of the next filled slot, or KEndSentinel
	// after the last one, so the whole array stays sorted for searching.
	Keys []shared.KeyType
	// Holds the payloads
	Payloads []shared.PayloadType

	// Size of key/data_slots array
	DataCapacity int
	// Number of filled key/data slots (as opposed to gaps)
	NumKeys int

	// Bitmap: set bits mark filled slots
	Bitmap *bitmap.Occupancy

	// Expand after m_num_keys is >= this number
	ExpansionThreshold float64

	// -- Counters used in Cost models --
	// Does not reset after resizing
	NumShifts int64
	// Does not reset after resizing
	NumExpSearchIterations int64
	// Does not reset after resizing
	NumLookups int
	// Does not reset after resizing
	NumInserts int
	// Technically not required, but nice to have
	NumResizes int

	// Max key in node, updates after inserts
	MaxKey shared.KeyType
	// Min key in node, updates after inserts
	MinKey shared.KeyType

	ExpectedAvgExpSearchIterations float64
	ExpectedAvgShifts              float64
	ExpectedInsertFrac             float64

	MaxSlots int

	allocator *Allocator
}

func (self *DataNode) IsLeaf() bool {
	return true
}

func (self *DataNode) GetLevel() int {
	return self.Level
}

func (self *DataNode) SetLevel(level int) {
	self.Level = level
}

func (self *DataNode) GetDuplicationFactor() int {
	return self.DuplicationFactor
}

func (self *DataNode) SetDuplicationFactor(duplicationFactor int) {
	self.DuplicationFactor = duplicationFactor
}

func (self *DataNode) GetChildren() []Node {
	return nil
}

func (self *DataNode) Accept(visitor Visitor) {
	visitor.VisitLeaf(LeafView{
		Slope:     self.LinearModel.A,
		Intercept: self.LinearModel.B,
		MinKey:    self.MinKey,
		MaxKey:    self.MaxKey,
		NumKeys:   self.NumKeys,
		Capacity:  self.DataCapacity,
		Level:     self.Level,
	})
}

func (self *DataNode) isFilled(pos int) bool {
	return self.Bitmap.Contains(uint32(pos))
}

// BinarySearchUpperBound Searches for the first position greater than key in range [l, r)
// Returns position in range [l, r]
func (self *DataNode) BinarySearchUpperBound(l int, r int, key shared.KeyType) int {
	for l < r {
		m := l + (r-l)/2
		if self.Keys[m] <= key {
			l = m + 1
		} else {
			r = m
		}
	}
	return l
}

// Searches for the first position greater than key, starting from position m
// Returns position in range [0, data_capacity]
func (self *DataNode) ExponentialSearchUpperBound(m int, key shared.KeyType) int {
	bound := 1
	var l, r int
	if self.Keys[m] > key {
		size := m
		for bound < size && self.Keys[m-bound] > key {
			bound *= 2
			self.NumExpSearchIterations++
		}
		l = m - min(bound, size)
		r = m - bound/2
	} else {
		size := self.DataCapacity - m
		for bound < size && self.Keys[m+bound] <= key {
			bound *= 2
			self.NumExpSearchIterations++
		}
		l = m + bound/2
		r = m + min(bound, size)
	}
	return self.BinarySearchUpperBound(l, r, key)
}

// UpperBound Searches for the first position greater than key
// This could be the position for a gap (i.e., its bit in the Bitmap is 0)
// Returns position in range [0, data_capacity]
func (self *DataNode) UpperBound(key shared.KeyType) int {
	self.NumLookups++
	position := self.PredictPosition(key)
	return self.ExponentialSearchUpperBound(position, key)
}

// FindKeyPosition Searches for the last non-gap position equal to key
func (self *DataNode) FindKeyPosition(key shared.KeyType) (int, error) {
	position := self.GetPrevFilledPosition(self.UpperBound(key) - 1)
	if position < 0 || self.Keys[position] != key {
		return 0, shared.KeyNotFoundError
	}
	return position, nil
}

func (self *DataNode) InsertElementAt(key shared.KeyType, payload shared.PayloadType, pos int) {
	self.Keys[pos] = key
	self.Payloads[pos] = payload
	self.Bitmap.Set(uint32(pos))

	// Overwrite preceding gaps until we reach the previous element
	pos--
	for pos >= 0 && !self.isFilled(pos) {
		self.Keys[pos] = key
		pos--
	}
}

// ClosestGap Returns position of closest gap to pos
func (self *DataNode) ClosestGap(pos int) (int, error) {
	maxLeftOffset := pos
	maxRightOffset := self.DataCapacity - pos - 1
	maxDirectionalOffset := min(maxLeftOffset, maxRightOffset)
	distance := 1
	for distance <= maxDirectionalOffset {
		if !self.isFilled(pos - distance) {
			return pos - distance, nil
		}
		if !self.isFilled(pos + distance) {
			return pos + distance, nil
		}
		distance++
	}
	if maxLeftOffset > maxRightOffset {
		for i := pos - distance; i >= 0; i-- {
			if !self.isFilled(i) {
				return i, nil
			}
		}
	} else {
		for i := pos + distance; i < self.DataCapacity; i++ {
			if !self.isFilled(i) {
				return i, nil
			}
		}
	}
	return -1, shared.NoGapFoundError
}

// PredictPosition Predicts the position of a key using the model
func (self *DataNode) PredictPosition(key shared.KeyType) int {
	return self.LinearModel.PredictBucket(key, self.DataCapacity)
}

// FindInsertPosition Finds position to insert a key.
// The position takes the prediction into account while staying inside the run
// of gaps that directly follows the last key not greater than key.
// If there are duplicate keys, the insert position will be to the right of
// all existing keys of the same value.
func (self *DataNode) FindInsertPosition(key shared.KeyType) int {
	predictedPosition := self.PredictPosition(key)

	// insert to the right of duplicate keys
	pos := self.ExponentialSearchUpperBound(predictedPosition, key)
	if predictedPosition <= pos || self.isFilled(pos) {
		return pos
	}
	return min(predictedPosition, self.GetNextFilledPosition(pos, true)-1)
}

// InsertUsingShifts Insert key into pos, shifting as necessary to the closest gap.
// Returns the actual position of insertion
func (self *DataNode) InsertUsingShifts(key shared.KeyType, payload shared.PayloadType, pos int) (int, error) {
	gapPos, err := self.ClosestGap(pos)
	if err != nil {
		return 0, err
	}
	self.Bitmap.Set(uint32(gapPos))

	if gapPos >= pos {
		for i := gapPos; i > pos; i-- {
			self.Keys[i] = self.Keys[i-1]
			self.Payloads[i] = self.Payloads[i-1]
		}
		self.InsertElementAt(key, payload, pos)
		self.NumShifts += int64(gapPos - pos)
		return pos, nil
	}
	for i := gapPos; i < pos-1; i++ {
		self.Keys[i] = self.Keys[i+1]
		self.Payloads[i] = self.Payloads[i+1]
	}
	self.InsertElementAt(key, payload, pos-1)
	self.NumShifts += int64(pos - gapPos - 1)
	return pos - 1, nil
}

// GetNextFilledPosition Starting from a position, return the first position that is not a gap
// If no more filled positions, will return data_capacity
// If exclusive is true, output is at least (pos + 1)
// If exclusive is false, output can be pos itself
func (self *DataNode) GetNextFilledPosition(pos int, exclusive bool) int {
	if exclusive {
		pos++
	}
	for pos < self.DataCapacity && !self.isFilled(pos) {
		pos++
	}
	return min(pos, self.DataCapacity)
}

// GetPrevFilledPosition returns the last filled position at or before pos, or -1.
func (self *DataNode) GetPrevFilledPosition(pos int) int {
	for pos >= 0 && !self.isFilled(pos) {
		pos--
	}
	return pos
}

// ShiftsPerInserts Empirical average number of shifts per insert
func (self *DataNode) ShiftsPerInserts() float64 {
	if self.NumInserts == 0 {
		return 0.0
	}
	return float64(self.NumShifts) / float64(self.NumInserts)
}

// CatastrophicCost Returns true if Cost is catastrophically high and we want to force a split
// The heuristic for this is if the number of shifts per insert (expected or
// empirical) is over 100
func (self *DataNode) CatastrophicCost() bool {
	return self.LinearModel.A != 0.0 && (self.ShiftsPerInserts() > 100 || self.ExpectedAvgShifts > 100)
}

// ExpSearchIterationsPerOperation Empirical average number of exponential search iterations per operation
// (either lookup or insert)
func (self *DataNode) ExpSearchIterationsPerOperation() float64 {
	numOps := self.NumInserts + self.NumLookups
	if numOps == 0 {
		return 0.0
	}
	return float64(self.NumExpSearchIterations) / float64(numOps)
}

func (self *DataNode) FracInserts() float64 {
	numOps := self.NumInserts + self.NumLookups
	if numOps == 0 {
		return 0.0
	}
	return float64(self.NumInserts) / float64(numOps)
}

func (self *DataNode) EmpiricalCost() float64 {
	return cost_models.Cost(self.ExpSearchIterationsPerOperation(), self.ShiftsPerInserts(), self.FracInserts())
}

// SignificantCostDeviation Whether empirical Cost deviates significantly from expected Cost
// Also returns false if empirical Cost is sufficiently low and is not worth
// splitting
func (self *DataNode) SignificantCostDeviation() bool {
	empiricalCost := self.EmpiricalCost()
	return self.LinearModel.A != 0.0 && empiricalCost > shared.KNodeLookupsWeight && empiricalCost > 1.5*self.Cost
}

// Insert places key unless the node asks its index to split it first: the
// returned error is one of the cost or capacity insertion errors, or an
// allocation failure from an expansion. On error nothing was modified.
func (self *DataNode) Insert(key shared.KeyType, payload shared.PayloadType) (int, error) {
	// Periodically check for catastrophe
	if self.NumInserts%shared.CatastropheCheckFrequency == 0 && self.CatastrophicCost() {
		return 0, shared.CatastrophicCostInsertionError
	}

	if float64(self.NumKeys) >= self.ExpansionThreshold {
		if self.SignificantCostDeviation() {
			return 0, shared.SignificantCostDeviationInsertionError
		}
		if self.CatastrophicCost() {
			return 0, shared.CatastrophicCostInsertionError
		}
		if float64(self.NumKeys) > float64(self.MaxSlots)*shared.KMinDensity {
			return 0, shared.MaxCapacityInsertionError
		}
		if err := self.Resize(shared.KMinDensity, false); err != nil {
			return 0, err
		}
	}

	return self.insertIntoGap(key, payload)
}

// InsertWithoutCostChecks grows the node if needed and places key, never asking for a split.
func (self *DataNode) InsertWithoutCostChecks(key shared.KeyType, payload shared.PayloadType) (int, error) {
	if float64(self.NumKeys) >= self.ExpansionThreshold {
		if err := self.Resize(shared.KMinDensity, false); err != nil {
			return 0, err
		}
	}
	return self.insertIntoGap(key, payload)
}

func (self *DataNode) insertIntoGap(key shared.KeyType, payload shared.PayloadType) (int, error) {
	insertionPosition := self.FindInsertPosition(key)

	if insertionPosition < self.DataCapacity && !self.isFilled(insertionPosition) {
		self.InsertElementAt(key, payload, insertionPosition)
	} else {
		var err error
		insertionPosition, err = self.InsertUsingShifts(key, payload, insertionPosition)
		if err != nil {
			return 0, err
		}
	}

	self.NumKeys++
	self.NumInserts++
	if key > self.MaxKey {
		self.MaxKey = key
	}
	if key < self.MinKey {
		self.MinKey = key
	}
	return insertionPosition, nil
}

// Resize rebuilds the slot arrays at targetDensity. The model is retrained when
// the node is small or forceRetrain is set, otherwise it is scaled.
func (self *DataNode) Resize(targetDensity float64, forceRetrain bool) error {
	if self.NumKeys == 0 {
		return nil
	}

	keys, payloads := self.Collect(0, self.DataCapacity)
	newDataCapacity := CapacityForDensity(len(keys), targetDensity)
	if err := self.allocator.Reserve(newDataCapacity); err != nil {
		return err
	}

	var model linear_model.LinearModel
	if self.NumKeys < shared.NumKeysDataNodeRetrainThreshold || forceRetrain {
		model = TrainModel(keys, newDataCapacity)
	} else {
		model = self.LinearModel
		model.Expand(float64(newDataCapacity) / float64(self.DataCapacity))
	}

	self.allocator.Release(self.DataCapacity)
	self.LinearModel = model
	self.fill(keys, payloads, newDataCapacity)
	self.NumResizes++
	return nil
}

// BulkLoad replaces the node's contents with sorted keys at the given density.
func (self *DataNode) BulkLoad(keys []shared.KeyType, payloads []shared.PayloadType, density float64) error {
	dataCapacity := CapacityForDensity(len(keys), density)
	if err := self.allocator.Reserve(dataCapacity); err != nil {
		return err
	}
	self.allocator.Release(self.DataCapacity)

	self.LinearModel = TrainModel(keys, dataCapacity)
	self.fill(keys, payloads, dataCapacity)
	self.MinKey, self.MaxKey = shared.MaxKey, shared.MinKey
	if len(keys) > 0 {
		self.MinKey = keys[0]
		self.MaxKey = keys[len(keys)-1]
	}
	return nil
}

// fill lays keys out with the current model into freshly allocated arrays and
// refreshes the expected cost of the node.
func (self *DataNode) fill(keys []shared.KeyType, payloads []shared.PayloadType, dataCapacity int) {
	newKeys := make([]shared.KeyType, dataCapacity)
	newPayloads := make([]shared.PayloadType, dataCapacity)
	newBitmap := bitmap.NewOccupancy(dataCapacity)

	acc := cost_models.NewExpectedSearchIterationsAndShiftsAccumulator(self.ExpectedInsertFrac)
	ModelBasedPlacement(keys, dataCapacity, &self.LinearModel, acc, func(position int, i int) {
		newKeys[position] = keys[i]
		newPayloads[position] = payloads[i]
		newBitmap.Set(uint32(position))
	})

	next := shared.KEndSentinel
	for pos := dataCapacity - 1; pos >= 0; pos-- {
		if newBitmap.Contains(uint32(pos)) {
			next = newKeys[pos]
		} else {
			newKeys[pos] = next
		}
	}

	self.Keys = newKeys
	self.Payloads = newPayloads
	self.Bitmap = newBitmap
	self.DataCapacity = dataCapacity
	self.NumKeys = len(keys)
	self.ExpansionThreshold = min(max(float64(dataCapacity)*shared.KMaxDensity, float64(self.NumKeys+1)), float64(dataCapacity))
	self.ExpectedAvgExpSearchIterations = acc.GetExpectedNumSearchIterations()
	self.ExpectedAvgShifts = acc.GetExpectedNumShifts()
	self.Cost = acc.GetStats()
}

// Release returns the node's slots to its allocator. The node must not be used afterwards.
func (self *DataNode) Release() {
	self.allocator.Release(self.DataCapacity)
	self.Keys = nil
	self.Payloads = nil
	self.DataCapacity = 0
}

func (self *DataNode) IterateFilledPositions(yield func(shared.KeyType, shared.PayloadType, int, int), start int, end int) {
	j := 0
	for i := max(start, 0); i < min(self.DataCapacity, end); i++ {
		if self.isFilled(i) {
			yield(self.Keys[i], self.Payloads[i], i, j)
			j++
		}
	}
}

// Collect copies the filled keys and payloads in [start, end) in order.
func (self *DataNode) Collect(start int, end int) ([]shared.KeyType, []shared.PayloadType) {
	keys := make([]shared.KeyType, 0, self.NumKeys)
	payloads := make([]shared.PayloadType, 0, self.NumKeys)
	self.IterateFilledPositions(func(key shared.KeyType, payload shared.PayloadType, i int, j int) {
		keys = append(keys, key)
		payloads = append(payloads, payload)
	}, start, end)
	return keys, payloads
}

func (self *DataNode) GetFirstKey() shared.KeyType {
	if pos := self.GetNextFilledPosition(0, false); pos < self.DataCapacity {
		return self.Keys[pos]
	}
	return shared.MaxKey
}

func (self *DataNode) GetLastKey() shared.KeyType {
	if pos := self.GetPrevFilledPosition(self.DataCapacity - 1); pos >= 0 {
		return self.Keys[pos]
	}
	return shared.MinKey
}

func (self *DataNode) ResetStats() {
	self.NumShifts = 0
	self.NumExpSearchIterations = 0
	self.NumLookups = 0
	self.NumInserts = 0
	self.NumResizes = 0
}

func NewDataNode(level int, allocator *Allocator, expectedInsertFrac float64) *DataNode {
	return &DataNode{
		Level:              level,
		ExpansionThreshold: 1.0,
		MaxKey:             shared.MinKey,
		MinKey:             shared.MaxKey,
		ExpectedInsertFrac: expectedInsertFrac,
		MaxSlots:           shared.MaxSlots,
		allocator:          allocator,
	}
}
