package index

import (
	"errors"
	"fmt"

	"alex_bench/fanout_tree"
	"alex_bench/linear_model"
	"alex_bench/node"
	"alex_bench/shared"
)

type Index struct {
	superRootNode *node.ModelNode
	rootNode      node.Node

	allocator *node.Allocator

	// -- User-changeable parameters --
	// When bulk loading, Alex can use provided knowledge of the expected
	// fraction of operations that will be inserts
	// For simplicity, operations are either point lookups ("reads") or inserts
	// ("writes)
	// i.e., 0 means we expect a read-only workload, 1 means write-only
	expectedInsertFrac float64
	// Maximum node size, in bytes. By default, 16MB.
	// Higher values result in better average throughput, but worse tail/max
	// insert latency
	maxNodeSize int

	// -- Derived parameters --
	// Setting max node size automatically changes these parameters
	// assumes 8-byte pointers
	maxFanout        int
	maxDataNodeSlots int

	// -- Statistics --
	numKeys                       int
	numModelNodes                 int
	numDataNodes                  int
	numExpandAndScales            int
	numExpandAndRetrains          int
	numDownwardSplits             int
	numSidewaysSplits             int
	numModelNodeExpansions        int
	numDownwardSplitKeys          int64
	numSidewaysSplitKeys          int64
	numModelNodeExpansionPointers int64
	numNodeLookups                int64
	numLookups                    int64
	numInserts                    int64
}

// traversalNode is one step of the path from the super root down to a data node.
type traversalNode struct {
	ModelNode *node.ModelNode
	BucketID  int
}

// Stats is a snapshot of the index counters.
type Stats struct {
	NumKeys                       int
	NumModelNodes                 int
	NumDataNodes                  int
	NumExpandAndScales            int
	NumExpandAndRetrains          int
	NumDownwardSplits             int
	NumSidewaysSplits             int
	NumModelNodeExpansions        int
	NumDownwardSplitKeys          int64
	NumSidewaysSplitKeys          int64
	NumModelNodeExpansionPointers int64
	NumNodeLookups                int64
	NumLookups                    int64
	NumInserts                    int64
	MemoryUsedBytes               int64
}

func (self *Index) Stats() Stats {
	return Stats{
		NumKeys:                       self.numKeys,
		NumModelNodes:                 self.numModelNodes,
		NumDataNodes:                  self.numDataNodes,
		NumExpandAndScales:            self.numExpandAndScales,
		NumExpandAndRetrains:          self.numExpandAndRetrains,
		NumDownwardSplits:             self.numDownwardSplits,
		NumSidewaysSplits:             self.numSidewaysSplits,
		NumModelNodeExpansions:        self.numModelNodeExpansions,
		NumDownwardSplitKeys:          self.numDownwardSplitKeys,
		NumSidewaysSplitKeys:          self.numSidewaysSplitKeys,
		NumModelNodeExpansionPointers: self.numModelNodeExpansionPointers,
		NumNodeLookups:                self.numNodeLookups,
		NumLookups:                    self.numLookups,
		NumInserts:                    self.numInserts,
		MemoryUsedBytes:               self.allocator.Used(),
	}
}

func (self *Index) NumKeys() int {
	return self.numKeys
}

func (self *Index) maxDataNodeKeys() int {
	return int(float64(self.maxDataNodeSlots) * shared.KInitialDensity)
}

func (self *Index) createSuperRoot() {
	if self.rootNode == nil {
		return
	}
	self.superRootNode = node.NewModelNode(self.rootNode.GetLevel() - 1)
	self.superRootNode.NumChildren = 1
	self.superRootNode.Children = make([]node.Node, 1)
	self.updateSuperRootNodePointer()
}

func (self *Index) updateSuperRootNodePointer() {
	self.superRootNode.Children[0] = self.rootNode
	self.superRootNode.SetLevel(self.rootNode.GetLevel() - 1)
}

func (self *Index) FirstDataNode() *node.DataNode {
	current := self.rootNode
	for current != nil {
		children := current.GetChildren()
		if children == nil {
			return current.(*node.DataNode)
		}
		current = children[0]
	}
	return nil
}

func (self *Index) LastDataNode() *node.DataNode {
	current := self.rootNode
	for current != nil {
		children := current.GetChildren()
		if children == nil {
			return current.(*node.DataNode)
		}
		current = children[len(children)-1]
	}
	return nil
}

func (self *Index) GetMinKey() shared.KeyType {
	for leaf := self.FirstDataNode(); leaf != nil; leaf = leaf.NextLeaf {
		if leaf.NumKeys > 0 {
			return leaf.GetFirstKey()
		}
	}
	return shared.MaxKey
}

func (self *Index) GetMaxKey() shared.KeyType {
	for leaf := self.LastDataNode(); leaf != nil; leaf = leaf.PrevLeaf {
		if leaf.NumKeys > 0 {
			return leaf.GetLastKey()
		}
	}
	return shared.MinKey
}

// getLeaf routes key down to its data node, recording the model nodes crossed.
// The first entry of the path is always the super root.
func (self *Index) getLeaf(key shared.KeyType) (*node.DataNode, []traversalNode) {
	traversalPath := []traversalNode{{ModelNode: self.superRootNode, BucketID: 0}}
	current := self.rootNode
	for {
		switch n := current.(type) {
		case *node.DataNode:
			return n, traversalPath
		case *node.ModelNode:
			bucketID := n.GetBucketID(key)
			traversalPath = append(traversalPath, traversalNode{ModelNode: n, BucketID: bucketID})
			current = n.Children[bucketID]
			self.numNodeLookups++
		default:
			panic(fmt.Sprintf("unexpected node type %T", current))
		}
	}
}

func (self *Index) newDataNode(level int) *node.DataNode {
	dataNode := node.NewDataNode(level, self.allocator, self.expectedInsertFrac)
	dataNode.MaxSlots = self.maxDataNodeSlots
	return dataNode
}

// ensureRoot gives an index that was never bulk loaded an empty data node root.
func (self *Index) ensureRoot() error {
	if self.rootNode != nil {
		return nil
	}
	root := self.newDataNode(0)
	if err := root.BulkLoad(nil, nil, shared.KInitialDensity); err != nil {
		return err
	}
	self.rootNode = root
	self.numDataNodes = 1
	self.createSuperRoot()
	return nil
}

/*** Bulk load ***/

// bulkLoadState collects what a bulk load created so a failure can be undone.
type bulkLoadState struct {
	totalKeys     int
	dataNodes     []*node.DataNode
	numModelNodes int
}

// BulkLoad builds the index from pairs sorted by key. It may only be called once,
// on an index that holds nothing yet. On error the index is left empty.
func (self *Index) BulkLoad(pairs []shared.KeyValuePair) error {
	if self.rootNode != nil {
		return shared.AlreadyLoadedError
	}

	keys := make([]shared.KeyType, len(pairs))
	payloads := make([]shared.PayloadType, len(pairs))
	for i, pair := range pairs {
		if i > 0 && pair.Key < pairs[i-1].Key {
			return fmt.Errorf("%w: key %d at position %d follows %d", shared.UnsortedBulkLoadError, pair.Key, i, pairs[i-1].Key)
		}
		keys[i] = pair.Key
		payloads[i] = pair.Payload
	}

	state := &bulkLoadState{totalKeys: len(keys)}
	minLevel := 0
	if len(keys) > self.maxDataNodeKeys() {
		minLevel = 1
	}
	root, err := self.bulkLoadNode(keys, payloads, 0, minLevel, state)
	if err != nil {
		for _, dataNode := range state.dataNodes {
			dataNode.Release()
		}
		return err
	}

	// leaves were created in key order
	for i := 1; i < len(state.dataNodes); i++ {
		state.dataNodes[i-1].NextLeaf = state.dataNodes[i]
		state.dataNodes[i].PrevLeaf = state.dataNodes[i-1]
	}

	self.rootNode = root
	self.numKeys = len(keys)
	self.numDataNodes = len(state.dataNodes)
	self.numModelNodes = state.numModelNodes
	self.createSuperRoot()
	return nil
}

func (self *Index) bulkLoadDataNode(keys []shared.KeyType, payloads []shared.PayloadType, level int, state *bulkLoadState) (*node.DataNode, error) {
	dataNode := self.newDataNode(level)
	if err := dataNode.BulkLoad(keys, payloads, shared.KInitialDensity); err != nil {
		return nil, err
	}
	state.dataNodes = append(state.dataNodes, dataNode)
	return dataNode, nil
}

// bulkLoadNode builds the subtree over sorted keys. A model node is created when the
// fanout tree finds a split worth it, or when minLevel forces one because the keys do
// not fit in a single data node.
func (self *Index) bulkLoadNode(keys []shared.KeyType, payloads []shared.PayloadType, level int, minLevel int, state *bulkLoadState) (node.Node, error) {
	numKeys := len(keys)
	if numKeys == 0 || keys[0] == keys[numKeys-1] {
		return self.bulkLoadDataNode(keys, payloads, level, state)
	}
	// a single data node is kept when it is cheaper than one more node lookup
	if numKeys <= self.maxDataNodeKeys() {
		cost, _, _ := node.ExpectedCost(keys, shared.KInitialDensity, self.expectedInsertFrac)
		if cost < shared.KNodeLookupsWeight {
			return self.bulkLoadDataNode(keys, payloads, level, state)
		}
	}

	// maps [min key, max key] onto [0, 1)
	minKey, maxKey := keys[0], keys[numKeys-1]
	baseModel := linear_model.LinearModel{A: 1.0 / (float64(maxKey-minKey) + 1.0)}
	baseModel.B = -baseModel.A * float64(minKey)

	depth, usedNodes := fanout_tree.FindBestFanoutBottomUp(
		keys, baseModel, state.totalKeys, self.maxFanout, minLevel, self.expectedInsertFrac,
	)
	if depth == 0 || len(usedNodes) <= 1 {
		return self.bulkLoadDataNode(keys, payloads, level, state)
	}
	for _, treeNode := range usedNodes {
		if treeNode.NumKeys == numKeys {
			// keys cannot be separated by the model
			return self.bulkLoadDataNode(keys, payloads, level, state)
		}
	}

	fanout := 1 << depth
	modelNode := node.NewModelNode(level)
	modelNode.LinearModel = baseModel
	modelNode.LinearModel.Expand(float64(fanout))
	modelNode.NumChildren = fanout
	modelNode.Children = make([]node.Node, fanout)
	state.numModelNodes++

	for _, treeNode := range usedNodes {
		childKeys := keys[treeNode.LeftBoundary:treeNode.RightBoundary]
		childPayloads := payloads[treeNode.LeftBoundary:treeNode.RightBoundary]

		var child node.Node
		var err error
		if treeNode.NumKeys > self.maxDataNodeKeys() {
			child, err = self.bulkLoadNode(childKeys, childPayloads, level+1, 1, state)
		} else {
			child, err = self.bulkLoadDataNode(childKeys, childPayloads, level+1, state)
		}
		if err != nil {
			return nil, err
		}

		duplicationFactor := depth - treeNode.Level
		child.SetDuplicationFactor(duplicationFactor)
		start := treeNode.NodeID << duplicationFactor
		for i := start; i < start+(1<<duplicationFactor); i++ {
			modelNode.Children[i] = child
		}
	}
	return modelNode, nil
}

/*** Insert ***/

func (self *Index) insertIntoLeaf(leaf *node.DataNode, key shared.KeyType, payload shared.PayloadType, checkCosts bool) error {
	numResizes := leaf.NumResizes
	var err error
	if checkCosts {
		_, err = leaf.Insert(key, payload)
	} else {
		_, err = leaf.InsertWithoutCostChecks(key, payload)
	}
	self.numExpandAndScales += leaf.NumResizes - numResizes
	return err
}

// Insert adds key with payload; duplicate keys are kept. On error (only
// shared.AllocationError under a memory budget) the index is unchanged.
func (self *Index) Insert(key shared.KeyType, payload shared.PayloadType) error {
	if err := self.ensureRoot(); err != nil {
		return err
	}

	leaf, traversalPath := self.getLeaf(key)
	for attempt := 0; ; attempt++ {
		if attempt >= shared.KMaxSplitAttempts {
			if err := self.insertIntoLeaf(leaf, key, payload, false); err != nil {
				return err
			}
			break
		}

		err := self.insertIntoLeaf(leaf, key, payload, true)
		if err == nil {
			break
		}
		if errors.Is(err, shared.AllocationError) {
			return err
		}

		split, err := self.handleFullLeaf(leaf, traversalPath, err)
		if err != nil {
			return err
		}
		if !split {
			if err := self.insertIntoLeaf(leaf, key, payload, false); err != nil {
				return err
			}
			break
		}
		leaf, traversalPath = self.getLeaf(key)
	}

	self.numInserts++
	self.numKeys++
	return nil
}

// splitPlan describes how a full data node is divided in two.
type splitPlan struct {
	sideways     bool
	expandParent bool
	// index of the first key going to the right node
	splitIdx int
	// model of the new model node of a downward split
	model linear_model.LinearModel
}

// planSideways splits the run of parent pointers held by leaf in two halves,
// doubling the parent first when leaf owns a single pointer.
func (self *Index) planSideways(leaf *node.DataNode, parent traversalNode, keys []shared.KeyType) *splitPlan {
	if parent.ModelNode == self.superRootNode {
		return nil
	}
	plan := &splitPlan{sideways: true}
	model := parent.ModelNode.LinearModel
	numChildren := parent.ModelNode.NumChildren
	repeats := 1 << leaf.GetDuplicationFactor()
	start := parent.BucketID - parent.BucketID%repeats
	if repeats == 1 {
		if numChildren*2 > self.maxFanout {
			return nil
		}
		plan.expandParent = true
		model.Expand(2)
		numChildren *= 2
		repeats = 2
		start *= 2
	}

	mid := start + repeats/2
	plan.splitIdx = len(keys)
	for i, key := range keys {
		if model.PredictBucket(key, numChildren) >= mid {
			plan.splitIdx = i
			break
		}
	}
	if plan.splitIdx == 0 || plan.splitIdx == len(keys) {
		return nil
	}
	return plan
}

// planDownwards replaces leaf by a model node with two children over its key range.
func planDownwards(keys []shared.KeyType) *splitPlan {
	numKeys := len(keys)
	if numKeys < 2 || keys[0] == keys[numKeys-1] {
		return nil
	}
	minKey, maxKey := keys[0], keys[numKeys-1]
	plan := &splitPlan{}
	plan.model.A = 2.0 / (float64(maxKey-minKey) + 1.0)
	plan.model.B = -plan.model.A * float64(minKey)

	plan.splitIdx = numKeys
	for i, key := range keys {
		if plan.model.PredictBucket(key, 2) >= 1 {
			plan.splitIdx = i
			break
		}
	}
	if plan.splitIdx == 0 || plan.splitIdx == numKeys {
		return nil
	}
	return plan
}

// handleFullLeaf reacts to a data node refusing an insert. It either splits the node
// (returns true, the caller must route again) or leaves the caller to insert into
// the same node (returns false), possibly after expanding and retraining it.
func (self *Index) handleFullLeaf(leaf *node.DataNode, traversalPath []traversalNode, cause error) (bool, error) {
	parent := traversalPath[len(traversalPath)-1]
	keys, payloads := leaf.Collect(0, leaf.DataCapacity)

	plan := self.planSideways(leaf, parent, keys)
	if plan == nil {
		plan = planDownwards(keys)
	}
	if plan == nil {
		// every key routes the same way: grow in place
		return false, nil
	}

	if shared.SplittingPolicyMethod == shared.DecideBetweenNoSplittingOrSplittingInTwo &&
		errors.Is(cause, shared.SignificantCostDeviationInsertionError) {
		depth, treeNode := fanout_tree.FindBestFanoutExistingNode(keys, plan.splitIdx, self.numKeys, leaf.FracInserts())
		if depth == 0 {
			if err := leaf.Resize(shared.KMinDensity, true); err != nil {
				return false, err
			}
			leaf.Cost = treeNode.Cost
			leaf.ExpectedAvgExpSearchIterations = treeNode.ExpectedAvgSearchIterations
			leaf.ExpectedAvgShifts = treeNode.ExpectedAvgShifts
			leaf.ResetStats()
			self.numExpandAndRetrains++
			return false, nil
		}
	}

	childLevel := leaf.GetLevel()
	if !plan.sideways {
		childLevel++
	}
	left := self.newDataNode(childLevel)
	if err := left.BulkLoad(keys[:plan.splitIdx], payloads[:plan.splitIdx], shared.KMinDensity); err != nil {
		return false, err
	}
	right := self.newDataNode(childLevel)
	if err := right.BulkLoad(keys[plan.splitIdx:], payloads[plan.splitIdx:], shared.KMinDensity); err != nil {
		left.Release()
		return false, err
	}

	if plan.sideways {
		self.splitSideways(leaf, parent, plan, left, right)
		self.numSidewaysSplits++
		self.numSidewaysSplitKeys += int64(len(keys))
	} else {
		self.splitDownwards(leaf, parent, plan, left, right)
		self.numDownwardSplits++
		self.numDownwardSplitKeys += int64(len(keys))
	}
	self.linkDataNodes(leaf, left, right)
	leaf.Release()
	self.numDataNodes++
	return true, nil
}

func (self *Index) splitSideways(leaf *node.DataNode, parent traversalNode, plan *splitPlan, left *node.DataNode, right *node.DataNode) {
	parentNode := parent.ModelNode
	repeats := 1 << leaf.GetDuplicationFactor()
	start := parent.BucketID - parent.BucketID%repeats
	if plan.expandParent {
		expansionFactor := parentNode.Expand(1)
		start *= expansionFactor
		repeats *= expansionFactor
		self.numModelNodeExpansions++
		self.numModelNodeExpansionPointers += int64(parentNode.NumChildren / 2)
	}

	mid := start + repeats/2
	duplicationFactor := shared.Log2RoundDown(repeats / 2)
	left.SetDuplicationFactor(duplicationFactor)
	right.SetDuplicationFactor(duplicationFactor)
	for i := start; i < mid; i++ {
		parentNode.Children[i] = left
	}
	for i := mid; i < start+repeats; i++ {
		parentNode.Children[i] = right
	}
}

func (self *Index) splitDownwards(leaf *node.DataNode, parent traversalNode, plan *splitPlan, left *node.DataNode, right *node.DataNode) {
	modelNode := node.NewModelNode(leaf.GetLevel())
	modelNode.LinearModel = plan.model
	modelNode.NumChildren = 2
	modelNode.Children = []node.Node{left, right}
	modelNode.SetDuplicationFactor(leaf.GetDuplicationFactor())
	self.numModelNodes++

	if parent.ModelNode == self.superRootNode {
		self.rootNode = modelNode
		self.updateSuperRootNodePointer()
		return
	}
	repeats := 1 << leaf.GetDuplicationFactor()
	start := parent.BucketID - parent.BucketID%repeats
	for i := start; i < start+repeats; i++ {
		parent.ModelNode.Children[i] = modelNode
	}
}

// linkDataNodes puts left and right in place of leaf in the leaf chain.
func (self *Index) linkDataNodes(leaf *node.DataNode, left *node.DataNode, right *node.DataNode) {
	left.PrevLeaf = leaf.PrevLeaf
	if leaf.PrevLeaf != nil {
		leaf.PrevLeaf.NextLeaf = left
	}
	left.NextLeaf = right
	right.PrevLeaf = left
	right.NextLeaf = leaf.NextLeaf
	if leaf.NextLeaf != nil {
		leaf.NextLeaf.PrevLeaf = right
	}
	leaf.NextLeaf = nil
	leaf.PrevLeaf = nil
}

/*** Lookup ***/

// Find returns a pointer to the payload of the last inserted copy of key.
func (self *Index) Find(key shared.KeyType) (*shared.PayloadType, error) {
	if self.rootNode == nil {
		return nil, shared.KeyNotFoundError
	}
	self.numLookups++
	leaf, _ := self.getLeaf(key)
	position, err := leaf.FindKeyPosition(key)
	if err != nil {
		return nil, err
	}
	return &leaf.Payloads[position], nil
}

// ForEach visits every key in ascending order until fn returns false.
func (self *Index) ForEach(fn func(key shared.KeyType, payload shared.PayloadType) bool) {
	for leaf := self.FirstDataNode(); leaf != nil; leaf = leaf.NextLeaf {
		for pos := leaf.GetNextFilledPosition(0, false); pos < leaf.DataCapacity; pos = leaf.GetNextFilledPosition(pos, true) {
			if !fn(leaf.Keys[pos], leaf.Payloads[pos]) {
				return
			}
		}
	}
}

func NewIndex(opts ...Option) *Index {
	self := &Index{
		expectedInsertFrac: 1.0,
		maxNodeSize:        shared.KDefaultMaxDataNodeBytes,
		maxFanout:          shared.KDefaultMaxFanout,
		maxDataNodeSlots:   shared.MaxSlots,
	}
	for _, opt := range opts {
		opt(self)
	}
	return self
}
