package fanout_tree

import (
	"math"
	"sort"
	"unsafe"

	"alex_bench/linear_model"
	"alex_bench/node"
	"alex_bench/shared"
)

// FTNode a node of the fanout tree
type FTNode struct {
	// level in the fanout tree
	Level int
	// node's position within its level
	NodeID int
	Cost   float64

	// start position in input array that this node represents
	LeftBoundary int
	// end position (exclusive) in input array that this node represents
	RightBoundary int

	Use                         bool
	ExpectedAvgSearchIterations float64
	ExpectedAvgShifts           float64
	NumKeys                     int
}

var dataNodeSize = float64(unsafe.Sizeof(node.DataNode{}))
var pointerSize = float64(unsafe.Sizeof(uintptr(0)))

// traversalCost is the cost of one extra model node lookup plus the weighted size
// of the pointers and data node headers a fanout introduces.
func traversalCost(fanout int, totalKeys int, numKeys int) float64 {
	return shared.KNodeLookupsWeight +
		shared.KModelSizeWeight*float64(fanout)*(dataNodeSize+pointerSize)*float64(totalKeys)/float64(numKeys)
}

// collectUsedNodes filters and collects nodes from the fanout tree, ordered by the
// child pointer slot they start at.
func collectUsedNodes(fanoutTree [][]*FTNode, maxLevel int) []*FTNode {
	if maxLevel >= len(fanoutTree) {
		maxLevel = len(fanoutTree) - 1
	}

	usedFanoutTreeNodes := make([]*FTNode, 0)
	for i := 0; i <= maxLevel; i++ {
		for _, treeNode := range fanoutTree[i] {
			if treeNode.Use {
				usedFanoutTreeNodes = append(usedFanoutTreeNodes, treeNode)
			}
		}
	}

	sort.Slice(usedFanoutTreeNodes, func(i, j int) bool {
		left, right := usedFanoutTreeNodes[i], usedFanoutTreeNodes[j]
		return (left.NodeID << (maxLevel - left.Level)) < (right.NodeID << (maxLevel - right.Level))
	})
	return usedFanoutTreeNodes
}

// mergeNodesUpwards attempts to merge sibling nodes into their parent if it reduces the cost.
// It returns the new best cost.
func mergeNodesUpwards(startLevel int, stopLevel int, bestCost float64, numKeys int, totalKeys int, fanoutTree [][]*FTNode) float64 {
	for level := startLevel; level > stopLevel; level-- {
		levelFanout := 1 << level
		atLeastOneMerge := false
		for i := 0; i < levelFanout/2; i++ {
			left, right, parent := fanoutTree[level][2*i], fanoutTree[level][2*i+1], fanoutTree[level-1][i]
			if !left.Use || !right.Use {
				continue
			}
			numNodeKeys := parent.NumKeys
			if numNodeKeys == 0 {
				left.Use = false
				right.Use = false
				parent.Use = true
				atLeastOneMerge = true
				bestCost -= shared.KModelSizeWeight * dataNodeSize * float64(totalKeys) / float64(numKeys)
				continue
			}
			mergingCostSaving := (left.Cost * float64(left.NumKeys) / float64(numNodeKeys)) +
				(right.Cost * float64(right.NumKeys) / float64(numNodeKeys)) -
				parent.Cost +
				(shared.KModelSizeWeight * dataNodeSize * float64(totalKeys) / float64(numNodeKeys))

			if mergingCostSaving >= 0 {
				left.Use = false
				right.Use = false
				parent.Use = true
				bestCost -= mergingCostSaving * float64(numNodeKeys) / float64(numKeys)
				atLeastOneMerge = true
			}
		}
		if !atLeastOneMerge {
			break
		}
	}
	return bestCost
}

// absorbEmptyNodes replaces every used node holding no keys by its parent, so that
// a bulk load never creates empty data nodes between non-empty ones.
func absorbEmptyNodes(bestLevel int, stopLevel int, fanoutTree [][]*FTNode) {
	for level := bestLevel; level > stopLevel; level-- {
		for _, treeNode := range fanoutTree[level] {
			if !treeNode.Use || treeNode.NumKeys > 0 {
				continue
			}
			parentID := treeNode.NodeID / 2
			fanoutTree[level-1][parentID].Use = true
			for below := level; below <= bestLevel; below++ {
				width := 1 << (below - level + 1)
				for id := parentID * width; id < (parentID+1)*width; id++ {
					fanoutTree[below][id].Use = false
				}
			}
		}
	}
}

// buildLevel partitions sorted keys among fanout children routed by model and
// computes the expected cost of a data node for every child.
func buildLevel(keys []shared.KeyType, model *linear_model.LinearModel, fanout int, level int, density float64, insertFrac float64) ([]*FTNode, float64) {
	treeLevel := make([]*FTNode, fanout)
	numKeys := len(keys)
	cost := 0.0
	rightBoundary := 0
	for i := 0; i < fanout; i++ {
		leftBoundary := rightBoundary
		for rightBoundary < numKeys && model.PredictBucket(keys[rightBoundary], fanout) <= i {
			rightBoundary++
		}
		treeNode := &FTNode{
			Level:         level,
			NodeID:        i,
			LeftBoundary:  leftBoundary,
			RightBoundary: rightBoundary,
			NumKeys:       rightBoundary - leftBoundary,
		}
		if treeNode.NumKeys > 0 {
			treeNode.Cost, treeNode.ExpectedAvgSearchIterations, treeNode.ExpectedAvgShifts =
				node.ExpectedCost(keys[leftBoundary:rightBoundary], density, insertFrac)
			cost += treeNode.Cost * float64(treeNode.NumKeys) / float64(numKeys)
		}
		treeLevel[i] = treeNode
	}
	return treeLevel, cost
}

// FindBestFanoutBottomUp picks the fanout (as a power of two depth) of a model node
// built over sorted keys, routed by baseModel scaled to the fanout. baseModel must
// map the key range onto [0, 1). Levels below minLevel are never chosen.
// Returns the depth and the used tree nodes in slot order.
func FindBestFanoutBottomUp(
	keys []shared.KeyType,
	baseModel linear_model.LinearModel,
	totalKeys int,
	maxFanout int,
	minLevel int,
	insertFrac float64,
) (int, []*FTNode) {
	numKeys := len(keys)
	bestLevel := minLevel
	bestCost := math.MaxFloat64
	fanoutCosts := make([]float64, 0)
	fanoutTree := make([][]*FTNode, 0)

	fanoutLimit := max(min(maxFanout, shared.Pow2RoundUp(numKeys)), 1<<minLevel)
	for fanout, level := 1, 0; fanout <= fanoutLimit; fanout, level = fanout*2, level+1 {
		model := baseModel
		model.Expand(float64(fanout))
		treeLevel, cost := buildLevel(keys, &model, fanout, level, shared.KInitialDensity, insertFrac)
		cost += traversalCost(fanout, totalKeys, numKeys)
		fanoutTree = append(fanoutTree, treeLevel)
		fanoutCosts = append(fanoutCosts, cost)

		if level >= minLevel && cost < bestCost {
			bestCost = cost
			bestLevel = level
		}

		// stop after costs increased twice in a row
		n := len(fanoutCosts)
		if level > minLevel && n >= 3 && fanoutCosts[n-1] > fanoutCosts[n-2] && fanoutCosts[n-2] > fanoutCosts[n-3] {
			break
		}
	}

	for _, treeNode := range fanoutTree[bestLevel] {
		treeNode.Use = true
	}

	mergeNodesUpwards(bestLevel, minLevel, bestCost, numKeys, totalKeys, fanoutTree)
	absorbEmptyNodes(bestLevel, minLevel, fanoutTree)
	return bestLevel, collectUsedNodes(fanoutTree, bestLevel)
}

// FindBestFanoutExistingNode decides between expanding a full data node in place
// (depth 0) and splitting it in two at splitIdx (depth 1).
// The returned node describes the expanded data node when depth 0 wins.
func FindBestFanoutExistingNode(keys []shared.KeyType, splitIdx int, totalKeys int, insertFrac float64) (int, *FTNode) {
	numKeys := len(keys)
	expanded := &FTNode{RightBoundary: numKeys, NumKeys: numKeys, Use: true}
	if numKeys == 0 || splitIdx <= 0 || splitIdx >= numKeys {
		return 0, expanded
	}

	expanded.Cost, expanded.ExpectedAvgSearchIterations, expanded.ExpectedAvgShifts =
		node.ExpectedCost(keys, shared.KMinDensity, insertFrac)
	expandCost := expanded.Cost + traversalCost(1, totalKeys, numKeys)

	leftCost, _, _ := node.ExpectedCost(keys[:splitIdx], shared.KMinDensity, insertFrac)
	rightCost, _, _ := node.ExpectedCost(keys[splitIdx:], shared.KMinDensity, insertFrac)
	splitCost := (leftCost*float64(splitIdx)+rightCost*float64(numKeys-splitIdx))/float64(numKeys) +
		traversalCost(2, totalKeys, numKeys)

	if splitCost < expandCost {
		return 1, nil
	}
	return 0, expanded
}
