package node

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alex_bench/linear_model"
	"alex_bench/shared"
)

func TestModelNodeExpandKeepsRouting(t *testing.T) {
	left := loadedNode(t, sequentialKeys(10, 1))
	right := loadedNode(t, sequentialKeys(10, 100))
	right.SetDuplicationFactor(1)

	modelNode := NewModelNode(0)
	modelNode.NumChildren = 4
	modelNode.LinearModel = linear_model.LinearModel{A: 4.0 / 1001.0}
	modelNode.Children = []Node{left, left, right, right}
	left.SetDuplicationFactor(1)

	before := map[shared.KeyType]Node{}
	for key := shared.KeyType(0); key <= 1000; key += 7 {
		before[key] = modelNode.GetChildNode(key)
	}

	factor := modelNode.Expand(2)
	require.Equal(t, 4, factor)
	assert.Equal(t, 16, modelNode.NumChildren)
	assert.Len(t, modelNode.Children, 16)
	assert.Equal(t, 3, left.GetDuplicationFactor())
	assert.Equal(t, 3, right.GetDuplicationFactor())

	for key, child := range before {
		assert.Same(t, child, modelNode.GetChildNode(key), "key %d moved", key)
	}
}

func TestModelNodeAcceptAndChildren(t *testing.T) {
	child := loadedNode(t, sequentialKeys(4, 1))
	modelNode := NewModelNode(2)
	modelNode.NumChildren = 1
	modelNode.Children = []Node{child}

	var got InternalView
	modelNode.Accept(recordingVisitor{internal: &got})
	assert.Equal(t, 1, got.NumChildren)
	assert.Equal(t, 2, got.Level)
	assert.Len(t, modelNode.GetChildren(), 1)
	assert.Nil(t, child.GetChildren())
	assert.False(t, modelNode.IsLeaf())
	assert.True(t, child.IsLeaf())
}

func TestAllocatorBudget(t *testing.T) {
	allocator := NewAllocator(int64(10 * shared.BlockSize))

	require.NoError(t, allocator.Reserve(6))
	err := allocator.Reserve(5)
	assert.ErrorIs(t, err, shared.AllocationError)
	assert.Equal(t, int64(6*shared.BlockSize), allocator.Used())

	allocator.Release(6)
	require.NoError(t, allocator.Reserve(10))
	assert.Equal(t, allocator.Budget(), allocator.Used())

	allocator.Release(100)
	assert.Equal(t, int64(0), allocator.Used())
	require.NoError(t, allocator.Reserve(10))
}

func TestAllocatorNilIsUnlimited(t *testing.T) {
	var allocator *Allocator
	assert.NoError(t, allocator.Reserve(1<<40))
	allocator.Release(1)
	assert.Equal(t, int64(0), allocator.Used())
	assert.NoError(t, NewAllocator(0).Reserve(1<<30))
}

func TestExpectedCostOfLinearKeys(t *testing.T) {
	cost, iterations, shifts := ExpectedCost(sequentialKeys(1000, 2), shared.KInitialDensity, 0.5)
	assert.Less(t, iterations, 0.5)
	assert.Less(t, shifts, 1.5)
	assert.GreaterOrEqual(t, cost, 0.0)

	cost, _, _ = ExpectedCost(nil, shared.KInitialDensity, 0.5)
	assert.Equal(t, 0.0, cost)
}
