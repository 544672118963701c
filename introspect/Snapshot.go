package introspect

import (
	"fmt"

	"alex_bench/index"
	"alex_bench/shared"
)

// Traversable is anything exposing a pre-order node iterator.
type Traversable interface {
	NewNodeIterator() *index.NodeIterator
}

// NodeInfo describes one data node: its linear model and key range.
type NodeInfo struct {
	Slope     float64
	Intercept float64
	MinKey    shared.KeyType
	MaxKey    shared.KeyType
	NumKeys   int
}

// Snapshot is the leaf layout of an index at one point in time.
type Snapshot struct {
	// Leaves in traversal order, which is key order
	Leaves []NodeInfo
	// Diagnostics over internal nodes
	ModelNodes    int
	ChildPointers int
}

type collector struct {
	snapshot *Snapshot
}

func (c collector) VisitLeaf(leaf index.LeafView) {
	c.snapshot.Leaves = append(c.snapshot.Leaves, NodeInfo{
		Slope:     leaf.Slope,
		Intercept: leaf.Intercept,
		MinKey:    leaf.MinKey,
		MaxKey:    leaf.MaxKey,
		NumKeys:   leaf.NumKeys,
	})
}

func (c collector) VisitInternal(internal index.InternalView) {
	c.snapshot.ModelNodes++
	c.snapshot.ChildPointers += internal.NumChildren
}

// TakeSnapshot walks t once without modifying it. Every call builds a fresh value.
func TakeSnapshot(t Traversable) Snapshot {
	snapshot := Snapshot{Leaves: make([]NodeInfo, 0)}
	visitor := collector{snapshot: &snapshot}
	for it := t.NewNodeIterator(); !it.IsEnd(); it.Next() {
		it.Current().Accept(visitor)
	}
	return snapshot
}

func (s Snapshot) NumLeaves() int {
	return len(s.Leaves)
}

// Ordered checks that every non-empty leaf starts at or after the end of the
// previous non-empty leaf.
func (s Snapshot) Ordered() error {
	previous := -1
	for i, leaf := range s.Leaves {
		if leaf.NumKeys == 0 {
			continue
		}
		if leaf.MinKey > leaf.MaxKey {
			return fmt.Errorf("leaf %d: min key %d above max key %d", i, leaf.MinKey, leaf.MaxKey)
		}
		if previous >= 0 && s.Leaves[previous].MaxKey > leaf.MinKey {
			return fmt.Errorf("leaf %d: min key %d below max key %d of leaf %d", i, leaf.MinKey, s.Leaves[previous].MaxKey, previous)
		}
		previous = i
	}
	return nil
}
