package node

import "alex_bench/shared"

// LeafView is a read-only copy of the parts of a data node exposed to callers.
type LeafView struct {
	Slope     float64
	Intercept float64
	MinKey    shared.KeyType
	MaxKey    shared.KeyType
	NumKeys   int
	Capacity  int
	Level     int
}

// InternalView is a read-only copy of the parts of a model node exposed to callers.
type InternalView struct {
	NumChildren int
	Level       int
	Slope       float64
	Intercept   float64
}

// Visitor must handle both node kinds; adding a kind breaks every implementation
// at compile time.
type Visitor interface {
	VisitLeaf(leaf LeafView)
	VisitInternal(internal InternalView)
}
