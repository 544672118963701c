package node

// Node is either a *ModelNode routing keys to children or a *DataNode holding
// them.
type Node interface {
	IsLeaf() bool

	// Level in the tree, 0 at the root
	GetLevel() int
	SetLevel(level int)

	// The parent holds 2^DuplicationFactor adjacent pointers to this node.
	GetDuplicationFactor() int
	SetDuplicationFactor(duplicationFactor int)

	// GetChildren returns the child pointer array, nil for data nodes.
	GetChildren() []Node

	// Accept dispatches to the visitor method matching the node kind.
	Accept(visitor Visitor)
}
