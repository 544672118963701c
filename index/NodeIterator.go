package index

import "alex_bench/node"

type NodeVisitor = node.Visitor
type LeafView = node.LeafView
type InternalView = node.InternalView

// NodeView is a read-only handle on one node of the tree.
type NodeView struct {
	node node.Node
}

func (v NodeView) IsLeaf() bool {
	return v.node.IsLeaf()
}

func (v NodeView) Accept(visitor NodeVisitor) {
	v.node.Accept(visitor)
}

// NodeIterator walks the tree in pre-order, yielding every node exactly once even
// when a model node holds several pointers to the same child.
type NodeIterator struct {
	stack   []node.Node
	current node.Node
}

func (self *Index) NewNodeIterator() *NodeIterator {
	return &NodeIterator{current: self.rootNode}
}

func (it *NodeIterator) IsEnd() bool {
	return it.current == nil
}

func (it *NodeIterator) Current() NodeView {
	return NodeView{node: it.current}
}

func (it *NodeIterator) Next() {
	if it.current == nil {
		return
	}
	children := it.current.GetChildren()
	// duplicated pointers are always contiguous
	for i := len(children) - 1; i >= 0; i-- {
		if i > 0 && children[i] == children[i-1] {
			continue
		}
		it.stack = append(it.stack, children[i])
	}

	if len(it.stack) == 0 {
		it.current = nil
		return
	}
	it.current = it.stack[len(it.stack)-1]
	it.stack = it.stack[:len(it.stack)-1]
}
