package node

import (
	"alex_bench/linear_model"
	"alex_bench/shared"
)

type ModelNode struct {
	// Parameters from the Node interface
	DuplicationFactor int
	Level             int
	LinearModel       linear_model.LinearModel
	Cost              float64

	// Array of Children
	Children []Node

	// Number of logical Children. Must be a power of 2
	NumChildren int
}

// GetBucketID routes key to a child pointer slot.
func (self *ModelNode) GetBucketID(key shared.KeyType) int {
	return self.LinearModel.PredictBucket(key, self.NumChildren)
}

func (self *ModelNode) GetChildNode(key shared.KeyType) Node {
	return self.Children[self.GetBucketID(key)]
}

// Expand multiplies the pointer array by 2^log2ExpansionFactor, duplicating every
// child pointer. The model is scaled by a power of two, which is exact in floating
// point, so every key keeps routing to the same child.
func (self *ModelNode) Expand(log2ExpansionFactor int) int {
	expansionFactor := 1 << log2ExpansionFactor
	numNewChildren := self.NumChildren * expansionFactor
	newChildren := make([]Node, numNewChildren)
	currentIndex := 0
	for currentIndex < self.NumChildren {
		currentChild := self.Children[currentIndex]
		currentChildDuplicationFactor := currentChild.GetDuplicationFactor()
		currentChildRepeats := 1 << currentChildDuplicationFactor
		for i := expansionFactor * currentIndex; i < expansionFactor*(currentIndex+currentChildRepeats); i++ {
			newChildren[i] = currentChild
		}
		currentChild.SetDuplicationFactor(currentChildDuplicationFactor + log2ExpansionFactor)
		currentIndex += currentChildRepeats
	}
	self.Children = newChildren
	self.NumChildren = numNewChildren
	self.LinearModel.Expand(float64(expansionFactor))
	return expansionFactor
}

func (self *ModelNode) IsLeaf() bool {
	return false
}

func (self *ModelNode) GetLevel() int {
	return self.Level
}

func (self *ModelNode) SetLevel(level int) {
	self.Level = level
}

func (self *ModelNode) GetDuplicationFactor() int {
	return self.DuplicationFactor
}

func (self *ModelNode) SetDuplicationFactor(duplicationFactor int) {
	self.DuplicationFactor = duplicationFactor
}

func (self *ModelNode) GetChildren() []Node {
	return self.Children
}

func (self *ModelNode) Accept(visitor Visitor) {
	visitor.VisitInternal(InternalView{
		NumChildren: self.NumChildren,
		Level:       self.Level,
		Slope:       self.LinearModel.A,
		Intercept:   self.LinearModel.B,
	})
}

func NewModelNode(level int) *ModelNode {
	return &ModelNode{
		DuplicationFactor: 0,
		Level:             level,
		LinearModel:       linear_model.LinearModel{},
		Cost:              0.0,
		Children:          nil,
	}
}
