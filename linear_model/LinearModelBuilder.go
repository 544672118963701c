package linear_model

import (
	"math"

	"alex_bench/shared"
)

// LinearModelBuilder fits a least squares line over (key, position) points.
// Keys are shifted by the first key added so that sums stay well conditioned
// for keys close to the top of the uint64 range.
type LinearModelBuilder struct {
	model  *LinearModel
	count  uint64
	origin float64
	xSum   float64
	ySum   float64
	xxSum  float64
	xySum  float64
	xMin   float64
	xMax   float64
	yMin   float64
	yMax   float64
}

func NewLinearModelBuilder(model *LinearModel) *LinearModelBuilder {
	return &LinearModelBuilder{
		model: model,
		xMin:  math.MaxFloat64,
		xMax:  -math.MaxFloat64,
		yMin:  math.MaxFloat64,
		yMax:  -math.MaxFloat64,
	}
}

func (self *LinearModelBuilder) Add(key shared.KeyType, y float64) {
	if self.count == 0 {
		self.origin = float64(key)
	}
	x := float64(key) - self.origin
	self.count++
	self.xSum += x
	self.ySum += y
	self.xxSum += x * x
	self.xySum += x * y

	self.xMin = min(x, self.xMin)
	self.xMax = max(x, self.xMax)
	self.yMin = min(y, self.yMin)
	self.yMax = max(y, self.yMax)
}

func (self *LinearModelBuilder) Build() {
	if self.count <= 1 {
		self.model.A = 0.0
		self.model.B = self.ySum
		return
	}

	n := float64(self.count)

	// Zero variance check, fit horizontal line
	if n*self.xxSum-self.xSum*self.xSum == 0.0 {
		self.model.A = 0.0
		self.model.B = self.ySum / n
		return
	}

	slope := (n*self.xySum - self.xSum*self.ySum) / (n*self.xxSum - self.xSum*self.xSum)
	intercept := (self.ySum - slope*self.xSum) / n
	self.model.A = slope
	self.model.B = intercept

	// If floating point precision errors, fit spline
	if self.model.A <= 0.0 {
		if self.xMax-self.xMin == 0.0 {
			self.model.A = 0.0
			self.model.B = self.ySum / n
		} else {
			self.model.A = (self.yMax - self.yMin) / (self.xMax - self.xMin)
			self.model.B = self.yMin - self.xMin*self.model.A
		}
	}

	self.model.B -= self.model.A * self.origin
}
