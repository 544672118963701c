package linear_model

import "alex_bench/shared"

// LinearModel maps a key to a position: y = A*key + B.
type LinearModel struct {
	A float64
	B float64
}

func (lin *LinearModel) PredictDouble(key shared.KeyType) float64 {
	return lin.A*float64(key) + lin.B
}

// PredictBucket returns the prediction clamped to a slot in [0, n).
// It is monotone in key whenever A >= 0.
func (lin *LinearModel) PredictBucket(key shared.KeyType, n int) int {
	return shared.ClampBucket(lin.PredictDouble(key), n)
}

func (lin *LinearModel) Expand(factor float64) {
	lin.A *= factor
	lin.B *= factor
}

func NewLinearModel(a float64, b float64) *LinearModel {
	return &LinearModel{A: a, B: b}
}

func CopyLinearModel(lin *LinearModel) *LinearModel {
	return &LinearModel{A: lin.A, B: lin.B}
}
