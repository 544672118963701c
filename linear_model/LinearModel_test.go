package linear_model

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"alex_bench/shared"
)

func build(keys []shared.KeyType) LinearModel {
	model := LinearModel{}
	builder := NewLinearModelBuilder(&model)
	for i, key := range keys {
		builder.Add(key, float64(i))
	}
	builder.Build()
	return model
}

func TestBuildPerfectLine(t *testing.T) {
	model := build([]shared.KeyType{10, 20, 30, 40, 50})
	assert.InDelta(t, 0.1, model.A, 1e-12)
	assert.InDelta(t, -1.0, model.B, 1e-9)
	assert.InDelta(t, 2.0, model.PredictDouble(30), 1e-9)
}

func TestBuildDegenerateInputs(t *testing.T) {
	single := build([]shared.KeyType{7})
	assert.Equal(t, 0.0, single.A)
	assert.Equal(t, 0.0, single.B)

	duplicates := build([]shared.KeyType{7, 7, 7})
	assert.Equal(t, 0.0, duplicates.A)
	assert.InDelta(t, 1.0, duplicates.B, 1e-12)
}

func TestBuildLargeKeysStayMonotone(t *testing.T) {
	base := shared.KeyType(math.MaxUint64 - 1_000_000)
	keys := make([]shared.KeyType, 100)
	for i := range keys {
		keys[i] = base + shared.KeyType(i*1000)
	}
	model := build(keys)
	assert.Greater(t, model.A, 0.0)

	last := -1
	for _, key := range keys {
		bucket := model.PredictBucket(key, 100)
		assert.GreaterOrEqual(t, bucket, last)
		last = bucket
	}
}

func TestPredictBucketClamps(t *testing.T) {
	model := NewLinearModel(1.0, -5.0)
	assert.Equal(t, 0, model.PredictBucket(0, 10))
	assert.Equal(t, 3, model.PredictBucket(8, 10))
	assert.Equal(t, 9, model.PredictBucket(100, 10))
	assert.Equal(t, 9, model.PredictBucket(math.MaxUint64, 10))

	model.Expand(2)
	assert.Equal(t, 6, model.PredictBucket(8, 10))

	copied := CopyLinearModel(model)
	copied.A = 0
	assert.Equal(t, 2.0, model.A)
}
