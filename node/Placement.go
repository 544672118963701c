package node

import (
	"alex_bench/cost_models"
	"alex_bench/linear_model"
	"alex_bench/shared"
)

// ModelBasedPlacement assigns each of the sorted keys a slot in [0, dataCapacity)
// following model, never placing two keys in the same slot and packing the tail
// contiguously once the model runs out of room. place may be nil when only the
// accumulator is of interest.
func ModelBasedPlacement(
	keys []shared.KeyType,
	dataCapacity int,
	model *linear_model.LinearModel,
	acc cost_models.Accumulator,
	place func(position int, index int),
) {
	lastPosition := -1
	keysRemaining := len(keys)
	for i := 0; i < len(keys); i++ {
		predictedPosition := model.PredictBucket(keys[i], dataCapacity)
		actualPosition := max(predictedPosition, lastPosition+1)

		if dataCapacity-actualPosition < keysRemaining {
			// fill the rest of the store contiguously
			actualPosition = dataCapacity - keysRemaining
			for ; i < len(keys); i++ {
				predictedPosition = model.PredictBucket(keys[i], dataCapacity)
				if acc != nil {
					acc.Accumulate(actualPosition, predictedPosition)
				}
				if place != nil {
					place(actualPosition, i)
				}
				actualPosition++
			}
			return
		}

		if acc != nil {
			acc.Accumulate(actualPosition, predictedPosition)
		}
		if place != nil {
			place(actualPosition, i)
		}
		lastPosition = actualPosition
		keysRemaining--
	}
}

// TrainModel fits keys against their ranks and scales the result to dataCapacity slots.
func TrainModel(keys []shared.KeyType, dataCapacity int) linear_model.LinearModel {
	model := linear_model.LinearModel{}
	if len(keys) == 0 {
		return model
	}
	builder := linear_model.NewLinearModelBuilder(&model)
	for j, key := range keys {
		builder.Add(key, float64(j))
	}
	builder.Build()
	model.Expand(float64(dataCapacity) / float64(len(keys)))
	return model
}

// CapacityForDensity returns the slot count holding numKeys at the given density,
// always leaving at least one gap.
func CapacityForDensity(numKeys int, density float64) int {
	return max(int(float64(numKeys)/density), numKeys+1)
}

// ExpectedCost computes the intra-node cost of building a data node over keys at
// the given density without allocating it.
// Returns cost, expected search iterations, expected shifts.
func ExpectedCost(keys []shared.KeyType, density float64, insertFrac float64) (float64, float64, float64) {
	if len(keys) == 0 {
		return 0, 0, 0
	}
	dataCapacity := CapacityForDensity(len(keys), density)
	model := TrainModel(keys, dataCapacity)
	acc := cost_models.NewExpectedSearchIterationsAndShiftsAccumulator(insertFrac)
	ModelBasedPlacement(keys, dataCapacity, &model, acc, nil)
	return acc.GetStats(), acc.GetExpectedNumSearchIterations(), acc.GetExpectedNumShifts()
}
