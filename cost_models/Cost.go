package cost_models

import "alex_bench/shared"

// Cost is the intra-node cost of a data node given its average exponential search
// iterations and average shifts per insert.
func Cost(searchIterations float64, shifts float64, insertFrac float64) float64 {
	return shared.KExpSearchIterationsWeight*searchIterations + shared.KShiftsWeight*shifts*insertFrac
}
