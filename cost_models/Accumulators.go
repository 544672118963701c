package cost_models

import "math"

// Accumulator collects (actual, predicted) slot pairs of a model-based placement.
type Accumulator interface {
	Accumulate(actualPosition int, expectedPosition int)
	GetStats() float64
	Reset()
}

// ExpectedSearchIterationsAccumulator averages log2(|error|+1), the number of
// exponential search steps needed to reach the actual slot from the predicted one.
type ExpectedSearchIterationsAccumulator struct {
	sum float64
	n   int
}

func NewExpectedSearchIterationsAccumulator() *ExpectedSearchIterationsAccumulator {
	return &ExpectedSearchIterationsAccumulator{}
}

func (e *ExpectedSearchIterationsAccumulator) Accumulate(actualPosition int, expectedPosition int) {
	distance := math.Abs(float64(expectedPosition - actualPosition))
	e.sum += math.Log2(distance + 1)
	e.n++
}

func (e *ExpectedSearchIterationsAccumulator) GetStats() float64 {
	if e.n == 0 {
		return 0
	}
	return e.sum / float64(e.n)
}

func (e *ExpectedSearchIterationsAccumulator) Reset() {
	*e = ExpectedSearchIterationsAccumulator{}
}

// ExpectedShiftsAccumulator estimates shifts per insert from the runs of
// contiguous filled slots. Actual positions must arrive in increasing order.
//
// Inserting into a run of n keys shifts about n^2/4 - 1/4 keys in total; the
// quarter is dropped.
type ExpectedShiftsAccumulator struct {
	runStart int
	runEnd   int // -1 before the first key
	shifts   int64
	n        int
}

func NewExpectedShiftsAccumulator() *ExpectedShiftsAccumulator {
	return &ExpectedShiftsAccumulator{runEnd: -1}
}

func runShifts(start, end int) int64 {
	length := int64(end - start + 1)
	return length * length / 4
}

func (e *ExpectedShiftsAccumulator) Accumulate(actualPosition int, _ int) {
	if actualPosition > e.runEnd+1 {
		e.shifts += runShifts(e.runStart, e.runEnd)
		e.runStart = actualPosition
	}
	e.runEnd = actualPosition
	e.n++
}

func (e *ExpectedShiftsAccumulator) GetStats() float64 {
	if e.n == 0 {
		return 0
	}
	open := runShifts(e.runStart, e.runEnd)
	return float64(e.shifts+open) / float64(e.n)
}

func (e *ExpectedShiftsAccumulator) Reset() {
	*e = ExpectedShiftsAccumulator{runEnd: -1}
}

// ExpectedSearchIterationsAndShiftsAccumulator runs both estimates in one pass.
// GetStats reports the weighted intra-node cost for the configured insert fraction.
type ExpectedSearchIterationsAndShiftsAccumulator struct {
	search     ExpectedSearchIterationsAccumulator
	shifts     ExpectedShiftsAccumulator
	insertFrac float64
}

func NewExpectedSearchIterationsAndShiftsAccumulator(insertFrac float64) *ExpectedSearchIterationsAndShiftsAccumulator {
	return &ExpectedSearchIterationsAndShiftsAccumulator{
		shifts:     ExpectedShiftsAccumulator{runEnd: -1},
		insertFrac: insertFrac,
	}
}

func (e *ExpectedSearchIterationsAndShiftsAccumulator) Accumulate(actualPosition int, expectedPosition int) {
	e.search.Accumulate(actualPosition, expectedPosition)
	e.shifts.Accumulate(actualPosition, expectedPosition)
}

func (e *ExpectedSearchIterationsAndShiftsAccumulator) GetExpectedNumSearchIterations() float64 {
	return e.search.GetStats()
}

func (e *ExpectedSearchIterationsAndShiftsAccumulator) GetExpectedNumShifts() float64 {
	return e.shifts.GetStats()
}

func (e *ExpectedSearchIterationsAndShiftsAccumulator) GetStats() float64 {
	return Cost(e.GetExpectedNumSearchIterations(), e.GetExpectedNumShifts(), e.insertFrac)
}

func (e *ExpectedSearchIterationsAndShiftsAccumulator) Reset() {
	e.search.Reset()
	e.shifts.Reset()
}
