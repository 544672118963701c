package shared

import (
	"errors"
	"fmt"
)

var NoGapFoundError = errors.New("no gap found")
var KeyNotFoundError = errors.New("key not found")
var CatastrophicCostInsertionError = errors.New("catastrophic cost insertion")
var SignificantCostDeviationInsertionError = errors.New("significant cost insertion")
var MaxCapacityInsertionError = errors.New("max capacity insertion")

// AllocationError is returned when growing the index would exceed its memory budget.
// The index is left exactly as it was before the failing call.
var AllocationError = errors.New("allocation failure")
var UnsortedBulkLoadError = errors.New("bulk load input is not sorted by key")
var AlreadyLoadedError = errors.New("index already bulk loaded")

// Harness errors
var ConfigError = errors.New("configuration error")
var ConstructionFailureError = errors.New("bulk construction failed")
var DatasetMissingError = errors.New("dataset missing")
var MalformedDatasetError = errors.New("malformed dataset")
var VerificationError = errors.New("index verification failed")

// InsertionFailure reports the position at which a user's insertion batch was
// abandoned.
type InsertionFailure struct {
	UserID   int
	Position int
	Err      error
}

func (e *InsertionFailure) Error() string {
	return fmt.Sprintf("insertion for user %d failed at position %d: %v", e.UserID, e.Position, e.Err)
}

func (e *InsertionFailure) Unwrap() error {
	return e.Err
}
