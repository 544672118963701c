package workload

import (
	"time"

	"alex_bench/dataset"
	"alex_bench/shared"
)

// Inserter is the part of the index a user phase mutates.
type Inserter interface {
	Insert(key shared.KeyType, payload shared.PayloadType) error
}

type InsertionResult struct {
	UserID   int
	Inserted int
	Elapsed  time.Duration
}

// InsertKeysForUser inserts the keys of ds one at a time in file order, each
// paired with the user id. The first failing insert abandons the rest of the
// batch and is reported as a *shared.InsertionFailure next to the partial result.
func InsertKeysForUser(target Inserter, ds dataset.Dataset) (InsertionResult, error) {
	pairs := dataset.BuildValues(ds.Keys, ds.UserID)
	result := InsertionResult{UserID: ds.UserID}

	start := time.Now()
	for i, pair := range pairs {
		if err := target.Insert(pair.Key, pair.Payload); err != nil {
			result.Elapsed = time.Since(start)
			result.Inserted = i
			return result, &shared.InsertionFailure{UserID: ds.UserID, Position: i, Err: err}
		}
	}
	result.Elapsed = time.Since(start)
	result.Inserted = len(pairs)
	return result, nil
}
