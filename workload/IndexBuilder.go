package workload

import (
	"cmp"
	"fmt"
	"slices"

	"alex_bench/index"
	"alex_bench/shared"
)

// BuildIndex sorts pairs by key in place and bulk loads them into a new index.
func BuildIndex(pairs []shared.KeyValuePair, opts ...index.Option) (*index.Index, error) {
	slices.SortFunc(pairs, func(a, b shared.KeyValuePair) int {
		return cmp.Compare(a.Key, b.Key)
	})

	alex := index.NewIndex(opts...)
	if err := alex.BulkLoad(pairs); err != nil {
		return nil, fmt.Errorf("%w: %d keys: %w", shared.ConstructionFailureError, len(pairs), err)
	}
	return alex, nil
}
