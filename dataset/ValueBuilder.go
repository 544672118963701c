package dataset

import "alex_bench/shared"

// BuildValues pairs every key with the id of the user owning it, keeping the
// source order and any duplicates.
func BuildValues(keys []shared.KeyType, userID int) []shared.KeyValuePair {
	pairs := make([]shared.KeyValuePair, len(keys))
	for i, key := range keys {
		pairs[i] = shared.KeyValuePair{Key: key, Payload: shared.PayloadType(userID)}
	}
	return pairs
}
