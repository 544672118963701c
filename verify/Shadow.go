package verify

import (
	"fmt"

	"github.com/google/btree"

	"alex_bench/shared"
)

type entry struct {
	key   shared.KeyType
	count int
}

func (e entry) Less(than btree.Item) bool {
	return e.key < than.(entry).key
}

// Ordered is anything able to scan its keys in ascending order.
type Ordered interface {
	ForEach(fn func(key shared.KeyType, payload shared.PayloadType) bool)
}

// Shadow is an ordered multiset of every key handed to an index.
type Shadow struct {
	tree *btree.BTree
	size int
}

func NewShadow(degree int) *Shadow {
	return &Shadow{tree: btree.New(degree)}
}

func (s *Shadow) Add(key shared.KeyType) {
	current := entry{key: key}
	if found := s.tree.Get(current); found != nil {
		current = found.(entry)
	}
	current.count++
	s.tree.ReplaceOrInsert(current)
	s.size++
}

func (s *Shadow) AddAll(pairs []shared.KeyValuePair) {
	for _, pair := range pairs {
		s.Add(pair.Key)
	}
}

func (s *Shadow) Len() int {
	return s.size
}

// Keys returns every key in ascending order, duplicates repeated.
func (s *Shadow) Keys() []shared.KeyType {
	keys := make([]shared.KeyType, 0, s.size)
	s.tree.Ascend(func(item btree.Item) bool {
		e := item.(entry)
		for i := 0; i < e.count; i++ {
			keys = append(keys, e.key)
		}
		return true
	})
	return keys
}

// Check scans idx in key order and fails at the first key that differs from
// the shadow.
func (s *Shadow) Check(idx Ordered) error {
	expected := s.Keys()
	var mismatch error
	position := 0
	idx.ForEach(func(key shared.KeyType, _ shared.PayloadType) bool {
		if position >= len(expected) {
			mismatch = fmt.Errorf("position %d: unexpected key %d after the last expected key", position, key)
			return false
		}
		if key != expected[position] {
			mismatch = fmt.Errorf("position %d: found key %d, expected %d", position, key, expected[position])
			return false
		}
		position++
		return true
	})
	if mismatch != nil {
		return mismatch
	}
	if position != len(expected) {
		return fmt.Errorf("index holds %d keys, expected %d", position, len(expected))
	}
	return nil
}
