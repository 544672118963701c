package index

import (
	"alex_bench/node"
	"alex_bench/shared"
)

// Option configures an Index at construction.
type Option func(*Index)

// WithExpectedInsertFrac sets the fraction of operations expected to be inserts
// (0 read-only, 1 write-only). It drives the cost models used at bulk load.
func WithExpectedInsertFrac(insertFrac float64) Option {
	return func(self *Index) {
		self.expectedInsertFrac = min(max(insertFrac, 0), 1)
	}
}

// WithMaxNodeSize bounds data node and model node sizes in bytes.
func WithMaxNodeSize(bytes int) Option {
	return func(self *Index) {
		if bytes <= 0 {
			return
		}
		self.maxNodeSize = bytes
		self.maxFanout = max(bytes/8, 2)
		self.maxDataNodeSlots = max(bytes/shared.BlockSize, 2)
	}
}

// WithMemoryBudget caps the bytes held by data node slots. An allocation that
// would exceed it fails with shared.AllocationError. Zero means unlimited.
func WithMemoryBudget(bytes int64) Option {
	return func(self *Index) {
		if bytes > 0 {
			self.allocator = node.NewAllocator(bytes)
		}
	}
}
