package node

import (
	"fmt"

	"golang.org/x/sync/semaphore"

	"alex_bench/shared"
)

// Allocator accounts for the key/payload slots held by data nodes.
// A nil *Allocator, or one with a zero budget, never fails.
type Allocator struct {
	budget int64
	used   int64
	memSem *semaphore.Weighted
}

func NewAllocator(budgetBytes int64) *Allocator {
	a := &Allocator{budget: budgetBytes}
	if budgetBytes > 0 {
		a.memSem = semaphore.NewWeighted(budgetBytes)
	}
	return a
}

func slotBytes(slots int) int64 {
	return int64(slots) * int64(shared.BlockSize)
}

// Reserve claims room for slots or fails with shared.AllocationError.
func (a *Allocator) Reserve(slots int) error {
	if a == nil {
		return nil
	}
	need := slotBytes(slots)
	if need <= 0 {
		return nil
	}
	if a.memSem != nil && !a.memSem.TryAcquire(need) {
		return fmt.Errorf("%w: need %d bytes, %d of %d in use", shared.AllocationError, need, a.used, a.budget)
	}
	a.used += need
	return nil
}

func (a *Allocator) Release(slots int) {
	if a == nil {
		return
	}
	freed := min(slotBytes(slots), a.used)
	if freed <= 0 {
		return
	}
	a.used -= freed
	if a.memSem != nil {
		a.memSem.Release(freed)
	}
}

func (a *Allocator) Used() int64 {
	if a == nil {
		return 0
	}
	return a.used
}

func (a *Allocator) Budget() int64 {
	if a == nil {
		return 0
	}
	return a.budget
}
