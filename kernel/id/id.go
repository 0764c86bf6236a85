// Package id hands out small integer identifiers and reuses released ones.
package id

import "fmt"

// RecycleAllocator issues process ids, kernel-stack slots and thread ids.
//
// Released ids are handed out again before any never-used id. An allocator is
// not safe for concurrent use; callers serialize access.
type RecycleAllocator struct {
	current  int
	recycled []int
	free     map[int]struct{}
}

// NewRecycleAllocator returns an allocator whose first id is 0.
func NewRecycleAllocator() *RecycleAllocator {
	return &RecycleAllocator{free: make(map[int]struct{})}
}

// Alloc returns a recycled id if one exists, else the next never-used id.
func (a *RecycleAllocator) Alloc() int {
	if n := len(a.recycled); n > 0 {
		id := a.recycled[n-1]
		a.recycled = a.recycled[:n-1]
		delete(a.free, id)
		return id
	}
	id := a.current
	a.current++
	return id
}

// TryAlloc is Alloc bounded by limit: it fails instead of minting an id >= limit.
func (a *RecycleAllocator) TryAlloc(limit int) (int, bool) {
	if len(a.recycled) == 0 && a.current >= limit {
		return 0, false
	}
	return a.Alloc(), true
}

// Dealloc returns id to the allocator.
//
// Releasing an id that was never issued, or is already free, panics.
func (a *RecycleAllocator) Dealloc(id int) {
	if id < 0 || id >= a.current {
		panic(fmt.Sprintf("id %d has not been allocated", id))
	}
	if _, ok := a.free[id]; ok {
		panic(fmt.Sprintf("id %d has been deallocated", id))
	}
	a.free[id] = struct{}{}
	a.recycled = append(a.recycled, id)
}

// InUse reports the number of live ids.
func (a *RecycleAllocator) InUse() int {
	return a.current - len(a.recycled)
}
