// Package cell provides single-owner mutable cells for kernel control blocks.
//
// A Cell is not a lock that waits: borrowing a cell that is already borrowed
// is a kernel bug and panics. Borrows are short critical sections and must be
// released before any context switch.
package cell

import "sync"

type Cell[T any] struct {
	mu sync.Mutex
	v  T
}

// New returns a cell holding v.
func New[T any](v T) *Cell[T] {
	return &Cell[T]{v: v}
}

// Borrow grants exclusive access to the value until Release.
func (c *Cell[T]) Borrow() *T {
	if !c.mu.TryLock() {
		panic("cell: already borrowed")
	}
	return &c.v
}

// Release ends the current borrow.
func (c *Cell[T]) Release() {
	c.mu.Unlock()
}

// With runs fn while the cell is borrowed.
func (c *Cell[T]) With(fn func(v *T)) {
	v := c.Borrow()
	defer c.Release()
	fn(v)
}

// Borrowed reports whether the cell is currently borrowed.
func (c *Cell[T]) Borrowed() bool {
	if c.mu.TryLock() {
		c.mu.Unlock()
		return false
	}
	return true
}
