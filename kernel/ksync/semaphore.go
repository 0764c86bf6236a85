package ksync

import (
	"kestrel/kernel/cell"
	"kestrel/kernel/task"
)

// Semaphore is a counting semaphore. A negative count is the number of
// blocked downs.
type Semaphore struct {
	k     *task.Kernel
	count cell.Cell[int]
	wait  *task.WaitQueue
}

func NewSemaphore(k *task.Kernel, count int) *Semaphore {
	s := &Semaphore{k: k, wait: task.NewWaitQueue()}
	s.count.With(func(c *int) { *c = count })
	return s
}

func (s *Semaphore) Up() {
	c := s.count.Borrow()
	defer s.count.Release()
	*c++
	if *c <= 0 {
		if t := s.wait.Pop(); t != nil {
			s.k.WakeupTask(t)
		}
	}
}

func (s *Semaphore) Down() {
	c := s.count.Borrow()
	*c--
	block := *c < 0
	s.count.Release()
	if block {
		s.k.BlockCurrentAndRunNext(s.wait)
	}
}

// Count returns the current count.
func (s *Semaphore) Count() int {
	c := s.count.Borrow()
	defer s.count.Release()
	return *c
}
