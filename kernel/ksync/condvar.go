package ksync

import "kestrel/kernel/task"

type Condvar struct {
	k    *task.Kernel
	wait *task.WaitQueue
}

func NewCondvar(k *task.Kernel) *Condvar {
	return &Condvar{k: k, wait: task.NewWaitQueue()}
}

// Signal wakes the oldest waiter, if any.
func (c *Condvar) Signal() {
	if t := c.wait.Pop(); t != nil {
		c.k.WakeupTask(t)
	}
}

func (c *Condvar) Broadcast() {
	for n := c.wait.Len(); n > 0; n-- {
		c.Signal()
	}
}

// Wait releases m, blocks until signalled and reacquires m.
func (c *Condvar) Wait(m task.Mutex) {
	m.Unlock()
	c.k.BlockCurrentAndRunNext(c.wait)
	m.Lock()
}

var (
	_ task.Mutex     = (*MutexSpin)(nil)
	_ task.Mutex     = (*MutexBlocking)(nil)
	_ task.Semaphore = (*Semaphore)(nil)
	_ task.Condvar   = (*Condvar)(nil)
)
