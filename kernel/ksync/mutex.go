// Package ksync implements the user-visible synchronization primitives on
// top of the scheduler's block and wakeup operations.
package ksync

import (
	"kestrel/kernel/cell"
	"kestrel/kernel/task"
)

// MutexSpin yields until the lock bit is clear. It is not reentrant.
type MutexSpin struct {
	k      *task.Kernel
	locked cell.Cell[bool]
}

func NewMutexSpin(k *task.Kernel) *MutexSpin { return &MutexSpin{k: k} }

func (m *MutexSpin) Lock() {
	for {
		locked := m.locked.Borrow()
		if !*locked {
			*locked = true
			m.locked.Release()
			return
		}
		m.locked.Release()
		m.k.SuspendCurrentAndRunNext()
	}
}

func (m *MutexSpin) Unlock() {
	m.locked.With(func(locked *bool) { *locked = false })
}

// MutexBlocking parks contending threads in FIFO order and hands the lock
// directly to the oldest waiter on unlock.
type MutexBlocking struct {
	k      *task.Kernel
	locked cell.Cell[bool]
	wait   *task.WaitQueue
}

func NewMutexBlocking(k *task.Kernel) *MutexBlocking {
	return &MutexBlocking{k: k, wait: task.NewWaitQueue()}
}

func (m *MutexBlocking) Lock() {
	locked := m.locked.Borrow()
	if *locked {
		m.locked.Release()
		m.k.BlockCurrentAndRunNext(m.wait)
		return
	}
	*locked = true
	m.locked.Release()
}

func (m *MutexBlocking) Unlock() {
	locked := m.locked.Borrow()
	defer m.locked.Release()
	if !*locked {
		panic("ksync: unlock of unlocked mutex")
	}
	if t := m.wait.Pop(); t != nil {
		m.k.WakeupTask(t)
		return
	}
	*locked = false
}

func (m *MutexSpin) Locked() bool {
	locked := m.locked.Borrow()
	defer m.locked.Release()
	return *locked
}

func (m *MutexBlocking) Locked() bool {
	locked := m.locked.Borrow()
	defer m.locked.Release()
	return *locked
}
