package syscall

import (
	"kestrel/kernel/ksync"
	"kestrel/kernel/task"
)

func (d *Dispatcher) mutexCreate(t *task.Task, a [6]uint64) int64 {
	var m task.Mutex
	if a[0] != 0 {
		m = ksync.NewMutexBlocking(d.k)
	} else {
		m = ksync.NewMutexSpin(d.k)
	}
	return int64(t.Process().AddMutex(m))
}

func (d *Dispatcher) mutexLock(t *task.Task, a [6]uint64) int64 {
	m, ok := t.Process().Mutex(int(a[0]))
	if !ok {
		return -EINVAL
	}
	m.Lock()
	return 0
}

func (d *Dispatcher) mutexUnlock(t *task.Task, a [6]uint64) int64 {
	m, ok := t.Process().Mutex(int(a[0]))
	if !ok {
		return -EINVAL
	}
	if l, ok := m.(interface{ Locked() bool }); ok && !l.Locked() {
		return -EPERM
	}
	m.Unlock()
	return 0
}

func (d *Dispatcher) semaphoreCreate(t *task.Task, a [6]uint64) int64 {
	if int64(a[0]) < 0 {
		return -EINVAL
	}
	return int64(t.Process().AddSemaphore(ksync.NewSemaphore(d.k, int(a[0]))))
}

func (d *Dispatcher) semaphoreUp(t *task.Task, a [6]uint64) int64 {
	s, ok := t.Process().Semaphore(int(a[0]))
	if !ok {
		return -EINVAL
	}
	s.Up()
	return 0
}

func (d *Dispatcher) semaphoreDown(t *task.Task, a [6]uint64) int64 {
	s, ok := t.Process().Semaphore(int(a[0]))
	if !ok {
		return -EINVAL
	}
	s.Down()
	return 0
}

func (d *Dispatcher) condvarCreate(t *task.Task, a [6]uint64) int64 {
	return int64(t.Process().AddCondvar(ksync.NewCondvar(d.k)))
}

func (d *Dispatcher) condvarSignal(t *task.Task, a [6]uint64) int64 {
	c, ok := t.Process().Condvar(int(a[0]))
	if !ok {
		return -EINVAL
	}
	c.Signal()
	return 0
}

// condvarWait(cv, mutex) releases the mutex while blocked.
func (d *Dispatcher) condvarWait(t *task.Task, a [6]uint64) int64 {
	p := t.Process()
	c, ok := p.Condvar(int(a[0]))
	if !ok {
		return -EINVAL
	}
	m, ok := p.Mutex(int(a[1]))
	if !ok {
		return -EINVAL
	}
	c.Wait(m)
	return 0
}
