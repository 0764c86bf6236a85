package task

// Mutex is a lock usable from user threads.
type Mutex interface {
	Lock()
	Unlock()
}

type Semaphore interface {
	Up()
	Down()
}

// Condvar waits are paired with a Mutex that is released while blocked.
type Condvar interface {
	Signal()
	Wait(m Mutex)
}

// insert places v in the first vacant slot of table and returns its index.
func insert[T comparable](table *[]T, v T) int {
	var zero T
	for i, it := range *table {
		if it == zero {
			(*table)[i] = v
			return i
		}
	}
	*table = append(*table, v)
	return len(*table) - 1
}

func lookup[T any](table []T, id int) (T, bool) {
	var zero T
	if id < 0 || id >= len(table) {
		return zero, false
	}
	return table[id], true
}

func (p *Process) AddMutex(m Mutex) int {
	inner := p.inner.Borrow()
	defer p.inner.Release()
	return insert(&inner.mutexes, m)
}

func (p *Process) Mutex(id int) (Mutex, bool) {
	inner := p.inner.Borrow()
	defer p.inner.Release()
	m, ok := lookup(inner.mutexes, id)
	return m, ok && m != nil
}

func (p *Process) AddSemaphore(s Semaphore) int {
	inner := p.inner.Borrow()
	defer p.inner.Release()
	return insert(&inner.semaphores, s)
}

func (p *Process) Semaphore(id int) (Semaphore, bool) {
	inner := p.inner.Borrow()
	defer p.inner.Release()
	s, ok := lookup(inner.semaphores, id)
	return s, ok && s != nil
}

func (p *Process) AddCondvar(c Condvar) int {
	inner := p.inner.Borrow()
	defer p.inner.Release()
	return insert(&inner.condvars, c)
}

func (p *Process) Condvar(id int) (Condvar, bool) {
	inner := p.inner.Borrow()
	defer p.inner.Release()
	c, ok := lookup(inner.condvars, id)
	return c, ok && c != nil
}
