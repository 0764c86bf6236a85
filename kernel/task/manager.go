package task

import "kestrel/kernel/cell"

type queueKind uint8

const (
	queueNone queueKind = iota
	queueReady
	queueWait
)

// fifo is an owning queue of tasks that records membership on each task,
// so that a task can never sit in two queues at once.
type fifo struct {
	items []*Task
	kind  queueKind
}

func (q *fifo) push(t *Task) {
	inner := t.inner.Borrow()
	if inner.queued != queueNone {
		t.inner.Release()
		panic("task: task already queued")
	}
	inner.queued = q.kind
	t.inner.Release()
	q.items = append(q.items, t)
}

func (q *fifo) pop() *Task {
	if len(q.items) == 0 {
		return nil
	}
	t := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	t.inner.With(func(inner *taskInner) { inner.queued = queueNone })
	return t
}

func (q *fifo) remove(t *Task) bool {
	for i, it := range q.items {
		if it != t {
			continue
		}
		q.items = append(q.items[:i], q.items[i+1:]...)
		t.inner.With(func(inner *taskInner) { inner.queued = queueNone })
		return true
	}
	return false
}

// taskManager is the ready queue.
type taskManager struct {
	ready fifo
}

func (k *Kernel) addTask(t *Task) {
	m := k.manager.Borrow()
	defer k.manager.Release()
	m.ready.push(t)
}

func (k *Kernel) fetchTask() *Task {
	m := k.manager.Borrow()
	defer k.manager.Release()
	return m.ready.pop()
}

func (k *Kernel) removeTask(t *Task) bool {
	m := k.manager.Borrow()
	defer k.manager.Release()
	return m.ready.remove(t)
}

// ReadyLen reports the length of the ready queue.
func (k *Kernel) ReadyLen() int {
	m := k.manager.Borrow()
	defer k.manager.Release()
	return len(m.ready.items)
}

// WaitQueue is a FIFO of blocked tasks owned by a synchronization primitive.
type WaitQueue struct {
	q cell.Cell[fifo]
}

func NewWaitQueue() *WaitQueue {
	w := &WaitQueue{}
	w.q.With(func(q *fifo) { q.kind = queueWait })
	return w
}

func (w *WaitQueue) push(t *Task) {
	q := w.q.Borrow()
	defer w.q.Release()
	q.push(t)
}

// Pop removes the oldest waiter that is still alive. Waiters whose process
// exited while they were blocked are dropped.
func (w *WaitQueue) Pop() *Task {
	q := w.q.Borrow()
	defer w.q.Release()
	for {
		t := q.pop()
		if t == nil || t.Status() != StatusZombie {
			return t
		}
	}
}

func (w *WaitQueue) Len() int {
	q := w.q.Borrow()
	defer w.q.Release()
	return len(q.items)
}
