package task

import (
	"fmt"
	"runtime/debug"

	"kestrel/kernel/halt"
)

// processor holds the running task and the idle flow.
type processor struct {
	current *Task
	idleCx  TaskContext
}

func (k *Kernel) setCurrent(t *Task) {
	p := k.processor.Borrow()
	defer k.processor.Release()
	if p.current != nil {
		panic(fmt.Sprintf("task: dispatch of tid %d while tid %d is current", t.tid, p.current.tid))
	}
	p.current = t
}

func (k *Kernel) takeCurrent() *Task {
	p := k.processor.Borrow()
	defer k.processor.Release()
	t := p.current
	p.current = nil
	if t == nil {
		panic("task: no current task")
	}
	return t
}

// CurrentTask returns the running task, or nil in the idle flow.
func (k *Kernel) CurrentTask() *Task {
	p := k.processor.Borrow()
	defer k.processor.Release()
	return p.current
}

// CurrentProcess returns the process of the running task.
func (k *Kernel) CurrentProcess() *Process {
	if t := k.CurrentTask(); t != nil {
		return t.process
	}
	return nil
}

// checkNoBorrow panics if a control block is still borrowed at a switch.
func (k *Kernel) checkNoBorrow(t *Task) {
	switch {
	case t.inner.Borrowed():
		panic(fmt.Sprintf("task: tid %d borrowed across a context switch", t.tid))
	case t.process.inner.Borrowed():
		panic(fmt.Sprintf("task: pid %d borrowed across a context switch", t.process.Pid()))
	case k.manager.Borrowed(), k.res.Borrowed():
		panic("task: kernel state borrowed across a context switch")
	}
}

// schedule hands the processor back to the idle flow and returns when
// the calling task is dispatched again.
func (k *Kernel) schedule(t *Task, cx *TaskContext) {
	k.checkNoBorrow(t)
	switchTo(cx, k.idle)
}

// SuspendCurrentAndRunNext puts the running task at the back of the ready
// queue and runs the next one.
func (k *Kernel) SuspendCurrentAndRunNext() {
	t := k.takeCurrent()
	inner := t.inner.Borrow()
	inner.status = StatusReady
	cx := &inner.cx
	t.inner.Release()
	k.addTask(t)
	k.schedule(t, cx)
}

// BlockCurrentAndRunNext parks the running task on q. Whoever pops it from
// q must hand it to WakeupTask.
func (k *Kernel) BlockCurrentAndRunNext(q *WaitQueue) {
	t := k.takeCurrent()
	inner := t.inner.Borrow()
	inner.status = StatusBlocked
	cx := &inner.cx
	t.inner.Release()
	q.push(t)
	k.schedule(t, cx)
}

// WakeupTask makes a blocked task ready again.
func (k *Kernel) WakeupTask(t *Task) {
	inner := t.inner.Borrow()
	if inner.status != StatusBlocked {
		st := inner.status
		t.inner.Release()
		panic(fmt.Sprintf("task: wakeup of tid %d in state %v", t.tid, st))
	}
	inner.status = StatusReady
	t.inner.Release()
	k.addTask(t)
}

// ExitCurrentAndRunNext ends the running thread with code. Exiting the main
// thread exits the whole process; exiting the root process halts the kernel.
// It does not return.
func (k *Kernel) ExitCurrentAndRunNext(code int32) {
	t := k.takeCurrent()
	p := t.process

	inner := t.inner.Borrow()
	inner.status = StatusZombie
	inner.exited = true
	inner.exitCode = code
	t.inner.Release()

	if t.tid != 0 {
		pinner := p.inner.Borrow()
		t.inner.With(func(inner *taskInner) { inner.res.deallocUserRes(pinner.space) })
		p.inner.Release()
		k.checkNoBorrow(t)
		exitTo(k.idle)
		return
	}

	if p == k.Root() {
		k.log.Infof("Idle process exit with exit_code %d ...", code)
		k.mu.Lock()
		k.rootExit = &code
		k.mu.Unlock()
		k.halt.Trigger(halt.Info{PID: p.Pid(), TID: t.tid, Value: fmt.Sprintf("root process exited with code %d", code), Stack: []byte{}})
		exitTo(k.idle)
		return
	}

	k.exitProcess(p, t, code)
	k.log.Debugf("process %d exited with code %d", p.Pid(), code)
	k.checkNoBorrow(t)
	exitTo(k.idle)
}

// exitProcess tears down p after its main thread main exited with code.
func (k *Kernel) exitProcess(p *Process, main *Task, code int32) {
	root := k.Root()
	pinner := p.inner.Borrow()
	pinner.zombie = true
	pinner.exitCode = code

	if len(pinner.children) > 0 {
		rinner := root.inner.Borrow()
		for _, child := range pinner.children {
			child.inner.With(func(c *processInner) { c.parent = root })
			rinner.children = append(rinner.children, child)
		}
		root.inner.Release()
		pinner.children = nil
	}

	for _, t := range pinner.tasks {
		if t == nil {
			continue
		}
		if t != main {
			k.removeTask(t)
		}
		t.inner.With(func(ti *taskInner) {
			if t != main {
				ti.status = StatusZombie
				ti.cx.terminate()
			}
			ti.res.deallocUserRes(pinner.space)
		})
	}
	pinner.mutexes, pinner.semaphores, pinner.condvars = nil, nil, nil
	fds := pinner.fds
	pinner.space.RecycleDataPages()
	p.inner.Release()

	// Closing a pipe end may wake a peer; no control block is borrowed here.
	fds.Clear()
	k.removeProcess(p)
}

// taskMain is the body of every task goroutine.
func (k *Kernel) taskMain(t *Task) {
	defer func() {
		if r := recover(); r != nil {
			k.halt.Trigger(halt.Info{PID: t.process.Pid(), TID: t.tid, Value: r, Stack: debug.Stack()})
			k.log.Errorf("kernel panic in pid %d tid %d: %v", t.process.Pid(), t.tid, r)
			k.idle.resume()
		}
	}()
	k.opts.UserEntry(t)
	k.ExitCurrentAndRunNext(0)
}
