package task

import (
	"kestrel/kernel/cell"
	"kestrel/kernel/mm"
	"kestrel/kernel/trap"
)

type Status uint8

const (
	StatusReady Status = iota
	StatusRunning
	StatusBlocked
	StatusZombie
)

func (s Status) String() string {
	switch s {
	case StatusReady:
		return "Ready"
	case StatusRunning:
		return "Running"
	case StatusBlocked:
		return "Blocked"
	case StatusZombie:
		return "Zombie"
	default:
		return "Unknown"
	}
}

// Task is a thread control block.
type Task struct {
	k       *Kernel
	process *Process // owner; a task never outlives it
	tid     int
	kstack  *KernelStack
	inner   cell.Cell[taskInner]
}

type taskInner struct {
	res       *TaskUserRes
	trapCxPPN mm.PPN
	cx        TaskContext
	status    Status
	queued    queueKind
	exited    bool
	exitCode  int32
}

func (t *Task) Process() *Process         { return t.process }
func (t *Task) Tid() int                  { return t.tid }
func (t *Task) KernelStack() *KernelStack { return t.kstack }

func (t *Task) Status() Status {
	inner := t.inner.Borrow()
	defer t.inner.Release()
	return inner.status
}

// ExitCode returns the code of an exited task.
func (t *Task) ExitCode() (int32, bool) {
	inner := t.inner.Borrow()
	defer t.inner.Release()
	return inner.exitCode, inner.exited
}

// UserRes returns a copy of the task's user resources.
func (t *Task) UserRes() TaskUserRes {
	inner := t.inner.Borrow()
	defer t.inner.Release()
	if inner.res == nil {
		return TaskUserRes{tid: t.tid}
	}
	return *inner.res
}

// TrapContext reads the task's saved user registers.
func (t *Task) TrapContext() trap.Context {
	inner := t.inner.Borrow()
	ppn := inner.trapCxPPN
	t.inner.Release()
	var page [trap.Size]byte
	if err := t.k.frames.ReadFrame(ppn, 0, page[:]); err != nil {
		panic(err)
	}
	return trap.Decode(page[:])
}

func (t *Task) SetTrapContext(cx trap.Context) {
	inner := t.inner.Borrow()
	ppn := inner.trapCxPPN
	t.inner.Release()
	var page [trap.Size]byte
	cx.Encode(page[:])
	if err := t.k.frames.WriteFrame(ppn, 0, page[:]); err != nil {
		panic(err)
	}
}

// newTask allocates a TCB for p. With allocUser it also maps a user stack
// and trap-context page; otherwise they must already exist in the space
// (a forked child inherits them).
func (k *Kernel) newTask(p *Process, pinner *processInner, ustackBase uint64, allocUser bool) (*Task, error) {
	tid := pinner.tids.Alloc()
	res := &TaskUserRes{tid: tid, ustackBase: ustackBase, mapped: !allocUser}
	if allocUser {
		if err := res.allocUserRes(pinner.space); err != nil {
			pinner.tids.Dealloc(tid)
			return nil, err
		}
	}
	ppn, err := res.trapCxPPN(pinner.space)
	if err != nil {
		res.deallocUserRes(pinner.space)
		pinner.tids.Dealloc(tid)
		return nil, err
	}
	kstack, err := k.allocKernelStack()
	if err != nil {
		res.deallocUserRes(pinner.space)
		pinner.tids.Dealloc(tid)
		return nil, err
	}
	t := &Task{k: k, process: p, tid: tid, kstack: kstack}
	inner := t.inner.Borrow()
	inner.res = res
	inner.trapCxPPN = ppn
	inner.cx = gotoTaskStart(func() { k.taskMain(t) })
	inner.status = StatusReady
	t.inner.Release()

	for len(pinner.tasks) <= tid {
		pinner.tasks = append(pinner.tasks, nil)
	}
	pinner.tasks[tid] = t
	return t, nil
}

// release frees the ids a reaped task still holds.
func (t *Task) release(pinner *processInner) {
	t.k.releaseKernelStack(t.kstack)
	pinner.tids.Dealloc(t.tid)
}
