package task

import (
	"encoding/binary"
	"fmt"
	"maps"
	"sync/atomic"

	"kestrel/kernel/cell"
	"kestrel/kernel/exe"
	"kestrel/kernel/fs"
	"kestrel/kernel/id"
	"kestrel/kernel/mm"
	"kestrel/kernel/trap"
)

// Process is a process control block.
//
// Owners hold counted references: the pid table while the process is alive,
// and the parent's children list until the parent reaps it (the root process
// is owned by the kernel instead). The last release tears the process down.
type Process struct {
	k         *Kernel
	pid       PidHandle
	refs      atomic.Int32
	destroyed atomic.Bool
	inner     cell.Cell[processInner]
}

type processInner struct {
	zombie   bool
	exitCode int32
	space    *mm.MemorySet
	parent   *Process // non-owning
	children []*Process
	fds      *fs.FdTable
	cwd      *fs.WorkDir
	signals  SignalFlags
	tasks    []*Task
	tids     *id.RecycleAllocator
	heapBase uint64
	brk      uint64
	mmaps    map[mm.VPN]bool // start pages of Mmap areas

	mutexes    []Mutex
	semaphores []Semaphore
	condvars   []Condvar
}

func (p *Process) Pid() int { return p.pid.Value() }

func (p *Process) get() *Process {
	p.refs.Add(1)
	return p
}

func (p *Process) put() {
	switch n := p.refs.Add(-1); {
	case n == 0:
		p.destroy()
	case n < 0:
		panic(fmt.Sprintf("task: process %d released too many times", p.Pid()))
	}
}

// Refs reports the number of owners.
func (p *Process) Refs() int { return int(p.refs.Load()) }

func (p *Process) destroy() {
	p.destroyed.Store(true)
	inner := p.inner.Borrow()
	for _, t := range inner.tasks {
		if t != nil {
			t.release(inner)
		}
	}
	inner.tasks = nil
	inner.space.RecycleDataPages()
	p.inner.Release()
	p.k.releasePid(p.pid)
}

func (p *Process) IsZombie() bool {
	inner := p.inner.Borrow()
	defer p.inner.Release()
	return inner.zombie
}

// Parent returns the parent, or nil for the root or once the parent is gone.
func (p *Process) Parent() *Process {
	inner := p.inner.Borrow()
	parent := inner.parent
	p.inner.Release()
	if parent == nil || parent.destroyed.Load() {
		return nil
	}
	return parent
}

func (p *Process) Children() []*Process {
	inner := p.inner.Borrow()
	defer p.inner.Release()
	return append([]*Process(nil), inner.children...)
}

func (p *Process) Space() *mm.MemorySet {
	inner := p.inner.Borrow()
	defer p.inner.Release()
	return inner.space
}

func (p *Process) Fds() *fs.FdTable {
	inner := p.inner.Borrow()
	defer p.inner.Release()
	return inner.fds
}

func (p *Process) Cwd() *fs.WorkDir {
	inner := p.inner.Borrow()
	defer p.inner.Release()
	return inner.cwd
}

func (p *Process) Signals() SignalFlags {
	inner := p.inner.Borrow()
	defer p.inner.Release()
	return inner.signals
}

// Task returns the thread with the given tid.
func (p *Process) Task(tid int) *Task {
	inner := p.inner.Borrow()
	defer p.inner.Release()
	if tid < 0 || tid >= len(inner.tasks) {
		return nil
	}
	return inner.tasks[tid]
}

// ThreadCount counts occupied thread slots, exited but unreaped ones included.
func (p *Process) ThreadCount() int {
	inner := p.inner.Borrow()
	defer p.inner.Release()
	return inner.threadCount()
}

func (inner *processInner) threadCount() int {
	n := 0
	for _, t := range inner.tasks {
		if t != nil {
			n++
		}
	}
	return n
}

func (inner *processInner) onlyTask() *Task {
	for _, t := range inner.tasks {
		if t != nil {
			return t
		}
	}
	return nil
}

func (k *Kernel) kernelToken() uint64 {
	r := k.res.Borrow()
	defer k.res.Release()
	return r.space.Token()
}

// pushArgs copies args onto the user stack below sp: the strings first,
// then a NULL-terminated argv array. It returns the new sp, which is the
// argv base.
func pushArgs(space *mm.MemorySet, sp uint64, args []string) (uint64, error) {
	ptrs := make([]uint64, len(args)+1)
	for i, arg := range args {
		sp -= uint64(len(arg) + 1)
		b := append([]byte(arg), 0)
		if err := space.WriteBytes(sp, b); err != nil {
			return 0, err
		}
		ptrs[i] = sp
	}
	sp &^= 7
	sp -= uint64(len(ptrs)) * 8
	argv := make([]byte, len(ptrs)*8)
	for i, ptr := range ptrs {
		binary.LittleEndian.PutUint64(argv[i*8:], ptr)
	}
	if err := space.WriteBytes(sp, argv); err != nil {
		return 0, err
	}
	return sp, nil
}

// NewProcess creates a process from an executable image with one ready
// thread. The first process created is the root process.
func (k *Kernel) NewProcess(img *exe.Image, args []string) (*Process, error) {
	space, ustackBase, entry, err := mm.FromImage(k.frames, img)
	if err != nil {
		return nil, err
	}
	if err := space.InsertFramedArea(mm.HeapBase, mm.HeapBase, mm.PermR|mm.PermW|mm.PermU); err != nil {
		space.RecycleDataPages()
		return nil, err
	}
	stdin, stdout, stderr := k.stdio()
	p := &Process{k: k, pid: k.allocPid()}
	pinner := p.inner.Borrow()
	*pinner = processInner{
		space:    space,
		fds:      fs.NewFdTable(stdin, stdout, stderr),
		cwd:      fs.NewWorkDir("/"),
		tids:     id.NewRecycleAllocator(),
		heapBase: mm.HeapBase,
		brk:      mm.HeapBase,
	}
	t, err := k.newTask(p, pinner, ustackBase, true)
	if err != nil {
		space.RecycleDataPages()
		p.inner.Release()
		k.releasePid(p.pid)
		return nil, err
	}
	res := t.UserRes()
	sp, err := pushArgs(space, res.UstackTop(), args)
	if err != nil {
		pinner.tasks = nil
		t.release(pinner)
		space.RecycleDataPages()
		p.inner.Release()
		k.releasePid(p.pid)
		return nil, fmt.Errorf("task: push args: %w", err)
	}
	p.inner.Release()

	cx := trap.AppInitContext(entry, sp, k.kernelToken(), t.kstack.Top(), trap.HandlerAddr)
	cx.X[10] = uint64(len(args))
	cx.X[11] = sp
	t.SetTrapContext(cx)

	k.insertProcess(p)
	k.mu.Lock()
	if k.root == nil {
		k.root = p.get()
	}
	k.mu.Unlock()
	k.addTask(t)
	k.log.Debugf("created process %d", p.Pid())
	return p, nil
}

// Fork duplicates a single-threaded process. The child's thread resumes
// with a copy of the parent's trap context; the caller sets its return value.
func (p *Process) Fork() (*Process, error) {
	k := p.k
	pinner := p.inner.Borrow()
	if pinner.threadCount() != 1 {
		p.inner.Release()
		return nil, ErrMultiThreaded
	}
	space, err := mm.FromExistedUser(pinner.space)
	if err != nil {
		p.inner.Release()
		return nil, err
	}
	parentRes := pinner.onlyTask().UserRes()

	child := &Process{k: k, pid: k.allocPid()}
	cinner := child.inner.Borrow()
	*cinner = processInner{
		space:    space,
		parent:   p,
		fds:      pinner.fds.Fork(),
		cwd:      pinner.cwd.Clone(),
		tids:     id.NewRecycleAllocator(),
		heapBase: pinner.heapBase,
		brk:      pinner.brk,
		mmaps:    maps.Clone(pinner.mmaps),
	}
	// The only thread of a process is its main thread, tid 0, so the
	// child's fresh allocator hands out the tid the copied pages belong to.
	t, err := k.newTask(child, cinner, parentRes.UstackBase(), false)
	if err != nil {
		cinner.fds.Clear()
		child.inner.Release()
		p.inner.Release()
		space.RecycleDataPages()
		k.releasePid(child.pid)
		return nil, err
	}
	child.inner.Release()
	pinner.children = append(pinner.children, child.get())
	p.inner.Release()

	cx := t.TrapContext()
	cx.KernelSP = t.kstack.Top()
	t.SetTrapContext(cx)

	k.insertProcess(child)
	k.addTask(t)
	return child, nil
}

// Exec replaces the address space of a single-threaded process with img and
// restarts its thread at the image entry with args on the stack. It returns argc.
func (p *Process) Exec(img *exe.Image, args []string) (int, error) {
	k := p.k
	pinner := p.inner.Borrow()
	if pinner.threadCount() != 1 {
		p.inner.Release()
		return 0, ErrMultiThreaded
	}
	space, ustackBase, entry, err := mm.FromImage(k.frames, img)
	if err == nil {
		err = space.InsertFramedArea(mm.HeapBase, mm.HeapBase, mm.PermR|mm.PermW|mm.PermU)
	}
	if err != nil {
		if space != nil {
			space.RecycleDataPages()
		}
		p.inner.Release()
		return 0, err
	}
	// Everything is built in the new space first; the caller keeps its
	// image when any step fails.
	t := pinner.onlyTask()
	res := &TaskUserRes{tid: t.tid, ustackBase: ustackBase}
	var (
		ppn mm.PPN
		sp  uint64
	)
	if err = res.allocUserRes(space); err == nil {
		if ppn, err = res.trapCxPPN(space); err == nil {
			if sp, err = pushArgs(space, res.UstackTop(), args); err != nil {
				err = fmt.Errorf("task: push args: %w", err)
			}
		}
	}
	if err != nil {
		space.RecycleDataPages()
		p.inner.Release()
		return 0, err
	}

	old := pinner.space
	pinner.space = space
	pinner.heapBase, pinner.brk = mm.HeapBase, mm.HeapBase
	pinner.mmaps = nil
	tinner := t.inner.Borrow()
	tinner.res = res
	tinner.trapCxPPN = ppn
	t.inner.Release()
	old.RecycleDataPages()
	p.inner.Release()

	cx := trap.AppInitContext(entry, sp, k.kernelToken(), t.kstack.Top(), trap.HandlerAddr)
	cx.X[10] = uint64(len(args))
	cx.X[11] = sp
	t.SetTrapContext(cx)
	return len(args), nil
}

// Brk moves the program break to addr and returns it. Zero queries it.
func (p *Process) Brk(addr uint64) (uint64, error) {
	inner := p.inner.Borrow()
	defer p.inner.Release()
	if addr == 0 {
		return inner.brk, nil
	}
	if addr < inner.heapBase {
		return inner.brk, ErrBadBreak
	}
	if err := inner.space.ResizeArea(inner.heapBase, addr); err != nil {
		return inner.brk, err
	}
	inner.brk = addr
	return addr, nil
}
