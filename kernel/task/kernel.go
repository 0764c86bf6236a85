// Package task is the scheduling core: thread and process control blocks,
// the ready queue, the processor, and the process lifecycle built on them.
package task

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"kestrel/kernel/cell"
	"kestrel/kernel/fs"
	"kestrel/kernel/halt"
	"kestrel/kernel/id"
	"kestrel/kernel/klog"
	"kestrel/kernel/mm"
	"kestrel/kernel/timer"
)

var (
	ErrNoChild       = errors.New("task: no such child")
	ErrStillRunning  = errors.New("task: child still running")
	ErrMultiThreaded = errors.New("task: process has more than one thread")
	ErrNoProcess     = errors.New("task: no such process")
	ErrNoThread      = errors.New("task: no such thread")
	ErrWaitSelf      = errors.New("task: thread waits for itself")
	ErrBadSignal     = errors.New("task: invalid signal")
	ErrBadBreak      = errors.New("task: break below heap base")
	ErrBadMapping    = errors.New("task: invalid mapping")
)

// Options configure a Kernel.
type Options struct {
	// Frames is physical memory. Required.
	Frames *mm.FrameAllocator

	// UserEntry runs on a task's goroutine the first time it is dispatched.
	// If it returns, the task exits with code 0. Required.
	UserEntry func(t *Task)

	Clock   *timer.Clock
	Logger  *klog.Logger
	Console fs.Console
}

func (o Options) withDefaults() Options {
	if o.Clock == nil {
		o.Clock = timer.NewClock(0)
	}
	if o.Console == nil {
		o.Console = fs.NullConsole{}
	}
	return o
}

// kernelRes groups the kernel-wide allocators and tables.
type kernelRes struct {
	pids    *id.RecycleAllocator
	kstacks *id.RecycleAllocator
	space   *mm.MemorySet
	procs   map[int]*Process
}

// Kernel is the scheduler state of one single-hart machine.
type Kernel struct {
	opts   Options
	log    *klog.Logger
	frames *mm.FrameAllocator
	clock  *timer.Clock

	res       cell.Cell[kernelRes]
	manager   cell.Cell[taskManager]
	processor cell.Cell[processor]
	idle      *TaskContext

	mu       sync.Mutex
	root     *Process
	rootExit *int32

	halt halt.Latch
	kick chan struct{}
}

// New builds the kernel state. The allocators, kernel address space, ready
// queue and processor exist before the first process is created.
func New(opts Options) (*Kernel, error) {
	if opts.Frames == nil {
		return nil, errors.New("task: Options.Frames is required")
	}
	if opts.UserEntry == nil {
		return nil, errors.New("task: Options.UserEntry is required")
	}
	opts = opts.withDefaults()
	k := &Kernel{
		opts:   opts,
		log:    opts.Logger,
		frames: opts.Frames,
		clock:  opts.Clock,
		kick:   make(chan struct{}, 1),
	}
	k.res.With(func(r *kernelRes) {
		r.pids = id.NewRecycleAllocator()
		r.kstacks = id.NewRecycleAllocator()
		r.space = mm.NewBare(opts.Frames)
		r.procs = make(map[int]*Process)
	})
	k.manager.With(func(m *taskManager) { m.ready.kind = queueReady })
	k.processor.With(func(p *processor) {
		p.idleCx = zeroInit()
		k.idle = &p.idleCx
	})
	return k, nil
}

func (k *Kernel) Logger() *klog.Logger { return k.log }
func (k *Kernel) Clock() *timer.Clock  { return k.clock }

// SetHaltHandler installs fn to run once when the kernel halts.
func (k *Kernel) SetHaltHandler(fn func(halt.Info)) { k.halt.SetHandler(fn) }

func (k *Kernel) stdio() (fs.File, fs.File, fs.File) {
	c := k.opts.Console
	return fs.NewStdin(c, k), fs.NewStdout(c), fs.NewStdout(c)
}

// Root returns the root process, or nil before the first process exists.
func (k *Kernel) Root() *Process {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.root
}

func (k *Kernel) insertProcess(p *Process) {
	r := k.res.Borrow()
	defer k.res.Release()
	r.procs[p.Pid()] = p.get()
}

func (k *Kernel) removeProcess(p *Process) {
	r := k.res.Borrow()
	_, ok := r.procs[p.Pid()]
	delete(r.procs, p.Pid())
	k.res.Release()
	if ok {
		p.put()
	}
}

// Process looks up a live process by pid.
func (k *Kernel) Process(pid int) *Process {
	r := k.res.Borrow()
	defer k.res.Release()
	return r.procs[pid]
}

// ProcessCount reports the number of live (not exited) processes.
func (k *Kernel) ProcessCount() int {
	r := k.res.Borrow()
	defer k.res.Release()
	return len(r.procs)
}

// Kick wakes a dispatch loop that is waiting for runnable tasks.
func (k *Kernel) Kick() {
	select {
	case k.kick <- struct{}{}:
	default:
	}
}

// HaltError is returned by Run once the kernel has stopped for good.
type HaltError struct {
	Info halt.Info

	// RootExited is set when the root process exited with ExitCode.
	RootExited bool
	ExitCode   int32
}

func (e *HaltError) Error() string {
	if e.RootExited {
		return fmt.Sprintf("task: root process exited with code %d", e.ExitCode)
	}
	return e.Info.String()
}

func (k *Kernel) haltError() error {
	info, _ := k.halt.Info()
	e := &HaltError{Info: info}
	k.mu.Lock()
	if k.rootExit != nil {
		e.RootExited = true
		e.ExitCode = *k.rootExit
	}
	k.mu.Unlock()
	return e
}

// RootExitCode returns the root process's exit code once it has exited.
func (k *Kernel) RootExitCode() (int32, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.rootExit == nil {
		return 0, false
	}
	return *k.rootExit, true
}

// Halted reports whether a fatal condition (or root exit) stopped the kernel.
func (k *Kernel) Halted() bool { return k.halt.Halted() }

// Run is the dispatch loop. It returns a *HaltError when the kernel halts,
// or ctx.Err() when ctx is done. Run may be called once.
func (k *Kernel) Run(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			k.halt.Trigger(halt.Info{PID: -1, TID: -1, Value: r})
			err = k.haltError()
		}
		k.terminateAll()
	}()
	warned := false
	for {
		if k.halt.Halted() {
			return k.haltError()
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		t := k.fetchTask()
		if t == nil {
			if !warned {
				k.log.Warnf("no tasks available in run_tasks")
				warned = true
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-k.kick:
			}
			continue
		}
		warned = false
		k.clock.Advance(timer.SwitchCycles)

		inner := t.inner.Borrow()
		inner.status = StatusRunning
		next := &inner.cx
		t.inner.Release()
		k.setCurrent(t)
		k.checkNoBorrow(t)
		switchTo(k.idle, next)
	}
}

// terminateAll ends the goroutines of every task that will never run again.
func (k *Kernel) terminateAll() {
	r := k.res.Borrow()
	procs := make([]*Process, 0, len(r.procs))
	for _, p := range r.procs {
		procs = append(procs, p)
	}
	k.res.Release()
	for _, p := range procs {
		if p.inner.Borrowed() {
			continue
		}
		p.inner.With(func(inner *processInner) {
			for _, t := range inner.tasks {
				if t != nil && !t.inner.Borrowed() {
					t.inner.With(func(ti *taskInner) { ti.cx.terminate() })
				}
			}
		})
	}
}
