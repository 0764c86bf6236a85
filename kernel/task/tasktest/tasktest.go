// Package tasktest boots a task.Kernel whose threads run Go closures
// instead of user instructions.
//
// Every closure is registered under a fake entry address. A thread looks up
// its closure by the sepc of its trap context when it is first dispatched,
// so processes, forks and threads go through the real kernel paths.
package tasktest

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"kestrel/hal"
	"kestrel/kernel/exe"
	"kestrel/kernel/mm"
	"kestrel/kernel/task"
)

// DefaultPages is the physical memory of a harness kernel.
const DefaultPages = 512

// Func is the body of a closure thread. arg is the thread argument
// (argc for a process main thread).
type Func func(t *task.Task, arg uint64)

type Harness struct {
	K       *task.Kernel
	Frames  *mm.FrameAllocator
	Console *Console

	mu    sync.Mutex
	funcs map[uint64]Func
}

func New(tb testing.TB) *Harness {
	tb.Helper()
	h := &Harness{
		Frames:  mm.NewFrameAllocator(hal.NewRAM(DefaultPages * mm.PageSize)),
		Console: &Console{},
		funcs:   make(map[uint64]Func),
	}
	k, err := task.New(task.Options{
		Frames:    h.Frames,
		UserEntry: h.enter,
		Console:   h.Console,
	})
	if err != nil {
		tb.Fatalf("task.New: %v", err)
	}
	h.K = k
	return h
}

func (h *Harness) enter(t *task.Task) {
	cx := t.TrapContext()
	h.mu.Lock()
	fn := h.funcs[cx.Sepc]
	h.mu.Unlock()
	if fn == nil {
		panic("tasktest: no closure registered for the entry point")
	}
	fn(t, cx.X[10])
}

// Entry registers fn and returns its fake entry address.
func (h *Harness) Entry(fn Func) uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	addr := mm.UserBase + uint64(len(h.funcs))*8
	h.funcs[addr] = fn
	return addr
}

// Image is a one-page executable whose entry runs fn.
func (h *Harness) Image(fn Func) *exe.Image {
	return &exe.Image{
		Entry: h.Entry(fn),
		Segments: []exe.Segment{{
			Vaddr:   mm.UserBase,
			MemSize: mm.PageSize,
			Perm:    exe.PermR | exe.PermX,
		}},
	}
}

// Spawn creates a process running fn. The first one is the root process.
func (h *Harness) Spawn(tb testing.TB, fn Func, args ...string) *task.Process {
	tb.Helper()
	p, err := h.K.NewProcess(h.Image(fn), args)
	if err != nil {
		tb.Fatalf("NewProcess: %v", err)
	}
	return p
}

// Fork forks p and starts the child's thread in fn.
func (h *Harness) Fork(p *task.Process, fn Func) (*task.Process, error) {
	child, err := p.Fork()
	if err != nil {
		return nil, err
	}
	ct := child.Task(0)
	cx := ct.TrapContext()
	cx.Sepc = h.Entry(fn)
	cx.X[10] = 0
	ct.SetTrapContext(cx)
	return child, nil
}

// Thread starts a new thread of p running fn with arg.
func (h *Harness) Thread(p *task.Process, fn Func, arg uint64) (int, error) {
	return p.CreateThread(h.Entry(fn), arg)
}

// Run runs the kernel until it halts or timeout passes.
func (h *Harness) Run(tb testing.TB, timeout time.Duration) error {
	tb.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return h.K.Run(ctx)
}

// RunToExit runs the kernel and returns the root exit code. Any other
// outcome fails the test.
func (h *Harness) RunToExit(tb testing.TB) int32 {
	tb.Helper()
	err := h.Run(tb, 10*time.Second)
	var he *task.HaltError
	if !errors.As(err, &he) {
		tb.Fatalf("Run = %v; want a halt", err)
	}
	if !he.RootExited {
		tb.Fatalf("kernel halted: %v\n%s", he.Info, he.Info.Stack)
	}
	return he.ExitCode
}

// Yield suspends the current task n times.
func (h *Harness) Yield(n int) {
	for i := 0; i < n; i++ {
		h.K.SuspendCurrentAndRunNext()
	}
}

// Console is an in-memory fs.Console.
type Console struct {
	mu  sync.Mutex
	out bytes.Buffer
	in  []byte
}

func (c *Console) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.out.Write(p)
}

func (c *Console) TryReadByte() (byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.in) == 0 {
		return 0, false
	}
	b := c.in[0]
	c.in = c.in[1:]
	return b, true
}

// Feed queues input bytes.
func (c *Console) Feed(s string) {
	c.mu.Lock()
	c.in = append(c.in, s...)
	c.mu.Unlock()
}

func (c *Console) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.out.String()
}
