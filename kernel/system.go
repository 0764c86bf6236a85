// Package kernel boots a single-hart machine: physical memory, the image
// store, the console and the scheduler, with user threads running on the
// simulated hart.
package kernel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"kestrel/hal"
	"kestrel/kernel/exe"
	"kestrel/kernel/fs"
	"kestrel/kernel/halt"
	"kestrel/kernel/klog"
	"kestrel/kernel/mm"
	"kestrel/kernel/syscall"
	"kestrel/kernel/task"
	"kestrel/kernel/timer"

	"tinygo.org/x/tinyfs"
)

// DefaultMemory is the physical memory size when Config.Memory is zero.
const DefaultMemory = 16 << 20

// Config describes the machine.
type Config struct {
	// Memory is the size of physical memory in bytes.
	Memory int64

	// Storage holds the image store programs are loaded from. Required.
	Storage tinyfs.BlockDevice

	// Output receives everything processes write to stdout and stderr.
	Output io.Writer

	Logger   hal.Logger
	LogLevel klog.Level

	// Quantum is the time slice in cycles.
	Quantum uint64
}

func (c Config) withDefaults() Config {
	if c.Memory <= 0 {
		c.Memory = DefaultMemory
	}
	if c.Quantum == 0 {
		c.Quantum = timer.ClockFreq / timer.TicksPerSec
	}
	return c
}

// System is one booted machine.
type System struct {
	cfg     Config
	log     *klog.Logger
	frames  *mm.FrameAllocator
	clock   *timer.Clock
	store   *fs.ImageStore
	console *Console
	k       *task.Kernel
	sys     *syscall.Dispatcher

	irq   atomic.Bool
	ticks atomic.Uint64
}

// New builds the machine state. No process exists until Spawn.
func New(cfg Config) (*System, error) {
	cfg = cfg.withDefaults()
	if cfg.Storage == nil {
		return nil, errors.New("kernel: Config.Storage is required")
	}
	store, err := fs.OpenStore(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("kernel: open image store: %w", err)
	}
	s := &System{
		cfg:     cfg,
		log:     klog.New(cfg.Logger, cfg.LogLevel),
		frames:  mm.NewFrameAllocator(hal.NewRAM(cfg.Memory)),
		clock:   timer.NewClock(cfg.Quantum),
		store:   store,
		console: NewConsole(cfg.Output),
	}
	k, err := task.New(task.Options{
		Frames:    s.frames,
		Clock:     s.clock,
		Logger:    s.log,
		Console:   s.console,
		UserEntry: s.userLoop,
	})
	if err != nil {
		return nil, err
	}
	s.k = k
	s.sys = syscall.New(k, store)
	s.console.kick = k.Kick
	s.log.Infof("kernel: %d frames, %d files in image store", s.frames.Total(), len(store.List("/")))
	return s, nil
}

func (s *System) Kernel() *task.Kernel       { return s.k }
func (s *System) Console() *Console          { return s.console }
func (s *System) Store() *fs.ImageStore      { return s.store }
func (s *System) Frames() *mm.FrameAllocator { return s.frames }

// SetHaltHandler installs fn to run once when the kernel halts.
func (s *System) SetHaltHandler(fn func(halt.Info)) { s.k.SetHaltHandler(fn) }

// Spawn loads the program at path and creates a process for it with args
// as argv. The first process spawned is the root process.
func (s *System) Spawn(path string, args []string) (*task.Process, error) {
	data, err := s.store.ReadAll(path)
	if err != nil {
		return nil, fmt.Errorf("kernel: spawn %s: %w", path, err)
	}
	img, err := exe.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("kernel: spawn %s: %w", path, err)
	}
	if len(args) == 0 {
		args = []string{path}
	}
	p, err := s.k.NewProcess(img, args)
	if err != nil {
		return nil, fmt.Errorf("kernel: spawn %s: %w", path, err)
	}
	return p, nil
}

// Run dispatches tasks until the root process exits, a fatal condition
// halts the kernel, or ctx is done.
func (s *System) Run(ctx context.Context) error {
	return s.k.Run(ctx)
}

// Interrupt raises the timer interrupt. The running user thread is
// preempted before its next instruction.
func (s *System) Interrupt() {
	s.ticks.Add(1)
	s.irq.Store(true)
}

// Kick retries a dispatch loop that ran out of runnable tasks.
func (s *System) Kick() { s.k.Kick() }

// Ticks returns the number of host timer interrupts raised.
func (s *System) Ticks() uint64 { return s.ticks.Load() }

// RunTicker raises the timer interrupt every interval until ctx is done.
func (s *System) RunTicker(ctx context.Context, interval time.Duration) error {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			s.Interrupt()
		}
	}
}
