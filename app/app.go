// Package app boots the kernel on a host HAL: it builds the image store,
// routes the console to the serial line and the framebuffer terminal, and
// turns host ticks and keys into interrupts and standard input.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"kestrel/hal"
	"kestrel/internal/buildinfo"
	"kestrel/kernel"
	"kestrel/kernel/fs"
	"kestrel/kernel/halt"
	"kestrel/kernel/klog"
	"kestrel/kernel/task"
	"kestrel/user"

	"golang.org/x/sync/errgroup"
	"tinygo.org/x/tinyfs"
)

// DefaultInit is the first program when Config.Init is empty.
const DefaultInit = "/bin/init"

type Config struct {
	// Storage holds the image store. When nil the built-in programs are
	// formatted into a RAM device.
	Storage tinyfs.BlockDevice

	// Init is the root program and Args its argv[1:].
	Init string
	Args []string

	Memory   int64
	Quantum  uint64
	LogLevel klog.Level

	// Terminal renders console output on the framebuffer.
	Terminal bool
}

// ExitError reports that the root process exited. Code 0 is a clean
// shutdown.
type ExitError struct {
	Code int32
}

func (e *ExitError) Error() string { return fmt.Sprintf("init exited with code %d", e.Code) }

type App struct {
	h    hal.HAL
	cfg  Config
	sys  *kernel.System
	term *terminal

	once   sync.Once
	mu     sync.Mutex
	done   bool
	result error
}

// New boots the system and spawns the root process. Nothing runs until
// Start.
func New(h hal.HAL, cfg Config) (*App, error) {
	if cfg.Init == "" {
		cfg.Init = DefaultInit
	}
	dev := cfg.Storage
	if dev == nil {
		var err error
		if dev, err = BuiltinStorage(); err != nil {
			return nil, err
		}
	}

	if l := h.Logger(); l != nil {
		l.WriteLineString(buildinfo.String())
	}

	a := &App{h: h, cfg: cfg}
	var outs []io.Writer
	if s := h.Serial(); s != nil {
		outs = append(outs, s)
	}
	if cfg.Terminal {
		if a.term = newTerminal(h.Display()); a.term != nil {
			outs = append(outs, a.term)
		}
	}

	sys, err := kernel.New(kernel.Config{
		Memory:   cfg.Memory,
		Storage:  dev,
		Output:   io.MultiWriter(outs...),
		Logger:   h.Logger(),
		LogLevel: cfg.LogLevel,
		Quantum:  cfg.Quantum,
	})
	if err != nil {
		return nil, err
	}
	a.sys = sys
	sys.SetHaltHandler(a.onHalt)

	args := append([]string{cfg.Init}, cfg.Args...)
	if _, err := sys.Spawn(cfg.Init, args); err != nil {
		return nil, err
	}
	return a, nil
}

// BuiltinStorage returns a RAM device holding the built-in programs.
func BuiltinStorage() (tinyfs.BlockDevice, error) {
	files, err := user.Files()
	if err != nil {
		return nil, err
	}
	size := int64(fs.MinStoreBytes)
	for _, f := range files {
		size += int64(len(f.Data))
	}
	dev := hal.NewRAM(size)
	if err := fs.Format(dev, files); err != nil {
		return nil, fmt.Errorf("app: format built-in store: %w", err)
	}
	return dev, nil
}

func (a *App) System() *kernel.System { return a.sys }

func (a *App) onHalt(info halt.Info) {
	if _, exited := a.sys.Kernel().RootExitCode(); exited {
		return
	}
	logHalt(a.h.Logger(), info)
	if a.term != nil {
		a.term.Halt(info)
	}
}

// Start runs the kernel in the background until the root process exits,
// the kernel halts or ctx is done. Host ticks become timer interrupts and
// keyboard presses become standard input.
func (a *App) Start(ctx context.Context) {
	a.once.Do(func() {
		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			err := a.sys.Run(ctx)
			return runResult(err)
		})
		if t := a.h.Time(); t != nil {
			g.Go(func() error { return a.pumpTicks(ctx, t.Ticks()) })
		}
		if in := a.h.Input(); in != nil && in.Keyboard() != nil {
			g.Go(func() error { return a.pumpKeys(ctx, in.Keyboard().Events()) })
		}
		go a.pumpSerial(ctx)
		go func() { a.finish(g.Wait()) }()
	})
}

// runResult maps the kernel's stop reason onto the app's error. It never
// returns nil so that the group cancels the pumps.
func runResult(err error) error {
	var he *task.HaltError
	if errors.As(err, &he) && he.RootExited {
		return &ExitError{Code: he.ExitCode}
	}
	return err
}

func (a *App) finish(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.done = true
	a.result = err
}

// Step is called by the host runner on every frame. It presents the
// terminal and reports the result once the kernel has stopped.
func (a *App) Step() error {
	if a.term != nil {
		a.term.Flush()
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.done {
		return a.result
	}
	return nil
}

func (a *App) pumpTicks(ctx context.Context, ticks <-chan uint64) error {
	if ticks == nil {
		return nil
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticks:
			a.sys.Interrupt()
		}
	}
}

func (a *App) pumpKeys(ctx context.Context, events <-chan hal.KeyEvent) error {
	if events == nil {
		return nil
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-events:
			if ev.Rune == 0x0c && a.term != nil {
				a.term.Clear()
				continue
			}
			if b := keyBytes(ev); len(b) > 0 {
				a.sys.Console().Input(b)
			}
		}
	}
}

// pumpSerial forwards the serial line to standard input. Reads block in the
// host, so it is not part of the group and ends with the process.
func (a *App) pumpSerial(ctx context.Context) {
	s := a.h.Serial()
	if s == nil {
		return
	}
	buf := make([]byte, 64)
	for ctx.Err() == nil {
		n, err := s.Read(buf)
		for p := buf[:n]; len(p) > 0; {
			k := a.sys.Console().Input(p)
			p = p[k:]
			if len(p) > 0 {
				a.sys.Kick()
				time.Sleep(time.Millisecond)
			}
		}
		if err != nil {
			return
		}
	}
}
