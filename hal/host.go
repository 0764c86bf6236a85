//go:build !tinygo

package hal

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// HostConfig sizes the host devices.
type HostConfig struct {
	Width, Height int

	// Tick is the period of the Time tick stream.
	Tick time.Duration

	// Log receives log lines; stderr when nil.
	Log io.Writer
}

func (c HostConfig) withDefaults() HostConfig {
	if c.Width <= 0 || c.Height <= 0 {
		c.Width, c.Height = 320, 320
	}
	if c.Tick <= 0 {
		c.Tick = 10 * time.Millisecond
	}
	if c.Log == nil {
		c.Log = os.Stderr
	}
	return c
}

type hostHAL struct {
	logger *hostLogger
	fb     *hostFramebuffer
	kbd    *hostKeyboard
	t      *tickSource
	serial Serial
}

// New returns a host HAL implementation.
func New(cfg HostConfig) HAL {
	return newHost(cfg)
}

func newHost(cfg HostConfig) *hostHAL {
	cfg = cfg.withDefaults()
	return &hostHAL{
		logger: &hostLogger{w: cfg.Log},
		fb:     newHostFramebuffer(cfg.Width, cfg.Height),
		kbd:    newHostKeyboard(),
		t:      newTickSource(cfg.Tick),
		serial: NewSerial(os.Stdin, os.Stdout),
	}
}

// advance is one runner step: raise the timer interrupts due at now, then
// let the app run.
func (h *hostHAL) advance(now time.Time, step func() error) error {
	h.t.advance(now)
	if step == nil {
		return nil
	}
	return step()
}

func (h *hostHAL) Logger() Logger   { return h.logger }
func (h *hostHAL) Display() Display { return hostDisplay{fb: h.fb} }
func (h *hostHAL) Input() Input     { return hostInput{kbd: h.kbd} }
func (h *hostHAL) Time() Time       { return h.t }
func (h *hostHAL) Serial() Serial   { return h.serial }

type hostDisplay struct {
	fb *hostFramebuffer
}

func (d hostDisplay) Framebuffer() Framebuffer { return d.fb }

type hostInput struct {
	kbd *hostKeyboard
}

func (in hostInput) Keyboard() Keyboard { return in.kbd }

type hostLogger struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *hostLogger) WriteLineString(s string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.w, s)
}

func (l *hostLogger) WriteLineBytes(b []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.w.Write(b)
	l.w.Write([]byte{'\n'})
}

// NewWriterLogger returns a Logger that writes lines to w.
func NewWriterLogger(w io.Writer) Logger {
	return &hostLogger{w: w}
}
