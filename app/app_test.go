package app

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"kestrel/hal"
	"kestrel/kernel/fs"
	"kestrel/kernel/halt"
)

type testFB struct {
	w, h     int
	buf      []byte
	presents int
}

func newTestFB(w, h int) *testFB { return &testFB{w: w, h: h, buf: make([]byte, w*h*2)} }

func (f *testFB) Width() int                   { return f.w }
func (f *testFB) Height() int                  { return f.h }
func (f *testFB) Format() hal.PixelFormat      { return hal.PixelFormatRGB565 }
func (f *testFB) StrideBytes() int             { return f.w * 2 }
func (f *testFB) Buffer() []byte               { return f.buf }
func (f *testFB) Present() error               { f.presents++; return nil }
func (f *testFB) Framebuffer() hal.Framebuffer { return f }

func (f *testFB) ClearRGB(r, g, b uint8) {
	p := uint16(r>>3)<<11 | uint16(g>>2)<<5 | uint16(b>>3)
	for i := 0; i+1 < len(f.buf); i += 2 {
		f.buf[i], f.buf[i+1] = byte(p), byte(p>>8)
	}
}

// lit counts non-black bytes.
func (f *testFB) lit() int {
	n := 0
	for _, b := range f.buf {
		if b != 0 {
			n++
		}
	}
	return n
}

type lockedBuffer struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (l *lockedBuffer) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.b.Write(p)
}

func (l *lockedBuffer) String() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.b.String()
}

type testHAL struct {
	log    *lockedBuffer
	out    *lockedBuffer
	fb     *testFB
	serial hal.Serial
}

func newTestHAL() *testHAL {
	h := &testHAL{log: &lockedBuffer{}, out: &lockedBuffer{}, fb: newTestFB(160, 120)}
	h.serial = hal.NewSerial(nil, h.out)
	return h
}

func (h *testHAL) Logger() hal.Logger   { return hal.NewWriterLogger(h.log) }
func (h *testHAL) Display() hal.Display { return h.fb }
func (h *testHAL) Input() hal.Input     { return nil }
func (h *testHAL) Time() hal.Time       { return nil }
func (h *testHAL) Serial() hal.Serial   { return h.serial }

func runApp(t *testing.T, a *App) error {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	a.Start(ctx)
	deadline := time.Now().Add(20 * time.Second)
	for time.Now().Before(deadline) {
		if err := a.Step(); err != nil {
			return err
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("app did not stop")
	return nil
}

func TestAppRunsInit(t *testing.T) {
	h := newTestHAL()
	a, err := New(h, Config{Args: []string{"/bin/hello", "/bin/threads"}, Terminal: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	err = runApp(t, a)
	var ee *ExitError
	if !errors.As(err, &ee) || ee.Code != 0 {
		t.Fatalf("run = %v; want exit code 0", err)
	}
	out := h.out.String()
	for _, want := range []string{"Hello, world!\n", "threads passed\n"} {
		if !strings.Contains(out, want) {
			t.Fatalf("serial = %q; want %q", out, want)
		}
	}
	a.Step()
	if h.fb.presents == 0 || h.fb.lit() == 0 {
		t.Fatalf("terminal drew nothing (presents %d)", h.fb.presents)
	}
}

func TestAppSpawnMissing(t *testing.T) {
	if _, err := New(newTestHAL(), Config{Init: "/bin/missing"}); !errors.Is(err, fs.ErrNotFound) {
		t.Fatalf("New = %v; want ErrNotFound", err)
	}
}

func TestBuiltinStorage(t *testing.T) {
	dev, err := BuiltinStorage()
	if err != nil {
		t.Fatalf("BuiltinStorage: %v", err)
	}
	s, err := fs.OpenStore(dev)
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	if _, err := s.ReadAll(DefaultInit); err != nil {
		t.Fatalf("ReadAll(%s): %v", DefaultInit, err)
	}
}

func TestKeyBytes(t *testing.T) {
	for _, tc := range []struct {
		ev   hal.KeyEvent
		want string
	}{
		{hal.KeyEvent{Code: hal.KeyEnter, Press: true}, "\n"},
		{hal.KeyEvent{Code: hal.KeyEnter, Press: false}, ""},
		{hal.KeyEvent{Code: hal.KeyUp, Press: true}, "\x1b[A"},
		{hal.KeyEvent{Press: true, Rune: 'x'}, "x"},
		{hal.KeyEvent{Press: true, Rune: 'é'}, "é"},
		{hal.KeyEvent{Press: true, Rune: 0x04}, "\x04"},
	} {
		if got := string(keyBytes(tc.ev)); got != tc.want {
			t.Fatalf("keyBytes(%+v) = %q; want %q", tc.ev, got, tc.want)
		}
	}
}

func TestHaltScreen(t *testing.T) {
	fb := newTestFB(160, 120)
	term := newTerminal(fb)
	term.Halt(halt.Info{PID: 3, TID: 1, Value: "boom", Stack: []byte("main.go:1\n")})
	if fb.lit() == 0 || fb.presents == 0 {
		t.Fatalf("halt screen not drawn")
	}
	presents := fb.presents
	term.Write([]byte("later"))
	term.Flush()
	if fb.presents != presents {
		t.Fatalf("terminal redrew over the halt report")
	}
}

func TestTakeRunes(t *testing.T) {
	p, r := takeRunes("héllo", 2)
	if p != "hé" || r != "llo" {
		t.Fatalf("takeRunes = %q, %q; want hé, llo", p, r)
	}
	p, r = takeRunes("ab", 5)
	if p != "ab" || r != "" {
		t.Fatalf("takeRunes = %q, %q; want ab, \"\"", p, r)
	}
}
