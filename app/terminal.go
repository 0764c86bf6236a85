package app

import (
	"sync"

	"kestrel/hal"
	"kestrel/kernel/halt"

	"tinygo.org/x/tinyfont/proggy"
	"tinygo.org/x/tinyterm"
)

const (
	termFontHeight = 10
	termFontOffset = 6
)

// terminal renders console output on the framebuffer. Writes come from
// task goroutines; Flush runs on the host runner's step.
type terminal struct {
	mu    sync.Mutex
	fb    hal.Framebuffer
	d     *fbDisplay
	t     *tinyterm.Terminal
	dirty bool

	// frozen keeps the halt report on screen.
	frozen bool
}

// newTerminal returns nil when disp has no usable framebuffer.
func newTerminal(disp hal.Display) *terminal {
	if disp == nil {
		return nil
	}
	fb := disp.Framebuffer()
	d := newFBDisplay(fb)
	if d == nil {
		return nil
	}
	t := &terminal{fb: fb, d: d}
	t.reset()
	return t
}

func (t *terminal) reset() {
	t.t = tinyterm.NewTerminal(t.d)
	t.t.Configure(&tinyterm.Config{
		Font:              &proggy.TinySZ8pt7b,
		FontHeight:        termFontHeight,
		FontOffset:        termFontOffset,
		UseSoftwareScroll: true,
	})
	t.fb.ClearRGB(0, 0, 0)
	t.dirty = true
}

func (t *terminal) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.frozen {
		return len(p), nil
	}
	t.dirty = true
	return t.t.Write(p)
}

// Clear blanks the screen.
func (t *terminal) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.reset()
}

// Halt replaces the screen with the halt report.
func (t *terminal) Halt(info halt.Info) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.frozen = true
	drawHalt(t.fb, info)
}

// Flush presents the framebuffer if anything was written since the last
// flush.
func (t *terminal) Flush() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.dirty || t.frozen {
		return
	}
	t.dirty = false
	t.t.Display()
}
