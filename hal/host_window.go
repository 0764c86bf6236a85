//go:build !tinygo && cgo

package hal

import (
	"image"
	"time"

	"kestrel/internal/buildinfo"

	"github.com/hajimehoshi/ebiten/v2"
)

// RunWindow shows the machine's screen in a desktop window at twice its
// size. Keys pressed in the window reach the console; each ebiten update is
// one runner step. It returns when the window closes or a step fails.
func RunWindow(newApp func(HAL) func() error, cfg HostConfig) error {
	h := newHost(cfg)
	w := &screenWindow{h: h, step: newApp(h)}
	ebiten.SetWindowTitle("Kestrel (" + buildinfo.Short() + ")")
	ebiten.SetWindowSize(h.fb.width*2, h.fb.height*2)
	ebiten.SetTPS(60)
	return ebiten.RunGame(w)
}

// screenWindow is the ebiten.Game that mirrors the framebuffer. It converts
// pixels only for frames presented since the last draw.
type screenWindow struct {
	h    *hostHAL
	step func() error

	rgba    *image.RGBA
	texture *ebiten.Image
	packed  []byte
	shown   uint64
}

func (w *screenWindow) Update() error {
	w.h.kbd.poll()
	return w.h.advance(time.Now(), w.step)
}

func (w *screenWindow) resize(width, height int) {
	w.rgba = image.NewRGBA(image.Rect(0, 0, width, height))
	w.packed = make([]byte, len(w.h.fb.buf))
	if w.texture != nil {
		w.texture.Deallocate()
	}
	w.texture = ebiten.NewImage(width, height)
	w.shown = 0
}

func (w *screenWindow) Draw(screen *ebiten.Image) {
	fb := w.h.fb
	if w.rgba == nil || w.rgba.Bounds().Dx() != fb.width || w.rgba.Bounds().Dy() != fb.height {
		w.resize(fb.width, fb.height)
	}
	if frame := fb.snapshotRGB565(w.packed, w.shown); frame != w.shown {
		w.shown = frame
		expandFrame(w.rgba.Pix, w.packed)
		w.texture.WritePixels(w.rgba.Pix)
	}
	screen.DrawImage(w.texture, nil)
}

func (w *screenWindow) Layout(outsideWidth, outsideHeight int) (int, int) {
	return w.h.fb.width, w.h.fb.height
}
