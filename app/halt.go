package app

import (
	"fmt"
	"image/color"
	"strings"
	"unicode/utf8"

	"kestrel/hal"
	"kestrel/kernel/halt"

	"tinygo.org/x/tinyfont"
	"tinygo.org/x/tinyfont/proggy"
)

// haltLines is the report shown for a fatal halt.
func haltLines(info halt.Info) []string {
	lines := []string{
		"Kestrel halted:",
		fmt.Sprintf("pid: %d tid: %d", info.PID, info.TID),
		fmt.Sprintf("panic: %v", info.Value),
	}
	if len(info.Stack) == 0 {
		return append(lines, "stack: unavailable")
	}
	lines = append(lines, "stack:")
	for _, line := range strings.Split(string(info.Stack), "\n") {
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func logHalt(l hal.Logger, info halt.Info) {
	if l == nil {
		return
	}
	for _, line := range haltLines(info) {
		l.WriteLineString(line)
	}
}

// drawHalt paints the report black on white, wrapping long lines and
// stopping at the bottom of the screen.
func drawHalt(fb hal.Framebuffer, info halt.Info) {
	d := newFBDisplay(fb)
	if d == nil {
		return
	}
	fb.ClearRGB(255, 255, 255)

	font := &proggy.TinySZ8pt7b
	_, w := tinyfont.LineWidth(font, "0")
	fontWidth := int16(w)
	if fontWidth <= 0 {
		_ = fb.Present()
		return
	}
	cols := int16(fb.Width()) / fontWidth
	fg := color.RGBA{A: 255}

	y := int16(0)
	for _, line := range haltLines(info) {
		for len(line) > 0 {
			if int(y)+termFontHeight > fb.Height() {
				_ = fb.Present()
				return
			}
			chunk, rest := takeRunes(line, cols)
			x := int16(0)
			for _, r := range chunk {
				tinyfont.DrawChar(d, font, x, y+termFontOffset, r, fg)
				x += fontWidth
			}
			y += termFontHeight
			line = strings.TrimLeft(rest, " ")
		}
	}
	_ = fb.Present()
}

func takeRunes(s string, n int16) (prefix, rest string) {
	if n <= 0 {
		n = 1
	}
	i := 0
	for count := int16(0); i < len(s) && count < n; count++ {
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
	}
	return s[:i], s[i:]
}
