package app

import (
	"unicode/utf8"

	"kestrel/hal"
)

// keyBytes translates a key press into the bytes a terminal line would send.
func keyBytes(ev hal.KeyEvent) []byte {
	if !ev.Press {
		return nil
	}
	switch ev.Code {
	case hal.KeyEnter:
		return []byte{'\n'}
	case hal.KeyBackspace:
		return []byte{0x7f}
	case hal.KeyTab:
		return []byte{'\t'}
	case hal.KeyEscape:
		return []byte{0x1b}
	case hal.KeyUp:
		return []byte("\x1b[A")
	case hal.KeyDown:
		return []byte("\x1b[B")
	case hal.KeyRight:
		return []byte("\x1b[C")
	case hal.KeyLeft:
		return []byte("\x1b[D")
	case hal.KeyDelete:
		return []byte("\x1b[3~")
	}
	if ev.Rune == 0 {
		return nil
	}
	return utf8.AppendRune(nil, ev.Rune)
}
