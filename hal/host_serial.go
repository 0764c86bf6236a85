//go:build !tinygo

package hal

import (
	"fmt"
	"io"
	"sync"
)

// consoleLine is the serial port the kernel console is wired to: process
// output leaves on out and bytes typed on the host arrive on in.
type consoleLine struct {
	in  io.Reader
	out io.Writer

	wmu sync.Mutex // the console and the halt report share out
}

// NewSerial attaches a console line to in and out. A nil side reports
// ErrNotImplemented.
func NewSerial(in io.Reader, out io.Writer) Serial {
	return &consoleLine{in: in, out: out}
}

func (l *consoleLine) Read(p []byte) (int, error) {
	if l.in == nil {
		return 0, ErrNotImplemented
	}
	return l.in.Read(p)
}

func (l *consoleLine) Write(p []byte) (int, error) {
	if l.out == nil {
		return 0, ErrNotImplemented
	}
	l.wmu.Lock()
	n, err := l.out.Write(p)
	l.wmu.Unlock()
	if err != nil {
		return n, fmt.Errorf("serial: %w", err)
	}
	return n, nil
}
