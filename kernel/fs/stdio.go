package fs

// Stdin reads the console one byte per call and waits for input.
type Stdin struct {
	console Console
	w       Waiter
}

func NewStdin(c Console, w Waiter) *Stdin { return &Stdin{console: c, w: w} }

func (*Stdin) Readable() bool { return true }
func (*Stdin) Writable() bool { return false }

func (s *Stdin) Read(buf []byte) int {
	if len(buf) == 0 {
		return 0
	}
	for {
		if b, ok := s.console.TryReadByte(); ok {
			buf[0] = b
			return 1
		}
		s.w.SuspendCurrentAndRunNext()
	}
}

func (*Stdin) Write([]byte) int { return 0 }

// Stdout writes to the console. Stderr shares the type.
type Stdout struct {
	console Console
}

func NewStdout(c Console) *Stdout { return &Stdout{console: c} }

func (*Stdout) Readable() bool  { return false }
func (*Stdout) Writable() bool  { return true }
func (*Stdout) Read([]byte) int { return 0 }

func (s *Stdout) Write(buf []byte) int {
	n, _ := s.console.Write(buf)
	return n
}

// NullConsole discards output and never has input.
type NullConsole struct{}

func (NullConsole) Write(p []byte) (int, error) { return len(p), nil }
func (NullConsole) TryReadByte() (byte, bool)   { return 0, false }
