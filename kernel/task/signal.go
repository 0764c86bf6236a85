package task

import "fmt"

// SignalFlags is a set of pending signals. Signal n is bit 1<<n.
type SignalFlags uint32

const (
	SIGDEF SignalFlags = 1 << iota
	SIGHUP
	SIGINT
	SIGQUIT
	SIGILL
	SIGTRAP
	SIGABRT
	SIGBUS
	SIGFPE
	SIGKILL
	SIGUSR1
	SIGSEGV
	SIGUSR2
	SIGPIPE
	SIGALRM
	SIGTERM
	SIGSTKFLT
	SIGCHLD
	SIGCONT
	SIGSTOP
	SIGTSTP
	SIGTTIN
	SIGTTOU
	SIGURG
	SIGXCPU
	SIGXFSZ
	SIGVTALRM
	SIGPROF
	SIGWINCH
	SIGIO
	SIGPWR
	SIGSYS
)

// SignalFromNum decodes signal number n.
func SignalFromNum(n int) (SignalFlags, bool) {
	if n <= 0 || n >= 32 {
		return 0, false
	}
	return SignalFlags(1) << n, true
}

// Valid reports whether s is a non-empty set. Every bit names a signal,
// SIGDEF included.
func (s SignalFlags) Valid() bool { return s != 0 }

// Fatal returns the exit code and message for the first pending signal
// that terminates a process.
func (s SignalFlags) Fatal() (int32, string, bool) {
	switch {
	case s&SIGINT != 0:
		return -2, "Killed, SIGINT=2", true
	case s&SIGILL != 0:
		return -4, "Illegal Instruction, SIGILL=4", true
	case s&SIGABRT != 0:
		return -6, "Aborted, SIGABRT=6", true
	case s&SIGFPE != 0:
		return -8, "Erroneous Arithmetic Operation, SIGFPE=8", true
	case s&SIGKILL != 0:
		return -9, "Killed, SIGKILL=9", true
	case s&SIGSEGV != 0:
		return -11, "Segmentation Fault, SIGSEGV=11", true
	}
	return 0, "", false
}

func (s SignalFlags) String() string { return fmt.Sprintf("%#x", uint32(s)) }

// Kill adds sig to the pending set of process pid.
func (k *Kernel) Kill(pid int, sig SignalFlags) error {
	if !sig.Valid() {
		return ErrBadSignal
	}
	p := k.Process(pid)
	if p == nil {
		return ErrNoProcess
	}
	p.inner.With(func(inner *processInner) { inner.signals |= sig })
	return nil
}

// TakeFatalSignal reports a pending terminating signal of p.
func (p *Process) TakeFatalSignal() (int32, string, bool) {
	inner := p.inner.Borrow()
	defer p.inner.Release()
	return inner.signals.Fatal()
}
