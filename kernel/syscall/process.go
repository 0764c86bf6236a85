package syscall

import (
	"errors"
	"math"

	"kestrel/kernel/exe"
	"kestrel/kernel/task"
	"kestrel/kernel/timer"
)

func (d *Dispatcher) exit(t *task.Task, a [6]uint64) int64 {
	d.k.ExitCurrentAndRunNext(int32(a[0]))
	panic("syscall: exit returned")
}

func (d *Dispatcher) yield(t *task.Task, a [6]uint64) int64 {
	d.k.SuspendCurrentAndRunNext()
	return 0
}

// MaxSleepSec is the longest sleep accepted. Longer ones would wrap the
// cycle deadline.
const MaxSleepSec = math.MaxUint64 / timer.ClockFreq / 2

// sleep takes a pointer to {sec u64, nsec u64} and yields until that much
// simulated time has passed.
func (d *Dispatcher) sleep(t *task.Task, a [6]uint64) int64 {
	space := t.Process().Space()
	sec, err := space.LoadUint64(a[0])
	if err != nil {
		return -EFAULT
	}
	nsec, err := space.LoadUint64(a[0] + 8)
	if err != nil {
		return -EFAULT
	}
	if nsec >= 1_000_000_000 || sec > MaxSleepSec {
		return -EINVAL
	}
	end := d.clock.Now() + sec*timer.ClockFreq + nsec*timer.ClockFreq/1_000_000_000
	for d.clock.Now() < end {
		d.k.SuspendCurrentAndRunNext()
	}
	return 0
}

// getTime returns milliseconds since boot and, when a0 is not null, stores
// {sec u64, usec u64} there.
func (d *Dispatcher) getTime(t *task.Task, a [6]uint64) int64 {
	now := d.clock.Now()
	if a[0] != 0 {
		space := t.Process().Space()
		sec := now / timer.ClockFreq
		usec := now % timer.ClockFreq * 1_000_000 / timer.ClockFreq
		if err := space.StoreUint64(a[0], sec); err != nil {
			return -EFAULT
		}
		if err := space.StoreUint64(a[0]+8, usec); err != nil {
			return -EFAULT
		}
	}
	return int64(now / (timer.ClockFreq / timer.MsecPerSec))
}

func (d *Dispatcher) getpid(t *task.Task, a [6]uint64) int64 {
	return int64(t.Process().Pid())
}

func (d *Dispatcher) getppid(t *task.Task, a [6]uint64) int64 {
	if parent := t.Process().Parent(); parent != nil {
		return int64(parent.Pid())
	}
	return 0
}

func (d *Dispatcher) gettid(t *task.Task, a [6]uint64) int64 {
	return int64(t.Tid())
}

func (d *Dispatcher) kill(t *task.Task, a [6]uint64) int64 {
	if a[1] > 0xffff_ffff {
		return -1
	}
	if err := d.k.Kill(int(int64(a[0])), task.SignalFlags(a[1])); err != nil {
		return -1
	}
	return 0
}

// brk sets the program break; zero queries it. It returns the break.
func (d *Dispatcher) brk(t *task.Task, a [6]uint64) int64 {
	brk, err := t.Process().Brk(a[0])
	if errors.Is(err, task.ErrBadBreak) {
		return -1
	}
	if err != nil {
		return -ENOMEM
	}
	return int64(brk)
}

// fork(flags, stack, ...) returns the child pid; the child sees 0. A
// non-zero stack becomes the child's sp.
func (d *Dispatcher) fork(t *task.Task, a [6]uint64) int64 {
	child, err := t.Process().Fork()
	if err != nil {
		return errno(err)
	}
	ct := child.Task(0)
	cx := ct.TrapContext()
	cx.X[10] = 0
	if a[1] != 0 {
		cx.SetSP(a[1])
	}
	ct.SetTrapContext(cx)
	return int64(child.Pid())
}

// exec(path, argv, envp) returns argc in the new image.
func (d *Dispatcher) exec(t *task.Task, a [6]uint64) int64 {
	p := t.Process()
	space := p.Space()
	name, err := space.LoadString(a[0])
	if err != nil {
		return errno(err)
	}
	args, err := d.loadArgv(t, a[1])
	if err != nil {
		return errno(err)
	}
	if d.store == nil {
		return -ENOENT
	}
	data, err := d.store.ReadAll(p.Cwd().Resolve(name))
	if err != nil {
		return errno(err)
	}
	img, err := exe.Parse(data)
	if err != nil {
		return -ENOEXEC
	}
	argc, err := p.Exec(img, args)
	if err != nil {
		return errno(err)
	}
	d.log.Debugf("pid %d exec %s %q", p.Pid(), name, args)
	return int64(argc)
}

func (d *Dispatcher) loadArgv(t *task.Task, argv uint64) ([]string, error) {
	if argv == 0 {
		return nil, nil
	}
	space := t.Process().Space()
	var args []string
	for i := 0; ; i++ {
		if i == MaxArgs {
			return nil, errTooManyArgs
		}
		ptr, err := space.LoadUint64(argv + uint64(i)*8)
		if err != nil {
			return nil, err
		}
		if ptr == 0 {
			return args, nil
		}
		s, err := space.LoadString(ptr)
		if err != nil {
			return nil, err
		}
		args = append(args, s)
	}
}

var errTooManyArgs = errors.New("syscall: too many exec arguments")

// waitpid(pid, status) blocks until a matching child exits and returns its
// pid, or -1 at once when no child matches.
func (d *Dispatcher) waitpid(t *task.Task, a [6]uint64) int64 {
	p := t.Process()
	pid := int(int64(a[0]))
	for {
		got, code, err := p.WaitPid(pid)
		switch {
		case errors.Is(err, task.ErrNoChild):
			return -1
		case errors.Is(err, task.ErrStillRunning):
			if _, _, killed := p.TakeFatalSignal(); killed {
				return -EINTR
			}
			d.k.SuspendCurrentAndRunNext()
			continue
		}
		if a[1] != 0 {
			if err := p.Space().StoreUint32(a[1], uint32(code)); err != nil {
				return -EFAULT
			}
		}
		return int64(got)
	}
}
