package syscall

import (
	"errors"

	"kestrel/kernel/task"
)

func (d *Dispatcher) threadCreate(t *task.Task, a [6]uint64) int64 {
	tid, err := t.Process().CreateThread(a[0], a[1])
	if err != nil {
		return errno(err)
	}
	return int64(tid)
}

// waittid returns the exit code of an exited thread, -1 for an unknown tid
// or the caller itself, and -2 while the thread still runs.
func (d *Dispatcher) waittid(t *task.Task, a [6]uint64) int64 {
	code, err := t.WaitTid(int(int64(a[0])))
	switch {
	case errors.Is(err, task.ErrStillRunning):
		return -2
	case err != nil:
		return -1
	}
	return int64(code)
}
