package syscall

import (
	"errors"

	"kestrel/kernel/fs"
	"kestrel/kernel/klog"
	"kestrel/kernel/mm"
	"kestrel/kernel/task"
	"kestrel/kernel/timer"
)

// MaxArgs bounds the argv array exec accepts.
const MaxArgs = 64

type handler func(d *Dispatcher, t *task.Task, a [6]uint64) int64

// Dispatcher runs system calls for the threads of one kernel.
type Dispatcher struct {
	k     *task.Kernel
	store *fs.ImageStore
	clock *timer.Clock
	log   *klog.Logger

	table map[uint64]handler
}

// New returns a dispatcher that loads programs and opens files from store.
// A nil store serves no files.
func New(k *task.Kernel, store *fs.ImageStore) *Dispatcher {
	d := &Dispatcher{k: k, store: store, clock: k.Clock(), log: k.Logger()}
	d.table = map[uint64]handler{
		SysGetcwd:       (*Dispatcher).getcwd,
		SysDup:          (*Dispatcher).dup,
		SysChdir:        (*Dispatcher).chdir,
		SysOpenat:       (*Dispatcher).openat,
		SysClose:        (*Dispatcher).close,
		SysPipe:         (*Dispatcher).pipe,
		SysRead:         (*Dispatcher).read,
		SysWrite:        (*Dispatcher).write,
		SysExit:         (*Dispatcher).exit,
		SysSleep:        (*Dispatcher).sleep,
		SysYield:        (*Dispatcher).yield,
		SysKill:         (*Dispatcher).kill,
		SysGetTime:      (*Dispatcher).getTime,
		SysGetpid:       (*Dispatcher).getpid,
		SysGetppid:      (*Dispatcher).getppid,
		SysGettid:       (*Dispatcher).gettid,
		SysBrk:          (*Dispatcher).brk,
		SysMunmap:       (*Dispatcher).munmap,
		SysFork:         (*Dispatcher).fork,
		SysExec:         (*Dispatcher).exec,
		SysMmap:         (*Dispatcher).mmap,
		SysWaitpid:      (*Dispatcher).waitpid,
		SysThreadCreate: (*Dispatcher).threadCreate,
		SysWaittid:      (*Dispatcher).waittid,
		SysMutexCreate:  (*Dispatcher).mutexCreate,
		SysMutexLock:    (*Dispatcher).mutexLock,
		SysMutexUnlock:  (*Dispatcher).mutexUnlock,
		SysSemCreate:    (*Dispatcher).semaphoreCreate,
		SysSemUp:        (*Dispatcher).semaphoreUp,
		SysSemDown:      (*Dispatcher).semaphoreDown,
		SysCondCreate:   (*Dispatcher).condvarCreate,
		SysCondSignal:   (*Dispatcher).condvarSignal,
		SysCondWait:     (*Dispatcher).condvarWait,
	}
	return d
}

// Dispatch runs system call id for t and returns the value for a0.
// exit does not return.
func (d *Dispatcher) Dispatch(t *task.Task, id uint64, args [6]uint64) int64 {
	h, ok := d.table[id]
	if !ok {
		d.log.Warnf("pid %d tid %d: unsupported syscall %d", t.Process().Pid(), t.Tid(), id)
		return -ENOSYS
	}
	d.log.Tracef("pid %d tid %d: %s(%#x, %#x, %#x)", t.Process().Pid(), t.Tid(), Name(id), args[0], args[1], args[2])
	return h(d, t, args)
}

// errno maps a kernel error to a negated errno value.
func errno(err error) int64 {
	var fault *mm.FaultError
	switch {
	case err == nil:
		return 0
	case errors.As(err, &fault):
		return -EFAULT
	case errors.Is(err, mm.ErrStringTooLong):
		return -ENAMETOOLONG
	case errors.Is(err, mm.ErrOutOfMemory), errors.Is(err, mm.ErrOverlap):
		return -ENOMEM
	case errors.Is(err, fs.ErrNotFound):
		return -ENOENT
	case errors.Is(err, fs.ErrIsDir):
		return -EISDIR
	case errors.Is(err, fs.ErrNotDir):
		return -ENOTDIR
	case errors.Is(err, fs.ErrNameTooLong):
		return -ENAMETOOLONG
	case errors.Is(err, task.ErrMultiThreaded), errors.Is(err, task.ErrBadSignal), errors.Is(err, task.ErrBadMapping):
		return -EINVAL
	case errors.Is(err, task.ErrNoProcess):
		return -ESRCH
	case errors.Is(err, task.ErrNoChild):
		return -ECHILD
	}
	return -EINVAL
}
