// Package syscall decodes system calls raised by user threads and carries
// them out against the task, sync and file layers.
package syscall

import "fmt"

const (
	SysGetcwd       = 17
	SysDup          = 23
	SysChdir        = 49
	SysOpenat       = 56
	SysClose        = 57
	SysPipe         = 59
	SysRead         = 63
	SysWrite        = 64
	SysExit         = 93
	SysSleep        = 101
	SysYield        = 124
	SysKill         = 129
	SysGetTime      = 169
	SysGetpid       = 172
	SysGetppid      = 173
	SysGettid       = 178
	SysBrk          = 214
	SysMunmap       = 215
	SysFork         = 220
	SysExec         = 221
	SysMmap         = 222
	SysWaitpid      = 260
	SysThreadCreate = 460
	SysWaittid      = 462
	SysMutexCreate  = 463
	SysMutexLock    = 464
	SysMutexUnlock  = 466
	SysSemCreate    = 467
	SysSemUp        = 468
	SysSemDown      = 470
	SysCondCreate   = 471
	SysCondSignal   = 472
	SysCondWait     = 473
)

var names = map[uint64]string{
	SysGetcwd:       "getcwd",
	SysDup:          "dup",
	SysChdir:        "chdir",
	SysOpenat:       "openat",
	SysClose:        "close",
	SysPipe:         "pipe",
	SysRead:         "read",
	SysWrite:        "write",
	SysExit:         "exit",
	SysSleep:        "sleep",
	SysYield:        "yield",
	SysKill:         "kill",
	SysGetTime:      "get_time",
	SysGetpid:       "getpid",
	SysGetppid:      "getppid",
	SysGettid:       "gettid",
	SysBrk:          "brk",
	SysMunmap:       "munmap",
	SysFork:         "fork",
	SysExec:         "exec",
	SysMmap:         "mmap",
	SysWaitpid:      "waitpid",
	SysThreadCreate: "thread_create",
	SysWaittid:      "waittid",
	SysMutexCreate:  "mutex_create",
	SysMutexLock:    "mutex_lock",
	SysMutexUnlock:  "mutex_unlock",
	SysSemCreate:    "semaphore_create",
	SysSemUp:        "semaphore_up",
	SysSemDown:      "semaphore_down",
	SysCondCreate:   "condvar_create",
	SysCondSignal:   "condvar_signal",
	SysCondWait:     "condvar_wait",
}

// Name returns the name of system call id.
func Name(id uint64) string {
	if n, ok := names[id]; ok {
		return n
	}
	return fmt.Sprintf("sys_%d", id)
}

// Errno values; handlers return them negated.
const (
	EPERM        = 1
	ENOENT       = 2
	ESRCH        = 3
	EINTR        = 4
	ENOEXEC      = 8
	EBADF        = 9
	ECHILD       = 10
	ENOMEM       = 12
	EACCES       = 13
	EFAULT       = 14
	ENODEV       = 19
	ENOTDIR      = 20
	EISDIR       = 21
	EINVAL       = 22
	EROFS        = 30
	ERANGE       = 34
	ENAMETOOLONG = 36
	ENOSYS       = 38
)

// Open flags understood by openat. Only read-only opens succeed.
const (
	ORdonly = 0o0
	OWronly = 0o1
	ORdwr   = 0o2
	OCreat  = 0o100
	OTrunc  = 0o1000
)

// mmap protection and flag bits.
const (
	ProtRead  = 0x1
	ProtWrite = 0x2
	ProtExec  = 0x4

	MapShared    = 0x01
	MapPrivate   = 0x02
	MapAnonymous = 0x20
)
