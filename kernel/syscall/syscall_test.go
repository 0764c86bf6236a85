package syscall_test

import (
	"math"
	"strings"
	"testing"

	"kestrel/hal"
	"kestrel/kernel/exe"
	"kestrel/kernel/fs"
	"kestrel/kernel/mm"
	"kestrel/kernel/syscall"
	"kestrel/kernel/task"
	"kestrel/kernel/task/tasktest"
	"kestrel/kernel/timer"
)

type env struct {
	h *tasktest.Harness
	d *syscall.Dispatcher
}

func newEnv(t *testing.T) *env {
	t.Helper()
	hello, err := (&exe.Image{
		Entry: mm.UserBase,
		Segments: []exe.Segment{{
			Vaddr:   mm.UserBase,
			MemSize: mm.PageSize,
			Perm:    exe.PermR | exe.PermX,
			Data:    []byte{0},
		}},
	}).Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	dev := hal.NewRAM(64 * 1024)
	err = fs.Format(dev, []fs.StoreFile{
		{Name: "/bin/hello", Data: hello},
		{Name: "/etc/motd", Data: []byte("welcome\n")},
	})
	if err != nil {
		t.Fatalf("Format: %v", err)
	}
	store, err := fs.OpenStore(dev)
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	h := tasktest.New(t)
	return &env{h: h, d: syscall.New(h.K, store)}
}

func (e *env) call(tk *task.Task, id uint64, args ...uint64) int64 {
	var a [6]uint64
	copy(a[:], args)
	return e.d.Dispatch(tk, id, a)
}

// scratch maps two heap pages for the calling process and returns their base.
func scratch(t *testing.T, tk *task.Task) uint64 {
	if _, err := tk.Process().Brk(mm.HeapBase + 2*mm.PageSize); err != nil {
		t.Errorf("Brk: %v", err)
	}
	return mm.HeapBase
}

func putString(tk *task.Task, va uint64, s string) uint64 {
	tk.Process().Space().WriteBytes(va, append([]byte(s), 0))
	return va
}

func expect(t *testing.T, what string, got, want int64) {
	t.Helper()
	if got != want {
		t.Errorf("%s = %d; want %d", what, got, want)
	}
}

func TestFileCalls(t *testing.T) {
	e := newEnv(t)
	var motd, cwd string
	e.h.Spawn(t, func(tk *task.Task, _ uint64) {
		mem := scratch(t, tk)
		space := tk.Process().Space()
		buf := mem + 1024

		fd := e.call(tk, syscall.SysOpenat, ^uint64(99), putString(tk, mem, "etc/motd"), syscall.ORdonly)
		expect(t, "openat", fd, 3)
		n := e.call(tk, syscall.SysRead, uint64(fd), buf, 64)
		b := make([]byte, max(n, 0))
		space.ReadBytes(buf, b)
		motd = string(b)
		expect(t, "read at EOF", e.call(tk, syscall.SysRead, uint64(fd), buf, 64), 0)
		expect(t, "dup", e.call(tk, syscall.SysDup, uint64(fd)), 4)
		expect(t, "close", e.call(tk, syscall.SysClose, uint64(fd)), 0)
		expect(t, "close again", e.call(tk, syscall.SysClose, uint64(fd)), -syscall.EBADF)

		expect(t, "openat missing", e.call(tk, syscall.SysOpenat, 0, putString(tk, mem, "nope"), 0), -syscall.ENOENT)
		expect(t, "openat dir", e.call(tk, syscall.SysOpenat, 0, putString(tk, mem, "/etc"), 0), -syscall.EISDIR)
		expect(t, "openat for write", e.call(tk, syscall.SysOpenat, 0, putString(tk, mem, "/etc/motd"), syscall.OWronly), -syscall.EROFS)

		expect(t, "chdir", e.call(tk, syscall.SysChdir, putString(tk, mem, "/etc")), 0)
		expect(t, "chdir file", e.call(tk, syscall.SysChdir, putString(tk, mem, "motd")), -syscall.ENOTDIR)
		expect(t, "chdir missing", e.call(tk, syscall.SysChdir, putString(tk, mem, "/usr")), -syscall.ENOENT)
		expect(t, "openat relative", e.call(tk, syscall.SysOpenat, 0, putString(tk, mem, "motd"), 0), 3)

		expect(t, "getcwd", e.call(tk, syscall.SysGetcwd, buf, 64), int64(buf))
		cwd, _ = space.ReadString(buf)
		expect(t, "getcwd short", e.call(tk, syscall.SysGetcwd, buf, 4), -syscall.ERANGE)
	})
	e.h.RunToExit(t)
	if motd != "welcome\n" {
		t.Fatalf("read = %q; want %q", motd, "welcome\n")
	}
	if cwd != "/etc" {
		t.Fatalf("cwd = %q; want /etc", cwd)
	}
}

func TestMmapCalls(t *testing.T) {
	e := newEnv(t)
	const (
		fileAt = 0x5000_0000
		anonAt = 0x5000_2000
	)
	var (
		mapped       string
		readOnly     error
		afterUnmap   error
		freeBefore   int
		freeAfter    int
		anonReadBack uint64
	)
	e.h.Spawn(t, func(tk *task.Task, _ uint64) {
		mem := scratch(t, tk)
		p := tk.Process()
		fd := e.call(tk, syscall.SysOpenat, 0, putString(tk, mem, "/etc/motd"), syscall.ORdonly)
		expect(t, "openat", fd, 3)
		freeBefore = e.h.Frames.Free()

		expect(t, "mmap file", e.call(tk, syscall.SysMmap, fileAt, mm.PageSize, syscall.ProtRead, syscall.MapPrivate, uint64(fd), 0), fileAt)
		b := make([]byte, 10)
		if err := p.Space().Load(fileAt, b); err != nil {
			t.Errorf("Load mapped file: %v", err)
		}
		mapped = string(b)
		readOnly = p.Space().Store(fileAt, []byte{1})

		expect(t, "mmap overlap", e.call(tk, syscall.SysMmap, fileAt, mm.PageSize, syscall.ProtRead, syscall.MapAnonymous, 0, 0), -syscall.ENOMEM)
		expect(t, "mmap unaligned", e.call(tk, syscall.SysMmap, fileAt+8, mm.PageSize, syscall.ProtRead, syscall.MapAnonymous, 0, 0), -syscall.EINVAL)
		expect(t, "mmap no prot", e.call(tk, syscall.SysMmap, anonAt, mm.PageSize, 0, syscall.MapAnonymous, 0, 0), -syscall.EINVAL)
		expect(t, "mmap past limit", e.call(tk, syscall.SysMmap, mm.MmapLimit, mm.PageSize, syscall.ProtRead, syscall.MapAnonymous, 0, 0), -syscall.EINVAL)
		expect(t, "mmap bad fd", e.call(tk, syscall.SysMmap, anonAt, mm.PageSize, syscall.ProtRead, 0, 9, 0), -syscall.EBADF)
		expect(t, "mmap stdout", e.call(tk, syscall.SysMmap, anonAt, mm.PageSize, syscall.ProtRead, 0, 1, 0), -syscall.EACCES)
		expect(t, "pipe", e.call(tk, syscall.SysPipe, mem), 0)
		rfd, _ := p.Space().ReadUint32(mem)
		expect(t, "mmap pipe", e.call(tk, syscall.SysMmap, anonAt, mm.PageSize, syscall.ProtRead, 0, uint64(rfd), 0), -syscall.ENODEV)

		expect(t, "mmap anonymous", e.call(tk, syscall.SysMmap, anonAt, 2*mm.PageSize, syscall.ProtRead|syscall.ProtWrite, syscall.MapAnonymous, 0, 0), anonAt)
		if err := p.Space().StoreUint64(anonAt+mm.PageSize, 42); err != nil {
			t.Errorf("StoreUint64 anonymous: %v", err)
		}
		anonReadBack, _ = p.Space().LoadUint64(anonAt + mm.PageSize)

		expect(t, "munmap partial", e.call(tk, syscall.SysMunmap, anonAt, mm.PageSize), -syscall.EINVAL)
		expect(t, "munmap heap", e.call(tk, syscall.SysMunmap, mm.HeapBase, 2*mm.PageSize), -syscall.EINVAL)
		expect(t, "munmap anonymous", e.call(tk, syscall.SysMunmap, anonAt, 2*mm.PageSize), 0)
		expect(t, "munmap file", e.call(tk, syscall.SysMunmap, fileAt, mm.PageSize), 0)
		expect(t, "munmap twice", e.call(tk, syscall.SysMunmap, fileAt, mm.PageSize), -syscall.EINVAL)
		afterUnmap = p.Space().Load(fileAt, b)
		freeAfter = e.h.Frames.Free()
	})
	e.h.RunToExit(t)
	if mapped != "welcome\n\x00\x00" {
		t.Fatalf("mapped bytes = %q; want %q", mapped, "welcome\n\x00\x00")
	}
	if readOnly == nil {
		t.Fatal("store to a read-only mapping succeeded")
	}
	if anonReadBack != 42 {
		t.Fatalf("anonymous mapping read back %d; want 42", anonReadBack)
	}
	if afterUnmap == nil {
		t.Fatal("load after munmap succeeded")
	}
	if freeAfter != freeBefore {
		t.Fatalf("free frames = %d; want %d", freeAfter, freeBefore)
	}
}

func TestPipeReadWrite(t *testing.T) {
	e := newEnv(t)
	var got string
	e.h.Spawn(t, func(tk *task.Task, _ uint64) {
		mem := scratch(t, tk)
		space := tk.Process().Space()
		expect(t, "pipe", e.call(tk, syscall.SysPipe, mem), 0)
		rfd, _ := space.ReadUint32(mem)
		wfd, _ := space.ReadUint32(mem + 4)
		if rfd != 3 || wfd != 4 {
			t.Errorf("pipe fds = %d, %d; want 3, 4", rfd, wfd)
		}
		msg := putString(tk, mem+64, "through the pipe")
		expect(t, "write", e.call(tk, syscall.SysWrite, uint64(wfd), msg, 16), 16)
		expect(t, "write to read end", e.call(tk, syscall.SysWrite, uint64(rfd), msg, 1), -syscall.EBADF)
		expect(t, "close write end", e.call(tk, syscall.SysClose, uint64(wfd)), 0)

		n := e.call(tk, syscall.SysRead, uint64(rfd), mem+512, 100)
		expect(t, "read", n, 16)
		b := make([]byte, max(n, 0))
		space.ReadBytes(mem+512, b)
		got = string(b)
		expect(t, "read at end of stream", e.call(tk, syscall.SysRead, uint64(rfd), mem+512, 100), 0)

		expect(t, "stdout", e.call(tk, syscall.SysWrite, 1, putString(tk, mem, "hi\n"), 3), 3)
		expect(t, "write from unmapped", e.call(tk, syscall.SysWrite, 1, 0x3000_0000, 3), -syscall.EFAULT)
		expect(t, "read into text", e.call(tk, syscall.SysRead, uint64(rfd), mm.UserBase, 1), -syscall.EFAULT)
		expect(t, "read bad fd", e.call(tk, syscall.SysRead, 99, mem, 1), -syscall.EBADF)
	})
	e.h.RunToExit(t)
	if got != "through the pipe" {
		t.Fatalf("pipe carried %q", got)
	}
	if out := e.h.Console.String(); out != "hi\n" {
		t.Fatalf("console = %q; want hi", out)
	}
}

func TestForkExecWait(t *testing.T) {
	e := newEnv(t)
	var (
		childPid int64
		reaped   int64
		status   uint32
		execCx   uint64
		execArgc int64
	)
	e.h.Spawn(t, func(tk *task.Task, arg uint64) {
		p := tk.Process()
		if p.Pid() != 0 {
			// The forked child re-enters here with a0 = 0.
			mem := scratch(t, tk)
			argv := mem + 256
			space := p.Space()
			space.WriteUint64(argv, putString(tk, mem, "hello"))
			space.WriteUint64(argv+8, putString(tk, mem+16, "world"))
			space.WriteUint64(argv+16, 0)
			execArgc = e.call(tk, syscall.SysExec, putString(tk, mem+32, "/bin/hello"), argv, 0)
			execCx = tk.TrapContext().Sepc
			e.call(tk, syscall.SysExit, 42)
			return
		}
		mem := scratch(t, tk)
		expect(t, "getpid", e.call(tk, syscall.SysGetpid), 0)
		expect(t, "gettid", e.call(tk, syscall.SysGettid), 0)
		expect(t, "waitpid without children", e.call(tk, syscall.SysWaitpid, ^uint64(0), mem), -1)
		childPid = e.call(tk, syscall.SysFork)
		reaped = e.call(tk, syscall.SysWaitpid, ^uint64(0), mem)
		status, _ = p.Space().ReadUint32(mem)
		expect(t, "missing exec", e.call(tk, syscall.SysExec, putString(tk, mem, "/bin/none"), 0, 0), -syscall.ENOENT)
		expect(t, "exec of a non-image", e.call(tk, syscall.SysExec, putString(tk, mem, "/etc/motd"), 0, 0), -syscall.ENOEXEC)
	})
	e.h.RunToExit(t)
	if childPid != 1 || reaped != 1 {
		t.Fatalf("fork = %d, waitpid = %d; want 1, 1", childPid, reaped)
	}
	if status != 42 {
		t.Fatalf("status = %d; want 42", status)
	}
	if execArgc != 2 || execCx != mm.UserBase {
		t.Fatalf("exec = %d with entry %#x; want 2 and %#x", execArgc, execCx, mm.UserBase)
	}
}

func TestMultiThreadedForkIsInvalid(t *testing.T) {
	e := newEnv(t)
	e.h.Spawn(t, func(tk *task.Task, _ uint64) {
		spin := e.h.Entry(func(*task.Task, uint64) { e.h.Yield(3) })
		e.call(tk, syscall.SysThreadCreate, spin, 0)
		expect(t, "fork", e.call(tk, syscall.SysFork), -syscall.EINVAL)
	})
	e.h.RunToExit(t)
}

func TestThreadAndSyncCalls(t *testing.T) {
	e := newEnv(t)
	e.h.Spawn(t, func(tk *task.Task, _ uint64) {
		worker := e.h.Entry(func(wt *task.Task, arg uint64) {
			e.call(wt, syscall.SysMutexLock, 0)
			e.call(wt, syscall.SysSemUp, 0)
			e.call(wt, syscall.SysMutexUnlock, 0)
			e.call(wt, syscall.SysExit, arg+1)
		})
		expect(t, "mutex_create", e.call(tk, syscall.SysMutexCreate, 1), 0)
		expect(t, "semaphore_create", e.call(tk, syscall.SysSemCreate, 0), 0)
		expect(t, "condvar_create", e.call(tk, syscall.SysCondCreate), 0)
		tid := e.call(tk, syscall.SysThreadCreate, worker, 4)
		expect(t, "thread_create", tid, 1)
		expect(t, "semaphore_down", e.call(tk, syscall.SysSemDown, 0), 0)

		code := e.call(tk, syscall.SysWaittid, uint64(tid))
		for code == -2 {
			e.call(tk, syscall.SysYield)
			code = e.call(tk, syscall.SysWaittid, uint64(tid))
		}
		expect(t, "waittid", code, 5)
		expect(t, "waittid self", e.call(tk, syscall.SysWaittid, 0), -1)
		expect(t, "waittid unknown", e.call(tk, syscall.SysWaittid, 9), -1)

		expect(t, "unlock unlocked", e.call(tk, syscall.SysMutexUnlock, 0), -syscall.EPERM)
		expect(t, "lock bad id", e.call(tk, syscall.SysMutexLock, 3), -syscall.EINVAL)
		expect(t, "semaphore_up bad id", e.call(tk, syscall.SysSemUp, 7), -syscall.EINVAL)
		expect(t, "condvar_signal", e.call(tk, syscall.SysCondSignal, 0), 0)
		expect(t, "condvar_wait bad mutex", e.call(tk, syscall.SysCondWait, 0, 5), -syscall.EINVAL)
		expect(t, "negative semaphore", e.call(tk, syscall.SysSemCreate, ^uint64(0)), -syscall.EINVAL)
	})
	e.h.RunToExit(t)
}

func TestTimeCalls(t *testing.T) {
	e := newEnv(t)
	var before, after int64
	var sec, usec uint64
	e.h.Spawn(t, func(tk *task.Task, _ uint64) {
		mem := scratch(t, tk)
		space := tk.Process().Space()
		before = e.call(tk, syscall.SysGetTime, 0)
		space.WriteUint64(mem, 0)
		space.WriteUint64(mem+8, 5_000_000)
		expect(t, "sleep", e.call(tk, syscall.SysSleep, mem), 0)
		after = e.call(tk, syscall.SysGetTime, mem+16)
		sec, _ = space.ReadUint64(mem + 16)
		usec, _ = space.ReadUint64(mem + 24)
		space.WriteUint64(mem+8, 2_000_000_000)
		expect(t, "sleep with bad nsec", e.call(tk, syscall.SysSleep, mem), -syscall.EINVAL)
		space.WriteUint64(mem, math.MaxUint64/timer.ClockFreq+1)
		space.WriteUint64(mem+8, 0)
		expect(t, "sleep past the clock range", e.call(tk, syscall.SysSleep, mem), -syscall.EINVAL)
		space.WriteUint64(mem, syscall.MaxSleepSec+1)
		expect(t, "sleep too long", e.call(tk, syscall.SysSleep, mem), -syscall.EINVAL)
	})
	e.h.RunToExit(t)
	if after-before < 5 {
		t.Fatalf("slept %d ms; want at least 5", after-before)
	}
	if got := int64(sec*1000 + usec/1000); got != after {
		t.Fatalf("timeval = %d.%06d; want %d ms", sec, usec, after)
	}
}

func TestKillAndUnknown(t *testing.T) {
	e := newEnv(t)
	var sigs task.SignalFlags
	e.h.Spawn(t, func(tk *task.Task, _ uint64) {
		expect(t, "kill", e.call(tk, syscall.SysKill, 0, uint64(task.SIGUSR1)), 0)
		expect(t, "kill unknown pid", e.call(tk, syscall.SysKill, 12, uint64(task.SIGUSR1)), -1)
		expect(t, "kill empty mask", e.call(tk, syscall.SysKill, 0, 0), -1)
		expect(t, "kill wide mask", e.call(tk, syscall.SysKill, 0, 1<<32), -1)
		expect(t, "kill SIGDEF", e.call(tk, syscall.SysKill, 0, uint64(task.SIGDEF)), 0)
		expect(t, "unknown", e.call(tk, 999), -syscall.ENOSYS)
		sigs = tk.Process().Signals()
	})
	e.h.RunToExit(t)
	if sigs != task.SIGUSR1|task.SIGDEF {
		t.Fatalf("signals = %v; want SIGUSR1|SIGDEF", sigs)
	}
	if !strings.HasPrefix(syscall.Name(999), "sys_") || syscall.Name(syscall.SysWaitpid) != "waitpid" {
		t.Fatalf("Name mismatch: %q %q", syscall.Name(999), syscall.Name(syscall.SysWaitpid))
	}
}
