package user

import (
	"kestrel/kernel/cpu/asm"
	"kestrel/kernel/syscall"
)

// ThreadRounds is how many characters each threads worker prints.
const ThreadRounds = 20

// threads starts one worker per letter. Each prints its letter and exits
// with it as the exit code, which the main thread checks on join.
func threads() *asm.Program {
	p := asm.New()
	p.Label("main")
	for i, r := range []asm.Reg{s0, s1, s2} {
		p.La(a0, "worker")
		p.Li(a1, int32('a'+i))
		p.Syscall(syscall.SysThreadCreate)
		p.Blt(a0, zero, "bad")
		p.Mv(r, a0)
	}
	for i, r := range []asm.Reg{s0, s1, s2} {
		label := []string{"join_a", "join_b", "join_c"}[i]
		join(p, r, label)
		p.Li(t0, int32('a'+i))
		p.Bne(a0, t0, "bad")
	}
	puts(p, "ok")
	exit(p, 0)
	p.Label("bad")
	puts(p, "fail")
	exit(p, 1)

	p.Label("worker")
	p.Mv(s0, a0)
	p.Addi(sp, sp, -8)
	p.Sb(s0, sp, 0)
	p.Li(s1, 0)
	p.Li(s2, ThreadRounds)
	p.Label("worker_loop")
	p.Bge(s1, s2, "worker_done")
	p.Li(a0, 1)
	p.Mv(a1, sp)
	p.Li(a2, 1)
	p.Syscall(syscall.SysWrite)
	p.Syscall(syscall.SysYield)
	p.Addi(s1, s1, 1)
	p.J("worker_loop")
	p.Label("worker_done")
	p.Mv(a0, s0)
	p.Syscall(syscall.SysExit)

	p.String("ok", "\nthreads passed\n")
	p.String("fail", "\nthreads failed\n")
	lib(p)
	return p
}

const (
	MutexThreads = 4
	MutexRounds  = 50
)

// mutextest increments a shared counter from several threads, yielding
// between the load and the store while holding a blocking mutex.
func mutextest() *asm.Program {
	p := asm.New()
	p.Label("main")
	p.Li(a0, 1)
	p.Syscall(syscall.SysMutexCreate)
	p.Bne(a0, zero, "bad")
	p.Li(s0, 0)
	p.Li(s1, MutexThreads)
	p.Label("spawn")
	p.Bge(s0, s1, "join_start")
	p.La(a0, "worker")
	p.Mv(a1, s0)
	p.Syscall(syscall.SysThreadCreate)
	p.Blt(a0, zero, "bad")
	p.La(t0, "tids")
	p.Slli(t1, s0, 3)
	p.Add(t0, t0, t1)
	p.Sd(a0, t0, 0)
	p.Addi(s0, s0, 1)
	p.J("spawn")

	p.Label("join_start")
	p.Li(s0, 0)
	p.Label("join_next")
	p.Bge(s0, s1, "check")
	p.La(t0, "tids")
	p.Slli(t1, s0, 3)
	p.Add(t0, t0, t1)
	p.Ld(s2, t0, 0)
	join(p, s2, "join")
	p.Bne(a0, zero, "bad")
	p.Addi(s0, s0, 1)
	p.J("join_next")

	p.Label("check")
	p.La(t0, "counter")
	p.Ld(t1, t0, 0)
	p.Li(t2, MutexThreads*MutexRounds)
	p.Bne(t1, t2, "bad")
	puts(p, "ok")
	exit(p, 0)
	p.Label("bad")
	puts(p, "fail")
	exit(p, 1)

	p.Label("worker")
	p.Li(s0, 0)
	p.Li(s1, MutexRounds)
	p.Label("worker_loop")
	p.Bge(s0, s1, "worker_done")
	p.Li(a0, 0)
	p.Syscall(syscall.SysMutexLock)
	p.La(t0, "counter")
	p.Ld(t1, t0, 0)
	p.Syscall(syscall.SysYield)
	p.Addi(t1, t1, 1)
	p.Sd(t1, t0, 0)
	p.Li(a0, 0)
	p.Syscall(syscall.SysMutexUnlock)
	p.Addi(s0, s0, 1)
	p.J("worker_loop")
	p.Label("worker_done")
	exit(p, 0)

	p.Space("tids", MutexThreads*8)
	p.Space("counter", 8)
	p.String("ok", "mutextest passed\n")
	p.String("fail", "mutextest failed\n")
	lib(p)
	return p
}

// semtest blocks the main thread on a semaphore that a worker raises after
// setting a flag.
func semtest() *asm.Program {
	p := asm.New()
	p.Label("main")
	p.Li(a0, 0)
	p.Syscall(syscall.SysSemCreate)
	p.Bne(a0, zero, "bad")
	p.La(a0, "worker")
	p.Li(a1, 0)
	p.Syscall(syscall.SysThreadCreate)
	p.Blt(a0, zero, "bad")
	p.Mv(s0, a0)
	p.Li(a0, 0)
	p.Syscall(syscall.SysSemDown)
	p.La(t0, "flag")
	p.Ld(t1, t0, 0)
	p.Li(t2, 1)
	p.Bne(t1, t2, "bad")
	join(p, s0, "join")
	puts(p, "ok")
	exit(p, 0)
	p.Label("bad")
	puts(p, "fail")
	exit(p, 1)

	p.Label("worker")
	p.Syscall(syscall.SysYield)
	p.Syscall(syscall.SysYield)
	p.La(t0, "flag")
	p.Li(t1, 1)
	p.Sd(t1, t0, 0)
	p.Li(a0, 0)
	p.Syscall(syscall.SysSemUp)
	exit(p, 0)

	p.Space("flag", 8)
	p.String("ok", "semtest passed\n")
	p.String("fail", "semtest failed\n")
	lib(p)
	return p
}

// condtest waits on a condition variable until a worker sets a flag under
// the mutex and signals.
func condtest() *asm.Program {
	p := asm.New()
	p.Label("main")
	p.Li(a0, 1)
	p.Syscall(syscall.SysMutexCreate)
	p.Bne(a0, zero, "bad")
	p.Syscall(syscall.SysCondCreate)
	p.Bne(a0, zero, "bad")
	p.La(a0, "worker")
	p.Li(a1, 0)
	p.Syscall(syscall.SysThreadCreate)
	p.Blt(a0, zero, "bad")
	p.Mv(s0, a0)
	p.Li(a0, 0)
	p.Syscall(syscall.SysMutexLock)
	p.Label("wait")
	p.La(t0, "flag")
	p.Ld(t1, t0, 0)
	p.Bne(t1, zero, "woken")
	p.Li(a0, 0)
	p.Li(a1, 0)
	p.Syscall(syscall.SysCondWait)
	p.J("wait")
	p.Label("woken")
	p.Li(a0, 0)
	p.Syscall(syscall.SysMutexUnlock)
	join(p, s0, "join")
	puts(p, "ok")
	exit(p, 0)
	p.Label("bad")
	puts(p, "fail")
	exit(p, 1)

	p.Label("worker")
	p.Syscall(syscall.SysYield)
	p.Li(a0, 0)
	p.Syscall(syscall.SysMutexLock)
	p.La(t0, "flag")
	p.Li(t1, 1)
	p.Sd(t1, t0, 0)
	p.Li(a0, 0)
	p.Syscall(syscall.SysCondSignal)
	p.Li(a0, 0)
	p.Syscall(syscall.SysMutexUnlock)
	exit(p, 0)

	p.Space("flag", 8)
	p.String("ok", "condtest passed\n")
	p.String("fail", "condtest failed\n")
	lib(p)
	return p
}
