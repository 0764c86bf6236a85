package user

import (
	"kestrel/kernel/cpu/asm"
	"kestrel/kernel/syscall"
)

func hello() *asm.Program {
	p := asm.New()
	p.Label("main")
	puts(p, "msg")
	exit(p, 0)
	p.String("msg", "Hello, world!\n")
	lib(p)
	return p
}

func exitProgram() *asm.Program {
	p := asm.New()
	p.Label("main")
	p.Addi(a0, a0, -1)
	p.Syscall(syscall.SysExit)
	return p
}

func fault() *asm.Program {
	p := asm.New()
	p.Label("main")
	puts(p, "msg")
	p.Li(t0, 0)
	p.Sd(t0, t0, 0)
	exit(p, 0)
	p.String("msg", "fault: storing through a null pointer\n")
	lib(p)
	return p
}

// SleepMillis is how long the sleep program sleeps.
const SleepMillis = 50

func sleep() *asm.Program {
	p := asm.New()
	p.Label("main")
	p.Li(a0, 0)
	p.Syscall(syscall.SysGetTime)
	p.Mv(s0, a0)
	p.La(a0, "req")
	p.Syscall(syscall.SysSleep)
	p.Bne(a0, zero, "bad")
	p.Li(a0, 0)
	p.Syscall(syscall.SysGetTime)
	p.Sub(s1, a0, s0)
	p.Li(t0, SleepMillis)
	p.Blt(s1, t0, "bad")
	puts(p, "slept")
	p.Mv(a0, s1)
	p.Call("putu")
	puts(p, "ok")
	exit(p, 0)
	p.Label("bad")
	puts(p, "fail")
	exit(p, 1)
	p.Words("req", 0, SleepMillis*1_000_000)
	p.String("slept", "slept ")
	p.String("ok", " ms\nsleep passed\n")
	p.String("fail", "sleep failed\n")
	lib(p)
	return p
}

// cat copies argv[1] to stdout, or echoes stdin until EOT (^D).
func cat() *asm.Program {
	p := asm.New()
	p.Label("main")
	p.Li(s0, 0)
	p.Li(t0, 2)
	p.Blt(a0, t0, "copy")
	p.Ld(a1, a1, 8)
	p.Li(a0, -100)
	p.Li(a2, 0)
	p.Syscall(syscall.SysOpenat)
	p.Blt(a0, zero, "missing")
	p.Mv(s0, a0)
	p.Label("copy")
	p.Mv(a0, s0)
	p.La(a1, "buf")
	p.Li(a2, 64)
	p.Syscall(syscall.SysRead)
	p.Bge(zero, a0, "done")
	p.Mv(s1, a0)
	p.Bne(s0, zero, "emit")
	p.La(t0, "buf")
	p.Lb(t1, t0, 0)
	p.Li(t2, 4)
	p.Beq(t1, t2, "done")
	p.Label("emit")
	p.Li(a0, 1)
	p.La(a1, "buf")
	p.Mv(a2, s1)
	p.Syscall(syscall.SysWrite)
	p.J("copy")
	p.Label("done")
	exit(p, 0)
	p.Label("missing")
	puts(p, "nofile")
	exit(p, 1)
	p.Space("buf", 64)
	p.String("nofile", "cat: no such file\n")
	lib(p)
	return p
}
