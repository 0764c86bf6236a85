package user

import (
	"kestrel/kernel/cpu/asm"
	"kestrel/kernel/syscall"
)

// initProgram forks and execs each argument in turn, then reaps children,
// including orphans reparented to it, until none remain. Without arguments
// it runs /bin/hello.
func initProgram() *asm.Program {
	p := asm.New()
	p.Label("main")
	p.Mv(s0, a0)
	p.Mv(s1, a1)
	p.Li(t0, 2)
	p.Bge(s0, t0, "spawn_start")
	p.Li(s0, 2)
	p.La(s1, "default_argv")
	p.Label("spawn_start")
	p.Li(s2, 1)
	p.Label("spawn")
	p.Bge(s2, s0, "reap")
	p.Li(a0, 0)
	p.Li(a1, 0)
	p.Syscall(syscall.SysFork)
	p.Beq(a0, zero, "child")
	p.Blt(a0, zero, "fork_failed")
	p.Addi(s2, s2, 1)
	p.J("spawn")

	p.Label("child")
	p.Slli(t0, s2, 3)
	p.Add(t0, s1, t0)
	p.Ld(s3, t0, 0)
	p.La(t1, "child_argv")
	p.Sd(s3, t1, 0)
	p.Mv(a0, s3)
	p.Mv(a1, t1)
	p.Li(a2, 0)
	p.Syscall(syscall.SysExec)
	puts(p, "exec_failed_msg")
	p.Mv(a0, s3)
	p.Call("puts")
	puts(p, "nl")
	exit(p, -1)

	p.Label("fork_failed")
	puts(p, "fork_failed_msg")
	p.Label("reap")
	p.Li(a0, -1)
	p.La(a1, "status")
	p.Syscall(syscall.SysWaitpid)
	p.Blt(a0, zero, "done")
	p.Mv(s4, a0)
	puts(p, "reaped")
	p.Mv(a0, s4)
	p.Call("putu")
	puts(p, "code")
	p.La(t0, "status")
	p.Lw(a0, t0, 0)
	p.Call("putd")
	puts(p, "nl")
	p.J("reap")
	p.Label("done")
	exit(p, 0)

	p.Words("default_argv", "init_name", "hello_name", 0)
	p.Words("child_argv", 0, 0)
	p.Space("status", 8)
	p.String("init_name", "/bin/init")
	p.String("hello_name", "/bin/hello")
	p.String("exec_failed_msg", "init: exec failed: ")
	p.String("fork_failed_msg", "init: fork failed\n")
	p.String("reaped", "init: pid ")
	p.String("code", " exited with code ")
	p.String("nl", "\n")
	lib(p)
	return p
}

// ForkChildren is how many children forktest creates.
const ForkChildren = 4

// forktest forks children that exit with their own pid, then checks every
// reaped status against the pid waitpid reported.
func forktest() *asm.Program {
	p := asm.New()
	p.Label("main")
	p.Li(s0, 0)
	p.Li(s1, ForkChildren)
	p.Label("fork")
	p.Bge(s0, s1, "wait")
	p.Li(a0, 0)
	p.Li(a1, 0)
	p.Syscall(syscall.SysFork)
	p.Beq(a0, zero, "child")
	p.Blt(a0, zero, "bad")
	p.Addi(s0, s0, 1)
	p.J("fork")

	p.Label("child")
	puts(p, "child_msg")
	p.Syscall(syscall.SysGetpid)
	p.Mv(s2, a0)
	p.Call("putu")
	puts(p, "nl")
	p.Mv(a0, s2)
	p.Syscall(syscall.SysExit)

	p.Label("wait")
	p.Li(s2, 0)
	p.Label("wait_next")
	p.Li(a0, -1)
	p.La(a1, "status")
	p.Syscall(syscall.SysWaitpid)
	p.Blt(a0, zero, "check")
	p.La(t0, "status")
	p.Lw(t1, t0, 0)
	p.Bne(t1, a0, "bad")
	p.Addi(s2, s2, 1)
	p.J("wait_next")
	p.Label("check")
	p.Bne(s2, s1, "bad")
	puts(p, "ok")
	exit(p, 0)
	p.Label("bad")
	puts(p, "fail")
	exit(p, 1)

	p.Space("status", 8)
	p.String("child_msg", "forktest: child ")
	p.String("nl", "\n")
	p.String("ok", "forktest passed\n")
	p.String("fail", "forktest failed\n")
	lib(p)
	return p
}

// PipeMessage is what pipetest sends from parent to child.
const PipeMessage = "Hello from the other end of the pipe!\n"

func pipetest() *asm.Program {
	p := asm.New()
	p.Label("main")
	p.La(a0, "fds")
	p.Syscall(syscall.SysPipe)
	p.Bne(a0, zero, "bad")
	p.La(t0, "fds")
	p.Lw(s0, t0, 0)
	p.Lw(s1, t0, 4)
	p.Li(a0, 0)
	p.Li(a1, 0)
	p.Syscall(syscall.SysFork)
	p.Beq(a0, zero, "child")
	p.Blt(a0, zero, "bad")

	p.Mv(a0, s0)
	p.Syscall(syscall.SysClose)
	p.Mv(a0, s1)
	p.La(a1, "msg")
	p.Li(a2, int32(len(PipeMessage)))
	p.Syscall(syscall.SysWrite)
	p.Mv(a0, s1)
	p.Syscall(syscall.SysClose)
	p.Li(a0, -1)
	p.La(a1, "status")
	p.Syscall(syscall.SysWaitpid)
	p.Blt(a0, zero, "bad")
	p.La(t0, "status")
	p.Lw(t1, t0, 0)
	p.Bne(t1, zero, "bad")
	puts(p, "ok")
	exit(p, 0)
	p.Label("bad")
	puts(p, "fail")
	exit(p, 1)

	// The child drains the pipe until every writer is gone.
	p.Label("child")
	p.Mv(a0, s1)
	p.Syscall(syscall.SysClose)
	p.Li(s2, 0)
	p.Label("child_read")
	p.Mv(a0, s0)
	p.La(a1, "buf")
	p.Li(a2, 16)
	p.Syscall(syscall.SysRead)
	p.Beq(a0, zero, "child_done")
	p.Blt(a0, zero, "child_bad")
	p.Add(s2, s2, a0)
	p.Mv(a2, a0)
	p.Li(a0, 1)
	p.La(a1, "buf")
	p.Syscall(syscall.SysWrite)
	p.J("child_read")
	p.Label("child_done")
	p.Li(t0, int32(len(PipeMessage)))
	p.Bne(s2, t0, "child_bad")
	exit(p, 0)
	p.Label("child_bad")
	exit(p, 1)

	p.Space("fds", 8)
	p.Space("status", 8)
	p.Space("buf", 16)
	p.String("msg", PipeMessage)
	p.String("ok", "pipetest passed\n")
	p.String("fail", "pipetest failed\n")
	lib(p)
	return p
}
