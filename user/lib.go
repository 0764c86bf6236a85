package user

import (
	"kestrel/kernel/cpu/asm"
	"kestrel/kernel/syscall"
)

// Every program links this small runtime. Routines are leaves: they use
// t0-t4 and a0-a7 and return through ra, so callers keep state in s0-s5.
func lib(p *asm.Program) {
	// puts(a0 = NUL-terminated string)
	p.Label("puts")
	p.Mv(t0, a0)
	p.Mv(t1, a0)
	p.Label("puts_scan")
	p.Lb(t2, t1, 0)
	p.Beq(t2, zero, "puts_write")
	p.Addi(t1, t1, 1)
	p.J("puts_scan")
	p.Label("puts_write")
	p.Sub(a2, t1, t0)
	p.Mv(a1, t0)
	p.Li(a0, 1)
	p.Syscall(syscall.SysWrite)
	p.Ret()

	// putd(a0 = signed value)
	p.Label("putd")
	p.Bge(a0, zero, "putu")
	p.Mv(t4, a0)
	p.Li(a0, 1)
	p.La(a1, "lib_minus")
	p.Li(a2, 1)
	p.Syscall(syscall.SysWrite)
	p.Sub(a0, zero, t4)

	// putu(a0 = value below 1<<63) in decimal, by subtracting powers of ten.
	p.Label("putu")
	p.La(t0, "lib_numbuf")
	p.Mv(t1, a0)
	p.La(t2, "lib_pow10")
	p.Li(t3, 0)
	p.Label("putu_next")
	p.Ld(a1, t2, 0)
	p.Beq(a1, zero, "putu_out")
	p.Li(a2, 0)
	p.Label("putu_sub")
	p.Blt(t1, a1, "putu_digit")
	p.Sub(t1, t1, a1)
	p.Addi(a2, a2, 1)
	p.J("putu_sub")
	p.Label("putu_digit")
	p.Addi(t2, t2, 8)
	p.Bne(a2, zero, "putu_emit")
	p.Bne(t3, zero, "putu_emit")
	p.Ld(a3, t2, 0)
	p.Beq(a3, zero, "putu_emit")
	p.J("putu_next")
	p.Label("putu_emit")
	p.Li(t3, 1)
	p.Addi(a2, a2, '0')
	p.Sb(a2, t0, 0)
	p.Addi(t0, t0, 1)
	p.J("putu_next")
	p.Label("putu_out")
	p.La(a1, "lib_numbuf")
	p.Sub(a2, t0, a1)
	p.Li(a0, 1)
	p.Syscall(syscall.SysWrite)
	p.Ret()

	pow := make([]any, 0, 20)
	for v := uint64(1_000_000_000_000_000_000); v > 0; v /= 10 {
		pow = append(pow, v)
	}
	p.Words("lib_pow10", append(pow, 0)...)
	p.Space("lib_numbuf", 24)
	p.String("lib_minus", "-")
}

func exit(p *asm.Program, code int32) {
	p.Li(a0, code)
	p.Syscall(syscall.SysExit)
}

func puts(p *asm.Program, label string) {
	p.La(a0, label)
	p.Call("puts")
}

// join waits for the thread whose tid is in reg, yielding while it runs.
// The exit code is left in a0.
func join(p *asm.Program, reg asm.Reg, label string) {
	p.Label(label)
	p.Mv(a0, reg)
	p.Syscall(syscall.SysWaittid)
	p.Li(t0, -2)
	p.Bne(a0, t0, label+"_done")
	p.Syscall(syscall.SysYield)
	p.J(label)
	p.Label(label + "_done")
}
