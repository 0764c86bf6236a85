package cpu_test

import (
	"testing"

	"kestrel/hal"
	"kestrel/kernel/cpu"
	"kestrel/kernel/cpu/asm"
	"kestrel/kernel/mm"
	"kestrel/kernel/trap"
)

func load(t *testing.T, p *asm.Program) (*mm.MemorySet, *trap.Context) {
	t.Helper()
	img, err := p.Image()
	if err != nil {
		t.Fatalf("Image: %v", err)
	}
	frames := mm.NewFrameAllocator(hal.NewRAM(32 * mm.PageSize))
	ms, ustack, entry, err := mm.FromImage(frames, img)
	if err != nil {
		t.Fatalf("FromImage: %v", err)
	}
	if err := ms.InsertFramedArea(ustack, ustack+mm.UserStackSize, mm.PermR|mm.PermW|mm.PermU); err != nil {
		t.Fatalf("map stack: %v", err)
	}
	cx := trap.AppInitContext(entry, ustack+mm.UserStackSize, 0, 0, trap.HandlerAddr)
	return ms, &cx
}

func TestLoopThenEcall(t *testing.T) {
	// sum 1..10 into a0, then ecall
	p := asm.New()
	p.Li(asm.A0, 0)
	p.Li(asm.T0, 1)
	p.Li(asm.T1, 11)
	p.Label("loop")
	p.Add(asm.A0, asm.A0, asm.T0)
	p.Addi(asm.T0, asm.T0, 1)
	p.Blt(asm.T0, asm.T1, "loop")
	p.Syscall(93)

	ms, cx := load(t, p)
	tr := cpu.Execute(ms, cx, 1000, nil)
	if tr.Cause != cpu.CauseSyscall {
		t.Fatalf("cause = %v; want syscall", tr.Cause)
	}
	if cx.X[cpu.A0] != 55 || cx.X[cpu.A7] != 93 {
		t.Fatalf("a0 = %d a7 = %d; want 55, 93", cx.X[cpu.A0], cx.X[cpu.A7])
	}
	if want := uint64(mm.UserBase + 7*cpu.InstSize); cx.Sepc != want {
		t.Fatalf("sepc = %#x; want %#x (the ecall)", cx.Sepc, want)
	}
}

func TestBudgetRaisesTimer(t *testing.T) {
	p := asm.New()
	p.Label("spin")
	p.Addi(asm.T0, asm.T0, 1)
	p.J("spin")

	ms, cx := load(t, p)
	tr := cpu.Execute(ms, cx, 10, nil)
	if tr.Cause != cpu.CauseTimer || tr.Cycles != 10 {
		t.Fatalf("trap = %+v; want timer after 10 cycles", tr)
	}
	if cx.X[cpu.T0] != 5 {
		t.Fatalf("t0 = %d; want 5", cx.X[cpu.T0])
	}

	irq := true
	tr = cpu.Execute(ms, cx, 10, func() bool { return irq })
	if tr.Cause != cpu.CauseTimer || tr.Cycles != 0 {
		t.Fatalf("trap = %+v; want immediate timer", tr)
	}
}

func TestFaults(t *testing.T) {
	tcs := []struct {
		name  string
		build func(p *asm.Program)
		cause cpu.Cause
		addr  uint64
	}{
		{
			name:  "load unmapped",
			build: func(p *asm.Program) {
				p.Li(asm.T0, 0x100)
				p.Ld(asm.A0, asm.T0, 0)
			},
			cause: cpu.CauseLoadFault,
			addr:  0x100,
		},
		{
			name:  "store to text",
			build: func(p *asm.Program) {
				p.Li(asm.T0, mm.UserBase)
				p.Sd(asm.A0, asm.T0, 0)
			},
			cause: cpu.CauseStoreFault,
			addr:  mm.UserBase,
		},
		{
			name:  "store to trap context",
			build: func(p *asm.Program) {
				p.Li(asm.T0, mm.TrapContextBase)
				p.Sb(asm.A0, asm.T0, 0)
			},
			cause: cpu.CauseStoreFault,
			addr:  mm.TrapContextBase,
		},
		{
			name:  "illegal",
			build: func(p *asm.Program) { p.Raw(cpu.Inst{Op: 0xEE}) },
			cause: cpu.CauseIllegal,
		},
		{
			name:  "jump off text",
			build: func(p *asm.Program) {
				p.Li(asm.T0, 0x300000)
				p.Jalr(asm.Zero, asm.T0, 0)
			},
			cause: cpu.CauseFetchFault,
			addr:  0x300000,
		},
	}
	for _, tc := range tcs {
		p := asm.New()
		tc.build(p)
		ms, cx := load(t, p)
		tr := cpu.Execute(ms, cx, 100, nil)
		if tr.Cause != tc.cause {
			t.Fatalf("%s: cause = %v; want %v", tc.name, tr.Cause, tc.cause)
		}
		if tc.addr != 0 && tr.Addr != tc.addr {
			t.Fatalf("%s: addr = %#x; want %#x", tc.name, tr.Addr, tc.addr)
		}
	}
}

func TestStackAndCalls(t *testing.T) {
	p := asm.New()
	p.Label("main")
	p.Li(asm.A0, 20)
	p.Call("double")
	p.Addi(asm.SP, asm.SP, -8)
	p.Sd(asm.A0, asm.SP, 0)
	p.Lw(asm.A1, asm.SP, 0)
	p.Ecall()
	p.Label("double")
	p.Add(asm.A0, asm.A0, asm.A0)
	p.Ret()

	ms, cx := load(t, p)
	tr := cpu.Execute(ms, cx, 100, nil)
	if tr.Cause != cpu.CauseSyscall {
		t.Fatalf("cause = %v", tr.Cause)
	}
	if cx.X[cpu.A0] != 40 || cx.X[cpu.A1] != 40 {
		t.Fatalf("a0 = %d a1 = %d; want 40", cx.X[cpu.A0], cx.X[cpu.A1])
	}
	if cx.X[cpu.Zero] != 0 {
		t.Fatal("x0 must stay zero")
	}
}
