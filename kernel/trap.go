package kernel

import (
	"kestrel/kernel/cpu"
	"kestrel/kernel/task"
)

// Exit codes of threads the kernel kills.
const (
	ExitPageFault          = -2
	ExitIllegalInstruction = -3
)

func (s *System) pendingIRQ() bool { return s.irq.Swap(false) }

// userLoop runs t in user mode and handles its traps. It only returns by
// way of ExitCurrentAndRunNext.
func (s *System) userLoop(t *task.Task) {
	for {
		p := t.Process()
		cx := t.TrapContext()
		tr := cpu.Execute(p.Space(), &cx, s.clock.Budget(), s.pendingIRQ)
		s.clock.Advance(tr.Cycles)

		switch tr.Cause {
		case cpu.CauseSyscall:
			cx.Sepc += cpu.InstSize
			t.SetTrapContext(cx)
			ret := s.sys.Dispatch(t, cx.X[17], cx.Args())
			// exec may have replaced the trap context.
			cx = t.TrapContext()
			cx.X[10] = uint64(ret)
			t.SetTrapContext(cx)
		case cpu.CauseTimer:
			t.SetTrapContext(cx)
			s.clock.SetNextTrigger()
			s.k.SuspendCurrentAndRunNext()
		case cpu.CauseFetchFault, cpu.CauseLoadFault, cpu.CauseStoreFault:
			t.SetTrapContext(cx)
			s.log.Errorf("%v in application, bad addr = %#x, bad instruction = %#x, kernel killed it.", tr.Cause, tr.Addr, cx.Sepc)
			s.k.ExitCurrentAndRunNext(ExitPageFault)
		case cpu.CauseIllegal:
			t.SetTrapContext(cx)
			s.log.Errorf("IllegalInstruction %v in application, kernel killed it.", tr.Inst)
			s.k.ExitCurrentAndRunNext(ExitIllegalInstruction)
		}

		if code, msg, ok := t.Process().TakeFatalSignal(); ok {
			s.log.Errorf("pid %d: %s", t.Process().Pid(), msg)
			s.k.ExitCurrentAndRunNext(code)
		}
	}
}
