package cpu

import (
	"encoding/binary"
	"errors"

	"kestrel/kernel/mm"
	"kestrel/kernel/trap"
)

// Memory is the user-mode view of an address space.
type Memory interface {
	Fetch(va uint64, p []byte) error
	Load(va uint64, p []byte) error
	Store(va uint64, p []byte) error
}

type Cause uint8

const (
	CauseSyscall Cause = iota + 1
	CauseTimer
	CauseFetchFault
	CauseLoadFault
	CauseStoreFault
	CauseIllegal
)

func (c Cause) String() string {
	switch c {
	case CauseSyscall:
		return "UserEnvCall"
	case CauseTimer:
		return "SupervisorTimer"
	case CauseFetchFault:
		return "InstructionPageFault"
	case CauseLoadFault:
		return "LoadPageFault"
	case CauseStoreFault:
		return "StorePageFault"
	case CauseIllegal:
		return "IllegalInstruction"
	default:
		return "Unknown"
	}
}

// Trap is why Execute returned to the kernel.
type Trap struct {
	Cause  Cause
	Addr   uint64 // faulting address (stval)
	Inst   Inst
	Cycles uint64
}

func faultAddr(err error, fallback uint64) uint64 {
	var fe *mm.FaultError
	if errors.As(err, &fe) {
		return fe.Addr
	}
	return fallback
}

// Execute runs user code from cx.Sepc until a trap. It retires at most budget
// instructions, and stops early with CauseTimer once irq reports pending.
// On return cx.Sepc is the address of the trapping (not yet retired) instruction.
func Execute(mem Memory, cx *trap.Context, budget uint64, irq func() bool) Trap {
	x := &cx.X
	pc := cx.Sepc
	var raw [InstSize]byte
	var buf [8]byte
	var n uint64
	for {
		if n >= budget || (irq != nil && irq()) {
			cx.Sepc = pc
			return Trap{Cause: CauseTimer, Cycles: n}
		}
		if err := mem.Fetch(pc, raw[:]); err != nil {
			cx.Sepc = pc
			return Trap{Cause: CauseFetchFault, Addr: faultAddr(err, pc), Cycles: n}
		}
		in := Decode(raw)
		if in.Rd > T6 || in.Rs1 > T6 || in.Rs2 > T6 || in.Op == OpInvalid || in.Op >= opCount {
			cx.Sepc = pc
			return Trap{Cause: CauseIllegal, Inst: in, Cycles: n}
		}
		n++
		rs1, rs2, imm := x[in.Rs1], x[in.Rs2], uint64(int64(in.Imm))
		next := pc + InstSize
		switch in.Op {
		case OpLI:
			x[in.Rd] = imm
		case OpADDI:
			x[in.Rd] = rs1 + imm
		case OpADD:
			x[in.Rd] = rs1 + rs2
		case OpSUB:
			x[in.Rd] = rs1 - rs2
		case OpMUL:
			x[in.Rd] = rs1 * rs2
		case OpAND:
			x[in.Rd] = rs1 & rs2
		case OpOR:
			x[in.Rd] = rs1 | rs2
		case OpSLLI:
			x[in.Rd] = rs1 << (imm & 63)
		case OpSRLI:
			x[in.Rd] = rs1 >> (imm & 63)
		case OpLD, OpLW, OpLB:
			size := loadSize(in.Op)
			addr := rs1 + imm
			if err := mem.Load(addr, buf[:size]); err != nil {
				cx.Sepc = pc
				return Trap{Cause: CauseLoadFault, Addr: faultAddr(err, addr), Inst: in, Cycles: n}
			}
			switch in.Op {
			case OpLD:
				x[in.Rd] = binary.LittleEndian.Uint64(buf[:])
			case OpLW:
				x[in.Rd] = uint64(int64(int32(binary.LittleEndian.Uint32(buf[:]))))
			default:
				x[in.Rd] = uint64(buf[0])
			}
		case OpSD, OpSW, OpSB:
			size := loadSize(in.Op)
			addr := rs1 + imm
			binary.LittleEndian.PutUint64(buf[:], rs2)
			if err := mem.Store(addr, buf[:size]); err != nil {
				cx.Sepc = pc
				return Trap{Cause: CauseStoreFault, Addr: faultAddr(err, addr), Inst: in, Cycles: n}
			}
		case OpBEQ:
			if rs1 == rs2 {
				next = pc + imm
			}
		case OpBNE:
			if rs1 != rs2 {
				next = pc + imm
			}
		case OpBLT:
			if int64(rs1) < int64(rs2) {
				next = pc + imm
			}
		case OpBGE:
			if int64(rs1) >= int64(rs2) {
				next = pc + imm
			}
		case OpJAL:
			x[in.Rd] = pc + InstSize
			next = pc + imm
		case OpJALR:
			x[in.Rd] = pc + InstSize
			next = rs1 + imm
		case OpECALL:
			cx.Sepc = pc
			x[Zero] = 0
			return Trap{Cause: CauseSyscall, Inst: in, Cycles: n}
		}
		x[Zero] = 0
		pc = next
	}
}

func loadSize(op Op) int {
	switch op {
	case OpLD, OpSD:
		return 8
	case OpLW, OpSW:
		return 4
	default:
		return 1
	}
}
