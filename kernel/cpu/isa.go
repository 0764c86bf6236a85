// Package cpu interprets user-mode code for the single simulated hart.
//
// Instructions are 8 bytes: op, rd, rs1, rs2 and a little-endian int32
// immediate. Branch and jump immediates are byte offsets from the branch.
package cpu

import (
	"encoding/binary"
	"fmt"
)

const InstSize = 8

type Op uint8

const (
	OpInvalid Op = iota
	OpLI
	OpADDI
	OpADD
	OpSUB
	OpMUL
	OpAND
	OpOR
	OpSLLI
	OpSRLI
	OpLD
	OpSD
	OpLW
	OpSW
	OpLB
	OpSB
	OpBEQ
	OpBNE
	OpBLT
	OpBGE
	OpJAL
	OpJALR
	OpECALL
	opCount
)

var opNames = [...]string{
	"invalid", "li", "addi", "add", "sub", "mul", "and", "or", "slli", "srli",
	"ld", "sd", "lw", "sw", "lb", "sb", "beq", "bne", "blt", "bge", "jal", "jalr", "ecall",
}

func (op Op) String() string {
	if op < opCount {
		return opNames[op]
	}
	return fmt.Sprintf("op(%d)", uint8(op))
}

// Reg is a register index with RISC-V ABI names.
type Reg uint8

const (
	Zero Reg = iota
	RA
	SP
	GP
	TP
	T0
	T1
	T2
	S0
	S1
	A0
	A1
	A2
	A3
	A4
	A5
	A6
	A7
	S2
	S3
	S4
	S5
	S6
	S7
	S8
	S9
	S10
	S11
	T3
	T4
	T5
	T6
)

type Inst struct {
	Op           Op
	Rd, Rs1, Rs2 Reg
	Imm          int32
}

func (i Inst) Encode() [InstSize]byte {
	var b [InstSize]byte
	b[0] = byte(i.Op)
	b[1] = byte(i.Rd)
	b[2] = byte(i.Rs1)
	b[3] = byte(i.Rs2)
	binary.LittleEndian.PutUint32(b[4:], uint32(i.Imm))
	return b
}

func Decode(b [InstSize]byte) Inst {
	return Inst{
		Op:  Op(b[0]),
		Rd:  Reg(b[1]),
		Rs1: Reg(b[2]),
		Rs2: Reg(b[3]),
		Imm: int32(binary.LittleEndian.Uint32(b[4:])),
	}
}

func (i Inst) String() string {
	return fmt.Sprintf("%s x%d, x%d, x%d, %d", i.Op, i.Rd, i.Rs1, i.Rs2, i.Imm)
}
