// Package asm assembles programs for the simulated hart into KXE1 images.
//
//	p := asm.New()
//	p.La(asm.A1, "msg")
//	p.Li(asm.A2, 6)
//	p.Syscall(64)
//	p.String("msg", "hello\n")
//	img, err := p.Image()
package asm

import (
	"errors"
	"fmt"

	"kestrel/kernel/cpu"
	"kestrel/kernel/mm"
)

type Reg = cpu.Reg

const (
	Zero = cpu.Zero
	RA   = cpu.RA
	SP   = cpu.SP
	T0   = cpu.T0
	T1   = cpu.T1
	T2   = cpu.T2
	S0   = cpu.S0
	S1   = cpu.S1
	A0   = cpu.A0
	A1   = cpu.A1
	A2   = cpu.A2
	A3   = cpu.A3
	A4   = cpu.A4
	A5   = cpu.A5
	A6   = cpu.A6
	A7   = cpu.A7
	S2   = cpu.S2
	S3   = cpu.S3
	S4   = cpu.S4
	S5   = cpu.S5
	T3   = cpu.T3
	T4   = cpu.T4
)

var errEmpty = errors.New("asm: empty program")

type section uint8

const (
	secText section = iota
	secData
)

type symbol struct {
	sec section
	off uint64
}

type fixup uint8

const (
	fixNone fixup = iota
	fixRel        // imm = label - pc
	fixAbs        // imm = label address
)

type item struct {
	in  cpu.Inst
	fix fixup
	ref string
}

// Program accumulates text and data. The first error sticks and is
// reported by Image.
type Program struct {
	base    uint64
	text    []item
	data    []byte
	symbols map[string]symbol
	words   []wordRef
	err     error
}

type wordRef struct {
	off int
	ref string
}

func New() *Program {
	return &Program{base: mm.UserBase, symbols: make(map[string]symbol)}
}

func (p *Program) fail(format string, args ...any) {
	if p.err == nil {
		p.err = fmt.Errorf("asm: "+format, args...)
	}
}

func (p *Program) define(name string, s symbol) {
	if _, dup := p.symbols[name]; dup {
		p.fail("duplicate label %q", name)
		return
	}
	p.symbols[name] = s
}

func (p *Program) emit(in cpu.Inst, fix fixup, ref string) {
	p.text = append(p.text, item{in: in, fix: fix, ref: ref})
}

// Label marks the next instruction.
func (p *Program) Label(name string) {
	p.define(name, symbol{sec: secText, off: uint64(len(p.text)) * cpu.InstSize})
}

func (p *Program) op(op cpu.Op, rd, rs1, rs2 Reg, imm int32) {
	p.emit(cpu.Inst{Op: op, Rd: rd, Rs1: rs1, Rs2: rs2, Imm: imm}, fixNone, "")
}

func (p *Program) Li(rd Reg, imm int32)         { p.op(cpu.OpLI, rd, 0, 0, imm) }
func (p *Program) Addi(rd, rs1 Reg, imm int32)  { p.op(cpu.OpADDI, rd, rs1, 0, imm) }
func (p *Program) Mv(rd, rs Reg)                { p.op(cpu.OpADDI, rd, rs, 0, 0) }
func (p *Program) Add(rd, rs1, rs2 Reg)         { p.op(cpu.OpADD, rd, rs1, rs2, 0) }
func (p *Program) Sub(rd, rs1, rs2 Reg)         { p.op(cpu.OpSUB, rd, rs1, rs2, 0) }
func (p *Program) Mul(rd, rs1, rs2 Reg)         { p.op(cpu.OpMUL, rd, rs1, rs2, 0) }
func (p *Program) And(rd, rs1, rs2 Reg)         { p.op(cpu.OpAND, rd, rs1, rs2, 0) }
func (p *Program) Or(rd, rs1, rs2 Reg)          { p.op(cpu.OpOR, rd, rs1, rs2, 0) }
func (p *Program) Slli(rd, rs1 Reg, sh int32)   { p.op(cpu.OpSLLI, rd, rs1, 0, sh) }
func (p *Program) Srli(rd, rs1 Reg, sh int32)   { p.op(cpu.OpSRLI, rd, rs1, 0, sh) }
func (p *Program) Ld(rd, base Reg, off int32)   { p.op(cpu.OpLD, rd, base, 0, off) }
func (p *Program) Lw(rd, base Reg, off int32)   { p.op(cpu.OpLW, rd, base, 0, off) }
func (p *Program) Lb(rd, base Reg, off int32)   { p.op(cpu.OpLB, rd, base, 0, off) }
func (p *Program) Sd(src, base Reg, off int32)  { p.op(cpu.OpSD, 0, base, src, off) }
func (p *Program) Sw(src, base Reg, off int32)  { p.op(cpu.OpSW, 0, base, src, off) }
func (p *Program) Sb(src, base Reg, off int32)  { p.op(cpu.OpSB, 0, base, src, off) }
func (p *Program) Jalr(rd, base Reg, off int32) { p.op(cpu.OpJALR, rd, base, 0, off) }
func (p *Program) Ret()                         { p.Jalr(Zero, RA, 0) }
func (p *Program) Ecall()                       { p.op(cpu.OpECALL, 0, 0, 0, 0) }
func (p *Program) Raw(in cpu.Inst)              { p.emit(in, fixNone, "") }

func (p *Program) branch(op cpu.Op, rs1, rs2 Reg, label string) {
	p.emit(cpu.Inst{Op: op, Rs1: rs1, Rs2: rs2}, fixRel, label)
}

func (p *Program) Beq(rs1, rs2 Reg, label string) { p.branch(cpu.OpBEQ, rs1, rs2, label) }
func (p *Program) Bne(rs1, rs2 Reg, label string) { p.branch(cpu.OpBNE, rs1, rs2, label) }
func (p *Program) Blt(rs1, rs2 Reg, label string) { p.branch(cpu.OpBLT, rs1, rs2, label) }
func (p *Program) Bge(rs1, rs2 Reg, label string) { p.branch(cpu.OpBGE, rs1, rs2, label) }

// J jumps to label; Call jumps and links through ra.
func (p *Program) J(label string) {
	p.emit(cpu.Inst{Op: cpu.OpJAL, Rd: Zero}, fixRel, label)
}

func (p *Program) Call(label string) {
	p.emit(cpu.Inst{Op: cpu.OpJAL, Rd: RA}, fixRel, label)
}

// La loads the absolute address of a text or data label.
func (p *Program) La(rd Reg, label string) {
	p.emit(cpu.Inst{Op: cpu.OpLI, Rd: rd}, fixAbs, label)
}

// Syscall loads the syscall number into a7 and traps.
func (p *Program) Syscall(id int32) {
	p.Li(A7, id)
	p.Ecall()
}

func (p *Program) dataLabel(name string) {
	p.define(name, symbol{sec: secData, off: uint64(len(p.data))})
}

// Align pads the data section to a multiple of n bytes.
func (p *Program) Align(n int) {
	for len(p.data)%n != 0 {
		p.data = append(p.data, 0)
	}
}

// String places a NUL-terminated string in the data section.
func (p *Program) String(label, s string) {
	p.dataLabel(label)
	p.data = append(p.data, s...)
	p.data = append(p.data, 0)
}

func (p *Program) Bytes(label string, b []byte) {
	p.dataLabel(label)
	p.data = append(p.data, b...)
}

// Space reserves n zero bytes, 8-byte aligned.
func (p *Program) Space(label string, n int) {
	p.Align(8)
	p.dataLabel(label)
	p.data = append(p.data, make([]byte, n)...)
}

// Words places 64-bit words; a string word is resolved to that label's address.
func (p *Program) Words(label string, words ...any) {
	p.Align(8)
	p.dataLabel(label)
	for _, w := range words {
		off := len(p.data)
		p.data = append(p.data, make([]byte, 8)...)
		switch v := w.(type) {
		case int:
			putWord(p.data[off:], uint64(v))
		case uint64:
			putWord(p.data[off:], v)
		case string:
			p.words = append(p.words, wordRef{off: off, ref: v})
		default:
			p.fail("unsupported word %T", w)
		}
	}
}
