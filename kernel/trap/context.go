// Package trap defines the saved user register file that crosses the
// user/kernel boundary.
package trap

import "encoding/binary"

// HandlerAddr is the resume address recorded for the kernel trap handler.
const HandlerAddr = 0x8020_0000

// SstatusSPPUser marks a context that returns to user mode.
const SstatusSPPUser = 0

// Context is the user register file plus what the kernel needs to take the
// next trap: its address-space token, its stack and its handler.
type Context struct {
	X           [32]uint64
	Sstatus     uint64
	Sepc        uint64
	KernelSatp  uint64
	KernelSP    uint64
	TrapHandler uint64
}

// Size is the encoded size of a Context.
const Size = (32 + 5) * 8

// AppInitContext builds the context for a thread's first entry to user mode.
func AppInitContext(entry, sp, kernelSatp, kernelSP, trapHandler uint64) Context {
	cx := Context{
		Sstatus:     SstatusSPPUser,
		Sepc:        entry,
		KernelSatp:  kernelSatp,
		KernelSP:    kernelSP,
		TrapHandler: trapHandler,
	}
	cx.SetSP(sp)
	return cx
}

func (cx *Context) SetSP(sp uint64) { cx.X[2] = sp }

// Args returns a0..a5.
func (cx *Context) Args() [6]uint64 {
	var a [6]uint64
	copy(a[:], cx.X[10:16])
	return a
}

// Encode writes cx into b, which must hold Size bytes.
func (cx *Context) Encode(b []byte) {
	_ = b[Size-1]
	for i, x := range cx.X {
		binary.LittleEndian.PutUint64(b[i*8:], x)
	}
	tail := b[32*8:]
	binary.LittleEndian.PutUint64(tail[0:], cx.Sstatus)
	binary.LittleEndian.PutUint64(tail[8:], cx.Sepc)
	binary.LittleEndian.PutUint64(tail[16:], cx.KernelSatp)
	binary.LittleEndian.PutUint64(tail[24:], cx.KernelSP)
	binary.LittleEndian.PutUint64(tail[32:], cx.TrapHandler)
}

// Decode reads a context written by Encode.
func Decode(b []byte) Context {
	_ = b[Size-1]
	var cx Context
	for i := range cx.X {
		cx.X[i] = binary.LittleEndian.Uint64(b[i*8:])
	}
	tail := b[32*8:]
	cx.Sstatus = binary.LittleEndian.Uint64(tail[0:])
	cx.Sepc = binary.LittleEndian.Uint64(tail[8:])
	cx.KernelSatp = binary.LittleEndian.Uint64(tail[16:])
	cx.KernelSP = binary.LittleEndian.Uint64(tail[24:])
	cx.TrapHandler = binary.LittleEndian.Uint64(tail[32:])
	return cx
}
