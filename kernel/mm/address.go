// Package mm manages physical frames and paged address spaces.
package mm

import "fmt"

const (
	PageSize     = 4096
	PageSizeBits = 12

	// Trampoline is the highest page of every address space. It stays unmapped;
	// trap-context pages and kernel stacks are laid out below it.
	Trampoline      = 0x7fff_f000
	TrapContextBase = Trampoline - PageSize

	UserStackSize   = 2 * PageSize
	KernelStackSize = 2 * PageSize

	// UserBase is where program text starts; HeapBase is where brk grows from.
	UserBase = 0x1_0000
	HeapBase = 0x4000_0000

	// Mappings made on request of user code lie in [UserBase, MmapLimit).
	MmapLimit = 0x6000_0000
)

// VPN is a virtual page number.
type VPN uint64

// PPN is a physical page number (frame index).
type PPN uint64

func VPNFloor(va uint64) VPN { return VPN(va >> PageSizeBits) }
func VPNCeil(va uint64) VPN  { return VPN((va + PageSize - 1) >> PageSizeBits) }

func (v VPN) Addr() uint64 { return uint64(v) << PageSizeBits }
func (p PPN) Addr() uint64 { return uint64(p) << PageSizeBits }

func PageOffset(va uint64) int { return int(va & (PageSize - 1)) }

type MapPermission uint8

const (
	PermR MapPermission = 1 << (iota + 1)
	PermW
	PermX
	PermU
)

func (p MapPermission) String() string {
	b := []byte("----")
	for i, c := range []struct {
		bit MapPermission
		ch  byte
	}{{PermR, 'r'}, {PermW, 'w'}, {PermX, 'x'}, {PermU, 'u'}} {
		if p&c.bit != 0 {
			b[i] = c.ch
		}
	}
	return string(b)
}

// PTE is a leaf mapping.
type PTE struct {
	PPN  PPN
	Perm MapPermission
}

// KernelStackPosition returns the [bottom, top) range of kernel stack slot id.
// Consecutive slots are separated by one unmapped guard page.
func KernelStackPosition(id int) (bottom, top uint64) {
	top = Trampoline - uint64(id)*(KernelStackSize+PageSize)
	bottom = top - KernelStackSize
	return bottom, top
}

// TrapContextAddr returns the user address of thread tid's trap-context page.
func TrapContextAddr(tid int) uint64 {
	return TrapContextBase - uint64(tid)*PageSize
}

// UserStackBottom returns the lowest address of thread tid's user stack.
func UserStackBottom(ustackBase uint64, tid int) uint64 {
	return ustackBase + uint64(tid)*(PageSize+UserStackSize)
}

func UserStackTop(ustackBase uint64, tid int) uint64 {
	return UserStackBottom(ustackBase, tid) + UserStackSize
}

// FaultError reports an access to an unmapped or forbidden address.
type FaultError struct {
	Addr  uint64
	Write bool
	Exec  bool
}

func (e *FaultError) Error() string {
	kind := "load"
	switch {
	case e.Write:
		kind = "store"
	case e.Exec:
		kind = "fetch"
	}
	return fmt.Sprintf("mm: %s page fault at %#x", kind, e.Addr)
}

func (e *FaultError) Unwrap() error { return ErrPageFault }
