package mm

import (
	"fmt"

	"kestrel/kernel/exe"
)

func permFromImage(p exe.Perm) MapPermission {
	perm := PermU
	if p&exe.PermR != 0 {
		perm |= PermR
	}
	if p&exe.PermW != 0 {
		perm |= PermW
	}
	if p&exe.PermX != 0 {
		perm |= PermX
	}
	return perm
}

// FromImage builds a user address space from an executable image.
//
// It returns the space, the base of the user-stack region (one guard page
// above the highest segment) and the entry point.
func FromImage(frames *FrameAllocator, img *exe.Image) (*MemorySet, uint64, uint64, error) {
	m := NewBare(frames)
	var maxEnd VPN
	for _, seg := range img.Segments {
		if seg.MemSize == 0 {
			continue
		}
		end := seg.Vaddr + seg.MemSize
		if seg.Vaddr < UserBase || end > HeapBase || end < seg.Vaddr {
			m.RecycleDataPages()
			return nil, 0, 0, fmt.Errorf("mm: segment [%#x, %#x) outside user image range", seg.Vaddr, end)
		}
		if err := m.InsertFramedArea(seg.Vaddr, end, permFromImage(seg.Perm)); err != nil {
			m.RecycleDataPages()
			return nil, 0, 0, err
		}
		if err := m.WriteBytes(seg.Vaddr, seg.Data); err != nil {
			m.RecycleDataPages()
			return nil, 0, 0, err
		}
		if e := VPNCeil(end); e > maxEnd {
			maxEnd = e
		}
	}
	if maxEnd == 0 {
		return nil, 0, 0, fmt.Errorf("mm: image has no loadable segments")
	}
	ustackBase := maxEnd.Addr() + PageSize
	return m, ustackBase, img.Entry, nil
}
