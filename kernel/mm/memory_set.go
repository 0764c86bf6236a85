package mm

import (
	"fmt"
	"sort"
	"sync/atomic"
)

var tokenSeq atomic.Uint64

// MapArea is a contiguous run of framed pages with one permission.
type MapArea struct {
	start, end VPN
	perm       MapPermission
	frames     map[VPN]PPN
}

func (a *MapArea) Start() VPN             { return a.start }
func (a *MapArea) End() VPN               { return a.end }
func (a *MapArea) Perm() MapPermission    { return a.perm }
func (a *MapArea) contains(vpn VPN) bool  { return vpn >= a.start && vpn < a.end }
func (a *MapArea) overlaps(s, e VPN) bool { return s < a.end && a.start < e }

// MemorySet is one address space: a page table plus the areas that own its frames.
type MemorySet struct {
	token  uint64
	frames *FrameAllocator
	table  map[VPN]PTE
	areas  []*MapArea
}

// NewBare returns an empty address space.
func NewBare(frames *FrameAllocator) *MemorySet {
	return &MemorySet{
		token:  tokenSeq.Add(1),
		frames: frames,
		table:  make(map[VPN]PTE),
	}
}

// Token identifies the address space the way satp identifies a page-table root.
func (m *MemorySet) Token() uint64 { return m.token }

func (m *MemorySet) Frames() *FrameAllocator { return m.frames }

// Translate looks up the leaf mapping of vpn.
func (m *MemorySet) Translate(vpn VPN) (PTE, bool) {
	pte, ok := m.table[vpn]
	return pte, ok
}

// MappedPages reports the number of mapped pages.
func (m *MemorySet) MappedPages() int { return len(m.table) }

// Areas returns the areas sorted by start page.
func (m *MemorySet) Areas() []*MapArea {
	out := append([]*MapArea(nil), m.areas...)
	sort.Slice(out, func(i, j int) bool { return out[i].start < out[j].start })
	return out
}

func (m *MemorySet) mapPage(a *MapArea, vpn VPN) error {
	ppn, err := m.frames.Alloc()
	if err != nil {
		return err
	}
	a.frames[vpn] = ppn
	m.table[vpn] = PTE{PPN: ppn, Perm: a.perm}
	return nil
}

func (m *MemorySet) unmapPage(a *MapArea, vpn VPN) {
	ppn, ok := a.frames[vpn]
	if !ok {
		return
	}
	delete(a.frames, vpn)
	delete(m.table, vpn)
	m.frames.Dealloc(ppn)
}

func (m *MemorySet) push(a *MapArea) error {
	for _, other := range m.areas {
		if other.overlaps(a.start, a.end) {
			return fmt.Errorf("%w: [%#x, %#x)", ErrOverlap, a.start.Addr(), a.end.Addr())
		}
	}
	for vpn := a.start; vpn < a.end; vpn++ {
		if err := m.mapPage(a, vpn); err != nil {
			for v := a.start; v < vpn; v++ {
				m.unmapPage(a, v)
			}
			return err
		}
	}
	m.areas = append(m.areas, a)
	return nil
}

// InsertFramedArea maps [startVA, endVA) rounded out to whole pages.
func (m *MemorySet) InsertFramedArea(startVA, endVA uint64, perm MapPermission) error {
	a := &MapArea{
		start:  VPNFloor(startVA),
		end:    VPNCeil(endVA),
		perm:   perm,
		frames: make(map[VPN]PPN),
	}
	return m.push(a)
}

// RemoveAreaWithStartVPN unmaps the area that begins at vpn.
func (m *MemorySet) RemoveAreaWithStartVPN(vpn VPN) bool {
	for i, a := range m.areas {
		if a.start != vpn {
			continue
		}
		for v := a.start; v < a.end; v++ {
			m.unmapPage(a, v)
		}
		m.areas = append(m.areas[:i], m.areas[i+1:]...)
		return true
	}
	return false
}

// ResizeArea moves the end of the area starting at startVA to newEndVA.
// Growing maps fresh zeroed pages; shrinking releases the tail.
func (m *MemorySet) ResizeArea(startVA, newEndVA uint64) error {
	start := VPNFloor(startVA)
	end := VPNCeil(newEndVA)
	if end < start {
		return fmt.Errorf("mm: resize below area start %#x", startVA)
	}
	for _, a := range m.areas {
		if a.start != start {
			continue
		}
		if end < a.end {
			for v := end; v < a.end; v++ {
				m.unmapPage(a, v)
			}
			a.end = end
			return nil
		}
		for _, other := range m.areas {
			if other != a && other.overlaps(a.end, end) {
				return fmt.Errorf("%w: [%#x, %#x)", ErrOverlap, a.end.Addr(), end.Addr())
			}
		}
		old := a.end
		for v := old; v < end; v++ {
			if err := m.mapPage(a, v); err != nil {
				for u := old; u < v; u++ {
					m.unmapPage(a, u)
				}
				return err
			}
		}
		a.end = end
		return nil
	}
	return fmt.Errorf("%w %#x", ErrNoArea, startVA)
}

// RecycleDataPages releases every frame the address space owns.
// The set stays usable as an empty space.
func (m *MemorySet) RecycleDataPages() {
	for _, a := range m.areas {
		for v := a.start; v < a.end; v++ {
			m.unmapPage(a, v)
		}
	}
	m.areas = nil
}

// FromExistedUser deep-copies src: same areas, same bytes, fresh frames.
func FromExistedUser(src *MemorySet) (*MemorySet, error) {
	m := NewBare(src.frames)
	for _, a := range src.areas {
		na := &MapArea{start: a.start, end: a.end, perm: a.perm, frames: make(map[VPN]PPN)}
		if err := m.push(na); err != nil {
			m.RecycleDataPages()
			return nil, err
		}
		for v := a.start; v < a.end; v++ {
			if err := m.frames.copyFrame(na.frames[v], a.frames[v]); err != nil {
				m.RecycleDataPages()
				return nil, fmt.Errorf("mm: copy page %#x: %w", v.Addr(), err)
			}
		}
	}
	return m, nil
}
