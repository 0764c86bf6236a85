package task

import (
	"fmt"

	"kestrel/kernel/mm"
)

// Mmap maps [start, start+length) for user access with perm and copies data
// to its beginning. The rest of the area reads as zero. start must be page
// aligned; the area must lie below mm.MmapLimit and not overlap another one.
func (p *Process) Mmap(start, length uint64, perm mm.MapPermission, data []byte) error {
	if start%mm.PageSize != 0 || length == 0 || start < mm.UserBase ||
		start+length < start || start+length > mm.MmapLimit {
		return fmt.Errorf("%w: [%#x, +%#x)", ErrBadMapping, start, length)
	}
	if uint64(len(data)) > length {
		data = data[:length]
	}
	inner := p.inner.Borrow()
	defer p.inner.Release()
	space := inner.space
	if err := space.InsertFramedArea(start, start+length, perm|mm.PermU); err != nil {
		return err
	}
	if err := space.WriteBytes(start, data); err != nil {
		space.RemoveAreaWithStartVPN(mm.VPNFloor(start))
		return err
	}
	if inner.mmaps == nil {
		inner.mmaps = make(map[mm.VPN]bool)
	}
	inner.mmaps[mm.VPNFloor(start)] = true
	return nil
}

// Munmap removes a whole area created by Mmap.
func (p *Process) Munmap(start, length uint64) error {
	inner := p.inner.Borrow()
	defer p.inner.Release()
	vpn := mm.VPNFloor(start)
	if start%mm.PageSize != 0 || !inner.mmaps[vpn] {
		return fmt.Errorf("%w: no mapping at %#x", ErrBadMapping, start)
	}
	a, ok := inner.space.Area(start)
	if !ok || a.End() != mm.VPNCeil(start+length) {
		return fmt.Errorf("%w: [%#x, +%#x) is not a whole mapping", ErrBadMapping, start, length)
	}
	inner.space.RemoveAreaWithStartVPN(vpn)
	delete(inner.mmaps, vpn)
	return nil
}
