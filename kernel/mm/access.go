package mm

import (
	"encoding/binary"
	"errors"
)

// MaxStringLen bounds ReadString.
const MaxStringLen = 4096

var ErrStringTooLong = errors.New("mm: string too long")

// access copies between p and the address space, one page at a time.
// need is the permission every touched page must carry; 0 means any mapping.
func (m *MemorySet) access(va uint64, p []byte, need MapPermission, write bool) error {
	for len(p) > 0 {
		pte, ok := m.table[VPNFloor(va)]
		if !ok || pte.Perm&need != need {
			return &FaultError{Addr: va, Write: write, Exec: need&PermX != 0}
		}
		off := PageOffset(va)
		n := PageSize - off
		if n > len(p) {
			n = len(p)
		}
		var err error
		if write {
			err = m.frames.write(pte.PPN, off, p[:n])
		} else {
			err = m.frames.read(pte.PPN, off, p[:n])
		}
		if err != nil {
			return err
		}
		p = p[n:]
		va += uint64(n)
	}
	return nil
}

// ReadBytes and WriteBytes are kernel accesses: any mapped page is reachable.
func (m *MemorySet) ReadBytes(va uint64, p []byte) error  { return m.access(va, p, 0, false) }
func (m *MemorySet) WriteBytes(va uint64, p []byte) error { return m.access(va, p, 0, true) }

func (m *MemorySet) ReadUint64(va uint64) (uint64, error) {
	var b [8]byte
	if err := m.ReadBytes(va, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}

func (m *MemorySet) WriteUint64(va uint64, v uint64) error {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return m.WriteBytes(va, b[:])
}

func (m *MemorySet) ReadUint32(va uint64) (uint32, error) {
	var b [4]byte
	if err := m.ReadBytes(va, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

func (m *MemorySet) WriteUint32(va uint64, v uint32) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return m.WriteBytes(va, b[:])
}

// ReadString reads a NUL-terminated string starting at va.
func (m *MemorySet) ReadString(va uint64) (string, error) { return m.readString(va, 0) }

// LoadString is ReadString with user-mode permission checks.
func (m *MemorySet) LoadString(va uint64) (string, error) { return m.readString(va, PermU|PermR) }

func (m *MemorySet) readString(va uint64, need MapPermission) (string, error) {
	var out []byte
	var b [1]byte
	for len(out) < MaxStringLen {
		if err := m.access(va, b[:], need, false); err != nil {
			return "", err
		}
		if b[0] == 0 {
			return string(out), nil
		}
		out = append(out, b[0])
		va++
	}
	return "", ErrStringTooLong
}

// Fetch, Load and Store are user-mode accesses; pages must carry PermU.
func (m *MemorySet) Fetch(va uint64, p []byte) error { return m.access(va, p, PermU|PermX, false) }
func (m *MemorySet) Load(va uint64, p []byte) error  { return m.access(va, p, PermU|PermR, false) }
func (m *MemorySet) Store(va uint64, p []byte) error { return m.access(va, p, PermU|PermW, true) }

// Area returns the area containing va.
func (m *MemorySet) Area(va uint64) (*MapArea, bool) {
	vpn := VPNFloor(va)
	for _, a := range m.areas {
		if a.contains(vpn) {
			return a, true
		}
	}
	return nil, false
}

func (m *MemorySet) LoadUint64(va uint64) (uint64, error) {
	var b [8]byte
	if err := m.Load(va, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}

func (m *MemorySet) StoreUint64(va uint64, v uint64) error {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return m.Store(va, b[:])
}

func (m *MemorySet) StoreUint32(va uint64, v uint32) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return m.Store(va, b[:])
}

// CheckUser reports a fault if user mode could not access every byte of
// [va, va+n) for reading, or for writing when write is set.
func (m *MemorySet) CheckUser(va, n uint64, write bool) error {
	if n == 0 {
		return nil
	}
	need := PermU | PermR
	if write {
		need = PermU | PermW
	}
	if va+n < va {
		return &FaultError{Addr: va, Write: write}
	}
	for vpn := VPNFloor(va); vpn < VPNCeil(va+n); vpn++ {
		pte, ok := m.table[vpn]
		if !ok || pte.Perm&need != need {
			addr := vpn.Addr()
			if addr < va {
				addr = va
			}
			return &FaultError{Addr: addr, Write: write}
		}
	}
	return nil
}
