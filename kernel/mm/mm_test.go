package mm

import (
	"bytes"
	"errors"
	"testing"

	"kestrel/hal"
	"kestrel/kernel/exe"
)

func newFrames(t *testing.T, pages int) *FrameAllocator {
	t.Helper()
	return NewFrameAllocator(hal.NewRAM(int64(pages) * PageSize))
}

func TestFrameAllocatorExhaustion(t *testing.T) {
	f := newFrames(t, 2)
	a, err := f.Alloc()
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if _, err := f.Alloc(); err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if _, err := f.Alloc(); !errors.Is(err, ErrOutOfMemory) {
		t.Fatalf("Alloc err = %v; want ErrOutOfMemory", err)
	}
	f.Dealloc(a)
	if f.Free() != 1 {
		t.Fatalf("Free = %d; want 1", f.Free())
	}
}

func TestFrameIsZeroedOnReuse(t *testing.T) {
	f := newFrames(t, 1)
	ppn, _ := f.Alloc()
	if err := f.WriteFrame(ppn, 10, []byte{0xAA}); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	f.Dealloc(ppn)
	ppn, _ = f.Alloc()
	var b [1]byte
	if err := f.ReadFrame(ppn, 10, b[:]); err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if b[0] != 0 {
		t.Fatalf("reused frame byte = %#x; want 0", b[0])
	}
}

func TestInsertRemoveArea(t *testing.T) {
	f := newFrames(t, 16)
	m := NewBare(f)
	if err := m.InsertFramedArea(0x10000, 0x12001, PermR|PermW|PermU); err != nil {
		t.Fatalf("InsertFramedArea: %v", err)
	}
	if m.MappedPages() != 3 {
		t.Fatalf("MappedPages = %d; want 3", m.MappedPages())
	}
	if err := m.InsertFramedArea(0x11000, 0x13000, PermR|PermU); !errors.Is(err, ErrOverlap) {
		t.Fatalf("overlapping insert err = %v; want ErrOverlap", err)
	}
	if !m.RemoveAreaWithStartVPN(VPNFloor(0x10000)) {
		t.Fatal("RemoveAreaWithStartVPN = false")
	}
	if m.MappedPages() != 0 || f.Free() != 16 {
		t.Fatalf("after remove: mapped %d free %d", m.MappedPages(), f.Free())
	}
}

func TestCrossPageAccessAndStrings(t *testing.T) {
	m := NewBare(newFrames(t, 4))
	if err := m.InsertFramedArea(0x20000, 0x22000, PermR|PermW|PermU); err != nil {
		t.Fatalf("InsertFramedArea: %v", err)
	}
	va := uint64(0x21000 - 3)
	if err := m.WriteBytes(va, []byte("hello\x00")); err != nil {
		t.Fatalf("WriteBytes: %v", err)
	}
	s, err := m.ReadString(va)
	if err != nil || s != "hello" {
		t.Fatalf("ReadString = %q, %v; want hello", s, err)
	}
	if err := m.WriteUint64(0x21ffc, 0x1122334455667788); !errors.Is(err, ErrPageFault) {
		t.Fatalf("write past end err = %v; want page fault", err)
	}
	var fe *FaultError
	if err := m.ReadBytes(0x30000, make([]byte, 1)); !errors.As(err, &fe) || fe.Addr != 0x30000 {
		t.Fatalf("unmapped read err = %v", err)
	}
}

func TestUserAccessChecksPermissions(t *testing.T) {
	m := NewBare(newFrames(t, 4))
	_ = m.InsertFramedArea(0x10000, 0x11000, PermR|PermX|PermU)
	_ = m.InsertFramedArea(TrapContextAddr(0), TrapContextAddr(0)+PageSize, PermR|PermW)

	buf := make([]byte, 8)
	if err := m.Fetch(0x10000, buf); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if err := m.Store(0x10000, buf); err == nil {
		t.Fatal("store to text should fault")
	}
	if err := m.Load(TrapContextAddr(0), buf); err == nil {
		t.Fatal("user load of trap context should fault")
	}
	if err := m.WriteBytes(TrapContextAddr(0), buf); err != nil {
		t.Fatalf("kernel write of trap context: %v", err)
	}
	if err := m.CheckUser(0x10ff8, 8, false); err != nil {
		t.Fatalf("CheckUser read of text: %v", err)
	}
	var fe *FaultError
	if err := m.CheckUser(0x10ff8, 16, false); !errors.As(err, &fe) || fe.Addr != 0x11000 {
		t.Fatalf("CheckUser past text = %v; want fault at 0x11000", err)
	}
	if err := m.CheckUser(0x10000, 1, true); err == nil {
		t.Fatal("CheckUser write of text should fault")
	}
	if _, err := m.LoadString(TrapContextAddr(0)); err == nil {
		t.Fatal("LoadString of a kernel-only page should fault")
	}
}

func TestFromExistedUserIsolated(t *testing.T) {
	f := newFrames(t, 8)
	parent := NewBare(f)
	_ = parent.InsertFramedArea(0x10000, 0x11000, PermR|PermW|PermU)
	_ = parent.WriteBytes(0x10000, []byte("parent"))

	child, err := FromExistedUser(parent)
	if err != nil {
		t.Fatalf("FromExistedUser: %v", err)
	}
	if child.Token() == parent.Token() {
		t.Fatal("clone shares token")
	}
	got := make([]byte, 6)
	_ = child.ReadBytes(0x10000, got)
	if string(got) != "parent" {
		t.Fatalf("child page = %q; want parent", got)
	}

	_ = child.WriteBytes(0x10000, []byte("child!"))
	_ = parent.ReadBytes(0x10000, got)
	if string(got) != "parent" {
		t.Fatalf("parent page after child write = %q; want parent", got)
	}
}

func TestResizeArea(t *testing.T) {
	f := newFrames(t, 8)
	m := NewBare(f)
	_ = m.InsertFramedArea(HeapBase, HeapBase, PermR|PermW|PermU)
	if err := m.ResizeArea(HeapBase, HeapBase+2*PageSize+1); err != nil {
		t.Fatalf("grow: %v", err)
	}
	if m.MappedPages() != 3 {
		t.Fatalf("MappedPages = %d; want 3", m.MappedPages())
	}
	if err := m.ResizeArea(HeapBase, HeapBase+PageSize); err != nil {
		t.Fatalf("shrink: %v", err)
	}
	if m.MappedPages() != 1 || f.Free() != 7 {
		t.Fatalf("after shrink: mapped %d free %d", m.MappedPages(), f.Free())
	}
	if err := m.ResizeArea(0x1234000, 0x1235000); !errors.Is(err, ErrNoArea) {
		t.Fatalf("resize missing area err = %v; want ErrNoArea", err)
	}
}

func TestFromImage(t *testing.T) {
	f := newFrames(t, 8)
	img := &exe.Image{
		Entry: 0x10000,
		Segments: []exe.Segment{
			{Vaddr: 0x10000, MemSize: 8, Perm: exe.PermR | exe.PermX, Data: []byte{1, 2, 3, 4, 5, 6, 7, 8}},
			{Vaddr: 0x11000, MemSize: 0x1800, Perm: exe.PermR | exe.PermW, Data: []byte("data")},
		},
	}
	m, ustack, entry, err := FromImage(f, img)
	if err != nil {
		t.Fatalf("FromImage: %v", err)
	}
	if entry != 0x10000 {
		t.Fatalf("entry = %#x", entry)
	}
	if want := uint64(0x13000 + PageSize); ustack != want {
		t.Fatalf("ustack base = %#x; want %#x", ustack, want)
	}
	got := make([]byte, 4)
	if err := m.Load(0x11000, got); err != nil || !bytes.Equal(got, []byte("data")) {
		t.Fatalf("Load data = %q, %v", got, err)
	}
	if err := m.Load(0x12004, got); err != nil || !bytes.Equal(got, make([]byte, 4)) {
		t.Fatalf("bss = %v, %v; want zeros", got, err)
	}
	m.RecycleDataPages()
	if f.Free() != 8 {
		t.Fatalf("Free after recycle = %d; want 8", f.Free())
	}
}

func TestKernelStackPositionsLeaveGuardGap(t *testing.T) {
	b0, t0 := KernelStackPosition(0)
	b1, t1 := KernelStackPosition(1)
	if t0 != Trampoline || t0-b0 != KernelStackSize {
		t.Fatalf("slot 0 = [%#x, %#x)", b0, t0)
	}
	if b0-t1 != PageSize {
		t.Fatalf("gap between slot 0 and 1 = %#x; want one page", b0-t1)
	}
	_ = b1
}
