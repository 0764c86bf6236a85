package mm

import (
	"errors"
	"fmt"
	"sync"

	"kestrel/kernel/id"

	"tinygo.org/x/tinyfs"
)

var (
	ErrOutOfMemory = errors.New("mm: out of physical frames")
	ErrPageFault   = errors.New("mm: page fault")
	ErrOverlap     = errors.New("mm: area overlaps an existing mapping")
	ErrNoArea      = errors.New("mm: no area at address")
)

// FrameAllocator hands out page frames of a physical memory device.
type FrameAllocator struct {
	mu    sync.Mutex
	mem   tinyfs.BlockDevice
	ids   *id.RecycleAllocator
	limit int
	zero  [PageSize]byte
}

// NewFrameAllocator manages every whole page of mem.
func NewFrameAllocator(mem tinyfs.BlockDevice) *FrameAllocator {
	return &FrameAllocator{
		mem:   mem,
		ids:   id.NewRecycleAllocator(),
		limit: int(mem.Size() / PageSize),
	}
}

// Alloc returns a zeroed frame.
func (f *FrameAllocator) Alloc() (PPN, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.ids.TryAlloc(f.limit)
	if !ok {
		return 0, ErrOutOfMemory
	}
	ppn := PPN(n)
	if _, err := f.mem.WriteAt(f.zero[:], int64(ppn.Addr())); err != nil {
		f.ids.Dealloc(n)
		return 0, fmt.Errorf("mm: zero frame %d: %w", ppn, err)
	}
	return ppn, nil
}

// Dealloc returns a frame. Releasing a free frame panics.
func (f *FrameAllocator) Dealloc(ppn PPN) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ids.Dealloc(int(ppn))
}

// Free reports the number of frames still available.
func (f *FrameAllocator) Free() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.limit - f.ids.InUse()
}

func (f *FrameAllocator) Total() int { return f.limit }

func (f *FrameAllocator) read(ppn PPN, off int, p []byte) error {
	if off+len(p) > PageSize {
		panic("mm: frame read crosses page")
	}
	_, err := f.mem.ReadAt(p, int64(ppn.Addr())+int64(off))
	return err
}

func (f *FrameAllocator) write(ppn PPN, off int, p []byte) error {
	if off+len(p) > PageSize {
		panic("mm: frame write crosses page")
	}
	_, err := f.mem.WriteAt(p, int64(ppn.Addr())+int64(off))
	return err
}

// ReadFrame and WriteFrame access physical memory directly (trap-context pages).
func (f *FrameAllocator) ReadFrame(ppn PPN, off int, p []byte) error  { return f.read(ppn, off, p) }
func (f *FrameAllocator) WriteFrame(ppn PPN, off int, p []byte) error { return f.write(ppn, off, p) }

func (f *FrameAllocator) copyFrame(dst, src PPN) error {
	var buf [PageSize]byte
	if err := f.read(src, 0, buf[:]); err != nil {
		return err
	}
	return f.write(dst, 0, buf[:])
}
