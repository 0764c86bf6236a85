package hal

import (
	"fmt"
	"os"
	"sync"
)

const ramBlockBytes = 4096

// RAM is a volatile tinyfs.BlockDevice. It backs physical memory and
// in-memory image stores.
type RAM struct {
	mu  sync.Mutex
	buf []byte
}

// NewRAM returns a zeroed device of size bytes rounded up to a whole block.
func NewRAM(size int64) *RAM {
	if rem := size % ramBlockBytes; rem != 0 {
		size += ramBlockBytes - rem
	}
	return &RAM{buf: make([]byte, size)}
}

func (r *RAM) ReadAt(p []byte, off int64) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if off < 0 || off+int64(len(p)) > int64(len(r.buf)) {
		return 0, fmt.Errorf("ram read at %d len %d: %w", off, len(p), os.ErrInvalid)
	}
	return copy(p, r.buf[off:]), nil
}

func (r *RAM) WriteAt(p []byte, off int64) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if off < 0 || off+int64(len(p)) > int64(len(r.buf)) {
		return 0, fmt.Errorf("ram write at %d len %d: %w", off, len(p), os.ErrInvalid)
	}
	return copy(r.buf[off:], p), nil
}

func (r *RAM) Size() int64           { return int64(len(r.buf)) }
func (r *RAM) WriteBlockSize() int64 { return 1 }
func (r *RAM) EraseBlockSize() int64 { return ramBlockBytes }

// EraseBlocks zeroes n erase blocks starting at block start.
func (r *RAM) EraseBlocks(start, n int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	lo := start * ramBlockBytes
	hi := lo + n*ramBlockBytes
	if start < 0 || n < 0 || hi > int64(len(r.buf)) {
		return fmt.Errorf("ram erase blocks %d+%d: %w", start, n, os.ErrInvalid)
	}
	clear(r.buf[lo:hi])
	return nil
}
