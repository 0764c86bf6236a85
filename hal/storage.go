//go:build !tinygo

package hal

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"tinygo.org/x/tinyfs"
)

const (
	DefaultStorageBytes = 2 * 1024 * 1024
	storageEraseBytes   = 4096
)

var ErrStorageWriteRequiresErase = errors.New("storage write requires erase")

// FileStorage is a flash-like tinyfs.BlockDevice kept in a host file.
// Erased bytes read as 0xFF and writes may only clear bits.
type FileStorage struct {
	mu     sync.Mutex
	f      *os.File
	size   int64
	erased [storageEraseBytes]byte
}

var _ tinyfs.BlockDevice = (*FileStorage)(nil)

// OpenStorage opens or creates the file at path. A new or empty file is
// sized to size bytes (DefaultStorageBytes when zero) and erased.
func OpenStorage(path string, size int64) (*FileStorage, error) {
	if size <= 0 {
		size = DefaultStorageBytes
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}
	s := &FileStorage{f: f}
	for i := range s.erased {
		s.erased[i] = 0xFF
	}

	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("storage: %w", err)
	}
	if st.Size() > 0 {
		s.size = st.Size() / storageEraseBytes * storageEraseBytes
		return s, nil
	}
	s.size = (size + storageEraseBytes - 1) / storageEraseBytes * storageEraseBytes
	if err := s.EraseBlocks(0, s.size/storageEraseBytes); err != nil {
		_ = f.Close()
		return nil, err
	}
	return s, nil
}

func (s *FileStorage) Size() int64           { return s.size }
func (s *FileStorage) WriteBlockSize() int64 { return 1 }
func (s *FileStorage) EraseBlockSize() int64 { return storageEraseBytes }

func (s *FileStorage) ReadAt(p []byte, off int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if off < 0 || off >= s.size {
		return 0, fmt.Errorf("storage read at %d: %w", off, os.ErrInvalid)
	}
	if rem := s.size - off; int64(len(p)) > rem {
		p = p[:rem]
	}
	return s.f.ReadAt(p, off)
}

func (s *FileStorage) WriteAt(p []byte, off int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if off < 0 || off >= s.size {
		return 0, fmt.Errorf("storage write at %d: %w", off, os.ErrInvalid)
	}
	if rem := s.size - off; int64(len(p)) > rem {
		p = p[:rem]
	}

	buf := make([]byte, len(p))
	if _, err := s.f.ReadAt(buf, off); err != nil && !errors.Is(err, io.EOF) {
		return 0, fmt.Errorf("storage read before write at %d: %w", off, err)
	}
	for i := range p {
		if buf[i]&p[i] != p[i] {
			return 0, ErrStorageWriteRequiresErase
		}
	}
	return s.f.WriteAt(p, off)
}

// EraseBlocks sets n erase blocks starting at block start to 0xFF.
func (s *FileStorage) EraseBlocks(start, n int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if start < 0 || n < 0 || (start+n)*storageEraseBytes > s.size {
		return fmt.Errorf("storage erase blocks %d+%d: %w", start, n, os.ErrInvalid)
	}
	for i := start; i < start+n; i++ {
		if _, err := s.f.WriteAt(s.erased[:], i*storageEraseBytes); err != nil {
			return fmt.Errorf("storage erase block %d: %w", i, err)
		}
	}
	return nil
}

// Sync flushes the file to disk.
func (s *FileStorage) Sync() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.f.Sync()
}

func (s *FileStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.f.Close()
}
