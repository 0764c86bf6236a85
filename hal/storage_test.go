package hal

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"
)

func TestFileStorageEraseAndWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "disk.img")
	s, err := OpenStorage(path, 3*storageEraseBytes-1)
	if err != nil {
		t.Fatalf("OpenStorage: %v", err)
	}
	defer s.Close()
	if s.Size() != 3*storageEraseBytes {
		t.Fatalf("Size = %d; want %d", s.Size(), 3*storageEraseBytes)
	}

	buf := make([]byte, 4)
	if _, err := s.ReadAt(buf, 100); err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if !bytes.Equal(buf, []byte{0xFF, 0xFF, 0xFF, 0xFF}) {
		t.Fatalf("erased = %x; want ffffffff", buf)
	}

	if _, err := s.WriteAt([]byte("kest"), 100); err != nil {
		t.Fatalf("WriteAt: %v", err)
	}
	if _, err := s.WriteAt([]byte("rel!"), 100); !errors.Is(err, ErrStorageWriteRequiresErase) {
		t.Fatalf("rewrite err = %v; want ErrStorageWriteRequiresErase", err)
	}
	if err := s.EraseBlocks(0, 1); err != nil {
		t.Fatalf("EraseBlocks: %v", err)
	}
	if _, err := s.WriteAt([]byte("rel!"), 100); err != nil {
		t.Fatalf("WriteAt after erase: %v", err)
	}
	if err := s.EraseBlocks(2, 2); err == nil {
		t.Fatalf("EraseBlocks past end succeeded")
	}
}

func TestFileStorageReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "disk.img")
	s, err := OpenStorage(path, 0)
	if err != nil {
		t.Fatalf("OpenStorage: %v", err)
	}
	if _, err := s.WriteAt([]byte("hello"), 4096); err != nil {
		t.Fatalf("WriteAt: %v", err)
	}
	if err := s.Sync(); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	s.Close()

	s, err = OpenStorage(path, 1)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	if s.Size() != DefaultStorageBytes {
		t.Fatalf("Size = %d; want %d", s.Size(), DefaultStorageBytes)
	}
	got := make([]byte, 5)
	if _, err := s.ReadAt(got, 4096); err != nil || string(got) != "hello" {
		t.Fatalf("ReadAt = %q, %v; want hello", got, err)
	}
}

func TestRAMBlocks(t *testing.T) {
	r := NewRAM(5000)
	if r.Size() != 2*ramBlockBytes {
		t.Fatalf("Size = %d; want %d", r.Size(), 2*ramBlockBytes)
	}
	if _, err := r.WriteAt([]byte{1, 2, 3}, ramBlockBytes); err != nil {
		t.Fatalf("WriteAt: %v", err)
	}
	if err := r.EraseBlocks(1, 1); err != nil {
		t.Fatalf("EraseBlocks: %v", err)
	}
	got := make([]byte, 3)
	r.ReadAt(got, ramBlockBytes)
	if !bytes.Equal(got, []byte{0, 0, 0}) {
		t.Fatalf("after erase = %v; want zeros", got)
	}
	if _, err := r.ReadAt(got, r.Size()-1); err == nil {
		t.Fatalf("ReadAt past end succeeded")
	}
}
