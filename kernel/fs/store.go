package fs

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"sync"

	"tinygo.org/x/tinyfs"
)

// Image store layout on a block device (little endian):
//
//	block 0: magic "KSTORE01" | count u32 | reserved u32 | count x entry
//	entry:   name[48] (NUL padded) | offset u64 | size u64
//	data:    file bytes, each aligned to the device write block
const (
	storeMagic      = "KSTORE01"
	storeHeaderSize = 4096
	storeEntrySize  = 64
	storeNameMax    = 48

	MaxStoreEntries = (storeHeaderSize - 16) / storeEntrySize

	// MinStoreBytes is the size of a store with no file data.
	MinStoreBytes = storeHeaderSize
)

// StoreFile is one file to place in a new store.
type StoreFile struct {
	Name string
	Data []byte
}

// Entry is a file in the store.
type Entry struct {
	Name   string
	Offset uint64
	Size   uint64
}

// ImageStore is a flat, read-only directory of files on a block device.
type ImageStore struct {
	dev     tinyfs.BlockDevice
	entries []Entry
	byName  map[string]int
}

func cleanName(name string) (string, error) {
	name = path.Clean("/" + name)
	if len(name) >= storeNameMax {
		return "", fmt.Errorf("%w: %q", ErrNameTooLong, name)
	}
	return name, nil
}

func alignUp(v, a uint64) uint64 {
	if a <= 1 {
		return v
	}
	return (v + a - 1) / a * a
}

// Format writes files to dev, replacing whatever was there.
func Format(dev tinyfs.BlockDevice, files []StoreFile) error {
	if len(files) > MaxStoreEntries {
		return fmt.Errorf("%w: %d files", ErrStoreFull, len(files))
	}
	sorted := make([]StoreFile, 0, len(files))
	seen := make(map[string]bool, len(files))
	for _, f := range files {
		name, err := cleanName(f.Name)
		if err != nil {
			return err
		}
		if seen[name] {
			return fmt.Errorf("fs: duplicate store entry %q", name)
		}
		seen[name] = true
		sorted = append(sorted, StoreFile{Name: name, Data: f.Data})
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	wb := uint64(dev.WriteBlockSize())
	entries := make([]Entry, len(sorted))
	off := uint64(storeHeaderSize)
	for i, f := range sorted {
		off = alignUp(off, wb)
		entries[i] = Entry{Name: f.Name, Offset: off, Size: uint64(len(f.Data))}
		off += uint64(len(f.Data))
	}
	if int64(off) > dev.Size() {
		return fmt.Errorf("%w: need %d bytes, device has %d", ErrStoreFull, off, dev.Size())
	}

	eb := dev.EraseBlockSize()
	if eb <= 0 {
		eb = storeHeaderSize
	}
	if err := dev.EraseBlocks(0, (int64(off)+eb-1)/eb); err != nil {
		return fmt.Errorf("fs: erase store: %w", err)
	}

	hdr := make([]byte, storeHeaderSize)
	copy(hdr, storeMagic)
	binary.LittleEndian.PutUint32(hdr[8:], uint32(len(entries)))
	for i, e := range entries {
		b := hdr[16+i*storeEntrySize:]
		copy(b[:storeNameMax], e.Name)
		binary.LittleEndian.PutUint64(b[storeNameMax:], e.Offset)
		binary.LittleEndian.PutUint64(b[storeNameMax+8:], e.Size)
	}
	if _, err := dev.WriteAt(hdr, 0); err != nil {
		return fmt.Errorf("fs: write store header: %w", err)
	}
	for i, f := range sorted {
		if len(f.Data) == 0 {
			continue
		}
		if _, err := dev.WriteAt(f.Data, int64(entries[i].Offset)); err != nil {
			return fmt.Errorf("fs: write %s: %w", f.Name, err)
		}
	}
	return nil
}

// OpenStore reads the directory of a formatted device.
func OpenStore(dev tinyfs.BlockDevice) (*ImageStore, error) {
	hdr := make([]byte, storeHeaderSize)
	if _, err := dev.ReadAt(hdr, 0); err != nil {
		return nil, fmt.Errorf("fs: read store header: %w", err)
	}
	if string(hdr[:8]) != storeMagic {
		return nil, ErrBadStore
	}
	n := int(binary.LittleEndian.Uint32(hdr[8:]))
	if n > MaxStoreEntries {
		return nil, fmt.Errorf("%w: %d entries", ErrBadStore, n)
	}
	s := &ImageStore{dev: dev, byName: make(map[string]int, n)}
	for i := 0; i < n; i++ {
		b := hdr[16+i*storeEntrySize:]
		name := string(bytes.TrimRight(b[:storeNameMax], "\x00"))
		e := Entry{
			Name:   name,
			Offset: binary.LittleEndian.Uint64(b[storeNameMax:]),
			Size:   binary.LittleEndian.Uint64(b[storeNameMax+8:]),
		}
		if int64(e.Offset+e.Size) > dev.Size() {
			return nil, fmt.Errorf("%w: %s extends past device", ErrBadStore, name)
		}
		s.byName[name] = len(s.entries)
		s.entries = append(s.entries, e)
	}
	return s, nil
}

// Lookup finds the file at an absolute path.
func (s *ImageStore) Lookup(name string) (Entry, bool) {
	i, ok := s.byName[path.Clean("/"+name)]
	if !ok {
		return Entry{}, false
	}
	return s.entries[i], true
}

// IsDir reports whether dir is the root or a prefix of some file.
func (s *ImageStore) IsDir(dir string) bool {
	dir = path.Clean("/" + dir)
	if dir == "/" {
		return true
	}
	for _, e := range s.entries {
		if strings.HasPrefix(e.Name, dir+"/") {
			return true
		}
	}
	return false
}

// List returns the files directly or indirectly under dir.
func (s *ImageStore) List(dir string) []string {
	prefix := strings.TrimSuffix(path.Clean("/"+dir), "/") + "/"
	var out []string
	for _, e := range s.entries {
		if strings.HasPrefix(e.Name, prefix) {
			out = append(out, e.Name)
		}
	}
	return out
}

// ReadAll returns the contents of the file at name.
func (s *ImageStore) ReadAll(name string) ([]byte, error) {
	e, ok := s.Lookup(name)
	if !ok {
		if s.IsDir(name) {
			return nil, fmt.Errorf("%w: %s", ErrIsDir, name)
		}
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	buf := make([]byte, e.Size)
	if _, err := s.dev.ReadAt(buf, int64(e.Offset)); err != nil {
		return nil, fmt.Errorf("fs: read %s: %w", name, err)
	}
	return buf, nil
}

// Open returns a read-only handle on the file at name.
func (s *ImageStore) Open(name string) (*RegularFile, error) {
	e, ok := s.Lookup(name)
	if !ok {
		if s.IsDir(name) {
			return nil, fmt.Errorf("%w: %s", ErrIsDir, name)
		}
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return &RegularFile{store: s, entry: e}, nil
}

// RegularFile is an open store file. Descriptors duplicated from it share
// the offset.
type RegularFile struct {
	store *ImageStore
	entry Entry

	mu  sync.Mutex
	off uint64
}

func (f *RegularFile) Name() string     { return f.entry.Name }
func (f *RegularFile) Size() uint64     { return f.entry.Size }
func (f *RegularFile) Readable() bool   { return true }
func (f *RegularFile) Writable() bool   { return false }
func (f *RegularFile) Write([]byte) int { return 0 }

func (f *RegularFile) Read(buf []byte) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	rest := f.entry.Size - f.off
	if uint64(len(buf)) > rest {
		buf = buf[:rest]
	}
	if len(buf) == 0 {
		return 0
	}
	n, err := f.store.dev.ReadAt(buf, int64(f.entry.Offset+f.off))
	if err != nil {
		return 0
	}
	f.off += uint64(n)
	return n
}

// ReadAt reads from off without touching the shared offset.
func (f *RegularFile) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("fs: %s: negative offset", f.entry.Name)
	}
	if uint64(off) >= f.entry.Size {
		return 0, io.EOF
	}
	rest := f.entry.Size - uint64(off)
	var err error
	if uint64(len(p)) > rest {
		p = p[:rest]
		err = io.EOF
	}
	n, rerr := f.store.dev.ReadAt(p, int64(f.entry.Offset)+off)
	if rerr != nil {
		return n, fmt.Errorf("fs: read %s: %w", f.entry.Name, rerr)
	}
	return n, err
}

// ReadAll reads from the current offset to the end.
func (f *RegularFile) ReadAll() []byte {
	var out []byte
	buf := make([]byte, 512)
	for {
		n := f.Read(buf)
		if n == 0 {
			return out
		}
		out = append(out, buf[:n]...)
	}
}
