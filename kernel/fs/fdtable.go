package fs

import "sync"

// FdTable maps descriptors to files. It is shared by every thread of a
// process; calls never hold its lock while a file blocks.
type FdTable struct {
	mu  sync.Mutex
	fds []File
}

// NewFdTable returns a table whose first descriptors are files, in order.
func NewFdTable(files ...File) *FdTable {
	return &FdTable{fds: append([]File(nil), files...)}
}

// Alloc stores f in the lowest free descriptor and takes over the caller's reference.
func (t *FdTable) Alloc(f File) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.allocLocked(f)
}

func (t *FdTable) allocLocked(f File) int {
	for fd, cur := range t.fds {
		if cur == nil {
			t.fds[fd] = f
			return fd
		}
	}
	t.fds = append(t.fds, f)
	return len(t.fds) - 1
}

func (t *FdTable) Get(fd int) (File, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if fd < 0 || fd >= len(t.fds) || t.fds[fd] == nil {
		return nil, false
	}
	return t.fds[fd], true
}

// Close vacates fd and drops its reference.
func (t *FdTable) Close(fd int) bool {
	t.mu.Lock()
	if fd < 0 || fd >= len(t.fds) || t.fds[fd] == nil {
		t.mu.Unlock()
		return false
	}
	f := t.fds[fd]
	t.fds[fd] = nil
	t.mu.Unlock()
	release(f)
	return true
}

// Dup installs another descriptor for the file behind fd.
func (t *FdTable) Dup(fd int) (int, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if fd < 0 || fd >= len(t.fds) || t.fds[fd] == nil {
		return -1, false
	}
	f := t.fds[fd]
	retain(f)
	return t.allocLocked(f), true
}

// Fork returns a copy whose descriptors share the same open files.
func (t *FdTable) Fork() *FdTable {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := &FdTable{fds: make([]File, len(t.fds))}
	for fd, f := range t.fds {
		if f != nil {
			retain(f)
			out.fds[fd] = f
		}
	}
	return out
}

// Clear closes every descriptor.
func (t *FdTable) Clear() {
	t.mu.Lock()
	fds := t.fds
	t.fds = nil
	t.mu.Unlock()
	for _, f := range fds {
		if f != nil {
			release(f)
		}
	}
}

// Open reports the number of open descriptors.
func (t *FdTable) Open() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, f := range t.fds {
		if f != nil {
			n++
		}
	}
	return n
}
