package syscall

import (
	"errors"
	"io"

	"kestrel/kernel/fs"
	"kestrel/kernel/mm"
	"kestrel/kernel/task"
)

// mmap(start, len, prot, flags, fd, off) maps len bytes at start and returns
// start. Unless MapAnonymous is set the area begins with the bytes of fd
// from off.
func (d *Dispatcher) mmap(t *task.Task, a [6]uint64) int64 {
	start, length, prot, flags := a[0], a[1], a[2], a[3]
	if prot == 0 || prot&^(ProtRead|ProtWrite|ProtExec) != 0 {
		return -EINVAL
	}
	var perm mm.MapPermission
	if prot&ProtRead != 0 {
		perm |= mm.PermR
	}
	if prot&ProtWrite != 0 {
		perm |= mm.PermW
	}
	if prot&ProtExec != 0 {
		perm |= mm.PermX
	}

	p := t.Process()
	var data []byte
	if flags&MapAnonymous == 0 {
		f, ok := p.Fds().Get(int(a[4]))
		if !ok {
			return -EBADF
		}
		if !f.Readable() {
			return -EACCES
		}
		m, ok := f.(fs.Mappable)
		if !ok {
			return -ENODEV
		}
		off := a[5]
		if off%mm.PageSize != 0 {
			return -EINVAL
		}
		if size := m.Size(); off < size && length > 0 {
			data = make([]byte, min(length, size-off))
			n, err := m.ReadAt(data, int64(off))
			if err != nil && !errors.Is(err, io.EOF) {
				return errno(err)
			}
			data = data[:n]
		}
	}
	if err := p.Mmap(start, length, perm, data); err != nil {
		return errno(err)
	}
	return int64(start)
}

// munmap(start, len) removes a mapping made by mmap.
func (d *Dispatcher) munmap(t *task.Task, a [6]uint64) int64 {
	if err := t.Process().Munmap(a[0], a[1]); err != nil {
		return errno(err)
	}
	return 0
}
