package syscall

import (
	"kestrel/kernel/fs"
	"kestrel/kernel/task"
)

func (d *Dispatcher) write(t *task.Task, a [6]uint64) int64 {
	p := t.Process()
	f, ok := p.Fds().Get(int(a[0]))
	if !ok || !f.Writable() {
		return -EBADF
	}
	if err := p.Space().CheckUser(a[1], a[2], false); err != nil {
		return -EFAULT
	}
	buf := make([]byte, a[2])
	if err := p.Space().Load(a[1], buf); err != nil {
		return -EFAULT
	}
	return int64(f.Write(buf))
}

// read stores at most len bytes. The buffer is checked before the file is
// touched so that no consumed input is lost to a fault.
func (d *Dispatcher) read(t *task.Task, a [6]uint64) int64 {
	p := t.Process()
	f, ok := p.Fds().Get(int(a[0]))
	if !ok || !f.Readable() {
		return -EBADF
	}
	if err := p.Space().CheckUser(a[1], a[2], true); err != nil {
		return -EFAULT
	}
	buf := make([]byte, a[2])
	n := f.Read(buf)
	if err := p.Space().Store(a[1], buf[:n]); err != nil {
		return -EFAULT
	}
	return int64(n)
}

// openat(dirfd, path, flags, mode) opens a store file read-only. Paths
// resolve against the working directory whatever dirfd is.
func (d *Dispatcher) openat(t *task.Task, a [6]uint64) int64 {
	p := t.Process()
	name, err := p.Space().LoadString(a[1])
	if err != nil {
		return errno(err)
	}
	if a[2]&(OWronly|ORdwr|OCreat|OTrunc) != 0 {
		return -EROFS
	}
	if d.store == nil {
		return -ENOENT
	}
	f, err := d.store.Open(p.Cwd().Resolve(name))
	if err != nil {
		return errno(err)
	}
	return int64(p.Fds().Alloc(f))
}

func (d *Dispatcher) close(t *task.Task, a [6]uint64) int64 {
	if !t.Process().Fds().Close(int(a[0])) {
		return -EBADF
	}
	return 0
}

// pipe stores the read and write descriptors as two int32 at a0.
func (d *Dispatcher) pipe(t *task.Task, a [6]uint64) int64 {
	p := t.Process()
	space := p.Space()
	if err := space.CheckUser(a[0], 8, true); err != nil {
		return -EFAULT
	}
	r, w := fs.MakePipe(d.k)
	rfd := p.Fds().Alloc(r)
	wfd := p.Fds().Alloc(w)
	space.StoreUint32(a[0], uint32(rfd))
	space.StoreUint32(a[0]+4, uint32(wfd))
	return 0
}

func (d *Dispatcher) dup(t *task.Task, a [6]uint64) int64 {
	fd, ok := t.Process().Fds().Dup(int(a[0]))
	if !ok {
		return -EBADF
	}
	return int64(fd)
}

// getcwd copies the NUL-terminated working directory into buf and returns buf.
func (d *Dispatcher) getcwd(t *task.Task, a [6]uint64) int64 {
	p := t.Process()
	cwd := append([]byte(p.Cwd().Path()), 0)
	if uint64(len(cwd)) > a[1] {
		return -ERANGE
	}
	if err := p.Space().Store(a[0], cwd); err != nil {
		return -EFAULT
	}
	return int64(a[0])
}

func (d *Dispatcher) chdir(t *task.Task, a [6]uint64) int64 {
	p := t.Process()
	name, err := p.Space().LoadString(a[0])
	if err != nil {
		return errno(err)
	}
	dir := p.Cwd().Resolve(name)
	switch {
	case d.store != nil && d.store.IsDir(dir):
	case d.store != nil:
		if _, ok := d.store.Lookup(dir); ok {
			return -ENOTDIR
		}
		return -ENOENT
	case dir != "/":
		return -ENOENT
	}
	p.Cwd().Set(dir)
	return 0
}
