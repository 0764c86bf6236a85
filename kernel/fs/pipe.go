package fs

import (
	"sync/atomic"

	"kestrel/kernel/cell"
)

const RingBufferSize = 1024

type ringStatus uint8

const (
	ringEmpty ringStatus = iota
	ringFull
	ringNormal
)

// pipeRing is the buffer both ends share. head==tail is disambiguated by status.
type pipeRing struct {
	arr        []byte
	head, tail int
	status     ringStatus

	// Non-owning: the ring never keeps an end open.
	readEnd, writeEnd *Pipe
}

func (r *pipeRing) writeByte(b byte) {
	r.status = ringNormal
	r.arr[r.tail] = b
	r.tail = (r.tail + 1) % len(r.arr)
	if r.tail == r.head {
		r.status = ringFull
	}
}

func (r *pipeRing) readByte() byte {
	r.status = ringNormal
	b := r.arr[r.head]
	r.head = (r.head + 1) % len(r.arr)
	if r.head == r.tail {
		r.status = ringEmpty
	}
	return b
}

func (r *pipeRing) availableRead() int {
	switch {
	case r.status == ringEmpty:
		return 0
	case r.tail > r.head:
		return r.tail - r.head
	default:
		return r.tail + len(r.arr) - r.head
	}
}

func (r *pipeRing) availableWrite() int {
	if r.status == ringFull {
		return 0
	}
	return len(r.arr) - r.availableRead()
}

func (r *pipeRing) allWriteEndsClosed() bool { return !r.writeEnd.open() }
func (r *pipeRing) allReadEndsClosed() bool  { return !r.readEnd.open() }

// Pipe is one end of a pipe.
type Pipe struct {
	readable bool
	writable bool
	buf      *cell.Cell[pipeRing]
	refs     atomic.Int32
	w        Waiter
}

// MakePipe returns the read and write ends of a RingBufferSize pipe.
func MakePipe(w Waiter) (read, write *Pipe) {
	return makePipe(w, RingBufferSize)
}

func makePipe(w Waiter, size int) (read, write *Pipe) {
	buf := cell.New(pipeRing{arr: make([]byte, size)})
	read = &Pipe{readable: true, buf: buf, w: w}
	write = &Pipe{writable: true, buf: buf, w: w}
	read.refs.Store(1)
	write.refs.Store(1)
	ring := buf.Borrow()
	ring.readEnd, ring.writeEnd = read, write
	buf.Release()
	return read, write
}

func (p *Pipe) open() bool { return p != nil && p.refs.Load() > 0 }

func (p *Pipe) Retain() { p.refs.Add(1) }

func (p *Pipe) Release() {
	if p.refs.Add(-1) < 0 {
		panic("fs: pipe end released too many times")
	}
}

func (p *Pipe) Readable() bool { return p.readable }
func (p *Pipe) Writable() bool { return p.writable }

// HangUp reports whether the other end has no descriptors left.
func (p *Pipe) HangUp() bool {
	ring := p.buf.Borrow()
	defer p.buf.Release()
	if p.readable {
		return ring.allWriteEndsClosed()
	}
	return ring.allReadEndsClosed()
}

// Read returns whatever is buffered, up to len(buf). With nothing buffered
// it waits for a writer, or returns 0 once every write end is closed.
func (p *Pipe) Read(buf []byte) int {
	if !p.readable || len(buf) == 0 {
		return 0
	}
	for {
		ring := p.buf.Borrow()
		n := ring.availableRead()
		if n == 0 {
			if ring.allWriteEndsClosed() {
				p.buf.Release()
				return 0
			}
			p.buf.Release()
			p.w.SuspendCurrentAndRunNext()
			continue
		}
		if n > len(buf) {
			n = len(buf)
		}
		for i := 0; i < n; i++ {
			buf[i] = ring.readByte()
		}
		p.buf.Release()
		return n
	}
}

// Write moves all of buf into the pipe, waiting whenever it is full.
func (p *Pipe) Write(buf []byte) int {
	if !p.writable {
		return 0
	}
	written := 0
	for written < len(buf) {
		ring := p.buf.Borrow()
		n := ring.availableWrite()
		if n == 0 {
			p.buf.Release()
			p.w.SuspendCurrentAndRunNext()
			continue
		}
		if rest := len(buf) - written; n > rest {
			n = rest
		}
		for i := 0; i < n; i++ {
			ring.writeByte(buf[written+i])
		}
		written += n
		p.buf.Release()
	}
	return written
}
