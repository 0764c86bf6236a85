// Package fs is the kernel's file layer: descriptors, pipes, standard
// streams and the read-only image store programs are loaded from.
package fs

import (
	"errors"
	"io"
)

var (
	ErrNotFound    = errors.New("fs: no such file")
	ErrIsDir       = errors.New("fs: is a directory")
	ErrNotDir      = errors.New("fs: not a directory")
	ErrBadStore    = errors.New("fs: not an image store")
	ErrStoreFull   = errors.New("fs: image store full")
	ErrNameTooLong = errors.New("fs: name too long")
)

// File is an open object reachable through a descriptor.
//
// Read and Write may suspend the calling task; they return the number of
// bytes moved.
type File interface {
	Readable() bool
	Writable() bool
	Read(buf []byte) int
	Write(buf []byte) int
}

// Mappable is a file whose contents can be copied into a mapping without
// moving its offset.
type Mappable interface {
	File
	io.ReaderAt
	Size() uint64
}

// Shared is implemented by files that track how many descriptors refer to
// them. A new file starts with one reference owned by its creator.
type Shared interface {
	Retain()
	Release()
}

// Waiter gives up the processor so that another task can make progress.
type Waiter interface {
	SuspendCurrentAndRunNext()
}

// Console is the byte device behind the standard streams.
type Console interface {
	Write(p []byte) (int, error)
	TryReadByte() (byte, bool)
}

func retain(f File) {
	if s, ok := f.(Shared); ok {
		s.Retain()
	}
}

func release(f File) {
	if s, ok := f.(Shared); ok {
		s.Release()
	}
}
