// Package exe encodes and decodes KXE1 executable images.
//
// Layout (little endian):
//
//	magic "KXE1" | entry u64 | nseg u32
//	nseg x { vaddr u64 | memsz u64 | perm u32 | filesz u32 | data[filesz] }
package exe

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const Magic = "KXE1"

type Perm uint8

const (
	PermR Perm = 1 << iota
	PermW
	PermX
)

func (p Perm) String() string {
	b := []byte("---")
	if p&PermR != 0 {
		b[0] = 'r'
	}
	if p&PermW != 0 {
		b[1] = 'w'
	}
	if p&PermX != 0 {
		b[2] = 'x'
	}
	return string(b)
}

// Segment is one loadable region. Bytes past len(Data) up to MemSize are zero.
type Segment struct {
	Vaddr   uint64
	MemSize uint64
	Perm    Perm
	Data    []byte
}

type Image struct {
	Entry    uint64
	Segments []Segment
}

var (
	ErrBadMagic  = errors.New("exe: bad magic")
	ErrTruncated = errors.New("exe: truncated image")
	ErrSegment   = errors.New("exe: malformed segment")
)

const (
	headerSize  = 4 + 8 + 4
	segHdrSize  = 8 + 8 + 4 + 4
	maxSegments = 64
)

// Encode serializes img.
func (img *Image) Encode() ([]byte, error) {
	if len(img.Segments) > maxSegments {
		return nil, fmt.Errorf("%w: %d segments", ErrSegment, len(img.Segments))
	}
	n := headerSize
	for _, s := range img.Segments {
		if uint64(len(s.Data)) > s.MemSize {
			return nil, fmt.Errorf("%w: filesz %d > memsz %d at %#x", ErrSegment, len(s.Data), s.MemSize, s.Vaddr)
		}
		n += segHdrSize + len(s.Data)
	}
	out := make([]byte, 0, n)
	out = append(out, Magic...)
	out = binary.LittleEndian.AppendUint64(out, img.Entry)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(img.Segments)))
	for _, s := range img.Segments {
		out = binary.LittleEndian.AppendUint64(out, s.Vaddr)
		out = binary.LittleEndian.AppendUint64(out, s.MemSize)
		out = binary.LittleEndian.AppendUint32(out, uint32(s.Perm))
		out = binary.LittleEndian.AppendUint32(out, uint32(len(s.Data)))
		out = append(out, s.Data...)
	}
	return out, nil
}

// Parse decodes an image. Segment data aliases b.
func Parse(b []byte) (*Image, error) {
	if len(b) < headerSize {
		return nil, ErrTruncated
	}
	if string(b[:4]) != Magic {
		return nil, ErrBadMagic
	}
	img := &Image{Entry: binary.LittleEndian.Uint64(b[4:12])}
	nseg := binary.LittleEndian.Uint32(b[12:16])
	if nseg > maxSegments {
		return nil, fmt.Errorf("%w: %d segments", ErrSegment, nseg)
	}
	off := headerSize
	for i := uint32(0); i < nseg; i++ {
		if len(b)-off < segHdrSize {
			return nil, ErrTruncated
		}
		h := b[off : off+segHdrSize]
		s := Segment{
			Vaddr:   binary.LittleEndian.Uint64(h[0:8]),
			MemSize: binary.LittleEndian.Uint64(h[8:16]),
			Perm:    Perm(binary.LittleEndian.Uint32(h[16:20])),
		}
		filesz := int(binary.LittleEndian.Uint32(h[20:24]))
		off += segHdrSize
		if len(b)-off < filesz {
			return nil, ErrTruncated
		}
		if uint64(filesz) > s.MemSize {
			return nil, fmt.Errorf("%w: filesz %d > memsz %d at %#x", ErrSegment, filesz, s.MemSize, s.Vaddr)
		}
		s.Data = b[off : off+filesz]
		off += filesz
		img.Segments = append(img.Segments, s)
	}
	return img, nil
}
