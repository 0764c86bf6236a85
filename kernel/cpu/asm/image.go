package asm

import (
	"encoding/binary"
	"math"

	"kestrel/kernel/cpu"
	"kestrel/kernel/exe"
	"kestrel/kernel/mm"
)

func putWord(b []byte, v uint64) { binary.LittleEndian.PutUint64(b, v) }

func (p *Program) textSize() uint64 { return uint64(len(p.text)) * cpu.InstSize }

func (p *Program) dataBase() uint64 {
	end := p.base + p.textSize()
	return (end + mm.PageSize - 1) &^ (mm.PageSize - 1)
}

func (p *Program) addr(name string) (uint64, bool) {
	s, ok := p.symbols[name]
	if !ok {
		return 0, false
	}
	if s.sec == secData {
		return p.dataBase() + s.off, true
	}
	return p.base + s.off, true
}

// Image resolves labels and returns the executable. Entry is the first
// instruction, or the "main" label when present.
func (p *Program) Image() (*exe.Image, error) {
	if p.err != nil {
		return nil, p.err
	}
	if len(p.text) == 0 {
		return nil, errEmpty
	}
	text := make([]byte, 0, p.textSize())
	for i, it := range p.text {
		in := it.in
		if it.fix != fixNone {
			target, ok := p.addr(it.ref)
			if !ok {
				p.fail("undefined label %q", it.ref)
				return nil, p.err
			}
			pc := p.base + uint64(i)*cpu.InstSize
			v := int64(target)
			if it.fix == fixRel {
				v = int64(target) - int64(pc)
			}
			if v < math.MinInt32 || v > math.MaxInt32 {
				p.fail("label %q out of range", it.ref)
				return nil, p.err
			}
			in.Imm = int32(v)
		}
		b := in.Encode()
		text = append(text, b[:]...)
	}

	data := append([]byte(nil), p.data...)
	for _, w := range p.words {
		target, ok := p.addr(w.ref)
		if !ok {
			p.fail("undefined label %q", w.ref)
			return nil, p.err
		}
		putWord(data[w.off:], target)
	}

	entry := p.base
	if main, ok := p.addr("main"); ok {
		entry = main
	}
	img := &exe.Image{
		Entry: entry,
		Segments: []exe.Segment{{
			Vaddr:   p.base,
			MemSize: uint64(len(text)),
			Perm:    exe.PermR | exe.PermX,
			Data:    text,
		}},
	}
	if len(data) > 0 {
		img.Segments = append(img.Segments, exe.Segment{
			Vaddr:   p.dataBase(),
			MemSize: uint64(len(data)),
			Perm:    exe.PermR | exe.PermW,
			Data:    data,
		})
	}
	return img, nil
}

// MustImage is Image for built-in programs; it panics on error.
func (p *Program) MustImage() *exe.Image {
	img, err := p.Image()
	if err != nil {
		panic(err)
	}
	return img
}

// Encode assembles and serializes the image.
func (p *Program) Encode() ([]byte, error) {
	img, err := p.Image()
	if err != nil {
		return nil, err
	}
	return img.Encode()
}
