package asm

import (
	"strings"
	"testing"

	"kestrel/kernel/cpu"
	"kestrel/kernel/mm"
)

func TestLabelsResolve(t *testing.T) {
	p := New()
	p.Li(A0, 1)
	p.Label("main")
	p.La(A1, "msg")
	p.Beq(A0, Zero, "main")
	p.Words("table", "msg", 7)
	p.String("msg", "hi")

	img, err := p.Image()
	if err != nil {
		t.Fatalf("Image: %v", err)
	}
	if img.Entry != mm.UserBase+cpu.InstSize {
		t.Fatalf("entry = %#x; want main", img.Entry)
	}
	if len(img.Segments) != 2 {
		t.Fatalf("segments = %d; want 2", len(img.Segments))
	}
	data := img.Segments[1]
	if data.Vaddr != mm.UserBase+mm.PageSize {
		t.Fatalf("data base = %#x", data.Vaddr)
	}

	var raw [cpu.InstSize]byte
	copy(raw[:], img.Segments[0].Data[8:16])
	if la := cpu.Decode(raw); uint64(la.Imm) != data.Vaddr+16 {
		t.Fatalf("la imm = %#x; want %#x", la.Imm, data.Vaddr+16)
	}
	copy(raw[:], img.Segments[0].Data[16:24])
	if br := cpu.Decode(raw); br.Imm != -8 {
		t.Fatalf("branch imm = %d; want -8", br.Imm)
	}
	if got := data.Data[0]; uint64(got) != (data.Vaddr+16)&0xFF {
		t.Fatalf("word low byte = %#x", got)
	}
}

func TestErrors(t *testing.T) {
	p := New()
	p.J("nowhere")
	if _, err := p.Image(); err == nil || !strings.Contains(err.Error(), "nowhere") {
		t.Fatalf("undefined label err = %v", err)
	}

	p = New()
	p.Label("a")
	p.Label("a")
	p.Ecall()
	if _, err := p.Image(); err == nil {
		t.Fatal("expected duplicate label error")
	}

	if _, err := New().Image(); err == nil {
		t.Fatal("expected empty program error")
	}
}
