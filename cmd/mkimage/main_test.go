package main

import (
	"os"
	"path/filepath"
	"testing"

	"kestrel/hal"
	"kestrel/kernel/fs"
)

func TestRunWritesStore(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	if err := os.MkdirAll(filepath.Join(src, "etc"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(src, "etc", "motd"), []byte("hi\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	extra := filepath.Join(dir, "my notes.txt")
	if err := os.WriteFile(extra, []byte("notes"), 0o644); err != nil {
		t.Fatal(err)
	}

	out := filepath.Join(dir, "disk.img")
	o := options{src: src, add: `"` + extra + `=/home/notes"`, out: out, size: 1 << 20, builtin: true}
	if err := run(o); err != nil {
		t.Fatalf("run: %v", err)
	}

	dev, err := hal.OpenStorage(out, 0)
	if err != nil {
		t.Fatalf("OpenStorage: %v", err)
	}
	defer dev.Close()
	s, err := fs.OpenStore(dev)
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	for name, want := range map[string]string{"/etc/motd": "hi\n", "/home/notes": "notes"} {
		got, err := s.ReadAll(name)
		if err != nil || string(got) != want {
			t.Fatalf("ReadAll(%s) = %q, %v; want %q", name, got, err, want)
		}
	}
	if _, ok := s.Lookup("/bin/init"); !ok {
		t.Fatalf("/bin/init missing")
	}
}

func TestParseAddRejectsBadPairs(t *testing.T) {
	if _, err := parseAdd("justafile"); err == nil {
		t.Fatalf("parseAdd accepted a word without =")
	}
	if _, err := parseAdd(`"unterminated`); err == nil {
		t.Fatalf("parseAdd accepted an unterminated quote")
	}
}
