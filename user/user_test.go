package user

import (
	"strings"
	"testing"

	"kestrel/kernel/exe"
	"kestrel/kernel/mm"
)

func TestProgramsAssemble(t *testing.T) {
	for _, p := range Programs() {
		img, err := p.Image()
		if err != nil {
			t.Fatalf("%s: %v", p.Name, err)
		}
		if img.Entry < mm.UserBase {
			t.Fatalf("%s entry = %#x; want >= %#x", p.Name, img.Entry, mm.UserBase)
		}
	}
}

func TestFilesParse(t *testing.T) {
	files, err := Files()
	if err != nil {
		t.Fatalf("Files: %v", err)
	}
	if len(files) != len(programs) {
		t.Fatalf("len(Files) = %d; want %d", len(files), len(programs))
	}
	for _, f := range files {
		if !strings.HasPrefix(f.Name, "/bin/") {
			t.Fatalf("name = %q; want /bin/ prefix", f.Name)
		}
		if _, err := exe.Parse(f.Data); err != nil {
			t.Fatalf("Parse(%s): %v", f.Name, err)
		}
	}
}

func TestLookup(t *testing.T) {
	for _, name := range []string{"hello", "/bin/hello"} {
		p, ok := Lookup(name)
		if !ok || p.Name != "hello" {
			t.Fatalf("Lookup(%q) = %v, %v; want hello", name, p.Name, ok)
		}
	}
	if _, ok := Lookup("nope"); ok {
		t.Fatalf("Lookup(nope) ok; want missing")
	}
}
