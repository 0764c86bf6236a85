package klog

import "testing"

type lines []string

func (l *lines) WriteLineString(s string) { *l = append(*l, s) }
func (l *lines) WriteLineBytes(b []byte)  { *l = append(*l, string(b)) }

func TestLevelFilter(t *testing.T) {
	var out lines
	log := New(&out, LevelWarn)
	log.Infof("dropped %d", 1)
	log.Warnf("kept %d", 2)
	log.Errorf("kept %d", 3)

	want := []string{"[ WARN] kept 2", "[ERROR] kept 3"}
	if len(out) != len(want) {
		t.Fatalf("lines = %q; want %q", out, want)
	}
	for i := range want {
		if out[i] != want[i] {
			t.Fatalf("line %d = %q; want %q", i, out[i], want[i])
		}
	}
}

func TestNilLoggerDiscards(t *testing.T) {
	var log *Logger
	log.Warnf("nothing %s", "here")
	if log.Enabled(LevelError) {
		t.Fatal("nil logger should not be enabled")
	}
}

func TestParseLevel(t *testing.T) {
	tcs := []struct {
		in   string
		want Level
		ok   bool
	}{
		{in: "info", want: LevelInfo, ok: true},
		{in: " WARN ", want: LevelWarn, ok: true},
		{in: "off", want: LevelOff, ok: true},
		{in: "loud", ok: false},
	}
	for _, tc := range tcs {
		got, err := ParseLevel(tc.in)
		if (err == nil) != tc.ok {
			t.Fatalf("ParseLevel(%q) err = %v; want ok=%v", tc.in, err, tc.ok)
		}
		if tc.ok && got != tc.want {
			t.Fatalf("ParseLevel(%q) = %v; want %v", tc.in, got, tc.want)
		}
	}
}
