package halt

import "testing"

func TestTriggerOnce(t *testing.T) {
	var l Latch
	calls := 0
	l.SetHandler(func(info Info) {
		calls++
		if info.Value != "first" {
			t.Fatalf("handler value = %v; want first", info.Value)
		}
		if len(info.Stack) == 0 {
			t.Fatal("expected captured stack")
		}
	})
	if l.Halted() {
		t.Fatal("latch fired early")
	}
	l.Trigger(Info{PID: 1, Value: "first"})
	l.Trigger(Info{PID: 2, Value: "second"})

	if calls != 1 {
		t.Fatalf("handler calls = %d; want 1", calls)
	}
	info, ok := l.Info()
	if !ok || info.PID != 1 {
		t.Fatalf("Info = %+v, %v; want pid 1", info, ok)
	}
}
