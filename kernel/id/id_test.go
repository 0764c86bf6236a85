package id

import "testing"

func TestAllocReusesFreedID(t *testing.T) {
	a := NewRecycleAllocator()
	if got := a.Alloc(); got != 0 {
		t.Fatalf("first Alloc = %d; want 0", got)
	}
	if got := a.Alloc(); got != 1 {
		t.Fatalf("second Alloc = %d; want 1", got)
	}
	a.Dealloc(0)
	if got := a.Alloc(); got != 0 {
		t.Fatalf("Alloc after Dealloc(0) = %d; want 0", got)
	}
	if got := a.Alloc(); got != 2 {
		t.Fatalf("next Alloc = %d; want 2", got)
	}
	if got := a.InUse(); got != 3 {
		t.Fatalf("InUse = %d; want 3", got)
	}
}

func TestNoLiveIDHandedOutTwice(t *testing.T) {
	a := NewRecycleAllocator()
	live := make(map[int]bool)
	// Deterministic churn: allocate in bursts and free every third live id.
	for round := 0; round < 50; round++ {
		for i := 0; i < 4; i++ {
			id := a.Alloc()
			if live[id] {
				t.Fatalf("round %d: id %d handed out while live", round, id)
			}
			live[id] = true
		}
		n := 0
		for id := range live {
			if n%3 == 0 {
				a.Dealloc(id)
				delete(live, id)
			}
			n++
		}
	}
	if a.InUse() != len(live) {
		t.Fatalf("InUse = %d; want %d", a.InUse(), len(live))
	}
}

func TestTryAllocLimit(t *testing.T) {
	a := NewRecycleAllocator()
	for i := 0; i < 2; i++ {
		if _, ok := a.TryAlloc(2); !ok {
			t.Fatalf("TryAlloc #%d failed", i)
		}
	}
	if _, ok := a.TryAlloc(2); ok {
		t.Fatal("expected TryAlloc to fail at limit")
	}
	a.Dealloc(1)
	if got, ok := a.TryAlloc(2); !ok || got != 1 {
		t.Fatalf("TryAlloc = %d, %v; want 1, true", got, ok)
	}
}

func TestDeallocMisuse(t *testing.T) {
	tcs := []struct {
		name string
		fn   func(a *RecycleAllocator)
	}{
		{name: "never allocated", fn: func(a *RecycleAllocator) { a.Dealloc(5) }},
		{name: "negative", fn: func(a *RecycleAllocator) { a.Dealloc(-1) }},
		{name: "double free", fn: func(a *RecycleAllocator) {
			id := a.Alloc()
			a.Dealloc(id)
			a.Dealloc(id)
		}},
	}
	for _, tc := range tcs {
		func() {
			defer func() {
				if recover() == nil {
					t.Fatalf("%s: expected panic", tc.name)
				}
			}()
			tc.fn(NewRecycleAllocator())
		}()
	}
}
