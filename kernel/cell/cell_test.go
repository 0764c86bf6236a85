package cell

import "testing"

func TestBorrowRelease(t *testing.T) {
	c := New(1)
	v := c.Borrow()
	*v = 2
	if !c.Borrowed() {
		t.Fatal("expected cell to be borrowed")
	}
	c.Release()
	if c.Borrowed() {
		t.Fatal("expected cell to be released")
	}
	c.With(func(v *int) {
		if *v != 2 {
			t.Fatalf("value = %d; want 2", *v)
		}
	})
}

func TestDoubleBorrowPanics(t *testing.T) {
	c := New("x")
	c.Borrow()
	defer c.Release()
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on double borrow")
		}
	}()
	c.Borrow()
}
