package kernel

import (
	"bytes"
	"runtime"
	"sync"
	"testing"
)

func TestInputQueueTryRecvEmpty(t *testing.T) {
	var q InputQueue

	_, ok := q.TryRecv()
	if ok {
		t.Fatalf("TryRecv() ok = true, want false")
	}
}

func TestInputQueueTrySendFull(t *testing.T) {
	var q InputQueue

	for i := 0; i < inputSlots; i++ {
		if ok := q.TrySend(byte(i)); !ok {
			t.Fatalf("TrySend() ok = false at slot %d, want true", i)
		}
	}
	if ok := q.TrySend(0); ok {
		t.Fatalf("TrySend() ok = true when full, want false")
	}

	for i := 0; i < inputSlots; i++ {
		b, ok := q.TryRecv()
		if !ok || b != byte(i) {
			t.Fatalf("TryRecv() = %d, %v at slot %d, want %d, true", b, ok, i, byte(i))
		}
	}
}

func TestInputQueueConcurrentProducers(t *testing.T) {
	oldProcs := runtime.GOMAXPROCS(1)
	defer runtime.GOMAXPROCS(oldProcs)

	const (
		producers = 4
		perProd   = 1000
		total     = producers * perProd
	)

	var q InputQueue

	start := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(producers)
	for producerID := 0; producerID < producers; producerID++ {
		go func(producerID int) {
			defer wg.Done()
			<-start
			for i := 0; i < perProd; i++ {
				q.Send(byte(producerID))
			}
		}(producerID)
	}
	close(start)

	counts := make([]int, producers)
	for i := 0; i < total; {
		b, ok := q.TryRecv()
		if !ok {
			runtime.Gosched()
			continue
		}
		if int(b) >= producers {
			t.Fatalf("TryRecv() = %d, want < %d", b, producers)
		}
		counts[b]++
		i++
	}
	wg.Wait()

	for id, n := range counts {
		if n != perProd {
			t.Fatalf("producer %d delivered %d bytes, want %d", id, n, perProd)
		}
	}
}

func TestConsoleInputKicks(t *testing.T) {
	var out bytes.Buffer
	c := NewConsole(&out)
	kicks := 0
	c.kick = func() { kicks++ }

	if n := c.Input([]byte("ab")); n != 2 {
		t.Fatalf("Input() = %d, want 2", n)
	}
	if kicks != 1 {
		t.Fatalf("kicks = %d, want 1", kicks)
	}
	if b, ok := c.TryReadByte(); !ok || b != 'a' {
		t.Fatalf("TryReadByte() = %q, %v, want 'a', true", b, ok)
	}
	c.Write([]byte("out"))
	if out.String() != "out" {
		t.Fatalf("output = %q, want %q", out.String(), "out")
	}
}
