package kernel

import (
	"io"
	"runtime"
	"sync"
	"sync/atomic"
)

const inputSlots = 256

// InputQueue is a bounded byte queue from input devices to the kernel.
// Producers may be concurrent; the kernel is the only consumer.
type InputQueue struct {
	_     [0]func() // prevent accidental copying.
	mu    sync.Mutex
	head  atomic.Uint32
	tail  atomic.Uint32
	slots [inputSlots]byte
}

// TrySend enqueues b, returning false if the queue is full.
func (q *InputQueue) TrySend(b byte) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	head := q.head.Load()
	if head-q.tail.Load() >= inputSlots {
		return false
	}
	q.slots[head%inputSlots] = b
	q.head.Store(head + 1)
	return true
}

// Send enqueues b, waiting for room.
func (q *InputQueue) Send(b byte) {
	for !q.TrySend(b) {
		runtime.Gosched()
	}
}

// TryRecv dequeues one byte, returning false if empty.
func (q *InputQueue) TryRecv() (byte, bool) {
	tail := q.tail.Load()
	if tail == q.head.Load() {
		return 0, false
	}
	b := q.slots[tail%inputSlots]
	q.tail.Store(tail + 1)
	return b, true
}

func (q *InputQueue) Len() int {
	return int(q.head.Load() - q.tail.Load())
}

// Console is the device behind every process's standard streams.
type Console struct {
	mu  sync.Mutex
	out io.Writer
	in  InputQueue

	// kick, when set, is called after input arrives.
	kick func()
}

func NewConsole(out io.Writer) *Console {
	if out == nil {
		out = io.Discard
	}
	return &Console{out: out}
}

func (c *Console) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.out.Write(p)
}

func (c *Console) TryReadByte() (byte, bool) { return c.in.TryRecv() }

// Input queues bytes for standard input. Bytes beyond the queue capacity
// are dropped; it returns how many were taken.
func (c *Console) Input(p []byte) int {
	n := 0
	for _, b := range p {
		if !c.in.TrySend(b) {
			break
		}
		n++
	}
	if n > 0 && c.kick != nil {
		c.kick()
	}
	return n
}
