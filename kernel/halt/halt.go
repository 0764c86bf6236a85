// Package halt latches the first fatal kernel condition.
package halt

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Info describes why the kernel stopped.
type Info struct {
	PID   int
	TID   int
	Value any
	Stack []byte
}

func (i Info) String() string {
	return fmt.Sprintf("kernel halted in pid %d tid %d: %v", i.PID, i.TID, i.Value)
}

// Latch records the first fatal condition of one kernel instance.
//
// The handler is invoked at most once (on the first trigger). It must not panic.
type Latch struct {
	active  atomic.Bool
	once    sync.Once
	handler atomic.Value // func(Info)

	mu   sync.Mutex
	info Info
}

// SetHandler installs fn as the halt handler.
func (l *Latch) SetHandler(fn func(Info)) {
	l.handler.Store(fn)
}

// Halted reports whether the latch has fired.
func (l *Latch) Halted() bool {
	return l.active.Load()
}

// Info returns the latched condition.
func (l *Latch) Info() (Info, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.info, l.active.Load()
}

// Trigger latches info with the caller's stack. Later triggers are ignored.
func (l *Latch) Trigger(info Info) {
	l.once.Do(func() {
		if info.Stack == nil {
			info.Stack = captureStack()
		}
		l.mu.Lock()
		l.info = info
		l.mu.Unlock()
		l.active.Store(true)
		if v := l.handler.Load(); v != nil {
			if fn, ok := v.(func(Info)); ok && fn != nil {
				fn(info)
			}
		}
	})
}
