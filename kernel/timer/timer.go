// Package timer keeps the kernel's cycle clock and time-slice trigger.
package timer

import "sync/atomic"

const (
	// ClockFreq is the number of cycles per simulated second.
	ClockFreq   = 10_000_000
	TicksPerSec = 100
	MsecPerSec  = 1000

	// SwitchCycles is charged for every dispatch so that time advances
	// even when no user instruction retires.
	SwitchCycles = 1000
)

// Clock counts retired cycles. One instruction is one cycle.
type Clock struct {
	now   atomic.Uint64
	next  atomic.Uint64
	slice uint64
}

// NewClock returns a clock whose time slice is slice cycles
// (ClockFreq/TicksPerSec when zero).
func NewClock(slice uint64) *Clock {
	if slice == 0 {
		slice = ClockFreq / TicksPerSec
	}
	c := &Clock{slice: slice}
	c.SetNextTrigger()
	return c
}

func (c *Clock) Now() uint64         { return c.now.Load() }
func (c *Clock) Advance(n uint64)    { c.now.Add(n) }
func (c *Clock) Slice() uint64       { return c.slice }
func (c *Clock) TimeMs() uint64      { return c.Now() / (ClockFreq / MsecPerSec) }
func (c *Clock) SetNextTrigger()     { c.next.Store(c.Now() + c.slice) }
func (c *Clock) NextTrigger() uint64 { return c.next.Load() }

// Budget returns the cycles left before the next trigger, at least one.
func (c *Clock) Budget() uint64 {
	now, next := c.Now(), c.next.Load()
	if next <= now {
		return 1
	}
	return next - now
}
