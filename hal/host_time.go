//go:build !tinygo

package hal

import "time"

// tickSource is the host end of the timer interrupt line. The runner reports
// the wall clock once per step and the source raises one numbered interrupt
// for every period that fell due. Interrupts nobody collects are lost, like
// a level-triggered line that is already pending.
type tickSource struct {
	irq    chan uint64
	period time.Duration
	next   time.Time
	raised uint64
}

func newTickSource(period time.Duration) *tickSource {
	return &tickSource{irq: make(chan uint64, 64), period: period}
}

func (s *tickSource) Ticks() <-chan uint64 { return s.irq }

// advance raises the interrupts due at now. The first call raises one and
// starts the period; after a long stall only a channel's worth is replayed.
func (s *tickSource) advance(now time.Time) {
	if s.next.IsZero() {
		s.next = now.Add(s.period)
		s.raise()
		return
	}
	if late := now.Sub(s.next) / s.period; late > time.Duration(cap(s.irq)) {
		s.next = s.next.Add((late - time.Duration(cap(s.irq))) * s.period)
	}
	for !now.Before(s.next) {
		s.next = s.next.Add(s.period)
		s.raise()
	}
}

func (s *tickSource) raise() {
	s.raised++
	select {
	case s.irq <- s.raised:
	default:
	}
}
