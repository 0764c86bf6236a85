//go:build !tinygo

package hal

import (
	"context"
	"fmt"
	"time"
)

// DefaultHz is the headless step rate when HeadlessConfig.Hz is unset.
const DefaultHz = 100

// HeadlessConfig controls the no-window host runner.
type HeadlessConfig struct {
	Enabled bool
	Hz      int
	Ticks   uint64 // stop after this many steps; zero runs until ctx ends
	Host    HostConfig
}

func (c HeadlessConfig) period() (time.Duration, error) {
	hz := c.Hz
	if hz <= 0 {
		hz = DefaultHz
	}
	d := time.Second / time.Duration(hz)
	if d <= 0 {
		return 0, fmt.Errorf("hal: headless rate %d Hz too high", hz)
	}
	return d, nil
}

// RunHeadless boots the machine with no window. Processes talk to the host
// terminal over the serial console. Hz times a second the runner raises the
// timer interrupts that fell due and calls the app's step function; a step
// error ends the run.
func RunHeadless(ctx context.Context, newApp func(HAL) func() error, cfg HeadlessConfig) error {
	period, err := cfg.period()
	if err != nil {
		return err
	}
	if cfg.Host.Tick <= 0 {
		cfg.Host.Tick = period
	}
	h := newHost(cfg.Host)
	step := newApp(h)

	pace := time.NewTicker(period)
	defer pace.Stop()
	for steps := uint64(1); ; steps++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-pace.C:
			if err := h.advance(now, step); err != nil {
				return err
			}
		}
		if cfg.Ticks > 0 && steps >= cfg.Ticks {
			return nil
		}
	}
}
