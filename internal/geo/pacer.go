package geo

import (
	"context"
	"time"
)

// DefaultDelay is the pause before every remote geocoding call.
const DefaultDelay = 1100 * time.Millisecond

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Pacer serializes remote calls through a single slot. The holder waits the
// configured delay before running its call, so calls are spaced at least delay apart.
type Pacer struct {
	slot  chan struct{}
	delay time.Duration
	sleep SleepFunc
}

func NewPacer(delay time.Duration) *Pacer {
	return &Pacer{
		slot:  make(chan struct{}, 1),
		delay: delay,
		sleep: sleepContext,
	}
}

// WithSleep replaces the wait implementation. Tests use it to record delays without a wall clock.
func (p *Pacer) WithSleep(sleep SleepFunc) *Pacer {
	p.sleep = sleep
	return p
}

// Do acquires the slot, waits the delay and runs fn. At most one fn runs at a time.
func (p *Pacer) Do(ctx context.Context, fn func(context.Context) error) error {
	select {
	case p.slot <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-p.slot }()

	if err := p.sleep(ctx, p.delay); err != nil {
		return err
	}
	return fn(ctx)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
