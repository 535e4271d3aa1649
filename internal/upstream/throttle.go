package upstream

import (
	"context"
	"sync"
	"time"

	"github.com/Rajchodisetti/nse-proxy/internal/observ"
)

// Throttle enforces a minimum interval between the starts of outbound calls.
// The lock is held across the sleep, so concurrent callers are admitted one
// at a time with no ordering guarantee among waiters.
type Throttle struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time
	clock    Clock
}

// NewThrottle creates a throttle; a nil clock means SystemClock
func NewThrottle(interval time.Duration, clock Clock) *Throttle {
	if clock == nil {
		clock = SystemClock
	}
	if interval < 0 {
		interval = 0
	}
	return &Throttle{interval: interval, clock: clock}
}

// Wait suspends the caller until at least the interval has elapsed since the
// previous admitted call, then records now as the latest start. It only
// fails when ctx is cancelled while waiting, and the timestamp is left
// untouched in that case.
func (t *Throttle) Wait(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.last.IsZero() {
		elapsed := t.clock.Now().Sub(t.last)
		if wait := t.interval - elapsed; wait > 0 {
			observ.RecordDuration("throttle_wait", wait, nil)
			if err := t.clock.Sleep(ctx, wait); err != nil {
				return err
			}
		}
	}

	t.last = t.clock.Now()
	return nil
}

// Last returns the start time of the most recent admitted call
func (t *Throttle) Last() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last
}

// Interval returns the configured minimum spacing
func (t *Throttle) Interval() time.Duration {
	return t.interval
}
