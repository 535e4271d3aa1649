package upstream

import (
	"context"
	"time"
)

// RetryPolicy bounds the handshake retry loop. Delays grow exponentially
// from BaseBackoff with no jitter.
type RetryPolicy struct {
	MaxAttempts int
	BaseBackoff time.Duration
}

// DefaultRetryPolicy matches the production defaults in config
var DefaultRetryPolicy = RetryPolicy{MaxAttempts: 3, BaseBackoff: time.Second}

// Backoff returns the wait after failed attempt i (0-based): base * 2^i
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	return p.BaseBackoff * time.Duration(1<<uint(attempt))
}

func (p RetryPolicy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// Retry runs fn until it succeeds or the policy is exhausted, sleeping
// Backoff(i) on clock between attempts. There is no sleep after the final
// attempt. The last error from fn is returned on exhaustion; a cancelled
// ctx during a backoff returns the context error instead.
func Retry(ctx context.Context, policy RetryPolicy, clock Clock, fn func(attempt int) error) error {
	if clock == nil {
		clock = SystemClock
	}

	attempts := policy.attempts()
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if lastErr = fn(attempt); lastErr == nil {
			return nil
		}
		if attempt == attempts-1 {
			break
		}
		if err := clock.Sleep(ctx, policy.Backoff(attempt)); err != nil {
			return err
		}
	}
	return lastErr
}
