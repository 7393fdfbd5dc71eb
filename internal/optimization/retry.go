package optimization

import (
	"context"
	"time"
)

// RetryPolicy controls how the cache retries a failing evaluator.
type RetryPolicy struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int
	// InitialBackoff is the wait before the first retry.
	InitialBackoff time.Duration
	// MaxBackoff caps the wait between retries.
	MaxBackoff time.Duration
	// Multiplier grows the backoff after each retry.
	Multiplier float64
}

// DefaultRetryPolicy waits 2s, 4s, 8s, 16s between five attempts.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:     4,
		InitialBackoff: 2 * time.Second,
		MaxBackoff:     30 * time.Second,
		Multiplier:     2.0,
	}
}

// Validate rejects negative or inconsistent values.
func (p RetryPolicy) Validate() error {
	if p.MaxRetries < 0 {
		return InvalidParameter("retry", "max retries must be >= 0, got %d", p.MaxRetries)
	}
	if p.InitialBackoff < 0 || p.MaxBackoff < 0 {
		return InvalidParameter("retry", "backoff durations must be >= 0")
	}
	if p.Multiplier != 0 && p.Multiplier < 1 {
		return InvalidParameter("retry", "backoff multiplier must be >= 1, got %v", p.Multiplier)
	}
	return nil
}

// Backoff returns the wait before retry number n (1-based).
func (p RetryPolicy) Backoff(n int) time.Duration {
	mult := p.Multiplier
	if mult == 0 {
		mult = 2.0
	}
	d := float64(p.InitialBackoff)
	for i := 1; i < n; i++ {
		d *= mult
		if p.MaxBackoff > 0 && d >= float64(p.MaxBackoff) {
			return p.MaxBackoff
		}
	}
	if p.MaxBackoff > 0 && time.Duration(d) > p.MaxBackoff {
		return p.MaxBackoff
	}
	return time.Duration(d)
}

// wait blocks for d or until ctx is done.
func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
