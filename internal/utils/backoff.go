package utils

import (
	"context"
	"time"
)

// Backoff returns the delay before retry attempt n (0-based), doubling from
// DefaultRetryBackoff and capped at MaxRetryBackoff.
func Backoff(attempt int) time.Duration {
	d := DefaultRetryBackoff
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= MaxRetryBackoff {
			return MaxRetryBackoff
		}
	}
	return d
}

// Sleep waits for d or until ctx is done
func Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
