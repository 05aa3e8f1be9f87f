package browser

import (
	"context"
	"fmt"
	"time"
)

const framePollInterval = 250 * time.Millisecond

// waitFor polls cond until it returns true, the timeout elapses or ctx is
// done.
func waitFor(ctx context.Context, timeout, interval time.Duration, cond func() bool) error {
	if cond() {
		return nil
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return fmt.Errorf("timed out after %s", timeout)
		case <-ticker.C:
			if cond() {
				return nil
			}
		}
	}
}

// millis converts a duration to the float milliseconds playwright expects.
func millis(d time.Duration) *float64 {
	ms := float64(d.Milliseconds())
	return &ms
}
