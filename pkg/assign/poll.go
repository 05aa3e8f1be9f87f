package assign

import (
	"context"
	"time"
)

// Step is the outcome of one poll attempt: keep going, or stop with a value.
type Step[T any] struct {
	done  bool
	value T
}

// Continue asks Poll for another attempt.
func Continue[T any]() Step[T] {
	return Step[T]{}
}

// Terminal stops Poll with v.
func Terminal[T any](v T) Step[T] {
	return Step[T]{done: true, value: v}
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// SleepContext is the real Sleeper.
func SleepContext(ctx context.Context, d time.Duration) error {
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

// Poll calls fn up to attempts times, sleeping delay between attempts.
// It returns the terminal value and done=true as soon as fn returns Terminal.
// done=false with a nil error means the budget ran out. An error from fn or
// from sleep stops polling immediately.
func Poll[T any](ctx context.Context, attempts int, delay time.Duration, sleep Sleeper, fn func(ctx context.Context, attempt int) (Step[T], error)) (value T, done bool, err error) {
	if sleep == nil {
		sleep = SleepContext
	}
	for attempt := 1; attempt <= attempts; attempt++ {
		step, err := fn(ctx, attempt)
		if err != nil {
			return value, false, err
		}
		if step.done {
			return step.value, true, nil
		}
		if attempt < attempts {
			if err := sleep(ctx, delay); err != nil {
				return value, false, err
			}
		}
	}
	return value, false, nil
}
