// Package retry wraps store calls with exponential backoff on quota errors.
package retry

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	DefaultMaxAttempts = 6
	DefaultBaseDelay   = 1500 * time.Millisecond
	DefaultJitterRatio = 0.15

	// above this ratio the (attempt mod 3) jitter could shrink a delay
	maxJitterRatio = 0.5
)

// Invoker retries an operation while Retryable reports true for its error.
type Invoker struct {
	MaxAttempts int
	BaseDelay   time.Duration
	JitterRatio float64

	// Retryable decides which failures are retried; everything else is
	// returned on first occurrence.
	Retryable func(error) bool
	// Sleep waits d or until ctx is done. Tests replace it.
	Sleep func(ctx context.Context, d time.Duration) error

	Log *logrus.Entry
}

// New returns an Invoker with the given bounds and retry predicate.
func New(maxAttempts int, baseDelay time.Duration, jitter float64, retryable func(error) bool, log *logrus.Entry) (*Invoker, error) {
	if maxAttempts < 1 {
		return nil, fmt.Errorf("retry: max attempts must be >= 1, got %d", maxAttempts)
	}
	if baseDelay < 0 {
		return nil, fmt.Errorf("retry: base delay cannot be negative")
	}
	if jitter < 0 || jitter > maxJitterRatio {
		return nil, fmt.Errorf("retry: jitter ratio must be within [0, %.1f], got %.2f", maxJitterRatio, jitter)
	}
	return &Invoker{
		MaxAttempts: maxAttempts,
		BaseDelay:   baseDelay,
		JitterRatio: jitter,
		Retryable:   retryable,
		Log:         log,
	}, nil
}

// Delay is the wait after the failed attempt with 0-based index attempt.
func (inv *Invoker) Delay(attempt int) time.Duration {
	base := float64(inv.BaseDelay) * math.Pow(2, float64(attempt))
	return time.Duration(base * (1 + inv.JitterRatio*float64(attempt%3)))
}

// Run calls fn until it succeeds, fails with a non-retryable error, or
// MaxAttempts calls have been made. The last error is returned unchanged.
func (inv *Invoker) Run(ctx context.Context, op string, fn func(context.Context) error) error {
	maxAttempts := inv.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	sleep := inv.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if inv.Retryable == nil || !inv.Retryable(err) || attempt >= maxAttempts-1 {
			return err
		}

		d := inv.Delay(attempt)
		if inv.Log != nil {
			inv.Log.WithFields(logrus.Fields{
				"op":      op,
				"attempt": attempt + 1,
				"max":     maxAttempts,
				"delay":   d.String(),
			}).Warn("store rate limited, backing off")
		}
		if serr := sleep(ctx, d); serr != nil {
			return fmt.Errorf("retry %s: %w (last error: %v)", op, serr, err)
		}
	}
}

// Do is Run for operations that return a value.
func Do[T any](ctx context.Context, inv *Invoker, op string, fn func(context.Context) (T, error)) (T, error) {
	var out T
	err := inv.Run(ctx, op, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
