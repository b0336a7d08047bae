// Package resilience retries operations that fail transiently: ledger
// backends that are still starting and remote dataset downloads.
package resilience

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// Backoff controls retry behavior with exponential backoff and jitter.
type Backoff struct {
	// Attempts is the total number of tries including the first. Default: 5.
	Attempts int `mapstructure:"attempts"`

	// Initial is the delay before the first retry. Default: 200ms.
	Initial time.Duration `mapstructure:"initial"`

	// Max caps a single delay. Default: 5s.
	Max time.Duration `mapstructure:"max"`

	// Multiplier scales the delay after each attempt. Default: 2.
	Multiplier float64 `mapstructure:"multiplier"`

	// Jitter is the random spread as a fraction of the delay (0.25 = ±25%).
	Jitter float64 `mapstructure:"jitter"`

	// ShouldRetry overrides IsTransient when set.
	ShouldRetry func(err error) bool `mapstructure:"-"`
}

// DefaultBackoff suits opening a database that may still be starting.
func DefaultBackoff() Backoff {
	return Backoff{
		Attempts:   5,
		Initial:    200 * time.Millisecond,
		Max:        5 * time.Second,
		Multiplier: 2,
		Jitter:     0.25,
	}
}

func (b Backoff) withDefaults() Backoff {
	d := DefaultBackoff()
	if b.Attempts <= 0 {
		b.Attempts = d.Attempts
	}
	if b.Initial <= 0 {
		b.Initial = d.Initial
	}
	if b.Max <= 0 {
		b.Max = d.Max
	}
	if b.Multiplier <= 0 {
		b.Multiplier = d.Multiplier
	}
	if b.Jitter < 0 {
		b.Jitter = 0
	}
	if b.ShouldRetry == nil {
		b.ShouldRetry = IsTransient
	}
	return b
}

// Delay returns the wait before retry number attempt (0-based).
func (b Backoff) Delay(attempt int) time.Duration {
	b = b.withDefaults()
	delay := float64(b.Initial) * math.Pow(b.Multiplier, float64(attempt))
	if delay > float64(b.Max) {
		delay = float64(b.Max)
	}
	if b.Jitter > 0 {
		spread := delay * b.Jitter
		delay += (rand.Float64()*2 - 1) * spread
	}
	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}

// Do runs fn until it succeeds, returns a non-retryable error, the attempts
// run out or ctx is done. op names the operation in retry logs.
func Do(ctx context.Context, b Backoff, op string, fn func(ctx context.Context) error) error {
	_, err := DoVal(ctx, b, op, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// DoVal is Do for operations that return a value.
func DoVal[T any](ctx context.Context, b Backoff, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	b = b.withDefaults()

	var zero T
	var lastErr error
	for attempt := 0; attempt < b.Attempts; attempt++ {
		val, err := fn(ctx)
		if err == nil {
			return val, nil
		}
		lastErr = err

		if ctx.Err() != nil || !b.ShouldRetry(err) || attempt == b.Attempts-1 {
			break
		}

		zap.L().Warn("resilience: retrying",
			zap.String("operation", op),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)

		timer := time.NewTimer(b.Delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, lastErr
		case <-timer.C:
		}
	}
	return zero, lastErr
}
