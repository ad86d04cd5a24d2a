// Package retry calls a function again with exponential back-off and jitter
// while its errors are classified as transient.
package retry

import (
	"context"
	"math/rand/v2"
	"slices"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Config controls the retry behaviour of [Do].
type Config struct {
	// MaxAttempts is the maximum number of times fn is called (including the
	// first attempt). Values ≤ 1 mean no retries.
	MaxAttempts int

	// BaseDelay is the delay before the first retry. Subsequent retries use
	// exponential back-off: BaseDelay * 2^attempt.
	BaseDelay time.Duration

	// MaxDelay caps the computed back-off delay. Zero leaves it uncapped.
	MaxDelay time.Duration

	// Jitter adds randomness to the delay. A value of 0.2 means ±20 % of
	// the computed delay. Zero disables jitter.
	Jitter float64

	// Retryable reports whether err is worth another attempt. Nil means no
	// error is retried.
	Retryable func(err error) bool
}

// Codes returns a Retryable classifier matching gRPC status errors whose code
// is one of cs.
func Codes(cs ...codes.Code) func(error) bool {
	return func(err error) bool {
		st, ok := status.FromError(err)
		return ok && slices.Contains(cs, st.Code())
	}
}

// Do calls fn up to cfg.MaxAttempts times, retrying only while
// cfg.Retryable accepts the returned error. Between attempts an exponential
// back-off delay (with optional jitter) is applied.
//
// The context is checked before every retry; if ctx is done the function
// returns immediately with the context error.
func Do[T any](ctx context.Context, cfg Config, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	attempts := max(cfg.MaxAttempts, 1)

	for i := range attempts {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}

		if i == attempts-1 || cfg.Retryable == nil || !cfg.Retryable(err) {
			return zero, err
		}

		timer := time.NewTimer(cfg.delay(i))
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}
	}

	return zero, nil
}

// delay returns the wait after the given attempt (0-indexed): BaseDelay
// doubled per attempt, capped at MaxDelay, then spread by up to ±Jitter.
func (c Config) delay(attempt int) time.Duration {
	d := c.BaseDelay
	for range attempt {
		if c.MaxDelay > 0 && d >= c.MaxDelay {
			break
		}
		if d > time.Duration(1<<62) {
			break
		}
		d *= 2
	}
	if c.MaxDelay > 0 && d > c.MaxDelay {
		d = c.MaxDelay
	}
	if c.Jitter > 0 {
		d += time.Duration(float64(d) * c.Jitter * (rand.Float64()*2 - 1))
	}
	return max(d, 0)
}
