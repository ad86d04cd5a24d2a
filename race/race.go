// Package race runs a unit of work against a deadline timer.
//
// The first of the two to settle decides what the caller sees. Losing work is
// never cancelled: when the deadline wins, the work keeps running on its own
// goroutine until it finishes, and any side effects it has still happen.
// Its result is simply not delivered to the caller that timed out. Timeouts
// here bound how long the caller waits, not how long the work runs.
package race

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/Keksclan/rawrcart/internal/clock"
)

// ErrTimedOut is reported when the deadline fires before the work completes.
var ErrTimedOut = errors.New("race: deadline exceeded before work completed")

// Outcome is the result of a race. When TimedOut is false the work finished
// first and Value/Err are what it returned. When TimedOut is true the caller
// stopped waiting: Err is ErrTimedOut, or the caller's context error if that
// ended first, and Value is the zero value.
type Outcome[T any] struct {
	Value    T
	Err      error
	TimedOut bool
	Elapsed  time.Duration
}

// Option configures a single Run call.
type Option func(*settings)

type settings struct {
	clock  clock.Clock
	onLate func(err error, elapsed time.Duration)
}

// WithClock sets the clock used for the deadline timer and elapsed time.
func WithClock(c clock.Clock) Option {
	return func(s *settings) {
		if c != nil {
			s.clock = c
		}
	}
}

// OnLate registers a hook invoked from the work goroutine when work finishes
// after the caller already stopped waiting. err is what the work returned.
func OnLate(fn func(err error, elapsed time.Duration)) Option {
	return func(s *settings) {
		s.onLate = fn
	}
}

const (
	pending int32 = iota
	finished
	abandoned
)

type result[T any] struct {
	val T
	err error
}

// Run starts work immediately and waits for it for at most deadline.
//
// work receives a context that carries ctx's values but not its cancellation,
// so it always runs to completion. A deadline <= 0 times out as soon as the
// timer is scheduled unless work has already finished.
func Run[T any](ctx context.Context, deadline time.Duration, work func(context.Context) (T, error), opts ...Option) Outcome[T] {
	st := settings{clock: clock.Real()}
	for _, o := range opts {
		o(&st)
	}

	start := st.clock.Now()

	// state decides, exactly once, whether the result goes to the caller
	// or to the late hook.
	var state atomic.Int32
	done := make(chan result[T], 1)

	go func() {
		v, err := work(context.WithoutCancel(ctx))
		if state.CompareAndSwap(pending, finished) {
			done <- result[T]{val: v, err: err}
			return
		}
		if st.onLate != nil {
			st.onLate(err, clock.Since(st.clock, start))
		}
	}()

	timer := st.clock.NewTimer(deadline)
	defer timer.Stop()

	var stopErr error
	select {
	case r := <-done:
		return Outcome[T]{Value: r.val, Err: r.err, Elapsed: clock.Since(st.clock, start)}
	case <-timer.C():
		stopErr = ErrTimedOut
	case <-ctx.Done():
		stopErr = ctx.Err()
	}

	if !state.CompareAndSwap(pending, abandoned) {
		// Work finished while the timer was firing; it won.
		r := <-done
		return Outcome[T]{Value: r.val, Err: r.err, Elapsed: clock.Since(st.clock, start)}
	}
	return Outcome[T]{Err: stopErr, TimedOut: true, Elapsed: clock.Since(st.clock, start)}
}
