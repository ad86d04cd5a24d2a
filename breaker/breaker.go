// Package breaker guards calls to a flaky dependency with a small
// thread-safe circuit breaker.
//
// States:
//   - Closed: calls flow normally; consecutive failures are counted.
//   - Open: calls are rejected with ErrOpen; after OpenTimeout the breaker
//     moves to HalfOpen.
//   - HalfOpen: up to HalfOpenMaxSuccess probes are let through; that many
//     successes close the breaker, any failure reopens it.
package breaker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Keksclan/rawrcart/internal/clock"
)

// ErrOpen is returned by Do while the breaker rejects calls.
var ErrOpen = errors.New("breaker: circuit open")

// State represents the current circuit breaker state.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Config holds the circuit breaker parameters. Zero fields take the values
// of DefaultConfig.
type Config struct {
	// FailureThreshold is the number of consecutive failures in Closed state
	// before the breaker trips to Open.
	FailureThreshold int

	// OpenTimeout is how long the breaker stays Open before transitioning
	// to HalfOpen.
	OpenTimeout time.Duration

	// HalfOpenMaxSuccess is the number of consecutive successes required in
	// HalfOpen state to close the breaker again.
	HalfOpenMaxSuccess int

	// OnStateChange, if set, is called with the old and new state after
	// every transition. It runs with the breaker's lock held and must not
	// call back into the breaker.
	OnStateChange func(from, to State)
}

// DefaultConfig trips after five straight failures and probes again after
// thirty seconds.
func DefaultConfig() Config {
	return Config{FailureThreshold: 5, OpenTimeout: 30 * time.Second, HalfOpenMaxSuccess: 1}
}

// Breaker is a minimal circuit breaker. All methods are safe for concurrent use.
type Breaker struct {
	mu sync.Mutex

	cfg   Config
	clock clock.Clock

	state     State
	failures  int // consecutive failures in Closed
	successes int // consecutive successes in HalfOpen
	openedAt  time.Time
}

// New creates a Breaker with the given configuration on the real clock.
func New(cfg Config) *Breaker {
	return NewWithClock(cfg, clock.Real())
}

// NewWithClock creates a Breaker reading time from c.
func NewWithClock(cfg Config, c clock.Clock) *Breaker {
	def := DefaultConfig()
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = def.OpenTimeout
	}
	if cfg.HalfOpenMaxSuccess <= 0 {
		cfg.HalfOpenMaxSuccess = def.HalfOpenMaxSuccess
	}
	return &Breaker{cfg: cfg, clock: c, state: Closed}
}

// State returns the current state of the breaker. In Open state it may
// auto-transition to HalfOpen if the timeout has elapsed.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.checkOpenTimeout()
	return b.state
}

// Allow reports whether a call may go through: always when Closed, while
// probe slots remain when HalfOpen, never when Open.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.checkOpenTimeout()

	switch b.state {
	case Closed:
		return true
	case HalfOpen:
		return b.successes < b.cfg.HalfOpenMaxSuccess
	default: // Open
		return false
	}
}

// OnSuccess records a successful call.
func (b *Breaker) OnSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed:
		b.failures = 0
	case HalfOpen:
		b.successes++
		if b.successes >= b.cfg.HalfOpenMaxSuccess {
			b.failures = 0
			b.successes = 0
			b.setState(Closed)
		}
	}
}

// OnFailure records a failed call.
func (b *Breaker) OnFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed:
		b.failures++
		if b.failures >= b.cfg.FailureThreshold {
			b.toOpen()
		}
	case HalfOpen:
		b.toOpen()
	}
}

// Do runs fn if the breaker allows it and records the outcome. It returns
// ErrOpen without calling fn while the circuit is open. Context
// cancellation by the caller is not counted as a failure.
func Do[T any](ctx context.Context, b *Breaker, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if !b.Allow() {
		return zero, ErrOpen
	}
	v, err := fn(ctx)
	switch {
	case err == nil:
		b.OnSuccess()
	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
	default:
		b.OnFailure()
	}
	return v, err
}

// checkOpenTimeout transitions from Open to HalfOpen when the timeout has
// elapsed. Must be called with b.mu held.
func (b *Breaker) checkOpenTimeout() {
	if b.state == Open && clock.Since(b.clock, b.openedAt) >= b.cfg.OpenTimeout {
		b.successes = 0
		b.setState(HalfOpen)
	}
}

func (b *Breaker) toOpen() {
	b.openedAt = b.clock.Now()
	b.successes = 0
	b.setState(Open)
}

func (b *Breaker) setState(s State) {
	from := b.state
	b.state = s
	if from != s && b.cfg.OnStateChange != nil {
		b.cfg.OnStateChange(from, s)
	}
}
