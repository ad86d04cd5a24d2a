// Package ratelimit provides the token-bucket limiters behind rawrcart's
// request throttling, backed by golang.org/x/time/rate.
package ratelimit

import (
	"time"

	"golang.org/x/time/rate"
)

// Limiter wraps a token-bucket limiter that decides whether an incoming
// request should be allowed.
type Limiter struct {
	lim *rate.Limiter
}

// NewLimiter creates a Limiter that permits rps requests per second with the
// given burst size.
func NewLimiter(rps float64, burst int) *Limiter {
	return &Limiter{lim: rate.NewLimiter(rate.Limit(rps), burst)}
}

// PerWindow creates a Limiter allowing n requests per window: a full bucket
// of n that refills evenly over window. PerWindow(30, time.Minute) admits a
// burst of 30 and then one request every two seconds.
func PerWindow(n int, window time.Duration) *Limiter {
	if n <= 0 || window <= 0 {
		return &Limiter{lim: rate.NewLimiter(rate.Inf, 0)}
	}
	return &Limiter{lim: rate.NewLimiter(rate.Every(window/time.Duration(n)), n)}
}

// Allow reports whether a single request may proceed.
func (l *Limiter) Allow() bool {
	return l.lim.Allow()
}

// Delay reports how long a caller should wait before retrying after Allow
// returned false.
func (l *Limiter) Delay() time.Duration {
	r := l.lim.Reserve()
	defer r.Cancel()
	return r.Delay()
}
