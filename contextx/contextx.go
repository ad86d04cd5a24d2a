// Package contextx carries per-call values set by the server interceptors:
// the request id, the policy group and the time budget of that group.
package contextx

import (
	"context"
	"time"
)

// key is a typed context key. Distinct names give distinct keys, and the
// unexported type keeps them from colliding with other packages.
type key[T any] struct{ name string }

func (k key[T]) with(ctx context.Context, v T) context.Context {
	return context.WithValue(ctx, k, v)
}

func (k key[T]) from(ctx context.Context) (T, bool) {
	v, ok := ctx.Value(k).(T)
	return v, ok
}

var (
	requestIDKey = key[string]{"request-id"}
	groupKey     = key[string]{"group"}
	timeoutKey   = key[time.Duration]{"timeout"}
)

// WithRequestID returns a derived context that carries the given request ID.
func WithRequestID(ctx context.Context, id string) context.Context {
	return requestIDKey.with(ctx, id)
}

// RequestIDFromContext extracts the request ID stored in ctx.
// It returns an empty string when no request ID is present.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := requestIDKey.from(ctx)
	return id
}

// WithGroup returns a derived context that carries the policy group name.
func WithGroup(ctx context.Context, group string) context.Context {
	return groupKey.with(ctx, group)
}

// GroupFromContext extracts the group name stored in ctx, or "".
func GroupFromContext(ctx context.Context) string {
	g, _ := groupKey.from(ctx)
	return g
}

// WithTimeout returns a derived context that carries the time budget a
// policy grants the current method. It does not set a context deadline;
// handlers decide how to spend the budget.
func WithTimeout(ctx context.Context, d time.Duration) context.Context {
	return timeoutKey.with(ctx, d)
}

// TimeoutFromContext extracts the budget stored in ctx. The boolean is false
// when no positive budget is present.
func TimeoutFromContext(ctx context.Context) (time.Duration, bool) {
	d, ok := timeoutKey.from(ctx)
	return d, ok && d > 0
}
