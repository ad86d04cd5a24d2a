// Package core orders server middleware and turns it into grpc.ServerOption
// values.
package core

import (
	"cmp"
	"slices"

	"google.golang.org/grpc"
)

// middleware is a named interceptor pair (unary + stream) with a
// deterministic execution order. Lower Order values run first.
type middleware struct {
	Name   string
	Unary  grpc.UnaryServerInterceptor
	Stream grpc.StreamServerInterceptor
	Order  int
}

// MiddlewareBuilder collects middleware entries and produces sorted interceptor
// slices ready for chaining.
type MiddlewareBuilder struct {
	entries []middleware
}

// Add registers a middleware entry with the given order.
// Either interceptor may be nil if only one direction is needed.
func (b *MiddlewareBuilder) Add(name string, order int, unary grpc.UnaryServerInterceptor, stream grpc.StreamServerInterceptor) {
	b.entries = append(b.entries, middleware{
		Name:   name,
		Unary:  unary,
		Stream: stream,
		Order:  order,
	})
}

func (b *MiddlewareBuilder) sort() {
	slices.SortStableFunc(b.entries, func(a, c middleware) int {
		return cmp.Compare(a.Order, c.Order)
	})
}

// Build sorts the collected middleware by Order (stable) and returns the
// separated unary and stream interceptor slices.
func (b *MiddlewareBuilder) Build() ([]grpc.UnaryServerInterceptor, []grpc.StreamServerInterceptor) {
	b.sort()

	var unary []grpc.UnaryServerInterceptor
	var stream []grpc.StreamServerInterceptor

	for _, m := range b.entries {
		if m.Unary != nil {
			unary = append(unary, m.Unary)
		}
		if m.Stream != nil {
			stream = append(stream, m.Stream)
		}
	}

	return unary, stream
}

// Names returns the entry names in execution order.
func (b *MiddlewareBuilder) Names() []string {
	b.sort()
	names := make([]string, len(b.entries))
	for i, m := range b.entries {
		names[i] = m.Name
	}
	return names
}

// ServerOptions builds the sorted chains and wraps them as grpc.ServerOption
// values for grpc.NewServer. Empty chains produce no option.
func (b *MiddlewareBuilder) ServerOptions(
	chainUnary func([]grpc.UnaryServerInterceptor) grpc.UnaryServerInterceptor,
	chainStream func([]grpc.StreamServerInterceptor) grpc.StreamServerInterceptor,
) []grpc.ServerOption {
	unary, stream := b.Build()

	var opts []grpc.ServerOption
	if u := chainUnary(unary); u != nil {
		opts = append(opts, grpc.UnaryInterceptor(u))
	}
	if s := chainStream(stream); s != nil {
		opts = append(opts, grpc.StreamInterceptor(s))
	}
	return opts
}
