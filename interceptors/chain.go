package interceptors

import (
	"context"
	"slices"

	"google.golang.org/grpc"
)

// ChainUnary composes unary interceptors into one; they run in slice order.
// It returns nil for an empty slice and the interceptor itself for a single
// one. The slice is copied, so later changes to it do not affect the chain.
func ChainUnary(ics []grpc.UnaryServerInterceptor) grpc.UnaryServerInterceptor {
	switch len(ics) {
	case 0:
		return nil
	case 1:
		return ics[0]
	}
	ics = slices.Clone(ics)

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		return ics[0](ctx, req, info, unaryStep(ics, 1, info, handler))
	}
}

// unaryStep returns the handler that runs ics[i:] before final.
func unaryStep(ics []grpc.UnaryServerInterceptor, i int, info *grpc.UnaryServerInfo, final grpc.UnaryHandler) grpc.UnaryHandler {
	if i == len(ics) {
		return final
	}
	return func(ctx context.Context, req any) (any, error) {
		return ics[i](ctx, req, info, unaryStep(ics, i+1, info, final))
	}
}

// ChainStream composes stream interceptors into one; they run in slice
// order. Empty and single-element slices are handled as in ChainUnary.
func ChainStream(ics []grpc.StreamServerInterceptor) grpc.StreamServerInterceptor {
	switch len(ics) {
	case 0:
		return nil
	case 1:
		return ics[0]
	}
	ics = slices.Clone(ics)

	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		return ics[0](srv, ss, info, streamStep(ics, 1, info, handler))
	}
}

func streamStep(ics []grpc.StreamServerInterceptor, i int, info *grpc.StreamServerInfo, final grpc.StreamHandler) grpc.StreamHandler {
	if i == len(ics) {
		return final
	}
	return func(srv any, ss grpc.ServerStream) error {
		return ics[i](srv, ss, info, streamStep(ics, i+1, info, final))
	}
}
