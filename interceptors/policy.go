package interceptors

import (
	"context"

	"github.com/Keksclan/rawrcart/contextx"
	"github.com/Keksclan/rawrcart/policy"
	"google.golang.org/grpc"
)

// withPolicy stores the resolved group name and its timeout budget in ctx.
func withPolicy(ctx context.Context, r *policy.Resolver, fullMethod string) context.Context {
	name, pol, ok := r.Resolve(fullMethod)
	if !ok {
		return ctx
	}
	ctx = contextx.WithGroup(ctx, name)
	if pol != nil && pol.Timeout > 0 {
		ctx = contextx.WithTimeout(ctx, pol.Timeout)
	}
	return ctx
}

// PolicyUnary returns a unary server interceptor that resolves the method's
// policy group and records the group name and timeout budget in the context
// for later interceptors and handlers.
func PolicyUnary(r *policy.Resolver) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		return handler(withPolicy(ctx, r, info.FullMethod), req)
	}
}

// PolicyStream is the stream counterpart of PolicyUnary.
func PolicyStream(r *policy.Resolver) grpc.StreamServerInterceptor {
	return func(
		srv any,
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) error {
		ctx := withPolicy(ss.Context(), r, info.FullMethod)
		return handler(srv, &contextStream{ServerStream: ss, ctx: ctx})
	}
}
