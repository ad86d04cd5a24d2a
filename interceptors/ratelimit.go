package interceptors

import (
	"context"
	"sync"

	"github.com/Keksclan/rawrcart/contextx"
	"github.com/Keksclan/rawrcart/policy"
	"github.com/Keksclan/rawrcart/ratelimit"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// errRateLimited is allocated once to avoid per-request allocations on the hot path.
var errRateLimited = status.Error(codes.ResourceExhausted, "rate limit exceeded")

// rateLimitState holds the global limiter, an optional policy resolver, and a
// cache of per-group limiters created lazily from resolved policies.
type rateLimitState struct {
	global   *ratelimit.Limiter
	resolver *policy.Resolver

	mu     sync.Mutex
	groups map[string]*ratelimit.Limiter
}

func newRateLimitState(l *ratelimit.Limiter, r *policy.Resolver) *rateLimitState {
	return &rateLimitState{global: l, resolver: r, groups: make(map[string]*ratelimit.Limiter)}
}

// allow checks the per-group limiter when the method resolves to a group
// with a RateLimit rule, and the global limiter otherwise. A nil global
// limiter admits everything.
func (s *rateLimitState) allow(fullMethod string) bool {
	if s.resolver != nil {
		if name, pol, ok := s.resolver.Resolve(fullMethod); ok && pol != nil && pol.RateLimit != nil {
			return s.groupLimiter(name, pol.RateLimit).Allow()
		}
	}
	return s.global == nil || s.global.Allow()
}

// groupLimiter returns (or lazily creates) the limiter of a group.
func (s *rateLimitState) groupLimiter(name string, rl *policy.RateLimitRule) *ratelimit.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	if l, ok := s.groups[name]; ok {
		return l
	}
	l := ratelimit.PerWindow(rl.Rate, rl.Window)
	s.groups[name] = l
	return l
}

func rejected(ctx context.Context) error {
	if g := contextx.GroupFromContext(ctx); g != "" {
		return status.Errorf(codes.ResourceExhausted, "rate limit exceeded for %s", g)
	}
	return errRateLimited
}

// RateLimitUnary returns a unary server interceptor that rejects requests when
// the applicable rate limiter has been exhausted. When a policy resolver is
// provided and the method matches a group with a RateLimit rule, that
// per-group limiter is used; otherwise the global limiter applies.
func RateLimitUnary(l *ratelimit.Limiter, r *policy.Resolver) grpc.UnaryServerInterceptor {
	st := newRateLimitState(l, r)
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		if !st.allow(info.FullMethod) {
			return nil, rejected(ctx)
		}
		return handler(ctx, req)
	}
}

// RateLimitStream returns a stream server interceptor that rejects requests
// when the applicable rate limiter has been exhausted.
func RateLimitStream(l *ratelimit.Limiter, r *policy.Resolver) grpc.StreamServerInterceptor {
	st := newRateLimitState(l, r)
	return func(
		srv any,
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) error {
		if !st.allow(info.FullMethod) {
			return rejected(ss.Context())
		}
		return handler(srv, ss)
	}
}
