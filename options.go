package rawrcart

import (
	"log/slog"
	"time"

	"github.com/Keksclan/rawrcart/cache"
	"github.com/Keksclan/rawrcart/metrics"
	"github.com/Keksclan/rawrcart/policy"
	"github.com/Keksclan/rawrcart/ratelimit"
	"github.com/Keksclan/rawrcart/tracing"
	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"
)

// Option configures a Server.
type Option func(*config)

// WithUnaryInterceptor appends a unary server interceptor. User interceptors
// run after every built-in one, in the order they were passed.
func WithUnaryInterceptor(i grpc.UnaryServerInterceptor) Option {
	return func(c *config) {
		c.middlewares.Add("unary", PriorityUser, i, nil)
	}
}

// WithStreamInterceptor appends a stream server interceptor. User
// interceptors run after every built-in one, in the order they were passed.
func WithStreamInterceptor(i grpc.StreamServerInterceptor) Option {
	return func(c *config) {
		c.middlewares.Add("stream", PriorityUser, nil, i)
	}
}

// WithRecovery installs panic recovery so that a panic inside a handler
// returns codes.Internal instead of crashing the process.
func WithRecovery() Option {
	return func(c *config) { c.recovery = true }
}

// WithRequestID tags every call with a request id taken from the incoming
// x-request-id header or generated, and echoes it back as a response header.
func WithRequestID() Option {
	return func(c *config) { c.requestID = true }
}

// WithLogger sets the logger used by the built-in interceptors and enables
// per-call logging.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
		c.logging = true
	}
}

// WithMetrics registers the rawrcart collectors on reg and enables per-call
// request counting. A nil reg uses prometheus.DefaultRegisterer.
func WithMetrics(reg *prometheus.Registry) Option {
	return func(c *config) {
		c.registry = reg
		if reg == nil {
			c.metrics = metrics.New(prometheus.DefaultRegisterer)
		} else {
			c.metrics = metrics.New(reg)
		}
		c.logging = true
	}
}

// WithOpenTelemetry opens one server span per RPC using cfg's provider and
// propagators.
func WithOpenTelemetry(cfg tracing.Config) Option {
	return func(c *config) { c.tracing = &cfg }
}

// WithRateLimitGlobal throttles every method without a group rate limit to
// rps requests per second with the given burst.
func WithRateLimitGlobal(rps float64, burst int) Option {
	return func(c *config) {
		c.globalLimiter = ratelimit.NewLimiter(rps, burst)
		c.rateLimit = true
	}
}

// WithGlobalWindow throttles every method without a group rate limit to n
// requests per window.
func WithGlobalWindow(n int, window time.Duration) Option {
	return func(c *config) {
		c.globalLimiter = ratelimit.PerWindow(n, window)
		c.rateLimit = true
	}
}

// WithPolicies sets the method groups. Group timeouts are published to
// handlers through the context, group rate limits enable the rate limiter.
func WithPolicies(r *policy.Resolver) Option {
	return func(c *config) {
		c.resolver = r
		c.rateLimit = true
	}
}

// WithCacheL1 configures the in-process ristretto cache holding at most
// maxEntries entries.
func WithCacheL1(maxEntries int64) Option {
	return func(c *config) { c.l1MaxCost = maxEntries }
}

// WithCacheL2 configures Redis as the second cache level. Without
// WithCacheL1 a default-sized L1 is added in front of it.
func WithCacheL2(addr, username, password string, db int) Option {
	return func(c *config) {
		c.redis = &cache.RedisOptions{Addr: addr, Username: username, Password: password, DB: db}
	}
}
