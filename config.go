package rawrcart

import (
	"log/slog"

	"github.com/Keksclan/rawrcart/cache"
	"github.com/Keksclan/rawrcart/interceptors"
	"github.com/Keksclan/rawrcart/internal/core"
	"github.com/Keksclan/rawrcart/metrics"
	"github.com/Keksclan/rawrcart/policy"
	"github.com/Keksclan/rawrcart/ratelimit"
	"github.com/Keksclan/rawrcart/tracing"
	"github.com/prometheus/client_golang/prometheus"
)

// config holds the resolved server configuration. Options only record what
// was asked for; the interceptors are registered in NewServer once every
// option has run, so the logger and metrics reach all of them regardless of
// option order.
type config struct {
	middlewares core.MiddlewareBuilder

	recovery  bool
	requestID bool
	logging   bool

	logger   *slog.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics

	tracing *tracing.Config

	resolver      *policy.Resolver
	globalLimiter *ratelimit.Limiter
	rateLimit     bool

	l1MaxCost int64
	redis     *cache.RedisOptions
}

func newConfig() *config {
	return &config{logger: slog.Default()}
}

// registerMiddlewares adds every enabled interceptor at its fixed priority.
func (c *config) registerMiddlewares() {
	if c.recovery {
		c.middlewares.Add("recovery", PriorityRecovery,
			interceptors.RecoveryUnary(c.logger), interceptors.RecoveryStream(c.logger))
	}
	if c.requestID {
		c.middlewares.Add("request-id", PriorityRequestID,
			interceptors.RequestIDUnary(), interceptors.RequestIDStream())
	}
	if c.tracing != nil {
		c.middlewares.Add("tracing", PriorityTracing,
			tracing.UnaryServerInterceptor(c.tracing), tracing.StreamServerInterceptor(c.tracing))
	}
	if c.resolver != nil {
		c.middlewares.Add("policy", PriorityPolicy,
			interceptors.PolicyUnary(c.resolver), interceptors.PolicyStream(c.resolver))
	}
	if c.logging {
		c.middlewares.Add("logging", PriorityLogging,
			interceptors.LoggingUnary(c.logger, c.metrics), interceptors.LoggingStream(c.logger, c.metrics))
	}
	if c.rateLimit {
		c.middlewares.Add("rate-limit", PriorityRateLimit,
			interceptors.RateLimitUnary(c.globalLimiter, c.resolver), interceptors.RateLimitStream(c.globalLimiter, c.resolver))
	}
}
