// Package rawrcart assembles the shop gRPC server: a grpc.Server with an
// ordered interceptor chain, the L1/L2 product cache and the Prometheus
// handler, all configured through functional Option values.
package rawrcart

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/Keksclan/rawrcart/cache"
	"github.com/Keksclan/rawrcart/interceptors"
	"github.com/Keksclan/rawrcart/metrics"
	"github.com/Keksclan/rawrcart/shop"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
)

// Cache backend names reported by Server.CacheBackend.
const (
	BackendNone   = "none"
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Server is a composable wrapper around a [grpc.Server] that layers
// middleware (recovery, request ids, tracing, policies, logging, rate
// limiting) and owns the cache the shop reads through.
//
// After construction the underlying gRPC server is available through
// [Server.GRPC]; the shop service is usually registered with
// [Server.RegisterShop]:
//
//	srv, err := rawrcart.NewServer(rawrcart.DefaultOptions()...)
//	srv.RegisterShop(shop.NewService(deps))
type Server struct {
	grpcServer *grpc.Server
	cache      cache.Cache
	backend    string
	l1         *cache.L1
	l2         *cache.L2
	cfg        *config
}

// NewServer creates a [Server] by applying the supplied options and wiring
// the resulting unary and stream interceptor chains into [grpc.NewServer].
// Middleware execution order is determined by the Priority constants, not by
// the order options are passed.
//
// Example:
//
//	srv, err := rawrcart.NewServer(
//		rawrcart.WithRecovery(),
//		rawrcart.WithRateLimitGlobal(500, 100),
//		rawrcart.WithCacheL1(10_000),
//	)
func NewServer(opts ...Option) (*Server, error) {
	cfg := newConfig()
	for _, o := range opts {
		o(cfg)
	}

	s := &Server{backend: BackendNone, cfg: cfg}

	maxCost := cfg.l1MaxCost
	if maxCost <= 0 && cfg.redis != nil {
		maxCost = DefaultL1MaxCost
	}
	if maxCost > 0 {
		l1, err := cache.NewL1(maxCost)
		if err != nil {
			return nil, fmt.Errorf("rawrcart: l1 cache: %w", err)
		}
		s.l1, s.cache, s.backend = l1, l1, BackendMemory
	}
	// When both levels are configured, combine them into a tiered cache.
	if cfg.redis != nil {
		s.l2 = cache.NewL2(*cfg.redis)
		s.cache, s.backend = cache.NewTiered(s.l1, s.l2), BackendRedis
	}

	cfg.registerMiddlewares()
	cfg.logger.Debug("middleware chain", slog.Any("order", cfg.middlewares.Names()))
	serverOpts := cfg.middlewares.ServerOptions(interceptors.ChainUnary, interceptors.ChainStream)

	s.grpcServer = grpc.NewServer(serverOpts...)
	return s, nil
}

// GRPC returns the underlying *grpc.Server so callers can register services.
func (s *Server) GRPC() *grpc.Server {
	return s.grpcServer
}

// Cache returns the configured cache: the L1 cache alone, or L1 in front of
// Redis when WithCacheL2 was given. It returns nil if no cache was
// configured.
func (s *Server) Cache() cache.Cache {
	return s.cache
}

// CacheBackend names the cache in use: "none", "memory" or "redis".
func (s *Server) CacheBackend() string {
	return s.backend
}

// PingCache checks that Redis is reachable. It returns nil when no Redis
// level is configured.
func (s *Server) PingCache(ctx context.Context) error {
	if s.l2 == nil {
		return nil
	}
	return s.l2.Ping(ctx)
}

// Metrics returns the collectors registered by WithMetrics, or nil.
func (s *Server) Metrics() *metrics.Metrics {
	return s.cfg.metrics
}

// RegisterShop registers the rawrcart.Shop service on the underlying gRPC
// server.
func (s *Server) RegisterShop(h shop.Handler) {
	shop.Register(s.grpcServer, h)
}

// MetricsHandler returns an http.Handler that serves Prometheus metrics from
// the registry given to WithMetrics, or from the default registry.
func (s *Server) MetricsHandler() http.Handler {
	if s.cfg.registry != nil {
		return promhttp.HandlerFor(s.cfg.registry, promhttp.HandlerOpts{})
	}
	return promhttp.Handler()
}

// Close releases the cache connections. It does not stop the gRPC server.
func (s *Server) Close() error {
	if s.l1 != nil {
		s.l1.Close()
	}
	if s.l2 != nil {
		return s.l2.Close()
	}
	return nil
}
