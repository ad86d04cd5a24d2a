// Command rawrcart serves the shop over gRPC and exposes Prometheus metrics.
//
// Configuration comes from flags, each defaulting to an environment variable
// (see loadConfig). Redis is used as the second cache level when REDIS_HOST
// and REDIS_PORT are set and the server answers a ping; otherwise the
// process runs on the in-memory cache alone.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Keksclan/rawrcart"
	"github.com/Keksclan/rawrcart/breaker"
	"github.com/Keksclan/rawrcart/cache"
	"github.com/Keksclan/rawrcart/cart"
	"github.com/Keksclan/rawrcart/catalog"
	"github.com/Keksclan/rawrcart/fetch"
	"github.com/Keksclan/rawrcart/remote"
	"github.com/Keksclan/rawrcart/shop"
	"github.com/Keksclan/rawrcart/tracing"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"golang.org/x/sync/errgroup"
)

const (
	redisProbeAfter = 2 * time.Second
	shutdownTimeout = 10 * time.Second
)

func main() {
	cfg, err := loadConfig(os.Args[1:], os.Getenv)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("rawrcart stopped", slog.Any("err", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg Config, logger *slog.Logger) error {
	shutdownTracing, err := setupTracing(cfg.TraceStdout)
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = shutdownTracing(sctx)
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	opts := append(rawrcart.DefaultOptions(),
		rawrcart.WithLogger(logger),
		rawrcart.WithMetrics(reg),
		rawrcart.WithOpenTelemetry(tracing.Config{}),
		rawrcart.WithCacheL1(rawrcart.DefaultL1MaxCost),
	)
	if addr := cfg.RedisAddr(); addr != "" {
		redisOpts := cache.RedisOptions{Addr: addr, Username: cfg.RedisUsername, Password: cfg.RedisPassword, DB: cfg.RedisDB}
		if err := probeRedis(ctx, redisOpts); err != nil {
			logger.Warn("redis unreachable, using the in-memory cache", slog.String("addr", addr), slog.Any("err", err))
		} else {
			opts = append(opts, rawrcart.WithCacheL2(addr, cfg.RedisUsername, cfg.RedisPassword, cfg.RedisDB))
		}
	}

	srv, err := rawrcart.NewServer(opts...)
	if err != nil {
		return err
	}
	defer srv.Close()

	m := srv.Metrics()
	carts := cart.NewPipeline(cart.WithLogger(logger), cart.WithMetrics(m))
	products := catalog.New(
		catalog.Generate(cfg.Products, rand.NewSource(time.Now().UnixNano())),
		srv.Cache(),
		catalog.WithLogger(logger),
		catalog.WithMetrics(m),
	)

	br := breaker.New(breaker.Config{
		OnStateChange: func(from, to breaker.State) {
			logger.Warn("external breaker state changed", slog.String("from", from.String()), slog.String("to", to.String()))
		},
	})
	external := fetch.New(
		cache.NewFront[shop.External](srv.Cache(), cache.WithName("external"), cache.WithLogger(logger), cache.WithMetrics(m)),
		fetch.WithBreaker(br),
		fetch.WithLogger(logger),
		fetch.WithMetrics(m),
	)

	srv.RegisterShop(shop.NewService(shop.Deps{
		Carts:    carts,
		Catalog:  products,
		External: external,
		Remote:   shop.HTTPRemote(remote.NewClient(remote.WithLogger(logger)), cfg.ExternalURL),
	},
		shop.WithAddTimeout(cfg.AddTimeout),
		shop.WithCacheBackend(srv.CacheBackend()),
		shop.WithLogger(logger),
	))

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.GRPCAddr, err)
	}

	var metricsSrv *http.Server
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", srv.MetricsHandler())
		metricsSrv = &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("grpc listening",
			slog.String("addr", lis.Addr().String()),
			slog.String("cache", srv.CacheBackend()),
			slog.Int("products", products.Len()),
		)
		return srv.GRPC().Serve(lis)
	})
	if metricsSrv != nil {
		g.Go(func() error {
			logger.Info("metrics listening", slog.String("addr", cfg.MetricsAddr))
			if err := metricsSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		srv.GRPC().GracefulStop()
		if metricsSrv != nil {
			_ = metricsSrv.Shutdown(sctx)
		}
		if err := carts.Drain(sctx); err != nil {
			logger.Warn("cart writes still in flight at exit", slog.Any("err", err))
		}
		return nil
	})

	return g.Wait()
}

func probeRedis(ctx context.Context, opts cache.RedisOptions) error {
	l2 := cache.NewL2(opts)
	defer l2.Close()

	ctx, cancel := context.WithTimeout(ctx, redisProbeAfter)
	defer cancel()
	return l2.Ping(ctx)
}

// setupTracing installs the global tracer provider and W3C propagators.
// Spans are only exported when stdout is set.
func setupTracing(stdout bool) (func(context.Context) error, error) {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	if !stdout {
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}
