package rawrcart

import (
	"context"
	"io"
	"log/slog"
	"slices"
	"testing"

	"github.com/Keksclan/rawrcart/tracing"
	"google.golang.org/grpc"
)

func TestBuiltinOrderIgnoresOptionOrder(t *testing.T) {
	cfg := newConfig()
	// Passed in reverse; priorities must put them back in order.
	for _, o := range []Option{
		WithRateLimitGlobal(10, 10),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithPolicies(DefaultPolicies()),
		WithOpenTelemetry(tracing.Config{}),
		WithRequestID(),
		WithRecovery(),
	} {
		o(cfg)
	}
	cfg.registerMiddlewares()

	want := []string{"recovery", "request-id", "tracing", "policy", "logging", "rate-limit"}
	if got := cfg.middlewares.Names(); !slices.Equal(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestUserInterceptorsRunAfterBuiltinsInPassOrder(t *testing.T) {
	var log []string

	mkUnary := func(tag string) grpc.UnaryServerInterceptor {
		return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
			log = append(log, tag)
			return handler(ctx, req)
		}
	}

	cfg := newConfig()
	WithUnaryInterceptor(mkUnary("first"))(cfg)
	WithUnaryInterceptor(mkUnary("second"))(cfg)
	WithRecovery()(cfg)
	cfg.registerMiddlewares()
	cfg.middlewares.Add("probe", PriorityRecovery+1, mkUnary("builtin"), nil)

	unary, _ := cfg.middlewares.Build()

	handler := func(_ context.Context, req any) (any, error) {
		log = append(log, "handler")
		return req, nil
	}

	curr := handler
	for i := len(unary) - 1; i >= 0; i-- {
		next := curr
		ic := unary[i]
		curr = func(ctx context.Context, req any) (any, error) {
			return ic(ctx, req, &grpc.UnaryServerInfo{FullMethod: "/x/y"}, next)
		}
	}

	if _, err := curr(t.Context(), "req"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := []string{"builtin", "first", "second", "handler"}
	if !slices.Equal(log, expected) {
		t.Fatalf("got %v, want %v", log, expected)
	}
}

func TestWithRecoveryRegistersMiddleware(t *testing.T) {
	cfg := newConfig()
	WithRecovery()(cfg)
	WithRequestID()(cfg)
	cfg.registerMiddlewares()

	unary, stream := cfg.middlewares.Build()
	if len(unary) != 2 {
		t.Fatalf("expected 2 unary interceptors, got %d", len(unary))
	}
	if len(stream) != 2 {
		t.Fatalf("expected 2 stream interceptors, got %d", len(stream))
	}
}

func TestNoOptionsRegisterNothing(t *testing.T) {
	cfg := newConfig()
	cfg.registerMiddlewares()
	if n := len(cfg.middlewares.Names()); n != 0 {
		t.Fatalf("expected no middleware, got %d", n)
	}
}
