// Package tracing wires OpenTelemetry into rawrcart: server interceptors that
// open one span per RPC, and a helper for spans inside the cart and fetch
// pipelines. Without a configured provider the global (no-op) one is used.
package tracing

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	grpcStatus "google.golang.org/grpc/status"
)

const instrumentationName = "github.com/Keksclan/rawrcart/tracing"

// Config selects the tracer provider and propagator used by the interceptors.
type Config struct {
	// TracerProvider defaults to otel.GetTracerProvider().
	TracerProvider trace.TracerProvider
	// Propagators defaults to otel.GetTextMapPropagator().
	Propagators propagation.TextMapPropagator
}

func (c *Config) tracer() trace.Tracer {
	tp := c.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return tp.Tracer(instrumentationName)
}

func (c *Config) propagators() propagation.TextMapPropagator {
	if c.Propagators != nil {
		return c.Propagators
	}
	return otel.GetTextMapPropagator()
}

// UnaryServerInterceptor opens a server span per unary RPC. A nil cfg yields
// a passthrough interceptor.
func UnaryServerInterceptor(cfg *Config) grpc.UnaryServerInterceptor {
	if cfg == nil {
		return func(ctx context.Context, req any, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
			return handler(ctx, req)
		}
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		ctx, span := startServerSpan(extract(ctx, cfg), cfg, info.FullMethod)
		defer span.End()

		resp, err := handler(ctx, req)
		recordStatus(span, err)
		return resp, err
	}
}

// StreamServerInterceptor opens a server span per streaming RPC. A nil cfg
// yields a passthrough interceptor.
func StreamServerInterceptor(cfg *Config) grpc.StreamServerInterceptor {
	if cfg == nil {
		return func(srv any, ss grpc.ServerStream, _ *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
			return handler(srv, ss)
		}
	}
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		ctx, span := startServerSpan(extract(ss.Context(), cfg), cfg, info.FullMethod)
		defer span.End()

		err := handler(srv, &tracedStream{ServerStream: ss, ctx: ctx})
		recordStatus(span, err)
		return err
	}
}

func startServerSpan(ctx context.Context, cfg *Config, fullMethod string) (context.Context, trace.Span) {
	service, method := splitFullMethod(fullMethod)
	return cfg.tracer().Start(ctx, fullMethod,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("rpc.system", "grpc"),
			attribute.String("rpc.service", service),
			attribute.String("rpc.method", method),
		),
	)
}

// mdCarrier exposes incoming gRPC metadata as a propagation.TextMapCarrier.
type mdCarrier metadata.MD

func (c mdCarrier) Get(key string) string {
	if v := metadata.MD(c).Get(key); len(v) > 0 {
		return v[0]
	}
	return ""
}

func (c mdCarrier) Set(key, value string) { metadata.MD(c).Set(key, value) }

func (c mdCarrier) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	return keys
}

func extract(ctx context.Context, cfg *Config) context.Context {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		md = metadata.MD{}
	}
	return cfg.propagators().Extract(ctx, mdCarrier(md))
}

// splitFullMethod turns "/rawrcart.Shop/AddItem" into ("rawrcart.Shop", "AddItem").
func splitFullMethod(fullMethod string) (string, string) {
	service, method, ok := strings.Cut(strings.TrimPrefix(fullMethod, "/"), "/")
	if !ok {
		return service, ""
	}
	return service, method
}

func recordStatus(span trace.Span, err error) {
	st, _ := grpcStatus.FromError(err)
	span.SetAttributes(attribute.String("rpc.grpc.status_code", st.Code().String()))
	if err == nil {
		span.SetStatus(codes.Ok, "")
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, st.Message())
}

type tracedStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *tracedStream) Context() context.Context { return s.ctx }
