package interceptors

import (
	"context"
	"log/slog"
	"time"

	"github.com/Keksclan/rawrcart/contextx"
	"github.com/Keksclan/rawrcart/metrics"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// levelFor logs server-side failures as errors and client-side ones as
// warnings.
func levelFor(code codes.Code) slog.Level {
	switch code {
	case codes.OK:
		return slog.LevelInfo
	case codes.Internal, codes.Unknown, codes.DataLoss, codes.Unimplemented:
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

func logCall(ctx context.Context, l *slog.Logger, m *metrics.Metrics, method string, start time.Time, err error) {
	code := status.Code(err)
	m.Request(method, code.String())

	attrs := []slog.Attr{
		slog.String("method", method),
		slog.String("code", code.String()),
		slog.Duration("duration", time.Since(start)),
	}
	if id := contextx.RequestIDFromContext(ctx); id != "" {
		attrs = append(attrs, slog.String("request_id", id))
	}
	if g := contextx.GroupFromContext(ctx); g != "" {
		attrs = append(attrs, slog.String("group", g))
	}
	if err != nil {
		attrs = append(attrs, slog.String("err", status.Convert(err).Message()))
	}
	l.LogAttrs(ctx, levelFor(code), "rpc finished", attrs...)
}

// LoggingUnary returns a unary server interceptor that logs every call on l
// and counts it on m. Either may be nil.
func LoggingUnary(l *slog.Logger, m *metrics.Metrics) grpc.UnaryServerInterceptor {
	if l == nil {
		l = slog.Default()
	}
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		logCall(ctx, l, m, info.FullMethod, start, err)
		return resp, err
	}
}

// LoggingStream is the stream counterpart of LoggingUnary.
func LoggingStream(l *slog.Logger, m *metrics.Metrics) grpc.StreamServerInterceptor {
	if l == nil {
		l = slog.Default()
	}
	return func(
		srv any,
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) error {
		start := time.Now()
		err := handler(srv, ss)
		logCall(ss.Context(), l, m, info.FullMethod, start, err)
		return err
	}
}
