package interceptors

import (
	"context"
	"log/slog"
	"runtime/debug"

	"github.com/Keksclan/rawrcart/contextx"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var errInternal = status.Error(codes.Internal, "internal server error")

func logPanic(ctx context.Context, l *slog.Logger, method string, r any) {
	if l == nil {
		l = slog.Default()
	}
	l.ErrorContext(ctx, "panic in handler",
		slog.String("method", method),
		slog.String("request_id", contextx.RequestIDFromContext(ctx)),
		slog.Any("panic", r),
		slog.String("stack", string(debug.Stack())),
	)
}

// RecoveryUnary returns a unary server interceptor that recovers from panics,
// logs them on l (slog.Default() when nil) and returns an Internal gRPC
// error instead of crashing the process.
func RecoveryUnary(l *slog.Logger) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (resp any, err error) {
		defer func() {
			if r := recover(); r != nil {
				logPanic(ctx, l, info.FullMethod, r)
				resp = nil
				err = errInternal
			}
		}()
		return handler(ctx, req)
	}
}

// RecoveryStream is the stream counterpart of RecoveryUnary.
func RecoveryStream(l *slog.Logger) grpc.StreamServerInterceptor {
	return func(
		srv any,
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) (err error) {
		defer func() {
			if r := recover(); r != nil {
				ctx := context.Background()
				if ss != nil {
					ctx = ss.Context()
				}
				logPanic(ctx, l, info.FullMethod, r)
				err = errInternal
			}
		}()
		return handler(srv, ss)
	}
}
