package interceptors

import (
	"context"
	"crypto/rand"
	"encoding/hex"

	"github.com/Keksclan/rawrcart/contextx"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

// RequestIDHeader is the metadata key carrying the request ID in both
// directions.
const RequestIDHeader = "x-request-id"

// newRequestID generates a random hex-encoded request identifier.
func newRequestID() string {
	var buf [16]byte
	_, _ = rand.Read(buf[:])
	return hex.EncodeToString(buf[:])
}

// ensureRequestID returns the context enriched with a request ID: the one
// already in ctx, the one sent by the client, or a fresh one.
func ensureRequestID(ctx context.Context) (context.Context, string) {
	if id := contextx.RequestIDFromContext(ctx); id != "" {
		return ctx, id
	}
	id := ""
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if vals := md.Get(RequestIDHeader); len(vals) > 0 && vals[0] != "" {
			id = vals[0]
		}
	}
	if id == "" {
		id = newRequestID()
	}
	return contextx.WithRequestID(ctx, id), id
}

// RequestIDUnary returns a unary server interceptor that ensures a request ID
// is present in the context and echoes it in the response header.
func RequestIDUnary() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		ctx, id := ensureRequestID(ctx)
		// Fails only outside a real RPC, e.g. when called directly in tests.
		_ = grpc.SetHeader(ctx, metadata.Pairs(RequestIDHeader, id))
		return handler(ctx, req)
	}
}

// RequestIDStream returns a stream server interceptor that ensures a request
// ID is present in the stream's context.
func RequestIDStream() grpc.StreamServerInterceptor {
	return func(
		srv any,
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) error {
		ctx, id := ensureRequestID(ss.Context())
		_ = ss.SetHeader(metadata.Pairs(RequestIDHeader, id))
		return handler(srv, &contextStream{ServerStream: ss, ctx: ctx})
	}
}

// contextStream overrides the context of a wrapped ServerStream.
type contextStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *contextStream) Context() context.Context { return s.ctx }
