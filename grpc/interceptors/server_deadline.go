package interceptors

import (
	"context"
	"time"

	grpcmiddleware "github.com/grpc-ecosystem/go-grpc-middleware"
	"google.golang.org/grpc"
)

// ServerDeadlineInterceptor creates a gRPC unary server interceptor that enforces
// a maximum server-side timeout for all incoming requests.
//
// Timeout behavior:
// - If the incoming request has no deadline, the specified timeout is applied
// - If the incoming request has a deadline shorter than the timeout, the client deadline is used
// - The earliest (shortest) deadline always takes precedence
//
// Usage:
//
//	interceptor := ServerDeadlineInterceptor(30 * time.Second)
//	server := grpc.NewServer(grpc.UnaryInterceptor(interceptor))
func ServerDeadlineInterceptor(timeout time.Duration) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		// If the existing context has an earlier deadline, that deadline wins.
		ctxWithTimeout, cancel := context.WithTimeout(ctx, timeout) //nolint:govet
		defer cancel()

		return handler(ctxWithTimeout, req)
	}
}

// StreamServerDeadlineInterceptor bounds the lifetime of a whole stream the way ServerDeadlineInterceptor
// bounds a unary call.
func StreamServerDeadlineInterceptor(timeout time.Duration) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, _ *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		ctxWithTimeout, cancel := context.WithTimeout(ss.Context(), timeout)
		defer cancel()

		wrapped := grpcmiddleware.WrapServerStream(ss)
		wrapped.WrappedContext = ctxWithTimeout
		return handler(srv, wrapped)
	}
}
