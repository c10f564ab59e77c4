package interceptors

import (
	"context"
	"errors"
	"io"

	grpcmiddleware "github.com/grpc-ecosystem/go-grpc-middleware"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"github.com/rainbow-me/rpc-interceptors/common/headers"
	"github.com/rainbow-me/rpc-interceptors/common/logger"
	"github.com/rainbow-me/rpc-interceptors/grpc/callctx"
	"github.com/rainbow-me/rpc-interceptors/grpc/idgen"
)

// UnaryLoggerServerInterceptor creates a gRPC unary server interceptor that logs
// incoming requests and outgoing responses with timing and context information.
//
// This interceptor logs:
// - Request and response payloads (based on configuration)
// - Request timing and duration
// - gRPC method and service names
// - Client ID and trace information
// - Error details and status codes
func UnaryLoggerServerInterceptor(log *logger.Logger, opts ...LoggingInterceptorOption) grpc.UnaryServerInterceptor {
	config := interceptorConfig(opts...)

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if config.skipped(info.FullMethod) {
			return handler(ctx, req)
		}

		call := newCallLogger(log, config, sideServer, info.FullMethod, serverTraceID(ctx))
		ctx = call.contextWithLogger(ctx)
		call.started()
		call.request(req)

		resp, err := handler(ctx, req)
		if err == nil {
			call.response(resp)
		}
		call.finished(ctx, err)
		return resp, err
	}
}

// StreamLoggerServerInterceptor logs every message of a server-side stream and the final outcome.
func StreamLoggerServerInterceptor(log *logger.Logger, opts ...LoggingInterceptorOption) grpc.StreamServerInterceptor {
	config := interceptorConfig(opts...)

	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		if config.skipped(info.FullMethod) {
			return handler(srv, ss)
		}

		ctx := ss.Context()
		call := newCallLogger(log, config, sideServer, info.FullMethod, serverTraceID(ctx))
		call.started()

		wrapped := grpcmiddleware.WrapServerStream(ss)
		wrapped.WrappedContext = call.contextWithLogger(ctx)

		err := handler(srv, &loggingServerStream{WrappedServerStream: wrapped, call: call})
		call.finished(ctx, err)
		return err
	}
}

type loggingServerStream struct {
	*grpcmiddleware.WrappedServerStream
	call *callLogger
}

func (s *loggingServerStream) RecvMsg(m any) error {
	err := s.WrappedServerStream.RecvMsg(m)
	if err == nil {
		s.call.request(m)
	}
	return err
}

func (s *loggingServerStream) SendMsg(m any) error {
	err := s.WrappedServerStream.SendMsg(m)
	if err == nil {
		s.call.response(m)
	}
	return err
}

// serverTraceID prefers the id bound by the auth interceptor, then the inbound header.
func serverTraceID(ctx context.Context) string {
	if id := callctx.TraceID(ctx); id != "" {
		return id
	}
	md, _ := metadata.FromIncomingContext(ctx)
	if id := firstValue(md, headers.XTraceID); id != "" {
		return id
	}
	return idgen.NextTraceID()
}

// isEndOfStream reports whether err only signals an orderly end of stream.
func isEndOfStream(err error) bool {
	return errors.Is(err, io.EOF)
}
