package interceptors

import (
	"context"

	"github.com/DataDog/dd-trace-go/v2/ddtrace/ext"
	"github.com/DataDog/dd-trace-go/v2/ddtrace/tracer"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"github.com/rainbow-me/rpc-interceptors/common/logger"
	"github.com/rainbow-me/rpc-interceptors/grpc/callctx"
	rpcerrors "github.com/rainbow-me/rpc-interceptors/grpc/errors"
)

// UnaryErrorServerInterceptor tags handler errors in the tracing span and replaces errors that carry
// no gRPC status with INTERNAL "Internal server error". The original error is logged, never returned.
func UnaryErrorServerInterceptor(log *logger.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		resp, err := handler(ctx, req)
		return resp, handleError(ctx, log, info.FullMethod, err)
	}
}

// StreamErrorServerInterceptor is the streaming counterpart of UnaryErrorServerInterceptor.
func StreamErrorServerInterceptor(log *logger.Logger) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		return handleError(ss.Context(), log, info.FullMethod, handler(srv, ss))
	}
}

// handleError processes the given error, if any.
func handleError(ctx context.Context, log *logger.Logger, fullMethod string, err error) error {
	if err == nil {
		return nil
	}

	setErrorSpan(ctx, err)

	if rpcerrors.IsStatus(err) {
		return err
	}

	fields := append([]logger.Field{
		logger.String(methodKey, fullMethod),
		logger.Error(err),
	}, callctx.ZapFields(ctx)...)
	log.Error("unexpected handler error", fields...)
	return rpcerrors.Internal().Err()
}

// setErrorSpan tags the tracing span with error details if a span exists in the context.
// For gRPC status errors, it records the code and message.
// For non-status errors, it treats them as system errors.
func setErrorSpan(ctx context.Context, err error) {
	span, ok := tracer.SpanFromContext(ctx)
	if !ok {
		return
	}

	span.SetTag(ext.Error, true)

	if s, isStatus := status.FromError(err); isStatus {
		span.SetTag("rpc.grpc.status_code", s.Code())
		span.SetTag("rpc.grpc.status_message", s.Message())
	} else {
		span.SetTag(ext.ErrorType, "system")
		span.SetTag(ext.ErrorMsg, err.Error())
	}
}
