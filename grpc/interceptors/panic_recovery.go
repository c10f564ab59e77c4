package interceptors

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"

	"github.com/DataDog/dd-trace-go/v2/ddtrace/ext"
	"github.com/DataDog/dd-trace-go/v2/ddtrace/tracer"
	grpcrecovery "github.com/grpc-ecosystem/go-grpc-middleware/recovery"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"

	"github.com/rainbow-me/rpc-interceptors/common/env"
	"github.com/rainbow-me/rpc-interceptors/common/logger"
	"github.com/rainbow-me/rpc-interceptors/grpc/callctx"
	rpcerrors "github.com/rainbow-me/rpc-interceptors/grpc/errors"
)

// UnaryPanicRecoveryServerInterceptor creates a gRPC unary server interceptor that recovers
// from panics in gRPC handlers, logs them with structured information, and returns
// INTERNAL "Internal server error" to the caller. Panic details never reach the client.
func UnaryPanicRecoveryServerInterceptor(log *logger.Logger) grpc.UnaryServerInterceptor {
	return grpcrecovery.UnaryServerInterceptor(
		grpcrecovery.WithRecoveryHandlerContext(recoveryHandler(log)),
	)
}

// StreamPanicRecoveryServerInterceptor is the streaming counterpart of UnaryPanicRecoveryServerInterceptor.
func StreamPanicRecoveryServerInterceptor(log *logger.Logger) grpc.StreamServerInterceptor {
	return grpcrecovery.StreamServerInterceptor(
		grpcrecovery.WithRecoveryHandlerContext(recoveryHandler(log)),
	)
}

func recoveryHandler(log *logger.Logger) grpcrecovery.RecoveryHandlerFuncContext {
	return func(ctx context.Context, panicValue any) error {
		logPanicWithFallback(ctx, panicValue, log)

		// Mark the span as failed if tracing is available
		if span, ok := tracer.SpanFromContext(ctx); ok {
			span.SetTag(ext.Error, true)
			span.SetTag(ext.ErrorType, "panic")
			span.SetTag(ext.ErrorMsg, codes.Internal.String())
		}

		return rpcerrors.Internal().Err()
	}
}

// logPanicWithFallback logs panic information using structured logging when available,
// or falls back to standard error if the logger is unavailable.
func logPanicWithFallback(ctx context.Context, panicValue any, log *logger.Logger) {
	if log != nil {
		fields := append(logger.WithPanic(panicValue), callctx.ZapFields(ctx)...)
		log.Error("recovered from panic in grpc handler", fields...)
	} else {
		slog.New(slog.NewTextHandler(os.Stderr, nil)).
			Error("recovered from panic", logger.PanicValueKey, fmt.Sprintf("%+v", panicValue))
	}
	if env.IsLocalApplicationEnv() {
		// pretty print the stack trace to the local console to make it human-readable
		_, _ = fmt.Fprintf(os.Stderr, "%s\n", debug.Stack())
	}
}
