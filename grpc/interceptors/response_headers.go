package interceptors

import (
	"context"
	"strconv"

	"github.com/DataDog/dd-trace-go/v2/ddtrace/tracer"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"github.com/rainbow-me/rpc-interceptors/common/headers"
	"github.com/rainbow-me/rpc-interceptors/grpc/callctx"
)

// HeaderXSpanID carries the Datadog span id of the server span when tracing is enabled.
const HeaderXSpanID = "x-span-id"

// ResponseHeadersInterceptor echoes the resolved trace id, the Datadog span id and the inbound request
// id back to the caller as response headers. The headers are set before the handler runs so they are
// sent with the first response message.
func ResponseHeadersInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if md := responseHeaders(ctx); md.Len() > 0 {
			_ = grpc.SetHeader(ctx, md)
		}
		return handler(ctx, req)
	}
}

// StreamResponseHeadersInterceptor is the streaming counterpart of ResponseHeadersInterceptor.
func StreamResponseHeadersInterceptor() grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, _ *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		if md := responseHeaders(ss.Context()); md.Len() > 0 {
			_ = ss.SetHeader(md)
		}
		return handler(srv, ss)
	}
}

func responseHeaders(ctx context.Context) metadata.MD {
	md := metadata.MD{}

	if traceID := callctx.TraceID(ctx); traceID != "" {
		md.Set(headers.XTraceID, traceID)
	}
	if span, ok := tracer.SpanFromContext(ctx); ok {
		md.Set(HeaderXSpanID, strconv.FormatUint(span.Context().SpanID(), 10))
	}
	if in, ok := metadata.FromIncomingContext(ctx); ok {
		if requestID := firstValue(in, headers.XRequestID); requestID != "" {
			md.Set(headers.XRequestID, requestID)
		}
	}

	return md
}
