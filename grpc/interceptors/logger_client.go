package interceptors

import (
	"context"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/rainbow-me/rpc-interceptors/common/headers"
	"github.com/rainbow-me/rpc-interceptors/common/logger"
	"github.com/rainbow-me/rpc-interceptors/grpc/callctx"
	"github.com/rainbow-me/rpc-interceptors/grpc/idgen"
)

// UnaryLoggerClientInterceptor creates a gRPC unary client interceptor that logs
// outgoing requests and incoming responses with timing and context information.
// The call's trace id is written to the outgoing x-trace-id header.
func UnaryLoggerClientInterceptor(log *logger.Logger, opts ...LoggingInterceptorOption) grpc.UnaryClientInterceptor {
	config := interceptorConfig(opts...)

	return func(
		ctx context.Context,
		method string,
		req, reply any,
		cc *grpc.ClientConn,
		invoker grpc.UnaryInvoker,
		opts ...grpc.CallOption,
	) error {
		ctx, traceID := stampTraceID(ctx)
		if config.skipped(method) {
			return invoker(ctx, method, req, reply, cc, opts...)
		}

		call := newCallLogger(log, config, sideClient, method, traceID)
		call.started()
		call.request(req)

		err := invoker(ctx, method, req, reply, cc, opts...)
		if err == nil {
			call.response(reply)
		}
		call.finished(ctx, err)
		return err
	}
}

// StreamLoggerClientInterceptor logs every message of a client-side stream. The call is finished when
// the server closes the stream, a receive fails or the caller's context ends.
func StreamLoggerClientInterceptor(log *logger.Logger, opts ...LoggingInterceptorOption) grpc.StreamClientInterceptor {
	config := interceptorConfig(opts...)

	return func(
		ctx context.Context,
		desc *grpc.StreamDesc,
		cc *grpc.ClientConn,
		method string,
		streamer grpc.Streamer,
		opts ...grpc.CallOption,
	) (grpc.ClientStream, error) {
		ctx, traceID := stampTraceID(ctx)
		if config.skipped(method) {
			return streamer(ctx, desc, cc, method, opts...)
		}

		call := newCallLogger(log, config, sideClient, method, traceID)
		call.started()

		cs, err := streamer(ctx, desc, cc, method, opts...)
		if err != nil {
			call.finished(ctx, err)
			return nil, err
		}

		s := &loggingClientStream{
			ClientStream: cs,
			ctx:          ctx,
			call:         call,
			desc:         desc,
			done:         make(chan struct{}),
		}
		go s.watch()
		return s, nil
	}
}

type loggingClientStream struct {
	grpc.ClientStream
	// ctx is the caller's context. The stream's own context is cancelled by grpc once the call
	// completes, so it cannot tell a finished call from an abandoned one.
	ctx  context.Context
	call *callLogger
	desc *grpc.StreamDesc

	once sync.Once
	done chan struct{}
}

func (s *loggingClientStream) SendMsg(m any) error {
	err := s.ClientStream.SendMsg(m)
	if err == nil {
		s.call.request(m)
	}
	return err
}

func (s *loggingClientStream) RecvMsg(m any) error {
	err := s.ClientStream.RecvMsg(m)
	switch {
	case err == nil:
		s.call.response(m)
		if !s.desc.ServerStreams {
			s.finish(nil)
		}
	case isEndOfStream(err):
		s.finish(nil)
	default:
		s.finish(err)
	}
	return err
}

// watch finishes the call when the caller's context ends before the stream is drained.
func (s *loggingClientStream) watch() {
	select {
	case <-s.ctx.Done():
	case <-s.ClientStream.Context().Done():
		// grpc ended the stream; RecvMsg reports the outcome unless the caller gave up.
		if s.ctx.Err() == nil {
			return
		}
	case <-s.done:
		return
	}
	s.finish(status.FromContextError(s.ctx.Err()).Err())
}

func (s *loggingClientStream) finish(err error) {
	s.once.Do(func() {
		s.call.finished(s.ctx, err)
		close(s.done)
	})
}

// stampTraceID resolves the outbound trace id and writes it to the outgoing metadata. A bound trace id
// wins over one already present in the metadata; otherwise a new id is generated.
func stampTraceID(ctx context.Context) (context.Context, string) {
	md, ok := metadata.FromOutgoingContext(ctx)
	if ok {
		md = md.Copy()
	} else {
		md = metadata.MD{}
	}

	traceID := callctx.Binding(ctx).TraceID
	if traceID == "" {
		traceID = firstValue(md, headers.XTraceID)
	}
	if traceID == "" {
		traceID = idgen.NextTraceID()
	}

	md.Set(headers.XTraceID, traceID)
	return metadata.NewOutgoingContext(ctx, md), traceID
}
