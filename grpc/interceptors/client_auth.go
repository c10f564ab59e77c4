package interceptors

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"github.com/rainbow-me/rpc-interceptors/common/headers"
	"github.com/rainbow-me/rpc-interceptors/common/logger"
	"github.com/rainbow-me/rpc-interceptors/grpc/auth"
	"github.com/rainbow-me/rpc-interceptors/grpc/callctx"
)

const tokenPreviewLength = 20

// TokenSource returns the credential to attach to an outbound call, or "" for none.
type TokenSource func(ctx context.Context) string

// BoundToken reads the token bound to the call with callctx.WithToken.
func BoundToken(ctx context.Context) string {
	return callctx.Binding(ctx).Token
}

// StaticToken uses the bound token when present and falls back to token otherwise.
func StaticToken(token string) TokenSource {
	return func(ctx context.Context) string {
		if bound := BoundToken(ctx); bound != "" {
			return bound
		}
		return token
	}
}

// withAuthorization writes the normalized bearer credential into the outgoing metadata.
func withAuthorization(ctx context.Context, log *logger.Logger, source TokenSource, method string) context.Context {
	token := source(ctx)
	if token == "" {
		log.Warn("no token bound to outbound call, sending unauthenticated", logger.String("method", method))
		return ctx
	}

	value := auth.NormalizeBearer(token)
	log.Debug("attaching authorization",
		logger.String("method", method),
		logger.String("authorization", auth.Preview(value, tokenPreviewLength)),
	)

	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	md.Set(headers.Authorization, value)
	return metadata.NewOutgoingContext(ctx, md)
}

// UnaryClientAuthInterceptor attaches "authorization: Bearer <token>" to outbound unary calls. A call
// without a token proceeds unauthenticated; the interceptor never fails a call.
func UnaryClientAuthInterceptor(log *logger.Logger, source TokenSource) grpc.UnaryClientInterceptor {
	if source == nil {
		source = BoundToken
	}
	return func(
		ctx context.Context,
		method string,
		req, reply any,
		cc *grpc.ClientConn,
		invoker grpc.UnaryInvoker,
		opts ...grpc.CallOption,
	) error {
		return invoker(withAuthorization(ctx, log, source, method), method, req, reply, cc, opts...)
	}
}

// StreamClientAuthInterceptor is the streaming counterpart of UnaryClientAuthInterceptor.
func StreamClientAuthInterceptor(log *logger.Logger, source TokenSource) grpc.StreamClientInterceptor {
	if source == nil {
		source = BoundToken
	}
	return func(
		ctx context.Context,
		desc *grpc.StreamDesc,
		cc *grpc.ClientConn,
		method string,
		streamer grpc.Streamer,
		opts ...grpc.CallOption,
	) (grpc.ClientStream, error) {
		return streamer(withAuthorization(ctx, log, source, method), desc, cc, method, opts...)
	}
}
