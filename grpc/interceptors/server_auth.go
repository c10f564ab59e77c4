package interceptors

import (
	"context"
	"strings"

	grpcmiddleware "github.com/grpc-ecosystem/go-grpc-middleware"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/rainbow-me/rpc-interceptors/common/headers"
	"github.com/rainbow-me/rpc-interceptors/common/logger"
	"github.com/rainbow-me/rpc-interceptors/grpc/auth"
	"github.com/rainbow-me/rpc-interceptors/grpc/callctx"
	rpcerrors "github.com/rainbow-me/rpc-interceptors/grpc/errors"
	"github.com/rainbow-me/rpc-interceptors/grpc/idgen"
)

// Rejection descriptions sent to unauthenticated callers.
const (
	MsgMissingAuthorization = "Missing Authorization header"
	MsgInvalidAuthFormat    = "Invalid Authorization format"
	MsgInvalidToken         = "Invalid or expired token"
)

// ErrorInfo reasons attached to rejections.
const (
	reasonMissingAuthorization = "MISSING_AUTHORIZATION"
	reasonInvalidFormat        = "INVALID_AUTHORIZATION_FORMAT"
	reasonInvalidToken         = "INVALID_TOKEN"
)

type rejectionKey struct{}

// AuthRejection returns the rejection recorded by a deferring auth interceptor, or nil.
func AuthRejection(ctx context.Context) *status.Status {
	st, _ := ctx.Value(rejectionKey{}).(*status.Status)
	return st
}

type serverAuthOptions struct {
	deferRejection bool
}

// ServerAuthOption configures the server auth interceptors.
type ServerAuthOption func(*serverAuthOptions)

// WithDeferredRejection makes the interceptor record a rejection in the context and continue down the
// chain instead of returning it. An auth gate placed innermost must then return the rejection; the
// default chains do this so that the logging interceptor observes rejected calls.
func WithDeferredRejection() ServerAuthOption {
	return func(o *serverAuthOptions) {
		o.deferRejection = true
	}
}

// authenticate resolves the correlation context of an inbound call. The returned context always
// carries a trace id, including for rejected calls.
func authenticate(ctx context.Context, cfg *auth.Config, fullMethod string) (context.Context, *status.Status) {
	md, _ := metadata.FromIncomingContext(ctx)

	traceID := firstValue(md, headers.XTraceID)
	if traceID == "" {
		traceID = idgen.NextTraceID()
	}

	if !cfg.Enabled || (cfg.Whitelist != nil && cfg.Whitelist.Allows(fullMethod)) {
		return callctx.WithCorrelation(ctx, callctx.CorrelationContext{
			TraceID:      traceID,
			AuthToken:    callctx.Anonymous,
			UserIdentity: callctx.Anonymous,
		}), nil
	}

	rejected := callctx.WithCorrelation(ctx, callctx.CorrelationContext{TraceID: traceID})

	header := strings.TrimSpace(firstValue(md, strings.ToLower(cfg.HeaderName)))
	if header == "" {
		return rejected, rpcerrors.Unauthenticated(reasonMissingAuthorization, MsgMissingAuthorization)
	}

	token, ok := auth.StripBearer(header)
	if !ok {
		return rejected, rpcerrors.Unauthenticated(reasonInvalidFormat, MsgInvalidAuthFormat)
	}

	identity, err := cfg.Validator.Validate(ctx, token)
	if err != nil {
		return rejected, rpcerrors.Unauthenticated(reasonInvalidToken, MsgInvalidToken)
	}

	return callctx.WithCorrelation(ctx, callctx.CorrelationContext{
		TraceID:      traceID,
		AuthToken:    token,
		UserIdentity: identity,
	}), nil
}

func logRejection(ctx context.Context, log *logger.Logger, fullMethod string, st *status.Status) {
	log.Warn("authentication rejected",
		logger.String("method", fullMethod),
		logger.String("trace_id", callctx.TraceID(ctx)),
		logger.String("description", st.Message()),
	)
}

// UnaryServerAuthInterceptor authenticates unary calls. Accepted calls reach the handler with the
// correlation context attached; rejected calls end with UNAUTHENTICATED without running the handler.
func UnaryServerAuthInterceptor(
	cfg *auth.Config,
	log *logger.Logger,
	opts ...ServerAuthOption,
) grpc.UnaryServerInterceptor {
	o := &serverAuthOptions{}
	for _, opt := range opts {
		opt(o)
	}

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		ctx, st := authenticate(ctx, cfg, info.FullMethod)
		if st == nil {
			return handler(ctx, req)
		}

		logRejection(ctx, log, info.FullMethod, st)
		if o.deferRejection {
			return handler(context.WithValue(ctx, rejectionKey{}, st), req)
		}
		return nil, st.Err()
	}
}

// StreamServerAuthInterceptor is the streaming counterpart of UnaryServerAuthInterceptor.
func StreamServerAuthInterceptor(
	cfg *auth.Config,
	log *logger.Logger,
	opts ...ServerAuthOption,
) grpc.StreamServerInterceptor {
	o := &serverAuthOptions{}
	for _, opt := range opts {
		opt(o)
	}

	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		ctx, st := authenticate(ss.Context(), cfg, info.FullMethod)
		if st != nil {
			logRejection(ctx, log, info.FullMethod, st)
			if !o.deferRejection {
				return st.Err()
			}
			ctx = context.WithValue(ctx, rejectionKey{}, st)
		}

		wrapped := grpcmiddleware.WrapServerStream(ss)
		wrapped.WrappedContext = ctx
		return handler(srv, wrapped)
	}
}

// UnaryAuthGateInterceptor returns a rejection recorded by a deferring auth interceptor instead of
// calling the handler.
func UnaryAuthGateInterceptor(ctx context.Context, req any, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	if st := AuthRejection(ctx); st != nil {
		return nil, st.Err()
	}
	return handler(ctx, req)
}

// StreamAuthGateInterceptor is the streaming counterpart of UnaryAuthGateInterceptor.
func StreamAuthGateInterceptor(srv any, ss grpc.ServerStream, _ *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
	if st := AuthRejection(ss.Context()); st != nil {
		return st.Err()
	}
	return handler(srv, ss)
}

// StreamUnroutedAuthInterceptor lifts a deferred rejection for methods the server does not serve, so
// the unknown-service handler answers them. It belongs between the auth interceptor and the auth gate.
func StreamUnroutedAuthInterceptor(routed func(fullMethod string) bool) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		if AuthRejection(ss.Context()) == nil || routed(info.FullMethod) {
			return handler(srv, ss)
		}

		wrapped := grpcmiddleware.WrapServerStream(ss)
		wrapped.WrappedContext = context.WithValue(ss.Context(), rejectionKey{}, (*status.Status)(nil))
		return handler(srv, wrapped)
	}
}

func firstValue(md metadata.MD, key string) string {
	if md == nil {
		return ""
	}
	if values := md.Get(key); len(values) > 0 {
		return values[0]
	}
	return ""
}
