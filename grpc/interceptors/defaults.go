package interceptors

import (
	"math"
	"time"

	grpctrace "github.com/DataDog/dd-trace-go/contrib/google.golang.org/grpc/v2"
	"go.uber.org/zap/zapcore"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"

	"github.com/rainbow-me/rpc-interceptors/common/logger"
	"github.com/rainbow-me/rpc-interceptors/grpc/auth"
)

// Chain ids used by the default chains.
const (
	IDTrace          = "trace"
	IDServerDeadline = "server-deadline"
	IDAuth           = "auth"
	IDHeaders        = "headers"
	IDUpstreamInfo   = "upstream-info"
	IDLogger         = "logger"
	IDErrors         = "errors"
	IDContextStatus  = "context-status"
	IDPanicRecovery  = "panic-recovery"
	IDAuthGate       = "auth-gate"
	IDUnrouted       = "unrouted"
)

// Priorities of the default chains. Lower runs earlier (outer).
const (
	PriorityTrace          = -200
	PriorityServerDeadline = -100
	PriorityAuth           = 0
	PriorityHeaders        = 100
	PriorityUpstreamInfo   = 100
	PriorityLogger         = 1000
	PriorityErrors         = 1100
	PriorityContextStatus  = 1150
	PriorityPanicRecovery  = 1200
	PriorityAuthGate       = math.MaxInt32
)

// Config holds essential configuration options for the interceptor chain.
// Uses sensible defaults and can be customized with functional options.
type Config struct {
	// Core settings
	RequestTimeout time.Duration
	Environment    string
	ServiceName    string

	// Feature flags
	PanicRecoveryEnabled bool
	TracingEnabled       bool

	// Auth configures the server auth interceptor. Nil disables authentication.
	Auth *auth.Config

	// TokenSource supplies the outbound credential on the client side.
	TokenSource TokenSource

	// Logging options - uses existing LoggingInterceptorOption functions
	LoggingOptions []LoggingInterceptorOption
}

// ConfigOption is a functional option for configuring the interceptor chain
type ConfigOption func(*Config)

// WithRequestTimeout sets the server-side request timeout duration. Zero disables it.
func WithRequestTimeout(timeout time.Duration) ConfigOption {
	return func(c *Config) {
		c.RequestTimeout = timeout
	}
}

// WithPanicRecovery enables or disables the panic recovery interceptor
func WithPanicRecovery(enabled bool) ConfigOption {
	return func(c *Config) {
		c.PanicRecoveryEnabled = enabled
	}
}

// WithTracing adds the Datadog tracing interceptors to the chains.
func WithTracing(enabled bool) ConfigOption {
	return func(c *Config) {
		c.TracingEnabled = enabled
	}
}

// WithAuth replaces the server auth configuration.
func WithAuth(cfg *auth.Config) ConfigOption {
	return func(c *Config) {
		c.Auth = cfg
	}
}

// WithTokenSource sets where client chains read the outbound token from.
func WithTokenSource(source TokenSource) ConfigOption {
	return func(c *Config) {
		c.TokenSource = source
	}
}

// WithLoggingOptions sets logging configuration using existing LoggingInterceptorOption functions
func WithLoggingOptions(opts ...LoggingInterceptorOption) ConfigOption {
	return func(c *Config) {
		c.LoggingOptions = append(c.LoggingOptions, opts...)
	}
}

// WithBasicLogging logs call outcomes without payloads.
func WithBasicLogging(enabled bool, level zapcore.Level) ConfigOption {
	return WithLoggingOptions(
		LogEnabled(enabled),
		LogLevel(level),
		ErrorLogLevel(zapcore.ErrorLevel),
		LogPayloads(false),
	)
}

// WithDetailedLogging enables detailed logging with request/response payloads
func WithDetailedLogging() ConfigOption {
	return WithLoggingOptions(
		LogEnabled(true),
		LogLevel(zapcore.InfoLevel),
		ErrorLogLevel(zapcore.ErrorLevel),
		LogPayloads(true),
	)
}

// NewConfig creates a new configuration with sensible defaults
func NewConfig(serviceName, environment string, opts ...ConfigOption) *Config {
	config := &Config{
		RequestTimeout:       30 * time.Second,
		ServiceName:          serviceName,
		Environment:          environment,
		PanicRecoveryEnabled: true,
		Auth:                 auth.NewConfig(),
		TokenSource:          BoundToken,
		LoggingOptions: []LoggingInterceptorOption{
			LogEnabled(true),
			LogLevel(zapcore.InfoLevel),
			LogPayloads(true),
			WithSkippedLogsByMethods(auth.HealthCheckMethod, auth.HealthWatchMethod),
			GrpcCodeLogLevel(
				map[codes.Code]zapcore.Level{ //nolint:exhaustive
					codes.Canceled: zapcore.WarnLevel, // Handle cancellations as warnings
				},
			),
		},
	}

	for _, opt := range opts {
		opt(config)
	}

	return config
}

// ServerChains are the unary and stream server chains built from one Config.
type ServerChains struct {
	Unary  *UnaryServerInterceptorChain
	Stream *StreamServerInterceptorChain
}

// ServerOptions commits both chains into grpc.Server options.
func (c *ServerChains) ServerOptions() []grpc.ServerOption {
	return []grpc.ServerOption{
		grpc.UnaryInterceptor(c.Unary.Commit()),
		grpc.StreamInterceptor(c.Stream.Commit()),
	}
}

// ClientChains are the unary and stream client chains built from one Config.
type ClientChains struct {
	Unary  *UnaryClientInterceptorChain
	Stream *StreamClientInterceptorChain
}

// DialOptions commits both chains into grpc dial options.
func (c *ClientChains) DialOptions() []grpc.DialOption {
	return []grpc.DialOption{
		grpc.WithUnaryInterceptor(c.Unary.Commit()),
		grpc.WithStreamInterceptor(c.Stream.Commit()),
	}
}

// NewDefaultServerChains creates the server chains with sensible defaults.
// Can be customized using functional options.
//
// Outer to inner: trace, server-deadline, auth, headers, logger, errors, context-status, panic-recovery,
// auth-gate. Auth defers its rejections to the auth gate so the logger records them.
//
// Example usage:
//
//	chains := NewDefaultServerChains("hello-service", "production", log,
//	    WithRequestTimeout(60 * time.Second),
//	    WithDetailedLogging(),
//	)
//	server := grpc.NewServer(chains.ServerOptions()...)
func NewDefaultServerChains(serviceName, environment string, log *logger.Logger, opts ...ConfigOption) *ServerChains {
	cfg := NewConfig(serviceName, environment, opts...)
	if log == nil {
		log = logger.NoOp()
	}

	unary := NewUnaryServerInterceptorChain()
	stream := NewStreamServerInterceptorChain()

	if cfg.TracingEnabled {
		untraced := grpctrace.WithUntracedMethods(auth.HealthCheckMethod, auth.HealthWatchMethod)
		unary.Push(IDTrace, PriorityTrace, grpctrace.UnaryServerInterceptor(
			grpctrace.WithService(cfg.ServiceName),
			grpctrace.WithAnalytics(true),
			grpctrace.WithMetadataTags(),
			untraced,
		))
		stream.Push(IDTrace, PriorityTrace, grpctrace.StreamServerInterceptor(
			grpctrace.WithService(cfg.ServiceName),
			grpctrace.WithAnalytics(true),
			grpctrace.WithMetadataTags(),
			untraced,
		))
	}

	if cfg.RequestTimeout > 0 {
		unary.Push(IDServerDeadline, PriorityServerDeadline, ServerDeadlineInterceptor(cfg.RequestTimeout))
		stream.Push(IDServerDeadline, PriorityServerDeadline, StreamServerDeadlineInterceptor(cfg.RequestTimeout))
	}

	if cfg.Auth != nil {
		unary.Push(IDAuth, PriorityAuth, UnaryServerAuthInterceptor(cfg.Auth, log, WithDeferredRejection()))
		stream.Push(IDAuth, PriorityAuth, StreamServerAuthInterceptor(cfg.Auth, log, WithDeferredRejection()))
		unary.Push(IDAuthGate, PriorityAuthGate, UnaryAuthGateInterceptor)
		stream.Push(IDAuthGate, PriorityAuthGate, StreamAuthGateInterceptor)
	}

	unary.Push(IDHeaders, PriorityHeaders, ResponseHeadersInterceptor())
	stream.Push(IDHeaders, PriorityHeaders, StreamResponseHeadersInterceptor())

	unary.Push(IDLogger, PriorityLogger, UnaryLoggerServerInterceptor(log, cfg.LoggingOptions...))
	stream.Push(IDLogger, PriorityLogger, StreamLoggerServerInterceptor(log, cfg.LoggingOptions...))

	unary.Push(IDErrors, PriorityErrors, UnaryErrorServerInterceptor(log))
	stream.Push(IDErrors, PriorityErrors, StreamErrorServerInterceptor(log))

	unary.Push(IDContextStatus, PriorityContextStatus, UnaryContextStatusInterceptor())
	stream.Push(IDContextStatus, PriorityContextStatus, StreamContextStatusInterceptor())

	if cfg.PanicRecoveryEnabled {
		unary.Push(IDPanicRecovery, PriorityPanicRecovery, UnaryPanicRecoveryServerInterceptor(log))
		stream.Push(IDPanicRecovery, PriorityPanicRecovery, StreamPanicRecoveryServerInterceptor(log))
	}

	return &ServerChains{Unary: unary, Stream: stream}
}

// NewDefaultClientChains creates the client chains: trace, auth, upstream-info, logger.
func NewDefaultClientChains(serviceName string, log *logger.Logger, opts ...ConfigOption) *ClientChains {
	cfg := NewConfig(serviceName, "", opts...)
	if log == nil {
		log = logger.NoOp()
	}

	unary := NewUnaryClientInterceptorChain()
	stream := NewStreamClientInterceptorChain()

	if cfg.TracingEnabled {
		unary.Push(IDTrace, PriorityTrace, grpctrace.UnaryClientInterceptor(
			grpctrace.WithService(serviceName),
			grpctrace.WithAnalytics(true),
		))
		stream.Push(IDTrace, PriorityTrace, grpctrace.StreamClientInterceptor(
			grpctrace.WithService(serviceName),
			grpctrace.WithAnalytics(true),
		))
	}

	unary.Push(IDAuth, PriorityAuth, UnaryClientAuthInterceptor(log, cfg.TokenSource))
	stream.Push(IDAuth, PriorityAuth, StreamClientAuthInterceptor(log, cfg.TokenSource))

	unary.Push(IDUpstreamInfo, PriorityUpstreamInfo, UnaryUpstreamInfoClientInterceptor(serviceName))
	stream.Push(IDUpstreamInfo, PriorityUpstreamInfo, StreamUpstreamInfoClientInterceptor(serviceName))

	unary.Push(IDLogger, PriorityLogger, UnaryLoggerClientInterceptor(log, cfg.LoggingOptions...))
	stream.Push(IDLogger, PriorityLogger, StreamLoggerClientInterceptor(log, cfg.LoggingOptions...))

	return &ClientChains{Unary: unary, Stream: stream}
}

// NewProductionServerChains logs outcomes only and keeps a 30s request timeout.
func NewProductionServerChains(serviceName, environment string, log *logger.Logger, opts ...ConfigOption) *ServerChains {
	return NewDefaultServerChains(serviceName, environment, log, append([]ConfigOption{
		WithRequestTimeout(30 * time.Second),
		WithBasicLogging(true, zapcore.InfoLevel),
		WithPanicRecovery(true),
		WithTracing(true),
	}, opts...)...)
}

// NewDevelopmentServerChains logs payloads at debug level and allows slower calls.
func NewDevelopmentServerChains(serviceName, environment string, log *logger.Logger, opts ...ConfigOption) *ServerChains {
	return NewDefaultServerChains(serviceName, environment, log, append([]ConfigOption{
		WithRequestTimeout(60 * time.Second),
		WithDetailedLogging(),
		WithPanicRecovery(true),
		WithLoggingOptions(LogLevel(zapcore.DebugLevel)),
	}, opts...)...)
}
