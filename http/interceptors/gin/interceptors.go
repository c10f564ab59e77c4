// Package gin holds the middlewares every gateway engine runs in front of the gRPC gateway mux.
package gin

import (
	"time"

	"github.com/gin-gonic/gin"
)

const (
	httpHandlerOp = "http.handler"
	componentName = "gin"
)

// DefaultTimeout bounds the request context of every gateway request.
const DefaultTimeout = time.Minute

type interceptorCfg struct {
	TracingEnabled     bool
	CorrelationEnabled bool
	HTTPDebug          bool
	HTTPTrace          bool
	Timeout            time.Duration
}

type InterceptorOpt func(cfg *interceptorCfg)

// WithCorrelationEnabled enables/disables trace and request id correlation. Default is enabled.
func WithCorrelationEnabled(enabled bool) InterceptorOpt {
	return func(cfg *interceptorCfg) {
		cfg.CorrelationEnabled = enabled
	}
}

// WithTimeout sets the http handler timeout. Zero disables it.
func WithTimeout(timeout time.Duration) InterceptorOpt {
	return func(cfg *interceptorCfg) {
		cfg.Timeout = timeout
	}
}

// WithTracingEnabled enables/disables Datadog spans. Default is enabled.
func WithTracingEnabled(enabled bool) InterceptorOpt {
	return func(cfg *interceptorCfg) {
		cfg.TracingEnabled = enabled
	}
}

// WithHTTPDebug logs one line per request with status and duration.
func WithHTTPDebug() InterceptorOpt {
	return func(cfg *interceptorCfg) {
		cfg.HTTPDebug = true
	}
}

// WithHTTPTrace also logs the request and response bodies.
func WithHTTPTrace() InterceptorOpt {
	return func(cfg *interceptorCfg) {
		cfg.HTTPDebug = true
		cfg.HTTPTrace = true
	}
}

// DefaultInterceptors returns the middlewares a gateway engine runs, outermost first. Correlation runs
// before logging so the request log line carries the trace id.
func DefaultInterceptors(opts ...InterceptorOpt) []gin.HandlerFunc {
	cfg := &interceptorCfg{
		TracingEnabled:     true,
		CorrelationEnabled: true,
		Timeout:            DefaultTimeout,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	var middlewares []gin.HandlerFunc
	if cfg.CorrelationEnabled {
		middlewares = append(middlewares, CorrelationMiddleware)
	}
	if cfg.TracingEnabled {
		middlewares = append(middlewares, TracingMiddleware)
	}
	middlewares = append(middlewares,
		RequestLogging(loggingCfg{
			debug: cfg.HTTPDebug,
			trace: cfg.HTTPTrace,
		}),
		PanicRecoveryMiddleware,
		ErrorHandlingMiddleware,
	)
	if cfg.Timeout > 0 {
		middlewares = append(middlewares, TimeoutMiddleware(cfg.Timeout))
	}
	return middlewares
}
