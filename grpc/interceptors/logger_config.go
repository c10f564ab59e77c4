package interceptors

import (
	"go.uber.org/zap/zapcore"
	"google.golang.org/grpc/codes"
)

const (
	DefaultInterceptorLogLevel      zapcore.Level = zapcore.InfoLevel
	DefaultInterceptorErrorLogLevel zapcore.Level = zapcore.ErrorLevel

	// DefaultMaxPayloadLength is the number of characters of a message kept in logs.
	DefaultMaxPayloadLength = 500
)

type LoggingInterceptorConfig struct {
	LogEnabled bool
	// LogPayloads emits one line per request and response message.
	LogPayloads      bool
	MaxPayloadLength int
	// LogParamsBlocklist lists field paths removed from logged payloads, e.g. "user.password".
	LogParamsBlocklist []string
	LogLevel           zapcore.Level
	ErrorLogLevel      zapcore.Level

	// If set, overrides ErrorLogLevel for specified gRPC codes. All other codes will be logged with ErrorLogLevel.
	// Setting code.OK here will have no effect (LogLevel will still be followed)
	GrpcCodeLogLevel map[codes.Code]zapcore.Level

	skipLoggingByMethod map[string]struct{}
}

type LoggingInterceptorOption func(*LoggingInterceptorConfig)

func LogEnabled(v bool) LoggingInterceptorOption {
	return func(o *LoggingInterceptorConfig) {
		o.LogEnabled = v
	}
}

func LogPayloads(v bool) LoggingInterceptorOption {
	return func(o *LoggingInterceptorConfig) {
		o.LogPayloads = v
	}
}

// MaxPayloadLength sets the truncation limit in characters. Non-positive values keep the default.
func MaxPayloadLength(n int) LoggingInterceptorOption {
	return func(o *LoggingInterceptorConfig) {
		if n > 0 {
			o.MaxPayloadLength = n
		}
	}
}

// RedactFields removes the given dotted field paths from logged payloads.
func RedactFields(paths ...string) LoggingInterceptorOption {
	return func(o *LoggingInterceptorConfig) {
		o.LogParamsBlocklist = append(o.LogParamsBlocklist, paths...)
	}
}

func LogLevel(level zapcore.Level) LoggingInterceptorOption {
	return func(o *LoggingInterceptorConfig) {
		o.LogLevel = level
	}
}

func GrpcCodeLogLevel(errorCodeLogLevel map[codes.Code]zapcore.Level) LoggingInterceptorOption {
	return func(o *LoggingInterceptorConfig) {
		o.GrpcCodeLogLevel = errorCodeLogLevel
	}
}

func ErrorLogLevel(level zapcore.Level) LoggingInterceptorOption {
	return func(o *LoggingInterceptorConfig) {
		o.ErrorLogLevel = level
	}
}

func WithSkippedLogsByMethods(methods ...string) LoggingInterceptorOption {
	return func(o *LoggingInterceptorConfig) {
		if o.skipLoggingByMethod == nil {
			o.skipLoggingByMethod = make(map[string]struct{}, len(methods))
		}
		for _, method := range methods {
			o.skipLoggingByMethod[method] = struct{}{}
		}
	}
}

func (c *LoggingInterceptorConfig) skipped(fullMethod string) bool {
	_, ok := c.skipLoggingByMethod[fullMethod]
	return ok
}

func interceptorConfig(opts ...LoggingInterceptorOption) *LoggingInterceptorConfig {
	cfg := &LoggingInterceptorConfig{
		LogEnabled:       true,
		LogPayloads:      true,
		MaxPayloadLength: DefaultMaxPayloadLength,
		LogLevel:         DefaultInterceptorLogLevel,
		ErrorLogLevel:    DefaultInterceptorErrorLogLevel,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}
