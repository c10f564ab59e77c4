package logger

import (
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/rainbow-me/rpc-interceptors/common/env"
)

const (
	StringJSONEncoderName = "string_json"
	MessageKey            = "message"
)

// Logger is the structured logger handed to every component. It embeds *zap.Logger so the
// full zap API stays available.
type Logger struct {
	*zap.Logger
}

var (
	global       atomic.Pointer[Logger]
	registerOnce sync.Once
	registerErr  error
)

// NewLogger wraps an existing zap logger.
func NewLogger(z *zap.Logger) *Logger {
	if z == nil {
		z = zap.NewNop()
	}
	return &Logger{Logger: z}
}

// NoOp returns a logger that discards everything.
func NoOp() *Logger {
	return NewLogger(zap.NewNop())
}

// Instance returns the process-wide logger set with SetInstance, or a no-op logger.
func Instance() *Logger {
	if l := global.Load(); l != nil {
		return l
	}
	return NoOp()
}

// SetInstance replaces the process-wide logger.
func SetInstance(l *Logger) {
	global.Store(l)
}

// With returns a child logger carrying the given fields.
func (l *Logger) With(fields ...Field) *Logger {
	return &Logger{Logger: l.Logger.With(fields...)}
}

// Named returns a child logger with the given name segment appended.
func (l *Logger) Named(name string) *Logger {
	return &Logger{Logger: l.Logger.Named(name)}
}

// Zap exposes the underlying zap logger for libraries that need it.
func (l *Logger) Zap() *zap.Logger {
	return l.Logger
}

type stringJSONEncoder struct {
	zapcore.Encoder
}

// NewStringJSONEncoder returns an encoder that encodes the JSON log dict as a string
// so the log processing pipeline can correctly process logs with nested JSON.
func NewStringJSONEncoder(cfg zapcore.EncoderConfig) (zapcore.Encoder, error) {
	return &stringJSONEncoder{zapcore.NewJSONEncoder(cfg)}, nil
}

// InitLogger builds a logger configured for the current ENVIRONMENT and installs it as the
// process-wide instance.
func InitLogger(zapOpts ...zap.Option) (*Logger, error) {
	currentEnv, err := env.GetApplicationEnv()
	if err != nil {
		return nil, fmt.Errorf("invalid environment: %w", err)
	}

	registerOnce.Do(func() {
		registerErr = zap.RegisterEncoder(StringJSONEncoderName, NewStringJSONEncoder)
	})
	if registerErr != nil {
		return nil, fmt.Errorf("failed to register string JSON encoder: %w", registerErr)
	}

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:       "timestamp",
		LevelKey:      "level",
		NameKey:       "logger",
		CallerKey:     "caller",
		FunctionKey:   zapcore.OmitKey,
		MessageKey:    MessageKey,
		StacktraceKey: "stacktrace",
		EncodeTime:    zapcore.ISO8601TimeEncoder,
		EncodeLevel:   zapcore.CapitalLevelEncoder,
		EncodeCaller:  zapcore.ShortCallerEncoder,
	}

	var config zap.Config
	switch currentEnv {
	case env.EnvironmentLocal, env.EnvironmentTest:
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.MessageKey = MessageKey
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	case env.EnvironmentProduction:
		config = zap.NewProductionConfig()
		config.EncoderConfig = encoderConfig
		config.Encoding = StringJSONEncoderName
		config.Level.SetLevel(zap.InfoLevel)
	default:
		// JSON logs for Datadog ingestion
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig = encoderConfig
		config.Encoding = StringJSONEncoderName
	}

	options := append([]zap.Option{zap.AddStacktrace(zap.ErrorLevel)}, zapOpts...)

	z, err := config.Build(options...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	l := NewLogger(z)
	SetInstance(l)

	return l, nil
}
