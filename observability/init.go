package observability

import (
	"github.com/DataDog/dd-trace-go/v2/ddtrace/tracer"

	"github.com/rainbow-me/rpc-interceptors/common/logger"
)

type config struct {
	MetricsEnabled   bool
	AnalyticsEnabled bool
	DebugStack       bool
	Version          string
}

type Option func(o *config)

// WithMetrics enables/disables collection of Go Runtime Metrics. Default enabled.
// When enabled, pushes metrics to DataDog every few seconds.
func WithMetrics(enabled bool) Option {
	return func(c *config) {
		c.MetricsEnabled = enabled
	}
}

// WithAnalytics enables/disables trace analytics. Default enabled.
func WithAnalytics(enabled bool) Option {
	return func(c *config) {
		c.AnalyticsEnabled = enabled
	}
}

// WithDebugStack enables/disables capture of stack traces when an error is set on a span. Default disabled.
func WithDebugStack(enabled bool) Option {
	return func(c *config) {
		c.DebugStack = enabled
	}
}

// WithVersion tags every span with the service version.
func WithVersion(version string) Option {
	return func(c *config) {
		c.Version = version
	}
}

// InitObservability starts the Datadog tracer with sensible defaults that can be overridden. The returned
// function stops the tracer and is safe to call when starting failed.
func InitObservability(serviceName, env string, log *logger.Logger, opts ...Option) (stop func()) {
	log.Info("starting tracer", logger.String("service", serviceName), logger.String("env", env))
	cfg := &config{
		MetricsEnabled:   true,
		AnalyticsEnabled: true,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	tracerOpts := []tracer.StartOption{
		tracer.WithEnv(env),
		tracer.WithService(serviceName),
		tracer.WithLogger(&tracerLogger{log: log}),
		tracer.WithDebugStack(cfg.DebugStack),
		tracer.WithAnalytics(cfg.AnalyticsEnabled),
	}
	if cfg.Version != "" {
		tracerOpts = append(tracerOpts, tracer.WithServiceVersion(cfg.Version))
	}
	if cfg.MetricsEnabled {
		tracerOpts = append(tracerOpts, tracer.WithRuntimeMetrics())
	}

	if err := tracer.Start(tracerOpts...); err != nil {
		log.Error("failed to start tracer", logger.Error(err))
		return func() {}
	}
	return tracer.Stop
}

// tracerLogger routes tracer diagnostics into our logger.
type tracerLogger struct {
	log *logger.Logger
}

func (l *tracerLogger) Log(msg string) {
	if l == nil || l.log == nil {
		return
	}
	l.log.Info(msg)
}
