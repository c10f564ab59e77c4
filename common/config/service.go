package config

import "time"

// ServiceConfig is the configuration of a service built on the interceptor chains.
type ServiceConfig struct {
	Name           string          `mapstructure:"name"`
	Server         ServerConfig    `mapstructure:"server"`
	Auth           AuthConfig      `mapstructure:"auth"`
	Logging        LoggingConfig   `mapstructure:"logging"`
	Streaming      StreamingConfig `mapstructure:"streaming"`
	RequestTimeout time.Duration   `mapstructure:"requestTimeout"`
	Tracing        TracingConfig   `mapstructure:"tracing"`
}

type ServerConfig struct {
	GRPCAddress     string        `mapstructure:"grpcAddress"`
	HTTPAddress     string        `mapstructure:"httpAddress"`
	ShutdownTimeout time.Duration `mapstructure:"shutdownTimeout"`
}

type AuthConfig struct {
	Enabled        bool     `mapstructure:"enabled"`
	ValidPrefix    string   `mapstructure:"validPrefix"`
	MinTokenLength int      `mapstructure:"minTokenLength"`
	Whitelist      []string `mapstructure:"whitelist"`
	// Token is the credential an outbound client attaches to its calls.
	Token string `mapstructure:"token"`
}

type LoggingConfig struct {
	Payloads         bool     `mapstructure:"payloads"`
	MaxPayloadLength int      `mapstructure:"maxPayloadLength"`
	RedactedFields   []string `mapstructure:"redactedFields"`
	SkipMethods      []string `mapstructure:"skipMethods"`
}

type StreamingConfig struct {
	ChunkCeiling   int64         `mapstructure:"chunkCeiling"`
	ChatMaxLength  int           `mapstructure:"chatMaxLength"`
	EndSentinel    string        `mapstructure:"endSentinel"`
	StreamCount    int           `mapstructure:"streamCount"`
	StreamInterval time.Duration `mapstructure:"streamInterval"`
}

type TracingConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// ServiceDefaults returns defaults for every ServiceConfig key, for use with WithDefaults.
func ServiceDefaults() map[string]any {
	return map[string]any{
		"name":                     "hello-service",
		"server.grpcAddress":       ":50051",
		"server.httpAddress":       ":8080",
		"server.shutdownTimeout":   30 * time.Second,
		"auth.enabled":             true,
		"auth.validPrefix":         "valid_",
		"auth.minTokenLength":      10,
		"logging.payloads":         true,
		"logging.maxPayloadLength": 500,
		"streaming.chunkCeiling":   int64(1_000_000),
		"streaming.chatMaxLength":  1000,
		"streaming.endSentinel":    "end",
		"streaming.streamCount":    5,
		"streaming.streamInterval": 500 * time.Millisecond,
		"requestTimeout":           30 * time.Second,
		"tracing.enabled":          false,
	}
}
