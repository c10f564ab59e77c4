package auth

import (
	"github.com/rainbow-me/rpc-interceptors/common/headers"
)

// Methods that never require a token.
const (
	HealthCheckMethod         = "/grpc.health.v1.Health/Check"
	HealthWatchMethod         = "/grpc.health.v1.Health/Watch"
	ReflectionMethod          = "/grpc.reflection.v1.ServerReflection/ServerReflectionInfo"
	ReflectionV1AlphaMethod   = "/grpc.reflection.v1alpha.ServerReflection/ServerReflectionInfo"
	DefaultHeaderName         = headers.Authorization
	DefaultValidPrefix        = "valid_"
	DefaultMinTokenLength     = 10
	defaultIdentityNamePrefix = "user_"
)

// DefaultWhitelist returns the infrastructure methods that are always reachable without a token.
func DefaultWhitelist() []string {
	return []string{
		HealthCheckMethod,
		HealthWatchMethod,
		ReflectionMethod,
		ReflectionV1AlphaMethod,
	}
}

// Config holds the authentication configuration settings
type Config struct {
	// Enabled turns authentication off entirely when false; every call is then bound as anonymous.
	Enabled    bool
	HeaderName string
	Whitelist  Whitelist
	Validator  TokenValidator
}

// ConfigOption is a functional option for configuring authentication.
type ConfigOption func(*Config)

// WithAuthHeaderName sets the metadata key the credential is read from.
func WithAuthHeaderName(name string) ConfigOption {
	return func(c *Config) {
		c.HeaderName = name
	}
}

// WithSkipAuthMethods adds full method names that skip authentication.
func WithSkipAuthMethods(methods ...string) ConfigOption {
	return func(c *Config) {
		set, ok := c.Whitelist.(MethodSet)
		if !ok {
			set = NewMethodSet()
		}
		for _, m := range methods {
			set[m] = struct{}{}
		}
		c.Whitelist = set
	}
}

// WithWhitelist replaces the whitelist policy.
func WithWhitelist(w Whitelist) ConfigOption {
	return func(c *Config) {
		c.Whitelist = w
	}
}

// WithTokenValidator replaces the token validation policy.
func WithTokenValidator(v TokenValidator) ConfigOption {
	return func(c *Config) {
		c.Validator = v
	}
}

// WithEnabled turns authentication on or off.
func WithEnabled(enabled bool) ConfigOption {
	return func(c *Config) {
		c.Enabled = enabled
	}
}

// NewConfig returns an enabled configuration using the default whitelist and the placeholder validator.
func NewConfig(opts ...ConfigOption) *Config {
	c := &Config{
		Enabled:    true,
		HeaderName: DefaultHeaderName,
		Whitelist:  NewMethodSet(DefaultWhitelist()...),
		Validator:  NewPlaceholderValidator(DefaultValidPrefix, DefaultMinTokenLength),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}
