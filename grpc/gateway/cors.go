package gateway

import (
	"net/http"

	"github.com/gorilla/handlers"

	"github.com/rainbow-me/rpc-interceptors/common/headers"
)

// CORSOption is a functional option for configuring CORS
type CORSOption func(*CORSConfig)

// WithAllowedOrigins sets the allowed origins for CORS
func WithAllowedOrigins(origins []string) CORSOption {
	return func(c *CORSConfig) {
		c.AllowedOrigins = origins
	}
}

// WithAllowedMethods sets the allowed methods for CORS
func WithAllowedMethods(methods []string) CORSOption {
	return func(c *CORSConfig) {
		c.AllowedMethods = methods
	}
}

// WithAllowedHeaders sets the request headers browsers may send
func WithAllowedHeaders(headers []string) CORSOption {
	return func(c *CORSConfig) {
		c.AllowedHeaders = headers
	}
}

// WithExposedHeaders sets the response headers scripts may read
func WithExposedHeaders(headers []string) CORSOption {
	return func(c *CORSConfig) {
		c.ExposedHeaders = headers
	}
}

// WithAllowCredentials sets whether credentials are allowed
func WithAllowCredentials(allow bool) CORSOption {
	return func(c *CORSConfig) {
		c.AllowCredentials = allow
	}
}

// WithMaxAge sets how long, in seconds, a preflight answer may be cached
func WithMaxAge(seconds int) CORSOption {
	return func(c *CORSConfig) {
		c.MaxAge = seconds
	}
}

// CORS contains all CORS-related configuration and logic
type CORS struct {
	Enabled bool
	Config  CORSConfig
}

// CORSConfig holds the CORS configuration
type CORSConfig struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposedHeaders   []string
	AllowCredentials bool
	MaxAge           int
}

// DefaultCORSConfig allows every origin and exposes the correlation headers so browser clients can
// report the trace id of a failed call.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodDelete,
			http.MethodOptions,
			http.MethodHead,
			http.MethodPatch,
		},
		AllowedHeaders: []string{
			"Content-Type",
			headers.Authorization,
			headers.XTraceID,
			headers.XRequestID,
			headers.XClientID,
		},
		ExposedHeaders:   []string{headers.XTraceID, headers.XRequestID},
		AllowCredentials: true,
	}
}

// Apply wraps the handler with CORS middleware if enabled
func (c *CORS) Apply(handler http.Handler) http.Handler {
	if !c.Enabled {
		return handler
	}

	options := []handlers.CORSOption{
		handlers.AllowedOrigins(c.Config.AllowedOrigins),
		handlers.AllowedMethods(c.Config.AllowedMethods),
		handlers.AllowedHeaders(c.Config.AllowedHeaders),
		handlers.OptionStatusCode(http.StatusNoContent),
	}
	if len(c.Config.ExposedHeaders) > 0 {
		options = append(options, handlers.ExposedHeaders(c.Config.ExposedHeaders))
	}
	if c.Config.MaxAge > 0 {
		options = append(options, handlers.MaxAge(c.Config.MaxAge))
	}
	if c.Config.AllowCredentials {
		options = append(options, handlers.AllowCredentials())
	}

	return handlers.CORS(options...)(handler)
}
