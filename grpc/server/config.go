package server

import (
	"net/http"
	"time"

	"google.golang.org/grpc"

	"github.com/rainbow-me/rpc-interceptors/common/logger"
	"github.com/rainbow-me/rpc-interceptors/grpc/gateway"
)

var (
	DefaultShutdownTimeout   = 30 * time.Second
	DefaultHookTimeout       = 5 * time.Second
	DefaultHTTPReadTimeout   = 5 * time.Second
	DefaultHTTPWriteTimeout  = 10 * time.Second
	DefaultHTTPIdleTimeout   = 120 * time.Second
	DefaultHTTPHeaderTimeout = 2 * time.Second
)

// HTTPConfig holds configuration for HTTP servers
type HTTPConfig struct {
	Name          string        // Unique name for this server (used in logging)
	Address       string        // Address to bind to (e.g., ":8080")
	Handler       http.Handler  // Routes, middlewares and gateways, already assembled
	ReadTimeout   time.Duration // Maximum duration for reading the entire request
	WriteTimeout  time.Duration // Maximum duration before timing out writes
	IdleTimeout   time.Duration // Maximum amount of time to wait for next request when keep-alives are enabled
	HeaderTimeout time.Duration // Amount of time allowed to read request headers
}

// GRPCConfig holds configuration for gRPC servers
type GRPCConfig struct {
	Name       string              // Unique name for this server (used in logging)
	Address    string              // Address to bind to (e.g., ":9090")
	GRPCServer *grpc.Server        // Existing gRPC server instance; if nil, NewGRPCServer builds one from GRPCOpts
	SetupFunc  func(*grpc.Server)  // Registers services on the server
	GRPCOpts   []grpc.ServerOption // Options for the server built when GRPCServer is nil
}

// HTTPConfigOption is a functional option for configuring HTTPConfig
type HTTPConfigOption func(*HTTPConfig)

// WithHTTPReadTimeout sets the read timeout for the HTTP config
func WithHTTPReadTimeout(timeout time.Duration) HTTPConfigOption {
	return func(c *HTTPConfig) {
		c.ReadTimeout = timeout
	}
}

// WithHTTPWriteTimeout sets the write timeout for the HTTP config
func WithHTTPWriteTimeout(timeout time.Duration) HTTPConfigOption {
	return func(c *HTTPConfig) {
		c.WriteTimeout = timeout
	}
}

func WithHTTPIdleTimeout(timeout time.Duration) HTTPConfigOption {
	return func(c *HTTPConfig) {
		c.IdleTimeout = timeout
	}
}

func WithHTTPHeaderTimeout(timeout time.Duration) HTTPConfigOption {
	return func(c *HTTPConfig) {
		c.HeaderTimeout = timeout
	}
}

// Option configures a Server. Options that describe an invalid listener return an error from NewServer.
type Option func(*Server) error

// WithHTTPServer adds an HTTP listener serving handler.
func WithHTTPServer(name, address string, handler http.Handler, opts ...HTTPConfigOption) Option {
	return func(s *Server) error {
		if handler == nil {
			return errMissing(name, "handler")
		}
		cfg := &HTTPConfig{
			Name:          name,
			Address:       address,
			Handler:       handler,
			ReadTimeout:   DefaultHTTPReadTimeout,
			WriteTimeout:  DefaultHTTPWriteTimeout,
			IdleTimeout:   DefaultHTTPIdleTimeout,
			HeaderTimeout: DefaultHTTPHeaderTimeout,
		}
		for _, opt := range opts {
			opt(cfg)
		}
		s.httpConfigs = append(s.httpConfigs, cfg)
		return nil
	}
}

// WithGRPCServer adds a gRPC listener. When grpcServer is nil one is built with NewGRPCServer and
// grpcOpts; setup registers the services.
func WithGRPCServer(
	name, address string,
	grpcServer *grpc.Server,
	setup func(*grpc.Server),
	grpcOpts ...grpc.ServerOption,
) Option {
	return func(s *Server) error {
		if setup == nil {
			return errMissing(name, "setup function")
		}
		s.grpcConfigs = append(s.grpcConfigs, &GRPCConfig{
			Name:       name,
			Address:    address,
			GRPCServer: grpcServer,
			SetupFunc:  setup,
			GRPCOpts:   grpcOpts,
		})
		return nil
	}
}

// WithGateway adds an HTTP listener serving a gateway built from gatewayOpts.
func WithGateway(name, address string, httpOpts []HTTPConfigOption, gatewayOpts ...gateway.Option) Option {
	return func(s *Server) error {
		handler, err := gateway.NewGateway(append([]gateway.Option{gateway.WithLogger(s.log)}, gatewayOpts...)...)
		if err != nil {
			return err
		}
		return WithHTTPServer(name, address, handler, httpOpts...)(s)
	}
}

func WithLogger(log *logger.Logger) Option {
	return func(s *Server) error {
		s.log = log
		return nil
	}
}

// WithShutdownTimeout bounds the whole graceful shutdown, hooks included.
func WithShutdownTimeout(timeout time.Duration) Option {
	return func(s *Server) error {
		s.shutdownTimeout = timeout
		return nil
	}
}

func WithShutdownHook(hook ShutdownHook) Option {
	return func(s *Server) error {
		s.hooks = append(s.hooks, hook)
		return nil
	}
}

// WithSignalHandling makes Serve shut down on SIGINT and SIGTERM. Enabled by default.
func WithSignalHandling(enabled bool) Option {
	return func(s *Server) error {
		s.signalHandling = enabled
		return nil
	}
}

// WithAutomaticStop makes a failing listener stop all the others. Enabled by default; when disabled the
// remaining listeners keep serving until Stop or a signal.
func WithAutomaticStop(enabled bool) Option {
	return func(s *Server) error {
		s.automaticStop = enabled
		return nil
	}
}
