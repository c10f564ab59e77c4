package health

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/backoff"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// config holds the configuration for creating a health checker.
type config struct {
	target      string
	dialTimeout time.Duration
	dialOptions []grpc.DialOption
	creds       credentials.TransportCredentials
}

// Option is a functional option for configuring the health checker creation.
type Option func(*config)

// WithTarget sets the target address for the gRPC connection (e.g., "localhost:50051").
func WithTarget(target string) Option {
	return func(c *config) {
		c.target = target
	}
}

// WithDialTimeout sets the minimum time allowed for a connection attempt.
func WithDialTimeout(timeout time.Duration) Option {
	return func(c *config) {
		c.dialTimeout = timeout
	}
}

// WithTransportCredentials replaces the default insecure credentials.
func WithTransportCredentials(creds credentials.TransportCredentials) Option {
	return func(c *config) {
		c.creds = creds
	}
}

// WithDialOptions allows passing custom gRPC DialOptions, such as client interceptor chains or
// transport credentials.
func WithDialOptions(opts ...grpc.DialOption) Option {
	return func(c *config) {
		c.dialOptions = append(c.dialOptions, opts...)
	}
}

// HealthChecker is a wrapper around the gRPC health client that manages the underlying connection.
type HealthChecker struct {
	client grpc_health_v1.HealthClient
	conn   *grpc.ClientConn
}

// Check performs a health check on the specified service.
func (h *HealthChecker) Check(
	ctx context.Context,
	req *grpc_health_v1.HealthCheckRequest,
	opts ...grpc.CallOption,
) (*grpc_health_v1.HealthCheckResponse, error) {
	return h.client.Check(ctx, req, opts...)
}

// Watch watches the health status of the specified service.
func (h *HealthChecker) Watch(
	ctx context.Context,
	req *grpc_health_v1.HealthCheckRequest,
	opts ...grpc.CallOption,
) (grpc_health_v1.Health_WatchClient, error) {
	return h.client.Watch(ctx, req, opts...)
}

// Close closes the underlying gRPC connection.
func (h *HealthChecker) Close() error {
	if h.conn != nil {
		return h.conn.Close()
	}
	return nil
}

// NewHealthChecker creates a new HealthChecker with the provided functional options. The connection is
// established lazily on the first call. The user should call Close() when done, typically with defer.
// Default target is "localhost:50051", insecure, and 10s dial timeout.
func NewHealthChecker(opts ...Option) (*HealthChecker, error) {
	c := &config{
		target:      "localhost:50051",
		dialTimeout: 10 * time.Second,
		creds:       insecure.NewCredentials(),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.target == "" {
		return nil, errors.New("target address is required")
	}

	dialOpts := append([]grpc.DialOption{grpc.WithTransportCredentials(c.creds)}, c.dialOptions...)

	// Set connect parameters with the dial timeout
	connectParams := grpc.ConnectParams{
		Backoff:           backoff.DefaultConfig,
		MinConnectTimeout: c.dialTimeout,
	}
	dialOpts = append(dialOpts, grpc.WithConnectParams(connectParams))

	conn, err := grpc.NewClient(c.target, dialOpts...)
	if err != nil {
		return nil, errors.Wrapf(err, "health client for %s", c.target)
	}

	client := grpc_health_v1.NewHealthClient(conn)

	return &HealthChecker{client: client, conn: conn}, nil
}

// WaitForServing blocks until service reports SERVING, polling every interval. It returns the last
// check error, or the last observed status, once ctx is done. A check cut short by ctx does not replace
// what an earlier check observed.
func (h *HealthChecker) WaitForServing(ctx context.Context, service string, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last error
	for {
		resp, err := h.Check(ctx, &grpc_health_v1.HealthCheckRequest{Service: service})
		switch {
		case err != nil:
			if last == nil || ctx.Err() == nil {
				last = err
			}
		case resp.GetStatus() == grpc_health_v1.HealthCheckResponse_SERVING:
			return nil
		default:
			last = errors.Newf("service %q is %s", service, resp.GetStatus())
		}

		select {
		case <-ctx.Done():
			return errors.Wrapf(last, "waiting for %q", service)
		case <-ticker.C:
		}
	}
}
