package health_test

import (
	"context"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	grpchealth "google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/rainbow-me/rpc-interceptors/grpc/health"
)

func startHealthServer(t *testing.T) (*grpchealth.Server, string) {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := grpc.NewServer()
	hs := grpchealth.NewServer()
	grpc_health_v1.RegisterHealthServer(srv, hs)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	return hs, lis.Addr().String()
}

func TestNewHealthChecker_EmptyTarget(t *testing.T) {
	_, err := health.NewHealthChecker(health.WithTarget(""))
	assert.Error(t, err)
}

func TestHealthChecker_Check(t *testing.T) {
	hs, addr := startHealthServer(t)
	hs.SetServingStatus("hello", grpc_health_v1.HealthCheckResponse_NOT_SERVING)

	hc, err := health.NewHealthChecker(health.WithTarget(addr), health.WithDialTimeout(time.Second))
	require.NoError(t, err)
	defer hc.Close()

	resp, err := hc.Check(context.Background(), &grpc_health_v1.HealthCheckRequest{Service: "hello"})
	require.NoError(t, err)
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_NOT_SERVING, resp.GetStatus())

	_, err = hc.Check(context.Background(), &grpc_health_v1.HealthCheckRequest{Service: "missing"})
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestHealthChecker_WaitForServing(t *testing.T) {
	hs, addr := startHealthServer(t)
	hs.SetServingStatus("hello", grpc_health_v1.HealthCheckResponse_NOT_SERVING)

	hc, err := health.NewHealthChecker(health.WithTarget(addr))
	require.NoError(t, err)
	defer hc.Close()

	go func() {
		time.Sleep(100 * time.Millisecond)
		hs.SetServingStatus("hello", grpc_health_v1.HealthCheckResponse_SERVING)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, hc.WaitForServing(ctx, "hello", 20*time.Millisecond))
}

func TestHealthChecker_WaitForServingTimesOut(t *testing.T) {
	hs, addr := startHealthServer(t)
	hs.SetServingStatus("hello", grpc_health_v1.HealthCheckResponse_NOT_SERVING)

	hc, err := health.NewHealthChecker(health.WithTarget(addr))
	require.NoError(t, err)
	defer hc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	err = hc.WaitForServing(ctx, "hello", 20*time.Millisecond)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NOT_SERVING")
}

// stallingHealthServer reports NOT_SERVING once, then holds every later check until the caller gives up.
type stallingHealthServer struct {
	grpc_health_v1.UnimplementedHealthServer
	calls atomic.Int32
}

func (s *stallingHealthServer) Check(ctx context.Context, _ *grpc_health_v1.HealthCheckRequest) (*grpc_health_v1.HealthCheckResponse, error) {
	if s.calls.Add(1) == 1 {
		return &grpc_health_v1.HealthCheckResponse{Status: grpc_health_v1.HealthCheckResponse_NOT_SERVING}, nil
	}
	<-ctx.Done()
	return nil, status.FromContextError(ctx.Err()).Err()
}

func TestHealthChecker_WaitForServingKeepsStatusWhenCheckTimesOut(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	srv := grpc.NewServer()
	stalling := &stallingHealthServer{}
	grpc_health_v1.RegisterHealthServer(srv, stalling)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	hc, err := health.NewHealthChecker(health.WithTarget(lis.Addr().String()))
	require.NoError(t, err)
	defer hc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	err = hc.WaitForServing(ctx, "hello", 10*time.Millisecond)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NOT_SERVING")
	assert.GreaterOrEqual(t, stalling.calls.Load(), int32(2))
}
