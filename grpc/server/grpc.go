package server

import (
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"

	"github.com/rainbow-me/rpc-interceptors/grpc/interceptors"
)

const (
	// DefaultGRPCMaxMsgSize defines the default gRPC max message size in
	// bytes the server can receive or send.
	DefaultGRPCMaxMsgSize = 1024 * 1024 * 10 // 10MB
)

// NewGRPCServer creates a gRPC server running the given interceptor chains, with message limits,
// keepalive and reflection configured.
//
// Calls to methods that were never registered are answered with UNIMPLEMENTED "Unknown route" after
// passing through the stream chain, so they are logged like any other call. A missing or invalid token
// does not turn them into UNAUTHENTICATED.
//
// serverOptions are appended after the defaults and can override them.
//
// Example usage:
//
//	chains := interceptors.NewDefaultServerChains("hello-service", env.Production, log)
//	s := server.NewGRPCServer(chains, grpc.MaxRecvMsgSize(4*1024*1024))
//	hello.RegisterHelloServiceServer(s, hello.NewServer())
func NewGRPCServer(chains *interceptors.ServerChains, serverOptions ...grpc.ServerOption) *grpc.Server {
	unknownHandler := func(_ any, _ grpc.ServerStream) error {
		return status.Error(codes.Unimplemented, "Unknown route")
	}

	baseServerOptions := []grpc.ServerOption{
		grpc.UnknownServiceHandler(unknownHandler),
		grpc.MaxRecvMsgSize(DefaultGRPCMaxMsgSize),
		grpc.MaxSendMsgSize(DefaultGRPCMaxMsgSize),
		grpc.KeepaliveParams(keepalive.ServerParameters{
			Time:    30 * time.Second, // Ping every 30s if no activity.
			Timeout: 10 * time.Second, // Wait 10s for ping ack.
		}),
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             5 * time.Second, // Clients must wait 5s between pings.
			PermitWithoutStream: true,
		}),
	}
	var grpcServer *grpc.Server
	if chains != nil {
		if chains.Stream.Exists(interceptors.IDAuthGate) {
			unrouted := interceptors.StreamUnroutedAuthInterceptor(func(fullMethod string) bool {
				return registered(grpcServer, fullMethod)
			})
			if !chains.Stream.Replace(interceptors.IDUnrouted, unrouted) {
				chains.Stream.InsertBefore(interceptors.IDAuthGate, interceptors.IDUnrouted, unrouted)
			}
		}
		baseServerOptions = append(baseServerOptions, chains.ServerOptions()...)
	}
	baseServerOptions = append(baseServerOptions, serverOptions...)

	grpcServer = grpc.NewServer(baseServerOptions...)
	reflection.Register(grpcServer)

	return grpcServer
}

// registered reports whether fullMethod ("/package.Service/Method") is served by s.
func registered(s *grpc.Server, fullMethod string) bool {
	service, method, ok := strings.Cut(strings.TrimPrefix(fullMethod, "/"), "/")
	if !ok {
		return false
	}
	info, ok := s.GetServiceInfo()[service]
	if !ok {
		return false
	}
	for _, m := range info.Methods {
		if m.Name == method {
			return true
		}
	}
	return false
}

// RegisterHealth registers a health server on s reporting SERVING for the server as a whole and for
// each of services.
func RegisterHealth(s grpc.ServiceRegistrar, services ...string) *health.Server {
	hs := health.NewServer()
	hs.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	for _, svc := range services {
		hs.SetServingStatus(svc, grpc_health_v1.HealthCheckResponse_SERVING)
	}
	grpc_health_v1.RegisterHealthServer(s, hs)
	return hs
}
