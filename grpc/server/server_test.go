package server_test

import (
	"context"
	"errors"
	"net/http"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/rainbow-me/rpc-interceptors/common/test"
	"github.com/rainbow-me/rpc-interceptors/grpc/callctx"
	"github.com/rainbow-me/rpc-interceptors/grpc/gateway"
	"github.com/rainbow-me/rpc-interceptors/grpc/hello"
	"github.com/rainbow-me/rpc-interceptors/grpc/interceptors"
	"github.com/rainbow-me/rpc-interceptors/grpc/server"
	rainbowhttp "github.com/rainbow-me/rpc-interceptors/http"
	gininterceptors "github.com/rainbow-me/rpc-interceptors/http/interceptors/gin"
	restyinterceptors "github.com/rainbow-me/rpc-interceptors/http/interceptors/resty"
)

func TestNewServer(t *testing.T) {
	tests := []struct {
		name    string
		opts    []server.Option
		wantErr bool
	}{
		{
			name:    "No servers configured",
			opts:    []server.Option{},
			wantErr: false, // No error, but Serve will fail later
		},
		{
			name: "Valid HTTP server",
			opts: []server.Option{
				server.WithHTTPServer("test-http", ":0", http.NewServeMux()),
			},
			wantErr: false,
		},
		{
			name: "Invalid HTTP server no handler",
			opts: []server.Option{
				server.WithHTTPServer("test-http", ":0", nil),
			},
			wantErr: true,
		},
		{
			name: "Valid gRPC server",
			opts: []server.Option{
				server.WithGRPCServer(
					"test-grpc",
					":0",
					nil,
					func(_ *grpc.Server) {},
				),
			},
			wantErr: false,
		},
		{
			name: "Invalid gRPC server no setup",
			opts: []server.Option{
				server.WithGRPCServer(
					"test-grpc",
					":0",
					nil,
					nil,
				),
			},
			wantErr: true,
		},
		{
			name: "Duplicate names",
			opts: []server.Option{
				server.WithHTTPServer("dup", ":0", http.NewServeMux()),
				server.WithGRPCServer(
					"dup",
					":0",
					nil,
					func(_ *grpc.Server) {},
				),
			},
			wantErr: true,
		},
		{
			name: "Duplicate addresses",
			opts: []server.Option{
				server.WithHTTPServer("http1", ":9999", http.NewServeMux()),
				server.WithHTTPServer("http2", ":9999", http.NewServeMux()),
			},
			wantErr: true,
		},

		{
			name: "With shutdown timeout",
			opts: []server.Option{
				server.WithShutdownTimeout(time.Second),
			},
			wantErr: false,
		},
		{
			name: "With shutdown hook",
			opts: []server.Option{
				server.WithShutdownHook(server.ShutdownHook{
					Name:     "test",
					Priority: 1,
					Timeout:  time.Second,
					Hook:     func(_ context.Context) error { return nil },
				},
				),
			},
			wantErr: false,
		},
		{
			name: "With gateway",
			opts: []server.Option{
				server.WithGateway("gateway", ":0",
					nil,
					gateway.WithEndpointRegistration("/", hello.RegisterHelloServiceHandlerFromEndpoint),
				),
			},
			wantErr: false,
		},
		{
			name: "Gateway without endpoints",
			opts: []server.Option{
				server.WithGateway("gateway", ":0", nil),
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := server.NewServer(tt.opts...)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewServer() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestServer_Serve(t *testing.T) {
	tests := []struct {
		name      string
		opts      []server.Option
		timeout   time.Duration
		expectErr bool
	}{
		{
			name:      "No servers",
			opts:      []server.Option{},
			expectErr: true,
		},
		{
			name: "HTTP server with listener error",
			opts: []server.Option{
				server.WithHTTPServer("test-http", "invalid-address", http.NewServeMux()),
			},
			expectErr: true,
		},
		{
			name: "gRPC server with listener error",
			opts: []server.Option{
				server.WithGRPCServer(
					"test-grpc",
					"invalid-address",
					nil,
					func(_ *grpc.Server) {},
				),
			},
			expectErr: true,
		},
		{
			name: "Successful start and manual stop",
			opts: []server.Option{
				server.WithHTTPServer("test-http", ":0", http.NewServeMux()),
				server.WithSignalHandling(false),
				server.WithAutomaticStop(false),
			},
			timeout:   time.Second,
			expectErr: false, // Manual stop
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, err := server.NewServer(tt.opts...)
			if err != nil {
				t.Fatalf("NewServer() error = %v", err)
			}

			done := make(chan error)
			go func() {
				done <- srv.Serve()
			}()

			select {
			case err = <-done:
				if (err != nil) != tt.expectErr {
					t.Errorf("Serve() error = %v, expectErr %v", err, tt.expectErr)
				}
			case <-time.After(tt.timeout):
				err = srv.Stop()
				if err != nil {
					return
				}
				<-done // Wait for Serve to exit
			}
		})
	}
}

func TestServer_executeShutdownHooks(t *testing.T) {
	tests := []struct {
		name      string
		opts      []server.Option
		ctx       context.Context
		expectErr bool
	}{
		{
			name:      "No hooks",
			opts:      []server.Option{},
			ctx:       context.Background(),
			expectErr: false,
		},
		{
			name: "Successful hook",
			opts: []server.Option{
				server.WithShutdownHook(server.ShutdownHook{
					Name:     "test",
					Priority: 1,
					Timeout:  time.Second,
					Hook: func(_ context.Context) error {
						return nil
					},
				}),
			},
			ctx:       context.Background(),
			expectErr: false,
		},
		{
			name: "Hook error",
			opts: []server.Option{
				server.WithShutdownHook(server.ShutdownHook{
					Name:     "test",
					Priority: 1,
					Timeout:  time.Second,
					Hook: func(_ context.Context) error {
						return errors.New("hook error")
					},
				}),
			},
			ctx:       context.Background(),
			expectErr: true,
		},
		{
			name: "Hook timeout",
			opts: []server.Option{
				server.WithShutdownHook(server.ShutdownHook{
					Name:     "test",
					Priority: 1,
					Timeout:  time.Second,
					Hook: func(_ context.Context) error {
						time.Sleep(2 * time.Second)
						return nil
					},
				}),
			},
			ctx:       context.Background(),
			expectErr: true,
		},
		{
			name: "Overall shutdown timeout",
			opts: []server.Option{
				server.WithShutdownHook(server.ShutdownHook{
					Name:     "test1",
					Priority: 1,
					Timeout:  time.Second,
					Hook: func(_ context.Context) error {
						time.Sleep(2 * time.Second)
						return nil
					},
				}),
				server.WithShutdownHook(server.ShutdownHook{
					Name:     "test2",
					Priority: 2,
					Timeout:  time.Second,
					Hook: func(_ context.Context) error {
						return nil
					},
				}),
			},
			ctx: func() context.Context {
				ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
				defer cancel()
				return ctx
			}(),
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, err := server.NewServer(tt.opts...)
			if err != nil {
				t.Fatalf("NewServer() error = %v", err)
			}
			err = srv.ExecuteShutdownHooks(tt.ctx)
			if (err != nil) != tt.expectErr {
				t.Errorf("ExecuteShutdownHooks() error = %v, expectErr %v", err, tt.expectErr)
			}
		})
	}
}

func TestServer_Stop(t *testing.T) {
	srv, err := server.NewServer(
		server.WithHTTPServer("test-http", ":0", http.NewServeMux()),
		server.WithAutomaticStop(false),
		server.WithSignalHandling(false),
	)
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}

	done := make(chan error)
	go func() {
		done <- srv.Serve()
	}()

	time.Sleep(100 * time.Millisecond) // Give time to start
	err = srv.Stop()
	if err != nil {
		t.Errorf("Stop() error = %v", err)
	}

	select {
	case err = <-done:
		if err != nil {
			t.Errorf("Serve() error after Stop = %v", err)
		}
	case <-time.After(time.Second):
		t.Error("Serve did not exit after Stop")
	}
}

func TestServer_GracefulShutdown(t *testing.T) {
	srv, err := server.NewServer(
		server.WithHTTPServer("test-http", ":0", http.NewServeMux()),
		server.WithAutomaticStop(false),
		server.WithSignalHandling(false),
		server.WithShutdownTimeout(time.Second),
	)
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}

	done := make(chan error)
	go func() {
		done <- srv.Serve()
	}()

	time.Sleep(100 * time.Millisecond) // Give time to start
	err = srv.GracefulShutdown(context.Background())
	if err != nil {
		t.Errorf("GracefulShutdown() error = %v", err)
	}

	select {
	case err = <-done:
		if err != nil {
			t.Errorf("Serve() error after GracefulShutdown = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Error("Serve did not exit after GracefulShutdown")
	}
}

func TestServer_ShutdownWithHooks(t *testing.T) {
	srv, err := server.NewServer(
		server.WithShutdownHook(server.ShutdownHook{
			Name:     "fast-hook",
			Priority: 1,
			Timeout:  time.Second,
			Hook: func(_ context.Context) error {
				return nil
			},
		}),
		server.WithShutdownHook(server.ShutdownHook{
			Name:     "slow-hook",
			Priority: 2,
			Timeout:  time.Second,
			Hook: func(_ context.Context) error {
				time.Sleep(2 * time.Second)
				return nil
			},
		}),
		server.WithShutdownTimeout(500*time.Millisecond), // Overall timeout short
		server.WithAutomaticStop(false),
		server.WithSignalHandling(false),
	)
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}

	err = srv.GracefulShutdown(context.Background())
	if err == nil || !errors.Is(err, server.ErrShutdownTimeout) {
		t.Errorf("GracefulShutdown() expected ErrShutdownTimeout, got %v", err)
	}
}

// Test signal handling
func TestSignalHandling(t *testing.T) {
	srv, err := server.NewServer(
		server.WithHTTPServer("test-http", ":0", http.NewServeMux()),
		server.WithSignalHandling(true),
		server.WithAutomaticStop(true),
	)
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}

	done := make(chan error)
	go func() {
		done <- srv.Serve()
	}()

	time.Sleep(100 * time.Millisecond) // Give time to start
	err = syscall.Kill(os.Getpid(), syscall.SIGTERM)
	require.NoError(t, err, "Failed to send SIGTERM")

	select {
	case err = <-done:
		if err != nil {
			t.Errorf("Serve() error on signal = %v", err)
		}
	case <-time.After(time.Second):
		t.Error("Serve did not exit on signal")
	}
}

const (
	grpcAddress    = "localhost:19050"
	gatewayAddress = "localhost:19060"
)

func helloSetup(t *testing.T) (*grpc.Server, func(*grpc.Server)) {
	chains := interceptors.NewDefaultServerChains("hello-service", "test", test.NewLogger(t))
	setup := func(s *grpc.Server) {
		hello.RegisterHelloServiceServer(s, hello.NewServer(hello.WithStreamInterval(0)))
		server.RegisterHealth(s, hello.ServiceName)
	}
	return server.NewGRPCServer(chains), setup
}

func serveInBackground(t *testing.T, srv *server.Server) {
	done := make(chan error, 1)
	go func() {
		done <- srv.Serve()
	}()
	t.Cleanup(func() {
		_ = srv.Stop()
		require.NoError(t, <-done)
	})
}

func TestGRPCServerAndClient(t *testing.T) {
	grpcServer, setup := helloSetup(t)
	srv, err := server.NewServer(
		server.WithGRPCServer("test-grpc", grpcAddress, grpcServer, setup),
		server.WithSignalHandling(false),
	)
	require.NoError(t, err)
	serveInBackground(t, srv)

	conn, err := grpc.NewClient(grpcAddress, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool {
		resp, err := grpc_health_v1.NewHealthClient(conn).Check(context.Background(), &grpc_health_v1.HealthCheckRequest{})
		return err == nil && resp.GetStatus() == grpc_health_v1.HealthCheckResponse_SERVING
	}, 3*time.Second, 50*time.Millisecond)

	tests := []struct {
		name     string
		token    string
		reqName  string
		wantCode codes.Code
		wantMsg  string
	}{
		{
			name:     "authenticated",
			token:    "valid-token-123456",
			reqName:  "Alice",
			wantCode: codes.OK,
			wantMsg:  "Hello, Alice! This is a Unary RPC.",
		},
		{
			name:     "missing token",
			reqName:  "Alice",
			wantCode: codes.Unauthenticated,
		},
		{
			name:     "validation failure",
			token:    "valid-token-123456",
			reqName:  "",
			wantCode: codes.InvalidArgument,
		},
	}

	client := hello.NewHelloServiceClient(conn)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			if tt.token != "" {
				ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+tt.token)
			}
			resp, err := client.SayHello(ctx, &hello.HelloRequest{Name: tt.reqName})
			require.Equal(t, tt.wantCode, status.Code(err), "err: %v", err)
			if tt.wantCode == codes.OK {
				assert.Equal(t, tt.wantMsg, resp.Message)
			}
		})
	}

	t.Run("unknown route without a token", func(t *testing.T) {
		for _, method := range []string{"/unknown.Service/Method", "/" + hello.ServiceName + "/Missing"} {
			err := conn.Invoke(context.Background(), method, &hello.HelloRequest{}, &hello.HelloResponse{},
				grpc.CallContentSubtype("json"))
			assert.Equal(t, codes.Unimplemented, status.Code(err), method)
			assert.Equal(t, "Unknown route", status.Convert(err).Message(), method)
		}
	})
}

func TestGRPCGateway(t *testing.T) {
	grpcServer, setup := helloSetup(t)
	clientChains := interceptors.NewDefaultClientChains("hello-gateway", test.NewLogger(t))

	srv, err := server.NewServer(
		server.WithGRPCServer("test-grpc", grpcAddress, grpcServer, setup),
		server.WithGateway("test-gateway", gatewayAddress, nil,
			gateway.WithServerAddress(grpcAddress),
			gateway.WithDialOptions(clientChains.DialOptions()...),
			gateway.WithEndpointRegistration("/", hello.RegisterHelloServiceHandlerFromEndpoint),
			gateway.WithCompression(),
			gateway.WithCORS(),
			gateway.WithDefaultInterceptors(gininterceptors.WithHTTPDebug()),
		),
		server.WithSignalHandling(false),
	)
	require.NoError(t, err)
	serveInBackground(t, srv)

	client := resty.New().SetBaseURL("http://" + gatewayAddress)
	require.Eventually(t, func() bool {
		resp, err := client.R().
			SetHeader("Authorization", "Bearer valid-token-123456").
			SetBody(map[string]string{"name": "John"}).
			Post(hello.SayHelloPath)
		return err == nil && resp.StatusCode() == http.StatusOK
	}, 3*time.Second, 50*time.Millisecond)

	t.Run("success echoes trace id", func(t *testing.T) {
		var out hello.HelloResponse
		resp, err := client.R().
			SetHeader("Authorization", "Bearer valid-token-123456").
			SetHeader("X-Trace-Id", "gateway-trace-1").
			SetBody(map[string]string{"name": "John"}).
			SetResult(&out).
			Post(hello.SayHelloPath)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode())
		assert.Equal(t, "Hello, John! This is a Unary RPC.", out.Message)
		assert.Equal(t, "gateway-trace-1", resp.Header().Get("X-Trace-Id"))
	})

	t.Run("path parameter", func(t *testing.T) {
		var out hello.HelloResponse
		resp, err := client.R().
			SetHeader("Authorization", "Bearer valid-token-123456").
			SetResult(&out).
			Get("/v1/hello/Ann")
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode())
		assert.Equal(t, "Hello, Ann! This is a Unary RPC.", out.Message)
	})

	t.Run("unauthenticated", func(t *testing.T) {
		resp, err := client.R().
			SetBody(map[string]string{"name": "John"}).
			Post(hello.SayHelloPath)
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode())
		assert.NotEmpty(t, resp.Header().Get("X-Trace-Id"))
	})

	t.Run("failed precondition", func(t *testing.T) {
		resp, err := client.R().
			SetHeader("Authorization", "Bearer valid-token-123456").
			SetBody(map[string]string{"name": "bob"}).
			Post(hello.SayHelloPath)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode())
	})

	t.Run("binding carried by the resty interceptors", func(t *testing.T) {
		bound := rainbowhttp.NewRestyWithClient(&http.Client{Timeout: 5 * time.Second}, test.NewLogger(t),
			restyinterceptors.WithClientID("hello-http-client"),
		).SetBaseURL("http://" + gatewayAddress)

		ctx := callctx.WithTraceID(callctx.WithToken(context.Background(), "valid-token-123456"), "gateway-trace-2")
		var out hello.HelloResponse
		resp, err := bound.R().SetContext(ctx).SetResult(&out).Get("/v1/hello/Eve")
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode())
		assert.Equal(t, "Hello, Eve! This is a Unary RPC.", out.Message)
		assert.Equal(t, "gateway-trace-2", resp.Header().Get("X-Trace-Id"))
		assert.NotEmpty(t, resp.Header().Get("X-Request-Id"))
	})
}
