// Package server runs gRPC and HTTP listeners side by side and shuts them down together, followed by
// shutdown hooks in priority order.
package server

import (
	"context"
	"net"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/rainbow-me/rpc-interceptors/common/logger"
)

var (
	ErrNoServers       = errors.New("no servers configured")
	ErrShutdownTimeout = errors.New("shutdown timed out")
)

func errMissing(name, what string) error {
	return errors.Newf("server %q: %s is required", name, what)
}

// Server manages a set of listeners.
type Server struct {
	log             *logger.Logger
	httpConfigs     []*HTTPConfig
	grpcConfigs     []*GRPCConfig
	hooks           ShutdownHooks
	shutdownTimeout time.Duration
	signalHandling  bool
	automaticStop   bool

	mu          sync.Mutex
	httpServers map[string]*http.Server
	grpcServers map[string]*grpc.Server

	stopCh       chan struct{}
	stopOnce     sync.Once
	shutdownOnce sync.Once
	shutdownErr  error
}

// NewServer validates opts and returns a server ready to Serve.
func NewServer(opts ...Option) (*Server, error) {
	s := &Server{
		log:             logger.NoOp(),
		shutdownTimeout: DefaultShutdownTimeout,
		signalHandling:  true,
		automaticStop:   true,
		httpServers:     map[string]*http.Server{},
		grpcServers:     map[string]*grpc.Server{},
		stopCh:          make(chan struct{}),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Server) validate() error {
	names := map[string]bool{}
	addresses := map[string]bool{}
	check := func(name, address string) error {
		if names[name] {
			return errors.Newf("duplicate server name %q", name)
		}
		names[name] = true
		// ":0" asks the kernel for a free port, so it may repeat.
		if address != "" && !isEphemeral(address) {
			if addresses[address] {
				return errors.Newf("duplicate server address %q", address)
			}
			addresses[address] = true
		}
		return nil
	}

	for _, c := range s.httpConfigs {
		if err := check(c.Name, c.Address); err != nil {
			return err
		}
	}
	for _, c := range s.grpcConfigs {
		if err := check(c.Name, c.Address); err != nil {
			return err
		}
	}
	return nil
}

func isEphemeral(address string) bool {
	_, port, err := net.SplitHostPort(address)
	return err == nil && port == "0"
}

// Serve listens on every configured address and blocks until the servers stop. It returns nil after a
// graceful shutdown triggered by Stop, GracefulShutdown or a signal, and the first listener error
// otherwise.
func (s *Server) Serve() error {
	if len(s.httpConfigs)+len(s.grpcConfigs) == 0 {
		return ErrNoServers
	}

	listeners, err := s.listen()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if s.signalHandling {
		var stop context.CancelFunc
		ctx, stop = signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
		defer stop()
	}

	var g errgroup.Group
	for _, c := range s.httpConfigs {
		srv := &http.Server{
			Addr:              c.Address,
			Handler:           c.Handler,
			ReadTimeout:       c.ReadTimeout,
			WriteTimeout:      c.WriteTimeout,
			IdleTimeout:       c.IdleTimeout,
			ReadHeaderTimeout: c.HeaderTimeout,
		}
		s.mu.Lock()
		s.httpServers[c.Name] = srv
		s.mu.Unlock()

		lis, name := listeners[c.Name], c.Name
		g.Go(func() error {
			s.log.Info("http server listening", logger.String("server", name), logger.String("address", lis.Addr().String()))
			if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return s.failed(name, err)
			}
			return nil
		})
	}

	for _, c := range s.grpcConfigs {
		srv := c.GRPCServer
		if srv == nil {
			srv = NewGRPCServer(nil, c.GRPCOpts...)
		}
		c.SetupFunc(srv)
		s.mu.Lock()
		s.grpcServers[c.Name] = srv
		s.mu.Unlock()

		lis, name := listeners[c.Name], c.Name
		g.Go(func() error {
			s.log.Info("grpc server listening", logger.String("server", name), logger.String("address", lis.Addr().String()))
			if err := srv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				return s.failed(name, err)
			}
			return nil
		})
	}

	g.Go(func() error {
		select {
		case <-ctx.Done():
			s.log.Info("shutdown signal received")
		case <-s.stopCh:
		}
		err := s.GracefulShutdown(context.Background())
		s.forceClose()
		return err
	})

	return g.Wait()
}

// forceClose closes whatever a shutdown that ran before Serve registered its servers could not reach.
func (s *Server) forceClose() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, srv := range s.httpServers {
		_ = srv.Close()
	}
	for _, srv := range s.grpcServers {
		srv.Stop()
	}
}

func (s *Server) listen() (map[string]net.Listener, error) {
	listeners := map[string]net.Listener{}
	closeAll := func() {
		for _, l := range listeners {
			_ = l.Close()
		}
	}

	addrs := make([][2]string, 0, len(s.httpConfigs)+len(s.grpcConfigs))
	for _, c := range s.httpConfigs {
		addrs = append(addrs, [2]string{c.Name, c.Address})
	}
	for _, c := range s.grpcConfigs {
		addrs = append(addrs, [2]string{c.Name, c.Address})
	}

	for _, a := range addrs {
		l, err := net.Listen("tcp", a[1])
		if err != nil {
			closeAll()
			return nil, errors.Wrapf(err, "listen %s on %s", a[0], a[1])
		}
		listeners[a[0]] = l
	}
	return listeners, nil
}

func (s *Server) failed(name string, err error) error {
	s.log.Error("server stopped with error", logger.String("server", name), logger.Error(err))
	if s.automaticStop {
		s.triggerStop()
	}
	return errors.Wrapf(err, "serve %s", name)
}

func (s *Server) triggerStop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

// Stop shuts the servers down gracefully, bounded by the shutdown timeout.
func (s *Server) Stop() error {
	return s.GracefulShutdown(context.Background())
}

// GracefulShutdown stops accepting connections, drains in-flight calls and runs the shutdown hooks, all
// within the shutdown timeout. gRPC servers still draining when it expires are stopped hard. Only the first
// call does the work; later calls return its result.
func (s *Server) GracefulShutdown(ctx context.Context) error {
	s.shutdownOnce.Do(func() {
		s.triggerStop()
		s.shutdownErr = s.shutdown(ctx)
	})
	return s.shutdownErr
}

func (s *Server) shutdown(parent context.Context) error {
	ctx, cancel := context.WithTimeout(parent, s.shutdownTimeout)
	defer cancel()
	start := time.Now()

	s.mu.Lock()
	httpServers := make(map[string]*http.Server, len(s.httpServers))
	for k, v := range s.httpServers {
		httpServers[k] = v
	}
	grpcServers := make(map[string]*grpc.Server, len(s.grpcServers))
	for k, v := range s.grpcServers {
		grpcServers[k] = v
	}
	s.mu.Unlock()

	var (
		errsMu sync.Mutex
		errs   []error
		wg     sync.WaitGroup
	)
	for name, srv := range httpServers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := srv.Shutdown(ctx); err != nil {
				errsMu.Lock()
				errs = append(errs, errors.Wrapf(err, "shutdown %s", name))
				errsMu.Unlock()
			}
		}()
	}
	for name, srv := range grpcServers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			stopGRPC(ctx, srv)
			s.log.Debug("grpc server stopped", logger.String("server", name))
		}()
	}
	wg.Wait()

	if err := s.ExecuteShutdownHooks(ctx); err != nil {
		errs = append(errs, err)
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		err := errors.Wrapf(ErrShutdownTimeout, "after %s", s.shutdownTimeout)
		if len(errs) > 0 {
			err = errors.WithSecondaryError(err, errors.Join(errs...))
		}
		s.log.Error("graceful shutdown timed out", logger.Error(err))
		return err
	}
	if len(errs) > 0 {
		err := errors.Join(errs...)
		s.log.Error("graceful shutdown finished with errors", logger.Error(err))
		return err
	}

	s.log.Info("graceful shutdown complete", logger.Duration("duration", time.Since(start)))
	return nil
}

func stopGRPC(ctx context.Context, srv *grpc.Server) {
	done := make(chan struct{})
	go func() {
		srv.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		srv.Stop()
		<-done
	}
}
