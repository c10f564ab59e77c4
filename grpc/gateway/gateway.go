// Package gateway exposes gRPC services over HTTP/JSON. Each registered prefix gets its own grpc-gateway
// mux mounted on a gin engine, with forwarded headers carried both ways.
package gateway

import (
	"context"
	"net/http"
	"slices"
	"sort"
	"strings"
	"time"

	httptrace "github.com/DataDog/dd-trace-go/contrib/net/http/v2"
	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/handlers"
	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/proto"

	"github.com/rainbow-me/rpc-interceptors/common/headers"
	"github.com/rainbow-me/rpc-interceptors/common/logger"
	gininterceptors "github.com/rainbow-me/rpc-interceptors/http/interceptors/gin"
)

const (
	DefaultTimeout        = 30 * time.Second
	DefaultServerAddress  = "localhost:9090"
	DefaultHealthEndpoint = "/healthz"
)

// RegisterFunc registers the routes of one service on mux, dialing endpoint with opts.
type RegisterFunc func(ctx context.Context, mux *runtime.ServeMux, endpoint string, opts []grpc.DialOption) error

// HeaderConfig lists the HTTP headers copied into outgoing gRPC metadata and back into HTTP responses.
type HeaderConfig struct {
	HeadersToForward []string
}

// Gateway holds the configuration of the HTTP front of one or more gRPC services.
type Gateway struct {
	Endpoints         map[string][]RegisterFunc
	Engine            *gin.Engine
	Logger            *logger.Logger
	Timeout           time.Duration
	ServerAddress     string
	ServerDialOptions []grpc.DialOption
	GatewayMuxOptions []runtime.ServeMuxOption
	HealthServer      *health.Server
	HealthEndpoint    string
	HeaderConfig      HeaderConfig
	GinMiddlewares    []gin.HandlerFunc
	CustomRegistrars  []func(*gin.Engine)
	CORS              CORS
	Compression       bool
	TracingService    string

	tls bool
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithEndpointRegistration adds fn under prefix. Prefixes must start and end with "/"; "/" mounts the
// service at the root.
func WithEndpointRegistration(prefix string, fn RegisterFunc) Option {
	return func(g *Gateway) {
		if g.Endpoints == nil {
			g.Endpoints = map[string][]RegisterFunc{}
		}
		g.Endpoints[prefix] = append(g.Endpoints[prefix], fn)
	}
}

// WithEngine serves the gateway from an existing gin engine.
func WithEngine(engine *gin.Engine) Option {
	return func(g *Gateway) {
		g.Engine = engine
	}
}

func WithLogger(log *logger.Logger) Option {
	return func(g *Gateway) {
		g.Logger = log
	}
}

// WithTimeout bounds every request served through the gateway.
func WithTimeout(timeout time.Duration) Option {
	return func(g *Gateway) {
		g.Timeout = timeout
	}
}

// WithTLS replaces the default insecure transport credentials used to reach the gRPC server.
func WithTLS(creds grpc.DialOption) Option {
	return func(g *Gateway) {
		g.tls = true
		g.ServerDialOptions = append(g.ServerDialOptions, creds)
	}
}

func WithGinMiddlewares(middlewares ...gin.HandlerFunc) Option {
	return func(g *Gateway) {
		g.GinMiddlewares = append(g.GinMiddlewares, middlewares...)
	}
}

// WithDefaultInterceptors installs the standard correlation, tracing, logging and recovery middlewares.
// The request timeout stays governed by WithTimeout.
func WithDefaultInterceptors(opts ...gininterceptors.InterceptorOpt) Option {
	opts = append(opts, gininterceptors.WithTimeout(0))
	return WithGinMiddlewares(gininterceptors.DefaultInterceptors(opts...)...)
}

// WithHTTPHandlers registers plain gin routes next to the gateway routes.
func WithHTTPHandlers(registrars ...func(*gin.Engine)) Option {
	return func(g *Gateway) {
		g.CustomRegistrars = append(g.CustomRegistrars, registrars...)
	}
}

func WithHeadersToForward(names ...string) Option {
	return func(g *Gateway) {
		g.HeaderConfig.HeadersToForward = append(g.HeaderConfig.HeadersToForward, names...)
	}
}

// WithDialOptions appends options used when dialing the gRPC server, typically the client interceptor
// chains.
func WithDialOptions(opts ...grpc.DialOption) Option {
	return func(g *Gateway) {
		g.ServerDialOptions = append(g.ServerDialOptions, opts...)
	}
}

func WithServerAddress(address string) Option {
	return func(g *Gateway) {
		g.ServerAddress = address
	}
}

// WithHealthCheck serves the health server's Check result on endpoint.
func WithHealthCheck(hs *health.Server, endpoint string) Option {
	return func(g *Gateway) {
		g.HealthServer = hs
		g.HealthEndpoint = endpoint
	}
}

func WithGatewayOptions(opts ...runtime.ServeMuxOption) Option {
	return func(g *Gateway) {
		g.GatewayMuxOptions = append(g.GatewayMuxOptions, opts...)
	}
}

// WithCORS enables CORS with DefaultCORSConfig adjusted by opts.
func WithCORS(opts ...CORSOption) Option {
	return func(g *Gateway) {
		cfg := DefaultCORSConfig()
		for _, opt := range opts {
			opt(&cfg)
		}
		g.CORS = CORS{Enabled: true, Config: cfg}
	}
}

// WithCompression gzips responses when the client accepts it.
func WithCompression() Option {
	return func(g *Gateway) {
		g.Compression = true
	}
}

// WithTracing wraps the handler in a Datadog span named after service.
func WithTracing(service string) Option {
	return func(g *Gateway) {
		g.TracingService = service
	}
}

// NewGateway builds the gateway and returns its HTTP handler.
func NewGateway(opts ...Option) (http.Handler, error) {
	g := &Gateway{
		Endpoints:      map[string][]RegisterFunc{},
		Logger:         logger.NoOp(),
		Timeout:        DefaultTimeout,
		ServerAddress:  DefaultServerAddress,
		HealthEndpoint: DefaultHealthEndpoint,
		HeaderConfig:   HeaderConfig{HeadersToForward: headers.Forwarded()},
	}
	for _, opt := range opts {
		opt(g)
	}
	if !g.tls {
		g.ServerDialOptions = append(g.ServerDialOptions, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}

	engine, err := g.RegisterEndpoints()
	if err != nil {
		return nil, err
	}
	return g.wrap(engine), nil
}

func (g *Gateway) wrap(h http.Handler) http.Handler {
	if g.Compression {
		h = handlers.CompressHandler(h)
	}
	if g.CORS.Enabled {
		h = g.CORS.Apply(h)
	}
	if g.TracingService != "" {
		h = httptrace.WrapHandler(h, g.TracingService, "http.request")
	}
	return h
}

func (g *Gateway) log() *logger.Logger {
	if g.Logger == nil {
		return logger.NoOp()
	}
	return g.Logger
}

// ValidatePrefix reports whether prefix can be mounted.
func (g *Gateway) ValidatePrefix(prefix string) error {
	if prefix == "" {
		return errors.Newf("invalid prefix %q: %w: must not be empty", prefix, ErrInvalidPrefix)
	}
	if !strings.HasSuffix(prefix, "/") {
		return errors.Newf("invalid prefix %s: %w: must end with '/'", prefix, ErrInvalidPrefix)
	}
	if !strings.HasPrefix(prefix, "/") {
		return errors.Newf("invalid prefix %s: %w: must start with '/'", prefix, ErrInvalidPrefix)
	}
	return nil
}

// RegisterEndpoints mounts the health endpoint, the custom routes and one grpc-gateway mux per prefix on
// the engine.
func (g *Gateway) RegisterEndpoints() (*gin.Engine, error) {
	if g.Engine == nil {
		g.Engine = gin.New()
	}
	engine := g.Engine

	engine.Use(g.GinMiddlewares...)
	if g.Timeout > 0 {
		engine.Use(gininterceptors.TimeoutMiddleware(g.Timeout))
	}
	if g.HealthServer != nil && g.HealthEndpoint != "" {
		engine.GET(g.HealthEndpoint, g.HealthHandler())
	}
	for _, register := range g.CustomRegistrars {
		register(engine)
	}

	if len(g.Endpoints) == 0 {
		return nil, ErrNoEndpointsRegistered
	}

	prefixes := make([]string, 0, len(g.Endpoints))
	for prefix := range g.Endpoints {
		prefixes = append(prefixes, prefix)
	}
	sort.Strings(prefixes)

	var errs []error
	for _, prefix := range prefixes {
		if err := g.ValidatePrefix(prefix); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	if g.ServerAddress == "" {
		return nil, ErrNoServerAddress
	}

	ctx := context.Background()
	for _, prefix := range prefixes {
		mux := runtime.NewServeMux(g.muxOptions()...)
		for _, register := range g.Endpoints[prefix] {
			if err := register(ctx, mux, g.ServerAddress, g.ServerDialOptions); err != nil {
				return nil, errors.Wrapf(err, "failed to register endpoint for prefix %s", prefix)
			}
		}

		if prefix == "/" {
			engine.NoRoute(gin.WrapH(mux))
		} else {
			engine.Any(prefix+"*path", g.StripPrefixHandler(strings.TrimSuffix(prefix, "/"), mux))
		}
		g.log().Debug("gateway endpoints registered",
			logger.String("prefix", prefix),
			logger.Int("services", len(g.Endpoints[prefix])),
		)
	}

	return engine, nil
}

func (g *Gateway) muxOptions() []runtime.ServeMuxOption {
	opts := []runtime.ServeMuxOption{
		runtime.WithIncomingHeaderMatcher(g.HeaderMatcher),
		runtime.WithOutgoingHeaderMatcher(g.OutgoingHeaderMatcher),
		runtime.WithMetadata(g.MetadataAnnotator),
		runtime.WithForwardResponseOption(g.ResponseHeaderHandler),
		runtime.WithErrorHandler(g.ProtoMessageErrorHandler),
	}
	return append(opts, g.GatewayMuxOptions...)
}

func (g *Gateway) forwards(key string) bool {
	return slices.ContainsFunc(g.HeaderConfig.HeadersToForward, func(h string) bool {
		return strings.EqualFold(h, key)
	})
}

// MetadataAnnotator carries the request id into the metadata, keeping the one the caller sent or
// assigning a new one. The other forwarded headers reach the metadata through HeaderMatcher.
func (g *Gateway) MetadataAnnotator(_ context.Context, req *http.Request) metadata.MD {
	md := metadata.MD{}
	if !g.forwards(headers.XRequestID) {
		return md
	}
	requestID := req.Header.Get(headers.XRequestID)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	md.Set(headers.XRequestID, requestID)
	return md
}

// HeaderMatcher maps incoming HTTP headers to metadata keys. Authorization is left out: the gateway
// runtime always passes it through unprefixed. A forwarded request id is left to MetadataAnnotator.
func (g *Gateway) HeaderMatcher(key string) (string, bool) {
	if strings.EqualFold(key, headers.Authorization) {
		return "", false
	}
	if strings.EqualFold(key, headers.XRequestID) && g.forwards(key) {
		return "", false
	}
	if g.forwards(key) {
		return strings.ToLower(key), true
	}
	return runtime.DefaultHeaderMatcher(key)
}

// OutgoingHeaderMatcher selects the response metadata keys written back as HTTP headers.
func (g *Gateway) OutgoingHeaderMatcher(key string) (string, bool) {
	switch lower := strings.ToLower(key); lower {
	case "content-type", "content-length":
		return lower, true
	}
	if g.forwards(key) {
		return key, true
	}
	return "", false
}

func (g *Gateway) ShouldForwardResponseHeader(key string) bool {
	return g.forwards(key)
}

// ResponseHeaderHandler copies forwarded header and trailer metadata onto the HTTP response.
func (g *Gateway) ResponseHeaderHandler(ctx context.Context, w http.ResponseWriter, _ proto.Message) error {
	md, ok := runtime.ServerMetadataFromContext(ctx)
	if !ok {
		return nil
	}
	for _, set := range []metadata.MD{md.HeaderMD, md.TrailerMD} {
		for key, values := range set {
			if !g.ShouldForwardResponseHeader(key) {
				continue
			}
			name := http.CanonicalHeaderKey(key)
			w.Header().Del(name)
			for _, v := range values {
				w.Header().Add(name, v)
			}
		}
	}
	return nil
}

// ProtoMessageErrorHandler logs the failed call and renders the status with the default gateway encoding.
func (g *Gateway) ProtoMessageErrorHandler(
	ctx context.Context,
	mux *runtime.ServeMux,
	marshaler runtime.Marshaler,
	w http.ResponseWriter,
	r *http.Request,
	err error,
) {
	g.log().Warn("gateway request failed",
		logger.String("method", r.Method),
		logger.String("path", r.URL.Path),
		logger.Error(err),
	)
	runtime.DefaultHTTPErrorHandler(ctx, mux, marshaler, w, r, err)
}

// HealthHandler answers with the serving status of the service named by the "service" query parameter.
func (g *Gateway) HealthHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		resp, err := g.HealthServer.Check(c.Request.Context(), &grpc_health_v1.HealthCheckRequest{
			Service: c.Query("service"),
		})
		if err != nil {
			g.log().Error("health check failed", logger.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": resp.GetStatus().String()})
	}
}

// StripPrefixHandler serves h with strip removed from the request path. Requests outside strip pass
// through unchanged.
func (g *Gateway) StripPrefixHandler(strip string, h http.Handler) gin.HandlerFunc {
	return func(c *gin.Context) {
		r := c.Request
		p := strings.TrimPrefix(r.URL.Path, strip)
		if strip == "" || len(p) == len(r.URL.Path) {
			h.ServeHTTP(c.Writer, r)
			return
		}
		if p == "" {
			p = "/"
		}

		r2 := r.Clone(r.Context())
		r2.URL.Path = p
		r2.URL.RawPath = strings.TrimPrefix(r.URL.RawPath, strip)
		h.ServeHTTP(c.Writer, r2)
	}
}
