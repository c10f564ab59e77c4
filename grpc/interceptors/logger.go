package interceptors

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"github.com/mennanov/fmutils"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"

	"github.com/rainbow-me/rpc-interceptors/common/headers"
	"github.com/rainbow-me/rpc-interceptors/common/logger"
	"github.com/rainbow-me/rpc-interceptors/grpc/callctx"
	"github.com/rainbow-me/rpc-interceptors/grpc/codec"
	"github.com/rainbow-me/rpc-interceptors/grpc/idgen"
)

// Structured logging field keys
const (
	durationKey    = "duration"
	traceIDKey     = "trace_id"
	requestIDKey   = "request_id"
	methodKey      = "method"
	serviceKey     = "service"
	sideKey        = "side"
	codeKey        = "code"
	descriptionKey = "description"
	clientIDKey    = "client_id"
	userKey        = "user"
	requestKey     = "request"
	responseKey    = "response"
)

// Log messages, one per lifecycle event.
const (
	msgCallStarted   = "grpc call started"
	msgRequest       = "grpc request"
	msgResponse      = "grpc response"
	msgCallSucceeded = "grpc call succeeded"
	msgCallFailed    = "grpc call failed"
	msgCallCancelled = "grpc call cancelled by client"
)

const (
	sideServer = "server"
	sideClient = "client"
)

// Pre-compile regex for performance - avoid recompiling on each request
var methodRegex = regexp.MustCompile(`\/(.+)\/(.+)$`)

// RequestTrace records the lifecycle of one call as the logging interceptor observes it.
// Send, receive and close may happen on different goroutines, so mutable fields sit behind a mutex.
type RequestTrace struct {
	RequestID uint64
	TraceID   string
	Method    string
	StartTime time.Time

	mu           sync.Mutex
	closed       bool
	success      bool
	costTime     time.Duration
	requestBody  string
	responseBody string
}

// NewRequestTrace starts a trace now with the next process-wide request id.
func NewRequestTrace(traceID, method string) *RequestTrace {
	return &RequestTrace{
		RequestID: idgen.NextRequestID(),
		TraceID:   traceID,
		Method:    method,
		StartTime: time.Now(),
	}
}

func (t *RequestTrace) SetRequestBody(body string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.requestBody = body
}

func (t *RequestTrace) SetResponseBody(body string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.responseBody = body
}

// Close records the outcome and returns the elapsed time. Only the first call has an effect;
// ok is false for later calls.
func (t *RequestTrace) Close(success bool) (cost time.Duration, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return t.costTime, false
	}
	t.closed = true
	t.success = success
	t.costTime = max(time.Since(t.StartTime), 0)
	return t.costTime, true
}

func (t *RequestTrace) RequestBody() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.requestBody
}

func (t *RequestTrace) ResponseBody() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.responseBody
}

func (t *RequestTrace) CostTime() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.costTime
}

func (t *RequestTrace) Success() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.success
}

// callLogger emits the log lines of one call.
type callLogger struct {
	config *LoggingInterceptorConfig
	side   string
	trace  *RequestTrace
	log    *zap.Logger
}

func newCallLogger(
	log *logger.Logger,
	config *LoggingInterceptorConfig,
	side, fullMethod, traceID string,
) *callLogger {
	trace := NewRequestTrace(traceID, fullMethod)
	grpcService, grpcMethod := GetServiceAndMethod(fullMethod)

	// Interceptor stacks are not useful in call logs.
	z := log.Zap().WithOptions(zap.AddStacktrace(zapcore.FatalLevel)).With(
		zap.String(traceIDKey, traceID),
		zap.Uint64(requestIDKey, trace.RequestID),
		zap.String(methodKey, grpcMethod),
		zap.String(serviceKey, grpcService),
		zap.String(sideKey, side),
	)

	return &callLogger{config: config, side: side, trace: trace, log: z}
}

// contextWithLogger exposes the call logger to handlers through both ctxzap and the logger package.
func (c *callLogger) contextWithLogger(ctx context.Context) context.Context {
	ctx = ctxzap.ToContext(ctx, c.log)
	return logger.ContextWithLogger(ctx, logger.NewLogger(c.log))
}

func (c *callLogger) started() {
	if c.config.LogEnabled {
		c.log.Check(c.config.LogLevel, msgCallStarted).Write()
	}
}

func (c *callLogger) request(msg any) {
	body := FormatPayload(msg, c.config)
	c.trace.SetRequestBody(body)
	if c.config.LogEnabled && c.config.LogPayloads {
		c.log.Check(c.config.LogLevel, msgRequest).Write(zap.String(requestKey, body))
	}
}

func (c *callLogger) response(msg any) {
	body := FormatPayload(msg, c.config)
	c.trace.SetResponseBody(body)
	if c.config.LogEnabled && c.config.LogPayloads {
		c.log.Check(c.config.LogLevel, msgResponse).Write(zap.String(responseKey, body))
	}
}

// finished logs the outcome once. ctx is the call context, used for the server-side extras.
func (c *callLogger) finished(ctx context.Context, err error) {
	cost, first := c.trace.Close(err == nil)
	if !first {
		return
	}
	if !c.config.LogEnabled && err == nil {
		return
	}

	st := status.Convert(err)
	fields := []zapcore.Field{
		zap.Duration(durationKey, cost),
		zap.String(codeKey, st.Code().String()),
	}
	if c.side == sideServer {
		fields = append(fields, serverCallFields(ctx)...)
	}

	if err == nil {
		c.log.Check(c.config.LogLevel, msgCallSucceeded).Write(fields...)
		return
	}

	fields = append(fields, zap.String(descriptionKey, st.Message()))
	c.log.Check(determineLogLevel(c.config, err), msgCallFailed).Write(fields...)

	if c.side == sideServer && (st.Code() == codes.Canceled || errors.Is(ctx.Err(), context.Canceled)) {
		c.log.Warn(msgCallCancelled, zap.Duration(durationKey, cost))
	}
}

func serverCallFields(ctx context.Context) []zapcore.Field {
	clientID := "unknown"
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if v := firstValue(md, headers.XClientID); v != "" {
			clientID = v
		}
	}
	fields := []zapcore.Field{zap.String(clientIDKey, clientID)}
	if user := callctx.UserIdentity(ctx); user != "" {
		fields = append(fields, zap.String(userKey, user))
	}
	return fields
}

// determineLogLevel determines the appropriate log level based on error status
func determineLogLevel(config *LoggingInterceptorConfig, err error) zapcore.Level {
	if err == nil {
		return config.LogLevel
	}

	if codeLevel, exists := config.GrpcCodeLogLevel[status.Code(err)]; exists {
		return codeLevel
	}

	return config.ErrorLogLevel
}

// FormatPayload renders a message for the logs: JSON with blocklisted fields removed, one trailing
// newline stripped, truncated to the configured length.
func FormatPayload(msg any, config *LoggingInterceptorConfig) string {
	return TruncatePayload(renderPayload(msg, config.LogParamsBlocklist), config.MaxPayloadLength)
}

func renderPayload(msg any, blocklist []string) string {
	if msg == nil {
		return ""
	}

	if pb, ok := msg.(proto.Message); ok {
		if len(blocklist) > 0 {
			pb = proto.Clone(pb)
			fmutils.Prune(pb, blocklist)
		}
		b, err := protojson.Marshal(pb)
		if err != nil {
			return fmt.Sprintf("%+v", msg)
		}
		return string(b)
	}

	b, err := codec.Marshal(msg)
	if err != nil {
		return fmt.Sprintf("%+v", msg)
	}
	for _, path := range blocklist {
		if !gjson.GetBytes(b, path).Exists() {
			continue
		}
		if pruned, err := sjson.DeleteBytes(b, path); err == nil {
			b = pruned
		}
	}
	return string(b)
}

// TruncatePayload strips one trailing newline and cuts text to maxChars characters, appending the
// original length when it had to cut.
func TruncatePayload(text string, maxChars int) string {
	text = strings.TrimSuffix(text, "\n")
	if maxChars <= 0 {
		return text
	}

	total := utf8.RuneCountInString(text)
	if total <= maxChars {
		return text
	}

	runes := []rune(text)
	return fmt.Sprintf("%s... (truncated, total %d chars)", string(runes[:maxChars]), total)
}

// GetServiceAndMethod extracts the service and method names from a full gRPC method path.
// Input format: "/rainbow.hello.v1.HelloService/SayHello"
// Output: service="rainbow.hello.v1.HelloService", method="SayHello"
func GetServiceAndMethod(fullMethod string) (string, string) {
	methodParts := methodRegex.FindStringSubmatch(fullMethod)
	if len(methodParts) >= 3 {
		return methodParts[1], methodParts[2]
	}
	return "unknown", fullMethod
}
