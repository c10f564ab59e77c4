// Package resty carries the outbound call binding over HTTP: the same credential, trace id and client id
// the gRPC client interceptors attach, set as headers on resty requests to the gateway.
package resty

import (
	"fmt"
	"net/url"

	"github.com/DataDog/dd-trace-go/v2/ddtrace/ext"
	"github.com/DataDog/dd-trace-go/v2/ddtrace/tracer"
	"github.com/go-resty/resty/v2"

	"github.com/rainbow-me/rpc-interceptors/common/headers"
	"github.com/rainbow-me/rpc-interceptors/common/logger"
	"github.com/rainbow-me/rpc-interceptors/grpc/auth"
	"github.com/rainbow-me/rpc-interceptors/grpc/callctx"
	"github.com/rainbow-me/rpc-interceptors/grpc/idgen"
)

const (
	httpRequestOp      = "http.request"
	restyComponentName = "resty"
)

type interceptorCfg struct {
	TracingEnabled     bool
	CorrelationEnabled bool
	ClientID           string
}

type InterceptorOpt func(*interceptorCfg)

// WithCorrelationEnabled enables/disables correlation headers. Default is enabled.
func WithCorrelationEnabled(enabled bool) InterceptorOpt {
	return func(cfg *interceptorCfg) {
		cfg.CorrelationEnabled = enabled
	}
}

// WithTracingEnabled enables/disables Datadog spans. Default is enabled.
func WithTracingEnabled(enabled bool) InterceptorOpt {
	return func(cfg *interceptorCfg) {
		cfg.TracingEnabled = enabled
	}
}

// WithClientID sets the X-Client-Id sent on every request.
func WithClientID(clientID string) InterceptorOpt {
	return func(cfg *interceptorCfg) {
		cfg.ClientID = clientID
	}
}

// InjectInterceptors installs the correlation and tracing middlewares on client. Correlation runs first so
// the span is tagged with the trace id actually sent.
func InjectInterceptors(client *resty.Client, opts ...InterceptorOpt) {
	cfg := &interceptorCfg{
		TracingEnabled:     true,
		CorrelationEnabled: true,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.CorrelationEnabled {
		client.OnBeforeRequest(CorrelationMiddleware(cfg.ClientID))
	}
	if cfg.TracingEnabled {
		before, after := TracingMiddleware()
		client.OnBeforeRequest(before)
		client.OnAfterResponse(after)
	}
}

// CorrelationMiddleware sets X-Trace-Id from the call binding, generating one when nothing is bound, and
// Authorization from the bound token. Headers set explicitly on the request win.
func CorrelationMiddleware(clientID string) resty.RequestMiddleware {
	return func(_ *resty.Client, req *resty.Request) error {
		b := callctx.Binding(req.Context())

		if req.Header.Get(headers.XTraceID) == "" {
			traceID := b.TraceID
			if traceID == "" {
				traceID = idgen.NextTraceID()
			}
			req.SetHeader(headers.XTraceID, traceID)
		}
		if req.Header.Get(headers.Authorization) == "" && b.Token != "" {
			req.SetHeader(headers.Authorization, auth.NormalizeBearer(b.Token))
		}
		if clientID != "" && req.Header.Get(headers.XClientID) == "" {
			req.SetHeader(headers.XClientID, clientID)
		}
		return nil
	}
}

// TracingMiddleware starts an http.request client span per request and injects it in the Datadog
// propagation headers. The span is finished with the response status.
func TracingMiddleware() (resty.RequestMiddleware, resty.ResponseMiddleware) {
	beforeRequest := func(_ *resty.Client, req *resty.Request) error {
		opts := []tracer.StartSpanOption{
			tracer.SpanType(ext.SpanTypeHTTP),
			tracer.Tag(ext.HTTPMethod, req.Method),
			tracer.Tag(ext.HTTPURL, req.URL),
			tracer.Tag(ext.Component, restyComponentName),
			tracer.Tag(ext.SpanKind, ext.SpanKindClient),
		}
		if parsedURL, err := url.Parse(req.URL); err == nil {
			opts = append(opts,
				tracer.Tag(ext.NetworkDestinationName, parsedURL.Hostname()),
				tracer.Tag("http.host", parsedURL.Host),
				tracer.Tag("http.path", parsedURL.Path),
			)
		}
		if traceID := req.Header.Get(headers.XTraceID); traceID != "" {
			opts = append(opts, tracer.Tag("trace_id", traceID))
		}

		span, ctx := tracer.StartSpanFromContext(req.Context(), httpRequestOp, opts...)
		req.SetContext(ctx)

		if err := tracer.Inject(span.Context(), tracer.HTTPHeadersCarrier(req.Header)); err != nil {
			logger.FromContext(ctx).Warn("failed to inject trace header", logger.Error(err))
		}
		return nil
	}

	afterResponse := func(_ *resty.Client, resp *resty.Response) error {
		span, ok := tracer.SpanFromContext(resp.Request.Context())
		if !ok {
			return nil
		}
		span.SetTag(ext.HTTPCode, resp.StatusCode())
		span.SetTag("http.response_size", len(resp.Body()))

		if resp.StatusCode() >= 400 {
			span.SetTag(ext.Error, true)
			span.SetTag(ext.ErrorMsg, fmt.Sprintf("HTTP %d: %s", resp.StatusCode(), resp.Status()))
		}
		span.Finish()
		return nil
	}

	return beforeRequest, afterResponse
}
