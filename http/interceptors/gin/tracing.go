package gin

import (
	"github.com/DataDog/dd-trace-go/v2/ddtrace/ext"
	"github.com/DataDog/dd-trace-go/v2/ddtrace/tracer"
	"github.com/gin-gonic/gin"

	"github.com/rainbow-me/rpc-interceptors/common/headers"
	"github.com/rainbow-me/rpc-interceptors/common/logger"
)

// TracingMiddleware continues the Datadog trace found in the request headers, or starts one, and wraps the
// request in an http.handler span tagged with route, method, status and the correlation trace id. The span
// ids are added to the context logger.
func TracingMiddleware(c *gin.Context) {
	route := c.FullPath()
	if route == "" {
		// Gateway routes are served from NoRoute or a wildcard, so fall back to the raw path.
		route = c.Request.URL.Path
	}
	spanOpts := []tracer.StartSpanOption{
		tracer.Tag(ext.Component, componentName),
		tracer.Tag(ext.SpanType, ext.SpanTypeWeb),
		tracer.Tag(ext.HTTPMethod, c.Request.Method),
		tracer.Tag(ext.HTTPURL, c.Request.URL.String()),
		tracer.Tag(ext.ResourceName, c.Request.Method+" "+route),
		tracer.Tag(ext.HTTPRoute, route),
	}
	if traceID := c.GetHeader(headers.XTraceID); traceID != "" {
		spanOpts = append(spanOpts, tracer.Tag(TraceIDField, traceID))
	}

	if sCtx, err := tracer.Extract(tracer.HTTPHeadersCarrier(c.Request.Header)); err == nil && sCtx != nil {
		spanOpts = append(spanOpts, func(cfg *tracer.StartSpanConfig) {
			cfg.Parent = sCtx
		})
	}

	span, ctx := tracer.StartSpanFromContext(c.Request.Context(), httpHandlerOp, spanOpts...)
	defer span.Finish()

	ctx = logger.ContextWithFields(ctx, logger.WithTrace(span.Context())...)
	c.Request = c.Request.WithContext(ctx)
	c.Next()

	span.SetTag(ext.HTTPCode, c.Writer.Status())
	if c.Writer.Status() >= 500 {
		span.SetTag(ext.Error, true)
	}
}
