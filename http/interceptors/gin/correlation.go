package gin

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/rainbow-me/rpc-interceptors/common/headers"
	"github.com/rainbow-me/rpc-interceptors/common/logger"
	"github.com/rainbow-me/rpc-interceptors/grpc/idgen"
)

const (
	TraceIDField   = "trace_id"
	RequestIDField = "request_id"
)

// CorrelationMiddleware makes sure every request carries an X-Trace-Id and an X-Request-Id, generating the
// missing ones. Both are written back on the request, so the gateway forwards them as gRPC metadata, and on
// the response. The ids are added to the context logger.
func CorrelationMiddleware(c *gin.Context) {
	traceID := c.GetHeader(headers.XTraceID)
	if traceID == "" {
		traceID = idgen.NextTraceID()
		c.Request.Header.Set(headers.XTraceID, traceID)
	}
	requestID := c.GetHeader(headers.XRequestID)
	if requestID == "" {
		requestID = uuid.NewString()
		c.Request.Header.Set(headers.XRequestID, requestID)
	}

	c.Header(http.CanonicalHeaderKey(headers.XTraceID), traceID)
	c.Header(http.CanonicalHeaderKey(headers.XRequestID), requestID)

	ctx := logger.ContextWithFields(c.Request.Context(),
		logger.String(TraceIDField, traceID),
		logger.String(RequestIDField, requestID),
	)
	c.Request = c.Request.WithContext(ctx)
}
