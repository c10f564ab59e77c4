package gin

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"runtime/debug"
	"time"

	"github.com/DataDog/dd-trace-go/v2/ddtrace/ext"
	"github.com/DataDog/dd-trace-go/v2/ddtrace/tracer"
	"github.com/gin-gonic/gin"

	"github.com/rainbow-me/rpc-interceptors/common/env"
	"github.com/rainbow-me/rpc-interceptors/common/logger"
)

var internalError = gin.H{"message": "internal server error"}

// ErrorHandlingMiddleware turns errors attached to the gin context into a 500, logs them and tags the span.
// Handlers that already wrote a response keep it.
func ErrorHandlingMiddleware(c *gin.Context) {
	c.Next()
	if len(c.Errors) == 0 {
		return
	}
	err := c.Errors.Last().Err
	logger.FromContext(c.Request.Context()).Error("Error in gin http handler",
		logger.String("path", c.Request.URL.Path),
		logger.Error(err),
	)
	if env.IsLocalApplicationEnv() {
		_, _ = fmt.Fprintf(os.Stderr, "Error in gin http handler: %+v\n", err)
	}
	tagSpanAsError(c.Request.Context(), "internal", err.Error())
	if !c.Writer.Written() {
		c.JSON(http.StatusInternalServerError, internalError)
	}
}

// PanicRecoveryMiddleware converts a handler panic into a 500, logging the panic value and stack.
func PanicRecoveryMiddleware(c *gin.Context) {
	defer func() {
		if r := recover(); r != nil {
			logger.FromContext(c.Request.Context()).Error("Recovered from panic in gin http handler", logger.WithPanic(r)...)
			if env.IsLocalApplicationEnv() {
				_, _ = fmt.Fprintf(os.Stderr, "%s\n", debug.Stack())
			}
			tagSpanAsError(c.Request.Context(), "panic", fmt.Sprintf("%v", r))
			c.AbortWithStatusJSON(http.StatusInternalServerError, internalError)
		}
	}()
	c.Next()
}

func tagSpanAsError(ctx context.Context, errorType string, errorMsg string) {
	span, ok := tracer.SpanFromContext(ctx)
	if ok {
		span.SetTag(ext.Error, true)
		span.SetTag(ext.ErrorType, errorType)
		span.SetTag(ext.ErrorMsg, errorMsg)
	}
}

// TimeoutMiddleware sets a deadline on the request context. The gateway turns it into the grpc-timeout of
// the upstream call.
func TimeoutMiddleware(timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
