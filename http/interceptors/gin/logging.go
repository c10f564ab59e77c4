package gin

import (
	"bytes"
	"io"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rainbow-me/rpc-interceptors/common/logger"
)

// maxLoggedBody caps the bytes of a body kept for trace logging.
const maxLoggedBody = 64 << 10

type loggingCfg struct {
	debug bool
	trace bool
}

type responseWriterCapture struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *responseWriterCapture) Write(data []byte) (int, error) {
	if room := maxLoggedBody - w.body.Len(); room > 0 {
		if len(data) < room {
			room = len(data)
		}
		w.body.Write(data[:room])
	}
	return w.ResponseWriter.Write(data)
}

// RequestLogging logs one line per handled request once the handler chain returns. Server errors log at
// error level, client errors at warn level, everything else at debug level.
func RequestLogging(cfg loggingCfg) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !cfg.debug {
			c.Next()
			return
		}

		var reqBody []byte
		if cfg.trace && c.Request.Body != nil {
			if b, err := io.ReadAll(c.Request.Body); err == nil {
				reqBody = b
				c.Request.Body = io.NopCloser(bytes.NewReader(b))
			}
		}

		var capture *responseWriterCapture
		if cfg.trace {
			capture = &responseWriterCapture{ResponseWriter: c.Writer, body: &bytes.Buffer{}}
			c.Writer = capture
		}

		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := []logger.Field{
			logger.String("method", c.Request.Method),
			logger.String("path", c.Request.URL.Path),
			logger.Int("status", status),
			logger.Duration("duration", time.Since(start)),
			logger.String("component", componentName),
		}
		if capture != nil {
			if len(reqBody) > maxLoggedBody {
				reqBody = reqBody[:maxLoggedBody]
			}
			fields = append(fields,
				logger.ByteString("request_body", reqBody),
				logger.ByteString("response_body", capture.body.Bytes()),
			)
		}

		level := logger.DebugLevel
		switch {
		case status >= 500:
			level = logger.ErrorLevel
		case status >= 400:
			level = logger.WarnLevel
		}
		if ce := logger.FromContext(c.Request.Context()).Check(level.Zap(), "HTTP request handled"); ce != nil {
			ce.Write(fields...)
		}
	}
}
