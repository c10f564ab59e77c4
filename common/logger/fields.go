package logger

import (
	"fmt"
	"runtime/debug"
	"strconv"

	"github.com/DataDog/dd-trace-go/v2/ddtrace/tracer"
)

const (
	PanicValueKey = "panic_value"
	StackKey      = "stack"
	TraceIDKey    = "dd.trace_id"
	SpanIDKey     = "dd.span_id"
)

// WithPanic returns fields describing a recovered panic, stack included.
func WithPanic(panicValue any) []Field {
	return []Field{
		String(PanicValueKey, fmt.Sprintf("%+v", panicValue)),
		ByteString(StackKey, debug.Stack()),
	}
}

// WithTrace returns the Datadog correlation fields for a span context. A nil context yields no fields.
func WithTrace(sc *tracer.SpanContext) []Field {
	if sc == nil {
		return nil
	}
	return []Field{
		String(TraceIDKey, sc.TraceID()),
		String(SpanIDKey, strconv.FormatUint(sc.SpanID(), 10)),
	}
}
