package callctx

import "context"

type bindingKey struct{}

// CallBinding holds the values an outbound call picks up from its caller. Interceptors read it once
// when the call starts.
type CallBinding struct {
	Token   string
	TraceID string
}

// WithBinding replaces the outbound binding on ctx.
func WithBinding(ctx context.Context, b CallBinding) context.Context {
	return context.WithValue(ctx, bindingKey{}, b)
}

// WithToken binds token to calls made with the returned context, keeping any bound trace id.
func WithToken(ctx context.Context, token string) context.Context {
	b := Binding(ctx)
	b.Token = token
	return WithBinding(ctx, b)
}

// WithTraceID binds a trace id to calls made with the returned context, keeping any bound token.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	b := Binding(ctx)
	b.TraceID = traceID
	return WithBinding(ctx, b)
}

// ClearBinding returns a context on which no outbound values are bound.
func ClearBinding(ctx context.Context) context.Context {
	return context.WithValue(ctx, bindingKey{}, CallBinding{})
}

// Binding returns the outbound values bound to ctx; the zero value when nothing is bound.
func Binding(ctx context.Context) CallBinding {
	b, _ := ctx.Value(bindingKey{}).(CallBinding)
	return b
}
