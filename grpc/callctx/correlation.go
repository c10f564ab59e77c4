// Package callctx carries per-call correlation data through context.Context: the values server
// authentication resolves for an inbound call, and the values a caller binds for an outbound one.
package callctx

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Anonymous is the token and identity bound to calls that skip authentication.
const Anonymous = "anonymous"

type (
	traceIDKey      struct{}
	authTokenKey    struct{}
	userIdentityKey struct{}
)

// CorrelationContext is the identity of an inbound call once authentication has resolved it.
type CorrelationContext struct {
	TraceID      string
	AuthToken    string
	UserIdentity string
}

// WithCorrelation attaches c to ctx. Each field is stored under its own key so handlers can read
// them independently.
func WithCorrelation(ctx context.Context, c CorrelationContext) context.Context {
	ctx = context.WithValue(ctx, traceIDKey{}, c.TraceID)
	ctx = context.WithValue(ctx, authTokenKey{}, c.AuthToken)
	return context.WithValue(ctx, userIdentityKey{}, c.UserIdentity)
}

// Correlation returns the correlation values attached to ctx. ok is false when no trace id was attached.
func Correlation(ctx context.Context) (CorrelationContext, bool) {
	c := CorrelationContext{
		TraceID:      stringValue(ctx, traceIDKey{}),
		AuthToken:    stringValue(ctx, authTokenKey{}),
		UserIdentity: stringValue(ctx, userIdentityKey{}),
	}
	return c, c.TraceID != ""
}

func TraceID(ctx context.Context) string      { return stringValue(ctx, traceIDKey{}) }
func AuthToken(ctx context.Context) string    { return stringValue(ctx, authTokenKey{}) }
func UserIdentity(ctx context.Context) string { return stringValue(ctx, userIdentityKey{}) }

// IsAuthenticated reports whether the call carries a real token rather than the anonymous binding.
func IsAuthenticated(ctx context.Context) bool {
	token := AuthToken(ctx)
	return token != "" && token != Anonymous
}

// ContextInfo renders the correlation values for human-readable log lines and replies.
func ContextInfo(ctx context.Context) string {
	auth := "NO"
	if IsAuthenticated(ctx) {
		auth = "YES"
	}
	return fmt.Sprintf("[TraceId=%s, User=%s, Auth=%s]", TraceID(ctx), UserIdentity(ctx), auth)
}

// ZapFields returns the correlation values as log fields. The token is never logged.
func ZapFields(ctx context.Context) []zapcore.Field {
	var fields []zapcore.Field
	if v := TraceID(ctx); v != "" {
		fields = append(fields, zap.String("trace_id", v))
	}
	if v := UserIdentity(ctx); v != "" {
		fields = append(fields, zap.String("user", v))
	}
	return fields
}

func stringValue(ctx context.Context, key any) string {
	v, _ := ctx.Value(key).(string)
	return v
}
