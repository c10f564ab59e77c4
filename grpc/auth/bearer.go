package auth

import (
	"strings"

	"github.com/rainbow-me/rpc-interceptors/common/headers"
)

// NormalizeBearer returns token prefixed with "Bearer ", leaving an already prefixed token untouched.
func NormalizeBearer(token string) string {
	if strings.HasPrefix(token, headers.BearerPrefix) {
		return token
	}
	return headers.BearerPrefix + token
}

// StripBearer removes the "Bearer " prefix. ok is false when the value does not carry it.
func StripBearer(value string) (token string, ok bool) {
	if !strings.HasPrefix(value, headers.BearerPrefix) {
		return "", false
	}
	return value[len(headers.BearerPrefix):], true
}

// Preview returns at most n leading characters of a credential for log lines.
func Preview(value string, n int) string {
	if len(value) <= n {
		return value
	}
	return value[:n] + "..."
}
