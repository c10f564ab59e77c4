package auth

import (
	"context"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/errors"
)

// ErrInvalidToken is returned by validators for tokens that are malformed, unknown or expired.
var ErrInvalidToken = errors.New("invalid or expired token")

// TokenValidator resolves a bearer token to a user identity.
type TokenValidator interface {
	Validate(ctx context.Context, token string) (identity string, err error)
}

// TokenValidatorFunc adapts a function to TokenValidator.
type TokenValidatorFunc func(ctx context.Context, token string) (string, error)

func (f TokenValidatorFunc) Validate(ctx context.Context, token string) (string, error) {
	return f(ctx, token)
}

// PlaceholderValidator accepts a token that starts with ValidPrefix or is longer than MinLength
// characters. It stands in for a real identity provider.
type PlaceholderValidator struct {
	ValidPrefix string
	MinLength   int
}

func NewPlaceholderValidator(validPrefix string, minLength int) *PlaceholderValidator {
	return &PlaceholderValidator{ValidPrefix: validPrefix, MinLength: minLength}
}

func (v *PlaceholderValidator) Validate(_ context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrInvalidToken
	}
	if (v.ValidPrefix != "" && strings.HasPrefix(token, v.ValidPrefix)) || utf8.RuneCountInString(token) > v.MinLength {
		return IdentityFromToken(token), nil
	}
	return "", ErrInvalidToken
}

// IdentityFromToken derives a stable, non-reversible identity name for token.
func IdentityFromToken(token string) string {
	return defaultIdentityNamePrefix + strconv.FormatUint(xxhash.Sum64String(token), 16)
}
