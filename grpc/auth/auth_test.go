package auth_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rainbow-me/rpc-interceptors/grpc/auth"
)

func TestPlaceholderValidator(t *testing.T) {
	v := auth.NewPlaceholderValidator("valid_", 10)

	tests := []struct {
		name    string
		token   string
		wantErr bool
	}{
		{name: "marker prefix", token: "valid_x"},
		{name: "long token", token: "abcdefghijk"},
		{name: "exactly min length", token: "abcdefghij", wantErr: true},
		{name: "multibyte counted as characters", token: "日本語のトークン", wantErr: true},
		{name: "multibyte above min length", token: "日本語のトークンです!"},
		{name: "short token", token: "short", wantErr: true},
		{name: "empty", token: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			identity, err := v.Validate(context.Background(), tt.token)
			if tt.wantErr {
				require.ErrorIs(t, err, auth.ErrInvalidToken)
				assert.Empty(t, identity)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, auth.IdentityFromToken(tt.token), identity)
		})
	}
}

func TestIdentityFromToken(t *testing.T) {
	a := auth.IdentityFromToken("valid_alice")
	assert.Equal(t, a, auth.IdentityFromToken("valid_alice"))
	assert.NotEqual(t, a, auth.IdentityFromToken("valid_bob"))
	assert.Regexp(t, `^user_[0-9a-f]+$`, a)
}

func TestNormalizeBearer(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"abc", "Bearer abc"},
		{"Bearer abc", "Bearer abc"},
		{"bearer abc", "Bearer bearer abc"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := auth.NormalizeBearer(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, auth.NormalizeBearer(got))
		})
	}
}

func TestStripBearer(t *testing.T) {
	token, ok := auth.StripBearer("Bearer valid_1")
	assert.True(t, ok)
	assert.Equal(t, "valid_1", token)

	token, ok = auth.StripBearer("Bearer ")
	assert.True(t, ok)
	assert.Empty(t, token)

	_, ok = auth.StripBearer("Basic xyz")
	assert.False(t, ok)
}

func TestNewConfig(t *testing.T) {
	cfg := auth.NewConfig(auth.WithSkipAuthMethods("/svc.A/Open"))

	assert.True(t, cfg.Enabled)
	for _, m := range auth.DefaultWhitelist() {
		assert.True(t, cfg.Whitelist.Allows(m), m)
	}
	assert.True(t, cfg.Whitelist.Allows("/svc.A/Open"))
	assert.False(t, cfg.Whitelist.Allows("/svc.A/Closed"))

	custom := auth.NewConfig(
		auth.WithWhitelist(auth.WhitelistFunc(func(string) bool { return true })),
		auth.WithTokenValidator(auth.TokenValidatorFunc(func(context.Context, string) (string, error) {
			return "svc", nil
		})),
	)
	assert.True(t, custom.Whitelist.Allows("/anything/Goes"))
	id, err := custom.Validator.Validate(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, "svc", id)
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "Bearer abc", auth.Preview("Bearer abc", 20))
	assert.Equal(t, "Bearer valid_abcdefg...", auth.Preview("Bearer valid_abcdefghijk", 20))
}
