package interceptors_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"github.com/rainbow-me/rpc-interceptors/common/test"
	"github.com/rainbow-me/rpc-interceptors/grpc/callctx"
	"github.com/rainbow-me/rpc-interceptors/grpc/interceptors"
)

func TestUnaryClientAuthInterceptor(t *testing.T) {
	tests := []struct {
		name   string
		ctx    context.Context
		source interceptors.TokenSource
		want   []string
	}{
		{
			name: "bound token is prefixed",
			ctx:  callctx.WithToken(context.Background(), "valid_abc"),
			want: []string{"Bearer valid_abc"},
		},
		{
			name: "already prefixed token is not prefixed twice",
			ctx:  callctx.WithToken(context.Background(), "Bearer valid_abc"),
			want: []string{"Bearer valid_abc"},
		},
		{
			name: "no token proceeds unauthenticated",
			ctx:  context.Background(),
		},
		{
			name: "cleared binding proceeds unauthenticated",
			ctx:  callctx.ClearBinding(callctx.WithToken(context.Background(), "valid_abc")),
		},
		{
			name:   "static fallback",
			ctx:    context.Background(),
			source: interceptors.StaticToken("service_token"),
			want:   []string{"Bearer service_token"},
		},
		{
			name:   "binding overrides static token",
			ctx:    callctx.WithToken(context.Background(), "valid_user"),
			source: interceptors.StaticToken("service_token"),
			want:   []string{"Bearer valid_user"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			interceptor := interceptors.UnaryClientAuthInterceptor(test.NewLogger(t), tt.source)

			var got []string
			invoker := func(ctx context.Context, _ string, _, _ any, _ *grpc.ClientConn, _ ...grpc.CallOption) error {
				md, _ := metadata.FromOutgoingContext(ctx)
				got = md.Get("authorization")
				return nil
			}

			require.NoError(t, interceptor(tt.ctx, "/svc/M", nil, nil, nil, invoker))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStreamClientAuthInterceptor(t *testing.T) {
	interceptor := interceptors.StreamClientAuthInterceptor(test.NewLogger(t), nil)
	ctx := metadata.AppendToOutgoingContext(callctx.WithToken(context.Background(), "valid_abc"), "x-trace-id", "t-1")

	var md metadata.MD
	streamer := func(ctx context.Context, _ *grpc.StreamDesc, _ *grpc.ClientConn, _ string, _ ...grpc.CallOption) (grpc.ClientStream, error) {
		md, _ = metadata.FromOutgoingContext(ctx)
		return nil, nil
	}

	_, err := interceptor(ctx, &grpc.StreamDesc{}, nil, "/svc/Chat", streamer)

	require.NoError(t, err)
	assert.Equal(t, []string{"Bearer valid_abc"}, md.Get("authorization"))
	assert.Equal(t, []string{"t-1"}, md.Get("x-trace-id"))
}
