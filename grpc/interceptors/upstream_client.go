package interceptors

import (
	"context"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"github.com/rainbow-me/rpc-interceptors/common/headers"
)

const UpstreamServiceHeaderKey = headers.XClientID

// upstreamName returns serverName, or the short service name of the method when serverName is empty.
func upstreamName(serverName, method string) string {
	if serverName != "" {
		return serverName
	}
	service, _ := GetServiceAndMethod(method)
	parts := strings.Split(service, ".")
	return parts[len(parts)-1]
}

// UnaryUpstreamInfoClientInterceptor tags outbound calls with the calling service name.
func UnaryUpstreamInfoClientInterceptor(serverName string) grpc.UnaryClientInterceptor {
	return func(
		ctx context.Context,
		method string,
		req, reply any,
		cc *grpc.ClientConn,
		invoker grpc.UnaryInvoker,
		opts ...grpc.CallOption,
	) error {
		ctx = metadata.AppendToOutgoingContext(ctx, UpstreamServiceHeaderKey, upstreamName(serverName, method))
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

// StreamUpstreamInfoClientInterceptor is the streaming counterpart of UnaryUpstreamInfoClientInterceptor.
func StreamUpstreamInfoClientInterceptor(serverName string) grpc.StreamClientInterceptor {
	return func(
		ctx context.Context,
		desc *grpc.StreamDesc,
		cc *grpc.ClientConn,
		method string,
		streamer grpc.Streamer,
		opts ...grpc.CallOption,
	) (grpc.ClientStream, error) {
		ctx = metadata.AppendToOutgoingContext(ctx, UpstreamServiceHeaderKey, upstreamName(serverName, method))
		return streamer(ctx, desc, cc, method, opts...)
	}
}
