package hello

import (
	"context"

	"google.golang.org/grpc"

	"github.com/rainbow-me/rpc-interceptors/grpc/codec"
)

const ServiceName = "rainbow.hello.v1.HelloService"

// Full method names.
const (
	SayHelloMethod          = "/" + ServiceName + "/SayHello"
	StreamHelloMethod       = "/" + ServiceName + "/StreamHello"
	ClientStreamHelloMethod = "/" + ServiceName + "/ClientStreamHello"
	BidirectionalChatMethod = "/" + ServiceName + "/BidirectionalChat"
)

// HelloServiceServer is the server API for HelloService.
type HelloServiceServer interface {
	SayHello(context.Context, *HelloRequest) (*HelloResponse, error)
	StreamHello(*HelloRequest, grpc.ServerStreamingServer[HelloResponse]) error
	ClientStreamHello(grpc.ClientStreamingServer[StreamChunk, StreamSummary]) error
	BidirectionalChat(grpc.BidiStreamingServer[ChatMessage, ChatMessage]) error
}

// RegisterHelloServiceServer registers srv on s.
func RegisterHelloServiceServer(s grpc.ServiceRegistrar, srv HelloServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func sayHelloHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(HelloRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(HelloServiceServer).SayHello(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: SayHelloMethod,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(HelloServiceServer).SayHello(ctx, req.(*HelloRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func streamHelloHandler(srv any, stream grpc.ServerStream) error {
	m := new(HelloRequest)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(HelloServiceServer).StreamHello(m, &grpc.GenericServerStream[HelloRequest, HelloResponse]{ServerStream: stream})
}

func clientStreamHelloHandler(srv any, stream grpc.ServerStream) error {
	return srv.(HelloServiceServer).ClientStreamHello(&grpc.GenericServerStream[StreamChunk, StreamSummary]{ServerStream: stream})
}

func bidirectionalChatHandler(srv any, stream grpc.ServerStream) error {
	return srv.(HelloServiceServer).BidirectionalChat(&grpc.GenericServerStream[ChatMessage, ChatMessage]{ServerStream: stream})
}

// ServiceDesc is the grpc.ServiceDesc for HelloService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*HelloServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "SayHello",
			Handler:    sayHelloHandler,
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "StreamHello",
			Handler:       streamHelloHandler,
			ServerStreams: true,
		},
		{
			StreamName:    "ClientStreamHello",
			Handler:       clientStreamHelloHandler,
			ClientStreams: true,
		},
		{
			StreamName:    "BidirectionalChat",
			Handler:       bidirectionalChatHandler,
			ServerStreams: true,
			ClientStreams: true,
		},
	},
	Metadata: "rainbow/hello/v1/hello.proto",
}

// HelloServiceClient calls HelloService. Every call is sent with the JSON codec.
type HelloServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewHelloServiceClient(cc grpc.ClientConnInterface) *HelloServiceClient {
	return &HelloServiceClient{cc: cc}
}

func callOptions(opts []grpc.CallOption) []grpc.CallOption {
	return append([]grpc.CallOption{grpc.CallContentSubtype(codec.Name)}, opts...)
}

func (c *HelloServiceClient) SayHello(ctx context.Context, in *HelloRequest, opts ...grpc.CallOption) (*HelloResponse, error) {
	out := new(HelloResponse)
	if err := c.cc.Invoke(ctx, SayHelloMethod, in, out, callOptions(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HelloServiceClient) StreamHello(
	ctx context.Context,
	in *HelloRequest,
	opts ...grpc.CallOption,
) (grpc.ServerStreamingClient[HelloResponse], error) {
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[0], StreamHelloMethod, callOptions(opts)...)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[HelloRequest, HelloResponse]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

func (c *HelloServiceClient) ClientStreamHello(
	ctx context.Context,
	opts ...grpc.CallOption,
) (grpc.ClientStreamingClient[StreamChunk, StreamSummary], error) {
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[1], ClientStreamHelloMethod, callOptions(opts)...)
	if err != nil {
		return nil, err
	}
	return &grpc.GenericClientStream[StreamChunk, StreamSummary]{ClientStream: stream}, nil
}

func (c *HelloServiceClient) BidirectionalChat(
	ctx context.Context,
	opts ...grpc.CallOption,
) (grpc.BidiStreamingClient[ChatMessage, ChatMessage], error) {
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[2], BidirectionalChatMethod, callOptions(opts)...)
	if err != nil {
		return nil, err
	}
	return &grpc.GenericClientStream[ChatMessage, ChatMessage]{ClientStream: stream}, nil
}
