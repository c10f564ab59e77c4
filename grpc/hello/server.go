package hello

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"

	"github.com/rainbow-me/rpc-interceptors/common/logger"
	"github.com/rainbow-me/rpc-interceptors/grpc/callctx"
	rpcerrors "github.com/rainbow-me/rpc-interceptors/grpc/errors"
	"github.com/rainbow-me/rpc-interceptors/grpc/streaming"
	"github.com/rainbow-me/rpc-interceptors/observability"
)

const (
	DefaultStreamCount    = 5
	DefaultStreamInterval = 500 * time.Millisecond

	StreamCancelledMessage = "Request cancelled by client"
)

// Config tunes the service behaviour.
type Config struct {
	StreamCount    int
	StreamInterval time.Duration
	ChunkCeiling   int64
	ChatOptions    []streaming.ChatOption
}

type Option func(*Config)

// WithStreamCount sets how many replies StreamHello sends.
func WithStreamCount(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.StreamCount = n
		}
	}
}

// WithStreamInterval sets the pause between StreamHello replies.
func WithStreamInterval(d time.Duration) Option {
	return func(c *Config) {
		if d >= 0 {
			c.StreamInterval = d
		}
	}
}

// WithChunkCeiling sets the largest number ClientStreamHello accepts.
func WithChunkCeiling(n int64) Option {
	return func(c *Config) {
		c.ChunkCeiling = n
	}
}

// WithChatOptions forwards options to every chat session.
func WithChatOptions(opts ...streaming.ChatOption) Option {
	return func(c *Config) {
		c.ChatOptions = append(c.ChatOptions, opts...)
	}
}

// Server implements HelloServiceServer.
type Server struct {
	cfg Config
}

var _ HelloServiceServer = (*Server)(nil)

func NewServer(opts ...Option) *Server {
	cfg := Config{
		StreamCount:    DefaultStreamCount,
		StreamInterval: DefaultStreamInterval,
		ChunkCeiling:   streaming.DefaultChunkCeiling,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Server{cfg: cfg}
}

func (s *Server) SayHello(ctx context.Context, req *HelloRequest) (resp *HelloResponse, err error) {
	span, ctx := observability.StartSpan(ctx, "hello.say_hello")
	defer func() { observability.FinishSpan(span, err) }()

	log := logger.FromContext(ctx)
	log.Info("say hello", logger.String("context", callctx.ContextInfo(ctx)))

	if st := ValidateName(req.Name); st != nil {
		return nil, st.Err()
	}

	return &HelloResponse{Message: fmt.Sprintf("Hello, %s! This is a Unary RPC.", req.Name)}, nil
}

func (s *Server) StreamHello(req *HelloRequest, stream grpc.ServerStreamingServer[HelloResponse]) (err error) {
	span, ctx := observability.StartSpan(stream.Context(), "hello.stream_hello")
	defer func() { observability.FinishSpan(span, err) }()

	log := logger.FromContext(ctx)
	log.Info("stream hello", logger.String("context", callctx.ContextInfo(ctx)))

	if st := validateStreamName(req.Name); st != nil {
		return st.Err()
	}

	for i := 1; i <= s.cfg.StreamCount; i++ {
		if ctx.Err() != nil {
			log.Info("stream hello cancelled by client", logger.Int("sent", i-1))
			return rpcerrors.Cancelled(StreamCancelledMessage).Err()
		}

		if err := stream.Send(&HelloResponse{Message: fmt.Sprintf("Stream Response #%d to %s", i, req.Name)}); err != nil {
			return err
		}

		if i == s.cfg.StreamCount {
			break
		}
		select {
		case <-ctx.Done():
		case <-time.After(s.cfg.StreamInterval):
		}
	}

	return nil
}

func (s *Server) ClientStreamHello(stream grpc.ClientStreamingServer[StreamChunk, StreamSummary]) (err error) {
	span, ctx := observability.StartSpan(stream.Context(), "hello.client_stream_hello")
	defer func() { observability.FinishSpan(span, err) }()

	log := logger.FromContext(ctx)
	acc := streaming.NewAccumulator(s.cfg.ChunkCeiling)

	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			summary, ok := acc.Finish()
			if !ok {
				return nil
			}
			return stream.SendAndClose(&StreamSummary{
				ChunkCount:    summary.Count,
				TotalNumber:   summary.Total,
				AverageNumber: summary.Average,
				Message:       summary.Message,
			})
		}
		if err != nil {
			log.Warn("client stream failed", logger.Error(err))
			if st := acc.Abort(); st != nil {
				return st.Err()
			}
			return err
		}

		log.Debug("received chunk", logger.Int64("number", chunk.Number))
		if st := acc.Add(chunk.Number); st != nil {
			log.Warn("rejected chunk", logger.Int64("number", chunk.Number), logger.String("reason", st.Message()))
			return st.Err()
		}
	}
}

func (s *Server) BidirectionalChat(stream grpc.BidiStreamingServer[ChatMessage, ChatMessage]) (err error) {
	span, ctx := observability.StartSpan(stream.Context(), "hello.bidirectional_chat")
	defer func() { observability.FinishSpan(span, err) }()

	sessionID := uuid.NewString()
	log := logger.FromContext(ctx).With(logger.String("chat_session", sessionID))
	log.Info("chat started", logger.String("context", callctx.ContextInfo(ctx)))

	session := streaming.NewChatSession(func(m streaming.Message) error {
		return stream.Send(&ChatMessage{Username: m.Username, Message: m.Text, IsError: m.IsError})
	}, s.cfg.ChatOptions...)

	for {
		in, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			log.Info("chat finished")
			return session.Complete()
		}
		if err != nil {
			log.Warn("chat stream failed", logger.Error(err))
			if st := session.Abort(); st != nil {
				return st.Err()
			}
			return err
		}

		st, sendErr := session.Handle(streaming.Message{Username: in.Username, Text: in.Message, IsError: in.IsError})
		if st != nil {
			log.Warn("chat ended with error", logger.String("reason", st.Message()), logger.Error(sendErr))
			return st.Err()
		}
		if sendErr != nil {
			return sendErr
		}
	}
}
