package streaming

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"unicode/utf8"

	"google.golang.org/grpc/status"

	rpcerrors "github.com/rainbow-me/rpc-interceptors/grpc/errors"
)

const (
	// ServerUsername signs every message the session emits.
	ServerUsername = "Server"

	DefaultMaxMessageLength = 1000
	DefaultEndSentinel      = "end"

	EndAcknowledgement = "Received end command, chat is about to end"
	GoodbyeMessage     = "Chat finished, goodbye!"
	ConnectionError    = "Client connection error"
)

// Message is one chat line in either direction.
type Message struct {
	Username string
	Text     string
	IsError  bool
}

// SendFunc delivers a message to the peer.
type SendFunc func(Message) error

// ChatConfig tunes the chat rules.
type ChatConfig struct {
	MaxMessageLength int
	EndSentinel      string
}

// ChatOption configures a ChatSession.
type ChatOption func(*ChatConfig)

// WithMaxMessageLength sets the longest accepted message, in characters.
func WithMaxMessageLength(n int) ChatOption {
	return func(c *ChatConfig) {
		if n > 0 {
			c.MaxMessageLength = n
		}
	}
}

// WithEndSentinel sets the message text acknowledged as the client's intent to leave.
func WithEndSentinel(s string) ChatOption {
	return func(c *ChatConfig) {
		if s != "" {
			c.EndSentinel = s
		}
	}
}

const (
	chatOpen int32 = iota
	chatErrored
	chatFinished
)

// ChatSession applies the chat rules to a bidirectional stream. Terminal outcomes emit exactly one
// closing message; once the session is closed every further event is a no-op.
type ChatSession struct {
	cfg   ChatConfig
	send  SendFunc
	state atomic.Int32
	// mu serialises sends so a terminal message can never interleave with an echo.
	mu sync.Mutex
}

// NewChatSession returns an open session delivering replies through send.
func NewChatSession(send SendFunc, opts ...ChatOption) *ChatSession {
	cfg := ChatConfig{
		MaxMessageLength: DefaultMaxMessageLength,
		EndSentinel:      DefaultEndSentinel,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &ChatSession{cfg: cfg, send: send}
}

// Errored reports whether the session ended with a failure.
func (s *ChatSession) Errored() bool { return s.state.Load() == chatErrored }

// Closed reports whether the session has emitted its terminal message.
func (s *ChatSession) Closed() bool { return s.state.Load() != chatOpen }

// Handle processes one inbound message. A non-nil status means the session is over and the call
// must end with it. A non-nil error means a reply could not be delivered.
func (s *ChatSession) Handle(m Message) (*status.Status, error) {
	if s.Closed() {
		return nil, nil
	}

	if strings.TrimSpace(m.Username) == "" {
		st := rpcerrors.InvalidArgument("username", "Username cannot be empty")
		return st, s.fail(st)
	}
	if strings.TrimSpace(m.Text) == "" {
		return nil, s.reply(Message{Username: ServerUsername, Text: "Error: Message cannot be empty", IsError: true})
	}
	if utf8.RuneCountInString(m.Text) > s.cfg.MaxMessageLength {
		st := rpcerrors.InvalidArgument("message",
			fmt.Sprintf("Message is too long (max %d characters)", s.cfg.MaxMessageLength))
		return st, s.fail(st)
	}
	if m.IsError {
		st := rpcerrors.InvalidArgument("isError", "Client reported error in message")
		return st, s.fail(st)
	}

	if m.Text == s.cfg.EndSentinel {
		return nil, s.reply(Message{Username: ServerUsername, Text: EndAcknowledgement})
	}
	return nil, s.reply(Message{Username: ServerUsername, Text: "Echo: " + m.Text})
}

// Abort ends the session after an upstream failure. It tries to tell the peer and returns the status
// the call ends with, or nil when the session had already closed.
func (s *ChatSession) Abort() *status.Status {
	if !s.state.CompareAndSwap(chatOpen, chatErrored) {
		return nil
	}
	// The peer is likely gone; the send is best effort.
	_ = s.sendLocked(Message{Username: ServerUsername, Text: "Error: " + ConnectionError, IsError: true})
	return rpcerrors.Cancelled(ConnectionError)
}

// Complete ends the session when the peer half-closes, sending the goodbye message unless the session
// already closed.
func (s *ChatSession) Complete() error {
	if !s.state.CompareAndSwap(chatOpen, chatFinished) {
		return nil
	}
	return s.sendLocked(Message{Username: ServerUsername, Text: GoodbyeMessage})
}

func (s *ChatSession) fail(st *status.Status) error {
	if !s.state.CompareAndSwap(chatOpen, chatErrored) {
		return nil
	}
	return s.sendLocked(Message{Username: ServerUsername, Text: "Error: " + st.Message(), IsError: true})
}

// reply sends a non-terminal message, dropping it if the session closed concurrently.
func (s *ChatSession) reply(m Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Closed() {
		return nil
	}
	return s.send(m)
}

func (s *ChatSession) sendLocked(m Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.send(m)
}
