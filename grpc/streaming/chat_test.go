package streaming_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"

	"github.com/rainbow-me/rpc-interceptors/grpc/streaming"
)

type recorder struct {
	sent []streaming.Message
	err  error
}

func (r *recorder) send(m streaming.Message) error {
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, m)
	return nil
}

func server(text string, isErr bool) streaming.Message {
	return streaming.Message{Username: streaming.ServerUsername, Text: text, IsError: isErr}
}

func TestChatSession_Handle(t *testing.T) {
	tests := []struct {
		name        string
		in          streaming.Message
		wantCode    codes.Code
		wantReply   streaming.Message
		wantErrored bool
	}{
		{
			name:      "echo",
			in:        streaming.Message{Username: "alice", Text: "hi"},
			wantReply: server("Echo: hi", false),
		},
		{
			name:      "end sentinel",
			in:        streaming.Message{Username: "alice", Text: "end"},
			wantReply: server(streaming.EndAcknowledgement, false),
		},
		{
			name:      "empty message stays open",
			in:        streaming.Message{Username: "alice", Text: "  "},
			wantReply: server("Error: Message cannot be empty", true),
		},
		{
			name:        "empty username",
			in:          streaming.Message{Username: "", Text: "hi"},
			wantCode:    codes.InvalidArgument,
			wantReply:   server("Error: Username cannot be empty", true),
			wantErrored: true,
		},
		{
			name:        "message too long",
			in:          streaming.Message{Username: "alice", Text: strings.Repeat("x", 1001)},
			wantCode:    codes.InvalidArgument,
			wantReply:   server("Error: Message is too long (max 1000 characters)", true),
			wantErrored: true,
		},
		{
			name:        "client error flag",
			in:          streaming.Message{Username: "alice", Text: "oops", IsError: true},
			wantCode:    codes.InvalidArgument,
			wantReply:   server("Error: Client reported error in message", true),
			wantErrored: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			s := streaming.NewChatSession(rec.send)

			st, err := s.Handle(tt.in)
			require.NoError(t, err)
			if tt.wantCode == codes.OK {
				assert.Nil(t, st)
			} else {
				require.NotNil(t, st)
				assert.Equal(t, tt.wantCode, st.Code())
			}
			assert.Equal(t, []streaming.Message{tt.wantReply}, rec.sent)
			assert.Equal(t, tt.wantErrored, s.Errored())
		})
	}
}

func TestChatSession_MaxLengthIsInclusive(t *testing.T) {
	rec := &recorder{}
	s := streaming.NewChatSession(rec.send, streaming.WithMaxMessageLength(3))

	st, err := s.Handle(streaming.Message{Username: "a", Text: "äöü"})
	require.NoError(t, err)
	assert.Nil(t, st)
	assert.Equal(t, []streaming.Message{server("Echo: äöü", false)}, rec.sent)
}

func TestChatSession_ExactlyOneTerminalReply(t *testing.T) {
	rec := &recorder{}
	s := streaming.NewChatSession(rec.send)

	st, err := s.Handle(streaming.Message{Username: "alice", Text: "bad", IsError: true})
	require.NoError(t, err)
	require.NotNil(t, st)

	st, err = s.Handle(streaming.Message{Username: "alice", Text: "ignored"})
	require.NoError(t, err)
	assert.Nil(t, st)
	assert.Nil(t, s.Abort())
	require.NoError(t, s.Complete())

	assert.Equal(t, []streaming.Message{server("Error: Client reported error in message", true)}, rec.sent)
}

func TestChatSession_Complete(t *testing.T) {
	rec := &recorder{}
	s := streaming.NewChatSession(rec.send, streaming.WithEndSentinel("bye"))

	_, err := s.Handle(streaming.Message{Username: "alice", Text: "bye"})
	require.NoError(t, err)
	require.NoError(t, s.Complete())
	require.NoError(t, s.Complete())

	assert.Equal(t, []streaming.Message{
		server(streaming.EndAcknowledgement, false),
		server(streaming.GoodbyeMessage, false),
	}, rec.sent)
	assert.True(t, s.Closed())
	assert.False(t, s.Errored())
}

func TestChatSession_Abort(t *testing.T) {
	rec := &recorder{}
	s := streaming.NewChatSession(rec.send)

	st := s.Abort()
	require.NotNil(t, st)
	assert.Equal(t, codes.Canceled, st.Code())
	assert.True(t, s.Errored())
	assert.Equal(t, []streaming.Message{server("Error: "+streaming.ConnectionError, true)}, rec.sent)

	require.NoError(t, s.Complete())
	assert.Len(t, rec.sent, 1)
}

func TestChatSession_SendFailure(t *testing.T) {
	sendErr := errors.New("stream broken")
	rec := &recorder{err: sendErr}
	s := streaming.NewChatSession(rec.send)

	st, err := s.Handle(streaming.Message{Username: "alice", Text: "hi"})
	assert.Nil(t, st)
	assert.ErrorIs(t, err, sendErr)
}
