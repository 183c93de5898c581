package websocket

import (
	"context"
	"errors"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"avatarkit/handlers/chat"
	"avatarkit/protocol"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReplier struct {
	err error
}

func (f *fakeReplier) Reply(ctx context.Context, message string) (*protocol.ChatResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &protocol.ChatResponse{Messages: []protocol.ChatMessage{{
		Text:             "echo: " + message,
		FacialExpression: "smile",
		Animation:        "Talking_0",
	}}}, nil
}

func dial(t *testing.T, replier Replier) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(NewHandler(replier, nil))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) protocol.Envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	env, err := protocol.Unmarshal(data)
	require.NoError(t, err)
	return env
}

func TestWebSocket_Chat(t *testing.T) {
	conn := dial(t, &fakeReplier{})

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"chat","id":"42","payload":{"message":"hi"}}`)))
	env := readEnvelope(t, conn)

	assert.Equal(t, protocol.MsgMessages, env.Type)
	assert.Equal(t, "42", env.ID)
	resp, err := protocol.UnmarshalPayload[protocol.ChatResponse](env.Payload)
	require.NoError(t, err)
	require.Len(t, resp.Messages, 1)
	assert.Equal(t, "echo: hi", resp.Messages[0].Text)
}

func TestWebSocket_PingPong(t *testing.T) {
	conn := dial(t, &fakeReplier{})

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping","id":"p1"}`)))
	env := readEnvelope(t, conn)
	assert.Equal(t, protocol.MsgPong, env.Type)
	assert.Equal(t, "p1", env.ID)
}

func TestWebSocket_Errors(t *testing.T) {
	tests := []struct {
		name      string
		message   string
		wantError string
	}{
		{name: "not json", message: `hello`, wantError: "invalid message"},
		{name: "missing type", message: `{"payload":{}}`, wantError: "invalid message"},
		{name: "chat without payload", message: `{"type":"chat"}`, wantError: "invalid chat payload"},
		{name: "unknown type", message: `{"type":"dance"}`, wantError: "unsupported message type"},
	}

	conn := dial(t, &fakeReplier{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(tt.message)))
			env := readEnvelope(t, conn)
			require.Equal(t, protocol.MsgError, env.Type)

			body, err := protocol.UnmarshalPayload[protocol.ErrorResponse](env.Payload)
			require.NoError(t, err)
			assert.Equal(t, tt.wantError, body.Error)
		})
	}
}

func TestWebSocket_ReplyFailure(t *testing.T) {
	failure := fmt.Errorf("%w: %w", chat.ErrCompletion, errors.New("provider down"))
	conn := dial(t, &fakeReplier{err: failure})

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"chat","id":"7","payload":{"message":"hi"}}`)))
	env := readEnvelope(t, conn)

	assert.Equal(t, protocol.MsgError, env.Type)
	assert.Equal(t, "7", env.ID)
	body, err := protocol.UnmarshalPayload[protocol.ErrorResponse](env.Payload)
	require.NoError(t, err)
	assert.Equal(t, "LLM completion failed", body.Error)
	assert.Contains(t, body.Detail, "provider down")
}

func TestWebSocket_BinaryRejected(t *testing.T) {
	conn := dial(t, &fakeReplier{})

	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, []byte{1, 2, 3}))
	env := readEnvelope(t, conn)
	assert.Equal(t, protocol.MsgError, env.Type)
}
