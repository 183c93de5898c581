package server

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"avatarkit/core"
	"avatarkit/handlers/chat"
	"avatarkit/protocol"

	"github.com/bytedance/sonic"
	gorillaws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubLLM struct{}

func (stubLLM) Name() string { return "stub" }

func (stubLLM) Complete(ctx context.Context, llmContext core.LLMContext) (string, error) {
	return `[{"text":"Hi!","facialExpression":"smile","animation":"Talking_2"}]`, nil
}

type stubTTS struct{}

func (stubTTS) Name() string { return "stub" }

func (stubTTS) Synthesize(ctx context.Context, req core.SynthesisRequest) (*core.SynthesisResult, error) {
	return &core.SynthesisResult{
		Audio:    []byte{0xFF, 0xF3},
		Format:   "audio-16khz-32kbitrate-mono-mp3",
		MimeType: "audio/mpeg",
		Voice:    "es-ES-ElviraNeural",
	}, nil
}

func testServer(t *testing.T, cfg Config) *httptest.Server {
	t.Helper()
	h := chat.NewChatHandler(stubLLM{}, stubTTS{}, chat.DefaultConfig(), nil)
	srv := httptest.NewServer(New(cfg, h, nil).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func TestRoot(t *testing.T) {
	srv := testServer(t, DefaultConfig())

	resp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Hello World!", string(body))
	assert.NotEmpty(t, resp.Header.Get("X-Request-Id"))
}

func TestHealth(t *testing.T) {
	srv := testServer(t, DefaultConfig())

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	var health HealthResponse
	require.NoError(t, sonic.Unmarshal(body, &health))
	assert.Equal(t, "ok", health.Status)
}

func TestChat(t *testing.T) {
	srv := testServer(t, DefaultConfig())

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/chat", strings.NewReader(`{"message":"hello"}`))
	req.Header.Set("X-Request-Id", "abc")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "abc", resp.Header.Get("X-Request-Id"))
	var chatResp protocol.ChatResponse
	require.NoError(t, sonic.Unmarshal(body, &chatResp))
	require.Len(t, chatResp.Messages, 1)
	assert.Equal(t, "Talking_2", chatResp.Messages[0].Animation)
	assert.Equal(t, "audio/mpeg", chatResp.Messages[0].AudioMimeType)
}

func TestChat_WrongMethod(t *testing.T) {
	srv := testServer(t, DefaultConfig())

	resp, err := http.Get(srv.URL + "/chat")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestCORS(t *testing.T) {
	t.Run("preflight", func(t *testing.T) {
		srv := testServer(t, DefaultConfig())
		req, _ := http.NewRequest(http.MethodOptions, srv.URL+"/chat", nil)
		req.Header.Set("Origin", "http://localhost:5173")
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()

		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
		assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	})

	t.Run("restricted origin", func(t *testing.T) {
		srv := testServer(t, Config{CORSOrigin: "http://localhost:5173"})

		for origin, want := range map[string]string{
			"http://localhost:5173": "http://localhost:5173",
			"http://evil.example":   "",
		} {
			req, _ := http.NewRequest(http.MethodGet, srv.URL+"/", nil)
			req.Header.Set("Origin", origin)
			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			resp.Body.Close()
			assert.Equal(t, want, resp.Header.Get("Access-Control-Allow-Origin"), origin)
		}
	})
}

func TestMetricsEndpoint(t *testing.T) {
	srv := testServer(t, DefaultConfig())

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	assert.Contains(t, string(body), `avatarkit_requests_total{endpoint="GET /healthz",method="GET",status="200"}`)
}

func TestWebSocketThroughMiddleware(t *testing.T) {
	srv := testServer(t, DefaultConfig())

	conn, _, err := gorillaws.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(gorillaws.TextMessage, []byte(`{"type":"chat","id":"1","payload":{"message":"hey"}}`)))
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	env, err := protocol.Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, protocol.MsgMessages, env.Type)
}
