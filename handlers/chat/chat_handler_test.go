package chat

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"avatarkit/core"
	"avatarkit/lipsync"
	"avatarkit/protocol"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLLM struct {
	reply   string
	err     error
	missing bool

	mu       sync.Mutex
	contexts []core.LLMContext
}

func (f *fakeLLM) Name() string { return "fake-llm" }

func (f *fakeLLM) Validate() error {
	if f.missing {
		return core.ErrMissingCredentials
	}
	return nil
}

func (f *fakeLLM) Complete(ctx context.Context, llmContext core.LLMContext) (string, error) {
	f.mu.Lock()
	f.contexts = append(f.contexts, llmContext)
	f.mu.Unlock()
	return f.reply, f.err
}

type fakeTTS struct {
	format string
	err    error
	delay  time.Duration

	mu       sync.Mutex
	requests []core.SynthesisRequest

	active    int32
	maxActive int32
}

func (f *fakeTTS) Name() string { return "fake-tts" }

func (f *fakeTTS) Synthesize(ctx context.Context, req core.SynthesisRequest) (*core.SynthesisResult, error) {
	n := atomic.AddInt32(&f.active, 1)
	defer atomic.AddInt32(&f.active, -1)
	for {
		m := atomic.LoadInt32(&f.maxActive)
		if n <= m || atomic.CompareAndSwapInt32(&f.maxActive, m, n) {
			break
		}
	}

	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return nil, f.err
	}

	format := f.format
	if format == "" {
		format = "audio-16khz-32kbitrate-mono-mp3"
	}
	return &core.SynthesisResult{
		Audio:    []byte("audio:" + req.Text),
		Format:   format,
		MimeType: "audio/mpeg",
		Voice:    "es-ES-ElviraNeural",
		Visemes:  []lipsync.VisemeEvent{{ID: 0, Offset: 0}, {ID: 1, Offset: 0.1}},
		Duration: lipsync.Duration(0.5),
	}, nil
}

func writeAssets(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for _, name := range []string{"intro_0", "intro_1", "api_0", "api_1"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name+".wav"), []byte("RIFF"+name), 0o644))
		lip := fmt.Sprintf(`{"metadata":{"voice":"%s","duration":1.5},"mouthCues":[{"start":0,"end":1.5,"value":"X"}]}`, name)
		require.NoError(t, os.WriteFile(filepath.Join(dir, name+".json"), []byte(lip), 0o644))
	}
	return dir
}

const twoMessages = `{"messages":[
	{"text":"**Hello** there","facialExpression":"smile","animation":"Talking_0"},
	{"text":"How are you?","facialExpression":"surprised","animation":"Laughing"}
]}`

func TestReply_EmptyMessageServesIntro(t *testing.T) {
	llm := &fakeLLM{}
	h := NewChatHandler(llm, &fakeTTS{}, ChatConfig{AssetsDir: writeAssets(t)}, nil)

	resp, err := h.Reply(context.Background(), "   ")
	require.NoError(t, err)
	require.Len(t, resp.Messages, 2)

	first := resp.Messages[0]
	assert.Equal(t, "Hey dear... How was your day?", first.Text)
	assert.Equal(t, "smile", first.FacialExpression)
	assert.Equal(t, "Talking_1", first.Animation)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("RIFFintro_0")), first.Audio)
	assert.Equal(t, "audio/wav", first.AudioMimeType)
	require.NotNil(t, first.Lipsync)
	assert.Equal(t, "intro_0", first.Lipsync.Metadata.Voice)

	assert.Equal(t, "Crying", resp.Messages[1].Animation)
	assert.Empty(t, llm.contexts)
}

func TestReply_MissingCredentialsServesReminder(t *testing.T) {
	llm := &fakeLLM{missing: true}
	h := NewChatHandler(llm, &fakeTTS{}, ChatConfig{AssetsDir: writeAssets(t)}, nil)

	resp, err := h.Reply(context.Background(), "hi")
	require.NoError(t, err)
	require.Len(t, resp.Messages, 2)
	assert.Equal(t, "Please my dear, don't forget to add your API keys!", resp.Messages[0].Text)
	assert.Equal(t, "Angry", resp.Messages[0].Animation)
	assert.Equal(t, "Laughing", resp.Messages[1].Animation)
	assert.Empty(t, llm.contexts)
}

func TestReply_MissingAssets(t *testing.T) {
	h := NewChatHandler(&fakeLLM{}, &fakeTTS{}, ChatConfig{AssetsDir: t.TempDir()}, nil)
	_, err := h.Reply(context.Background(), "")
	require.Error(t, err)

	status, body := ErrorResponse(err)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "internal error", body.Error)
}

func TestReply_SynthesizesEveryMessage(t *testing.T) {
	llm := &fakeLLM{reply: twoMessages}
	tts := &fakeTTS{}
	h := NewChatHandler(llm, tts, ChatConfig{Voice: "en-US-JennyNeural", Style: "cheerful"}, nil)

	resp, err := h.Reply(context.Background(), "hello")
	require.NoError(t, err)
	require.Len(t, resp.Messages, 2)

	require.Len(t, llm.contexts, 1)
	sent := llm.contexts[0]
	assert.Equal(t, core.LLMResponseFormatJSON, sent.ResponseFormat)
	require.Len(t, sent.Messages, 2)
	assert.Equal(t, core.LLMMessageRoleSystem, sent.Messages[0].Role)
	assert.Equal(t, DefaultSystemPrompt, sent.Messages[0].Message)
	assert.Equal(t, "hello", sent.Messages[1].Message)

	first := resp.Messages[0]
	assert.Equal(t, "**Hello** there", first.Text)
	assert.Equal(t, "smile", first.FacialExpression)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("audio:Hello there")), first.Audio)
	assert.Equal(t, "audio/mpeg", first.AudioMimeType)
	require.NotNil(t, first.Lipsync)
	assert.Equal(t, 0.5, first.Lipsync.Metadata.Duration)
	assert.Equal(t, []lipsync.MouthCue{
		{Start: 0, End: 0.1, Value: lipsync.ShapeX},
		{Start: 0.1, End: 0.5, Value: lipsync.ShapeA},
	}, first.Lipsync.MouthCues)

	for _, req := range tts.requests {
		assert.Equal(t, "en-US-JennyNeural", req.Voice)
		assert.Equal(t, "cheerful", req.Style)
	}
}

func TestReply_ConvertsMuLawToWAV(t *testing.T) {
	h := NewChatHandler(&fakeLLM{reply: `[{"text":"hi"}]`}, &fakeTTS{format: "raw-8khz-8bit-mono-mulaw"}, ChatConfig{}, nil)

	resp, err := h.Reply(context.Background(), "hello")
	require.NoError(t, err)
	require.Len(t, resp.Messages, 1)
	assert.Equal(t, "audio/wav", resp.Messages[0].AudioMimeType)

	wav, err := base64.StdEncoding.DecodeString(resp.Messages[0].Audio)
	require.NoError(t, err)
	assert.Equal(t, "RIFF", string(wav[:4]))
	assert.Len(t, wav, 44+2*len("audio:hi"))
}

func TestReply_BoundsSynthesisConcurrency(t *testing.T) {
	raw := `[{"text":"one"},{"text":"two"},{"text":"three"}]`
	tts := &fakeTTS{delay: 20 * time.Millisecond}
	h := NewChatHandler(&fakeLLM{reply: raw}, tts, ChatConfig{SynthesisConcurrency: 1}, nil)

	resp, err := h.Reply(context.Background(), "count")
	require.NoError(t, err)
	require.Len(t, resp.Messages, 3)
	assert.Equal(t, int32(1), atomic.LoadInt32(&tts.maxActive))
	assert.Equal(t, "three", resp.Messages[2].Text)
}

func TestReply_LLMFailure(t *testing.T) {
	h := NewChatHandler(&fakeLLM{err: errors.New("rate limited")}, &fakeTTS{}, ChatConfig{}, nil)

	_, err := h.Reply(context.Background(), "hello")
	require.ErrorIs(t, err, ErrCompletion)

	status, body := ErrorResponse(err)
	assert.Equal(t, http.StatusBadGateway, status)
	assert.Equal(t, "LLM completion failed", body.Error)
	assert.Contains(t, body.Detail, "rate limited")
}

func TestReply_UnusableLLMOutput(t *testing.T) {
	h := NewChatHandler(&fakeLLM{reply: `{"messages":[]}`}, &fakeTTS{}, ChatConfig{}, nil)
	_, err := h.Reply(context.Background(), "hello")
	assert.ErrorIs(t, err, ErrCompletion)
	assert.ErrorIs(t, err, ErrEmptyReply)
}

func TestReply_SynthesisFailure(t *testing.T) {
	h := NewChatHandler(&fakeLLM{reply: twoMessages}, &fakeTTS{err: errors.New("quota")}, ChatConfig{}, nil)

	_, err := h.Reply(context.Background(), "hello")
	require.ErrorIs(t, err, ErrSynthesis)

	status, body := ErrorResponse(err)
	assert.Equal(t, http.StatusBadGateway, status)
	assert.Equal(t, "text-to-speech failed", body.Error)
}

func TestReply_WritesArtifacts(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	h := NewChatHandler(&fakeLLM{reply: twoMessages}, &fakeTTS{}, ChatConfig{ArtifactsDir: dir}, nil)

	_, err := h.Reply(context.Background(), "hello")
	require.NoError(t, err)

	raw, err := os.ReadFile(filepath.Join(dir, "message_1.json"))
	require.NoError(t, err)
	var data lipsync.Data
	require.NoError(t, sonic.Unmarshal(raw, &data))
	assert.Equal(t, 0.5, data.Metadata.Duration)
	assert.Contains(t, string(raw), "\n  ")

	audioBytes, err := os.ReadFile(filepath.Join(dir, "message_0.mp3"))
	require.NoError(t, err)
	assert.Equal(t, "audio:Hello there", string(audioBytes))
}

func TestUpdateConfig_AppliesDefaults(t *testing.T) {
	h := NewChatHandler(&fakeLLM{}, &fakeTTS{}, ChatConfig{}, nil)
	assert.Equal(t, DefaultConfig(), h.Config())

	h.UpdateConfig(ChatConfig{SystemPrompt: "be brief", MaxMessages: 1})
	cfg := h.Config()
	assert.Equal(t, "be brief", cfg.SystemPrompt)
	assert.Equal(t, 1, cfg.MaxMessages)
	assert.Equal(t, 3, cfg.SynthesisConcurrency)
}

func TestServeHTTP(t *testing.T) {
	h := NewChatHandler(&fakeLLM{reply: twoMessages}, &fakeTTS{}, ChatConfig{}, nil)

	t.Run("ok", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"message":"hello"}`)))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		var resp protocol.ChatResponse
		require.NoError(t, sonic.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Len(t, resp.Messages, 2)
	})

	t.Run("malformed body", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"message":`)))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "invalid request")
	})

	t.Run("wrong method", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/chat", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})

	t.Run("upstream failure", func(t *testing.T) {
		failing := NewChatHandler(&fakeLLM{err: errors.New("down")}, &fakeTTS{}, ChatConfig{}, nil)
		rec := httptest.NewRecorder()
		failing.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"message":"hello"}`)))

		assert.Equal(t, http.StatusBadGateway, rec.Code)
		var body protocol.ErrorResponse
		require.NoError(t, sonic.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "LLM completion failed", body.Error)
	})
}
