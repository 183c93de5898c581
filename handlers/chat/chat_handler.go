package chat

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"avatarkit/core"
	"avatarkit/lipsync"
	"avatarkit/metrics"
	"avatarkit/protocol"
	"avatarkit/utils/audio"
	"avatarkit/utils/text"

	"github.com/bytedance/sonic"
	"golang.org/x/sync/errgroup"
)

const maxRequestBody = 64 << 10

var (
	// ErrCompletion marks failures to get a usable reply from the LLM.
	ErrCompletion = errors.New("LLM completion failed")
	// ErrSynthesis marks failures to synthesize one of the reply's messages.
	ErrSynthesis = errors.New("text-to-speech failed")
	// ErrBadRequest marks request bodies that could not be decoded.
	ErrBadRequest = errors.New("invalid request")
)

// ChatHandler answers a user message with avatar messages carrying audio and
// lip-sync. It is safe for concurrent use.
type ChatHandler struct {
	llm    core.LLMService
	tts    core.TTSService
	config atomic.Pointer[ChatConfig]
	logger *core.Logger
}

// NewChatHandler creates a chat handler.
// Use DefaultConfig() to get a config with sensible defaults and override only what you need.
func NewChatHandler(llm core.LLMService, tts core.TTSService, config ChatConfig, logger *core.Logger) *ChatHandler {
	if logger == nil {
		logger = core.GetLogger()
	}
	h := &ChatHandler{
		llm:    llm,
		tts:    tts,
		logger: logger.With(map[string]interface{}{"handler": "chat"}),
	}
	h.UpdateConfig(config)
	return h
}

// Config returns the configuration currently in effect.
func (h *ChatHandler) Config() ChatConfig {
	return *h.config.Load()
}

// UpdateConfig swaps the configuration; replies already in flight keep the old one.
func (h *ChatHandler) UpdateConfig(config ChatConfig) {
	config = config.withDefaults()
	h.config.Store(&config)
}

// missingCredentials reports whether the LLM or TTS service says it cannot
// authenticate.
func (h *ChatHandler) missingCredentials() bool {
	for _, svc := range []interface{}{h.llm, h.tts} {
		v, ok := svc.(core.Validator)
		if !ok {
			continue
		}
		if err := v.Validate(); errors.Is(err, core.ErrMissingCredentials) {
			return true
		}
	}
	return false
}

// Reply produces the avatar's answer to message. An empty message gets the
// prerecorded intro and unconfigured credentials get the prerecorded reminder.
func (h *ChatHandler) Reply(ctx context.Context, message string) (*protocol.ChatResponse, error) {
	cfg := h.Config()
	logger := core.LoggerFromContext(ctx)

	message = strings.TrimSpace(message)
	switch {
	case message == "":
		return h.canned(cfg, reasonIntro)
	case h.missingCredentials():
		logger.Warn("chat: credentials missing, serving canned reply")
		return h.canned(cfg, reasonAPIKeys)
	}

	ctx, cancel := context.WithTimeout(ctx, time.Duration(cfg.TimeoutSeconds)*time.Second)
	defer cancel()

	llmContext := core.LLMContext{ResponseFormat: core.LLMResponseFormatJSON}
	llmContext.AddSystemMessage(cfg.SystemPrompt)
	llmContext.AddUserMessage(message)

	start := time.Now()
	raw, err := h.llm.Complete(ctx, llmContext)
	metrics.LLMLatency.WithLabelValues(h.llm.Name()).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCompletion, err)
	}

	replies, err := parseReply(raw, cfg.MaxMessages)
	if err != nil {
		logger.Warn("chat: unusable LLM reply", "error", err, "reply", raw)
		return nil, fmt.Errorf("%w: %w", ErrCompletion, err)
	}

	messages := make([]protocol.ChatMessage, len(replies))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.SynthesisConcurrency)
	for i, reply := range replies {
		g.Go(func() error {
			msg, err := h.speak(gctx, cfg, reply)
			if err != nil {
				return fmt.Errorf("%w: message %d: %w", ErrSynthesis, i, err)
			}
			messages[i] = msg
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if cfg.ArtifactsDir != "" {
		h.writeArtifacts(cfg.ArtifactsDir, messages)
	}
	return &protocol.ChatResponse{Messages: messages}, nil
}

// speak synthesizes one reply message and attaches its audio and lip-sync.
func (h *ChatHandler) speak(ctx context.Context, cfg ChatConfig, reply llmMessage) (protocol.ChatMessage, error) {
	msg := protocol.ChatMessage{
		Text:             reply.Text,
		FacialExpression: reply.FacialExpression,
		Animation:        reply.Animation,
	}

	spoken := text.NormalizeForTTS(reply.Text)
	if spoken == "" {
		data := lipsync.Build(cfg.Voice, nil, nil)
		msg.Lipsync = &data
		return msg, nil
	}

	start := time.Now()
	result, err := h.tts.Synthesize(ctx, core.SynthesisRequest{
		Text:  spoken,
		Voice: cfg.Voice,
		Style: cfg.Style,
	})
	metrics.SynthesisLatency.WithLabelValues(h.tts.Name()).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.SynthesisErrors.WithLabelValues(h.tts.Name()).Inc()
		return msg, err
	}

	playable, mimeType := result.Audio, result.MimeType
	if format, ok := audio.LookupFormat(result.Format); ok && len(result.Audio) > 0 {
		playable, mimeType, err = audio.ToBrowserPlayable(format.Chunk(result.Audio))
		if err != nil {
			return msg, fmt.Errorf("convert audio: %w", err)
		}
	}

	data := lipsync.Build(result.Voice, result.Visemes, result.Duration)
	metrics.MouthCues.Observe(float64(len(data.MouthCues)))

	msg.Audio = base64.StdEncoding.EncodeToString(playable)
	msg.AudioMimeType = mimeType
	msg.Lipsync = &data
	return msg, nil
}

func (h *ChatHandler) canned(cfg ChatConfig, reason cannedReason) (*protocol.ChatResponse, error) {
	messages, err := loadCanned(cfg.AssetsDir, reason)
	if err != nil {
		return nil, err
	}
	metrics.CannedReplies.WithLabelValues(string(reason)).Inc()
	return &protocol.ChatResponse{Messages: messages}, nil
}

// writeArtifacts stores each message's lip-sync and audio as
// message_<i>.json and message_<i>.<ext>. Failures are logged only.
func (h *ChatHandler) writeArtifacts(dir string, messages []protocol.ChatMessage) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		h.logger.Warn("chat: cannot create artifacts dir", "dir", dir, "error", err)
		return
	}
	for i, msg := range messages {
		base := filepath.Join(dir, fmt.Sprintf("message_%d", i))
		if msg.Lipsync != nil {
			data, err := sonic.ConfigStd.MarshalIndent(msg.Lipsync, "", "  ")
			if err == nil {
				err = os.WriteFile(base+".json", data, 0o644)
			}
			if err != nil {
				h.logger.Warn("chat: write lipsync artifact", "path", base+".json", "error", err)
			}
		}
		if msg.Audio == "" {
			continue
		}
		audioBytes, err := base64.StdEncoding.DecodeString(msg.Audio)
		if err == nil {
			err = os.WriteFile(base+audioExtension(msg.AudioMimeType), audioBytes, 0o644)
		}
		if err != nil {
			h.logger.Warn("chat: write audio artifact", "path", base, "error", err)
		}
	}
}

func audioExtension(mimeType string) string {
	if mimeType == "audio/wav" {
		return ".wav"
	}
	return ".mp3"
}

// ErrorResponse maps a Reply error to an HTTP status and a client payload.
func ErrorResponse(err error) (int, protocol.ErrorResponse) {
	switch {
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, protocol.ErrorResponse{Error: ErrBadRequest.Error(), Detail: err.Error()}
	case errors.Is(err, ErrCompletion):
		return http.StatusBadGateway, protocol.ErrorResponse{Error: ErrCompletion.Error(), Detail: err.Error()}
	case errors.Is(err, ErrSynthesis):
		return http.StatusBadGateway, protocol.ErrorResponse{Error: ErrSynthesis.Error(), Detail: err.Error()}
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, protocol.ErrorResponse{Error: "reply timed out"}
	default:
		return http.StatusInternalServerError, protocol.ErrorResponse{Error: "internal error"}
	}
}

// ServeHTTP handles POST /chat.
func (h *ChatHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, http.StatusMethodNotAllowed, protocol.ErrorResponse{Error: "method not allowed"})
		return
	}

	req, err := decodeRequest(r.Body)
	if err != nil {
		status, body := ErrorResponse(err)
		writeJSON(w, status, body)
		return
	}

	resp, err := h.Reply(r.Context(), req.Message)
	if err != nil {
		core.LoggerFromContext(r.Context()).Error("chat: reply failed", "error", err)
		status, body := ErrorResponse(err)
		writeJSON(w, status, body)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func decodeRequest(body io.Reader) (protocol.ChatRequest, error) {
	var req protocol.ChatRequest
	data, err := io.ReadAll(io.LimitReader(body, maxRequestBody))
	if err != nil {
		return req, fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	if err := sonic.Unmarshal(data, &req); err != nil {
		return req, fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	return req, nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	data, err := sonic.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		data = []byte(`{"error":"internal error"}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}
