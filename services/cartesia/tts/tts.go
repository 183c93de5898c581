package cartesia

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"avatarkit/core"
	"avatarkit/lipsync"
	"avatarkit/utils/audio"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	defaultCartesiaURL        = "wss://api.cartesia.ai/tts/websocket"
	defaultCartesiaModelID    = "sonic-2"
	defaultCartesiaVoiceID    = "a0e99841-438c-4a64-b679-ae501e7d6091" // Helpful Woman
	defaultCartesiaAPIVersion = "2024-11-13"
	defaultCartesiaLanguage   = "es"

	// DefaultOutputFormat is raw 16-bit PCM at 24kHz; the chat handler wraps it in WAV.
	DefaultOutputFormat = "pcm_s16le_24000"
)

// CartesiaTTSConfig holds configuration for the Cartesia TTS service.
type CartesiaTTSConfig struct {
	APIKey       string `json:"api_key"`
	BaseURL      string `json:"base_url"`
	ModelID      string `json:"model_id"`
	VoiceID      string `json:"voice_id"`
	Language     string `json:"language"`
	APIVersion   string `json:"api_version"`
	OutputFormat string `json:"output_format"` // <encoding>_<sample rate>, e.g. pcm_s16le_24000.

	TimeoutSeconds int `json:"timeout_seconds"`
}

// CartesiaTTS implements core.TTSService over Cartesia's websocket API.
// Every synthesis uses its own connection and context_id; viseme events are
// derived from the word timestamps Cartesia reports alongside the audio.
type CartesiaTTS struct {
	config CartesiaTTSConfig
	logger *core.Logger
}

// ── WebSocket protocol messages ───────────────────────────────────────────────

// cartesiaTTSRequest is the single generation request sent per synthesis.
type cartesiaTTSRequest struct {
	ModelID       string            `json:"model_id"`
	Transcript    string            `json:"transcript"`
	Voice         cartesiaVoice     `json:"voice"`
	OutputFmt     cartesiaOutputFmt `json:"output_format"`
	ContextID     string            `json:"context_id"`
	Continue      bool              `json:"continue"`
	Language      string            `json:"language,omitempty"`
	AddTimestamps bool              `json:"add_timestamps"`
}

type cartesiaVoice struct {
	Mode string `json:"mode"`
	ID   string `json:"id"`
}

type cartesiaOutputFmt struct {
	Container  string `json:"container"`
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sample_rate"`
}

// cartesiaResponse is a text (JSON) frame from Cartesia. Audio arrives either
// base64 encoded in "chunk" frames or as binary frames.
type cartesiaResponse struct {
	Type           string                  `json:"type"`
	ContextID      string                  `json:"context_id"`
	StatusCode     int                     `json:"status_code"`
	Done           bool                    `json:"done"`
	Error          string                  `json:"error,omitempty"`
	Data           string                  `json:"data,omitempty"`
	WordTimestamps *cartesiaWordTimestamps `json:"word_timestamps,omitempty"`
}

// cartesiaWordTimestamps holds parallel arrays; times are seconds from the
// start of the context's audio.
type cartesiaWordTimestamps struct {
	Words []string  `json:"words"`
	Start []float64 `json:"start"`
	End   []float64 `json:"end"`
}

// ── Constructor ───────────────────────────────────────────────────────────────

// NewCartesiaTTS creates a new Cartesia TTS service with sensible defaults.
func NewCartesiaTTS(config CartesiaTTSConfig, logger *core.Logger) *CartesiaTTS {
	if config.BaseURL == "" {
		config.BaseURL = defaultCartesiaURL
	}
	if config.ModelID == "" {
		config.ModelID = defaultCartesiaModelID
	}
	if config.VoiceID == "" {
		config.VoiceID = defaultCartesiaVoiceID
	}
	if config.APIVersion == "" {
		config.APIVersion = defaultCartesiaAPIVersion
	}
	if config.Language == "" {
		config.Language = defaultCartesiaLanguage
	}
	if config.OutputFormat == "" {
		config.OutputFormat = DefaultOutputFormat
	}
	if config.TimeoutSeconds <= 0 {
		config.TimeoutSeconds = 30
	}
	if logger == nil {
		logger = core.GetLogger()
	}
	return &CartesiaTTS{
		config: config,
		logger: logger.With(map[string]interface{}{"service": "cartesia_tts"}),
	}
}

func (c *CartesiaTTS) Name() string {
	return "cartesia"
}

// Voice reports the configured voice id.
func (c *CartesiaTTS) Voice() string {
	return c.config.VoiceID
}

func (c *CartesiaTTS) Validate() error {
	if c.config.APIKey == "" {
		return fmt.Errorf("cartesia tts: %w", core.ErrMissingCredentials)
	}
	return nil
}

// ── TTSService ────────────────────────────────────────────────────────────────

// Synthesize sends the whole text as one context and collects audio and word
// timestamps until Cartesia reports the context done. The request's Style is
// ignored.
func (c *CartesiaTTS) Synthesize(ctx context.Context, req core.SynthesisRequest) (*core.SynthesisResult, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	format, outFmt, err := c.outputFormat()
	if err != nil {
		return nil, err
	}
	if req.Text == "" {
		return nil, errors.New("cartesia tts: text cannot be empty")
	}

	voiceID := req.Voice
	if voiceID == "" {
		voiceID = c.config.VoiceID
	}

	ctx, cancel := context.WithTimeout(ctx, time.Duration(c.config.TimeoutSeconds)*time.Second)
	defer cancel()

	conn, err := c.establishConnection(ctx)
	if err != nil {
		return nil, fmt.Errorf("cartesia tts: %w", c.wrapCanceled(ctx, err))
	}
	defer c.closeConnection(conn)

	stop := context.AfterFunc(ctx, func() {
		conn.SetReadDeadline(time.Now())
	})
	defer stop()

	contextID := newContextID()
	request := cartesiaTTSRequest{
		ModelID:       c.config.ModelID,
		Transcript:    req.Text,
		Voice:         cartesiaVoice{Mode: "id", ID: voiceID},
		OutputFmt:     outFmt,
		ContextID:     contextID,
		Continue:      false,
		Language:      c.config.Language,
		AddTimestamps: true,
	}
	if err := c.sendJSON(conn, request); err != nil {
		return nil, fmt.Errorf("cartesia tts: send: %w", c.wrapCanceled(ctx, err))
	}

	result := &core.SynthesisResult{
		Format:   format.Name,
		MimeType: format.MimeType(),
		Voice:    voiceID,
	}
	if err := c.receive(ctx, conn, contextID, result); err != nil {
		return nil, err
	}
	result.Duration = format.Duration(result.Audio)
	return result, nil
}

func (c *CartesiaTTS) receive(ctx context.Context, conn *websocket.Conn, contextID string, result *core.SynthesisResult) error {
	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("cartesia tts: read: %w", c.wrapCanceled(ctx, err))
		}

		if msgType == websocket.BinaryMessage {
			result.Audio = append(result.Audio, msg...)
			continue
		}

		var resp cartesiaResponse
		if err := sonic.Unmarshal(msg, &resp); err != nil {
			c.logger.Warn("cartesia tts: failed to parse message", "error", err)
			continue
		}
		if resp.ContextID != "" && resp.ContextID != contextID {
			continue
		}

		switch resp.Type {
		case "chunk":
			if resp.Data != "" {
				audioData, err := base64.StdEncoding.DecodeString(resp.Data)
				if err != nil {
					return fmt.Errorf("cartesia tts: decode audio: %w", err)
				}
				result.Audio = append(result.Audio, audioData...)
			}
		case "timestamps":
			result.Visemes = append(result.Visemes, wordVisemes(resp.WordTimestamps)...)
		case "error":
			return fmt.Errorf("cartesia tts: %s (status %d)", resp.Error, resp.StatusCode)
		}

		if resp.Done || resp.Type == "done" {
			if len(result.Audio) == 0 {
				return errors.New("cartesia tts: no audio received")
			}
			return nil
		}
	}
}

// wordVisemes spells every timestamped word into viseme events.
func wordVisemes(ts *cartesiaWordTimestamps) []lipsync.VisemeEvent {
	if ts == nil {
		return nil
	}
	n := min(len(ts.Words), len(ts.Start), len(ts.End))

	var events []lipsync.VisemeEvent
	for i := 0; i < n; i++ {
		events = append(events, lipsync.WordVisemes(ts.Words[i], ts.Start[i], ts.End[i])...)
		// Rest between words unless the next one starts right away.
		if i+1 == n || ts.Start[i+1]-ts.End[i] >= lipsync.MinSegmentLength {
			events = append(events, lipsync.VisemeEvent{ID: 0, Offset: ts.End[i]})
		}
	}
	return events
}

// outputFormat splits the configured format name into Cartesia's raw
// container encoding and sample rate.
func (c *CartesiaTTS) outputFormat() (audio.OutputFormat, cartesiaOutputFmt, error) {
	format, ok := audio.LookupFormat(c.config.OutputFormat)
	idx := strings.LastIndex(c.config.OutputFormat, "_")
	if !ok || idx <= 0 || !strings.HasPrefix(c.config.OutputFormat, "pcm_") {
		return audio.OutputFormat{}, cartesiaOutputFmt{}, fmt.Errorf("cartesia tts: unsupported output format %q", c.config.OutputFormat)
	}
	return format, cartesiaOutputFmt{
		Container:  "raw",
		Encoding:   c.config.OutputFormat[:idx],
		SampleRate: format.SampleRate,
	}, nil
}

// newContextID generates a random UUID to use as a Cartesia context_id.
func newContextID() string {
	return uuid.New().String()
}

// ── WebSocket connection management ──────────────────────────────────────────

func (c *CartesiaTTS) establishConnection(ctx context.Context) (*websocket.Conn, error) {
	const maxRetries = 3
	const baseDelay = 500 * time.Millisecond

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			delay := baseDelay * time.Duration(attempt)
			c.logger.Infof("Cartesia TTS: retrying connection (attempt %d/%d) in %v after: %v",
				attempt+1, maxRetries, delay, lastErr)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}
		conn, err := c.dialConnection(ctx)
		if err != nil {
			lastErr = err
			continue
		}
		return conn, nil
	}
	return nil, fmt.Errorf("failed to connect after %d attempts: %w", maxRetries, lastErr)
}

func (c *CartesiaTTS) dialConnection(ctx context.Context) (*websocket.Conn, error) {
	query := url.Values{}
	query.Set("api_key", c.config.APIKey)
	query.Set("cartesia_version", c.config.APIVersion)

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, c.config.BaseURL+"?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// ── Utilities ─────────────────────────────────────────────────────────────────

func (c *CartesiaTTS) sendJSON(conn *websocket.Conn, msg interface{}) error {
	data, err := sonic.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, data)
}

func (c *CartesiaTTS) closeConnection(conn *websocket.Conn) {
	conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
	conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	conn.Close()
}

func (c *CartesiaTTS) wrapCanceled(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("%w: %w", core.ErrSynthesisCanceled, ctx.Err())
	}
	return err
}
