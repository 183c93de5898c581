package elevenlabs

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"avatarkit/core"
	"avatarkit/utils/audio"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
)

// DefaultOutputFormat is the stream-input format used unless configured otherwise.
const DefaultOutputFormat = "mp3_44100_128"

// ElevenLabsTTSConfig holds configuration for the ElevenLabs TTS service
type ElevenLabsTTSConfig struct {
	APIKey       string `json:"api_key"`
	BaseURL      string `json:"base_url"`
	VoiceID      string `json:"voice_id"`
	ModelID      string `json:"model_id"`
	OutputFormat string `json:"output_format"`

	// Voice settings
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`

	TimeoutSeconds int `json:"timeout_seconds"`
}

// ElevenLabsTTS implements core.TTSService over the ElevenLabs stream-input
// websocket, deriving viseme events from the character alignment.
type ElevenLabsTTS struct {
	config ElevenLabsTTSConfig
	logger *core.Logger
}

// Client messages
type (
	// BOS (Beginning of Stream) - sent once on connect
	elBOSMessage struct {
		Text             string          `json:"text"`
		VoiceSettings    elVoiceSettings `json:"voice_settings"`
		GenerationConfig elGenConfig     `json:"generation_config"`
	}

	elVoiceSettings struct {
		Stability       float64 `json:"stability"`
		SimilarityBoost float64 `json:"similarity_boost"`
	}

	elGenConfig struct {
		ChunkLengthSchedule []int `json:"chunk_length_schedule"`
	}

	// Text chunk message
	elTextMessage struct {
		Text                 string `json:"text"`
		TryTriggerGeneration bool   `json:"try_trigger_generation,omitempty"`
	}
)

// Server messages
type (
	// Audio response from ElevenLabs (base64-encoded audio)
	elAudioMessage struct {
		Audio               string           `json:"audio"`
		IsFinal             bool             `json:"isFinal"`
		NormalizedAlignment *elAlignmentData `json:"normalizedAlignment,omitempty"`
		Alignment           *elAlignmentData `json:"alignment,omitempty"`

		Error   string `json:"error,omitempty"`
		Code    int    `json:"code,omitempty"`
		Message string `json:"message,omitempty"`
	}

	elAlignmentData struct {
		CharStartTimesMs []int    `json:"charStartTimesMs"`
		CharDurationsMs  []int    `json:"charDurationsMs"`
		Chars            []string `json:"chars"`
	}
)

// NewElevenLabsTTS creates a new ElevenLabs TTS service with the provided config
func NewElevenLabsTTS(config ElevenLabsTTSConfig, logger *core.Logger) *ElevenLabsTTS {
	if config.BaseURL == "" {
		config.BaseURL = "wss://api.elevenlabs.io/v1/text-to-speech"
	}
	if config.VoiceID == "" {
		config.VoiceID = "21m00Tcm4TlvDq8ikWAM" // Default: Rachel
	}
	if config.ModelID == "" {
		config.ModelID = "eleven_turbo_v2_5"
	}
	if config.OutputFormat == "" {
		config.OutputFormat = DefaultOutputFormat
	}
	if config.Stability == 0 {
		config.Stability = 0.5
	}
	if config.SimilarityBoost == 0 {
		config.SimilarityBoost = 0.75
	}
	if config.TimeoutSeconds <= 0 {
		config.TimeoutSeconds = 30
	}

	if logger == nil {
		logger = core.GetLogger()
	}
	return &ElevenLabsTTS{
		config: config,
		logger: logger.With(map[string]interface{}{"service": "elevenlabs_tts"}),
	}
}

func (e *ElevenLabsTTS) Name() string {
	return "elevenlabs"
}

// Voice reports the configured voice id.
func (e *ElevenLabsTTS) Voice() string {
	return e.config.VoiceID
}

func (e *ElevenLabsTTS) Validate() error {
	if e.config.APIKey == "" {
		return fmt.Errorf("elevenlabs tts: %w", core.ErrMissingCredentials)
	}
	return nil
}

// Synthesize opens a stream-input session, sends the whole text and collects
// audio until ElevenLabs reports the final chunk. The request's Style is ignored.
func (e *ElevenLabsTTS) Synthesize(ctx context.Context, req core.SynthesisRequest) (*core.SynthesisResult, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	format, ok := audio.LookupFormat(e.config.OutputFormat)
	if !ok {
		return nil, fmt.Errorf("elevenlabs tts: unsupported output format %q", e.config.OutputFormat)
	}
	if req.Text == "" {
		return nil, errors.New("elevenlabs tts: text cannot be empty")
	}

	voiceID := req.Voice
	if voiceID == "" {
		voiceID = e.config.VoiceID
	}

	ctx, cancel := context.WithTimeout(ctx, time.Duration(e.config.TimeoutSeconds)*time.Second)
	defer cancel()

	conn, err := e.establishConnection(ctx, voiceID)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs tts: %w", e.wrapCanceled(ctx, err))
	}
	defer e.closeConnection(conn)

	stop := context.AfterFunc(ctx, func() {
		conn.SetReadDeadline(time.Now())
	})
	defer stop()

	for _, msg := range []interface{}{
		e.bosMessage(),
		elTextMessage{Text: req.Text + " ", TryTriggerGeneration: true},
		elTextMessage{Text: ""}, // EOS
	} {
		if err := e.sendJSON(conn, msg); err != nil {
			return nil, fmt.Errorf("elevenlabs tts: send: %w", e.wrapCanceled(ctx, err))
		}
	}

	result := &core.SynthesisResult{
		Format:   format.Name,
		MimeType: format.MimeType(),
		Voice:    voiceID,
	}
	if err := e.receive(ctx, conn, format, result); err != nil {
		return nil, err
	}
	result.Duration = format.Duration(result.Audio)
	return result, nil
}

func (e *ElevenLabsTTS) receive(ctx context.Context, conn *websocket.Conn, format audio.OutputFormat, result *core.SynthesisResult) error {
	// Alignment times restart at zero in every chunk.
	var chunkOffset float64

	for {
		messageType, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) && len(result.Audio) > 0 {
				return nil
			}
			return fmt.Errorf("elevenlabs tts: read: %w", e.wrapCanceled(ctx, err))
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var msg elAudioMessage
		if err := sonic.Unmarshal(message, &msg); err != nil {
			e.logger.Warn("elevenlabs tts: failed to parse message", "error", err)
			continue
		}
		if msg.Error != "" {
			return fmt.Errorf("elevenlabs tts: %s: %s (code: %d)", msg.Error, msg.Message, msg.Code)
		}

		if msg.Audio != "" {
			audioData, err := base64.StdEncoding.DecodeString(msg.Audio)
			if err != nil {
				return fmt.Errorf("elevenlabs tts: decode audio: %w", err)
			}

			alignment := msg.NormalizedAlignment
			if alignment == nil {
				alignment = msg.Alignment
			}
			result.Visemes = append(result.Visemes, alignmentVisemes(alignment, chunkOffset)...)

			if d := format.Duration(audioData); d != nil {
				chunkOffset += *d
			} else if alignment != nil && len(alignment.CharStartTimesMs) > 0 {
				last := len(alignment.CharStartTimesMs) - 1
				end := alignment.CharStartTimesMs[last]
				if last < len(alignment.CharDurationsMs) {
					end += alignment.CharDurationsMs[last]
				}
				chunkOffset += float64(end) / 1000
			}
			result.Audio = append(result.Audio, audioData...)
		}

		if msg.IsFinal {
			return nil
		}
	}
}

// establishConnection creates a new WebSocket connection with retry logic
func (e *ElevenLabsTTS) establishConnection(ctx context.Context, voiceID string) (*websocket.Conn, error) {
	const maxRetries = 3
	const baseDelay = 500 * time.Millisecond

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			delay := baseDelay * time.Duration(attempt)
			e.logger.Infof("ElevenLabs TTS: retrying connection (attempt %d/%d) in %v after error: %v",
				attempt+1, maxRetries, delay, lastErr)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		conn, err := e.dialConnection(ctx, voiceID)
		if err != nil {
			lastErr = err
			continue
		}
		return conn, nil
	}

	return nil, fmt.Errorf("failed to connect after %d attempts: %w", maxRetries, lastErr)
}

// dialConnection performs a single WebSocket dial to ElevenLabs
func (e *ElevenLabsTTS) dialConnection(ctx context.Context, voiceID string) (*websocket.Conn, error) {
	query := url.Values{}
	query.Set("model_id", e.config.ModelID)
	query.Set("output_format", e.config.OutputFormat)
	query.Set("sync_alignment", "true")

	endpoint := fmt.Sprintf("%s/%s/stream-input?%s", e.config.BaseURL, url.PathEscape(voiceID), query.Encode())

	headers := http.Header{}
	headers.Set("xi-api-key", e.config.APIKey)

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, endpoint, headers)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

func (e *ElevenLabsTTS) bosMessage() elBOSMessage {
	return elBOSMessage{
		Text: " ",
		VoiceSettings: elVoiceSettings{
			Stability:       e.config.Stability,
			SimilarityBoost: e.config.SimilarityBoost,
		},
		GenerationConfig: elGenConfig{
			ChunkLengthSchedule: []int{120, 160, 250, 290},
		},
	}
}

// sendJSON marshals and sends a JSON message over WebSocket
func (e *ElevenLabsTTS) sendJSON(conn *websocket.Conn, msg interface{}) error {
	data, err := sonic.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, data)
}

// closeConnection sends a close frame and closes the connection.
func (e *ElevenLabsTTS) closeConnection(conn *websocket.Conn) {
	conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
	conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	conn.Close()
}

func (e *ElevenLabsTTS) wrapCanceled(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("%w: %w", core.ErrSynthesisCanceled, ctx.Err())
	}
	return err
}
