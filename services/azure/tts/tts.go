// Package azure synthesizes speech with Azure Speech over its websocket API
// and collects the viseme events Azure reports alongside the audio.
package azure

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"avatarkit/core"
	"avatarkit/lipsync"
	"avatarkit/utils/audio"
	"avatarkit/utils/text"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// AzureTTSConfig holds configuration for the Azure Speech TTS service
type AzureTTSConfig struct {
	APIKey       string `json:"api_key"`
	Region       string `json:"region"`
	Endpoint     string `json:"endpoint,omitempty"` // Overrides the regional websocket URL.
	Voice        string `json:"voice"`
	Style        string `json:"style"`
	Language     string `json:"language"`
	OutputFormat string `json:"output_format"`

	TimeoutSeconds int `json:"timeout_seconds"`
}

// DefaultConfig returns the voice and format the avatar front end was built around.
func DefaultConfig() AzureTTSConfig {
	return AzureTTSConfig{
		Voice:          text.DefaultVoice,
		Style:          text.DefaultStyle,
		Language:       text.DefaultLanguage,
		OutputFormat:   audio.DefaultFormat,
		TimeoutSeconds: 30,
	}
}

// AzureTTS implements core.TTSService. Each Synthesize call opens its own
// websocket connection, so the service is safe for concurrent use.
type AzureTTS struct {
	config AzureTTSConfig
	logger *core.Logger
	dialer *websocket.Dialer
}

// NewAzureTTS creates a new Azure TTS service, filling unset fields from DefaultConfig.
func NewAzureTTS(config AzureTTSConfig, logger *core.Logger) *AzureTTS {
	defaults := DefaultConfig()
	if config.Voice == "" {
		config.Voice = defaults.Voice
	}
	if config.Style == "" {
		config.Style = defaults.Style
	}
	if config.Language == "" {
		config.Language = defaults.Language
	}
	if config.OutputFormat == "" {
		config.OutputFormat = defaults.OutputFormat
	}
	if config.TimeoutSeconds <= 0 {
		config.TimeoutSeconds = defaults.TimeoutSeconds
	}
	if logger == nil {
		logger = core.GetLogger()
	}
	return &AzureTTS{
		config: config,
		logger: logger.With(map[string]interface{}{"service": "azure_tts"}),
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
	}
}

func (a *AzureTTS) Name() string {
	return "azure"
}

// Voice reports the configured default voice.
func (a *AzureTTS) Voice() string {
	return a.config.Voice
}

// Validate reports ErrMissingCredentials when the key or the region/endpoint is unset.
func (a *AzureTTS) Validate() error {
	if a.config.APIKey == "" || (a.config.Region == "" && a.config.Endpoint == "") {
		return fmt.Errorf("azure tts: %w", core.ErrMissingCredentials)
	}
	return nil
}

func (a *AzureTTS) endpoint() string {
	if a.config.Endpoint != "" {
		return a.config.Endpoint
	}
	return fmt.Sprintf("wss://%s.tts.speech.microsoft.com/cognitiveservices/websocket/v1", a.config.Region)
}

func newID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Synthesize speaks req.Text and returns the audio with viseme offsets in seconds.
func (a *AzureTTS) Synthesize(ctx context.Context, req core.SynthesisRequest) (*core.SynthesisResult, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}
	format, ok := audio.LookupFormat(a.config.OutputFormat)
	if !ok {
		return nil, fmt.Errorf("azure tts: unsupported output format %q", a.config.OutputFormat)
	}

	voice := req.Voice
	if voice == "" {
		voice = a.config.Voice
	}
	style := req.Style
	if style == "" {
		style = a.config.Style
	}

	ctx, cancel := context.WithTimeout(ctx, time.Duration(a.config.TimeoutSeconds)*time.Second)
	defer cancel()

	connectionID := newID()
	requestID := newID()
	logger := a.logger.With(map[string]interface{}{"request_id": requestID, "voice": voice})

	headers := http.Header{}
	headers.Set("Ocp-Apim-Subscription-Key", a.config.APIKey)
	headers.Set("X-ConnectionId", connectionID)

	conn, resp, err := a.dialer.DialContext(ctx, a.endpoint(), headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("azure tts: dial: status %d: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("azure tts: dial: %w", a.wrapCanceled(ctx, err))
	}
	defer conn.Close()

	// Unblock reads when the caller gives up.
	stop := context.AfterFunc(ctx, func() {
		conn.SetReadDeadline(time.Now())
	})
	defer stop()

	if err := a.sendRequest(conn, requestID, format.Name, text.BuildSSML(text.SSMLOptions{
		Language: a.config.Language,
		Voice:    voice,
		Style:    style,
	}, req.Text)); err != nil {
		return nil, fmt.Errorf("azure tts: send: %w", a.wrapCanceled(ctx, err))
	}

	result := &core.SynthesisResult{
		Format:   format.Name,
		MimeType: format.MimeType(),
		Voice:    voice,
	}
	if err := a.receive(ctx, conn, result); err != nil {
		return nil, err
	}
	result.Duration = format.Duration(result.Audio)

	logger.Debug("azure synthesis complete",
		"bytes", len(result.Audio),
		"visemes", len(result.Visemes),
	)
	return result, nil
}

func (a *AzureTTS) sendRequest(conn *websocket.Conn, requestID, outputFormat, ssml string) error {
	var cfg speechConfig
	cfg.Context.System.Name = "SpeechSDK"
	cfg.Context.System.Version = "1.0.0"
	cfg.Context.System.Build = "Go"
	cfg.Context.System.Lang = "Go"
	cfg.Context.OS.Platform = "Linux"
	cfg.Context.OS.Name = "avatarkit"
	cfgBody, err := sonic.Marshal(cfg)
	if err != nil {
		return err
	}

	var synth synthesisContext
	synth.Synthesis.Audio.MetadataOptions.VisemeEnabled = true
	synth.Synthesis.Audio.OutputFormat = outputFormat
	synthBody, err := sonic.Marshal(synth)
	if err != nil {
		return err
	}

	frames := [][]byte{
		buildTextFrame("speech.config", "application/json", "", cfgBody),
		buildTextFrame("synthesis.context", "application/json", requestID, synthBody),
		buildTextFrame("ssml", "application/ssml+xml", requestID, []byte(ssml)),
	}
	for _, f := range frames {
		conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := conn.WriteMessage(websocket.TextMessage, f); err != nil {
			return err
		}
	}
	return nil
}

// receive reads frames until turn.end, appending audio and visemes to result.
func (a *AzureTTS) receive(ctx context.Context, conn *websocket.Conn, result *core.SynthesisResult) error {
	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				return fmt.Errorf("azure tts: connection closed before turn.end: %d %s", closeErr.Code, closeErr.Text)
			}
			return fmt.Errorf("azure tts: read: %w", a.wrapCanceled(ctx, err))
		}

		switch messageType {
		case websocket.BinaryMessage:
			f, err := parseBinaryFrame(data)
			if err != nil {
				return fmt.Errorf("azure tts: %w", err)
			}
			if f.path() == "audio" && len(f.body) > 0 {
				result.Audio = append(result.Audio, f.body...)
			}
		case websocket.TextMessage:
			f := parseTextFrame(data)
			switch f.path() {
			case "audio.metadata":
				var meta audioMetadata
				if err := sonic.Unmarshal(f.body, &meta); err != nil {
					a.logger.Warn("azure tts: skipping malformed audio.metadata", "error", err)
					continue
				}
				for _, m := range meta.Metadata {
					if m.Type != "Viseme" {
						continue
					}
					result.Visemes = append(result.Visemes, lipsync.VisemeEvent{
						ID:     m.Data.VisemeID,
						Offset: lipsync.TicksToSeconds(m.Data.Offset),
					})
				}
			case "turn.end":
				return nil
			}
		}
	}
}

func (a *AzureTTS) wrapCanceled(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("%w: %w", core.ErrSynthesisCanceled, ctx.Err())
	}
	return err
}
