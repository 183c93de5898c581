package core

import (
	"context"
	"errors"

	"avatarkit/lipsync"
)

// SynthesisRequest describes one utterance to synthesize.
type SynthesisRequest struct {
	Text  string `json:"text"`
	Voice string `json:"voice,omitempty"` // Provider voice name; empty uses the service default.
	Style string `json:"style,omitempty"` // Speaking style where the provider supports one.
}

// SynthesisResult is the audio for one utterance plus its viseme timing.
type SynthesisResult struct {
	Audio    []byte                `json:"audio"`
	Format   string                `json:"format"`    // Provider output format name, e.g. audio-16khz-32kbitrate-mono-mp3.
	MimeType string                `json:"mime_type"` // MIME type of Audio.
	Voice    string                `json:"voice"`
	Visemes  []lipsync.VisemeEvent `json:"visemes"`            // Offsets already in seconds.
	Duration *float64              `json:"duration,omitempty"` // Audio length in seconds, nil when unknown.
}

// TTSService turns text into speech with viseme events.
type TTSService interface {
	Synthesize(ctx context.Context, req SynthesisRequest) (*SynthesisResult, error)
	Name() string
}

var (
	// ErrMissingCredentials is returned by services whose API key or region is not configured.
	ErrMissingCredentials = errors.New("missing credentials")
	// ErrSynthesisCanceled is returned when the caller's context ends mid-synthesis.
	ErrSynthesisCanceled = errors.New("synthesis canceled")
)

// Validator is implemented by services that can check their configuration
// without a network round trip.
type Validator interface {
	Validate() error
}
