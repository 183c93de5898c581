package factories

import (
	"errors"

	"avatarkit/core"
	azure "avatarkit/services/azure/tts"
	cartesia "avatarkit/services/cartesia/tts"
	elevenlabs "avatarkit/services/elevenlabs/tts"
	"avatarkit/utils/audio"
)

// TTSFactoryConfig holds provider-specific configs for TTS service construction.
// Set exactly one provider config; the rest should be left nil.
type TTSFactoryConfig struct {
	AzureConfig      *azure.AzureTTSConfig           `json:"azure,omitempty"`
	ElevenLabsConfig *elevenlabs.ElevenLabsTTSConfig `json:"elevenlabs,omitempty"`
	CartesiaConfig   *cartesia.CartesiaTTSConfig     `json:"cartesia,omitempty"`
}

// DefaultTTSFactoryConfig selects Azure Speech with the avatar's default voice.
func DefaultTTSFactoryConfig() TTSFactoryConfig {
	cfg := azure.DefaultConfig()
	return TTSFactoryConfig{AzureConfig: &cfg}
}

// IsEmpty reports whether no provider is configured.
func (c TTSFactoryConfig) IsEmpty() bool {
	return c.AzureConfig == nil && c.ElevenLabsConfig == nil && c.CartesiaConfig == nil
}

// OutputFormat returns the configured provider's output format name, with the
// provider default filled in.
func (c TTSFactoryConfig) OutputFormat() string {
	switch {
	case c.AzureConfig != nil && c.AzureConfig.OutputFormat != "":
		return c.AzureConfig.OutputFormat
	case c.AzureConfig != nil:
		return audio.DefaultFormat
	case c.ElevenLabsConfig != nil && c.ElevenLabsConfig.OutputFormat != "":
		return c.ElevenLabsConfig.OutputFormat
	case c.ElevenLabsConfig != nil:
		return elevenlabs.DefaultOutputFormat
	case c.CartesiaConfig != nil && c.CartesiaConfig.OutputFormat != "":
		return c.CartesiaConfig.OutputFormat
	case c.CartesiaConfig != nil:
		return cartesia.DefaultOutputFormat
	}
	return ""
}

// BuildTTSService constructs a TTSService from the given factory config.
// Exactly one provider config must be non-nil.
func BuildTTSService(config TTSFactoryConfig, logger *core.Logger) (core.TTSService, error) {
	if config.AzureConfig != nil {
		return azure.NewAzureTTS(*config.AzureConfig, logger), nil
	}
	if config.ElevenLabsConfig != nil {
		return elevenlabs.NewElevenLabsTTS(*config.ElevenLabsConfig, logger), nil
	}
	if config.CartesiaConfig != nil {
		return cartesia.NewCartesiaTTS(*config.CartesiaConfig, logger), nil
	}
	return nil, errors.New("TTSFactoryConfig: no provider config specified")
}
