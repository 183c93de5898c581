package chat

type ChatConfig struct {
	SystemPrompt         string `json:"system_prompt"`         // Persona prompt sent ahead of every user message.
	MaxMessages          int    `json:"max_messages"`          // Upper bound on messages kept from one model reply.
	SynthesisConcurrency int    `json:"synthesis_concurrency"` // Messages synthesized in parallel per reply.
	AssetsDir            string `json:"assets_dir"`            // Directory holding the prerecorded intro_N and api_N wav/json pairs.
	ArtifactsDir         string `json:"artifacts_dir"`         // When set, every generated message is also written here.
	Voice                string `json:"voice"`                 // Overrides the TTS service's default voice when non-empty.
	Style                string `json:"style"`                 // Speaking style passed to providers that support one.
	TimeoutSeconds       int    `json:"timeout_seconds"`       // Budget for one whole reply, LLM and synthesis included.
}

// DefaultConfig returns a ChatConfig with sensible defaults.
func DefaultConfig() ChatConfig {
	return ChatConfig{
		SystemPrompt:         DefaultSystemPrompt,
		MaxMessages:          3,
		SynthesisConcurrency: 3,
		AssetsDir:            "audios",
		TimeoutSeconds:       60,
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c ChatConfig) withDefaults() ChatConfig {
	d := DefaultConfig()
	if c.SystemPrompt == "" {
		c.SystemPrompt = d.SystemPrompt
	}
	if c.MaxMessages <= 0 {
		c.MaxMessages = d.MaxMessages
	}
	if c.SynthesisConcurrency <= 0 {
		c.SynthesisConcurrency = d.SynthesisConcurrency
	}
	if c.AssetsDir == "" {
		c.AssetsDir = d.AssetsDir
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = d.TimeoutSeconds
	}
	return c
}
