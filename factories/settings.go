package factories

import (
	"encoding/json"
	"fmt"
	"os"

	"avatarkit/cache"
	"avatarkit/handlers/chat"
	"avatarkit/server"

	"github.com/bytedance/sonic"
)

// LLMSettings selects the LLM provider and its backups.
type LLMSettings struct {
	ServiceConfig          LLMFactoryConfig   `json:"service"`
	FallbackServiceConfigs []LLMFactoryConfig `json:"fallback_services,omitempty"`
}

// TTSSettings selects the TTS provider and its backups.
type TTSSettings struct {
	ServiceConfig          TTSFactoryConfig   `json:"service"`
	FallbackServiceConfigs []TTSFactoryConfig `json:"fallback_services,omitempty"`
}

// CacheSettings configures the synthesis cache. The cache is off unless a
// Redis URL or address is configured.
type CacheSettings struct {
	TTLSeconds int               `json:"ttl_seconds,omitempty"`
	Redis      cache.RedisConfig `json:"redis"`
}

// Enabled reports whether a Redis server is configured.
func (c CacheSettings) Enabled() bool {
	return c.Redis.URL != "" || c.Redis.Addr != ""
}

// LoggingSettings picks the log handler; LOG_LEVEL and LOG_FORMAT override it.
type LoggingSettings struct {
	Level  string `json:"level,omitempty"`
	Format string `json:"format,omitempty"` // "console" or "json".
}

// SettingsConfig is the top-level config loaded from settings.json.
// Credentials normally come from the environment; see InjectAPIKeys.
type SettingsConfig struct {
	Server  server.Config   `json:"server"`
	Logging LoggingSettings `json:"logging"`
	LLM     LLMSettings     `json:"llm"`
	TTS     TTSSettings     `json:"tts"`
	Chat    chat.ChatConfig `json:"chat"`
	Cache   CacheSettings   `json:"cache"`
}

// DefaultSettingsConfig returns a SettingsConfig pre-filled with provider defaults.
func DefaultSettingsConfig() SettingsConfig {
	return SettingsConfig{
		Server:  server.DefaultConfig(),
		Logging: LoggingSettings{Level: "INFO", Format: "console"},
		LLM:     LLMSettings{ServiceConfig: DefaultLLMFactoryConfig()},
		TTS:     TTSSettings{ServiceConfig: DefaultTTSFactoryConfig()},
		Chat:    chat.DefaultConfig(),
	}
}

// SettingsConfigFromJSON parses a JSON blob into a SettingsConfig. Sections
// left out of the blob keep their defaults; a provider section replaces the
// default provider rather than merging into it.
func SettingsConfigFromJSON(data []byte) (SettingsConfig, error) {
	var raw struct {
		Server  json.RawMessage `json:"server,omitempty"`
		Logging json.RawMessage `json:"logging,omitempty"`
		LLM     json.RawMessage `json:"llm,omitempty"`
		TTS     json.RawMessage `json:"tts,omitempty"`
		Chat    json.RawMessage `json:"chat,omitempty"`
		Cache   json.RawMessage `json:"cache,omitempty"`
	}
	if err := sonic.Unmarshal(data, &raw); err != nil {
		return SettingsConfig{}, fmt.Errorf("settings: %w", err)
	}

	cfg := DefaultSettingsConfig()
	sections := []struct {
		name   string
		raw    json.RawMessage
		target interface{}
	}{
		{"server", raw.Server, &cfg.Server},
		{"logging", raw.Logging, &cfg.Logging},
		{"chat", raw.Chat, &cfg.Chat},
		{"cache", raw.Cache, &cfg.Cache},
	}
	for _, s := range sections {
		if len(s.raw) == 0 {
			continue
		}
		if err := sonic.Unmarshal(s.raw, s.target); err != nil {
			return SettingsConfig{}, fmt.Errorf("settings: %s: %w", s.name, err)
		}
	}

	if len(raw.LLM) > 0 {
		var llm LLMSettings
		if err := sonic.Unmarshal(raw.LLM, &llm); err != nil {
			return SettingsConfig{}, fmt.Errorf("settings: llm: %w", err)
		}
		if llm.ServiceConfig.IsEmpty() {
			llm.ServiceConfig = DefaultLLMFactoryConfig()
		}
		cfg.LLM = llm
	}

	if len(raw.TTS) > 0 {
		var tts TTSSettings
		if err := sonic.Unmarshal(raw.TTS, &tts); err != nil {
			return SettingsConfig{}, fmt.Errorf("settings: tts: %w", err)
		}
		if tts.ServiceConfig.IsEmpty() {
			tts.ServiceConfig = DefaultTTSFactoryConfig()
		}
		cfg.TTS = tts
	}

	return cfg, nil
}

// SettingsConfigFromFile reads and parses a SettingsConfig from a JSON file.
func SettingsConfigFromFile(path string) (SettingsConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return DefaultSettingsConfig(), fmt.Errorf("settings: read %q: %w", path, err)
	}
	return SettingsConfigFromJSON(data)
}

// APIKeys holds API credentials for all supported service providers.
// Pass to SettingsConfig.InjectAPIKeys after loading from JSON so that
// secrets are never stored in config files.
type APIKeys struct {
	OpenAI      string // Used for OpenAI LLM provider.
	Together    string // Used for Together AI LLM provider.
	Groq        string // Used for Groq LLM provider.
	DeepSeek    string // Used for DeepSeek LLM provider.
	OpenRouter  string // Used for OpenRouter LLM provider.
	Fireworks   string // Used for Fireworks AI LLM provider.
	Cerebras    string // Used for Cerebras LLM provider.
	XAI         string // Used for xAI (Grok) LLM provider.
	Mistral     string // Used for Mistral AI LLM provider.
	Perplexity  string // Used for Perplexity LLM provider.
	AzureSpeech string // Used for Azure Speech TTS provider.
	AzureRegion string
	AzureVoice  string // Overrides the configured Azure voice when set.
	AzureStyle  string // Overrides the configured Azure speaking style when set.
	ElevenLabs  string // Used for ElevenLabs TTS provider.
	Cartesia    string // Used for Cartesia TTS provider.
	RedisURL    string // Enables the synthesis cache when set.
}

// APIKeysFromEnv reads every credential from its conventional variable.
func APIKeysFromEnv() APIKeys {
	return APIKeys{
		OpenAI:      os.Getenv("OPENAI_API_KEY"),
		Together:    os.Getenv("TOGETHER_API_KEY"),
		Groq:        os.Getenv("GROQ_API_KEY"),
		DeepSeek:    os.Getenv("DEEPSEEK_API_KEY"),
		OpenRouter:  os.Getenv("OPENROUTER_API_KEY"),
		Fireworks:   os.Getenv("FIREWORKS_API_KEY"),
		Cerebras:    os.Getenv("CEREBRAS_API_KEY"),
		XAI:         os.Getenv("XAI_API_KEY"),
		Mistral:     os.Getenv("MISTRAL_API_KEY"),
		Perplexity:  os.Getenv("PERPLEXITY_API_KEY"),
		AzureSpeech: os.Getenv("AZURE_SPEECH_KEY"),
		AzureRegion: os.Getenv("AZURE_SPEECH_REGION"),
		AzureVoice:  os.Getenv("AZURE_SPEECH_VOICE"),
		AzureStyle:  os.Getenv("AZURE_SPEECH_STYLE"),
		ElevenLabs:  os.Getenv("ELEVENLABS_API_KEY"),
		Cartesia:    os.Getenv("CARTESIA_API_KEY"),
		RedisURL:    os.Getenv("REDIS_URL"),
	}
}

// InjectAPIKeys applies API credentials to all configured service providers
// (primary and fallbacks). Values already present in the settings win, except
// for the Azure voice and style, which the environment overrides.
func (c *SettingsConfig) InjectAPIKeys(keys APIKeys) {
	injectLLMKeys(&c.LLM.ServiceConfig, keys)
	for i := range c.LLM.FallbackServiceConfigs {
		injectLLMKeys(&c.LLM.FallbackServiceConfigs[i], keys)
	}

	injectTTSKeys(&c.TTS.ServiceConfig, keys)
	for i := range c.TTS.FallbackServiceConfigs {
		injectTTSKeys(&c.TTS.FallbackServiceConfigs[i], keys)
	}

	if !c.Cache.Enabled() && keys.RedisURL != "" {
		c.Cache.Redis.URL = keys.RedisURL
	}
}

func injectLLMKeys(cfg *LLMFactoryConfig, keys APIKeys) {
	for _, p := range []struct {
		key    string
		apiKey *string
	}{
		{keys.OpenAI, apiKeyField(cfg.OpenAIConfig)},
		{keys.Together, apiKeyField(cfg.TogetherConfig)},
		{keys.Groq, apiKeyField(cfg.GroqConfig)},
		{keys.DeepSeek, apiKeyField(cfg.DeepSeekConfig)},
		{keys.OpenRouter, apiKeyField(cfg.OpenRouterConfig)},
		{keys.Fireworks, apiKeyField(cfg.FireworksConfig)},
		{keys.Cerebras, apiKeyField(cfg.CerebrasConfig)},
		{keys.XAI, apiKeyField(cfg.XAIConfig)},
		{keys.Mistral, apiKeyField(cfg.MistralConfig)},
		{keys.Perplexity, apiKeyField(cfg.PerplexityConfig)},
	} {
		if p.apiKey != nil && *p.apiKey == "" {
			*p.apiKey = p.key
		}
	}
}

func injectTTSKeys(cfg *TTSFactoryConfig, keys APIKeys) {
	if az := cfg.AzureConfig; az != nil {
		if az.APIKey == "" {
			az.APIKey = keys.AzureSpeech
		}
		if az.Region == "" {
			az.Region = keys.AzureRegion
		}
		if keys.AzureVoice != "" {
			az.Voice = keys.AzureVoice
		}
		if keys.AzureStyle != "" {
			az.Style = keys.AzureStyle
		}
	}
	if el := cfg.ElevenLabsConfig; el != nil && el.APIKey == "" {
		el.APIKey = keys.ElevenLabs
	}
	if ca := cfg.CartesiaConfig; ca != nil && ca.APIKey == "" {
		ca.APIKey = keys.Cartesia
	}
}
