package factories

import (
	"context"
	"fmt"
	"time"

	"avatarkit/cache"
	"avatarkit/core"
	"avatarkit/handlers/chat"
)

// Services is the running set of providers behind the chat handler. LLM and
// TTS can be rebuilt from new settings without restarting the server.
type Services struct {
	LLM  *ReloadableLLM
	TTS  *ReloadableTTS
	Chat *chat.ChatHandler

	store  cache.Store
	closer func() error
	logger *core.Logger
}

// BuildServices constructs providers, the optional synthesis cache and the
// chat handler from settings.
func BuildServices(ctx context.Context, settings SettingsConfig, logger *core.Logger) (*Services, error) {
	if logger == nil {
		logger = core.GetLogger()
	}
	s := &Services{logger: logger}

	if settings.Cache.Enabled() {
		store, err := cache.NewRedisStore(ctx, settings.Cache.Redis)
		if err != nil {
			return nil, err
		}
		s.store = store
		s.closer = store.Close
		logger.Info("synthesis cache enabled")
	}

	llm, err := s.buildLLM(settings.LLM)
	if err != nil {
		s.Close()
		return nil, err
	}
	tts, err := s.buildTTS(settings)
	if err != nil {
		s.Close()
		return nil, err
	}

	s.LLM = NewReloadableLLM(llm)
	s.TTS = NewReloadableTTS(tts)
	s.Chat = chat.NewChatHandler(s.LLM, s.TTS, settings.Chat, logger)
	return s, nil
}

// Reload rebuilds the LLM and TTS chains and swaps the chat configuration.
// The cache connection and the server listener are kept.
func (s *Services) Reload(settings SettingsConfig) error {
	llm, err := s.buildLLM(settings.LLM)
	if err != nil {
		return err
	}
	tts, err := s.buildTTS(settings)
	if err != nil {
		return err
	}
	s.LLM.Swap(llm)
	s.TTS.Swap(tts)
	s.Chat.UpdateConfig(settings.Chat)
	return nil
}

// Close releases the cache connection.
func (s *Services) Close() error {
	if s.closer != nil {
		return s.closer()
	}
	return nil
}

func (s *Services) buildLLM(settings LLMSettings) (core.LLMService, error) {
	primary, err := BuildLLMService(settings.ServiceConfig, s.logger)
	if err != nil {
		return nil, fmt.Errorf("llm: %w", err)
	}
	backups := make([]core.LLMService, 0, len(settings.FallbackServiceConfigs))
	for i, cfg := range settings.FallbackServiceConfigs {
		svc, err := BuildLLMService(cfg, s.logger)
		if err != nil {
			return nil, fmt.Errorf("llm fallback %d: %w", i, err)
		}
		backups = append(backups, svc)
	}
	return NewFallbackLLM(s.logger, primary, backups...), nil
}

// buildTTS wraps every provider in the cache separately so entries are keyed
// by the provider that produced them.
func (s *Services) buildTTS(settings SettingsConfig) (core.TTSService, error) {
	build := func(cfg TTSFactoryConfig) (core.TTSService, error) {
		svc, err := BuildTTSService(cfg, s.logger)
		if err != nil {
			return nil, err
		}
		if s.store == nil {
			return svc, nil
		}
		ttl := time.Duration(settings.Cache.TTLSeconds) * time.Second
		return cache.NewCachedSynthesizer(svc, s.store, ttl, cfg.OutputFormat(), s.logger), nil
	}

	primary, err := build(settings.TTS.ServiceConfig)
	if err != nil {
		return nil, fmt.Errorf("tts: %w", err)
	}
	backups := make([]core.TTSService, 0, len(settings.TTS.FallbackServiceConfigs))
	for i, cfg := range settings.TTS.FallbackServiceConfigs {
		svc, err := build(cfg)
		if err != nil {
			return nil, fmt.Errorf("tts fallback %d: %w", i, err)
		}
		backups = append(backups, svc)
	}
	return NewFallbackTTS(s.logger, primary, backups...), nil
}
