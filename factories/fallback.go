package factories

import (
	"context"
	"errors"
	"fmt"

	"avatarkit/core"
)

// usable reports whether svc can be called: services that do not validate
// are assumed usable.
func usable(svc interface{}) bool {
	v, ok := svc.(core.Validator)
	if !ok {
		return true
	}
	return !errors.Is(v.Validate(), core.ErrMissingCredentials)
}

// aborted reports whether err means the caller gave up, so no backup should be tried.
func aborted(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, core.ErrSynthesisCanceled)
}

// FallbackTTS tries its services in order and returns the first success.
// Services without credentials are skipped.
type FallbackTTS struct {
	services []core.TTSService
	logger   *core.Logger
}

// NewFallbackTTS wraps primary and its backups. With no backups it returns primary.
func NewFallbackTTS(logger *core.Logger, primary core.TTSService, backups ...core.TTSService) core.TTSService {
	if len(backups) == 0 {
		return primary
	}
	if logger == nil {
		logger = core.GetLogger()
	}
	return &FallbackTTS{
		services: append([]core.TTSService{primary}, backups...),
		logger:   logger,
	}
}

func (f *FallbackTTS) Name() string {
	return f.services[0].Name()
}

// Validate succeeds when at least one service has credentials.
func (f *FallbackTTS) Validate() error {
	for _, svc := range f.services {
		if usable(svc) {
			return nil
		}
	}
	return fmt.Errorf("tts fallback: %w", core.ErrMissingCredentials)
}

func (f *FallbackTTS) Synthesize(ctx context.Context, req core.SynthesisRequest) (*core.SynthesisResult, error) {
	var errs []error
	for i, svc := range f.services {
		if !usable(svc) {
			continue
		}
		result, err := svc.Synthesize(ctx, req)
		if err == nil {
			return result, nil
		}
		if aborted(ctx, err) {
			return nil, err
		}
		errs = append(errs, err)
		if i+1 < len(f.services) {
			f.logger.Warn("tts failed, switching to backup service", "service", svc.Name(), "error", err)
		}
	}
	if len(errs) == 0 {
		return nil, fmt.Errorf("tts fallback: %w", core.ErrMissingCredentials)
	}
	return nil, errors.Join(errs...)
}

// FallbackLLM tries its services in order and returns the first completion.
type FallbackLLM struct {
	services []core.LLMService
	logger   *core.Logger
}

// NewFallbackLLM wraps primary and its backups. With no backups it returns primary.
func NewFallbackLLM(logger *core.Logger, primary core.LLMService, backups ...core.LLMService) core.LLMService {
	if len(backups) == 0 {
		return primary
	}
	if logger == nil {
		logger = core.GetLogger()
	}
	return &FallbackLLM{
		services: append([]core.LLMService{primary}, backups...),
		logger:   logger,
	}
}

func (f *FallbackLLM) Name() string {
	return f.services[0].Name()
}

func (f *FallbackLLM) Validate() error {
	for _, svc := range f.services {
		if usable(svc) {
			return nil
		}
	}
	return fmt.Errorf("llm fallback: %w", core.ErrMissingCredentials)
}

func (f *FallbackLLM) Complete(ctx context.Context, llmContext core.LLMContext) (string, error) {
	var errs []error
	for i, svc := range f.services {
		if !usable(svc) {
			continue
		}
		reply, err := svc.Complete(ctx, llmContext)
		if err == nil {
			return reply, nil
		}
		if aborted(ctx, err) {
			return "", err
		}
		errs = append(errs, err)
		if i+1 < len(f.services) {
			f.logger.Warn("llm failed, switching to backup service", "service", svc.Name(), "error", err)
		}
	}
	if len(errs) == 0 {
		return "", fmt.Errorf("llm fallback: %w", core.ErrMissingCredentials)
	}
	return "", errors.Join(errs...)
}
