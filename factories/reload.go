package factories

import (
	"context"
	"sync/atomic"

	"avatarkit/core"
)

type llmHolder struct{ svc core.LLMService }

type ttsHolder struct{ svc core.TTSService }

// ReloadableLLM forwards to a service that can be replaced while requests are in flight.
type ReloadableLLM struct {
	current atomic.Pointer[llmHolder]
}

func NewReloadableLLM(svc core.LLMService) *ReloadableLLM {
	r := &ReloadableLLM{}
	r.Swap(svc)
	return r
}

// Swap installs svc for subsequent calls.
func (r *ReloadableLLM) Swap(svc core.LLMService) {
	r.current.Store(&llmHolder{svc: svc})
}

func (r *ReloadableLLM) Name() string {
	return r.current.Load().svc.Name()
}

func (r *ReloadableLLM) Validate() error {
	if v, ok := r.current.Load().svc.(core.Validator); ok {
		return v.Validate()
	}
	return nil
}

func (r *ReloadableLLM) Complete(ctx context.Context, llmContext core.LLMContext) (string, error) {
	return r.current.Load().svc.Complete(ctx, llmContext)
}

// ReloadableTTS forwards to a synthesizer that can be replaced while requests are in flight.
type ReloadableTTS struct {
	current atomic.Pointer[ttsHolder]
}

func NewReloadableTTS(svc core.TTSService) *ReloadableTTS {
	r := &ReloadableTTS{}
	r.Swap(svc)
	return r
}

// Swap installs svc for subsequent calls.
func (r *ReloadableTTS) Swap(svc core.TTSService) {
	r.current.Store(&ttsHolder{svc: svc})
}

func (r *ReloadableTTS) Name() string {
	return r.current.Load().svc.Name()
}

func (r *ReloadableTTS) Validate() error {
	if v, ok := r.current.Load().svc.(core.Validator); ok {
		return v.Validate()
	}
	return nil
}

func (r *ReloadableTTS) Synthesize(ctx context.Context, req core.SynthesisRequest) (*core.SynthesisResult, error) {
	return r.current.Load().svc.Synthesize(ctx, req)
}
