package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"avatarkit/core"
	"avatarkit/metrics"

	"github.com/bytedance/sonic"
)

// DefaultTTL is how long a synthesis result stays cached unless configured.
const DefaultTTL = 7 * 24 * time.Hour

// voicer is implemented by services that can report their default voice.
type voicer interface {
	Voice() string
}

// CachedSynthesizer wraps a core.TTSService with a Store. Store failures are
// logged and the wrapped service is called as if the entry were missing.
type CachedSynthesizer struct {
	next   core.TTSService
	store  Store
	ttl    time.Duration
	format string
	logger *core.Logger
}

// NewCachedSynthesizer decorates next. format names the provider output format
// and is part of the key so a format change never serves stale audio.
func NewCachedSynthesizer(next core.TTSService, store Store, ttl time.Duration, format string, logger *core.Logger) *CachedSynthesizer {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = core.GetLogger()
	}
	return &CachedSynthesizer{
		next:   next,
		store:  store,
		ttl:    ttl,
		format: format,
		logger: logger.With(map[string]interface{}{"component": "tts_cache"}),
	}
}

func (c *CachedSynthesizer) Name() string {
	return c.next.Name()
}

// Voice forwards to the wrapped service when it reports one.
func (c *CachedSynthesizer) Voice() string {
	if v, ok := c.next.(voicer); ok {
		return v.Voice()
	}
	return ""
}

// Validate forwards to the wrapped service when it implements core.Validator.
func (c *CachedSynthesizer) Validate() error {
	if v, ok := c.next.(core.Validator); ok {
		return v.Validate()
	}
	return nil
}

// Key derives the cache key for a request.
func (c *CachedSynthesizer) Key(req core.SynthesisRequest) string {
	voice := req.Voice
	if voice == "" {
		voice = c.Voice()
	}
	sum := sha256.Sum256([]byte(strings.Join([]string{
		c.next.Name(), voice, req.Style, c.format, req.Text,
	}, "|")))
	return hex.EncodeToString(sum[:])
}

func (c *CachedSynthesizer) Synthesize(ctx context.Context, req core.SynthesisRequest) (*core.SynthesisResult, error) {
	key := c.Key(req)

	if data, ok, err := c.store.Get(ctx, key); err != nil {
		metrics.CacheLookups.WithLabelValues("error").Inc()
		c.logger.Warn("cache lookup failed, synthesizing", "error", err)
	} else if ok {
		var cached core.SynthesisResult
		if err := sonic.Unmarshal(data, &cached); err == nil {
			metrics.CacheLookups.WithLabelValues("hit").Inc()
			return &cached, nil
		}
		metrics.CacheLookups.WithLabelValues("error").Inc()
		c.logger.Warn("discarding undecodable cache entry", "key", key)
	} else {
		metrics.CacheLookups.WithLabelValues("miss").Inc()
	}

	result, err := c.next.Synthesize(ctx, req)
	if err != nil {
		return nil, err
	}

	data, err := sonic.Marshal(result)
	if err != nil {
		c.logger.Warn("cache encode failed", "error", err)
		return result, nil
	}
	if err := c.store.Set(ctx, key, data, c.ttl); err != nil {
		c.logger.Warn("cache store failed", "error", err)
	}
	return result, nil
}
