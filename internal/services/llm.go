package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"jarvis-chat/internal/config"
	"jarvis-chat/internal/metrics"
)

// ErrMissingCredential is returned when the upstream provider has no API key.
var ErrMissingCredential = errors.New("upstream credential is not configured")

// Completer sends a system instruction and one user message to a language
// model and returns the generated text.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Transcriber turns recorded speech into text. language is a BCP 47 tag
// such as "en-US" and may be empty.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, mimeType, language string) (string, error)
}

// Provider is implemented by every concrete upstream backend.
type Provider interface {
	Completer
	Transcriber
	Name() string
	Close()
}

// UpstreamError wraps a failure reported by, or while reaching, the provider.
type UpstreamError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s API error (%d): %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s API error: %v", e.Provider, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Upstream fronts a Provider with a per-call timeout, a concurrency
// token bucket and metrics. A zero Upstream (nil provider) reports
// ErrMissingCredential without doing any I/O.
type Upstream struct {
	provider Provider
	name     string
	timeout  time.Duration
	rateChan chan struct{} // Token bucket
	logger   zerolog.Logger
}

func NewUpstream(provider Provider, name string, timeout time.Duration, concurrentReqs int, logger zerolog.Logger) *Upstream {
	if concurrentReqs <= 0 {
		concurrentReqs = 1
	}
	rateChan := make(chan struct{}, concurrentReqs)
	for i := 0; i < concurrentReqs; i++ {
		rateChan <- struct{}{}
	}
	if provider != nil {
		name = provider.Name()
	}

	return &Upstream{
		provider: provider,
		name:     name,
		timeout:  timeout,
		rateChan: rateChan,
		logger:   logger.With().Str("provider", name).Logger(),
	}
}

// NewUpstreamFromConfig builds the provider selected by cfg. When the
// provider's credential is missing it still returns a usable Upstream
// together with ErrMissingCredential so callers can log and continue.
func NewUpstreamFromConfig(cfg *config.Config, logger zerolog.Logger) (*Upstream, error) {
	provider, err := newProvider(cfg)
	up := NewUpstream(provider, cfg.UpstreamProvider, cfg.UpstreamTimeout, cfg.UpstreamConcurrentReqs, logger)
	return up, err
}

func newProvider(cfg *config.Config) (Provider, error) {
	switch cfg.UpstreamProvider {
	case config.ProviderMock:
		return NewMockService(), nil
	case config.ProviderGemini:
		if cfg.GeminiAPIKey == "" {
			return nil, ErrMissingCredential
		}
		gemini, err := NewGeminiService(cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, err
		}
		return gemini, nil
	case config.ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, ErrMissingCredential
		}
		return NewOpenAIService(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.OpenAISTTModel, cfg.OpenAIBaseURL), nil
	default:
		return nil, fmt.Errorf("unknown upstream provider %q", cfg.UpstreamProvider)
	}
}

func (u *Upstream) Name() string {
	return u.name
}

func (u *Upstream) Configured() bool {
	return u != nil && u.provider != nil
}

func (u *Upstream) Close() {
	if u.provider != nil {
		u.provider.Close()
	}
}

// acquireRate blocks until a rate slot is available
func (u *Upstream) acquireRate(ctx context.Context) error {
	select {
	case <-u.rateChan:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (u *Upstream) releaseRate() {
	u.rateChan <- struct{}{}
}

func (u *Upstream) Complete(ctx context.Context, system, user string) (string, error) {
	if !u.Configured() {
		return "", ErrMissingCredential
	}
	var reply string
	err := u.call(ctx, "complete", func(ctx context.Context) error {
		var err error
		reply, err = u.provider.Complete(ctx, system, user)
		return err
	})
	return reply, err
}

func (u *Upstream) Transcribe(ctx context.Context, audio []byte, mimeType, language string) (string, error) {
	if !u.Configured() {
		return "", ErrMissingCredential
	}
	var text string
	err := u.call(ctx, "transcribe", func(ctx context.Context) error {
		var err error
		text, err = u.provider.Transcribe(ctx, audio, mimeType, language)
		return err
	})
	return text, err
}

func (u *Upstream) call(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	if err := u.acquireRate(ctx); err != nil {
		return err
	}
	defer u.releaseRate()

	if u.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, u.timeout)
		defer cancel()
	}

	log := u.logger.With().Str("call_id", uuid.NewString()).Str("operation", operation).Logger()
	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)
	metrics.UpstreamDuration.WithLabelValues(u.name, operation).Observe(elapsed.Seconds())

	if err != nil {
		metrics.UpstreamErrors.WithLabelValues(u.name, operation).Inc()
		log.Error().Err(err).Dur("latency", elapsed).Msg("upstream error")
		return err
	}
	log.Debug().Dur("latency", elapsed).Msg("upstream call completed")
	return nil
}
