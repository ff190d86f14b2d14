// Package llm wraps the hosted language models used to draft weekly reports
// and estimate topic attention.
package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ProtiusProtocol/pulse-africa-neon-sub000/internal/config"
	"github.com/ProtiusProtocol/pulse-africa-neon-sub000/internal/domain"
)

// Request is a single-turn completion request.
type Request struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
	// JSON asks the provider for a JSON object response where supported.
	JSON bool
}

// Response carries the generated text and the model that produced it.
type Response struct {
	Text  string
	Model string
}

// Provider is a hosted model.
type Provider interface {
	Name() string
	Model() string
	Complete(ctx context.Context, req Request) (Response, error)
}

// Options are the resolved settings shared by every provider.
type Options struct {
	APIKey      string
	Model       string
	BaseURL     string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

// New builds the provider named by cfg.Provider. An empty apiKey yields
// domain.ErrLLMUnavailable so callers can degrade.
func New(ctx context.Context, cfg config.LLMConfig, apiKey string) (Provider, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("llm: %s: no api key: %w", cfg.Provider, domain.ErrLLMUnavailable)
	}
	opts := Options{
		APIKey:      apiKey,
		Model:       cfg.Model,
		BaseURL:     cfg.BaseURL,
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
		Timeout:     cfg.Timeout.Duration,
	}
	switch strings.ToLower(cfg.Provider) {
	case "openai":
		return NewOpenAI(opts), nil
	case "anthropic":
		return NewAnthropic(opts), nil
	case "gemini":
		return NewGemini(ctx, opts)
	default:
		return nil, fmt.Errorf("llm: unknown provider %q", cfg.Provider)
	}
}

// withDefaults fills unset request knobs from the provider options.
func (o Options) withDefaults(req Request) Request {
	if req.MaxTokens <= 0 {
		req.MaxTokens = o.MaxTokens
	}
	if req.MaxTokens <= 0 {
		req.MaxTokens = 1024
	}
	if req.Temperature == 0 {
		req.Temperature = o.Temperature
	}
	return req
}

func (o Options) timeoutCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, o.Timeout)
}

func emptyResponse(provider string) error {
	return fmt.Errorf("llm: %s: empty response", provider)
}
