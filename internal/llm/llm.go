// Package llm turns model output into validated digest extractions.
package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"meridian/internal/config"
	"meridian/internal/core"
)

const (
	// ProviderOpenAI selects the chat completions client.
	ProviderOpenAI = "openai"
	// ProviderGemini selects the Gemini client.
	ProviderGemini = "gemini"

	// DefaultTemperature keeps extraction output stable between runs.
	DefaultTemperature = 0.2
	// DefaultTimeout bounds a single extraction call.
	DefaultTimeout = 60 * time.Second
)

// Extractor sends a system and user prompt to a model and returns the
// validated two-section extraction. Any failure (transport, timeout, non-2xx,
// unparsable or invalid payload) yields nil; errors never cross this boundary.
type Extractor interface {
	Extract(ctx context.Context, system, user string) *core.Extraction
	Provider() string
	Model() string
}

// NewExtractor builds the configured extractor. It returns a nil Extractor
// and no error when the selected provider has no API key, so callers can run
// without a model and rely on the keyword fallback.
func NewExtractor(ctx context.Context, cfg config.AI, log *zerolog.Logger) (Extractor, error) {
	timeout := config.Duration(cfg.Timeout, DefaultTimeout)
	temperature := cfg.Temperature
	if temperature == 0 {
		temperature = DefaultTemperature
	}

	switch strings.ToLower(cfg.Provider) {
	case ProviderOpenAI, "":
		if cfg.OpenAI.APIKey == "" {
			return nil, nil
		}
		client := NewChatClient(cfg.OpenAI.APIKey, WithBaseURL(cfg.OpenAI.BaseURL))
		return NewOpenAIExtractor(client, cfg.OpenAI.Model,
			WithTimeout(timeout),
			WithTemperature(float64(temperature)),
			WithLogger(log),
		), nil
	case ProviderGemini:
		if cfg.Gemini.APIKey == "" {
			return nil, nil
		}
		ext, err := NewGeminiExtractor(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model,
			WithTimeout(timeout),
			WithTemperature(float64(temperature)),
			WithLogger(log),
		)
		if err != nil {
			return nil, err
		}
		return ext, nil
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

// options shared by both extractors
type options struct {
	timeout     time.Duration
	temperature float64
	log         *zerolog.Logger
}

// Option configures an extractor.
type Option func(*options)

// WithTimeout bounds each Extract call.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(o *options) { o.temperature = t }
}

// WithLogger sets the logger used for failure reporting.
func WithLogger(log *zerolog.Logger) Option {
	return func(o *options) {
		if log != nil {
			o.log = log
		}
	}
}

func buildOptions(opts []Option) options {
	nop := zerolog.Nop()
	o := options{
		timeout:     DefaultTimeout,
		temperature: DefaultTemperature,
		log:         &nop,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
