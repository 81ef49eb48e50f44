package llm

import (
	"context"
	"errors"
	"strings"

	"meridian/internal/core"
)

// DefaultOpenAIModel is used when no model is configured.
const DefaultOpenAIModel = "gpt-4.1-mini"

// completer is the part of ChatClient the extractor needs.
type completer interface {
	ChatCompletion(ctx context.Context, req ChatCompletionRequest) (*ChatCompletionResponse, error)
}

// OpenAIExtractor extracts digest stories through chat completions in JSON mode.
type OpenAIExtractor struct {
	client completer
	model  string
	opts   options
}

// NewOpenAIExtractor wraps a chat client.
func NewOpenAIExtractor(client completer, model string, opts ...Option) *OpenAIExtractor {
	if model == "" {
		model = DefaultOpenAIModel
	}
	return &OpenAIExtractor{client: client, model: model, opts: buildOptions(opts)}
}

func (e *OpenAIExtractor) Provider() string { return ProviderOpenAI }
func (e *OpenAIExtractor) Model() string    { return e.model }

// Extract implements Extractor.
func (e *OpenAIExtractor) Extract(ctx context.Context, system, user string) (result *core.Extraction) {
	defer func() {
		if r := recover(); r != nil {
			e.opts.log.Warn().Str("model", e.model).Interface("panic", r).Msg("openai extraction panicked")
			result = nil
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, e.opts.timeout)
	defer cancel()

	req := ChatCompletionRequest{
		Model: e.model,
		Messages: []Message{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		ResponseFormat: &ResponseFormat{Type: "json_object"},
	}
	if supportsTemperature(e.model) {
		t := e.opts.temperature
		req.Temperature = &t
	}

	resp, err := e.client.ChatCompletion(ctx, req)
	if err != nil {
		e.opts.log.Warn().Err(err).Str("model", e.model).
			Bool("timeout", errors.Is(err, context.DeadlineExceeded)).
			Msg("openai extraction failed")
		return nil
	}
	if len(resp.Choices) == 0 {
		e.opts.log.Warn().Str("model", e.model).Msg("openai returned no choices")
		return nil
	}

	extraction, err := ParseExtraction(resp.Choices[0].Message.Content)
	if err != nil {
		e.opts.log.Warn().Err(err).Str("model", e.model).Msg("openai output rejected")
		return nil
	}
	return extraction
}

// supportsTemperature reports whether the model accepts a temperature
// parameter. Reasoning models reject anything but the default.
func supportsTemperature(model string) bool {
	m := strings.ToLower(model)
	for _, prefix := range []string{"o1", "o3", "o4", "gpt-5"} {
		if strings.HasPrefix(m, prefix) {
			return false
		}
	}
	return true
}
