package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"meridian/internal/core"
)

// DefaultGeminiModel is used when no model is configured.
const DefaultGeminiModel = "gemini-flash-lite-latest"

// GeminiExtractor extracts digest stories with Gemini structured output.
type GeminiExtractor struct {
	gClient *genai.Client
	model   string
	opts    options
}

// NewGeminiExtractor creates a Gemini client for the Gemini API backend.
func NewGeminiExtractor(ctx context.Context, apiKey, model string, opts ...Option) (*GeminiExtractor, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required. Set GEMINI_API_KEY environment variable or ai.gemini.api_key in config file")
	}
	if model == "" {
		model = DefaultGeminiModel
	}

	gClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &GeminiExtractor{gClient: gClient, model: model, opts: buildOptions(opts)}, nil
}

func (e *GeminiExtractor) Provider() string { return ProviderGemini }
func (e *GeminiExtractor) Model() string    { return e.model }

// Extract implements Extractor.
func (e *GeminiExtractor) Extract(ctx context.Context, system, user string) (result *core.Extraction) {
	defer func() {
		if r := recover(); r != nil {
			e.opts.log.Warn().Str("model", e.model).Interface("panic", r).Msg("gemini extraction panicked")
			result = nil
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, e.opts.timeout)
	defer cancel()

	contents := []*genai.Content{{
		Parts: []*genai.Part{{Text: user}},
		Role:  "user",
	}}
	config := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: system}}},
		Temperature:       genai.Ptr(float32(e.opts.temperature)),
		ResponseMIMEType:  "application/json",
		ResponseSchema:    ExtractionSchema(),
	}

	resp, err := e.gClient.Models.GenerateContent(ctx, e.model, contents, config)
	if err != nil {
		e.opts.log.Warn().Err(err).Str("model", e.model).Msg("gemini extraction failed")
		return nil
	}

	extraction, err := ParseExtraction(resp.Text())
	if err != nil {
		e.opts.log.Warn().Err(err).Str("model", e.model).Msg("gemini output rejected")
		return nil
	}
	return extraction
}

// ExtractionSchema describes the two-section response for structured output.
func ExtractionSchema() *genai.Schema {
	story := &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"title": {
				Type:        genai.TypeString,
				Description: "Headline of the story",
			},
			"executiveSummary": {
				Type:        genai.TypeString,
				Description: "2-3 sentences on what happened",
			},
			"businessImpact": {
				Type:        genai.TypeString,
				Description: "1-2 sentences on why a bank executive should care",
			},
			"sourceUrl": {
				Type:        genai.TypeString,
				Description: "Absolute URL of the source article",
			},
		},
		Required: []string{"title", "executiveSummary", "businessImpact", "sourceUrl"},
	}

	section := func(desc string) *genai.Schema {
		return &genai.Schema{
			Type:        genai.TypeArray,
			Description: desc,
			Items:       story,
			MaxItems:    genai.Ptr[int64](core.MaxStoriesPerSection),
		}
	}

	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"bankingStories": section("AI developments relevant to banking and financial services"),
			"aiStories":      section("General AI developments"),
		},
		Required: []string{"bankingStories", "aiStories"},
	}
}
