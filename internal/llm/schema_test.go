package llm

import (
	"errors"
	"strings"
	"testing"

	"meridian/internal/core"
)

const validStory = `{"title":"Bank adopts LLM","executiveSummary":"A bank rolled out an assistant.","businessImpact":"Faster service.","sourceUrl":"https://example.com/a"}`

func TestParseExtraction_Valid(t *testing.T) {
	raw := `{"bankingStories":[` + validStory + `],"aiStories":[],"notes":"ignored"}`

	ext, err := ParseExtraction(raw)
	if err != nil {
		t.Fatalf("ParseExtraction failed: %v", err)
	}
	if len(ext.BankingStories) != 1 || len(ext.AIStories) != 0 {
		t.Fatalf("unexpected sections: %+v", ext)
	}
	if ext.BankingStories[0].SourceURL != "https://example.com/a" {
		t.Errorf("sourceUrl = %q", ext.BankingStories[0].SourceURL)
	}
}

func TestParseExtraction_CodeFence(t *testing.T) {
	raw := "```json\n{\"bankingStories\":[],\"aiStories\":[" + validStory + "]}\n```"

	ext, err := ParseExtraction(raw)
	if err != nil {
		t.Fatalf("ParseExtraction failed: %v", err)
	}
	if len(ext.AIStories) != 1 {
		t.Errorf("ai stories = %d", len(ext.AIStories))
	}
}

func TestParseExtraction_Rejects(t *testing.T) {
	four := strings.Repeat(validStory+",", 3) + validStory

	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"not json", "sorry, I cannot help"},
		{"array top level", `[` + validStory + `]`},
		{"missing aiStories", `{"bankingStories":[]}`},
		{"missing bankingStories", `{"aiStories":[]}`},
		{"section not array", `{"bankingStories":{},"aiStories":[]}`},
		{"section null", `{"bankingStories":null,"aiStories":[]}`},
		{"too many stories", `{"bankingStories":[` + four + `],"aiStories":[]}`},
		{"story not object", `{"bankingStories":["headline"],"aiStories":[]}`},
		{"missing businessImpact", `{"bankingStories":[{"title":"t","executiveSummary":"s","sourceUrl":"https://a.example"}],"aiStories":[]}`},
		{"null businessImpact", `{"bankingStories":[{"title":"t","executiveSummary":"s","businessImpact":null,"sourceUrl":"https://a.example"}],"aiStories":[]}`},
		{"numeric title", `{"bankingStories":[{"title":5,"executiveSummary":"s","businessImpact":"i","sourceUrl":"https://a.example"}],"aiStories":[]}`},
		{"empty title", `{"bankingStories":[{"title":"  ","executiveSummary":"s","businessImpact":"i","sourceUrl":"https://a.example"}],"aiStories":[]}`},
		{"empty summary", `{"bankingStories":[{"title":"t","executiveSummary":"","businessImpact":"i","sourceUrl":"https://a.example"}],"aiStories":[]}`},
		{"relative url", `{"bankingStories":[{"title":"t","executiveSummary":"s","businessImpact":"i","sourceUrl":"/news/1"}],"aiStories":[]}`},
		{"one bad story rejects all", `{"bankingStories":[` + validStory + `,{"title":"t"}],"aiStories":[]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ext, err := ParseExtraction(tt.raw)
			if err == nil {
				t.Fatalf("expected rejection, got %+v", ext)
			}
			if !errors.Is(err, ErrInvalidExtraction) {
				t.Errorf("error should wrap ErrInvalidExtraction: %v", err)
			}
			if ext != nil {
				t.Errorf("no partial result expected")
			}
		})
	}
}

func TestParseExtraction_FullSection(t *testing.T) {
	stories := strings.TrimSuffix(strings.Repeat(validStory+",", core.MaxStoriesPerSection), ",")
	ext, err := ParseExtraction(`{"bankingStories":[` + stories + `],"aiStories":[]}`)
	if err != nil {
		t.Fatalf("ParseExtraction failed: %v", err)
	}
	if len(ext.BankingStories) != core.MaxStoriesPerSection {
		t.Errorf("banking stories = %d", len(ext.BankingStories))
	}
}

func TestParseExtraction_TrimsAndNamesField(t *testing.T) {
	ext, err := ParseExtraction(`{"bankingStories":[],"aiStories":[{"title":"  Model  ","executiveSummary":"s","businessImpact":"","sourceUrl":" https://a.example/x "}]}`)
	if err != nil {
		t.Fatalf("ParseExtraction failed: %v", err)
	}
	if got := ext.AIStories[0]; got.Title != "Model" || got.SourceURL != "https://a.example/x" {
		t.Errorf("story = %+v", got)
	}

	_, err = ParseExtraction(`{"bankingStories":[` + validStory + `,{"title":"t","executiveSummary":"s","businessImpact":"i","sourceUrl":"/news/1"}],"aiStories":[]}`)
	if err == nil || !strings.Contains(err.Error(), "bankingStories[1].sourceUrl") {
		t.Errorf("error should name the failing field, got %v", err)
	}
}

func TestExtractionSchema(t *testing.T) {
	schema := ExtractionSchema()
	for _, key := range []string{"bankingStories", "aiStories"} {
		section, ok := schema.Properties[key]
		if !ok {
			t.Fatalf("schema missing %s", key)
		}
		if section.MaxItems == nil || *section.MaxItems != 3 {
			t.Errorf("%s maxItems = %v", key, section.MaxItems)
		}
		if len(section.Items.Required) != 4 {
			t.Errorf("%s story required fields = %v", key, section.Items.Required)
		}
	}
}
