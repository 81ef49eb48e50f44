package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"meridian/internal/config"
)

func chatResponse(content string) map[string]any {
	return map[string]any{
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]any{"role": "assistant", "content": content},
		}},
	}
}

func TestOpenAIExtractor_Success(t *testing.T) {
	var captured ChatCompletionRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("authorization = %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(chatResponse(`{"bankingStories":[` + validStory + `],"aiStories":[]}`))
	}))
	defer server.Close()

	client := NewChatClient("sk-test", WithBaseURL(server.URL))
	ext := NewOpenAIExtractor(client, "gpt-4.1-mini").Extract(context.Background(), "system prompt", "user content")

	if ext == nil {
		t.Fatal("expected extraction")
	}
	if len(ext.BankingStories) != 1 {
		t.Errorf("banking stories = %d", len(ext.BankingStories))
	}
	if captured.ResponseFormat == nil || captured.ResponseFormat.Type != "json_object" {
		t.Errorf("response_format = %+v", captured.ResponseFormat)
	}
	if captured.Temperature == nil || *captured.Temperature != DefaultTemperature {
		t.Errorf("temperature = %v", captured.Temperature)
	}
	if len(captured.Messages) != 2 || captured.Messages[0].Role != "system" || captured.Messages[1].Content != "user content" {
		t.Errorf("messages = %+v", captured.Messages)
	}
}

func TestOpenAIExtractor_OmitsTemperatureForReasoningModels(t *testing.T) {
	var raw map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&raw)
		_ = json.NewEncoder(w).Encode(chatResponse(`{"bankingStories":[],"aiStories":[]}`))
	}))
	defer server.Close()

	client := NewChatClient("sk-test", WithBaseURL(server.URL))
	ext := NewOpenAIExtractor(client, "o4-mini").Extract(context.Background(), "s", "u")
	if ext == nil {
		t.Fatal("expected extraction")
	}
	if _, ok := raw["temperature"]; ok {
		t.Errorf("temperature should be omitted: %v", raw)
	}
}

func TestOpenAIExtractor_FailuresReturnNil(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
		}},
		{"garbage body", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("<html>gateway</html>"))
		}},
		{"no choices", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"choices":[]}`))
		}},
		{"schema violation", func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(chatResponse(`{"bankingStories":[{"title":"only"}],"aiStories":[]}`))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			client := NewChatClient("sk-test", WithBaseURL(server.URL))
			if ext := NewOpenAIExtractor(client, "").Extract(context.Background(), "s", "u"); ext != nil {
				t.Errorf("expected nil, got %+v", ext)
			}
		})
	}
}

func TestOpenAIExtractor_Timeout(t *testing.T) {
	done := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-done:
		}
	}))
	defer server.Close()
	defer close(done)

	client := NewChatClient("sk-test", WithBaseURL(server.URL))
	ext := NewOpenAIExtractor(client, "", WithTimeout(50*time.Millisecond)).Extract(context.Background(), "s", "u")
	if ext != nil {
		t.Errorf("expected nil on timeout, got %+v", ext)
	}
}

type panickingCompleter struct{}

func (panickingCompleter) ChatCompletion(ctx context.Context, req ChatCompletionRequest) (*ChatCompletionResponse, error) {
	panic("boom")
}

func TestOpenAIExtractor_RecoversPanics(t *testing.T) {
	if ext := NewOpenAIExtractor(panickingCompleter{}, "").Extract(context.Background(), "s", "u"); ext != nil {
		t.Errorf("expected nil, got %+v", ext)
	}
}

func TestChatClient_MissingKey(t *testing.T) {
	_, err := NewChatClient("").ChatCompletion(context.Background(), ChatCompletionRequest{})
	if err == nil {
		t.Error("expected error without API key")
	}
}

func TestNewExtractor(t *testing.T) {
	ctx := context.Background()

	ext, err := NewExtractor(ctx, config.AI{Provider: "openai"}, nil)
	if err != nil || ext != nil {
		t.Errorf("no key should yield nil extractor, got %v, %v", ext, err)
	}

	ext, err = NewExtractor(ctx, config.AI{Provider: "openai", OpenAI: config.OpenAIConfig{APIKey: "sk", Model: "gpt-4o"}}, nil)
	if err != nil || ext == nil {
		t.Fatalf("expected openai extractor, got %v, %v", ext, err)
	}
	if ext.Provider() != ProviderOpenAI || ext.Model() != "gpt-4o" {
		t.Errorf("identity = %s/%s", ext.Provider(), ext.Model())
	}

	if _, err := NewExtractor(ctx, config.AI{Provider: "mystery"}, nil); err == nil {
		t.Error("unknown provider should error")
	}
}

func TestSupportsTemperature(t *testing.T) {
	cases := map[string]bool{
		"gpt-4.1-mini": true,
		"gpt-4o":       true,
		"o1-preview":   false,
		"o3-mini":      false,
		"GPT-5":        false,
	}
	for model, want := range cases {
		if got := supportsTemperature(model); got != want {
			t.Errorf("supportsTemperature(%q) = %v, want %v", model, got, want)
		}
	}
}
