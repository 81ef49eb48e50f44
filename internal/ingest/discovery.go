package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultDiscoveryURL is the Exa search API.
	DefaultDiscoveryURL = "https://api.exa.ai"
	// DefaultDiscoveryQuery asks for the day's finance-relevant AI news.
	DefaultDiscoveryQuery = "Most important AI news in last 24 hours for fintech, banking, payments, risk, compliance, enterprise software"

	discoverySourceName = "Exa Discovery"
	discoverySourceURL  = "https://exa.ai"
)

// DiscoveryResult is one search hit.
type DiscoveryResult struct {
	Title         string `json:"title"`
	URL           string `json:"url"`
	Text          string `json:"text"`
	PublishedDate string `json:"publishedDate"`
}

type searchRequest struct {
	Query              string `json:"query"`
	NumResults         int    `json:"numResults"`
	StartPublishedDate string `json:"startPublishedDate"`
	Type               string `json:"type"`
}

type searchResponse struct {
	Results []DiscoveryResult `json:"results"`
}

// DiscoveryClient searches the Exa API for recent articles.
type DiscoveryClient struct {
	apiKey     string
	baseURL    string
	query      string
	numResults int
	httpClient *http.Client
}

// NewDiscoveryClient creates a client. Empty values fall back to defaults.
func NewDiscoveryClient(apiKey, baseURL, query string, numResults int) *DiscoveryClient {
	if baseURL == "" {
		baseURL = DefaultDiscoveryURL
	}
	if query == "" {
		query = DefaultDiscoveryQuery
	}
	if numResults <= 0 {
		numResults = 25
	}
	return &DiscoveryClient{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		query:      query,
		numResults: numResults,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Search returns articles published after since.
func (c *DiscoveryClient) Search(ctx context.Context, since time.Time) ([]DiscoveryResult, error) {
	body, err := json.Marshal(searchRequest{
		Query:              c.query,
		NumResults:         c.numResults,
		StartPublishedDate: since.UTC().Format(time.RFC3339),
		Type:               "keyword",
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search returned status %d", resp.StatusCode)
	}

	var out searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return out.Results, nil
}
