// Package fetch downloads web pages and extracts readable text and links.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const (
	// DefaultUserAgent identifies the crawler to publishers.
	DefaultUserAgent = "meridian-bot/1.0"
	// DefaultTimeout bounds a single page fetch.
	DefaultTimeout = 30 * time.Second

	maxBodyBytes = 10 << 20
)

// Fetcher retrieves HTML pages
type Fetcher struct {
	client    *http.Client
	userAgent string
}

// Option configures a Fetcher
type Option func(*Fetcher)

// WithHTTPClient replaces the HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) {
		if c != nil {
			f.client = c
		}
	}
}

// WithUserAgent sets the User-Agent header
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) {
		if ua != "" {
			f.userAgent = ua
		}
	}
}

// WithTimeout sets the client timeout
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		if d > 0 {
			f.client.Timeout = d
		}
	}
}

// NewFetcher creates a fetcher with a 30s timeout
func NewFetcher(opts ...Option) *Fetcher {
	f := &Fetcher{
		client:    &http.Client{Timeout: DefaultTimeout},
		userAgent: DefaultUserAgent,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Get fetches pageURL and returns the body. Non-2xx responses are errors.
func (f *Fetcher) Get(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch URL %s: %w", pageURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("failed to fetch URL %s: status code %d", pageURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read response body from %s: %w", pageURL, err)
	}
	return string(body), nil
}

// ReadableText fetches pageURL and returns its readable text, cut to
// maxChars characters when maxChars is positive.
func (f *Fetcher) ReadableText(ctx context.Context, pageURL string, maxChars int) (string, error) {
	html, err := f.Get(ctx, pageURL)
	if err != nil {
		return "", err
	}
	text, err := ReadableText(html)
	if err != nil {
		return "", err
	}
	if maxChars > 0 {
		if r := []rune(text); len(r) > maxChars {
			text = string(r[:maxChars])
		}
	}
	return text, nil
}

var whitespace = regexp.MustCompile(`\s+`)

// ReadableText extracts the visible text of the main content of an HTML
// document: the first <main>, else the first <article>, else <body>. Scripts,
// styles and noscript blocks are dropped and whitespace is collapsed.
func ReadableText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}
	doc.Find("script, style, noscript").Remove()

	content := doc.Selection
	for _, selector := range []string{"main", "article", "body"} {
		if s := doc.Find(selector).First(); s.Length() > 0 {
			content = s
			break
		}
	}
	return collapse(spacedText(content)), nil
}

// PlainText strips markup from an HTML fragment such as a feed description.
func PlainText(fragment string) string {
	if !strings.ContainsAny(fragment, "<&") {
		return collapse(fragment)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return collapse(fragment)
	}
	return collapse(spacedText(doc.Selection))
}

// spacedText concatenates text nodes with spaces so adjacent block elements
// do not run together.
func spacedText(s *goquery.Selection) string {
	var b strings.Builder
	s.Contents().Each(func(_ int, node *goquery.Selection) {
		if goquery.NodeName(node) == "#text" {
			b.WriteString(node.Text())
		} else {
			b.WriteString(spacedText(node))
		}
		b.WriteByte(' ')
	})
	return b.String()
}

func collapse(s string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}

var slugPattern = regexp.MustCompile(`^[a-z0-9-]+$`)

// IssueLinks returns the URLs of pages directly below indexURL that are
// linked from html, such as https://news.smol.ai/issues/<slug> on the
// https://news.smol.ai/issues index. Links are lowercased, unique and kept in
// page order. Relative hrefs are resolved against indexURL.
func IssueLinks(html, indexURL string) ([]string, error) {
	base, err := url.Parse(strings.TrimRight(indexURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid index url %q: %w", indexURL, err)
	}
	prefix := strings.ToLower(base.Scheme + "://" + base.Host + base.Path + "/")

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	seen := make(map[string]bool)
	var out []string
	add := func(candidate string) {
		candidate = strings.ToLower(candidate)
		if !strings.HasPrefix(candidate, prefix) {
			return
		}
		if !slugPattern.MatchString(strings.TrimPrefix(candidate, prefix)) || seen[candidate] {
			return
		}
		seen[candidate] = true
		out = append(out, candidate)
	}

	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		resolved := base.ResolveReference(ref)
		resolved.RawQuery = ""
		resolved.Fragment = ""
		add(strings.TrimRight(resolved.String(), "/"))
	})

	// Pages rendered client side may only carry the links inside scripts.
	if len(out) == 0 {
		pattern := regexp.MustCompile(`(?i)` + regexp.QuoteMeta(prefix) + `[a-z0-9-]+`)
		for _, match := range pattern.FindAllString(html, -1) {
			add(match)
		}
	}
	return out, nil
}
