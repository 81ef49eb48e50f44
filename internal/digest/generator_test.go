package digest

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"meridian/internal/core"
	"meridian/internal/links"
)

var testNow = time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)

const issueURL = "https://news.smol.ai/issues/26-10-19-agents"

type extractCall struct {
	system string
	user   string
}

type fakeExtractor struct {
	responses []*core.Extraction
	calls     []extractCall
}

func (f *fakeExtractor) Extract(ctx context.Context, system, user string) *core.Extraction {
	f.calls = append(f.calls, extractCall{system: system, user: user})
	i := len(f.calls) - 1
	if i < len(f.responses) {
		return f.responses[i]
	}
	return nil
}

func (f *fakeExtractor) Provider() string { return "fake" }
func (f *fakeExtractor) Model() string    { return "fake-1" }

type fakeItems struct {
	items []core.NewsItem
	err   error
	hours int
}

func (f *fakeItems) ListSince(ctx context.Context, hours int) ([]core.NewsItem, error) {
	f.hours = hours
	return f.items, f.err
}

type fakeStore struct {
	date     string
	category string
	content  core.DailyDigest
	meta     core.GenerationMeta
	err      error
}

func (f *fakeStore) Upsert(ctx context.Context, date, category string, content core.DailyDigest, meta core.GenerationMeta) (*core.Digest, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.date, f.category, f.content, f.meta = date, category, content, meta
	return &core.Digest{ID: "d1", DigestDate: date, Category: category, Status: core.StatusDraft, Content: content, Meta: meta}, nil
}

func ago(d time.Duration) *time.Time {
	t := testNow.Add(-d)
	return &t
}

func newsletterItem(body string) core.NewsItem {
	return core.NewsItem{
		Title:       "26 10 19 agents",
		URL:         issueURL,
		Summary:     body,
		PublishedAt: ago(2 * time.Hour),
		SourceName:  "Smol AI Issues",
	}
}

func bankingItem() core.NewsItem {
	return core.NewsItem{
		Title:       "JPMorgan deploys generative AI for fraud detection",
		URL:         "https://www.bankingdive.com/news/jpmorgan-ai-fraud",
		Summary:     "The bank says the LLM flags card fraud in real time.",
		PublishedAt: ago(5 * time.Hour),
		SourceName:  "Banking Dive",
	}
}

func aiItem() core.NewsItem {
	return core.NewsItem{
		Title:       "OpenAI releases new reasoning model",
		URL:         "https://techcrunch.com/openai-model",
		Summary:     "The model improves machine learning benchmarks.",
		PublishedAt: ago(3 * time.Hour),
	}
}

func story(title, url string) core.DigestStory {
	return core.DigestStory{Title: title, ExecutiveSummary: "Summary.", BusinessImpact: "Impact.", SourceURL: url}
}

func newTestGenerator(items []core.NewsItem, ext *fakeExtractor, store *fakeStore, opts ...Option) *Generator {
	opts = append([]Option{WithClock(func() time.Time { return testNow })}, opts...)
	if ext == nil {
		return NewGenerator(&fakeItems{items: items}, store, nil, opts...)
	}
	return NewGenerator(&fakeItems{items: items}, store, ext, opts...)
}

func TestCompose_FallbackWithoutExtractor(t *testing.T) {
	paywalled := bankingItem()
	paywalled.URL = "https://www.ft.com/content/bank-ai"
	stale := bankingItem()
	stale.URL = "https://example.com/old"
	stale.PublishedAt = ago(73 * time.Hour)

	items := []core.NewsItem{newsletterItem("body"), bankingItem(), aiItem(), paywalled, stale}
	g := newTestGenerator(items, nil, &fakeStore{})

	content, meta := g.Compose(context.Background(), "2026-10-19", items)

	if !meta.Fallback {
		t.Error("expected fallback")
	}
	if meta.Provider != "" {
		t.Errorf("provider = %q, want empty", meta.Provider)
	}
	if meta.TotalItems != 5 || meta.PrimaryItems != 1 || meta.RSSItems != 3 {
		t.Errorf("meta counts = %+v", meta)
	}
	if len(content.BankingStories) != 1 || content.BankingStories[0].SourceURL != bankingItem().URL {
		t.Fatalf("banking = %+v", content.BankingStories)
	}
	if len(content.AIStories) != 1 || content.AIStories[0].SourceURL != aiItem().URL {
		t.Fatalf("ai = %+v", content.AIStories)
	}
	if content.BankingStories[0].BusinessImpact != fallbackImpact {
		t.Errorf("impact = %q", content.BankingStories[0].BusinessImpact)
	}
	want := "JPMorgan deploys generative AI for · OpenAI releases new reasoning model"
	if content.BriefSummary != want {
		t.Errorf("brief = %q, want %q", content.BriefSummary, want)
	}
}

func TestCompose_TwoPasses(t *testing.T) {
	ext := &fakeExtractor{responses: []*core.Extraction{
		{
			BankingStories: []core.DigestStory{story("Bank agents go live", "https://elsewhere.com/made-up")},
			AIStories:      []core.DigestStory{story("Agents everywhere", "https://other.com/x")},
		},
		{
			BankingStories: []core.DigestStory{story("JPMorgan fights fraud with AI", bankingItem().URL)},
			AIStories:      []core.DigestStory{story("OpenAI reasoning model", aiItem().URL)},
		},
	}}
	items := []core.NewsItem{newsletterItem("newsletter body"), bankingItem(), aiItem()}
	g := newTestGenerator(items, ext, &fakeStore{})

	content, meta := g.Compose(context.Background(), "2026-10-19", items)

	if len(ext.calls) != 2 {
		t.Fatalf("extract calls = %d, want 2", len(ext.calls))
	}
	if !strings.Contains(ext.calls[0].system, issueURL) {
		t.Error("newsletter prompt should carry the issue URL")
	}
	if ext.calls[0].user != NewsletterPayload("newsletter body") {
		t.Errorf("newsletter payload = %q", ext.calls[0].user)
	}
	// Both newsletter stories point at the issue, so only the banking one survives.
	if !strings.Contains(ext.calls[1].system, "Open slots: 2 bankingStories, 3 aiStories.") {
		t.Errorf("second prompt slots wrong: %q", ext.calls[1].system[len(ext.calls[1].system)-60:])
	}

	if meta.Fallback {
		t.Error("unexpected fallback")
	}
	if meta.PrimaryBanking != 1 || meta.PrimaryAI != 1 || meta.RSSBanking != 1 || meta.RSSAI != 1 {
		t.Errorf("meta pass counts = %+v", meta)
	}
	if meta.Provider != "fake" || meta.Model != "fake-1" {
		t.Errorf("provider/model = %s/%s", meta.Provider, meta.Model)
	}

	if len(content.BankingStories) != 2 {
		t.Fatalf("banking = %+v", content.BankingStories)
	}
	if content.BankingStories[0].SourceURL != issueURL || content.BankingStories[0].Title != "Bank agents go live" {
		t.Errorf("first banking story = %+v", content.BankingStories[0])
	}
	if content.BankingStories[1].SourceURL != bankingItem().URL {
		t.Errorf("second banking story = %+v", content.BankingStories[1])
	}
	if len(content.AIStories) != 1 || content.AIStories[0].SourceURL != aiItem().URL {
		t.Errorf("ai = %+v", content.AIStories)
	}
	assertNoDuplicateURLs(t, content)
}

func TestCompose_CandidatePayload(t *testing.T) {
	long := bankingItem()
	long.Summary = "The bank rolls out an LLM. " + strings.Repeat("x", 600)
	unnamed := aiItem()
	unnamed.SourceName = ""
	roundup := core.NewsItem{
		Title:       "LLM roundup",
		URL:         issueURL + "/",
		PublishedAt: ago(time.Hour),
		SourceName:  "AINews RSS",
	}

	ext := &fakeExtractor{responses: []*core.Extraction{
		{BankingStories: []core.DigestStory{story("Issue story", issueURL)}, AIStories: []core.DigestStory{}},
		nil,
	}}
	items := []core.NewsItem{newsletterItem("body"), long, unnamed, roundup}
	g := newTestGenerator(items, ext, &fakeStore{})
	g.Compose(context.Background(), "2026-10-19", items)

	if len(ext.calls) != 2 {
		t.Fatalf("extract calls = %d", len(ext.calls))
	}
	var payload struct {
		Items []Candidate `json:"items"`
	}
	if err := json.Unmarshal([]byte(ext.calls[1].user), &payload); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if len(payload.Items) != 2 {
		t.Fatalf("candidates = %+v", payload.Items)
	}

	first, second := payload.Items[0], payload.Items[1]
	if first.Idx != 1 || first.Pool != "banking" || first.URL != long.URL {
		t.Errorf("first candidate = %+v", first)
	}
	if n := utf8.RuneCountInString(first.Summary); n != 350 {
		t.Errorf("summary length = %d, want 350", n)
	}
	if second.Idx != 2 || second.Pool != "ai" || second.Source != "unknown" {
		t.Errorf("second candidate = %+v", second)
	}
	for _, c := range payload.Items {
		if links.Normalize(c.URL) == links.Normalize(issueURL) {
			t.Error("item used by the newsletter pass must not be offered again")
		}
	}
}

func TestCompose_CandidateCap(t *testing.T) {
	var items []core.NewsItem
	for i := 0; i < 5; i++ {
		item := aiItem()
		item.URL = "https://example.com/ai/" + string(rune('a'+i))
		items = append(items, item)
	}
	ext := &fakeExtractor{}
	cfg := DefaultConfig()
	cfg.MaxCandidates = 3
	g := newTestGenerator(items, ext, &fakeStore{}, WithConfig(cfg))
	g.Compose(context.Background(), "2026-10-19", items)

	if len(ext.calls) != 1 {
		t.Fatalf("extract calls = %d, want 1 (no newsletter)", len(ext.calls))
	}
	var payload struct {
		Items []Candidate `json:"items"`
	}
	if err := json.Unmarshal([]byte(ext.calls[0].user), &payload); err != nil {
		t.Fatal(err)
	}
	if len(payload.Items) != 3 {
		t.Errorf("candidates = %d, want 3", len(payload.Items))
	}
}

func TestCompose_NewsletterTruncated(t *testing.T) {
	body := strings.Repeat("é", 20000)
	ext := &fakeExtractor{}
	items := []core.NewsItem{newsletterItem(body)}
	g := newTestGenerator(items, ext, &fakeStore{})
	g.Compose(context.Background(), "2026-10-19", items)

	if len(ext.calls) != 1 {
		t.Fatalf("extract calls = %d, want 1", len(ext.calls))
	}
	text := strings.TrimPrefix(ext.calls[0].user, NewsletterPayload(""))
	if n := utf8.RuneCountInString(text); n != 18000 {
		t.Errorf("newsletter runes = %d, want 18000", n)
	}
	if !utf8.ValidString(text) {
		t.Error("truncation split a rune")
	}
}

func TestCompose_NewestIssueWins(t *testing.T) {
	older := newsletterItem("older body")
	older.URL = "https://news.smol.ai/issues/26-10-17-older"
	older.PublishedAt = ago(48 * time.Hour)

	ext := &fakeExtractor{}
	items := []core.NewsItem{older, newsletterItem("newest body")}
	g := newTestGenerator(items, ext, &fakeStore{})
	g.Compose(context.Background(), "2026-10-19", items)

	if len(ext.calls) == 0 || !strings.Contains(ext.calls[0].system, issueURL) {
		t.Fatal("newsletter pass should use the newest issue")
	}
}

func TestCompose_ModelFailuresFallBack(t *testing.T) {
	ext := &fakeExtractor{}
	items := []core.NewsItem{newsletterItem("body"), bankingItem(), aiItem()}
	g := newTestGenerator(items, ext, &fakeStore{})

	content, meta := g.Compose(context.Background(), "2026-10-19", items)

	if len(ext.calls) != 2 {
		t.Errorf("extract calls = %d, want 2", len(ext.calls))
	}
	if !meta.Fallback {
		t.Error("expected fallback")
	}
	if content.TotalStories() == 0 {
		t.Error("fallback must not be empty when candidates exist")
	}
	assertNoDuplicateURLs(t, content)
}

func TestCompose_NoCandidatesSkipsSecondPass(t *testing.T) {
	ext := &fakeExtractor{}
	items := []core.NewsItem{newsletterItem("body")}
	g := newTestGenerator(items, ext, &fakeStore{})

	content, meta := g.Compose(context.Background(), "2026-10-19", items)

	if len(ext.calls) != 1 {
		t.Errorf("extract calls = %d, want 1", len(ext.calls))
	}
	if !meta.Fallback || content.TotalStories() != 0 {
		t.Errorf("content = %+v meta = %+v", content, meta)
	}
	if content.BankingStories == nil || content.AIStories == nil {
		t.Error("sections should be empty slices, not nil")
	}
}

func TestGenerate_StoresDigest(t *testing.T) {
	store := &fakeStore{}
	source := &fakeItems{items: []core.NewsItem{bankingItem()}}
	cfg := DefaultConfig()
	cfg.Location = time.FixedZone("EST", -5*60*60)
	now := time.Date(2026, 10, 19, 2, 0, 0, 0, time.UTC)

	g := NewGenerator(source, store, nil, WithConfig(cfg), WithClock(func() time.Time { return now }))
	d, err := g.Generate(context.Background())
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if source.hours != 72 {
		t.Errorf("lookback hours = %d", source.hours)
	}
	if store.date != "2026-10-18" || d.DigestDate != "2026-10-18" {
		t.Errorf("date = %q, want local calendar day", store.date)
	}
	if store.category != core.DefaultCategory || store.content.Category != core.DefaultCategory {
		t.Errorf("category = %q", store.category)
	}
}

func TestGenerate_Errors(t *testing.T) {
	listErr := errors.New("db down")
	g := NewGenerator(&fakeItems{err: listErr}, &fakeStore{}, nil)
	if _, err := g.Generate(context.Background()); !errors.Is(err, listErr) {
		t.Errorf("list error = %v", err)
	}

	storeErr := errors.New("constraint")
	g = NewGenerator(&fakeItems{}, &fakeStore{err: storeErr}, nil)
	if _, err := g.Generate(context.Background()); !errors.Is(err, storeErr) {
		t.Errorf("store error = %v", err)
	}
}

func assertNoDuplicateURLs(t *testing.T, d core.DailyDigest) {
	t.Helper()
	seen := map[string]bool{}
	for _, s := range concat(d.BankingStories, d.AIStories) {
		key := links.Normalize(s.SourceURL)
		if seen[key] {
			t.Errorf("duplicate story URL %s", s.SourceURL)
		}
		seen[key] = true
	}
	if len(d.BankingStories) > core.MaxStoriesPerSection || len(d.AIStories) > core.MaxStoriesPerSection {
		t.Errorf("section over cap: %d/%d", len(d.BankingStories), len(d.AIStories))
	}
}
