package relevance

import (
	"testing"
	"time"

	"meridian/internal/core"
)

var testNow = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

func hoursAgo(h float64) *time.Time {
	t := testNow.Add(-time.Duration(h * float64(time.Hour)))
	return &t
}

func newsItem(title, url string, published *time.Time) core.NewsItem {
	return core.NewsItem{
		Title:       title,
		URL:         url,
		SourceName:  "Wire",
		PublishedAt: published,
	}
}

func newTestSelector() *Selector {
	return NewSelector(
		WithClock(func() time.Time { return testNow }),
		WithPrimarySource("Smol AI Issues"),
	)
}

func TestScore(t *testing.T) {
	hits := Score(newsItem("OpenAI and the bank", "https://example.com/a", nil))
	if hits.AI != 1 || hits.Banking != 1 || hits.Exclude != 0 || hits.ExcludedURL {
		t.Fatalf("unexpected hits: %+v", hits)
	}
	if got := hits.BankingScore(); got != 7 {
		t.Errorf("BankingScore() = %d, want 7", got)
	}
}

func TestScore_LeadingAIKeyword(t *testing.T) {
	hits := Score(newsItem("AI reshapes lending", "https://example.com/a", nil))
	if hits.AI != 1 {
		t.Errorf("expected padded ' ai ' to match a leading word, got %+v", hits)
	}
}

func TestScore_Penalties(t *testing.T) {
	hits := Hits{AI: 1, Banking: 1, Exclude: 2, ExcludedURL: true}
	if got := hits.BankingScore(); got != 7-10-100 {
		t.Errorf("BankingScore() = %d", got)
	}
	if hits.QualifiesBanking() || hits.QualifiesAI() {
		t.Error("penalised item must not qualify")
	}
}

func TestBankingPool_RanksByScore(t *testing.T) {
	s := newTestSelector()
	items := []core.NewsItem{
		newsItem("OpenAI and the bank", "https://example.com/low", hoursAgo(1)),
		newsItem("OpenAI and the bank loan mortgage", "https://example.com/high", hoursAgo(2)),
		newsItem("OpenAI launches model", "https://example.com/ai-only", hoursAgo(1)),
	}

	pool := s.BankingPool(items)
	if len(pool) != 2 {
		t.Fatalf("pool size = %d, want 2", len(pool))
	}
	if pool[0].URL != "https://example.com/high" {
		t.Errorf("highest score should rank first, got %s", pool[0].URL)
	}
}

func TestBankingPool_StableTies(t *testing.T) {
	s := newTestSelector()
	items := []core.NewsItem{
		newsItem("OpenAI and the bank", "https://example.com/1", hoursAgo(1)),
		newsItem("OpenAI and the bank", "https://example.com/2", hoursAgo(1)),
		newsItem("OpenAI and the bank", "https://example.com/3", hoursAgo(1)),
	}

	pool := s.BankingPool(items)
	for i, item := range pool {
		want := items[i].URL
		if item.URL != want {
			t.Errorf("position %d = %s, want %s", i, item.URL, want)
		}
	}
}

func TestBankingPool_Exclusions(t *testing.T) {
	s := newTestSelector()
	items := []core.NewsItem{
		newsItem("OpenAI bank film premiere", "https://example.com/film", hoursAgo(1)),
		newsItem("OpenAI and the bank", "https://www.youtube.com/watch?v=1", hoursAgo(1)),
		newsItem("OpenAI and the bank", "https://example.com/podcast/ep1", hoursAgo(1)),
	}
	if pool := s.BankingPool(items); len(pool) != 0 {
		t.Errorf("expected no candidates, got %d", len(pool))
	}
}

func TestBankingPool_RequiresAIKeyword(t *testing.T) {
	s := newTestSelector()
	items := []core.NewsItem{
		newsItem("Bank tightens fraud checks on loan applications", "https://example.com/banking-only", hoursAgo(1)),
	}
	if pool := s.BankingPool(items); len(pool) != 0 {
		t.Errorf("banking-only item should not qualify, got %+v", pool)
	}
}

func TestAIPool_ExcludedURL(t *testing.T) {
	s := newTestSelector()
	items := []core.NewsItem{
		newsItem("OpenAI and the bank", "https://example.com/podcast/ep1", hoursAgo(1)),
	}
	if pool := s.AIPool(items); len(pool) != 0 {
		t.Errorf("excluded URL leaked into AI pool: %+v", pool)
	}
}

func TestIsRecent(t *testing.T) {
	s := newTestSelector()
	future := testNow.Add(time.Hour)

	tests := []struct {
		name      string
		published *time.Time
		want      bool
	}{
		{"one hour old", hoursAgo(1), true},
		{"exactly at lookback", hoursAgo(72), true},
		{"past lookback", hoursAgo(73), false},
		{"in the future", &future, false},
		{"no date", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.IsRecent(newsItem("x", "https://example.com", tt.published))
			if got != tt.want {
				t.Errorf("IsRecent() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRecencyGateAppliesToPools(t *testing.T) {
	s := newTestSelector()
	items := []core.NewsItem{
		newsItem("OpenAI and the bank", "https://example.com/old", hoursAgo(100)),
		newsItem("OpenAI and the bank", "https://example.com/undated", nil),
	}
	pools := s.Pools(items)
	if len(pools.Banking) != 0 || len(pools.AI) != 0 {
		t.Errorf("stale items leaked into pools: %+v", pools)
	}
}

func TestAIPool_RanksByHits(t *testing.T) {
	s := newTestSelector()
	items := []core.NewsItem{
		newsItem("OpenAI update", "https://example.com/one", hoursAgo(1)),
		newsItem("ChatGPT versus Gemini versus Copilot", "https://example.com/three", hoursAgo(1)),
		newsItem("Quarterly earnings", "https://example.com/none", hoursAgo(1)),
	}

	pool := s.AIPool(items)
	if len(pool) != 2 {
		t.Fatalf("pool size = %d, want 2", len(pool))
	}
	if pool[0].URL != "https://example.com/three" {
		t.Errorf("most AI hits should rank first, got %s", pool[0].URL)
	}
}

func TestWithLookback(t *testing.T) {
	s := NewSelector(WithClock(func() time.Time { return testNow }), WithLookback(24*time.Hour))
	if s.IsRecent(newsItem("x", "https://example.com", hoursAgo(30))) {
		t.Error("30h old item should be outside a 24h lookback")
	}
	if s.Lookback() != 24*time.Hour {
		t.Errorf("Lookback() = %v", s.Lookback())
	}
}

func TestSupplementary(t *testing.T) {
	s := newTestSelector()
	primary := newsItem("Issue", "https://news.smol.ai/issues/26-10-19", hoursAgo(1))
	primary.SourceName = "Smol AI Issues"

	items := []core.NewsItem{
		primary,
		newsItem("Paywalled", "https://www.ft.com/content/1", hoursAgo(1)),
		newsItem("Video", "https://example.com/video/1", hoursAgo(1)),
		newsItem("Keep me", "https://example.com/keep", hoursAgo(1)),
	}

	got := s.Supplementary(items)
	if len(got) != 1 || got[0].URL != "https://example.com/keep" {
		t.Errorf("Supplementary() = %+v", got)
	}
}
