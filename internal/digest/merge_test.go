package digest

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"meridian/internal/core"
)

func titles(stories []core.DigestStory) []string {
	out := make([]string, len(stories))
	for i, s := range stories {
		out[i] = s.Title
	}
	return out
}

func TestMerge_PrimaryFirstAndCapped(t *testing.T) {
	primary := core.Extraction{BankingStories: []core.DigestStory{
		story("P1", "https://a.com/1"),
		story("P2", "https://a.com/2"),
	}}
	supplementary := core.Extraction{BankingStories: []core.DigestStory{
		story("S1", "https://b.com/1"),
		story("S2", "https://b.com/2"),
	}}

	got := titles(Merge(primary, supplementary).BankingStories)
	want := []string{"P1", "P2", "S1"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("banking = %v, want %v", got, want)
	}
}

func TestMerge_Dedupe(t *testing.T) {
	primary := core.Extraction{
		BankingStories: []core.DigestStory{story("P1", "https://a.com/1/")},
		AIStories:      []core.DigestStory{story("A1", "https://a.com/1#comments")},
	}
	supplementary := core.Extraction{
		BankingStories: []core.DigestStory{story("S1", "https://a.com/1?utm_source=x"), story("S2", "https://b.com")},
		AIStories:      []core.DigestStory{story("A2", "https://c.com"), story("A3", "https://c.com:443/")},
	}

	merged := Merge(primary, supplementary)
	if got := titles(merged.BankingStories); strings.Join(got, ",") != "P1,S2" {
		t.Errorf("banking = %v", got)
	}
	if got := titles(merged.AIStories); strings.Join(got, ",") != "A2" {
		t.Errorf("ai = %v (story already in banking must be dropped)", got)
	}
}

func TestMerge_TitleKeyWhenURLEmpty(t *testing.T) {
	merged := Merge(core.Extraction{BankingStories: []core.DigestStory{
		story("Same Title", ""),
		story("  same title ", ""),
		story("Other", ""),
	}}, core.Extraction{})

	if got := titles(merged.BankingStories); len(got) != 2 {
		t.Errorf("banking = %v", got)
	}
}

func TestMerge_NeverExceedsCap(t *testing.T) {
	var many []core.DigestStory
	for i := 0; i < 10; i++ {
		many = append(many, story(fmt.Sprintf("S%d", i), fmt.Sprintf("https://x.com/%d", i)))
	}
	merged := Merge(core.Extraction{BankingStories: many, AIStories: many[5:]}, core.Extraction{AIStories: many})
	if len(merged.BankingStories) != 3 || len(merged.AIStories) != 3 {
		t.Errorf("sizes = %d/%d", len(merged.BankingStories), len(merged.AIStories))
	}
	if got := titles(merged.AIStories); strings.Join(got, ",") != "S5,S6,S7" {
		t.Errorf("ai = %v", got)
	}
}

func TestComposeFallback(t *testing.T) {
	long := core.NewsItem{Title: "Long", URL: "https://a.com/long", Summary: strings.Repeat("ü", 400)}
	empty := core.NewsItem{Title: "Empty", URL: "https://a.com/empty"}
	dup := core.NewsItem{Title: "Dup", URL: "https://a.com/long/"}
	fourth := core.NewsItem{Title: "Fourth", URL: "https://a.com/fourth", Summary: "s"}
	extra := core.NewsItem{Title: "Extra", URL: "https://a.com/extra", Summary: "s"}
	ai := core.NewsItem{Title: "AI", URL: "https://b.com/ai", Summary: "s"}

	d := ComposeFallback("2026-10-19", []core.NewsItem{long, empty, dup, fourth, extra}, []core.NewsItem{extra, ai})

	if d.Date != "2026-10-19" || d.Category != core.DefaultCategory {
		t.Errorf("header = %s/%s", d.Date, d.Category)
	}
	if got := titles(d.BankingStories); strings.Join(got, ",") != "Long,Empty,Fourth" {
		t.Errorf("banking = %v", got)
	}
	if n := utf8.RuneCountInString(d.BankingStories[0].ExecutiveSummary); n != 300 {
		t.Errorf("summary runes = %d, want 300", n)
	}
	if d.BankingStories[1].ExecutiveSummary != noSummary {
		t.Errorf("empty summary = %q", d.BankingStories[1].ExecutiveSummary)
	}
	// "Extra" was in the banking pool even though it did not make the cut.
	if got := titles(d.AIStories); strings.Join(got, ",") != "AI" {
		t.Errorf("ai = %v", got)
	}
	for _, s := range d.AIStories {
		if s.BusinessImpact != fallbackImpact {
			t.Errorf("impact = %q", s.BusinessImpact)
		}
	}
}

func TestComposeFallback_Empty(t *testing.T) {
	d := ComposeFallback("2026-10-19", nil, nil)
	if d.TotalStories() != 0 {
		t.Errorf("stories = %d", d.TotalStories())
	}
}

func TestBuildBriefSummary(t *testing.T) {
	tests := []struct {
		name    string
		banking []core.DigestStory
		ai      []core.DigestStory
		want    string
	}{
		{
			name: "banking first, three headlines",
			banking: []core.DigestStory{
				story("HSBC pilots agentic AI across trade finance desks", ""),
			},
			ai: []core.DigestStory{
				story("Anthropic ships new model", ""),
				story("Gemini adds memory:", ""),
				story("Ignored fourth", ""),
			},
			want: "HSBC pilots agentic AI across · Anthropic ships new model · Gemini adds memory",
		},
		{name: "nothing", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BuildBriefSummary(tt.banking, tt.ai)
			if got != tt.want {
				t.Errorf("BuildBriefSummary() = %q, want %q", got, tt.want)
			}
			if got != "" && NeedsBrief(got) {
				t.Errorf("generated brief %q should not need a rebuild", got)
			}
		})
	}
}

func TestNeedsBrief(t *testing.T) {
	if !NeedsBrief("") {
		t.Error("empty brief needs rebuilding")
	}
	if !NeedsBrief(strings.Repeat("word ", 16)) {
		t.Error("16 words is too long")
	}
	if NeedsBrief("a b c d e · f g h i j · k l m n o") {
		t.Error("15 words with separators is fine")
	}
}

type fakeBriefStore struct {
	digests []core.Digest
	updated map[string]string
}

func (f *fakeBriefStore) ListRecent(ctx context.Context, limit int) ([]core.Digest, error) {
	return f.digests, nil
}

func (f *fakeBriefStore) UpdateContent(ctx context.Context, id string, content core.DailyDigest) error {
	f.updated[id] = content.BriefSummary
	return nil
}

func TestBackfillBriefs(t *testing.T) {
	store := &fakeBriefStore{
		updated: map[string]string{},
		digests: []core.Digest{
			{ID: "missing", Content: core.DailyDigest{BankingStories: []core.DigestStory{story("Bank news", "")}}},
			{ID: "fine", Content: core.DailyDigest{BriefSummary: "Short one", BankingStories: []core.DigestStory{story("X", "")}}},
			{ID: "long", Content: core.DailyDigest{BriefSummary: strings.Repeat("w ", 20), AIStories: []core.DigestStory{story("AI news today", "")}}},
			{ID: "empty", Content: core.DailyDigest{}},
		},
	}

	updated, skipped, err := BackfillBriefs(context.Background(), store, 365)
	if err != nil {
		t.Fatal(err)
	}
	if updated != 2 || skipped != 2 {
		t.Errorf("updated=%d skipped=%d", updated, skipped)
	}
	if store.updated["missing"] != "Bank news" || store.updated["long"] != "AI news today" {
		t.Errorf("updates = %v", store.updated)
	}
}
