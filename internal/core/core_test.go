package core

import (
	"encoding/json"
	"testing"
)

func TestDigestStatusTransitions(t *testing.T) {
	tests := []struct {
		status  DigestStatus
		approve bool
		skip    bool
		send    bool
	}{
		{StatusDraft, true, true, true},
		{StatusApproved, false, true, true},
		{StatusSkipped, true, false, false},
		{StatusSent, false, false, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.CanApprove(); got != tt.approve {
				t.Errorf("CanApprove() = %v, want %v", got, tt.approve)
			}
			if got := tt.status.CanSkip(); got != tt.skip {
				t.Errorf("CanSkip() = %v, want %v", got, tt.skip)
			}
			if got := tt.status.CanSend(); got != tt.send {
				t.Errorf("CanSend() = %v, want %v", got, tt.send)
			}
		})
	}
}

func TestDailyDigestJSONFieldNames(t *testing.T) {
	d := DailyDigest{
		Date:     "2026-10-19",
		Category: DefaultCategory,
		BankingStories: []DigestStory{{
			Title:            "Bank deploys LLM",
			ExecutiveSummary: "Summary.",
			BusinessImpact:   "Impact.",
			SourceURL:        "https://example.com/a",
		}},
		AIStories: []DigestStory{},
	}

	raw, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var generic map[string]any
	if err := json.Unmarshal(raw, &generic); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	for _, key := range []string{"date", "category", "bankingStories", "aiStories"} {
		if _, ok := generic[key]; !ok {
			t.Errorf("missing key %q in %s", key, raw)
		}
	}
	if _, ok := generic["briefSummary"]; ok {
		t.Errorf("empty briefSummary should be omitted: %s", raw)
	}
	story := generic["bankingStories"].([]any)[0].(map[string]any)
	if story["sourceUrl"] != "https://example.com/a" {
		t.Errorf("sourceUrl = %v", story["sourceUrl"])
	}
}

func TestDecodeDailyDigest_Current(t *testing.T) {
	raw := []byte(`{"date":"2026-10-19","category":"fintech_banking",
		"bankingStories":[{"title":"A","executiveSummary":"s","businessImpact":"i","sourceUrl":"https://a.example"}],
		"aiStories":[{"title":"B","executiveSummary":"s","businessImpact":"i","sourceUrl":"https://b.example"}],
		"briefSummary":"A · B"}`)

	d, err := DecodeDailyDigest(raw)
	if err != nil {
		t.Fatalf("DecodeDailyDigest failed: %v", err)
	}
	if len(d.BankingStories) != 1 || len(d.AIStories) != 1 {
		t.Fatalf("unexpected sections: %+v", d)
	}
	if d.BriefSummary != "A · B" {
		t.Errorf("brief = %q", d.BriefSummary)
	}
}

func TestDecodeDailyDigest_LegacyStories(t *testing.T) {
	raw := []byte(`{"date":"2025-01-02","stories":[
		{"title":"Old one","executiveSummary":"s","businessImpact":"i","sourceUrl":"https://old.example/1"},
		{"title":"Old two","executiveSummary":"s","businessImpact":"i","sourceUrl":"https://old.example/2"}]}`)

	d, err := DecodeDailyDigest(raw)
	if err != nil {
		t.Fatalf("DecodeDailyDigest failed: %v", err)
	}
	if len(d.BankingStories) != 2 {
		t.Errorf("legacy stories should map to banking, got %d", len(d.BankingStories))
	}
	if d.AIStories == nil || len(d.AIStories) != 0 {
		t.Errorf("ai stories should be an empty list, got %#v", d.AIStories)
	}
	if d.Category != DefaultCategory {
		t.Errorf("category = %q", d.Category)
	}
}

func TestDecodeDailyDigest_LegacyStoriesCapped(t *testing.T) {
	var stories []map[string]string
	for _, n := range []string{"1", "2", "3", "4", "5"} {
		stories = append(stories, map[string]string{"title": "Old " + n, "sourceUrl": "https://old.example/" + n})
	}
	raw, err := json.Marshal(map[string]any{"date": "2025-01-02", "stories": stories})
	if err != nil {
		t.Fatal(err)
	}

	d, err := DecodeDailyDigest(raw)
	if err != nil {
		t.Fatalf("DecodeDailyDigest failed: %v", err)
	}
	if len(d.BankingStories) != MaxStoriesPerSection {
		t.Fatalf("banking stories = %d, want %d", len(d.BankingStories), MaxStoriesPerSection)
	}
	if d.BankingStories[0].Title != "Old 1" {
		t.Errorf("first story = %q", d.BankingStories[0].Title)
	}
}

func TestDecodeDailyDigest_Invalid(t *testing.T) {
	if _, err := DecodeDailyDigest(nil); err == nil {
		t.Error("expected error for empty content")
	}
	if _, err := DecodeDailyDigest([]byte("{not json")); err == nil {
		t.Error("expected error for malformed content")
	}
}
