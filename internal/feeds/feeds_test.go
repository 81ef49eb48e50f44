package feeds

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const rssFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
  <title>Banking Dive</title>
  <link>https://www.bankingdive.com</link>
  <description>News</description>
  <item>
    <title> Bank pilots LLM </title>
    <link>https://www.bankingdive.com/news/bank-llm</link>
    <description>&lt;p&gt;A &lt;b&gt;bank&lt;/b&gt; pilots an LLM.&lt;/p&gt;</description>
    <pubDate>Sun, 18 Oct 2026 09:00:00 GMT</pubDate>
  </item>
  <item>
    <title>Undated</title>
    <link>https://www.bankingdive.com/news/undated</link>
  </item>
</channel>
</rss>`

const atomFeed = `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>AI Blog</title>
  <entry>
    <title>Model launch</title>
    <link href="https://ai.example.com/launch"/>
    <id>urn:1</id>
    <updated>2026-10-18T10:00:00Z</updated>
    <content type="html">Launch &lt;i&gt;notes&lt;/i&gt;</content>
  </entry>
</feed>`

func TestFetchFeed_RSS(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "test-ua" {
			t.Errorf("User-Agent = %q", r.Header.Get("User-Agent"))
		}
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(rssFeed))
	}))
	defer server.Close()

	entries, err := NewFeedManager("test-ua", time.Second).FetchFeed(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("FetchFeed failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}

	first := entries[0]
	if first.Title != "Bank pilots LLM" {
		t.Errorf("title = %q", first.Title)
	}
	if first.Summary != "A bank pilots an LLM." {
		t.Errorf("summary = %q", first.Summary)
	}
	want := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	if first.Published == nil || !first.Published.Equal(want) {
		t.Errorf("published = %v", first.Published)
	}
	if entries[1].Published != nil {
		t.Errorf("undated entry got %v", entries[1].Published)
	}
}

func TestFetchFeed_Atom(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(atomFeed))
	}))
	defer server.Close()

	entries, err := NewFeedManager("", 0).FetchFeed(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("FetchFeed failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries = %d", len(entries))
	}
	e := entries[0]
	if e.Link != "https://ai.example.com/launch" || e.Summary != "Launch notes" || e.Published == nil {
		t.Errorf("entry = %+v", e)
	}
}

func TestFetchFeed_Errors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/broken" {
			_, _ = w.Write([]byte("not a feed"))
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	fm := NewFeedManager("", time.Second)
	if _, err := fm.FetchFeed(context.Background(), server.URL+"/down"); err == nil {
		t.Error("expected error for 500")
	}
	if _, err := fm.FetchFeed(context.Background(), server.URL+"/broken"); err == nil {
		t.Error("expected parse error")
	}
}

func TestRecent(t *testing.T) {
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	at := func(h int) *time.Time {
		t := now.Add(-time.Duration(h) * time.Hour)
		return &t
	}
	entries := []Entry{
		{Title: "old", Published: at(73)},
		{Title: "undated"},
		{Title: "older", Published: at(48)},
		{Title: "future", Published: at(-2)},
		{Title: "newest", Published: at(1)},
	}

	got := Recent(entries, now, 72*time.Hour, 0)
	want := []string{"newest", "older", "undated"}
	if len(got) != len(want) {
		t.Fatalf("Recent() = %+v", got)
	}
	for i := range want {
		if got[i].Title != want[i] {
			t.Errorf("position %d = %q, want %q", i, got[i].Title, want[i])
		}
	}

	if capped := Recent(entries, now, 72*time.Hour, 2); len(capped) != 2 {
		t.Errorf("cap ignored: %d", len(capped))
	}
}
