// Package feeds fetches RSS and Atom feeds and turns their entries into
// candidate news items.
package feeds

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"meridian/internal/fetch"
)

// Entry is a feed item reduced to what ingestion needs.
type Entry struct {
	Title     string
	Link      string
	Summary   string     // plain text snippet
	Published *time.Time // nil when the feed has no parsable date
}

// FeedManager fetches and parses feeds
type FeedManager struct {
	client    *http.Client
	userAgent string
}

// NewFeedManager creates a new feed manager
func NewFeedManager(userAgent string, timeout time.Duration) *FeedManager {
	if userAgent == "" {
		userAgent = fetch.DefaultUserAgent
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &FeedManager{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
	}
}

// FetchFeed downloads and parses the feed at feedURL.
func (fm *FeedManager) FetchFeed(ctx context.Context, feedURL string) ([]Entry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", fm.userAgent)

	resp, err := fm.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed returned status %d", resp.StatusCode)
	}

	feed, err := gofeed.NewParser().Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	entries := make([]Entry, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		entries = append(entries, toEntry(item))
	}
	return entries, nil
}

func toEntry(item *gofeed.Item) Entry {
	summary := item.Description
	if strings.TrimSpace(summary) == "" {
		summary = item.Content
	}

	published := item.PublishedParsed
	if published == nil {
		published = item.UpdatedParsed
	}
	if published != nil {
		t := published.UTC()
		published = &t
	}

	return Entry{
		Title:     strings.TrimSpace(item.Title),
		Link:      strings.TrimSpace(item.Link),
		Summary:   fetch.PlainText(summary),
		Published: published,
	}
}

// Recent keeps entries that are undated or published within lookback of now
// (never in the future), newest first with undated entries last, capped at
// limit when limit is positive.
func Recent(entries []Entry, now time.Time, lookback time.Duration, limit int) []Entry {
	var kept []Entry
	for _, e := range entries {
		if e.Published != nil {
			age := now.Sub(*e.Published)
			if age < 0 || age > lookback {
				continue
			}
		}
		kept = append(kept, e)
	}

	sort.SliceStable(kept, func(i, j int) bool {
		a, b := kept[i].Published, kept[j].Published
		if a == nil || b == nil {
			return a != nil
		}
		return a.After(*b)
	})

	if limit > 0 && len(kept) > limit {
		kept = kept[:limit]
	}
	return kept
}
