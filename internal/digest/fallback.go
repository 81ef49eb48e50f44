package digest

import (
	"meridian/internal/core"
	"meridian/internal/links"
)

const (
	fallbackSummaryChars = 300
	noSummary            = "No summary available."
	fallbackImpact       = "Review for strategic relevance and potential operational impact."
)

// ComposeFallback builds a digest straight from ranked candidates when the
// model produced nothing. AI candidates that also sit in the banking pool are
// left out so no article appears twice.
func ComposeFallback(date string, banking, ai []core.NewsItem) core.DailyDigest {
	inBanking := make(map[string]bool, len(banking))
	for _, item := range banking {
		inBanking[links.Normalize(item.URL)] = true
	}

	var aiOnly []core.NewsItem
	for _, item := range ai {
		if !inBanking[links.Normalize(item.URL)] {
			aiOnly = append(aiOnly, item)
		}
	}

	seen := map[string]bool{}
	return core.DailyDigest{
		Date:           date,
		Category:       core.DefaultCategory,
		BankingStories: fallbackStories(banking, seen),
		AIStories:      fallbackStories(aiOnly, seen),
	}
}

func fallbackStories(items []core.NewsItem, seen map[string]bool) []core.DigestStory {
	stories := make([]core.DigestStory, 0, core.MaxStoriesPerSection)
	for _, item := range items {
		if len(stories) == core.MaxStoriesPerSection {
			break
		}
		key := links.DedupeKey(item.URL, item.Title)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true

		summary := truncateRunes(item.Summary, fallbackSummaryChars)
		if summary == "" {
			summary = noSummary
		}
		stories = append(stories, core.DigestStory{
			Title:            item.Title,
			ExecutiveSummary: summary,
			BusinessImpact:   fallbackImpact,
			SourceURL:        item.URL,
		})
	}
	return stories
}

// truncateRunes returns the first n characters of s.
func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
