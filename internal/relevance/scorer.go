package relevance

import (
	"strings"

	"meridian/internal/core"
)

// Hits is the keyword match profile of one news item.
type Hits struct {
	AI          int  // distinct AI keywords present
	Banking     int  // distinct banking keywords present
	Exclude     int  // distinct exclude keywords present
	ExcludedURL bool // URL matches a media pattern
}

// BankingScore ranks items inside the banking pool.
func (h Hits) BankingScore() int {
	score := h.AI*aiHitWeight + h.Banking*bankingHitWeight
	if h.Exclude > 0 {
		score -= excludeHitPenalty
	}
	if h.ExcludedURL {
		score -= excludedURLPenalty
	}
	return score
}

// QualifiesBanking reports membership of the banking pool, recency aside.
func (h Hits) QualifiesBanking() bool {
	return h.AI > 0 && h.Banking > 0 && h.Exclude == 0 && !h.ExcludedURL && h.BankingScore() > 0
}

// QualifiesAI reports membership of the general AI pool, recency aside.
func (h Hits) QualifiesAI() bool {
	return h.AI > 0 && h.Exclude == 0 && !h.ExcludedURL
}

// Score counts keyword hits for an item. The haystack is title, summary and
// source name, lowercased and space padded so edge keywords like " ai " match
// at the start or end of the text.
func Score(item core.NewsItem) Hits {
	haystack := " " + strings.ToLower(item.Title+" "+item.Summary+" "+item.SourceName) + " "
	return Hits{
		AI:          countHits(haystack, AIKeywords),
		Banking:     countHits(haystack, BankingKeywords),
		Exclude:     countHits(haystack, ExcludeKeywords),
		ExcludedURL: IsExcludedURL(item.URL),
	}
}

// IsExcludedURL reports whether rawURL matches a media pattern.
func IsExcludedURL(rawURL string) bool {
	lower := strings.ToLower(rawURL)
	for _, pattern := range ExcludedURLPatterns {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}

func countHits(haystack string, keywords []string) int {
	hits := 0
	for _, kw := range keywords {
		if strings.Contains(haystack, kw) {
			hits++
		}
	}
	return hits
}
