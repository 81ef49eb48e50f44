package core

import (
	"encoding/json"
	"fmt"
)

// storedDigest covers both the current two-section shape and the older
// single "stories" list.
type storedDigest struct {
	DailyDigest
	Stories []DigestStory `json:"stories,omitempty"`
}

// DecodeDailyDigest reads stored digest content. Digests written before the
// banking/AI split carry a single "stories" list; those stories become the
// banking section. Both sections are capped at MaxStoriesPerSection.
func DecodeDailyDigest(raw []byte) (DailyDigest, error) {
	var stored storedDigest
	if len(raw) == 0 {
		return DailyDigest{}, fmt.Errorf("empty digest content")
	}
	if err := json.Unmarshal(raw, &stored); err != nil {
		return DailyDigest{}, fmt.Errorf("failed to decode digest content: %w", err)
	}

	d := stored.DailyDigest
	if len(d.BankingStories) == 0 && len(d.AIStories) == 0 && len(stored.Stories) > 0 {
		d.BankingStories = stored.Stories
	}
	d.BankingStories = capStories(d.BankingStories)
	d.AIStories = capStories(d.AIStories)
	if d.Category == "" {
		d.Category = DefaultCategory
	}
	return d, nil
}

func capStories(stories []DigestStory) []DigestStory {
	if stories == nil {
		return []DigestStory{}
	}
	if len(stories) > MaxStoriesPerSection {
		return stories[:MaxStoriesPerSection]
	}
	return stories
}
