package digest

import (
	"meridian/internal/core"
	"meridian/internal/links"
)

// DedupeStories drops stories whose source URL (or title, when the URL is
// empty) repeats an earlier one. Order is preserved.
func DedupeStories(stories []core.DigestStory) []core.DigestStory {
	return takeUnique(stories, map[string]bool{}, len(stories))
}

// Merge combines the newsletter pass with the supplementary pass. Newsletter
// stories come first in each section, duplicates are dropped and each
// section is capped at core.MaxStoriesPerSection. Banking is filled first, so
// a story already in banking never repeats in the AI section.
func Merge(primary, supplementary core.Extraction) core.Extraction {
	seen := map[string]bool{}
	banking := takeUnique(concat(primary.BankingStories, supplementary.BankingStories), seen, core.MaxStoriesPerSection)
	ai := takeUnique(concat(primary.AIStories, supplementary.AIStories), seen, core.MaxStoriesPerSection)
	return core.Extraction{BankingStories: banking, AIStories: ai}
}

func takeUnique(stories []core.DigestStory, seen map[string]bool, limit int) []core.DigestStory {
	out := make([]core.DigestStory, 0, min(len(stories), limit))
	for _, s := range stories {
		if len(out) == limit {
			break
		}
		key := links.DedupeKey(s.SourceURL, s.Title)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
	}
	return out
}

func concat(a, b []core.DigestStory) []core.DigestStory {
	out := make([]core.DigestStory, 0, len(a)+len(b))
	out = append(out, a...)
	return append(out, b...)
}
