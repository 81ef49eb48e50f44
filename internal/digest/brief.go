package digest

import (
	"context"
	"fmt"
	"strings"

	"meridian/internal/core"
)

const (
	briefHeadlines     = 3
	briefWordsPerTitle = 5
	briefSeparator     = " · "
)

// MaxBriefWords bounds the brief summary shown in previews and archives.
const MaxBriefWords = briefHeadlines * briefWordsPerTitle

// BuildBriefSummary joins shortened headlines of up to three stories, banking
// first, into a one-line teaser such as
// "JPMorgan deploys LLM for fraud · OpenAI ships new reasoning model".
func BuildBriefSummary(banking, ai []core.DigestStory) string {
	var phrases []string
	for _, s := range concat(banking, ai) {
		if len(phrases) == briefHeadlines {
			break
		}
		if phrase := shortHeadline(s.Title); phrase != "" {
			phrases = append(phrases, phrase)
		}
	}
	return strings.Join(phrases, briefSeparator)
}

// NeedsBrief reports whether a stored brief is missing or too long.
func NeedsBrief(brief string) bool {
	words := 0
	for _, w := range strings.Fields(brief) {
		if w != strings.TrimSpace(briefSeparator) {
			words++
		}
	}
	return words == 0 || words > MaxBriefWords
}

func shortHeadline(title string) string {
	words := strings.Fields(title)
	if len(words) > briefWordsPerTitle {
		words = words[:briefWordsPerTitle]
	}
	return strings.TrimRight(strings.Join(words, " "), ",;:-–")
}

// BriefStore is the part of the digest repository used by BackfillBriefs
type BriefStore interface {
	ListRecent(ctx context.Context, limit int) ([]core.Digest, error)
	UpdateContent(ctx context.Context, id string, content core.DailyDigest) error
}

// BackfillBriefs recomputes the brief summary of stored digests whose brief
// is missing or too long. Digests without stories are left alone.
func BackfillBriefs(ctx context.Context, store BriefStore, limit int) (updated, skipped int, err error) {
	digests, err := store.ListRecent(ctx, limit)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to list digests: %w", err)
	}

	for _, d := range digests {
		if !NeedsBrief(d.Content.BriefSummary) {
			skipped++
			continue
		}
		brief := BuildBriefSummary(d.Content.BankingStories, d.Content.AIStories)
		if brief == "" {
			skipped++
			continue
		}
		content := d.Content
		content.BriefSummary = brief
		if err := store.UpdateContent(ctx, d.ID, content); err != nil {
			return updated, skipped, fmt.Errorf("failed to update digest %s: %w", d.DigestDate, err)
		}
		updated++
	}
	return updated, skipped, nil
}
