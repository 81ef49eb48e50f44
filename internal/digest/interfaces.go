package digest

import (
	"context"

	"meridian/internal/core"
)

// ItemSource supplies recently ingested news items
type ItemSource interface {
	// ListSince returns items ingested in the last hours, newest published first
	ListSince(ctx context.Context, hours int) ([]core.NewsItem, error)
}

// DigestStore persists generated digests
type DigestStore interface {
	// Upsert stores the day's digest, keeping a sent digest sent
	Upsert(ctx context.Context, date, category string, content core.DailyDigest, meta core.GenerationMeta) (*core.Digest, error)
}
