package pipeline

import (
	"context"

	"meridian/internal/core"
	"meridian/internal/ingest"
	"meridian/internal/send"
)

// Ingester pulls news items into the store
type Ingester interface {
	Run(ctx context.Context) (*ingest.Stats, error)
}

// DigestGenerator builds and stores today's digest
type DigestGenerator interface {
	Generate(ctx context.Context) (*core.Digest, error)

	// Date returns today's digest date
	Date() string
}

// DigestSender delivers a stored digest
type DigestSender interface {
	SendForDate(ctx context.Context, date string, opts send.Options) (*send.Result, error)
}

// DigestAdmin is the part of the digest repository the pipeline uses for
// resets and brief backfills
type DigestAdmin interface {
	ListRecent(ctx context.Context, limit int) ([]core.Digest, error)
	UpdateContent(ctx context.Context, id string, content core.DailyDigest) error
	DeleteForDate(ctx context.Context, date, category string) (int64, error)
}
