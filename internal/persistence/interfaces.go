// Package persistence provides database access for news items, digests,
// sources, settings, subscribers and send logs.
package persistence

import (
	"context"
	"errors"
	"time"

	"meridian/internal/core"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// NewsItemRepository handles news item persistence operations
type NewsItemRepository interface {
	// Upsert inserts the item or updates the row with the same URL hash.
	// It reports whether a new row was created.
	Upsert(ctx context.Context, item *core.NewsItem) (bool, error)

	// ListSince returns items ingested in the last hours, newest published
	// first with undated items last.
	ListSince(ctx context.Context, hours int) ([]core.NewsItem, error)

	// Count returns the total number of stored items
	Count(ctx context.Context) (int, error)
}

// DigestRepository handles digest persistence operations
type DigestRepository interface {
	// Upsert stores the digest for (date, category) atomically. A new row is
	// a draft. An existing sent row stays sent; any other existing row goes
	// back to draft and loses its approval.
	Upsert(ctx context.Context, date, category string, content core.DailyDigest, meta core.GenerationMeta) (*core.Digest, error)

	// Get retrieves the digest for a date and category
	Get(ctx context.Context, date, category string) (*core.Digest, error)

	// GetByID retrieves a digest by ID
	GetByID(ctx context.Context, id string) (*core.Digest, error)

	// ListRecent returns the newest digests first
	ListRecent(ctx context.Context, limit int) ([]core.Digest, error)

	// ListSent returns sent digests, newest first
	ListSent(ctx context.Context, limit int) ([]core.Digest, error)

	// Approve moves a draft or skipped digest to approved. It reports false
	// when the digest is in any other state.
	Approve(ctx context.Context, id string) (bool, error)

	// Skip moves a draft or approved digest to skipped. It reports false
	// when the digest is in any other state.
	Skip(ctx context.Context, id string) (bool, error)

	// MarkSent records delivery
	MarkSent(ctx context.Context, id string, at time.Time) error

	// UpdateContent replaces stored content without touching status
	UpdateContent(ctx context.Context, id string, content core.DailyDigest) error

	// DeleteForDate removes the digest for a date and its send logs
	DeleteForDate(ctx context.Context, date, category string) (int64, error)
}

// SourceRepository handles feed source persistence operations
type SourceRepository interface {
	// Create inserts a source; it reports false when the URL already exists
	Create(ctx context.Context, source *core.Source) (bool, error)

	// List returns sources ordered by name
	List(ctx context.Context, activeOnly bool) ([]core.Source, error)

	// SetActive toggles a source
	SetActive(ctx context.Context, id string, active bool) error

	// Delete removes a source by ID
	Delete(ctx context.Context, id string) error
}

// SettingsRepository handles runtime settings
type SettingsRepository interface {
	// Get returns the current settings, with defaults for unset keys
	Get(ctx context.Context) (core.Settings, error)

	// Save stores all settings
	Save(ctx context.Context, settings core.Settings) error
}

// SendLogRepository handles delivery log persistence
type SendLogRepository interface {
	// Create inserts a send log row
	Create(ctx context.Context, entry *core.SendLog) error

	// ListForDigest returns the logs of one digest, oldest first
	ListForDigest(ctx context.Context, digestID string) ([]core.SendLog, error)

	// ListRecent returns the newest logs first
	ListRecent(ctx context.Context, limit int) ([]core.SendLog, error)
}

// SubscriberRepository handles digest recipients
type SubscriberRepository interface {
	// AddOrActivate stores the address as active, reactivating an
	// unsubscribed row. It returns ErrInvalidEmail for malformed addresses.
	AddOrActivate(ctx context.Context, email string) (*core.Subscriber, error)

	// Unsubscribe marks the address unsubscribed without deleting it
	Unsubscribe(ctx context.Context, email string) error

	// Delete removes a subscriber by ID
	Delete(ctx context.Context, id string) error

	// List returns all subscribers, newest first
	List(ctx context.Context) ([]core.Subscriber, error)

	// ListActiveEmails returns the addresses that receive digests
	ListActiveEmails(ctx context.Context) ([]string, error)
}

// Database aggregates all repositories
type Database interface {
	NewsItems() NewsItemRepository
	Digests() DigestRepository
	Sources() SourceRepository
	Settings() SettingsRepository
	SendLogs() SendLogRepository
	Subscribers() SubscriberRepository

	// Dialect reports the SQL dialect ("postgres" or "sqlite")
	Dialect() string
	Ping(ctx context.Context) error
	Close() error
}
