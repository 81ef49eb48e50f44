// Package sources manages the feeds that ingestion reads from.
package sources

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"meridian/internal/core"
	"meridian/internal/feeds"
	"meridian/internal/links"
	"meridian/internal/persistence"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// ErrExists is returned when a source with the same URL is already stored.
var ErrExists = errors.New("source already exists")

// FeedFetcher validates a feed before it is stored
type FeedFetcher interface {
	FetchFeed(ctx context.Context, feedURL string) ([]feeds.Entry, error)
}

// Manager handles source management
type Manager struct {
	repo    persistence.SourceRepository
	fetcher FeedFetcher // nil skips validation
	log     *zerolog.Logger
}

// NewManager creates a new source manager. fetcher may be nil.
func NewManager(repo persistence.SourceRepository, fetcher FeedFetcher, log *zerolog.Logger) *Manager {
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	return &Manager{repo: repo, fetcher: fetcher, log: log}
}

// AddSource stores a new active RSS source after checking that the feed
// parses.
func (m *Manager) AddSource(ctx context.Context, name, feedURL string) (*core.Source, error) {
	feedURL = strings.TrimSpace(feedURL)
	if !links.IsAbsoluteHTTP(feedURL) {
		return nil, fmt.Errorf("invalid feed url %q", feedURL)
	}

	if m.fetcher != nil {
		entries, err := m.fetcher.FetchFeed(ctx, feedURL)
		if err != nil {
			return nil, fmt.Errorf("failed to validate feed: %w", err)
		}
		m.log.Debug().Str("url", feedURL).Int("entries", len(entries)).Msg("Feed validated")
	}

	if name == "" {
		host, err := links.Hostname(feedURL)
		if err != nil {
			return nil, err
		}
		name = host
	}

	source := &core.Source{Name: name, URL: feedURL, Type: core.SourceRSS, IsActive: true}
	created, err := m.repo.Create(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("failed to store source: %w", err)
	}
	if !created {
		return nil, fmt.Errorf("%w: %s", ErrExists, feedURL)
	}

	m.log.Info().Str("id", source.ID).Str("name", source.Name).Msg("Added source")
	return source, nil
}

// RemoveSource deletes a source by ID
func (m *Manager) RemoveSource(ctx context.Context, id string) error {
	if err := m.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to remove source: %w", err)
	}
	m.log.Info().Str("id", id).Msg("Removed source")
	return nil
}

// ListSources returns stored sources ordered by name
func (m *Manager) ListSources(ctx context.Context, activeOnly bool) ([]core.Source, error) {
	return m.repo.List(ctx, activeOnly)
}

// ToggleSource activates or deactivates a source
func (m *Manager) ToggleSource(ctx context.Context, id string, active bool) error {
	if err := m.repo.SetActive(ctx, id, active); err != nil {
		return fmt.Errorf("failed to toggle source: %w", err)
	}
	m.log.Info().Str("id", id).Bool("active", active).Msg("Toggled source")
	return nil
}

// Seed inserts the default sources that are not stored yet and reports how
// many were added.
func (m *Manager) Seed(ctx context.Context) (int, error) {
	defaults, err := DefaultSources()
	if err != nil {
		return 0, err
	}

	added := 0
	for i := range defaults {
		created, err := m.repo.Create(ctx, &defaults[i])
		if err != nil {
			return added, fmt.Errorf("failed to seed %s: %w", defaults[i].Name, err)
		}
		if created {
			added++
		}
	}
	m.log.Info().Int("added", added).Int("defaults", len(defaults)).Msg("Seeded sources")
	return added, nil
}

// DefaultSources returns the built-in source list.
func DefaultSources() ([]core.Source, error) {
	var doc struct {
		Sources []core.Source `yaml:"sources"`
	}
	if err := yaml.Unmarshal(defaultsYAML, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse default sources: %w", err)
	}
	for i := range doc.Sources {
		if doc.Sources[i].Type == "" {
			doc.Sources[i].Type = core.SourceRSS
		}
	}
	return doc.Sources, nil
}
