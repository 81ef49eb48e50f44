// Package ingest pulls newsletter issues, feed entries and discovery results
// into the news item store.
package ingest

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"meridian/internal/config"
	"meridian/internal/core"
	"meridian/internal/feeds"
	"meridian/internal/fetch"
	"meridian/internal/links"
)

const (
	// DefaultPrimarySource is the display name of the newsletter source.
	DefaultPrimarySource = "Smol AI Issues"
	// DefaultIssuesURL is the newsletter index page.
	DefaultIssuesURL = "https://news.smol.ai/issues"

	defaultMaxConcurrency = 4
)

var issueDatePattern = regexp.MustCompile(`/issues/(\d{4}-\d{2}-\d{2})-`)

// ItemStore receives ingested items
type ItemStore interface {
	Upsert(ctx context.Context, item *core.NewsItem) (bool, error)
}

// SourceLister lists configured sources
type SourceLister interface {
	List(ctx context.Context, activeOnly bool) ([]core.Source, error)
}

// FeedFetcher fetches and parses one feed
type FeedFetcher interface {
	FetchFeed(ctx context.Context, feedURL string) ([]feeds.Entry, error)
}

// PageFetcher fetches HTML pages
type PageFetcher interface {
	Get(ctx context.Context, pageURL string) (string, error)
	ReadableText(ctx context.Context, pageURL string, maxChars int) (string, error)
}

// Searcher finds recent articles outside the configured feeds
type Searcher interface {
	Search(ctx context.Context, since time.Time) ([]DiscoveryResult, error)
}

// Config controls one ingestion run
type Config struct {
	LookbackHours     int
	MaxItemsPerSource int
	PrimarySource     string
	IssuesURL         string
	IssueCount        int
	IssueTextMaxChars int
	MaxConcurrency    int
}

// DefaultConfig returns the production defaults
func DefaultConfig() Config {
	return Config{
		LookbackHours:     72,
		MaxItemsPerSource: 75,
		PrimarySource:     DefaultPrimarySource,
		IssuesURL:         DefaultIssuesURL,
		IssueCount:        3,
		IssueTextMaxChars: 14000,
		MaxConcurrency:    defaultMaxConcurrency,
	}
}

// ConfigFrom maps application configuration onto a runner config.
func ConfigFrom(c config.Ingest) Config {
	cfg := DefaultConfig()
	if c.LookbackHours > 0 {
		cfg.LookbackHours = c.LookbackHours
	}
	if c.MaxItemsPerSource > 0 {
		cfg.MaxItemsPerSource = c.MaxItemsPerSource
	}
	if c.PrimaryIssuesURL != "" {
		cfg.IssuesURL = c.PrimaryIssuesURL
	}
	if c.PrimaryIssueCount > 0 {
		cfg.IssueCount = c.PrimaryIssueCount
	}
	if c.IssueTextMaxChars > 0 {
		cfg.IssueTextMaxChars = c.IssueTextMaxChars
	}
	return cfg
}

// Stats summarises a run
type Stats struct {
	Attempted     int      `json:"attempted"`
	Inserted      int      `json:"inserted"`
	Duplicates    int      `json:"duplicates"`
	FailedSources []string `json:"failedSources"`
}

func (s *Stats) add(other Stats) {
	s.Attempted += other.Attempted
	s.Inserted += other.Inserted
	s.Duplicates += other.Duplicates
	s.FailedSources = append(s.FailedSources, other.FailedSources...)
}

// Runner performs ingestion
type Runner struct {
	items    ItemStore
	sources  SourceLister
	feeds    FeedFetcher
	pages    PageFetcher
	searcher Searcher
	cfg      Config
	now      func() time.Time
	log      *zerolog.Logger
}

// Option configures a Runner
type Option func(*Runner)

// WithConfig replaces the default configuration
func WithConfig(cfg Config) Option {
	return func(r *Runner) { r.cfg = cfg }
}

// WithSearcher enables discovery
func WithSearcher(s Searcher) Option {
	return func(r *Runner) { r.searcher = s }
}

// WithClock overrides the wall clock
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// WithLogger sets the logger
func WithLogger(log *zerolog.Logger) Option {
	return func(r *Runner) {
		if log != nil {
			r.log = log
		}
	}
}

// NewRunner creates a runner
func NewRunner(items ItemStore, sources SourceLister, feedFetcher FeedFetcher, pages PageFetcher, opts ...Option) *Runner {
	nop := zerolog.Nop()
	r := &Runner{
		items:   items,
		sources: sources,
		feeds:   feedFetcher,
		pages:   pages,
		cfg:     DefaultConfig(),
		now:     time.Now,
		log:     &nop,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.cfg.MaxConcurrency <= 0 {
		r.cfg.MaxConcurrency = defaultMaxConcurrency
	}
	return r
}

// Run ingests the newsletter issues, every active source and, when enabled,
// discovery results. Individual source failures are recorded in the stats;
// only a failure to list sources aborts the run.
func (r *Runner) Run(ctx context.Context) (*Stats, error) {
	start := r.now()
	stats := &Stats{FailedSources: []string{}}

	primaryOK := false
	if r.cfg.IssuesURL != "" && r.cfg.IssueCount > 0 {
		issueStats, err := r.ingestIssues(ctx)
		stats.add(issueStats)
		if err != nil {
			r.log.Warn().Err(err).Str("url", r.cfg.IssuesURL).Msg("Newsletter index scrape failed")
			stats.FailedSources = append(stats.FailedSources, r.cfg.IssuesURL)
		} else {
			primaryOK = true
		}
	}

	sources, err := r.sources.List(ctx, true)
	if err != nil {
		return stats, fmt.Errorf("failed to list sources: %w", err)
	}

	sem := make(chan struct{}, r.cfg.MaxConcurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex

	for _, src := range sources {
		if src.Type != "" && src.Type != core.SourceRSS {
			continue
		}
		if r.isIssuesFeed(src.URL) && primaryOK {
			continue
		}

		wg.Add(1)
		sem <- struct{}{}

		go func(s core.Source) {
			defer wg.Done()
			defer func() { <-sem }()

			sourceStats := r.ingestFeed(ctx, s)

			mu.Lock()
			stats.add(sourceStats)
			mu.Unlock()
		}(src)
	}
	wg.Wait()

	if r.searcher != nil {
		stats.add(r.ingestDiscovery(ctx))
	}

	r.log.Info().
		Int("attempted", stats.Attempted).
		Int("inserted", stats.Inserted).
		Int("duplicates", stats.Duplicates).
		Strs("failed", stats.FailedSources).
		Dur("elapsed", r.now().Sub(start)).
		Msg("Ingestion complete")
	return stats, nil
}

// ingestIssues scrapes the newsletter index and stores the newest issues with
// their full readable text as the summary.
func (r *Runner) ingestIssues(ctx context.Context) (Stats, error) {
	var stats Stats

	page, err := r.pages.Get(ctx, r.cfg.IssuesURL)
	if err != nil {
		return stats, err
	}
	issueLinks, err := fetch.IssueLinks(page, r.cfg.IssuesURL)
	if err != nil {
		return stats, err
	}
	if len(issueLinks) > r.cfg.IssueCount {
		issueLinks = issueLinks[:r.cfg.IssueCount]
	}

	for _, link := range issueLinks {
		text, err := r.pages.ReadableText(ctx, link, r.cfg.IssueTextMaxChars)
		if err != nil || strings.TrimSpace(text) == "" {
			r.log.Debug().Err(err).Str("url", link).Msg("Skipping unreadable issue")
			continue
		}
		published := r.issueDate(link)
		r.store(ctx, &stats, &core.NewsItem{
			Title:       issueTitle(link),
			RawURL:      link,
			Summary:     text,
			PublishedAt: &published,
			SourceName:  r.primarySource(),
			SourceURL:   r.cfg.IssuesURL,
		})
	}
	return stats, nil
}

// ingestFeed stores the recent entries of one feed. Issue links on the
// newsletter host get the issue text as their summary.
func (r *Runner) ingestFeed(ctx context.Context, src core.Source) Stats {
	var stats Stats
	log := r.log.With().Str("source", src.Name).Logger()

	entries, err := r.feeds.FetchFeed(ctx, src.URL)
	if err != nil {
		log.Warn().Err(err).Str("url", src.URL).Msg("Feed fetch failed")
		if r.isIssuesFeed(src.URL) {
			fallback, ferr := r.ingestIssues(ctx)
			if ferr == nil {
				return fallback
			}
			stats.add(fallback)
		}
		stats.FailedSources = append(stats.FailedSources, src.URL)
		return stats
	}

	lookback := time.Duration(r.cfg.LookbackHours) * time.Hour
	for _, e := range feeds.Recent(entries, r.now(), lookback, r.cfg.MaxItemsPerSource) {
		if e.Title == "" || e.Link == "" {
			continue
		}
		summary := e.Summary
		if r.isIssueLink(e.Link) {
			if text, err := r.pages.ReadableText(ctx, e.Link, r.cfg.IssueTextMaxChars); err == nil && text != "" {
				summary = text
			}
		}
		r.store(ctx, &stats, &core.NewsItem{
			Title:       e.Title,
			RawURL:      e.Link,
			Summary:     summary,
			PublishedAt: e.Published,
			SourceName:  src.Name,
			SourceURL:   src.URL,
		})
	}
	log.Debug().Int("attempted", stats.Attempted).Int("inserted", stats.Inserted).Msg("Feed ingested")
	return stats
}

func (r *Runner) ingestDiscovery(ctx context.Context) Stats {
	var stats Stats
	results, err := r.searcher.Search(ctx, r.now().Add(-24*time.Hour))
	if err != nil {
		r.log.Warn().Err(err).Msg("Discovery search failed")
		return stats
	}

	for _, res := range results {
		title := strings.TrimSpace(res.Title)
		if title == "" || res.URL == "" {
			continue
		}
		item := &core.NewsItem{
			Title:      title,
			RawURL:     res.URL,
			Summary:    strings.TrimSpace(res.Text),
			SourceName: discoverySourceName,
			SourceURL:  discoverySourceURL,
		}
		if t, err := time.Parse(time.RFC3339, res.PublishedDate); err == nil {
			t = t.UTC()
			item.PublishedAt = &t
		}
		r.store(ctx, &stats, item)
	}
	return stats
}

// store canonicalizes the item URL and upserts it, counting the outcome.
func (r *Runner) store(ctx context.Context, stats *Stats, item *core.NewsItem) {
	stats.Attempted++

	canonical, err := links.Canonicalize(item.RawURL)
	if err != nil {
		canonical = strings.TrimSpace(item.RawURL)
	}
	item.URL = canonical
	item.URLHash = links.Hash(canonical)

	inserted, err := r.items.Upsert(ctx, item)
	if err != nil {
		r.log.Warn().Err(err).Str("url", item.URL).Msg("Failed to store item")
		return
	}
	if inserted {
		stats.Inserted++
	} else {
		stats.Duplicates++
	}
}

// issueDate reads the date embedded in an issue slug. Missing or stale dates
// become today at 12:00 UTC so fresh issues are never filtered out.
func (r *Runner) issueDate(link string) time.Time {
	now := r.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 12, 0, 0, 0, time.UTC)

	m := issueDatePattern.FindStringSubmatch(link)
	if m == nil {
		return today
	}
	d, err := time.Parse("2006-01-02", m[1])
	if err != nil {
		return today
	}
	d = d.Add(12 * time.Hour)
	if now.Sub(d) > time.Duration(r.cfg.LookbackHours)*time.Hour {
		return today
	}
	return d
}

func (r *Runner) primarySource() string {
	if r.cfg.PrimarySource == "" {
		return DefaultPrimarySource
	}
	return r.cfg.PrimarySource
}

// issuesHostPath is the host plus path prefix that identifies the newsletter.
func (r *Runner) issuesHostPath() (string, string) {
	u, err := url.Parse(r.cfg.IssuesURL)
	if err != nil || u.Host == "" {
		return "", ""
	}
	return strings.ToLower(u.Host), strings.TrimRight(u.Path, "/")
}

func (r *Runner) isIssuesFeed(feedURL string) bool {
	host, p := r.issuesHostPath()
	if host == "" {
		return false
	}
	return strings.Contains(strings.ToLower(feedURL), host+p)
}

func (r *Runner) isIssueLink(link string) bool {
	host, p := r.issuesHostPath()
	if host == "" {
		return false
	}
	u, err := url.Parse(link)
	if err != nil {
		return false
	}
	return strings.ToLower(u.Host) == host && strings.HasPrefix(u.Path, p+"/")
}

func issueTitle(link string) string {
	u, err := url.Parse(link)
	if err != nil {
		return link
	}
	slug := path.Base(strings.TrimRight(u.Path, "/"))
	return strings.ReplaceAll(slug, "-", " ")
}
