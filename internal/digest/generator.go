// Package digest turns the last few days of news items into the daily
// banking and AI digest.
package digest

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"meridian/internal/config"
	"meridian/internal/core"
	"meridian/internal/links"
	"meridian/internal/llm"
	"meridian/internal/relevance"
)

// Config holds generator configuration
type Config struct {
	Category              string
	LookbackHours         int
	PrimarySource         string // newsletter source used for the first pass
	NewsletterMaxChars    int
	MaxCandidates         int
	CandidateSummaryChars int
	Location              *time.Location // calendar used for the digest date
}

// DefaultConfig returns the production defaults
func DefaultConfig() Config {
	return Config{
		Category:              core.DefaultCategory,
		LookbackHours:         72,
		PrimarySource:         "Smol AI Issues",
		NewsletterMaxChars:    18000,
		MaxCandidates:         150,
		CandidateSummaryChars: 350,
		Location:              time.UTC,
	}
}

// ConfigFrom maps the digest section of the application config, keeping
// defaults for unset values.
func ConfigFrom(c config.Digest) Config {
	cfg := DefaultConfig()
	if c.Category != "" {
		cfg.Category = c.Category
	}
	if c.LookbackHours > 0 {
		cfg.LookbackHours = c.LookbackHours
	}
	if c.PrimarySource != "" {
		cfg.PrimarySource = c.PrimarySource
	}
	if c.NewsletterMaxChars > 0 {
		cfg.NewsletterMaxChars = c.NewsletterMaxChars
	}
	if c.MaxCandidates > 0 {
		cfg.MaxCandidates = c.MaxCandidates
	}
	if c.CandidateSummaryChars > 0 {
		cfg.CandidateSummaryChars = c.CandidateSummaryChars
	}
	cfg.Location = c.Location()
	return cfg
}

// Generator runs the two extraction passes and stores the result.
type Generator struct {
	items     ItemSource
	store     DigestStore
	extractor llm.Extractor // nil disables both passes
	selector  *relevance.Selector
	config    Config
	now       func() time.Time
	log       *zerolog.Logger
}

// Option configures a Generator
type Option func(*Generator)

// WithConfig replaces the default configuration
func WithConfig(cfg Config) Option {
	return func(g *Generator) { g.config = cfg }
}

// WithClock injects the time source
func WithClock(now func() time.Time) Option {
	return func(g *Generator) {
		if now != nil {
			g.now = now
		}
	}
}

// WithLogger sets the logger
func WithLogger(log *zerolog.Logger) Option {
	return func(g *Generator) {
		if log != nil {
			g.log = log
		}
	}
}

// WithSelector replaces the candidate selector built from the config
func WithSelector(s *relevance.Selector) Option {
	return func(g *Generator) { g.selector = s }
}

// NewGenerator creates a generator. extractor may be nil, in which case every
// digest comes from the keyword fallback.
func NewGenerator(items ItemSource, store DigestStore, extractor llm.Extractor, opts ...Option) *Generator {
	nop := zerolog.Nop()
	g := &Generator{
		items:     items,
		store:     store,
		extractor: extractor,
		config:    DefaultConfig(),
		now:       time.Now,
		log:       &nop,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.config.Location == nil {
		g.config.Location = time.UTC
	}
	if g.selector == nil {
		g.selector = relevance.NewSelector(
			relevance.WithLookback(time.Duration(g.config.LookbackHours)*time.Hour),
			relevance.WithPrimarySource(g.config.PrimarySource),
			relevance.WithClock(g.now),
		)
	}
	return g
}

// Date returns today's digest date in the configured timezone
func (g *Generator) Date() string {
	return g.now().In(g.config.Location).Format("2006-01-02")
}

// Generate builds today's digest from recent items and upserts it.
func (g *Generator) Generate(ctx context.Context) (*core.Digest, error) {
	items, err := g.items.ListSince(ctx, g.config.LookbackHours)
	if err != nil {
		return nil, fmt.Errorf("failed to list news items: %w", err)
	}

	date := g.Date()
	content, meta := g.Compose(ctx, date, items)

	stored, err := g.store.Upsert(ctx, date, g.config.Category, content, meta)
	if err != nil {
		return nil, fmt.Errorf("failed to store digest for %s: %w", date, err)
	}

	g.log.Info().
		Str("date", date).
		Str("status", string(stored.Status)).
		Int("banking", len(content.BankingStories)).
		Int("ai", len(content.AIStories)).
		Bool("fallback", meta.Fallback).
		Msg("Digest generated")
	return stored, nil
}

// Compose runs both passes over items and returns the digest content with
// its generation metadata. It never fails: model problems degrade to the
// keyword fallback.
func (g *Generator) Compose(ctx context.Context, date string, items []core.NewsItem) (core.DailyDigest, core.GenerationMeta) {
	primary := g.primaryIssues(items)
	supplementary := g.selector.Supplementary(items)
	pools := g.selector.Pools(supplementary)

	meta := core.GenerationMeta{
		TotalItems:   len(items),
		PrimaryItems: len(primary),
		RSSItems:     len(supplementary),
		GeneratedAt:  g.now().UTC(),
	}
	if g.extractor != nil {
		meta.Provider = g.extractor.Provider()
		meta.Model = g.extractor.Model()
	}

	first := g.newsletterPass(ctx, primary)
	meta.PrimaryBanking = len(first.BankingStories)
	meta.PrimaryAI = len(first.AIStories)

	filled := Merge(first, core.Extraction{})
	neededBanking := max(0, core.MaxStoriesPerSection-len(filled.BankingStories))
	neededAI := max(0, core.MaxStoriesPerSection-len(filled.AIStories))

	used := make(map[string]bool)
	for _, s := range concat(first.BankingStories, first.AIStories) {
		used[links.Normalize(s.SourceURL)] = true
	}

	second := g.candidatesPass(ctx, pools, used, neededBanking, neededAI)
	meta.RSSBanking = len(second.BankingStories)
	meta.RSSAI = len(second.AIStories)

	merged := Merge(first, second)
	content := core.DailyDigest{
		Date:           date,
		Category:       g.config.Category,
		BankingStories: merged.BankingStories,
		AIStories:      merged.AIStories,
	}

	if content.TotalStories() == 0 {
		content = ComposeFallback(date, pools.Banking, pools.AI)
		content.Category = g.config.Category
		meta.Fallback = true
		g.log.Warn().Str("date", date).
			Int("banking_candidates", len(pools.Banking)).
			Int("ai_candidates", len(pools.AI)).
			Msg("No stories extracted, using keyword fallback")
	}

	content.BriefSummary = BuildBriefSummary(content.BankingStories, content.AIStories)
	return content, meta
}

// primaryIssues returns newsletter items with a body, newest first.
func (g *Generator) primaryIssues(items []core.NewsItem) []core.NewsItem {
	var issues []core.NewsItem
	for _, item := range items {
		if item.SourceName == g.config.PrimarySource && item.Summary != "" {
			issues = append(issues, item)
		}
	}
	sort.SliceStable(issues, func(i, j int) bool {
		a, b := issues[i].PublishedAt, issues[j].PublishedAt
		if a == nil || b == nil {
			return a != nil
		}
		return a.After(*b)
	})
	return issues
}

// newsletterPass extracts stories from the newest issue. Every story points
// at the issue itself.
func (g *Generator) newsletterPass(ctx context.Context, issues []core.NewsItem) core.Extraction {
	if g.extractor == nil || len(issues) == 0 {
		return core.Extraction{}
	}

	issue := issues[0]
	text := truncateRunes(issue.Summary, g.config.NewsletterMaxChars)
	g.log.Debug().Str("issue", issue.URL).Int("chars", len([]rune(text))).Msg("Running newsletter pass")

	result := g.extractor.Extract(ctx, NewsletterPrompt(issue.URL), NewsletterPayload(text))
	if result == nil {
		g.log.Warn().Str("issue", issue.URL).Msg("Newsletter pass returned nothing")
		return core.Extraction{}
	}

	force := func(stories []core.DigestStory) []core.DigestStory {
		out := make([]core.DigestStory, len(stories))
		for i, s := range stories {
			s.SourceURL = issue.URL
			out[i] = s
		}
		return DedupeStories(out)
	}
	return core.Extraction{
		BankingStories: force(result.BankingStories),
		AIStories:      force(result.AIStories),
	}
}

// Candidate is one entry of the supplementary pass payload.
type Candidate struct {
	Idx     int    `json:"idx"`
	Pool    string `json:"pool"`
	Title   string `json:"title"`
	Summary string `json:"summary"`
	Source  string `json:"source"`
	URL     string `json:"url"`
}

const (
	poolBanking = "banking"
	poolAI      = "ai"
)

// Candidates merges both pools into the payload list: banking first,
// one entry per URL, items already used by the newsletter pass left out,
// capped at MaxCandidates.
func (g *Generator) Candidates(pools relevance.Pools, used map[string]bool) []Candidate {
	seen := make(map[string]bool)
	var out []Candidate

	add := func(items []core.NewsItem, pool string) {
		for _, item := range items {
			if len(out) == g.config.MaxCandidates {
				return
			}
			norm := links.Normalize(item.URL)
			if used[norm] {
				continue
			}
			key := links.DedupeKey(item.URL, item.Title)
			if seen[key] {
				continue
			}
			seen[key] = true

			source := item.SourceName
			if source == "" {
				source = "unknown"
			}
			out = append(out, Candidate{
				Idx:     len(out) + 1,
				Pool:    pool,
				Title:   item.Title,
				Summary: truncateRunes(item.Summary, g.config.CandidateSummaryChars),
				Source:  source,
				URL:     item.URL,
			})
		}
	}
	add(pools.Banking, poolBanking)
	add(pools.AI, poolAI)
	return out
}

// candidatesPass asks the model to fill the open slots from the candidates.
// It is skipped when nothing is open or nothing is left to choose from.
func (g *Generator) candidatesPass(ctx context.Context, pools relevance.Pools, used map[string]bool, neededBanking, neededAI int) core.Extraction {
	if g.extractor == nil || (neededBanking == 0 && neededAI == 0) {
		return core.Extraction{}
	}

	candidates := g.Candidates(pools, used)
	if len(candidates) == 0 {
		g.log.Debug().Msg("No supplementary candidates, skipping second pass")
		return core.Extraction{}
	}

	payload, err := json.Marshal(struct {
		Items []Candidate `json:"items"`
	}{Items: candidates})
	if err != nil {
		g.log.Warn().Err(err).Msg("Failed to encode candidates")
		return core.Extraction{}
	}

	g.log.Debug().Int("candidates", len(candidates)).
		Int("needed_banking", neededBanking).Int("needed_ai", neededAI).
		Msg("Running supplementary pass")

	result := g.extractor.Extract(ctx, CandidatesPrompt(neededBanking, neededAI), string(payload))
	if result == nil {
		g.log.Warn().Msg("Supplementary pass returned nothing")
		return core.Extraction{}
	}
	return core.Extraction{
		BankingStories: DedupeStories(result.BankingStories),
		AIStories:      DedupeStories(result.AIStories),
	}
}
