package relevance

import (
	"sort"
	"time"

	"meridian/internal/core"
)

// DefaultLookback is the recency window applied to candidates.
const DefaultLookback = 72 * time.Hour

// Pools are the two ranked candidate lists.
type Pools struct {
	Banking []core.NewsItem
	AI      []core.NewsItem
}

// Selector builds ranked candidate pools from recent news items.
type Selector struct {
	lookback      time.Duration
	now           func() time.Time
	primarySource string
}

// Option configures a Selector.
type Option func(*Selector)

// WithLookback sets the recency window.
func WithLookback(d time.Duration) Option {
	return func(s *Selector) {
		if d > 0 {
			s.lookback = d
		}
	}
}

// WithClock injects the time source used by the recency gate.
func WithClock(now func() time.Time) Option {
	return func(s *Selector) {
		if now != nil {
			s.now = now
		}
	}
}

// WithPrimarySource names the newsletter source that Supplementary removes.
func WithPrimarySource(name string) Option {
	return func(s *Selector) { s.primarySource = name }
}

// NewSelector creates a Selector with a 72h lookback and the wall clock.
func NewSelector(opts ...Option) *Selector {
	s := &Selector{
		lookback: DefaultLookback,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Lookback returns the configured recency window.
func (s *Selector) Lookback() time.Duration { return s.lookback }

// IsRecent reports whether the item has a publish time no later than now and
// no older than the lookback window. Items without a publish time are never
// recent.
func (s *Selector) IsRecent(item core.NewsItem) bool {
	if item.PublishedAt == nil {
		return false
	}
	age := s.now().Sub(*item.PublishedAt)
	return age >= 0 && age <= s.lookback
}

// Supplementary returns the items eligible for the RSS pass: everything not
// from the primary newsletter, not paywalled and not a media page.
func (s *Selector) Supplementary(items []core.NewsItem) []core.NewsItem {
	filters := []Filter{NotPaywalled(), NotExcludedURL()}
	if s.primarySource != "" {
		filters = append([]Filter{NotFromSource(s.primarySource)}, filters...)
	}
	return ApplyFilters(items, filters...)
}

// BankingPool returns recent items mentioning both AI and banking, ranked by
// banking score. Ties keep input order.
func (s *Selector) BankingPool(items []core.NewsItem) []core.NewsItem {
	type scored struct {
		item  core.NewsItem
		score int
	}

	var candidates []scored
	for _, item := range items {
		if !s.IsRecent(item) {
			continue
		}
		hits := Score(item)
		if !hits.QualifiesBanking() {
			continue
		}
		candidates = append(candidates, scored{item: item, score: hits.BankingScore()})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	pool := make([]core.NewsItem, len(candidates))
	for i, c := range candidates {
		pool[i] = c.item
	}
	return pool
}

// AIPool returns recent AI items ranked by AI keyword hits. Ties keep input
// order.
func (s *Selector) AIPool(items []core.NewsItem) []core.NewsItem {
	type scored struct {
		item core.NewsItem
		hits int
	}

	var candidates []scored
	for _, item := range items {
		if !s.IsRecent(item) {
			continue
		}
		hits := Score(item)
		if !hits.QualifiesAI() {
			continue
		}
		candidates = append(candidates, scored{item: item, hits: hits.AI})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].hits > candidates[j].hits
	})

	pool := make([]core.NewsItem, len(candidates))
	for i, c := range candidates {
		pool[i] = c.item
	}
	return pool
}

// Pools builds both pools from the same input.
func (s *Selector) Pools(items []core.NewsItem) Pools {
	return Pools{
		Banking: s.BankingPool(items),
		AI:      s.AIPool(items),
	}
}
