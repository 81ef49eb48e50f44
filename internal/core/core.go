package core

import "time"

// DefaultCategory is the only digest category produced today.
const DefaultCategory = "fintech_banking"

// MaxStoriesPerSection caps each digest section.
const MaxStoriesPerSection = 3

// NewsItem is a single ingested article or newsletter issue.
type NewsItem struct {
	ID          string     `json:"id"`                     // Unique identifier (uuid)
	URLHash     string     `json:"url_hash"`               // SHA-256 of the canonical URL
	Title       string     `json:"title"`                  // Headline
	URL         string     `json:"url"`                    // Canonical URL
	RawURL      string     `json:"raw_url"`                // URL as discovered
	Summary     string     `json:"summary,omitempty"`      // Feed snippet or full newsletter body
	PublishedAt *time.Time `json:"published_at,omitempty"` // Nil when the feed carried no usable date
	SourceName  string     `json:"source_name"`            // Display name of the source
	SourceURL   string     `json:"source_url"`             // Feed or endpoint the item came from
	IngestedAt  time.Time  `json:"ingested_at"`            // Last time ingest saw the item
}

// DigestStory is one entry of a digest section.
type DigestStory struct {
	Title            string `json:"title"`
	ExecutiveSummary string `json:"executiveSummary"`
	BusinessImpact   string `json:"businessImpact"`
	SourceURL        string `json:"sourceUrl"`
}

// DailyDigest is the stored content of one day's digest.
type DailyDigest struct {
	Date           string        `json:"date"`                   // YYYY-MM-DD
	Category       string        `json:"category"`               // Always DefaultCategory today
	BankingStories []DigestStory `json:"bankingStories"`         // At most MaxStoriesPerSection
	AIStories      []DigestStory `json:"aiStories"`              // At most MaxStoriesPerSection
	BriefSummary   string        `json:"briefSummary,omitempty"` // Short headline phrases joined by " · "
}

// TotalStories returns the combined story count.
func (d DailyDigest) TotalStories() int {
	return len(d.BankingStories) + len(d.AIStories)
}

// Extraction is a validated model response: two sections of stories.
type Extraction struct {
	BankingStories []DigestStory `json:"bankingStories"`
	AIStories      []DigestStory `json:"aiStories"`
}

// GenerationMeta records how a digest was produced.
type GenerationMeta struct {
	TotalItems     int       `json:"totalItems"`     // News items considered
	PrimaryItems   int       `json:"smolItems"`      // Items from the primary newsletter source
	RSSItems       int       `json:"rssItems"`       // Supplementary items
	PrimaryBanking int       `json:"smolBanking"`    // Banking stories from the newsletter pass
	PrimaryAI      int       `json:"smolAi"`         // AI stories from the newsletter pass
	RSSBanking     int       `json:"rssBanking"`     // Banking stories from the supplementary pass
	RSSAI          int       `json:"rssAi"`          // AI stories from the supplementary pass
	Fallback       bool      `json:"fallback"`       // True when the keyword fallback produced the content
	Provider       string    `json:"provider"`       // LLM provider used, empty when none
	Model          string    `json:"model"`          // LLM model used, empty when none
	GeneratedAt    time.Time `json:"generatedAt"`    // Generation timestamp
}

// DigestStatus is the lifecycle state of a stored digest.
type DigestStatus string

const (
	StatusDraft    DigestStatus = "draft"
	StatusApproved DigestStatus = "approved"
	StatusSkipped  DigestStatus = "skipped"
	StatusSent     DigestStatus = "sent"
)

// CanApprove reports whether approve is a valid transition from s.
func (s DigestStatus) CanApprove() bool {
	return s == StatusDraft || s == StatusSkipped
}

// CanSkip reports whether skip is a valid transition from s.
func (s DigestStatus) CanSkip() bool {
	return s == StatusDraft || s == StatusApproved
}

// CanSend reports whether a digest in state s may be delivered at all.
func (s DigestStatus) CanSend() bool {
	return s == StatusDraft || s == StatusApproved
}

// Digest is a stored digest row.
type Digest struct {
	ID         string         `json:"id"`
	DigestDate string         `json:"digest_date"`
	Category   string         `json:"category"`
	Status     DigestStatus   `json:"status"`
	Content    DailyDigest    `json:"content"`
	Meta       GenerationMeta `json:"generation_meta"`
	ApprovedAt *time.Time     `json:"approved_at,omitempty"`
	SentAt     *time.Time     `json:"sent_at,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// SubscriberStatus marks whether a subscriber receives digests.
type SubscriberStatus string

const (
	SubscriberActive       SubscriberStatus = "active"
	SubscriberUnsubscribed SubscriberStatus = "unsubscribed"
)

// Subscriber is a digest recipient. Email is stored lowercased.
type Subscriber struct {
	ID        string           `json:"id"`
	Email     string           `json:"email"`
	Status    SubscriberStatus `json:"status"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// SourceType distinguishes how a source is fetched.
type SourceType string

const (
	SourceRSS SourceType = "rss"
	SourceAPI SourceType = "api"
)

// Source is a configured news feed.
type Source struct {
	ID        string     `json:"id" yaml:"-"`
	Name      string     `json:"name" yaml:"name"`
	URL       string     `json:"url" yaml:"url"`
	Type      SourceType `json:"type" yaml:"type"`
	IsActive  bool       `json:"is_active" yaml:"active"`
	CreatedAt time.Time  `json:"created_at" yaml:"-"`
}

// SendStatus is the outcome recorded in a send log row.
type SendStatus string

const (
	SendSent       SendStatus = "sent"
	SendFailed     SendStatus = "failed"
	SendSentTest   SendStatus = "sent_test"
	SendFailedTest SendStatus = "failed_test"
)

// SendLog records one delivery attempt (or an aggregated batch).
type SendLog struct {
	ID                string     `json:"id"`
	DigestID          string     `json:"digest_id"`
	Recipient         string     `json:"recipient"`
	Status            SendStatus `json:"status"`
	ProviderMessageID string     `json:"provider_message_id,omitempty"`
	Error             string     `json:"error,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

// Settings are the runtime toggles stored in the database.
type Settings struct {
	HITLRequired bool `json:"hitlRequired"`
}
