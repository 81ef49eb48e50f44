// Package send delivers a stored digest to its recipients.
package send

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"meridian/internal/config"
	"meridian/internal/core"
	"meridian/internal/email"
	"meridian/internal/persistence"
)

// SkipReason explains why nothing was sent.
type SkipReason string

const (
	SkipNoDigest         SkipReason = "no_digest"
	SkipAlreadySent      SkipReason = "already_sent"
	SkipAwaitingApproval SkipReason = "awaiting_approval"
	SkipNoRecipients     SkipReason = "no_recipients"
	SkipSkipped          SkipReason = "skipped"
)

const defaultBatchSize = 100

// ErrNoMailer is returned when a send reaches delivery without a mailer.
var ErrNoMailer = errors.New("no mailer configured")

// Options modify a send.
type Options struct {
	ForceResend bool // send even if the digest is already sent
	BypassHITL  bool // ignore the approval gate
	TestMode    bool // log as test sends and leave the digest unsent
}

// Result is the outcome of a send.
type Result struct {
	Date     string     `json:"date"`
	DigestID string     `json:"digestId,omitempty"`
	Skipped  SkipReason `json:"skipped,omitempty"`
	Sent     int        `json:"sent"`
	Failed   int        `json:"failed"`
}

// DigestStore reads digests and records delivery.
type DigestStore interface {
	Get(ctx context.Context, date, category string) (*core.Digest, error)
	MarkSent(ctx context.Context, id string, at time.Time) error
}

// SettingsStore reads the approval toggle.
type SettingsStore interface {
	Get(ctx context.Context) (core.Settings, error)
}

// LogStore records delivery attempts.
type LogStore interface {
	Create(ctx context.Context, entry *core.SendLog) error
}

// SubscriberStore lists the addresses that receive digests.
type SubscriberStore interface {
	ListActiveEmails(ctx context.Context) ([]string, error)
}

// Mailer delivers one message and returns the provider message id.
type Mailer interface {
	Send(ctx context.Context, msg email.Message) (string, error)
}

// Sender runs the send step.
type Sender struct {
	digests    DigestStore
	settings   SettingsStore
	logs       LogStore
	mailer     Mailer
	subs       SubscriberStore
	recipients []string
	testTo     string
	batchSize  int
	hitlFloor  bool
	category   string
	loc        *time.Location
	now        func() time.Time
	log        *zerolog.Logger
}

// Option configures a Sender.
type Option func(*Sender)

// WithSubscribers reads active subscribers at send time.
func WithSubscribers(store SubscriberStore) Option {
	return func(s *Sender) { s.subs = store }
}

// WithRecipients adds fixed addresses that receive every digest alongside
// the active subscribers.
func WithRecipients(recipients ...string) Option {
	return func(s *Sender) { s.recipients = recipients }
}

// WithTestRecipient routes test-mode sends to a single address.
func WithTestRecipient(addr string) Option {
	return func(s *Sender) { s.testTo = addr }
}

// WithBatchSize sets how many messages are sent concurrently.
func WithBatchSize(n int) Option {
	return func(s *Sender) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithHITLRequired forces the approval gate on regardless of stored settings.
func WithHITLRequired(required bool) Option {
	return func(s *Sender) { s.hitlFloor = required }
}

// WithLocation sets the time zone used to pick today's digest.
func WithLocation(loc *time.Location) Option {
	return func(s *Sender) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(s *Sender) { s.now = now }
}

// WithLogger sets the logger.
func WithLogger(log *zerolog.Logger) Option {
	return func(s *Sender) {
		if log != nil {
			s.log = log
		}
	}
}

// FromConfig maps application configuration onto sender options.
func FromConfig(cfg *config.Config) []Option {
	return []Option{
		WithRecipients(cfg.Email.Recipients...),
		WithTestRecipient(cfg.Email.TestTo),
		WithBatchSize(cfg.Email.BatchSize),
		WithHITLRequired(cfg.Send.HITLDefault),
		WithLocation(cfg.Digest.Location()),
	}
}

// NewSender creates a sender. settings may be nil.
func NewSender(digests DigestStore, settings SettingsStore, logs LogStore, mailer Mailer, opts ...Option) *Sender {
	nop := zerolog.Nop()
	s := &Sender{
		digests:   digests,
		settings:  settings,
		logs:      logs,
		mailer:    mailer,
		batchSize: defaultBatchSize,
		category:  core.DefaultCategory,
		loc:       time.UTC,
		now:       time.Now,
		log:       &nop,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Today returns the digest date for the current time.
func (s *Sender) Today() string {
	return s.now().In(s.loc).Format("2006-01-02")
}

// SendToday sends today's digest.
func (s *Sender) SendToday(ctx context.Context, opts Options) (*Result, error) {
	return s.SendForDate(ctx, s.Today(), opts)
}

// SendForDate sends the digest stored for date. A missing, skipped, already
// sent or unapproved digest, or an empty recipient list, yields a result
// with a skip reason rather than an error.
func (s *Sender) SendForDate(ctx context.Context, date string, opts Options) (*Result, error) {
	result := &Result{Date: date}

	digest, err := s.digests.Get(ctx, date, s.category)
	if errors.Is(err, persistence.ErrNotFound) {
		result.Skipped = SkipNoDigest
		return result, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load digest: %w", err)
	}
	result.DigestID = digest.ID

	switch {
	case digest.Status == core.StatusSkipped:
		result.Skipped = SkipSkipped
		return result, nil
	case digest.Status == core.StatusSent && !opts.ForceResend:
		result.Skipped = SkipAlreadySent
		return result, nil
	}

	if !opts.BypassHITL {
		required, err := s.hitlRequired(ctx)
		if err != nil {
			return nil, err
		}
		if required && digest.Status != core.StatusApproved {
			result.Skipped = SkipAwaitingApproval
			return result, nil
		}
	}

	recipients, err := s.recipientsFor(ctx, opts)
	if err != nil {
		return nil, err
	}
	if len(recipients) == 0 {
		result.Skipped = SkipNoRecipients
		return result, nil
	}

	if s.mailer == nil {
		return nil, ErrNoMailer
	}

	html, err := email.RenderDigestHTML(digest.Content)
	if err != nil {
		return nil, err
	}
	subject := email.Subject(digest.Content)

	failures := s.deliver(ctx, recipients, subject, html)
	result.Failed = len(failures)
	result.Sent = len(recipients) - len(failures)

	failedStatus, sentStatus := core.SendFailed, core.SendSent
	if opts.TestMode {
		failedStatus, sentStatus = core.SendFailedTest, core.SendSentTest
	}

	for _, f := range failures {
		s.writeLog(ctx, &core.SendLog{DigestID: digest.ID, Recipient: f.recipient, Status: failedStatus, Error: f.err.Error()})
	}

	if result.Sent > 0 {
		s.writeLog(ctx, &core.SendLog{DigestID: digest.ID, Recipient: "batch:" + strconv.Itoa(result.Sent), Status: sentStatus})
		if !opts.TestMode {
			if err := s.digests.MarkSent(ctx, digest.ID, s.now().UTC()); err != nil {
				return result, fmt.Errorf("failed to mark digest sent: %w", err)
			}
		}
	}

	s.log.Info().
		Str("date", date).
		Str("digest_id", digest.ID).
		Int("sent", result.Sent).
		Int("failed", result.Failed).
		Bool("test", opts.TestMode).
		Msg("Digest send complete")
	return result, nil
}

func (s *Sender) hitlRequired(ctx context.Context) (bool, error) {
	if s.hitlFloor || s.settings == nil {
		return s.hitlFloor, nil
	}
	settings, err := s.settings.Get(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to load settings: %w", err)
	}
	return settings.HITLRequired, nil
}

// recipientsFor returns active subscribers followed by the fixed recipients,
// deduplicated case-insensitively. Test mode with a test address sends only
// there.
func (s *Sender) recipientsFor(ctx context.Context, opts Options) ([]string, error) {
	if opts.TestMode && s.testTo != "" {
		return []string{s.testTo}, nil
	}

	var all []string
	if s.subs != nil {
		active, err := s.subs.ListActiveEmails(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load subscribers: %w", err)
		}
		all = append(all, active...)
	}
	all = append(all, s.recipients...)

	seen := make(map[string]bool, len(all))
	var out []string
	for _, r := range all {
		r = strings.TrimSpace(r)
		key := strings.ToLower(r)
		if r == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, r)
	}
	return out, nil
}

type failure struct {
	recipient string
	err       error
}

// deliver sends one message per recipient, batchSize at a time, and returns
// the failures in recipient order.
func (s *Sender) deliver(ctx context.Context, recipients []string, subject, html string) []failure {
	errs := make([]error, len(recipients))

	for start := 0; start < len(recipients); start += s.batchSize {
		end := min(start+s.batchSize, len(recipients))

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = s.mailer.Send(ctx, email.Message{To: recipients[i], Subject: subject, HTML: html})
			}(i)
		}
		wg.Wait()

		s.log.Debug().Int("from", start).Int("to", end).Msg("Batch delivered")
	}

	var failures []failure
	for i, err := range errs {
		if err != nil {
			failures = append(failures, failure{recipient: recipients[i], err: err})
		}
	}
	return failures
}

func (s *Sender) writeLog(ctx context.Context, entry *core.SendLog) {
	if err := s.logs.Create(ctx, entry); err != nil {
		s.log.Warn().Err(err).Str("recipient", entry.Recipient).Msg("Failed to write send log")
	}
}
