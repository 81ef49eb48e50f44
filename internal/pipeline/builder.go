package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"meridian/internal/config"
	"meridian/internal/digest"
	"meridian/internal/email"
	"meridian/internal/feeds"
	"meridian/internal/fetch"
	"meridian/internal/ingest"
	"meridian/internal/llm"
	"meridian/internal/persistence"
	"meridian/internal/send"
)

// Builder helps construct a fully configured Pipeline
type Builder struct {
	cfg          *config.Config
	db           persistence.Database
	extractor    llm.Extractor
	extractorSet bool
	mailer       send.Mailer
	mailerSet    bool
	log          *zerolog.Logger
}

// NewBuilder creates a builder over cfg and db
func NewBuilder(cfg *config.Config, db persistence.Database) *Builder {
	nop := zerolog.Nop()
	return &Builder{cfg: cfg, db: db, log: &nop}
}

// WithExtractor sets the LLM extractor instead of building one from config.
// A nil extractor forces the keyword fallback.
func (b *Builder) WithExtractor(e llm.Extractor) *Builder {
	b.extractor = e
	b.extractorSet = true
	return b
}

// WithMailer sets the mailer instead of building an SMTP mailer from config
func (b *Builder) WithMailer(m send.Mailer) *Builder {
	b.mailer = m
	b.mailerSet = true
	return b
}

// WithLogger sets the logger handed to every step
func (b *Builder) WithLogger(log *zerolog.Logger) *Builder {
	if log != nil {
		b.log = log
	}
	return b
}

// Build constructs the ingest runner, generator and sender and wires them
// into a Pipeline
func (b *Builder) Build(ctx context.Context) (*Pipeline, error) {
	if b.cfg == nil || b.db == nil {
		return nil, fmt.Errorf("config and database are required")
	}

	if !b.extractorSet {
		extractor, err := llm.NewExtractor(ctx, b.cfg.AI, b.log)
		if err != nil {
			return nil, fmt.Errorf("failed to create extractor: %w", err)
		}
		if extractor != nil {
			b.extractor = extractor
		}
	}
	if b.extractor == nil {
		b.log.Warn().Msg("No LLM configured, digests will use the keyword fallback")
	}

	if !b.mailerSet {
		mailer, err := email.NewSMTPMailer(b.cfg.Email)
		switch {
		case errors.Is(err, email.ErrNotConfigured):
			b.log.Debug().Msg("SMTP not configured, sends will fail")
		case err != nil:
			return nil, fmt.Errorf("failed to create mailer: %w", err)
		default:
			b.mailer = mailer
		}
	}

	ingester := b.ingester()

	generator := digest.NewGenerator(b.db.NewsItems(), b.db.Digests(), b.extractor,
		digest.WithConfig(digest.ConfigFrom(b.cfg.Digest)),
		digest.WithLogger(b.log))

	senderOpts := append(send.FromConfig(b.cfg), send.WithSubscribers(b.db.Subscribers()), send.WithLogger(b.log))
	sender := send.NewSender(b.db.Digests(), b.db.Settings(), b.db.SendLogs(), b.mailer, senderOpts...)

	return NewPipeline(ingester, generator, sender, b.db.Digests(), b.log), nil
}

func (b *Builder) ingester() *ingest.Runner {
	ic := b.cfg.Ingest
	timeout := config.Duration(ic.Timeout, fetch.DefaultTimeout)

	feedManager := feeds.NewFeedManager(ic.UserAgent, timeout)
	pages := fetch.NewFetcher(fetch.WithUserAgent(ic.UserAgent), fetch.WithTimeout(timeout))

	runnerCfg := ingest.ConfigFrom(ic)
	runnerCfg.PrimarySource = b.cfg.Digest.PrimarySource

	opts := []ingest.Option{ingest.WithConfig(runnerCfg), ingest.WithLogger(b.log)}
	if ic.Discovery.APIKey != "" {
		d := ic.Discovery
		opts = append(opts, ingest.WithSearcher(ingest.NewDiscoveryClient(d.APIKey, d.BaseURL, d.Query, d.NumResults)))
	}
	return ingest.NewRunner(b.db.NewsItems(), b.db.Sources(), feedManager, pages, opts...)
}
