// Package pipeline orchestrates the daily ingest, generate and send steps.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"meridian/internal/core"
	"meridian/internal/digest"
	"meridian/internal/ingest"
	"meridian/internal/send"
)

// DefaultBackfillLimit bounds how many stored digests a brief backfill scans.
const DefaultBackfillLimit = 365

// Pipeline coordinates the three daily steps
type Pipeline struct {
	ingester  Ingester
	generator DigestGenerator
	sender    DigestSender
	digests   DigestAdmin
	category  string
	log       *zerolog.Logger
}

// NewPipeline creates a pipeline from its steps
func NewPipeline(ingester Ingester, generator DigestGenerator, sender DigestSender, digests DigestAdmin, log *zerolog.Logger) *Pipeline {
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	return &Pipeline{
		ingester:  ingester,
		generator: generator,
		sender:    sender,
		digests:   digests,
		category:  core.DefaultCategory,
		log:       log,
	}
}

// RunOptions configures RunAll
type RunOptions struct {
	Reset bool         // delete today's digest and its send logs first
	Send  send.Options // options for the send step
}

// RunResult reports every step of a full run
type RunResult struct {
	RunID    string        `json:"runId"`
	Date     string        `json:"digestDate"`
	Reset    *int64        `json:"reset,omitempty"`
	Ingest   *ingest.Stats `json:"ingest"`
	Digest   *core.Digest  `json:"digest"`
	Send     *send.Result  `json:"send"`
	Duration string        `json:"duration"`
}

// Today returns the digest date the steps operate on
func (p *Pipeline) Today() string {
	return p.generator.Date()
}

// Ingest runs ingestion
func (p *Pipeline) Ingest(ctx context.Context) (*ingest.Stats, error) {
	return p.ingester.Run(ctx)
}

// Generate builds today's digest
func (p *Pipeline) Generate(ctx context.Context) (*core.Digest, error) {
	return p.generator.Generate(ctx)
}

// Send sends today's digest
func (p *Pipeline) Send(ctx context.Context, opts send.Options) (*send.Result, error) {
	return p.sender.SendForDate(ctx, p.Today(), opts)
}

// Reset deletes the digest for date together with its send logs
func (p *Pipeline) Reset(ctx context.Context, date string) (int64, error) {
	n, err := p.digests.DeleteForDate(ctx, date, p.category)
	if err != nil {
		return 0, fmt.Errorf("failed to reset digest for %s: %w", date, err)
	}
	p.log.Info().Str("date", date).Int64("deleted", n).Msg("Digest reset")
	return n, nil
}

// BackfillBriefs recomputes missing or overlong brief summaries
func (p *Pipeline) BackfillBriefs(ctx context.Context, limit int) (updated, skipped int, err error) {
	if limit <= 0 {
		limit = DefaultBackfillLimit
	}
	return digest.BackfillBriefs(ctx, p.digests, limit)
}

// RunAll runs ingest, generate and send in order. An ingest failure is
// logged and generation continues with whatever is stored; generate and
// send failures stop the run.
func (p *Pipeline) RunAll(ctx context.Context, opts RunOptions) (*RunResult, error) {
	start := time.Now()
	result := &RunResult{RunID: uuid.NewString(), Date: p.Today()}
	log := p.log.With().Str("run_id", result.RunID).Str("date", result.Date).Logger()

	if opts.Reset {
		n, err := p.Reset(ctx, result.Date)
		if err != nil {
			return result, err
		}
		result.Reset = &n
	}

	stats, err := p.Ingest(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Ingestion failed, generating from stored items")
	}
	result.Ingest = stats

	d, err := p.Generate(ctx)
	if err != nil {
		return result, fmt.Errorf("generate: %w", err)
	}
	result.Digest = d

	sent, err := p.sender.SendForDate(ctx, result.Date, opts.Send)
	if err != nil {
		return result, fmt.Errorf("send: %w", err)
	}
	result.Send = sent

	result.Duration = time.Since(start).Round(time.Millisecond).String()
	log.Info().Str("duration", result.Duration).Msg("Pipeline run complete")
	return result, nil
}
