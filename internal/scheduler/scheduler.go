// Package scheduler runs the daily ingest, generate and send jobs on cron
// schedules.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"meridian/internal/config"
)

// Job is one scheduled step.
type Job struct {
	Name string
	Spec string
	Run  func(ctx context.Context) error
}

// Scheduler wraps a cron runner.
type Scheduler struct {
	cron    *cron.Cron
	timeout time.Duration
	log     *zerolog.Logger
	entries map[string]cron.EntryID
}

// New creates a scheduler evaluating specs in loc. Each run gets its own
// context bounded by timeout.
func New(loc *time.Location, timeout time.Duration, log *zerolog.Logger) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	if timeout <= 0 {
		timeout = 15 * time.Minute
	}
	return &Scheduler{
		cron:    cron.New(cron.WithLocation(loc), cron.WithChain(cron.Recover(cronLogger{log}), cron.SkipIfStillRunning(cronLogger{log}))),
		timeout: timeout,
		log:     log,
		entries: make(map[string]cron.EntryID),
	}
}

// Add registers a job. An empty spec disables the job.
func (s *Scheduler) Add(job Job) error {
	if job.Spec == "" {
		s.log.Info().Str("job", job.Name).Msg("Job disabled")
		return nil
	}
	id, err := s.cron.AddFunc(job.Spec, func() { s.run(job) })
	if err != nil {
		return fmt.Errorf("invalid schedule %q for %s: %w", job.Spec, job.Name, err)
	}
	s.entries[job.Name] = id
	s.log.Info().Str("job", job.Name).Str("spec", job.Spec).Msg("Job scheduled")
	return nil
}

func (s *Scheduler) run(job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	start := time.Now()
	if err := job.Run(ctx); err != nil {
		s.log.Error().Err(err).Str("job", job.Name).Dur("elapsed", time.Since(start)).Msg("Scheduled job failed")
		return
	}
	s.log.Info().Str("job", job.Name).Dur("elapsed", time.Since(start)).Msg("Scheduled job finished")
}

// Next returns the next run time of a registered job.
func (s *Scheduler) Next(name string) (time.Time, bool) {
	id, ok := s.entries[name]
	if !ok {
		return time.Time{}, false
	}
	return s.cron.Entry(id).Next, true
}

// Start begins running jobs in the background.
func (s *Scheduler) Start() { s.cron.Start() }

// Stop stops scheduling and waits for running jobs or ctx, whichever ends first.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}

// DailyJobs builds the ingest, generate and send jobs from configuration.
func DailyJobs(cfg config.Scheduler, ingest, generate, send func(ctx context.Context) error) []Job {
	return []Job{
		{Name: "ingest", Spec: cfg.Ingest, Run: ingest},
		{Name: "generate", Spec: cfg.Generate, Run: generate},
		{Name: "send", Spec: cfg.Send, Run: send},
	}
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct{ log *zerolog.Logger }

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
