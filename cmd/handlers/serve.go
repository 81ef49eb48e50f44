package handlers

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"meridian/internal/config"
	"meridian/internal/logger"
	"meridian/internal/pipeline"
	"meridian/internal/scheduler"
	"meridian/internal/send"
	"meridian/internal/server"
)

// NewServeCmd creates the serve command for starting the HTTP server
func NewServeCmd() *cobra.Command {
	var (
		port     int
		host     string
		schedule bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Long: `Start the HTTP server.

The server provides:
  • /api/cron/{ingest,generate,send} triggers for an external scheduler
  • /api/manual/* operator triggers
  • /api/digests review endpoints and the public /api/issues archive

With --schedule the daily jobs also run in-process on the cron
expressions from the scheduler config section.

Examples:
  meridian serve
  meridian serve --port 3000 --schedule`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Get()
			serverCfg := cfg.Server
			if port != 0 {
				serverCfg.Port = port
			}
			if host != "" {
				serverCfg.Host = host
			}
			return runServe(cmd.Context(), cfg, serverCfg, schedule)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "HTTP server port (default from config: 8080)")
	cmd.Flags().StringVar(&host, "host", "", "HTTP server host (default from config: 0.0.0.0)")
	cmd.Flags().BoolVar(&schedule, "schedule", false, "Run the daily jobs on the configured cron schedules")

	return cmd
}

func runServe(ctx context.Context, cfg *config.Config, serverCfg config.Server, schedule bool) error {
	log := logger.Get()

	p, db, err := openPipeline(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	srv := server.New(db, p, serverCfg, log)

	var sched *scheduler.Scheduler
	if schedule {
		sched, err = startScheduler(cfg, p)
		if err != nil {
			return err
		}
	}

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- srv.Start()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		log.Info().Str("signal", sig.String()).Msg("Server shutdown initiated")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), config.Duration(serverCfg.ShutdownTimeout, 30*time.Second))
		defer cancel()

		if sched != nil {
			sched.Stop(shutdownCtx)
		}
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server shutdown failed, forcing close")
			return err
		}
		log.Info().Msg("Server stopped successfully")
	}

	return nil
}

func startScheduler(cfg *config.Config, p *pipeline.Pipeline) (*scheduler.Scheduler, error) {
	log := logger.Get()

	loc := cfg.Digest.Location()
	if cfg.Scheduler.Timezone != "" {
		l, err := time.LoadLocation(cfg.Scheduler.Timezone)
		if err != nil {
			return nil, fmt.Errorf("invalid scheduler timezone %q: %w", cfg.Scheduler.Timezone, err)
		}
		loc = l
	}

	sched := scheduler.New(loc, 15*time.Minute, log)
	jobs := scheduler.DailyJobs(cfg.Scheduler,
		func(ctx context.Context) error {
			_, err := p.Ingest(ctx)
			return err
		},
		func(ctx context.Context) error {
			_, err := p.Generate(ctx)
			return err
		},
		func(ctx context.Context) error {
			_, err := p.Send(ctx, send.Options{})
			return err
		},
	)
	for _, job := range jobs {
		if err := sched.Add(job); err != nil {
			return nil, err
		}
	}
	sched.Start()

	for _, job := range jobs {
		if next, ok := sched.Next(job.Name); ok {
			log.Info().Str("job", job.Name).Time("next", next).Msg("Scheduled job")
		}
	}
	return sched, nil
}
