package handlers

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"meridian/internal/config"
	"meridian/internal/logger"
	"meridian/internal/persistence"
	"meridian/internal/pipeline"
	"meridian/internal/store"
)

var cfgFile string

// NewRootCmd creates the root command with all subcommands attached
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "meridian",
		Short: "Daily banking and AI news digest",
		Long: `Meridian builds a daily digest of banking and AI news.

Pipeline:
  ingest    Pull the primary newsletter, RSS sources and discovery results
  generate  Select candidates, extract stories with the LLM and merge them
  send      Email today's digest to the configured recipients

Examples:
  # Run the whole pipeline once
  meridian run

  # Review and approve today's digest before it goes out
  meridian digest show
  meridian digest approve

  # Serve the HTTP triggers with the built-in scheduler
  meridian serve --schedule`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			logger.InitWith(logger.Options{Level: cfg.App.LogLevel, Format: cfg.App.LogFormat})
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./.meridian.yaml or $HOME/.meridian.yaml)")

	rootCmd.AddCommand(NewIngestCmd())
	rootCmd.AddCommand(NewGenerateCmd())
	rootCmd.AddCommand(NewSendCmd())
	rootCmd.AddCommand(NewRunCmd())
	rootCmd.AddCommand(NewDigestCmd())
	rootCmd.AddCommand(NewSourcesCmd())
	rootCmd.AddCommand(NewSubscribersCmd())
	rootCmd.AddCommand(NewSettingsCmd())
	rootCmd.AddCommand(NewMigrateCmd())
	rootCmd.AddCommand(NewServeCmd())

	return rootCmd
}

// Execute runs the root command
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openDatabase connects to the configured database and applies pending
// migrations.
func openDatabase(ctx context.Context) (*persistence.SQLDB, error) {
	db, err := store.Open(ctx, config.Get().Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

// openPipeline opens the database and wires the full pipeline. The caller
// closes the returned database.
func openPipeline(ctx context.Context) (*pipeline.Pipeline, *persistence.SQLDB, error) {
	db, err := openDatabase(ctx)
	if err != nil {
		return nil, nil, err
	}

	p, err := pipeline.NewBuilder(config.Get(), db).WithLogger(logger.Get()).Build(ctx)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return p, db, nil
}
