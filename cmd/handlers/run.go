package handlers

import (
	"fmt"

	"github.com/spf13/cobra"

	"meridian/internal/pipeline"
	"meridian/internal/send"
)

// NewIngestCmd creates the ingest command
func NewIngestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest",
		Short: "Fetch the newsletter, RSS sources and discovery results",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			p, db, err := openPipeline(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			stats, err := p.Ingest(ctx)
			if err != nil {
				return err
			}
			printIngestStats(cmd.OutOrStdout(), stats)
			return nil
		},
	}
}

// NewGenerateCmd creates the generate command
func NewGenerateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "generate",
		Short: "Build and store today's digest",
		Long: `Build today's digest from recently ingested items.

The newsletter pass runs first, then a candidate pass over the other
sources fills the remaining slots. Without an LLM, or when both passes
come back empty, the keyword fallback produces the digest.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			p, db, err := openPipeline(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			d, err := p.Generate(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderDigest(*d))
			return nil
		},
	}
}

// NewSendCmd creates the send command
func NewSendCmd() *cobra.Command {
	var opts send.Options

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Email today's digest",
		Long: `Email today's digest to the configured recipients.

A digest that was already sent is not sent again unless --force is given.
When approval is required, only approved digests go out unless
--bypass-hitl is given. Skipped digests are never sent.

Examples:
  meridian send
  meridian send --test
  meridian send --force --bypass-hitl`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			p, db, err := openPipeline(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			res, err := p.Send(ctx, opts)
			if err != nil {
				return err
			}
			printSendResult(cmd.OutOrStdout(), res)
			return nil
		},
	}

	cmd.Flags().BoolVar(&opts.ForceResend, "force", false, "Send even if the digest was already sent")
	cmd.Flags().BoolVar(&opts.BypassHITL, "bypass-hitl", false, "Send without approval")
	cmd.Flags().BoolVar(&opts.TestMode, "test", false, "Send to the test address only and keep the digest status")

	return cmd
}

// NewRunCmd creates the run command
func NewRunCmd() *cobra.Command {
	var opts pipeline.RunOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run ingest, generate and send in order",
		Long: `Run the whole pipeline once for today's date.

Ingestion failures are logged and generation continues from stored items.
With --reset the stored digest for today is deleted first.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			p, db, err := openPipeline(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			res, err := p.RunAll(ctx, opts)
			out := cmd.OutOrStdout()
			if res != nil {
				fmt.Fprintf(out, "%s %s\n", headerStyle.Render("Run "+res.RunID), mutedStyle.Render(res.Date))
				if res.Reset != nil {
					fmt.Fprintf(out, "Reset: %d digest(s) deleted\n", *res.Reset)
				}
				if res.Ingest != nil {
					printIngestStats(out, res.Ingest)
				}
				if res.Digest != nil {
					fmt.Fprintf(out, "Digest: %s (%d stories, %s)\n", res.Digest.ID, res.Digest.Content.TotalStories(), res.Digest.Status)
				}
				if res.Send != nil {
					printSendResult(out, res.Send)
				}
			}
			return err
		},
	}

	cmd.Flags().BoolVar(&opts.Reset, "reset", false, "Delete today's digest before running")
	cmd.Flags().BoolVar(&opts.Send.ForceResend, "force", false, "Send even if the digest was already sent")
	cmd.Flags().BoolVar(&opts.Send.BypassHITL, "bypass-hitl", false, "Send without approval")

	return cmd
}
