package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"meridian/internal/archive"
	"meridian/internal/config"
	"meridian/internal/core"
	"meridian/internal/digest"
	"meridian/internal/email"
	"meridian/internal/persistence"
	"meridian/internal/pipeline"
)

// NewDigestCmd creates the digest management command
func NewDigestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "digest",
		Short: "Inspect and manage stored digests",
		Long: `Inspect and manage stored digests.

Dates default to today in the configured digest timezone.

Subcommands:
  show            Print a digest, optionally writing the email HTML
  list            List recent digests
  approve         Approve a draft or skipped digest for sending
  skip            Keep a digest from being sent
  reset           Delete a digest and its send logs
  backfill-brief  Recompute missing or overlong brief summaries
  search          Full-text search over sent digests`,
	}

	cmd.AddCommand(newDigestShowCmd())
	cmd.AddCommand(newDigestListCmd())
	cmd.AddCommand(newDigestTransitionCmd("approve", "Approve a digest for sending"))
	cmd.AddCommand(newDigestTransitionCmd("skip", "Mark a digest as skipped"))
	cmd.AddCommand(newDigestResetCmd())
	cmd.AddCommand(newDigestBackfillCmd())
	cmd.AddCommand(newDigestSearchCmd())

	return cmd
}

// digestDate returns the date argument or today's digest date
func digestDate(args []string) (string, error) {
	if len(args) == 0 {
		return time.Now().In(config.Get().Digest.Location()).Format("2006-01-02"), nil
	}
	if _, err := time.Parse("2006-01-02", args[0]); err != nil {
		return "", fmt.Errorf("date must be YYYY-MM-DD, got %q", args[0])
	}
	return args[0], nil
}

func loadDigest(ctx context.Context, db persistence.Database, date string) (*core.Digest, error) {
	d, err := db.Digests().Get(ctx, date, core.DefaultCategory)
	if errors.Is(err, persistence.ErrNotFound) {
		return nil, fmt.Errorf("no digest for %s", date)
	}
	return d, err
}

func newDigestShowCmd() *cobra.Command {
	var htmlDir string

	cmd := &cobra.Command{
		Use:   "show [date]",
		Short: "Print a stored digest",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			date, err := digestDate(args)
			if err != nil {
				return err
			}
			db, err := openDatabase(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			d, err := loadDigest(ctx, db, date)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderDigest(*d))

			if htmlDir != "" {
				html, err := email.RenderDigestHTML(d.Content)
				if err != nil {
					return err
				}
				path, err := email.WriteHTMLEmail(html, htmlDir, "meridian-"+date+".html")
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "\nEmail HTML written to %s\n", path)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&htmlDir, "html", "", "Also write the rendered email HTML into this directory")
	return cmd
}

func newDigestListCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent digests",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, err := openDatabase(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			digests, err := db.Digests().ListRecent(ctx, limit)
			if err != nil {
				return err
			}
			if len(digests) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No digests stored yet")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "DATE\tSTATUS\tBANKING\tAI\tFALLBACK\tID")
			for _, d := range digests {
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%t\t%s\n",
					d.DigestDate, d.Status, len(d.Content.BankingStories), len(d.Content.AIStories), d.Meta.Fallback, d.ID)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", 14, "Maximum number of digests to list")
	return cmd
}

func newDigestTransitionCmd(action, short string) *cobra.Command {
	return &cobra.Command{
		Use:   action + " [date]",
		Short: short,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			date, err := digestDate(args)
			if err != nil {
				return err
			}
			db, err := openDatabase(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			d, err := loadDigest(ctx, db, date)
			if err != nil {
				return err
			}

			apply := db.Digests().Approve
			if action == "skip" {
				apply = db.Digests().Skip
			}
			ok, err := apply(ctx, d.ID)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("cannot %s a %s digest", action, d.Status)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Digest %s: %s -> %s\n", date, d.Status, transitionTarget(action))
			return nil
		},
	}
}

func transitionTarget(action string) core.DigestStatus {
	if action == "skip" {
		return core.StatusSkipped
	}
	return core.StatusApproved
}

func newDigestResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset [date]",
		Short: "Delete a digest and its send logs",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			date, err := digestDate(args)
			if err != nil {
				return err
			}
			db, err := openDatabase(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			n, err := db.Digests().DeleteForDate(ctx, date, core.DefaultCategory)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d digest(s) for %s\n", n, date)
			return nil
		},
	}
}

func newDigestBackfillCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "backfill-brief",
		Short: "Recompute missing or overlong brief summaries",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, err := openDatabase(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			updated, skipped, err := digest.BackfillBriefs(ctx, db.Digests(), limit)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Briefs updated: %d, unchanged: %d\n", updated, skipped)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", pipeline.DefaultBackfillLimit, "Number of recent digests to check")
	return cmd
}

func newDigestSearchCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the stories of sent digests",
		Long: `Search the stories of sent digests.

Queries use the Bleve query string syntax: quoted phrases, +required and
-excluded terms, and field:term on Title, Summary or Impact.

Examples:
  meridian digest search stablecoin
  meridian digest search '+Title:fraud -crypto'`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, err := openDatabase(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			digests, err := db.Digests().ListSent(ctx, 365)
			if err != nil {
				return err
			}
			idx, err := archive.Build(digests)
			if err != nil {
				return err
			}
			defer idx.Close()

			hits, err := idx.Search(strings.Join(args, " "), limit)
			if err != nil {
				return err
			}
			if len(hits) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No matching stories")
				return nil
			}
			for _, h := range hits {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %-7s  %s\n           %s\n", h.Date, h.Section, titleStyle.Render(h.Title), mutedStyle.Render(h.URL))
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", 10, "Maximum number of results")
	return cmd
}
