package handlers

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"meridian/internal/config"
	"meridian/internal/feeds"
	"meridian/internal/fetch"
	"meridian/internal/logger"
	"meridian/internal/persistence"
	"meridian/internal/sources"
)

// NewSourcesCmd creates the source management command
func NewSourcesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "sources",
		Aliases: []string{"feed"},
		Short:   "Manage RSS sources",
		Long: `Manage the RSS sources that ingestion reads from.

Subcommands:
  list      List sources
  add       Add a feed after checking that it parses
  remove    Remove a source
  enable    Enable a source
  disable   Disable a source
  seed      Insert the built-in default sources

Examples:
  meridian sources seed
  meridian sources add "Finextra" https://www.finextra.com/rss/headlines.aspx`,
	}

	cmd.AddCommand(newSourcesListCmd())
	cmd.AddCommand(newSourcesAddCmd())
	cmd.AddCommand(newSourcesRemoveCmd())
	cmd.AddCommand(newSourcesToggleCmd("enable", true))
	cmd.AddCommand(newSourcesToggleCmd("disable", false))
	cmd.AddCommand(newSourcesSeedCmd())

	return cmd
}

// withSources opens the database and hands a source manager to fn
func withSources(ctx context.Context, fn func(m *sources.Manager) error) error {
	db, err := openDatabase(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	ic := config.Get().Ingest
	fetcher := feeds.NewFeedManager(ic.UserAgent, config.Duration(ic.Timeout, fetch.DefaultTimeout))
	return fn(sources.NewManager(db.Sources(), fetcher, logger.Get()))
}

func newSourcesListCmd() *cobra.Command {
	var activeOnly bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List sources",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSources(cmd.Context(), func(m *sources.Manager) error {
				list, err := m.ListSources(cmd.Context(), activeOnly)
				if err != nil {
					return err
				}
				if len(list) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No sources. Run 'meridian sources seed' to add the defaults.")
					return nil
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "NAME\tTYPE\tACTIVE\tURL\tID")
				for _, s := range list {
					fmt.Fprintf(w, "%s\t%s\t%t\t%s\t%s\n", s.Name, s.Type, s.IsActive, s.URL, s.ID)
				}
				return w.Flush()
			})
		},
	}

	cmd.Flags().BoolVar(&activeOnly, "active", false, "Only list active sources")
	return cmd
}

func newSourcesAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <name> <feed-url>",
		Short: "Add an RSS source",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSources(cmd.Context(), func(m *sources.Manager) error {
				s, err := m.AddSource(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added %s (%s)\n", s.Name, s.ID)
				return nil
			})
		},
	}
}

func newSourcesRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove a source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSources(cmd.Context(), func(m *sources.Manager) error {
				if err := m.RemoveSource(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", args[0])
				return nil
			})
		},
	}
}

func newSourcesToggleCmd(use string, active bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: fmt.Sprintf("%s a source", map[bool]string{true: "Enable", false: "Disable"}[active]),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSources(cmd.Context(), func(m *sources.Manager) error {
				if err := m.ToggleSource(cmd.Context(), args[0], active); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Source %s active=%t\n", args[0], active)
				return nil
			})
		},
	}
}

func newSourcesSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert the built-in default sources",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSources(cmd.Context(), func(m *sources.Manager) error {
				added, err := m.Seed(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d new source(s)\n", added)
				return nil
			})
		},
	}
}

// NewSettingsCmd creates the settings command
func NewSettingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change runtime settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSettings(cmd.Context(), func(repo persistence.SettingsRepository) error {
				s, err := repo.Get(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "hitl: %s (send.hitl_default=%t)\n", onOff(s.HITLRequired), config.Get().Send.HITLDefault)
				return nil
			})
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:       "hitl <on|off>",
		Short:     "Require approval before digests are sent",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"on", "off"},
		RunE: func(cmd *cobra.Command, args []string) error {
			enabled, err := parseOnOff(args[0])
			if err != nil {
				return err
			}
			return withSettings(cmd.Context(), func(repo persistence.SettingsRepository) error {
				s, err := repo.Get(cmd.Context())
				if err != nil {
					return err
				}
				s.HITLRequired = enabled
				if err := repo.Save(cmd.Context(), s); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "hitl: %s\n", onOff(enabled))
				return nil
			})
		},
	})

	return cmd
}

func withSettings(ctx context.Context, fn func(repo persistence.SettingsRepository) error) error {
	db, err := openDatabase(ctx)
	if err != nil {
		return err
	}
	defer db.Close()
	return fn(db.Settings())
}

func parseOnOff(v string) (bool, error) {
	switch v {
	case "on", "true", "yes", "1":
		return true, nil
	case "off", "false", "no", "0":
		return false, nil
	}
	return false, fmt.Errorf("expected on or off, got %q", v)
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}
