package handlers

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"meridian/internal/core"
	"meridian/internal/persistence"
)

// NewSubscribersCmd creates the subscriber management command
func NewSubscribersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "subscribers",
		Short: "Manage digest subscribers",
		Long: `Manage the subscribers that receive the daily digest.

Active subscribers are read at send time together with email.recipients.

Subcommands:
  list         List subscribers
  add          Add a subscriber, or reactivate an unsubscribed one
  unsubscribe  Stop sending to an address but keep its row
  remove       Delete a subscriber by ID`,
	}

	cmd.AddCommand(newSubscribersListCmd())
	cmd.AddCommand(newSubscribersAddCmd())
	cmd.AddCommand(newSubscribersUnsubscribeCmd())
	cmd.AddCommand(newSubscribersRemoveCmd())

	return cmd
}

func withSubscribers(ctx context.Context, fn func(repo persistence.SubscriberRepository) error) error {
	db, err := openDatabase(ctx)
	if err != nil {
		return err
	}
	defer db.Close()
	return fn(db.Subscribers())
}

func newSubscribersListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List subscribers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSubscribers(cmd.Context(), func(repo persistence.SubscriberRepository) error {
				subs, err := repo.List(cmd.Context())
				if err != nil {
					return err
				}
				if len(subs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No subscribers")
					return nil
				}

				active := 0
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "EMAIL\tSTATUS\tSINCE\tID")
				for _, s := range subs {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.Email, s.Status, s.CreatedAt.Format("2006-01-02"), s.ID)
					if s.Status == core.SubscriberActive {
						active++
					}
				}
				if err := w.Flush(); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "\n%d active of %d\n", active, len(subs))
				return nil
			})
		},
	}
}

func newSubscribersAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <email>...",
		Short: "Add or reactivate subscribers",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSubscribers(cmd.Context(), func(repo persistence.SubscriberRepository) error {
				for _, addr := range args {
					s, err := repo.AddOrActivate(cmd.Context(), addr)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Subscribed %s (%s)\n", s.Email, s.ID)
				}
				return nil
			})
		},
	}
}

func newSubscribersUnsubscribeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unsubscribe <email>",
		Short: "Unsubscribe an address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSubscribers(cmd.Context(), func(repo persistence.SubscriberRepository) error {
				err := repo.Unsubscribe(cmd.Context(), args[0])
				if errors.Is(err, persistence.ErrNotFound) {
					return fmt.Errorf("no subscriber %s", args[0])
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Unsubscribed %s\n", args[0])
				return nil
			})
		},
	}
}

func newSubscribersRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Delete a subscriber",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSubscribers(cmd.Context(), func(repo persistence.SubscriberRepository) error {
				err := repo.Delete(cmd.Context(), args[0])
				if errors.Is(err, persistence.ErrNotFound) {
					return fmt.Errorf("no subscriber with id %s", args[0])
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", args[0])
				return nil
			})
		},
	}
}
