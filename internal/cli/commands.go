package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/vidkeeper/internal/common"
	"github.com/dmitrijs2005/vidkeeper/internal/delivery"
	"github.com/dmitrijs2005/vidkeeper/internal/models"
	"github.com/dmitrijs2005/vidkeeper/internal/server"
	"github.com/spf13/cobra"
)

func newWorkerCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Consume the job queue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return e.withApp(cmd.Context(), func(app *server.App) error {
				return app.RunWorker(cmd.Context())
			})
		},
	}
}

func newRetentionCommand(e *env) *cobra.Command {
	var once bool
	cmd := &cobra.Command{
		Use:   "retention",
		Short: "Delete expired artifacts and enforce the storage quota",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return e.withApp(cmd.Context(), func(app *server.App) error {
				res, err := app.RunRetention(cmd.Context(), once)
				if res != nil {
					fmt.Fprintf(cmd.OutOrStdout(),
						"expired: %d\nevicted: %d\nerrors: %d\nfreed: %s\nusage: %s -> %s\n",
						res.Expired, res.Evicted, res.Errors, delivery.HumanSize(res.Freed),
						delivery.HumanSize(res.UsageBefore), delivery.HumanSize(res.UsageAfter))
				}
				return err
			})
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "run a single cycle and exit")
	return cmd
}

func newMigrateCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply catalog migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return e.withApp(cmd.Context(), func(*server.App) error {
				fmt.Fprintf(cmd.OutOrStdout(), "catalog %s is up to date\n", e.cfg.DatabaseDriver)
				return nil
			})
		},
	}
}

func newEnqueueCommand(e *env) *cobra.Command {
	j := &models.Job{}
	cmd := &cobra.Command{
		Use:   "enqueue <url>",
		Short: "Submit a retrieval request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			j.URL = strings.TrimSpace(args[0])
			if j.URL == "" {
				return fmt.Errorf("%w: empty url", common.ErrMalformedJob)
			}
			return e.withApp(cmd.Context(), func(app *server.App) error {
				if err := app.Enqueue(cmd.Context(), j); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "queued %s (%s)\n", j.URL, j.Quality)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&j.Quality, "quality", "q", "best", `quality tier: best, 1080, 720, 480 or "audio"`)
	cmd.Flags().Int64Var(&j.UserID, "user", common.AnonymousID, "requesting owner id")
	cmd.Flags().Int64Var(&j.ChatID, "chat", common.AnonymousID, "chat to notify; 0 disables notifications")
	return cmd
}

func newDeleteCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <artifact-id>",
		Short: "Delete one artifact with its files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.withApp(cmd.Context(), func(app *server.App) error {
				a, freed, err := app.Catalog().DestroyByID(cmd.Context(), args[0])
				if errors.Is(err, common.ErrNotFound) {
					return fmt.Errorf("artifact %s: %w", args[0], err)
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %s (%s), freed %s\n", a.ID, a.Title, delivery.HumanSize(freed))
				return nil
			})
		},
	}
}

func parseOwner(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("owner id %q: %w", s, err)
	}
	return id, nil
}

func newStatsCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "stats <owner-id>",
		Short: "Show an owner's usage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, err := parseOwner(args[0])
			if err != nil {
				return err
			}
			return e.withApp(cmd.Context(), func(app *server.App) error {
				st, err := app.Catalog().Stats(cmd.Context(), owner)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(),
					"📊 Your statistics\n\nVideos stored: %d\nStorage used: %s\nDownloads (7 days): %d\nDownloads (30 days): %d\n",
					st.Artifacts, delivery.HumanSize(st.BytesUsed), st.Downloads7d, st.Downloads30d)
				return nil
			})
		},
	}
}

func newPrefsCommand(e *env) *cobra.Command {
	var send bool
	cmd := &cobra.Command{
		Use:   "prefs <owner-id>",
		Short: "Show or change an owner's preferences",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, err := parseOwner(args[0])
			if err != nil {
				return err
			}
			return e.withApp(cmd.Context(), func(app *server.App) error {
				ctx := cmd.Context()
				if cmd.Flags().Changed("send-description") {
					if err := app.Catalog().SetSendDescription(ctx, owner, send); err != nil {
						return err
					}
				}
				p, err := app.Catalog().Preferences(ctx, owner)
				if err != nil {
					return err
				}
				origin := "default"
				if p.SendDescription != nil {
					origin = "set"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "send-description: %t (%s)\n", p.SendDescriptionOr(e.cfg.SendDescription), origin)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&send, "send-description", true, "send the post description after the file")
	return cmd
}
