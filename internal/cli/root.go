// Package cli is the vidkeeper command tree.
package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/dmitrijs2005/vidkeeper/internal/config"
	"github.com/dmitrijs2005/vidkeeper/internal/logging"
	"github.com/dmitrijs2005/vidkeeper/internal/server"
	"github.com/spf13/cobra"
)

// env is what every subcommand receives once configuration is loaded.
type env struct {
	cfg    *config.Config
	logger logging.Logger
}

// NewRootCommand builds the command tree. Configuration is loaded before any
// subcommand runs, from defaults, --config, the environment and the
// persistent flags, in that order.
func NewRootCommand() *cobra.Command {
	e := &env{}
	root := &cobra.Command{
		Use:           "vidkeeper",
		Short:         "Media retrieval worker with retention and quota eviction",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return err
			}
			logger, err := logging.New(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)
			if err != nil {
				return err
			}
			e.cfg, e.logger = cfg, logger
			return nil
		},
	}
	config.RegisterFlags(root.PersistentFlags())

	root.AddCommand(
		newWorkerCommand(e),
		newRetentionCommand(e),
		newMigrateCommand(e),
		newEnqueueCommand(e),
		newDeleteCommand(e),
		newStatsCommand(e),
		newPrefsCommand(e),
	)
	return root
}

// Execute runs the command tree with ctx and prints a failure to stderr.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := NewRootCommand()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return 1
	}
	return 0
}

// withApp opens the catalog for the duration of fn.
func (e *env) withApp(ctx context.Context, fn func(app *server.App) error) error {
	app, err := server.NewApp(ctx, e.cfg, e.logger)
	if err != nil {
		return err
	}
	defer app.Close()
	return fn(app)
}
