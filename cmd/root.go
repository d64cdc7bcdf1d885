package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/yungbote/tutorloop-backend/internal/app"
)

// Version is set at build time with -ldflags "-X .../cmd.Version=...".
var Version = "dev"

func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return newRootCmd().ExecuteContext(ctx)
}

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	rootCmd := &cobra.Command{
		Use:           "tutorloop",
		Short:         "Spaced-repetition tutoring backend",
		Long:          "tutorloop runs the tutoring API, the background job workers, and the operator tooling around them.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to a YAML config file (default: $CONFIG_FILE or ./config.yaml)")

	rootCmd.AddCommand(
		newVersionCmd(),
		newServeCmd(opts),
		newWorkerCmd(opts),
		newMigrateCmd(opts),
		newJobsCmd(opts),
		newTokenCmd(opts),
		newSeedCmd(opts),
	)
	return rootCmd
}

// withApp loads config, builds the app, runs fn and closes the app.
func withApp(cmd *cobra.Command, opts *rootOptions, fn func(a *app.App) error) error {
	cfg, err := app.LoadConfig(opts.configPath)
	if err != nil {
		return err
	}
	a, err := app.New(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}
