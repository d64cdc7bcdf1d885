package cmd

import (
	"github.com/spf13/cobra"

	"github.com/yungbote/tutorloop-backend/internal/app"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var (
		withWorker bool
		migrate    bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(a *app.App) error {
				if err := a.Cfg.RequireAuth(); err != nil {
					return err
				}
				if migrate {
					if err := a.Migrate(); err != nil {
						return err
					}
				}
				return a.Run(cmd.Context(), withWorker)
			})
		},
	}
	cmd.Flags().BoolVar(&withWorker, "worker", false, "also run the job workers in this process")
	cmd.Flags().BoolVar(&migrate, "migrate", false, "run auto-migrate before serving")
	return cmd
}

func newWorkerCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run the job workers, stale-job sweeper and nightly optimization",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(a *app.App) error {
				return a.RunWorker(cmd.Context())
			})
		},
	}
}

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(a *app.App) error {
				if err := a.Migrate(); err != nil {
					return err
				}
				a.Log.Info("migration complete")
				return nil
			})
		},
	}
}
