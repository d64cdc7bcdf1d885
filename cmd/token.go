package cmd

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/yungbote/tutorloop-backend/internal/app"
	"github.com/yungbote/tutorloop-backend/internal/platform/logger"
	"github.com/yungbote/tutorloop-backend/internal/services"
)

func newTokenCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage API bearer tokens",
	}
	cmd.AddCommand(newTokenIssueCmd(opts))
	return cmd
}

// token issue needs only the signing secret, not a database.
func newTokenIssueCmd(opts *rootOptions) *cobra.Command {
	var teacher string
	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue a bearer token for a teacher",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			teacherID, err := uuid.Parse(teacher)
			if err != nil {
				return fmt.Errorf("--teacher: %w", err)
			}
			cfg, err := app.LoadConfig(opts.configPath)
			if err != nil {
				return err
			}
			if err := cfg.RequireAuth(); err != nil {
				return err
			}
			tokens, err := services.NewTokenService(logger.Nop(), cfg.Auth.JWTSecret, cfg.Auth.AccessTTL)
			if err != nil {
				return err
			}
			tok, err := tokens.IssueToken(teacherID)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), tok)
			return err
		},
	}
	cmd.Flags().StringVar(&teacher, "teacher", "", "teacher id (token subject)")
	_ = cmd.MarkFlagRequired("teacher")
	return cmd
}
