package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/yungbote/tutorloop-backend/internal/app"
	jobtypes "github.com/yungbote/tutorloop-backend/internal/domain/jobs"
	"github.com/yungbote/tutorloop-backend/internal/platform/dbctx"
	"github.com/yungbote/tutorloop-backend/internal/seed"
)

func newSeedCmd(opts *rootOptions) *cobra.Command {
	var enroll bool
	cmd := &cobra.Command{
		Use:   "seed <fixture.yaml>",
		Short: "Load decks, units and teacher/student relationships from a YAML fixture",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			fx, err := seed.Parse(f)
			if err != nil {
				return err
			}
			plan, err := seed.Build(fx)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}

			return withApp(cmd, opts, func(a *app.App) error {
				dbc := dbctx.Context{Ctx: cmd.Context()}
				sum, err := seed.NewLoader(a.DB, a.Log, a.Repos).Apply(dbc, plan)
				if err != nil {
					return err
				}
				enqueued := 0
				if enroll {
					for _, e := range plan.Enrollments {
						payload := map[string]any{"student_id": e.StudentID.String(), "deck_id": e.DeckID.String()}
						if _, err := a.Services.Jobs.Enqueue(dbc, e.TeacherID, jobtypes.JobInitCardStates, payload); err != nil {
							return fmt.Errorf("enqueue enrollment: %w", err)
						}
						enqueued++
					}
				}
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"summary":         sum,
					"enrollment_jobs": enqueued,
				})
			})
		},
	}
	cmd.Flags().BoolVar(&enroll, "enroll", true, "enqueue INIT_CARD_STATES jobs for each relationship's enroll_decks")
	return cmd
}
