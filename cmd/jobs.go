package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/yungbote/tutorloop-backend/internal/app"
	types "github.com/yungbote/tutorloop-backend/internal/domain"
	jobtypes "github.com/yungbote/tutorloop-backend/internal/domain/jobs"
	"github.com/yungbote/tutorloop-backend/internal/platform/dbctx"
)

func newJobsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Enqueue and inspect background jobs",
	}
	cmd.AddCommand(
		newJobsEnqueueCmd(opts),
		newJobsStatusCmd(opts),
	)
	return cmd
}

func newJobsEnqueueCmd(opts *rootOptions) *cobra.Command {
	var (
		payload string
		owner   string
	)
	cmd := &cobra.Command{
		Use:   "enqueue <type>",
		Short: "Enqueue a job (" + jobTypeList() + ")",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobType := types.JobType(strings.ToUpper(args[0]))
			if !jobType.Valid() {
				return fmt.Errorf("unknown job type %q (want one of %s)", args[0], jobTypeList())
			}
			ownerID, err := parseOwner(owner)
			if err != nil {
				return err
			}
			body := map[string]any{}
			if strings.TrimSpace(payload) != "" {
				if err := json.Unmarshal([]byte(payload), &body); err != nil {
					return fmt.Errorf("--payload: %w", err)
				}
			}
			return withApp(cmd, opts, func(a *app.App) error {
				job, err := a.Services.Jobs.Enqueue(dbctx.Context{Ctx: cmd.Context()}, ownerID, jobType, body)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), job)
			})
		},
	}
	cmd.Flags().StringVar(&payload, "payload", "", "job payload as a JSON object")
	cmd.Flags().StringVar(&owner, "owner", "", "owning teacher id (default: the system owner)")
	return cmd
}

func newJobsStatusCmd(opts *rootOptions) *cobra.Command {
	var owner string
	cmd := &cobra.Command{
		Use:   "status <job-id>",
		Short: "Show a job's status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("job id: %w", err)
			}
			ownerID, err := parseOwner(owner)
			if err != nil {
				return err
			}
			return withApp(cmd, opts, func(a *app.App) error {
				view, err := a.Services.Jobs.GetJobStatus(dbctx.Context{Ctx: cmd.Context()}, jobID, ownerID)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), view)
			})
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "owning teacher id (default: the system owner)")
	return cmd
}

func parseOwner(s string) (uuid.UUID, error) {
	if strings.TrimSpace(s) == "" {
		return jobtypes.SystemOwnerID, nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("--owner: %w", err)
	}
	return id, nil
}

func jobTypeList() string {
	names := make([]string, 0, len(jobtypes.AllJobTypes))
	for _, t := range jobtypes.AllJobTypes {
		names = append(names, string(t))
	}
	return strings.Join(names, ", ")
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
