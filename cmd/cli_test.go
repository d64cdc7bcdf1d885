package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/tutorloop-backend/internal/platform/ctxutil"
	"github.com/yungbote/tutorloop-backend/internal/platform/logger"
	"github.com/yungbote/tutorloop-backend/internal/services"
)

const (
	testTeacher = "0b7e7c0e-3d8e-4f8b-9b1e-7f5f6a3c2d10"
	testStudent = "5c4f2a9d-8e1b-4c6a-a3d2-1e9f8b7c6d20"
)

func executeCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	root := newRootCmd()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

// useSQLite points the CLI at a fresh sqlite file.
func useSQLite(t *testing.T) {
	t.Helper()
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("LOG_MODE", "test")
	t.Setenv("DATABASE_DRIVER", "sqlite")
	t.Setenv("DATABASE_DSN", "file:"+filepath.Join(t.TempDir(), "cli.db")+"?_foreign_keys=on&_busy_timeout=5000")
	t.Setenv("REDIS_ADDR", "")
}

func TestVersion(t *testing.T) {
	stdout, _, err := executeCLI(t, "version")
	require.NoError(t, err)
	assert.Equal(t, Version+"\n", stdout)
}

func TestJobsEnqueueRejectsUnknownType(t *testing.T) {
	_, _, err := executeCLI(t, "jobs", "enqueue", "REINDEX")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown job type")
}

func TestJobsEnqueueRejectsBadPayload(t *testing.T) {
	_, _, err := executeCLI(t, "jobs", "enqueue", "REBUILD_CACHE", "--payload", "{nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--payload")
}

func TestTokenIssue(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")

	t.Run("requires secret", func(t *testing.T) {
		t.Setenv("AUTH_JWT_SECRET", "")
		_, _, err := executeCLI(t, "token", "issue", "--teacher", testTeacher)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "jwt_secret")
	})

	t.Run("round trip", func(t *testing.T) {
		t.Setenv("AUTH_JWT_SECRET", "cli-secret")
		stdout, _, err := executeCLI(t, "token", "issue", "--teacher", testTeacher)
		require.NoError(t, err)

		tokens, err := services.NewTokenService(logger.Nop(), "cli-secret", 0)
		require.NoError(t, err)
		ctx, err := tokens.SetContextFromToken(context.Background(), strings.TrimSpace(stdout))
		require.NoError(t, err)
		rd := ctxutil.GetRequestData(ctx)
		require.NotNil(t, rd)
		assert.Equal(t, uuid.MustParse(testTeacher), rd.TeacherID)
	})
}

func TestMigrateSeedAndEnqueue(t *testing.T) {
	useSQLite(t)

	_, _, err := executeCLI(t, "migrate")
	require.NoError(t, err)

	fixture := filepath.Join(t.TempDir(), "fixture.yaml")
	require.NoError(t, os.WriteFile(fixture, []byte(`
decks:
  - key: a1
    cards:
      - {front: hola, back: hello}
units:
  - title: Week 1
    items:
      - {type: VOCABULARY_DECK, deck: a1}
relationships:
  - teacher_id: `+testTeacher+`
    student_id: `+testStudent+`
    enroll_decks: [a1]
`), 0o600))

	stdout, _, err := executeCLI(t, "seed", fixture)
	require.NoError(t, err)
	var seeded struct {
		Summary struct {
			Decks int `json:"decks"`
			Items int `json:"items"`
		} `json:"summary"`
		EnrollmentJobs int `json:"enrollment_jobs"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &seeded))
	assert.Equal(t, 1, seeded.Summary.Decks)
	assert.Equal(t, 1, seeded.Summary.Items)
	assert.Equal(t, 1, seeded.EnrollmentJobs)

	stdout, _, err = executeCLI(t, "jobs", "enqueue", "rebuild_cache",
		"--owner", testTeacher,
		"--payload", `{"student_id":"`+testStudent+`"}`)
	require.NoError(t, err)
	var job struct {
		ID      string `json:"id"`
		JobType string `json:"job_type"`
		Status  string `json:"status"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &job))
	assert.Equal(t, "REBUILD_CACHE", job.JobType)
	assert.Equal(t, "PENDING", job.Status)

	stdout, _, err = executeCLI(t, "jobs", "status", job.ID, "--owner", testTeacher)
	require.NoError(t, err)
	assert.Contains(t, stdout, `"status": "PENDING"`)

	_, _, err = executeCLI(t, "jobs", "status", job.ID)
	require.Error(t, err, "system owner does not own a teacher's job")
}
