package services

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	types "github.com/yungbote/tutorloop-backend/internal/domain"
	jobtypes "github.com/yungbote/tutorloop-backend/internal/domain/jobs"
	"github.com/yungbote/tutorloop-backend/internal/platform/ctxutil"
	"github.com/yungbote/tutorloop-backend/internal/platform/dbctx"
)

func TestEnqueueRejectsUnknownJobType(t *testing.T) {
	h := newHarness(t)
	_, err := h.jobs.Enqueue(h.dbc, uuid.New(), types.JobType("DEFRAG"), nil)
	var invalid *types.InvalidPayloadError
	require.True(t, errors.As(err, &invalid), "got %v", err)
}

func TestEnqueueRecordsPendingJobWithTraceIDs(t *testing.T) {
	h := newHarness(t)
	ownerID, studentID := uuid.New(), uuid.New()
	ctx := ctxutil.WithTraceData(h.ctx, &ctxutil.TraceData{TraceID: "trace-1", RequestID: "req-1"})

	job, err := h.jobs.Enqueue(dbctx.Context{Ctx: ctx, Tx: h.tx}, ownerID, jobtypes.JobRebuildCache, map[string]any{
		"student_id": studentID.String(),
	})
	require.NoError(t, err)
	assert.Equal(t, jobtypes.JobPending, job.Status)
	assert.Equal(t, "queued", job.Stage)
	assert.Equal(t, jobtypes.EntityStudent, job.EntityType)
	require.NotNil(t, job.EntityID)
	assert.Equal(t, studentID, *job.EntityID)
	assert.JSONEq(t, `{"student_id":"`+studentID.String()+`","trace_id":"trace-1","request_id":"req-1"}`, string(job.Payload))

	view, err := h.jobs.GetJobStatus(h.dbc, job.ID, ownerID)
	require.NoError(t, err)
	assert.Equal(t, jobtypes.JobPending, view.Status)
	assert.Equal(t, jobtypes.JobRebuildCache, view.JobType)
}

func TestEnqueueForStudentIfNeededDeduplicates(t *testing.T) {
	h := newHarness(t)
	ownerID, studentID := uuid.New(), uuid.New()

	first, created, err := h.jobs.EnqueueForStudentIfNeeded(h.dbc, ownerID, jobtypes.JobOptimizeParameters, studentID, nil)
	require.NoError(t, err)
	require.True(t, created)

	second, created, err := h.jobs.EnqueueForStudentIfNeeded(h.dbc, ownerID, jobtypes.JobOptimizeParameters, studentID, nil)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)

	_, created, err = h.jobs.EnqueueForStudentIfNeeded(h.dbc, ownerID, jobtypes.JobRebuildCache, studentID, nil)
	require.NoError(t, err)
	assert.True(t, created)
}

func TestGetJobStatusChecksOwner(t *testing.T) {
	h := newHarness(t)
	ownerID := uuid.New()
	job, err := h.jobs.Enqueue(h.dbc, ownerID, jobtypes.JobRebuildCache, map[string]any{"student_id": uuid.NewString()})
	require.NoError(t, err)

	_, err = h.jobs.GetJobStatus(h.dbc, job.ID, uuid.New())
	var authErr *types.AuthorizationError
	require.True(t, errors.As(err, &authErr), "got %v", err)

	_, err = h.jobs.GetJobStatus(h.dbc, uuid.New(), ownerID)
	var nf *types.NotFoundError
	require.True(t, errors.As(err, &nf), "got %v", err)
}
