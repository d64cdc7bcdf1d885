package runtime

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/tutorloop-backend/internal/data/repos"
	"github.com/yungbote/tutorloop-backend/internal/data/repos/testutil"
	types "github.com/yungbote/tutorloop-backend/internal/domain"
	jobtypes "github.com/yungbote/tutorloop-backend/internal/domain/jobs"
	"github.com/yungbote/tutorloop-backend/internal/platform/dbctx"
)

type claimFixture struct {
	t    *testing.T
	ctx  context.Context
	rs   repos.Repos
	repo repos.JobRunRepo
}

func newClaimFixture(t *testing.T) *claimFixture {
	t.Helper()
	db := testutil.DB(t)
	rs := repos.New(db, testutil.Logger(t))
	return &claimFixture{t: t, ctx: context.Background(), rs: rs, repo: rs.JobRun}
}

func (f *claimFixture) runningJob(workerID string, heartbeat time.Time) *types.JobRun {
	f.t.Helper()
	now := testutil.Now()
	job := &types.JobRun{
		ID:          uuid.New(),
		OwnerUserID: uuid.New(),
		JobType:     jobtypes.JobOptimizeParameters,
		Status:      jobtypes.JobRunning,
		Stage:       "claimed",
		Attempts:    1,
		LockedBy:    workerID,
		LockedAt:    testutil.PtrTime(now),
		HeartbeatAt: testutil.PtrTime(heartbeat),
		Payload:     testutil.JSON(map[string]any{"student_id": uuid.NewString()}),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	_, err := f.repo.Create(dbctx.Context{Ctx: f.ctx}, []*types.JobRun{job})
	require.NoError(f.t, err)
	return job
}

// reclaim stands in for a stale sweep followed by a claim from another worker.
func (f *claimFixture) reclaim(id uuid.UUID, workerID string, attempt int) *types.JobRun {
	f.t.Helper()
	require.NoError(f.t, f.repo.UpdateFields(dbctx.Context{Ctx: f.ctx}, id, map[string]interface{}{
		"status":       jobtypes.JobRunning,
		"locked_by":    workerID,
		"attempts":     attempt,
		"heartbeat_at": testutil.Now(),
	}))
	return f.reload(id)
}

func (f *claimFixture) reload(id uuid.UUID) *types.JobRun {
	f.t.Helper()
	rows, err := f.repo.GetByIDs(dbctx.Context{Ctx: f.ctx}, []uuid.UUID{id})
	require.NoError(f.t, err)
	require.Len(f.t, rows, 1)
	return rows[0]
}

func TestSucceedAfterLostClaimLeavesNewClaimRunning(t *testing.T) {
	f := newClaimFixture(t)
	log := testutil.Logger(t)
	job := f.runningJob("worker-a", testutil.Now())
	jcA := NewContext(f.ctx, nil, job, f.repo, nil, log)

	jobB := f.reclaim(job.ID, "worker-b", 2)
	jcB := NewContext(f.ctx, nil, jobB, f.repo, nil, log)

	jcA.Succeed("done", map[string]any{"by": "a"})
	got := f.reload(job.ID)
	assert.Equal(t, jobtypes.JobRunning, got.Status)
	assert.Equal(t, "worker-b", got.LockedBy)
	assert.Empty(t, got.Result)
	assert.False(t, jcA.Job.Status.Terminal(), "losing worker must not see its write as applied")

	jcA.Fail("late", assert.AnError)
	assert.Equal(t, jobtypes.JobRunning, f.reload(job.ID).Status)

	jcB.Succeed("done", map[string]any{"by": "b"})
	got = f.reload(job.ID)
	assert.Equal(t, jobtypes.JobCompleted, got.Status)
	assert.JSONEq(t, `{"by":"b"}`, string(got.Result))
}

func TestKeepAliveRefreshesHeartbeat(t *testing.T) {
	f := newClaimFixture(t)
	stale := testutil.Now().Add(-time.Hour)
	job := f.runningJob("worker-a", stale)

	jc := NewContext(f.ctx, nil, job, f.repo, nil, testutil.Logger(t))
	stop := jc.KeepAlive(10 * time.Millisecond)
	defer stop()

	require.Eventually(t, func() bool {
		hb := f.reload(job.ID).HeartbeatAt
		return hb != nil && hb.After(stale.Add(30*time.Minute))
	}, 2*time.Second, 10*time.Millisecond)
	assert.NoError(t, jc.Ctx.Err())
}

func TestKeepAliveCancelsWhenClaimLost(t *testing.T) {
	f := newClaimFixture(t)
	job := f.runningJob("worker-a", testutil.Now())

	jc := NewContext(f.ctx, nil, job, f.repo, nil, testutil.Logger(t))
	stop := jc.KeepAlive(10 * time.Millisecond)
	defer stop()

	f.reclaim(job.ID, "worker-b", 2)

	select {
	case <-jc.Ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("context not cancelled after the claim moved to another worker")
	}
	assert.Equal(t, "worker-b", f.reload(job.ID).LockedBy)
}

func TestKeepAliveStopIsCleanWithoutRepo(t *testing.T) {
	jc := NewContext(context.Background(), nil, nil, nil, nil, testutil.Logger(t))
	stop := jc.KeepAlive(time.Millisecond)
	stop()
	assert.ErrorIs(t, jc.Ctx.Err(), context.Canceled)
}
