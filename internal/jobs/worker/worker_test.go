package worker

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/yungbote/tutorloop-backend/internal/data/repos"
	"github.com/yungbote/tutorloop-backend/internal/data/repos/testutil"
	types "github.com/yungbote/tutorloop-backend/internal/domain"
	jobtypes "github.com/yungbote/tutorloop-backend/internal/domain/jobs"
	"github.com/yungbote/tutorloop-backend/internal/jobs/pipeline/bulk_import"
	"github.com/yungbote/tutorloop-backend/internal/jobs/pipeline/cache_rebuild"
	"github.com/yungbote/tutorloop-backend/internal/jobs/pipeline/card_state_init"
	"github.com/yungbote/tutorloop-backend/internal/jobs/pipeline/parameter_optimize"
	"github.com/yungbote/tutorloop-backend/internal/jobs/runtime"
	"github.com/yungbote/tutorloop-backend/internal/platform/dbctx"
	"github.com/yungbote/tutorloop-backend/internal/realtime/bus"
	"github.com/yungbote/tutorloop-backend/internal/scheduling/fsrs"
	"github.com/yungbote/tutorloop-backend/internal/scheduling/optimizer"
	"github.com/yungbote/tutorloop-backend/internal/services"
)

type fixture struct {
	ctx    context.Context
	db     *gorm.DB
	repos  repos.Repos
	jobs   services.JobService
	engine services.SchedulingEngine
	auth   services.Authorizer
	notify services.JobNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	base, err := fsrs.NewScheduler(fsrs.DefaultConfig())
	require.NoError(t, err)
	rs := repos.New(db, log)
	notify := services.NewJobNotifier(bus.NewMemoryBus(log), log)
	return &fixture{
		ctx:    context.Background(),
		db:     db,
		repos:  rs,
		jobs:   services.NewJobService(db, log, rs.JobRun, notify),
		engine: services.NewSchedulingEngine(db, log, base, optimizer.DefaultConfig(), rs.Deck, rs.CardState, rs.ReviewEvent, rs.SchedulingProfile),
		auth:   services.NewAuthorizer(log, rs.TeacherStudent),
		notify: notify,
	}
}

func (f *fixture) registry(t *testing.T, extra ...runtime.Handler) *runtime.Registry {
	t.Helper()
	log := testutil.Logger(t)
	reg := runtime.NewRegistry()
	handlers := append([]runtime.Handler{}, extra...)
	taken := map[types.JobType]bool{}
	for _, h := range extra {
		taken[h.Type()] = true
	}
	for _, h := range []runtime.Handler{
		card_state_init.New(log, f.engine, f.auth),
		cache_rebuild.New(log, f.engine),
		parameter_optimize.New(log, f.engine),
		bulk_import.New(log, f.engine, f.auth),
	} {
		if !taken[h.Type()] {
			handlers = append(handlers, h)
		}
	}
	for _, h := range handlers {
		require.NoError(t, reg.Register(h))
	}
	require.NoError(t, reg.Verify())
	return reg
}

func (f *fixture) worker(t *testing.T, reg *runtime.Registry) *Worker {
	return NewWorker(f.db, testutil.Logger(t), f.repos.JobRun, reg, f.notify, Config{Concurrency: 1, BatchSize: 1})
}

func (f *fixture) reload(t *testing.T, id uuid.UUID) *types.JobRun {
	t.Helper()
	rows, err := f.repos.JobRun.GetByIDs(dbctx.Context{Ctx: f.ctx}, []uuid.UUID{id})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	return rows[0]
}

func TestMalformedRebuildPayloadFailsWithoutTouchingCardStates(t *testing.T) {
	f := newFixture(t)
	studentID := uuid.New()
	_, cards := testutil.SeedDeck(t, f.ctx, f.db, 2)
	testutil.SeedCardStates(t, f.ctx, f.db, studentID, cards, testutil.Now())
	before, err := f.repos.CardState.ListByStudent(dbctx.Context{Ctx: f.ctx}, studentID)
	require.NoError(t, err)

	job, err := f.jobs.Enqueue(dbctx.Context{Ctx: f.ctx}, uuid.New(), jobtypes.JobRebuildCache, map[string]any{
		"studnet_id": studentID.String(),
	})
	require.NoError(t, err)

	n, err := f.worker(t, f.registry(t)).RunOnce(f.ctx, "test-worker")
	require.NoError(t, err)
	require.Equal(t, 1, n)

	got := f.reload(t, job.ID)
	assert.Equal(t, jobtypes.JobFailed, got.Status)
	assert.Equal(t, "validate", got.Stage)
	assert.Contains(t, got.Error, "invalid payload for REBUILD_CACHE")
	assert.Nil(t, got.LockedAt)

	after, err := f.repos.CardState.ListByStudent(dbctx.Context{Ctx: f.ctx}, studentID)
	require.NoError(t, err)
	require.Len(t, after, len(before))
	for i := range before {
		assert.Equal(t, before[i].ID, after[i].ID)
		assert.True(t, before[i].Snapshot().Equal(after[i].Snapshot()))
	}
}

func TestInitCardStatesJobCompletes(t *testing.T) {
	f := newFixture(t)
	teacherID, studentID := uuid.New(), uuid.New()
	testutil.SeedRelationship(t, f.ctx, f.db, teacherID, studentID)
	deck, _ := testutil.SeedDeck(t, f.ctx, f.db, 3)

	job, err := f.jobs.Enqueue(dbctx.Context{Ctx: f.ctx}, teacherID, jobtypes.JobInitCardStates, map[string]any{
		"student_id": studentID.String(),
		"deck_id":    deck.ID.String(),
	})
	require.NoError(t, err)

	n, err := f.worker(t, f.registry(t)).RunOnce(f.ctx, "test-worker")
	require.NoError(t, err)
	require.Equal(t, 1, n)

	got := f.reload(t, job.ID)
	require.Equal(t, jobtypes.JobCompleted, got.Status, "error: %s", got.Error)
	assert.Equal(t, 100, got.Progress)
	assert.Equal(t, 1, got.Attempts)
	assert.JSONEq(t, `{"student_id":"`+studentID.String()+`","created":3,"skipped":0}`, string(got.Result))

	states, err := f.repos.CardState.ListByStudent(dbctx.Context{Ctx: f.ctx}, studentID)
	require.NoError(t, err)
	assert.Len(t, states, 3)
}

func TestInitCardStatesJobRequiresRelationship(t *testing.T) {
	f := newFixture(t)
	deck, _ := testutil.SeedDeck(t, f.ctx, f.db, 1)
	studentID := uuid.New()

	job, err := f.jobs.Enqueue(dbctx.Context{Ctx: f.ctx}, uuid.New(), jobtypes.JobInitCardStates, map[string]any{
		"student_id": studentID.String(),
		"deck_id":    deck.ID.String(),
	})
	require.NoError(t, err)
	_, err = f.worker(t, f.registry(t)).RunOnce(f.ctx, "test-worker")
	require.NoError(t, err)

	got := f.reload(t, job.ID)
	assert.Equal(t, jobtypes.JobFailed, got.Status)
	assert.Equal(t, "authorize", got.Stage)

	states, err := f.repos.CardState.ListByStudent(dbctx.Context{Ctx: f.ctx}, studentID)
	require.NoError(t, err)
	assert.Empty(t, states)
}

type panickingHandler struct{}

func (panickingHandler) Type() types.JobType { return jobtypes.JobBulkImport }

func (panickingHandler) Run(*runtime.Context) error { panic("boom") }

func TestHandlerPanicFailsJob(t *testing.T) {
	f := newFixture(t)
	job, err := f.jobs.Enqueue(dbctx.Context{Ctx: f.ctx}, uuid.New(), jobtypes.JobBulkImport, map[string]any{"enrollments": []any{}})
	require.NoError(t, err)

	_, err = f.worker(t, f.registry(t, panickingHandler{})).RunOnce(f.ctx, "test-worker")
	require.NoError(t, err)

	got := f.reload(t, job.ID)
	assert.Equal(t, jobtypes.JobFailed, got.Status)
	assert.Equal(t, "panic", got.Stage)
	assert.Contains(t, got.Error, "boom")
}

func TestRunOnceWithEmptyQueue(t *testing.T) {
	f := newFixture(t)
	if testutil.IsPostgres() {
		t.Skip("shared postgres queue may hold jobs from other tests")
	}
	n, err := f.worker(t, f.registry(t)).RunOnce(f.ctx, "test-worker")
	require.NoError(t, err)
	assert.Zero(t, n)
}
