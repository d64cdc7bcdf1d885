package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/yungbote/tutorloop-backend/internal/data/repos"
	"github.com/yungbote/tutorloop-backend/internal/data/repos/testutil"
	"github.com/yungbote/tutorloop-backend/internal/exercise"
	"github.com/yungbote/tutorloop-backend/internal/exercise/quiz"
	"github.com/yungbote/tutorloop-backend/internal/exercise/vocabulary"
	"github.com/yungbote/tutorloop-backend/internal/platform/dbctx"
	"github.com/yungbote/tutorloop-backend/internal/realtime/bus"
	"github.com/yungbote/tutorloop-backend/internal/scheduling/fsrs"
	"github.com/yungbote/tutorloop-backend/internal/scheduling/optimizer"
)

type testClock struct{ t time.Time }

func (c *testClock) Now() time.Time          { return c.t }
func (c *testClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type harness struct {
	ctx      context.Context
	tx       *gorm.DB
	dbc      dbctx.Context
	repos    repos.Repos
	clock    *testClock
	engine   SchedulingEngine
	sessions SessionService
	jobs     JobService
}

func testSchedulerConfig() fsrs.Config {
	cfg := fsrs.DefaultConfig()
	cfg.LearningSteps = []time.Duration{3 * time.Minute, 15 * time.Minute}
	cfg.RelearningSteps = []time.Duration{10 * time.Minute}
	return cfg
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	log := testutil.Logger(t)
	ctx := context.Background()

	base, err := fsrs.NewScheduler(testSchedulerConfig())
	require.NoError(t, err)

	rs := repos.New(db, log)
	clock := &testClock{t: testutil.Now()}
	engine := NewSchedulingEngine(db, log, base, optimizer.DefaultConfig(),
		rs.Deck, rs.CardState, rs.ReviewEvent, rs.SchedulingProfile, WithClock(clock.Now))

	handlers := []exercise.Handler{vocabulary.New(rs.CardState, rs.Deck, engine, log)}
	handlers = append(handlers, quiz.Handlers(log)...)
	dispatcher, err := exercise.NewDispatcher(handlers...)
	require.NoError(t, err)

	b := bus.NewMemoryBus(log)
	auth := NewAuthorizer(log, rs.TeacherStudent)
	return &harness{
		ctx:    ctx,
		tx:     tx,
		dbc:    dbctx.Context{Ctx: ctx, Tx: tx},
		repos:  rs,
		clock:  clock,
		engine: engine,
		sessions: NewSessionService(db, log, rs.Session, rs.Unit, auth, dispatcher,
			NewSessionNotifier(b, log), WithSessionClock(clock.Now)),
		jobs: NewJobService(db, log, rs.JobRun, NewJobNotifier(b, log)),
	}
}
