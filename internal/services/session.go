package services

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/tutorloop-backend/internal/data/repos"
	types "github.com/yungbote/tutorloop-backend/internal/domain"
	"github.com/yungbote/tutorloop-backend/internal/domain/learning"
	"github.com/yungbote/tutorloop-backend/internal/exercise"
	"github.com/yungbote/tutorloop-backend/internal/observability"
	"github.com/yungbote/tutorloop-backend/internal/platform/dbctx"
	"github.com/yungbote/tutorloop-backend/internal/platform/logger"
)

// SessionSnapshot is the full state of a session as shown to the teacher.
// Position is the 1-based index of the current exercise.
type SessionSnapshot struct {
	Session         *types.Session      `json:"session"`
	CurrentExercise *types.ExerciseItem `json:"current_exercise,omitempty"`
	Progress        json.RawMessage     `json:"progress,omitempty"`
	Position        int                 `json:"position"`
	TotalExercises  int                 `json:"total_exercises"`
}

type AnswerResult struct {
	State     *SessionSnapshot       `json:"state"`
	Result    *exercise.ActionResult `json:"result"`
	Advanced  bool                   `json:"advanced"`
	Completed bool                   `json:"completed"`
}

type SessionService interface {
	StartSession(dbc dbctx.Context, teacherID, studentID, unitID uuid.UUID) (*SessionSnapshot, error)
	SubmitAnswer(dbc dbctx.Context, sessionID, teacherID uuid.UUID, action exercise.Action, data json.RawMessage) (*AnswerResult, error)
	// EndSession completes the session. Ending a completed session is a
	// no-op that keeps its end time.
	EndSession(dbc dbctx.Context, sessionID, teacherID uuid.UUID) (*SessionSnapshot, error)
	GetFullState(dbc dbctx.Context, sessionID, teacherID uuid.UUID) (*SessionSnapshot, error)
}

type SessionOption func(*sessionService)

func WithSessionClock(now func() time.Time) SessionOption {
	return func(s *sessionService) { s.now = now }
}

type sessionService struct {
	db         *gorm.DB
	log        *logger.Logger
	sessions   repos.SessionRepo
	units      repos.UnitRepo
	auth       Authorizer
	dispatcher *exercise.Dispatcher
	notify     SessionNotifier
	now        func() time.Time
}

func NewSessionService(
	db *gorm.DB,
	baseLog *logger.Logger,
	sessions repos.SessionRepo,
	units repos.UnitRepo,
	auth Authorizer,
	dispatcher *exercise.Dispatcher,
	notify SessionNotifier,
	opts ...SessionOption,
) SessionService {
	s := &sessionService{
		db:         db,
		log:        baseLog.With("service", "SessionService"),
		sessions:   sessions,
		units:      units,
		auth:       auth,
		dispatcher: dispatcher,
		notify:     notify,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *sessionService) clock() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

func (s *sessionService) StartSession(dbc dbctx.Context, teacherID, studentID, unitID uuid.UUID) (*SessionSnapshot, error) {
	ctx, span := observability.StartSpan(dbc.Context(), "session.Start", "unit_id", unitID.String())
	var snap *SessionSnapshot
	err := dbctx.Transaction(dbctx.Context{Ctx: ctx, Tx: dbc.Tx}, s.db, func(inner dbctx.Context) error {
		if err := s.auth.Authorize(inner, teacherID, studentID); err != nil {
			return err
		}
		unit, err := s.units.GetByID(inner, unitID)
		if err != nil {
			return fmt.Errorf("load unit: %w", err)
		}
		if unit == nil {
			return &types.NotFoundError{Entity: "unit", ID: unitID}
		}
		items, err := s.units.ListItems(inner, unitID)
		if err != nil {
			return fmt.Errorf("list exercise items: %w", err)
		}
		if len(items) == 0 {
			return &types.EmptyUnitError{UnitID: unitID}
		}

		now := s.clock()
		sess := &types.Session{
			ID:        uuid.New(),
			TeacherID: teacherID,
			StudentID: studentID,
			UnitID:    unitID,
			Status:    learning.SessionCreated,
			StartTime: now,
		}
		ec := s.exerciseContext(inner, sess, now)
		pos, err := s.enter(ec, sess, items, 0)
		if err != nil {
			return err
		}
		if _, err := s.sessions.Create(inner, sess); err != nil {
			return fmt.Errorf("create session: %w", err)
		}
		snap = snapshotOf(sess, items, pos)
		return nil
	})
	observability.EndSpan(span, err)
	if err != nil {
		return nil, err
	}

	observability.Current().IncSessionEvent("started")
	s.notify.SessionStarted(snap.Session)
	if snap.Session.Status == learning.SessionCompleted {
		observability.Current().IncSessionEvent("completed")
		s.notify.SessionCompleted(snap.Session)
	}
	s.log.Info("session started",
		"session_id", snap.Session.ID,
		"teacher_id", teacherID,
		"student_id", studentID,
		"status", snap.Session.Status,
		"position", snap.Position,
	)
	return snap, nil
}

func (s *sessionService) SubmitAnswer(dbc dbctx.Context, sessionID, teacherID uuid.UUID, action exercise.Action, data json.RawMessage) (*AnswerResult, error) {
	ctx, span := observability.StartSpan(dbc.Context(), "session.SubmitAnswer", "action", string(action))
	out := &AnswerResult{}
	var exerciseType types.ExerciseType
	err := dbctx.Transaction(dbctx.Context{Ctx: ctx, Tx: dbc.Tx}, s.db, func(inner dbctx.Context) error {
		sess, err := s.sessions.LockByID(inner, sessionID)
		if err != nil {
			return fmt.Errorf("lock session: %w", err)
		}
		if sess == nil {
			return &types.NotFoundError{Entity: "session", ID: sessionID}
		}
		if sess.Status != learning.SessionInProgress || sess.CurrentExerciseID == nil {
			return &types.SessionNotActiveError{SessionID: sessionID, Status: string(sess.Status)}
		}
		if sess.TeacherID != teacherID {
			return &types.AuthorizationError{TeacherID: teacherID, StudentID: sess.StudentID, Reason: "session belongs to another teacher"}
		}
		if err := s.auth.Authorize(inner, teacherID, sess.StudentID); err != nil {
			return err
		}

		items, err := s.units.ListItems(inner, sess.UnitID)
		if err != nil {
			return fmt.Errorf("list exercise items: %w", err)
		}
		idx := indexOf(items, *sess.CurrentExerciseID)
		if idx < 0 {
			return &types.NotFoundError{Entity: "exercise_item", ID: *sess.CurrentExerciseID}
		}
		item := items[idx]
		exerciseType = item.Type
		h, err := s.dispatcher.GetHandler(item.Type)
		if err != nil {
			return err
		}
		progress, err := exercise.DecodeProgress(sess.Progress, item.Type)
		if err != nil {
			return err
		}

		ec := s.exerciseContext(inner, sess, s.clock())
		res, next, err := h.SubmitAnswer(ec, item, progress, action, data)
		if err != nil {
			return err
		}
		out.Result = res

		pos := idx + 1
		if h.IsComplete(next) {
			if pos, err = s.enter(ec, sess, items, idx+1); err != nil {
				return err
			}
			out.Completed = sess.Status == learning.SessionCompleted
			out.Advanced = !out.Completed
		} else {
			raw, err := exercise.EncodeProgress(next)
			if err != nil {
				return err
			}
			sess.Progress = raw
		}

		if err := s.sessions.UpdateFields(inner, sess.ID, sessionUpdates(sess)); err != nil {
			return fmt.Errorf("update session: %w", err)
		}
		out.State = snapshotOf(sess, items, pos)
		return nil
	})
	observability.EndSpan(span, err)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	observability.Current().IncExerciseAction(string(exerciseType), string(action), outcome)
	if err != nil {
		return nil, err
	}

	switch {
	case out.Completed:
		observability.Current().IncSessionEvent("completed")
		s.notify.SessionCompleted(out.State.Session)
	case out.Advanced:
		observability.Current().IncSessionEvent("advanced")
		s.notify.SessionAdvanced(out.State.Session, out.State.Position)
	}
	return out, nil
}

func (s *sessionService) EndSession(dbc dbctx.Context, sessionID, teacherID uuid.UUID) (*SessionSnapshot, error) {
	var (
		snap    *SessionSnapshot
		changed bool
	)
	err := dbctx.Transaction(dbc, s.db, func(inner dbctx.Context) error {
		sess, err := s.sessions.LockByID(inner, sessionID)
		if err != nil {
			return fmt.Errorf("lock session: %w", err)
		}
		if sess == nil {
			return &types.NotFoundError{Entity: "session", ID: sessionID}
		}
		if sess.TeacherID != teacherID {
			return &types.AuthorizationError{TeacherID: teacherID, StudentID: sess.StudentID, Reason: "session belongs to another teacher"}
		}
		items, err := s.units.ListItems(inner, sess.UnitID)
		if err != nil {
			return fmt.Errorf("list exercise items: %w", err)
		}
		if sess.Status != learning.SessionCompleted {
			complete(sess, s.clock())
			if err := s.sessions.UpdateFields(inner, sess.ID, sessionUpdates(sess)); err != nil {
				return fmt.Errorf("update session: %w", err)
			}
			changed = true
		}
		snap = snapshotOf(sess, items, 0)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if changed {
		observability.Current().IncSessionEvent("ended")
		s.notify.SessionCompleted(snap.Session)
		s.log.Info("session ended", "session_id", sessionID, "teacher_id", teacherID)
	}
	return snap, nil
}

func (s *sessionService) GetFullState(dbc dbctx.Context, sessionID, teacherID uuid.UUID) (*SessionSnapshot, error) {
	sess, err := s.sessions.GetByID(dbc, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if sess == nil {
		return nil, &types.NotFoundError{Entity: "session", ID: sessionID}
	}
	if sess.TeacherID != teacherID {
		return nil, &types.AuthorizationError{TeacherID: teacherID, StudentID: sess.StudentID, Reason: "session belongs to another teacher"}
	}
	items, err := s.units.ListItems(dbc, sess.UnitID)
	if err != nil {
		return nil, fmt.Errorf("list exercise items: %w", err)
	}
	pos := 0
	if sess.CurrentExerciseID != nil {
		pos = indexOf(items, *sess.CurrentExerciseID) + 1
	}
	return snapshotOf(sess, items, pos), nil
}

func (s *sessionService) exerciseContext(dbc dbctx.Context, sess *types.Session, now time.Time) *exercise.Context {
	return &exercise.Context{
		DBC:       dbc,
		SessionID: sess.ID,
		TeacherID: sess.TeacherID,
		StudentID: sess.StudentID,
		Now:       now,
	}
}

// enter initializes items[from:] in order and parks the session on the
// first one that has work to do. Exercises that start out complete (a deck
// with nothing due) are skipped. With nothing left the session completes.
// It returns the 1-based position of the current exercise, or 0.
func (s *sessionService) enter(ec *exercise.Context, sess *types.Session, items []*types.ExerciseItem, from int) (int, error) {
	for i := from; i < len(items); i++ {
		item := items[i]
		h, err := s.dispatcher.GetHandler(item.Type)
		if err != nil {
			return 0, err
		}
		progress, err := h.Initialize(ec, item)
		if err != nil {
			return 0, fmt.Errorf("initialize exercise %s: %w", item.ID, err)
		}
		if h.IsComplete(progress) {
			s.log.Debug("skipping exercise with nothing to do", "session_id", sess.ID, "exercise_id", item.ID, "type", item.Type)
			continue
		}
		raw, err := exercise.EncodeProgress(progress)
		if err != nil {
			return 0, err
		}
		if sess.Status != learning.SessionInProgress && !sess.Status.CanTransition(learning.SessionInProgress) {
			return 0, &types.SessionNotActiveError{SessionID: sess.ID, Status: string(sess.Status)}
		}
		id := item.ID
		sess.Status = learning.SessionInProgress
		sess.CurrentExerciseID = &id
		sess.Progress = raw
		return i + 1, nil
	}
	complete(sess, ec.Now)
	return 0, nil
}

func complete(sess *types.Session, now time.Time) {
	sess.Status = learning.SessionCompleted
	sess.EndTime = &now
	sess.CurrentExerciseID = nil
	sess.Progress = nil
}

func sessionUpdates(sess *types.Session) map[string]interface{} {
	updates := map[string]interface{}{
		"status":              sess.Status,
		"current_exercise_id": sess.CurrentExerciseID,
		"progress":            nil,
		"end_time":            sess.EndTime,
	}
	if sess.HasProgress() {
		updates["progress"] = sess.Progress
	}
	return updates
}

func indexOf(items []*types.ExerciseItem, id uuid.UUID) int {
	for i, it := range items {
		if it.ID == id {
			return i
		}
	}
	return -1
}

func snapshotOf(sess *types.Session, items []*types.ExerciseItem, pos int) *SessionSnapshot {
	snap := &SessionSnapshot{Session: sess, TotalExercises: len(items), Position: pos}
	if sess.CurrentExerciseID != nil {
		if i := indexOf(items, *sess.CurrentExerciseID); i >= 0 {
			snap.CurrentExercise = items[i]
			snap.Position = i + 1
		}
	}
	if sess.HasProgress() {
		snap.Progress = json.RawMessage(sess.Progress)
	}
	return snap
}
