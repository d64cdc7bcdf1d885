package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/tutorloop-backend/internal/data/repos"
	types "github.com/yungbote/tutorloop-backend/internal/domain"
	"github.com/yungbote/tutorloop-backend/internal/domain/learning"
	"github.com/yungbote/tutorloop-backend/internal/observability"
	"github.com/yungbote/tutorloop-backend/internal/platform/dbctx"
	"github.com/yungbote/tutorloop-backend/internal/platform/logger"
	"github.com/yungbote/tutorloop-backend/internal/scheduling/fsrs"
	"github.com/yungbote/tutorloop-backend/internal/scheduling/optimizer"
)

type InitReport struct {
	Created int64 `json:"created"`
	Skipped int64 `json:"skipped"`
}

type RebuildReport struct {
	Cards              int `json:"cards"`
	EventsReplayed     int `json:"events_replayed"`
	SnapshotMismatches int `json:"snapshot_mismatches"`
}

type OptimizeReport struct {
	Reviews          int       `json:"reviews"`
	CrossDayReviews  int       `json:"cross_day_reviews"`
	InitialLoss      float64   `json:"initial_loss"`
	Loss             float64   `json:"loss"`
	Epochs           int       `json:"epochs"`
	InsufficientData bool      `json:"insufficient_data"`
	Parameters       []float64 `json:"parameters,omitempty"`
}

// SchedulingEngine owns every write to card_state and review_event.
type SchedulingEngine interface {
	// RecordReview applies rating to the student's card. The ledger event is
	// appended before the card state is updated, in one transaction.
	RecordReview(dbc dbctx.Context, studentID, cardID uuid.UUID, rating int, sessionID *uuid.UUID) (*types.CardState, error)
	// PreviewIntervals returns the due time each rating would produce.
	PreviewIntervals(dbc dbctx.Context, studentID, cardID uuid.UUID) (map[int]time.Time, error)
	InitializeCards(dbc dbctx.Context, studentID uuid.UUID, deckID *uuid.UUID, cardIDs []uuid.UUID) (*InitReport, error)
	RebuildFromLedger(dbc dbctx.Context, studentID uuid.UUID) (*RebuildReport, error)
	OptimizeParameters(dbc dbctx.Context, studentID uuid.UUID) (*OptimizeReport, error)
}

type EngineOption func(*schedulingEngine)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) EngineOption {
	return func(s *schedulingEngine) { s.now = now }
}

type schedulingEngine struct {
	db         *gorm.DB
	log        *logger.Logger
	base       *fsrs.Scheduler
	optCfg     optimizer.Config
	decks      repos.DeckRepo
	cardStates repos.CardStateRepo
	reviews    repos.ReviewEventRepo
	profiles   repos.SchedulingProfileRepo
	now        func() time.Time
}

func NewSchedulingEngine(
	db *gorm.DB,
	baseLog *logger.Logger,
	base *fsrs.Scheduler,
	optCfg optimizer.Config,
	decks repos.DeckRepo,
	cardStates repos.CardStateRepo,
	reviews repos.ReviewEventRepo,
	profiles repos.SchedulingProfileRepo,
	opts ...EngineOption,
) SchedulingEngine {
	s := &schedulingEngine{
		db:         db,
		log:        baseLog.With("service", "SchedulingEngine"),
		base:       base,
		optCfg:     optCfg,
		decks:      decks,
		cardStates: cardStates,
		reviews:    reviews,
		profiles:   profiles,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *schedulingEngine) RecordReview(dbc dbctx.Context, studentID, cardID uuid.UUID, rating int, sessionID *uuid.UUID) (*types.CardState, error) {
	if !fsrs.Rating(rating).Valid() {
		return nil, &types.InvalidRatingError{Rating: rating}
	}
	ctx, span := observability.StartSpan(dbc.Context(), "scheduling.RecordReview")
	var out *types.CardState
	err := dbctx.Transaction(dbctx.Context{Ctx: ctx, Tx: dbc.Tx}, s.db, func(inner dbctx.Context) error {
		st, err := s.cardStates.LockForUpdate(inner, studentID, cardID)
		if err != nil {
			return fmt.Errorf("lock card state: %w", err)
		}
		if st == nil {
			return &types.UnknownCardError{StudentID: studentID, CardID: cardID}
		}
		sched, err := s.schedulerFor(inner, studentID)
		if err != nil {
			return err
		}

		before := st.Snapshot()
		next, outcome, err := sched.Review(toCard(st), fsrs.Rating(rating), s.now())
		if err != nil {
			return err
		}
		snap, err := json.Marshal(before)
		if err != nil {
			return fmt.Errorf("encode snapshot: %w", err)
		}
		ev := &types.ReviewEvent{
			StudentID:      studentID,
			CardID:         cardID,
			Sequence:       before.Reps + 1,
			SessionID:      sessionID,
			Rating:         rating,
			ReviewedAt:     *next.LastReview,
			IsLearningStep: outcome.IsLearningStep,
			Snapshot:       datatypes.JSON(snap),
		}
		if _, err := s.reviews.Append(inner, ev); err != nil {
			return fmt.Errorf("append review event: %w", err)
		}

		applyCard(st, next)
		if err := s.cardStates.Save(inner, st); err != nil {
			return fmt.Errorf("save card state: %w", err)
		}
		out = st
		return nil
	})
	observability.EndSpan(span, err)
	if err != nil {
		return nil, err
	}
	observability.Current().IncReview(rating, string(out.State))
	s.log.Debug("review recorded",
		"student_id", studentID,
		"card_id", cardID,
		"rating", rating,
		"state", out.State,
		"due", out.Due,
	)
	return out, nil
}

func (s *schedulingEngine) PreviewIntervals(dbc dbctx.Context, studentID, cardID uuid.UUID) (map[int]time.Time, error) {
	st, err := s.cardStates.Get(dbc, studentID, cardID)
	if err != nil {
		return nil, fmt.Errorf("load card state: %w", err)
	}
	if st == nil {
		return nil, &types.UnknownCardError{StudentID: studentID, CardID: cardID}
	}
	sched, err := s.schedulerFor(dbc, studentID)
	if err != nil {
		return nil, err
	}
	out := make(map[int]time.Time, len(fsrs.Ratings))
	for r, c := range sched.Preview(toCard(st), s.now()) {
		out[int(r)] = c.Due
	}
	return out, nil
}

func (s *schedulingEngine) InitializeCards(dbc dbctx.Context, studentID uuid.UUID, deckID *uuid.UUID, cardIDs []uuid.UUID) (*InitReport, error) {
	if studentID == uuid.Nil {
		return nil, fmt.Errorf("missing student_id")
	}
	ctx, span := observability.StartSpan(dbc.Context(), "scheduling.InitializeCards", "student_id", studentID.String())
	report := &InitReport{}
	err := dbctx.Transaction(dbctx.Context{Ctx: ctx, Tx: dbc.Tx}, s.db, func(inner dbctx.Context) error {
		var cards []*types.Card
		if deckID != nil {
			deck, err := s.decks.GetByID(inner, *deckID)
			if err != nil {
				return fmt.Errorf("load deck: %w", err)
			}
			if deck == nil {
				return &types.NotFoundError{Entity: "deck", ID: *deckID}
			}
			rows, err := s.decks.ListCards(inner, *deckID)
			if err != nil {
				return fmt.Errorf("list deck cards: %w", err)
			}
			cards = append(cards, rows...)
		}
		if len(cardIDs) > 0 {
			rows, err := s.decks.GetCardsByIDs(inner, cardIDs)
			if err != nil {
				return fmt.Errorf("load cards: %w", err)
			}
			found := make(map[uuid.UUID]bool, len(rows))
			for _, c := range rows {
				found[c.ID] = true
			}
			for _, id := range cardIDs {
				if !found[id] {
					return &types.NotFoundError{Entity: "card", ID: id}
				}
			}
			cards = append(cards, rows...)
		}

		now := s.clock()
		seen := make(map[uuid.UUID]bool, len(cards))
		rows := make([]*types.CardState, 0, len(cards))
		for _, c := range cards {
			if seen[c.ID] {
				continue
			}
			seen[c.ID] = true
			rows = append(rows, &types.CardState{
				StudentID: studentID,
				CardID:    c.ID,
				DeckID:    c.DeckID,
				State:     learning.StateNew,
				Due:       now,
				CreatedAt: now,
				UpdatedAt: now,
			})
		}
		created, err := s.cardStates.CreateIgnoreConflicts(inner, rows)
		if err != nil {
			return fmt.Errorf("create card states: %w", err)
		}
		report.Created = created
		report.Skipped = int64(len(rows)) - created
		return nil
	})
	observability.EndSpan(span, err)
	if err != nil {
		return nil, err
	}
	s.log.Info("card states initialized", "student_id", studentID, "created", report.Created, "skipped", report.Skipped)
	return report, nil
}

// RebuildFromLedger drops the student's card states and refolds them from
// the review ledger.
func (s *schedulingEngine) RebuildFromLedger(dbc dbctx.Context, studentID uuid.UUID) (*RebuildReport, error) {
	ctx, span := observability.StartSpan(dbc.Context(), "scheduling.RebuildFromLedger", "student_id", studentID.String())
	report := &RebuildReport{}
	err := dbctx.Transaction(dbctx.Context{Ctx: ctx, Tx: dbc.Tx}, s.db, func(inner dbctx.Context) error {
		// Locking the cache first makes concurrent reviews wait, so the
		// ledger read below cannot miss an event that the rewrite would drop.
		existing, err := s.cardStates.LockByStudent(inner, studentID)
		if err != nil {
			return fmt.Errorf("lock card states: %w", err)
		}
		events, err := s.reviews.ListByStudent(inner, studentID)
		if err != nil {
			return fmt.Errorf("list review events: %w", err)
		}
		sched, err := s.schedulerFor(inner, studentID)
		if err != nil {
			return err
		}

		byCard := make(map[uuid.UUID][]*types.ReviewEvent)
		for _, ev := range events {
			byCard[ev.CardID] = append(byCard[ev.CardID], ev)
		}
		prior := make(map[uuid.UUID]*types.CardState, len(existing))
		for _, st := range existing {
			prior[st.CardID] = st
		}
		deckOf, err := s.deckIDs(inner, existing, byCard)
		if err != nil {
			return err
		}

		ids := make([]uuid.UUID, 0, len(deckOf))
		for id := range deckOf {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })

		now := s.clock()
		rows := make([]*types.CardState, 0, len(ids))
		for _, id := range ids {
			row := &types.CardState{StudentID: studentID, CardID: id, DeckID: deckOf[id], UpdatedAt: now}
			if p := prior[id]; p != nil {
				row.CreatedAt = p.CreatedAt
			}
			evs := byCard[id]
			if len(evs) == 0 {
				// Never reviewed: keep it where it was in the queue.
				row.State = learning.StateNew
				row.Due = now
				if p := prior[id]; p != nil {
					row.Due = p.Due
				}
			} else {
				card, mismatches, err := fold(sched, evs)
				if err != nil {
					return fmt.Errorf("replay card %s: %w", id, err)
				}
				applyCard(row, card)
				report.EventsReplayed += len(evs)
				report.SnapshotMismatches += mismatches
				if row.CreatedAt.IsZero() {
					row.CreatedAt = evs[0].ReviewedAt
				}
			}
			if row.CreatedAt.IsZero() {
				row.CreatedAt = now
			}
			rows = append(rows, row)
		}

		if _, err := s.cardStates.DeleteByStudent(inner, studentID); err != nil {
			return fmt.Errorf("delete card states: %w", err)
		}
		if _, err := s.cardStates.CreateIgnoreConflicts(inner, rows); err != nil {
			return fmt.Errorf("recreate card states: %w", err)
		}
		report.Cards = len(rows)
		return nil
	})
	observability.EndSpan(span, err)
	if err != nil {
		return nil, err
	}
	if report.SnapshotMismatches > 0 {
		s.log.Warn("ledger snapshots disagree with replay", "student_id", studentID, "mismatches", report.SnapshotMismatches)
	}
	s.log.Info("card states rebuilt", "student_id", studentID, "cards", report.Cards, "events", report.EventsReplayed)
	return report, nil
}

// deckIDs resolves the deck of every enrolled or reviewed card.
func (s *schedulingEngine) deckIDs(dbc dbctx.Context, existing []*types.CardState, byCard map[uuid.UUID][]*types.ReviewEvent) (map[uuid.UUID]uuid.UUID, error) {
	out := make(map[uuid.UUID]uuid.UUID, len(existing)+len(byCard))
	for _, st := range existing {
		out[st.CardID] = st.DeckID
	}
	var missing []uuid.UUID
	for id := range byCard {
		if _, ok := out[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return out, nil
	}
	cards, err := s.decks.GetCardsByIDs(dbc, missing)
	if err != nil {
		return nil, fmt.Errorf("load reviewed cards: %w", err)
	}
	for _, c := range cards {
		out[c.ID] = c.DeckID
	}
	for _, id := range missing {
		if _, ok := out[id]; !ok {
			return nil, &types.NotFoundError{Entity: "card", ID: id}
		}
	}
	return out, nil
}

// fold replays one card's events in sequence order and counts the events
// whose stored snapshot differs from the replayed pre-review state. Sequence,
// not reviewed_at, is the order the incremental path applied them in.
func fold(sched *fsrs.Scheduler, evs []*types.ReviewEvent) (fsrs.Card, int, error) {
	sort.SliceStable(evs, func(i, j int) bool { return evs[i].Sequence < evs[j].Sequence })
	card := fsrs.NewCard(evs[0].ReviewedAt)
	var first types.CardStateSnapshot
	if err := json.Unmarshal(evs[0].Snapshot, &first); err == nil && first.State == learning.StateNew {
		// A new card's due only orders the queue; take it from the ledger.
		card.Due = first.Due
	}
	mismatches := 0
	for i, ev := range evs {
		var snap types.CardStateSnapshot
		if err := json.Unmarshal(ev.Snapshot, &snap); err != nil || !snap.Equal(cardSnapshotOf(card)) {
			mismatches++
		}
		next, _, err := sched.Review(card, fsrs.Rating(ev.Rating), ev.ReviewedAt)
		if err != nil {
			return card, mismatches, fmt.Errorf("event %d: %w", i, err)
		}
		card = next
	}
	return card, mismatches, nil
}

func (s *schedulingEngine) OptimizeParameters(dbc dbctx.Context, studentID uuid.UUID) (_ *OptimizeReport, err error) {
	ctx, span := observability.StartSpan(dbc.Context(), "scheduling.OptimizeParameters", "student_id", studentID.String())
	defer func() { observability.EndSpan(span, err) }()
	dbc = dbctx.Context{Ctx: ctx, Tx: dbc.Tx}

	events, err := s.reviews.ListByStudent(dbc, studentID)
	if err != nil {
		return nil, fmt.Errorf("list review events: %w", err)
	}
	sched, err := s.schedulerFor(dbc, studentID)
	if err != nil {
		return nil, err
	}
	reviews := make([]optimizer.Review, 0, len(events))
	for _, ev := range events {
		reviews = append(reviews, optimizer.Review{CardID: ev.CardID, Rating: fsrs.Rating(ev.Rating), ReviewedAt: ev.ReviewedAt})
	}

	res, fitErr := optimizer.New(s.optCfg, sched).Fit(ctx, sched.Config().Parameters, reviews)
	report := &OptimizeReport{
		Reviews:         len(reviews),
		CrossDayReviews: res.CrossDay,
		InitialLoss:     res.InitialLoss,
		Loss:            res.Loss,
		Epochs:          res.Epochs,
	}
	if errors.Is(fitErr, optimizer.ErrInsufficientData) {
		report.InsufficientData = true
		s.log.Info("not enough reviews to optimize", "student_id", studentID, "cross_day", res.CrossDay)
		return report, nil
	}
	if fitErr != nil {
		return nil, fmt.Errorf("fit parameters: %w", fitErr)
	}

	weights, err := json.Marshal(res.Parameters.Slice())
	if err != nil {
		return nil, fmt.Errorf("encode weights: %w", err)
	}
	now := s.clock()
	err = s.profiles.Upsert(dbc, &types.SchedulingProfile{
		StudentID:        studentID,
		Weights:          datatypes.JSON(weights),
		DesiredRetention: sched.Config().DesiredRetention,
		Loss:             res.Loss,
		TrainedOnReviews: len(reviews),
		OptimizedAt:      &now,
	})
	if err != nil {
		return nil, fmt.Errorf("save scheduling profile: %w", err)
	}
	report.Parameters = res.Parameters.Slice()
	s.log.Info("parameters optimized",
		"student_id", studentID,
		"reviews", len(reviews),
		"initial_loss", res.InitialLoss,
		"loss", res.Loss,
	)
	return report, nil
}

// schedulerFor returns the base scheduler with the student's fitted weights,
// if any. Unusable stored weights fall back to the base weights.
func (s *schedulingEngine) schedulerFor(dbc dbctx.Context, studentID uuid.UUID) (*fsrs.Scheduler, error) {
	profile, err := s.profiles.Get(dbc, studentID)
	if err != nil {
		return nil, fmt.Errorf("load scheduling profile: %w", err)
	}
	if profile == nil {
		return s.base, nil
	}
	var w []float64
	if err := json.Unmarshal(profile.Weights, &w); err != nil {
		s.log.Warn("unreadable profile weights; using defaults", "student_id", studentID, "error", err)
		return s.base, nil
	}
	params, err := fsrs.ParametersFromSlice(w)
	if err != nil {
		s.log.Warn("invalid profile weights; using defaults", "student_id", studentID, "error", err)
		return s.base, nil
	}
	cfg := s.base.Config()
	cfg.Parameters = params
	if profile.DesiredRetention > 0 && profile.DesiredRetention < 1 {
		cfg.DesiredRetention = profile.DesiredRetention
	}
	return fsrs.NewScheduler(cfg)
}

func (s *schedulingEngine) clock() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

func toCard(st *types.CardState) fsrs.Card {
	return fsrs.Card{
		State:      fsrs.State(st.State),
		Step:       st.LearningStep,
		Stability:  st.Stability,
		Difficulty: st.Difficulty,
		Due:        st.Due,
		Reps:       st.Reps,
		Lapses:     st.Lapses,
		LastReview: st.LastReview,
	}
}

func applyCard(st *types.CardState, c fsrs.Card) {
	st.State = types.LearningState(c.State)
	st.LearningStep = c.Step
	st.Stability = c.Stability
	st.Difficulty = c.Difficulty
	st.Due = c.Due
	st.Reps = c.Reps
	st.Lapses = c.Lapses
	st.LastReview = c.LastReview
}

func cardSnapshotOf(c fsrs.Card) types.CardStateSnapshot {
	var st types.CardState
	applyCard(&st, c)
	return st.Snapshot()
}
