package exercise

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	types "github.com/yungbote/tutorloop-backend/internal/domain"
	"github.com/yungbote/tutorloop-backend/internal/platform/dbctx"
)

type Stage string

const (
	StagePresentingCard     Stage = "PRESENTING_CARD"
	StageAwaitingRating     Stage = "AWAITING_RATING"
	StagePresentingQuestion Stage = "PRESENTING_QUESTION"
	StageComplete           Stage = "COMPLETE"
)

type Action string

const (
	ActionRevealAnswer Action = "REVEAL_ANSWER"
	ActionSubmitRating Action = "SUBMIT_RATING"
	ActionSubmitAnswer Action = "SUBMIT_ANSWER"
	ActionSkipQuestion Action = "SKIP_QUESTION"
)

// Context is what a handler sees of the running session. DBC carries the
// session's transaction; every write a handler makes must go through it.
type Context struct {
	DBC       dbctx.Context
	SessionID uuid.UUID
	TeacherID uuid.UUID
	StudentID uuid.UUID
	Now       time.Time
}

type ReviewOutcome struct {
	CardID          uuid.UUID `json:"card_id"`
	Rating          int       `json:"rating"`
	State           string    `json:"state"`
	Due             time.Time `json:"due"`
	IntervalSeconds int64     `json:"interval_seconds"`
	Requeued        bool      `json:"requeued,omitempty"`
}

// ActionResult is the per-action feedback returned to the caller.
type ActionResult struct {
	Action   Action         `json:"action"`
	Correct  *bool          `json:"correct,omitempty"`
	Expected string         `json:"expected,omitempty"`
	Score    *float64       `json:"score,omitempty"`
	Preview  map[int]string `json:"preview,omitempty"`
	Review   *ReviewOutcome `json:"review,omitempty"`
	Complete bool           `json:"complete"`
}

// Handler runs one exercise type.
type Handler interface {
	Type() types.ExerciseType
	Initialize(ec *Context, item *types.ExerciseItem) (Progress, error)
	SubmitAnswer(ec *Context, item *types.ExerciseItem, progress Progress, action Action, data json.RawMessage) (*ActionResult, Progress, error)
	IsComplete(progress Progress) bool
}

// Operator implements one atomic action of a handler.
type Operator interface {
	Action() Action
	Apply(ec *Context, item *types.ExerciseItem, progress Progress, data json.RawMessage) (*ActionResult, Progress, error)
}

// Operators routes an action to its operator.
type Operators map[Action]Operator

func NewOperators(ops ...Operator) Operators {
	out := make(Operators, len(ops))
	for _, op := range ops {
		out[op.Action()] = op
	}
	return out
}

func (o Operators) Apply(ec *Context, item *types.ExerciseItem, progress Progress, action Action, data json.RawMessage) (*ActionResult, Progress, error) {
	op, ok := o[action]
	if !ok {
		return nil, nil, &types.InvalidActionError{Action: string(action), Stage: string(progress.Stage()), Reason: "unknown action for " + string(item.Type)}
	}
	return op.Apply(ec, item, progress, data)
}

// RequireStage returns an InvalidActionError unless progress is in want.
func RequireStage(progress Progress, action Action, want Stage) error {
	if progress.Stage() != want {
		return &types.InvalidActionError{Action: string(action), Stage: string(progress.Stage())}
	}
	return nil
}

// DecodeData strictly decodes an action body. Empty bodies decode to the zero value.
func DecodeData(action Action, stage Stage, data json.RawMessage, dst any) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return &types.InvalidActionError{Action: string(action), Stage: string(stage), Reason: "malformed data: " + err.Error()}
	}
	return nil
}
