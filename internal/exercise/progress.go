package exercise

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	types "github.com/yungbote/tutorloop-backend/internal/domain"
	"github.com/yungbote/tutorloop-backend/internal/domain/learning"
)

// Progress is the persisted state of the exercise a session is on. The set
// of variants is closed: *VocabularyProgress and *QuizProgress.
type Progress interface {
	ExerciseType() types.ExerciseType
	Stage() Stage
	isProgress()
}

type QueueKind string

const (
	QueueReview  QueueKind = "review"
	QueueNew     QueueKind = "new"
	QueueRequeue QueueKind = "requeue"
)

type QueueEntry struct {
	CardID uuid.UUID `json:"card_id"`
	Due    time.Time `json:"due"`
	Kind   QueueKind `json:"kind"`
}

type CardView struct {
	CardID uuid.UUID `json:"card_id"`
	Front  string    `json:"front"`
	Back   string    `json:"back,omitempty"`
	Kind   QueueKind `json:"kind"`
}

type VocabularyProgress struct {
	CurrentStage Stage        `json:"-"`
	Queue        []QueueEntry `json:"queue"`
	Current      *CardView    `json:"current,omitempty"`
	Reviewed     int          `json:"reviewed"`
	Again        int          `json:"again"`
	Total        int          `json:"total"`
}

func (*VocabularyProgress) ExerciseType() types.ExerciseType { return learning.ExerciseVocabularyDeck }
func (p *VocabularyProgress) Stage() Stage                   { return p.CurrentStage }
func (*VocabularyProgress) isProgress()                      {}

type QuizProgress struct {
	Type         types.ExerciseType `json:"-"`
	CurrentStage Stage              `json:"-"`
	Queue        []string           `json:"queue"`
	Current      string             `json:"current,omitempty"`
	Attempts     map[string]int     `json:"attempts,omitempty"`
	Correct      int                `json:"correct"`
	Incorrect    int                `json:"incorrect"`
	Skipped      int                `json:"skipped"`
	Total        int                `json:"total"`
}

func (p *QuizProgress) ExerciseType() types.ExerciseType { return p.Type }
func (p *QuizProgress) Stage() Stage                     { return p.CurrentStage }
func (*QuizProgress) isProgress()                        {}

type envelope struct {
	Type    types.ExerciseType `json:"type"`
	Stage   Stage              `json:"stage"`
	Payload json.RawMessage    `json:"payload"`
}

// EncodeProgress renders p as {"type", "stage", "payload"}.
func EncodeProgress(p Progress) (datatypes.JSON, error) {
	if p == nil {
		return nil, fmt.Errorf("encode progress: nil progress")
	}
	switch p.(type) {
	case *VocabularyProgress, *QuizProgress:
	default:
		return nil, fmt.Errorf("encode progress: unknown variant %T", p)
	}
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode progress payload: %w", err)
	}
	raw, err := json.Marshal(envelope{Type: p.ExerciseType(), Stage: p.Stage(), Payload: payload})
	if err != nil {
		return nil, fmt.Errorf("encode progress: %w", err)
	}
	return datatypes.JSON(raw), nil
}

// DecodeProgress parses an envelope and checks it belongs to want.
func DecodeProgress(raw []byte, want types.ExerciseType) (Progress, error) {
	var env envelope
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&env); err != nil {
		return nil, fmt.Errorf("decode progress: %w", err)
	}
	if env.Type != want {
		return nil, &types.ProgressTypeMismatchError{Want: string(want), Got: string(env.Type)}
	}
	switch env.Type {
	case learning.ExerciseVocabularyDeck:
		p := &VocabularyProgress{}
		if err := json.Unmarshal(env.Payload, p); err != nil {
			return nil, fmt.Errorf("decode vocabulary progress: %w", err)
		}
		p.CurrentStage = env.Stage
		return p, nil
	case learning.ExerciseGrammar, learning.ExerciseListening, learning.ExerciseFillInBlank:
		p := &QuizProgress{}
		if err := json.Unmarshal(env.Payload, p); err != nil {
			return nil, fmt.Errorf("decode quiz progress: %w", err)
		}
		p.Type = env.Type
		p.CurrentStage = env.Stage
		return p, nil
	default:
		return nil, &types.UnsupportedExerciseTypeError{Type: string(env.Type)}
	}
}
