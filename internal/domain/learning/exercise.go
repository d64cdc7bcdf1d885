package learning

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

type ExerciseType string

const (
	ExerciseVocabularyDeck ExerciseType = "VOCABULARY_DECK"
	ExerciseGrammar        ExerciseType = "GRAMMAR"
	ExerciseListening      ExerciseType = "LISTENING"
	ExerciseFillInBlank    ExerciseType = "FILL_IN_BLANK"
)

// AllExerciseTypes is the closed set of exercise types. Every entry needs a
// registered handler.
var AllExerciseTypes = []ExerciseType{
	ExerciseVocabularyDeck,
	ExerciseGrammar,
	ExerciseListening,
	ExerciseFillInBlank,
}

func (t ExerciseType) Valid() bool {
	for _, et := range AllExerciseTypes {
		if et == t {
			return true
		}
	}
	return false
}

var ErrInvalidExercisePayload = errors.New("invalid exercise payload")

// ExercisePayload is the decoded, type-specific content of an ExerciseItem.
type ExercisePayload interface {
	ExerciseType() ExerciseType
	isExercisePayload()
}

type VocabularyConfig struct {
	NewCardsPerSession int `json:"new_cards_per_session"`
	ReviewLimit        int `json:"review_limit"`
}

type QuizConfig struct {
	RetryIncorrect bool    `json:"retry_incorrect"`
	PassThreshold  float64 `json:"pass_threshold"`
}

func DefaultVocabularyConfig() VocabularyConfig {
	return VocabularyConfig{NewCardsPerSession: 10, ReviewLimit: 0}
}

func DefaultQuizConfig() QuizConfig {
	return QuizConfig{RetryIncorrect: false, PassThreshold: 0.8}
}

type DeckPayload struct {
	DeckID uuid.UUID
	Config VocabularyConfig
}

type GrammarQuestion struct {
	ID      string   `json:"id"`
	Prompt  string   `json:"prompt"`
	Choices []string `json:"choices"`
	Answer  int      `json:"answer"`
}

type ListeningQuestion struct {
	ID         string `json:"id"`
	AudioURL   string `json:"audio_url"`
	Transcript string `json:"transcript"`
}

type FillInBlankQuestion struct {
	ID       string   `json:"id"`
	Prompt   string   `json:"prompt"`
	Accepted []string `json:"accepted"`
}

type GrammarPayload struct {
	Questions []GrammarQuestion `json:"questions"`
	Config    QuizConfig        `json:"-"`
}

type ListeningPayload struct {
	Questions []ListeningQuestion `json:"questions"`
	Config    QuizConfig          `json:"-"`
}

type FillInBlankPayload struct {
	Questions []FillInBlankQuestion `json:"questions"`
	Config    QuizConfig            `json:"-"`
}

func (*DeckPayload) ExerciseType() ExerciseType        { return ExerciseVocabularyDeck }
func (*GrammarPayload) ExerciseType() ExerciseType     { return ExerciseGrammar }
func (*ListeningPayload) ExerciseType() ExerciseType   { return ExerciseListening }
func (*FillInBlankPayload) ExerciseType() ExerciseType { return ExerciseFillInBlank }

func (*DeckPayload) isExercisePayload()        {}
func (*GrammarPayload) isExercisePayload()     {}
func (*ListeningPayload) isExercisePayload()   {}
func (*FillInBlankPayload) isExercisePayload() {}

// Payload decodes the item's populated payload. It fails when the populated
// column does not match the item type.
func (it *ExerciseItem) Payload() (ExercisePayload, error) {
	if it == nil {
		return nil, fmt.Errorf("%w: nil item", ErrInvalidExercisePayload)
	}
	hasContent := len(it.Content) > 0 && string(it.Content) != "null"
	switch it.Type {
	case ExerciseVocabularyDeck:
		if it.DeckID == nil || *it.DeckID == uuid.Nil {
			return nil, fmt.Errorf("%w: %s item %s has no deck", ErrInvalidExercisePayload, it.Type, it.ID)
		}
		if hasContent {
			return nil, fmt.Errorf("%w: %s item %s carries question content", ErrInvalidExercisePayload, it.Type, it.ID)
		}
		cfg := DefaultVocabularyConfig()
		if err := decodeConfig(it.Config, &cfg); err != nil {
			return nil, err
		}
		if cfg.NewCardsPerSession < 0 || cfg.ReviewLimit < 0 {
			return nil, fmt.Errorf("%w: negative limits in config", ErrInvalidExercisePayload)
		}
		return &DeckPayload{DeckID: *it.DeckID, Config: cfg}, nil
	case ExerciseGrammar, ExerciseListening, ExerciseFillInBlank:
		if it.DeckID != nil {
			return nil, fmt.Errorf("%w: %s item %s references a deck", ErrInvalidExercisePayload, it.Type, it.ID)
		}
		if !hasContent {
			return nil, fmt.Errorf("%w: %s item %s has no content", ErrInvalidExercisePayload, it.Type, it.ID)
		}
		cfg := DefaultQuizConfig()
		if err := decodeConfig(it.Config, &cfg); err != nil {
			return nil, err
		}
		if cfg.PassThreshold < 0 || cfg.PassThreshold > 1 {
			return nil, fmt.Errorf("%w: pass_threshold must be within [0,1]", ErrInvalidExercisePayload)
		}
		return decodeQuiz(it, cfg)
	default:
		return nil, fmt.Errorf("%w: unknown exercise type %q", ErrInvalidExercisePayload, it.Type)
	}
}

func decodeQuiz(it *ExerciseItem, cfg QuizConfig) (ExercisePayload, error) {
	var (
		out ExercisePayload
		n   int
		err error
	)
	switch it.Type {
	case ExerciseGrammar:
		p := &GrammarPayload{Config: cfg}
		err = json.Unmarshal(it.Content, p)
		for _, q := range p.Questions {
			if q.Answer < 0 || q.Answer >= len(q.Choices) {
				return nil, fmt.Errorf("%w: question %q answer index out of range", ErrInvalidExercisePayload, q.ID)
			}
		}
		out, n = p, len(p.Questions)
	case ExerciseListening:
		p := &ListeningPayload{Config: cfg}
		err = json.Unmarshal(it.Content, p)
		out, n = p, len(p.Questions)
	case ExerciseFillInBlank:
		p := &FillInBlankPayload{Config: cfg}
		err = json.Unmarshal(it.Content, p)
		for _, q := range p.Questions {
			if len(q.Accepted) == 0 {
				return nil, fmt.Errorf("%w: question %q has no accepted answers", ErrInvalidExercisePayload, q.ID)
			}
		}
		out, n = p, len(p.Questions)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: decode content: %v", ErrInvalidExercisePayload, err)
	}
	if n == 0 {
		return nil, fmt.Errorf("%w: %s item %s has no questions", ErrInvalidExercisePayload, it.Type, it.ID)
	}
	return out, nil
}

func decodeConfig(raw []byte, dst any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: decode config: %v", ErrInvalidExercisePayload, err)
	}
	return nil
}
