package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	types "github.com/yungbote/tutorloop-backend/internal/domain"
	"github.com/yungbote/tutorloop-backend/internal/domain/learning"
)

func SeedRelationship(tb testing.TB, ctx context.Context, tx *gorm.DB, teacherID, studentID uuid.UUID) {
	tb.Helper()
	row := &types.TeacherStudent{TeacherID: teacherID, StudentID: studentID}
	if err := tx.WithContext(ctx).Create(row).Error; err != nil {
		tb.Fatalf("seed relationship: %v", err)
	}
}

func SeedDeck(tb testing.TB, ctx context.Context, tx *gorm.DB, cards int) (*types.Deck, []*types.Card) {
	tb.Helper()
	deck := &types.Deck{ID: uuid.New(), Title: "deck"}
	if err := tx.WithContext(ctx).Create(deck).Error; err != nil {
		tb.Fatalf("seed deck: %v", err)
	}
	out := make([]*types.Card, 0, cards)
	for i := 0; i < cards; i++ {
		out = append(out, &types.Card{
			ID:       uuid.New(),
			DeckID:   deck.ID,
			Front:    fmt.Sprintf("front-%d", i),
			Back:     fmt.Sprintf("back-%d", i),
			Position: i,
		})
	}
	if len(out) > 0 {
		if err := tx.WithContext(ctx).Create(&out).Error; err != nil {
			tb.Fatalf("seed cards: %v", err)
		}
	}
	return deck, out
}

// SeedCardStates enrolls the student in cards as NEW, due at due.
func SeedCardStates(tb testing.TB, ctx context.Context, tx *gorm.DB, studentID uuid.UUID, cards []*types.Card, due time.Time) []*types.CardState {
	tb.Helper()
	out := make([]*types.CardState, 0, len(cards))
	for _, c := range cards {
		out = append(out, &types.CardState{
			ID:        uuid.New(),
			StudentID: studentID,
			CardID:    c.ID,
			DeckID:    c.DeckID,
			State:     learning.StateNew,
			Due:       due.UTC().Truncate(time.Microsecond),
		})
	}
	if len(out) > 0 {
		if err := tx.WithContext(ctx).Create(&out).Error; err != nil {
			tb.Fatalf("seed card states: %v", err)
		}
	}
	return out
}

func SeedUnit(tb testing.TB, ctx context.Context, tx *gorm.DB, items ...*types.ExerciseItem) (*types.Unit, []*types.ExerciseItem) {
	tb.Helper()
	unit := &types.Unit{ID: uuid.New(), Title: "unit"}
	if err := tx.WithContext(ctx).Create(unit).Error; err != nil {
		tb.Fatalf("seed unit: %v", err)
	}
	for i, it := range items {
		if it.ID == uuid.Nil {
			it.ID = uuid.New()
		}
		it.UnitID = unit.ID
		if it.Order == 0 {
			it.Order = i + 1
		}
	}
	if len(items) > 0 {
		if err := tx.WithContext(ctx).Create(&items).Error; err != nil {
			tb.Fatalf("seed exercise items: %v", err)
		}
	}
	return unit, items
}

func VocabularyItem(deckID uuid.UUID, config map[string]any) *types.ExerciseItem {
	return &types.ExerciseItem{
		Type:   learning.ExerciseVocabularyDeck,
		DeckID: PtrUUID(deckID),
		Config: JSON(config),
	}
}

func FillInBlankItem(questions ...learning.FillInBlankQuestion) *types.ExerciseItem {
	return &types.ExerciseItem{
		Type:    learning.ExerciseFillInBlank,
		Content: JSON(map[string]any{"questions": questions}),
	}
}

func GrammarItem(questions ...learning.GrammarQuestion) *types.ExerciseItem {
	return &types.ExerciseItem{
		Type:    learning.ExerciseGrammar,
		Content: JSON(map[string]any{"questions": questions}),
	}
}

func JSON(v any) datatypes.JSON {
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return datatypes.JSON(b)
}
