package learning

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Unit is an ordered, read-only (while a session runs) sequence of exercises.
type Unit struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Title     string    `gorm:"column:title;not null" json:"title"`
	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Unit) TableName() string { return "unit" }

// ExerciseItem is one step of a Unit. Exactly one payload is populated:
// DeckID for VOCABULARY_DECK, Content for the question based types.
type ExerciseItem struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UnitID    uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_exercise_item_unit_order,priority:1" json:"unit_id"`
	Type      ExerciseType   `gorm:"column:type;not null" json:"type"`
	Order     int            `gorm:"column:item_order;not null;uniqueIndex:idx_exercise_item_unit_order,priority:2" json:"order"`
	Config    datatypes.JSON `gorm:"column:config" json:"config,omitempty"`
	DeckID    *uuid.UUID     `gorm:"type:uuid;column:deck_id;index" json:"deck_id,omitempty"`
	Content   datatypes.JSON `gorm:"column:content" json:"content,omitempty"`
	CreatedAt time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`
}

func (ExerciseItem) TableName() string { return "exercise_item" }
