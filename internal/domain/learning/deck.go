package learning

import (
	"time"

	"github.com/google/uuid"
)

type Deck struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Title     string    `gorm:"column:title;not null" json:"title"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Deck) TableName() string { return "deck" }

type Card struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	DeckID    uuid.UUID `gorm:"type:uuid;not null;index" json:"deck_id"`
	Front     string    `gorm:"column:front;not null" json:"front"`
	Back      string    `gorm:"column:back;not null" json:"back"`
	Position  int       `gorm:"column:position;not null;default:0" json:"position"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Card) TableName() string { return "card" }

// TeacherStudent is the relationship the authorization check consults.
type TeacherStudent struct {
	TeacherID uuid.UUID `gorm:"type:uuid;primaryKey" json:"teacher_id"`
	StudentID uuid.UUID `gorm:"type:uuid;primaryKey" json:"student_id"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

func (TeacherStudent) TableName() string { return "teacher_student" }
