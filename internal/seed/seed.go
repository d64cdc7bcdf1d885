// Package seed loads development fixtures (decks, units, teacher/student
// relationships) from YAML.
package seed

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/tutorloop-backend/internal/data/repos"
	types "github.com/yungbote/tutorloop-backend/internal/domain"
	"github.com/yungbote/tutorloop-backend/internal/domain/learning"
	"github.com/yungbote/tutorloop-backend/internal/platform/dbctx"
	"github.com/yungbote/tutorloop-backend/internal/platform/logger"
)

type Fixture struct {
	Relationships []Relationship `yaml:"relationships"`
	Decks         []DeckFixture  `yaml:"decks"`
	Units         []UnitFixture  `yaml:"units"`
}

// Relationship links a teacher to a student. EnrollDecks names deck keys the
// student should get card states for.
type Relationship struct {
	TeacherID   string   `yaml:"teacher_id"`
	StudentID   string   `yaml:"student_id"`
	EnrollDecks []string `yaml:"enroll_decks"`
}

type DeckFixture struct {
	Key   string        `yaml:"key"`
	ID    string        `yaml:"id"`
	Title string        `yaml:"title"`
	Cards []CardFixture `yaml:"cards"`
}

type CardFixture struct {
	Front string `yaml:"front"`
	Back  string `yaml:"back"`
}

type UnitFixture struct {
	ID    string        `yaml:"id"`
	Title string        `yaml:"title"`
	Items []ItemFixture `yaml:"items"`
}

// ItemFixture is one exercise. Deck references a DeckFixture key; Config and
// Content are stored as JSON.
type ItemFixture struct {
	Type    string         `yaml:"type"`
	Deck    string         `yaml:"deck"`
	Config  map[string]any `yaml:"config"`
	Content map[string]any `yaml:"content"`
}

// Enrollment asks for card states for a student in a deck.
type Enrollment struct {
	TeacherID uuid.UUID
	StudentID uuid.UUID
	DeckID    uuid.UUID
}

// Plan is a validated fixture, ready to insert.
type Plan struct {
	Relationships []*types.TeacherStudent
	Decks         []*types.Deck
	Cards         []*types.Card
	Units         []*types.Unit
	Items         []*types.ExerciseItem
	Enrollments   []Enrollment
}

type Summary struct {
	Relationships int `json:"relationships"`
	Decks         int `json:"decks"`
	Cards         int `json:"cards"`
	Units         int `json:"units"`
	Items         int `json:"items"`
}

func Parse(r io.Reader) (*Fixture, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var fx Fixture
	if err := dec.Decode(&fx); err != nil {
		if errors.Is(err, io.EOF) {
			return &fx, nil
		}
		return nil, fmt.Errorf("decode fixture: %w", err)
	}
	return &fx, nil
}

// Build resolves deck keys, assigns ids and validates every exercise item.
func Build(fx *Fixture) (*Plan, error) {
	if fx == nil {
		return nil, errors.New("nil fixture")
	}
	plan := &Plan{}
	deckIDs := map[string]uuid.UUID{}

	for i, d := range fx.Decks {
		id, err := parseOptionalID(d.ID)
		if err != nil {
			return nil, fmt.Errorf("decks[%d].id: %w", i, err)
		}
		key := strings.TrimSpace(d.Key)
		if key == "" {
			return nil, fmt.Errorf("decks[%d]: key is required", i)
		}
		if _, dup := deckIDs[key]; dup {
			return nil, fmt.Errorf("decks[%d]: duplicate key %q", i, key)
		}
		deckIDs[key] = id
		title := d.Title
		if title == "" {
			title = key
		}
		plan.Decks = append(plan.Decks, &types.Deck{ID: id, Title: title})
		for pos, c := range d.Cards {
			if strings.TrimSpace(c.Front) == "" || strings.TrimSpace(c.Back) == "" {
				return nil, fmt.Errorf("decks[%d].cards[%d]: front and back are required", i, pos)
			}
			plan.Cards = append(plan.Cards, &types.Card{
				ID:       uuid.New(),
				DeckID:   id,
				Front:    c.Front,
				Back:     c.Back,
				Position: pos,
			})
		}
	}

	for i, u := range fx.Units {
		id, err := parseOptionalID(u.ID)
		if err != nil {
			return nil, fmt.Errorf("units[%d].id: %w", i, err)
		}
		if len(u.Items) == 0 {
			return nil, fmt.Errorf("units[%d]: no items", i)
		}
		plan.Units = append(plan.Units, &types.Unit{ID: id, Title: u.Title})
		for order, it := range u.Items {
			item, err := buildItem(id, order, it, deckIDs)
			if err != nil {
				return nil, fmt.Errorf("units[%d].items[%d]: %w", i, order, err)
			}
			plan.Items = append(plan.Items, item)
		}
	}

	for i, r := range fx.Relationships {
		teacherID, err := uuid.Parse(r.TeacherID)
		if err != nil {
			return nil, fmt.Errorf("relationships[%d].teacher_id: %w", i, err)
		}
		studentID, err := uuid.Parse(r.StudentID)
		if err != nil {
			return nil, fmt.Errorf("relationships[%d].student_id: %w", i, err)
		}
		plan.Relationships = append(plan.Relationships, &types.TeacherStudent{TeacherID: teacherID, StudentID: studentID})
		for _, key := range r.EnrollDecks {
			deckID, ok := deckIDs[key]
			if !ok {
				return nil, fmt.Errorf("relationships[%d]: unknown deck %q", i, key)
			}
			plan.Enrollments = append(plan.Enrollments, Enrollment{TeacherID: teacherID, StudentID: studentID, DeckID: deckID})
		}
	}
	return plan, nil
}

func buildItem(unitID uuid.UUID, order int, it ItemFixture, deckIDs map[string]uuid.UUID) (*types.ExerciseItem, error) {
	item := &types.ExerciseItem{
		ID:     uuid.New(),
		UnitID: unitID,
		Type:   learning.ExerciseType(strings.ToUpper(strings.TrimSpace(it.Type))),
		Order:  order,
	}
	if it.Deck != "" {
		deckID, ok := deckIDs[it.Deck]
		if !ok {
			return nil, fmt.Errorf("unknown deck %q", it.Deck)
		}
		item.DeckID = &deckID
	}
	var err error
	if item.Config, err = toJSON(it.Config); err != nil {
		return nil, err
	}
	if item.Content, err = toJSON(it.Content); err != nil {
		return nil, err
	}
	if _, err := item.Payload(); err != nil {
		return nil, err
	}
	return item, nil
}

func toJSON(m map[string]any) (datatypes.JSON, error) {
	if len(m) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}

func parseOptionalID(s string) (uuid.UUID, error) {
	if strings.TrimSpace(s) == "" {
		return uuid.New(), nil
	}
	return uuid.Parse(s)
}

type Loader struct {
	db    *gorm.DB
	log   *logger.Logger
	repos repos.Repos
}

func NewLoader(db *gorm.DB, baseLog *logger.Logger, rs repos.Repos) *Loader {
	return &Loader{db: db, log: baseLog.With("component", "SeedLoader"), repos: rs}
}

// Apply inserts the plan in one transaction. Relationships that already
// exist are left alone.
func (l *Loader) Apply(dbc dbctx.Context, plan *Plan) (Summary, error) {
	var sum Summary
	err := dbctx.Transaction(dbc, l.db, func(inner dbctx.Context) error {
		if _, err := l.repos.Deck.Create(inner, plan.Decks); err != nil {
			return fmt.Errorf("create decks: %w", err)
		}
		if _, err := l.repos.Deck.CreateCards(inner, plan.Cards); err != nil {
			return fmt.Errorf("create cards: %w", err)
		}
		if _, err := l.repos.Unit.Create(inner, plan.Units); err != nil {
			return fmt.Errorf("create units: %w", err)
		}
		if _, err := l.repos.Unit.CreateItems(inner, plan.Items); err != nil {
			return fmt.Errorf("create items: %w", err)
		}
		if err := l.repos.TeacherStudent.Create(inner, plan.Relationships); err != nil {
			return fmt.Errorf("create relationships: %w", err)
		}
		return nil
	})
	if err != nil {
		return sum, err
	}
	sum = Summary{
		Relationships: len(plan.Relationships),
		Decks:         len(plan.Decks),
		Cards:         len(plan.Cards),
		Units:         len(plan.Units),
		Items:         len(plan.Items),
	}
	l.log.Info("fixture loaded", "decks", sum.Decks, "cards", sum.Cards, "units", sum.Units, "items", sum.Items, "relationships", sum.Relationships)
	return sum, nil
}
