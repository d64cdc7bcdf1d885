package learning

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/tutorloop-backend/internal/domain"
	"github.com/yungbote/tutorloop-backend/internal/platform/dbctx"
	"github.com/yungbote/tutorloop-backend/internal/platform/logger"
)

type CardStateRepo interface {
	// CreateIgnoreConflicts inserts rows, skipping (student, card) pairs that
	// already exist. It returns how many rows were inserted.
	CreateIgnoreConflicts(dbc dbctx.Context, rows []*types.CardState) (int64, error)
	Get(dbc dbctx.Context, studentID, cardID uuid.UUID) (*types.CardState, error)
	LockForUpdate(dbc dbctx.Context, studentID, cardID uuid.UUID) (*types.CardState, error)
	Save(dbc dbctx.Context, row *types.CardState) error
	ListByStudent(dbc dbctx.Context, studentID uuid.UUID) ([]*types.CardState, error)
	// LockByStudent is ListByStudent with FOR UPDATE row locks.
	LockByStudent(dbc dbctx.Context, studentID uuid.UUID) ([]*types.CardState, error)
	ListByStudentDeck(dbc dbctx.Context, studentID, deckID uuid.UUID) ([]*types.CardState, error)
	DeleteByStudent(dbc dbctx.Context, studentID uuid.UUID) (int64, error)
}

type cardStateRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCardStateRepo(db *gorm.DB, baseLog *logger.Logger) CardStateRepo {
	return &cardStateRepo{db: db, log: baseLog.With("repo", "CardStateRepo")}
}

func (r *cardStateRepo) CreateIgnoreConflicts(dbc dbctx.Context, rows []*types.CardState) (int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(rows) == 0 {
		return 0, nil
	}
	for _, row := range rows {
		if row.ID == uuid.Nil {
			row.ID = uuid.New()
		}
	}
	res := transaction.WithContext(dbc.Context()).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "student_id"}, {Name: "card_id"}},
			DoNothing: true,
		}).
		CreateInBatches(&rows, 500)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *cardStateRepo) Get(dbc dbctx.Context, studentID, cardID uuid.UUID) (*types.CardState, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return r.find(transaction.WithContext(dbc.Context()), studentID, cardID)
}

func (r *cardStateRepo) LockForUpdate(dbc dbctx.Context, studentID, cardID uuid.UUID) (*types.CardState, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return r.find(transaction.WithContext(dbc.Context()).
		Clauses(clause.Locking{Strength: "UPDATE"}), studentID, cardID)
}

func (r *cardStateRepo) find(q *gorm.DB, studentID, cardID uuid.UUID) (*types.CardState, error) {
	if studentID == uuid.Nil || cardID == uuid.Nil {
		return nil, nil
	}
	var row types.CardState
	if err := q.Where("student_id = ? AND card_id = ?", studentID, cardID).
		Limit(1).
		Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *cardStateRepo) Save(dbc dbctx.Context, row *types.CardState) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	row.UpdatedAt = time.Now().UTC().Truncate(time.Microsecond)
	return transaction.WithContext(dbc.Context()).
		Model(&types.CardState{}).
		Where("id = ?", row.ID).
		Updates(map[string]interface{}{
			"state":         row.State,
			"learning_step": row.LearningStep,
			"stability":     row.Stability,
			"difficulty":    row.Difficulty,
			"due":           row.Due,
			"reps":          row.Reps,
			"lapses":        row.Lapses,
			"last_review":   row.LastReview,
			"updated_at":    row.UpdatedAt,
		}).Error
}

func (r *cardStateRepo) ListByStudent(dbc dbctx.Context, studentID uuid.UUID) ([]*types.CardState, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return r.listStudent(transaction.WithContext(dbc.Context()), studentID)
}

// LockByStudent locks every card state of the student, in card order.
func (r *cardStateRepo) LockByStudent(dbc dbctx.Context, studentID uuid.UUID) ([]*types.CardState, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return r.listStudent(transaction.WithContext(dbc.Context()).
		Clauses(clause.Locking{Strength: "UPDATE"}), studentID)
}

func (r *cardStateRepo) listStudent(q *gorm.DB, studentID uuid.UUID) ([]*types.CardState, error) {
	var out []*types.CardState
	if studentID == uuid.Nil {
		return out, nil
	}
	if err := q.Where("student_id = ?", studentID).
		Order("card_id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *cardStateRepo) ListByStudentDeck(dbc dbctx.Context, studentID, deckID uuid.UUID) ([]*types.CardState, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.CardState
	if studentID == uuid.Nil || deckID == uuid.Nil {
		return out, nil
	}
	if err := transaction.WithContext(dbc.Context()).
		Where("student_id = ? AND deck_id = ?", studentID, deckID).
		Order("due ASC, card_id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *cardStateRepo) DeleteByStudent(dbc dbctx.Context, studentID uuid.UUID) (int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if studentID == uuid.Nil {
		return 0, nil
	}
	res := transaction.WithContext(dbc.Context()).
		Where("student_id = ?", studentID).
		Delete(&types.CardState{})
	return res.RowsAffected, res.Error
}
