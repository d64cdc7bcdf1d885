package learning

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/tutorloop-backend/internal/domain"
	"github.com/yungbote/tutorloop-backend/internal/platform/dbctx"
	"github.com/yungbote/tutorloop-backend/internal/platform/logger"
)

// ReviewEventRepo is the review ledger. It can only append and read.
type ReviewEventRepo interface {
	Append(dbc dbctx.Context, ev *types.ReviewEvent) (*types.ReviewEvent, error)
	// ListByStudent returns every event of the student ordered by
	// (reviewed_at, sequence).
	ListByStudent(dbc dbctx.Context, studentID uuid.UUID) ([]*types.ReviewEvent, error)
	ListByStudentCard(dbc dbctx.Context, studentID, cardID uuid.UUID) ([]*types.ReviewEvent, error)
	CountByStudent(dbc dbctx.Context, studentID uuid.UUID) (int64, error)
	ListStudentsReviewedSince(dbc dbctx.Context, since time.Time) ([]uuid.UUID, error)
}

type reviewEventRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewReviewEventRepo(db *gorm.DB, baseLog *logger.Logger) ReviewEventRepo {
	return &reviewEventRepo{db: db, log: baseLog.With("repo", "ReviewEventRepo")}
}

func (r *reviewEventRepo) Append(dbc dbctx.Context, ev *types.ReviewEvent) (*types.ReviewEvent, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	if err := transaction.WithContext(dbc.Context()).Create(ev).Error; err != nil {
		return nil, err
	}
	return ev, nil
}

func (r *reviewEventRepo) ListByStudent(dbc dbctx.Context, studentID uuid.UUID) ([]*types.ReviewEvent, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.ReviewEvent
	if studentID == uuid.Nil {
		return out, nil
	}
	if err := transaction.WithContext(dbc.Context()).
		Where("student_id = ?", studentID).
		Order("reviewed_at ASC, sequence ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *reviewEventRepo) ListByStudentCard(dbc dbctx.Context, studentID, cardID uuid.UUID) ([]*types.ReviewEvent, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.ReviewEvent
	if studentID == uuid.Nil || cardID == uuid.Nil {
		return out, nil
	}
	if err := transaction.WithContext(dbc.Context()).
		Where("student_id = ? AND card_id = ?", studentID, cardID).
		Order("reviewed_at ASC, sequence ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *reviewEventRepo) CountByStudent(dbc dbctx.Context, studentID uuid.UUID) (int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var n int64
	err := transaction.WithContext(dbc.Context()).
		Model(&types.ReviewEvent{}).
		Where("student_id = ?", studentID).
		Count(&n).Error
	return n, err
}

func (r *reviewEventRepo) ListStudentsReviewedSince(dbc dbctx.Context, since time.Time) ([]uuid.UUID, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var ids []uuid.UUID
	if err := transaction.WithContext(dbc.Context()).
		Model(&types.ReviewEvent{}).
		Where("reviewed_at >= ?", since.UTC()).
		Distinct().
		Order("student_id ASC").
		Pluck("student_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}
