package learning

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/tutorloop-backend/internal/domain"
	"github.com/yungbote/tutorloop-backend/internal/platform/dbctx"
	"github.com/yungbote/tutorloop-backend/internal/platform/logger"
)

type SchedulingProfileRepo interface {
	Get(dbc dbctx.Context, studentID uuid.UUID) (*types.SchedulingProfile, error)
	Upsert(dbc dbctx.Context, row *types.SchedulingProfile) error
}

type schedulingProfileRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSchedulingProfileRepo(db *gorm.DB, baseLog *logger.Logger) SchedulingProfileRepo {
	return &schedulingProfileRepo{db: db, log: baseLog.With("repo", "SchedulingProfileRepo")}
}

func (r *schedulingProfileRepo) Get(dbc dbctx.Context, studentID uuid.UUID) (*types.SchedulingProfile, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if studentID == uuid.Nil {
		return nil, nil
	}
	var row types.SchedulingProfile
	if err := transaction.WithContext(dbc.Context()).
		Where("student_id = ?", studentID).
		Limit(1).
		Find(&row).Error; err != nil {
		return nil, err
	}
	if row.StudentID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *schedulingProfileRepo) Upsert(dbc dbctx.Context, row *types.SchedulingProfile) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Context()).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "student_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"weights", "desired_retention", "loss", "trained_on_reviews", "optimized_at", "updated_at",
			}),
		}).
		Create(row).Error
}
