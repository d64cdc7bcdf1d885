package learning

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/tutorloop-backend/internal/domain"
	"github.com/yungbote/tutorloop-backend/internal/platform/dbctx"
	"github.com/yungbote/tutorloop-backend/internal/platform/logger"
)

type TeacherStudentRepo interface {
	Create(dbc dbctx.Context, rows []*types.TeacherStudent) error
	Exists(dbc dbctx.Context, teacherID, studentID uuid.UUID) (bool, error)
}

type teacherStudentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTeacherStudentRepo(db *gorm.DB, baseLog *logger.Logger) TeacherStudentRepo {
	return &teacherStudentRepo{db: db, log: baseLog.With("repo", "TeacherStudentRepo")}
}

func (r *teacherStudentRepo) Create(dbc dbctx.Context, rows []*types.TeacherStudent) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(rows) == 0 {
		return nil
	}
	return transaction.WithContext(dbc.Context()).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&rows).Error
}

func (r *teacherStudentRepo) Exists(dbc dbctx.Context, teacherID, studentID uuid.UUID) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if teacherID == uuid.Nil || studentID == uuid.Nil {
		return false, nil
	}
	var n int64
	if err := transaction.WithContext(dbc.Context()).
		Model(&types.TeacherStudent{}).
		Where("teacher_id = ? AND student_id = ?", teacherID, studentID).
		Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}
