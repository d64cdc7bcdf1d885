package services

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/yungbote/tutorloop-backend/internal/data/repos"
	types "github.com/yungbote/tutorloop-backend/internal/domain"
	"github.com/yungbote/tutorloop-backend/internal/platform/dbctx"
	"github.com/yungbote/tutorloop-backend/internal/platform/logger"
)

// Authorizer checks that a teacher may act on a student.
type Authorizer interface {
	Authorize(dbc dbctx.Context, teacherID, studentID uuid.UUID) error
}

type relationshipAuthorizer struct {
	log  *logger.Logger
	repo repos.TeacherStudentRepo
}

func NewAuthorizer(baseLog *logger.Logger, repo repos.TeacherStudentRepo) Authorizer {
	return &relationshipAuthorizer{log: baseLog.With("service", "Authorizer"), repo: repo}
}

func (a *relationshipAuthorizer) Authorize(dbc dbctx.Context, teacherID, studentID uuid.UUID) error {
	if teacherID == uuid.Nil || studentID == uuid.Nil {
		return &types.AuthorizationError{TeacherID: teacherID, StudentID: studentID, Reason: "missing teacher or student"}
	}
	ok, err := a.repo.Exists(dbc, teacherID, studentID)
	if err != nil {
		return fmt.Errorf("check teacher/student relationship: %w", err)
	}
	if !ok {
		a.log.Warn("authorization denied", "teacher_id", teacherID, "student_id", studentID)
		return &types.AuthorizationError{TeacherID: teacherID, StudentID: studentID}
	}
	return nil
}
