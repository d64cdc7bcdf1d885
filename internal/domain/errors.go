package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// AuthorizationError is returned when a teacher acts on a student or session
// they are not related to.
type AuthorizationError struct {
	TeacherID uuid.UUID
	StudentID uuid.UUID
	Reason    string
}

func (e *AuthorizationError) Error() string {
	if e.Reason != "" {
		return "not authorized: " + e.Reason
	}
	return fmt.Sprintf("teacher %s is not authorized for student %s", e.TeacherID, e.StudentID)
}

type SessionNotActiveError struct {
	SessionID uuid.UUID
	Status    string
}

func (e *SessionNotActiveError) Error() string {
	return fmt.Sprintf("session %s is not active (status=%s)", e.SessionID, e.Status)
}

type EmptyUnitError struct {
	UnitID uuid.UUID
}

func (e *EmptyUnitError) Error() string {
	return fmt.Sprintf("unit %s has no exercises", e.UnitID)
}

type UnsupportedExerciseTypeError struct {
	Type string
}

func (e *UnsupportedExerciseTypeError) Error() string {
	return "unsupported exercise type: " + e.Type
}

// UnknownCardError means the student has no scheduling state for the card.
type UnknownCardError struct {
	StudentID uuid.UUID
	CardID    uuid.UUID
}

func (e *UnknownCardError) Error() string {
	return fmt.Sprintf("card %s is not enrolled for student %s", e.CardID, e.StudentID)
}

type InvalidPayloadError struct {
	JobType string
	Err     error
}

func (e *InvalidPayloadError) Error() string {
	if e.Err == nil {
		return "invalid payload for " + e.JobType
	}
	return fmt.Sprintf("invalid payload for %s: %v", e.JobType, e.Err)
}

func (e *InvalidPayloadError) Unwrap() error { return e.Err }

type InvalidActionError struct {
	Action string
	Stage  string
	Reason string
}

func (e *InvalidActionError) Error() string {
	msg := fmt.Sprintf("action %q is not valid in stage %q", e.Action, e.Stage)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

type InvalidRatingError struct {
	Rating int
}

func (e *InvalidRatingError) Error() string {
	return fmt.Sprintf("invalid rating %d (want 1..4)", e.Rating)
}

type NotFoundError struct {
	Entity string
	ID     uuid.UUID
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// ProgressTypeMismatchError means stored progress belongs to a different
// exercise type than the item it is attached to.
type ProgressTypeMismatchError struct {
	Want string
	Got  string
}

func (e *ProgressTypeMismatchError) Error() string {
	return fmt.Sprintf("progress type %q does not match exercise type %q", e.Got, e.Want)
}
