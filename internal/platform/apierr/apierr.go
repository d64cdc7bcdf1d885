package apierr

import (
	"errors"
	"fmt"
	"net/http"

	types "github.com/yungbote/tutorloop-backend/internal/domain"
	"github.com/yungbote/tutorloop-backend/internal/domain/learning"
)

type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

// From maps err onto an HTTP status and code. Unrecognized errors are 500s
// whose message is not exposed.
func From(err error) *Error {
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	var (
		authErr        *types.AuthorizationError
		notFound       *types.NotFoundError
		notActive      *types.SessionNotActiveError
		emptyUnit      *types.EmptyUnitError
		unsupported    *types.UnsupportedExerciseTypeError
		unknownCard    *types.UnknownCardError
		invalidAction  *types.InvalidActionError
		invalidRating  *types.InvalidRatingError
		invalidPayload *types.InvalidPayloadError
		mismatch       *types.ProgressTypeMismatchError
	)
	switch {
	case errors.As(err, &authErr):
		return New(http.StatusForbidden, "forbidden", err)
	case errors.As(err, &notFound):
		return New(http.StatusNotFound, "not_found", err)
	case errors.As(err, &notActive):
		return New(http.StatusConflict, "session_not_active", err)
	case errors.As(err, &emptyUnit):
		return New(http.StatusUnprocessableEntity, "empty_unit", err)
	case errors.As(err, &unsupported):
		return New(http.StatusUnprocessableEntity, "unsupported_exercise_type", err)
	case errors.As(err, &unknownCard):
		return New(http.StatusUnprocessableEntity, "unknown_card", err)
	case errors.As(err, &invalidAction):
		return New(http.StatusUnprocessableEntity, "invalid_action", err)
	case errors.As(err, &invalidRating):
		return New(http.StatusUnprocessableEntity, "invalid_rating", err)
	case errors.As(err, &invalidPayload):
		return New(http.StatusUnprocessableEntity, "invalid_payload", err)
	case errors.Is(err, learning.ErrInvalidExercisePayload):
		return New(http.StatusUnprocessableEntity, "invalid_exercise", err)
	case errors.As(err, &mismatch):
		return New(http.StatusInternalServerError, "corrupt_progress", errors.New("internal error"))
	default:
		return New(http.StatusInternalServerError, "internal", errors.New("internal error"))
	}
}
