package apierr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	types "github.com/yungbote/tutorloop-backend/internal/domain"
	"github.com/yungbote/tutorloop-backend/internal/domain/learning"
)

func TestFromMapsDomainErrors(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{&types.AuthorizationError{}, http.StatusForbidden, "forbidden"},
		{&types.NotFoundError{Entity: "session", ID: uuid.New()}, http.StatusNotFound, "not_found"},
		{&types.SessionNotActiveError{}, http.StatusConflict, "session_not_active"},
		{&types.EmptyUnitError{}, http.StatusUnprocessableEntity, "empty_unit"},
		{&types.UnsupportedExerciseTypeError{Type: "X"}, http.StatusUnprocessableEntity, "unsupported_exercise_type"},
		{&types.UnknownCardError{}, http.StatusUnprocessableEntity, "unknown_card"},
		{&types.InvalidActionError{}, http.StatusUnprocessableEntity, "invalid_action"},
		{&types.InvalidRatingError{Rating: 9}, http.StatusUnprocessableEntity, "invalid_rating"},
		{&types.InvalidPayloadError{JobType: "REBUILD_CACHE"}, http.StatusUnprocessableEntity, "invalid_payload"},
		{fmt.Errorf("start session: %w", fmt.Errorf("%w: item has no deck", learning.ErrInvalidExercisePayload)), http.StatusUnprocessableEntity, "invalid_exercise"},
		{fmt.Errorf("wrapped: %w", &types.SessionNotActiveError{}), http.StatusConflict, "session_not_active"},
		{errors.New("db down"), http.StatusInternalServerError, "internal"},
	}
	for _, tc := range cases {
		got := From(tc.err)
		assert.Equal(t, tc.status, got.Status, "%v", tc.err)
		assert.Equal(t, tc.code, got.Code, "%v", tc.err)
	}
}

func TestFromHidesInternalMessages(t *testing.T) {
	got := From(errors.New("pq: password authentication failed"))
	assert.Equal(t, "internal error", got.Error())
}

func TestFromKeepsExplicitAPIErrors(t *testing.T) {
	in := New(http.StatusBadRequest, "invalid_session_id", errors.New("bad id"))
	assert.Same(t, in, From(fmt.Errorf("handler: %w", in)))
}
