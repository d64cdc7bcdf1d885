package exercise

import (
	"fmt"

	types "github.com/yungbote/tutorloop-backend/internal/domain"
	"github.com/yungbote/tutorloop-backend/internal/domain/learning"
)

// Dispatcher maps every exercise type to exactly one handler.
type Dispatcher struct {
	handlers map[types.ExerciseType]Handler
}

// NewDispatcher fails unless handlers cover every exercise type exactly once.
func NewDispatcher(handlers ...Handler) (*Dispatcher, error) {
	d := &Dispatcher{handlers: make(map[types.ExerciseType]Handler, len(handlers))}
	for _, h := range handlers {
		if h == nil {
			return nil, fmt.Errorf("exercise dispatcher: nil handler")
		}
		t := h.Type()
		if !t.Valid() {
			return nil, fmt.Errorf("exercise dispatcher: handler for unknown type %q", t)
		}
		if _, dup := d.handlers[t]; dup {
			return nil, fmt.Errorf("exercise dispatcher: duplicate handler for %s", t)
		}
		d.handlers[t] = h
	}
	var missing []types.ExerciseType
	for _, t := range learning.AllExerciseTypes {
		if _, ok := d.handlers[t]; !ok {
			missing = append(missing, t)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("exercise dispatcher: no handler for %v", missing)
	}
	return d, nil
}

func (d *Dispatcher) GetHandler(t types.ExerciseType) (Handler, error) {
	h, ok := d.handlers[t]
	if !ok {
		return nil, &types.UnsupportedExerciseTypeError{Type: string(t)}
	}
	return h, nil
}
