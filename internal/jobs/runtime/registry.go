package runtime

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	types "github.com/yungbote/tutorloop-backend/internal/domain"
	jobtypes "github.com/yungbote/tutorloop-backend/internal/domain/jobs"
)

type Handler interface {
	Type() types.JobType
	Run(ctx *Context) error
}

type Registry struct {
	mu       sync.RWMutex
	handlers map[types.JobType]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[types.JobType]Handler)}
}

func (r *Registry) Register(h Handler) error {
	if h == nil {
		return fmt.Errorf("nil handler")
	}
	t := h.Type()
	if !t.Valid() {
		return fmt.Errorf("handler has unknown job_type %q", t)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[t]; exists {
		return fmt.Errorf("handler already registered for job_type=%s", t)
	}
	r.handlers[t] = h
	return nil
}

func (r *Registry) Get(jobType types.JobType) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[jobType]
	return h, ok
}

// Verify fails unless every job type has a handler.
func (r *Registry) Verify() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var missing []string
	for _, t := range jobtypes.AllJobTypes {
		if _, ok := r.handlers[t]; !ok {
			missing = append(missing, string(t))
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("no handler registered for job types: %s", strings.Join(missing, ", "))
	}
	return nil
}
