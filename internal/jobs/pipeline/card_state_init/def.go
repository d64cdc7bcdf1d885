package card_state_init

import (
	"github.com/yungbote/tutorloop-backend/internal/domain/jobs"
	"github.com/yungbote/tutorloop-backend/internal/platform/logger"
	"github.com/yungbote/tutorloop-backend/internal/services"
)

type Pipeline struct {
	log    *logger.Logger
	engine services.SchedulingEngine
	auth   services.Authorizer
}

func New(baseLog *logger.Logger, engine services.SchedulingEngine, auth services.Authorizer) *Pipeline {
	return &Pipeline{
		log:    baseLog.With("job", "card_state_init"),
		engine: engine,
		auth:   auth,
	}
}

func (p *Pipeline) Type() jobs.JobType { return jobs.JobInitCardStates }
