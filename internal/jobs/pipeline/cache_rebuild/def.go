package cache_rebuild

import (
	"github.com/yungbote/tutorloop-backend/internal/domain/jobs"
	"github.com/yungbote/tutorloop-backend/internal/platform/logger"
	"github.com/yungbote/tutorloop-backend/internal/services"
)

type Pipeline struct {
	log    *logger.Logger
	engine services.SchedulingEngine
}

func New(baseLog *logger.Logger, engine services.SchedulingEngine) *Pipeline {
	return &Pipeline{
		log:    baseLog.With("job", "cache_rebuild"),
		engine: engine,
	}
}

func (p *Pipeline) Type() jobs.JobType { return jobs.JobRebuildCache }
