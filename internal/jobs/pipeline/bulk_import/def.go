package bulk_import

import (
	"github.com/yungbote/tutorloop-backend/internal/domain/jobs"
	"github.com/yungbote/tutorloop-backend/internal/platform/logger"
	"github.com/yungbote/tutorloop-backend/internal/services"
)

// Pipeline enrolls many students into decks in one job. Parsing of source
// files happens before enqueue; the payload is already structured.
type Pipeline struct {
	log    *logger.Logger
	engine services.SchedulingEngine
	auth   services.Authorizer
}

func New(baseLog *logger.Logger, engine services.SchedulingEngine, auth services.Authorizer) *Pipeline {
	return &Pipeline{
		log:    baseLog.With("job", "bulk_import"),
		engine: engine,
		auth:   auth,
	}
}

func (p *Pipeline) Type() jobs.JobType { return jobs.JobBulkImport }
