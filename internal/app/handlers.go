package app

import (
	"gorm.io/gorm"

	httpH "github.com/yungbote/tutorloop-backend/internal/http/handlers"
	"github.com/yungbote/tutorloop-backend/internal/platform/logger"
	"github.com/yungbote/tutorloop-backend/internal/realtime"
)

type Handlers struct {
	Health   *httpH.HealthHandler
	Session  *httpH.SessionHandler
	Job      *httpH.JobHandler
	Realtime *httpH.RealtimeHandler
}

func wireHandlers(db *gorm.DB, log *logger.Logger, services Services, hub *realtime.Hub) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health:   httpH.NewHealthHandler(db),
		Session:  httpH.NewSessionHandler(services.Sessions),
		Job:      httpH.NewJobHandler(services.Jobs),
		Realtime: httpH.NewRealtimeHandler(log, hub),
	}
}
