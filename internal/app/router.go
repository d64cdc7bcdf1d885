package app

import (
	httpx "github.com/yungbote/tutorloop-backend/internal/http"
	"github.com/yungbote/tutorloop-backend/internal/platform/logger"
)

func wireServer(log *logger.Logger, cfg Config, handlers Handlers, middleware Middleware) *httpx.Server {
	return httpx.NewServer(httpx.RouterConfig{
		Log:             log,
		ServiceName:     cfg.Otel.ServiceName,
		CORSOrigins:     cfg.HTTP.CORSOrigins,
		AuthMiddleware:  middleware.Auth,
		SessionHandler:  handlers.Session,
		JobHandler:      handlers.Job,
		RealtimeHandler: handlers.Realtime,
		HealthHandler:   handlers.Health,
	})
}
