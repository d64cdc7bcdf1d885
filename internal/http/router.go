package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/tutorloop-backend/internal/http/handlers"
	httpMW "github.com/yungbote/tutorloop-backend/internal/http/middleware"
	"github.com/yungbote/tutorloop-backend/internal/observability"
	"github.com/yungbote/tutorloop-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	ServiceName    string
	CORSOrigins    []string
	AuthMiddleware *httpMW.AuthMiddleware

	SessionHandler  *httpH.SessionHandler
	JobHandler      *httpH.JobHandler
	RealtimeHandler *httpH.RealtimeHandler
	HealthHandler   *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(observability.Current()))
	r.Use(httpMW.CORS(cfg.CORSOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
		r.GET("/metrics", cfg.HealthHandler.Metrics)
	}

	api := r.Group("/api")
	if cfg.AuthMiddleware != nil {
		api.Use(cfg.AuthMiddleware.RequireAuth())
	}
	{
		// Sessions
		if cfg.SessionHandler != nil {
			api.POST("/sessions", cfg.SessionHandler.StartSession)
			api.GET("/sessions/:id", cfg.SessionHandler.GetSession)
			api.POST("/sessions/:id/answer", cfg.SessionHandler.SubmitAnswer)
			api.POST("/sessions/:id/end", cfg.SessionHandler.EndSession)
		}

		// Jobs
		if cfg.JobHandler != nil {
			api.POST("/jobs", cfg.JobHandler.EnqueueJob)
			api.GET("/jobs/:id", cfg.JobHandler.GetJob)
		}

		// Realtime (SSE)
		if cfg.RealtimeHandler != nil {
			api.GET("/events", cfg.RealtimeHandler.Stream)
		}
	}

	return r
}
