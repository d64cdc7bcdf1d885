package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/tutorloop-backend/internal/platform/ctxutil"
	"github.com/yungbote/tutorloop-backend/internal/platform/logger"
)

// RequestLogger writes one line per request once the handler chain is done.
// 5xx logs at error level, 4xx at warn.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if log == nil {
			return
		}

		status := c.Writer.Status()
		fields := []interface{}{
			"method", c.Request.Method,
			"route", routeOf(c),
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
		}
		if rd := ctxutil.GetRequestData(c.Request.Context()); rd != nil {
			fields = append(fields, "teacher_id", rd.TeacherID)
		}
		if errs := c.Errors.ByType(gin.ErrorTypePrivate); len(errs) > 0 {
			fields = append(fields, "error", errs.String())
		}

		reqLog := log.WithTrace(c.Request.Context())
		switch {
		case status >= 500:
			reqLog.Error("HTTP request", fields...)
		case status >= 400:
			reqLog.Warn("HTTP request", fields...)
		default:
			reqLog.Debug("HTTP request", fields...)
		}
	}
}

// routeOf prefers the registered pattern so ids stay out of log lines.
func routeOf(c *gin.Context) string {
	if p := c.FullPath(); p != "" {
		return p
	}
	return "unmatched"
}
