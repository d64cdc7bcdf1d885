package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/tutorloop-backend/internal/observability"
)

// Metrics instruments HTTP request counts and latency when metrics are enabled.
func Metrics(m *observability.Metrics) gin.HandlerFunc {
	if m == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		start := time.Now()
		m.APIInflight(1)
		defer m.APIInflight(-1)

		c.Next()

		m.ObserveAPI(c.Request.Method, routeOf(c), c.Writer.Status(), time.Since(start))
	}
}
