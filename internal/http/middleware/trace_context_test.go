package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/tutorloop-backend/internal/platform/ctxutil"
)

func TestAttachTraceContext(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var seen *ctxutil.TraceData
	r := gin.New()
	r.Use(AttachTraceContext())
	r.GET("/x", func(c *gin.Context) {
		seen = ctxutil.GetTraceData(c.Request.Context())
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(headerRequestID, "req-42")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if seen == nil {
		t.Fatalf("trace data not attached")
	}
	if seen.RequestID != "req-42" {
		t.Fatalf("request id: got=%q want=%q", seen.RequestID, "req-42")
	}
	if seen.TraceID == "" {
		t.Fatalf("trace id not generated")
	}
	if got := rec.Header().Get(headerTraceID); got != seen.TraceID {
		t.Fatalf("trace header: got=%q want=%q", got, seen.TraceID)
	}
	if got := rec.Header().Get(headerRequestID); got != "req-42" {
		t.Fatalf("request header: got=%q", got)
	}
}
