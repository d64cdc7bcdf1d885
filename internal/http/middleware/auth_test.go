package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/tutorloop-backend/internal/platform/ctxutil"
	"github.com/yungbote/tutorloop-backend/internal/platform/logger"
	"github.com/yungbote/tutorloop-backend/internal/services"
)

func newAuthRouter(t *testing.T, tokens services.TokenService) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(NewAuthMiddleware(logger.Nop(), tokens).RequireAuth())
	r.GET("/api/whoami", func(c *gin.Context) {
		c.String(http.StatusOK, ctxutil.GetRequestData(c.Request.Context()).TeacherID.String())
	})
	return r
}

func TestRequireAuth(t *testing.T) {
	tokens, err := services.NewTokenService(logger.Nop(), "test-secret", time.Minute)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	other, err := services.NewTokenService(logger.Nop(), "other-secret", time.Minute)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	teacherID := uuid.New()
	good, err := tokens.IssueToken(teacherID)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	forged, err := other.IssueToken(teacherID)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	r := newAuthRouter(t, tokens)
	cases := []struct {
		name   string
		header string
		query  string
		want   int
	}{
		{"bearer", "Bearer " + good, "", http.StatusOK},
		{"query", "", good, http.StatusOK},
		{"missing", "", "", http.StatusUnauthorized},
		{"wrong secret", "Bearer " + forged, "", http.StatusUnauthorized},
		{"garbage", "Bearer abc.def.ghi", "", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := "/api/whoami"
			if tc.query != "" {
				path += "?token=" + tc.query
			}
			req := httptest.NewRequest(http.MethodGet, path, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			if rec.Code != tc.want {
				t.Fatalf("status: got=%d want=%d body=%s", rec.Code, tc.want, rec.Body.String())
			}
			if tc.want == http.StatusOK && rec.Body.String() != teacherID.String() {
				t.Fatalf("teacher id: got=%q want=%q", rec.Body.String(), teacherID.String())
			}
		})
	}
}
