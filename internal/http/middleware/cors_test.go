package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func preflight(t *testing.T, h gin.HandlerFunc, origin string) *httptest.ResponseRecorder {
	t.Helper()
	r := gin.New()
	r.Use(h)
	r.POST("/api/sessions", func(c *gin.Context) { c.Status(http.StatusCreated) })

	req := httptest.NewRequest(http.MethodOptions, "/api/sessions", nil)
	req.Header.Set("Origin", origin)
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestCORSConfiguredOrigins(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := CORS([]string{" https://dash.example.com/ "})

	rec := preflight(t, h, "https://dash.example.com")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("unexpected status: got=%d want=%d", rec.Code, http.StatusNoContent)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://dash.example.com" {
		t.Fatalf("unexpected allow-origin header: got=%q", got)
	}

	rec = preflight(t, h, "https://evil.example.com")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("foreign origin: got=%d want=%d", rec.Code, http.StatusForbidden)
	}
}

func TestCORSDefaultsToDevOrigins(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := CORS(nil)
	for _, origin := range DevOrigins {
		rec := preflight(t, h, origin)
		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != origin {
			t.Fatalf("%s: unexpected allow-origin header: got=%q", origin, got)
		}
	}
}

func TestCORSWildcard(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec := preflight(t, CORS([]string{"*"}), "https://anywhere.example.org")
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("unexpected allow-origin header: got=%q", got)
	}
}
