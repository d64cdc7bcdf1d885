package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/tutorloop-backend/internal/http/response"
	"github.com/yungbote/tutorloop-backend/internal/platform/ctxutil"
	"github.com/yungbote/tutorloop-backend/internal/platform/logger"
	"github.com/yungbote/tutorloop-backend/internal/services"
)

type AuthMiddleware struct {
	log    *logger.Logger
	tokens services.TokenService
}

func NewAuthMiddleware(log *logger.Logger, tokens services.TokenService) *AuthMiddleware {
	return &AuthMiddleware{log: log.With("middleware", "AuthMiddleware"), tokens: tokens}
}

// RequireAuth admits requests carrying a valid teacher token and puts the
// teacher id on the request context.
func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := extractTokenFromAll(c)
		if tokenString == "" {
			abort(c, http.StatusUnauthorized, "unauthorized", errMissingToken)
			return
		}
		ctx, err := am.tokens.SetContextFromToken(c.Request.Context(), tokenString)
		if err != nil {
			am.log.WithTrace(c.Request.Context()).Debug("rejected token", "error", err)
			abort(c, http.StatusUnauthorized, "unauthorized", errInvalidToken)
			return
		}
		if rd := ctxutil.GetRequestData(ctx); rd == nil || rd.TeacherID == uuid.Nil {
			abort(c, http.StatusForbidden, "forbidden", errNoTeacher)
			return
		}
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

var (
	errMissingToken = errors.New("missing bearer token")
	errInvalidToken = errors.New("invalid or expired token")
	errNoTeacher    = errors.New("token has no teacher")
)

func abort(c *gin.Context, status int, code string, err error) {
	response.RespondError(c, status, code, err)
	c.Abort()
}

// extractTokenFromAll reads the bearer header, falling back to ?token= for
// EventSource clients that cannot set headers.
func extractTokenFromAll(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		return strings.TrimSpace(authHeader[7:])
	}
	return strings.TrimSpace(c.Query("token"))
}
