package app

import (
	"fmt"

	httpMW "github.com/yungbote/tutorloop-backend/internal/http/middleware"
	"github.com/yungbote/tutorloop-backend/internal/platform/logger"
)

type Middleware struct {
	Auth *httpMW.AuthMiddleware
}

func wireMiddleware(log *logger.Logger, services Services) (Middleware, error) {
	log.Info("Wiring middleware...")
	if services.Tokens == nil {
		return Middleware{}, fmt.Errorf("auth middleware: no token service configured")
	}
	return Middleware{
		Auth: httpMW.NewAuthMiddleware(log, services.Tokens),
	}, nil
}
