package services

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/yungbote/tutorloop-backend/internal/platform/ctxutil"
	"github.com/yungbote/tutorloop-backend/internal/platform/logger"
)

// TokenService issues and verifies the bearer tokens teachers call the API
// with. The subject is the teacher id.
type TokenService interface {
	IssueToken(teacherID uuid.UUID) (string, error)
	SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error)
}

type tokenService struct {
	log       *logger.Logger
	secret    []byte
	accessTTL time.Duration
}

func NewTokenService(baseLog *logger.Logger, secret string, accessTTL time.Duration) (TokenService, error) {
	if secret == "" {
		return nil, fmt.Errorf("missing jwt secret")
	}
	if accessTTL <= 0 {
		accessTTL = time.Hour
	}
	return &tokenService{
		log:       baseLog.With("service", "TokenService"),
		secret:    []byte(secret),
		accessTTL: accessTTL,
	}, nil
}

func (ts *tokenService) IssueToken(teacherID uuid.UUID) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   teacherID.String(),
		ExpiresAt: jwt.NewNumericDate(now.Add(ts.accessTTL)),
		IssuedAt:  jwt.NewNumericDate(now),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(ts.secret)
}

func (ts *tokenService) SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error) {
	if tokenString == "" {
		return ctx, fmt.Errorf("missing token")
	}
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return ts.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return ctx, fmt.Errorf("failed to parse token: %w", err)
	}
	if !parsed.Valid {
		return ctx, fmt.Errorf("invalid or expired token")
	}
	teacherID, err := uuid.Parse(claims.Subject)
	if err != nil || teacherID == uuid.Nil {
		return ctx, fmt.Errorf("invalid teacher id in token")
	}
	return ctxutil.WithRequestData(ctx, &ctxutil.RequestData{
		TokenString: tokenString,
		TeacherID:   teacherID,
	}), nil
}
