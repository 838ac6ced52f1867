package service

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/spec-kit/techdesk/internal/auth"
	"github.com/spec-kit/techdesk/internal/config"
	"github.com/spec-kit/techdesk/internal/domain"
	apperrors "github.com/spec-kit/techdesk/pkg/util/errorutil"
)

// AuthService authenticates the sandbox's single configured operator.
type AuthService struct {
	operator domain.Operator
	tokenMgr *auth.TokenManager
}

// NewAuthService hashes the configured operator password and builds the service.
func NewAuthService(cfg config.AuthConfig) (*AuthService, error) {
	hash, err := auth.HashPassword(cfg.OperatorPassword, cfg.BcryptCost)
	if err != nil {
		return nil, err
	}
	email := strings.ToLower(strings.TrimSpace(cfg.OperatorEmail))
	return &AuthService{
		operator: domain.Operator{
			ID:           uuid.NewSHA1(uuid.NameSpaceURL, []byte("mailto:"+email)).String(),
			Email:        email,
			PasswordHash: hash,
		},
		tokenMgr: auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTLMinutes),
	}, nil
}

// Login exchanges operator credentials for an access token.
func (s *AuthService) Login(_ context.Context, email, password string) (domain.Token, error) {
	if err := auth.VerifyOperator(s.operator, email, password); err != nil {
		return domain.Token{}, apperrors.NewUnauthorized("invalid credentials")
	}
	return s.tokenMgr.GenerateToken(s.operator)
}

// Operator returns the configured operator without its password hash.
func (s *AuthService) Operator() domain.Operator {
	op := s.operator
	op.PasswordHash = ""
	return op
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}
