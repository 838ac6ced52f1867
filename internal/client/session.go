package client

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/spec-kit/techdesk/internal/api/dto"
	apperrors "github.com/spec-kit/techdesk/pkg/util/errorutil"
)

// refreshMargin is how long before expiry a token is replaced.
const refreshMargin = 30 * time.Second

type session struct {
	client   *Client
	email    string
	password string
	now      func() time.Time

	mu        sync.Mutex
	value     string
	expiresAt time.Time
}

func newSession(c *Client, email, password string, now func() time.Time) *session {
	return &session{client: c, email: email, password: password, now: now}
}

// token returns a bearer token, logging in when none is held or the held one
// is about to expire.
func (s *session) token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.value != "" && s.now().Add(refreshMargin).Before(s.expiresAt) {
		return s.value, nil
	}

	var resp dto.Envelope[dto.LoginResponse]
	err := s.client.do(ctx, request{
		op:     "login",
		method: fiber.MethodPost,
		path:   "/auth/login",
		body:   dto.LoginRequest{Email: s.email, Password: s.password},
		anon:   true,
	}, &resp)
	if err != nil {
		return "", err
	}
	if resp.Data.AccessToken == "" {
		return "", apperrors.NewUnauthorized("login returned no token")
	}
	s.value = resp.Data.AccessToken
	s.expiresAt = tokenExpiry(resp.Data.AccessToken, s.now())
	return s.value, nil
}

func (s *session) invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value = ""
	s.expiresAt = time.Time{}
}

// tokenExpiry reads the exp claim without verifying the signature; the client
// only needs to know when to log in again.
func tokenExpiry(raw string, now time.Time) time.Time {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil || claims.ExpiresAt == nil {
		return now.Add(refreshMargin * 2)
	}
	return claims.ExpiresAt.Time
}
