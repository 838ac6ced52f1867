package auth

import (
	"crypto/subtle"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/techdesk/internal/domain"
)

// ErrInvalidCredentials is returned for any email or password mismatch.
var ErrInvalidCredentials = errors.New("invalid credentials")

// HashPassword hashes a plaintext password with configured cost.
func HashPassword(password string, cost int) (string, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// VerifyOperator checks email and password against the stored operator. The
// password is compared even when the email is wrong so both failures cost the same.
func VerifyOperator(op domain.Operator, email, password string) error {
	emailOK := subtle.ConstantTimeCompare([]byte(strings.ToLower(op.Email)), []byte(strings.ToLower(strings.TrimSpace(email)))) == 1
	passErr := bcrypt.CompareHashAndPassword([]byte(op.PasswordHash), []byte(password))
	if !emailOK || passErr != nil {
		return ErrInvalidCredentials
	}
	return nil
}
