package domain

import "time"

// SubjectType differentiates the kinds of token holders.
type SubjectType string

const (
	SubjectTypeOperator SubjectType = "OPERATOR"
)

// Operator is a console user allowed to act on the schedule.
type Operator struct {
	ID           string
	Email        string
	PasswordHash string
}

// Token represents issued authentication token metadata.
type Token struct {
	Value     string
	SubjectID string
	Subject   SubjectType
	ExpiresAt time.Time
}
