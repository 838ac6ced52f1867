package errorutil

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Category groups failures by what the operator can do about them.
type Category string

const (
	CategoryBadInput      Category = "bad_input"
	CategoryNotFound      Category = "not_found"
	CategoryStateConflict Category = "state_conflict"
	CategoryServerFault   Category = "server_fault"
	CategoryTransport     Category = "transport_failure"
	CategoryUnauthorized  Category = "unauthorized"
)

var categoryHints = map[Category]string{
	CategoryBadInput:      "adjust the request and retry with a different slot",
	CategoryNotFound:      "re-fetch the ticket, technician and schedule before retrying",
	CategoryStateConflict: "another change won the race; run diagnostics to see which precondition moved",
	CategoryServerFault:   "the backend failed internally; contact an administrator",
	CategoryTransport:     "the backend could not be reached; check connectivity and retry",
	CategoryUnauthorized:  "the session is not valid; log in again",
}

// Hint returns the remediation advice for the category.
func (c Category) Hint() string {
	if hint, ok := categoryHints[c]; ok {
		return hint
	}
	return categoryHints[CategoryServerFault]
}

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Category   Category
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// Hint returns the remediation advice for the error's category.
func (e *DomainError) Hint() string {
	return e.Category.Hint()
}

// NewDomainError constructs a DomainError, deriving its category from the status.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Category: CategoryForStatus(status), Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError("VALIDATION_FAILED", message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return NewDomainError("NOT_FOUND", fmt.Sprintf("%s not found", resource), http.StatusNotFound, details)
}

func NewUnauthorized(message string) error {
	return NewDomainError("UNAUTHORIZED", message, http.StatusUnauthorized, nil)
}

func NewConflict(message string, details map[string]any) error {
	return NewDomainError("CONFLICT", message, http.StatusConflict, details)
}

func NewInternalError(err error) error {
	de := NewDomainError("INTERNAL_ERROR", "internal server error", http.StatusInternalServerError, nil)
	de.Err = err
	return de
}

// NewTransportError marks a failure to reach the backend at all.
func NewTransportError(op string, err error) error {
	return &DomainError{
		Code:     "TRANSPORT_FAILURE",
		Message:  fmt.Sprintf("%s: backend unreachable", op),
		Category: CategoryTransport,
		Err:      err,
	}
}

// CategoryForStatus maps an HTTP status to a rejection category.
func CategoryForStatus(status int) Category {
	switch {
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return CategoryBadInput
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return CategoryUnauthorized
	case status == http.StatusNotFound:
		return CategoryNotFound
	case status == http.StatusConflict || status == http.StatusPreconditionFailed:
		return CategoryStateConflict
	case status >= 500:
		return CategoryServerFault
	case status >= 400:
		return CategoryBadInput
	}
	return CategoryServerFault
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return NewNotFound("resource", nil).(*DomainError)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "22P02":
			return NewNotFound("resource", nil).(*DomainError)
		case "23505", "23503", "23P01":
			return NewConflict("conflicting write", map[string]any{"constraint": pgErr.ConstraintName}).(*DomainError)
		}
	}
	return NewInternalError(err).(*DomainError)
}

// CategoryOf reports the category of err, or "" when err carries none.
func CategoryOf(err error) Category {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Category
	}
	return ""
}

// IsNotFound reports whether err is a not-found rejection.
func IsNotFound(err error) bool {
	return CategoryOf(err) == CategoryNotFound
}

// IsTransport reports whether err is a failure to reach the backend.
func IsTransport(err error) bool {
	return CategoryOf(err) == CategoryTransport
}

// IsUnavailable reports whether err means the backend could not answer,
// as opposed to answering with a rejection.
func IsUnavailable(err error) bool {
	switch CategoryOf(err) {
	case CategoryTransport, CategoryServerFault:
		return true
	}
	return false
}
