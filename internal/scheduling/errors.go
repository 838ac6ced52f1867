package scheduling

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spec-kit/techdesk/internal/domain"
	apperrors "github.com/spec-kit/techdesk/pkg/util/errorutil"
)

var (
	// ErrCancelled is returned when the operator backs out of a workflow.
	ErrCancelled = errors.New("cancelled by operator")
	// ErrTicketImmutable is returned when an edit tries to move an appointment to another ticket.
	ErrTicketImmutable = errors.New("the ticket of an existing appointment cannot be changed")
	// ErrAppointmentImmutable is returned when an edit targets a terminal appointment.
	ErrAppointmentImmutable = errors.New("appointment is in a terminal status and cannot be edited")
	// ErrNoActiveTechnicians is returned when nobody can be booked.
	ErrNoActiveTechnicians = errors.New("no active technicians available")
)

// ViolationCode identifies a failed business rule.
type ViolationCode string

const (
	ViolationDurationTooShort    ViolationCode = "DURATION_TOO_SHORT"
	ViolationDurationTooLong     ViolationCode = "DURATION_TOO_LONG"
	ViolationStartNotInFuture    ViolationCode = "START_NOT_IN_FUTURE"
	ViolationTicketNotOpen       ViolationCode = "TICKET_NOT_OPEN"
	ViolationTicketNotFound      ViolationCode = "TICKET_NOT_FOUND"
	ViolationTechnicianNotActive ViolationCode = "TECHNICIAN_NOT_ACTIVE"
	ViolationTechnicianNotFound  ViolationCode = "TECHNICIAN_NOT_FOUND"
)

// RuleViolation is one failed check.
type RuleViolation struct {
	Code    ViolationCode
	Field   string
	Message string
}

func (v RuleViolation) String() string {
	return fmt.Sprintf("%s: %s", v.Code, v.Message)
}

// ViolationError carries every rule a candidate failed.
type ViolationError struct {
	Violations []RuleViolation
}

func (e *ViolationError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, v.String())
	}
	return "appointment rejected: " + strings.Join(parts, "; ")
}

// Has reports whether the error contains the given code.
func (e *ViolationError) Has(code ViolationCode) bool {
	for _, v := range e.Violations {
		if v.Code == code {
			return true
		}
	}
	return false
}

// HasViolation reports whether err is a ViolationError containing code.
func HasViolation(err error, code ViolationCode) bool {
	var ve *ViolationError
	return errors.As(err, &ve) && ve.Has(code)
}

// ConflictError reports an overlapping booking for the technician.
type ConflictError struct {
	TechnicianID string
	Window       domain.TimeRange
	Conflicting  *domain.Appointment
}

func (e *ConflictError) Error() string {
	if e.Conflicting != nil {
		return fmt.Sprintf("technician %s is already booked during %s by appointment %s (%s, %s)",
			e.TechnicianID, e.Window, e.Conflicting.ID, e.Conflicting.Window(), e.Conflicting.Status)
	}
	return fmt.Sprintf("technician %s is already booked during %s", e.TechnicianID, e.Window)
}

// AvailabilityUnknownError means the availability oracle could not answer.
type AvailabilityUnknownError struct {
	TechnicianID string
	Window       domain.TimeRange
	Err          error
}

func (e *AvailabilityUnknownError) Error() string {
	return fmt.Sprintf("availability of technician %s during %s could not be verified: %v", e.TechnicianID, e.Window, e.Err)
}

func (e *AvailabilityUnknownError) Unwrap() error {
	return e.Err
}

// TransitionSource says which side rejected a status change.
type TransitionSource string

const (
	SourceLocal   TransitionSource = "local"
	SourceBackend TransitionSource = "backend"
)

// InvalidTransitionError reports a rejected status change.
type InvalidTransitionError struct {
	AppointmentID string
	From          domain.AppointmentStatus
	Action        domain.AppointmentAction
	Source        TransitionSource
	Reason        string
	Err           error
}

func (e *InvalidTransitionError) Error() string {
	msg := fmt.Sprintf("cannot %s appointment %s from %s (%s check): %s", e.Action, e.AppointmentID, e.From, e.Source, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *InvalidTransitionError) Unwrap() error {
	return e.Err
}

// SubmissionError reports a backend rejection of a create call.
type SubmissionError struct {
	Category apperrors.Category
	Err      error
	Report   *DiagnosticReport
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("backend rejected the appointment (%s): %v", e.Category, e.Err)
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

// Hint returns the remediation advice for the rejection category.
func (e *SubmissionError) Hint() string {
	return e.Category.Hint()
}
