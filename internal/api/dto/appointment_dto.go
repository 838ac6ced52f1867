package dto

import (
	"fmt"
	"time"

	"github.com/spec-kit/techdesk/internal/domain"
)

// CreateAppointmentRequest payload.
type CreateAppointmentRequest struct {
	TicketID           string `json:"ticket_id"`
	TechnicianID       string `json:"technician_id"`
	ScheduledStartTime string `json:"scheduled_start_time"`
	ScheduledEndTime   string `json:"scheduled_end_time"`
	Notes              string `json:"notes,omitempty"`
}

// UpdateAppointmentRequest payload. Only notes may change in place.
type UpdateAppointmentRequest struct {
	Notes *string `json:"notes"`
}

// TransitionRequest carries the optional parameters of a status action.
type TransitionRequest struct {
	Reason string `json:"reason,omitempty"`
	Notes  string `json:"notes,omitempty"`
}

// AppointmentResponse is the wire form of an appointment.
type AppointmentResponse struct {
	ID                 string                   `json:"id"`
	TicketID           string                   `json:"ticket_id"`
	TechnicianID       string                   `json:"technician_id"`
	ScheduledStartTime string                   `json:"scheduled_start_time"`
	ScheduledEndTime   string                   `json:"scheduled_end_time"`
	Status             domain.AppointmentStatus `json:"status"`
	Notes              string                   `json:"notes,omitempty"`
	CancellationReason string                   `json:"cancellation_reason,omitempty"`
	CreatedAt          string                   `json:"created_at"`
	UpdatedAt          string                   `json:"updated_at"`
}

// AppointmentFromDomain renders an appointment for the wire.
func AppointmentFromDomain(a *domain.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:                 a.ID,
		TicketID:           a.TicketID,
		TechnicianID:       a.TechnicianID,
		ScheduledStartTime: domain.FormatLocalTime(a.ScheduledStart),
		ScheduledEndTime:   domain.FormatLocalTime(a.ScheduledEnd),
		Status:             a.Status,
		Notes:              a.Notes,
		CancellationReason: a.CancellationReason,
		CreatedAt:          formatOptional(a.CreatedAt),
		UpdatedAt:          formatOptional(a.UpdatedAt),
	}
}

// ToDomain parses the wire form.
func (r AppointmentResponse) ToDomain() (*domain.Appointment, error) {
	start, err := domain.ParseLocalTime(r.ScheduledStartTime)
	if err != nil {
		return nil, fmt.Errorf("appointment %s start: %w", r.ID, err)
	}
	end, err := domain.ParseLocalTime(r.ScheduledEndTime)
	if err != nil {
		return nil, fmt.Errorf("appointment %s end: %w", r.ID, err)
	}
	status, err := domain.ParseAppointmentStatus(string(r.Status))
	if err != nil {
		return nil, fmt.Errorf("appointment %s: %w", r.ID, err)
	}
	created, err := parseOptional(r.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("appointment %s created_at: %w", r.ID, err)
	}
	updated, err := parseOptional(r.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("appointment %s updated_at: %w", r.ID, err)
	}
	return &domain.Appointment{
		ID:                 r.ID,
		TicketID:           r.TicketID,
		TechnicianID:       r.TechnicianID,
		ScheduledStart:     start,
		ScheduledEnd:       end,
		Status:             status,
		Notes:              r.Notes,
		CancellationReason: r.CancellationReason,
		CreatedAt:          created,
		UpdatedAt:          updated,
	}, nil
}

func formatOptional(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return domain.FormatLocalTime(t)
}

func parseOptional(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	return domain.ParseLocalTime(raw)
}
