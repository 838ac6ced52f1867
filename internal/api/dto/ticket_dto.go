package dto

import (
	"fmt"

	"github.com/spec-kit/techdesk/internal/domain"
)

// Envelope wraps successful responses.
type Envelope[T any] struct {
	Data T `json:"data"`
}

// ErrorBody describes a rejected request.
type ErrorBody struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// ErrorEnvelope wraps error responses.
type ErrorEnvelope struct {
	Error ErrorBody `json:"error"`
}

// TicketResponse is the wire form of a ticket.
type TicketResponse struct {
	ID        string                `json:"id"`
	ClientID  string                `json:"client_id"`
	Title     string                `json:"title"`
	Status    domain.TicketStatus   `json:"status"`
	Priority  domain.TicketPriority `json:"priority"`
	CreatedAt string                `json:"created_at"`
	UpdatedAt string                `json:"updated_at"`
}

// UpdateTicketRequest payload.
type UpdateTicketRequest struct {
	Status *domain.TicketStatus `json:"status"`
}

// TicketFromDomain renders a ticket for the wire.
func TicketFromDomain(t *domain.Ticket) TicketResponse {
	return TicketResponse{
		ID:        t.ID,
		ClientID:  t.ClientID,
		Title:     t.Title,
		Status:    t.Status,
		Priority:  t.Priority,
		CreatedAt: formatOptional(t.CreatedAt),
		UpdatedAt: formatOptional(t.UpdatedAt),
	}
}

// ToDomain parses the wire form.
func (r TicketResponse) ToDomain() (*domain.Ticket, error) {
	created, err := parseOptional(r.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("ticket %s created_at: %w", r.ID, err)
	}
	updated, err := parseOptional(r.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("ticket %s updated_at: %w", r.ID, err)
	}
	return &domain.Ticket{
		ID:        r.ID,
		ClientID:  r.ClientID,
		Title:     r.Title,
		Status:    r.Status,
		Priority:  r.Priority,
		CreatedAt: created,
		UpdatedAt: updated,
	}, nil
}
