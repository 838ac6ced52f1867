package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/techdesk/internal/domain"
	"github.com/spec-kit/techdesk/internal/events"
	"github.com/spec-kit/techdesk/internal/repository"
	apperrors "github.com/spec-kit/techdesk/pkg/util/errorutil"
)

// TicketService exposes ticket reads and status edits to the API layer.
type TicketService struct {
	tickets    repository.TicketRepository
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewTicketService constructs a ticket service.
func NewTicketService(tickets repository.TicketRepository, dispatcher events.Dispatcher, logger *zap.Logger) *TicketService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TicketService{tickets: tickets, dispatcher: dispatcher, logger: logger}
}

// Get returns a ticket by id.
func (s *TicketService) Get(ctx context.Context, id string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "ticket", id)
	}
	return ticket, nil
}

// List returns tickets, optionally restricted to the given statuses.
func (s *TicketService) List(ctx context.Context, statuses []domain.TicketStatus, limit, offset int) ([]domain.Ticket, error) {
	for _, status := range statuses {
		if !status.Valid() {
			return nil, apperrors.NewValidationError("invalid ticket status", map[string]any{"status": status})
		}
	}
	return s.tickets.List(ctx, repository.TicketFilter{Statuses: statuses, Limit: limit, Offset: offset})
}

// UpdateStatus changes a ticket's status. Tickets are owned by the helpdesk,
// so no transition graph is enforced here.
func (s *TicketService) UpdateStatus(ctx context.Context, id string, status domain.TicketStatus) (*domain.Ticket, error) {
	status = domain.TicketStatus(strings.ToUpper(strings.TrimSpace(string(status))))
	if !status.Valid() {
		return nil, apperrors.NewValidationError("invalid ticket status", map[string]any{"status": status})
	}
	ticket, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	previous := ticket.Status
	if previous == status {
		return ticket, nil
	}
	ticket.Status = status
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, err
	}
	s.publishEvent(ctx, events.Event{
		Type: events.EventTicketStatusChanged,
		Payload: events.StatusChangedPayload{
			EntityID:  ticket.ID,
			OldStatus: string(previous),
			NewStatus: string(status),
		},
	})
	return ticket, nil
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	stamped := events.New(event.Type, event.AppointmentID, event.Payload)
	if err := s.dispatcher.Publish(ctx, stamped); err != nil {
		s.logger.Warn("event handler failed", zap.String("event_type", string(event.Type)), zap.Error(err))
	}
}
