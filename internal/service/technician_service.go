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

// TechnicianService exposes the technician roster.
type TechnicianService struct {
	technicians repository.TechnicianRepository
	dispatcher  events.Dispatcher
	logger      *zap.Logger
}

// NewTechnicianService constructs the service.
func NewTechnicianService(technicians repository.TechnicianRepository, dispatcher events.Dispatcher, logger *zap.Logger) *TechnicianService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TechnicianService{technicians: technicians, dispatcher: dispatcher, logger: logger}
}

// Get returns a technician by id.
func (s *TechnicianService) Get(ctx context.Context, id string) (*domain.Technician, error) {
	tech, err := s.technicians.GetByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "technician", id)
	}
	return tech, nil
}

// List returns technicians ordered by name. A nil status lists everyone.
func (s *TechnicianService) List(ctx context.Context, status *domain.TechnicianStatus) ([]domain.Technician, error) {
	if status != nil && !status.Valid() {
		return nil, apperrors.NewValidationError("invalid technician status", map[string]any{"status": *status})
	}
	return s.technicians.List(ctx, status)
}

// UpdateStatus sets the technician's status. Existing appointments are left as they are.
func (s *TechnicianService) UpdateStatus(ctx context.Context, id string, status domain.TechnicianStatus) (*domain.Technician, error) {
	status = domain.TechnicianStatus(strings.ToUpper(strings.TrimSpace(string(status))))
	if !status.Valid() {
		return nil, apperrors.NewValidationError("invalid technician status", map[string]any{"status": status})
	}
	tech, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	previous := tech.Status
	if previous == status {
		return tech, nil
	}
	tech.Status = status
	if err := s.technicians.Update(ctx, tech); err != nil {
		return nil, err
	}
	if s.dispatcher != nil {
		event := events.New(events.EventTechnicianStatusChanged, "", events.StatusChangedPayload{
			EntityID:  tech.ID,
			OldStatus: string(previous),
			NewStatus: string(status),
		})
		if err := s.dispatcher.Publish(ctx, event); err != nil {
			s.logger.Warn("event handler failed", zap.String("event_type", string(event.Type)), zap.Error(err))
		}
	}
	return tech, nil
}
