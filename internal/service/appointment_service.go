package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/techdesk/internal/domain"
	"github.com/spec-kit/techdesk/internal/events"
	"github.com/spec-kit/techdesk/internal/persistence"
	"github.com/spec-kit/techdesk/internal/repository"
	"github.com/spec-kit/techdesk/internal/scheduling"
	apperrors "github.com/spec-kit/techdesk/pkg/util/errorutil"
)

// AppointmentService is the backend's authority on appointments. It applies the
// same rules as the console engine but its answer is final.
type AppointmentService struct {
	tickets      repository.TicketRepository
	technicians  repository.TechnicianRepository
	appointments repository.AppointmentRepository
	locker       persistence.Locker
	dispatcher   events.Dispatcher
	logger       *zap.Logger
	policy       scheduling.Policy
	now          func() time.Time
}

// AppointmentDependencies bundles collaborators for the appointment service.
type AppointmentDependencies struct {
	TicketRepo      repository.TicketRepository
	TechnicianRepo  repository.TechnicianRepository
	AppointmentRepo repository.AppointmentRepository
	Locker          persistence.Locker
	Dispatcher      events.Dispatcher
	Logger          *zap.Logger
	Now             func() time.Time
}

// AppointmentCreateInput describes a booking request.
type AppointmentCreateInput struct {
	TicketID     string
	TechnicianID string
	Start        time.Time
	End          time.Time
	Notes        string
}

// NewAppointmentService constructs the service.
func NewAppointmentService(deps AppointmentDependencies) *AppointmentService {
	svc := &AppointmentService{
		tickets:      deps.TicketRepo,
		technicians:  deps.TechnicianRepo,
		appointments: deps.AppointmentRepo,
		locker:       deps.Locker,
		dispatcher:   deps.Dispatcher,
		logger:       deps.Logger,
		policy:       scheduling.DefaultPolicy(),
		now:          deps.Now,
	}
	if svc.locker == nil {
		svc.locker = persistence.NewLocalLocker()
	}
	if svc.logger == nil {
		svc.logger = zap.NewNop()
	}
	if svc.now == nil {
		svc.now = time.Now
	}
	return svc
}

var occupyingStatuses = []domain.AppointmentStatus{
	domain.AppointmentStatusPending,
	domain.AppointmentStatusConfirmed,
	domain.AppointmentStatusInProgress,
}

// Create books a technician against a ticket.
func (s *AppointmentService) Create(ctx context.Context, input AppointmentCreateInput) (*domain.Appointment, error) {
	window := domain.TimeRange{Start: input.Start, End: input.End}
	if err := s.checkWindow(window); err != nil {
		return nil, err
	}

	ticket, err := s.tickets.GetByID(ctx, input.TicketID)
	if err != nil {
		return nil, lookupError(err, "ticket", input.TicketID)
	}
	if ticket.Status != domain.TicketStatusOpen {
		return nil, apperrors.NewDomainError("TICKET_NOT_OPEN", fmt.Sprintf("ticket is %s", ticket.Status), 409,
			map[string]any{"ticket_id": ticket.ID, "status": ticket.Status})
	}

	tech, err := s.technicians.GetByID(ctx, input.TechnicianID)
	if err != nil {
		return nil, lookupError(err, "technician", input.TechnicianID)
	}
	if tech.Status != domain.TechnicianStatusActive {
		return nil, apperrors.NewDomainError("TECHNICIAN_NOT_ACTIVE", fmt.Sprintf("technician is %s", tech.Status), 409,
			map[string]any{"technician_id": tech.ID, "status": tech.Status})
	}

	release, err := s.locker.Acquire(ctx, "technician:"+tech.ID)
	if err != nil {
		if errors.Is(err, persistence.ErrLockHeld) {
			return nil, apperrors.NewDomainError("BOOKING_IN_PROGRESS", "another booking for this technician is in progress", 409,
				map[string]any{"technician_id": tech.ID})
		}
		return nil, err
	}
	defer release()

	conflicts, err := s.overlapping(ctx, tech.ID, window)
	if err != nil {
		return nil, err
	}
	if len(conflicts) > 0 {
		return nil, apperrors.NewDomainError("SCHEDULE_CONFLICT", "technician is already booked in this window", 409,
			map[string]any{"conflicting_appointment_id": conflicts[0].ID})
	}

	appt := &domain.Appointment{
		TicketID:       ticket.ID,
		TechnicianID:   tech.ID,
		ScheduledStart: input.Start,
		ScheduledEnd:   input.End,
		Status:         domain.AppointmentStatusPending,
		Notes:          strings.TrimSpace(input.Notes),
	}
	if err := s.appointments.Create(ctx, appt); err != nil {
		return nil, err
	}
	s.publish(ctx, events.New(events.EventAppointmentCreated, appt.ID, events.AppointmentCreatedPayload{
		TicketID:     appt.TicketID,
		TechnicianID: appt.TechnicianID,
		Start:        appt.ScheduledStart,
		End:          appt.ScheduledEnd,
	}))
	return appt, nil
}

// Get returns one appointment.
func (s *AppointmentService) Get(ctx context.Context, id string) (*domain.Appointment, error) {
	appt, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "appointment", id)
	}
	return appt, nil
}

// List returns every appointment ordered by start.
func (s *AppointmentService) List(ctx context.Context) ([]domain.Appointment, error) {
	return s.appointments.List(ctx, repository.AppointmentFilter{})
}

// ListUpcoming returns schedule-occupying appointments starting within daysAhead days.
func (s *AppointmentService) ListUpcoming(ctx context.Context, daysAhead int) ([]domain.Appointment, error) {
	if daysAhead <= 0 {
		return nil, apperrors.NewValidationError("days_ahead must be positive", map[string]any{"days_ahead": daysAhead})
	}
	from := s.now()
	before := from.AddDate(0, 0, daysAhead)
	return s.appointments.List(ctx, repository.AppointmentFilter{
		Statuses:    occupyingStatuses,
		StartFrom:   &from,
		StartBefore: &before,
	})
}

// CheckAvailability reports whether the technician has no occupying booking overlapping the window.
func (s *AppointmentService) CheckAvailability(ctx context.Context, technicianID string, start, end time.Time) (bool, error) {
	if !end.After(start) {
		return false, apperrors.NewValidationError("end must be after start", nil)
	}
	if _, err := s.technicians.GetByID(ctx, technicianID); err != nil {
		return false, lookupError(err, "technician", technicianID)
	}
	conflicts, err := s.overlapping(ctx, technicianID, domain.TimeRange{Start: start, End: end})
	if err != nil {
		return false, err
	}
	return len(conflicts) == 0, nil
}

// Transition applies a status action.
func (s *AppointmentService) Transition(ctx context.Context, id string, action domain.AppointmentAction, reason, notes string) (*domain.Appointment, error) {
	appt, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	next, ok := domain.NextStatus(appt.Status, action)
	if !ok {
		return nil, apperrors.NewDomainError("INVALID_TRANSITION", fmt.Sprintf("cannot %s an appointment that is %s", action, appt.Status), 409,
			map[string]any{"status": appt.Status, "action": action})
	}

	switch action {
	case domain.ActionCancel:
		reason = strings.TrimSpace(reason)
		if reason == "" {
			return nil, apperrors.NewValidationError("cancellation reason required", nil)
		}
		appt.CancellationReason = reason
	case domain.ActionNoShow:
		if !appt.ScheduledStart.Before(s.now()) {
			return nil, apperrors.NewValidationError("no-show can only be recorded after the scheduled start", nil)
		}
	}
	if notes = strings.TrimSpace(notes); notes != "" && (action == domain.ActionComplete || action == domain.ActionNoShow) {
		appt.Notes = notes
	}

	previous := appt.Status
	appt.Status = next
	if err := s.appointments.Update(ctx, appt, previous); err != nil {
		if errors.Is(err, repository.ErrStatusChanged) {
			return nil, apperrors.NewDomainError("INVALID_TRANSITION", fmt.Sprintf("cannot %s: appointment is no longer %s", action, previous), 409,
				map[string]any{"status": previous, "action": action})
		}
		return nil, err
	}
	s.publish(ctx, events.New(events.EventAppointmentTransitioned, appt.ID, events.AppointmentTransitionedPayload{
		Action:    action,
		OldStatus: previous,
		NewStatus: next,
		Reason:    appt.CancellationReason,
	}))
	return appt, nil
}

// UpdateNotes replaces the notes of a non-terminal appointment.
func (s *AppointmentService) UpdateNotes(ctx context.Context, id, notes string) (*domain.Appointment, error) {
	appt, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if appt.Status.IsTerminal() {
		return nil, apperrors.NewDomainError("APPOINTMENT_TERMINAL", fmt.Sprintf("appointment is %s", appt.Status), 409, nil)
	}
	appt.Notes = strings.TrimSpace(notes)
	if err := s.appointments.Update(ctx, appt, appt.Status); err != nil {
		if errors.Is(err, repository.ErrStatusChanged) {
			return nil, apperrors.NewDomainError("APPOINTMENT_CHANGED", "appointment status changed; reload and retry", 409, nil)
		}
		return nil, err
	}
	s.publish(ctx, events.New(events.EventAppointmentNotesUpdated, appt.ID, nil))
	return appt, nil
}

func (s *AppointmentService) checkWindow(window domain.TimeRange) error {
	d := window.Duration()
	details := map[string]any{"duration_minutes": int(d.Minutes())}
	switch {
	case d <= 0:
		return apperrors.NewValidationError("end time must be after start time", details)
	case d < s.policy.MinDuration:
		return apperrors.NewValidationError(fmt.Sprintf("duration must be at least %s", s.policy.MinDuration), details)
	case d > s.policy.MaxDuration:
		return apperrors.NewValidationError(fmt.Sprintf("duration must be at most %s", s.policy.MaxDuration), details)
	}
	if !window.Start.After(s.now()) {
		return apperrors.NewValidationError("scheduled start must be in the future", nil)
	}
	return nil
}

func (s *AppointmentService) overlapping(ctx context.Context, technicianID string, window domain.TimeRange) ([]domain.Appointment, error) {
	return s.appointments.List(ctx, repository.AppointmentFilter{
		TechnicianID: technicianID,
		Statuses:     occupyingStatuses,
		Overlapping:  &window,
	})
}

func (s *AppointmentService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handler failed", zap.String("event_type", string(event.Type)), zap.Error(err))
	}
}

// lookupError turns a missing row into a typed not-found error.
func lookupError(err error, resource, id string) error {
	if errors.Is(err, pgx.ErrNoRows) || apperrors.IsNotFound(apperrors.ToDomainError(err)) {
		return apperrors.NewNotFound(resource, map[string]any{"id": id})
	}
	return err
}
