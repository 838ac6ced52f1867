package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/techdesk/internal/domain"
	"github.com/spec-kit/techdesk/internal/events"
	apperrors "github.com/spec-kit/techdesk/pkg/util/errorutil"
)

// Options configures a Scheduler. Zero values select defaults.
type Options struct {
	Policy     *Policy
	Clock      Clock
	Logger     *zap.Logger
	Dispatcher events.Dispatcher
}

// Scheduler orchestrates validation, conflict checks, submission and status
// changes for appointments. Every call reads fresh state from the backend.
type Scheduler struct {
	repo        Repository
	validator   *Validator
	detector    *ConflictDetector
	machine     *StateMachine
	diagnostics *Diagnostician
	dispatcher  events.Dispatcher
	logger      *zap.Logger
	policy      Policy
	now         Clock
}

// NewScheduler wires the engine around a backend repository.
func NewScheduler(repo Repository, opts Options) *Scheduler {
	policy := DefaultPolicy()
	if opts.Policy != nil {
		policy = *opts.Policy
	}
	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	dispatcher := opts.Dispatcher
	if dispatcher == nil {
		dispatcher = events.Nop{}
	}

	detector := NewConflictDetector(repo, repo)
	return &Scheduler{
		repo:        repo,
		validator:   NewValidator(repo, repo, policy, now),
		detector:    detector,
		machine:     NewStateMachine(repo, repo, dispatcher, logger, now),
		diagnostics: NewDiagnostician(repo, repo, detector, policy, now),
		dispatcher:  dispatcher,
		logger:      logger,
		policy:      policy,
		now:         now,
	}
}

// Validate returns the business-rule violations of c against current backend state.
func (s *Scheduler) Validate(ctx context.Context, c Candidate) ([]RuleViolation, error) {
	return s.validator.Validate(ctx, c)
}

// Transition applies a status action through the state machine.
func (s *Scheduler) Transition(ctx context.Context, appt domain.Appointment, action domain.AppointmentAction, params TransitionParams) (*domain.Appointment, error) {
	return s.machine.Transition(ctx, appt, action, params)
}

// RunDiagnostics re-verifies each precondition of a failed candidate.
func (s *Scheduler) RunDiagnostics(ctx context.Context, c Candidate, cause error) *DiagnosticReport {
	return s.diagnostics.Run(ctx, c, cause)
}

// SubmitOptions controls a single submission.
type SubmitOptions struct {
	// AllowDegraded lets the submission proceed when technician availability
	// cannot be verified. It must come from an explicit operator confirmation.
	AllowDegraded bool
}

// Outcome is a successful submission.
type Outcome struct {
	Appointment *domain.Appointment
	Degraded    bool
	AttemptID   string
}

// Submit re-runs every eligibility check and, if all pass, creates the appointment.
// It never retries: a backend rejection is diagnosed and returned.
func (s *Scheduler) Submit(ctx context.Context, c Candidate, opts SubmitOptions) (*Outcome, error) {
	attemptID := uuid.NewString()
	log := s.logger.With(
		zap.String("attempt_id", attemptID),
		zap.String("ticket_id", c.TicketID),
		zap.String("technician_id", c.TechnicianID),
		zap.String("window", c.Window().String()),
	)

	if violations := CheckWindow(s.policy, c.Window(), s.now()); len(violations) > 0 {
		log.Info("candidate rejected locally", zap.Int("violations", len(violations)))
		return nil, &ViolationError{Violations: violations}
	}

	violations, err := s.validator.Validate(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("re-validate candidate: %w", err)
	}
	if len(violations) > 0 {
		log.Info("candidate failed pre-commit re-validation", zap.Int("violations", len(violations)))
		return nil, &ViolationError{Violations: violations}
	}

	degraded := false
	if err := s.detector.Check(ctx, c.TechnicianID, c.Window()); err != nil {
		var unknown *AvailabilityUnknownError
		if !errors.As(err, &unknown) {
			var conflict *ConflictError
			if errors.As(err, &conflict) {
				log.Info("candidate conflicts with live schedule", zap.Error(err))
			} else {
				log.Warn("availability oracle rejected the check", zap.Error(err))
			}
			return nil, err
		}
		if !opts.AllowDegraded {
			log.Warn("availability oracle unreachable; submission halted", zap.Error(unknown.Err))
			return nil, err
		}
		degraded = true
		log.Warn("degraded mode: creating appointment without a live availability check", zap.Error(unknown.Err))
		_ = s.dispatcher.Publish(ctx, events.New(events.EventDegradedOverride, "", events.DegradedOverridePayload{
			TechnicianID: c.TechnicianID,
			Window:       c.Window().String(),
			Cause:        unknown.Err.Error(),
		}))
	}

	created, err := s.repo.CreateAppointment(ctx, c.appointment())
	if err != nil {
		return nil, s.rejected(ctx, log, c, err)
	}
	created.Ticket = c.Ticket
	created.Technician = c.Technician

	_ = s.dispatcher.Publish(ctx, events.New(events.EventAppointmentCreated, created.ID, events.AppointmentCreatedPayload{
		TicketID:     created.TicketID,
		TechnicianID: created.TechnicianID,
		Start:        created.ScheduledStart,
		End:          created.ScheduledEnd,
		Degraded:     degraded,
	}))
	log.Info("appointment created",
		zap.String("appointment_id", created.ID),
		zap.String("status", string(created.Status)),
		zap.Bool("degraded", degraded),
	)
	return &Outcome{Appointment: created, Degraded: degraded, AttemptID: attemptID}, nil
}

func (s *Scheduler) rejected(ctx context.Context, log *zap.Logger, c Candidate, cause error) error {
	category := apperrors.CategoryOf(cause)
	if category == "" {
		category = apperrors.CategoryServerFault
	}
	subErr := &SubmissionError{Category: category, Err: cause}

	payload := events.SubmissionFailedPayload{Category: string(category), Message: cause.Error()}
	if diagnosable(category) {
		subErr.Report = s.diagnostics.Run(ctx, c, cause)
		payload.Conclusion = subErr.Report.Conclusion()
	}
	_ = s.dispatcher.Publish(ctx, events.New(events.EventSubmissionFailed, "", payload))
	log.Warn("backend rejected appointment",
		zap.String("category", string(category)),
		zap.String("conclusion", payload.Conclusion),
		zap.Error(cause),
	)
	return subErr
}

// diagnosable reports whether a rejection category leaves the root cause open.
// Bad input names its own cause; transport and auth failures leave nothing to re-check.
func diagnosable(c apperrors.Category) bool {
	switch c {
	case apperrors.CategoryStateConflict, apperrors.CategoryServerFault, apperrors.CategoryNotFound:
		return true
	}
	return false
}
