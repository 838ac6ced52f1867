package scheduling

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/techdesk/internal/domain"
	"github.com/spec-kit/techdesk/internal/events"
	apperrors "github.com/spec-kit/techdesk/pkg/util/errorutil"
)

// ModificationCancelReason is recorded on appointments cancelled to be recreated.
const ModificationCancelReason = "cancelled for modification"

// SagaState names the stages of a cancel-and-recreate run.
type SagaState string

const (
	SagaPending           SagaState = "PENDING"
	SagaOriginalCancelled SagaState = "ORIGINAL_CANCELLED"
	SagaCompleted         SagaState = "COMPLETED"
	SagaAborted           SagaState = "ABORTED"
	SagaPartialFailure    SagaState = "PARTIAL_FAILURE"
)

// RecreationResult describes where a saga ended.
type RecreationResult struct {
	SagaID      string
	State       SagaState
	Original    *domain.Appointment
	Replacement *domain.Appointment
	Degraded    bool
}

// PartialFailureError means the original appointment was cancelled but no
// replacement exists. The backend cannot un-cancel, so this needs a person.
type PartialFailureError struct {
	SagaID       string
	Original     domain.Appointment
	Attempted    Candidate
	Cause        error
	Acknowledged bool
}

func (e *PartialFailureError) Error() string {
	return fmt.Sprintf("CRITICAL: appointment %s was cancelled but its replacement (technician %s, %s) was not created: %v; manual follow-up required",
		e.Original.ID, e.Attempted.TechnicianID, e.Attempted.Window(), e.Cause)
}

func (e *PartialFailureError) Unwrap() error {
	return e.Cause
}

// Recreate replaces existing with replacement by cancelling the original and
// submitting a new appointment. If the backend rejects the cancel nothing has
// changed; a transport failure on the cancel re-reads the original first. If
// creation fails afterwards the result is a PartialFailureError; the cancel is
// not rolled back and nothing is retried.
func (s *Scheduler) Recreate(ctx context.Context, existing domain.Appointment, replacement Candidate, opts SubmitOptions) (*RecreationResult, error) {
	if replacement.TicketID != existing.TicketID {
		return nil, ErrTicketImmutable
	}

	result := &RecreationResult{SagaID: uuid.NewString(), State: SagaPending, Original: &existing}
	log := s.logger.With(
		zap.String("saga_id", result.SagaID),
		zap.String("original_id", existing.ID),
	)
	s.publishSaga(ctx, result, "")
	log.Info("recreation started",
		zap.String("technician_id", replacement.TechnicianID),
		zap.String("window", replacement.Window().String()),
	)

	cancelled, err := s.machine.Transition(ctx, existing, domain.ActionCancel, TransitionParams{Reason: ModificationCancelReason})
	if err != nil && apperrors.IsTransport(err) {
		// The cancel may have landed before the connection failed.
		var settled bool
		cancelled, settled, err = s.settleCancel(ctx, log, result, existing, replacement, err)
		if settled {
			return result, err
		}
	}
	if err != nil {
		result.State = SagaAborted
		log.Warn("recreation aborted; original untouched", zap.Error(err))
		return result, fmt.Errorf("cancel appointment %s for modification: %w", existing.ID, err)
	}
	result.State = SagaOriginalCancelled
	result.Original = cancelled
	log.Warn("original cancelled; replacement pending")

	if err := ctx.Err(); err != nil {
		return result, s.partialFailure(ctx, log, result, replacement, err)
	}
	outcome, err := s.Submit(ctx, replacement, opts)
	if err != nil {
		return result, s.partialFailure(ctx, log, result, replacement, err)
	}

	result.State = SagaCompleted
	result.Replacement = outcome.Appointment
	result.Degraded = outcome.Degraded
	s.publishSaga(ctx, result, "")
	log.Info("recreation completed", zap.String("replacement_id", outcome.Appointment.ID))
	return result, nil
}

// settleCancel re-reads the original after a transport failure on the cancel
// call. A cancelled original is returned so the saga continues. An unreadable
// original ends the saga as a partial failure, reported by settled. Otherwise
// the cancel error comes back for the abort path.
func (s *Scheduler) settleCancel(ctx context.Context, log *zap.Logger, result *RecreationResult, existing domain.Appointment, replacement Candidate, cause error) (*domain.Appointment, bool, error) {
	fresh, err := s.repo.GetAppointmentByID(ctx, existing.ID)
	if err != nil {
		log.Error("original state unknown after failed cancel", zap.Error(err))
		return nil, true, s.partialFailure(ctx, log, result, replacement,
			fmt.Errorf("cancel may or may not have been applied (%v), original could not be re-read: %w", cause, err))
	}
	if fresh.Status == domain.AppointmentStatusCancelled {
		log.Warn("cancel applied despite transport failure", zap.Error(cause))
		return fresh, false, nil
	}
	return nil, false, cause
}

func (s *Scheduler) partialFailure(ctx context.Context, log *zap.Logger, result *RecreationResult, replacement Candidate, cause error) error {
	result.State = SagaPartialFailure
	perr := &PartialFailureError{
		SagaID:    result.SagaID,
		Original:  *result.Original,
		Attempted: replacement,
		Cause:     cause,
	}
	log.Error("CRITICAL: original cancelled but replacement not created; manual follow-up required",
		zap.String("ticket_id", replacement.TicketID),
		zap.String("technician_id", replacement.TechnicianID),
		zap.String("window", replacement.Window().String()),
		zap.Error(cause),
	)
	s.publishSaga(ctx, result, cause.Error())
	return perr
}

func (s *Scheduler) publishSaga(ctx context.Context, result *RecreationResult, cause string) {
	eventType := events.EventSagaStarted
	switch result.State {
	case SagaCompleted:
		eventType = events.EventSagaCompleted
	case SagaPartialFailure:
		eventType = events.EventSagaPartialFailure
	}
	payload := events.SagaPayload{OriginalID: result.Original.ID, State: string(result.State), Cause: cause}
	if result.Replacement != nil {
		payload.ReplacementID = result.Replacement.ID
	}
	evt := events.New(eventType, result.Original.ID, payload)
	evt.CorrelationID = result.SagaID
	_ = s.dispatcher.Publish(ctx, evt)
}
