package scheduling

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/techdesk/internal/domain"
	"github.com/spec-kit/techdesk/internal/events"
	apperrors "github.com/spec-kit/techdesk/pkg/util/errorutil"
)

// TransitionParams carries the optional inputs of a status action.
type TransitionParams struct {
	Reason string
	Notes  string
}

// CheckTransition applies the transition table and its guards to appt as the
// caller currently sees it. It returns the status the action should lead to.
func CheckTransition(appt domain.Appointment, action domain.AppointmentAction, params TransitionParams, now time.Time) (domain.AppointmentStatus, error) {
	reject := func(reason string) error {
		return &InvalidTransitionError{
			AppointmentID: appt.ID,
			From:          appt.Status,
			Action:        action,
			Source:        SourceLocal,
			Reason:        reason,
		}
	}
	if err := checkParams(appt, action, params); err != nil {
		return "", err
	}
	to, ok := domain.NextStatus(appt.Status, action)
	if !ok {
		if appt.Status.IsTerminal() {
			return "", reject(fmt.Sprintf("%s is a terminal status", appt.Status))
		}
		return "", reject(fmt.Sprintf("allowed actions from %s are %v", appt.Status, domain.AllowedActions(appt.Status)))
	}
	if action == domain.ActionNoShow && !appt.ScheduledStart.Before(now) {
		return "", reject("a no-show can only be recorded after the scheduled start has passed")
	}
	return to, nil
}

// checkParams holds guards that do not depend on the appointment's status, so
// a refreshed copy cannot change their outcome.
func checkParams(appt domain.Appointment, action domain.AppointmentAction, params TransitionParams) error {
	if action == domain.ActionCancel && strings.TrimSpace(params.Reason) == "" {
		return &InvalidTransitionError{
			AppointmentID: appt.ID,
			From:          appt.Status,
			Action:        action,
			Source:        SourceLocal,
			Reason:        "a cancellation reason is required",
		}
	}
	return nil
}

// StateMachine drives status changes. The local table is a fast filter; the
// backend's answer is authoritative.
type StateMachine struct {
	commands   AppointmentCommands
	reader     ScheduleReader
	dispatcher events.Dispatcher
	logger     *zap.Logger
	now        Clock
}

// NewStateMachine constructs a state machine.
func NewStateMachine(commands AppointmentCommands, reader ScheduleReader, dispatcher events.Dispatcher, logger *zap.Logger, now Clock) *StateMachine {
	if dispatcher == nil {
		dispatcher = events.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	return &StateMachine{commands: commands, reader: reader, dispatcher: dispatcher, logger: logger, now: now}
}

// Transition applies action to appt and returns the backend's view of the result.
func (m *StateMachine) Transition(ctx context.Context, appt domain.Appointment, action domain.AppointmentAction, params TransitionParams) (*domain.Appointment, error) {
	if !appt.Persisted() {
		return nil, errors.New("appointment has no identifier; it was never created")
	}
	if err := checkParams(appt, action, params); err != nil {
		return nil, err
	}

	log := m.logger.With(
		zap.String("appointment_id", appt.ID),
		zap.String("action", string(action)),
	)

	expected, err := CheckTransition(appt, action, params, m.now())
	if err != nil {
		fresh, refreshErr := m.reader.GetAppointmentByID(ctx, appt.ID)
		if refreshErr != nil {
			log.Debug("refresh after local rejection failed", zap.Error(refreshErr))
			return nil, err
		}
		if fresh.Status == appt.Status && fresh.ScheduledStart.Equal(appt.ScheduledStart) {
			return nil, err
		}
		expected, err = CheckTransition(*fresh, action, params, m.now())
		if err != nil {
			return nil, err
		}
		log.Info("local appointment state was stale; using refreshed copy",
			zap.String("local_status", string(appt.Status)),
			zap.String("backend_status", string(fresh.Status)),
		)
		appt = *fresh
	}

	updated, err := m.submit(ctx, appt.ID, action, params)
	if err != nil {
		switch apperrors.CategoryOf(err) {
		case apperrors.CategoryBadInput, apperrors.CategoryStateConflict, apperrors.CategoryNotFound:
			log.Warn("backend rejected transition the local table allowed", zap.Error(err))
			return nil, &InvalidTransitionError{
				AppointmentID: appt.ID,
				From:          appt.Status,
				Action:        action,
				Source:        SourceBackend,
				Reason:        "rejected by backend",
				Err:           err,
			}
		}
		return nil, fmt.Errorf("%s appointment %s: %w", action, appt.ID, err)
	}

	if updated.Status != expected {
		log.Warn("backend result differs from transition table; backend wins",
			zap.String("expected", string(expected)),
			zap.String("actual", string(updated.Status)),
		)
	}

	_ = m.dispatcher.Publish(ctx, events.New(events.EventAppointmentTransitioned, updated.ID, events.AppointmentTransitionedPayload{
		Action:    action,
		OldStatus: appt.Status,
		NewStatus: updated.Status,
		Reason:    params.Reason,
	}))
	log.Info("appointment transitioned", zap.String("status", string(updated.Status)))
	return updated, nil
}

func (m *StateMachine) submit(ctx context.Context, id string, action domain.AppointmentAction, params TransitionParams) (*domain.Appointment, error) {
	switch action {
	case domain.ActionConfirm:
		return m.commands.ConfirmAppointment(ctx, id)
	case domain.ActionStart:
		return m.commands.StartAppointment(ctx, id)
	case domain.ActionComplete:
		return m.commands.CompleteAppointment(ctx, id, params.Notes)
	case domain.ActionCancel:
		return m.commands.CancelAppointment(ctx, id, strings.TrimSpace(params.Reason))
	case domain.ActionNoShow:
		return m.commands.MarkNoShow(ctx, id, params.Notes)
	}
	return nil, fmt.Errorf("unknown action %q", action)
}
