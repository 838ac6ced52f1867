package scheduling

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/techdesk/internal/domain"
	"github.com/spec-kit/techdesk/internal/events"
	apperrors "github.com/spec-kit/techdesk/pkg/util/errorutil"
)

func TestCheckTransition(t *testing.T) {
	future := booking("a", "tech-a", 10, 11, "")
	past := booking("a", "tech-a", 6, 7, "")

	tests := []struct {
		name   string
		appt   domain.Appointment
		status domain.AppointmentStatus
		action domain.AppointmentAction
		params TransitionParams
		want   domain.AppointmentStatus
		reason string
	}{
		{name: "confirm pending", appt: future, status: domain.AppointmentStatusPending, action: domain.ActionConfirm, want: domain.AppointmentStatusConfirmed},
		{name: "cancel pending", appt: future, status: domain.AppointmentStatusPending, action: domain.ActionCancel, params: TransitionParams{Reason: "customer asked"}, want: domain.AppointmentStatusCancelled},
		{name: "start pending", appt: future, status: domain.AppointmentStatusPending, action: domain.ActionStart, reason: "allowed actions from PENDING"},
		{name: "start confirmed", appt: future, status: domain.AppointmentStatusConfirmed, action: domain.ActionStart, want: domain.AppointmentStatusInProgress},
		{name: "complete in progress", appt: future, status: domain.AppointmentStatusInProgress, action: domain.ActionComplete, want: domain.AppointmentStatusCompleted},
		{name: "cancel in progress", appt: future, status: domain.AppointmentStatusInProgress, action: domain.ActionCancel, params: TransitionParams{Reason: "x"}, reason: "allowed actions from IN_PROGRESS"},
		{name: "cancel without reason", appt: future, status: domain.AppointmentStatusConfirmed, action: domain.ActionCancel, params: TransitionParams{Reason: "  "}, reason: "reason is required"},
		{name: "no-show before start", appt: future, status: domain.AppointmentStatusConfirmed, action: domain.ActionNoShow, reason: "after the scheduled start"},
		{name: "no-show after start", appt: past, status: domain.AppointmentStatusConfirmed, action: domain.ActionNoShow, want: domain.AppointmentStatusNoShow},
		{name: "no-show pending", appt: past, status: domain.AppointmentStatusPending, action: domain.ActionNoShow, reason: "allowed actions from PENDING"},
		{name: "confirm completed", appt: future, status: domain.AppointmentStatusCompleted, action: domain.ActionConfirm, reason: "terminal"},
		{name: "confirm cancelled", appt: future, status: domain.AppointmentStatusCancelled, action: domain.ActionConfirm, reason: "terminal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			appt := tt.appt
			appt.Status = tt.status
			got, err := CheckTransition(appt, tt.action, tt.params, baseTime)
			if tt.reason != "" {
				var invalid *InvalidTransitionError
				require.ErrorAs(t, err, &invalid)
				assert.Equal(t, SourceLocal, invalid.Source)
				assert.Contains(t, invalid.Reason, tt.reason)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTransitionNoShowThenTerminal(t *testing.T) {
	h := newHarness()
	appt := h.repo.addAppointment(booking("", "tech-a", 9, 10, domain.AppointmentStatusConfirmed))
	h.clock.Advance(90 * time.Minute)

	updated, err := h.scheduler.Transition(context.Background(), appt, domain.ActionNoShow, TransitionParams{})
	require.NoError(t, err)
	assert.Equal(t, domain.AppointmentStatusNoShow, updated.Status)

	_, err = h.scheduler.Transition(context.Background(), *updated, domain.ActionNoShow, TransitionParams{})
	var invalid *InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, SourceLocal, invalid.Source)
	assert.Contains(t, invalid.Reason, "terminal")
	assert.Equal(t, 1, h.repo.count("MarkNoShow"))
}

func TestTransitionCancelRequiresReasonWithoutBackendCalls(t *testing.T) {
	h := newHarness()
	appt := h.repo.addAppointment(booking("", "tech-a", 10, 11, domain.AppointmentStatusPending))

	_, err := h.scheduler.Transition(context.Background(), appt, domain.ActionCancel, TransitionParams{})
	var invalid *InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
	assert.Zero(t, h.repo.totalCalls())
}

func TestTransitionRefreshesStaleLocalCopy(t *testing.T) {
	h := newHarness()
	stored := h.repo.addAppointment(booking("", "tech-a", 10, 11, domain.AppointmentStatusConfirmed))
	stale := stored
	stale.Status = domain.AppointmentStatusPending

	updated, err := h.scheduler.Transition(context.Background(), stale, domain.ActionStart, TransitionParams{})
	require.NoError(t, err)
	assert.Equal(t, domain.AppointmentStatusInProgress, updated.Status)
	assert.Equal(t, 1, h.repo.count("GetAppointmentByID"))
}

func TestTransitionBackendRejectionIsAuthoritative(t *testing.T) {
	h := newHarness()
	stored := h.repo.addAppointment(booking("", "tech-a", 10, 11, domain.AppointmentStatusCancelled))
	stale := stored
	stale.Status = domain.AppointmentStatusPending

	_, err := h.scheduler.Transition(context.Background(), stale, domain.ActionConfirm, TransitionParams{})
	var invalid *InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, SourceBackend, invalid.Source)
	assert.Equal(t, apperrors.CategoryStateConflict, apperrors.CategoryOf(err))
}

func TestTransitionBackendResultWins(t *testing.T) {
	h := newHarness()
	appt := h.repo.addAppointment(booking("", "tech-a", 10, 11, domain.AppointmentStatusPending))
	h.repo.forceStatus = domain.AppointmentStatusInProgress

	updated, err := h.scheduler.Transition(context.Background(), appt, domain.ActionConfirm, TransitionParams{})
	require.NoError(t, err)
	assert.Equal(t, domain.AppointmentStatusInProgress, updated.Status)

	require.Len(t, h.dispatcher.events, 1)
	payload, ok := h.dispatcher.events[0].Payload.(events.AppointmentTransitionedPayload)
	require.True(t, ok)
	assert.Equal(t, domain.AppointmentStatusPending, payload.OldStatus)
	assert.Equal(t, domain.AppointmentStatusInProgress, payload.NewStatus)
}

func TestTransitionTransportFailureIsNotAnInvalidTransition(t *testing.T) {
	h := newHarness()
	appt := h.repo.addAppointment(booking("", "tech-a", 10, 11, domain.AppointmentStatusPending))
	h.repo.cancelErr = apperrors.NewTransportError("cancel appointment", errors.New("reset by peer"))

	_, err := h.scheduler.Transition(context.Background(), appt, domain.ActionCancel, TransitionParams{Reason: "duplicate"})
	require.Error(t, err)
	var invalid *InvalidTransitionError
	assert.False(t, errors.As(err, &invalid))
	assert.True(t, apperrors.IsTransport(err))
}

func TestTransitionRequiresPersistedAppointment(t *testing.T) {
	h := newHarness()
	_, err := h.scheduler.Transition(context.Background(), domain.Appointment{Status: domain.AppointmentStatusPending}, domain.ActionConfirm, TransitionParams{})
	require.Error(t, err)
	assert.Zero(t, h.repo.totalCalls())
}
