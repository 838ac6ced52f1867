package scheduling

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/techdesk/internal/domain"
	apperrors "github.com/spec-kit/techdesk/pkg/util/errorutil"
)

func booking(id, tech string, start, end int, status domain.AppointmentStatus) domain.Appointment {
	return domain.Appointment{
		ID:             id,
		TicketID:       "T-1",
		TechnicianID:   tech,
		ScheduledStart: at(start, 0),
		ScheduledEnd:   at(end, 0),
		Status:         status,
	}
}

func TestFindConflicts(t *testing.T) {
	appts := []domain.Appointment{
		booking("late", "tech-a", 14, 15, domain.AppointmentStatusConfirmed),
		booking("early", "tech-a", 10, 11, domain.AppointmentStatusPending),
		booking("cancelled", "tech-a", 10, 12, domain.AppointmentStatusCancelled),
		booking("done", "tech-a", 10, 12, domain.AppointmentStatusCompleted),
		booking("other-tech", "tech-b", 10, 12, domain.AppointmentStatusInProgress),
		booking("running", "tech-a", 11, 13, domain.AppointmentStatusInProgress),
	}

	t.Run("only occupying bookings of the same technician", func(t *testing.T) {
		hits := FindConflicts(appts, "tech-a", domain.TimeRange{Start: at(10, 30), End: at(14, 30)}, "")
		ids := make([]string, 0, len(hits))
		for _, h := range hits {
			ids = append(ids, h.ID)
		}
		assert.Equal(t, []string{"early", "running", "late"}, ids)
	})

	t.Run("back to back is not a conflict", func(t *testing.T) {
		assert.Empty(t, FindConflicts(appts, "tech-a", domain.TimeRange{Start: at(13, 0), End: at(14, 0)}, ""))
	})

	t.Run("excluded appointment is ignored", func(t *testing.T) {
		hits := FindConflicts(appts, "tech-a", domain.TimeRange{Start: at(10, 0), End: at(10, 30)}, "early")
		assert.Empty(t, hits)
	})
}

func TestConflictDetectorIdentifiesOverlap(t *testing.T) {
	h := newHarness()
	h.repo.addAppointment(booking("existing", "tech-a", 10, 11, domain.AppointmentStatusConfirmed))

	err := h.scheduler.detector.Check(context.Background(), "tech-a", domain.TimeRange{Start: at(10, 30), End: at(11, 30)})
	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	require.NotNil(t, conflict.Conflicting)
	assert.Equal(t, "existing", conflict.Conflicting.ID)
	assert.Contains(t, err.Error(), "existing")
}

func TestConflictDetectorFailsClosed(t *testing.T) {
	h := newHarness()
	h.repo.availabilityErr = apperrors.NewTransportError("check availability", errors.New("timeout"))

	ok, err := h.scheduler.detector.IsAvailable(context.Background(), "tech-a", domain.TimeRange{Start: at(10, 0), End: at(11, 0)})
	assert.False(t, ok)
	var unknown *AvailabilityUnknownError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "tech-a", unknown.TechnicianID)
}

func TestConflictDetectorPassesThroughRejections(t *testing.T) {
	h := newHarness()
	h.repo.availabilityErr = apperrors.NewNotFound("technician", nil)

	err := h.scheduler.detector.Check(context.Background(), "tech-a", domain.TimeRange{Start: at(10, 0), End: at(11, 0)})
	require.Error(t, err)
	var unknown *AvailabilityUnknownError
	assert.False(t, errors.As(err, &unknown))
	assert.True(t, apperrors.IsNotFound(err))
}

func TestCheckAgainstScheduleExcludesOriginal(t *testing.T) {
	h := newHarness()
	h.repo.addAppointment(booking("original", "tech-a", 10, 11, domain.AppointmentStatusPending))
	window := domain.TimeRange{Start: at(10, 30), End: at(11, 30)}

	require.NoError(t, h.scheduler.detector.CheckAgainstSchedule(context.Background(), "tech-a", window, "original"))

	var conflict *ConflictError
	require.ErrorAs(t, h.scheduler.detector.CheckAgainstSchedule(context.Background(), "tech-a", window, ""), &conflict)
}

func TestCheckAgainstScheduleFailsClosed(t *testing.T) {
	h := newHarness()
	h.repo.listErr = apperrors.NewInternalError(errors.New("boom"))

	err := h.scheduler.detector.CheckAgainstSchedule(context.Background(), "tech-a", domain.TimeRange{Start: at(10, 0), End: at(11, 0)}, "x")
	var unknown *AvailabilityUnknownError
	require.ErrorAs(t, err, &unknown)
}
