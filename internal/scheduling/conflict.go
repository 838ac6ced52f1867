package scheduling

import (
	"context"
	"fmt"
	"sort"

	"github.com/spec-kit/techdesk/internal/domain"
	apperrors "github.com/spec-kit/techdesk/pkg/util/errorutil"
)

// FindConflicts returns the schedule-occupying appointments of technicianID that
// overlap window, ordered by start. excludeID, when set, is ignored.
func FindConflicts(appts []domain.Appointment, technicianID string, window domain.TimeRange, excludeID string) []domain.Appointment {
	var hits []domain.Appointment
	for _, a := range appts {
		if a.TechnicianID != technicianID || (excludeID != "" && a.ID == excludeID) {
			continue
		}
		if !a.Status.OccupiesSchedule() {
			continue
		}
		if a.Window().Overlaps(window) {
			hits = append(hits, a)
		}
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].ScheduledStart.Before(hits[j].ScheduledStart) })
	return hits
}

// ConflictDetector checks the live schedule. It fails closed: when the oracle
// cannot answer, the caller gets an AvailabilityUnknownError, never a yes.
type ConflictDetector struct {
	oracle   AvailabilityOracle
	schedule ScheduleReader
}

// NewConflictDetector constructs a detector. schedule may be nil, in which case
// conflicts are reported without the identity of the other appointment.
func NewConflictDetector(oracle AvailabilityOracle, schedule ScheduleReader) *ConflictDetector {
	return &ConflictDetector{oracle: oracle, schedule: schedule}
}

// IsAvailable asks the oracle whether the technician is free for window.
func (d *ConflictDetector) IsAvailable(ctx context.Context, technicianID string, window domain.TimeRange) (bool, error) {
	ok, err := d.oracle.CheckTechnicianAvailability(ctx, technicianID, window.Start, window.End)
	if err != nil {
		if apperrors.IsUnavailable(err) {
			return false, &AvailabilityUnknownError{TechnicianID: technicianID, Window: window, Err: err}
		}
		return false, fmt.Errorf("check availability of technician %s: %w", technicianID, err)
	}
	return ok, nil
}

// Check returns nil when the window is free, a ConflictError when it is taken,
// and an AvailabilityUnknownError when the oracle is unreachable.
func (d *ConflictDetector) Check(ctx context.Context, technicianID string, window domain.TimeRange) error {
	ok, err := d.IsAvailable(ctx, technicianID, window)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	conflict := &ConflictError{TechnicianID: technicianID, Window: window}
	if d.schedule != nil {
		if appts, err := d.schedule.ListAppointments(ctx); err == nil {
			if hits := FindConflicts(appts, technicianID, window, ""); len(hits) > 0 {
				conflict.Conflicting = &hits[0]
			}
		}
	}
	return conflict
}

// CheckAgainstSchedule evaluates overlaps from the appointment listing instead of
// the oracle, so that one appointment can be left out. It is used before a
// cancel-and-recreate, where the original still occupies its slot.
func (d *ConflictDetector) CheckAgainstSchedule(ctx context.Context, technicianID string, window domain.TimeRange, excludeID string) error {
	if d.schedule == nil {
		return d.Check(ctx, technicianID, window)
	}
	appts, err := d.schedule.ListAppointments(ctx)
	if err != nil {
		if apperrors.IsUnavailable(err) {
			return &AvailabilityUnknownError{TechnicianID: technicianID, Window: window, Err: err}
		}
		return fmt.Errorf("list appointments: %w", err)
	}
	if hits := FindConflicts(appts, technicianID, window, excludeID); len(hits) > 0 {
		return &ConflictError{TechnicianID: technicianID, Window: window, Conflicting: &hits[0]}
	}
	return nil
}
