package domain

import (
	"fmt"
	"strings"
	"time"
)

// AppointmentStatus enumerates lifecycle states for appointments.
type AppointmentStatus string

const (
	AppointmentStatusPending    AppointmentStatus = "PENDING"
	AppointmentStatusConfirmed  AppointmentStatus = "CONFIRMED"
	AppointmentStatusInProgress AppointmentStatus = "IN_PROGRESS"
	AppointmentStatusCompleted  AppointmentStatus = "COMPLETED"
	AppointmentStatusCancelled  AppointmentStatus = "CANCELLED"
	AppointmentStatusNoShow     AppointmentStatus = "NO_SHOW"
)

// ParseAppointmentStatus converts wire text into a status.
func ParseAppointmentStatus(raw string) (AppointmentStatus, error) {
	s := AppointmentStatus(strings.ToUpper(strings.TrimSpace(raw)))
	switch s {
	case AppointmentStatusPending, AppointmentStatusConfirmed, AppointmentStatusInProgress,
		AppointmentStatusCompleted, AppointmentStatusCancelled, AppointmentStatusNoShow:
		return s, nil
	}
	return "", fmt.Errorf("unknown appointment status %q", raw)
}

// IsTerminal reports whether no further transition is permitted.
func (s AppointmentStatus) IsTerminal() bool {
	switch s {
	case AppointmentStatusCompleted, AppointmentStatusCancelled, AppointmentStatusNoShow:
		return true
	}
	return false
}

// OccupiesSchedule reports whether an appointment in this status blocks the technician's time.
func (s AppointmentStatus) OccupiesSchedule() bool {
	switch s {
	case AppointmentStatusPending, AppointmentStatusConfirmed, AppointmentStatusInProgress:
		return true
	}
	return false
}

// LocalTimeLayout is the timezone-naive timestamp format used on the wire.
const LocalTimeLayout = "2006-01-02T15:04:05"

// ParseLocalTime parses a wire timestamp in the local zone.
func ParseLocalTime(raw string) (time.Time, error) {
	return time.ParseInLocation(LocalTimeLayout, strings.TrimSpace(raw), time.Local)
}

// FormatLocalTime renders t in the wire format.
func FormatLocalTime(t time.Time) string {
	return t.In(time.Local).Format(LocalTimeLayout)
}

// TimeRange is a half-open interval [Start, End).
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// Duration returns the length of the range.
func (r TimeRange) Duration() time.Duration {
	return r.End.Sub(r.Start)
}

// Overlaps reports whether two half-open ranges intersect. Ranges sharing
// only an endpoint do not overlap.
func (r TimeRange) Overlaps(other TimeRange) bool {
	return r.Start.Before(other.End) && r.End.After(other.Start)
}

func (r TimeRange) String() string {
	return fmt.Sprintf("%s–%s", r.Start.Format("2006-01-02 15:04"), r.End.Format("15:04"))
}

// Snapshot is a copy of a referenced entity together with the moment it was read.
// It is display material only; rules always re-fetch the entity.
type Snapshot[T any] struct {
	Value     T
	FetchedAt time.Time
}

// NewSnapshot captures v at the given time.
func NewSnapshot[T any](v T, at time.Time) *Snapshot[T] {
	return &Snapshot[T]{Value: v, FetchedAt: at}
}

// Age returns how old the snapshot is relative to now.
func (s *Snapshot[T]) Age(now time.Time) time.Duration {
	if s == nil {
		return 0
	}
	return now.Sub(s.FetchedAt)
}

// Appointment is a technician visit booked against a ticket.
type Appointment struct {
	ID                 string
	TicketID           string
	TechnicianID       string
	ScheduledStart     time.Time
	ScheduledEnd       time.Time
	Status             AppointmentStatus
	Notes              string
	CancellationReason string
	CreatedAt          time.Time
	UpdatedAt          time.Time

	Ticket     *Snapshot[Ticket]
	Technician *Snapshot[Technician]
}

// Window returns the scheduled interval.
func (a Appointment) Window() TimeRange {
	return TimeRange{Start: a.ScheduledStart, End: a.ScheduledEnd}
}

// Persisted reports whether the backend has assigned an identifier.
func (a Appointment) Persisted() bool {
	return a.ID != ""
}
