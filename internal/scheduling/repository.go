package scheduling

import (
	"context"
	"time"

	"github.com/spec-kit/techdesk/internal/domain"
)

// TicketLookup reads tickets from the system of record.
type TicketLookup interface {
	GetTicketByID(ctx context.Context, id string) (*domain.Ticket, error)
}

// TechnicianLookup reads technicians from the system of record.
type TechnicianLookup interface {
	GetTechnicianByID(ctx context.Context, id string) (*domain.Technician, error)
	ListActiveTechnicians(ctx context.Context) ([]domain.Technician, error)
}

// AvailabilityOracle answers whether a technician's schedule is free for a window.
type AvailabilityOracle interface {
	CheckTechnicianAvailability(ctx context.Context, technicianID string, start, end time.Time) (bool, error)
}

// ScheduleReader lists and reads appointments.
type ScheduleReader interface {
	GetAppointmentByID(ctx context.Context, id string) (*domain.Appointment, error)
	ListAppointments(ctx context.Context) ([]domain.Appointment, error)
	ListUpcomingAppointments(ctx context.Context, daysAhead int) ([]domain.Appointment, error)
}

// AppointmentCommands are the backend mutations the engine issues.
type AppointmentCommands interface {
	CreateAppointment(ctx context.Context, appt domain.Appointment) (*domain.Appointment, error)
	ConfirmAppointment(ctx context.Context, id string) (*domain.Appointment, error)
	StartAppointment(ctx context.Context, id string) (*domain.Appointment, error)
	CompleteAppointment(ctx context.Context, id, notes string) (*domain.Appointment, error)
	CancelAppointment(ctx context.Context, id, reason string) (*domain.Appointment, error)
	MarkNoShow(ctx context.Context, id, notes string) (*domain.Appointment, error)
	UpdateAppointmentNotes(ctx context.Context, id, notes string) (*domain.Appointment, error)
}

// Repository is everything the engine consumes from the backend.
type Repository interface {
	TicketLookup
	TechnicianLookup
	AvailabilityOracle
	ScheduleReader
	AppointmentCommands
}
