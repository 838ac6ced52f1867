package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/techdesk/internal/domain"
)

// AppointmentFilter narrows appointment listings. Zero values match everything.
type AppointmentFilter struct {
	TechnicianID string
	Statuses     []domain.AppointmentStatus
	// StartFrom and StartBefore bound ScheduledStart as [StartFrom, StartBefore).
	StartFrom   *time.Time
	StartBefore *time.Time
	// Overlapping keeps appointments whose window intersects the range.
	Overlapping *domain.TimeRange
}

// ErrStatusChanged is returned by Update when the stored status no longer
// matches the status the caller read.
var ErrStatusChanged = errors.New("appointment status changed concurrently")

// AppointmentRepository persists appointments.
type AppointmentRepository interface {
	Create(ctx context.Context, appt *domain.Appointment) error
	// Update writes status, notes and cancellation reason only while the stored
	// status still equals expected.
	Update(ctx context.Context, appt *domain.Appointment, expected domain.AppointmentStatus) error
	GetByID(ctx context.Context, id string) (*domain.Appointment, error)
	List(ctx context.Context, filter AppointmentFilter) ([]domain.Appointment, error)
}

type appointmentRepository struct {
	pool *pgxpool.Pool
}

// NewAppointmentRepository builds repository.
func NewAppointmentRepository(pool *pgxpool.Pool) AppointmentRepository {
	return &appointmentRepository{pool: pool}
}

const appointmentColumns = `id, ticket_id, technician_id, scheduled_start, scheduled_end, status,
       notes, cancellation_reason, created_at, updated_at`

func (r *appointmentRepository) Create(ctx context.Context, appt *domain.Appointment) error {
	const query = `
        INSERT INTO appointments (ticket_id, technician_id, scheduled_start, scheduled_end, status, notes)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		appt.TicketID,
		appt.TechnicianID,
		appt.ScheduledStart,
		appt.ScheduledEnd,
		appt.Status,
		appt.Notes,
	).Scan(&appt.ID, &appt.CreatedAt, &appt.UpdatedAt)
}

func (r *appointmentRepository) Update(ctx context.Context, appt *domain.Appointment, expected domain.AppointmentStatus) error {
	const query = `
        UPDATE appointments SET status=$1, notes=$2, cancellation_reason=$3, updated_at=NOW()
        WHERE id=$4 AND status=$5
        RETURNING updated_at`
	err := r.pool.QueryRow(ctx, query,
		appt.Status,
		appt.Notes,
		appt.CancellationReason,
		appt.ID,
		expected,
	).Scan(&appt.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		var exists bool
		if qerr := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM appointments WHERE id=$1)`, appt.ID).Scan(&exists); qerr != nil {
			return qerr
		}
		if exists {
			return ErrStatusChanged
		}
	}
	return err
}

func (r *appointmentRepository) GetByID(ctx context.Context, id string) (*domain.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id=$1`
	var appt domain.Appointment
	if err := scanAppointment(r.pool.QueryRow(ctx, query, id), &appt); err != nil {
		return nil, err
	}
	return &appt, nil
}

func (r *appointmentRepository) List(ctx context.Context, filter AppointmentFilter) ([]domain.Appointment, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.TechnicianID != "" {
		args = append(args, filter.TechnicianID)
		clauses = append(clauses, fmt.Sprintf("technician_id=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.StartFrom != nil {
		args = append(args, *filter.StartFrom)
		clauses = append(clauses, fmt.Sprintf("scheduled_start >= $%d", len(args)))
	}
	if filter.StartBefore != nil {
		args = append(args, *filter.StartBefore)
		clauses = append(clauses, fmt.Sprintf("scheduled_start < $%d", len(args)))
	}
	if filter.Overlapping != nil {
		args = append(args, filter.Overlapping.End, filter.Overlapping.Start)
		clauses = append(clauses, fmt.Sprintf("scheduled_start < $%d AND scheduled_end > $%d", len(args)-1, len(args)))
	}

	query := fmt.Sprintf(`SELECT %s FROM appointments WHERE %s ORDER BY scheduled_start`,
		appointmentColumns, strings.Join(clauses, " AND "))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Appointment
	for rows.Next() {
		var appt domain.Appointment
		if err := scanAppointment(rows, &appt); err != nil {
			return nil, err
		}
		result = append(result, appt)
	}
	return result, rows.Err()
}

func scanAppointment(row pgx.Row, appt *domain.Appointment) error {
	if err := row.Scan(
		&appt.ID,
		&appt.TicketID,
		&appt.TechnicianID,
		&appt.ScheduledStart,
		&appt.ScheduledEnd,
		&appt.Status,
		&appt.Notes,
		&appt.CancellationReason,
		&appt.CreatedAt,
		&appt.UpdatedAt,
	); err != nil {
		return err
	}
	appt.ScheduledStart = wallClock(appt.ScheduledStart)
	appt.ScheduledEnd = wallClock(appt.ScheduledEnd)
	return nil
}

// wallClock reinterprets a TIMESTAMP value, which pgx returns in UTC, as local time.
func wallClock(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.Local)
}
