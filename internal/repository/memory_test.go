package repository

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/techdesk/internal/domain"
)

func TestMemoryStoreReportsMissingRows(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, err := store.Tickets().GetByID(ctx, "nope")
	assert.ErrorIs(t, err, pgx.ErrNoRows)
	_, err = store.Technicians().GetByID(ctx, "nope")
	assert.ErrorIs(t, err, pgx.ErrNoRows)
	err = store.Appointments().Update(ctx, &domain.Appointment{ID: "nope"}, domain.AppointmentStatusPending)
	assert.ErrorIs(t, err, pgx.ErrNoRows)
}

func TestMemoryAppointmentUpdateComparesStatus(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	appt := &domain.Appointment{TicketID: "t", TechnicianID: "a", Status: domain.AppointmentStatusPending}
	require.NoError(t, store.Appointments().Create(ctx, appt))

	cancelled := *appt
	cancelled.Status = domain.AppointmentStatusCancelled
	cancelled.CancellationReason = "customer away"
	require.NoError(t, store.Appointments().Update(ctx, &cancelled, domain.AppointmentStatusPending))

	confirmed := *appt
	confirmed.Status = domain.AppointmentStatusConfirmed
	err := store.Appointments().Update(ctx, &confirmed, domain.AppointmentStatusPending)
	assert.ErrorIs(t, err, ErrStatusChanged)

	stored, err := store.Appointments().GetByID(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AppointmentStatusCancelled, stored.Status)
	assert.Equal(t, "customer away", stored.CancellationReason)
}

func TestMemoryAppointmentFilters(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	day := time.Date(2030, 1, 7, 0, 0, 0, 0, time.Local)
	at := func(h int) time.Time { return day.Add(time.Duration(h) * time.Hour) }

	create := func(tech string, start, end int, status domain.AppointmentStatus) {
		appt := &domain.Appointment{TicketID: "t", TechnicianID: tech, ScheduledStart: at(start), ScheduledEnd: at(end), Status: status}
		require.NoError(t, store.Appointments().Create(ctx, appt))
	}
	create("a", 9, 10, domain.AppointmentStatusPending)
	create("a", 11, 12, domain.AppointmentStatusCancelled)
	create("b", 9, 12, domain.AppointmentStatusConfirmed)
	create("a", 14, 15, domain.AppointmentStatusConfirmed)

	got, err := store.Appointments().List(ctx, AppointmentFilter{TechnicianID: "a"})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, at(9), got[0].ScheduledStart)
	assert.Equal(t, at(14), got[2].ScheduledStart)

	window := domain.TimeRange{Start: at(10), End: at(14)}
	got, err = store.Appointments().List(ctx, AppointmentFilter{
		TechnicianID: "a",
		Statuses:     []domain.AppointmentStatus{domain.AppointmentStatusPending, domain.AppointmentStatusConfirmed},
		Overlapping:  &window,
	})
	require.NoError(t, err)
	assert.Empty(t, got)

	from, before := at(9), at(11)
	got, err = store.Appointments().List(ctx, AppointmentFilter{StartFrom: &from, StartBefore: &before})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestSeedDemoDataIsIdempotent(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Date(2030, 1, 4, 15, 0, 0, 0, time.Local) // a Friday

	require.NoError(t, SeedDemoData(ctx, store.Tickets(), store.Technicians(), store.Appointments(), now))
	require.NoError(t, SeedDemoData(ctx, store.Tickets(), store.Technicians(), store.Appointments(), now))

	techs, err := store.Technicians().List(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, techs, 4)

	active := domain.TechnicianStatusActive
	techs, err = store.Technicians().List(ctx, &active)
	require.NoError(t, err)
	assert.Len(t, techs, 2)

	appts, err := store.Appointments().List(ctx, AppointmentFilter{})
	require.NoError(t, err)
	require.Len(t, appts, 3)
	assert.Equal(t, time.Monday, appts[0].ScheduledStart.Weekday())

	open, err := store.Tickets().List(ctx, TicketFilter{Statuses: []domain.TicketStatus{domain.TicketStatusOpen}})
	require.NoError(t, err)
	assert.Len(t, open, 3)
}
