package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/techdesk/internal/domain"
)

// MemoryStore keeps sandbox data in process. Missing rows are reported with
// pgx.ErrNoRows so callers handle both backends the same way.
type MemoryStore struct {
	mu           sync.RWMutex
	tickets      map[string]domain.Ticket
	technicians  map[string]domain.Technician
	appointments map[string]domain.Appointment
	now          func() time.Time
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tickets:      make(map[string]domain.Ticket),
		technicians:  make(map[string]domain.Technician),
		appointments: make(map[string]domain.Appointment),
		now:          time.Now,
	}
}

// Tickets exposes the store as a TicketRepository.
func (s *MemoryStore) Tickets() TicketRepository { return memoryTickets{s} }

// Technicians exposes the store as a TechnicianRepository.
func (s *MemoryStore) Technicians() TechnicianRepository { return memoryTechnicians{s} }

// Appointments exposes the store as an AppointmentRepository.
func (s *MemoryStore) Appointments() AppointmentRepository { return memoryAppointments{s} }

type memoryTickets struct{ s *MemoryStore }

func (r memoryTickets) Create(_ context.Context, ticket *domain.Ticket) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if ticket.ID == "" {
		ticket.ID = uuid.NewString()
	}
	ticket.CreatedAt = r.s.now()
	ticket.UpdatedAt = ticket.CreatedAt
	r.s.tickets[ticket.ID] = *ticket
	return nil
}

func (r memoryTickets) Update(_ context.Context, ticket *domain.Ticket) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.tickets[ticket.ID]; !ok {
		return pgx.ErrNoRows
	}
	ticket.UpdatedAt = r.s.now()
	r.s.tickets[ticket.ID] = *ticket
	return nil
}

func (r memoryTickets) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	ticket, ok := r.s.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &ticket, nil
}

func (r memoryTickets) List(_ context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var result []domain.Ticket
	for _, ticket := range r.s.tickets {
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, ticket.Status) {
			continue
		}
		result = append(result, ticket)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return paginate(result, filter.Offset, filter.Limit), nil
}

type memoryTechnicians struct{ s *MemoryStore }

func (r memoryTechnicians) Create(_ context.Context, tech *domain.Technician) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if tech.ID == "" {
		tech.ID = uuid.NewString()
	}
	tech.CreatedAt = r.s.now()
	tech.UpdatedAt = tech.CreatedAt
	r.s.technicians[tech.ID] = *tech
	return nil
}

func (r memoryTechnicians) Update(_ context.Context, tech *domain.Technician) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.technicians[tech.ID]; !ok {
		return pgx.ErrNoRows
	}
	tech.UpdatedAt = r.s.now()
	r.s.technicians[tech.ID] = *tech
	return nil
}

func (r memoryTechnicians) GetByID(_ context.Context, id string) (*domain.Technician, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	tech, ok := r.s.technicians[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &tech, nil
}

func (r memoryTechnicians) List(_ context.Context, status *domain.TechnicianStatus) ([]domain.Technician, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var result []domain.Technician
	for _, tech := range r.s.technicians {
		if status != nil && tech.Status != *status {
			continue
		}
		result = append(result, tech)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

type memoryAppointments struct{ s *MemoryStore }

func (r memoryAppointments) Create(_ context.Context, appt *domain.Appointment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	appt.ID = uuid.NewString()
	appt.CreatedAt = r.s.now()
	appt.UpdatedAt = appt.CreatedAt
	r.s.appointments[appt.ID] = *appt
	return nil
}

func (r memoryAppointments) Update(_ context.Context, appt *domain.Appointment, expected domain.AppointmentStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.appointments[appt.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	if stored.Status != expected {
		return ErrStatusChanged
	}
	stored.Status = appt.Status
	stored.Notes = appt.Notes
	stored.CancellationReason = appt.CancellationReason
	stored.UpdatedAt = r.s.now()
	r.s.appointments[appt.ID] = stored
	appt.UpdatedAt = stored.UpdatedAt
	return nil
}

func (r memoryAppointments) GetByID(_ context.Context, id string) (*domain.Appointment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	appt, ok := r.s.appointments[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &appt, nil
}

func (r memoryAppointments) List(_ context.Context, filter AppointmentFilter) ([]domain.Appointment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var result []domain.Appointment
	for _, appt := range r.s.appointments {
		if filter.TechnicianID != "" && appt.TechnicianID != filter.TechnicianID {
			continue
		}
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, appt.Status) {
			continue
		}
		if filter.StartFrom != nil && appt.ScheduledStart.Before(*filter.StartFrom) {
			continue
		}
		if filter.StartBefore != nil && !appt.ScheduledStart.Before(*filter.StartBefore) {
			continue
		}
		if filter.Overlapping != nil && !appt.Window().Overlaps(*filter.Overlapping) {
			continue
		}
		result = append(result, appt)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].ScheduledStart.Equal(result[j].ScheduledStart) {
			return result[i].ID < result[j].ID
		}
		return result[i].ScheduledStart.Before(result[j].ScheduledStart)
	})
	return result, nil
}

func containsStatus[S comparable](set []S, s S) bool {
	for _, candidate := range set {
		if candidate == s {
			return true
		}
	}
	return false
}

func paginate[T any](items []T, offset, limit int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
