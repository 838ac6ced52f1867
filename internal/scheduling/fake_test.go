package scheduling

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/spec-kit/techdesk/internal/domain"
	"github.com/spec-kit/techdesk/internal/events"
	apperrors "github.com/spec-kit/techdesk/pkg/util/errorutil"
)

// baseTime is a Monday morning in the local zone.
var baseTime = time.Date(2030, 3, 4, 8, 0, 0, 0, time.Local)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// fakeRepo is an in-memory backend that applies the same rules as the real one
// and lets tests inject failures per operation.
type fakeRepo struct {
	mu          sync.Mutex
	clock       *fakeClock
	tickets     map[string]domain.Ticket
	technicians map[string]domain.Technician
	appts       map[string]domain.Appointment
	nextID      int
	calls       map[string]int

	availabilityErr error
	listErr         error
	createErr       error
	cancelErr       error
	// cancelReplyErr is returned after the cancel has been applied.
	cancelReplyErr error
	getApptErr      error
	// forceStatus overrides the status the backend returns after a transition.
	forceStatus domain.AppointmentStatus
	// beforeCreate runs inside CreateAppointment before any rule is applied.
	beforeCreate func(r *fakeRepo)
}

func newFakeRepo(clock *fakeClock) *fakeRepo {
	return &fakeRepo{
		clock:       clock,
		tickets:     map[string]domain.Ticket{},
		technicians: map[string]domain.Technician{},
		appts:       map[string]domain.Appointment{},
		calls:       map[string]int{},
	}
}

func (r *fakeRepo) addTicket(id string, status domain.TicketStatus) {
	r.tickets[id] = domain.Ticket{ID: id, Title: "Printer on fire " + id, Status: status}
}

func (r *fakeRepo) addTechnician(id, name string, status domain.TechnicianStatus) {
	r.technicians[id] = domain.Technician{ID: id, Name: name, Email: strings.ToLower(name) + "@example.com", Status: status}
}

func (r *fakeRepo) addAppointment(a domain.Appointment) domain.Appointment {
	if a.ID == "" {
		r.nextID++
		a.ID = fmt.Sprintf("appt-%d", r.nextID)
	}
	r.appts[a.ID] = a
	return a
}

func (r *fakeRepo) setTicketStatus(id string, status domain.TicketStatus) {
	t := r.tickets[id]
	t.Status = status
	r.tickets[id] = t
}

func (r *fakeRepo) count(op string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[op]
}

func (r *fakeRepo) totalCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := 0
	for _, n := range r.calls {
		total += n
	}
	return total
}

func (r *fakeRepo) record(op string) {
	r.calls[op]++
}

func (r *fakeRepo) GetTicketByID(_ context.Context, id string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("GetTicketByID")
	t, ok := r.tickets[id]
	if !ok {
		return nil, apperrors.NewNotFound("ticket", nil)
	}
	return &t, nil
}

func (r *fakeRepo) GetTechnicianByID(_ context.Context, id string) (*domain.Technician, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("GetTechnicianByID")
	t, ok := r.technicians[id]
	if !ok {
		return nil, apperrors.NewNotFound("technician", nil)
	}
	return &t, nil
}

func (r *fakeRepo) ListActiveTechnicians(_ context.Context) ([]domain.Technician, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("ListActiveTechnicians")
	var out []domain.Technician
	for _, id := range sortedKeys(r.technicians) {
		if t := r.technicians[id]; t.Status == domain.TechnicianStatusActive {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *fakeRepo) CheckTechnicianAvailability(_ context.Context, technicianID string, start, end time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("CheckTechnicianAvailability")
	if r.availabilityErr != nil {
		return false, r.availabilityErr
	}
	hits := FindConflicts(r.listLocked(), technicianID, domain.TimeRange{Start: start, End: end}, "")
	return len(hits) == 0, nil
}

func (r *fakeRepo) GetAppointmentByID(_ context.Context, id string) (*domain.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("GetAppointmentByID")
	if r.getApptErr != nil {
		return nil, r.getApptErr
	}
	a, ok := r.appts[id]
	if !ok {
		return nil, apperrors.NewNotFound("appointment", nil)
	}
	return &a, nil
}

func (r *fakeRepo) ListAppointments(_ context.Context) ([]domain.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("ListAppointments")
	if r.listErr != nil {
		return nil, r.listErr
	}
	return r.listLocked(), nil
}

func (r *fakeRepo) ListUpcomingAppointments(_ context.Context, daysAhead int) ([]domain.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("ListUpcomingAppointments")
	now := r.clock.Now()
	limit := now.AddDate(0, 0, daysAhead)
	var out []domain.Appointment
	for _, a := range r.listLocked() {
		if !a.ScheduledStart.Before(now) && a.ScheduledStart.Before(limit) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *fakeRepo) listLocked() []domain.Appointment {
	out := make([]domain.Appointment, 0, len(r.appts))
	for _, id := range sortedKeys(r.appts) {
		out = append(out, r.appts[id])
	}
	return out
}

func (r *fakeRepo) CreateAppointment(_ context.Context, a domain.Appointment) (*domain.Appointment, error) {
	if r.beforeCreate != nil {
		r.beforeCreate(r)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("CreateAppointment")
	if r.createErr != nil {
		return nil, r.createErr
	}
	if FindConflicts(r.listLocked(), a.TechnicianID, a.Window(), "") != nil {
		return nil, apperrors.NewConflict("technician already booked", nil)
	}
	r.nextID++
	a.ID = fmt.Sprintf("appt-%d", r.nextID)
	a.Status = domain.AppointmentStatusPending
	a.CreatedAt = r.clock.Now()
	r.appts[a.ID] = a
	return &a, nil
}

func (r *fakeRepo) ConfirmAppointment(_ context.Context, id string) (*domain.Appointment, error) {
	return r.transition("ConfirmAppointment", id, domain.ActionConfirm, func(*domain.Appointment) {})
}

func (r *fakeRepo) StartAppointment(_ context.Context, id string) (*domain.Appointment, error) {
	return r.transition("StartAppointment", id, domain.ActionStart, func(*domain.Appointment) {})
}

func (r *fakeRepo) CompleteAppointment(_ context.Context, id, notes string) (*domain.Appointment, error) {
	return r.transition("CompleteAppointment", id, domain.ActionComplete, func(a *domain.Appointment) {
		if notes != "" {
			a.Notes = notes
		}
	})
}

func (r *fakeRepo) CancelAppointment(_ context.Context, id, reason string) (*domain.Appointment, error) {
	if r.cancelErr != nil {
		r.mu.Lock()
		r.record("CancelAppointment")
		r.mu.Unlock()
		return nil, r.cancelErr
	}
	a, err := r.transition("CancelAppointment", id, domain.ActionCancel, func(a *domain.Appointment) {
		a.CancellationReason = reason
	})
	if err == nil && r.cancelReplyErr != nil {
		return nil, r.cancelReplyErr
	}
	return a, err
}

func (r *fakeRepo) MarkNoShow(_ context.Context, id, notes string) (*domain.Appointment, error) {
	return r.transition("MarkNoShow", id, domain.ActionNoShow, func(a *domain.Appointment) {
		if notes != "" {
			a.Notes = notes
		}
	})
}

func (r *fakeRepo) UpdateAppointmentNotes(_ context.Context, id, notes string) (*domain.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("UpdateAppointmentNotes")
	a, ok := r.appts[id]
	if !ok {
		return nil, apperrors.NewNotFound("appointment", nil)
	}
	a.Notes = notes
	r.appts[id] = a
	return &a, nil
}

func (r *fakeRepo) transition(op, id string, action domain.AppointmentAction, mutate func(*domain.Appointment)) (*domain.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record(op)
	a, ok := r.appts[id]
	if !ok {
		return nil, apperrors.NewNotFound("appointment", nil)
	}
	to, ok := domain.NextStatus(a.Status, action)
	if !ok {
		return nil, apperrors.NewConflict(fmt.Sprintf("cannot %s a %s appointment", action, a.Status), nil)
	}
	if action == domain.ActionNoShow && !a.ScheduledStart.Before(r.clock.Now()) {
		return nil, apperrors.NewValidationError("appointment has not started yet", nil)
	}
	if r.forceStatus != "" {
		to = r.forceStatus
	}
	a.Status = to
	mutate(&a)
	r.appts[id] = a
	return &a, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// recordingDispatcher keeps every published event.
type recordingDispatcher struct {
	mu     sync.Mutex
	events []events.Event
}

func (d *recordingDispatcher) Publish(_ context.Context, e events.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, e)
	return nil
}

func (d *recordingDispatcher) Subscribe(events.EventType, events.EventHandler) {}

func (d *recordingDispatcher) types() []events.EventType {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]events.EventType, 0, len(d.events))
	for _, e := range d.events {
		out = append(out, e.Type)
	}
	return out
}

// scriptedPrompter replays canned answers and records what it was told.
type scriptedPrompter struct {
	answers  []string
	confirms []bool
	choices  []int
	notices  []string
	levels   []NoticeLevel
}

func (p *scriptedPrompter) Ask(_ context.Context, _ string) (string, error) {
	if len(p.answers) == 0 {
		return "", io.EOF
	}
	a := p.answers[0]
	p.answers = p.answers[1:]
	return a, nil
}

func (p *scriptedPrompter) Confirm(_ context.Context, _ string) (bool, error) {
	if len(p.confirms) == 0 {
		return false, io.EOF
	}
	c := p.confirms[0]
	p.confirms = p.confirms[1:]
	return c, nil
}

func (p *scriptedPrompter) Choose(_ context.Context, _ string, _ []string) (int, error) {
	if len(p.choices) == 0 {
		return -1, io.EOF
	}
	c := p.choices[0]
	p.choices = p.choices[1:]
	return c, nil
}

func (p *scriptedPrompter) Notify(level NoticeLevel, message string) {
	p.levels = append(p.levels, level)
	p.notices = append(p.notices, message)
}

func (p *scriptedPrompter) noticed(substr string) bool {
	for _, n := range p.notices {
		if strings.Contains(n, substr) {
			return true
		}
	}
	return false
}

func (p *scriptedPrompter) hasLevel(level NoticeLevel) bool {
	for _, l := range p.levels {
		if l == level {
			return true
		}
	}
	return false
}

type harness struct {
	clock      *fakeClock
	repo       *fakeRepo
	dispatcher *recordingDispatcher
	scheduler  *Scheduler
}

// newHarness seeds an open ticket T-1, a closed ticket T-2, active technicians
// tech-a and tech-b and an inactive tech-c.
func newHarness() *harness {
	clock := &fakeClock{now: baseTime}
	repo := newFakeRepo(clock)
	repo.addTicket("T-1", domain.TicketStatusOpen)
	repo.addTicket("T-2", domain.TicketStatusClosed)
	repo.addTechnician("tech-a", "Ada", domain.TechnicianStatusActive)
	repo.addTechnician("tech-b", "Brian", domain.TechnicianStatusActive)
	repo.addTechnician("tech-c", "Cleo", domain.TechnicianStatusInactive)
	dispatcher := &recordingDispatcher{}
	scheduler := NewScheduler(repo, Options{Clock: clock.Now, Dispatcher: dispatcher})
	return &harness{clock: clock, repo: repo, dispatcher: dispatcher, scheduler: scheduler}
}

// at returns baseTime's day at hh:mm.
func at(hh, mm int) time.Time {
	return time.Date(baseTime.Year(), baseTime.Month(), baseTime.Day(), hh, mm, 0, 0, time.Local)
}

func candidate(tech string, start, end time.Time) Candidate {
	return Candidate{TicketID: "T-1", TechnicianID: tech, Start: start, End: end}
}
