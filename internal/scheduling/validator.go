package scheduling

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spec-kit/techdesk/internal/domain"
	apperrors "github.com/spec-kit/techdesk/pkg/util/errorutil"
)

// Policy holds the temporal business rules.
type Policy struct {
	MinDuration time.Duration
	MaxDuration time.Duration
	MinLeadTime time.Duration
}

// DefaultPolicy returns the rules the backend enforces.
func DefaultPolicy() Policy {
	return Policy{
		MinDuration: 30 * time.Minute,
		MaxDuration: 8 * time.Hour,
		MinLeadTime: 5 * time.Minute,
	}
}

// Clock returns the current time.
type Clock func() time.Time

// Candidate is an appointment proposal that the backend has not accepted yet.
type Candidate struct {
	TicketID     string
	TechnicianID string
	Start        time.Time
	End          time.Time
	Notes        string

	// Selection-time copies for display and diagnostics. Never used for rules.
	Ticket     *domain.Snapshot[domain.Ticket]
	Technician *domain.Snapshot[domain.Technician]
}

// Window returns the requested interval.
func (c Candidate) Window() domain.TimeRange {
	return domain.TimeRange{Start: c.Start, End: c.End}
}

func (c Candidate) appointment() domain.Appointment {
	return domain.Appointment{
		TicketID:       c.TicketID,
		TechnicianID:   c.TechnicianID,
		ScheduledStart: c.Start,
		ScheduledEnd:   c.End,
		Notes:          strings.TrimSpace(c.Notes),
	}
}

// CheckWindow applies the duration and lead-time rules.
func CheckWindow(p Policy, window domain.TimeRange, now time.Time) []RuleViolation {
	var out []RuleViolation
	d := window.Duration()
	switch {
	case d <= 0:
		out = append(out, RuleViolation{
			Code:    ViolationDurationTooShort,
			Field:   "end",
			Message: "end time must be after start time",
		})
	case d < p.MinDuration:
		out = append(out, RuleViolation{
			Code:    ViolationDurationTooShort,
			Field:   "end",
			Message: fmt.Sprintf("duration %s is shorter than the minimum of %s", d, p.MinDuration),
		})
	case d > p.MaxDuration:
		out = append(out, RuleViolation{
			Code:    ViolationDurationTooLong,
			Field:   "end",
			Message: fmt.Sprintf("duration %s exceeds the maximum of %s", d, p.MaxDuration),
		})
	}
	earliest := now.Add(p.MinLeadTime)
	if window.Start.Before(earliest) {
		out = append(out, RuleViolation{
			Code:    ViolationStartNotInFuture,
			Field:   "start",
			Message: fmt.Sprintf("start must be at least %s from now (earliest %s)", p.MinLeadTime, earliest.Format("2006-01-02 15:04")),
		})
	}
	return out
}

// CheckTicket applies the ticket eligibility rule. A nil ticket means it was not found.
func CheckTicket(id string, t *domain.Ticket) []RuleViolation {
	if t == nil {
		return []RuleViolation{{Code: ViolationTicketNotFound, Field: "ticket", Message: fmt.Sprintf("ticket %q does not exist", id)}}
	}
	if t.Status != domain.TicketStatusOpen {
		return []RuleViolation{{Code: ViolationTicketNotOpen, Field: "ticket", Message: fmt.Sprintf("ticket %s is %s, only OPEN tickets can be scheduled", t.ID, t.Status)}}
	}
	return nil
}

// CheckTechnician applies the technician eligibility rule. A nil technician means it was not found.
func CheckTechnician(id string, t *domain.Technician) []RuleViolation {
	if t == nil {
		return []RuleViolation{{Code: ViolationTechnicianNotFound, Field: "technician", Message: fmt.Sprintf("technician %q does not exist", id)}}
	}
	if t.Status != domain.TechnicianStatusActive {
		return []RuleViolation{{Code: ViolationTechnicianNotActive, Field: "technician", Message: fmt.Sprintf("technician %s is %s, only ACTIVE technicians can be booked", t.Name, t.Status)}}
	}
	return nil
}

// Validator checks a candidate against freshly fetched entity state.
type Validator struct {
	tickets     TicketLookup
	technicians TechnicianLookup
	policy      Policy
	now         Clock
}

// NewValidator constructs a validator.
func NewValidator(tickets TicketLookup, technicians TechnicianLookup, policy Policy, now Clock) *Validator {
	if now == nil {
		now = time.Now
	}
	return &Validator{tickets: tickets, technicians: technicians, policy: policy, now: now}
}

// Validate returns every violated rule. A nil slice with a nil error means the
// candidate is acceptable right now. Errors are reserved for lookups that could
// not be answered.
func (v *Validator) Validate(ctx context.Context, c Candidate) ([]RuleViolation, error) {
	violations := CheckWindow(v.policy, c.Window(), v.now())

	ticket, err := v.fetchTicket(ctx, c.TicketID)
	if err != nil {
		return nil, err
	}
	violations = append(violations, CheckTicket(c.TicketID, ticket)...)

	technician, err := v.fetchTechnician(ctx, c.TechnicianID)
	if err != nil {
		return nil, err
	}
	violations = append(violations, CheckTechnician(c.TechnicianID, technician)...)

	return violations, nil
}

func (v *Validator) fetchTicket(ctx context.Context, id string) (*domain.Ticket, error) {
	if strings.TrimSpace(id) == "" {
		return nil, nil
	}
	t, err := v.tickets.GetTicketByID(ctx, id)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch ticket %s: %w", id, err)
	}
	return t, nil
}

func (v *Validator) fetchTechnician(ctx context.Context, id string) (*domain.Technician, error) {
	if strings.TrimSpace(id) == "" {
		return nil, nil
	}
	t, err := v.technicians.GetTechnicianByID(ctx, id)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch technician %s: %w", id, err)
	}
	return t, nil
}
