package scheduling

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spec-kit/techdesk/internal/domain"
	apperrors "github.com/spec-kit/techdesk/pkg/util/errorutil"
)

// CheckName identifies a diagnostic check.
type CheckName string

const (
	CheckTicketStatus     CheckName = "ticket_status"
	CheckTechnicianStatus CheckName = "technician_status"
	CheckScheduleConflict CheckName = "schedule_conflict"
	CheckTimeWindow       CheckName = "time_window"
)

// CheckStatus is the outcome of one diagnostic check.
type CheckStatus string

const (
	CheckPassed       CheckStatus = "pass"
	CheckFailed       CheckStatus = "fail"
	CheckInconclusive CheckStatus = "inconclusive"
)

// DiagnosticCheck is one re-verified precondition.
type DiagnosticCheck struct {
	Name       CheckName
	Status     CheckStatus
	Detail     string
	Hypothesis string
}

// DiagnosticReport explains a failed submission.
type DiagnosticReport struct {
	Candidate Candidate
	Cause     error
	Checks    []DiagnosticCheck
	RanAt     time.Time
}

// Failed returns the checks whose precondition no longer holds.
func (r *DiagnosticReport) Failed() []DiagnosticCheck {
	return r.withStatus(CheckFailed)
}

// StaleValidation reports whether at least one precondition changed after the
// candidate was validated.
func (r *DiagnosticReport) StaleValidation() bool {
	return len(r.Failed()) > 0
}

// Conclusion summarises the report in one sentence.
func (r *DiagnosticReport) Conclusion() string {
	if failed := r.Failed(); len(failed) > 0 {
		names := make([]string, 0, len(failed))
		for _, c := range failed {
			names = append(names, string(c.Name))
		}
		return fmt.Sprintf("stale local validation: %s changed after the candidate was checked", strings.Join(names, ", "))
	}
	if len(r.withStatus(CheckInconclusive)) > 0 {
		return "inconclusive: some preconditions could not be re-checked"
	}
	return "all preconditions still hold; the rejection is most likely a backend-side fault"
}

func (r *DiagnosticReport) withStatus(status CheckStatus) []DiagnosticCheck {
	var out []DiagnosticCheck
	for _, c := range r.Checks {
		if c.Status == status {
			out = append(out, c)
		}
	}
	return out
}

// Diagnostician re-runs each precondition on its own after a failed submission.
// It only reads.
type Diagnostician struct {
	tickets     TicketLookup
	technicians TechnicianLookup
	detector    *ConflictDetector
	policy      Policy
	now         Clock
}

// NewDiagnostician constructs a diagnostician.
func NewDiagnostician(tickets TicketLookup, technicians TechnicianLookup, detector *ConflictDetector, policy Policy, now Clock) *Diagnostician {
	if now == nil {
		now = time.Now
	}
	return &Diagnostician{tickets: tickets, technicians: technicians, detector: detector, policy: policy, now: now}
}

// Run checks ticket, technician, schedule and time window, in that order.
func (d *Diagnostician) Run(ctx context.Context, c Candidate, cause error) *DiagnosticReport {
	report := &DiagnosticReport{Candidate: c, Cause: cause, RanAt: d.now()}
	report.Checks = append(report.Checks,
		d.checkTicket(ctx, c),
		d.checkTechnician(ctx, c),
		d.checkConflict(ctx, c),
		d.checkWindow(c),
	)
	return report
}

func (d *Diagnostician) checkTicket(ctx context.Context, c Candidate) DiagnosticCheck {
	check := DiagnosticCheck{Name: CheckTicketStatus}
	ticket, err := d.tickets.GetTicketByID(ctx, c.TicketID)
	switch {
	case apperrors.IsNotFound(err):
		check.Status = CheckFailed
		check.Detail = fmt.Sprintf("ticket %s no longer exists", c.TicketID)
		check.Hypothesis = "the ticket was removed or merged after it was selected"
		return check
	case err != nil:
		return inconclusive(check, err)
	}
	if ticket.Status == domain.TicketStatusOpen {
		check.Status = CheckPassed
		check.Detail = fmt.Sprintf("ticket %s is still OPEN", ticket.ID)
		return check
	}
	check.Status = CheckFailed
	check.Detail = fmt.Sprintf("ticket %s is now %s", ticket.ID, ticket.Status)
	check.Hypothesis = "the ticket's status changed while the appointment was being entered"
	if snap := c.Ticket; snap != nil && snap.Value.Status != ticket.Status {
		check.Hypothesis = fmt.Sprintf("the ticket moved from %s to %s within %s of being selected; another operator likely updated it",
			snap.Value.Status, ticket.Status, snap.Age(d.now()).Round(time.Second))
	}
	return check
}

func (d *Diagnostician) checkTechnician(ctx context.Context, c Candidate) DiagnosticCheck {
	check := DiagnosticCheck{Name: CheckTechnicianStatus}
	tech, err := d.technicians.GetTechnicianByID(ctx, c.TechnicianID)
	switch {
	case apperrors.IsNotFound(err):
		check.Status = CheckFailed
		check.Detail = fmt.Sprintf("technician %s no longer exists", c.TechnicianID)
		check.Hypothesis = "the technician record was removed after selection"
		return check
	case err != nil:
		return inconclusive(check, err)
	}
	if tech.Status == domain.TechnicianStatusActive {
		check.Status = CheckPassed
		check.Detail = fmt.Sprintf("technician %s is still ACTIVE", tech.Name)
		return check
	}
	check.Status = CheckFailed
	check.Detail = fmt.Sprintf("technician %s is now %s", tech.Name, tech.Status)
	check.Hypothesis = "the technician was deactivated or put on leave during data entry"
	if snap := c.Technician; snap != nil && snap.Value.Status != tech.Status {
		check.Hypothesis = fmt.Sprintf("the technician moved from %s to %s within %s of being selected",
			snap.Value.Status, tech.Status, snap.Age(d.now()).Round(time.Second))
	}
	return check
}

func (d *Diagnostician) checkConflict(ctx context.Context, c Candidate) DiagnosticCheck {
	check := DiagnosticCheck{Name: CheckScheduleConflict}
	err := d.detector.Check(ctx, c.TechnicianID, c.Window())
	var conflict *ConflictError
	switch {
	case err == nil:
		check.Status = CheckPassed
		check.Detail = fmt.Sprintf("no overlapping booking during %s", c.Window())
	case errors.As(err, &conflict):
		check.Status = CheckFailed
		check.Detail = conflict.Error()
		check.Hypothesis = "another operator booked the technician into this window after the conflict check"
	default:
		return inconclusive(check, err)
	}
	return check
}

func (d *Diagnostician) checkWindow(c Candidate) DiagnosticCheck {
	check := DiagnosticCheck{Name: CheckTimeWindow}
	violations := CheckWindow(d.policy, c.Window(), d.now())
	if len(violations) == 0 {
		check.Status = CheckPassed
		check.Detail = fmt.Sprintf("%s satisfies duration and lead-time rules", c.Window())
		return check
	}
	parts := make([]string, 0, len(violations))
	for _, v := range violations {
		parts = append(parts, v.Message)
	}
	check.Status = CheckFailed
	check.Detail = strings.Join(parts, "; ")
	check.Hypothesis = "the requested window breaks the duration rules; it was submitted without local validation"
	if len(violations) == 1 && violations[0].Code == ViolationStartNotInFuture {
		check.Hypothesis = "time elapsed during data entry pushed the start inside the lead-time limit"
	}
	return check
}

func inconclusive(check DiagnosticCheck, err error) DiagnosticCheck {
	check.Status = CheckInconclusive
	check.Detail = err.Error()
	check.Hypothesis = "the backend could not be queried; the precondition is unknown"
	return check
}
