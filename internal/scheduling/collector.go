package scheduling

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/techdesk/internal/domain"
	"github.com/spec-kit/techdesk/internal/events"
	apperrors "github.com/spec-kit/techdesk/pkg/util/errorutil"
)

// NoticeLevel grades messages shown to the operator.
type NoticeLevel int

const (
	NoticeInfo NoticeLevel = iota
	NoticeWarning
	NoticeCritical
)

// Prompter is the console seen by the interactive collector. Implementations
// return io.EOF when the operator closes input.
type Prompter interface {
	Ask(ctx context.Context, prompt string) (string, error)
	Confirm(ctx context.Context, prompt string) (bool, error)
	Choose(ctx context.Context, prompt string, options []string) (int, error)
	Notify(level NoticeLevel, message string)
}

// Input pre-fills the collector. Empty fields are asked for.
type Input struct {
	TicketID     string
	TechnicianID string
	Start        time.Time
	End          time.Time
	Notes        string
}

// UpdateInput describes requested changes to an existing appointment. Empty
// fields keep their current value.
type UpdateInput struct {
	TicketID     string
	TechnicianID string
	Start        time.Time
	End          time.Time
	Notes        *string
}

// acknowledgeWord must be typed to acknowledge a partial failure.
const acknowledgeWord = "ACK"

// BuildNewAppointment collects a candidate interactively, confirms it with the
// operator and submits it. It returns ErrCancelled if the operator backs out.
func (s *Scheduler) BuildNewAppointment(ctx context.Context, p Prompter, in Input) (*domain.Appointment, error) {
	c, err := s.collect(ctx, p, in)
	if err != nil {
		return nil, asCancelled(err)
	}

	p.Notify(NoticeInfo, describeCandidate(c))
	ok, err := p.Confirm(ctx, "Create this appointment?")
	if err != nil {
		return nil, asCancelled(err)
	}
	if !ok {
		return nil, ErrCancelled
	}

	outcome, err := s.Submit(ctx, c, SubmitOptions{})
	var unknown *AvailabilityUnknownError
	if errors.As(err, &unknown) {
		proceed, cerr := s.confirmDegraded(ctx, p, unknown)
		if cerr != nil {
			return nil, cerr
		}
		if !proceed {
			return nil, ErrCancelled
		}
		outcome, err = s.Submit(ctx, c, SubmitOptions{AllowDegraded: true})
	}
	if err != nil {
		reportFailure(p, err)
		return nil, err
	}

	if outcome.Degraded {
		p.Notify(NoticeWarning, fmt.Sprintf("Appointment %s was created in DEGRADED MODE without a live availability check. Verify the technician's schedule.", outcome.Appointment.ID))
	}
	p.Notify(NoticeInfo, fmt.Sprintf("Created appointment %s (%s).", outcome.Appointment.ID, outcome.Appointment.Status))
	return outcome.Appointment, nil
}

// BuildAppointmentUpdate applies in to existing. Notes change in place; a new
// technician or time window goes through cancel-and-recreate.
func (s *Scheduler) BuildAppointmentUpdate(ctx context.Context, p Prompter, existing domain.Appointment, in UpdateInput) (*domain.Appointment, error) {
	fresh, err := s.repo.GetAppointmentByID(ctx, existing.ID)
	if err != nil {
		return nil, fmt.Errorf("refresh appointment %s: %w", existing.ID, err)
	}
	if fresh.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: %s is %s", ErrAppointmentImmutable, fresh.ID, fresh.Status)
	}
	if in.TicketID != "" && in.TicketID != fresh.TicketID {
		return nil, ErrTicketImmutable
	}

	replacement, recreate := replacementFor(*fresh, in)
	if !recreate {
		return s.updateNotes(ctx, p, *fresh, in.Notes)
	}

	violations, err := s.validator.Validate(ctx, replacement)
	if err != nil {
		return nil, err
	}
	if len(violations) > 0 {
		for _, v := range violations {
			p.Notify(NoticeWarning, v.Message)
		}
		return nil, &ViolationError{Violations: violations}
	}

	opts := SubmitOptions{}
	err = s.preflightReplacement(ctx, *fresh, replacement)
	var unknown *AvailabilityUnknownError
	switch {
	case errors.As(err, &unknown):
		proceed, cerr := s.confirmDegraded(ctx, p, unknown)
		if cerr != nil {
			return nil, cerr
		}
		if !proceed {
			return nil, ErrCancelled
		}
		opts.AllowDegraded = true
	case err != nil:
		p.Notify(NoticeWarning, err.Error())
		return nil, err
	}

	p.Notify(NoticeWarning, fmt.Sprintf(
		"The backend cannot change the technician or time of an existing appointment. Appointment %s will be CANCELLED and a new one created:\n%s\nIf creation fails, %s stays cancelled and needs manual follow-up.",
		fresh.ID, describeCandidate(replacement), fresh.ID))
	ok, err := p.Confirm(ctx, "Cancel and recreate?")
	if err != nil {
		return nil, asCancelled(err)
	}
	if !ok {
		return nil, ErrCancelled
	}

	result, err := s.Recreate(ctx, *fresh, replacement, opts)
	var partial *PartialFailureError
	if errors.As(err, &partial) {
		s.acknowledge(ctx, p, partial)
		return nil, err
	}
	if err != nil {
		reportFailure(p, err)
		return nil, err
	}
	if result.Degraded {
		p.Notify(NoticeWarning, fmt.Sprintf("Replacement %s was created in DEGRADED MODE. Verify the technician's schedule.", result.Replacement.ID))
	}
	p.Notify(NoticeInfo, fmt.Sprintf("Appointment %s replaced by %s.", fresh.ID, result.Replacement.ID))
	return result.Replacement, nil
}

// preflightReplacement checks the replacement against the live schedule with
// the original left out, then asks the oracle. The oracle still counts the
// original, so a busy answer is ignored when the replacement keeps the
// technician and overlaps the original window. An unreachable oracle is
// reported before anything is cancelled.
func (s *Scheduler) preflightReplacement(ctx context.Context, original domain.Appointment, replacement Candidate) error {
	if err := s.detector.CheckAgainstSchedule(ctx, replacement.TechnicianID, replacement.Window(), original.ID); err != nil {
		return err
	}
	err := s.detector.Check(ctx, replacement.TechnicianID, replacement.Window())
	var conflict *ConflictError
	if errors.As(err, &conflict) && replacement.TechnicianID == original.TechnicianID && original.Window().Overlaps(replacement.Window()) {
		return nil
	}
	return err
}

func (s *Scheduler) updateNotes(ctx context.Context, p Prompter, appt domain.Appointment, notes *string) (*domain.Appointment, error) {
	if notes == nil {
		raw, err := p.Ask(ctx, fmt.Sprintf("Notes [%s]", appt.Notes))
		if err != nil {
			return nil, asCancelled(err)
		}
		if strings.TrimSpace(raw) == "" {
			return nil, ErrCancelled
		}
		notes = &raw
	}
	updated, err := s.repo.UpdateAppointmentNotes(ctx, appt.ID, strings.TrimSpace(*notes))
	if err != nil {
		reportFailure(p, err)
		return nil, fmt.Errorf("update notes of appointment %s: %w", appt.ID, err)
	}
	_ = s.dispatcher.Publish(ctx, events.New(events.EventAppointmentNotesUpdated, updated.ID, nil))
	p.Notify(NoticeInfo, fmt.Sprintf("Notes of appointment %s updated.", updated.ID))
	return updated, nil
}

// replacementFor merges the requested changes into a candidate and reports
// whether the technician or window actually changes.
func replacementFor(appt domain.Appointment, in UpdateInput) (Candidate, bool) {
	c := Candidate{
		TicketID:     appt.TicketID,
		TechnicianID: appt.TechnicianID,
		Start:        appt.ScheduledStart,
		End:          appt.ScheduledEnd,
		Notes:        appt.Notes,
	}
	if in.Notes != nil {
		c.Notes = *in.Notes
	}
	if in.TechnicianID != "" {
		c.TechnicianID = in.TechnicianID
	}
	if !in.Start.IsZero() {
		c.Start = in.Start
		if in.End.IsZero() {
			c.End = in.Start.Add(appt.Window().Duration())
		}
	}
	if !in.End.IsZero() {
		c.End = in.End
	}
	changed := c.TechnicianID != appt.TechnicianID ||
		!c.Start.Equal(appt.ScheduledStart) ||
		!c.End.Equal(appt.ScheduledEnd)
	return c, changed
}

func (s *Scheduler) collect(ctx context.Context, p Prompter, in Input) (Candidate, error) {
	var c Candidate

	ticket, err := s.collectTicket(ctx, p, in.TicketID)
	if err != nil {
		return c, err
	}
	c.TicketID = ticket.ID
	c.Ticket = domain.NewSnapshot(*ticket, s.now())

	tech, err := s.collectTechnician(ctx, p, in.TechnicianID)
	if err != nil {
		return c, err
	}
	c.TechnicianID = tech.ID
	c.Technician = domain.NewSnapshot(*tech, s.now())

	if err := s.collectWindow(ctx, p, &c, in.Start, in.End); err != nil {
		return c, err
	}

	c.Notes = in.Notes
	if c.Notes == "" {
		notes, err := p.Ask(ctx, "Notes (optional)")
		if err != nil {
			return c, err
		}
		c.Notes = strings.TrimSpace(notes)
	}
	return c, nil
}

func (s *Scheduler) collectTicket(ctx context.Context, p Prompter, id string) (*domain.Ticket, error) {
	for {
		if id == "" {
			raw, err := p.Ask(ctx, "Ticket ID (blank to cancel)")
			if err != nil {
				return nil, err
			}
			if id = strings.TrimSpace(raw); id == "" {
				return nil, ErrCancelled
			}
		}
		ticket, err := s.repo.GetTicketByID(ctx, id)
		if err != nil && !apperrors.IsNotFound(err) {
			return nil, fmt.Errorf("fetch ticket %s: %w", id, err)
		}
		if violations := CheckTicket(id, ticket); len(violations) > 0 {
			p.Notify(NoticeWarning, violations[0].Message)
			id = ""
			continue
		}
		return ticket, nil
	}
}

func (s *Scheduler) collectTechnician(ctx context.Context, p Prompter, id string) (*domain.Technician, error) {
	techs, err := s.repo.ListActiveTechnicians(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active technicians: %w", err)
	}
	if len(techs) == 0 {
		return nil, ErrNoActiveTechnicians
	}
	if id != "" {
		for i := range techs {
			if techs[i].ID == id {
				return &techs[i], nil
			}
		}
		p.Notify(NoticeWarning, fmt.Sprintf("technician %s is not in the active list", id))
	}

	options := make([]string, 0, len(techs))
	for _, t := range techs {
		label := t.Name
		if t.Email != "" {
			label = fmt.Sprintf("%s <%s>", t.Name, t.Email)
		}
		options = append(options, label)
	}
	idx, err := p.Choose(ctx, "Technician", options)
	if err != nil {
		return nil, err
	}
	if idx < 0 || idx >= len(techs) {
		return nil, ErrCancelled
	}
	return &techs[idx], nil
}

func (s *Scheduler) collectWindow(ctx context.Context, p Prompter, c *Candidate, start, end time.Time) error {
	for {
		if start.IsZero() {
			raw, err := p.Ask(ctx, "Start (YYYY-MM-DD HH:MM)")
			if err != nil {
				return err
			}
			parsed, err := ParseStart(raw)
			if err != nil {
				p.Notify(NoticeWarning, err.Error())
				continue
			}
			start = parsed
		}
		if end.IsZero() {
			raw, err := p.Ask(ctx, "End (HH:MM, YYYY-MM-DD HH:MM or a duration like 90m)")
			if err != nil {
				return err
			}
			parsed, err := ParseEnd(start, raw)
			if err != nil {
				p.Notify(NoticeWarning, err.Error())
				continue
			}
			end = parsed
		}

		window := domain.TimeRange{Start: start, End: end}
		if violations := CheckWindow(s.policy, window, s.now()); len(violations) > 0 {
			for _, v := range violations {
				p.Notify(NoticeWarning, v.Message)
			}
			start, end = time.Time{}, time.Time{}
			continue
		}

		err := s.detector.Check(ctx, c.TechnicianID, window)
		var conflict *ConflictError
		var unknown *AvailabilityUnknownError
		switch {
		case errors.As(err, &conflict):
			p.Notify(NoticeWarning, conflict.Error())
			start, end = time.Time{}, time.Time{}
			continue
		case errors.As(err, &unknown):
			p.Notify(NoticeWarning, "Availability could not be checked right now; it is checked again before the appointment is created.")
		case err != nil:
			return err
		}

		c.Start, c.End = start, end
		return nil
	}
}

func (s *Scheduler) confirmDegraded(ctx context.Context, p Prompter, unknown *AvailabilityUnknownError) (bool, error) {
	p.Notify(NoticeWarning, unknown.Error())
	ok, err := p.Confirm(ctx, "Proceed WITHOUT full validation? This is recorded as a degraded-mode action")
	if err != nil {
		return false, asCancelled(err)
	}
	if !ok {
		s.logger.Info("operator declined degraded-mode override", zap.String("technician_id", unknown.TechnicianID))
	}
	return ok, nil
}

// acknowledge blocks until the operator types the acknowledgment word or input ends.
func (s *Scheduler) acknowledge(ctx context.Context, p Prompter, partial *PartialFailureError) {
	p.Notify(NoticeCritical, partial.Error())
	for {
		raw, err := p.Ask(ctx, fmt.Sprintf("Type %s to acknowledge", acknowledgeWord))
		if err != nil {
			s.logger.Error("partial failure left unacknowledged", zap.String("saga_id", partial.SagaID), zap.Error(err))
			return
		}
		if strings.EqualFold(strings.TrimSpace(raw), acknowledgeWord) {
			partial.Acknowledged = true
			s.logger.Warn("partial failure acknowledged by operator", zap.String("saga_id", partial.SagaID))
			return
		}
	}
}

func reportFailure(p Prompter, err error) {
	var subErr *SubmissionError
	var violations *ViolationError
	switch {
	case errors.As(err, &subErr):
		msg := fmt.Sprintf("%s\nNext step: %s", subErr.Error(), subErr.Hint())
		if subErr.Report != nil {
			msg += "\nDiagnosis: " + subErr.Report.Conclusion()
		}
		p.Notify(NoticeWarning, msg)
	case errors.As(err, &violations):
		for _, v := range violations.Violations {
			p.Notify(NoticeWarning, v.Message)
		}
	default:
		if category := apperrors.CategoryOf(err); category != "" {
			p.Notify(NoticeWarning, fmt.Sprintf("%s\nNext step: %s", err.Error(), category.Hint()))
			return
		}
		p.Notify(NoticeWarning, err.Error())
	}
}

func describeCandidate(c Candidate) string {
	ticket := c.TicketID
	if c.Ticket != nil {
		ticket = fmt.Sprintf("%s (%s)", c.TicketID, c.Ticket.Value.Title)
	}
	tech := c.TechnicianID
	if c.Technician != nil {
		tech = c.Technician.Value.Name
	}
	desc := fmt.Sprintf("  ticket:     %s\n  technician: %s\n  window:     %s (%s)", ticket, tech, c.Window(), c.Window().Duration())
	if c.Notes != "" {
		desc += "\n  notes:      " + c.Notes
	}
	return desc
}

func asCancelled(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
		return ErrCancelled
	}
	return err
}

var startLayouts = []string{"2006-01-02 15:04", "2006-01-02T15:04", domain.LocalTimeLayout}

// ParseStart reads an operator-entered start time in the local zone.
func ParseStart(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range startLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot read %q as a start time; use YYYY-MM-DD HH:MM", raw)
}

// ParseEnd reads an end time as a full timestamp, a clock time on the start's
// day, or a duration after start.
func ParseEnd(start time.Time, raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := ParseStart(raw); err == nil {
		return t, nil
	}
	if clock, err := time.Parse("15:04", raw); err == nil {
		return time.Date(start.Year(), start.Month(), start.Day(), clock.Hour(), clock.Minute(), 0, 0, start.Location()), nil
	}
	if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		return start.Add(d), nil
	}
	return time.Time{}, fmt.Errorf("cannot read %q as an end time; use HH:MM, YYYY-MM-DD HH:MM or a duration like 90m", raw)
}
