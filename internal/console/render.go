package console

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/spec-kit/techdesk/internal/domain"
	"github.com/spec-kit/techdesk/internal/scheduling"
)

const (
	columnWidthID     = 38
	columnWidthWindow = 24
	columnWidthStatus = 13
)

// Renderer prints tables and reports.
type Renderer struct {
	out    io.Writer
	lip    *lipgloss.Renderer
	styles styles
}

// NewRenderer builds a renderer for out.
func NewRenderer(out io.Writer) *Renderer {
	lip := lipgloss.NewRenderer(out)
	return &Renderer{out: out, lip: lip, styles: newStyles(lip)}
}

// Appointments prints one row per appointment. techName resolves technician
// ids to display names; unknown ids print as is.
func (r *Renderer) Appointments(appts []domain.Appointment, techName func(id string) string) {
	if len(appts) == 0 {
		fmt.Fprintln(r.out, r.styles.faint.Render("no appointments"))
		return
	}
	id := r.styles.header.Width(columnWidthID)
	window := r.styles.header.Width(columnWidthWindow)
	status := r.styles.header.Width(columnWidthStatus)
	fmt.Fprintln(r.out, id.Render("ID")+window.Render("WINDOW")+status.Render("STATUS")+r.styles.header.Render("TECHNICIAN"))

	for _, appt := range appts {
		name := appt.TechnicianID
		if techName != nil {
			if resolved := techName(appt.TechnicianID); resolved != "" {
				name = resolved
			}
		}
		fmt.Fprintln(r.out,
			r.styles.faint.Width(columnWidthID).Render(appt.ID)+
				r.lip.NewStyle().Width(columnWidthWindow).Render(appt.Window().String())+
				r.statusStyle(appt.Status).Width(columnWidthStatus).Render(string(appt.Status))+
				name)
	}
}

// Appointment prints a single appointment with its notes.
func (r *Renderer) Appointment(appt domain.Appointment) {
	fmt.Fprintf(r.out, "%s %s\n", r.styles.heading.Render("Appointment"), appt.ID)
	fmt.Fprintf(r.out, "  ticket      %s\n", appt.TicketID)
	fmt.Fprintf(r.out, "  technician  %s\n", appt.TechnicianID)
	fmt.Fprintf(r.out, "  window      %s\n", appt.Window())
	fmt.Fprintf(r.out, "  status      %s\n", r.statusStyle(appt.Status).Render(string(appt.Status)))
	if appt.Notes != "" {
		fmt.Fprintf(r.out, "  notes       %s\n", appt.Notes)
	}
	if appt.CancellationReason != "" {
		fmt.Fprintf(r.out, "  cancelled   %s\n", appt.CancellationReason)
	}
}

// Report prints a diagnostic report check by check.
func (r *Renderer) Report(report *scheduling.DiagnosticReport) {
	if report == nil {
		return
	}
	fmt.Fprintln(r.out, r.styles.heading.Render("Diagnostics"))
	for _, check := range report.Checks {
		var mark string
		switch check.Status {
		case scheduling.CheckPassed:
			mark = r.styles.pass.Render("PASS")
		case scheduling.CheckFailed:
			mark = r.styles.fail.Render("FAIL")
		default:
			mark = r.styles.unknown.Render("????")
		}
		fmt.Fprintf(r.out, "  %s %-18s %s\n", mark, check.Name, check.Detail)
		if check.Hypothesis != "" {
			fmt.Fprintf(r.out, "       %s\n", r.styles.faint.Render("likely: "+check.Hypothesis))
		}
	}
	fmt.Fprintln(r.out, "  "+strings.TrimSpace(report.Conclusion()))
}

func (r *Renderer) statusStyle(status domain.AppointmentStatus) lipgloss.Style {
	switch status {
	case domain.AppointmentStatusCompleted:
		return r.styles.pass
	case domain.AppointmentStatusCancelled, domain.AppointmentStatusNoShow:
		return r.styles.faint
	case domain.AppointmentStatusInProgress:
		return r.styles.warning
	}
	return r.lip.NewStyle()
}
