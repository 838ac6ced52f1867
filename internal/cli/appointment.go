package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/spec-kit/techdesk/internal/domain"
	"github.com/spec-kit/techdesk/internal/scheduling"
)

type windowFlags struct {
	ticket     string
	technician string
	start      string
	end        string
}

func (f *windowFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.ticket, "ticket", "", "ticket id")
	cmd.Flags().StringVar(&f.technician, "technician", "", "technician id")
	cmd.Flags().StringVar(&f.start, "start", "", "start, e.g. \"2030-03-05 10:00\"")
	cmd.Flags().StringVar(&f.end, "end", "", "end as a timestamp, HH:MM on the start day, or a duration such as 90m")
}

// window parses the start and end flags. Missing values come back zero.
func (f *windowFlags) window(base time.Time) (time.Time, time.Time, error) {
	var start, end time.Time
	var err error
	if f.start != "" {
		if start, err = scheduling.ParseStart(f.start); err != nil {
			return start, end, fmt.Errorf("--start: %w", err)
		}
		base = start
	}
	if f.end != "" {
		if base.IsZero() {
			return start, end, fmt.Errorf("--end needs a start")
		}
		if end, err = scheduling.ParseEnd(base, f.end); err != nil {
			return start, end, fmt.Errorf("--end: %w", err)
		}
	}
	return start, end, nil
}

func newAppointmentCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "appointment",
		Aliases: []string{"appt"},
		Short:   "Book, change and progress appointments",
	}
	cmd.AddCommand(
		newAppointmentNewCommand(),
		newAppointmentUpdateCommand(),
		newAppointmentTransitionCommand(),
		newAppointmentDiagnoseCommand(),
		newAppointmentUpcomingCommand(),
		newAppointmentListCommand(),
	)
	return cmd
}

func newAppointmentNewCommand() *cobra.Command {
	var (
		flags windowFlags
		notes string
	)
	cmd := &cobra.Command{
		Use:   "new",
		Short: "Book a technician against a ticket",
		Long: `Book a technician against an open ticket. Anything not given as a flag is asked for.

Examples:
  techdesk appointment new
  techdesk appointment new --ticket 7f3c... --start "2030-03-05 10:00" --end 90m`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt := appFrom(cmd)
			start, end, err := flags.window(time.Time{})
			if err != nil {
				return err
			}
			appt, err := rt.scheduler.BuildNewAppointment(cmd.Context(), rt.terminal, scheduling.Input{
				TicketID:     flags.ticket,
				TechnicianID: flags.technician,
				Start:        start,
				End:          end,
				Notes:        notes,
			})
			if err != nil {
				return err
			}
			rt.render.Appointment(*appt)
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&notes, "notes", "", "free-form notes")
	return cmd
}

func newAppointmentUpdateCommand() *cobra.Command {
	var (
		flags windowFlags
		notes string
	)
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change the notes, technician or window of an appointment",
		Long: `Notes change in place. A new technician or window cancels the appointment
and books a replacement; if the replacement fails the original stays cancelled
and must be acknowledged.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt := appFrom(cmd)
			existing, err := rt.backend.GetAppointmentByID(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			base := time.Time{}
			if flags.start == "" {
				base = existing.ScheduledStart
			}
			start, end, err := flags.window(base)
			if err != nil {
				return err
			}
			in := scheduling.UpdateInput{
				TicketID:     flags.ticket,
				TechnicianID: flags.technician,
				Start:        start,
				End:          end,
			}
			if cmd.Flags().Changed("notes") {
				in.Notes = &notes
			}
			appt, err := rt.scheduler.BuildAppointmentUpdate(cmd.Context(), rt.terminal, *existing, in)
			if err != nil {
				return err
			}
			rt.render.Appointment(*appt)
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&notes, "notes", "", "replacement notes")
	return cmd
}

func newAppointmentTransitionCommand() *cobra.Command {
	var params scheduling.TransitionParams
	cmd := &cobra.Command{
		Use:   "transition <id> <confirm|start|complete|cancel|no-show>",
		Short: "Move an appointment through its lifecycle",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt := appFrom(cmd)
			action, ok := domain.ParseAppointmentAction(args[1])
			if !ok {
				return fmt.Errorf("unknown action %q", args[1])
			}
			current, err := rt.backend.GetAppointmentByID(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if action == domain.ActionCancel && strings.TrimSpace(params.Reason) == "" {
				reason, err := rt.terminal.Ask(cmd.Context(), "Cancellation reason")
				if err != nil {
					return scheduling.ErrCancelled
				}
				params.Reason = reason
			}
			updated, err := rt.scheduler.Transition(cmd.Context(), *current, action, params)
			if err != nil {
				return err
			}
			rt.render.Appointment(*updated)
			return nil
		},
	}
	cmd.Flags().StringVar(&params.Reason, "reason", "", "cancellation reason")
	cmd.Flags().StringVar(&params.Notes, "notes", "", "notes recorded with complete or no-show")
	return cmd
}

func newAppointmentDiagnoseCommand() *cobra.Command {
	var flags windowFlags
	cmd := &cobra.Command{
		Use:   "diagnose",
		Short: "Re-check every precondition of a booking without submitting it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt := appFrom(cmd)
			if flags.ticket == "" || flags.technician == "" || flags.start == "" || flags.end == "" {
				return fmt.Errorf("--ticket, --technician, --start and --end are required")
			}
			start, end, err := flags.window(time.Time{})
			if err != nil {
				return err
			}
			report := rt.scheduler.RunDiagnostics(cmd.Context(), scheduling.Candidate{
				TicketID:     flags.ticket,
				TechnicianID: flags.technician,
				Start:        start,
				End:          end,
			}, nil)
			rt.render.Report(report)
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func newAppointmentUpcomingCommand() *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "upcoming",
		Short: "List appointments that occupy the schedule in the coming days",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt := appFrom(cmd)
			if !cmd.Flags().Changed("days") && rt.days > 0 {
				days = rt.days
			}
			appts, err := rt.backend.ListUpcomingAppointments(cmd.Context(), days)
			if err != nil {
				return err
			}
			rt.render.Appointments(appts, rt.technicianNames(cmd))
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 7, "days ahead to include")
	return cmd
}

func newAppointmentListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every appointment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt := appFrom(cmd)
			appts, err := rt.backend.ListAppointments(cmd.Context())
			if err != nil {
				return err
			}
			rt.render.Appointments(appts, rt.technicianNames(cmd))
			return nil
		},
	}
}

// technicianNames resolves ids to names from the active roster. Inactive
// technicians print by id.
func (rt *app) technicianNames(cmd *cobra.Command) func(string) string {
	techs, err := rt.backend.ListActiveTechnicians(cmd.Context())
	if err != nil {
		return nil
	}
	names := make(map[string]string, len(techs))
	for _, t := range techs {
		names[t.ID] = t.Name
	}
	return func(id string) string { return names[id] }
}
