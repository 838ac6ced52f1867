package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/spec-kit/techdesk/internal/domain"
)

// SeedDemoData fills empty repositories with a small, predictable data set:
// a mix of open and closed tickets, technicians in every status and a handful
// of appointments on the next working day. It returns without writing if any
// technician already exists.
func SeedDemoData(ctx context.Context, tickets TicketRepository, technicians TechnicianRepository, appointments AppointmentRepository, now time.Time) error {
	existing, err := technicians.List(ctx, nil)
	if err != nil {
		return fmt.Errorf("list technicians: %w", err)
	}
	if len(existing) > 0 {
		return nil
	}

	seededTickets := []domain.Ticket{
		{ClientID: "acme", Title: "Office printer jams on every job", Status: domain.TicketStatusOpen, Priority: domain.TicketPriorityHigh},
		{ClientID: "acme", Title: "Replace failing RAID disk", Status: domain.TicketStatusOpen, Priority: domain.TicketPriorityUrgent},
		{ClientID: "globex", Title: "Wi-Fi drops in meeting room 3", Status: domain.TicketStatusOpen, Priority: domain.TicketPriorityMedium},
		{ClientID: "globex", Title: "Install conference camera", Status: domain.TicketStatusInProgress, Priority: domain.TicketPriorityLow},
		{ClientID: "initech", Title: "Migrate mailboxes", Status: domain.TicketStatusClosed, Priority: domain.TicketPriorityMedium},
	}
	for i := range seededTickets {
		if err := tickets.Create(ctx, &seededTickets[i]); err != nil {
			return fmt.Errorf("seed ticket: %w", err)
		}
	}

	seededTechs := []domain.Technician{
		{Name: "Ada Lovelace", Email: "ada@techdesk.local", Status: domain.TechnicianStatusActive, Skills: []string{"hardware", "printers"}},
		{Name: "Grace Hopper", Email: "grace@techdesk.local", Status: domain.TechnicianStatusActive, Skills: []string{"networking"}},
		{Name: "Linus Torvalds", Email: "linus@techdesk.local", Status: domain.TechnicianStatusOnLeave, Skills: []string{"storage"}},
		{Name: "Ken Thompson", Email: "ken@techdesk.local", Status: domain.TechnicianStatusInactive, Skills: []string{"unix"}},
	}
	for i := range seededTechs {
		if err := technicians.Create(ctx, &seededTechs[i]); err != nil {
			return fmt.Errorf("seed technician: %w", err)
		}
	}

	day := nextWorkingDay(now)
	slot := func(hour, minutes int) time.Time {
		return time.Date(day.Year(), day.Month(), day.Day(), hour, minutes, 0, 0, time.Local)
	}
	seededAppts := []domain.Appointment{
		{TicketID: seededTickets[0].ID, TechnicianID: seededTechs[0].ID, ScheduledStart: slot(9, 0), ScheduledEnd: slot(10, 0), Status: domain.AppointmentStatusConfirmed, Notes: "bring replacement rollers"},
		{TicketID: seededTickets[1].ID, TechnicianID: seededTechs[0].ID, ScheduledStart: slot(13, 0), ScheduledEnd: slot(15, 0), Status: domain.AppointmentStatusPending},
		{TicketID: seededTickets[2].ID, TechnicianID: seededTechs[1].ID, ScheduledStart: slot(10, 30), ScheduledEnd: slot(11, 30), Status: domain.AppointmentStatusPending},
	}
	for i := range seededAppts {
		if err := appointments.Create(ctx, &seededAppts[i]); err != nil {
			return fmt.Errorf("seed appointment: %w", err)
		}
	}
	return nil
}

func nextWorkingDay(now time.Time) time.Time {
	day := now.AddDate(0, 0, 1)
	for day.Weekday() == time.Saturday || day.Weekday() == time.Sunday {
		day = day.AddDate(0, 0, 1)
	}
	return day
}
