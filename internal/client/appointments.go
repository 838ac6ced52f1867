package client

import (
	"context"
	"net/url"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/techdesk/internal/api/dto"
	"github.com/spec-kit/techdesk/internal/domain"
	"github.com/spec-kit/techdesk/internal/scheduling"
)

var _ scheduling.Repository = (*Client)(nil)

// CreateAppointment submits a new appointment. The backend assigns the id and
// initial status.
func (c *Client) CreateAppointment(ctx context.Context, appt domain.Appointment) (*domain.Appointment, error) {
	return c.appointment(ctx, request{
		op:     "create appointment",
		method: fiber.MethodPost,
		path:   "/appointments",
		body: dto.CreateAppointmentRequest{
			TicketID:           appt.TicketID,
			TechnicianID:       appt.TechnicianID,
			ScheduledStartTime: domain.FormatLocalTime(appt.ScheduledStart),
			ScheduledEndTime:   domain.FormatLocalTime(appt.ScheduledEnd),
			Notes:              appt.Notes,
		},
	})
}

// GetAppointmentByID fetches one appointment.
func (c *Client) GetAppointmentByID(ctx context.Context, id string) (*domain.Appointment, error) {
	return c.appointment(ctx, request{op: "get appointment", method: fiber.MethodGet, path: pathID("/appointments/%s", id)})
}

// ConfirmAppointment moves a pending appointment to confirmed.
func (c *Client) ConfirmAppointment(ctx context.Context, id string) (*domain.Appointment, error) {
	return c.transition(ctx, id, "confirm", dto.TransitionRequest{})
}

// StartAppointment marks the visit as begun.
func (c *Client) StartAppointment(ctx context.Context, id string) (*domain.Appointment, error) {
	return c.transition(ctx, id, "start", dto.TransitionRequest{})
}

// CompleteAppointment closes the visit with optional notes.
func (c *Client) CompleteAppointment(ctx context.Context, id, notes string) (*domain.Appointment, error) {
	return c.transition(ctx, id, "complete", dto.TransitionRequest{Notes: notes})
}

// CancelAppointment cancels with a reason.
func (c *Client) CancelAppointment(ctx context.Context, id, reason string) (*domain.Appointment, error) {
	return c.transition(ctx, id, "cancel", dto.TransitionRequest{Reason: reason})
}

// MarkNoShow records that the customer was absent.
func (c *Client) MarkNoShow(ctx context.Context, id, notes string) (*domain.Appointment, error) {
	return c.transition(ctx, id, "no-show", dto.TransitionRequest{Notes: notes})
}

// UpdateAppointmentNotes replaces the notes of an appointment.
func (c *Client) UpdateAppointmentNotes(ctx context.Context, id, notes string) (*domain.Appointment, error) {
	return c.appointment(ctx, request{
		op:     "update appointment notes",
		method: fiber.MethodPatch,
		path:   pathID("/appointments/%s", id),
		body:   dto.UpdateAppointmentRequest{Notes: &notes},
	})
}

// ListAppointments lists every appointment.
func (c *Client) ListAppointments(ctx context.Context) ([]domain.Appointment, error) {
	return c.appointments(ctx, request{op: "list appointments", method: fiber.MethodGet, path: "/appointments"})
}

// ListUpcomingAppointments lists schedule-occupying appointments starting in the next daysAhead days.
func (c *Client) ListUpcomingAppointments(ctx context.Context, daysAhead int) ([]domain.Appointment, error) {
	return c.appointments(ctx, request{
		op:     "list upcoming appointments",
		method: fiber.MethodGet,
		path:   "/appointments/upcoming",
		query:  url.Values{"days_ahead": {strconv.Itoa(daysAhead)}},
	})
}

func (c *Client) transition(ctx context.Context, id, action string, body dto.TransitionRequest) (*domain.Appointment, error) {
	return c.appointment(ctx, request{
		op:     action + " appointment",
		method: fiber.MethodPost,
		path:   pathID("/appointments/%s/", id) + action,
		body:   body,
	})
}

func (c *Client) appointment(ctx context.Context, req request) (*domain.Appointment, error) {
	var resp dto.Envelope[dto.AppointmentResponse]
	if err := c.do(ctx, req, &resp); err != nil {
		return nil, err
	}
	return resp.Data.ToDomain()
}

func (c *Client) appointments(ctx context.Context, req request) ([]domain.Appointment, error) {
	var resp dto.Envelope[[]dto.AppointmentResponse]
	if err := c.do(ctx, req, &resp); err != nil {
		return nil, err
	}
	out := make([]domain.Appointment, 0, len(resp.Data))
	for _, item := range resp.Data {
		appt, err := item.ToDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, *appt)
	}
	return out, nil
}
