package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/techdesk/internal/api/dto"
	"github.com/spec-kit/techdesk/internal/domain"
	"github.com/spec-kit/techdesk/internal/service"
	apperrors "github.com/spec-kit/techdesk/pkg/util/errorutil"
)

// AppointmentsHandler manages appointment endpoints.
type AppointmentsHandler struct {
	service *service.AppointmentService
}

// NewAppointmentsHandler constructs handler.
func NewAppointmentsHandler(appointmentService *service.AppointmentService) *AppointmentsHandler {
	return &AppointmentsHandler{service: appointmentService}
}

// Create POST /appointments.
func (h *AppointmentsHandler) Create(c *fiber.Ctx) error {
	var req dto.CreateAppointmentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.TicketID == "" || req.TechnicianID == "" {
		return apperrors.NewValidationError("ticket_id and technician_id required", nil)
	}
	start, err := domain.ParseLocalTime(req.ScheduledStartTime)
	if err != nil {
		return apperrors.NewValidationError("scheduled_start_time must use "+domain.LocalTimeLayout, nil)
	}
	end, err := domain.ParseLocalTime(req.ScheduledEndTime)
	if err != nil {
		return apperrors.NewValidationError("scheduled_end_time must use "+domain.LocalTimeLayout, nil)
	}

	appt, err := h.service.Create(c.UserContext(), service.AppointmentCreateInput{
		TicketID:     req.TicketID,
		TechnicianID: req.TechnicianID,
		Start:        start,
		End:          end,
		Notes:        req.Notes,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(dto.Envelope[dto.AppointmentResponse]{Data: dto.AppointmentFromDomain(appt)})
}

// List GET /appointments.
func (h *AppointmentsHandler) List(c *fiber.Ctx) error {
	appts, err := h.service.List(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(appointmentList(appts))
}

// Upcoming GET /appointments/upcoming?days_ahead=7.
func (h *AppointmentsHandler) Upcoming(c *fiber.Ctx) error {
	appts, err := h.service.ListUpcoming(c.UserContext(), c.QueryInt("days_ahead", 7))
	if err != nil {
		return err
	}
	return c.JSON(appointmentList(appts))
}

// Get GET /appointments/:id.
func (h *AppointmentsHandler) Get(c *fiber.Ctx) error {
	appt, err := h.service.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(dto.Envelope[dto.AppointmentResponse]{Data: dto.AppointmentFromDomain(appt)})
}

// Update PATCH /appointments/:id. Only notes can be changed in place; a new
// window or technician means cancel and rebook.
func (h *AppointmentsHandler) Update(c *fiber.Ctx) error {
	var req dto.UpdateAppointmentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Notes == nil {
		return apperrors.NewValidationError("notes required", nil)
	}
	appt, err := h.service.UpdateNotes(c.UserContext(), c.Params("id"), *req.Notes)
	if err != nil {
		return err
	}
	return c.JSON(dto.Envelope[dto.AppointmentResponse]{Data: dto.AppointmentFromDomain(appt)})
}

// Transition POST /appointments/:id/{confirm,start,complete,cancel,no-show}.
func (h *AppointmentsHandler) Transition(c *fiber.Ctx) error {
	action, ok := domain.ParseAppointmentAction(c.Params("action"))
	if !ok {
		return apperrors.NewNotFound("action", map[string]any{"action": c.Params("action")})
	}
	var req dto.TransitionRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apperrors.NewValidationError("invalid payload", nil)
		}
	}
	appt, err := h.service.Transition(c.UserContext(), c.Params("id"), action, strings.TrimSpace(req.Reason), req.Notes)
	if err != nil {
		return err
	}
	return c.JSON(dto.Envelope[dto.AppointmentResponse]{Data: dto.AppointmentFromDomain(appt)})
}

func appointmentList(appts []domain.Appointment) dto.Envelope[[]dto.AppointmentResponse] {
	items := make([]dto.AppointmentResponse, 0, len(appts))
	for i := range appts {
		items = append(items, dto.AppointmentFromDomain(&appts[i]))
	}
	return dto.Envelope[[]dto.AppointmentResponse]{Data: items}
}
