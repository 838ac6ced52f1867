package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/techdesk/internal/api/dto"
	"github.com/spec-kit/techdesk/internal/domain"
	"github.com/spec-kit/techdesk/internal/service"
	apperrors "github.com/spec-kit/techdesk/pkg/util/errorutil"
)

// TechniciansHandler exposes the technician roster and availability.
type TechniciansHandler struct {
	technicians  *service.TechnicianService
	appointments *service.AppointmentService
}

// NewTechniciansHandler constructs handler.
func NewTechniciansHandler(technicians *service.TechnicianService, appointments *service.AppointmentService) *TechniciansHandler {
	return &TechniciansHandler{technicians: technicians, appointments: appointments}
}

// List GET /technicians?status=ACTIVE.
func (h *TechniciansHandler) List(c *fiber.Ctx) error {
	var status *domain.TechnicianStatus
	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		s := domain.TechnicianStatus(strings.ToUpper(raw))
		status = &s
	}
	techs, err := h.technicians.List(c.UserContext(), status)
	if err != nil {
		return err
	}
	items := make([]dto.TechnicianResponse, 0, len(techs))
	for i := range techs {
		items = append(items, dto.TechnicianFromDomain(&techs[i]))
	}
	return c.JSON(dto.Envelope[[]dto.TechnicianResponse]{Data: items})
}

// Get GET /technicians/:id.
func (h *TechniciansHandler) Get(c *fiber.Ctx) error {
	tech, err := h.technicians.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(dto.Envelope[dto.TechnicianResponse]{Data: dto.TechnicianFromDomain(tech)})
}

// Update PATCH /technicians/:id.
func (h *TechniciansHandler) Update(c *fiber.Ctx) error {
	var req dto.UpdateTechnicianRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Status == nil {
		return apperrors.NewValidationError("status required", nil)
	}
	tech, err := h.technicians.UpdateStatus(c.UserContext(), c.Params("id"), *req.Status)
	if err != nil {
		return err
	}
	return c.JSON(dto.Envelope[dto.TechnicianResponse]{Data: dto.TechnicianFromDomain(tech)})
}

// Availability GET /technicians/:id/availability?start=&end=.
func (h *TechniciansHandler) Availability(c *fiber.Ctx) error {
	start, err := domain.ParseLocalTime(c.Query("start"))
	if err != nil {
		return apperrors.NewValidationError("start must use "+domain.LocalTimeLayout, nil)
	}
	end, err := domain.ParseLocalTime(c.Query("end"))
	if err != nil {
		return apperrors.NewValidationError("end must use "+domain.LocalTimeLayout, nil)
	}
	id := c.Params("id")
	available, err := h.appointments.CheckAvailability(c.UserContext(), id, start, end)
	if err != nil {
		return err
	}
	return c.JSON(dto.Envelope[dto.AvailabilityResponse]{Data: dto.AvailabilityResponse{
		TechnicianID: id,
		Start:        domain.FormatLocalTime(start),
		End:          domain.FormatLocalTime(end),
		Available:    available,
	}})
}
