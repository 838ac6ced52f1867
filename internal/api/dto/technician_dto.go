package dto

import (
	"fmt"

	"github.com/spec-kit/techdesk/internal/domain"
)

// TechnicianResponse is the wire form of a technician.
type TechnicianResponse struct {
	ID        string                  `json:"id"`
	Name      string                  `json:"name"`
	Email     string                  `json:"email"`
	Status    domain.TechnicianStatus `json:"status"`
	Skills    []string                `json:"skills"`
	CreatedAt string                  `json:"created_at"`
	UpdatedAt string                  `json:"updated_at"`
}

// UpdateTechnicianRequest payload.
type UpdateTechnicianRequest struct {
	Status *domain.TechnicianStatus `json:"status"`
}

// AvailabilityResponse answers whether a technician is free for a window.
type AvailabilityResponse struct {
	TechnicianID string `json:"technician_id"`
	Start        string `json:"start"`
	End          string `json:"end"`
	Available    bool   `json:"available"`
}

// TechnicianFromDomain renders a technician for the wire.
func TechnicianFromDomain(t *domain.Technician) TechnicianResponse {
	skills := t.Skills
	if skills == nil {
		skills = []string{}
	}
	return TechnicianResponse{
		ID:        t.ID,
		Name:      t.Name,
		Email:     t.Email,
		Status:    t.Status,
		Skills:    skills,
		CreatedAt: formatOptional(t.CreatedAt),
		UpdatedAt: formatOptional(t.UpdatedAt),
	}
}

// ToDomain parses the wire form.
func (r TechnicianResponse) ToDomain() (*domain.Technician, error) {
	created, err := parseOptional(r.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("technician %s created_at: %w", r.ID, err)
	}
	updated, err := parseOptional(r.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("technician %s updated_at: %w", r.ID, err)
	}
	return &domain.Technician{
		ID:        r.ID,
		Name:      r.Name,
		Email:     r.Email,
		Status:    r.Status,
		Skills:    r.Skills,
		CreatedAt: created,
		UpdatedAt: updated,
	}, nil
}
