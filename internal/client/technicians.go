package client

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/techdesk/internal/api/dto"
	"github.com/spec-kit/techdesk/internal/domain"
)

// ErrWriteNotApplied is returned when the backend acknowledges a write but
// echoes back a value other than the one sent.
var ErrWriteNotApplied = errors.New("backend accepted the write but did not apply it")

// GetTechnicianByID fetches one technician.
func (c *Client) GetTechnicianByID(ctx context.Context, id string) (*domain.Technician, error) {
	var resp dto.Envelope[dto.TechnicianResponse]
	if err := c.do(ctx, request{op: "get technician", method: fiber.MethodGet, path: pathID("/technicians/%s", id)}, &resp); err != nil {
		return nil, err
	}
	return resp.Data.ToDomain()
}

// ListActiveTechnicians lists technicians that can currently be booked.
func (c *Client) ListActiveTechnicians(ctx context.Context) ([]domain.Technician, error) {
	query := url.Values{"status": {string(domain.TechnicianStatusActive)}}
	var resp dto.Envelope[[]dto.TechnicianResponse]
	if err := c.do(ctx, request{op: "list technicians", method: fiber.MethodGet, path: "/technicians", query: query}, &resp); err != nil {
		return nil, err
	}
	out := make([]domain.Technician, 0, len(resp.Data))
	for _, item := range resp.Data {
		tech, err := item.ToDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, *tech)
	}
	return out, nil
}

// UpdateTechnicianStatus sets a technician's status and checks that the
// backend really stored it.
func (c *Client) UpdateTechnicianStatus(ctx context.Context, id string, status domain.TechnicianStatus) (*domain.Technician, error) {
	var resp dto.Envelope[dto.TechnicianResponse]
	err := c.do(ctx, request{
		op:     "update technician",
		method: fiber.MethodPatch,
		path:   pathID("/technicians/%s", id),
		body:   dto.UpdateTechnicianRequest{Status: &status},
	}, &resp)
	if err != nil {
		return nil, err
	}
	tech, err := resp.Data.ToDomain()
	if err != nil {
		return nil, err
	}
	if tech.Status != status {
		return tech, fmt.Errorf("%w: technician %s is still %s", ErrWriteNotApplied, id, tech.Status)
	}
	return tech, nil
}

// CheckTechnicianAvailability asks the backend whether the technician is free
// for [start, end). Calls go through the circuit breaker.
func (c *Client) CheckTechnicianAvailability(ctx context.Context, technicianID string, start, end time.Time) (bool, error) {
	const op = "check availability"
	return c.breaker.execute(op, func() (bool, error) {
		query := url.Values{
			"start": {domain.FormatLocalTime(start)},
			"end":   {domain.FormatLocalTime(end)},
		}
		var resp dto.Envelope[dto.AvailabilityResponse]
		err := c.do(ctx, request{
			op:     op,
			method: fiber.MethodGet,
			path:   pathID("/technicians/%s/availability", technicianID),
			query:  query,
		}, &resp)
		if err != nil {
			return false, err
		}
		return resp.Data.Available, nil
	})
}
