package client

import (
	"context"
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/techdesk/internal/api/dto"
	"github.com/spec-kit/techdesk/internal/domain"
)

// GetTicketByID fetches one ticket.
func (c *Client) GetTicketByID(ctx context.Context, id string) (*domain.Ticket, error) {
	var resp dto.Envelope[dto.TicketResponse]
	if err := c.do(ctx, request{op: "get ticket", method: fiber.MethodGet, path: pathID("/tickets/%s", id)}, &resp); err != nil {
		return nil, err
	}
	return resp.Data.ToDomain()
}

// ListTickets lists tickets, optionally filtered by status.
func (c *Client) ListTickets(ctx context.Context, statuses ...domain.TicketStatus) ([]domain.Ticket, error) {
	query := url.Values{}
	if len(statuses) > 0 {
		names := make([]string, 0, len(statuses))
		for _, s := range statuses {
			names = append(names, string(s))
		}
		query.Set("status", strings.Join(names, ","))
	}
	var resp dto.Envelope[[]dto.TicketResponse]
	if err := c.do(ctx, request{op: "list tickets", method: fiber.MethodGet, path: "/tickets", query: query}, &resp); err != nil {
		return nil, err
	}
	out := make([]domain.Ticket, 0, len(resp.Data))
	for _, item := range resp.Data {
		ticket, err := item.ToDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, *ticket)
	}
	return out, nil
}
