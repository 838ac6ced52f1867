// Package client talks to the techdesk REST backend and implements the
// scheduling engine's repository on top of it.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/techdesk/internal/api/dto"
	"github.com/spec-kit/techdesk/internal/config"
	apperrors "github.com/spec-kit/techdesk/pkg/util/errorutil"
)

// Client is a REST collaborator for the scheduling engine. It holds no cached
// domain state; every method is a fresh round trip.
type Client struct {
	baseURL string
	timeout time.Duration
	session *session
	breaker *availabilityBreaker
	logger  *zap.Logger
}

// New builds a client for the backend described by cfg.
func New(cfg config.ClientConfig, breaker config.BreakerConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		timeout: cfg.RequestTimeout(),
		logger:  logger.Named("client"),
	}
	c.session = newSession(c, cfg.Email, cfg.Password, time.Now)
	c.breaker = newAvailabilityBreaker(breaker, c.logger)
	return c
}

// request describes one backend call.
type request struct {
	op     string
	method string
	path   string
	query  url.Values
	body   any
	anon   bool
}

// do performs the call and decodes a {"data": ...} envelope into out. Network
// failures become transport errors; HTTP rejections keep their status category.
func (c *Client) do(ctx context.Context, req request, out any) error {
	raw, err := c.send(ctx, req)
	if err != nil && !req.anon && apperrors.CategoryOf(err) == apperrors.CategoryUnauthorized {
		// The token was refused even though it looked fresh; log in once more.
		c.session.invalidate()
		raw, err = c.send(ctx, req)
	}
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		de := apperrors.NewDomainError("MALFORMED_RESPONSE", req.op+": unreadable response", http.StatusBadGateway, nil)
		de.Err = err
		return de
	}
	return nil
}

func (c *Client) send(ctx context.Context, req request) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.NewTransportError(req.op, err)
	}

	var bearer string
	if !req.anon {
		token, err := c.session.token(ctx)
		if err != nil {
			return nil, err
		}
		bearer = "Bearer " + token
	}

	target := c.baseURL + req.path
	if len(req.query) > 0 {
		target += "?" + req.query.Encode()
	}

	var agent *fiber.Agent
	switch req.method {
	case fiber.MethodGet:
		agent = fiber.Get(target)
	case fiber.MethodPost:
		agent = fiber.Post(target)
	case fiber.MethodPatch:
		agent = fiber.Patch(target)
	default:
		return nil, fmt.Errorf("%s: unsupported method %s", req.op, req.method)
	}
	agent.Set(fiber.HeaderAccept, fiber.MIMEApplicationJSON)
	if bearer != "" {
		agent.Set(fiber.HeaderAuthorization, bearer)
	}
	if req.body != nil {
		agent.JSON(req.body)
	}
	agent.Timeout(c.deadline(ctx))

	started := time.Now()
	status, raw, errs := agent.Bytes()
	c.logger.Debug("backend call",
		zap.String("op", req.op),
		zap.String("method", req.method),
		zap.String("path", req.path),
		zap.Int("status", status),
		zap.Duration("duration", time.Since(started)),
	)
	if len(errs) > 0 {
		return nil, apperrors.NewTransportError(req.op, errors.Join(errs...))
	}
	if status >= http.StatusBadRequest {
		return nil, rejection(req.op, status, raw)
	}
	return raw, nil
}

// deadline caps the transport timeout by the context deadline.
func (c *Client) deadline(ctx context.Context) time.Duration {
	timeout := c.timeout
	if dl, ok := ctx.Deadline(); ok {
		if remaining := time.Until(dl); remaining < timeout {
			timeout = remaining
		}
	}
	if timeout <= 0 {
		timeout = time.Millisecond
	}
	return timeout
}

// rejection turns an error response into a categorized DomainError.
func rejection(op string, status int, raw []byte) error {
	var envelope dto.ErrorEnvelope
	code := fmt.Sprintf("HTTP_%d", status)
	message := http.StatusText(status)
	var details map[string]any
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Error.Code != "" {
		code = envelope.Error.Code
		message = envelope.Error.Message
		details = envelope.Error.Details
	}
	return apperrors.NewDomainError(code, fmt.Sprintf("%s: %s", op, message), status, details)
}

func pathID(format string, id string) string {
	return fmt.Sprintf(format, url.PathEscape(id))
}
