package client

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/techdesk/internal/config"
	"github.com/spec-kit/techdesk/internal/domain"
	"github.com/spec-kit/techdesk/internal/repository"
	"github.com/spec-kit/techdesk/internal/sandbox"
	"github.com/spec-kit/techdesk/internal/scheduling"
	apperrors "github.com/spec-kit/techdesk/pkg/util/errorutil"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

type backend struct {
	client *Client
	clock  *testClock
	ticket string
	closed string
	tech   string
}

func serve(t *testing.T, app *fiber.App) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = app.Listener(ln) }()
	t.Cleanup(func() { _ = app.Shutdown() })
	return "http://" + ln.Addr().String()
}

func clientConfig(baseURL string) config.ClientConfig {
	return config.ClientConfig{
		BaseURL:               baseURL,
		Email:                 "operator@example.com",
		Password:              "operator",
		RequestTimeoutSeconds: 5,
	}
}

func startBackend(t *testing.T, breaker config.BreakerConfig) *backend {
	t.Helper()
	ctx := context.Background()
	b := &backend{clock: &testClock{t: time.Date(2030, 3, 4, 8, 0, 0, 0, time.Local)}}

	store := repository.NewMemoryStore()
	open := &domain.Ticket{Title: "Printer", Status: domain.TicketStatusOpen, Priority: domain.TicketPriorityHigh}
	closed := &domain.Ticket{Title: "Done", Status: domain.TicketStatusClosed, Priority: domain.TicketPriorityLow}
	tech := &domain.Technician{Name: "Ada", Email: "ada@example.com", Status: domain.TechnicianStatusActive}
	require.NoError(t, store.Tickets().Create(ctx, open))
	require.NoError(t, store.Tickets().Create(ctx, closed))
	require.NoError(t, store.Technicians().Create(ctx, tech))
	b.ticket, b.closed, b.tech = open.ID, closed.ID, tech.ID

	cfg := &config.Config{
		App: config.AppConfig{Name: "techdesk-test"},
		Auth: config.AuthConfig{
			JWTSecret:             "test-secret",
			AccessTokenTTLMinutes: 30,
			BcryptCost:            4,
			OperatorEmail:         "operator@example.com",
			OperatorPassword:      "operator",
		},
	}
	sb, err := sandbox.New(ctx, cfg, zap.NewNop(), sandbox.Options{Store: store, Now: b.clock.Now})
	require.NoError(t, err)
	t.Cleanup(sb.Close)

	b.client = New(clientConfig(serve(t, sb.App)), breaker, zap.NewNop())
	return b
}

func slot(hour int) time.Time {
	return time.Date(2030, 3, 5, hour, 0, 0, 0, time.Local)
}

func TestReadsThroughTheBackend(t *testing.T) {
	b := startBackend(t, config.BreakerConfig{})
	ctx := context.Background()

	ticket, err := b.client.GetTicketByID(ctx, b.ticket)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusOpen, ticket.Status)

	techs, err := b.client.ListActiveTechnicians(ctx)
	require.NoError(t, err)
	require.Len(t, techs, 1)
	assert.Equal(t, "Ada", techs[0].Name)

	open, err := b.client.ListTickets(ctx, domain.TicketStatusOpen)
	require.NoError(t, err)
	assert.Len(t, open, 1)

	all, err := b.client.ListTickets(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestRejectionsKeepTheirCategory(t *testing.T) {
	b := startBackend(t, config.BreakerConfig{})
	ctx := context.Background()

	_, err := b.client.GetTicketByID(ctx, "missing")
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))

	_, err = b.client.CreateAppointment(ctx, domain.Appointment{
		TicketID: b.closed, TechnicianID: b.tech, ScheduledStart: slot(10), ScheduledEnd: slot(11),
	})
	de := apperrors.ToDomainError(err)
	assert.Equal(t, apperrors.CategoryStateConflict, de.Category)
	assert.Equal(t, "TICKET_NOT_OPEN", de.Code)

	_, err = b.client.CancelAppointment(ctx, "missing", "reason")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestUnreachableBackendIsTransportFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	c := New(clientConfig("http://"+addr), config.BreakerConfig{}, zap.NewNop())
	_, err = c.GetTechnicianByID(context.Background(), "tech")
	require.Error(t, err)
	assert.True(t, apperrors.IsTransport(err))
	assert.True(t, apperrors.IsUnavailable(err))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.ListAppointments(ctx)
	assert.True(t, apperrors.IsTransport(err))
}

func TestAvailabilityBreakerOpensOnTransportFailures(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	c := New(clientConfig("http://"+addr), config.BreakerConfig{Enabled: true, FailureThreshold: 2, OpenTimeoutSeconds: 60}, zap.NewNop())
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		_, err := c.CheckTechnicianAvailability(ctx, "tech", slot(10), slot(11))
		require.True(t, apperrors.IsTransport(err))
		assert.False(t, errors.Is(err, gobreaker.ErrOpenState))
	}
	_, err = c.CheckTechnicianAvailability(ctx, "tech", slot(10), slot(11))
	assert.True(t, apperrors.IsTransport(err))
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, gobreaker.StateOpen, c.breaker.state())
}

func TestAvailabilityBreakerIgnoresRejections(t *testing.T) {
	b := startBackend(t, config.BreakerConfig{Enabled: true, FailureThreshold: 1, OpenTimeoutSeconds: 60})
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := b.client.CheckTechnicianAvailability(ctx, "ghost", slot(10), slot(11))
		assert.True(t, apperrors.IsNotFound(err))
	}
	assert.Equal(t, gobreaker.StateClosed, b.client.breaker.state())

	free, err := b.client.CheckTechnicianAvailability(ctx, b.tech, slot(10), slot(11))
	require.NoError(t, err)
	assert.True(t, free)
}

func TestSchedulerAgainstSandbox(t *testing.T) {
	b := startBackend(t, config.BreakerConfig{Enabled: true, FailureThreshold: 3, OpenTimeoutSeconds: 30})
	ctx := context.Background()
	engine := scheduling.NewScheduler(b.client, scheduling.Options{Clock: b.clock.Now})

	outcome, err := engine.Submit(ctx, scheduling.Candidate{
		TicketID: b.ticket, TechnicianID: b.tech, Start: slot(10), End: slot(11),
	}, scheduling.SubmitOptions{})
	require.NoError(t, err)
	appt := outcome.Appointment
	assert.Equal(t, domain.AppointmentStatusPending, appt.Status)
	assert.False(t, outcome.Degraded)

	_, err = engine.Submit(ctx, scheduling.Candidate{
		TicketID: b.ticket, TechnicianID: b.tech, Start: slot(10).Add(30 * time.Minute), End: slot(12),
	}, scheduling.SubmitOptions{})
	var conflict *scheduling.ConflictError
	require.ErrorAs(t, err, &conflict)
	require.NotNil(t, conflict.Conflicting)
	assert.Equal(t, appt.ID, conflict.Conflicting.ID)

	back, err := engine.Submit(ctx, scheduling.Candidate{
		TicketID: b.ticket, TechnicianID: b.tech, Start: slot(11), End: slot(12),
	}, scheduling.SubmitOptions{})
	require.NoError(t, err)
	assert.NotEqual(t, appt.ID, back.Appointment.ID)

	upcoming, err := b.client.ListUpcomingAppointments(ctx, 7)
	require.NoError(t, err)
	assert.Len(t, upcoming, 2)
}

func TestNoShowIsTerminalEndToEnd(t *testing.T) {
	b := startBackend(t, config.BreakerConfig{})
	ctx := context.Background()
	engine := scheduling.NewScheduler(b.client, scheduling.Options{Clock: b.clock.Now})

	outcome, err := engine.Submit(ctx, scheduling.Candidate{
		TicketID: b.ticket, TechnicianID: b.tech, Start: slot(10), End: slot(11),
	}, scheduling.SubmitOptions{})
	require.NoError(t, err)

	confirmed, err := engine.Transition(ctx, *outcome.Appointment, domain.ActionConfirm, scheduling.TransitionParams{})
	require.NoError(t, err)
	assert.Equal(t, domain.AppointmentStatusConfirmed, confirmed.Status)

	b.clock.Set(slot(10).Add(15 * time.Minute))
	missed, err := engine.Transition(ctx, *confirmed, domain.ActionNoShow, scheduling.TransitionParams{Notes: "nobody answered"})
	require.NoError(t, err)
	assert.Equal(t, domain.AppointmentStatusNoShow, missed.Status)

	_, err = engine.Transition(ctx, *missed, domain.ActionComplete, scheduling.TransitionParams{})
	var invalid *scheduling.InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, scheduling.SourceLocal, invalid.Source)

	stored, err := b.client.GetAppointmentByID(ctx, missed.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AppointmentStatusNoShow, stored.Status)
	assert.Equal(t, "nobody answered", stored.Notes)
}

func TestNotesRoundTrip(t *testing.T) {
	b := startBackend(t, config.BreakerConfig{})
	ctx := context.Background()
	created, err := b.client.CreateAppointment(ctx, domain.Appointment{
		TicketID: b.ticket, TechnicianID: b.tech, ScheduledStart: slot(14), ScheduledEnd: slot(15),
	})
	require.NoError(t, err)

	updated, err := b.client.UpdateAppointmentNotes(ctx, created.ID, "gate code 1234")
	require.NoError(t, err)
	assert.Equal(t, "gate code 1234", updated.Notes)
	assert.True(t, updated.ScheduledStart.Equal(slot(14)))
}

// fakeBackend answers login and echoes a fixed technician for every update.
func fakeBackend(t *testing.T, echoed domain.TechnicianStatus, malformed bool) *Client {
	t.Helper()
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Post("/auth/login", func(c *fiber.Ctx) error {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		}).SignedString([]byte("x"))
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"data": fiber.Map{"access_token": token}})
	})
	app.Patch("/technicians/:id", func(c *fiber.Ctx) error {
		if malformed {
			return c.SendString("<html>proxy error</html>")
		}
		return c.JSON(fiber.Map{"data": fiber.Map{"id": c.Params("id"), "name": "Ada", "status": echoed}})
	})
	return New(clientConfig(serve(t, app)), config.BreakerConfig{}, zap.NewNop())
}

func TestSilentNoOpWriteIsReported(t *testing.T) {
	c := fakeBackend(t, domain.TechnicianStatusActive, false)
	ctx := context.Background()

	tech, err := c.UpdateTechnicianStatus(ctx, "tech-a", domain.TechnicianStatusOnLeave)
	require.ErrorIs(t, err, ErrWriteNotApplied)
	require.NotNil(t, tech)
	assert.Equal(t, domain.TechnicianStatusActive, tech.Status)

	tech, err = c.UpdateTechnicianStatus(ctx, "tech-a", domain.TechnicianStatusActive)
	require.NoError(t, err)
	assert.Equal(t, domain.TechnicianStatusActive, tech.Status)
}

func TestMalformedResponseIsServerFault(t *testing.T) {
	c := fakeBackend(t, domain.TechnicianStatusActive, true)
	_, err := c.UpdateTechnicianStatus(context.Background(), "tech-a", domain.TechnicianStatusActive)
	require.Error(t, err)
	assert.Equal(t, apperrors.CategoryServerFault, apperrors.CategoryOf(err))
	assert.True(t, apperrors.IsUnavailable(err))
}

func TestTokenExpiryReadsExpClaim(t *testing.T) {
	now := time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)
	exp := now.Add(20 * time.Minute)
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString([]byte("whatever"))
	require.NoError(t, err)

	assert.True(t, tokenExpiry(token, now).Equal(exp))
	assert.True(t, tokenExpiry("not-a-jwt", now).Equal(now.Add(refreshMargin*2)))
}

func TestSessionRefreshesNearExpiry(t *testing.T) {
	b := startBackend(t, config.BreakerConfig{})
	ctx := context.Background()

	first, err := b.client.session.token(ctx)
	require.NoError(t, err)
	again, err := b.client.session.token(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, again)

	b.client.session.mu.Lock()
	b.client.session.expiresAt = time.Now().Add(refreshMargin / 2)
	b.client.session.value = "stale"
	b.client.session.mu.Unlock()

	refreshed, err := b.client.session.token(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, "stale", refreshed)
}
