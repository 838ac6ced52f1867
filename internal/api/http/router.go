package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/techdesk/internal/api/http/handlers"
	"github.com/spec-kit/techdesk/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Tickets        *handlers.TicketsHandler
	Technicians    *handlers.TechniciansHandler
	Appointments   *handlers.AppointmentsHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	app.Post("/auth/login", cfg.Auth.Login)

	tickets := app.Group("/tickets", cfg.AuthMiddleware.Handle)
	tickets.Get("/", cfg.Tickets.List)
	tickets.Get("/:id", cfg.Tickets.Get)
	tickets.Patch("/:id", cfg.Tickets.Update)

	technicians := app.Group("/technicians", cfg.AuthMiddleware.Handle)
	technicians.Get("/", cfg.Technicians.List)
	technicians.Get("/:id", cfg.Technicians.Get)
	technicians.Patch("/:id", cfg.Technicians.Update)
	technicians.Get("/:id/availability", cfg.Technicians.Availability)

	appointments := app.Group("/appointments", cfg.AuthMiddleware.Handle)
	appointments.Get("/", cfg.Appointments.List)
	appointments.Get("/upcoming", cfg.Appointments.Upcoming)
	appointments.Post("/", cfg.Appointments.Create)
	appointments.Get("/:id", cfg.Appointments.Get)
	appointments.Patch("/:id", cfg.Appointments.Update)
	appointments.Post("/:id/:action", cfg.Appointments.Transition)
}
