// Package sandbox assembles the reference backend the console talks to.
package sandbox

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/techdesk/internal/api/http"
	"github.com/spec-kit/techdesk/internal/api/http/handlers"
	"github.com/spec-kit/techdesk/internal/auth"
	"github.com/spec-kit/techdesk/internal/config"
	"github.com/spec-kit/techdesk/internal/events"
	"github.com/spec-kit/techdesk/internal/observability"
	"github.com/spec-kit/techdesk/internal/persistence"
	"github.com/spec-kit/techdesk/internal/repository"
	"github.com/spec-kit/techdesk/internal/service"
	"github.com/spec-kit/techdesk/internal/worker"
)

// Options override pieces of the sandbox, mostly for tests.
type Options struct {
	// Store replaces the Postgres repositories when set.
	Store *repository.MemoryStore
	Now   func() time.Time
}

// Sandbox is a fully wired backend.
type Sandbox struct {
	App          *fiber.App
	Metrics      *observability.Metrics
	Appointments *service.AppointmentService

	postgres *persistence.Postgres
	redis    *persistence.Redis
}

// New connects storage, seeds demo data when asked and registers routes.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts Options) (*Sandbox, error) {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	sb := &Sandbox{Metrics: observability.NewMetrics()}

	var (
		tickets      repository.TicketRepository
		technicians  repository.TechnicianRepository
		appointments repository.AppointmentRepository
	)
	if opts.Store == nil && cfg.Postgres.DSN != "" {
		pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			return nil, err
		}
		sb.postgres = pg
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.PoolHandle(), persistence.DefaultMigrationsDir, logger); err != nil {
				pg.Close()
				return nil, err
			}
		}
		pool := pg.PoolHandle()
		tickets = repository.NewTicketRepository(pool)
		technicians = repository.NewTechnicianRepository(pool)
		appointments = repository.NewAppointmentRepository(pool)
	} else {
		store := opts.Store
		if store == nil {
			logger.Warn("POSTGRES_DSN not provided; using in-memory storage")
			store = repository.NewMemoryStore()
		}
		tickets, technicians, appointments = store.Tickets(), store.Technicians(), store.Appointments()
	}

	if cfg.App.Seed {
		if err := repository.SeedDemoData(ctx, tickets, technicians, appointments, now()); err != nil {
			sb.Close()
			return nil, err
		}
	}

	var locker persistence.Locker = persistence.NewLocalLocker()
	if r := persistence.NewRedis(cfg.Redis, logger); r != nil {
		sb.redis = r
		locker = r
	}

	dispatcher := events.NewInMemoryDispatcher()
	worker.StartNotificationWorker(service.NewNotificationService(dispatcher, logger, cfg.Notification))

	authService, err := service.NewAuthService(cfg.Auth)
	if err != nil {
		sb.Close()
		return nil, err
	}
	ticketService := service.NewTicketService(tickets, dispatcher, logger)
	technicianService := service.NewTechnicianService(technicians, dispatcher, logger)
	sb.Appointments = service.NewAppointmentService(service.AppointmentDependencies{
		TicketRepo:      tickets,
		TechnicianRepo:  technicians,
		AppointmentRepo: appointments,
		Locker:          locker,
		Dispatcher:      dispatcher,
		Logger:          logger,
		Now:             now,
	})

	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		DisableStartupMessage: true,
	})
	httptransport.RegisterMiddlewares(app, logger, sb.Metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, sb.postgres, sb.redis),
		Auth:           handlers.NewAuthHandler(authService),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		Technicians:    handlers.NewTechniciansHandler(technicianService, sb.Appointments),
		Appointments:   handlers.NewAppointmentsHandler(sb.Appointments),
		AuthMiddleware: auth.NewAuthMiddleware(authService.TokenManager()),
	})
	sb.App = app
	return sb, nil
}

// Close releases storage connections.
func (s *Sandbox) Close() {
	s.redis.Close()
	s.postgres.Close()
}
