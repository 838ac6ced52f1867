// Package cli holds the cobra commands of the techdesk console.
package cli

import (
	"context"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/techdesk/internal/client"
	"github.com/spec-kit/techdesk/internal/config"
	"github.com/spec-kit/techdesk/internal/console"
	"github.com/spec-kit/techdesk/internal/events"
	"github.com/spec-kit/techdesk/internal/observability"
	"github.com/spec-kit/techdesk/internal/scheduling"
	"github.com/spec-kit/techdesk/internal/worker"
)

// Options override the command's collaborators. Zero values select the real ones.
type Options struct {
	In  io.Reader
	Out io.Writer
	// Backend replaces the REST client built from configuration.
	Backend scheduling.Repository
	Logger  *zap.Logger
	Clock   scheduling.Clock
}

// app is what every subcommand works with once the root has started.
type app struct {
	backend   scheduling.Repository
	scheduler *scheduling.Scheduler
	terminal  *console.Terminal
	render    *console.Renderer
	logger    *zap.Logger
	days      int
}

type appKey struct{}

func appFrom(cmd *cobra.Command) *app {
	rt, _ := cmd.Context().Value(appKey{}).(*app)
	return rt
}

// NewRootCommand builds the techdesk command tree.
func NewRootCommand(opts Options) *cobra.Command {
	var (
		apiURL  string
		verbose bool
	)
	in := opts.In
	if in == nil {
		in = os.Stdin
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	root := &cobra.Command{
		Use:           "techdesk",
		Short:         "Schedule and manage technician appointments",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if apiURL != "" {
				cfg.Client.BaseURL = apiURL
			}

			logger := opts.Logger
			if logger == nil {
				cfg.Logger.Encoding = "console"
				if !verbose {
					cfg.Logger.Level = "warn"
				}
				if logger, err = observability.NewLogger(cfg.Logger); err != nil {
					return err
				}
			}
			logger = logger.With(zap.String("correlation_id", uuid.NewString()))

			backend := opts.Backend
			if backend == nil {
				backend = client.New(cfg.Client, cfg.Breaker, logger)
			}

			dispatcher := events.NewInMemoryDispatcher()
			worker.StartAuditWorker(dispatcher, logger)

			rt := &app{
				backend: backend,
				scheduler: scheduling.NewScheduler(backend, scheduling.Options{
					Clock:      opts.Clock,
					Logger:     logger,
					Dispatcher: dispatcher,
				}),
				terminal: console.NewTerminal(in, out),
				render:   console.NewRenderer(out),
				logger:   logger,
				days:     cfg.Client.UpcomingDays,
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			cmd.SetContext(context.WithValue(ctx, appKey{}, rt))
			logger.Debug("command start", zap.String("command", cmd.CommandPath()))
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if rt := appFrom(cmd); rt != nil {
				_ = rt.logger.Sync()
			}
		},
	}
	root.SetIn(in)
	root.SetOut(out)
	root.PersistentFlags().StringVar(&apiURL, "api-url", "", "backend base URL (overrides TECHDESK_API_URL)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose logging")

	root.AddCommand(newAppointmentCommand(), newTechnicianCommand())
	return root
}
