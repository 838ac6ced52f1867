package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/spec-kit/techdesk/internal/config"
	"github.com/spec-kit/techdesk/internal/observability"
	"github.com/spec-kit/techdesk/internal/sandbox"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sb, err := sandbox.New(ctx, cfg, logger, sandbox.Options{})
	if err != nil {
		logger.Fatal("failed to build sandbox backend", zap.Error(err))
	}
	defer sb.Close()

	go func() {
		if err := sb.App.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()
	logger.Info("sandbox backend listening", zap.String("addr", cfg.App.Addr()))

	waitForShutdown(logger)

	_ = sb.App.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
