package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spec-kit/techdesk/internal/cli"
	"github.com/spec-kit/techdesk/internal/scheduling"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := cli.NewRootCommand(cli.Options{}).ExecuteContext(ctx)
	switch {
	case err == nil:
	case errors.Is(err, scheduling.ErrCancelled):
		fmt.Fprintln(os.Stderr, "cancelled")
		os.Exit(130)
	default:
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
