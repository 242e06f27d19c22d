package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/cjy5507/csmh/internal/cli"
)

func main() {
	// Signal-aware context: SIGTERM from `csmh cancel` (or Ctrl+C) cancels
	// the scheduler cooperatively, so running attempts are terminated and
	// the report still gets written.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(cli.Execute(ctx))
}
