// Package main is the entry point of campusctl, the Campus Connect operator
// command line.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/campus-connect/campus-core/config"
	"github.com/campus-connect/campus-core/internal/app"
	"github.com/campus-connect/campus-core/internal/interface/cli"
	"github.com/campus-connect/campus-core/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cli.NewRootCommand(open).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// open loads configuration and connects a runtime. Logs go to stderr at
// warn level so command output stays clean.
func open(ctx context.Context, opts app.OpenOptions) (*app.Runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	level := logger.LevelWarn
	if cfg.Log.Level == "debug" {
		level = logger.LevelDebug
	}
	log := logger.New(logger.Options{
		Output: os.Stderr,
		Level:  level,
		Format: "console",
	}).With(logger.Component("campusctl"))

	return app.Open(ctx, cfg, log, opts)
}
