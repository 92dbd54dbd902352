package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/subosito/gotenv"

	"LinkedInAgent/internal/app"
	"LinkedInAgent/internal/config"
	"LinkedInAgent/internal/logging"
)

func main() {
	_ = gotenv.Load()

	cfg := config.Load()
	logger := logging.New(cfg.Logging.Level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}

	if err := application.Run(ctx); err != nil {
		logger.Error("application stopped", "error", err)
		os.Exit(1)
	}
}
