package main

import (
	"context"
	"os"

	"DigestHarvester/internal/app"
	"DigestHarvester/internal/config"
	"DigestHarvester/internal/logging"
)

func main() {
	cfg := config.Load()
	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("application setup failed", "error", err)
		os.Exit(1)
	}

	runErr := application.Run(ctx)
	if err := application.Close(); err != nil {
		logger.Warn("shutdown", "error", err)
	}
	if runErr != nil {
		logger.Error("application stopped with error", "error", runErr)
		os.Exit(1)
	}
}
