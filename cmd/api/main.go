package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/khaledamrr/ServiceProjectUpdated/internal/app"
	"github.com/khaledamrr/ServiceProjectUpdated/internal/config"
	"github.com/khaledamrr/ServiceProjectUpdated/internal/logging"
)

func main() {
	cfg, err := config.Load(os.Getenv("STOREFRONT_CONFIG"))
	if err != nil {
		logging.New("gateway", "info").Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger := logging.New("gateway", cfg.LogLevel)

	a, err := app.New(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("failed to init aws clients", "error", err)
		os.Exit(1)
	}
	r := a.Gateway()

	// run_local serves plain HTTP for development.
	if cfg.RunLocal {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if err := app.Serve(ctx, r, cfg.HTTP, logger); err != nil {
			logger.Error("local server failed", "error", err)
			os.Exit(1)
		}
		return
	}

	app.ServeLambda(r)
}
