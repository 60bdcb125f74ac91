package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/khaledamrr/ServiceProjectUpdated/internal/app"
	"github.com/khaledamrr/ServiceProjectUpdated/internal/config"
	"github.com/khaledamrr/ServiceProjectUpdated/internal/logging"
)

var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "storefront",
		Short:         "Storefront services and maintenance jobs",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", os.Getenv("STOREFRONT_CONFIG"), "path to a YAML config file")

	load := func(ctx context.Context, component string) (*app.App, error) {
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		return app.New(ctx, cfg, logging.New(component, cfg.LogLevel))
	}

	rootCmd.AddCommand(serveCmd(load))
	rootCmd.AddCommand(reconcileCmd(load))
	rootCmd.AddCommand(resyncCmd(load))
	rootCmd.AddCommand(relayCmd(load))
	rootCmd.AddCommand(seedAdminCmd(load))

	return rootCmd
}

type loader func(ctx context.Context, component string) (*app.App, error)

func logFailure(logger *slog.Logger, job string, err error) error {
	logger.Error(job+" failed", "error", err)
	return fmt.Errorf("%s: %w", job, err)
}
