package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/haasonsaas/steward/internal/config"
	"github.com/haasonsaas/steward/internal/observability"
	"github.com/haasonsaas/steward/internal/runtime"
)

const defaultConfigPath = "steward.yaml"

// buildServeCmd creates the "serve" command that runs the assistant.
func buildServeCmd() *cobra.Command {
	var (
		configPath string
		debug      bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the assistant",
		Long: `Run the assistant with all configured transports and channels.

Startup order: task store, scheduler reconciliation, missed-task recovery,
scheduler ticks, transports. Graceful shutdown on SIGINT/SIGTERM.`,
		Example: `  # Start with default config
  steward serve

  # Start with custom config and debug logging
  steward serve --config /etc/steward/steward.yaml --debug`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath, debug)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath,
		"Path to YAML or JSON5 configuration file")
	cmd.Flags().BoolVarP(&debug, "debug", "d", false,
		"Enable debug logging")
	return cmd
}

func runServe(ctx context.Context, configPath string, debug bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	level := cfg.Logging.Level
	if debug {
		level = "debug"
	}
	logger := observability.NewLogger(observability.LogConfig{
		Level:  level,
		Format: cfg.Logging.Format,
	})
	slog.SetDefault(logger)

	logger.Info("starting steward",
		"version", version,
		"commit", commit,
		"config", configPath,
		"provider", cfg.LLM.DefaultProvider,
	)

	rt, err := runtime.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("assemble runtime: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return rt.Run(ctx)
}
