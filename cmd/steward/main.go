// Package main is the CLI entry point for Steward, a personal AI assistant
// reachable over chat transports.
//
// Start the assistant:
//
//	steward serve --config steward.yaml
//
// Inspect scheduled tasks:
//
//	steward tasks list
//	steward tasks cancel <id>
//
// First-time configuration:
//
//	steward setup
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Build information, populated by ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := buildRootCmd().Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

// buildRootCmd creates the root command with all subcommands attached.
// Separated from main() to facilitate testing.
func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "steward",
		Short: "Steward - personal AI assistant",
		Long: `Steward connects chat transports to an LLM with scheduling, file
scratch space, and confirmation-gated tool execution.

Transports: Telegram, Discord
Notification channels: Slack, Mattermost, Matrix
LLM providers: Anthropic, OpenAI, Google, Bedrock`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		buildServeCmd(),
		buildTasksCmd(),
		buildSetupCmd(),
		buildVersionCmd(),
	)
	return rootCmd
}

func buildVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "steward %s\ncommit: %s\nbuilt: %s\n", version, commit, date)
		},
	}
}
