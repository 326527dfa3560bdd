package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/haasonsaas/steward/internal/config"
)

// buildSetupCmd creates the interactive "setup" command that writes a
// starter configuration file.
func buildSetupCmd() *cobra.Command {
	var (
		outPath string
		force   bool
	)

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Interactively create a configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSetup(cmd, outPath, force)
		},
	}

	cmd.Flags().StringVarP(&outPath, "output", "o", defaultConfigPath,
		"Where to write the configuration")
	cmd.Flags().BoolVar(&force, "force", false,
		"Overwrite an existing configuration file")
	return cmd
}

func runSetup(cmd *cobra.Command, outPath string, force bool) error {
	if !force {
		if _, err := os.Stat(outPath); err == nil {
			return fmt.Errorf("%s already exists, use --force to overwrite", outPath)
		}
	}

	out := cmd.OutOrStdout()
	reader := bufio.NewReader(cmd.InOrStdin())

	fmt.Fprintln(out, "Steward setup. Press enter to accept defaults.")
	fmt.Fprintln(out)

	cfg := &config.Config{}

	cfg.Owner.UserID = promptLine(out, reader, "Your chat user id (owner)", "")
	if cfg.Owner.UserID == "" {
		return fmt.Errorf("owner user id is required")
	}

	provider := promptLine(out, reader, "LLM provider [anthropic/openai/google/bedrock]", "anthropic")
	cfg.LLM.DefaultProvider = provider
	if provider != "bedrock" {
		key := promptSecret(out, reader, fmt.Sprintf("%s API key", provider))
		cfg.LLM.Providers = map[string]config.ProviderConfig{
			provider: {APIKey: key},
		}
	}

	if promptYesNo(out, reader, "Enable Telegram?", true) {
		cfg.Transports.Telegram.Enabled = true
		cfg.Transports.Telegram.BotToken = promptSecret(out, reader, "Telegram bot token")
		cfg.Owner.DefaultChannel = "telegram"
	}
	if promptYesNo(out, reader, "Enable Discord?", false) {
		cfg.Transports.Discord.Enabled = true
		cfg.Transports.Discord.BotToken = promptSecret(out, reader, "Discord bot token")
		if cfg.Owner.DefaultChannel == "" {
			cfg.Owner.DefaultChannel = "discord"
		}
	}

	cfg.Tasks.Database = promptLine(out, reader, "Task database path", "steward.db")
	cfg.Tasks.Timezone = promptLine(out, reader, "Timezone (IANA name, empty for local)", "")

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration invalid: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(outPath, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	fmt.Fprintf(out, "\nWrote %s. Start the assistant with:\n\n  steward serve --config %s\n", outPath, outPath)
	return nil
}

func promptLine(out io.Writer, reader *bufio.Reader, label, def string) string {
	if def != "" {
		fmt.Fprintf(out, "%s [%s]: ", label, def)
	} else {
		fmt.Fprintf(out, "%s: ", label)
	}
	text, err := reader.ReadString('\n')
	if err != nil {
		return def
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return def
	}
	return text
}

// promptSecret reads without echo when stdin is a terminal.
func promptSecret(out io.Writer, reader *bufio.Reader, label string) string {
	fmt.Fprintf(out, "%s: ", label)
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		text, err := term.ReadPassword(fd)
		fmt.Fprintln(out)
		if err == nil {
			return strings.TrimSpace(string(text))
		}
	}
	text, err := reader.ReadString('\n')
	if err != nil {
		return ""
	}
	return strings.TrimSpace(text)
}

func promptYesNo(out io.Writer, reader *bufio.Reader, label string, def bool) bool {
	hint := "y/N"
	if def {
		hint = "Y/n"
	}
	answer := strings.ToLower(promptLine(out, reader, fmt.Sprintf("%s [%s]", label, hint), ""))
	if answer == "" {
		return def
	}
	return answer == "y" || answer == "yes"
}
