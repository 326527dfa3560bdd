// Package config loads and validates the runtime configuration. Files are
// YAML or JSON5, support $include composition, and expand ${ENV} references
// before parsing.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration.
type Config struct {
	Owner         OwnerConfig         `yaml:"owner"`
	LLM           LLMConfig           `yaml:"llm"`
	Transports    TransportsConfig    `yaml:"transports"`
	Channels      ChannelsConfig      `yaml:"channels"`
	Tasks         TasksConfig         `yaml:"tasks"`
	Session       SessionConfig       `yaml:"session"`
	Confirm       ConfirmConfig       `yaml:"confirm"`
	Scratch       ScratchConfig       `yaml:"scratch"`
	Agent         AgentConfig         `yaml:"agent"`
	Observability ObservabilityConfig `yaml:"observability"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// OwnerConfig identifies the user the assistant serves.
type OwnerConfig struct {
	// UserID is the owner's id on the default notification channel.
	UserID string `yaml:"user_id"`

	// DefaultChannel receives notifications when a task names none.
	DefaultChannel string `yaml:"default_channel"`
}

// LLMConfig selects and configures model providers.
type LLMConfig struct {
	// DefaultProvider names the provider used for turns: "anthropic",
	// "openai", "google", or "bedrock".
	DefaultProvider string `yaml:"default_provider"`

	Providers map[string]ProviderConfig `yaml:"providers"`
}

// ProviderConfig is one LLM provider's credentials and defaults.
type ProviderConfig struct {
	APIKey       string `yaml:"api_key"`
	BaseURL      string `yaml:"base_url"`
	DefaultModel string `yaml:"default_model"`

	// Region applies to bedrock only.
	Region string `yaml:"region"`
}

// TransportsConfig configures inbound listeners.
type TransportsConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
	Discord  DiscordConfig  `yaml:"discord"`
}

type TelegramConfig struct {
	Enabled        bool    `yaml:"enabled"`
	BotToken       string  `yaml:"bot_token"`
	AllowedUserIDs []int64 `yaml:"allowed_user_ids"`
}

type DiscordConfig struct {
	Enabled        bool     `yaml:"enabled"`
	BotToken       string   `yaml:"bot_token"`
	AllowedUserIDs []string `yaml:"allowed_user_ids"`
}

// ChannelsConfig configures outbound-only notification channels.
type ChannelsConfig struct {
	Slack      SlackConfig      `yaml:"slack"`
	Mattermost MattermostConfig `yaml:"mattermost"`
	Matrix     MatrixConfig     `yaml:"matrix"`
}

type SlackConfig struct {
	Enabled  bool   `yaml:"enabled"`
	BotToken string `yaml:"bot_token"`
}

type MattermostConfig struct {
	Enabled   bool   `yaml:"enabled"`
	ServerURL string `yaml:"server_url"`
	Token     string `yaml:"token"`
}

type MatrixConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Homeserver  string `yaml:"homeserver"`
	UserID      string `yaml:"user_id"`
	AccessToken string `yaml:"access_token"`
}

// TasksConfig configures the durable scheduler.
type TasksConfig struct {
	// Database is the sqlite path, or ":memory:". Ignored when PostgresDSN
	// is set.
	Database string `yaml:"database"`

	// PostgresDSN selects the Postgres store instead of sqlite.
	PostgresDSN string `yaml:"postgres_dsn"`

	// Timezone interprets bare run_at values and cron schedules.
	Timezone string `yaml:"timezone"`
}

type SessionConfig struct {
	// Window is the per-conversation message cap.
	Window int `yaml:"window"`
}

type ConfirmConfig struct {
	// PolicyPath is the TOML file mapping tool name to a confirmation
	// requirement. Unlisted tools require confirmation.
	PolicyPath string `yaml:"policy_path"`

	// TimeoutSeconds bounds how long an unanswered prompt waits before
	// the call is treated as denied.
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// Timeout returns the prompt timeout as a duration.
func (c ConfirmConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

type ScratchConfig struct {
	// Root is the sandbox directory for tool file access.
	Root string `yaml:"root"`
}

type AgentConfig struct {
	MaxRounds int `yaml:"max_rounds"`
	MaxTokens int `yaml:"max_tokens"`

	// SystemPrompt is the static system document. SystemPromptPath, when
	// set, loads it from a file instead.
	SystemPrompt     string `yaml:"system_prompt"`
	SystemPromptPath string `yaml:"system_prompt_path"`
}

type ObservabilityConfig struct {
	// MetricsAddr serves Prometheus metrics when non-empty, e.g. ":9090".
	MetricsAddr string `yaml:"metrics_addr"`

	// OTLPEndpoint enables trace export when non-empty.
	OTLPEndpoint string `yaml:"otlp_endpoint"`
}

type LoggingConfig struct {
	// Level is debug, info, warn, or error.
	Level string `yaml:"level"`

	// Format is "json" or "text".
	Format string `yaml:"format"`
}

// Validate checks required fields and applies defaults in place.
func (c *Config) Validate() error {
	if c.Owner.UserID == "" {
		return fmt.Errorf("owner.user_id is required")
	}

	if c.LLM.DefaultProvider == "" {
		c.LLM.DefaultProvider = "anthropic"
	}
	switch c.LLM.DefaultProvider {
	case "anthropic", "openai", "google", "bedrock":
	default:
		return fmt.Errorf("unknown llm provider %q", c.LLM.DefaultProvider)
	}
	if _, ok := c.LLM.Providers[c.LLM.DefaultProvider]; !ok && c.LLM.DefaultProvider != "bedrock" {
		return fmt.Errorf("llm.providers has no entry for %q", c.LLM.DefaultProvider)
	}

	if c.Transports.Telegram.Enabled && c.Transports.Telegram.BotToken == "" {
		return fmt.Errorf("transports.telegram.bot_token is required when enabled")
	}
	if c.Transports.Discord.Enabled && c.Transports.Discord.BotToken == "" {
		return fmt.Errorf("transports.discord.bot_token is required when enabled")
	}

	if c.Tasks.Database == "" && c.Tasks.PostgresDSN == "" {
		c.Tasks.Database = "steward.db"
	}
	if c.Tasks.Timezone != "" {
		if _, err := time.LoadLocation(c.Tasks.Timezone); err != nil {
			return fmt.Errorf("tasks.timezone: %w", err)
		}
	}

	if c.Session.Window <= 0 {
		c.Session.Window = 50
	}
	if c.Confirm.TimeoutSeconds <= 0 {
		c.Confirm.TimeoutSeconds = 120
	}
	if c.Scratch.Root == "" {
		c.Scratch.Root = "scratch"
	}
	if c.Agent.MaxRounds <= 0 {
		c.Agent.MaxRounds = 10
	}
	if c.Agent.MaxTokens <= 0 {
		c.Agent.MaxTokens = 4096
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	return nil
}

// Location resolves the configured timezone, defaulting to local time.
func (c *Config) Location() *time.Location {
	if c.Tasks.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Tasks.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}
