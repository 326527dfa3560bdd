package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "steward.yaml", `
owner:
  user_id: "12345"
  default_channel: telegram
llm:
  providers:
    anthropic:
      api_key: sk-test
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.LLM.DefaultProvider != "anthropic" {
		t.Errorf("default provider = %q", cfg.LLM.DefaultProvider)
	}
	if cfg.Tasks.Database != "steward.db" {
		t.Errorf("tasks database = %q", cfg.Tasks.Database)
	}
	if cfg.Session.Window != 50 {
		t.Errorf("session window = %d", cfg.Session.Window)
	}
	if got := cfg.Confirm.Timeout(); got != 2*time.Minute {
		t.Errorf("confirm timeout = %v", got)
	}
	if cfg.Agent.MaxRounds != 10 || cfg.Agent.MaxTokens != 4096 {
		t.Errorf("agent defaults = %+v", cfg.Agent)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("logging defaults = %+v", cfg.Logging)
	}
}

func TestLoadExpandsEnv(t *testing.T) {
	t.Setenv("STEWARD_TEST_TOKEN", "tok-from-env")
	dir := t.TempDir()
	path := writeFile(t, dir, "steward.yaml", `
owner:
  user_id: "12345"
llm:
  providers:
    anthropic:
      api_key: ${STEWARD_TEST_TOKEN}
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := cfg.LLM.Providers["anthropic"].APIKey; got != "tok-from-env" {
		t.Errorf("api key = %q", got)
	}
}

func TestLoadMergesIncludes(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", `
owner:
  user_id: "12345"
llm:
  default_provider: openai
  providers:
    openai:
      api_key: base-key
      default_model: gpt-4o
session:
  window: 20
`)
	path := writeFile(t, dir, "steward.yaml", `
$include: base.yaml
llm:
  providers:
    openai:
      api_key: override-key
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if got := cfg.LLM.Providers["openai"].APIKey; got != "override-key" {
		t.Errorf("api key = %q", got)
	}
	if got := cfg.LLM.Providers["openai"].DefaultModel; got != "gpt-4o" {
		t.Errorf("default model = %q, include not merged", got)
	}
	if cfg.Session.Window != 20 {
		t.Errorf("session window = %d", cfg.Session.Window)
	}
}

func TestLoadDetectsIncludeCycle(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.yaml", "$include: b.yaml\n")
	path := writeFile(t, dir, "b.yaml", "$include: a.yaml\n")

	_, err := LoadRaw(path)
	if err == nil || !strings.Contains(err.Error(), "cycle") {
		t.Fatalf("err = %v", err)
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "steward.yaml", `
owner:
  user_id: "12345"
  full_name: nobody
`)

	if _, err := Load(path); err == nil {
		t.Fatal("unknown field accepted")
	}
}

func TestLoadJSON5(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "steward.json5", `{
  // comments are allowed here
  owner: {user_id: "12345"},
  llm: {providers: {anthropic: {api_key: "sk-test"}}},
}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Owner.UserID != "12345" {
		t.Errorf("owner = %+v", cfg.Owner)
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Owner: OwnerConfig{UserID: "12345"},
			LLM: LLMConfig{
				Providers: map[string]ProviderConfig{
					"anthropic": {APIKey: "sk-test"},
				},
			},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{
			name:    "missing owner",
			mutate:  func(c *Config) { c.Owner.UserID = "" },
			wantErr: "owner.user_id",
		},
		{
			name:    "unknown provider",
			mutate:  func(c *Config) { c.LLM.DefaultProvider = "llama-at-home" },
			wantErr: "unknown llm provider",
		},
		{
			name:    "provider without entry",
			mutate:  func(c *Config) { c.LLM.DefaultProvider = "openai" },
			wantErr: "no entry",
		},
		{
			name: "bedrock needs no entry",
			mutate: func(c *Config) {
				c.LLM.DefaultProvider = "bedrock"
				c.LLM.Providers = nil
			},
		},
		{
			name:    "telegram enabled without token",
			mutate:  func(c *Config) { c.Transports.Telegram.Enabled = true },
			wantErr: "telegram.bot_token",
		},
		{
			name:    "bad timezone",
			mutate:  func(c *Config) { c.Tasks.Timezone = "Mars/Olympus" },
			wantErr: "tasks.timezone",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatal(err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("err = %v, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestLocation(t *testing.T) {
	cfg := &Config{Tasks: TasksConfig{Timezone: "America/Denver"}}
	if got := cfg.Location().String(); got != "America/Denver" {
		t.Errorf("location = %q", got)
	}

	cfg.Tasks.Timezone = ""
	if cfg.Location() != time.Local {
		t.Error("empty timezone should resolve to local")
	}
}
