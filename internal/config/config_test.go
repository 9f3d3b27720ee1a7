package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Defaults.Agent != "claude" {
		t.Errorf("expected default agent 'claude', got %q", cfg.Defaults.Agent)
	}
	if cfg.Defaults.MaxConcurrency != 4 {
		t.Errorf("expected default max concurrency 4, got %d", cfg.Defaults.MaxConcurrency)
	}
	if cfg.Defaults.Timeout != 10*time.Minute {
		t.Errorf("expected default timeout 10m, got %v", cfg.Defaults.Timeout)
	}
	if cfg.Defaults.Profile != "balanced" {
		t.Errorf("expected default profile 'balanced', got %q", cfg.Defaults.Profile)
	}
	if cfg.Router.ConfidenceThreshold != 0.6 {
		t.Errorf("expected confidence threshold 0.6, got %v", cfg.Router.ConfidenceThreshold)
	}
	if cfg.State.Driver != DriverModernc {
		t.Errorf("expected state driver %q, got %q", DriverModernc, cfg.State.Driver)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestLoadFromPath(t *testing.T) {
	path := writeConfig(t, `
anthropic:
  api_key: test-key
  use_bedrock: true
  aws_region: us-west-2
defaults:
  agent: codex
  max_concurrency: 2
  timeout: 90s
  profile: thorough
router:
  confidence_threshold: 0.7
agents:
  codex:
    command: codex
    args: ["exec", "{prompt}"]
    rate_limit: 0.5
    retries: 2
  local:
    backend: ollama
    model: qwen2
    base_url: http://localhost:11434
profiles:
  careful:
    preferred_modes: [supervise, pipeline]
    require_review: true
    allow_agents: [claude, codex]
state:
  driver: sqlite3
  path: /tmp/quorum.db
`)

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}

	if cfg.Anthropic.APIKey != "test-key" || !cfg.Anthropic.UseBedrock || cfg.Anthropic.AWSRegion != "us-west-2" {
		t.Errorf("unexpected anthropic config %+v", cfg.Anthropic)
	}
	if cfg.Defaults.Agent != "codex" || cfg.Defaults.MaxConcurrency != 2 || cfg.Defaults.Profile != "thorough" {
		t.Errorf("unexpected defaults %+v", cfg.Defaults)
	}
	if cfg.Defaults.Timeout != 90*time.Second {
		t.Errorf("expected timeout 90s, got %v", cfg.Defaults.Timeout)
	}
	if cfg.Router.ConfidenceThreshold != 0.7 {
		t.Errorf("expected threshold 0.7, got %v", cfg.Router.ConfidenceThreshold)
	}
	if cfg.Router.ComplexityWords != 120 {
		t.Errorf("expected default complexity words 120, got %d", cfg.Router.ComplexityWords)
	}

	codex, ok := cfg.Agent("codex")
	if !ok {
		t.Fatal("expected codex agent")
	}
	if codex.Backend != BackendCLI {
		t.Errorf("expected missing backend to default to cli, got %q", codex.Backend)
	}
	if len(codex.Args) != 2 || codex.Args[1] != "{prompt}" || codex.RateLimit != 0.5 || codex.Retries != 2 {
		t.Errorf("unexpected codex config %+v", codex)
	}

	local, ok := cfg.Agent("local")
	if !ok || local.Backend != BackendOllama || local.Model != "qwen2" {
		t.Errorf("unexpected local config %+v", local)
	}

	careful, ok := cfg.Profiles["careful"]
	if !ok {
		t.Fatal("expected careful profile")
	}
	if !careful.RequireReview || len(careful.PreferredModes) != 2 || len(careful.AllowAgents) != 2 {
		t.Errorf("unexpected profile %+v", careful)
	}

	if cfg.State.Driver != DriverMattn || cfg.State.Path != "/tmp/quorum.db" {
		t.Errorf("unexpected state config %+v", cfg.State)
	}
}

func TestLoadFromPathInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"zero concurrency", "defaults:\n  max_concurrency: 0\n", "max_concurrency"},
		{"unknown driver", "state:\n  driver: postgres\n", "state.driver"},
		{"unknown backend", "agents:\n  x:\n    backend: carrier-pigeon\n", "unknown backend"},
		{"negative retries", "agents:\n  x:\n    retries: -1\n", "must not be negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromPath(writeConfig(t, tt.content))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestAgentDefaults(t *testing.T) {
	cfg := Default()

	claude, ok := cfg.Agent("claude")
	if !ok || claude.Backend != BackendCLI || claude.Command != "claude" {
		t.Errorf("unexpected builtin claude config %+v", claude)
	}
	if _, ok := cfg.Agent("nobody"); ok {
		t.Error("expected unknown agent to be missing")
	}
}

func TestSaveAndLoad(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg := Default()
	cfg.Defaults.Agent = "gemini"
	cfg.Agents = map[string]AgentConfig{"gemini": {Backend: BackendCLI, Command: "gemini", Retries: 1}}

	if err := Save(cfg); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := LoadFromPath(GetUserConfigPath())
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}
	if loaded.Defaults.Agent != "gemini" {
		t.Errorf("expected saved agent 'gemini', got %q", loaded.Defaults.Agent)
	}
	if loaded.Agents["gemini"].Retries != 1 {
		t.Errorf("expected saved retries 1, got %d", loaded.Agents["gemini"].Retries)
	}
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("TEST_VAR", "expanded-value")

	result := expandEnv("${TEST_VAR}")
	if result != "expanded-value" {
		t.Errorf("expected 'expanded-value', got %q", result)
	}

	result = expandEnv("prefix-${TEST_VAR}-suffix")
	if result != "prefix-expanded-value-suffix" {
		t.Errorf("expected 'prefix-expanded-value-suffix', got %q", result)
	}
}

func TestGetUserConfigDir(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")

	dir := getUserConfigDir()
	expected := "/custom/config/quorum"
	if dir != expected {
		t.Errorf("expected %q, got %q", expected, dir)
	}
}
