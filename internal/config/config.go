// Package config handles configuration loading and management for quorum.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/viper"
)

// Backend names accepted in agents.<id>.backend.
const (
	BackendAnthropic = "anthropic"
	BackendCLI       = "cli"
	BackendOpenAI    = "openai"
	BackendOllama    = "ollama"
)

// State drivers accepted in state.driver.
const (
	DriverModernc = "sqlite"
	DriverMattn   = "sqlite3"
)

// Config holds all configuration for quorum.
type Config struct {
	Anthropic AnthropicConfig          `mapstructure:"anthropic"`
	OpenAI    OpenAIConfig             `mapstructure:"openai"`
	Defaults  DefaultsConfig           `mapstructure:"defaults"`
	Router    RouterConfig             `mapstructure:"router"`
	Agents    map[string]AgentConfig   `mapstructure:"agents"`
	Profiles  map[string]ProfileConfig `mapstructure:"profiles"`
	State     StateConfig              `mapstructure:"state"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	APIKey     string `mapstructure:"api_key"`
	UseBedrock bool   `mapstructure:"use_bedrock"`
	AWSRegion  string `mapstructure:"aws_region"`
	AWSProfile string `mapstructure:"aws_profile"`
}

// OpenAIConfig holds OpenAI API settings.
type OpenAIConfig struct {
	APIKey string `mapstructure:"api_key"`
}

// DefaultsConfig holds default values for runs.
type DefaultsConfig struct {
	// Agent replaces "auto" when nothing better is known.
	Agent          string        `mapstructure:"agent"`
	MaxConcurrency int           `mapstructure:"max_concurrency"`
	Timeout        time.Duration `mapstructure:"timeout"`
	Profile        string        `mapstructure:"profile"`
}

// RouterConfig holds mode selection thresholds.
type RouterConfig struct {
	ConfidenceThreshold float64 `mapstructure:"confidence_threshold"`
	ComplexityWords     int     `mapstructure:"complexity_words"`
}

// AgentConfig describes how to reach one agent.
type AgentConfig struct {
	// Backend is one of anthropic, cli, openai, ollama.
	Backend string   `mapstructure:"backend"`
	Model   string   `mapstructure:"model"`
	Command string   `mapstructure:"command"`
	Args    []string `mapstructure:"args"`
	BaseURL string   `mapstructure:"base_url"`
	// RateLimit is requests per second; zero means unlimited.
	RateLimit float64 `mapstructure:"rate_limit"`
	// Retries is the number of extra attempts after a failure.
	Retries int `mapstructure:"retries"`
}

// ProfileConfig is a user-defined execution profile.
type ProfileConfig struct {
	PreferredModes  []string `mapstructure:"preferred_modes"`
	MaxConcurrency  int      `mapstructure:"max_concurrency"`
	ConsensusRounds int      `mapstructure:"consensus_rounds"`
	RequireReview   bool     `mapstructure:"require_review"`
	AllowAgents     []string `mapstructure:"allow_agents"`
}

// StateConfig holds run history settings.
type StateConfig struct {
	// Driver is "sqlite" (pure Go) or "sqlite3" (cgo).
	Driver string `mapstructure:"driver"`
	// Path is relative to the project root unless absolute.
	Path string `mapstructure:"path"`
}

// Agent returns the configuration for an agent, falling back to the
// built-in default for known agents.
func (c *Config) Agent(id string) (AgentConfig, bool) {
	if ac, ok := c.Agents[id]; ok {
		if ac.Backend == "" {
			ac.Backend = BackendCLI
		}
		return ac, true
	}
	ac, ok := defaultAgents()[id]
	return ac, ok
}

// AgentIDs returns the configured agent IDs, sorted.
func (c *Config) AgentIDs() []string {
	ids := make([]string, 0, len(c.Agents))
	for id := range c.Agents {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (ANTHROPIC_API_KEY, OPENAI_API_KEY)
// 2. Project config (.quorum.yaml in current directory or parent)
// 3. User config (~/.config/quorum/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	userConfigDir := getUserConfigDir()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(userConfigDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	// Project config takes precedence over user config.
	projectConfig := findProjectConfig()
	if projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	v.AutomaticEnv()
	v.BindEnv("anthropic.api_key", "ANTHROPIC_API_KEY")
	v.BindEnv("openai.api_key", "OPENAI_API_KEY")

	return unmarshal(v)
}

// LoadFromPath loads configuration from a specific path (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	return unmarshal(v)
}

func unmarshal(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Expand ${VAR} references
	cfg.Anthropic.APIKey = expandEnv(cfg.Anthropic.APIKey)
	cfg.OpenAI.APIKey = expandEnv(cfg.OpenAI.APIKey)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values that cannot be used.
func (c *Config) Validate() error {
	if c.Defaults.MaxConcurrency < 1 {
		return fmt.Errorf("defaults.max_concurrency must be at least 1, got %d", c.Defaults.MaxConcurrency)
	}
	if c.Defaults.Timeout <= 0 {
		return fmt.Errorf("defaults.timeout must be positive, got %v", c.Defaults.Timeout)
	}
	switch c.State.Driver {
	case DriverModernc, DriverMattn:
	default:
		return fmt.Errorf("state.driver must be %q or %q, got %q", DriverModernc, DriverMattn, c.State.Driver)
	}
	for id, ac := range c.Agents {
		switch ac.Backend {
		case "", BackendAnthropic, BackendCLI, BackendOpenAI, BackendOllama:
		default:
			return fmt.Errorf("agents.%s.backend: unknown backend %q", id, ac.Backend)
		}
		if ac.RateLimit < 0 || ac.Retries < 0 {
			return fmt.Errorf("agents.%s: rate_limit and retries must not be negative", id)
		}
	}
	return nil
}

// Save writes the current configuration to the user config file.
func Save(cfg *Config) error {
	userConfigDir := getUserConfigDir()
	if err := os.MkdirAll(userConfigDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	configPath := filepath.Join(userConfigDir, "config.yaml")

	v := viper.New()
	v.SetConfigFile(configPath)

	v.Set("anthropic.api_key", cfg.Anthropic.APIKey)
	v.Set("anthropic.use_bedrock", cfg.Anthropic.UseBedrock)
	v.Set("anthropic.aws_region", cfg.Anthropic.AWSRegion)
	v.Set("anthropic.aws_profile", cfg.Anthropic.AWSProfile)
	v.Set("openai.api_key", cfg.OpenAI.APIKey)
	v.Set("defaults.agent", cfg.Defaults.Agent)
	v.Set("defaults.max_concurrency", cfg.Defaults.MaxConcurrency)
	v.Set("defaults.timeout", cfg.Defaults.Timeout.String())
	v.Set("defaults.profile", cfg.Defaults.Profile)
	v.Set("router.confidence_threshold", cfg.Router.ConfidenceThreshold)
	v.Set("router.complexity_words", cfg.Router.ComplexityWords)
	v.Set("state.driver", cfg.State.Driver)
	v.Set("state.path", cfg.State.Path)
	for id, ac := range cfg.Agents {
		prefix := "agents." + id + "."
		v.Set(prefix+"backend", ac.Backend)
		v.Set(prefix+"model", ac.Model)
		v.Set(prefix+"command", ac.Command)
		v.Set(prefix+"args", ac.Args)
		v.Set(prefix+"base_url", ac.BaseURL)
		v.Set(prefix+"rate_limit", ac.RateLimit)
		v.Set(prefix+"retries", ac.Retries)
	}
	for name, pc := range cfg.Profiles {
		prefix := "profiles." + name + "."
		v.Set(prefix+"preferred_modes", pc.PreferredModes)
		v.Set(prefix+"max_concurrency", pc.MaxConcurrency)
		v.Set(prefix+"consensus_rounds", pc.ConsensusRounds)
		v.Set(prefix+"require_review", pc.RequireReview)
		v.Set(prefix+"allow_agents", pc.AllowAgents)
	}

	return v.WriteConfig()
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.use_bedrock", false)
	v.SetDefault("openai.api_key", "")

	v.SetDefault("defaults.agent", "claude")
	v.SetDefault("defaults.max_concurrency", 4)
	v.SetDefault("defaults.timeout", "10m")
	v.SetDefault("defaults.profile", "balanced")

	v.SetDefault("router.confidence_threshold", 0.6)
	v.SetDefault("router.complexity_words", 120)

	v.SetDefault("state.driver", DriverModernc)
	v.SetDefault("state.path", filepath.Join(".quorum", "state.db"))
}

// defaultAgents are used for known agents missing from agents.*.
func defaultAgents() map[string]AgentConfig {
	return map[string]AgentConfig{
		"claude": {Backend: BackendCLI, Command: "claude"},
		"codex":  {Backend: BackendCLI, Command: "codex"},
		"gemini": {Backend: BackendCLI, Command: "gemini"},
		"openai": {Backend: BackendOpenAI, Model: "gpt-4o"},
		"ollama": {Backend: BackendOllama, Model: "llama3"},
	}
}

// getUserConfigDir returns the XDG config directory for quorum.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "quorum")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "quorum")
	}
	return filepath.Join(home, ".config", "quorum")
}

// findProjectConfig searches for .quorum.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".quorum.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// expandEnv expands ${VAR} references in a string.
func expandEnv(s string) string {
	return os.ExpandEnv(s)
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Defaults: DefaultsConfig{
			Agent:          "claude",
			MaxConcurrency: 4,
			Timeout:        10 * time.Minute,
			Profile:        "balanced",
		},
		Router: RouterConfig{
			ConfidenceThreshold: 0.6,
			ComplexityWords:     120,
		},
		State: StateConfig{
			Driver: DriverModernc,
			Path:   filepath.Join(".quorum", "state.db"),
		},
	}
}
