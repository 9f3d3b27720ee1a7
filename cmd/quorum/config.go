package main

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/quorum/internal/config"
	"github.com/ShayCichocki/quorum/pkg/models"
)

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Manage configuration",
	Long: `View or modify quorum configuration.

Without arguments, displays current configuration.
With one argument (key), displays the value for that key.
With two arguments (key value), sets the configuration value.

Agent settings use agents.<id>.<field>, for example:
  quorum config agents.codex.retries 2
  quorum config agents.ollama.backend ollama

Configuration is stored at ~/.config/quorum/config.yaml
Project-specific overrides can be placed in .quorum.yaml`,
	Args: cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		out := cmd.OutOrStdout()
		switch len(args) {
		case 0:
			displayAllConfig(out, cfg)
			if path := config.GetProjectConfigPath(); path != "" {
				fmt.Fprintf(out, "\nProject overrides: %s\n", path)
			}
			return nil
		case 1:
			value, err := getConfigValue(cfg, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(out, value)
			return nil
		default:
			if err := setConfigValue(cfg, args[0], args[1]); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := config.Save(cfg); err != nil {
				return fmt.Errorf("save config: %w", err)
			}
			fmt.Fprintf(out, "Set %s = %s\n", args[0], displayValue(args[0], args[1]))
			return nil
		}
	},
}

// configKeys lists the scalar keys in display order.
var configKeys = []string{
	"anthropic.api_key",
	"anthropic.use_bedrock",
	"anthropic.aws_region",
	"anthropic.aws_profile",
	"openai.api_key",
	"defaults.agent",
	"defaults.max_concurrency",
	"defaults.timeout",
	"defaults.profile",
	"router.confidence_threshold",
	"router.complexity_words",
	"state.driver",
	"state.path",
}

// displayAllConfig prints all configuration values.
func displayAllConfig(w io.Writer, cfg *config.Config) {
	for _, key := range configKeys {
		value, _ := getConfigValue(cfg, key)
		fmt.Fprintf(w, "%s: %s\n", key, value)
	}

	for _, id := range models.KnownAgents {
		ac, _ := cfg.Agent(string(id))
		fmt.Fprintf(w, "agents.%s: backend=%s", id, ac.Backend)
		if ac.Model != "" {
			fmt.Fprintf(w, " model=%s", ac.Model)
		}
		if ac.Command != "" {
			fmt.Fprintf(w, " command=%s", ac.Command)
		}
		if ac.RateLimit > 0 {
			fmt.Fprintf(w, " rate_limit=%g", ac.RateLimit)
		}
		if ac.Retries > 0 {
			fmt.Fprintf(w, " retries=%d", ac.Retries)
		}
		fmt.Fprintln(w)
	}
	if ids := cfg.AgentIDs(); len(ids) > 0 {
		fmt.Fprintf(w, "agents overridden: %s\n", strings.Join(ids, ", "))
	}

	names := make([]string, 0, len(cfg.Profiles))
	for name := range cfg.Profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		p := cfg.Profiles[name]
		fmt.Fprintf(w, "profiles.%s: modes=%s review=%t\n", name, strings.Join(p.PreferredModes, ","), p.RequireReview)
	}
}

// displayValue masks API keys echoed back after a set.
func displayValue(key, value string) string {
	if strings.HasSuffix(strings.ToLower(key), "api_key") {
		return config.MaskAPIKey(value)
	}
	return value
}

// getConfigValue retrieves a configuration value by dot-notation key.
func getConfigValue(cfg *config.Config, key string) (string, error) {
	key = strings.ToLower(key)
	if strings.HasPrefix(key, "agents.") {
		return getAgentValue(cfg, key)
	}

	switch key {
	case "anthropic.api_key":
		return config.MaskAPIKey(cfg.Anthropic.APIKey), nil
	case "anthropic.use_bedrock":
		return strconv.FormatBool(cfg.Anthropic.UseBedrock), nil
	case "anthropic.aws_region":
		return cfg.Anthropic.AWSRegion, nil
	case "anthropic.aws_profile":
		return cfg.Anthropic.AWSProfile, nil
	case "openai.api_key":
		return config.MaskAPIKey(cfg.OpenAI.APIKey), nil
	case "defaults.agent":
		return cfg.Defaults.Agent, nil
	case "defaults.max_concurrency":
		return strconv.Itoa(cfg.Defaults.MaxConcurrency), nil
	case "defaults.timeout":
		return cfg.Defaults.Timeout.String(), nil
	case "defaults.profile":
		return cfg.Defaults.Profile, nil
	case "router.confidence_threshold":
		return strconv.FormatFloat(cfg.Router.ConfidenceThreshold, 'g', -1, 64), nil
	case "router.complexity_words":
		return strconv.Itoa(cfg.Router.ComplexityWords), nil
	case "state.driver":
		return cfg.State.Driver, nil
	case "state.path":
		return cfg.State.Path, nil
	default:
		return "", fmt.Errorf("unknown configuration key: %s", key)
	}
}

// setConfigValue sets a configuration value by dot-notation key.
func setConfigValue(cfg *config.Config, key, value string) error {
	key = strings.ToLower(key)
	if strings.HasPrefix(key, "agents.") {
		return setAgentValue(cfg, key, value)
	}

	switch key {
	case "anthropic.api_key":
		cfg.Anthropic.APIKey = value
	case "anthropic.use_bedrock":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean for anthropic.use_bedrock: %w", err)
		}
		cfg.Anthropic.UseBedrock = b
	case "anthropic.aws_region":
		cfg.Anthropic.AWSRegion = value
	case "anthropic.aws_profile":
		cfg.Anthropic.AWSProfile = value
	case "openai.api_key":
		cfg.OpenAI.APIKey = value
	case "defaults.agent":
		id, err := models.ParseAgentID(value)
		if err != nil || !id.Concrete() {
			return fmt.Errorf("invalid value for defaults.agent: %q is not a concrete agent", value)
		}
		cfg.Defaults.Agent = value
	case "defaults.max_concurrency":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for max_concurrency: %w", err)
		}
		cfg.Defaults.MaxConcurrency = n
	case "defaults.timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for defaults.timeout: %w", err)
		}
		cfg.Defaults.Timeout = d
	case "defaults.profile":
		cfg.Defaults.Profile = value
	case "router.confidence_threshold":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid number for router.confidence_threshold: %w", err)
		}
		cfg.Router.ConfidenceThreshold = f
	case "router.complexity_words":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for router.complexity_words: %w", err)
		}
		cfg.Router.ComplexityWords = n
	case "state.driver":
		cfg.State.Driver = value
	case "state.path":
		cfg.State.Path = value
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return nil
}

// splitAgentKey splits agents.<id>.<field>.
func splitAgentKey(key string) (id, field string, err error) {
	parts := strings.SplitN(key, ".", 3)
	if len(parts) != 3 || parts[1] == "" || parts[2] == "" {
		return "", "", fmt.Errorf("agent keys look like agents.<id>.<field>, got %s", key)
	}
	return parts[1], parts[2], nil
}

func getAgentValue(cfg *config.Config, key string) (string, error) {
	id, field, err := splitAgentKey(key)
	if err != nil {
		return "", err
	}
	ac, ok := cfg.Agent(id)
	if !ok {
		return "", fmt.Errorf("agent %s is not configured", id)
	}
	switch field {
	case "backend":
		return ac.Backend, nil
	case "model":
		return ac.Model, nil
	case "command":
		return ac.Command, nil
	case "args":
		return strings.Join(ac.Args, " "), nil
	case "base_url":
		return ac.BaseURL, nil
	case "rate_limit":
		return strconv.FormatFloat(ac.RateLimit, 'g', -1, 64), nil
	case "retries":
		return strconv.Itoa(ac.Retries), nil
	default:
		return "", fmt.Errorf("unknown agent field: %s", field)
	}
}

// setAgentValue edits one agent field, starting from the built-in entry
// when the agent has no config of its own yet.
func setAgentValue(cfg *config.Config, key, value string) error {
	id, field, err := splitAgentKey(key)
	if err != nil {
		return err
	}
	ac, _ := cfg.Agent(id)

	switch field {
	case "backend":
		ac.Backend = value
	case "model":
		ac.Model = value
	case "command":
		ac.Command = value
	case "args":
		ac.Args = strings.Fields(value)
	case "base_url":
		ac.BaseURL = value
	case "rate_limit":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid number for %s: %w", key, err)
		}
		ac.RateLimit = f
	case "retries":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for %s: %w", key, err)
		}
		ac.Retries = n
	default:
		return fmt.Errorf("unknown agent field: %s", field)
	}

	if cfg.Agents == nil {
		cfg.Agents = make(map[string]config.AgentConfig)
	}
	cfg.Agents[id] = ac
	return nil
}
