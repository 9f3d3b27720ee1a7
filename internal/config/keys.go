package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrNoAPIKey is returned when no API key is configured for a provider.
var ErrNoAPIKey = errors.New("no API key configured")

// Provider identifies an API whose key quorum manages.
type Provider string

const (
	ProviderAnthropic Provider = "anthropic"
	ProviderOpenAI    Provider = "openai"
)

// envVar returns the environment variable holding the provider's key.
func (p Provider) envVar() string {
	switch p {
	case ProviderOpenAI:
		return "OPENAI_API_KEY"
	default:
		return "ANTHROPIC_API_KEY"
	}
}

// prefix returns the expected key prefix.
func (p Provider) prefix() string {
	switch p {
	case ProviderOpenAI:
		return "sk-"
	default:
		return "sk-ant-"
	}
}

func (p Provider) configured(cfg *Config) string {
	if cfg == nil {
		return ""
	}
	var raw string
	switch p {
	case ProviderOpenAI:
		raw = cfg.OpenAI.APIKey
	default:
		raw = cfg.Anthropic.APIKey
	}
	// Expand any remaining env var references
	key := os.ExpandEnv(raw)
	if strings.HasPrefix(key, "${") {
		return ""
	}
	return key
}

// GetAPIKey returns the provider's API key.
// It checks in order: environment variable, config file.
func GetAPIKey(cfg *Config, p Provider) (string, error) {
	if key := os.Getenv(p.envVar()); key != "" {
		return key, nil
	}
	if key := p.configured(cfg); key != "" {
		return key, nil
	}
	return "", fmt.Errorf("%w for %s", ErrNoAPIKey, p)
}

// ValidateAPIKey performs basic format validation on a provider key.
// It does not contact the provider.
func ValidateAPIKey(p Provider, key string) error {
	if key == "" {
		return ErrNoAPIKey
	}
	if !strings.HasPrefix(key, p.prefix()) {
		return fmt.Errorf("invalid %s API key format: expected %q prefix", p, p.prefix())
	}
	if len(key) < 20 {
		return errors.New("invalid API key format: key too short")
	}
	return nil
}

// MaskAPIKey returns a masked version of the API key for display.
// Shows the first 7 characters and last 4 characters.
func MaskAPIKey(key string) string {
	if key == "" {
		return "(not set)"
	}

	if len(key) <= 15 {
		return "***"
	}

	return key[:7] + "..." + key[len(key)-4:]
}

// KeySource represents where an API key was loaded from.
type KeySource string

const (
	KeySourceEnv    KeySource = "environment"
	KeySourceConfig KeySource = "config_file"
	KeySourceNone   KeySource = "none"
)

// GetAPIKeySource returns where the provider's API key was sourced from.
func GetAPIKeySource(cfg *Config, p Provider) KeySource {
	if os.Getenv(p.envVar()) != "" {
		return KeySourceEnv
	}
	if p.configured(cfg) != "" {
		return KeySourceConfig
	}
	return KeySourceNone
}
