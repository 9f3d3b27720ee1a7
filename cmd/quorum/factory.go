package main

import (
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/ShayCichocki/quorum/internal/agent"
	"github.com/ShayCichocki/quorum/internal/config"
	"github.com/ShayCichocki/quorum/pkg/models"
)

// retryBaseDelay is the first backoff delay for agents with retries configured.
const retryBaseDelay = 2 * time.Second

// lookPath finds CLI agents. Tests replace it.
var lookPath = exec.LookPath

// buildRegistry registers every known agent whose backend can be set up.
// Agents that cannot be built are returned in skipped with the reason, so
// callers can explain why an agent is unavailable without failing the run.
func buildRegistry(ctx context.Context, cfg *config.Config, dir string) (*agent.Registry, map[models.AgentID]string, error) {
	reg := agent.NewRegistry()
	skipped := make(map[models.AgentID]string)

	for _, id := range models.KnownAgents {
		ac, ok := cfg.Agent(string(id))
		if !ok {
			skipped[id] = "not configured"
			continue
		}

		c, err := newCapability(ctx, cfg, id, ac, dir)
		if err != nil {
			skipped[id] = err.Error()
			continue
		}

		if err := reg.Register(id, wrapCapability(c, string(id), ac)); err != nil {
			return nil, nil, fmt.Errorf("register %s: %w", id, err)
		}
	}

	return reg, skipped, nil
}

// newCapability builds the raw adapter for an agent's backend.
func newCapability(ctx context.Context, cfg *config.Config, id models.AgentID, ac config.AgentConfig, dir string) (agent.Capability, error) {
	switch ac.Backend {
	case config.BackendAnthropic:
		var key string
		if !cfg.Anthropic.UseBedrock {
			k, err := config.GetAPIKey(cfg, config.ProviderAnthropic)
			if err != nil {
				return nil, err
			}
			key = k
		}
		return agent.NewAnthropicAgent(ctx, agent.AnthropicConfig{
			Model:      ac.Model,
			APIKey:     key,
			UseBedrock: cfg.Anthropic.UseBedrock,
			AWSRegion:  cfg.Anthropic.AWSRegion,
			AWSProfile: cfg.Anthropic.AWSProfile,
			BaseURL:    ac.BaseURL,
		})

	case config.BackendOpenAI:
		key, err := config.GetAPIKey(cfg, config.ProviderOpenAI)
		if err != nil {
			return nil, err
		}
		return agent.NewOpenAIAgent(agent.OpenAIConfig{
			APIKey:  key,
			Model:   ac.Model,
			BaseURL: ac.BaseURL,
		})

	case config.BackendOllama:
		// The built-in ollama entry would always "succeed" without a server,
		// so only an explicit agents.<id> entry enables it.
		if _, explicit := cfg.Agents[string(id)]; !explicit {
			return nil, fmt.Errorf("ollama backend not enabled (add agents.%s to the config)", id)
		}
		return agent.NewOllamaAgent(agent.OllamaConfig{
			Model:     ac.Model,
			ServerURL: ac.BaseURL,
		})

	case config.BackendCLI:
		cc := cliConfig(id, ac, dir)
		if _, err := lookPath(cc.Command); err != nil {
			return nil, fmt.Errorf("%s CLI not found in PATH", cc.Command)
		}
		return agent.NewCLIAgent(cc)

	default:
		return nil, fmt.Errorf("unknown backend %q", ac.Backend)
	}
}

// cliConfig merges the configured command with the stock invocation for id.
func cliConfig(id models.AgentID, ac config.AgentConfig, dir string) agent.CLIConfig {
	cc := agent.DefaultCLIConfigs[id]
	if ac.Command != "" {
		cc.Command = ac.Command
	}
	if len(ac.Args) > 0 {
		cc.Args = ac.Args
	}
	cc.Model = ac.Model
	cc.Dir = dir
	return cc
}

// wrapCapability applies the opt-in rate limit and retry wrappers.
// Rate limiting is innermost so every retry attempt is also paced.
func wrapCapability(c agent.Capability, name string, ac config.AgentConfig) agent.Capability {
	if ac.RateLimit > 0 {
		burst := int(ac.RateLimit)
		if burst < 1 {
			burst = 1
		}
		c = agent.NewRateLimited(c, ac.RateLimit, burst)
	}
	if ac.Retries > 0 {
		c = agent.NewRetrying(c, name, ac.Retries+1, retryBaseDelay)
	}
	return c
}

// resolveFallback picks the agent used for auto steps: the configured default
// if it is registered, otherwise the first registered agent.
func resolveFallback(cfg *config.Config, reg *agent.Registry) (models.AgentID, error) {
	ids := reg.IDs()
	if len(ids) == 0 {
		return "", fmt.Errorf("%w: no agent backend is available (run 'quorum init' to check)", agent.ErrNoAgent)
	}
	if want := models.AgentID(cfg.Defaults.Agent); reg.Has(want) {
		return want, nil
	}
	return ids[0], nil
}
