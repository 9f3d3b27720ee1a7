package agent

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/ShayCichocki/quorum/pkg/models"
)

// Placeholders substituted in CLIConfig.Args.
const (
	ArgPrompt = "{prompt}"
	ArgModel  = "{model}"
)

// CLIConfig describes how to run an agent's command-line tool.
type CLIConfig struct {
	// Command is the executable name or path.
	Command string
	// Args are passed to Command. Any arg equal to ArgPrompt is replaced with
	// the prompt; if none is, the prompt is appended as the last argument.
	// An arg equal to ArgModel is replaced with the model, or dropped together
	// with the flag before it when no model is set.
	Args []string
	// Model is the default model passed via ArgModel.
	Model string
	// Dir is the working directory. Empty means the current directory.
	Dir string
}

// DefaultCLIConfigs holds the stock invocations of the known agent CLIs.
var DefaultCLIConfigs = map[models.AgentID]CLIConfig{
	models.AgentClaude: {Command: "claude", Args: []string{"--model", ArgModel, "-p", ArgPrompt}},
	models.AgentCodex:  {Command: "codex", Args: []string{"exec", "--model", ArgModel, ArgPrompt}},
	models.AgentGemini: {Command: "gemini", Args: []string{"--model", ArgModel, "-p", ArgPrompt}},
}

// CLIAgent runs a command-line agent once per prompt and returns its stdout.
type CLIAgent struct {
	cfg CLIConfig
}

// NewCLIAgent creates a CLI-backed agent.
func NewCLIAgent(cfg CLIConfig) (*CLIAgent, error) {
	if cfg.Command == "" {
		return nil, fmt.Errorf("cli agent: command is required")
	}
	return &CLIAgent{cfg: cfg}, nil
}

func (c *CLIAgent) args(prompt, model string) []string {
	var out []string
	placed := false
	for i := 0; i < len(c.cfg.Args); i++ {
		arg := c.cfg.Args[i]
		switch arg {
		case ArgPrompt:
			out = append(out, prompt)
			placed = true
		case ArgModel:
			if model != "" {
				out = append(out, model)
			} else if len(out) > 0 && strings.HasPrefix(out[len(out)-1], "-") {
				out = out[:len(out)-1]
			}
		default:
			out = append(out, arg)
		}
	}
	if !placed {
		out = append(out, prompt)
	}
	return out
}

// Invoke runs the command. A non-zero exit is an error carrying the tail of stderr.
func (c *CLIAgent) Invoke(ctx context.Context, req Request) (Response, error) {
	model := c.cfg.Model
	if req.Model != "" {
		model = req.Model
	}

	cmd := exec.CommandContext(ctx, c.cfg.Command, c.args(req.Prompt, model)...)
	if c.cfg.Dir != "" {
		cmd.Dir = c.cfg.Dir
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	duration := time.Since(start)

	if ctxErr := ctx.Err(); ctxErr != nil {
		return Response{}, fmt.Errorf("%s: %w", c.cfg.Command, ctxErr)
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return Response{}, fmt.Errorf("%s exited with code %d: %s", c.cfg.Command, exitErr.ExitCode(), tail(stderr.String(), 500))
		}
		return Response{}, fmt.Errorf("run %s: %w", c.cfg.Command, err)
	}

	return Response{
		Content:  strings.TrimSpace(stdout.String()),
		Model:    model,
		Duration: duration,
	}, nil
}

// tail returns the last n bytes of s, trimmed.
func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) > n {
		return "..." + s[len(s)-n:]
	}
	return s
}

var _ Capability = (*CLIAgent)(nil)
