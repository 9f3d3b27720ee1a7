package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/quorum/internal/config"
	"github.com/ShayCichocki/quorum/internal/signals"
	"github.com/ShayCichocki/quorum/pkg/models"
)

var (
	initForce       bool
	initNoGitignore bool
	initNoConfig    bool
)

var initCmd = &cobra.Command{
	Use:   "init [directory]",
	Short: "Initialize a quorum project",
	Long: `Initialize a directory for use with quorum.

This command sets up everything needed to run quorum:
  - Reports which agents are usable (CLIs on PATH, API keys)
  - Creates the .quorum directory with logs, signals and the run database
  - Adds quorum entries to .gitignore
  - Creates a commented .quorum.yaml template

The directory argument is optional and defaults to the current directory.

Examples:
  quorum init              # Initialize current directory
  quorum init ./myproject  # Initialize specific directory
  quorum init --force      # Reinitialize even if already set up`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Reinitialize even if already set up")
	initCmd.Flags().BoolVar(&initNoGitignore, "no-gitignore", false, "Do not touch .gitignore")
	initCmd.Flags().BoolVar(&initNoConfig, "no-config", false, "Do not create .quorum.yaml")
}

func runInit(cmd *cobra.Command, args []string) error {
	targetDir := "."
	if len(args) > 0 {
		targetDir = args[0]
	}

	absPath, err := filepath.Abs(targetDir)
	if err != nil {
		return fmt.Errorf("resolving absolute path: %w", err)
	}
	if err := os.MkdirAll(absPath, 0755); err != nil {
		return fmt.Errorf("creating directory %s: %w", absPath, err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Initializing quorum in %s...\n\n", absPath)

	quorumDir := filepath.Join(absPath, ".quorum")
	if _, err := os.Stat(quorumDir); err == nil && !initForce {
		fmt.Fprintln(out, "Directory already initialized. Use --force to reinitialize.")
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	usable := checkAgents(out, cfg)

	for _, dir := range []string{filepath.Join(quorumDir, "logs"), signals.Dir(absPath)} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	fprintStatus(out, "✓", "Created .quorum directory structure", color.FgGreen)

	db, err := openStore(cfg, absPath)
	if err != nil {
		fprintStatus(out, "✗", fmt.Sprintf("Run database unavailable: %v", err), color.FgRed)
	} else {
		fprintStatus(out, "✓", fmt.Sprintf("Run database ready (%s driver)", db.Driver()), color.FgGreen)
		db.Close()
	}

	if !initNoGitignore {
		if err := updateGitignore(absPath); err != nil {
			return fmt.Errorf("updating .gitignore: %w", err)
		}
		fprintStatus(out, "✓", "Updated .gitignore with quorum entries", color.FgGreen)
	}

	if !initNoConfig {
		created, err := createProjectConfig(absPath)
		if err != nil {
			return fmt.Errorf("creating project config: %w", err)
		}
		if created {
			fprintStatus(out, "✓", "Created .quorum.yaml template", color.FgGreen)
		}
	}

	fmt.Fprintf(out, "\n%s quorum initialization complete!\n\n", color.GreenString("✓"))
	fmt.Fprintln(out, "Next steps:")
	if usable == 0 {
		fmt.Fprintln(out, "  1. Make an agent available, for example:")
		fmt.Fprintln(out, "     npm install -g @anthropic-ai/claude-code")
		fmt.Fprintln(out, "     # or: export ANTHROPIC_API_KEY=your-key-here")
		fmt.Fprintln(out, "     #     quorum config agents.claude.backend anthropic")
		fmt.Fprintln(out)
	}
	fmt.Fprintln(out, "  2. Run a task:")
	fmt.Fprintln(out, "     quorum run \"your task here\"")
	fmt.Fprintln(out, "     # or preview the plan: quorum run --dry-run \"your task here\"")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "  3. Learn more:")
	fmt.Fprintln(out, "     quorum --help")
	return nil
}

// checkAgents prints one status line per known agent and returns how many
// look usable.
func checkAgents(out io.Writer, cfg *config.Config) int {
	usable := 0
	for _, id := range models.KnownAgents {
		ac, ok := cfg.Agent(string(id))
		if !ok {
			continue
		}
		switch ac.Backend {
		case config.BackendCLI:
			command := cliConfig(id, ac, "").Command
			if _, err := lookPath(command); err != nil {
				fprintStatus(out, "⚠", fmt.Sprintf("%s: %s CLI not found", id, command), color.FgYellow)
				continue
			}
			fprintStatus(out, "✓", fmt.Sprintf("%s: %s CLI found", id, command), color.FgGreen)
			usable++

		case config.BackendAnthropic, config.BackendOpenAI:
			provider := config.ProviderAnthropic
			if ac.Backend == config.BackendOpenAI {
				provider = config.ProviderOpenAI
			}
			if provider == config.ProviderAnthropic && cfg.Anthropic.UseBedrock {
				fprintStatus(out, "✓", fmt.Sprintf("%s: using AWS Bedrock", id), color.FgGreen)
				usable++
				continue
			}
			key, err := config.GetAPIKey(cfg, provider)
			if err != nil {
				fprintStatus(out, "⚠", fmt.Sprintf("%s: %v (you can set it later)", id, err), color.FgYellow)
				continue
			}
			source := config.GetAPIKeySource(cfg, provider)
			if err := config.ValidateAPIKey(provider, key); err != nil {
				fprintStatus(out, "⚠", fmt.Sprintf("%s: %v", id, err), color.FgYellow)
				continue
			}
			fprintStatus(out, "✓", fmt.Sprintf("%s: API key %s (%s)", id, config.MaskAPIKey(key), source), color.FgGreen)
			usable++

		case config.BackendOllama:
			if _, explicit := cfg.Agents[string(id)]; !explicit {
				continue
			}
			fprintStatus(out, "✓", fmt.Sprintf("%s: ollama model %s", id, ac.Model), color.FgGreen)
			usable++
		}
	}
	return usable
}

// gitignoreEntries are the paths quorum writes that should not be committed.
var gitignoreEntries = []string{
	".quorum/state.db*",
	".quorum/logs/",
	".quorum/signals/",
}

// updateGitignore adds quorum entries to .gitignore if not present
func updateGitignore(repoPath string) error {
	gitignorePath := filepath.Join(repoPath, ".gitignore")

	var existingContent string
	if data, err := os.ReadFile(gitignorePath); err == nil {
		existingContent = string(data)
	}

	var missing []string
	for _, entry := range gitignoreEntries {
		if !strings.Contains(existingContent, entry) {
			missing = append(missing, entry)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	var newContent strings.Builder
	newContent.WriteString(existingContent)
	if len(existingContent) > 0 && !strings.HasSuffix(existingContent, "\n") {
		newContent.WriteString("\n")
	}
	newContent.WriteString("\n# quorum\n")
	for _, entry := range missing {
		newContent.WriteString(entry + "\n")
	}

	return os.WriteFile(gitignorePath, []byte(newContent.String()), 0644)
}

const projectConfigTemplate = `# quorum project configuration
# This file overrides defaults from ~/.config/quorum/config.yaml

# defaults:
#   agent: claude
#   max_concurrency: 4
#   timeout: 10m
#   profile: balanced

# router:
#   confidence_threshold: 0.6
#   complexity_words: 120

# agents:
#   claude:
#     backend: anthropic        # anthropic, cli, openai or ollama
#     model: claude-sonnet-4-20250514
#     retries: 2
#   codex:
#     command: codex
#     args: ["exec", "{prompt}"]
#     rate_limit: 0.5           # requests per second
#   ollama:
#     backend: ollama
#     model: llama3
#     base_url: http://localhost:11434

# profiles:
#   careful:
#     preferred_modes: [supervise, pipeline]
#     require_review: true
#     allow_agents: [claude, codex]

# state:
#   driver: sqlite              # sqlite (pure Go) or sqlite3 (cgo)
#   path: .quorum/state.db
`

// createProjectConfig writes the .quorum.yaml template. It reports false
// when a config already exists.
func createProjectConfig(repoPath string) (bool, error) {
	configPath := filepath.Join(repoPath, ".quorum.yaml")
	if _, err := os.Stat(configPath); err == nil {
		return false, nil
	}
	if err := os.WriteFile(configPath, []byte(projectConfigTemplate), 0644); err != nil {
		return false, err
	}
	return true, nil
}
