package main

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/ShayCichocki/quorum/internal/compiler"
	"github.com/ShayCichocki/quorum/internal/config"
	"github.com/ShayCichocki/quorum/internal/orchestrator/policy"
	"github.com/ShayCichocki/quorum/internal/signals"
	"github.com/ShayCichocki/quorum/pkg/models"
)

var (
	execWatch       bool
	execProfile     string
	execConcurrency int
	execTimeout     time.Duration
	execConfirm     bool
	execTUI         bool
	execNoSave      bool
	execJSON        bool
	execCheck       bool
)

var execCmd = &cobra.Command{
	Use:   "exec <plan.yaml>",
	Short: "Run a plan file",
	Long: `Run a hand-written or saved plan.

The file is YAML (JSON also parses) with the same shape 'quorum run --dry-run'
prints:

  prompt: Write a haiku about Go
  steps:
    - id: draft
      agent: claude
      prompt: "{{prompt}}"
      output_as: draft
    - id: critique
      agent: codex
      prompt: "Critique this haiku:\n{{draft}}"
      depends_on: [draft]

The plan is linted before it runs: every {{name}} must be "prompt" or be
published by a step the using step depends on.

With --watch, the plan is re-run every time the file changes.`,
	Args: cobra.ExactArgs(1),
	RunE: runExec,
}

func init() {
	execCmd.Flags().BoolVarP(&execWatch, "watch", "w", false, "Re-run the plan whenever the file changes")
	execCmd.Flags().StringVarP(&execProfile, "profile", "p", "", "Profile supplying concurrency and allowed agents")
	execCmd.Flags().IntVarP(&execConcurrency, "concurrency", "c", 0, "Maximum steps running at once")
	execCmd.Flags().DurationVar(&execTimeout, "timeout", 0, "Per-step agent timeout")
	execCmd.Flags().BoolVar(&execConfirm, "confirm", false, "Ask before each step runs")
	execCmd.Flags().BoolVar(&execTUI, "tui", false, "Show a live view of the run")
	execCmd.Flags().BoolVar(&execNoSave, "no-save", false, "Do not record the run in .quorum/state.db")
	execCmd.Flags().BoolVar(&execJSON, "json", false, "Print the execution result as JSON")
	execCmd.Flags().BoolVar(&execCheck, "check", false, "Lint the plan and exit without running it")
}

func runExec(cmd *cobra.Command, args []string) error {
	path := args[0]
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if execCheck {
		plan, err := loadPlanFile(path)
		if err != nil {
			return err
		}
		printStatus("✓", fmt.Sprintf("%s: %d steps, plan is valid", path, len(plan.Steps)), color.FgGreen)
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	dir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}

	reg, _, err := buildRegistry(ctx, cfg, dir)
	if err != nil {
		return err
	}
	fallback, err := resolveFallback(cfg, reg)
	if err != nil {
		return err
	}

	profileName := execProfile
	if profileName == "" {
		profileName = cfg.Defaults.Profile
	}
	profile, err := policy.LookupProfile(profileName, cfg.Profiles)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	runOnce := func(ctx context.Context) error {
		plan, err := loadPlanFile(path)
		if err != nil {
			return err
		}
		result, runID := executePlan(ctx, plan, runOptions{
			dir:         dir,
			cfg:         cfg,
			registry:    reg,
			fallback:    fallback,
			allowAgents: profile.AllowAgents,
			concurrency: pickConcurrency(execConcurrency, profile.MaxConcurrency, cfg.Defaults.MaxConcurrency),
			timeout:     pickTimeout(execTimeout, cfg.Defaults.Timeout),
			confirm:     execConfirm,
			useTUI:      execTUI,
			save:        !execNoSave,
			out:         out,
			in:          cmd.InOrStdin(),
		})
		return reportResult(out, plan, result, runID, execJSON)
	}

	if !execWatch {
		return runOnce(ctx)
	}
	return watchPlan(ctx, path, runOnce)
}

// watchPlan runs the plan, then again after every change to path, until
// interrupted. Failed runs are reported and do not end the watch.
func watchPlan(ctx context.Context, path string, runOnce func(context.Context) error) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	changes := make(chan struct{}, 1)
	go func() {
		err := signals.WatchFile(ctx, path, func() {
			select {
			case changes <- struct{}{}:
			default:
			}
		})
		if err != nil {
			log.Printf("[quorum] watch %s: %v", path, err)
			stop()
		}
	}()

	for {
		if err := runOnce(ctx); err != nil {
			printStatus("✗", err.Error(), color.FgRed)
		}
		if ctx.Err() != nil {
			return nil
		}
		fmt.Printf("\nWatching %s for changes (Ctrl+C to exit)...\n", path)
		select {
		case <-ctx.Done():
			return nil
		case <-changes:
			fmt.Printf("\n%s changed, re-running\n\n", path)
		}
	}
}

// loadPlanFile decodes and lints a plan file. A missing ID is generated and
// a missing mode becomes custom.
func loadPlanFile(path string) (*models.Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan: %w", err)
	}
	return parsePlan(data)
}

func parsePlan(data []byte) (*models.Plan, error) {
	var plan models.Plan
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&plan); err != nil {
		return nil, fmt.Errorf("decode plan: %w", err)
	}

	if plan.ID == "" {
		plan.ID = "plan-" + uuid.NewString()
	}
	if len(plan.Steps) == 0 {
		return nil, fmt.Errorf("plan %s has no steps", plan.ID)
	}
	if plan.Mode == "" {
		plan.Mode = models.ModeCustom
	}
	if !plan.Mode.Valid() {
		return nil, fmt.Errorf("plan %s: unknown mode %q", plan.ID, plan.Mode)
	}
	if plan.CreatedAt.IsZero() {
		plan.CreatedAt = time.Now()
	}
	for i, s := range plan.Steps {
		if !s.Agent.Valid() {
			return nil, fmt.Errorf("step %q: unknown agent %q", s.ID, s.Agent)
		}
		if s.Action == "" {
			plan.Steps[i].Action = models.ActionCustom
		} else if !s.Action.Valid() {
			return nil, fmt.Errorf("step %q: unknown action %q", s.ID, s.Action)
		}
	}

	if err := compiler.Lint(&plan); err != nil {
		return nil, fmt.Errorf("invalid plan: %w", err)
	}
	return &plan, nil
}
