package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/ShayCichocki/quorum/internal/agent"
	"github.com/ShayCichocki/quorum/internal/compiler"
	"github.com/ShayCichocki/quorum/internal/config"
	"github.com/ShayCichocki/quorum/internal/orchestrator/policy"
	"github.com/ShayCichocki/quorum/internal/router"
	"github.com/ShayCichocki/quorum/pkg/models"
)

var (
	runMode        string
	runAgents      []string
	runLead        string
	runSequential  bool
	runPick        bool
	runSteps       []string
	runRounds      int
	runIterations  int
	runProfile     string
	runConcurrency int
	runTimeout     time.Duration
	runConfirm     bool
	runTUI         bool
	runNoSave      bool
	runJSON        bool
	runDryRun      bool
)

var runCmd = &cobra.Command{
	Use:   "run <task>",
	Short: "Compile a task into a plan and run it",
	Long: `Compile a task into a multi-agent plan and execute it.

Without --mode, the profile decides:
  1. review required           -> supervise
  2. router is unsure          -> consensus
  3. task looks complex        -> pickbuild
  4. otherwise                 -> pipeline (or single)

With --mode, the plan is built directly. Mode-specific flags:
  compare    --agents, --sequential, --pick, --lead (picker)
  pipeline   --steps agent:action,... (e.g. claude:analyze,codex:code,claude:review)
  consensus  --agents, --rounds, --lead (aggregator)
  refine     --iterations
  puzzle     --agents (solvers), --iterations

Touch .quorum/signals/stop or press Ctrl+C to cancel a running plan.
Use --dry-run to print the compiled plan as YAML for 'quorum exec'.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runTask,
}

func init() {
	runCmd.Flags().StringVarP(&runMode, "mode", "m", "", "Orchestration mode (single, compare, pipeline, consensus, pickbuild, puzzle, refine, supervise)")
	runCmd.Flags().StringSliceVarP(&runAgents, "agents", "a", nil, "Agents to fan out to (comma separated)")
	runCmd.Flags().StringVar(&runLead, "lead", "", "Agent for single-agent roles (aggregator, picker, builder)")
	runCmd.Flags().BoolVar(&runSequential, "sequential", false, "Compare: run agents one after another")
	runCmd.Flags().BoolVar(&runPick, "pick", false, "Compare: add a step that picks the best response")
	runCmd.Flags().StringSliceVar(&runSteps, "steps", nil, "Pipeline stages as agent:action (comma separated)")
	runCmd.Flags().IntVar(&runRounds, "rounds", 0, "Consensus rounds (default from profile)")
	runCmd.Flags().IntVar(&runIterations, "iterations", 0, "Refine iterations")
	runCmd.Flags().StringVarP(&runProfile, "profile", "p", "", "Policy profile (default from config)")
	runCmd.Flags().IntVarP(&runConcurrency, "concurrency", "c", 0, "Maximum steps running at once")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 0, "Per-step agent timeout")
	runCmd.Flags().BoolVar(&runConfirm, "confirm", false, "Ask before each step runs")
	runCmd.Flags().BoolVar(&runTUI, "tui", false, "Show a live view of the run")
	runCmd.Flags().BoolVar(&runNoSave, "no-save", false, "Do not record the run in .quorum/state.db")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "Print the execution result as JSON")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "Print the compiled plan as YAML and exit")
}

func runTask(cmd *cobra.Command, args []string) error {
	task := strings.Join(args, " ")
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	dir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}

	reg, skipped, err := buildRegistry(ctx, cfg, dir)
	if err != nil {
		return err
	}
	if os.Getenv("QUORUM_DEBUG") != "" {
		for id, reason := range skipped {
			fmt.Fprintf(os.Stderr, "[DEBUG] agent %s unavailable: %s\n", id, reason)
		}
	}
	fallback, err := resolveFallback(cfg, reg)
	if err != nil {
		return err
	}

	profileName := runProfile
	if profileName == "" {
		profileName = cfg.Defaults.Profile
	}
	profile, err := policy.LookupProfile(profileName, cfg.Profiles)
	if err != nil {
		return err
	}

	plan, reason, err := compileTask(task, cfg, reg, fallback, profile)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if runDryRun {
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(plan)
	}
	if !runJSON && !runTUI {
		fmt.Fprintf(out, "Mode: %s (%s), %d steps\n\n", plan.Mode, reason, len(plan.Steps))
	}

	result, runID := executePlan(ctx, plan, runOptions{
		dir:         dir,
		cfg:         cfg,
		registry:    reg,
		fallback:    fallback,
		allowAgents: profile.AllowAgents,
		concurrency: pickConcurrency(runConcurrency, profile.MaxConcurrency, cfg.Defaults.MaxConcurrency),
		timeout:     pickTimeout(runTimeout, cfg.Defaults.Timeout),
		confirm:     runConfirm,
		useTUI:      runTUI,
		save:        !runNoSave,
		out:         out,
		in:          cmd.InOrStdin(),
	})
	return reportResult(out, plan, result, runID, runJSON)
}

// compileTask builds the plan from the explicit mode flags, or asks the
// policy selector when no mode was given. The returned string says why the
// mode was chosen.
func compileTask(task string, cfg *config.Config, reg *agent.Registry, fallback models.AgentID, profile policy.Profile) (*models.Plan, string, error) {
	rt := router.NewKeywordRouter(reg.IDs(), fallback)

	if runMode == "" {
		sel := policy.NewSelector(rt, reg.IDs(), fallback, policyConfig(cfg))
		plan, selection, err := sel.Plan(task, profile)
		if err != nil {
			return nil, "", err
		}
		return plan, fmt.Sprintf("profile %s: %s", profile.Name, selection.Reason), nil
	}

	mode, err := parseMode(runMode)
	if err != nil {
		return nil, "", err
	}

	pool, err := models.ParseAgentIDs(runAgents)
	if err != nil {
		return nil, "", err
	}
	if len(pool) == 0 {
		pool = reg.IDs()
	}
	lead := fallback
	if runLead != "" {
		if lead, err = models.ParseAgentID(runLead); err != nil {
			return nil, "", err
		}
	}

	var plan *models.Plan
	switch mode {
	case models.ModeCompare:
		plan, err = compiler.BuildComparePlan(task, compiler.CompareOptions{
			Agents:     pool,
			Sequential: runSequential,
			Pick:       runPick,
			Aggregator: lead,
		})
	case models.ModePipeline:
		stages, perr := parseSteps(runSteps)
		if perr != nil {
			return nil, "", perr
		}
		if len(stages) == 0 {
			plan, err = compiler.Build(mode, task, compiler.Agents{Primary: lead, Pool: pool})
			break
		}
		plan, err = compiler.BuildPipelinePlan(task, compiler.PipelineOptions{Steps: stages})
	default:
		rounds := runRounds
		if rounds == 0 {
			rounds = profile.ConsensusRounds
		}
		plan, err = compiler.Build(mode, task, compiler.Agents{
			Primary:    lead,
			Pool:       pool,
			Rounds:     rounds,
			Iterations: runIterations,
		})
	}
	if err != nil {
		return nil, "", fmt.Errorf("build %s plan: %w", mode, err)
	}
	return plan, "--mode", nil
}

// policyConfig maps the router section of the config onto the selector's policy.
func policyConfig(cfg *config.Config) *policy.Config {
	pc := policy.Default()
	pc.Routing.ConfidenceThreshold = cfg.Router.ConfidenceThreshold
	pc.Complexity.WordThreshold = cfg.Router.ComplexityWords
	_ = pc.Validate()
	return pc
}

// parseMode accepts any mode a builder can produce.
func parseMode(s string) (models.Mode, error) {
	m := models.Mode(strings.ToLower(strings.TrimSpace(s)))
	if !m.Valid() || m == models.ModeCustom {
		return "", fmt.Errorf("unknown mode %q", s)
	}
	return m, nil
}

// parseSteps parses pipeline stages written as agent:action. A stage with no
// action defaults to respond.
func parseSteps(raw []string) ([]compiler.PipelineStep, error) {
	stages := make([]compiler.PipelineStep, 0, len(raw))
	for _, s := range raw {
		name, action, _ := strings.Cut(strings.TrimSpace(s), ":")
		id, err := models.ParseAgentID(name)
		if err != nil {
			return nil, fmt.Errorf("pipeline stage %q: %w", s, err)
		}
		act := models.ActionRespond
		if action != "" {
			act = models.Action(strings.ToLower(action))
			if !act.Valid() || act == models.ActionCustom {
				return nil, fmt.Errorf("pipeline stage %q: unknown action %q", s, action)
			}
		}
		stages = append(stages, compiler.PipelineStep{Agent: id, Action: act})
	}
	return stages, nil
}

// pickConcurrency returns the first positive value: flag, profile, config.
func pickConcurrency(values ...int) int {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 1
}

func pickTimeout(flag, configured time.Duration) time.Duration {
	if flag > 0 {
		return flag
	}
	return configured
}
