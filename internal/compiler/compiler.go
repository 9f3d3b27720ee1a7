// Package compiler turns an orchestration intent into a validated plan.
//
// Every builder is a pure function of its inputs apart from the plan ID and
// creation time. The steps it returns already satisfy the scheduler's
// invariants: dependency targets exist, the graph is acyclic, output names are
// unique, and every placeholder a step uses is published by one of its
// transitive prerequisites. The step meant to hold the final answer is always
// placed last.
package compiler

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ShayCichocki/quorum/internal/graph"
	"github.com/ShayCichocki/quorum/internal/template"
	"github.com/ShayCichocki/quorum/pkg/models"
)

var (
	// ErrNoAgents is returned when a builder needs at least one agent and got none.
	ErrNoAgents = errors.New("no agents given")
	// ErrDuplicateAgent is returned when one agent is listed twice where output names are derived from agent names.
	ErrDuplicateAgent = errors.New("agent listed twice")
)

// newID and now are swapped in tests.
var (
	newID = func() string { return uuid.New().String() }
	now   = time.Now
)

func newPlan(mode models.Mode, prompt string, steps []models.Step) (*models.Plan, error) {
	p := &models.Plan{
		ID:        newID(),
		Mode:      mode,
		Prompt:    prompt,
		Steps:     steps,
		CreatedAt: now(),
	}
	if err := Lint(p); err != nil {
		return nil, fmt.Errorf("compile %s plan: %w", mode, err)
	}
	return p, nil
}

func checkAgent(role string, a models.AgentID) error {
	if !a.Valid() {
		return fmt.Errorf("%s: unknown agent %q", role, a)
	}
	return nil
}

// checkAgents validates a list; unique requires each agent to appear once.
func checkAgents(role string, agents []models.AgentID, unique bool) error {
	if len(agents) == 0 {
		return fmt.Errorf("%s: %w", role, ErrNoAgents)
	}
	seen := make(map[models.AgentID]bool, len(agents))
	for _, a := range agents {
		if err := checkAgent(role, a); err != nil {
			return err
		}
		if unique && seen[a] {
			return fmt.Errorf("%s: %w: %s", role, ErrDuplicateAgent, a)
		}
		seen[a] = true
	}
	return nil
}

// labeledOutputs renders "**label:**\n{{var}}" blocks separated by blank lines.
func labeledOutputs(labels, vars []string) string {
	blocks := make([]string, len(vars))
	for i := range vars {
		blocks[i] = fmt.Sprintf("**%s:**\n%s", labels[i], template.Placeholder(vars[i]))
	}
	return strings.Join(blocks, "\n\n")
}

func joinSections(sections ...string) string {
	var nonEmpty []string
	for _, s := range sections {
		if s != "" {
			nonEmpty = append(nonEmpty, s)
		}
	}
	return strings.Join(nonEmpty, "\n\n")
}

// Lint checks a plan against the scheduler's invariants plus the data-flow
// rule builders follow: output names are unique and every {{name}} a step
// uses is either "prompt" or published by a step it transitively depends on.
func Lint(p *models.Plan) error {
	g := graph.New()
	if err := g.Build(p.Steps); err != nil {
		return err
	}

	publisher := make(map[string]string, len(p.Steps))
	for _, s := range p.Steps {
		if !s.Agent.Valid() {
			return fmt.Errorf("step %s: unknown agent %q", s.ID, s.Agent)
		}
		if s.OutputAs == "" {
			continue
		}
		if !template.ValidName(s.OutputAs) {
			return fmt.Errorf("step %s: output name %q must contain only letters, digits and underscores", s.ID, s.OutputAs)
		}
		if s.OutputAs == template.PromptVar {
			return fmt.Errorf("step %s: output name %q is reserved", s.ID, s.OutputAs)
		}
		if other, dup := publisher[s.OutputAs]; dup {
			return fmt.Errorf("steps %s and %s both publish %q", other, s.ID, s.OutputAs)
		}
		publisher[s.OutputAs] = s.ID
	}

	for _, s := range p.Steps {
		upstream := make(map[string]bool)
		for _, id := range g.TransitiveDependencies(s.ID) {
			upstream[id] = true
		}
		for _, name := range template.References(s.Prompt) {
			if name == template.PromptVar {
				continue
			}
			src, ok := publisher[name]
			if !ok {
				return fmt.Errorf("step %s: no step publishes %q", s.ID, name)
			}
			if !upstream[src] {
				return fmt.Errorf("step %s: uses %q from %s without depending on it", s.ID, name, src)
			}
		}
	}
	return nil
}

// Agents is the agent assignment the policy layer hands to Build.
type Agents struct {
	// Primary leads single-agent roles: aggregator, picker, builder, worker.
	Primary models.AgentID
	// Pool provides fan-out proposers and solvers. Defaults to [Primary].
	Pool []models.AgentID
	// Rounds is the number of consensus rounds (default 1).
	Rounds int
	// Iterations is the number of refine iterations for refine and puzzle plans.
	Iterations int
}

// secondary returns the first pool agent that differs from Primary, or Primary.
func (a Agents) secondary() models.AgentID {
	for _, p := range a.Pool {
		if p != a.Primary {
			return p
		}
	}
	return a.Primary
}

func (a Agents) pool() []models.AgentID {
	seen := make(map[models.AgentID]bool)
	var out []models.AgentID
	for _, p := range a.Pool {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		out = []models.AgentID{a.Primary}
	}
	return out
}

// Build compiles a plan for any mode with a default role assignment.
func Build(mode models.Mode, prompt string, a Agents) (*models.Plan, error) {
	if err := checkAgent("primary", a.Primary); err != nil {
		return nil, err
	}

	switch mode {
	case models.ModeSingle:
		return BuildSingleAgentPlan(prompt, a.Primary)
	case models.ModeCompare:
		return BuildComparePlan(prompt, CompareOptions{Agents: a.pool(), Pick: true, Aggregator: a.Primary})
	case models.ModePipeline:
		return BuildPipelinePlan(prompt, PipelineOptions{Steps: []PipelineStep{
			{Agent: a.Primary, Action: models.ActionAnalyze},
			{Agent: a.Primary, Action: models.ActionCode},
			{Agent: a.secondary(), Action: models.ActionReview},
		}})
	case models.ModeConsensus:
		return BuildConsensusPlan(prompt, ConsensusOptions{Proposers: a.pool(), Aggregator: a.Primary, Rounds: a.Rounds})
	case models.ModePickBuild:
		return BuildPickBuildPlan(prompt, PickBuildOptions{Proposers: a.pool(), Picker: a.Primary, Builder: a.Primary})
	case models.ModePuzzle:
		return BuildPuzzlePlan(prompt, PuzzleOptions{
			Decomposer:       a.Primary,
			Solvers:          a.pool(),
			Assembler:        a.Primary,
			Verifier:         a.secondary(),
			RefineIterations: a.Iterations,
		})
	case models.ModeSupervise:
		return BuildSupervisePlan(prompt, SuperviseOptions{Worker: a.Primary, Supervisor: a.secondary()})
	case models.ModeRefine:
		iterations := a.Iterations
		if iterations < 1 {
			iterations = 2
		}
		return BuildRefinePlan(prompt, RefineOptions{Worker: a.Primary, Critic: a.secondary(), Iterations: iterations})
	default:
		return nil, fmt.Errorf("no builder for mode %q", mode)
	}
}
