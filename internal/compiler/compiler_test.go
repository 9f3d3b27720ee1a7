package compiler

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/ShayCichocki/quorum/internal/template"
	"github.com/ShayCichocki/quorum/pkg/models"
)

const task = "Write a haiku about build systems"

func stepIDs(p *models.Plan) []string {
	ids := make([]string, len(p.Steps))
	for i, s := range p.Steps {
		ids[i] = s.ID
	}
	return ids
}

func mustStep(t *testing.T, p *models.Plan, id string) *models.Step {
	t.Helper()
	s, _ := p.Step(id)
	if s == nil {
		t.Fatalf("plan has no step %q (steps: %v)", id, stepIDs(p))
	}
	return s
}

func TestBuildSingleAgentPlan(t *testing.T) {
	p, err := BuildSingleAgentPlan(task, models.AgentClaude)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ID == "" {
		t.Error("expected plan ID")
	}
	if p.Mode != models.ModeSingle || p.Prompt != task {
		t.Errorf("unexpected plan header: mode=%s prompt=%q", p.Mode, p.Prompt)
	}
	if len(p.Steps) != 1 {
		t.Fatalf("expected 1 step, got %d", len(p.Steps))
	}
	s := p.Steps[0]
	if s.Prompt != "{{prompt}}" || s.OutputAs != "result" || len(s.DependsOn) != 0 {
		t.Errorf("unexpected step: %+v", s)
	}
}

func TestBuildSingleAgentPlanUnknownAgent(t *testing.T) {
	if _, err := BuildSingleAgentPlan(task, models.AgentID("hal9000")); err == nil {
		t.Fatal("expected error for unknown agent")
	}
}

func TestPlanIDsAreUnique(t *testing.T) {
	a, _ := BuildSingleAgentPlan(task, models.AgentClaude)
	b, _ := BuildSingleAgentPlan(task, models.AgentClaude)
	if a.ID == b.ID {
		t.Errorf("expected distinct plan IDs, both %s", a.ID)
	}
}

func TestBuildComparePlanParallel(t *testing.T) {
	p, err := BuildComparePlan(task, CompareOptions{Agents: []models.AgentID{models.AgentClaude, models.AgentCodex}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(p.Steps) != 2 {
		t.Fatalf("expected 2 steps, got %d", len(p.Steps))
	}
	for _, s := range p.Steps {
		if len(s.DependsOn) != 0 {
			t.Errorf("step %s: expected no dependencies, got %v", s.ID, s.DependsOn)
		}
		if s.Prompt != "{{prompt}}" {
			t.Errorf("step %s: expected raw prompt, got %q", s.ID, s.Prompt)
		}
		if s.OutputAs != ResponseVar(s.Agent) {
			t.Errorf("step %s: expected output %s, got %s", s.ID, ResponseVar(s.Agent), s.OutputAs)
		}
	}
}

func TestBuildComparePlanSequential(t *testing.T) {
	agents := []models.AgentID{models.AgentClaude, models.AgentCodex, models.AgentGemini}
	p, err := BuildComparePlan(task, CompareOptions{Agents: agents, Sequential: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, s := range p.Steps {
		if i == 0 {
			if len(s.DependsOn) != 0 {
				t.Errorf("first step should not depend on anything: %v", s.DependsOn)
			}
			continue
		}
		if !reflect.DeepEqual(s.DependsOn, []string{p.Steps[i-1].ID}) {
			t.Errorf("step %s: expected dependency on %s, got %v", s.ID, p.Steps[i-1].ID, s.DependsOn)
		}
		// Ordering only; earlier answers are not fed forward.
		if s.Prompt != "{{prompt}}" {
			t.Errorf("step %s: expected raw prompt, got %q", s.ID, s.Prompt)
		}
	}
}

func TestBuildComparePlanWithPick(t *testing.T) {
	p, err := BuildComparePlan(task, CompareOptions{
		Agents:     []models.AgentID{models.AgentClaude, models.AgentCodex},
		Pick:       true,
		Aggregator: models.AgentGemini,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(p.Steps) != 3 {
		t.Fatalf("expected 3 steps, got %d", len(p.Steps))
	}
	pick := p.Steps[len(p.Steps)-1]
	if pick.ID != "pick" || pick.Agent != models.AgentGemini {
		t.Errorf("expected pick step by gemini last, got %s by %s", pick.ID, pick.Agent)
	}
	if !reflect.DeepEqual(pick.DependsOn, []string{"claude", "codex"}) {
		t.Errorf("expected pick to depend on both agents, got %v", pick.DependsOn)
	}
	for _, want := range []string{"{{response_claude}}", "{{response_codex}}", "**claude:**", "**codex:**"} {
		if !strings.Contains(pick.Prompt, want) {
			t.Errorf("pick prompt missing %q:\n%s", want, pick.Prompt)
		}
	}
}

func TestBuildComparePlanDuplicateAgent(t *testing.T) {
	_, err := BuildComparePlan(task, CompareOptions{Agents: []models.AgentID{models.AgentClaude, models.AgentClaude}})
	if !errors.Is(err, ErrDuplicateAgent) {
		t.Fatalf("expected ErrDuplicateAgent, got %v", err)
	}
}

func TestBuildComparePlanNoAgents(t *testing.T) {
	_, err := BuildComparePlan(task, CompareOptions{})
	if !errors.Is(err, ErrNoAgents) {
		t.Fatalf("expected ErrNoAgents, got %v", err)
	}
}

func TestBuildPipelinePlan(t *testing.T) {
	p, err := BuildPipelinePlan(task, PipelineOptions{Steps: []PipelineStep{
		{Agent: models.AgentClaude, Action: models.ActionAnalyze},
		{Agent: models.AgentCodex, Action: models.ActionCode},
		{Agent: models.AgentClaude, Action: models.ActionReview},
	}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(p.Steps) != 3 {
		t.Fatalf("expected 3 steps, got %d", len(p.Steps))
	}
	for i, s := range p.Steps {
		if s.OutputAs != StepOutputVar(i) {
			t.Errorf("step %d: expected output %s, got %s", i, StepOutputVar(i), s.OutputAs)
		}
		if !strings.Contains(s.Prompt, "{{prompt}}") {
			t.Errorf("step %d: prompt should include the task", i)
		}
		if i == 0 {
			if len(template.References(s.Prompt)) != 1 {
				t.Errorf("first step should only reference the prompt: %q", s.Prompt)
			}
			continue
		}
		prev := template.Placeholder(StepOutputVar(i - 1))
		if !strings.Contains(s.Prompt, prev) {
			t.Errorf("step %d: prompt should reference %s", i, prev)
		}
		if !reflect.DeepEqual(s.DependsOn, []string{p.Steps[i-1].ID}) {
			t.Errorf("step %d: expected dependency on previous step, got %v", i, s.DependsOn)
		}
	}
}

func TestBuildPipelinePlanCustomTemplate(t *testing.T) {
	custom := "Translate to French:\n{{step0_output}}"
	p, err := BuildPipelinePlan(task, PipelineOptions{Steps: []PipelineStep{
		{Agent: models.AgentClaude},
		{Agent: models.AgentClaude, Action: models.ActionSummarize, PromptTemplate: custom},
	}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Steps[0].Action != models.ActionRespond {
		t.Errorf("expected default action respond, got %s", p.Steps[0].Action)
	}
	if p.Steps[1].Prompt != custom || p.Steps[1].Action != models.ActionCustom {
		t.Errorf("expected verbatim custom template, got %+v", p.Steps[1])
	}
}

func TestBuildPipelinePlanCustomTemplateForwardReference(t *testing.T) {
	_, err := BuildPipelinePlan(task, PipelineOptions{Steps: []PipelineStep{
		{Agent: models.AgentClaude, PromptTemplate: "{{step1_output}}"},
		{Agent: models.AgentClaude},
	}})
	if err == nil {
		t.Fatal("expected lint error for reference to a later step")
	}
}

func TestBuildConsensusPlan(t *testing.T) {
	proposers := []models.AgentID{models.AgentClaude, models.AgentCodex, models.AgentGemini}
	p, err := BuildConsensusPlan(task, ConsensusOptions{Proposers: proposers, Rounds: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 3 proposers x 2 rounds + aggregate
	if len(p.Steps) != 7 {
		t.Fatalf("expected 7 steps, got %d: %v", len(p.Steps), stepIDs(p))
	}

	revise := mustStep(t, p, "revise2_codex")
	if len(revise.DependsOn) != 3 {
		t.Errorf("round 2 step should depend on all round 1 steps, got %v", revise.DependsOn)
	}
	for _, a := range proposers {
		if !strings.Contains(revise.Prompt, template.Placeholder(ProposalVar(a, 1))) {
			t.Errorf("round 2 prompt missing %s", ProposalVar(a, 1))
		}
	}

	agg := p.Steps[len(p.Steps)-1]
	if agg.ID != "aggregate" || agg.Agent != models.AgentClaude {
		t.Errorf("expected aggregate by claude last, got %s by %s", agg.ID, agg.Agent)
	}
	for _, a := range proposers {
		if !strings.Contains(agg.Prompt, template.Placeholder(ProposalVar(a, 2))) {
			t.Errorf("aggregate prompt missing %s", ProposalVar(a, 2))
		}
	}
}

func TestBuildPickBuildPlan(t *testing.T) {
	p, err := BuildPickBuildPlan(task, PickBuildOptions{
		Proposers: []models.AgentID{models.AgentClaude, models.AgentCodex},
		Picker:    models.AgentGemini,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"propose_claude", "propose_codex", "pick", "build"}
	if got := stepIDs(p); !reflect.DeepEqual(got, want) {
		t.Fatalf("expected steps %v, got %v", want, got)
	}
	build := p.Steps[3]
	if build.Agent != models.AgentGemini {
		t.Errorf("builder should default to picker, got %s", build.Agent)
	}
	if !strings.Contains(build.Prompt, "{{selected_plan}}") {
		t.Errorf("build prompt should include the selected plan: %q", build.Prompt)
	}
}

func TestBuildRefinePlan(t *testing.T) {
	p, err := BuildRefinePlan(task, RefineOptions{Worker: models.AgentClaude, Critic: models.AgentCodex, Iterations: 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"refine_1", "feedback_1", "refine_2", "feedback_2", "refine_3"}
	if got := stepIDs(p); !reflect.DeepEqual(got, want) {
		t.Fatalf("expected steps %v, got %v", want, got)
	}
	r2 := mustStep(t, p, "refine_2")
	if !reflect.DeepEqual(r2.DependsOn, []string{"refine_1", "feedback_1"}) {
		t.Errorf("unexpected refine_2 dependencies: %v", r2.DependsOn)
	}
	if mustStep(t, p, "feedback_1").Agent != models.AgentCodex {
		t.Error("feedback should come from the critic")
	}
}

func TestBuildRefinePlanNeedsIteration(t *testing.T) {
	if _, err := BuildRefinePlan(task, RefineOptions{Worker: models.AgentClaude}); err == nil {
		t.Fatal("expected error for zero iterations")
	}
}

func TestBuildPuzzlePlan(t *testing.T) {
	p, err := BuildPuzzlePlan(task, PuzzleOptions{
		Decomposer:       models.AgentClaude,
		Solvers:          []models.AgentID{models.AgentCodex, models.AgentCodex, models.AgentGemini},
		Assembler:        models.AgentClaude,
		Verifier:         models.AgentGemini,
		RefineIterations: 1,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"decompose", "solve_1", "solve_2", "solve_3", "assemble", "verify", "refine_1", "feedback_1", "refine_2"}
	if got := stepIDs(p); !reflect.DeepEqual(got, want) {
		t.Fatalf("expected steps %v, got %v", want, got)
	}
	assemble := mustStep(t, p, "assemble")
	if len(assemble.DependsOn) != 3 {
		t.Errorf("assemble should wait for every piece, got %v", assemble.DependsOn)
	}
	if !strings.Contains(mustStep(t, p, "solve_2").Prompt, "piece 2") {
		t.Error("solver prompt should name its piece")
	}
}

func TestBuildSupervisePlan(t *testing.T) {
	p, err := BuildSupervisePlan(task, SuperviseOptions{Worker: models.AgentCodex, Supervisor: models.AgentClaude})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"plan", "implement", "review", "finalize"}
	if got := stepIDs(p); !reflect.DeepEqual(got, want) {
		t.Fatalf("expected steps %v, got %v", want, got)
	}
	if p.Steps[0].Agent != models.AgentClaude || p.Steps[3].Agent != models.AgentCodex {
		t.Error("supervisor should plan and worker should finalize")
	}
}

func TestBuildEveryMode(t *testing.T) {
	a := Agents{Primary: models.AgentClaude, Pool: []models.AgentID{models.AgentClaude, models.AgentCodex}, Rounds: 2, Iterations: 1}
	modes := []models.Mode{
		models.ModeSingle, models.ModeCompare, models.ModePipeline, models.ModeConsensus,
		models.ModePickBuild, models.ModePuzzle, models.ModeSupervise, models.ModeRefine,
	}
	for _, m := range modes {
		t.Run(string(m), func(t *testing.T) {
			p, err := Build(m, task, a)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if p.Mode != m {
				t.Errorf("expected mode %s, got %s", m, p.Mode)
			}
			if err := Lint(p); err != nil {
				t.Errorf("built plan fails lint: %v", err)
			}
		})
	}
}

func TestBuildUnknownMode(t *testing.T) {
	if _, err := Build(models.ModeCustom, task, Agents{Primary: models.AgentClaude}); err == nil {
		t.Fatal("expected error for mode without a builder")
	}
}

func TestBuildAutoAgent(t *testing.T) {
	p, err := Build(models.ModeSingle, task, Agents{Primary: models.AgentAuto})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Steps[0].Agent != models.AgentAuto {
		t.Errorf("expected auto agent to pass through, got %s", p.Steps[0].Agent)
	}
}

func TestLint(t *testing.T) {
	tests := []struct {
		name    string
		steps   []models.Step
		wantErr bool
	}{
		{
			name: "valid chain",
			steps: []models.Step{
				{ID: "a", Agent: models.AgentClaude, Prompt: "{{prompt}}", OutputAs: "x"},
				{ID: "b", Agent: models.AgentClaude, Prompt: "{{x}}", DependsOn: []string{"a"}, OutputAs: "y"},
				{ID: "c", Agent: models.AgentClaude, Prompt: "{{x}} {{y}}", DependsOn: []string{"b"}},
			},
		},
		{
			name: "reference without dependency",
			steps: []models.Step{
				{ID: "a", Agent: models.AgentClaude, Prompt: "{{prompt}}", OutputAs: "x"},
				{ID: "b", Agent: models.AgentClaude, Prompt: "{{x}}"},
			},
			wantErr: true,
		},
		{
			name: "unpublished reference",
			steps: []models.Step{
				{ID: "a", Agent: models.AgentClaude, Prompt: "{{ghost}}"},
			},
			wantErr: true,
		},
		{
			name: "duplicate output",
			steps: []models.Step{
				{ID: "a", Agent: models.AgentClaude, Prompt: "{{prompt}}", OutputAs: "x"},
				{ID: "b", Agent: models.AgentClaude, Prompt: "{{prompt}}", OutputAs: "x"},
			},
			wantErr: true,
		},
		{
			name: "output name placeholders can't reference",
			steps: []models.Step{
				{ID: "a", Agent: models.AgentClaude, Prompt: "{{prompt}}", OutputAs: "my-draft"},
				{ID: "b", Agent: models.AgentClaude, Prompt: "Improve: {{my-draft}}", DependsOn: []string{"a"}},
			},
			wantErr: true,
		},
		{
			name: "reserved output",
			steps: []models.Step{
				{ID: "a", Agent: models.AgentClaude, Prompt: "hi", OutputAs: "prompt"},
			},
			wantErr: true,
		},
		{
			name: "cycle",
			steps: []models.Step{
				{ID: "a", Agent: models.AgentClaude, Prompt: "hi", DependsOn: []string{"b"}},
				{ID: "b", Agent: models.AgentClaude, Prompt: "hi", DependsOn: []string{"a"}},
			},
			wantErr: true,
		},
		{
			name: "unknown agent",
			steps: []models.Step{
				{ID: "a", Agent: models.AgentID("nope"), Prompt: "hi"},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Lint(&models.Plan{Steps: tt.steps})
			if (err != nil) != tt.wantErr {
				t.Errorf("Lint() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
