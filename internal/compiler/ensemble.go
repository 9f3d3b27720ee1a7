package compiler

import (
	"fmt"

	"github.com/ShayCichocki/quorum/internal/template"
	"github.com/ShayCichocki/quorum/pkg/models"
)

// ConsensusOptions configures a consensus plan.
type ConsensusOptions struct {
	// Proposers answer independently in round one. Each may appear once.
	Proposers []models.AgentID
	// Aggregator synthesizes the last round. Defaults to the first proposer.
	Aggregator models.AgentID
	// Rounds is the number of proposal rounds (default 1). In every round
	// after the first, each proposer sees all answers of the round before.
	Rounds int
}

// ProposalVar is the output name of agent's answer in the given round.
func ProposalVar(agent models.AgentID, round int) string {
	if round <= 1 {
		return "proposal_" + string(agent)
	}
	return fmt.Sprintf("revision%d_%s", round, agent)
}

func proposalStepID(agent models.AgentID, round int) string {
	if round <= 1 {
		return "propose_" + string(agent)
	}
	return fmt.Sprintf("revise%d_%s", round, agent)
}

// BuildConsensusPlan fans the prompt out to proposers for one or more rounds
// and ends with an aggregation step that depends on the last round.
func BuildConsensusPlan(prompt string, o ConsensusOptions) (*models.Plan, error) {
	if err := checkAgents("consensus", o.Proposers, true); err != nil {
		return nil, err
	}
	rounds := o.Rounds
	if rounds < 1 {
		rounds = 1
	}
	agg := o.Aggregator
	if agg == "" {
		agg = o.Proposers[0]
	}
	if err := checkAgent("consensus aggregator", agg); err != nil {
		return nil, err
	}

	labels := make([]string, len(o.Proposers))
	for i, a := range o.Proposers {
		labels[i] = string(a)
	}

	var steps []models.Step
	var prevIDs, prevVars []string
	for r := 1; r <= rounds; r++ {
		ids := make([]string, 0, len(o.Proposers))
		vars := make([]string, 0, len(o.Proposers))
		for _, a := range o.Proposers {
			s := models.Step{
				ID:       proposalStepID(a, r),
				Agent:    a,
				Action:   models.ActionPropose,
				Prompt:   template.Placeholder(template.PromptVar),
				OutputAs: ProposalVar(a, r),
			}
			if r > 1 {
				s.Action = models.ActionRefine
				s.Prompt = joinSections(reviseInstructions, taskBlock, labeledOutputs(labels, prevVars))
				s.DependsOn = append([]string(nil), prevIDs...)
			}
			steps = append(steps, s)
			ids = append(ids, s.ID)
			vars = append(vars, s.OutputAs)
		}
		prevIDs, prevVars = ids, vars
	}

	steps = append(steps, models.Step{
		ID:        "aggregate",
		Agent:     agg,
		Action:    models.ActionCombine,
		Prompt:    joinSections(aggregateInstructions, taskBlock, labeledOutputs(labels, prevVars)),
		DependsOn: prevIDs,
		OutputAs:  "consensus",
	})
	return newPlan(models.ModeConsensus, prompt, steps)
}

// PickBuildOptions configures a pick-then-build plan.
type PickBuildOptions struct {
	// Proposers each propose an approach. Each may appear once.
	Proposers []models.AgentID
	// Picker selects the plan. Defaults to the first proposer.
	Picker models.AgentID
	// Builder implements the selected plan. Defaults to Picker.
	Builder models.AgentID
}

// BuildPickBuildPlan has proposers draft approaches, one agent pick the best,
// and a builder implement it.
func BuildPickBuildPlan(prompt string, o PickBuildOptions) (*models.Plan, error) {
	if err := checkAgents("pickbuild", o.Proposers, true); err != nil {
		return nil, err
	}
	picker := o.Picker
	if picker == "" {
		picker = o.Proposers[0]
	}
	builder := o.Builder
	if builder == "" {
		builder = picker
	}
	if err := checkAgent("pickbuild picker", picker); err != nil {
		return nil, err
	}
	if err := checkAgent("pickbuild builder", builder); err != nil {
		return nil, err
	}

	steps := make([]models.Step, 0, len(o.Proposers)+2)
	ids := make([]string, 0, len(o.Proposers))
	labels := make([]string, 0, len(o.Proposers))
	vars := make([]string, 0, len(o.Proposers))
	for _, a := range o.Proposers {
		s := models.Step{
			ID:       proposalStepID(a, 1),
			Agent:    a,
			Action:   models.ActionPropose,
			Prompt:   joinSections(proposeInstructions, taskBlock),
			OutputAs: ProposalVar(a, 1),
		}
		steps = append(steps, s)
		ids = append(ids, s.ID)
		labels = append(labels, string(a))
		vars = append(vars, s.OutputAs)
	}

	steps = append(steps,
		models.Step{
			ID:        "pick",
			Agent:     picker,
			Action:    models.ActionPick,
			Prompt:    joinSections(pickProposalInstructions, taskBlock, labeledOutputs(labels, vars)),
			DependsOn: ids,
			OutputAs:  "selected_plan",
		},
		models.Step{
			ID:        "build",
			Agent:     builder,
			Action:    models.ActionBuild,
			Prompt:    joinSections(buildInstructions, taskBlock, "Selected plan:\n"+template.Placeholder("selected_plan")),
			DependsOn: []string{"pick"},
			OutputAs:  "build",
		},
	)
	return newPlan(models.ModePickBuild, prompt, steps)
}

// RefineOptions configures a refine plan.
type RefineOptions struct {
	Worker models.AgentID
	// Critic writes feedback between iterations. Defaults to Worker.
	Critic models.AgentID
	// Iterations is the number of refine steps (at least 1).
	Iterations int
}

// RefineVar is the output name of the nth refine step.
func RefineVar(n int) string { return fmt.Sprintf("refine_%d_output", n) }

// FeedbackVar is the output name of the nth feedback step.
func FeedbackVar(n int) string { return fmt.Sprintf("feedback_%d_output", n) }

// appendRefineChain extends steps, which must end with refine_first, with
// feedback_n -> refine_(n+1) pairs until refine_last exists.
func appendRefineChain(steps []models.Step, worker, critic models.AgentID, first, last int) []models.Step {
	for n := first; n < last; n++ {
		refineID := fmt.Sprintf("refine_%d", n)
		feedbackID := fmt.Sprintf("feedback_%d", n)
		steps = append(steps,
			models.Step{
				ID:        feedbackID,
				Agent:     critic,
				Action:    models.ActionFeedback,
				Prompt:    joinSections(feedbackInstructions, taskBlock, "Answer:\n"+template.Placeholder(RefineVar(n))),
				DependsOn: []string{refineID},
				OutputAs:  FeedbackVar(n),
			},
			models.Step{
				ID:     fmt.Sprintf("refine_%d", n+1),
				Agent:  worker,
				Action: models.ActionRefine,
				Prompt: joinSections(refineInstructions, taskBlock,
					"Previous answer:\n"+template.Placeholder(RefineVar(n)),
					"Feedback:\n"+template.Placeholder(FeedbackVar(n))),
				DependsOn: []string{refineID, feedbackID},
				OutputAs:  RefineVar(n + 1),
			},
		)
	}
	return steps
}

// BuildRefinePlan has a worker answer and then improve its answer from a
// critic's feedback, Iterations times in total.
func BuildRefinePlan(prompt string, o RefineOptions) (*models.Plan, error) {
	if err := checkAgent("refine worker", o.Worker); err != nil {
		return nil, err
	}
	critic := o.Critic
	if critic == "" {
		critic = o.Worker
	}
	if err := checkAgent("refine critic", critic); err != nil {
		return nil, err
	}
	if o.Iterations < 1 {
		return nil, fmt.Errorf("refine: iterations must be at least 1, got %d", o.Iterations)
	}

	steps := []models.Step{{
		ID:       "refine_1",
		Agent:    o.Worker,
		Action:   models.ActionRespond,
		Prompt:   template.Placeholder(template.PromptVar),
		OutputAs: RefineVar(1),
	}}
	steps = appendRefineChain(steps, o.Worker, critic, 1, o.Iterations)
	return newPlan(models.ModeRefine, prompt, steps)
}

// PuzzleOptions configures a decompose/solve/assemble plan.
type PuzzleOptions struct {
	Decomposer models.AgentID
	// Solvers solve one piece each; the number of pieces is len(Solvers).
	// An agent may appear more than once.
	Solvers   []models.AgentID
	Assembler models.AgentID
	Verifier  models.AgentID
	// RefineIterations adds that many feedback/refine pairs after the first refine.
	RefineIterations int
}

// SolutionVar is the output name of puzzle piece i (1-based).
func SolutionVar(i int) string { return fmt.Sprintf("solution_%d", i) }

// BuildPuzzlePlan splits the task into pieces, solves them in parallel,
// assembles and verifies the result, then refines it.
func BuildPuzzlePlan(prompt string, o PuzzleOptions) (*models.Plan, error) {
	if err := checkAgents("puzzle solvers", o.Solvers, false); err != nil {
		return nil, err
	}
	if err := checkAgent("puzzle decomposer", o.Decomposer); err != nil {
		return nil, err
	}
	if err := checkAgent("puzzle assembler", o.Assembler); err != nil {
		return nil, err
	}
	if err := checkAgent("puzzle verifier", o.Verifier); err != nil {
		return nil, err
	}
	if o.RefineIterations < 0 {
		return nil, fmt.Errorf("puzzle: negative refine iterations %d", o.RefineIterations)
	}

	n := len(o.Solvers)
	steps := []models.Step{{
		ID:       "decompose",
		Agent:    o.Decomposer,
		Action:   models.ActionDecompose,
		Prompt:   joinSections(fmt.Sprintf(decomposeInstructions, n, n), taskBlock),
		OutputAs: "pieces",
	}}

	solveIDs := make([]string, 0, n)
	labels := make([]string, 0, n)
	vars := make([]string, 0, n)
	for i, a := range o.Solvers {
		piece := i + 1
		s := models.Step{
			ID:        fmt.Sprintf("solve_%d", piece),
			Agent:     a,
			Action:    models.ActionSolve,
			Prompt:    joinSections(fmt.Sprintf(solveInstructions, n, piece), taskBlock, "Pieces:\n"+template.Placeholder("pieces")),
			DependsOn: []string{"decompose"},
			OutputAs:  SolutionVar(piece),
		}
		steps = append(steps, s)
		solveIDs = append(solveIDs, s.ID)
		labels = append(labels, fmt.Sprintf("piece %d", piece))
		vars = append(vars, s.OutputAs)
	}

	steps = append(steps,
		models.Step{
			ID:        "assemble",
			Agent:     o.Assembler,
			Action:    models.ActionAssemble,
			Prompt:    joinSections(assembleInstructions, taskBlock, labeledOutputs(labels, vars)),
			DependsOn: solveIDs,
			OutputAs:  "assembly",
		},
		models.Step{
			ID:        "verify",
			Agent:     o.Verifier,
			Action:    models.ActionVerify,
			Prompt:    joinSections(verifyInstructions, taskBlock, "Assembled result:\n"+template.Placeholder("assembly")),
			DependsOn: []string{"assemble"},
			OutputAs:  "verification",
		},
		models.Step{
			ID:     "refine_1",
			Agent:  o.Assembler,
			Action: models.ActionRefine,
			Prompt: joinSections(refineFromVerifyInstructions, taskBlock,
				"Assembled result:\n"+template.Placeholder("assembly"),
				"Verification:\n"+template.Placeholder("verification")),
			DependsOn: []string{"assemble", "verify"},
			OutputAs:  RefineVar(1),
		},
	)
	steps = appendRefineChain(steps, o.Assembler, o.Verifier, 1, 1+o.RefineIterations)
	return newPlan(models.ModePuzzle, prompt, steps)
}

// SuperviseOptions configures a supervised plan.
type SuperviseOptions struct {
	Worker     models.AgentID
	Supervisor models.AgentID
}

// BuildSupervisePlan has a supervisor plan and review while a worker
// implements and finalizes.
func BuildSupervisePlan(prompt string, o SuperviseOptions) (*models.Plan, error) {
	if err := checkAgent("supervise worker", o.Worker); err != nil {
		return nil, err
	}
	if err := checkAgent("supervise supervisor", o.Supervisor); err != nil {
		return nil, err
	}

	plan := template.Placeholder("plan")
	impl := template.Placeholder("implementation")
	steps := []models.Step{
		{
			ID:       "plan",
			Agent:    o.Supervisor,
			Action:   models.ActionPlan,
			Prompt:   joinSections(supervisePlanInstructions, taskBlock),
			OutputAs: "plan",
		},
		{
			ID:        "implement",
			Agent:     o.Worker,
			Action:    models.ActionImplement,
			Prompt:    joinSections(superviseImplementInstructions, taskBlock, "Plan:\n"+plan),
			DependsOn: []string{"plan"},
			OutputAs:  "implementation",
		},
		{
			ID:        "review",
			Agent:     o.Supervisor,
			Action:    models.ActionReview,
			Prompt:    joinSections(superviseReviewInstructions, taskBlock, "Plan:\n"+plan, "Implementation:\n"+impl),
			DependsOn: []string{"implement"},
			OutputAs:  "review",
		},
		{
			ID:        "finalize",
			Agent:     o.Worker,
			Action:    models.ActionFix,
			Prompt:    joinSections(superviseFinalizeInstructions, taskBlock, "Implementation:\n"+impl, "Review:\n"+template.Placeholder("review")),
			DependsOn: []string{"review", "implement"},
			OutputAs:  "final",
		},
	}
	return newPlan(models.ModeSupervise, prompt, steps)
}
