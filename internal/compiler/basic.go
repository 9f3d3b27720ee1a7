package compiler

import (
	"fmt"

	"github.com/ShayCichocki/quorum/internal/template"
	"github.com/ShayCichocki/quorum/pkg/models"
)

// BuildSingleAgentPlan returns a one-step plan that sends the prompt to agent.
func BuildSingleAgentPlan(prompt string, agent models.AgentID) (*models.Plan, error) {
	if err := checkAgent("single", agent); err != nil {
		return nil, err
	}
	return newPlan(models.ModeSingle, prompt, []models.Step{{
		ID:       "main",
		Agent:    agent,
		Action:   models.ActionRespond,
		Prompt:   template.Placeholder(template.PromptVar),
		OutputAs: "result",
	}})
}

// CompareOptions configures a compare plan.
type CompareOptions struct {
	// Agents each answer the raw prompt. Each may appear once.
	Agents []models.AgentID
	// Sequential makes each agent wait for the previous one. Outputs are not
	// passed along; the ordering only serializes the calls.
	Sequential bool
	// Pick adds a final step in which Aggregator selects the best response.
	Pick bool
	// Aggregator runs the pick step. Defaults to the first agent.
	Aggregator models.AgentID
}

// ResponseVar is the output name a compare step publishes for agent.
func ResponseVar(agent models.AgentID) string {
	return "response_" + string(agent)
}

// BuildComparePlan fans the prompt out to several agents, optionally
// serialized, optionally followed by a pick step.
func BuildComparePlan(prompt string, o CompareOptions) (*models.Plan, error) {
	if err := checkAgents("compare", o.Agents, true); err != nil {
		return nil, err
	}

	steps := make([]models.Step, 0, len(o.Agents)+1)
	labels := make([]string, 0, len(o.Agents))
	vars := make([]string, 0, len(o.Agents))
	for i, a := range o.Agents {
		s := models.Step{
			ID:       string(a),
			Agent:    a,
			Action:   models.ActionRespond,
			Prompt:   template.Placeholder(template.PromptVar),
			OutputAs: ResponseVar(a),
		}
		if o.Sequential && i > 0 {
			s.DependsOn = []string{steps[i-1].ID}
		}
		steps = append(steps, s)
		labels = append(labels, string(a))
		vars = append(vars, s.OutputAs)
	}

	if o.Pick {
		agg := o.Aggregator
		if agg == "" {
			agg = o.Agents[0]
		}
		if err := checkAgent("compare aggregator", agg); err != nil {
			return nil, err
		}
		deps := make([]string, len(o.Agents))
		for i := range o.Agents {
			deps[i] = steps[i].ID
		}
		steps = append(steps, models.Step{
			ID:        "pick",
			Agent:     agg,
			Action:    models.ActionPick,
			Prompt:    joinSections(pickInstructions, taskBlock, labeledOutputs(labels, vars)),
			DependsOn: deps,
			OutputAs:  "selected",
		})
	}

	return newPlan(models.ModeCompare, prompt, steps)
}

// PipelineStep is one stage of a pipeline.
type PipelineStep struct {
	Agent  models.AgentID
	Action models.Action
	// PromptTemplate, when set, is used verbatim instead of the action's
	// built-in template and the step's action becomes ActionCustom.
	PromptTemplate string
}

// PipelineOptions configures a pipeline plan.
type PipelineOptions struct {
	Steps []PipelineStep
}

// StepOutputVar is the output name of pipeline stage i.
func StepOutputVar(i int) string {
	return fmt.Sprintf("step%d_output", i)
}

var actionTemplates = map[models.Action]string{
	models.ActionAnalyze:   analyzeTemplate,
	models.ActionCode:      codeTemplate,
	models.ActionReview:    reviewTemplate,
	models.ActionFix:       fixTemplate,
	models.ActionTest:      testTemplate,
	models.ActionSummarize: summarizeTemplate,
}

func pipelinePrompt(action models.Action, i int) string {
	header, ok := actionTemplates[action]
	if !ok {
		header = respondTemplate
	}
	prev := ""
	if i > 0 {
		prev = previousBlock + template.Placeholder(StepOutputVar(i-1))
	}
	return joinSections(header, taskBlock, prev)
}

// BuildPipelinePlan chains stages so each one depends on, and sees the output
// of, the stage before it.
func BuildPipelinePlan(prompt string, o PipelineOptions) (*models.Plan, error) {
	if len(o.Steps) == 0 {
		return nil, fmt.Errorf("pipeline: %w", ErrNoAgents)
	}

	steps := make([]models.Step, 0, len(o.Steps))
	for i, ps := range o.Steps {
		if err := checkAgent(fmt.Sprintf("pipeline step %d", i), ps.Agent); err != nil {
			return nil, err
		}
		action := ps.Action
		if action == "" {
			action = models.ActionRespond
		}
		body := pipelinePrompt(action, i)
		if ps.PromptTemplate != "" {
			action = models.ActionCustom
			body = ps.PromptTemplate
		}
		s := models.Step{
			ID:       fmt.Sprintf("step%d", i),
			Agent:    ps.Agent,
			Action:   action,
			Prompt:   body,
			OutputAs: StepOutputVar(i),
		}
		if i > 0 {
			s.DependsOn = []string{steps[i-1].ID}
		}
		steps = append(steps, s)
	}
	return newPlan(models.ModePipeline, prompt, steps)
}
