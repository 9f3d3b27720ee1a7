package models

import "time"

// Plan is an immutable description of one orchestration run: a graph of
// steps whose prompts are stitched together through named outputs.
type Plan struct {
	// ID is the unique identifier assigned when the plan is created.
	ID string `json:"id" yaml:"id"`
	// Mode is the orchestration intent this plan was compiled from.
	Mode Mode `json:"mode" yaml:"mode"`
	// Prompt is the original task text. It seeds the variable "prompt".
	Prompt string `json:"prompt" yaml:"prompt"`
	// Steps are ordered; the order breaks dispatch ties and decides the final output.
	Steps []Step `json:"steps" yaml:"steps"`
	// CreatedAt is when the plan was created.
	CreatedAt time.Time `json:"created_at" yaml:"created_at,omitempty"`
}

// Step is one unit of work in a plan, bound to one agent invocation.
type Step struct {
	// ID is unique within the plan.
	ID string `json:"id" yaml:"id"`
	// Agent is the capability to invoke, or AgentAuto.
	Agent AgentID `json:"agent" yaml:"agent"`
	// Action is a semantic label used by the compiler only.
	Action Action `json:"action,omitempty" yaml:"action,omitempty"`
	// Prompt is a template that may contain {{name}} placeholders.
	Prompt string `json:"prompt" yaml:"prompt"`
	// DependsOn lists step IDs that must finish before this step starts.
	DependsOn []string `json:"depends_on,omitempty" yaml:"depends_on,omitempty"`
	// OutputAs names the variable this step's output is published under.
	OutputAs string `json:"output_as,omitempty" yaml:"output_as,omitempty"`
}

// Step returns the step with the given ID and its index, or nil and -1.
func (p *Plan) Step(id string) (*Step, int) {
	for i := range p.Steps {
		if p.Steps[i].ID == id {
			return &p.Steps[i], i
		}
	}
	return nil, -1
}

// FirstConcreteAgent returns the agent of the first step that is not AgentAuto.
func (p *Plan) FirstConcreteAgent() (AgentID, bool) {
	for _, s := range p.Steps {
		if s.Agent.Concrete() {
			return s.Agent, true
		}
	}
	return "", false
}

// Agents returns the distinct agents referenced by the plan, in step order.
func (p *Plan) Agents() []AgentID {
	seen := make(map[AgentID]bool)
	var out []AgentID
	for _, s := range p.Steps {
		if !seen[s.Agent] {
			seen[s.Agent] = true
			out = append(out, s.Agent)
		}
	}
	return out
}
