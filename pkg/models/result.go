package models

import "time"

// StepStatus is the lifecycle state of a step within one run.
type StepStatus string

const (
	// StepStatusPending indicates the step has not been dispatched.
	StepStatusPending StepStatus = "pending"
	// StepStatusRunning indicates the step has been dispatched to an agent.
	StepStatusRunning StepStatus = "running"
	// StepStatusCompleted indicates the agent returned output.
	StepStatusCompleted StepStatus = "completed"
	// StepStatusFailed indicates template resolution or the agent failed.
	StepStatusFailed StepStatus = "failed"
	// StepStatusCancelled indicates a prerequisite did not succeed, so the step never ran.
	StepStatusCancelled StepStatus = "cancelled"
	// StepStatusSkipped indicates an interception hook declined the step.
	StepStatusSkipped StepStatus = "skipped"
)

// Valid returns true if the status is a known value.
func (s StepStatus) Valid() bool {
	switch s {
	case StepStatusPending, StepStatusRunning, StepStatusCompleted,
		StepStatusFailed, StepStatusCancelled, StepStatusSkipped:
		return true
	default:
		return false
	}
}

// Terminal returns true once the step can no longer change state.
func (s StepStatus) Terminal() bool {
	switch s {
	case StepStatusCompleted, StepStatusFailed, StepStatusCancelled, StepStatusSkipped:
		return true
	default:
		return false
	}
}

// Blocking returns true for terminal states that cancel dependents.
func (s StepStatus) Blocking() bool {
	return s.Terminal() && s != StepStatusCompleted
}

// StepResult records how one step ended. One is produced per step per run.
type StepResult struct {
	StepID string     `json:"step_id"`
	Status StepStatus `json:"status"`
	// Content is the agent output for completed steps.
	Content string `json:"content,omitempty"`
	// Error explains failed, cancelled and skipped steps.
	Error string `json:"error,omitempty"`
	// Agent is the concrete agent that was invoked, after auto resolution.
	Agent AgentID `json:"agent,omitempty"`
	// Model is the model reported by the agent, if any.
	Model       string    `json:"model,omitempty"`
	StartedAt   time.Time `json:"started_at,omitempty"`
	CompletedAt time.Time `json:"completed_at"`
}

// Duration returns how long the agent ran. Steps that never started report zero.
func (r StepResult) Duration() time.Duration {
	if r.StartedAt.IsZero() || r.CompletedAt.Before(r.StartedAt) {
		return 0
	}
	return r.CompletedAt.Sub(r.StartedAt)
}

// RunStatus is the aggregate outcome of a run.
type RunStatus string

const (
	// RunStatusCompleted means every step completed.
	RunStatusCompleted RunStatus = "completed"
	// RunStatusPartial means some steps completed and some did not.
	RunStatusPartial RunStatus = "partial"
	// RunStatusFailed means no step completed.
	RunStatusFailed RunStatus = "failed"
)

// ExecutionResult is the report of one scheduler run over a plan.
type ExecutionResult struct {
	PlanID string    `json:"plan_id"`
	Status RunStatus `json:"status"`
	// Results are appended in the order steps reached a terminal state.
	Results []StepResult `json:"results"`
	// FinalOutput is the content of the last completed step in plan order.
	FinalOutput string        `json:"final_output"`
	Duration    time.Duration `json:"duration"`
	// Error is set when the plan was rejected before any step ran.
	Error string `json:"error,omitempty"`
}

// Result returns the result recorded for a step.
func (r *ExecutionResult) Result(stepID string) (StepResult, bool) {
	for _, res := range r.Results {
		if res.StepID == stepID {
			return res, true
		}
	}
	return StepResult{}, false
}

// Count returns how many results have the given status.
func (r *ExecutionResult) Count(status StepStatus) int {
	n := 0
	for _, res := range r.Results {
		if res.Status == status {
			n++
		}
	}
	return n
}

// Unsuccessful returns every result that did not complete.
func (r *ExecutionResult) Unsuccessful() []StepResult {
	var out []StepResult
	for _, res := range r.Results {
		if res.Status != StepStatusCompleted {
			out = append(out, res)
		}
	}
	return out
}
