package orchestrator

import (
	"context"

	"github.com/ShayCichocki/quorum/pkg/models"
)

// Verdict is an interceptor's decision about one step.
type Verdict int

const (
	// Allow dispatches the step with its resolved prompt.
	Allow Verdict = iota
	// Edit dispatches the step with Decision.Prompt used verbatim.
	Edit
	// Veto skips the step; its dependents are cancelled.
	Veto
)

// String returns a human-readable representation of the verdict.
func (v Verdict) String() string {
	switch v {
	case Allow:
		return "allow"
	case Edit:
		return "edit"
	case Veto:
		return "veto"
	default:
		return "unknown"
	}
}

// Decision is returned by an Interceptor.
type Decision struct {
	Verdict Verdict
	// Prompt replaces the resolved prompt when Verdict is Edit.
	Prompt string
	// Reason is recorded on vetoed steps.
	Reason string
}

// StepContext is what an interceptor sees about the step being dispatched.
type StepContext struct {
	PlanID string
	Step   models.Step
	// Index is the step's position in the plan.
	Index int
	// Prompt is the resolved prompt that would be sent.
	Prompt string
	// Results are the results recorded so far in this run.
	Results []models.StepResult
}

// Interceptor may edit or veto a step immediately before it is dispatched.
// It runs on a worker and holds that worker's slot while it decides.
type Interceptor interface {
	Intercept(ctx context.Context, sc StepContext) (Decision, error)
}

// InterceptorFunc adapts a function to Interceptor.
type InterceptorFunc func(ctx context.Context, sc StepContext) (Decision, error)

// Intercept calls f.
func (f InterceptorFunc) Intercept(ctx context.Context, sc StepContext) (Decision, error) {
	return f(ctx, sc)
}
