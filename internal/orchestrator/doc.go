// Package orchestrator executes plans.
//
// A Scheduler runs one plan at a time per Execute call:
//   - Validation: unknown dependencies and cycles reject the plan before any step runs
//   - Dispatch: ready steps go to a fixed pool of workers in plan order, never more than maxConcurrency at once
//   - Data flow: each step's {{name}} placeholders are resolved from the run's variable store
//   - Failure: a failed, cancelled or vetoed step cancels everything that transitively depends on it
//
// Lifecycle events are published on an EventBus that any number of observers
// can subscribe to. An Interceptor may edit or veto a step right before it is
// dispatched; ApprovalGate is the interactive implementation used by the CLI.
//
// Example usage:
//
//	registry := agent.NewRegistry()
//	_ = registry.Register(models.AgentClaude, claude)
//	sched := orchestrator.NewScheduler(registry, orchestrator.WithMaxConcurrency(2))
//	result := sched.Execute(ctx, plan)
package orchestrator
