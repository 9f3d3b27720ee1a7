package orchestrator

import (
	"time"

	"github.com/ShayCichocki/quorum/pkg/models"
)

// EventType represents the type of scheduler event.
type EventType string

const (
	// EventStepStarted indicates a step was handed to its agent.
	EventStepStarted EventType = "start"
	// EventStepCompleted indicates a step completed successfully.
	EventStepCompleted EventType = "complete"
	// EventStepFailed indicates template resolution or the agent failed.
	EventStepFailed EventType = "error"
	// EventStepCancelled indicates a step will never run because a prerequisite did not succeed.
	EventStepCancelled EventType = "cancelled"
	// EventStepSkipped indicates an interceptor vetoed a step.
	EventStepSkipped EventType = "skipped"
	// EventRunDone indicates every step of the run is terminal.
	EventRunDone EventType = "run_done"
)

// Event represents an event emitted by the scheduler.
// These events are used to update the TUI and the CLI progress output.
type Event struct {
	// Type is the kind of event.
	Type EventType
	// PlanID is the ID of the plan being executed.
	PlanID string
	// StepID is the ID of the related step, if applicable.
	StepID string
	// Agent is the concrete agent running the step, if known.
	Agent models.AgentID
	// Message carries the error or the reason for cancelled and skipped steps.
	Message string
	// Duration is the step duration for complete events and the run duration for run_done.
	Duration time.Duration
	// Status is the run status (run_done only).
	Status models.RunStatus
	// Timestamp is when the event occurred.
	Timestamp time.Time
}
