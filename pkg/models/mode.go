package models

// Mode is the orchestration intent a plan was compiled from.
// It is informational only; the scheduler never interprets it.
type Mode string

const (
	// ModeSingle runs one agent over the prompt.
	ModeSingle Mode = "single"
	// ModeCompare runs several agents over the same prompt, optionally picking the best answer.
	ModeCompare Mode = "compare"
	// ModePipeline chains steps, each seeing the previous step's output.
	ModePipeline Mode = "pipeline"
	// ModeConsensus is mixture-of-agents: independent proposals aggregated by one agent.
	ModeConsensus Mode = "consensus"
	// ModePickBuild has several agents propose, one pick, and one build the pick.
	ModePickBuild Mode = "pickbuild"
	// ModePuzzle decomposes a task, solves pieces in parallel, then assembles and verifies.
	ModePuzzle Mode = "puzzle"
	// ModeSupervise has a supervisor plan and review the work of a worker agent.
	ModeSupervise Mode = "supervise"
	// ModeRefine alternates a worker and a critic for a fixed number of iterations.
	ModeRefine Mode = "refine"
	// ModeCustom marks a plan loaded from a file rather than compiled by a builder.
	ModeCustom Mode = "custom"
)

// Valid returns true if the mode is a known value.
func (m Mode) Valid() bool {
	switch m {
	case ModeSingle, ModeCompare, ModePipeline, ModeConsensus, ModePickBuild,
		ModePuzzle, ModeSupervise, ModeRefine, ModeCustom:
		return true
	default:
		return false
	}
}
