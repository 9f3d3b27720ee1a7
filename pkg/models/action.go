package models

// Action is the semantic label of a step. The compiler uses it to choose a
// default prompt template; the scheduler never looks at it.
type Action string

const (
	ActionRespond   Action = "respond"
	ActionAnalyze   Action = "analyze"
	ActionCode      Action = "code"
	ActionReview    Action = "review"
	ActionFix       Action = "fix"
	ActionTest      Action = "test"
	ActionSummarize Action = "summarize"
	ActionPlan      Action = "plan"
	ActionImplement Action = "implement"
	ActionCritique  Action = "critique"
	ActionCombine   Action = "combine"
	ActionPropose   Action = "propose"
	ActionPick      Action = "pick"
	ActionBuild     Action = "build"
	ActionDecompose Action = "decompose"
	ActionSolve     Action = "solve"
	ActionAssemble  Action = "assemble"
	ActionVerify    Action = "verify"
	ActionRefine    Action = "refine"
	ActionFeedback  Action = "feedback"

	// ActionCustom marks a step whose prompt template was supplied verbatim by the caller.
	ActionCustom Action = "custom"
)

var knownActions = map[Action]bool{
	ActionRespond: true, ActionAnalyze: true, ActionCode: true, ActionReview: true,
	ActionFix: true, ActionTest: true, ActionSummarize: true, ActionPlan: true,
	ActionImplement: true, ActionCritique: true, ActionCombine: true, ActionPropose: true,
	ActionPick: true, ActionBuild: true, ActionDecompose: true, ActionSolve: true,
	ActionAssemble: true, ActionVerify: true, ActionRefine: true, ActionFeedback: true,
	ActionCustom: true,
}

// Valid returns true if the action is a known value.
func (a Action) Valid() bool {
	return knownActions[a]
}
