package models

import "fmt"

// AgentID identifies an agent capability.
// The set is closed: the scheduler only dispatches to known identifiers,
// with AgentAuto deferring the choice to the routing policy at dispatch time.
type AgentID string

const (
	// AgentAuto asks the routing policy to pick a concrete agent when the step is dispatched.
	AgentAuto AgentID = "auto"
	// AgentClaude is Anthropic's Claude, via the API or the claude CLI.
	AgentClaude AgentID = "claude"
	// AgentCodex is the OpenAI Codex CLI.
	AgentCodex AgentID = "codex"
	// AgentGemini is the Google Gemini CLI.
	AgentGemini AgentID = "gemini"
	// AgentOpenAI is an OpenAI-compatible chat model.
	AgentOpenAI AgentID = "openai"
	// AgentOllama is a locally served Ollama model.
	AgentOllama AgentID = "ollama"
)

// KnownAgents lists every concrete agent identifier in a stable order.
var KnownAgents = []AgentID{AgentClaude, AgentCodex, AgentGemini, AgentOpenAI, AgentOllama}

// Valid returns true if the identifier is a known agent or AgentAuto.
func (a AgentID) Valid() bool {
	return a == AgentAuto || a.Concrete()
}

// Concrete returns true if the identifier names a real agent (not AgentAuto).
func (a AgentID) Concrete() bool {
	for _, known := range KnownAgents {
		if a == known {
			return true
		}
	}
	return false
}

// IsAuto returns true for the AgentAuto sentinel.
func (a AgentID) IsAuto() bool {
	return a == AgentAuto
}

// ParseAgentID converts a string to an AgentID, rejecting unknown names.
func ParseAgentID(s string) (AgentID, error) {
	a := AgentID(s)
	if !a.Valid() {
		return "", fmt.Errorf("unknown agent %q", s)
	}
	return a, nil
}

// ParseAgentIDs converts a list of names, failing on the first unknown one.
func ParseAgentIDs(names []string) ([]AgentID, error) {
	out := make([]AgentID, 0, len(names))
	for _, n := range names {
		a, err := ParseAgentID(n)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}
