// Package router picks a concrete agent for a task from keyword signals.
package router

import (
	"strings"

	"github.com/ShayCichocki/quorum/pkg/models"
)

// Decision is a routing result. A zero Agent means nothing usable was found.
type Decision struct {
	Agent models.AgentID
	// Confidence is how sure the router is (0.0-1.0).
	Confidence float64
	// Reason explains why this agent was picked.
	Reason string
	// MatchedKeywords are the keywords that voted for Agent.
	MatchedKeywords []string
}

// Policy resolves the "auto" agent and reports how confident it is.
type Policy interface {
	// Available reports whether Route can return a usable agent.
	Available() bool
	// Route picks an agent for task, restricted to allowed when it is non-empty.
	Route(task string, allowed []models.AgentID) Decision
}

// DefaultKeywords maps each agent to the task words it is strongest at.
var DefaultKeywords = map[models.AgentID][]string{
	models.AgentClaude: {
		"design", "architect", "architecture", "refactor", "review", "plan",
		"security", "explain", "reason", "tradeoff", "migrate", "migration",
	},
	models.AgentCodex: {
		"implement", "code", "function", "bug", "fix", "test", "compile",
		"script", "regex", "sql", "endpoint", "unit test",
	},
	models.AgentGemini: {
		"research", "search", "summarize", "summary", "docs", "documentation",
		"compare", "survey", "long", "translate",
	},
	models.AgentOpenAI: {
		"draft", "email", "rewrite", "tone", "brainstorm",
	},
	models.AgentOllama: {
		"offline", "local", "private", "quick",
	},
}

// With several candidates, a tie or a miss stays below the default selection
// threshold (0.6) so the task goes to consensus. A lone candidate is certain.
const (
	confidenceOnly    = 1.0
	confidenceStrong  = 0.85
	confidenceSingle  = 0.75
	confidenceTie     = 0.55
	confidenceNoMatch = 0.50
)

// KeywordRouter scores agents by how many of their keywords appear in the task.
type KeywordRouter struct {
	agents   []models.AgentID
	keywords map[models.AgentID][]string
	fallback models.AgentID
}

// NewKeywordRouter routes among agents, in priority order, using DefaultKeywords.
// fallback is returned with low confidence when no keyword matches; if it is
// not among the candidates the first candidate is used instead.
func NewKeywordRouter(agents []models.AgentID, fallback models.AgentID) *KeywordRouter {
	var concrete []models.AgentID
	for _, a := range agents {
		if a.Concrete() {
			concrete = append(concrete, a)
		}
	}
	return &KeywordRouter{
		agents:   concrete,
		keywords: DefaultKeywords,
		fallback: fallback,
	}
}

// WithKeywords returns a copy of the router that uses the given keyword table.
func (r *KeywordRouter) WithKeywords(kw map[models.AgentID][]string) *KeywordRouter {
	c := *r
	c.keywords = kw
	return &c
}

// Available returns true if the router has at least one agent to choose from.
func (r *KeywordRouter) Available() bool {
	return r != nil && len(r.agents) > 0
}

func (r *KeywordRouter) candidates(allowed []models.AgentID) []models.AgentID {
	if len(allowed) == 0 {
		return r.agents
	}
	ok := make(map[models.AgentID]bool, len(allowed))
	for _, a := range allowed {
		ok[a] = true
	}
	var out []models.AgentID
	for _, a := range r.agents {
		if ok[a] {
			out = append(out, a)
		}
	}
	return out
}

// Route counts keyword hits per candidate. A clear winner with several hits
// is strong; a single hit is moderate; a tie or no hit is weak. When only one
// candidate remains there is nothing to weigh and it is returned with full
// confidence.
func (r *KeywordRouter) Route(task string, allowed []models.AgentID) Decision {
	if !r.Available() {
		return Decision{Reason: "no agents configured"}
	}
	cands := r.candidates(allowed)
	if len(cands) == 0 {
		return Decision{Reason: "no configured agent is allowed"}
	}
	if len(cands) == 1 {
		return Decision{Agent: cands[0], Confidence: confidenceOnly, Reason: "only candidate"}
	}

	lower := strings.ToLower(task)
	var (
		best, second int
		winner       models.AgentID
		matched      []string
	)
	for _, a := range cands {
		var hits []string
		for _, kw := range r.keywords[a] {
			if strings.Contains(lower, strings.ToLower(kw)) {
				hits = append(hits, kw)
			}
		}
		switch {
		case len(hits) > best:
			second = best
			best = len(hits)
			winner = a
			matched = hits
		case len(hits) > second:
			second = len(hits)
		}
	}

	switch {
	case best == 0:
		return Decision{
			Agent:      r.fallbackAmong(cands),
			Confidence: confidenceNoMatch,
			Reason:     "no keyword match, using fallback",
		}
	case best == second:
		return Decision{
			Agent:           winner,
			Confidence:      confidenceTie,
			Reason:          "keyword tie, using higher priority agent",
			MatchedKeywords: matched,
		}
	case best >= 2:
		return Decision{
			Agent:           winner,
			Confidence:      confidenceStrong,
			Reason:          "matched several keywords",
			MatchedKeywords: matched,
		}
	default:
		return Decision{
			Agent:           winner,
			Confidence:      confidenceSingle,
			Reason:          "matched one keyword",
			MatchedKeywords: matched,
		}
	}
}

func (r *KeywordRouter) fallbackAmong(cands []models.AgentID) models.AgentID {
	for _, a := range cands {
		if a == r.fallback {
			return a
		}
	}
	return cands[0]
}

var _ Policy = (*KeywordRouter)(nil)
