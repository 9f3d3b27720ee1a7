package policy

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ShayCichocki/quorum/internal/compiler"
	"github.com/ShayCichocki/quorum/internal/router"
	"github.com/ShayCichocki/quorum/pkg/models"
)

// ErrNoAllowedAgents is returned when a profile's allow-list excludes every
// available agent.
var ErrNoAllowedAgents = errors.New("profile allows none of the available agents")

// Selection is the outcome of Decide.
type Selection struct {
	Mode   models.Mode
	Agents compiler.Agents
	// Reason explains which rule picked Mode.
	Reason string
	// Routing is the router's answer; zero when the router was unavailable.
	Routing router.Decision
	// Complex reports whether the task looked complex, and ComplexSignal why.
	Complex       bool
	ComplexSignal string
}

// Selector picks a mode and agents for a task. It never runs anything.
type Selector struct {
	router    router.Policy
	available []models.AgentID
	fallback  models.AgentID
	cfg       *Config
}

// NewSelector creates a selector choosing among the available agents.
// fallback is the primary agent when nothing else applies. A nil cfg uses Default.
func NewSelector(r router.Policy, available []models.AgentID, fallback models.AgentID, cfg *Config) *Selector {
	if cfg == nil {
		cfg = Default()
	}
	_ = cfg.Validate()
	return &Selector{router: r, available: available, fallback: fallback, cfg: cfg}
}

// IsComplex reports whether a task is long or mentions a complexity keyword,
// and which signal fired.
func (s *Selector) IsComplex(task string) (bool, string) {
	if n := len(strings.Fields(task)); n >= s.cfg.Complexity.WordThreshold {
		return true, fmt.Sprintf("%d words", n)
	}
	lower := strings.ToLower(task)
	for _, kw := range s.cfg.Complexity.Keywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true, "keyword " + kw
		}
	}
	return false, ""
}

// pool returns the available agents the profile allows, in availability order.
func (s *Selector) pool(p Profile) []models.AgentID {
	if len(p.AllowAgents) == 0 {
		return append([]models.AgentID(nil), s.available...)
	}
	allowed := make(map[models.AgentID]bool, len(p.AllowAgents))
	for _, a := range p.AllowAgents {
		allowed[a] = true
	}
	var out []models.AgentID
	for _, a := range s.available {
		if allowed[a] {
			out = append(out, a)
		}
	}
	return out
}

// Decide applies the selection rules in order; the first match wins:
//  1. review required and supervise allowed -> supervise
//  2. router confidence below threshold and consensus allowed -> consensus
//  3. complex task and pickbuild allowed -> pickbuild
//  4. pipeline, if allowed
//  5. single, if allowed
//  6. the profile's first preferred mode
//
// An unavailable router skips rule 2.
func (s *Selector) Decide(task string, p Profile) Selection {
	sel := Selection{}
	pool := s.pool(p)

	routed := s.router != nil && s.router.Available()
	if routed {
		sel.Routing = s.router.Route(task, pool)
	}
	sel.Complex, sel.ComplexSignal = s.IsComplex(task)

	rounds := p.ConsensusRounds
	if rounds < 1 {
		rounds = 1
	}
	sel.Agents = compiler.Agents{Rounds: rounds, Iterations: 1}

	// An allow-list matching nothing leaves Agents without a primary so no
	// forbidden agent can slip in through the fallback.
	if !s.excludesAll(p, pool) {
		primary := s.fallback
		switch {
		case sel.Routing.Agent.Concrete() && contains(pool, sel.Routing.Agent):
			primary = sel.Routing.Agent
		case len(pool) > 0 && !contains(pool, primary):
			primary = pool[0]
		}
		// Keep the primary first so fan-out plans lead with it.
		ordered := []models.AgentID{primary}
		for _, a := range pool {
			if a != primary {
				ordered = append(ordered, a)
			}
		}
		sel.Agents.Primary, sel.Agents.Pool = primary, ordered
	}

	threshold := s.cfg.Routing.ConfidenceThreshold
	switch {
	case p.RequireReview && p.Supports(models.ModeSupervise):
		sel.Mode, sel.Reason = models.ModeSupervise, "profile requires review"
	case routed && sel.Routing.Confidence < threshold && p.Supports(models.ModeConsensus):
		sel.Mode = models.ModeConsensus
		sel.Reason = fmt.Sprintf("router confidence %.2f below %.2f", sel.Routing.Confidence, threshold)
	case sel.Complex && p.Supports(models.ModePickBuild):
		sel.Mode, sel.Reason = models.ModePickBuild, "complex task ("+sel.ComplexSignal+")"
	case p.Supports(models.ModePipeline):
		sel.Mode, sel.Reason = models.ModePipeline, "default pipeline"
	case p.Supports(models.ModeSingle):
		sel.Mode, sel.Reason = models.ModeSingle, "single agent"
	default:
		sel.Mode, sel.Reason = p.PreferredModes[0], "first preferred mode"
	}
	return sel
}

// Plan decides and then compiles the plan.
// It fails with ErrNoAllowedAgents when the profile's allow-list excludes
// every available agent.
func (s *Selector) Plan(task string, p Profile) (*models.Plan, Selection, error) {
	sel := s.Decide(task, p)
	if s.excludesAll(p, s.pool(p)) {
		return nil, sel, fmt.Errorf("profile %s: %w (allowed %v, available %v)", p.Name, ErrNoAllowedAgents, p.AllowAgents, s.available)
	}
	plan, err := compiler.Build(sel.Mode, task, sel.Agents)
	if err != nil {
		return nil, sel, fmt.Errorf("build %s plan: %w", sel.Mode, err)
	}
	return plan, sel, nil
}

func (s *Selector) excludesAll(p Profile, pool []models.AgentID) bool {
	return len(p.AllowAgents) > 0 && len(pool) == 0
}

func contains(list []models.AgentID, a models.AgentID) bool {
	for _, x := range list {
		if x == a {
			return true
		}
	}
	return false
}
