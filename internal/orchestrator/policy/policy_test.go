package policy

import (
	"errors"
	"strings"
	"testing"

	"github.com/ShayCichocki/quorum/internal/config"
	"github.com/ShayCichocki/quorum/internal/router"
	"github.com/ShayCichocki/quorum/pkg/models"
)

type fixedRouter struct {
	available  bool
	agent      models.AgentID
	confidence float64
}

func (r fixedRouter) Available() bool { return r.available }

func (r fixedRouter) Route(task string, allowed []models.AgentID) router.Decision {
	return router.Decision{Agent: r.agent, Confidence: r.confidence}
}

var (
	allAgents = []models.AgentID{models.AgentClaude, models.AgentCodex, models.AgentGemini}
	confident = fixedRouter{available: true, agent: models.AgentCodex, confidence: 0.9}
	unsure    = fixedRouter{available: true, agent: models.AgentCodex, confidence: 0.3}
	offline   = fixedRouter{available: false}
	everyMode = Profile{Name: "all"}
)

func TestDecideOrder(t *testing.T) {
	longTask := strings.Repeat("word ", 130)

	tests := []struct {
		name    string
		router  router.Policy
		task    string
		profile Profile
		want    models.Mode
	}{
		{"review required", confident, "add a button", Profile{RequireReview: true}, models.ModeSupervise},
		{"review required but unsupported", confident, "add a button",
			Profile{RequireReview: true, PreferredModes: []models.Mode{models.ModePipeline}}, models.ModePipeline},
		{"low confidence", unsure, "add a button", everyMode, models.ModeConsensus},
		{"low confidence without consensus", unsure, "add a button",
			Profile{PreferredModes: []models.Mode{models.ModeSingle}}, models.ModeSingle},
		{"complex by keyword", confident, "migrate the database schema", everyMode, models.ModePickBuild},
		{"complex by length", confident, longTask, everyMode, models.ModePickBuild},
		{"plain task", confident, "add a button", everyMode, models.ModePipeline},
		{"single when no pipeline", confident, "add a button",
			Profile{PreferredModes: []models.Mode{models.ModeCompare, models.ModeSingle}}, models.ModeSingle},
		{"last resort", confident, "add a button",
			Profile{PreferredModes: []models.Mode{models.ModeRefine, models.ModeCompare}}, models.ModeRefine},
		{"offline router skips confidence rule", offline, "add a button", everyMode, models.ModePipeline},
		{"nil router", nil, "add a button", everyMode, models.ModePipeline},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSelector(tt.router, allAgents, models.AgentClaude, nil)
			sel := s.Decide(tt.task, tt.profile)
			if sel.Mode != tt.want {
				t.Errorf("Decide() mode = %s, want %s (reason: %s)", sel.Mode, tt.want, sel.Reason)
			}
			if sel.Reason == "" {
				t.Error("expected a reason")
			}
		})
	}
}

func TestDecideAgents(t *testing.T) {
	s := NewSelector(confident, allAgents, models.AgentClaude, nil)
	sel := s.Decide("add a button", Profile{ConsensusRounds: 3})

	if sel.Agents.Primary != models.AgentCodex {
		t.Errorf("expected routed agent as primary, got %s", sel.Agents.Primary)
	}
	if sel.Agents.Pool[0] != models.AgentCodex || len(sel.Agents.Pool) != 3 {
		t.Errorf("expected primary first in a pool of 3, got %v", sel.Agents.Pool)
	}
	if sel.Agents.Rounds != 3 {
		t.Errorf("expected 3 rounds, got %d", sel.Agents.Rounds)
	}
}

func TestDecideAllowList(t *testing.T) {
	s := NewSelector(confident, allAgents, models.AgentClaude, nil)
	sel := s.Decide("add a button", Profile{AllowAgents: []models.AgentID{models.AgentGemini}})

	if sel.Agents.Primary != models.AgentGemini {
		t.Errorf("expected primary restricted to gemini, got %s", sel.Agents.Primary)
	}
	for _, a := range sel.Agents.Pool {
		if a != models.AgentGemini {
			t.Errorf("pool contains disallowed agent %s", a)
		}
	}
}

func TestAllowListExcludingEveryAgent(t *testing.T) {
	available := []models.AgentID{models.AgentClaude, models.AgentCodex}
	s := NewSelector(confident, available, models.AgentClaude, nil)
	p := Profile{Name: "gemini-only", AllowAgents: []models.AgentID{models.AgentGemini}}

	sel := s.Decide("add a button", p)
	if sel.Agents.Primary != "" || len(sel.Agents.Pool) != 0 {
		t.Errorf("expected no agents selected, got primary %q pool %v", sel.Agents.Primary, sel.Agents.Pool)
	}

	plan, _, err := s.Plan("add a button", p)
	if !errors.Is(err, ErrNoAllowedAgents) {
		t.Fatalf("expected ErrNoAllowedAgents, got %v", err)
	}
	if plan != nil {
		t.Errorf("expected no plan, got one with agents %v", plan.Agents())
	}
	if !strings.Contains(err.Error(), "gemini-only") {
		t.Errorf("expected profile name in error, got %v", err)
	}
}

func TestKeywordRouterConfidence(t *testing.T) {
	single := []models.AgentID{models.AgentClaude}
	s := NewSelector(router.NewKeywordRouter(single, models.AgentClaude), single, models.AgentClaude, nil)
	if sel := s.Decide("hello there", everyMode); sel.Mode != models.ModePipeline {
		t.Errorf("one agent should not trigger consensus, got %s (%s)", sel.Mode, sel.Reason)
	}

	s = NewSelector(router.NewKeywordRouter(allAgents, models.AgentClaude), allAgents, models.AgentClaude, nil)
	if sel := s.Decide("hello there", everyMode); sel.Mode != models.ModeConsensus {
		t.Errorf("an unmatched task among several agents should go to consensus, got %s (%s)", sel.Mode, sel.Reason)
	}
	gemini := Profile{Name: "gemini", AllowAgents: []models.AgentID{models.AgentGemini}}
	if sel := s.Decide("hello there", gemini); sel.Mode != models.ModePipeline {
		t.Errorf("an allow-list of one should not trigger consensus, got %s (%s)", sel.Mode, sel.Reason)
	}
}

func TestPlan(t *testing.T) {
	s := NewSelector(unsure, allAgents, models.AgentClaude, nil)
	p, sel, err := s.Plan("add a button", everyMode)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Mode != sel.Mode || p.Mode != models.ModeConsensus {
		t.Errorf("expected consensus plan, got %s (selection %s)", p.Mode, sel.Mode)
	}
	if p.Prompt != "add a button" {
		t.Errorf("expected task as plan prompt, got %q", p.Prompt)
	}
}

func TestPlanEveryBuiltinProfile(t *testing.T) {
	s := NewSelector(confident, allAgents, models.AgentClaude, nil)
	for name, prof := range BuiltinProfiles() {
		for _, task := range []string{"add a button", "refactor the auth layer"} {
			if _, _, err := s.Plan(task, prof); err != nil {
				t.Errorf("profile %s, task %q: %v", name, task, err)
			}
		}
	}
}

func TestIsComplex(t *testing.T) {
	s := NewSelector(nil, nil, models.AgentClaude, &Config{
		Complexity: ComplexityPolicy{WordThreshold: 5, Keywords: []string{"Schema"}},
	})

	if ok, _ := s.IsComplex("one two three"); ok {
		t.Error("short task without keywords should not be complex")
	}
	if ok, sig := s.IsComplex("one two three four five"); !ok || sig != "5 words" {
		t.Errorf("expected complex by length, got %v %q", ok, sig)
	}
	if ok, sig := s.IsComplex("update the SCHEMA"); !ok || !strings.Contains(sig, "Schema") {
		t.Errorf("expected complex by keyword, got %v %q", ok, sig)
	}
}

func TestConfigValidate(t *testing.T) {
	c := &Config{}
	if err := c.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Routing.ConfidenceThreshold != 0.6 || c.Complexity.WordThreshold != 120 || len(c.Complexity.Keywords) == 0 {
		t.Errorf("expected defaults after validate, got %+v", c)
	}
}

func TestProfileFromConfig(t *testing.T) {
	p, err := ProfileFromConfig("mine", config.ProfileConfig{
		PreferredModes: []string{"consensus", "single"},
		AllowAgents:    []string{"claude"},
		RequireReview:  true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Name != "mine" || len(p.PreferredModes) != 2 || !p.RequireReview || p.ConsensusRounds != 1 {
		t.Errorf("unexpected profile %+v", p)
	}

	if _, err := ProfileFromConfig("bad", config.ProfileConfig{PreferredModes: []string{"telepathy"}}); err == nil {
		t.Error("expected error for unknown mode")
	}
	if _, err := ProfileFromConfig("bad", config.ProfileConfig{AllowAgents: []string{"hal"}}); err == nil {
		t.Error("expected error for unknown agent")
	}
}

func TestLookupProfile(t *testing.T) {
	configured := map[string]config.ProfileConfig{
		"fast": {PreferredModes: []string{"compare"}},
	}

	p, err := LookupProfile("fast", configured)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(p.PreferredModes) != 1 || p.PreferredModes[0] != models.ModeCompare {
		t.Errorf("configured profile should override builtin, got %+v", p)
	}

	if _, err := LookupProfile("thorough", nil); err != nil {
		t.Errorf("expected builtin profile, got %v", err)
	}
	if _, err := LookupProfile("nope", nil); err == nil {
		t.Error("expected error for unknown profile")
	}
}
