package policy

import (
	"fmt"
	"sort"

	"github.com/ShayCichocki/quorum/internal/config"
	"github.com/ShayCichocki/quorum/pkg/models"
)

// Profile describes how much orchestration a user wants.
type Profile struct {
	Name string
	// PreferredModes lists the modes this profile may use, most preferred
	// first. Empty means every mode is allowed.
	PreferredModes []models.Mode
	// MaxConcurrency caps parallel steps for runs under this profile.
	MaxConcurrency int
	// ConsensusRounds is the number of rounds for consensus plans.
	ConsensusRounds int
	// RequireReview sends every task through a supervised plan when possible.
	RequireReview bool
	// AllowAgents restricts which agents may be used. Empty means any.
	AllowAgents []models.AgentID
}

// Supports reports whether the profile allows mode m.
func (p Profile) Supports(m models.Mode) bool {
	if len(p.PreferredModes) == 0 {
		return true
	}
	for _, pm := range p.PreferredModes {
		if pm == m {
			return true
		}
	}
	return false
}

// BuiltinProfiles returns the profiles available without configuration.
func BuiltinProfiles() map[string]Profile {
	return map[string]Profile{
		"fast": {
			Name:            "fast",
			PreferredModes:  []models.Mode{models.ModeSingle, models.ModePipeline},
			MaxConcurrency:  2,
			ConsensusRounds: 1,
		},
		"balanced": {
			Name: "balanced",
			PreferredModes: []models.Mode{
				models.ModePipeline, models.ModePickBuild, models.ModeConsensus,
				models.ModeCompare, models.ModeSingle,
			},
			MaxConcurrency:  4,
			ConsensusRounds: 1,
		},
		"thorough": {
			Name: "thorough",
			PreferredModes: []models.Mode{
				models.ModeSupervise, models.ModeConsensus, models.ModePickBuild,
				models.ModePuzzle, models.ModePipeline,
			},
			MaxConcurrency:  4,
			ConsensusRounds: 2,
			RequireReview:   true,
		},
		"research": {
			Name:            "research",
			PreferredModes:  []models.Mode{models.ModeConsensus, models.ModeCompare, models.ModeRefine},
			MaxConcurrency:  6,
			ConsensusRounds: 2,
		},
	}
}

// ProfileFromConfig converts a configured profile, rejecting unknown modes and agents.
func ProfileFromConfig(name string, pc config.ProfileConfig) (Profile, error) {
	p := Profile{
		Name:            name,
		MaxConcurrency:  pc.MaxConcurrency,
		ConsensusRounds: pc.ConsensusRounds,
		RequireReview:   pc.RequireReview,
	}
	for _, m := range pc.PreferredModes {
		mode := models.Mode(m)
		if !mode.Valid() {
			return Profile{}, fmt.Errorf("profile %s: unknown mode %q", name, m)
		}
		p.PreferredModes = append(p.PreferredModes, mode)
	}
	agents, err := models.ParseAgentIDs(pc.AllowAgents)
	if err != nil {
		return Profile{}, fmt.Errorf("profile %s: %w", name, err)
	}
	p.AllowAgents = agents
	if p.ConsensusRounds < 1 {
		p.ConsensusRounds = 1
	}
	return p, nil
}

// LookupProfile returns the named profile. Configured profiles take
// precedence over built-in ones.
func LookupProfile(name string, configured map[string]config.ProfileConfig) (Profile, error) {
	if pc, ok := configured[name]; ok {
		return ProfileFromConfig(name, pc)
	}
	if p, ok := BuiltinProfiles()[name]; ok {
		return p, nil
	}
	return Profile{}, fmt.Errorf("unknown profile %q (available: %v)", name, ProfileNames(configured))
}

// ProfileNames lists built-in and configured profile names, sorted.
func ProfileNames(configured map[string]config.ProfileConfig) []string {
	seen := make(map[string]bool)
	for name := range BuiltinProfiles() {
		seen[name] = true
	}
	for name := range configured {
		seen[name] = true
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
