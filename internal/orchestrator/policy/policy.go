// Package policy decides which orchestration mode and agents to use for a
// task, then delegates plan construction to the compiler.
// Thresholds that drive the decision live in Config so they can be
// configured and tested.
package policy

// Config contains the tunable parameters of mode selection.
type Config struct {
	// Routing controls when the router's answer is trusted.
	Routing RoutingPolicy

	// Complexity controls when a task counts as complex.
	Complexity ComplexityPolicy
}

// RoutingPolicy controls how router confidence affects selection.
type RoutingPolicy struct {
	// ConfidenceThreshold is the router confidence below which several
	// agents are asked to reach consensus instead of trusting one.
	ConfidenceThreshold float64
}

// ComplexityPolicy controls complex-task detection.
type ComplexityPolicy struct {
	// WordThreshold is the word count at which a task is complex.
	WordThreshold int

	// Keywords mark a task as complex regardless of length.
	Keywords []string
}

// Default returns the default policy configuration.
func Default() *Config {
	return &Config{
		Routing: RoutingPolicy{
			ConfidenceThreshold: 0.6,
		},
		Complexity: ComplexityPolicy{
			WordThreshold: 120,
			Keywords: []string{
				"refactor", "redesign", "architect", "migrate", "migration",
				"rewrite", "overhaul", "restructure", "reorganize", "rearchitect",
				"auth", "authentication", "security",
				"infra", "infrastructure", "schema", "database",
				"distributed", "concurrency", "end-to-end",
			},
		},
	}
}

// Validate resets out-of-range values to their defaults.
func (c *Config) Validate() error {
	if c.Routing.ConfidenceThreshold <= 0 || c.Routing.ConfidenceThreshold > 1 {
		c.Routing.ConfidenceThreshold = 0.6
	}
	if c.Complexity.WordThreshold < 1 {
		c.Complexity.WordThreshold = 120
	}
	if c.Complexity.Keywords == nil {
		c.Complexity.Keywords = Default().Complexity.Keywords
	}
	return nil
}
