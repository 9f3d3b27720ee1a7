// Package graph provides the dependency graph used to validate and order plan steps.
package graph

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ShayCichocki/quorum/pkg/models"
)

var (
	// ErrCycleDetected indicates a circular dependency was found between steps.
	ErrCycleDetected = errors.New("circular dependency detected")
	// ErrUnknownDependency indicates a step depends on an ID that is not in the plan.
	ErrUnknownDependency = errors.New("unknown dependency")
	// ErrDuplicateStep indicates two steps share an ID.
	ErrDuplicateStep = errors.New("duplicate step id")
)

// DependencyGraph represents a directed acyclic graph of step dependencies.
// Steps are nodes, and edges represent "waits for" relationships.
type DependencyGraph struct {
	mu sync.RWMutex
	// order holds step IDs in plan order.
	order []string
	// index maps step ID to its position in order.
	index map[string]int
	// edges maps step ID to IDs of steps it depends on.
	edges map[string][]string
	// dependents maps step ID to IDs of steps that depend on it, in plan order.
	dependents map[string][]string
	// debugLog is an optional logging function.
	debugLog func(format string, args ...interface{})
}

// New creates a new empty dependency graph.
func New() *DependencyGraph {
	return &DependencyGraph{
		index:      make(map[string]int),
		edges:      make(map[string][]string),
		dependents: make(map[string][]string),
		debugLog:   func(format string, args ...interface{}) {}, // no-op by default
	}
}

// SetDebugLog sets the debug logging function.
func (g *DependencyGraph) SetDebugLog(fn func(format string, args ...interface{})) {
	if fn != nil {
		g.debugLog = fn
	}
}

// Build constructs the dependency graph from a plan's steps.
// Returns an error if a step ID is repeated, a dependency references an
// unknown step, or the dependencies form a cycle.
func (g *DependencyGraph) Build(steps []models.Step) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.debugLog("[graph.Build] building graph from %d steps", len(steps))

	// First pass: register all steps as nodes.
	for i, step := range steps {
		if step.ID == "" {
			return fmt.Errorf("step %d has an empty id", i)
		}
		if _, exists := g.index[step.ID]; exists {
			return fmt.Errorf("%w: %s", ErrDuplicateStep, step.ID)
		}
		g.index[step.ID] = len(g.order)
		g.order = append(g.order, step.ID)
		g.edges[step.ID] = nil
	}

	// Second pass: build edges from DependsOn fields.
	for _, step := range steps {
		for _, depID := range step.DependsOn {
			if _, exists := g.index[depID]; !exists {
				return fmt.Errorf("%w: step %s depends on %s", ErrUnknownDependency, step.ID, depID)
			}
			g.edges[step.ID] = append(g.edges[step.ID], depID)
			g.dependents[depID] = append(g.dependents[depID], step.ID)
		}
	}

	if g.hasCycleLocked() {
		return ErrCycleDetected
	}

	g.debugLog("[graph.Build] graph built successfully with %d nodes", len(g.order))
	return nil
}

// Validate checks a plan's steps without keeping the graph.
func Validate(steps []models.Step) error {
	return New().Build(steps)
}

// HasCycle returns true if the graph contains a circular dependency.
func (g *DependencyGraph) HasCycle() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.hasCycleLocked()
}

// hasCycleLocked uses depth-first search with coloring to detect back edges.
// Caller must hold g.mu.
func (g *DependencyGraph) hasCycleLocked() bool {
	// Color states: 0 = white (unvisited), 1 = gray (in progress), 2 = black (done).
	colors := make(map[string]int, len(g.order))

	var visit func(id string) bool
	visit = func(id string) bool {
		colors[id] = 1

		for _, depID := range g.edges[id] {
			switch colors[depID] {
			case 1:
				g.debugLog("[graph] back edge %s -> %s", id, depID)
				return true
			case 0:
				if visit(depID) {
					return true
				}
			}
		}

		colors[id] = 2
		return false
	}

	for _, id := range g.order {
		if colors[id] == 0 && visit(id) {
			return true
		}
	}
	return false
}

// TopologicalSort returns step IDs so that every step follows its dependencies.
// Among steps whose dependencies are satisfied, plan order wins, so the result
// is deterministic.
func (g *DependencyGraph) TopologicalSort() ([]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.hasCycleLocked() {
		return nil, ErrCycleDetected
	}

	remaining := make(map[string]int, len(g.order))
	for _, id := range g.order {
		remaining[id] = len(g.edges[id])
	}

	result := make([]string, 0, len(g.order))
	placed := make(map[string]bool, len(g.order))
	for len(result) < len(g.order) {
		for _, id := range g.order {
			if placed[id] || remaining[id] > 0 {
				continue
			}
			placed[id] = true
			result = append(result, id)
			for _, dep := range g.dependents[id] {
				remaining[dep]--
			}
			break
		}
	}
	return result, nil
}

// Size returns the number of steps in the graph.
func (g *DependencyGraph) Size() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.order)
}

// Order returns step IDs in plan order.
func (g *DependencyGraph) Order() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]string(nil), g.order...)
}

// Index returns the plan position of a step, or -1 if unknown.
func (g *DependencyGraph) Index(id string) int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if i, ok := g.index[id]; ok {
		return i
	}
	return -1
}

// Dependencies returns the IDs of steps the given step depends on.
func (g *DependencyGraph) Dependencies(id string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]string(nil), g.edges[id]...)
}

// Dependents returns the IDs of steps that directly depend on the given step.
func (g *DependencyGraph) Dependents(id string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]string(nil), g.dependents[id]...)
}

// TransitiveDependents returns every step that depends on the given step,
// directly or through other steps, in plan order.
func (g *DependencyGraph) TransitiveDependents(id string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	seen := make(map[string]bool)
	stack := append([]string(nil), g.dependents[id]...)
	for len(stack) > 0 {
		next := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[next] {
			continue
		}
		seen[next] = true
		stack = append(stack, g.dependents[next]...)
	}

	var out []string
	for _, sid := range g.order {
		if seen[sid] {
			out = append(out, sid)
		}
	}
	return out
}

// TransitiveDependencies returns every step the given step waits for,
// directly or indirectly, in plan order.
func (g *DependencyGraph) TransitiveDependencies(id string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	seen := make(map[string]bool)
	stack := append([]string(nil), g.edges[id]...)
	for len(stack) > 0 {
		next := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[next] {
			continue
		}
		seen[next] = true
		stack = append(stack, g.edges[next]...)
	}

	var out []string
	for _, sid := range g.order {
		if seen[sid] {
			out = append(out, sid)
		}
	}
	return out
}
