// Package agent provides the agent capabilities the scheduler dispatches steps to.
package agent

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ShayCichocki/quorum/pkg/models"
)

// ErrNoAgent is returned when no capability is registered for an agent ID.
var ErrNoAgent = errors.New("no agent registered")

// Request is one prompt sent to an agent.
type Request struct {
	// Prompt is the literal, fully resolved prompt text.
	Prompt string
	// Timeout is informational; the caller's context already carries the deadline.
	Timeout time.Duration
	// Model overrides the capability's default model when set.
	Model string
}

// Response is an agent's answer.
type Response struct {
	Content string
	// Model is the model that actually produced the answer, if known.
	Model    string
	Duration time.Duration
	// Error reports a failure the agent returned in-band, such as a CLI
	// that exited cleanly but printed an error result.
	Error string
	// TokensIn and TokensOut are zero when the backend does not report usage.
	TokensIn  int64
	TokensOut int64
}

// Capability turns a prompt into text.
// Implementations must be safe for concurrent use by different steps.
type Capability interface {
	Invoke(ctx context.Context, req Request) (Response, error)
}

// Func adapts an ordinary function to Capability.
type Func func(ctx context.Context, req Request) (Response, error)

// Invoke calls f.
func (f Func) Invoke(ctx context.Context, req Request) (Response, error) {
	return f(ctx, req)
}

// Text returns a Capability that always answers with content.
func Text(content string) Capability {
	return Func(func(ctx context.Context, req Request) (Response, error) {
		return Response{Content: content}, nil
	})
}

// Registry maps agent IDs to capabilities. It is built once per process
// and passed to whoever needs it.
type Registry struct {
	mu     sync.RWMutex
	agents map[models.AgentID]Capability
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{agents: make(map[models.AgentID]Capability)}
}

// Register binds a capability to a concrete agent ID, replacing any previous one.
func (r *Registry) Register(id models.AgentID, c Capability) error {
	if !id.Concrete() {
		return fmt.Errorf("register %q: not a concrete agent", id)
	}
	if c == nil {
		return fmt.Errorf("register %q: nil capability", id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents[id] = c
	return nil
}

// Get returns the capability for id.
func (r *Registry) Get(id models.AgentID) (Capability, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.agents[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoAgent, id)
	}
	return c, nil
}

// Has reports whether id is registered.
func (r *Registry) Has(id models.AgentID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.agents[id]
	return ok
}

// IDs returns the registered agent IDs, sorted.
func (r *Registry) IDs() []models.AgentID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]models.AgentID, 0, len(r.agents))
	for id := range r.agents {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
