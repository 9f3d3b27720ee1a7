// Package template holds the per-run variable store and resolves {{name}}
// placeholders in step prompts against it.
package template

import (
	"errors"
	"fmt"
	"sync"
)

// PromptVar is the reserved variable seeded with the plan's prompt.
const PromptVar = "prompt"

var (
	// ErrAlreadySet is returned when a variable is written twice in one run.
	ErrAlreadySet = errors.New("variable already set")
	// ErrInvalidName is returned for names no placeholder could reference.
	ErrInvalidName = errors.New("invalid variable name")
)

// Store maps variable names to resolved text for one execution run.
// Every name is write-once.
type Store struct {
	mu   sync.RWMutex
	vars map[string]string
}

// NewStore creates a store seeded with the plan prompt.
func NewStore(prompt string) *Store {
	return &Store{vars: map[string]string{PromptVar: prompt}}
}

// Set publishes a value. It fails if the name is not a valid placeholder
// name or is already set.
func (s *Store) Set(name, value string) error {
	if !ValidName(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.vars[name]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadySet, name)
	}
	s.vars[name] = value
	return nil
}

// Get returns a variable's value and whether it exists.
func (s *Store) Get(name string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.vars[name]
	return v, ok
}

// Len returns the number of variables, including the prompt.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.vars)
}

// Snapshot returns a copy of all variables.
func (s *Store) Snapshot() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]string, len(s.vars))
	for k, v := range s.vars {
		out[k] = v
	}
	return out
}
