package orchestrator

import (
	"time"

	"github.com/ShayCichocki/quorum/internal/router"
	"github.com/ShayCichocki/quorum/pkg/models"
)

const (
	// DefaultMaxConcurrency is the number of workers when none is configured.
	DefaultMaxConcurrency = 4
	// DefaultTimeout bounds each agent invocation when none is configured.
	DefaultTimeout = 10 * time.Minute
)

// Option configures a Scheduler. Use With* functions to create Options.
type Option func(*schedulerOptions)

// schedulerOptions holds all optional configuration.
type schedulerOptions struct {
	maxConcurrency int
	timeout        time.Duration
	router         router.Policy
	allowAgents    []models.AgentID
	fallbackAgent  models.AgentID
	interceptor    Interceptor
	logger         *DebugLogger
	bus            *EventBus
}

func defaultOptions() schedulerOptions {
	return schedulerOptions{
		maxConcurrency: DefaultMaxConcurrency,
		timeout:        DefaultTimeout,
		fallbackAgent:  models.AgentClaude,
	}
}

// WithMaxConcurrency caps the number of steps running at once. Values below 1 are treated as 1.
func WithMaxConcurrency(n int) Option {
	return func(o *schedulerOptions) {
		if n < 1 {
			n = 1
		}
		o.maxConcurrency = n
	}
}

// WithTimeout sets the per-step agent timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *schedulerOptions) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithRouter sets the routing policy used to resolve auto agents.
func WithRouter(r router.Policy) Option {
	return func(o *schedulerOptions) { o.router = r }
}

// WithAllowAgents restricts auto resolution to the given agents.
func WithAllowAgents(agents []models.AgentID) Option {
	return func(o *schedulerOptions) { o.allowAgents = agents }
}

// WithFallbackAgent sets the agent used for auto steps when routing gives
// nothing usable and the plan has no concrete agent.
func WithFallbackAgent(a models.AgentID) Option {
	return func(o *schedulerOptions) {
		if a.Concrete() {
			o.fallbackAgent = a
		}
	}
}

// WithInterceptor sets the hook called right before each step is dispatched.
func WithInterceptor(i Interceptor) Option {
	return func(o *schedulerOptions) { o.interceptor = i }
}

// WithLogger sets the debug logger.
func WithLogger(l *DebugLogger) Option {
	return func(o *schedulerOptions) { o.logger = l }
}

// WithEventBus shares an existing bus instead of creating one per scheduler.
func WithEventBus(b *EventBus) Option {
	return func(o *schedulerOptions) { o.bus = b }
}
