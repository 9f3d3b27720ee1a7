package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ShayCichocki/quorum/internal/agent"
	"github.com/ShayCichocki/quorum/internal/graph"
	"github.com/ShayCichocki/quorum/internal/template"
	"github.com/ShayCichocki/quorum/pkg/models"
)

// AgentSource resolves agent IDs to capabilities. *agent.Registry implements it.
type AgentSource interface {
	Get(id models.AgentID) (agent.Capability, error)
}

// Scheduler executes plans against a set of agents.
// A Scheduler may run several plans concurrently; each Execute call owns its
// own variable store, statuses and results.
type Scheduler struct {
	agents AgentSource
	opts   schedulerOptions
	bus    *EventBus
	logger *DebugLogger
	now    func() time.Time
}

// NewScheduler creates a Scheduler that dispatches to agents.
func NewScheduler(agents AgentSource, opts ...Option) *Scheduler {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	bus := o.bus
	if bus == nil {
		bus = NewEventBus()
	}
	logger := o.logger
	if logger == nil {
		logger = NopLogger()
	}

	return &Scheduler{
		agents: agents,
		opts:   o,
		bus:    bus,
		logger: logger,
		now:    time.Now,
	}
}

// Subscribe returns a channel receiving this scheduler's lifecycle events.
func (s *Scheduler) Subscribe(bufferSize int) <-chan Event {
	return s.bus.Subscribe(bufferSize)
}

// Events returns the scheduler's event bus.
func (s *Scheduler) Events() *EventBus {
	return s.bus
}

// MaxConcurrency returns the configured worker count.
func (s *Scheduler) MaxConcurrency() int {
	return s.opts.maxConcurrency
}

// Close closes the event bus. The scheduler must not be used afterwards.
func (s *Scheduler) Close() {
	s.bus.Close()
}

// Execute runs every step of the plan and reports how each one ended.
// It never returns an error: a rejected plan yields Status failed with
// Error set and no results, and every step failure becomes a StepResult.
// Cancelling ctx aborts in-flight agent calls; steps that have not started
// are cancelled.
func (s *Scheduler) Execute(ctx context.Context, plan *models.Plan) *models.ExecutionResult {
	start := s.now()
	res := &models.ExecutionResult{PlanID: plan.ID}

	g := graph.New()
	g.SetDebugLog(s.logger.Log)
	err := g.Build(plan.Steps)
	if err == nil && len(plan.Steps) == 0 {
		err = errors.New("plan has no steps")
	}
	if err == nil {
		err = checkOutputNames(plan.Steps)
	}
	if err != nil {
		s.logger.Log("[scheduler] plan %s rejected: %v", plan.ID, err)
		res.Status = models.RunStatusFailed
		res.Error = fmt.Sprintf("invalid plan: %v", err)
		res.Duration = s.now().Sub(start)
		s.emit(Event{Type: EventRunDone, PlanID: plan.ID, Status: res.Status, Message: res.Error, Duration: res.Duration})
		return res
	}

	r := newRun(s, plan, g)
	r.loop(ctx)

	res.Results = r.results
	res.Status, res.FinalOutput = summarize(plan, r.status, r.content)
	res.Duration = s.now().Sub(start)

	s.logger.Log("[scheduler] plan %s finished: status=%s steps=%d duration=%s", plan.ID, res.Status, len(plan.Steps), res.Duration)
	s.emit(Event{Type: EventRunDone, PlanID: plan.ID, Status: res.Status, Duration: res.Duration})
	return res
}

// checkOutputNames rejects output names that no {{name}} placeholder can
// reference, since dependents would otherwise receive the placeholder verbatim.
func checkOutputNames(steps []models.Step) error {
	for _, st := range steps {
		if st.OutputAs != "" && !template.ValidName(st.OutputAs) {
			return fmt.Errorf("step %s: output name %q must contain only letters, digits and underscores", st.ID, st.OutputAs)
		}
	}
	return nil
}

func (s *Scheduler) emit(e Event) {
	if !s.bus.HasSubscribers() {
		return
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = s.now()
	}
	s.bus.Emit(e)
}

// summarize derives the run status and the final output: the content of the
// last completed step in plan order.
func summarize(plan *models.Plan, status []models.StepStatus, content []string) (models.RunStatus, string) {
	completed := 0
	final := ""
	for i := range plan.Steps {
		if status[i] == models.StepStatusCompleted {
			completed++
			final = content[i]
		}
	}
	switch {
	case completed == len(plan.Steps):
		return models.RunStatusCompleted, final
	case completed > 0:
		return models.RunStatusPartial, final
	default:
		return models.RunStatusFailed, final
	}
}

// job is one dispatched step handed to a worker.
type job struct {
	index  int
	step   models.Step
	prompt string
	// results is a snapshot of the run's results at dispatch time.
	results []models.StepResult
}

// outcome is what a worker sends back when a step reaches a terminal state.
type outcome struct {
	index  int
	result models.StepResult
}

// run is the state of one Execute call. Only the coordinating goroutine
// touches status, content, results and vars; workers see copies.
type run struct {
	s     *Scheduler
	plan  *models.Plan
	graph *graph.DependencyGraph
	vars  *template.Store

	status  []models.StepStatus
	content []string
	results []models.StepResult
	running int

	jobs chan job
	done chan outcome
}

func newRun(s *Scheduler, plan *models.Plan, g *graph.DependencyGraph) *run {
	n := len(plan.Steps)
	status := make([]models.StepStatus, n)
	for i := range status {
		status[i] = models.StepStatusPending
	}
	return &run{
		s:       s,
		plan:    plan,
		graph:   g,
		vars:    template.NewStore(plan.Prompt),
		status:  status,
		content: make([]string, n),
		jobs:    make(chan job, s.opts.maxConcurrency),
		done:    make(chan outcome, s.opts.maxConcurrency),
	}
}

// loop drives the run until every step is terminal.
func (r *run) loop(ctx context.Context) {
	workers := r.s.opts.maxConcurrency
	if n := len(r.plan.Steps); n < workers {
		workers = n
	}
	for i := 0; i < workers; i++ {
		go r.worker(ctx)
	}
	defer close(r.jobs)

	for {
		r.cascade()

		if ctx.Err() != nil {
			r.cancelPending("run cancelled")
		} else if r.dispatch() {
			// Resolution failures are terminal without running; cascade them first.
			continue
		}

		if r.running == 0 {
			r.cancelPending("dependencies never satisfied")
			return
		}

		if ctx.Err() != nil {
			r.finish(<-r.done)
			continue
		}
		select {
		case o := <-r.done:
			r.finish(o)
		case <-ctx.Done():
		}
	}
}

// cascade cancels pending steps that depend on a step that did not
// succeed, repeating until nothing changes.
func (r *run) cascade() {
	for changed := true; changed; {
		changed = false
		for i, step := range r.plan.Steps {
			if r.status[i] != models.StepStatusPending {
				continue
			}
			for _, dep := range step.DependsOn {
				ds := r.status[r.graph.Index(dep)]
				if ds.Blocking() {
					r.terminate(i, models.StepStatusCancelled, fmt.Sprintf("dependency %s %s", dep, ds))
					changed = true
					break
				}
			}
		}
	}
}

func (r *run) ready(i int) bool {
	if r.status[i] != models.StepStatusPending {
		return false
	}
	for _, dep := range r.plan.Steps[i].DependsOn {
		if r.status[r.graph.Index(dep)] != models.StepStatusCompleted {
			return false
		}
	}
	return true
}

// dispatch hands ready steps to workers in plan order while slots are free.
// It returns true if a step failed template resolution.
func (r *run) dispatch() bool {
	failed := false
	for i, step := range r.plan.Steps {
		if r.running >= r.s.opts.maxConcurrency {
			break
		}
		if !r.ready(i) {
			continue
		}

		prompt, err := template.Resolve(step.Prompt, r.vars)
		if err != nil {
			r.s.logger.Log("[scheduler] step %s: %v", step.ID, err)
			r.terminate(i, models.StepStatusFailed, err.Error())
			failed = true
			continue
		}

		r.status[i] = models.StepStatusRunning
		r.running++
		r.s.logger.Log("[scheduler] dispatching step %s (%d/%d running)", step.ID, r.running, r.s.opts.maxConcurrency)
		r.jobs <- job{
			index:   i,
			step:    step,
			prompt:  prompt,
			results: append([]models.StepResult(nil), r.results...),
		}
	}
	return failed
}

// finish records a worker's outcome.
func (r *run) finish(o outcome) {
	r.running--
	step := r.plan.Steps[o.index]
	res := o.result

	if res.Status == models.StepStatusCompleted && step.OutputAs != "" {
		if err := r.vars.Set(step.OutputAs, res.Content); err != nil {
			res.Status = models.StepStatusFailed
			res.Error = fmt.Sprintf("publish output: %v", err)
		}
	}
	r.record(o.index, res)
}

// terminate ends a step that never reached an agent.
func (r *run) terminate(i int, status models.StepStatus, reason string) {
	r.record(i, models.StepResult{
		StepID:      r.plan.Steps[i].ID,
		Status:      status,
		Error:       reason,
		CompletedAt: r.s.now(),
	})
}

func (r *run) record(i int, res models.StepResult) {
	r.status[i] = res.Status
	if res.Status == models.StepStatusCompleted {
		r.content[i] = res.Content
	}
	r.results = append(r.results, res)

	e := Event{PlanID: r.plan.ID, StepID: res.StepID, Agent: res.Agent, Message: res.Error}
	switch res.Status {
	case models.StepStatusCompleted:
		e.Type = EventStepCompleted
		e.Duration = res.Duration()
	case models.StepStatusFailed:
		e.Type = EventStepFailed
	case models.StepStatusCancelled:
		e.Type = EventStepCancelled
	case models.StepStatusSkipped:
		e.Type = EventStepSkipped
	}
	r.s.logger.Log("[scheduler] step %s %s %s", res.StepID, res.Status, res.Error)
	r.s.emit(e)
}

func (r *run) cancelPending(reason string) {
	for i := range r.plan.Steps {
		if r.status[i] == models.StepStatusPending {
			r.terminate(i, models.StepStatusCancelled, reason)
		}
	}
}

func (r *run) worker(ctx context.Context) {
	for j := range r.jobs {
		r.done <- outcome{index: j.index, result: r.execute(ctx, j)}
	}
}

// execute runs the interceptor, resolves the agent and invokes it.
func (r *run) execute(ctx context.Context, j job) models.StepResult {
	res := models.StepResult{StepID: j.step.ID}
	fail := func(status models.StepStatus, msg string) models.StepResult {
		res.Status = status
		res.Error = msg
		res.CompletedAt = r.s.now()
		return res
	}

	prompt := j.prompt
	if icpt := r.s.opts.interceptor; icpt != nil {
		d, err := icpt.Intercept(ctx, StepContext{
			PlanID:  r.plan.ID,
			Step:    j.step,
			Index:   j.index,
			Prompt:  prompt,
			Results: j.results,
		})
		if err != nil {
			return fail(models.StepStatusFailed, fmt.Sprintf("interceptor: %v", err))
		}
		switch d.Verdict {
		case Veto:
			reason := d.Reason
			if reason == "" {
				reason = "vetoed"
			}
			return fail(models.StepStatusSkipped, reason)
		case Edit:
			prompt = d.Prompt
		}
	}

	agentID := j.step.Agent
	if agentID.IsAuto() {
		agentID = r.s.resolveAuto(r.plan)
		r.s.logger.Log("[scheduler] step %s: auto resolved to %s", j.step.ID, agentID)
	}
	res.Agent = agentID

	capability, err := r.s.agents.Get(agentID)
	if err != nil {
		return fail(models.StepStatusFailed, err.Error())
	}

	r.s.emit(Event{Type: EventStepStarted, PlanID: r.plan.ID, StepID: j.step.ID, Agent: agentID})
	res.StartedAt = r.s.now()

	timeout := r.s.opts.timeout
	actx, cancel := context.WithTimeout(ctx, timeout)
	resp, err := capability.Invoke(actx, agent.Request{Prompt: prompt, Timeout: timeout})
	deadline := errors.Is(actx.Err(), context.DeadlineExceeded)
	cancel()

	res.CompletedAt = r.s.now()
	res.Model = resp.Model
	switch {
	case err != nil && deadline && ctx.Err() == nil:
		return fail(models.StepStatusFailed, fmt.Sprintf("timed out after %s: %v", timeout, err))
	case err != nil:
		return fail(models.StepStatusFailed, err.Error())
	case resp.Error != "":
		return fail(models.StepStatusFailed, resp.Error)
	}

	res.Status = models.StepStatusCompleted
	res.Content = resp.Content
	return res
}

// resolveAuto picks a concrete agent for an auto step: the routing policy
// first, then the plan's first concrete agent, then the fallback agent.
func (s *Scheduler) resolveAuto(plan *models.Plan) models.AgentID {
	if rt := s.opts.router; rt != nil && rt.Available() {
		if d := rt.Route(plan.Prompt, s.opts.allowAgents); d.Agent.Concrete() {
			return d.Agent
		}
	}
	if a, ok := plan.FirstConcreteAgent(); ok {
		return a
	}
	return s.opts.fallbackAgent
}
