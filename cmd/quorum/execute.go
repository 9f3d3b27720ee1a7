package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/ShayCichocki/quorum/internal/agent"
	"github.com/ShayCichocki/quorum/internal/config"
	"github.com/ShayCichocki/quorum/internal/orchestrator"
	"github.com/ShayCichocki/quorum/internal/router"
	"github.com/ShayCichocki/quorum/internal/signals"
	"github.com/ShayCichocki/quorum/internal/state"
	"github.com/ShayCichocki/quorum/internal/tui"
	"github.com/ShayCichocki/quorum/pkg/models"
)

// eventBuffer is the subscription buffer for progress output.
const eventBuffer = 64

// runOptions controls how a compiled plan is executed.
type runOptions struct {
	dir         string
	cfg         *config.Config
	registry    *agent.Registry
	fallback    models.AgentID
	allowAgents []models.AgentID
	concurrency int
	timeout     time.Duration
	confirm     bool
	useTUI      bool
	save        bool
	out         io.Writer
	in          io.Reader
}

// executePlan runs plan to completion. SIGINT, SIGTERM and the stop signal
// file all cancel the run. The run is recorded in the state database unless
// o.save is false; the returned ID is empty when nothing was recorded.
// Persistence problems are logged, never fatal.
func executePlan(ctx context.Context, plan *models.Plan, o runOptions) (*models.ExecutionResult, string) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Handle signals for graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	if stop, err := signals.WatchStop(ctx, o.dir, cancel); err != nil {
		log.Printf("[quorum] stop signal watcher unavailable: %v", err)
	} else {
		defer stop()
	}

	logger := orchestrator.NopLogger()
	if os.Getenv("QUORUM_DEBUG") != "" {
		logger = orchestrator.NewDebugLoggerForProject(o.dir)
		defer logger.Close()
	}

	var store state.StateStore
	if o.save {
		db, err := openStore(o.cfg, o.dir)
		if err != nil {
			log.Printf("[quorum] run history disabled: %v", err)
		} else {
			store = db
			defer db.Close()
		}
	}

	runID := uuid.NewString()
	if store != nil {
		if err := store.BeginRun(runID, plan, time.Now()); err != nil {
			log.Printf("[quorum] record run start: %v", err)
			store = nil
		}
	}

	opts := []orchestrator.Option{
		orchestrator.WithMaxConcurrency(o.concurrency),
		orchestrator.WithTimeout(o.timeout),
		orchestrator.WithRouter(router.NewKeywordRouter(o.registry.IDs(), o.fallback)),
		orchestrator.WithAllowAgents(o.allowAgents),
		orchestrator.WithFallbackAgent(o.fallback),
		orchestrator.WithLogger(logger),
	}
	var gate *orchestrator.ApprovalGate
	if o.confirm {
		gate = orchestrator.NewApprovalGate()
		opts = append(opts, orchestrator.WithInterceptor(gate))
	}
	sched := orchestrator.NewScheduler(o.registry, opts...)

	var result *models.ExecutionResult
	if o.useTUI {
		result = runWithTUI(ctx, cancel, sched, gate, plan)
	} else {
		result = runWithProgress(ctx, sched, gate, plan, o.in, o.out)
	}
	if gate != nil {
		printApprovals(o.out, gate.Approvals())
	}
	if n := sched.Events().DroppedCount(); n > 0 {
		log.Printf("[quorum] %d progress events were dropped", n)
	}

	if store == nil {
		return result, ""
	}
	if err := store.FinishRun(runID, result); err != nil {
		log.Printf("[quorum] record run result: %v", err)
		return result, ""
	}
	return result, runID
}

// openStore opens the configured state database and fails any run left
// running by a previous process.
func openStore(cfg *config.Config, dir string) (*state.DB, error) {
	db, err := state.Open(statePath(cfg, dir), cfg.State.Driver)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, err
	}
	if n, err := db.MarkInterrupted(); err != nil {
		log.Printf("[quorum] mark interrupted runs: %v", err)
	} else if n > 0 {
		log.Printf("[quorum] marked %d interrupted run(s) as failed", n)
	}
	return db, nil
}

// statePath resolves the configured database path against the project dir.
func statePath(cfg *config.Config, dir string) string {
	path := cfg.State.Path
	if path == "" {
		return state.ProjectDBPath(dir)
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(dir, path)
	}
	return path
}

// runWithProgress prints events as they arrive and, when gate is set,
// asks on in before each step.
func runWithProgress(ctx context.Context, sched *orchestrator.Scheduler, gate *orchestrator.ApprovalGate, plan *models.Plan, in io.Reader, out io.Writer) *models.ExecutionResult {
	out = &lockedWriter{w: out}
	events := sched.Subscribe(eventBuffer)
	printed := make(chan struct{})
	go func() {
		defer close(printed)
		for ev := range events {
			printEvent(out, ev)
		}
	}()

	if gate != nil {
		go promptApprovals(ctx, gate, in, out)
	}

	result := sched.Execute(ctx, plan)
	sched.Close()
	<-printed
	return result
}

// runWithTUI shows the live view until the user quits. Quitting before the
// run ends cancels it; the result is always waited for.
func runWithTUI(ctx context.Context, cancel context.CancelFunc, sched *orchestrator.Scheduler, gate *orchestrator.ApprovalGate, plan *models.Plan) *models.ExecutionResult {
	// Suppress log output while TUI is active (it corrupts the display)
	originalOutput := log.Writer()
	log.SetOutput(io.Discard)
	defer log.SetOutput(originalOutput)

	var respond tui.ApprovalResponder
	if gate != nil {
		respond = gate.SubmitResponse
	}
	program, _ := tui.NewRunProgram(plan, respond, cancel)

	go tui.ForwardEvents(program, sched.Subscribe(eventBuffer))
	if gate != nil {
		go tui.ForwardApprovals(ctx, program, gate.RequestCh())
	}

	resultCh := make(chan *models.ExecutionResult, 1)
	go func() {
		res := sched.Execute(ctx, plan)
		sched.Close()
		program.Send(tui.DoneMsg{Result: res})
		resultCh <- res
	}()

	if _, err := program.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "TUI error: %v\n", err)
		cancel()
	}
	return <-resultCh
}
