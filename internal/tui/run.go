package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ShayCichocki/quorum/internal/orchestrator"
	"github.com/ShayCichocki/quorum/pkg/models"
)

// maxLogEntries is how many activity lines are shown.
const maxLogEntries = 8

// EventMsg wraps a scheduler event.
type EventMsg struct {
	Event orchestrator.Event
}

// ApprovalMsg asks the user to approve a step.
type ApprovalMsg struct {
	Request orchestrator.ApprovalRequest
}

// DoneMsg is sent when Execute returns.
type DoneMsg struct {
	Result *models.ExecutionResult
}

// ApprovalResponder delivers the user's approval decision.
type ApprovalResponder func(orchestrator.ApprovalResponse)

// StepRow is the display state of one step.
type StepRow struct {
	ID      string
	Agent   models.AgentID
	Status  models.StepStatus
	Message string
	Started time.Time
	Elapsed time.Duration
}

// LogEntry is one line of the activity log.
type LogEntry struct {
	Timestamp time.Time
	Kind      orchestrator.EventType
	Message   string
}

// RunApp is the bubbletea model for a live run.
type RunApp struct {
	plan    *models.Plan
	rows    []StepRow
	index   map[string]int
	logs    []LogEntry
	spinner spinner.Model
	prompt  *approvalPrompt
	started time.Time

	respond ApprovalResponder
	cancel  func()

	result   *models.ExecutionResult
	width    int
	height   int
	quitting bool

	// Styles
	titleStyle   lipgloss.Style
	labelStyle   lipgloss.Style
	pendingStyle lipgloss.Style
	runningStyle lipgloss.Style
	doneStyle    lipgloss.Style
	errorStyle   lipgloss.Style
	skipStyle    lipgloss.Style
	logTimeStyle lipgloss.Style
	logStyle     lipgloss.Style
	hintStyle    lipgloss.Style
}

// NewRunApp creates a view over the plan's steps.
// respond may be nil when approvals are not in use; cancel, if non-nil,
// is called when the user quits.
func NewRunApp(plan *models.Plan, respond ApprovalResponder, cancel func()) *RunApp {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	a := &RunApp{
		plan:    plan,
		index:   make(map[string]int, len(plan.Steps)),
		spinner: sp,
		started: time.Now(),
		respond: respond,
		cancel:  cancel,

		titleStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")),
		labelStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Width(10),
		pendingStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		runningStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("39")),
		doneStyle:    lipgloss.NewStyle().Foreground(lipgloss.Color("34")).Bold(true),
		errorStyle:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
		skipStyle:    lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		logTimeStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		logStyle:     lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		hintStyle:    lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
	}
	for i, s := range plan.Steps {
		a.index[s.ID] = i
		a.rows = append(a.rows, StepRow{ID: s.ID, Agent: s.Agent, Status: models.StepStatusPending})
	}
	return a
}

// NewRunProgram creates a bubbletea program for the run view.
func NewRunProgram(plan *models.Plan, respond ApprovalResponder, cancel func()) (*tea.Program, *RunApp) {
	app := NewRunApp(plan, respond, cancel)
	p := tea.NewProgram(app, tea.WithAltScreen())
	return p, app
}

// Init implements tea.Model.
func (a *RunApp) Init() tea.Cmd {
	return a.spinner.Tick
}

// Update implements tea.Model.
func (a *RunApp) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if a.prompt != nil {
			return a, a.updatePrompt(msg)
		}
		switch msg.String() {
		case "q", "ctrl+c":
			a.quitting = true
			if a.cancel != nil && a.result == nil {
				a.cancel()
			}
			return a, tea.Quit
		}

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		if a.prompt != nil {
			a.prompt.setWidth(msg.Width)
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case EventMsg:
		a.applyEvent(msg.Event)

	case ApprovalMsg:
		a.prompt = newApprovalPrompt(msg.Request, a.width)
		a.log(orchestrator.EventType("approval"), fmt.Sprintf("%s waiting for approval", msg.Request.StepID))

	case DoneMsg:
		a.result = msg.Result
		a.prompt = nil
	}

	return a, nil
}

func (a *RunApp) updatePrompt(msg tea.KeyMsg) tea.Cmd {
	resp, decided, cmd := a.prompt.update(msg)
	if !decided {
		return cmd
	}
	a.prompt = nil
	if a.respond != nil {
		a.respond(resp)
	}
	verdict := "approved"
	switch {
	case !resp.Approved:
		verdict = "rejected"
	case resp.Prompt != "":
		verdict = "approved with edits"
	}
	a.log(orchestrator.EventType("approval"), fmt.Sprintf("%s %s", resp.StepID, verdict))
	return cmd
}

// applyEvent updates step rows and the activity log.
func (a *RunApp) applyEvent(ev orchestrator.Event) {
	if ev.Type == orchestrator.EventRunDone {
		a.log(ev.Type, fmt.Sprintf("run %s in %s", ev.Status, ev.Duration.Round(time.Millisecond)))
		return
	}

	i, ok := a.index[ev.StepID]
	if !ok {
		return
	}
	row := &a.rows[i]
	if ev.Agent != "" {
		row.Agent = ev.Agent
	}

	switch ev.Type {
	case orchestrator.EventStepStarted:
		row.Status = models.StepStatusRunning
		row.Started = ev.Timestamp
		a.log(ev.Type, fmt.Sprintf("%s started on %s", row.ID, row.Agent))
	case orchestrator.EventStepCompleted:
		row.Status = models.StepStatusCompleted
		row.Elapsed = ev.Duration
		a.log(ev.Type, fmt.Sprintf("%s completed in %s", row.ID, ev.Duration.Round(time.Millisecond)))
	case orchestrator.EventStepFailed:
		row.Status = models.StepStatusFailed
		row.Message = ev.Message
		a.log(ev.Type, fmt.Sprintf("%s failed: %s", row.ID, ev.Message))
	case orchestrator.EventStepCancelled:
		row.Status = models.StepStatusCancelled
		row.Message = ev.Message
		a.log(ev.Type, fmt.Sprintf("%s cancelled: %s", row.ID, ev.Message))
	case orchestrator.EventStepSkipped:
		row.Status = models.StepStatusSkipped
		row.Message = ev.Message
		a.log(ev.Type, fmt.Sprintf("%s skipped: %s", row.ID, ev.Message))
	}
}

func (a *RunApp) log(kind orchestrator.EventType, message string) {
	a.logs = append(a.logs, LogEntry{Timestamp: time.Now(), Kind: kind, Message: message})
}

// Rows returns the current step rows in plan order.
func (a *RunApp) Rows() []StepRow {
	return append([]StepRow(nil), a.rows...)
}

// Logs returns the activity log.
func (a *RunApp) Logs() []LogEntry {
	return append([]LogEntry(nil), a.logs...)
}

// Done reports whether the run finished.
func (a *RunApp) Done() bool {
	return a.result != nil
}

// AwaitingApproval reports whether the approval prompt is open.
func (a *RunApp) AwaitingApproval() bool {
	return a.prompt != nil
}

// View implements tea.Model.
func (a *RunApp) View() string {
	if a.quitting {
		return "Run cancelled.\n"
	}

	var b strings.Builder

	b.WriteString(a.titleStyle.Render(fmt.Sprintf("=== quorum %s ===", a.plan.Mode)))
	b.WriteString("\n\n")
	b.WriteString(a.labelStyle.Render("Task:"))
	b.WriteString(truncate(firstLine(a.plan.Prompt), 70))
	b.WriteString("\n")
	b.WriteString(a.labelStyle.Render("Progress:"))
	b.WriteString(a.progress())
	b.WriteString("\n\n")

	for _, row := range a.rows {
		b.WriteString(a.renderRow(row))
		b.WriteString("\n")
	}

	if a.prompt != nil {
		b.WriteString("\n")
		b.WriteString(a.prompt.view())
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(a.renderLogs())

	b.WriteString("\n")
	if a.result != nil {
		style := a.doneStyle
		if a.result.Status != models.RunStatusCompleted {
			style = a.errorStyle
		}
		b.WriteString(style.Render(fmt.Sprintf("Run %s in %s. Press q to exit.",
			a.result.Status, a.result.Duration.Round(time.Millisecond))))
	} else {
		b.WriteString(a.hintStyle.Render("Press q to cancel"))
	}
	b.WriteString("\n")

	return b.String()
}

func (a *RunApp) progress() string {
	terminal := 0
	for _, row := range a.rows {
		if row.Status.Terminal() {
			terminal++
		}
	}
	elapsed := time.Since(a.started).Round(time.Second)
	if a.result != nil {
		elapsed = a.result.Duration.Round(time.Millisecond)
	}
	return fmt.Sprintf("%d/%d steps  %s", terminal, len(a.rows), elapsed)
}

func (a *RunApp) renderRow(row StepRow) string {
	var icon string
	var style lipgloss.Style
	switch row.Status {
	case models.StepStatusRunning:
		icon, style = a.spinner.View(), a.runningStyle
	case models.StepStatusCompleted:
		icon, style = "✓", a.doneStyle
	case models.StepStatusFailed:
		icon, style = "✗", a.errorStyle
	case models.StepStatusCancelled:
		icon, style = "⊘", a.pendingStyle
	case models.StepStatusSkipped:
		icon, style = "↷", a.skipStyle
	default:
		icon, style = "·", a.pendingStyle
	}

	line := fmt.Sprintf("  %s %-18s %-8s %s", icon, truncate(row.ID, 18), row.Agent, style.Render(string(row.Status)))
	switch {
	case row.Status == models.StepStatusRunning && !row.Started.IsZero():
		line += a.hintStyle.Render(fmt.Sprintf("  %s", time.Since(row.Started).Round(time.Second)))
	case row.Elapsed > 0:
		line += a.hintStyle.Render(fmt.Sprintf("  %s", row.Elapsed.Round(time.Millisecond)))
	case row.Message != "":
		line += a.hintStyle.Render("  " + truncate(row.Message, 50))
	}
	return line
}

// renderLogs renders the recent log entries.
func (a *RunApp) renderLogs() string {
	if len(a.logs) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("252")).
		Render("Activity Log"))
	b.WriteString("\n")

	start := 0
	if len(a.logs) > maxLogEntries {
		start = len(a.logs) - maxLogEntries
	}

	for _, entry := range a.logs[start:] {
		ts := a.logTimeStyle.Render(entry.Timestamp.Format("15:04:05"))
		kind := lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Width(10).
			Render(string(entry.Kind))
		b.WriteString(fmt.Sprintf("  %s %s %s\n", ts, kind, a.logStyle.Render(entry.Message)))
	}

	return b.String()
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}
