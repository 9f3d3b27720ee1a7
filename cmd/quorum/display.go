package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"

	"github.com/ShayCichocki/quorum/internal/orchestrator"
	"github.com/ShayCichocki/quorum/pkg/models"
)

// promptPreview caps how much of a resolved prompt is shown before approval.
const promptPreview = 800

// printStatus prints a status line with a colored symbol.
func printStatus(symbol, message string, colorAttr color.Attribute) {
	fprintStatus(os.Stdout, symbol, message, colorAttr)
}

func fprintStatus(w io.Writer, symbol, message string, colorAttr color.Attribute) {
	c := color.New(colorAttr)
	fmt.Fprintf(w, "%s %s\n", c.Sprint(symbol), message)
}

// printEvent writes one progress line per step lifecycle event.
func printEvent(w io.Writer, ev orchestrator.Event) {
	switch ev.Type {
	case orchestrator.EventStepStarted:
		fprintStatus(w, "▶", fmt.Sprintf("%s started (%s)", ev.StepID, ev.Agent), color.FgCyan)
	case orchestrator.EventStepCompleted:
		fprintStatus(w, "✓", fmt.Sprintf("%s completed (%s, %s)", ev.StepID, ev.Agent, roundDuration(ev.Duration)), color.FgGreen)
	case orchestrator.EventStepFailed:
		fprintStatus(w, "✗", fmt.Sprintf("%s failed: %s", ev.StepID, ev.Message), color.FgRed)
	case orchestrator.EventStepCancelled:
		fprintStatus(w, "⊘", fmt.Sprintf("%s cancelled: %s", ev.StepID, ev.Message), color.FgYellow)
	case orchestrator.EventStepSkipped:
		fprintStatus(w, "-", fmt.Sprintf("%s skipped: %s", ev.StepID, ev.Message), color.FgHiBlack)
	}
}

// reportResult prints the run summary, or the result as JSON. It returns an
// error when the run failed so the process exits non-zero.
func reportResult(w io.Writer, plan *models.Plan, result *models.ExecutionResult, runID string, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return fmt.Errorf("encode result: %w", err)
		}
	} else {
		printSummary(w, plan, result, runID)
	}

	if result.Status == models.RunStatusFailed {
		if result.Error != "" {
			return fmt.Errorf("run failed: %s", result.Error)
		}
		return fmt.Errorf("run failed")
	}
	return nil
}

// printSummary writes the step counts, the run ID and the final output.
func printSummary(w io.Writer, plan *models.Plan, result *models.ExecutionResult, runID string) {
	counts := make(map[models.StepStatus]int)
	for _, r := range result.Results {
		counts[r.Status]++
	}

	statusColor := color.FgGreen
	switch result.Status {
	case models.RunStatusPartial:
		statusColor = color.FgYellow
	case models.RunStatusFailed:
		statusColor = color.FgRed
	}

	fmt.Fprintln(w)
	header := color.New(statusColor, color.Bold).Sprintf("=== Run %s in %s ===", result.Status, roundDuration(result.Duration))
	fmt.Fprintln(w, header)
	fmt.Fprintf(w, "Steps: %d/%d completed", counts[models.StepStatusCompleted], len(plan.Steps))
	for _, s := range []models.StepStatus{models.StepStatusFailed, models.StepStatusCancelled, models.StepStatusSkipped} {
		if counts[s] > 0 {
			fmt.Fprintf(w, ", %d %s", counts[s], s)
		}
	}
	fmt.Fprintln(w)
	if runID != "" {
		fmt.Fprintf(w, "Run ID: %s\n", runID)
	}
	if result.Error != "" {
		fmt.Fprintf(w, "%s %s\n", color.RedString("Error:"), result.Error)
	}
	for _, r := range result.Results {
		if r.Status == models.StepStatusFailed {
			fmt.Fprintf(w, "  %s %s: %s\n", color.RedString("✗"), r.StepID, r.Error)
		}
	}

	if result.FinalOutput != "" {
		fmt.Fprintf(w, "\n%s\n", color.New(color.Bold).Sprint("--- Final output ---"))
		fmt.Fprintln(w, strings.TrimRight(result.FinalOutput, "\n"))
	}
}

// printApprovals tallies the --confirm decisions of a run.
func printApprovals(w io.Writer, approvals []orchestrator.Approval) {
	if len(approvals) == 0 {
		return
	}
	var approved, edited, rejected int
	for _, a := range approvals {
		switch {
		case !a.Approved:
			rejected++
		case a.Edited:
			approved++
			edited++
		default:
			approved++
		}
	}
	fmt.Fprintf(w, "Approvals: %d approved (%d edited), %d rejected\n", approved, edited, rejected)
}

// lockedWriter serializes progress lines and approval prompts onto one writer.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

// promptApprovals answers approval requests from in until ctx ends.
func promptApprovals(ctx context.Context, gate *orchestrator.ApprovalGate, in io.Reader, out io.Writer) {
	reader := bufio.NewReader(in)
	for {
		select {
		case <-ctx.Done():
			return
		case req, ok := <-gate.RequestCh():
			if !ok {
				return
			}
			gate.SubmitResponse(askApproval(reader, out, req))
		}
	}
}

// askApproval shows the resolved prompt and reads y/n/e.
// An empty answer approves; end of input rejects.
func askApproval(r *bufio.Reader, out io.Writer, req orchestrator.ApprovalRequest) orchestrator.ApprovalResponse {
	resp := orchestrator.ApprovalResponse{StepID: req.StepID}

	fmt.Fprintf(out, "\n%s Step %s wants to run on %s:\n", color.YellowString("?"), req.StepID, req.Agent)
	fmt.Fprintln(out, indent(preview(req.Prompt, promptPreview), "    "))
	fmt.Fprint(out, "Run this step? [Y/n/e] ")

	line, err := r.ReadString('\n')
	if err != nil && line == "" {
		resp.Reason = "no answer"
		return resp
	}

	switch strings.ToLower(strings.TrimSpace(line)) {
	case "", "y", "yes":
		resp.Approved = true
	case "e", "edit":
		fmt.Fprint(out, "Replacement prompt (one line, empty keeps the original): ")
		edited, _ := r.ReadString('\n')
		resp.Approved = true
		resp.Prompt = strings.TrimSpace(edited)
	default:
		resp.Reason = "rejected at prompt"
	}
	return resp
}

func preview(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}

func roundDuration(d time.Duration) time.Duration {
	if d < time.Second {
		return d.Round(time.Millisecond)
	}
	return d.Round(100 * time.Millisecond)
}
