package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ShayCichocki/quorum/internal/orchestrator"
)

// approvalPrompt asks whether a step may run. 'e' opens the prompt
// for editing; enter submits the edit, esc abandons it.
type approvalPrompt struct {
	req     orchestrator.ApprovalRequest
	input   textinput.Model
	editing bool
	width   int

	boxStyle lipgloss.Style
	keyStyle lipgloss.Style
}

func newApprovalPrompt(req orchestrator.ApprovalRequest, width int) *approvalPrompt {
	ti := textinput.New()
	ti.CharLimit = 0
	ti.SetValue(req.Prompt)
	ti.CursorEnd()

	p := &approvalPrompt{
		req:   req,
		input: ti,

		boxStyle: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("214")).
			Padding(0, 1),
		keyStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("214")).
			Bold(true).
			Padding(0, 1),
	}
	p.setWidth(width)
	return p
}

func (p *approvalPrompt) setWidth(width int) {
	if width <= 0 {
		width = 80
	}
	p.width = width
	p.input.Width = width - 8
}

// update returns the response once the user decides.
func (p *approvalPrompt) update(msg tea.KeyMsg) (orchestrator.ApprovalResponse, bool, tea.Cmd) {
	resp := orchestrator.ApprovalResponse{StepID: p.req.StepID}

	if p.editing {
		switch msg.String() {
		case "enter":
			resp.Approved = true
			if edited := p.input.Value(); edited != p.req.Prompt {
				resp.Prompt = edited
			}
			return resp, true, nil
		case "esc":
			p.editing = false
			p.input.Blur()
			p.input.SetValue(p.req.Prompt)
			p.input.CursorEnd()
			return resp, false, nil
		}
		var cmd tea.Cmd
		p.input, cmd = p.input.Update(msg)
		return resp, false, cmd
	}

	switch msg.String() {
	case "y", "enter":
		resp.Approved = true
		return resp, true, nil
	case "n":
		resp.Reason = "rejected in TUI"
		return resp, true, nil
	case "e":
		p.editing = true
		return resp, false, p.input.Focus()
	}
	return resp, false, nil
}

func (p *approvalPrompt) view() string {
	var b strings.Builder

	b.WriteString(lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("214")).
		Render(fmt.Sprintf("Approve step %s (%s)?", p.req.StepID, p.req.Agent)))
	b.WriteString("\n\n")

	if p.editing {
		b.WriteString(p.input.View())
		b.WriteString("\n\n")
		b.WriteString("  ")
		b.WriteString(p.keyStyle.Render("enter"))
		b.WriteString("  Approve edited prompt   ")
		b.WriteString(p.keyStyle.Render("esc"))
		b.WriteString("  Discard edits\n")
	} else {
		b.WriteString(truncateLines(p.req.Prompt, 12))
		b.WriteString("\n\n")
		for _, opt := range []struct{ key, label string }{
			{"y", "Approve"},
			{"n", "Reject (skip step)"},
			{"e", "Edit prompt"},
		} {
			b.WriteString("  ")
			b.WriteString(p.keyStyle.Render(opt.key))
			b.WriteString("  ")
			b.WriteString(opt.label)
			b.WriteString("\n")
		}
	}

	return p.boxStyle.Width(p.width - 4).Render(b.String())
}

func truncateLines(s string, n int) string {
	lines := strings.Split(s, "\n")
	if len(lines) <= n {
		return s
	}
	return strings.Join(lines[:n], "\n") + fmt.Sprintf("\n… %d more lines", len(lines)-n)
}
