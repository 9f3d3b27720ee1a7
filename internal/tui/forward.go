package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ShayCichocki/quorum/internal/orchestrator"
)

// Sender is the part of *tea.Program the forwarders need.
type Sender interface {
	Send(msg tea.Msg)
}

var _ Sender = (*tea.Program)(nil)

// ForwardEvents sends every scheduler event to the program until the
// channel closes.
func ForwardEvents(p Sender, events <-chan orchestrator.Event) {
	for ev := range events {
		p.Send(EventMsg{Event: ev})
	}
}

// ForwardApprovals sends approval requests to the program until ctx ends.
func ForwardApprovals(ctx context.Context, p Sender, requests <-chan orchestrator.ApprovalRequest) {
	for {
		select {
		case <-ctx.Done():
			return
		case req, ok := <-requests:
			if !ok {
				return
			}
			p.Send(ApprovalMsg{Request: req})
		}
	}
}
