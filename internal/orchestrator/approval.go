package orchestrator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"sync"
	"time"

	"github.com/ShayCichocki/quorum/pkg/models"
)

// ApprovalRequest asks a human whether a step may run.
// It is sent from the scheduler to the CLI or TUI.
type ApprovalRequest struct {
	PlanID string
	StepID string
	Index  int
	Agent  models.AgentID
	// Prompt is the resolved prompt the step would send.
	Prompt string
}

// ApprovalResponse is the human's decision on an approval request.
type ApprovalResponse struct {
	// StepID is the ID of the step being approved or rejected.
	StepID string
	// Approved indicates whether the step may run.
	Approved bool
	// Prompt, when non-empty, replaces the step's prompt.
	Prompt string
	// Reason provides context for rejections.
	Reason string
}

// Approval records a decision bound to the exact prompt that was shown.
type Approval struct {
	StepID string
	// PromptHash is the SHA256 hash of the prompt at approval time.
	PromptHash string
	Approved   bool
	Edited     bool
	DecidedAt  time.Time

	seq uint64
}

// ApprovalGate is an Interceptor that asks a human about every step.
// Requests are published on RequestCh and answered with SubmitResponse.
type ApprovalGate struct {
	// approvals maps step IDs to the recorded decision.
	approvals map[string]*Approval
	// pendingRequests maps step IDs to channels waiting for responses.
	pendingRequests map[string]chan ApprovalResponse
	// requestCh is used to send approval requests to the UI.
	requestCh chan ApprovalRequest
	// decided counts recorded decisions; it orders Approvals.
	decided uint64
	mu      sync.RWMutex
}

// NewApprovalGate creates a new ApprovalGate.
func NewApprovalGate() *ApprovalGate {
	return &ApprovalGate{
		approvals:       make(map[string]*Approval),
		pendingRequests: make(map[string]chan ApprovalResponse),
		requestCh:       make(chan ApprovalRequest, 10),
	}
}

// RequestCh returns a read-only channel for receiving approval requests.
func (g *ApprovalGate) RequestCh() <-chan ApprovalRequest {
	return g.requestCh
}

// WaitForApproval blocks until the human approves or rejects the step.
// Returns the response or an error if the context is cancelled.
func (g *ApprovalGate) WaitForApproval(ctx context.Context, req ApprovalRequest) (ApprovalResponse, error) {
	responseCh := make(chan ApprovalResponse, 1)

	g.mu.Lock()
	g.pendingRequests[req.StepID] = responseCh
	g.mu.Unlock()

	defer func() {
		g.mu.Lock()
		delete(g.pendingRequests, req.StepID)
		g.mu.Unlock()
	}()

	select {
	case g.requestCh <- req:
	case <-ctx.Done():
		return ApprovalResponse{}, ctx.Err()
	}

	select {
	case resp := <-responseCh:
		g.record(req, resp)
		return resp, nil
	case <-ctx.Done():
		return ApprovalResponse{}, ctx.Err()
	}
}

// SubmitResponse submits a human's response for a pending request.
func (g *ApprovalGate) SubmitResponse(resp ApprovalResponse) {
	g.mu.RLock()
	ch, exists := g.pendingRequests[resp.StepID]
	g.mu.RUnlock()

	if exists {
		select {
		case ch <- resp:
		default:
			// Response already submitted
		}
	}
}

// Intercept turns the human's response into a Decision.
func (g *ApprovalGate) Intercept(ctx context.Context, sc StepContext) (Decision, error) {
	resp, err := g.WaitForApproval(ctx, ApprovalRequest{
		PlanID: sc.PlanID,
		StepID: sc.Step.ID,
		Index:  sc.Index,
		Agent:  sc.Step.Agent,
		Prompt: sc.Prompt,
	})
	if err != nil {
		return Decision{}, err
	}
	switch {
	case !resp.Approved:
		reason := resp.Reason
		if reason == "" {
			reason = "declined by user"
		}
		return Decision{Verdict: Veto, Reason: reason}, nil
	case resp.Prompt != "" && resp.Prompt != sc.Prompt:
		return Decision{Verdict: Edit, Prompt: resp.Prompt}, nil
	default:
		return Decision{Verdict: Allow}, nil
	}
}

func (g *ApprovalGate) record(req ApprovalRequest, resp ApprovalResponse) {
	a := &Approval{
		StepID:     req.StepID,
		PromptHash: PromptHash(req.Prompt),
		Approved:   resp.Approved,
		Edited:     resp.Approved && resp.Prompt != "" && resp.Prompt != req.Prompt,
		DecidedAt:  time.Now(),
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.decided++
	a.seq = g.decided
	g.approvals[req.StepID] = a
}

// Approvals returns the recorded decisions in the order they were made.
func (g *ApprovalGate) Approvals() []Approval {
	g.mu.RLock()
	out := make([]Approval, 0, len(g.approvals))
	for _, a := range g.approvals {
		out = append(out, *a)
	}
	g.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}

// PromptHash computes the SHA256 hash of a prompt.
func PromptHash(prompt string) string {
	hash := sha256.Sum256([]byte(prompt))
	return hex.EncodeToString(hash[:])
}

var _ Interceptor = (*ApprovalGate)(nil)
