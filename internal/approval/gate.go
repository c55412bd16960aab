// Package approval turns review requests into approve/reject panels.
//
// A panel carries its cascade id in the button ids, so a press can always be
// routed even if the bridge restarted after the panel was raised. Each panel
// is decided at most once: the first authorized press wins and later presses
// are acknowledged without effect.
package approval

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"cascadebridge/internal/chat"
	"cascadebridge/internal/logging"
)

const (
	// PrefixApprove and PrefixReject start the panel button ids; the cascade id follows.
	PrefixApprove = "review_yes_"
	PrefixReject  = "review_no_"
)

// Texts shown on and around panels.
const (
	PanelText       = "📄 **A plan or document is ready for review.** Read it, then approve (Yes) or request changes (No)."
	ApprovedText    = "✅ Approved. Continuing with the implementation."
	RejectedText    = "❌ Changes requested."
	CorrectionAsk   = "Reply in this thread with your corrections or additional requests. The context is kept and the plan will be updated."
	UnauthorizedMsg = "You are not authorized to use this."
)

// FollowUp is the synthetic turn sent into the cascade when a plan is approved.
const FollowUp = "<discord_reply>The user approved the plan (Yes). Start implementing it as planned.</discord_reply>\n\n" +
	"[System directive: the user selected Yes. Enter the execution phase and follow the plan.]"

// State of a panel.
type State int

const (
	Created State = iota
	AwaitingApproval
	Approved
	Rejected
)

func (s State) String() string {
	switch s {
	case Created:
		return "created"
	case AwaitingApproval:
		return "awaiting_approval"
	case Approved:
		return "approved"
	case Rejected:
		return "rejected"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Decided reports whether the state is final.
func (s State) Decided() bool {
	return s == Approved || s == Rejected
}

// Panel is one raised review.
type Panel struct {
	Ref       chat.MessageRef
	CascadeID string
	Path      string
	State     State
}

// Authorizer decides who may press buttons.
type Authorizer interface {
	Authorized(userID string) bool
}

// Continuer runs the follow-up turn after an approval. The new tracking
// message must reply to panel.
type Continuer interface {
	Continue(ctx context.Context, in chat.Interaction, cascadeID, text string) error
}

// Gate tracks panels and applies decisions.
type Gate struct {
	messenger chat.Messenger
	continuer Continuer
	auth      Authorizer

	mu     sync.Mutex
	panels map[chat.MessageRef]*Panel
}

// New returns a gate.
func New(messenger chat.Messenger, continuer Continuer, auth Authorizer) *Gate {
	return &Gate{
		messenger: messenger,
		continuer: continuer,
		auth:      auth,
		panels:    make(map[chat.MessageRef]*Panel),
	}
}

// Buttons returns the approve/reject row for cascadeID.
func Buttons(cascadeID string) []chat.Button {
	return []chat.Button{
		{ID: PrefixApprove + cascadeID, Label: "Yes (start implementation)", Style: chat.StyleSuccess},
		{ID: PrefixReject + cascadeID, Label: "No (request changes)", Style: chat.StyleDanger},
	}
}

// Raise posts a panel for path as a reply to replyTo.
func (g *Gate) Raise(ctx context.Context, replyTo chat.MessageRef, cascadeID, path string) error {
	file, err := chat.AttachFile(path)
	if err != nil {
		return err
	}
	p := &Panel{CascadeID: cascadeID, Path: path, State: Created}

	ref, err := g.messenger.Send(ctx, replyTo.Reply(), chat.Outgoing{
		Content: PanelText,
		Files:   []chat.File{file},
		Rows:    [][]chat.Button{Buttons(cascadeID)},
	})
	if err != nil {
		return fmt.Errorf("failed to send review panel: %w", err)
	}

	p.Ref = ref
	p.State = AwaitingApproval
	g.mu.Lock()
	g.panels[ref] = p
	g.mu.Unlock()

	logging.Approval("review panel %s raised for %s", ref, path)
	logging.AuditWithCascade(cascadeID).ReviewRaised(path)
	return nil
}

// Panel returns a copy of the panel posted as ref.
func (g *Gate) Panel(ref chat.MessageRef) (Panel, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	p, ok := g.panels[ref]
	if !ok {
		return Panel{}, false
	}
	return *p, true
}

// Handles reports whether a button id belongs to the gate.
func Handles(customID string) bool {
	return strings.HasPrefix(customID, PrefixApprove) || strings.HasPrefix(customID, PrefixReject)
}

// HandleInteraction routes a review button press. It returns false for
// buttons that are not review buttons.
func (g *Gate) HandleInteraction(ctx context.Context, in chat.Interaction, resp chat.Responder) (bool, error) {
	switch {
	case strings.HasPrefix(in.CustomID, PrefixApprove):
		return true, g.Approve(ctx, in, resp)
	case strings.HasPrefix(in.CustomID, PrefixReject):
		return true, g.Reject(ctx, in, resp)
	}
	return false, nil
}

// Approve decides the pressed panel as approved and runs the follow-up turn.
func (g *Gate) Approve(ctx context.Context, in chat.Interaction, resp chat.Responder) error {
	cascadeID, ok := g.decide(ctx, in, resp, PrefixApprove, Approved)
	if !ok {
		return nil
	}
	if err := resp.Update(ctx, chat.Text(ApprovedText)); err != nil {
		logging.ApprovalWarn("panel %s not updated: %v", in.Message, err)
	}
	return g.continuer.Continue(ctx, in, cascadeID, FollowUp)
}

// Reject decides the pressed panel as rejected and asks for corrections.
// The corrections arrive later as an ordinary thread message.
func (g *Gate) Reject(ctx context.Context, in chat.Interaction, resp chat.Responder) error {
	if _, ok := g.decide(ctx, in, resp, PrefixReject, Rejected); !ok {
		return nil
	}
	if err := resp.Update(ctx, chat.Text(RejectedText)); err != nil {
		logging.ApprovalWarn("panel %s not updated: %v", in.Message, err)
	}
	if _, err := g.messenger.Send(ctx, in.Message.Reply(), chat.Text(CorrectionAsk)); err != nil {
		return fmt.Errorf("failed to ask for corrections: %w", err)
	}
	return nil
}

// decide authorizes the press and moves the panel to the target state.
// ok is false when the press was answered and nothing else should happen.
func (g *Gate) decide(ctx context.Context, in chat.Interaction, resp chat.Responder, prefix string, to State) (string, bool) {
	if !g.auth.Authorized(in.UserID) {
		logging.ApprovalWarn("unauthorized review press by %s on %s", in.UserID, in.Message)
		logging.Audit().Unauthorized(in.UserID, in.CustomID)
		if err := resp.Ephemeral(ctx, UnauthorizedMsg); err != nil {
			logging.ApprovalWarn("unauthorized notice not sent: %v", err)
		}
		return "", false
	}

	cascadeID := strings.TrimPrefix(in.CustomID, prefix)
	if cascadeID == "" {
		logging.ApprovalWarn("review button %q carries no cascade id", in.CustomID)
		_ = resp.Ack(ctx)
		return "", false
	}

	g.mu.Lock()
	p, known := g.panels[in.Message]
	if !known {
		// Raised before a restart; the button still names its cascade.
		p = &Panel{Ref: in.Message, CascadeID: cascadeID, State: AwaitingApproval}
		g.panels[in.Message] = p
	}
	if p.State.Decided() {
		state := p.State
		g.mu.Unlock()
		logging.Approval("panel %s already %s, ignoring press", in.Message, state)
		_ = resp.Ack(ctx)
		return "", false
	}
	p.State = to
	g.mu.Unlock()

	logging.Approval("panel %s %s by %s", in.Message, to, in.UserID)
	logging.AuditWithCascade(cascadeID).ReviewDecision(in.UserID, to == Approved)
	return cascadeID, true
}
