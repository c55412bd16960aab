package approval

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"cascadebridge/internal/chat"
	"cascadebridge/internal/chat/chattest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type allowOnly string

func (a allowOnly) Authorized(userID string) bool { return userID == string(a) }

type continuation struct {
	Panel     chat.MessageRef
	CascadeID string
	Text      string
}

type fakeContinuer struct {
	mu    sync.Mutex
	calls []continuation
}

func (f *fakeContinuer) Continue(ctx context.Context, in chat.Interaction, cascadeID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, continuation{in.Message, cascadeID, text})
	return nil
}

type fixture struct {
	msgr  *chattest.Messenger
	cont  *fakeContinuer
	gate  *Gate
	reply chat.MessageRef
	plan  string
}

func newFixture(t *testing.T) *fixture {
	f := &fixture{msgr: chattest.New(), cont: &fakeContinuer{}}
	f.gate = New(f.msgr, f.cont, allowOnly("owner"))

	f.plan = filepath.Join(t.TempDir(), "implementation_plan.md")
	require.NoError(t, os.WriteFile(f.plan, []byte("# Plan\n- step"), 0o644))

	ref, err := f.msgr.Send(context.Background(), chat.Target{ChannelID: "thread"}, chat.Text("Plans ready"))
	require.NoError(t, err)
	f.reply = ref
	return f
}

func (f *fixture) raise(t *testing.T, cascadeID string) chat.MessageRef {
	require.NoError(t, f.gate.Raise(context.Background(), f.reply, cascadeID, f.plan))
	sent := f.msgr.Sent()
	return sent[len(sent)-1].Ref
}

func press(panel chat.MessageRef, customID, user string) chat.Interaction {
	return chat.Interaction{CustomID: customID, UserID: user, ChannelID: panel.ChannelID, Message: panel}
}

func TestRaise_PostsPanelWithFileAndButtons(t *testing.T) {
	f := newFixture(t)
	ref := f.raise(t, "c1")

	sent := f.msgr.Sent()
	panel := sent[len(sent)-1]
	assert.Equal(t, f.reply.Reply(), panel.To)
	assert.Equal(t, PanelText, panel.Msg.Content)
	require.Len(t, panel.Msg.Files, 1)
	assert.Equal(t, "implementation_plan.md", panel.Msg.Files[0].Name)
	require.Len(t, panel.Msg.Rows, 1)
	assert.Equal(t, "review_yes_c1", panel.Msg.Rows[0][0].ID)
	assert.Equal(t, "review_no_c1", panel.Msg.Rows[0][1].ID)

	p, ok := f.gate.Panel(ref)
	require.True(t, ok)
	assert.Equal(t, AwaitingApproval, p.State)
	assert.Equal(t, "c1", p.CascadeID)
}

func TestRaise_MissingFile(t *testing.T) {
	f := newFixture(t)
	err := f.gate.Raise(context.Background(), f.reply, "c1", filepath.Join(t.TempDir(), "gone.md"))
	assert.Error(t, err)
	assert.Len(t, f.msgr.Sent(), 1, "no panel without a file")
}

func TestTwoReviewsAreIndependent(t *testing.T) {
	f := newFixture(t)
	a := f.raise(t, "c1")
	b := f.raise(t, "c1")
	require.NotEqual(t, a, b)

	resp := &chattest.Responder{}
	require.NoError(t, f.gate.Approve(context.Background(), press(a, "review_yes_c1", "owner"), resp))

	pa, _ := f.gate.Panel(a)
	pb, _ := f.gate.Panel(b)
	assert.Equal(t, Approved, pa.State)
	assert.Equal(t, AwaitingApproval, pb.State)
}

func TestApprove_UpdatesPanelAndContinues(t *testing.T) {
	f := newFixture(t)
	panel := f.raise(t, "c1")
	resp := &chattest.Responder{}

	handled, err := f.gate.HandleInteraction(context.Background(), press(panel, "review_yes_c1", "owner"), resp)
	require.NoError(t, err)
	assert.True(t, handled)

	require.Len(t, resp.Updates, 1)
	assert.Equal(t, ApprovedText, resp.Updates[0].Content)
	assert.Nil(t, resp.Updates[0].Rows, "buttons are removed")

	require.Len(t, f.cont.calls, 1)
	assert.Equal(t, continuation{Panel: panel, CascadeID: "c1", Text: FollowUp}, f.cont.calls[0])

	p, _ := f.gate.Panel(panel)
	assert.Equal(t, Approved, p.State)
}

func TestReject_AsksForCorrections(t *testing.T) {
	f := newFixture(t)
	panel := f.raise(t, "c1")
	resp := &chattest.Responder{}

	handled, err := f.gate.HandleInteraction(context.Background(), press(panel, "review_no_c1", "owner"), resp)
	require.NoError(t, err)
	assert.True(t, handled)

	require.Len(t, resp.Updates, 1)
	assert.Equal(t, RejectedText, resp.Updates[0].Content)
	sent := f.msgr.Sent()
	last := sent[len(sent)-1]
	assert.Equal(t, CorrectionAsk, last.Msg.Content)
	assert.Equal(t, panel.Reply(), last.To)
	assert.Empty(t, f.cont.calls)

	p, _ := f.gate.Panel(panel)
	assert.Equal(t, Rejected, p.State)
}

func TestUnauthorizedPressChangesNothing(t *testing.T) {
	f := newFixture(t)
	panel := f.raise(t, "c1")
	sentBefore := len(f.msgr.Sent())
	resp := &chattest.Responder{}

	handled, err := f.gate.HandleInteraction(context.Background(), press(panel, "review_yes_c1", "intruder"), resp)
	require.NoError(t, err)
	assert.True(t, handled)

	assert.Equal(t, []string{UnauthorizedMsg}, resp.Notices)
	assert.Empty(t, resp.Updates)
	assert.Empty(t, f.cont.calls)
	assert.Len(t, f.msgr.Sent(), sentBefore)

	p, _ := f.gate.Panel(panel)
	assert.Equal(t, AwaitingApproval, p.State)
}

func TestSecondPressIsIgnored(t *testing.T) {
	f := newFixture(t)
	panel := f.raise(t, "c1")
	ctx := context.Background()

	require.NoError(t, f.gate.Approve(ctx, press(panel, "review_yes_c1", "owner"), &chattest.Responder{}))

	again := &chattest.Responder{}
	require.NoError(t, f.gate.Reject(ctx, press(panel, "review_no_c1", "owner"), again))
	assert.Equal(t, 1, again.Acks)
	assert.Empty(t, again.Updates)

	p, _ := f.gate.Panel(panel)
	assert.Equal(t, Approved, p.State)
	assert.Len(t, f.cont.calls, 1)
}

func TestConcurrentApprovesRunOneFollowUp(t *testing.T) {
	f := newFixture(t)
	panel := f.raise(t, "c1")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = f.gate.Approve(context.Background(), press(panel, "review_yes_c1", "owner"), &chattest.Responder{})
		}()
	}
	wg.Wait()
	assert.Len(t, f.cont.calls, 1)
}

func TestPressOnUnknownPanelStillRoutes(t *testing.T) {
	f := newFixture(t)
	orphan := chat.MessageRef{ChannelID: "thread", MessageID: "from-before-restart"}

	require.NoError(t, f.gate.Approve(context.Background(), press(orphan, "review_yes_c7", "owner"), &chattest.Responder{}))
	require.Len(t, f.cont.calls, 1)
	assert.Equal(t, "c7", f.cont.calls[0].CascadeID)
}

func TestHandleInteraction_IgnoresOtherButtons(t *testing.T) {
	f := newFixture(t)
	handled, err := f.gate.HandleInteraction(context.Background(), chat.Interaction{CustomID: "model_X", UserID: "owner"}, &chattest.Responder{})
	require.NoError(t, err)
	assert.False(t, handled)
	assert.False(t, Handles("model_X"))
	assert.True(t, Handles("review_no_c"))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "awaiting_approval", AwaitingApproval.String())
	assert.True(t, Rejected.Decided())
	assert.False(t, Created.Decided())
}
