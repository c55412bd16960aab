package bridge

import (
	"context"
	"errors"
	"strings"
	"time"

	"cascadebridge/internal/cascade"
	"cascadebridge/internal/chat"
	"cascadebridge/internal/logging"
	"cascadebridge/internal/reconcile"
	"cascadebridge/internal/session"
	"cascadebridge/internal/settings"
	"cascadebridge/internal/usage"
)

const threadStartingText = "🧵 Starting isolated task environment in thread..."

func thinkingText(s settings.Settings) string {
	return "🤔 Thinking... (" + s.Label() + ")"
}

// HandleMessage handles one incoming chat message.
func (b *Bridge) HandleMessage(ctx context.Context, m chat.Incoming) error {
	if m.AuthorBot {
		return nil
	}
	if !b.Authorized(m.AuthorID) {
		logging.BridgeWarn("blocked unauthorized request from %s (%s)", m.AuthorName, m.AuthorID)
		logging.Audit().Unauthorized(m.AuthorID, m.ChannelID)
		return nil
	}

	content := m.Content
	switch {
	case strings.HasPrefix(content, "/models") || content == "!models":
		return b.sendModelPanel(ctx, m)
	case content == "/mode" || strings.HasPrefix(content, "/mode "):
		return b.setMode(ctx, m)
	case content == "/status":
		return b.status(ctx, m)
	case content == "/reset":
		return b.reset(ctx, m)
	}

	if strings.TrimSpace(content) == "" && !hasImages(m) {
		return nil
	}
	var err error
	b.track(func() { err = b.handleUserMessage(ctx, m) })
	return err
}

// turnPlan is everything runTurn needs.
type turnPlan struct {
	cascadeID string
	handle    chat.MessageRef
	settings  settings.Settings
	items     []cascade.Item
	baseline  int
}

func (b *Bridge) handleUserMessage(ctx context.Context, m chat.Incoming) error {
	snap := b.settings.Get(m.ChannelID, m.ParentID)
	opts := b.options()
	items := b.buildItems(ctx, m, snap, opts.GitHub)

	plan := turnPlan{settings: snap, items: items}

	if m.InThread {
		id, res, err := b.sessions.ResolveForThread(ctx, m.ChannelID)
		if err != nil {
			b.replyFailure(ctx, m.Ref(), err)
			return err
		}
		plan.cascadeID = id
		if res == session.Resumed {
			if plan.baseline, err = b.reconciler.Baseline(ctx, id); err != nil {
				logging.BridgeWarn("baseline for %s unavailable, scanning all steps: %v", id, err)
			}
		} else {
			logging.Bridge("thread %s continues on new cascade %s", m.ChannelID, id)
		}
		plan.handle, err = b.messenger.Send(ctx, m.Ref().Reply(), chat.Text(thinkingText(snap)))
		if err != nil {
			return err
		}
		return b.runTurn(ctx, plan)
	}

	id, err := b.sessions.StartSession(ctx)
	if err != nil {
		b.replyFailure(ctx, m.Ref(), err)
		return err
	}
	plan.cascadeID = id

	if _, err := b.messenger.Send(ctx, m.Ref().Reply(), chat.Text(threadStartingText)); err != nil {
		return err
	}
	threadID, err := b.messenger.StartThread(ctx, m.Ref(), ThreadName(m.Content), opts.ThreadAutoArchive)
	if err != nil {
		b.replyFailure(ctx, m.Ref(), err)
		return err
	}
	if existing, ok := b.sessions.Bind(threadID, id); !ok {
		// A message in the new thread won the race and already has a cascade.
		id = existing
		plan.cascadeID = existing
		if plan.baseline, err = b.reconciler.Baseline(ctx, id); err != nil {
			logging.BridgeWarn("baseline for %s unavailable, scanning all steps: %v", id, err)
		}
	}

	plan.handle, err = b.messenger.Send(ctx, chat.Target{ChannelID: threadID}, chat.Text(thinkingText(snap)))
	if err != nil {
		return err
	}
	logging.Bridge("started cascade %s in thread %s", id, threadID)
	return b.runTurn(ctx, plan)
}

// runTurn sends the turn and reconciles the reply. Failures end up on the
// tracking message.
func (b *Bridge) runTurn(ctx context.Context, plan turnPlan) error {
	audit := logging.AuditWithCascade(plan.cascadeID)
	audit.TurnStart(plan.handle.ChannelID)
	start := time.Now()

	res := &reconcile.Result{}
	err := b.sessions.SendTurn(ctx, plan.cascadeID, plan.items, plan.settings.Model.ID)
	if err != nil {
		logging.BridgeError("cascade %s failed: %v", plan.cascadeID, err)
		if editErr := b.messenger.Edit(ctx, plan.handle, reconcile.FailureNotice(err)); editErr != nil {
			logging.BridgeWarn("failure notice not shown: %v", editErr)
		}
	} else {
		res, err = b.reconciler.Run(ctx, reconcile.Turn{
			CascadeID: plan.cascadeID,
			Handle:    plan.handle,
			Settings:  plan.settings,
			Baseline:  plan.baseline,
		})
	}

	elapsed := time.Since(start)
	audit.TurnEnd(plan.handle.ChannelID, elapsed.Milliseconds(), err)
	b.usage.Track(usage.Record{
		Model:     plan.settings.Model.Display,
		CascadeID: plan.cascadeID,
		Outcome:   outcomeOf(err),
		Polls:     res.Polls,
		Flushes:   res.Flushes,
		Duration:  elapsed,
	})
	return err
}

func outcomeOf(err error) usage.Outcome {
	var timeout *reconcile.TimeoutError
	switch {
	case err == nil:
		return usage.OutcomeOK
	case errors.As(err, &timeout):
		return usage.OutcomeTimedOut
	case errors.Is(err, context.Canceled):
		return usage.OutcomeCanceled
	}
	return usage.OutcomeFailed
}

// Continue implements approval.Continuer: the follow-up turn replies under the
// decided panel.
func (b *Bridge) Continue(ctx context.Context, in chat.Interaction, cascadeID, text string) error {
	var err error
	b.track(func() { err = b.continueTurn(ctx, in, cascadeID, text) })
	return err
}

func (b *Bridge) continueTurn(ctx context.Context, in chat.Interaction, cascadeID, text string) error {
	snap := b.settings.Get(in.ChannelID, in.ParentID)

	if in.InThread {
		b.sessions.Bind(in.ChannelID, cascadeID)
	}

	baseline, err := b.reconciler.Baseline(ctx, cascadeID)
	if err != nil {
		logging.BridgeWarn("baseline for %s unavailable, scanning all steps: %v", cascadeID, err)
	}
	handle, err := b.messenger.Send(ctx, in.Message.Reply(), chat.Text(reconcile.Placeholder(snap)))
	if err != nil {
		return err
	}
	return b.runTurn(ctx, turnPlan{
		cascadeID: cascadeID,
		handle:    handle,
		settings:  snap,
		items:     []cascade.Item{cascade.TextItem(text)},
		baseline:  baseline,
	})
}

func (b *Bridge) replyFailure(ctx context.Context, to chat.MessageRef, err error) {
	if _, sendErr := b.messenger.Send(ctx, to.Reply(), chat.Text(reconcile.FailureNotice(err))); sendErr != nil {
		logging.BridgeWarn("failure notice not sent: %v", sendErr)
	}
}
