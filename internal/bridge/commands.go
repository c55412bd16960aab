package bridge

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cascadebridge/internal/chat"
	"cascadebridge/internal/logging"
	"cascadebridge/internal/models"
	"cascadebridge/internal/settings"
)

const modelButtonPrefix = "model_"

const (
	colorModelPanel    = 0x2ecc71
	colorModelSelected = 0x5865F2
)

func isModelButton(customID string) bool {
	return strings.HasPrefix(customID, modelButtonPrefix)
}

// ModelPanel builds the model picker: one button per catalog entry, five per
// row, the current model highlighted.
func ModelPanel(current settings.Settings) chat.Outgoing {
	buttons := make([]chat.Button, 0, len(models.Catalog))
	for _, m := range models.Catalog {
		style := chat.StyleSecondary
		if m.ID == current.Model.ID {
			style = chat.StyleSuccess
		}
		buttons = append(buttons, chat.Button{ID: modelButtonPrefix + m.ID, Label: m.Display, Style: style})
	}
	return chat.Outgoing{
		Embeds: []chat.Embed{{
			Title:       "🧠 Model Configuration",
			Description: "Select the AI model for the Antigravity Bridge:",
			Color:       colorModelPanel,
		}},
		Rows: chat.ButtonRows(buttons, 5),
	}
}

func (b *Bridge) sendModelPanel(ctx context.Context, m chat.Incoming) error {
	_, err := b.messenger.Send(ctx, m.Ref().Reply(), ModelPanel(b.settings.Get(m.ChannelID, m.ParentID)))
	return err
}

func (b *Bridge) selectModel(ctx context.Context, in chat.Interaction, resp chat.Responder) error {
	if !b.Authorized(in.UserID) {
		logging.Audit().Unauthorized(in.UserID, in.CustomID)
		return resp.Ephemeral(ctx, "You are not authorized to use this.")
	}
	id := strings.TrimPrefix(in.CustomID, modelButtonPrefix)
	if id == "" {
		return resp.Ack(ctx)
	}
	model, ok := models.ByID(id)
	if !ok {
		model = models.Model{ID: id, Display: models.UnknownDisplay}
	}

	s := b.settings.Update(in.ChannelID, in.ParentID, func(s *settings.Settings) { s.Model = model })
	logging.Bridge("model switched to %s in %s", model.Display, in.ChannelID)

	return resp.Update(ctx, chat.Outgoing{
		Embeds: []chat.Embed{{
			Title:  "🤖 Model Selected",
			Color:  colorModelSelected,
			Fields: []chat.Field{{Name: "Current Model", Value: "**" + model.Display + "**"}},
			Footer: "Mode: " + string(s.Mode),
		}},
	})
}

const modeUsage = "Invalid mode. Use `/mode planning`, `/mode fast`, or `/mode auto`."

func (b *Bridge) setMode(ctx context.Context, m chat.Incoming) error {
	var arg string
	if fields := strings.Fields(m.Content); len(fields) > 1 {
		arg = strings.ToLower(fields[1])
	}

	var reply string
	switch arg {
	case "auto":
		s := b.settings.Update(m.ChannelID, m.ParentID, func(s *settings.Settings) { s.AutoApprove = !s.AutoApprove })
		state := "OFF"
		if s.AutoApprove {
			state = "ON"
		}
		reply = fmt.Sprintf("🤖 **Auto-Approve / GitHub Deployment Mode** is now **%s**.\n"+
			"*(When ON, the AI will be instructed to automatically run commands, create a GitHub repo, and push the final code.)*", state)
	default:
		mode, ok := models.ParseMode(arg)
		if !ok {
			reply = modeUsage
			break
		}
		model := models.ModelFor(mode)
		b.settings.Update(m.ChannelID, m.ParentID, func(s *settings.Settings) {
			s.Mode = mode
			s.Model = model
		})
		if mode == models.ModeFast {
			reply = "⚡ Switched to **Fast Mode** (High Speed: " + model.Display + ")."
		} else {
			reply = "🧠 Switched to **Planning Mode** (High Intelligence: " + model.Display + ")."
		}
	}
	_, err := b.messenger.Send(ctx, m.Ref().Reply(), chat.Text(reply))
	return err
}

func (b *Bridge) status(ctx context.Context, m chat.Incoming) error {
	s := b.settings.Get(m.ChannelID, m.ParentID)
	st := b.sessions.Stats()

	auto := "OFF"
	if s.AutoApprove {
		auto = "ON"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "📊 **Bridge status**\nModel: `%s`\nMode: `%s`\nAuto-approve: **%s**\n", s.Model.Display, s.Mode, auto)
	if m.InThread {
		if id, ok := b.sessions.Lookup(m.ChannelID); ok {
			fmt.Fprintf(&sb, "Cascade: `%s`\n", id)
		} else {
			sb.WriteString("Cascade: none (the next message starts one)\n")
		}
	}
	fmt.Fprintf(&sb, "Sessions: %d active, %d created, %d resumed, %d rebound", st.Active, st.Created, st.Resumed, st.Rebound)
	if b.usage != nil {
		total := b.usage.Stats().Total
		fmt.Fprintf(&sb, "\nTurns: %d (avg %s)", total.Turns, total.Average().Round(time.Second))
	}

	_, err := b.messenger.Send(ctx, m.Ref().Reply(), chat.Text(sb.String()))
	return err
}

func (b *Bridge) reset(ctx context.Context, m chat.Incoming) error {
	reply := "`/reset` only works inside a task thread."
	if m.InThread {
		b.settings.Reset(m.ChannelID)
		if b.sessions.Forget(m.ChannelID) {
			reply = "🔄 Session reset. The next message in this thread starts a fresh cascade."
		} else {
			reply = "This thread has no active cascade. Its settings now follow the channel."
		}
	}
	_, err := b.messenger.Send(ctx, m.Ref().Reply(), chat.Text(reply))
	return err
}
