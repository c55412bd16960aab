// Package discord binds the chat contract to a Discord bot session.
//
// Gateway events are mapped to chat.Incoming and chat.Interaction and handed
// to a Handler. Outgoing calls map chat types onto the REST API. Each event
// runs on its own goroutine, so a long turn never blocks the gateway.
package discord

import (
	"context"
	"fmt"
	"time"

	"cascadebridge/internal/chat"
	"cascadebridge/internal/logging"

	"github.com/bwmarrin/discordgo"
)

const intents = discordgo.IntentGuilds |
	discordgo.IntentGuildMessages |
	discordgo.IntentDirectMessages |
	discordgo.IntentMessageContent

// threadReason shows up in the guild's audit log.
const threadReason = "Antigravity task"

// Handler receives mapped events. *bridge.Bridge satisfies it.
type Handler interface {
	HandleMessage(ctx context.Context, m chat.Incoming) error
	HandleInteraction(ctx context.Context, in chat.Interaction, resp chat.Responder) error
}

// Adapter is a chat.Messenger backed by a discordgo session.
type Adapter struct {
	session *discordgo.Session
}

var _ chat.Messenger = (*Adapter)(nil)

// New creates an adapter for a bot token. Nothing connects until Run.
func New(token string) (*Adapter, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	s.Identify.Intents = intents
	return &Adapter{session: s}, nil
}

// Run connects, dispatches events to h until ctx is done, then disconnects.
func (a *Adapter) Run(ctx context.Context, h Handler) error {
	removeReady := a.session.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		logging.Discord("logged in as %s#%s", r.User.Username, r.User.Discriminator)
	})
	removeMessage := a.session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		a.onMessage(ctx, h, m.Message)
	})
	removeInteraction := a.session.AddHandler(func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		a.onInteraction(ctx, h, i.Interaction)
	})
	defer func() {
		removeReady()
		removeMessage()
		removeInteraction()
	}()

	if err := a.session.Open(); err != nil {
		return fmt.Errorf("failed to open discord gateway: %w", err)
	}
	<-ctx.Done()
	logging.Discord("closing gateway")
	if err := a.session.Close(); err != nil {
		return fmt.Errorf("failed to close discord gateway: %w", err)
	}
	return nil
}

func (a *Adapter) onMessage(ctx context.Context, h Handler, m *discordgo.Message) {
	if m.Author == nil || (a.session.State.User != nil && m.Author.ID == a.session.State.User.ID) {
		return
	}
	in := toIncoming(m, a.channel(m.ChannelID))
	if err := h.HandleMessage(ctx, in); err != nil {
		logging.DiscordWarn("message %s: %v", m.ID, err)
	}
}

func (a *Adapter) onInteraction(ctx context.Context, h Handler, i *discordgo.Interaction) {
	in, ok := toInteraction(i, a.channel(i.ChannelID))
	if !ok {
		return
	}
	if err := h.HandleInteraction(ctx, in, &responder{session: a.session, interaction: i}); err != nil {
		logging.DiscordWarn("interaction %s: %v", in.CustomID, err)
	}
}

// channel prefers the state cache and falls back to the REST API.
func (a *Adapter) channel(id string) *discordgo.Channel {
	if ch, err := a.session.State.Channel(id); err == nil {
		return ch
	}
	ch, err := a.session.Channel(id)
	if err != nil {
		logging.DiscordWarn("channel %s lookup failed: %v", id, err)
		return nil
	}
	return ch
}

func (a *Adapter) Send(ctx context.Context, to chat.Target, msg chat.Outgoing) (chat.MessageRef, error) {
	m, err := a.session.ChannelMessageSendComplex(to.ChannelID, toMessageSend(to, msg), discordgo.WithContext(ctx))
	if err != nil {
		return chat.MessageRef{}, fmt.Errorf("send to %s: %w", to.ChannelID, err)
	}
	return chat.MessageRef{ChannelID: m.ChannelID, MessageID: m.ID}, nil
}

func (a *Adapter) Edit(ctx context.Context, ref chat.MessageRef, content string) error {
	if _, err := a.session.ChannelMessageEdit(ref.ChannelID, ref.MessageID, content, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("edit %s: %w", ref, err)
	}
	return nil
}

func (a *Adapter) StartThread(ctx context.Context, ref chat.MessageRef, name string, autoArchive time.Duration) (string, error) {
	ch, err := a.session.MessageThreadStartComplex(ref.ChannelID, ref.MessageID, &discordgo.ThreadStart{
		Name:                name,
		AutoArchiveDuration: int(autoArchive / time.Minute),
	}, discordgo.WithContext(ctx), discordgo.WithAuditLogReason(threadReason))
	if err != nil {
		return "", fmt.Errorf("start thread on %s: %w", ref, err)
	}
	logging.Discord("opened thread %s (%q)", ch.ID, name)
	return ch.ID, nil
}

// responder answers one interaction. Discord accepts exactly one initial
// response, so each method is terminal.
type responder struct {
	session     *discordgo.Session
	interaction *discordgo.Interaction
}

func (r *responder) respond(ctx context.Context, resp *discordgo.InteractionResponse) error {
	return r.session.InteractionRespond(r.interaction, resp, discordgo.WithContext(ctx))
}

// Update replaces the pressed message. Rows left empty remove the buttons.
func (r *responder) Update(ctx context.Context, msg chat.Outgoing) error {
	components := toComponents(msg.Rows)
	return r.respond(ctx, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: &discordgo.InteractionResponseData{
			Content:    msg.Content,
			Embeds:     toEmbeds(msg.Embeds),
			Components: components,
		},
	})
}

func (r *responder) Ephemeral(ctx context.Context, content string) error {
	return r.respond(ctx, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Content: content, Flags: discordgo.MessageFlagsEphemeral},
	})
}

func (r *responder) Ack(ctx context.Context) error {
	return r.respond(ctx, &discordgo.InteractionResponse{Type: discordgo.InteractionResponseDeferredMessageUpdate})
}
