package discord

import (
	"io"
	"testing"

	"cascadebridge/internal/chat"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToIncoming(t *testing.T) {
	msg := &discordgo.Message{
		ID:        "42",
		ChannelID: "thread-1",
		Content:   "hello",
		Author:    &discordgo.User{ID: "u1", Username: "ada"},
		Attachments: []*discordgo.MessageAttachment{
			{URL: "https://cdn/x.png", Filename: "x.png", ContentType: "image/png"},
		},
	}

	in := toIncoming(msg, &discordgo.Channel{ID: "thread-1", Type: discordgo.ChannelTypeGuildPublicThread, ParentID: "general"})
	assert.True(t, in.InThread)
	assert.Equal(t, "general", in.ParentID)
	assert.Equal(t, "u1", in.AuthorID)
	assert.Equal(t, "ada", in.AuthorName)
	assert.Equal(t, []chat.Attachment{{URL: "https://cdn/x.png", Filename: "x.png", ContentType: "image/png"}}, in.Attachments)

	in = toIncoming(msg, &discordgo.Channel{ID: "general", Type: discordgo.ChannelTypeGuildText})
	assert.False(t, in.InThread)
	assert.Empty(t, in.ParentID)

	in = toIncoming(msg, nil)
	assert.False(t, in.InThread, "unknown channels are treated as top level")
}

func TestToMessageSend(t *testing.T) {
	send := toMessageSend(chat.Target{ChannelID: "c", ReplyTo: "m1"}, chat.Outgoing{
		Content: "panel",
		Embeds:  []chat.Embed{{Title: "T", Fields: []chat.Field{{Name: "n", Value: "v"}}, Footer: "f"}},
		Rows:    [][]chat.Button{{{ID: "yes", Label: "Yes", Style: chat.StyleSuccess}, {ID: "no", Label: "No", Style: chat.StyleDanger}}},
		Files:   []chat.File{{Name: "plan.md", Data: []byte("# Plan")}},
	})

	require.NotNil(t, send.Reference)
	assert.Equal(t, "m1", send.Reference.MessageID)
	assert.False(t, send.AllowedMentions.RepliedUser)

	require.Len(t, send.Embeds, 1)
	assert.Equal(t, "f", send.Embeds[0].Footer.Text)
	assert.Equal(t, "v", send.Embeds[0].Fields[0].Value)

	require.Len(t, send.Components, 1)
	row := send.Components[0].(discordgo.ActionsRow)
	require.Len(t, row.Components, 2)
	assert.Equal(t, discordgo.SuccessButton, row.Components[0].(discordgo.Button).Style)
	assert.Equal(t, "no", row.Components[1].(discordgo.Button).CustomID)
	assert.Equal(t, discordgo.DangerButton, row.Components[1].(discordgo.Button).Style)

	require.Len(t, send.Files, 1)
	data, err := io.ReadAll(send.Files[0].Reader)
	require.NoError(t, err)
	assert.Equal(t, "# Plan", string(data))
}

func TestToMessageSend_PlainText(t *testing.T) {
	send := toMessageSend(chat.Target{ChannelID: "c"}, chat.Text("hi"))
	assert.Nil(t, send.Reference)
	assert.Nil(t, send.Components)
	assert.Nil(t, send.Embeds)
	assert.Nil(t, send.Files)
}

func TestToInteraction(t *testing.T) {
	i := &discordgo.Interaction{
		Type:      discordgo.InteractionMessageComponent,
		ChannelID: "thread-1",
		Data:      discordgo.MessageComponentInteractionData{CustomID: "review_yes_c1"},
		Member:    &discordgo.Member{User: &discordgo.User{ID: "owner"}},
		Message:   &discordgo.Message{ID: "panel", ChannelID: "thread-1"},
	}
	in, ok := toInteraction(i, &discordgo.Channel{Type: discordgo.ChannelTypeGuildPrivateThread, ParentID: "general"})
	require.True(t, ok)
	assert.Equal(t, chat.Interaction{
		CustomID:  "review_yes_c1",
		UserID:    "owner",
		ChannelID: "thread-1",
		InThread:  true,
		ParentID:  "general",
		Message:   chat.MessageRef{ChannelID: "thread-1", MessageID: "panel"},
	}, in)

	i.Member = nil
	i.User = &discordgo.User{ID: "dm-user"}
	in, ok = toInteraction(i, nil)
	require.True(t, ok)
	assert.Equal(t, "dm-user", in.UserID)

	_, ok = toInteraction(&discordgo.Interaction{Type: discordgo.InteractionApplicationCommand}, nil)
	assert.False(t, ok)
}

func TestToComponents_EmptyClearsButtons(t *testing.T) {
	c := toComponents(nil)
	assert.NotNil(t, c)
	assert.Empty(t, c)
}
