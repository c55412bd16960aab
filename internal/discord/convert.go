package discord

import (
	"bytes"
	"net/http"

	"cascadebridge/internal/chat"

	"github.com/bwmarrin/discordgo"
)

var buttonStyles = map[chat.ButtonStyle]discordgo.ButtonStyle{
	chat.StyleSecondary: discordgo.SecondaryButton,
	chat.StylePrimary:   discordgo.PrimaryButton,
	chat.StyleSuccess:   discordgo.SuccessButton,
	chat.StyleDanger:    discordgo.DangerButton,
}

func toComponents(rows [][]chat.Button) []discordgo.MessageComponent {
	out := make([]discordgo.MessageComponent, 0, len(rows))
	for _, row := range rows {
		buttons := make([]discordgo.MessageComponent, 0, len(row))
		for _, b := range row {
			style, ok := buttonStyles[b.Style]
			if !ok {
				style = discordgo.SecondaryButton
			}
			buttons = append(buttons, discordgo.Button{CustomID: b.ID, Label: b.Label, Style: style})
		}
		out = append(out, discordgo.ActionsRow{Components: buttons})
	}
	return out
}

func toEmbeds(embeds []chat.Embed) []*discordgo.MessageEmbed {
	if len(embeds) == 0 {
		return nil
	}
	out := make([]*discordgo.MessageEmbed, 0, len(embeds))
	for _, e := range embeds {
		me := &discordgo.MessageEmbed{Title: e.Title, Description: e.Description, Color: e.Color}
		for _, f := range e.Fields {
			me.Fields = append(me.Fields, &discordgo.MessageEmbedField{Name: f.Name, Value: f.Value})
		}
		if e.Footer != "" {
			me.Footer = &discordgo.MessageEmbedFooter{Text: e.Footer}
		}
		out = append(out, me)
	}
	return out
}

func toFiles(files []chat.File) []*discordgo.File {
	if len(files) == 0 {
		return nil
	}
	out := make([]*discordgo.File, 0, len(files))
	for _, f := range files {
		out = append(out, &discordgo.File{
			Name:        f.Name,
			ContentType: http.DetectContentType(f.Data),
			Reader:      bytes.NewReader(f.Data),
		})
	}
	return out
}

// toMessageSend maps an outgoing message. Replies never ping the author.
func toMessageSend(to chat.Target, msg chat.Outgoing) *discordgo.MessageSend {
	send := &discordgo.MessageSend{
		Content: msg.Content,
		Embeds:  toEmbeds(msg.Embeds),
		Files:   toFiles(msg.Files),
	}
	if len(msg.Rows) > 0 {
		send.Components = toComponents(msg.Rows)
	}
	if to.ReplyTo != "" {
		send.Reference = &discordgo.MessageReference{MessageID: to.ReplyTo, ChannelID: to.ChannelID}
		send.AllowedMentions = &discordgo.MessageAllowedMentions{RepliedUser: false}
	}
	return send
}

// toIncoming maps a gateway message. ch is the channel it was posted in and
// may be nil when the lookup failed.
func toIncoming(m *discordgo.Message, ch *discordgo.Channel) chat.Incoming {
	in := chat.Incoming{
		ID:        m.ID,
		ChannelID: m.ChannelID,
		Content:   m.Content,
	}
	if m.Author != nil {
		in.AuthorID = m.Author.ID
		in.AuthorName = m.Author.Username
		in.AuthorBot = m.Author.Bot
	}
	if ch != nil && ch.IsThread() {
		in.InThread = true
		in.ParentID = ch.ParentID
	}
	for _, a := range m.Attachments {
		in.Attachments = append(in.Attachments, chat.Attachment{URL: a.URL, Filename: a.Filename, ContentType: a.ContentType})
	}
	return in
}

// toInteraction maps a component press. Guild presses carry the user on the
// member, DM presses on the interaction itself.
func toInteraction(i *discordgo.Interaction, ch *discordgo.Channel) (chat.Interaction, bool) {
	if i.Type != discordgo.InteractionMessageComponent {
		return chat.Interaction{}, false
	}
	out := chat.Interaction{
		CustomID:  i.MessageComponentData().CustomID,
		ChannelID: i.ChannelID,
	}
	switch {
	case i.Member != nil && i.Member.User != nil:
		out.UserID = i.Member.User.ID
	case i.User != nil:
		out.UserID = i.User.ID
	}
	if i.Message != nil {
		out.Message = chat.MessageRef{ChannelID: i.Message.ChannelID, MessageID: i.Message.ID}
		if out.Message.ChannelID == "" {
			out.Message.ChannelID = i.ChannelID
		}
	}
	if ch != nil && ch.IsThread() {
		out.InThread = true
		out.ParentID = ch.ParentID
	}
	return out, true
}
