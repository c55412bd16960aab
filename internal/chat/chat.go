// Package chat is the contract between the bridge and a chat platform.
// The bridge only ever sends, edits, opens threads and answers button presses;
// adapters translate those into platform calls.
package chat

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// MessageRef identifies a message the bridge sent.
type MessageRef struct {
	ChannelID string
	MessageID string
}

func (r MessageRef) String() string {
	return r.ChannelID + "/" + r.MessageID
}

// Reply returns a target that answers this message in its channel.
func (r MessageRef) Reply() Target {
	return Target{ChannelID: r.ChannelID, ReplyTo: r.MessageID}
}

// Target is where a new message goes. ReplyTo is optional.
type Target struct {
	ChannelID string
	ReplyTo   string
}

// ButtonStyle picks a button's colour.
type ButtonStyle int

const (
	StyleSecondary ButtonStyle = iota
	StylePrimary
	StyleSuccess
	StyleDanger
)

// Button is a clickable component; ID comes back in the Interaction.
type Button struct {
	ID    string
	Label string
	Style ButtonStyle
}

// Field is one name/value pair of an embed.
type Field struct {
	Name  string
	Value string
}

// Embed is a rich card.
type Embed struct {
	Title       string
	Description string
	Color       int
	Fields      []Field
	Footer      string
}

// File is an attachment held in memory.
type File struct {
	Name string
	Data []byte
}

// AttachFile reads path into an attachment named after its base name.
func AttachFile(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("failed to read attachment: %w", err)
	}
	return File{Name: filepath.Base(path), Data: data}, nil
}

// Outgoing is a message body. Rows are rows of buttons; nil Rows on an
// update removes any existing buttons.
type Outgoing struct {
	Content string
	Embeds  []Embed
	Rows    [][]Button
	Files   []File
}

// Text is shorthand for a plain message.
func Text(content string) Outgoing {
	return Outgoing{Content: content}
}

// ButtonRows lays buttons out perRow to a row.
func ButtonRows(buttons []Button, perRow int) [][]Button {
	if perRow <= 0 {
		perRow = len(buttons)
	}
	var rows [][]Button
	for len(buttons) > 0 {
		n := perRow
		if n > len(buttons) {
			n = len(buttons)
		}
		rows = append(rows, buttons[:n:n])
		buttons = buttons[n:]
	}
	return rows
}

// Messenger is implemented by each platform adapter.
type Messenger interface {
	Send(ctx context.Context, to Target, msg Outgoing) (MessageRef, error)
	Edit(ctx context.Context, ref MessageRef, content string) error
	// StartThread opens a thread on ref and returns the thread's channel id.
	StartThread(ctx context.Context, ref MessageRef, name string, autoArchive time.Duration) (string, error)
}

// Attachment is a file on an incoming message.
type Attachment struct {
	URL         string
	Filename    string
	ContentType string
}

// Incoming is a user message as the bridge sees it.
type Incoming struct {
	ID          string
	ChannelID   string
	InThread    bool
	ParentID    string // channel a thread hangs off; empty outside threads
	AuthorID    string
	AuthorName  string
	AuthorBot   bool
	Content     string
	Attachments []Attachment
}

// Ref returns the message's reference.
func (m Incoming) Ref() MessageRef {
	return MessageRef{ChannelID: m.ChannelID, MessageID: m.ID}
}

// Interaction is a button press.
type Interaction struct {
	CustomID  string
	UserID    string
	ChannelID string
	InThread  bool
	ParentID  string
	Message   MessageRef // the message carrying the button
}

// Responder answers one interaction. Exactly one of its methods should be called.
type Responder interface {
	// Update replaces the pressed message's body.
	Update(ctx context.Context, msg Outgoing) error
	// Ephemeral replies privately to the presser.
	Ephemeral(ctx context.Context, content string) error
	// Ack acknowledges without visible change.
	Ack(ctx context.Context) error
}
