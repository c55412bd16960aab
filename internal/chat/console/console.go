// Package console is a terminal chat.Messenger used by the ask command.
// Messages are printed as they are created; edits are tracked and printed
// as one-line progress notes, and the final text can be rendered as markdown.
package console

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"cascadebridge/internal/chat"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

var (
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#8a8f98"))
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#8BC34A"))
	embedStyle  = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#5865F2")).
		Padding(0, 1)

	buttonStyles = map[chat.ButtonStyle]lipgloss.Style{
		chat.StyleSecondary: lipgloss.NewStyle().Foreground(lipgloss.Color("#d6dae0")),
		chat.StylePrimary:   lipgloss.NewStyle().Foreground(lipgloss.Color("#5865F2")).Bold(true),
		chat.StyleSuccess:   lipgloss.NewStyle().Foreground(lipgloss.Color("#2ecc71")).Bold(true),
		chat.StyleDanger:    lipgloss.NewStyle().Foreground(lipgloss.Color("#e74c3c")).Bold(true),
	}
)

// Messenger prints to a writer.
type Messenger struct {
	out       io.Writer
	showEdits bool

	mu       sync.Mutex
	next     int
	order    []chat.MessageRef
	contents map[chat.MessageRef]string
}

// New returns a console messenger. With showEdits every edit is printed in
// full instead of as a progress note.
func New(out io.Writer, showEdits bool) *Messenger {
	return &Messenger{out: out, showEdits: showEdits, contents: make(map[chat.MessageRef]string)}
}

var _ chat.Messenger = (*Messenger)(nil)

func (m *Messenger) Send(ctx context.Context, to chat.Target, msg chat.Outgoing) (chat.MessageRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	ref := chat.MessageRef{ChannelID: to.ChannelID, MessageID: fmt.Sprintf("%d", m.next)}
	m.order = append(m.order, ref)
	m.contents[ref] = msg.Content

	header := fmt.Sprintf("#%s · %s", to.ChannelID, ref.MessageID)
	if to.ReplyTo != "" {
		header += " ↳ " + to.ReplyTo
	}
	fmt.Fprintln(m.out, headerStyle.Render(header))
	if msg.Content != "" {
		fmt.Fprintln(m.out, msg.Content)
	}
	for _, e := range msg.Embeds {
		fmt.Fprintln(m.out, embedStyle.Render(renderEmbed(e)))
	}
	for _, f := range msg.Files {
		fmt.Fprintln(m.out, mutedStyle.Render(fmt.Sprintf("📎 %s (%d bytes)", f.Name, len(f.Data))))
	}
	for _, row := range msg.Rows {
		fmt.Fprintln(m.out, renderRow(row))
	}
	return ref, nil
}

func (m *Messenger) Edit(ctx context.Context, ref chat.MessageRef, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.contents[ref]; !ok {
		return fmt.Errorf("unknown message %s", ref)
	}
	m.contents[ref] = content
	if m.showEdits {
		fmt.Fprintln(m.out, headerStyle.Render("~ "+ref.MessageID))
		fmt.Fprintln(m.out, content)
		return nil
	}
	fmt.Fprintln(m.out, mutedStyle.Render(fmt.Sprintf("~ %s updated (%d chars)", ref.MessageID, len([]rune(content)))))
	return nil
}

func (m *Messenger) StartThread(ctx context.Context, ref chat.MessageRef, name string, autoArchive time.Duration) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	id := fmt.Sprintf("thread-%d", m.next)
	fmt.Fprintln(m.out, headerStyle.Render(fmt.Sprintf("🧵 %s (%s)", name, id)))
	return id, nil
}

// Transcript returns the current text of every message in channelID, in send order.
func (m *Messenger) Transcript(channelID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, ref := range m.order {
		if ref.ChannelID == channelID {
			out = append(out, m.contents[ref])
		}
	}
	return out
}

// RenderMarkdown writes text through glamour, falling back to plain text.
func RenderMarkdown(w io.Writer, text string) error {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		_, werr := fmt.Fprintln(w, text)
		return werr
	}
	out, err := r.Render(text)
	if err != nil {
		_, werr := fmt.Fprintln(w, text)
		return werr
	}
	_, err = io.WriteString(w, out)
	return err
}

func renderEmbed(e chat.Embed) string {
	var b strings.Builder
	if e.Title != "" {
		b.WriteString(lipgloss.NewStyle().Bold(true).Render(e.Title))
	}
	if e.Description != "" {
		b.WriteString("\n" + e.Description)
	}
	for _, f := range e.Fields {
		b.WriteString("\n" + mutedStyle.Render(f.Name+": ") + f.Value)
	}
	if e.Footer != "" {
		b.WriteString("\n" + mutedStyle.Render(e.Footer))
	}
	return strings.TrimPrefix(b.String(), "\n")
}

func renderRow(row []chat.Button) string {
	parts := make([]string, 0, len(row))
	for _, btn := range row {
		style, ok := buttonStyles[btn.Style]
		if !ok {
			style = buttonStyles[chat.StyleSecondary]
		}
		parts = append(parts, style.Render("["+btn.Label+"]")+mutedStyle.Render(" "+btn.ID))
	}
	return strings.Join(parts, "  ")
}

// Responder answers interactions on the console.
type Responder struct {
	Out io.Writer
}

var _ chat.Responder = Responder{}

func (r Responder) Update(ctx context.Context, msg chat.Outgoing) error {
	fmt.Fprintln(r.Out, headerStyle.Render("↻ updated"))
	if msg.Content != "" {
		fmt.Fprintln(r.Out, msg.Content)
	}
	for _, e := range msg.Embeds {
		fmt.Fprintln(r.Out, embedStyle.Render(renderEmbed(e)))
	}
	return nil
}

func (r Responder) Ephemeral(ctx context.Context, content string) error {
	_, err := fmt.Fprintln(r.Out, mutedStyle.Render("(only you) "+content))
	return err
}

func (r Responder) Ack(ctx context.Context) error {
	return nil
}
