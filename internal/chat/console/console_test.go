package console

import (
	"bytes"
	"context"
	"testing"

	"cascadebridge/internal/chat"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessenger_SendEditTranscript(t *testing.T) {
	var out bytes.Buffer
	m := New(&out, false)
	ctx := context.Background()

	ref, err := m.Send(ctx, chat.Target{ChannelID: "cli"}, chat.Text("🤔 Thinking..."))
	require.NoError(t, err)
	require.NoError(t, m.Edit(ctx, ref, "final answer"))

	assert.Equal(t, []string{"final answer"}, m.Transcript("cli"))
	assert.Contains(t, out.String(), "🤔 Thinking...")
	assert.Contains(t, out.String(), "updated (12 chars)")
	assert.NotContains(t, out.String(), "final answer", "edits print a note, not the body")
}

func TestMessenger_ShowEdits(t *testing.T) {
	var out bytes.Buffer
	m := New(&out, true)
	ctx := context.Background()

	ref, err := m.Send(ctx, chat.Target{ChannelID: "cli"}, chat.Text("..."))
	require.NoError(t, err)
	require.NoError(t, m.Edit(ctx, ref, "streamed text"))
	assert.Contains(t, out.String(), "streamed text")
}

func TestMessenger_EditUnknown(t *testing.T) {
	m := New(&bytes.Buffer{}, false)
	err := m.Edit(context.Background(), chat.MessageRef{ChannelID: "x", MessageID: "9"}, "y")
	assert.Error(t, err)
}

func TestMessenger_RendersPanels(t *testing.T) {
	var out bytes.Buffer
	m := New(&out, false)

	_, err := m.Send(context.Background(), chat.Target{ChannelID: "cli", ReplyTo: "1"}, chat.Outgoing{
		Content: "review",
		Embeds:  []chat.Embed{{Title: "Plan", Fields: []chat.Field{{Name: "Model", Value: "X"}}}},
		Files:   []chat.File{{Name: "plan.md", Data: []byte("abc")}},
		Rows:    [][]chat.Button{{{ID: "review_yes_c", Label: "Yes", Style: chat.StyleSuccess}}},
	})
	require.NoError(t, err)

	s := out.String()
	assert.Contains(t, s, "plan.md (3 bytes)")
	assert.Contains(t, s, "[Yes]")
	assert.Contains(t, s, "review_yes_c")
	assert.Contains(t, s, "Plan")
}

func TestThreadsGetDistinctIDs(t *testing.T) {
	m := New(&bytes.Buffer{}, false)
	a, err := m.StartThread(context.Background(), chat.MessageRef{}, "Task: a", 0)
	require.NoError(t, err)
	b, err := m.StartThread(context.Background(), chat.MessageRef{}, "Task: b", 0)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestRenderMarkdown(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, RenderMarkdown(&out, "# Title\n\nbody"))
	assert.Contains(t, out.String(), "Title")
	assert.Contains(t, out.String(), "body")
}
