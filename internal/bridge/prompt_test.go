package bridge

import (
	"strings"
	"testing"

	"cascadebridge/internal/models"
	"cascadebridge/internal/settings"

	"github.com/stretchr/testify/assert"
)

func TestBuildPrompt(t *testing.T) {
	base := settings.Settings{Model: models.Default(), Mode: models.ModePlanning}

	p := BuildPrompt("  fix the login bug \n", base, GitHub{})
	assert.True(t, strings.HasPrefix(p, "fix the login bug\n\n[System directive:"))
	assert.Contains(t, p, "<discord_reply> and </discord_reply>")
	assert.Contains(t, p, `<discord_review file="ABSOLUTE_PATH">`)
	assert.NotContains(t, p, "without asking")

	auto := base
	auto.AutoApprove = true
	p = BuildPrompt("x", auto, GitHub{})
	assert.Contains(t, p, "without asking")
	assert.Contains(t, p, "gh repo create")
	assert.NotContains(t, p, "username")

	p = BuildPrompt("x", auto, GitHub{Username: "alice", Token: "ghp_123"})
	assert.Contains(t, p, "username (alice) and token (ghp_123)")
}

func TestThreadName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Build me a todo app", "Task: Build me a todo app"},
		{"line one\nline two", "Task: line one line two"},
		{strings.Repeat("a", 40), "Task: " + strings.Repeat("a", 30)},
		{strings.Repeat("日", 31), "Task: " + strings.Repeat("日", 30)},
		{"", "Task: Processing..."},
		{"x", "Task: x"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ThreadName(tt.in), "ThreadName(%q)", tt.in)
	}
}
