package bridge

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"cascadebridge/internal/cascade"
	"cascadebridge/internal/chat"
	"cascadebridge/internal/directive"
	"cascadebridge/internal/logging"
	"cascadebridge/internal/settings"
)

// maxImageBytes caps a single downloaded attachment.
const maxImageBytes = 25 << 20

const replyInstruction = "\n\n[System directive: You are talking to the user through Discord. Reasoning and tool announcements " +
	"may be written to the IDE as usual, but every report or answer meant for the Discord user (short status " +
	"messages such as \"X is done\", final URLs) must be wrapped in " + directive.ReplyOpen + " and " +
	directive.ReplyClose + " tags. Text outside the tags is hidden on Discord, so put everything for the user inside them.]" +
	"\n[System directive: To have the user approve a .md file such as an implementation plan, output " +
	"<discord_review file=\"ABSOLUTE_PATH\">. The user is then shown Yes/No buttons.]"

// BuildPrompt appends the directive instructions to the user's text.
func BuildPrompt(text string, s settings.Settings, gh GitHub) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(text))
	b.WriteString(replyInstruction)
	if s.AutoApprove {
		b.WriteString("\nWhile handling this request, run terminal commands and apply file changes directly without asking. ")
		if gh.Username != "" && gh.Token != "" {
			fmt.Fprintf(&b, "Finally, authenticate with the provided GitHub username (%s) and token (%s), "+
				"create a GitHub repository with `gh repo create` or similar, push the code, and output the URL or the result.",
				gh.Username, gh.Token)
		} else {
			b.WriteString("Finally, create a GitHub repository with `gh repo create` or similar, push the code, " +
				"and output the URL or the result.")
		}
	}
	return b.String()
}

// ThreadName derives a task thread name from the first message.
func ThreadName(text string) string {
	runes := []rune(text)
	if len(runes) > 30 {
		runes = runes[:30]
	}
	name := "Task: " + strings.ReplaceAll(string(runes), "\n", " ")
	if len([]rune(name)) < 7 {
		return "Task: Processing..."
	}
	return name
}

func isImage(a chat.Attachment) bool {
	return strings.HasPrefix(a.ContentType, "image/")
}

func hasImages(m chat.Incoming) bool {
	for _, a := range m.Attachments {
		if isImage(a) {
			return true
		}
	}
	return false
}

// buildItems assembles the turn: prompt text first, then each image
// attachment. Images that fail to download are skipped.
func (b *Bridge) buildItems(ctx context.Context, m chat.Incoming, s settings.Settings, gh GitHub) []cascade.Item {
	items := []cascade.Item{cascade.TextItem(BuildPrompt(m.Content, s, gh))}
	for _, a := range m.Attachments {
		if !isImage(a) {
			continue
		}
		data, err := b.download(ctx, a.URL)
		if err != nil {
			logging.BridgeWarn("failed to process image %s: %v", a.Filename, err)
			continue
		}
		items = append(items, cascade.ImageItem(data))
	}
	return items
}

func (b *Bridge) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := b.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxImageBytes {
		return nil, fmt.Errorf("image larger than %d bytes", maxImageBytes)
	}
	return data, nil
}
