// Package directive reads the control markers the model embeds in its output.
//
// Two markers are recognised:
//
//	<discord_reply>...</discord_reply>   the text meant for the chat user
//	<discord_review file="PATH">         a document the user must approve
//
// Everything outside a reply block is the model's working noise and is never shown.
package directive

import (
	"os"
	"strings"
)

const (
	ReplyOpen   = "<discord_reply>"
	ReplyClose  = "</discord_reply>"
	reviewOpen  = "<discord_review"
	fileAttr    = `file="`
	reviewClose = ">"
)

// ExtractReply reduces raw model output to the text shown in chat.
//
// With an opening marker, the text after it (up to the closing marker, if any)
// is returned trimmed. Without one, a turn still in progress shows nothing and
// a finished turn falls back to the whole output, so a model that forgot the
// markers still gets its answer through.
func ExtractReply(raw string, terminal bool) string {
	start := strings.Index(raw, ReplyOpen)
	if start < 0 {
		if terminal {
			return strings.TrimSpace(raw)
		}
		return ""
	}
	body := raw[start+len(ReplyOpen):]
	if end := strings.Index(body, ReplyClose); end >= 0 {
		body = body[:end]
	}
	return strings.TrimSpace(body)
}

// ReviewPaths returns the path of every review marker in order of appearance.
// A path repeated in several markers is returned once per marker. A marker
// missing its closing quote ends the scan.
func ReviewPaths(raw string) []string {
	var paths []string

	rest := raw
	for {
		i := strings.Index(rest, reviewOpen)
		if i < 0 {
			return paths
		}
		rest = rest[i+len(reviewOpen):]

		// Only whitespace may separate the tag name from the attribute.
		trimmed := strings.TrimLeft(rest, " \t\r\n")
		if len(trimmed) == len(rest) || !strings.HasPrefix(trimmed, fileAttr) {
			continue
		}
		trimmed = trimmed[len(fileAttr):]

		q := strings.IndexByte(trimmed, '"')
		if q < 0 {
			return paths
		}
		path := trimmed[:q]
		after := trimmed[q+1:]
		if !strings.HasPrefix(after, reviewClose) {
			rest = after
			continue
		}
		rest = after[len(reviewClose):]

		if path == "" {
			continue
		}
		paths = append(paths, path)
	}
}

// Exists reports whether path names an existing file.
type Exists func(path string) bool

// FileExists is the default Exists, backed by os.Stat.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// ScanReviews returns the review paths in raw whose files exist.
func ScanReviews(raw string, exists Exists) []string {
	if exists == nil {
		exists = FileExists
	}
	var out []string
	for _, p := range ReviewPaths(raw) {
		if exists(p) {
			out = append(out, p)
		}
	}
	return out
}
