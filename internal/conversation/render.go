package conversation

import (
	"fmt"
	"strings"
)

// RenderPlain formats m as its display name followed by the indented body.
func RenderPlain(m ChatMessage) string {
	return m.DisplayName + "\n" + IndentBody(m.Body)
}

// IndentBody indents every non-empty line of body by two spaces and ends it
// with a newline.
func IndentBody(body string) string {
	var b strings.Builder
	for _, line := range strings.Split(body, "\n") {
		if line == "" {
			b.WriteString("\n")
			continue
		}
		b.WriteString("  ")
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

// RenderMarkdown formats m as a markdown section. Emphasis markers outside
// code fences are escaped.
func RenderMarkdown(m ChatMessage) string {
	return fmt.Sprintf("**%s**\n\n%s\n\n", m.DisplayName, escapeMarkdown(m.Body))
}

func escapeMarkdown(text string) string {
	lines := strings.Split(text, "\n")
	inCodeBlock := false
	for i, line := range lines {
		if strings.HasPrefix(line, "```") {
			inCodeBlock = !inCodeBlock
			continue
		}
		if inCodeBlock {
			continue
		}
		line = strings.ReplaceAll(line, "**", "\\*\\*")
		lines[i] = strings.ReplaceAll(line, "__", "\\_\\_")
	}
	return strings.Join(lines, "\n")
}
