// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"strings"
	"time"
)

// MarkdownExporter writes a transcript as Markdown with YAML frontmatter.
type MarkdownExporter struct{}

// Export renders t. Answers are already Markdown and are copied as is.
func (MarkdownExporter) Export(t Transcript) ([]byte, error) {
	if len(t.Exchanges) == 0 {
		return nil, ErrEmpty
	}

	var sb strings.Builder
	sb.WriteString("---\n")
	fmt.Fprintf(&sb, "title: %s\n", escapeYAML(t.Title))
	if t.Screen != "" {
		fmt.Fprintf(&sb, "screen: %s\n", t.Screen)
	}
	fmt.Fprintf(&sb, "exchanges: %d\n", len(t.Exchanges))
	fmt.Fprintf(&sb, "exported: %s\n", time.Now().Format(time.RFC3339))
	sb.WriteString("generator: campusbot\n")
	sb.WriteString("---\n\n")

	fmt.Fprintf(&sb, "# %s\n\n", escapeMarkdown(t.Title))

	for i, ex := range t.Exchanges {
		fmt.Fprintf(&sb, "## %s <sub>%s · %s</sub>\n\n",
			escapeMarkdown(ex.Query), ex.Screen, formatTimestamp(ex.AskedAt))
		sb.WriteString(strings.TrimSpace(ex.Answer))
		sb.WriteString("\n")
		if ex.Stopped {
			sb.WriteString("\n*[stopped]*\n")
		}
		if i < len(t.Exchanges)-1 {
			sb.WriteString("\n---\n\n")
		}
	}
	return []byte(sb.String()), nil
}

func (MarkdownExporter) FileExtension() string { return ".md" }

// escapeMarkdown escapes the characters that break headings.
func escapeMarkdown(s string) string {
	r := strings.NewReplacer("#", "\\#", "*", "\\*", "_", "\\_", "[", "\\[", "]", "\\]")
	return r.Replace(s)
}

// escapeYAML quotes s when it holds characters YAML would interpret.
func escapeYAML(s string) string {
	if strings.ContainsAny(s, ":#|>@`\"'[]{}!%&*\n\r\\") || strings.HasPrefix(s, " ") || strings.HasSuffix(s, " ") {
		r := strings.NewReplacer("\\", "\\\\", "\"", "\\\"", "\n", "\\n", "\r", "\\r")
		return "\"" + r.Replace(s) + "\""
	}
	return s
}
