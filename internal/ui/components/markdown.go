// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

// Markdown renders answers with glamour. Settled answers are cached by key
// until the wrap width changes. A failed render falls back to the raw text.
type Markdown struct {
	style   string
	width   int
	enabled bool

	renderer *glamour.TermRenderer
	cache    map[string]string
}

// NewMarkdown creates a renderer for a glamour standard style ("dark",
// "light", "notty"). When enabled is false text passes through unchanged.
func NewMarkdown(style string, width int, enabled bool) *Markdown {
	md := &Markdown{style: style, enabled: enabled, cache: make(map[string]string)}
	md.SetWidth(width)
	return md
}

// SetWidth changes the wrap width and drops cached output.
func (md *Markdown) SetWidth(width int) {
	if width < 20 {
		width = 20
	}
	if width == md.width && md.renderer != nil {
		return
	}
	md.width = width
	md.cache = make(map[string]string)
	md.renderer = nil
	if !md.enabled {
		return
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(md.style),
		glamour.WithWordWrap(width),
	)
	if err == nil {
		md.renderer = r
	}
}

// Render renders text. A non-empty key caches the result.
func (md *Markdown) Render(key, text string) string {
	if key != "" {
		if out, ok := md.cache[key]; ok {
			return out
		}
	}
	out := text
	if md.renderer != nil && text != "" {
		if rendered, err := md.renderer.Render(text); err == nil {
			out = strings.Trim(rendered, "\n")
		}
	}
	if key != "" {
		md.cache[key] = out
	}
	return out
}
