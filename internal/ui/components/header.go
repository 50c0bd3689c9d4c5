// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/campusbot/internal/ui/styles"
	"github.com/jeranaias/campusbot/internal/util"
)

// NewSessionHint is shown in the header while a conversation is open.
const NewSessionHint = "ctrl+n new session"

// Header is the title bar: the active screen's title, the screen tabs and,
// while a conversation is open, the new-session hint.
type Header struct {
	Title  string
	Tabs   []string
	Active int
	Open   bool
	Width  int
}

// View renders the header.
func (h Header) View(theme *styles.Theme) string {
	left := theme.HeaderTitle.Render(h.Title)

	var tabs []string
	if len(h.Tabs) > 1 {
		for i, name := range h.Tabs {
			if i == h.Active {
				tabs = append(tabs, theme.TabActive.Render(name))
			} else {
				tabs = append(tabs, theme.Tab.Render(name))
			}
		}
	}
	right := strings.Join(tabs, "")
	if h.Open {
		right += "  " + theme.HeaderHint.Render(NewSessionHint)
	}

	inner := h.Width - 2
	if inner <= 0 {
		return theme.Header.Render(left + "  " + right)
	}
	gap := inner - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 2 {
		left = util.FitWidth(h.Title, inner-lipgloss.Width(right)-2)
		left = theme.HeaderTitle.Render(left)
		gap = inner - lipgloss.Width(left) - lipgloss.Width(right)
		if gap < 1 {
			gap = 1
		}
	}
	return theme.Header.Render(left + strings.Repeat(" ", gap) + right)
}
