// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strconv"

	"github.com/charmbracelet/bubbles/key"

	"github.com/jeranaias/campusbot/internal/ui/components"
)

// =============================================================================
// KEY MAP DEFINITION
// =============================================================================

// KeyMap defines the keyboard bindings of the chat interface.
type KeyMap struct {
	Submit       key.Binding
	Stop         key.Binding
	Quit         key.Binding
	NewSession   key.Binding
	NextScreen   key.Binding
	PrevScreen   key.Binding
	Chips        []key.Binding
	MoreChips    key.Binding
	Like         key.Binding
	Dislike      key.Binding
	DismissToast key.Binding
	PageUp       key.Binding
	PageDown     key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	chips := make([]key.Binding, components.SuggestionBatch)
	for i := range chips {
		n := strconv.Itoa(i + 1)
		chips[i] = key.NewBinding(
			key.WithKeys("alt+"+n),
			key.WithHelp("alt+"+n, "ask suggestion "+n),
		)
	}

	return KeyMap{
		Submit: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "send"),
		),
		Stop: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "stop"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c", "ctrl+q"),
			key.WithHelp("ctrl+c", "quit"),
		),
		NewSession: key.NewBinding(
			key.WithKeys("ctrl+n"),
			key.WithHelp("ctrl+n", "new session"),
		),
		NextScreen: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "next screen"),
		),
		PrevScreen: key.NewBinding(
			key.WithKeys("shift+tab"),
			key.WithHelp("shift+tab", "previous screen"),
		),
		Chips: chips,
		MoreChips: key.NewBinding(
			key.WithKeys("ctrl+r"),
			key.WithHelp("ctrl+r", "more suggestions"),
		),
		Like: key.NewBinding(
			key.WithKeys("ctrl+l"),
			key.WithHelp("ctrl+l", "like"),
		),
		Dislike: key.NewBinding(
			key.WithKeys("ctrl+k"),
			key.WithHelp("ctrl+k", "dislike"),
		),
		DismissToast: key.NewBinding(
			key.WithKeys("ctrl+x"),
			key.WithHelp("ctrl+x", "dismiss"),
		),
		PageUp: key.NewBinding(
			key.WithKeys("pgup"),
			key.WithHelp("pgup", "scroll up"),
		),
		PageDown: key.NewBinding(
			key.WithKeys("pgdown"),
			key.WithHelp("pgdn", "scroll down"),
		),
	}
}

// chipIndex returns which suggestion binding k matches, or -1.
func (k KeyMap) chipIndex(msg string) int {
	for i, b := range k.Chips {
		for _, s := range b.Keys() {
			if s == msg {
				return i
			}
		}
	}
	return -1
}
