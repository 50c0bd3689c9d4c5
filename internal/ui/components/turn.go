// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"github.com/jeranaias/campusbot/internal/model"
	"github.com/jeranaias/campusbot/internal/ui/styles"
)

// ThinkingText is shown beside the spinner while an answer is pending.
const ThinkingText = "Thinking..."

// TurnView renders one turn of a conversation.
type TurnView struct {
	Turn    model.Turn
	Width   int
	Spinner string // current spinner frame, used while pending
}

// View renders the turn. Assistant text goes through md; streaming text
// is rendered uncached since it changes on every tick.
func (v TurnView) View(theme *styles.Theme, md *Markdown) string {
	width := v.Width - 4
	if width < 20 {
		width = 20
	}

	t := v.Turn
	label := theme.RoleLabel.Render(t.Role.DisplayName())

	if t.Role == model.RoleUser {
		return label + "\n" + theme.UserTurn.Width(width).Render(t.RawText)
	}

	var body string
	switch t.Status {
	case model.StatusPending:
		body = theme.Thinking.Render(v.Spinner + " " + ThinkingText)
	case model.StatusStreaming:
		body = md.Render("", t.VisibleText)
	default:
		body = md.Render(t.ID, t.DisplayText())
	}
	out := label + "\n" + theme.AssistantTurn.Render(body)
	if t.Stopped {
		out += "\n" + theme.StoppedMark.Render(styles.Indicators.Stopped)
	}
	return out
}
