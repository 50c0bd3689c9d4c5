// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

const (
	// ChipMaxRunes is the longest prompt shown unshortened on a chip.
	ChipMaxRunes = 60
	// ChipKeepRunes is how much of a long prompt survives on its chip.
	ChipKeepRunes = 27

	ellipsis = "..."
)

// ChipLabel returns the text shown on a suggestion chip. Prompts longer than
// ChipMaxRunes characters keep their first ChipKeepRunes followed by "...".
// The full prompt is still what gets submitted.
func ChipLabel(prompt string) string {
	runes := []rune(prompt)
	if len(runes) <= ChipMaxRunes {
		return prompt
	}
	return string(runes[:ChipKeepRunes]) + ellipsis
}

// FitWidth truncates s so that it occupies at most width terminal cells,
// marking a cut with "...". Wide runes (CJK, most emoji) count as two cells.
func FitWidth(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) <= width {
		return s
	}
	if width <= len(ellipsis) {
		return runewidth.Truncate(s, width, "")
	}
	return runewidth.Truncate(s, width, ellipsis)
}

// PadWidth right-pads s with spaces to width cells. Longer strings are
// returned unchanged.
func PadWidth(s string, width int) string {
	w := runewidth.StringWidth(s)
	if w >= width {
		return s
	}
	return s + strings.Repeat(" ", width-w)
}

// SingleLine collapses every run of whitespace, newlines included, into one
// space.
func SingleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
