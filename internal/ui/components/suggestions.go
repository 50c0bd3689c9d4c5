// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/campusbot/internal/ui/styles"
	"github.com/jeranaias/campusbot/internal/util"
)

// SuggestionBatch is the number of chips shown at once.
const SuggestionBatch = 4

// MoreSuggestionsLabel is the label of the batch-cycling control.
const MoreSuggestionsLabel = "More suggestions"

// Suggestions pages through a screen's suggested prompts.
type Suggestions struct {
	prompts []string
	batch   int
}

// NewSuggestions creates a pager over prompts.
func NewSuggestions(prompts []string) *Suggestions {
	return &Suggestions{prompts: append([]string(nil), prompts...)}
}

// Visible returns the prompts of the current batch.
func (s *Suggestions) Visible() []string {
	if len(s.prompts) == 0 {
		return nil
	}
	start := s.batch * SuggestionBatch
	end := start + SuggestionBatch
	if end > len(s.prompts) {
		end = len(s.prompts)
	}
	return s.prompts[start:end]
}

// HasMore reports whether there is more than one batch.
func (s *Suggestions) HasMore() bool {
	return len(s.prompts) > SuggestionBatch
}

// More advances to the next batch, wrapping to the first after the last.
func (s *Suggestions) More() {
	if !s.HasMore() {
		return
	}
	batches := (len(s.prompts) + SuggestionBatch - 1) / SuggestionBatch
	s.batch = (s.batch + 1) % batches
}

// Pick returns the full prompt behind visible chip i (0-based).
func (s *Suggestions) Pick(i int) (string, bool) {
	visible := s.Visible()
	if i < 0 || i >= len(visible) {
		return "", false
	}
	return visible[i], true
}

// View renders the current batch as numbered chips wrapped to width.
func (s *Suggestions) View(theme *styles.Theme, width int) string {
	visible := s.Visible()
	if len(visible) == 0 {
		return ""
	}

	var rows []string
	var row []string
	rowWidth := 0
	for i, p := range visible {
		chip := theme.ChipKey.Render("alt+"+strconv.Itoa(i+1)) + " " + theme.Chip.Render(util.ChipLabel(p))
		w := lipgloss.Width(chip)
		if rowWidth > 0 && width > 0 && rowWidth+2+w > width {
			rows = append(rows, strings.Join(row, "  "))
			row, rowWidth = nil, 0
		}
		row = append(row, chip)
		rowWidth += w + 2
	}
	rows = append(rows, strings.Join(row, "  "))

	if s.HasMore() {
		rows = append(rows, theme.MoreChip.Render("ctrl+r "+MoreSuggestionsLabel))
	}
	return strings.Join(rows, "\n")
}
