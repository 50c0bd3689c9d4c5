// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme mode names accepted by NewTheme.
const (
	ModeAuto  = "auto"
	ModeDark  = "dark"
	ModeLight = "light"
)

// Theme holds the styled components of the TUI.
type Theme struct {
	IsDark       bool
	ColorProfile termenv.Profile

	// Header
	Header      lipgloss.Style
	HeaderTitle lipgloss.Style
	HeaderHint  lipgloss.Style
	Tab         lipgloss.Style
	TabActive   lipgloss.Style

	// Turns
	UserTurn      lipgloss.Style
	AssistantTurn lipgloss.Style
	RoleLabel     lipgloss.Style
	StoppedMark   lipgloss.Style
	Thinking      lipgloss.Style

	// Welcome and suggestions
	Welcome  lipgloss.Style
	Chip     lipgloss.Style
	ChipKey  lipgloss.Style
	MoreChip lipgloss.Style

	// Input
	Input        lipgloss.Style
	InputLocked  lipgloss.Style
	InputPrompt  lipgloss.Style
	FeedbackMode lipgloss.Style

	// Footer
	ShortcutKey  lipgloss.Style
	ShortcutDesc lipgloss.Style
	Muted        lipgloss.Style
}

// NewTheme creates a theme for mode ("auto", "dark" or "light"). In auto
// mode the terminal background is queried through termenv.
func NewTheme(mode string) *Theme {
	profile := termenv.ColorProfile()

	var isDark bool
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case ModeDark:
		isDark = true
	case ModeLight:
		isDark = false
	default:
		isDark = termenv.HasDarkBackground()
	}
	lipgloss.SetHasDarkBackground(isDark)

	t := &Theme{IsDark: isDark, ColorProfile: profile}
	t.initStyles()
	return t
}

// GlamourStyle names the glamour standard style matching the theme.
func (t *Theme) GlamourStyle() string {
	switch {
	case t.ColorProfile == termenv.Ascii:
		return "notty"
	case t.IsDark:
		return "dark"
	default:
		return "light"
	}
}

func (t *Theme) initStyles() {
	t.Header = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderBottom(true).
		BorderForeground(Overlay).
		Padding(0, 1)
	t.HeaderTitle = lipgloss.NewStyle().Bold(true).Foreground(Cyan)
	t.HeaderHint = lipgloss.NewStyle().Foreground(TextMuted).Italic(true)
	t.Tab = lipgloss.NewStyle().Foreground(TextSecondary).Padding(0, 1)
	t.TabActive = lipgloss.NewStyle().Bold(true).Foreground(Purple).Underline(true).Padding(0, 1)

	t.UserTurn = lipgloss.NewStyle().
		Foreground(UserTurnFg).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(UserTurnBorder).
		Padding(0, 1)
	t.AssistantTurn = lipgloss.NewStyle().
		Foreground(AssistantTurnFg).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(AssistantTurnBorder).
		Padding(0, 1)
	t.RoleLabel = lipgloss.NewStyle().Foreground(TextMuted).Italic(true)
	t.StoppedMark = lipgloss.NewStyle().Foreground(Amber).Italic(true)
	t.Thinking = lipgloss.NewStyle().Foreground(Purple).Italic(true)

	t.Welcome = lipgloss.NewStyle().Bold(true).Foreground(TextPrimary).MarginBottom(1)
	t.Chip = lipgloss.NewStyle().
		Foreground(TextPrimary).
		Background(SurfaceBright).
		Padding(0, 2)
	t.ChipKey = lipgloss.NewStyle().Foreground(Cyan).Bold(true)
	t.MoreChip = lipgloss.NewStyle().Foreground(Cyan).Italic(true)

	t.Input = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Cyan).
		Padding(0, 1)
	t.InputLocked = t.Input.BorderForeground(Amber)
	t.InputPrompt = lipgloss.NewStyle().Foreground(Cyan).Bold(true)
	t.FeedbackMode = lipgloss.NewStyle().Foreground(Emerald).Bold(true)

	t.ShortcutKey = lipgloss.NewStyle().Foreground(Cyan).Bold(true)
	t.ShortcutDesc = lipgloss.NewStyle().Foreground(TextSecondary)
	t.Muted = lipgloss.NewStyle().Foreground(TextMuted)
}
