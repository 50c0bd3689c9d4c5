// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/campusbot/internal/ui/components"
)

// =============================================================================
// LAYOUT
// =============================================================================

// layout sizes the viewport to the space left by the other sections.
func (m *Model) layout() {
	if !m.ready {
		return
	}
	used := lipgloss.Height(m.headerView()) +
		lipgloss.Height(m.inputView()) +
		lipgloss.Height(m.footerView())
	if toasts := m.toastView(); toasts != "" {
		used += lipgloss.Height(toasts)
	}
	h := m.height - used
	if h < 3 {
		h = 3
	}
	atBottom := m.viewport.AtBottom()
	m.viewport.Width = m.width
	m.viewport.Height = h
	if atBottom {
		m.viewport.GotoBottom()
	}
}

// refreshContent re-renders the active screen into the viewport. With
// follow set the view scrolls to the newest turn.
func (m *Model) refreshContent(follow bool) {
	atBottom := m.viewport.AtBottom()
	m.viewport.SetContent(m.conversationView())
	if follow || atBottom {
		m.viewport.GotoBottom()
	}
}

// =============================================================================
// VIEW
// =============================================================================

// View renders the whole screen.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	sections := []string{m.headerView(), m.viewport.View()}
	if toasts := m.toastView(); toasts != "" {
		sections = append(sections, toasts)
	}
	sections = append(sections, m.inputView(), m.footerView())
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) headerView() string {
	s := m.current()
	tabs := make([]string, len(m.screens))
	for i, sc := range m.screens {
		tabs[i] = sc.cfg.Name
	}
	return components.Header{
		Title:  s.cfg.Title,
		Tabs:   tabs,
		Active: m.active,
		Open:   s.open,
		Width:  m.width,
	}.View(m.theme)
}

// conversationView renders the welcome block or the turns.
func (m Model) conversationView() string {
	s := m.current()
	width := m.width
	if width <= 0 {
		width = 80
	}

	if len(s.turns) == 0 {
		var b strings.Builder
		b.WriteString(m.theme.Welcome.Render(s.cfg.Welcome))
		if chips := s.chips.View(m.theme, width-2); chips != "" {
			b.WriteString("\n")
			b.WriteString(chips)
		}
		return lipgloss.NewStyle().Padding(1, 1).Render(b.String())
	}

	parts := make([]string, 0, len(s.turns))
	for _, t := range s.turns {
		parts = append(parts, components.TurnView{
			Turn:    t,
			Width:   width - 2,
			Spinner: m.spinner.View(),
		}.View(m.theme, m.markdown))
	}
	return lipgloss.NewStyle().Padding(0, 1).Render(strings.Join(parts, "\n\n"))
}

func (m Model) toastView() string {
	return components.RenderToastStack(m.toasts.Toasts(), m.width, time.Now())
}

func (m Model) inputView() string {
	style := m.theme.Input
	content := m.input.View()
	switch {
	case m.feedback != nil:
		content = m.feedback.input.View()
	case m.current().locked:
		style = m.theme.InputLocked
	}
	if m.width > 2 {
		style = style.Width(m.width - 2)
	}
	return style.Render(content)
}

func (m Model) footerView() string {
	bindings := []key.Binding{m.keys.Submit}
	s := m.current()
	switch {
	case m.feedback != nil:
		bindings = []key.Binding{m.keys.Submit, m.keys.Stop}
	case s.inFlight():
		bindings = append(bindings, m.keys.Stop)
	case len(s.turns) == 0 && s.chips.HasMore():
		bindings = append(bindings, m.keys.MoreChips)
	}
	if m.feedback == nil && m.canRate() {
		bindings = append(bindings, m.keys.Like, m.keys.Dislike)
	}
	if len(m.screens) > 1 {
		bindings = append(bindings, m.keys.NextScreen)
	}
	bindings = append(bindings, m.keys.Quit)
	return m.help.ShortHelpView(bindings)
}
