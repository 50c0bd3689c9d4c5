// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/campusbot/internal/answer"
	"github.com/jeranaias/campusbot/internal/conversation"
	"github.com/jeranaias/campusbot/internal/events"
	"github.com/jeranaias/campusbot/internal/ui/components"
)

// Update handles a message and returns the next model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	next, cmd := m.update(msg)
	tick := next.startTicking()
	next.layout()
	switch {
	case tick == nil:
		return next, cmd
	case cmd == nil:
		return next, tick
	}
	return next, tea.Batch(cmd, tick)
}

func (m Model) update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.ready = true
		m.markdown.SetWidth(msg.Width - 8)
		m.help.Width = msg.Width
		m.refreshContent(true)
		return m, nil

	case busMsg:
		m.handleEvent(msg.ev)
		return m, m.listen()

	case submittedMsg:
		return m.handleSubmitted(msg)

	case feedbackSentMsg:
		if msg.err != nil {
			m.toasts.Add(events.LevelError, FeedbackFailedText)
		} else {
			m.toasts.Add(events.LevelSuccess, FeedbackAck(msg.sentiment))
		}
		return m, nil

	case actionDoneMsg:
		if s := m.screen(msg.screen); s != nil {
			m.sync(s)
			m.refreshContent(true)
		}
		return m, nil

	case spinner.TickMsg:
		if !m.current().pending() {
			m.spinning = false
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		m.refreshContent(false)
		return m, cmd

	case components.ToastTickMsg:
		if !m.toasts.Tick() {
			m.toastTicking = false
			return m, nil
		}
		return m, components.ToastTickCmd()

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// =============================================================================
// BUS EVENTS
// =============================================================================

func (m *Model) handleEvent(ev events.Event) {
	if ev.Topic == events.TopicWarning && ev.Warning != nil {
		m.toasts.Add(ev.Warning.Level, ev.Warning.Message)
		return
	}
	s := m.screen(ev.Source)
	if s == nil {
		return
	}
	m.sync(s)
	if s == m.current() {
		m.applyInputState()
		m.refreshContent(true)
	}
}

func (m Model) handleSubmitted(msg submittedMsg) (Model, tea.Cmd) {
	s := m.screen(msg.screen)
	if s == nil {
		return m, nil
	}
	m.sync(s)

	switch {
	case errors.Is(msg.err, conversation.ErrInFlight), errors.Is(msg.err, conversation.ErrLockedOut):
		// The machine already published a warning.
	case msg.err != nil:
		m.toasts.Add(events.LevelError, msg.err.Error())
	case msg.out.UserTurnID != "" && s == m.current() && m.input.Value() == msg.query:
		m.input.Reset()
	}

	if s == m.current() {
		m.applyInputState()
		m.refreshContent(true)
	}
	return m, nil
}

// =============================================================================
// KEYS
// =============================================================================

func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	s := m.current()

	switch {
	case key.Matches(msg, m.keys.Quit):
		if s.inFlight() {
			return m, stopCmd(s.machine, s.cfg.Name)
		}
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, m.keys.Stop):
		if m.feedback != nil {
			m.closeFeedback()
			return m, nil
		}
		if s.inFlight() {
			return m, stopCmd(s.machine, s.cfg.Name)
		}
		return m, nil

	case key.Matches(msg, m.keys.DismissToast):
		m.toasts.Dismiss()
		return m, nil

	case key.Matches(msg, m.keys.PageUp), key.Matches(msg, m.keys.PageDown):
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	if m.feedback != nil {
		return m.handleFeedbackKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Submit):
		query := m.input.Value()
		if strings.TrimSpace(query) == "" || s.locked {
			return m, nil
		}
		return m, submitCmd(s.machine, s.cfg.Name, query)

	case key.Matches(msg, m.keys.NewSession):
		return m, newSessionCmd(m.backend.Bus(), s.cfg.Name)

	case key.Matches(msg, m.keys.NextScreen):
		m.switchScreen(1)
		return m, nil

	case key.Matches(msg, m.keys.PrevScreen):
		m.switchScreen(-1)
		return m, nil

	case key.Matches(msg, m.keys.MoreChips):
		if len(s.turns) == 0 {
			s.chips.More()
			m.refreshContent(true)
		}
		return m, nil

	case key.Matches(msg, m.keys.Like):
		m.openFeedback(answer.SentimentPositive)
		return m, nil

	case key.Matches(msg, m.keys.Dislike):
		m.openFeedback(answer.SentimentNegative)
		return m, nil
	}

	if i := m.keys.chipIndex(msg.String()); i >= 0 {
		if len(s.turns) > 0 || s.locked {
			return m, nil
		}
		prompt, ok := s.chips.Pick(i)
		if !ok {
			return m, nil
		}
		return m, submitCmd(s.machine, s.cfg.Name, prompt)
	}

	if s.locked {
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) switchScreen(delta int) {
	n := len(m.screens)
	m.closeFeedback()
	m.active = ((m.active+delta)%n + n) % n
	m.sync(m.current())
	m.applyInputState()
	m.refreshContent(true)
}

// =============================================================================
// FEEDBACK
// =============================================================================

// canRate reports whether the latest turn is a settled answer that directly
// follows its query.
func (m Model) canRate() bool {
	s := m.current()
	if s.inFlight() {
		return false
	}
	_, ok := s.machine.LastExchange()
	return ok
}

func (m *Model) openFeedback(sentiment answer.Sentiment) {
	if !m.canRate() {
		m.toasts.Add(events.LevelInfo, NothingToRateText)
		return
	}
	in := textinput.New()
	in.Placeholder = feedbackPlaceholder
	in.Prompt = string(sentiment) + " > "
	in.PromptStyle = m.theme.FeedbackMode
	in.Focus()
	m.feedback = &feedbackForm{screen: m.current().cfg.Name, sentiment: sentiment, input: in}
	m.input.Blur()
}

func (m *Model) closeFeedback() {
	if m.feedback == nil {
		return
	}
	m.feedback = nil
	m.applyInputState()
}

func (m Model) handleFeedbackKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Submit) {
		form := m.feedback
		m.closeFeedback()
		return m, sendFeedbackCmd(m.backend, form.screen, form.sentiment, strings.TrimSpace(form.input.Value()))
	}
	var cmd tea.Cmd
	form := *m.feedback
	form.input, cmd = form.input.Update(msg)
	m.feedback = &form
	return m, cmd
}
