// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/campusbot/internal/config"
	"github.com/jeranaias/campusbot/internal/model"
	"github.com/jeranaias/campusbot/internal/server"
	"github.com/jeranaias/campusbot/internal/session"
	"github.com/jeranaias/campusbot/internal/ui/components"
	"github.com/jeranaias/campusbot/internal/ui/styles"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

type harness struct {
	m    Model
	stub *server.Server
	cfg  *config.Config
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	stub := server.New(server.Config{Burst: 20})
	ts := httptest.NewServer(stub.Handler())
	t.Cleanup(ts.Close)

	cfg := config.Default()
	cfg.Service.BaseURL = ts.URL
	cfg.Service.RequestsPerSecond = 100
	cfg.Service.Burst = 10
	cfg.Streaming.IntervalMS = 1
	cfg.Storage.Enabled = false
	cfg.SetDefaults()
	require.NoError(t, cfg.Validate())

	s, err := session.Open(cfg, session.WithoutArchive())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	m, err := New(s, Options{Theme: styles.NewTheme(styles.ModeDark)})
	require.NoError(t, err)
	t.Cleanup(m.Close)

	h := &harness{m: m, stub: stub, cfg: cfg}
	h.send(tea.WindowSizeMsg{Width: 100, Height: 40})
	return h
}

// send feeds msg through Update and returns the resulting command.
func (h *harness) send(msg tea.Msg) tea.Cmd {
	next, cmd := h.m.Update(msg)
	h.m = next.(Model)
	return cmd
}

// run executes a command returned for a key press and feeds back its
// messages. Commands returned by those updates are not run.
func (h *harness) run(t *testing.T, cmd tea.Cmd) {
	t.Helper()
	require.NotNil(t, cmd)
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		for _, c := range batch {
			if c != nil {
				h.send(c())
			}
		}
		return
	}
	h.send(msg)
}

func (h *harness) typeText(text string) {
	h.send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
}

// pump delivers bus events until cond holds.
func (h *harness) pump(t *testing.T, cond func(Model) bool) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for !cond(h.m) {
		select {
		case ev := <-h.m.events:
			h.send(busMsg{ev: ev})
		case <-deadline:
			t.Fatal("condition not reached")
		}
	}
}

func lastSettled(m Model) bool {
	turns := m.current().turns
	return len(turns) > 0 && turns[len(turns)-1].Status == model.StatusSettled
}

func hasToast(m Model, text string) bool {
	for _, toast := range m.Toasts() {
		if strings.Contains(toast.Message, text) {
			return true
		}
	}
	return false
}

// =============================================================================
// WELCOME AND SCREENS
// =============================================================================

func TestNew_ShowsWelcomeAndChips(t *testing.T) {
	h := newHarness(t)
	view := h.m.View()

	assert.Equal(t, "assistant", h.m.ActiveScreen())
	assert.Contains(t, view, "DTU Assistant")
	assert.Contains(t, view, "Welcome to DTU Assistant!")
	assert.Contains(t, view, "alt+1")
	assert.Contains(t, view, components.MoreSuggestionsLabel)
	assert.NotContains(t, view, components.NewSessionHint)
}

func TestNew_UnknownScreen(t *testing.T) {
	h := newHarness(t)
	_, err := New(h.m.backend, Options{Screen: "results", Theme: h.m.theme})
	assert.ErrorIs(t, err, ErrUnknownScreen)
}

func TestTab_SwitchesScreens(t *testing.T) {
	h := newHarness(t)

	h.send(tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, "notices", h.m.ActiveScreen())
	assert.Contains(t, h.m.View(), "DTU Notifier with latest notices!")

	h.send(tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, "papers", h.m.ActiveScreen())
	assert.Contains(t, h.m.View(), "Welcome to Pyq's Section")

	h.send(tea.KeyMsg{Type: tea.KeyShiftTab})
	h.send(tea.KeyMsg{Type: tea.KeyShiftTab})
	assert.Equal(t, "assistant", h.m.ActiveScreen())
}

// =============================================================================
// ASKING
// =============================================================================

func TestSubmit_GreetingOpensConversation(t *testing.T) {
	h := newHarness(t)

	h.typeText("hi")
	h.run(t, h.send(tea.KeyMsg{Type: tea.KeyEnter}))
	h.pump(t, lastSettled)

	assert.Empty(t, h.m.input.Value(), "accepted query clears the input")
	turns := h.m.current().turns
	require.Len(t, turns, 2)
	assert.Equal(t, model.SourceModeration, turns[1].Source)
	assert.Contains(t, h.m.View(), components.NewSessionHint)
}

func TestSubmit_StreamsServiceAnswer(t *testing.T) {
	h := newHarness(t)

	h.typeText("Tell me about DTU's history")
	h.run(t, h.send(tea.KeyMsg{Type: tea.KeyEnter}))
	h.pump(t, lastSettled)

	turns := h.m.current().turns
	require.Len(t, turns, 2)
	assert.Equal(t, model.SourceAnswer, turns[1].Source)
	assert.Contains(t, h.m.View(), "1941")
}

func TestSubmit_TooLongLocksInput(t *testing.T) {
	h := newHarness(t)

	long := strings.Repeat("x", 201)
	h.typeText(long)
	h.run(t, h.send(tea.KeyMsg{Type: tea.KeyEnter}))
	h.pump(t, func(m Model) bool { return hasToast(m, "under 200 characters") })

	assert.True(t, h.m.current().locked)
	assert.Empty(t, h.m.current().turns, "toast verdicts create no turns")
	assert.Equal(t, long, h.m.input.Value(), "rejected query stays editable")

	h.typeText("more")
	assert.Equal(t, long, h.m.input.Value(), "typing is ignored while locked")
	assert.Nil(t, h.send(tea.KeyMsg{Type: tea.KeyEnter}))
}

func TestChip_AsksFullPrompt(t *testing.T) {
	h := newHarness(t)
	screen, _ := h.cfg.Screen("assistant")

	h.run(t, h.send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("1"), Alt: true}))
	h.pump(t, lastSettled)

	turns := h.m.current().turns
	require.Len(t, turns, 2)
	assert.Equal(t, screen.Suggestions[0], turns[0].RawText)

	assert.Nil(t, h.send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("2"), Alt: true}), "chips hidden once a conversation is open")
}

func TestMoreChips_CyclesBatch(t *testing.T) {
	h := newHarness(t)
	screen, _ := h.cfg.Screen("assistant")

	h.send(tea.KeyMsg{Type: tea.KeyCtrlR})
	got, ok := h.m.current().chips.Pick(0)
	require.True(t, ok)
	assert.Equal(t, screen.Suggestions[components.SuggestionBatch], got)
}

func TestNewSession_ReturnsToWelcome(t *testing.T) {
	h := newHarness(t)

	h.typeText("hello")
	h.run(t, h.send(tea.KeyMsg{Type: tea.KeyEnter}))
	h.pump(t, lastSettled)

	h.run(t, h.send(tea.KeyMsg{Type: tea.KeyCtrlN}))
	h.pump(t, func(m Model) bool { return !m.current().open })

	assert.Empty(t, h.m.current().turns)
	view := h.m.View()
	assert.Contains(t, view, "Welcome to DTU Assistant!")
	assert.NotContains(t, view, components.NewSessionHint)
}

func TestNewSession_ResetsEveryScreen(t *testing.T) {
	h := newHarness(t)

	h.typeText("hello")
	h.run(t, h.send(tea.KeyMsg{Type: tea.KeyEnter}))
	h.pump(t, lastSettled)

	h.send(tea.KeyMsg{Type: tea.KeyTab})
	require.NotEqual(t, "assistant", h.m.current().cfg.Name)
	h.typeText("hello")
	h.run(t, h.send(tea.KeyMsg{Type: tea.KeyEnter}))
	h.pump(t, lastSettled)

	h.run(t, h.send(tea.KeyMsg{Type: tea.KeyCtrlN}))
	h.pump(t, func(m Model) bool {
		for _, s := range m.screens {
			if s.open || len(s.turns) > 0 {
				return false
			}
		}
		return true
	})

	for _, s := range h.m.screens {
		assert.Empty(t, s.machine.Snapshot(), s.cfg.Name)
	}
}

// =============================================================================
// FEEDBACK
// =============================================================================

func TestFeedback_LikeWithMessage(t *testing.T) {
	h := newHarness(t)

	h.typeText("Tell me about hostel facilities at DTU")
	h.run(t, h.send(tea.KeyMsg{Type: tea.KeyEnter}))
	h.pump(t, lastSettled)

	h.send(tea.KeyMsg{Type: tea.KeyCtrlL})
	require.NotNil(t, h.m.feedback)
	h.typeText("very clear")
	h.run(t, h.send(tea.KeyMsg{Type: tea.KeyEnter}))

	assert.Nil(t, h.m.feedback)
	assert.True(t, hasToast(h.m, "Feedback submitted with a like"))
	fb := h.stub.Feedback()
	require.Len(t, fb, 1)
	assert.Equal(t, "very clear", fb[0].Message)
	assert.Equal(t, "Tell me about hostel facilities at DTU", fb[0].UserQuery)
}

func TestFeedback_NothingToRate(t *testing.T) {
	h := newHarness(t)

	h.send(tea.KeyMsg{Type: tea.KeyCtrlK})
	assert.Nil(t, h.m.feedback)
	assert.True(t, hasToast(h.m, NothingToRateText))
}

func TestFeedback_EscCloses(t *testing.T) {
	h := newHarness(t)

	h.typeText("hi")
	h.run(t, h.send(tea.KeyMsg{Type: tea.KeyEnter}))
	h.pump(t, lastSettled)

	h.send(tea.KeyMsg{Type: tea.KeyCtrlK})
	require.NotNil(t, h.m.feedback)
	h.send(tea.KeyMsg{Type: tea.KeyEsc})
	assert.Nil(t, h.m.feedback)
	assert.Empty(t, h.stub.Feedback())
}

// =============================================================================
// TOASTS AND QUIT
// =============================================================================

func TestToast_Dismiss(t *testing.T) {
	h := newHarness(t)
	h.send(tea.KeyMsg{Type: tea.KeyCtrlK})
	require.Len(t, h.m.Toasts(), 1)

	h.send(tea.KeyMsg{Type: tea.KeyCtrlX})
	assert.Empty(t, h.m.Toasts())
}

func TestQuit_WhenIdle(t *testing.T) {
	h := newHarness(t)
	cmd := h.send(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
	assert.Empty(t, h.m.View())
}
