// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/campusbot/internal/answer"
	"github.com/jeranaias/campusbot/internal/config"
	"github.com/jeranaias/campusbot/internal/conversation"
	"github.com/jeranaias/campusbot/internal/events"
	"github.com/jeranaias/campusbot/internal/model"
	"github.com/jeranaias/campusbot/internal/ui/components"
	"github.com/jeranaias/campusbot/internal/ui/styles"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	inputPlaceholder    = "Ask a question..."
	lockedPlaceholder   = "Please wait a moment..."
	feedbackPlaceholder = "Tell us more (optional)"

	// NothingToRateText is shown when like/dislike has no answer to rate.
	NothingToRateText = "There is no answer to rate yet"
	// FeedbackFailedText is shown when the feedback request fails.
	FeedbackFailedText = "Failed to submit feedback"

	feedbackTimeout = 15 * time.Second
	eventBuffer     = 256
)

// ErrUnknownScreen is returned by New when the initial screen does not exist.
var ErrUnknownScreen = errors.New("unknown screen")

// =============================================================================
// BACKEND
// =============================================================================

// Backend is what the chat model drives. *session.Session implements it.
type Backend interface {
	Screens() []config.ScreenConfig
	Machine(screen string) (*conversation.Machine, bool)
	Bus() *events.Bus
	SendFeedback(ctx context.Context, screen string, sentiment answer.Sentiment, message string) (string, error)
}

// Options configures the chat model.
type Options struct {
	Theme *styles.Theme

	// Screen is the screen shown first; empty means the first one.
	Screen string

	// Markdown renders answers with glamour.
	Markdown bool

	KeyMap *KeyMap
}

// =============================================================================
// MODEL
// =============================================================================

// screenState is the model's view of one screen.
type screenState struct {
	cfg     config.ScreenConfig
	machine *conversation.Machine
	chips   *components.Suggestions

	turns  []model.Turn
	open   bool
	locked bool
}

func (s *screenState) inFlight() bool {
	for i := range s.turns {
		if s.turns[i].InFlight() {
			return true
		}
	}
	return false
}

func (s *screenState) pending() bool {
	for i := range s.turns {
		if s.turns[i].Role == model.RoleAssistant && s.turns[i].Status == model.StatusPending {
			return true
		}
	}
	return false
}

// feedbackForm holds an open like/dislike form.
type feedbackForm struct {
	screen    string
	sentiment answer.Sentiment
	input     textinput.Model
}

// Model is the bubbletea model of the chat TUI.
type Model struct {
	backend Backend
	theme   *styles.Theme
	keys    KeyMap

	screens []*screenState
	active  int

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	help     help.Model
	markdown *components.Markdown
	toasts   *components.ToastManager
	feedback *feedbackForm

	events     <-chan events.Event
	stopEvents func()

	spinning     bool
	toastTicking bool
	width        int
	height       int
	ready        bool
	quitting     bool
}

// New creates the chat model and subscribes it to the backend's bus.
// Call Close once the program has exited.
func New(backend Backend, opts Options) (Model, error) {
	theme := opts.Theme
	if theme == nil {
		theme = styles.NewTheme(styles.ModeAuto)
	}
	keys := DefaultKeyMap()
	if opts.KeyMap != nil {
		keys = *opts.KeyMap
	}

	m := Model{
		backend: backend,
		theme:   theme,
		keys:    keys,
		toasts:  components.NewToastManager(),
		help:    help.New(),
	}

	for _, sc := range backend.Screens() {
		machine, ok := backend.Machine(sc.Name)
		if !ok {
			continue
		}
		m.screens = append(m.screens, &screenState{
			cfg:     sc,
			machine: machine,
			chips:   components.NewSuggestions(sc.Suggestions),
		})
	}
	if len(m.screens) == 0 {
		return Model{}, fmt.Errorf("%w: no screens configured", ErrUnknownScreen)
	}
	if opts.Screen != "" {
		idx := m.screenIndex(opts.Screen)
		if idx < 0 {
			return Model{}, fmt.Errorf("%w: %q", ErrUnknownScreen, opts.Screen)
		}
		m.active = idx
	}

	m.input = textinput.New()
	m.input.Placeholder = inputPlaceholder
	m.input.Prompt = "> "
	m.input.PromptStyle = theme.InputPrompt
	m.input.CharLimit = 0
	m.input.Focus()

	m.spinner = spinner.New()
	m.spinner.Spinner = spinner.Dot
	m.spinner.Style = theme.Thinking

	m.viewport = viewport.New(80, 20)
	m.markdown = components.NewMarkdown(theme.GlamourStyle(), 76, opts.Markdown)

	m.events, m.stopEvents = backend.Bus().Listen(eventBuffer,
		events.TopicTurnUpdated,
		events.TopicExchangeSettled,
		events.TopicWarning,
		events.TopicSessionReset,
		events.TopicConversationChanged,
		events.TopicLockoutEnded,
	)

	for _, s := range m.screens {
		m.sync(s)
	}
	m.refreshContent(true)
	return m, nil
}

// Close stops the bus subscription. Machines publishing after the program
// exited would otherwise block on the full buffer.
func (m Model) Close() {
	if m.stopEvents != nil {
		m.stopEvents()
	}
}

// Init starts listening for bus events.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.listen(), textinput.Blink)
}

// ActiveScreen returns the name of the screen being shown.
func (m Model) ActiveScreen() string {
	return m.current().cfg.Name
}

// Toasts returns the visible toasts, newest first.
func (m Model) Toasts() []components.Toast {
	return m.toasts.Toasts()
}

// =============================================================================
// HELPERS
// =============================================================================

func (m Model) current() *screenState {
	return m.screens[m.active]
}

func (m Model) screenIndex(name string) int {
	for i, s := range m.screens {
		if strings.EqualFold(s.cfg.Name, name) {
			return i
		}
	}
	return -1
}

func (m Model) screen(name string) *screenState {
	if i := m.screenIndex(name); i >= 0 {
		return m.screens[i]
	}
	return nil
}

// listen waits for the next bus event.
func (m Model) listen() tea.Cmd {
	ch := m.events
	return func() tea.Msg {
		return busMsg{ev: <-ch}
	}
}

// sync re-reads a screen's state from its machine.
func (m *Model) sync(s *screenState) {
	s.turns = s.machine.Snapshot()
	s.open = s.machine.IsOpen()
	s.locked = time.Now().Before(s.machine.LockedUntil())
}

// applyInputState focuses or blurs the input to match the active screen.
func (m *Model) applyInputState() {
	if m.current().locked {
		m.input.Blur()
		m.input.Placeholder = lockedPlaceholder
		return
	}
	m.input.Placeholder = inputPlaceholder
	if m.feedback == nil {
		m.input.Focus()
	}
}

// startTicking returns the commands needed for visible animations.
func (m *Model) startTicking() tea.Cmd {
	var cmds []tea.Cmd
	if !m.spinning && m.current().pending() {
		m.spinning = true
		cmds = append(cmds, m.spinner.Tick)
	}
	if !m.toastTicking && m.toasts.Len() > 0 {
		m.toastTicking = true
		cmds = append(cmds, components.ToastTickCmd())
	}
	return tea.Batch(cmds...)
}

// =============================================================================
// MACHINE COMMANDS
// =============================================================================

func submitCmd(machine *conversation.Machine, screen, query string) tea.Cmd {
	return func() tea.Msg {
		out, err := machine.Submit(context.Background(), query)
		return submittedMsg{screen: screen, query: query, out: out, err: err}
	}
}

func stopCmd(machine *conversation.Machine, screen string) tea.Cmd {
	return func() tea.Msg {
		machine.RequestCancelStreaming()
		return actionDoneMsg{screen: screen}
	}
}

// newSessionCmd resets every screen through the bus, the same request the
// chat REPL's /new sends.
func newSessionCmd(bus *events.Bus, screen string) tea.Cmd {
	return func() tea.Msg {
		bus.RequestNewSession("tui")
		return actionDoneMsg{screen: screen}
	}
}

func sendFeedbackCmd(backend Backend, screen string, sentiment answer.Sentiment, message string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), feedbackTimeout)
		defer cancel()
		_, err := backend.SendFeedback(ctx, screen, sentiment, message)
		return feedbackSentMsg{sentiment: sentiment, err: err}
	}
}

// FeedbackAck is the confirmation shown after feedback is accepted.
func FeedbackAck(s answer.Sentiment) string {
	if s == answer.SentimentPositive {
		return "Feedback submitted with a like"
	}
	return "Feedback submitted with a dislike"
}
