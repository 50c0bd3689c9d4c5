// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strconv"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/jeranaias/campusbot/internal/events"
	"github.com/jeranaias/campusbot/internal/ui/styles"
)

// =============================================================================
// TOAST TYPES
// =============================================================================

// Display durations per level. Errors stay longest so they can be read.
const (
	InfoToastDuration    = 4 * time.Second
	WarningToastDuration = 6 * time.Second
	ErrorToastDuration   = 8 * time.Second
)

// MaxToasts is the number of toasts kept visible at once.
const MaxToasts = 4

// Toast is a transient, non-blocking notice.
type Toast struct {
	ID        int
	Message   string
	Level     events.Level
	CreatedAt time.Time
	Duration  time.Duration
}

// DurationFor returns how long a toast of level stays visible.
func DurationFor(level events.Level) time.Duration {
	switch level {
	case events.LevelError:
		return ErrorToastDuration
	case events.LevelWarning:
		return WarningToastDuration
	default:
		return InfoToastDuration
	}
}

// expired reports whether the toast is due for removal at now.
func (t Toast) expired(now time.Time) bool {
	return now.Sub(t.CreatedAt) >= t.Duration
}

// Remaining returns the display time left at now.
func (t Toast) Remaining(now time.Time) time.Duration {
	left := t.Duration - now.Sub(t.CreatedAt)
	if left < 0 {
		return 0
	}
	return left
}

// =============================================================================
// TOAST MANAGER
// =============================================================================

// ToastManager holds the visible toasts, newest first.
type ToastManager struct {
	mu     sync.Mutex
	toasts []Toast
	nextID int
	now    func() time.Time
}

// NewToastManager creates an empty manager.
func NewToastManager() *ToastManager {
	return &ToastManager{nextID: 1, now: time.Now}
}

// Add shows message at level and returns the toast ID. Repeating the newest
// message restarts its timer instead of stacking a copy.
func (m *ToastManager) Add(level events.Level, message string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if len(m.toasts) > 0 && m.toasts[0].Message == message && m.toasts[0].Level == level {
		m.toasts[0].CreatedAt = now
		return m.toasts[0].ID
	}

	t := Toast{
		ID:        m.nextID,
		Message:   message,
		Level:     level,
		CreatedAt: now,
		Duration:  DurationFor(level),
	}
	m.nextID++
	m.toasts = append([]Toast{t}, m.toasts...)
	if len(m.toasts) > MaxToasts {
		m.toasts = m.toasts[:MaxToasts]
	}
	return t.ID
}

// Dismiss removes the newest toast. It returns false when there is none.
func (m *ToastManager) Dismiss() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.toasts) == 0 {
		return false
	}
	m.toasts = m.toasts[1:]
	return true
}

// Tick drops expired toasts and reports whether any remain.
func (m *ToastManager) Tick() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	active := m.toasts[:0]
	for _, t := range m.toasts {
		if !t.expired(now) {
			active = append(active, t)
		}
	}
	m.toasts = active
	return len(m.toasts) > 0
}

// Toasts returns a copy of the visible toasts, newest first.
func (m *ToastManager) Toasts() []Toast {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Toast(nil), m.toasts...)
}

// Len returns the number of visible toasts.
func (m *ToastManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.toasts)
}

// =============================================================================
// TICKING
// =============================================================================

// ToastTickMsg is delivered while toasts are visible.
type ToastTickMsg struct {
	Time time.Time
}

// ToastTickCmd schedules the next toast expiry check.
func ToastTickCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return ToastTickMsg{Time: t}
	})
}

// =============================================================================
// RENDERING
// =============================================================================

// RenderToast renders one toast no wider than width cells.
func RenderToast(t Toast, width int, now time.Time) string {
	maxWidth := 60
	if width > 0 && width-4 < maxWidth {
		maxWidth = width - 4
	}
	if maxWidth < 24 {
		maxWidth = 24
	}

	color, icon := toastLook(t.Level)
	iconStyle := lipgloss.NewStyle().Foreground(color).Bold(true)
	textStyle := lipgloss.NewStyle().Foreground(styles.TextPrimary)
	hintStyle := lipgloss.NewStyle().Foreground(styles.TextMuted).Italic(true)

	body := wrapText(t.Message, maxWidth-runewidth.StringWidth(icon)-5)
	content := iconStyle.Render(icon) + " " + textStyle.Render(body)
	if secs := int(t.Remaining(now).Seconds()); secs > 0 {
		content += "\n" + hintStyle.Render("ctrl+x dismiss  "+strconv.Itoa(secs)+"s")
	}

	return lipgloss.NewStyle().
		Background(styles.SurfaceDim).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(color).
		Padding(0, 1).
		Render(content)
}

// RenderToastStack renders toasts right-aligned within width, oldest on top.
func RenderToastStack(toasts []Toast, width int, now time.Time) string {
	if len(toasts) == 0 {
		return ""
	}
	rendered := make([]string, 0, len(toasts))
	for i := len(toasts) - 1; i >= 0; i-- {
		rendered = append(rendered, RenderToast(toasts[i], width, now))
	}
	stack := lipgloss.JoinVertical(lipgloss.Right, rendered...)
	if width <= 0 {
		return stack
	}
	return lipgloss.PlaceHorizontal(width, lipgloss.Right, stack)
}

func toastLook(level events.Level) (lipgloss.AdaptiveColor, string) {
	switch level {
	case events.LevelError:
		return styles.Rose, styles.Indicators.Error
	case events.LevelWarning:
		return styles.Amber, styles.Indicators.Warning
	case events.LevelSuccess:
		return styles.Emerald, styles.Indicators.Success
	default:
		return styles.Cyan, styles.Indicators.Info
	}
}

// wrapText word-wraps text to width display cells.
func wrapText(text string, width int) string {
	if width <= 0 {
		return text
	}
	words := strings.Fields(text)
	if len(words) == 0 {
		return text
	}

	var lines []string
	var line strings.Builder
	lineWidth := 0
	for _, w := range words {
		ww := runewidth.StringWidth(w)
		if lineWidth > 0 && lineWidth+1+ww > width {
			lines = append(lines, line.String())
			line.Reset()
			lineWidth = 0
		}
		if lineWidth > 0 {
			line.WriteByte(' ')
			lineWidth++
		}
		line.WriteString(w)
		lineWidth += ww
	}
	lines = append(lines, line.String())
	return strings.Join(lines, "\n")
}
