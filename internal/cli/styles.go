// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/campusbot/internal/events"
	"github.com/jeranaias/campusbot/internal/ui/styles"
)

// printer styles line-mode output for one writer. Colors are dropped when
// the writer is not a terminal.
type printer struct {
	w io.Writer

	title   lipgloss.Style
	label   lipgloss.Style
	dim     lipgloss.Style
	success lipgloss.Style
	warning lipgloss.Style
	errorS  lipgloss.Style
	info    lipgloss.Style
	prompt  lipgloss.Style
}

func newPrinter(w io.Writer) *printer {
	r := lipgloss.NewRenderer(w)
	r.SetColorProfile(colorProfile(w))
	return &printer{
		w:       w,
		title:   r.NewStyle().Bold(true).Foreground(styles.Cyan),
		label:   r.NewStyle().Foreground(styles.TextSecondary),
		dim:     r.NewStyle().Foreground(styles.TextMuted),
		success: r.NewStyle().Bold(true).Foreground(styles.Emerald),
		warning: r.NewStyle().Foreground(styles.Amber),
		errorS:  r.NewStyle().Bold(true).Foreground(styles.Rose),
		info:    r.NewStyle().Foreground(styles.Cyan),
		prompt:  r.NewStyle().Bold(true).Foreground(styles.Purple),
	}
}

func (p *printer) line(s string) {
	io.WriteString(p.w, s+"\n")
}

// warn prints a bus warning with its indicator.
func (p *printer) warn(w events.Warning) {
	ind, style := styles.Indicators.Info, p.info
	switch w.Level {
	case events.LevelSuccess:
		ind, style = styles.Indicators.Success, p.success
	case events.LevelWarning:
		ind, style = styles.Indicators.Warning, p.warning
	case events.LevelError:
		ind, style = styles.Indicators.Error, p.errorS
	}
	p.line(style.Render(ind + " " + w.Message))
}

// field prints an aligned "label  value" row.
func (p *printer) field(label, value string, width int) {
	pad := width - len(label)
	if pad < 1 {
		pad = 1
	}
	p.line(p.label.Render(label) + strings.Repeat(" ", pad) + value)
}

func warningf(format string, args ...any) events.Warning {
	return events.Warning{Level: events.LevelWarning, Message: fmt.Sprintf(format, args...)}
}
