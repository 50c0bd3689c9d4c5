// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for a question/answer conversation.
package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-runewidth"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the author of a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	default:
		return string(r)
	}
}

// =============================================================================
// STATUS AND SOURCE
// =============================================================================

// Status is the lifecycle stage of a turn.
type Status string

const (
	// StatusPending means the answer service has not resolved yet.
	StatusPending Status = "pending"
	// StatusStreaming means the answer is known and being revealed.
	StatusStreaming Status = "streaming"
	// StatusSettled means the turn is frozen.
	StatusSettled Status = "settled"
)

// Source records why an assistant turn carries its text.
type Source string

const (
	SourceNone       Source = ""
	SourceAnswer     Source = "answer"
	SourceModeration Source = "moderation"
	SourceFallback   Source = "fallback"
)

// =============================================================================
// TURN TYPE
// =============================================================================

// Turn is one half of an exchange.
type Turn struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`

	// RawText is the user query, or the full assistant answer once known.
	RawText string `json:"raw_text"`

	// VisibleText is the revealed prefix of RawText (assistant only).
	VisibleText string `json:"visible_text,omitempty"`

	Status Status `json:"status"`
	Source Source `json:"source,omitempty"`

	// Stopped is set when the user stopped the reveal before it finished.
	Stopped bool `json:"stopped,omitempty"`

	SettledAt time.Time `json:"settled_at,omitempty"`
}

// NewUserTurn creates a settled user turn holding the submitted query.
func NewUserTurn(query string) *Turn {
	now := time.Now()
	return &Turn{
		ID:        generateID(),
		Role:      RoleUser,
		CreatedAt: now,
		RawText:   query,
		Status:    StatusSettled,
		SettledAt: now,
	}
}

// NewAssistantTurn creates a pending assistant turn with no text.
func NewAssistantTurn() *Turn {
	return &Turn{
		ID:        generateID(),
		Role:      RoleAssistant,
		CreatedAt: time.Now(),
		Status:    StatusPending,
	}
}

// =============================================================================
// TURN TRANSITIONS
// =============================================================================

// BeginStreaming records the full answer and moves a pending turn to streaming.
// Returns false if the turn is not pending.
func (t *Turn) BeginStreaming(raw string) bool {
	if t.Status != StatusPending {
		return false
	}
	t.RawText = raw
	t.VisibleText = ""
	t.Source = SourceAnswer
	t.Status = StatusStreaming
	return true
}

// Reveal sets VisibleText to prefix while streaming.
// The prefix must extend the current visible text and be a prefix of RawText,
// otherwise the call is ignored and false is returned.
func (t *Turn) Reveal(prefix string) bool {
	if t.Status != StatusStreaming {
		return false
	}
	if len(prefix) < len(t.VisibleText) || !strings.HasPrefix(prefix, t.VisibleText) {
		return false
	}
	if !strings.HasPrefix(t.RawText, prefix) {
		return false
	}
	t.VisibleText = prefix
	return true
}

// Finish settles a streaming turn with its full text revealed.
func (t *Turn) Finish() bool {
	if t.Status != StatusStreaming {
		return false
	}
	t.VisibleText = t.RawText
	t.settle()
	return true
}

// Settle freezes an unsettled turn with text that is not streamed
// (canned moderation replies and fallbacks).
func (t *Turn) Settle(text string, source Source) bool {
	if t.Status == StatusSettled {
		return false
	}
	t.RawText = text
	t.VisibleText = text
	t.Source = source
	t.settle()
	return true
}

// Stop freezes an unsettled turn at whatever has been revealed so far.
// RawText is truncated to the visible prefix so the two agree afterwards.
func (t *Turn) Stop() bool {
	if t.Status == StatusSettled {
		return false
	}
	if t.Status == StatusPending {
		t.Source = SourceAnswer
	}
	t.RawText = t.VisibleText
	t.Stopped = true
	t.settle()
	return true
}

func (t *Turn) settle() {
	t.Status = StatusSettled
	t.SettledAt = time.Now()
}

// =============================================================================
// TURN ACCESSORS
// =============================================================================

// InFlight reports whether the turn is an unsettled assistant turn.
func (t *Turn) InFlight() bool {
	return t.Role == RoleAssistant && t.Status != StatusSettled
}

// IsSettled reports whether the turn is frozen.
func (t *Turn) IsSettled() bool {
	return t.Status == StatusSettled
}

// DisplayText returns the text to render: the query for user turns and the
// revealed prefix for assistant turns.
func (t *Turn) DisplayText() string {
	if t.Role == RoleUser {
		return t.RawText
	}
	return t.VisibleText
}

// Preview returns the display text truncated to width terminal columns.
func (t *Turn) Preview(width int) string {
	text := strings.Join(strings.Fields(t.DisplayText()), " ")
	return runewidth.Truncate(text, width, "...")
}

func generateID() string {
	return "turn_" + uuid.NewString()
}
