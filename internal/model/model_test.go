// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"strings"
	"testing"
)

// =============================================================================
// TURN TESTS
// =============================================================================

func TestNewTurns(t *testing.T) {
	user := NewUserTurn("when is the fee deadline?")
	if user.Role != RoleUser || user.Status != StatusSettled {
		t.Errorf("user turn = %+v, want settled user", user)
	}
	if user.DisplayText() != "when is the fee deadline?" {
		t.Errorf("DisplayText() = %q", user.DisplayText())
	}

	reply := NewAssistantTurn()
	if !reply.InFlight() {
		t.Error("new assistant turn should be in flight")
	}
	if reply.ID == user.ID {
		t.Error("turn IDs must be unique")
	}
}

func TestTurn_RevealMonotonic(t *testing.T) {
	turn := NewAssistantTurn()
	if turn.Reveal("x") {
		t.Fatal("Reveal on a pending turn should be ignored")
	}
	if !turn.BeginStreaming("Hello there world") {
		t.Fatal("BeginStreaming failed")
	}

	tests := []struct {
		prefix string
		ok     bool
		want   string
	}{
		{"Hello ", true, "Hello "},
		{"Hello there ", true, "Hello there "},
		{"Hello ", false, "Hello there "},        // shrinking
		{"Hello therx ", false, "Hello there "},  // diverges from visible
		{"Hello there world!", false, "Hello there "}, // exceeds raw
		{"Hello there world", true, "Hello there world"},
	}
	for _, tc := range tests {
		if got := turn.Reveal(tc.prefix); got != tc.ok {
			t.Errorf("Reveal(%q) = %v, want %v", tc.prefix, got, tc.ok)
		}
		if turn.VisibleText != tc.want {
			t.Errorf("after Reveal(%q) VisibleText = %q, want %q", tc.prefix, turn.VisibleText, tc.want)
		}
	}
}

func TestTurn_Finish(t *testing.T) {
	turn := NewAssistantTurn()
	turn.BeginStreaming("full answer")
	turn.Reveal("full ")
	if !turn.Finish() {
		t.Fatal("Finish failed")
	}
	if turn.VisibleText != turn.RawText || turn.Status != StatusSettled {
		t.Errorf("finished turn = %+v", turn)
	}
	if turn.Finish() || turn.Settle("again", SourceFallback) || turn.Stop() {
		t.Error("settled turn must not transition again")
	}
}

func TestTurn_Stop(t *testing.T) {
	t.Run("streaming", func(t *testing.T) {
		turn := NewAssistantTurn()
		turn.BeginStreaming("one two three")
		turn.Reveal("one ")
		turn.Stop()
		if turn.VisibleText != "one " || turn.RawText != "one " || !turn.Stopped {
			t.Errorf("stopped turn = %+v", turn)
		}
	})

	t.Run("pending", func(t *testing.T) {
		turn := NewAssistantTurn()
		turn.Stop()
		if turn.DisplayText() != "" || !turn.IsSettled() {
			t.Errorf("stopped pending turn = %+v", turn)
		}
		if turn.BeginStreaming("late answer") {
			t.Error("late answer must not restart a stopped turn")
		}
	})
}

func TestTurn_Settle(t *testing.T) {
	turn := NewAssistantTurn()
	turn.Settle("Error fetching response", SourceFallback)
	if turn.VisibleText != "Error fetching response" || turn.Source != SourceFallback {
		t.Errorf("settled turn = %+v", turn)
	}
}

func TestTurn_Preview(t *testing.T) {
	turn := NewUserTurn("what   is\nthe hostel fee structure for first year students")
	got := turn.Preview(20)
	if !strings.HasSuffix(got, "...") {
		t.Errorf("Preview() = %q, want ellipsis", got)
	}
	if strings.Contains(got, "\n") {
		t.Errorf("Preview() = %q, should collapse whitespace", got)
	}
}

func TestRole_DisplayName(t *testing.T) {
	if RoleUser.DisplayName() != "You" || RoleAssistant.DisplayName() != "Assistant" {
		t.Error("unexpected display names")
	}
	if Role("other").DisplayName() != "other" {
		t.Error("unknown role should display verbatim")
	}
}

// =============================================================================
// LOG TESTS
// =============================================================================

func TestLog_InFlightAndSnapshot(t *testing.T) {
	log := NewLog()
	if log.InFlight() != nil || log.Last() != nil {
		t.Fatal("empty log should have no turns")
	}

	user := NewUserTurn("hi there friend")
	reply := NewAssistantTurn()
	log.Append(user, reply)

	if log.InFlight() != reply {
		t.Error("InFlight() should return the pending reply")
	}

	snap := log.Snapshot()
	reply.BeginStreaming("changed")
	if snap[1].Status != StatusPending {
		t.Error("snapshot must not alias live turns")
	}
	if log.Get(user.ID) != user {
		t.Error("Get() did not find user turn")
	}
}

func TestLog_LastExchange(t *testing.T) {
	log := NewLog()
	if _, ok := log.LastExchange(); ok {
		t.Error("empty log has no exchange")
	}

	user := NewUserTurn("q")
	reply := NewAssistantTurn()
	log.Append(user, reply)
	if _, ok := log.LastExchange(); ok {
		t.Error("pending exchange should not be returned")
	}

	reply.Settle("a", SourceModeration)
	ex, ok := log.LastExchange()
	if !ok || ex.User.RawText != "q" || ex.Assistant.RawText != "a" {
		t.Errorf("LastExchange() = %+v, %v", ex, ok)
	}

	if got, ok := log.ExchangeFor(reply.ID); !ok || got.User.ID != user.ID {
		t.Errorf("ExchangeFor() = %+v, %v", got, ok)
	}

	log.Reset()
	if !log.IsEmpty() {
		t.Error("Reset() should clear the log")
	}
}
