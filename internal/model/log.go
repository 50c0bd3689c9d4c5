// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for a question/answer conversation.
package model

// =============================================================================
// LOG TYPE
// =============================================================================

// Log holds the ordered turns of one conversation.
// Turns are only ever appended; Reset is the single way to remove them.
type Log struct {
	turns []*Turn
}

// NewLog creates an empty log.
func NewLog() *Log {
	return &Log{turns: make([]*Turn, 0, 16)}
}

// Append adds turns to the end of the log.
func (l *Log) Append(turns ...*Turn) {
	l.turns = append(l.turns, turns...)
}

// Len returns the number of turns.
func (l *Log) Len() int {
	return len(l.turns)
}

// IsEmpty reports whether the log has no turns.
func (l *Log) IsEmpty() bool {
	return len(l.turns) == 0
}

// Get returns the live turn with the given ID, or nil.
func (l *Log) Get(id string) *Turn {
	for i := len(l.turns) - 1; i >= 0; i-- {
		if l.turns[i].ID == id {
			return l.turns[i]
		}
	}
	return nil
}

// Last returns the newest turn, or nil when the log is empty.
func (l *Log) Last() *Turn {
	if len(l.turns) == 0 {
		return nil
	}
	return l.turns[len(l.turns)-1]
}

// InFlight returns the unsettled assistant turn, or nil.
// Only the newest turn can be unsettled.
func (l *Log) InFlight() *Turn {
	last := l.Last()
	if last != nil && last.InFlight() {
		return last
	}
	return nil
}

// Reset removes every turn.
func (l *Log) Reset() {
	l.turns = make([]*Turn, 0, 16)
}

// Snapshot returns value copies of all turns in order.
func (l *Log) Snapshot() []Turn {
	out := make([]Turn, len(l.turns))
	for i, t := range l.turns {
		out[i] = *t
	}
	return out
}

// =============================================================================
// EXCHANGES
// =============================================================================

// Exchange pairs a user turn with the assistant turn that answered it.
type Exchange struct {
	User      Turn
	Assistant Turn
}

// LastExchange returns the newest exchange if its assistant turn is settled
// and directly follows its user turn.
func (l *Log) LastExchange() (Exchange, bool) {
	n := len(l.turns)
	if n < 2 {
		return Exchange{}, false
	}
	user, reply := l.turns[n-2], l.turns[n-1]
	if user.Role != RoleUser || reply.Role != RoleAssistant || !reply.IsSettled() {
		return Exchange{}, false
	}
	return Exchange{User: *user, Assistant: *reply}, true
}

// ExchangeFor returns the exchange whose assistant turn has the given ID.
func (l *Log) ExchangeFor(assistantID string) (Exchange, bool) {
	for i := 1; i < len(l.turns); i++ {
		if l.turns[i].ID != assistantID {
			continue
		}
		user := l.turns[i-1]
		if user.Role != RoleUser || l.turns[i].Role != RoleAssistant {
			return Exchange{}, false
		}
		return Exchange{User: *user, Assistant: *l.turns[i]}, true
	}
	return Exchange{}, false
}
