// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package events provides a typed publish/subscribe bus connecting the
// conversation machine to whatever presents it.
package events

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/jeranaias/campusbot/internal/model"
)

// =============================================================================
// TOPICS
// =============================================================================

// Topic names a kind of event.
type Topic string

const (
	// TopicTurnUpdated fires whenever a turn is created or changes.
	TopicTurnUpdated Topic = "turn.updated"
	// TopicExchangeSettled fires once an assistant turn is frozen.
	TopicExchangeSettled Topic = "exchange.settled"
	// TopicWarning carries a transient notice for the user.
	TopicWarning Topic = "warning"
	// TopicSessionReset fires after the conversation was cleared.
	TopicSessionReset Topic = "session.reset"
	// TopicNewSessionRequested asks every machine on the bus to reset.
	TopicNewSessionRequested Topic = "session.new_requested"
	// TopicConversationChanged fires when a conversation opens or closes.
	TopicConversationChanged Topic = "conversation.changed"
	// TopicLockoutEnded fires when an input lockout expires.
	TopicLockoutEnded Topic = "lockout.ended"
)

// =============================================================================
// EVENT TYPES
// =============================================================================

// Level is the severity of a warning.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Warning is a transient notice shown as a toast.
type Warning struct {
	Level   Level
	Message string
}

// Event is a single bus message. Only the fields relevant to Topic are set.
type Event struct {
	Seq    uint64
	Topic  Topic
	At     time.Time
	Source string // screen or component that published the event

	Turn     *model.Turn
	Exchange *model.Exchange
	Warning  *Warning
	Open     bool // TopicConversationChanged
}

// Handler receives events. Handlers run on the publisher's goroutine.
type Handler func(Event)

// =============================================================================
// BUS
// =============================================================================

// Bus dispatches events synchronously to subscribers of their topic.
// It is safe for concurrent use. Publishing from inside a handler is allowed.
type Bus struct {
	mu     sync.RWMutex
	subs   map[Topic]map[uint64]Handler
	nextID uint64

	sequence atomic.Uint64
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[Topic]map[uint64]Handler)}
}

// Subscribe registers h for every given topic and returns a function that
// removes the subscription. The returned function is idempotent.
func (b *Bus) Subscribe(h Handler, topics ...Topic) (unsubscribe func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	for _, t := range topics {
		if b.subs[t] == nil {
			b.subs[t] = make(map[uint64]Handler)
		}
		b.subs[t][id] = h
	}
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			for _, t := range topics {
				delete(b.subs[t], id)
			}
		})
	}
}

// Publish stamps ev with a sequence number and time and delivers it to every
// current subscriber of ev.Topic.
func (b *Bus) Publish(ev Event) {
	ev.Seq = b.sequence.Add(1)
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subs[ev.Topic]))
	for _, h := range b.subs[ev.Topic] {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(ev)
	}
}

// Warn publishes a warning.
func (b *Bus) Warn(source string, level Level, message string) {
	b.Publish(Event{
		Topic:   TopicWarning,
		Source:  source,
		Warning: &Warning{Level: level, Message: message},
	})
}

// RequestNewSession broadcasts a reset request to every listening machine.
func (b *Bus) RequestNewSession(source string) {
	b.Publish(Event{Topic: TopicNewSessionRequested, Source: source})
}

// Subscribers returns the number of handlers registered for topic.
func (b *Bus) Subscribers(topic Topic) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}

// =============================================================================
// CHANNEL LISTENER
// =============================================================================

// Listen subscribes to topics and forwards events to a buffered channel.
// Delivery blocks the publisher while the buffer is full, so no event is
// dropped. After unsubscribe returns, nothing more is sent and blocked
// publishers are released. The channel is never closed.
func (b *Bus) Listen(buffer int, topics ...Topic) (<-chan Event, func()) {
	ch := make(chan Event, buffer)
	stop := make(chan struct{})

	unsub := b.Subscribe(func(ev Event) {
		select {
		case <-stop:
			return
		default:
		}
		select {
		case ch <- ev:
		case <-stop:
		}
	}, topics...)

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			close(stop)
			unsub()
		})
	}
}
