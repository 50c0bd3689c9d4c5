// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"errors"
	"strings"
	"sync"
	"time"
)

// DefaultInterval is the delay between reveal ticks when none is given.
const DefaultInterval = 30 * time.Millisecond

// ErrAlreadyStarted is returned when Start is called twice on one Streamer.
var ErrAlreadyStarted = errors.New("streamer already started")

// =============================================================================
// TICK SOURCE
// =============================================================================

// TickSource produces ticks every interval until stop is called.
type TickSource func(interval time.Duration) (ticks <-chan time.Time, stop func())

// TickerSource is the production tick source backed by time.Ticker.
func TickerSource(interval time.Duration) (<-chan time.Time, func()) {
	ticker := time.NewTicker(interval)
	return ticker.C, ticker.Stop
}

// Option configures a Streamer.
type Option func(*Streamer)

// WithTickSource replaces the ticker, mainly so tests can drive ticks by hand.
func WithTickSource(src TickSource) Option {
	return func(s *Streamer) {
		if src != nil {
			s.source = src
		}
	}
}

// =============================================================================
// STREAMER
// =============================================================================

// Streamer owns one reveal run: its tokens, cursor, tick source and guards.
// A Streamer is single-use. Cancel may be called from any goroutine.
type Streamer struct {
	source TickSource

	mu        sync.Mutex
	started   bool
	cancelled bool
	completed bool

	quit     chan struct{}
	quitOnce sync.Once
	done     chan struct{}
}

// NewStreamer creates an idle Streamer.
func NewStreamer(opts ...Option) *Streamer {
	s := &Streamer{
		source: TickerSource,
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start begins revealing tokens, one per tick, on a new goroutine.
//
// onTick receives the concatenation of every token revealed so far.
// onComplete runs exactly once, after the last token, unless the run was
// cancelled. shouldContinue is consulted before each tick; returning false
// ends the run silently. An empty token list completes on the first tick.
//
// If Cancel was called before Start, Start returns nil without running.
func (s *Streamer) Start(tokens []string, onTick func(prefix string), onComplete func(), interval time.Duration, shouldContinue func() bool) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.started = true
	if s.cancelled {
		s.mu.Unlock()
		close(s.done)
		return nil
	}
	s.mu.Unlock()

	if interval <= 0 {
		interval = DefaultInterval
	}
	ticks, stop := s.source(interval)

	go s.run(tokens, ticks, stop, onTick, onComplete, shouldContinue)
	return nil
}

func (s *Streamer) run(tokens []string, ticks <-chan time.Time, stop func(), onTick func(string), onComplete func(), shouldContinue func() bool) {
	defer close(s.done)
	defer stop()

	var revealed strings.Builder
	cursor := 0
	for {
		select {
		case <-s.quit:
			return
		case _, ok := <-ticks:
			if !ok {
				return
			}
		}

		if s.Cancelled() {
			return
		}
		if shouldContinue != nil && !shouldContinue() {
			s.markCancelled()
			return
		}

		if cursor < len(tokens) {
			revealed.WriteString(tokens[cursor])
			cursor++
			if onTick != nil && !s.Cancelled() {
				onTick(revealed.String())
			}
		}

		if cursor >= len(tokens) {
			if s.markCompleted() && onComplete != nil {
				onComplete()
			}
			return
		}
	}
}

// Cancel stops the run. It is idempotent and a no-op once the run completed.
func (s *Streamer) Cancel() {
	if !s.markCancelled() {
		return
	}
	s.quitOnce.Do(func() { close(s.quit) })
}

// Done is closed once the run goroutine has exited, or immediately when a
// Streamer cancelled before Start is started.
func (s *Streamer) Done() <-chan struct{} {
	return s.done
}

// Cancelled reports whether the run was cancelled.
func (s *Streamer) Cancelled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelled
}

// Completed reports whether every token was revealed.
func (s *Streamer) Completed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.completed
}

func (s *Streamer) markCancelled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.completed || s.cancelled {
		return false
	}
	s.cancelled = true
	return true
}

func (s *Streamer) markCompleted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.completed || s.cancelled {
		return false
	}
	s.completed = true
	return true
}
