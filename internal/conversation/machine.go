// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/jeranaias/campusbot/internal/events"
	"github.com/jeranaias/campusbot/internal/model"
	"github.com/jeranaias/campusbot/internal/moderation"
	"github.com/jeranaias/campusbot/internal/storage"
	"github.com/jeranaias/campusbot/internal/stream"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrInFlight is returned when a query is submitted while an answer is
	// still pending or streaming.
	ErrInFlight = errors.New("an answer is still in progress")

	// ErrLockedOut is returned while input is locked after a too-long query.
	ErrLockedOut = errors.New("input is temporarily locked")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("conversation closed")
)

// =============================================================================
// COLLABORATORS
// =============================================================================

// Answerer fetches the full answer for a query.
type Answerer interface {
	Ask(ctx context.Context, query string) (string, error)
}

// Archive stores settled exchanges.
type Archive interface {
	Record(ctx context.Context, ex storage.Exchange) error
}

// =============================================================================
// CONFIGURATION
// =============================================================================

// Config holds the Machine's tunables.
type Config struct {
	// Screen names the chat screen; it tags events, logs and archive rows.
	Screen string

	// Interval is the delay between reveal ticks.
	Interval time.Duration

	// ReplyDelay postpones canned moderation replies; 0 settles immediately.
	ReplyDelay time.Duration

	// FallbackText replaces the answer when the service call fails.
	FallbackText string

	// InFlightWarning is shown when a query is submitted mid-answer.
	InFlightWarning string

	// LockedWarning is shown when a query is submitted during a lockout.
	LockedWarning string

	// LockoutEndedText is shown when a lockout expires.
	LockoutEndedText string
}

// DefaultConfig returns the default Machine configuration.
func DefaultConfig() Config {
	return Config{
		Screen:           "assistant",
		Interval:         stream.DefaultInterval,
		FallbackText:     "Error fetching response",
		InFlightWarning:  "Please wait for the current response to finish!",
		LockedWarning:    "Please wait a moment before sending another question.",
		LockoutEndedText: "You can now continue typing",
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Screen == "" {
		c.Screen = d.Screen
	}
	if c.Interval <= 0 {
		c.Interval = d.Interval
	}
	if c.ReplyDelay < 0 {
		c.ReplyDelay = 0
	}
	if c.FallbackText == "" {
		c.FallbackText = d.FallbackText
	}
	if c.InFlightWarning == "" {
		c.InFlightWarning = d.InFlightWarning
	}
	if c.LockedWarning == "" {
		c.LockedWarning = d.LockedWarning
	}
	if c.LockoutEndedText == "" {
		c.LockoutEndedText = d.LockoutEndedText
	}
	return c
}

// Option configures a Machine.
type Option func(*Machine)

// WithLogger sets the structured logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(m *Machine) { m.logger = logger }
}

// WithArchive stores every settled exchange in a.
func WithArchive(a Archive) Option {
	return func(m *Machine) { m.archive = a }
}

// WithStreamerFactory replaces how reveal runs are created (tests inject
// manual tick sources here).
func WithStreamerFactory(fn func() *stream.Streamer) Option {
	return func(m *Machine) {
		if fn != nil {
			m.newStreamer = fn
		}
	}
}

// WithClock replaces time.Now for lockout bookkeeping.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) {
		if now != nil {
			m.now = now
		}
	}
}

// =============================================================================
// MACHINE
// =============================================================================

// Outcome describes what Submit did with a query.
type Outcome struct {
	Verdict moderation.Verdict

	// UserTurnID and AssistantTurnID are empty for toast verdicts.
	UserTurnID      string
	AssistantTurnID string

	// Dispatched is true when the query was sent to the answer service.
	Dispatched bool
}

// Machine owns one screen's turn log.
type Machine struct {
	cfg        Config
	classifier moderation.Classifier
	answerer   Answerer
	bus        *events.Bus
	archive    Archive
	logger     zerolog.Logger

	newStreamer func() *stream.Streamer
	now         func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	unsub  func()

	mu          sync.Mutex
	log         *model.Log
	gen         uint64
	active      *stream.Streamer
	replyTimer  *time.Timer
	lockTimer   *time.Timer
	lockedUntil time.Time
	closed      bool
}

// New creates a Machine and subscribes it to new-session requests on bus.
func New(cfg Config, classifier moderation.Classifier, answerer Answerer, bus *events.Bus, opts ...Option) *Machine {
	ctx, cancel := context.WithCancel(context.Background())
	if bus == nil {
		bus = events.NewBus()
	}
	m := &Machine{
		cfg:         cfg.withDefaults(),
		classifier:  classifier,
		answerer:    answerer,
		bus:         bus,
		logger:      zerolog.Nop(),
		newStreamer: func() *stream.Streamer { return stream.NewStreamer() },
		now:         time.Now,
		ctx:         ctx,
		cancel:      cancel,
		log:         model.NewLog(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With().Str("screen", m.cfg.Screen).Logger()
	m.unsub = bus.Subscribe(func(events.Event) { m.RequestNewSession() }, events.TopicNewSessionRequested)
	return m
}

// Screen returns the screen name.
func (m *Machine) Screen() string {
	return m.cfg.Screen
}

// Bus returns the bus the Machine publishes on.
func (m *Machine) Bus() *events.Bus {
	return m.bus
}

// =============================================================================
// READERS
// =============================================================================

// Snapshot returns copies of every turn in order.
func (m *Machine) Snapshot() []model.Turn {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.log.Snapshot()
}

// InFlight reports whether an assistant turn is pending or streaming.
func (m *Machine) InFlight() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.log.InFlight() != nil
}

// LockedUntil returns when the current input lockout ends (zero if none).
func (m *Machine) LockedUntil() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.now().Before(m.lockedUntil) {
		return time.Time{}
	}
	return m.lockedUntil
}

// IsOpen reports whether the conversation has any turns.
func (m *Machine) IsOpen() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.log.IsEmpty()
}

// LastExchange returns the newest exchange when its answer is settled.
func (m *Machine) LastExchange() (model.Exchange, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.log.LastExchange()
}

// =============================================================================
// SUBMIT
// =============================================================================

// Submit moderates query and, if allowed, starts an exchange.
// Rejections caused by state (ErrInFlight, ErrLockedOut) leave the log
// unchanged and publish a warning. Moderation rejections are not errors.
func (m *Machine) Submit(ctx context.Context, query string) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return Outcome{}, ErrClosed
	}
	if m.log.InFlight() != nil {
		m.mu.Unlock()
		m.logger.Debug().Msg("submit_rejected_in_flight")
		m.warn(events.LevelWarning, m.cfg.InFlightWarning)
		return Outcome{}, ErrInFlight
	}
	if m.now().Before(m.lockedUntil) {
		m.mu.Unlock()
		m.warn(events.LevelWarning, m.cfg.LockedWarning)
		return Outcome{}, ErrLockedOut
	}

	verdict := m.classifier.Classify(query)
	out := Outcome{Verdict: verdict}

	if !verdict.Allowed && verdict.Kind == moderation.KindToast {
		m.armLockoutLocked(verdict.Lockout)
		m.mu.Unlock()
		m.logger.Info().Str("rule", string(verdict.Rule)).Dur("lockout", verdict.Lockout).Msg("moderation_reject")
		m.warn(events.LevelError, verdict.Warning)
		return out, nil
	}

	opened := m.log.IsEmpty()
	user := model.NewUserTurn(query)
	reply := model.NewAssistantTurn()
	m.log.Append(user, reply)
	gen := m.gen
	out.UserTurnID, out.AssistantTurnID = user.ID, reply.ID

	var settled *model.Exchange
	switch {
	case !verdict.Allowed && m.cfg.ReplyDelay <= 0:
		reply.Settle(verdict.Reply, model.SourceModeration)
		settled = &model.Exchange{User: *user, Assistant: *reply}
	case !verdict.Allowed:
		text := verdict.Reply
		m.replyTimer = time.AfterFunc(m.cfg.ReplyDelay, func() {
			m.settleWith(gen, reply.ID, text, model.SourceModeration)
		})
	default:
		out.Dispatched = true
		m.wg.Add(1)
		go m.fetch(gen, reply.ID, query)
	}
	userSnap, replySnap := *user, *reply
	m.mu.Unlock()

	if verdict.Allowed {
		m.logger.Info().Int("query_len", len(query)).Msg("submit")
	} else {
		m.logger.Info().Str("rule", string(verdict.Rule)).Msg("moderation_reject")
	}

	if opened {
		m.publish(events.Event{Topic: events.TopicConversationChanged, Open: true})
	}
	m.publishTurn(userSnap)
	m.publishTurn(replySnap)
	if settled != nil {
		m.finishExchange(*settled)
	}
	return out, nil
}

// =============================================================================
// SERVICE CALL
// =============================================================================

func (m *Machine) fetch(gen uint64, turnID, query string) {
	defer m.wg.Done()

	start := time.Now()
	text, err := m.callService(query)
	if err != nil {
		m.logger.Error().Err(err).Dur("elapsed", time.Since(start)).Msg("service_error")
		m.settleWith(gen, turnID, m.cfg.FallbackText, model.SourceFallback)
		return
	}
	m.logger.Debug().Int("answer_len", len(text)).Dur("elapsed", time.Since(start)).Msg("service_answered")
	m.beginStreaming(gen, turnID, text)
}

// callService invokes the answerer, converting a panic into an error so the
// pending turn is always settled.
func (m *Machine) callService(query string) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("answer service panicked: %v", r)
		}
	}()
	return m.answerer.Ask(m.ctx, query)
}

// liveTurnLocked returns the turn if it still belongs to the current session.
func (m *Machine) liveTurnLocked(gen uint64, turnID string) *model.Turn {
	if gen != m.gen || m.closed {
		return nil
	}
	return m.log.Get(turnID)
}

func (m *Machine) beginStreaming(gen uint64, turnID, text string) {
	m.mu.Lock()
	turn := m.liveTurnLocked(gen, turnID)
	if turn == nil || !turn.BeginStreaming(text) {
		m.mu.Unlock()
		m.logger.Debug().Str("turn", turnID).Msg("late_answer_discarded")
		return
	}
	s := m.newStreamer()
	m.active = s
	snap := *turn
	m.mu.Unlock()

	m.publishTurn(snap)

	err := s.Start(stream.Tokenize(text),
		func(prefix string) { m.reveal(gen, turnID, prefix) },
		func() { m.completeStream(gen, turnID) },
		m.cfg.Interval,
		func() bool { return m.streaming(gen, turnID) },
	)
	if err != nil {
		m.logger.Error().Err(err).Msg("stream_start_failed")
		m.settleWith(gen, turnID, text, model.SourceAnswer)
		return
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		<-s.Done()
	}()
}

// =============================================================================
// STREAM CALLBACKS
// =============================================================================

func (m *Machine) streaming(gen uint64, turnID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	turn := m.liveTurnLocked(gen, turnID)
	return turn != nil && turn.Status == model.StatusStreaming
}

func (m *Machine) reveal(gen uint64, turnID, prefix string) {
	m.mu.Lock()
	turn := m.liveTurnLocked(gen, turnID)
	if turn == nil || !turn.Reveal(prefix) {
		m.mu.Unlock()
		return
	}
	snap := *turn
	m.mu.Unlock()

	m.publishTurn(snap)
}

func (m *Machine) completeStream(gen uint64, turnID string) {
	m.mu.Lock()
	turn := m.liveTurnLocked(gen, turnID)
	if turn == nil || !turn.Finish() {
		m.mu.Unlock()
		return
	}
	m.active = nil
	ex, _ := m.log.ExchangeFor(turnID)
	m.mu.Unlock()

	m.logger.Info().Int("answer_len", len(ex.Assistant.RawText)).Msg("stream_complete")
	m.publishTurn(ex.Assistant)
	m.finishExchange(ex)
}

// settleWith freezes a pending turn with text that is not streamed.
func (m *Machine) settleWith(gen uint64, turnID, text string, source model.Source) {
	m.mu.Lock()
	turn := m.liveTurnLocked(gen, turnID)
	if turn == nil || !turn.Settle(text, source) {
		m.mu.Unlock()
		return
	}
	m.active = nil
	ex, _ := m.log.ExchangeFor(turnID)
	m.mu.Unlock()

	m.publishTurn(ex.Assistant)
	m.finishExchange(ex)
}

// =============================================================================
// CANCEL AND RESET
// =============================================================================

// RequestCancelStreaming stops the in-flight answer and freezes it at its
// visible prefix. The service call, if still running, is not aborted; its
// result is dropped. Returns false when nothing was in flight.
func (m *Machine) RequestCancelStreaming() bool {
	m.mu.Lock()
	turn := m.log.InFlight()
	if turn == nil {
		m.mu.Unlock()
		return false
	}
	s := m.active
	m.active = nil
	if m.replyTimer != nil {
		m.replyTimer.Stop()
		m.replyTimer = nil
	}
	turn.Stop()
	ex, _ := m.log.ExchangeFor(turn.ID)
	m.mu.Unlock()

	if s != nil {
		s.Cancel()
	}
	m.logger.Info().Int("visible_len", len(ex.Assistant.VisibleText)).Msg("stream_cancelled")
	m.publishTurn(ex.Assistant)
	m.finishExchange(ex)
	return true
}

// RequestNewSession clears the conversation. It is safe in any state.
func (m *Machine) RequestNewSession() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	wasOpen := !m.log.IsEmpty()
	s := m.active
	m.active = nil
	m.gen++
	m.log.Reset()
	m.stopTimersLocked()
	m.lockedUntil = time.Time{}
	m.mu.Unlock()

	if s != nil {
		s.Cancel()
	}
	m.logger.Info().Msg("session_reset")
	m.publish(events.Event{Topic: events.TopicSessionReset})
	if wasOpen {
		m.publish(events.Event{Topic: events.TopicConversationChanged, Open: false})
	}
}

// Close stops every goroutine the Machine started and detaches it from the
// bus. In-flight service calls are cancelled.
func (m *Machine) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	s := m.active
	m.active = nil
	m.stopTimersLocked()
	m.mu.Unlock()

	m.unsub()
	m.cancel()
	if s != nil {
		s.Cancel()
	}
	m.wg.Wait()
}

// =============================================================================
// LOCKOUT
// =============================================================================

func (m *Machine) armLockoutLocked(d time.Duration) {
	if d <= 0 {
		return
	}
	m.lockedUntil = m.now().Add(d)
	if m.lockTimer != nil {
		m.lockTimer.Stop()
	}
	gen := m.gen
	m.lockTimer = time.AfterFunc(d, func() { m.endLockout(gen) })
}

func (m *Machine) endLockout(gen uint64) {
	m.mu.Lock()
	if gen != m.gen || m.closed || m.lockedUntil.IsZero() {
		m.mu.Unlock()
		return
	}
	m.lockedUntil = time.Time{}
	m.lockTimer = nil
	m.mu.Unlock()

	m.publish(events.Event{Topic: events.TopicLockoutEnded})
	m.warn(events.LevelSuccess, m.cfg.LockoutEndedText)
}

func (m *Machine) stopTimersLocked() {
	if m.replyTimer != nil {
		m.replyTimer.Stop()
		m.replyTimer = nil
	}
	if m.lockTimer != nil {
		m.lockTimer.Stop()
		m.lockTimer = nil
	}
}

// =============================================================================
// PUBLISHING
// =============================================================================

func (m *Machine) publish(ev events.Event) {
	ev.Source = m.cfg.Screen
	m.bus.Publish(ev)
}

func (m *Machine) publishTurn(t model.Turn) {
	m.publish(events.Event{Topic: events.TopicTurnUpdated, Turn: &t})
}

func (m *Machine) warn(level events.Level, message string) {
	m.bus.Warn(m.cfg.Screen, level, message)
}

// finishExchange archives a settled exchange and announces it. Listeners
// that see the event can read the exchange back from the archive.
func (m *Machine) finishExchange(ex model.Exchange) {
	if m.archive != nil {
		if err := m.archive.Record(m.ctx, storage.FromExchange(m.cfg.Screen, ex)); err != nil {
			m.logger.Warn().Err(err).Msg("archive_failed")
		}
	}
	m.publish(events.Event{Topic: events.TopicExchangeSettled, Exchange: &ex})
}
