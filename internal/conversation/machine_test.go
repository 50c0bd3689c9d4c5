// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/jeranaias/campusbot/internal/events"
	"github.com/jeranaias/campusbot/internal/model"
	"github.com/jeranaias/campusbot/internal/moderation"
	"github.com/jeranaias/campusbot/internal/storage"
	"github.com/jeranaias/campusbot/internal/stream"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// =============================================================================
// TEST DOUBLES
// =============================================================================

type reply struct {
	text  string
	err   error
	panic bool
}

// fakeAnswerer blocks each Ask until the test hands it a reply.
type fakeAnswerer struct {
	replies chan reply

	mu    sync.Mutex
	calls []string
}

func newFakeAnswerer() *fakeAnswerer {
	return &fakeAnswerer{replies: make(chan reply)}
}

func (f *fakeAnswerer) Ask(ctx context.Context, query string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, query)
	f.mu.Unlock()

	select {
	case r := <-f.replies:
		if r.panic {
			panic("answer backend exploded")
		}
		return r.text, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (f *fakeAnswerer) respond(t *testing.T, r reply) {
	t.Helper()
	select {
	case f.replies <- r:
	case <-time.After(2 * time.Second):
		t.Fatal("service call was never made")
	}
}

func (f *fakeAnswerer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// manualTicks hands every streamer the same test-driven tick channel.
type manualTicks struct {
	ch      chan time.Time
	mu      sync.Mutex
	created int
}

func newManualTicks() *manualTicks {
	return &manualTicks{ch: make(chan time.Time)}
}

func (m *manualTicks) factory() *stream.Streamer {
	m.mu.Lock()
	m.created++
	m.mu.Unlock()
	return stream.NewStreamer(stream.WithTickSource(func(time.Duration) (<-chan time.Time, func()) {
		return m.ch, func() {}
	}))
}

func (m *manualTicks) streamers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.created
}

// tick delivers one tick or reports false if no streamer takes it.
func (m *manualTicks) tick() bool {
	select {
	case m.ch <- time.Now():
		return true
	case <-time.After(200 * time.Millisecond):
		return false
	}
}

type classifierFunc func(string) moderation.Verdict

func (f classifierFunc) Classify(raw string) moderation.Verdict { return f(raw) }

type memArchive struct {
	mu   sync.Mutex
	rows []storage.Exchange
}

func (a *memArchive) Record(_ context.Context, ex storage.Exchange) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rows = append(a.rows, ex)
	return nil
}

func (a *memArchive) all() []storage.Exchange {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]storage.Exchange(nil), a.rows...)
}

// =============================================================================
// HARNESS
// =============================================================================

type harness struct {
	m        *Machine
	bus      *events.Bus
	answerer *fakeAnswerer
	ticks    *manualTicks
	archive  *memArchive

	mu     sync.Mutex
	events []events.Event
}

func newHarness(t *testing.T, classifier moderation.Classifier, cfg Config) *harness {
	t.Helper()
	if classifier == nil {
		classifier = moderation.New(moderation.DefaultRules())
	}
	h := &harness{
		bus:      events.NewBus(),
		answerer: newFakeAnswerer(),
		ticks:    newManualTicks(),
		archive:  &memArchive{},
	}
	unsub := h.bus.Subscribe(func(ev events.Event) {
		h.mu.Lock()
		h.events = append(h.events, ev)
		h.mu.Unlock()
	},
		events.TopicTurnUpdated, events.TopicExchangeSettled, events.TopicWarning,
		events.TopicSessionReset, events.TopicConversationChanged, events.TopicLockoutEnded,
	)
	h.m = New(cfg, classifier, h.answerer, h.bus,
		WithStreamerFactory(h.ticks.factory),
		WithArchive(h.archive),
	)
	t.Cleanup(func() {
		h.m.Close()
		unsub()
	})
	return h
}

func (h *harness) topics(topic events.Topic) []events.Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []events.Event
	for _, ev := range h.events {
		if ev.Topic == topic {
			out = append(out, ev)
		}
	}
	return out
}

func (h *harness) warnings() []string {
	var out []string
	for _, ev := range h.topics(events.TopicWarning) {
		out = append(out, ev.Warning.Message)
	}
	return out
}

func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal(msg)
}

func lastTurn(m *Machine) model.Turn {
	snap := m.Snapshot()
	return snap[len(snap)-1]
}

func (h *harness) waitStatus(t *testing.T, status model.Status) {
	t.Helper()
	eventually(t, func() bool {
		snap := h.m.Snapshot()
		return len(snap) > 0 && snap[len(snap)-1].Status == status
	}, "assistant turn never reached "+string(status))
}

// =============================================================================
// MODERATION SCENARIOS
// =============================================================================

func TestSubmit_GreetingSettlesImmediately(t *testing.T) {
	h := newHarness(t, nil, Config{})

	out, err := h.m.Submit(context.Background(), "hi")
	require.NoError(t, err)
	assert.False(t, out.Dispatched)
	assert.Equal(t, moderation.RuleGreeting, out.Verdict.Rule)

	snap := h.m.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "hi", snap[0].RawText)
	assert.Equal(t, model.StatusSettled, snap[1].Status)
	assert.Equal(t, model.SourceModeration, snap[1].Source)
	assert.Equal(t, "Hello! How can I help you with university information today?", snap[1].VisibleText)
	assert.False(t, h.m.InFlight())
	assert.Zero(t, h.answerer.callCount())

	assert.Len(t, h.topics(events.TopicExchangeSettled), 1)
	require.Len(t, h.topics(events.TopicConversationChanged), 1)
	assert.True(t, h.topics(events.TopicConversationChanged)[0].Open)
	assert.Len(t, h.archive.all(), 1)
}

func TestSubmit_TooGeneric(t *testing.T) {
	h := newHarness(t, nil, Config{})

	_, err := h.m.Submit(context.Background(), "a")
	require.NoError(t, err)

	turn := lastTurn(h.m)
	assert.Equal(t, "Your query is too generic. Please provide more details about what you're looking for.", turn.VisibleText)
	assert.Zero(t, h.answerer.callCount())
}

func TestSubmit_TooLongIsToastWithLockout(t *testing.T) {
	h := newHarness(t, nil, Config{})

	out, err := h.m.Submit(context.Background(), strings.Repeat("x", 201))
	require.NoError(t, err)
	assert.Equal(t, moderation.KindToast, out.Verdict.Kind)
	assert.Empty(t, out.UserTurnID)
	assert.Empty(t, h.m.Snapshot(), "toast verdicts create no turns")
	assert.Contains(t, h.warnings(), "Please keep your questions under 200 characters for better responses.")
	assert.False(t, h.m.LockedUntil().IsZero())

	_, err = h.m.Submit(context.Background(), "when does the semester start")
	assert.ErrorIs(t, err, ErrLockedOut)
	assert.Empty(t, h.m.Snapshot())
}

func TestSubmit_LockoutExpires(t *testing.T) {
	classifier := classifierFunc(func(q string) moderation.Verdict {
		if len(q) > 10 {
			return moderation.Verdict{Kind: moderation.KindToast, Warning: "too long", Lockout: 30 * time.Millisecond}
		}
		return moderation.Allow()
	})
	h := newHarness(t, classifier, Config{})

	_, err := h.m.Submit(context.Background(), "this one is far too long")
	require.NoError(t, err)

	eventually(t, func() bool { return len(h.topics(events.TopicLockoutEnded)) == 1 }, "lockout never ended")
	assert.True(t, h.m.LockedUntil().IsZero())
	assert.Contains(t, h.warnings(), "You can now continue typing")

	out, err := h.m.Submit(context.Background(), "short")
	require.NoError(t, err)
	assert.True(t, out.Dispatched)
	h.answerer.respond(t, reply{text: "ok"})
}

func TestSubmit_ReplyDelay(t *testing.T) {
	h := newHarness(t, nil, Config{ReplyDelay: 20 * time.Millisecond})

	_, err := h.m.Submit(context.Background(), "hello")
	require.NoError(t, err)
	assert.True(t, h.m.InFlight())

	h.waitStatus(t, model.StatusSettled)
	assert.Equal(t, model.SourceModeration, lastTurn(h.m).Source)
}

// =============================================================================
// STREAMING SCENARIOS
// =============================================================================

func TestSubmit_StreamsAnswerWithAtomicLinks(t *testing.T) {
	h := newHarness(t, nil, Config{})

	out, err := h.m.Submit(context.Background(), "where are the exam docs")
	require.NoError(t, err)
	assert.True(t, out.Dispatched)
	assert.Equal(t, model.StatusPending, lastTurn(h.m).Status)

	h.answerer.respond(t, reply{text: "See [docs](http://x.com/a b) now"})
	h.waitStatus(t, model.StatusStreaming)

	want := []string{"See ", "See [docs](http://x.com/a b)", "See [docs](http://x.com/a b) now"}
	for i, prefix := range want {
		require.True(t, h.ticks.tick(), "tick %d not taken", i)
		eventually(t, func() bool { return lastTurn(h.m).VisibleText == prefix }, "prefix "+prefix+" never shown")
	}
	h.waitStatus(t, model.StatusSettled)

	turn := lastTurn(h.m)
	assert.Equal(t, turn.RawText, turn.VisibleText)
	assert.Equal(t, model.SourceAnswer, turn.Source)
	assert.False(t, h.m.InFlight())

	// Every published prefix is monotonic and never splits the link.
	var prev string
	for _, ev := range h.topics(events.TopicTurnUpdated) {
		if ev.Turn.ID != out.AssistantTurnID {
			continue
		}
		v := ev.Turn.VisibleText
		assert.True(t, strings.HasPrefix(v, prev), "visible text shrank: %q -> %q", prev, v)
		if strings.Contains(v, "[docs") {
			assert.Contains(t, v, "[docs](http://x.com/a b)")
		}
		prev = v
	}
	assert.Len(t, h.topics(events.TopicExchangeSettled), 1)
}

func TestSubmit_RejectedWhileStreaming(t *testing.T) {
	h := newHarness(t, nil, Config{})

	_, err := h.m.Submit(context.Background(), "when does the semester start")
	require.NoError(t, err)
	h.answerer.respond(t, reply{text: "It starts in August."})
	h.waitStatus(t, model.StatusStreaming)

	before := h.m.Snapshot()
	_, err = h.m.Submit(context.Background(), "what is the hostel fee")
	assert.ErrorIs(t, err, ErrInFlight)
	assert.Equal(t, len(before), len(h.m.Snapshot()))
	assert.Contains(t, h.warnings(), "Please wait for the current response to finish!")
	assert.Equal(t, 1, h.answerer.callCount())

	h.m.RequestCancelStreaming()
}

func TestSubmit_RejectedWhilePending(t *testing.T) {
	h := newHarness(t, nil, Config{})

	_, err := h.m.Submit(context.Background(), "when does the semester start")
	require.NoError(t, err)
	_, err = h.m.Submit(context.Background(), "hi")
	assert.ErrorIs(t, err, ErrInFlight)
	assert.Len(t, h.m.Snapshot(), 2)

	h.answerer.respond(t, reply{err: errors.New("boom")})
	h.waitStatus(t, model.StatusSettled)
}

func TestSubmit_FailureFallsBackThenRecovers(t *testing.T) {
	h := newHarness(t, nil, Config{})

	_, err := h.m.Submit(context.Background(), "who is the hod of it")
	require.NoError(t, err)
	h.answerer.respond(t, reply{err: errors.New("connection reset")})
	h.waitStatus(t, model.StatusSettled)

	turn := lastTurn(h.m)
	assert.Equal(t, "Error fetching response", turn.RawText)
	assert.Equal(t, "Error fetching response", turn.VisibleText)
	assert.Equal(t, model.SourceFallback, turn.Source)
	assert.False(t, h.m.InFlight())

	_, err = h.m.Submit(context.Background(), "who is the hod of cse")
	require.NoError(t, err)
	h.answerer.respond(t, reply{text: "Prof."})
	h.waitStatus(t, model.StatusStreaming)
	require.True(t, h.ticks.tick())
	h.waitStatus(t, model.StatusSettled)

	snap := h.m.Snapshot()
	require.Len(t, snap, 4)
	assert.Equal(t, "Prof.", snap[3].VisibleText)
	assert.Len(t, h.archive.all(), 2)
}

func TestSubmit_PanicFallsBack(t *testing.T) {
	h := newHarness(t, nil, Config{FallbackText: "Something went wrong"})

	_, err := h.m.Submit(context.Background(), "what clubs are active")
	require.NoError(t, err)
	h.answerer.respond(t, reply{panic: true})
	h.waitStatus(t, model.StatusSettled)
	assert.Equal(t, "Something went wrong", lastTurn(h.m).VisibleText)
}

func TestSubmit_EmptyAnswerCompletes(t *testing.T) {
	h := newHarness(t, nil, Config{})

	_, err := h.m.Submit(context.Background(), "what clubs are active")
	require.NoError(t, err)
	h.answerer.respond(t, reply{text: ""})
	h.waitStatus(t, model.StatusStreaming)
	require.True(t, h.ticks.tick())
	h.waitStatus(t, model.StatusSettled)
	assert.Equal(t, "", lastTurn(h.m).VisibleText)
}

func TestSubmit_CanceledContext(t *testing.T) {
	h := newHarness(t, nil, Config{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := h.m.Submit(ctx, "when does the semester start")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, h.m.Snapshot())
}

// =============================================================================
// CANCEL AND RESET
// =============================================================================

func TestRequestCancelStreaming_FreezesPrefix(t *testing.T) {
	h := newHarness(t, nil, Config{})

	_, err := h.m.Submit(context.Background(), "tell me about hostel facilities")
	require.NoError(t, err)
	h.answerer.respond(t, reply{text: "There are eight hostels on campus."})
	h.waitStatus(t, model.StatusStreaming)

	require.True(t, h.ticks.tick())
	eventually(t, func() bool { return lastTurn(h.m).VisibleText == "There " }, "first token never shown")

	assert.True(t, h.m.RequestCancelStreaming())
	turn := lastTurn(h.m)
	assert.Equal(t, model.StatusSettled, turn.Status)
	assert.Equal(t, "There ", turn.VisibleText)
	assert.Equal(t, "There ", turn.RawText)
	assert.True(t, turn.Stopped)
	assert.False(t, h.m.InFlight())

	h.ticks.tick()
	assert.Equal(t, "There ", lastTurn(h.m).VisibleText, "ticks after a stop must not reveal more")
	assert.False(t, h.m.RequestCancelStreaming(), "nothing left to cancel")
}

func TestRequestCancelStreaming_PendingDropsLateResult(t *testing.T) {
	h := newHarness(t, nil, Config{})

	_, err := h.m.Submit(context.Background(), "tell me about hostel facilities")
	require.NoError(t, err)
	assert.True(t, h.m.RequestCancelStreaming())

	turn := lastTurn(h.m)
	assert.Equal(t, model.StatusSettled, turn.Status)
	assert.Equal(t, "", turn.VisibleText)

	h.answerer.respond(t, reply{text: "late answer"})
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, "", lastTurn(h.m).VisibleText)
	assert.Zero(t, h.ticks.streamers())
}

func TestRequestNewSession_MidStream(t *testing.T) {
	h := newHarness(t, nil, Config{})

	_, err := h.m.Submit(context.Background(), "tell me about hostel facilities")
	require.NoError(t, err)
	h.answerer.respond(t, reply{text: "There are eight hostels."})
	h.waitStatus(t, model.StatusStreaming)
	require.True(t, h.ticks.tick())

	h.m.RequestNewSession()
	assert.Empty(t, h.m.Snapshot())
	assert.False(t, h.m.InFlight())
	h.ticks.tick()
	assert.Empty(t, h.m.Snapshot(), "ticks from the old session must be dropped")

	assert.Len(t, h.topics(events.TopicSessionReset), 1)
	changed := h.topics(events.TopicConversationChanged)
	require.Len(t, changed, 2)
	assert.False(t, changed[1].Open)

	// A fresh exchange works normally afterwards.
	_, err = h.m.Submit(context.Background(), "hi")
	require.NoError(t, err)
	assert.Len(t, h.m.Snapshot(), 2)
}

func TestRequestNewSession_DropsLateServiceResult(t *testing.T) {
	h := newHarness(t, nil, Config{})

	_, err := h.m.Submit(context.Background(), "tell me about hostel facilities")
	require.NoError(t, err)
	h.m.RequestNewSession()

	h.answerer.respond(t, reply{text: "late answer"})
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, h.m.Snapshot())
	assert.Zero(t, h.ticks.streamers())
	assert.Empty(t, h.archive.all())
}

func TestRequestNewSession_ClearsLockout(t *testing.T) {
	h := newHarness(t, nil, Config{})

	_, err := h.m.Submit(context.Background(), strings.Repeat("x", 300))
	require.NoError(t, err)
	require.False(t, h.m.LockedUntil().IsZero())

	h.m.RequestNewSession()
	assert.True(t, h.m.LockedUntil().IsZero())
	_, err = h.m.Submit(context.Background(), "hi")
	assert.NoError(t, err)
}

func TestRequestNewSession_FromBus(t *testing.T) {
	h := newHarness(t, nil, Config{})

	_, err := h.m.Submit(context.Background(), "hi")
	require.NoError(t, err)

	h.bus.RequestNewSession("header")
	assert.Empty(t, h.m.Snapshot())
	assert.False(t, h.m.IsOpen())
}

func TestRequestNewSession_IdleIsSafe(t *testing.T) {
	h := newHarness(t, nil, Config{})
	h.m.RequestNewSession()
	h.m.RequestNewSession()
	assert.Empty(t, h.m.Snapshot())
	assert.Empty(t, h.topics(events.TopicConversationChanged))
}

// =============================================================================
// READERS AND LIFECYCLE
// =============================================================================

func TestLastExchange(t *testing.T) {
	h := newHarness(t, nil, Config{})

	_, ok := h.m.LastExchange()
	assert.False(t, ok)

	_, err := h.m.Submit(context.Background(), "thanks")
	require.NoError(t, err)

	ex, ok := h.m.LastExchange()
	require.True(t, ok)
	assert.Equal(t, "thanks", ex.User.RawText)
	assert.Equal(t, moderation.DefaultRules().Replies.Thanks, ex.Assistant.VisibleText)
}

func TestClose_CancelsPendingCall(t *testing.T) {
	h := newHarness(t, nil, Config{})

	_, err := h.m.Submit(context.Background(), "when does the semester start")
	require.NoError(t, err)

	h.m.Close()
	_, err = h.m.Submit(context.Background(), "when does the semester start")
	assert.ErrorIs(t, err, ErrClosed)
	assert.Zero(t, h.bus.Subscribers(events.TopicNewSessionRequested))
}
