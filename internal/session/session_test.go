// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/jeranaias/campusbot/internal/answer"
	"github.com/jeranaias/campusbot/internal/config"
	"github.com/jeranaias/campusbot/internal/events"
	"github.com/jeranaias/campusbot/internal/model"
	"github.com/jeranaias/campusbot/internal/moderation"
	"github.com/jeranaias/campusbot/internal/server"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
	)
}

// =============================================================================
// TEST HELPERS
// =============================================================================

func testConfig(t *testing.T, baseURL string) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Service.BaseURL = baseURL
	cfg.Service.RequestsPerSecond = 100
	cfg.Service.Burst = 10
	cfg.Streaming.IntervalMS = 1
	cfg.Storage.Path = filepath.Join(t.TempDir(), "history.db")
	cfg.SetDefaults()
	require.NoError(t, cfg.Validate())
	return cfg
}

func startStub(t *testing.T, cfg server.Config) (*server.Server, string) {
	t.Helper()
	stub := server.New(cfg)
	ts := httptest.NewServer(stub.Handler())
	t.Cleanup(ts.Close)
	return stub, ts.URL
}

func waitFor(t *testing.T, ch <-chan events.Event, topic events.Topic) events.Event {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev := <-ch:
			if ev.Topic == topic {
				return ev
			}
		case <-deadline:
			t.Fatalf("no %s event", topic)
			return events.Event{}
		}
	}
}

// =============================================================================
// TESTS
// =============================================================================

func TestOpen_BuildsMachinePerScreen(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1")
	s, err := Open(cfg, WithoutArchive())
	require.NoError(t, err)
	defer s.Close()

	require.Len(t, s.Screens(), 3)
	for _, name := range []string{"assistant", "notices", "papers"} {
		m, ok := s.Machine(name)
		require.True(t, ok, name)
		assert.Equal(t, name, m.Screen())
	}
	_, ok := s.Machine("results")
	assert.False(t, ok)
	assert.Nil(t, s.Archive())
}

func TestOpen_WithScreens(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1")

	s, err := Open(cfg, WithoutArchive(), WithScreens("papers"))
	require.NoError(t, err)
	defer s.Close()
	require.Len(t, s.Screens(), 1)
	assert.Equal(t, "papers", s.Screens()[0].Name)

	_, err = Open(cfg, WithoutArchive(), WithScreens("results"))
	assert.True(t, errors.Is(err, ErrUnknownScreen))
}

func TestSession_AskStreamsArchivesAndTakesFeedback(t *testing.T) {
	stub, url := startStub(t, server.Config{})
	cfg := testConfig(t, url)

	s, err := Open(cfg)
	require.NoError(t, err)
	defer s.Close()

	ch, stop := s.Bus().Listen(256, events.TopicExchangeSettled, events.TopicTurnUpdated)
	defer stop()

	m, _ := s.Machine("assistant")
	out, err := m.Submit(context.Background(), "Tell me about DTU's history")
	require.NoError(t, err)
	assert.True(t, out.Dispatched)

	ev := waitFor(t, ch, events.TopicExchangeSettled)
	require.NotNil(t, ev.Exchange)
	assert.Equal(t, model.SourceAnswer, ev.Exchange.Assistant.Source)
	assert.Contains(t, ev.Exchange.Assistant.VisibleText, "1941")
	assert.Equal(t, ev.Exchange.Assistant.RawText, ev.Exchange.Assistant.VisibleText)

	require.Eventually(t, func() bool {
		n, err := s.Archive().Count(context.Background())
		return err == nil && n == 1
	}, 2*time.Second, 10*time.Millisecond)

	ack, err := s.SendFeedback(context.Background(), "assistant", answer.SentimentPositive, "helpful")
	require.NoError(t, err)
	assert.Equal(t, server.FeedbackAck, ack)

	fb := stub.Feedback()
	require.Len(t, fb, 1)
	assert.Equal(t, "Tell me about DTU's history", fb[0].UserQuery)
	assert.Contains(t, fb[0].AIResponse, "1941")
	assert.Equal(t, "helpful", fb[0].Message)
}

func TestSession_PapersScreenRendersTable(t *testing.T) {
	_, url := startStub(t, server.Config{})
	cfg := testConfig(t, url)

	s, err := Open(cfg, WithoutArchive())
	require.NoError(t, err)
	defer s.Close()

	ch, stop := s.Bus().Listen(256, events.TopicExchangeSettled)
	defer stop()

	m, _ := s.Machine("papers")
	_, err = m.Submit(context.Background(), "Pyq of computer networks")
	require.NoError(t, err)

	ev := waitFor(t, ch, events.TopicExchangeSettled)
	assert.Contains(t, ev.Exchange.Assistant.RawText, "| Subject Code | Year | Sem | Month | Branch | Link |")
	assert.Contains(t, ev.Exchange.Assistant.RawText, "[View Paper](https://dtu.ac.in/papers/CO306%20end%202023.pdf)")
}

func TestSession_FeedbackNeedsSettledAnswer(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1")
	s, err := Open(cfg, WithoutArchive())
	require.NoError(t, err)
	defer s.Close()

	_, err = s.SendFeedback(context.Background(), "assistant", answer.SentimentNegative, "")
	assert.True(t, errors.Is(err, ErrNothingToRate))

	_, err = s.SendFeedback(context.Background(), "results", answer.SentimentNegative, "")
	assert.True(t, errors.Is(err, ErrUnknownScreen))
}

func TestSession_ServiceNoticesBecomeWarnings(t *testing.T) {
	_, url := startStub(t, server.Config{RequestsPerMinute: 1, Burst: 1})
	cfg := testConfig(t, url)

	s, err := Open(cfg, WithoutArchive())
	require.NoError(t, err)
	defer s.Close()

	ch, stop := s.Bus().Listen(256, events.TopicWarning, events.TopicExchangeSettled)
	defer stop()

	m, _ := s.Machine("notices")
	_, err = m.Submit(context.Background(), "Is there a fee deadline?")
	require.NoError(t, err)

	ev := waitFor(t, ch, events.TopicWarning)
	assert.Equal(t, events.LevelWarning, ev.Warning.Level)
	assert.Equal(t, "Heads up! You're almost out of requests. Try again soon if needed.", ev.Warning.Message)
	waitFor(t, ch, events.TopicExchangeSettled)

	_, err = m.Submit(context.Background(), "Is there a fee deadline?")
	require.NoError(t, err)

	ev = waitFor(t, ch, events.TopicWarning)
	assert.Equal(t, events.LevelError, ev.Warning.Level)
	assert.Contains(t, ev.Warning.Message, "Too many requests. Please wait")

	ev = waitFor(t, ch, events.TopicExchangeSettled)
	assert.Equal(t, model.SourceFallback, ev.Exchange.Assistant.Source)
	assert.Equal(t, "Error fetching response", ev.Exchange.Assistant.RawText)
}

func TestSession_ModerationOverrides(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1")
	cfg.Moderation.MaxLength = 20
	cfg.Moderation.MinWords = 2

	s, err := Open(cfg, WithoutArchive())
	require.NoError(t, err)
	defer s.Close()

	v := s.Classifier().Classify("where is the central library located")
	assert.Equal(t, moderation.RuleTooLong, v.Rule)
	assert.Equal(t, moderation.KindToast, v.Kind)

	v = s.Classifier().Classify("library timings")
	assert.True(t, v.Allowed)
}

func TestSession_RulesFileWatched(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.toml")
	require.NoError(t, os.WriteFile(path, []byte(`out_of_scope = ["canteen"]`), 0644))

	cfg := testConfig(t, "http://127.0.0.1:1")
	cfg.Moderation.RulesFile = path
	cfg.Moderation.Watch = true
	cfg.Moderation.MaxLength = 40

	s, err := Open(cfg, WithoutArchive())
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, moderation.RuleOutOfScope, s.Classifier().Classify("what is on the canteen menu").Rule)
	assert.Equal(t, 40, s.Classifier().(*moderation.Watcher).Rules().MaxLength)
}

func TestEndpointAndMachineConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Moderation.ReplyDelayMS = 250
	cfg.UI.FallbackText = "Service unavailable"
	cfg.SetDefaults()

	papers, _ := cfg.Screen("papers")
	ep := Endpoint(papers)
	assert.Equal(t, answer.EndpointPapers.Path, ep.Path)
	assert.Equal(t, answer.FormatPapers, ep.Format)

	mc := MachineConfig(cfg, papers)
	assert.Equal(t, "papers", mc.Screen)
	assert.Equal(t, 30*time.Millisecond, mc.Interval)
	assert.Equal(t, 250*time.Millisecond, mc.ReplyDelay)
	assert.Equal(t, "Service unavailable", mc.FallbackText)
}
