// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/rs/zerolog"

	"github.com/jeranaias/campusbot/internal/answer"
	"github.com/jeranaias/campusbot/internal/config"
	"github.com/jeranaias/campusbot/internal/conversation"
	"github.com/jeranaias/campusbot/internal/events"
	"github.com/jeranaias/campusbot/internal/moderation"
	"github.com/jeranaias/campusbot/internal/storage"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrUnknownScreen is returned for a screen name not in the config.
	ErrUnknownScreen = errors.New("unknown screen")

	// ErrNothingToRate is returned when feedback is sent before any answer
	// has settled.
	ErrNothingToRate = errors.New("no settled answer to give feedback on")
)

// sourceService tags bus warnings raised by the answer client.
const sourceService = "service"

// =============================================================================
// OPTIONS
// =============================================================================

// Option configures Open.
type Option func(*options)

type options struct {
	logger      zerolog.Logger
	httpClient  *http.Client
	machineOpts []conversation.Option
	skipArchive bool
	bus         *events.Bus
	onlyScreens []string
}

// WithLogger sets the logger shared by every component.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithHTTPClient replaces the answer client's HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) { o.httpClient = hc }
}

// WithMachineOptions passes extra options to every conversation machine.
func WithMachineOptions(opts ...conversation.Option) Option {
	return func(o *options) { o.machineOpts = append(o.machineOpts, opts...) }
}

// WithoutArchive skips opening the archive even if storage is enabled.
func WithoutArchive() Option {
	return func(o *options) { o.skipArchive = true }
}

// WithBus uses bus instead of a fresh one.
func WithBus(bus *events.Bus) Option {
	return func(o *options) { o.bus = bus }
}

// WithScreens limits the session to the named screens.
func WithScreens(names ...string) Option {
	return func(o *options) { o.onlyScreens = names }
}

// =============================================================================
// SESSION
// =============================================================================

// Session owns every long-lived component. It is safe for concurrent use.
type Session struct {
	cfg        *config.Config
	logger     zerolog.Logger
	bus        *events.Bus
	client     *answer.Client
	classifier moderation.Classifier
	watcher    *moderation.Watcher
	archive    *storage.Archive

	screens  []config.ScreenConfig
	machines map[string]*conversation.Machine

	closeOnce sync.Once
	closeErr  error
}

// Open builds a Session from cfg.
func Open(cfg *config.Config, opts ...Option) (*Session, error) {
	if cfg == nil {
		cfg = config.Default()
		cfg.SetDefaults()
	}
	o := options{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}

	s := &Session{
		cfg:      cfg,
		logger:   o.logger,
		bus:      o.bus,
		machines: make(map[string]*conversation.Machine),
	}
	if s.bus == nil {
		s.bus = events.NewBus()
	}

	screens, err := selectScreens(cfg, o.onlyScreens)
	if err != nil {
		return nil, err
	}
	s.screens = screens

	clientOpts := []answer.Option{answer.WithNoticeHandler(s.onNotice)}
	if o.httpClient != nil {
		clientOpts = append(clientOpts, answer.WithHTTPClient(o.httpClient))
	}
	s.client = answer.NewClient(ClientConfig(cfg), clientOpts...)

	if err := s.openModeration(); err != nil {
		return nil, err
	}

	if cfg.Storage.Enabled && !o.skipArchive {
		a, err := storage.Open(storage.Config{Path: cfg.Storage.Path, MaxRecords: cfg.Storage.MaxRecords})
		if err != nil {
			s.closeModeration()
			return nil, fmt.Errorf("open archive: %w", err)
		}
		s.archive = a
	}

	for _, sc := range s.screens {
		mopts := []conversation.Option{
			conversation.WithLogger(s.logger.With().Str("component", "conversation").Logger()),
		}
		if s.archive != nil {
			mopts = append(mopts, conversation.WithArchive(s.archive))
		}
		mopts = append(mopts, o.machineOpts...)

		s.machines[sc.Name] = conversation.New(
			MachineConfig(cfg, sc),
			s.classifier,
			s.client.For(Endpoint(sc)),
			s.bus,
			mopts...,
		)
	}

	s.logger.Info().
		Str("base_url", s.client.BaseURL()).
		Int("screens", len(s.screens)).
		Bool("archive", s.archive != nil).
		Msg("session_open")
	return s, nil
}

func selectScreens(cfg *config.Config, names []string) ([]config.ScreenConfig, error) {
	if len(names) == 0 {
		return append([]config.ScreenConfig(nil), cfg.Screens...), nil
	}
	out := make([]config.ScreenConfig, 0, len(names))
	for _, name := range names {
		sc, ok := cfg.Screen(name)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownScreen, name)
		}
		out = append(out, sc)
	}
	return out, nil
}

func (s *Session) openModeration() error {
	mc := s.cfg.Moderation
	adjust := func(r moderation.Rules) moderation.Rules { return ApplyOverrides(r, mc) }

	if mc.RulesFile == "" {
		s.classifier = moderation.New(adjust(moderation.DefaultRules()).WithDefaults())
		return nil
	}
	if mc.Watch {
		w, err := moderation.NewWatcher(mc.RulesFile,
			moderation.WithLogger(s.logger.With().Str("component", "moderation").Logger()),
			moderation.WithAdjust(adjust),
			moderation.WithReloadHook(func(moderation.Rules) {
				s.bus.Warn("moderation", events.LevelInfo, "Moderation rules reloaded")
			}),
		)
		if err != nil {
			return fmt.Errorf("watch moderation rules: %w", err)
		}
		s.watcher = w
		s.classifier = w
		return nil
	}
	rules, err := moderation.LoadRules(mc.RulesFile)
	if err != nil {
		return fmt.Errorf("load moderation rules: %w", err)
	}
	s.classifier = moderation.New(adjust(rules).WithDefaults())
	return nil
}

func (s *Session) closeModeration() error {
	if s.watcher == nil {
		return nil
	}
	return s.watcher.Close()
}

// onNotice turns client notices into bus warnings.
func (s *Session) onNotice(n answer.Notice) {
	level := events.LevelWarning
	if n.Kind == answer.NoticeRateLimited {
		level = events.LevelError
	}
	s.logger.Warn().Int("remaining", n.Remaining).Dur("retry_after", n.RetryAfter).Msg(n.Message)
	s.bus.Warn(sourceService, level, n.Message)
}

// =============================================================================
// ACCESSORS
// =============================================================================

// Config returns the configuration the session was opened with.
func (s *Session) Config() *config.Config { return s.cfg }

// Bus returns the shared event bus.
func (s *Session) Bus() *events.Bus { return s.bus }

// Client returns the answer service client.
func (s *Session) Client() *answer.Client { return s.client }

// Archive returns the exchange archive, or nil when storage is disabled.
func (s *Session) Archive() *storage.Archive { return s.archive }

// Classifier returns the input moderator in use.
func (s *Session) Classifier() moderation.Classifier { return s.classifier }

// Screens returns the session's screens in display order.
func (s *Session) Screens() []config.ScreenConfig {
	return append([]config.ScreenConfig(nil), s.screens...)
}

// Machine returns the conversation machine of a screen.
func (s *Session) Machine(screen string) (*conversation.Machine, bool) {
	m, ok := s.machines[screen]
	return m, ok
}

// =============================================================================
// FEEDBACK
// =============================================================================

// SendFeedback rates the newest settled answer on screen.
func (s *Session) SendFeedback(ctx context.Context, screen string, sentiment answer.Sentiment, message string) (string, error) {
	m, ok := s.machines[screen]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownScreen, screen)
	}
	ex, ok := m.LastExchange()
	if !ok {
		return "", ErrNothingToRate
	}
	ack, err := s.client.SubmitFeedback(ctx, answer.Feedback{
		UserQuery:  ex.User.RawText,
		AIResponse: ex.Assistant.RawText,
		Sentiment:  sentiment,
		Message:    message,
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("screen", screen).Msg("feedback_failed")
		return "", err
	}
	s.logger.Info().Str("screen", screen).Str("sentiment", string(sentiment)).Msg("feedback_sent")
	return ack, nil
}

// =============================================================================
// LIFECYCLE
// =============================================================================

// Close stops every machine, the rules watcher and the archive.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		for _, m := range s.machines {
			m.Close()
		}
		errs := []error{s.closeModeration()}
		if s.archive != nil {
			errs = append(errs, s.archive.Close())
		}
		s.closeErr = errors.Join(errs...)
		s.logger.Info().Msg("session_close")
	})
	return s.closeErr
}
