// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/jeranaias/campusbot/internal/answer"
)

// ============================================================================
// CONSTANTS
// ============================================================================

const (
	// DefaultAddr matches the client's default base URL.
	DefaultAddr = "127.0.0.1:8000"

	// MaxRequestBodySize caps request bodies.
	MaxRequestBodySize = 64 << 10

	// FeedbackAck is returned after feedback is stored.
	FeedbackAck = "Thanks for your feedback!"
)

// ============================================================================
// CONFIGURATION
// ============================================================================

// Config configures the stub.
type Config struct {
	// Addr is the listen address for ListenAndServe.
	Addr string

	// Secret, when set, must arrive in the x-vercel-secret header.
	Secret string

	// RequestsPerMinute per client; 0 disables limiting.
	RequestsPerMinute int

	// Burst is the per-client bucket size.
	Burst int

	// Latency delays every answer.
	Latency time.Duration

	// RowsAsString sends paper rows as a JSON-encoded string instead of an
	// array, the other shape the real service produces.
	RowsAsString bool
}

// DefaultConfig returns a stub listening on DefaultAddr with 10 requests a
// minute and a burst of 5.
func DefaultConfig() Config {
	return Config{
		Addr:              DefaultAddr,
		RequestsPerMinute: 10,
		Burst:             5,
	}
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithKnowledge replaces the canned answers.
func WithKnowledge(k Knowledge) Option {
	return func(s *Server) { s.knowledge = k }
}

// ============================================================================
// SERVER
// ============================================================================

// Server is the stub answer service.
type Server struct {
	config    Config
	knowledge Knowledge
	logger    zerolog.Logger
	router    *mux.Router
	limiter   *RateLimiter

	mu       sync.Mutex
	feedback []answer.Feedback
}

// New builds the stub and its routes.
func New(cfg Config, opts ...Option) *Server {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	s := &Server{
		config:    cfg,
		knowledge: DefaultKnowledge(),
		logger:    zerolog.Nop(),
		router:    mux.NewRouter(),
		limiter:   NewRateLimiter(cfg.RequestsPerMinute, cfg.Burst),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.setupRoutes()
	return s
}

// setupRoutes registers the public and the limited routes.
func (s *Server) setupRoutes() {
	s.router.Use(mux.MiddlewareFunc(RecoveryMiddleware(s.logger)), mux.MiddlewareFunc(LoggingMiddleware(s.logger)))

	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	api := s.router.NewRoute().Subrouter()
	api.Use(
		mux.MiddlewareFunc(SecretMiddleware(s.config.Secret)),
		mux.MiddlewareFunc(RateLimitMiddleware(s.limiter, s.logger)),
	)
	api.HandleFunc(answer.EndpointAssistant.Path, s.handleTopics(func(k Knowledge) []Topic { return k.Assistant })).Methods(http.MethodPost)
	api.HandleFunc(answer.EndpointNotices.Path, s.handleTopics(func(k Knowledge) []Topic { return k.Notices })).Methods(http.MethodPost)
	api.HandleFunc(answer.EndpointPapers.Path, s.handlePapers).Methods(http.MethodPost)
	api.HandleFunc(answer.DefaultFeedbackPath, s.handleFeedback).Methods(http.MethodPost)
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on cfg.Addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()
	s.logger.Info().Str("addr", ln.Addr().String()).Msg("stub_start")

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	if serveErr := <-errc; serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) && err == nil {
		err = serveErr
	}
	s.logger.Info().Msg("stub_stop")
	return err
}

// Feedback returns the feedback received so far.
func (s *Server) Feedback() []answer.Feedback {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]answer.Feedback(nil), s.feedback...)
}

// ============================================================================
// HANDLERS
// ============================================================================

type queryRequest struct {
	Query string `json:"query"`
}

type response struct {
	Response any `json:"response"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleTopics(pick func(Knowledge) []Topic) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query, ok := s.readQuery(w, r)
		if !ok {
			return
		}
		if !s.wait(r.Context()) {
			return
		}
		writeJSON(w, http.StatusOK, response{Response: s.knowledge.answer(pick(s.knowledge), query)})
	}
}

func (s *Server) handlePapers(w http.ResponseWriter, r *http.Request) {
	query, ok := s.readQuery(w, r)
	if !ok {
		return
	}
	if !s.wait(r.Context()) {
		return
	}
	rows := s.knowledge.papers(query)
	if s.config.RowsAsString {
		data, err := json.Marshal(rows)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Internal Server Error")
			return
		}
		writeJSON(w, http.StatusOK, response{Response: string(data)})
		return
	}
	writeJSON(w, http.StatusOK, response{Response: rows})
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)
	var fb answer.Feedback
	if err := json.NewDecoder(r.Body).Decode(&fb); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request format")
		return
	}
	if fb.Sentiment != answer.SentimentPositive && fb.Sentiment != answer.SentimentNegative {
		writeError(w, http.StatusBadRequest, "sentiment must be positive or negative")
		return
	}

	s.mu.Lock()
	s.feedback = append(s.feedback, fb)
	s.mu.Unlock()

	s.logger.Info().Str("sentiment", string(fb.Sentiment)).Msg("feedback_received")
	writeJSON(w, http.StatusOK, response{Response: FeedbackAck})
}

// readQuery decodes {"query": "..."} and rejects blank queries.
func (s *Server) readQuery(w http.ResponseWriter, r *http.Request) (string, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return "", false
		}
		writeError(w, http.StatusBadRequest, "Invalid request format")
		return "", false
	}
	query := strings.TrimSpace(req.Query)
	if query == "" {
		writeError(w, http.StatusBadRequest, "query must not be empty")
		return "", false
	}
	return query, true
}

// wait applies the configured latency. It reports false when the client
// went away first.
func (s *Server) wait(ctx context.Context) bool {
	if s.config.Latency <= 0 {
		return true
	}
	t := time.NewTimer(s.config.Latency)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// ============================================================================
// HELPERS
// ============================================================================

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
