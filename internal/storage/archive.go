// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/jeranaias/campusbot/internal/model"
)

// DefaultMaxRecords is how many exchanges are kept when none is configured.
const DefaultMaxRecords = 500

// ErrNotFound is returned when an exchange does not exist.
var ErrNotFound = errors.New("exchange not found")

// =============================================================================
// EXCHANGE TYPE
// =============================================================================

// Exchange is one archived query and its settled answer.
type Exchange struct {
	ID              int64     `json:"id"`
	Screen          string    `json:"screen"`
	UserTurnID      string    `json:"user_turn_id"`
	AssistantTurnID string    `json:"assistant_turn_id"`
	Query           string    `json:"query"`
	Answer          string    `json:"answer"`
	Source          string    `json:"source"`
	Stopped         bool      `json:"stopped,omitempty"`
	AskedAt         time.Time `json:"asked_at"`
	SettledAt       time.Time `json:"settled_at"`
}

// FromExchange converts a settled exchange from the turn log.
func FromExchange(screen string, ex model.Exchange) Exchange {
	settled := ex.Assistant.SettledAt
	if settled.IsZero() {
		settled = time.Now()
	}
	return Exchange{
		Screen:          screen,
		UserTurnID:      ex.User.ID,
		AssistantTurnID: ex.Assistant.ID,
		Query:           ex.User.RawText,
		Answer:          ex.Assistant.VisibleText,
		Source:          string(ex.Assistant.Source),
		Stopped:         ex.Assistant.Stopped,
		AskedAt:         ex.User.CreatedAt,
		SettledAt:       settled,
	}
}

// Preview returns the query truncated to width terminal columns.
func (e Exchange) Preview(width int) string {
	return runewidth.Truncate(strings.Join(strings.Fields(e.Query), " "), width, "...")
}

// =============================================================================
// ARCHIVE
// =============================================================================

// Config holds archive settings.
type Config struct {
	// Path is the database file (default: ~/.campusbot/history.db)
	Path string

	// MaxRecords caps stored exchanges; older ones are pruned.
	MaxRecords int
}

// DefaultPath returns ~/.campusbot/history.db.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".campusbot", "history.db")
	}
	return filepath.Join(home, ".campusbot", "history.db")
}

// Archive stores settled exchanges. It is safe for concurrent use.
type Archive struct {
	db         *sql.DB
	maxRecords int
}

// Open opens (creating if needed) the archive database.
func Open(cfg Config) (*Archive, error) {
	if cfg.Path == "" {
		cfg.Path = DefaultPath()
	}
	if cfg.MaxRecords <= 0 {
		cfg.MaxRecords = DefaultMaxRecords
	}

	if cfg.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0700); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Archive{db: db, maxRecords: cfg.MaxRecords}, nil
}

// Close closes the database.
func (a *Archive) Close() error {
	return a.db.Close()
}

// Record stores ex and prunes the oldest rows beyond the configured limit.
// Recording the same assistant turn twice keeps the first row.
func (a *Archive) Record(ctx context.Context, ex Exchange) error {
	if ex.AssistantTurnID == "" {
		return errors.New("exchange has no assistant turn id")
	}
	if ex.AskedAt.IsZero() {
		ex.AskedAt = time.Now()
	}
	if ex.SettledAt.IsZero() {
		ex.SettledAt = time.Now()
	}

	_, err := a.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO exchanges
		    (screen, user_turn_id, assistant_turn_id, query, answer, source, stopped, asked_at, settled_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ex.Screen, ex.UserTurnID, ex.AssistantTurnID, ex.Query, ex.Answer, ex.Source,
		boolToInt(ex.Stopped), ex.AskedAt.UnixNano(), ex.SettledAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to record exchange: %w", err)
	}
	return a.prune(ctx)
}

func (a *Archive) prune(ctx context.Context) error {
	_, err := a.db.ExecContext(ctx, `
		DELETE FROM exchanges WHERE id NOT IN (
		    SELECT id FROM exchanges ORDER BY settled_at DESC, id DESC LIMIT ?
		)`, a.maxRecords)
	if err != nil {
		return fmt.Errorf("failed to prune archive: %w", err)
	}
	return nil
}

// Recent returns up to limit exchanges, newest first. An empty screen
// matches every screen.
func (a *Archive) Recent(ctx context.Context, screen string, limit int) ([]Exchange, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `SELECT id, screen, user_turn_id, assistant_turn_id, query, answer, source, stopped, asked_at, settled_at
		FROM exchanges`
	args := []any{}
	if screen != "" {
		query += ` WHERE screen = ?`
		args = append(args, screen)
	}
	query += ` ORDER BY settled_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query archive: %w", err)
	}
	defer rows.Close()

	var out []Exchange
	for rows.Next() {
		ex, err := scanExchange(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ex)
	}
	return out, rows.Err()
}

// Get returns the exchange with id.
func (a *Archive) Get(ctx context.Context, id int64) (Exchange, error) {
	row := a.db.QueryRowContext(ctx, `
		SELECT id, screen, user_turn_id, assistant_turn_id, query, answer, source, stopped, asked_at, settled_at
		FROM exchanges WHERE id = ?`, id)
	ex, err := scanExchange(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Exchange{}, ErrNotFound
	}
	return ex, err
}

// Count returns the number of stored exchanges.
func (a *Archive) Count(ctx context.Context) (int, error) {
	var n int
	if err := a.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM exchanges`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count exchanges: %w", err)
	}
	return n, nil
}

// Clear removes every stored exchange.
func (a *Archive) Clear(ctx context.Context) error {
	if _, err := a.db.ExecContext(ctx, `DELETE FROM exchanges`); err != nil {
		return fmt.Errorf("failed to clear archive: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanExchange(s scanner) (Exchange, error) {
	var (
		ex             Exchange
		stopped        int
		asked, settled int64
	)
	err := s.Scan(&ex.ID, &ex.Screen, &ex.UserTurnID, &ex.AssistantTurnID, &ex.Query, &ex.Answer,
		&ex.Source, &stopped, &asked, &settled)
	if err != nil {
		return Exchange{}, err
	}
	ex.Stopped = stopped != 0
	ex.AskedAt = time.Unix(0, asked)
	ex.SettledAt = time.Unix(0, settled)
	return ex, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
