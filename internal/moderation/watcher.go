// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package moderation

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// defaultDebounce collapses the burst of events editors emit on save.
const defaultDebounce = 150 * time.Millisecond

// =============================================================================
// RULES WATCHER
// =============================================================================

// Watcher keeps a Moderator in sync with a TOML rules file.
// A file that fails to parse leaves the previous rules in effect.
type Watcher struct {
	path     string
	debounce time.Duration
	logger   zerolog.Logger
	onReload func(Rules)
	adjust   func(Rules) Rules

	current atomic.Pointer[Moderator]

	watcher *fsnotify.Watcher
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mu    sync.Mutex
	timer *time.Timer
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithLogger sets the logger for reload events.
func WithLogger(logger zerolog.Logger) WatcherOption {
	return func(w *Watcher) { w.logger = logger }
}

// WithDebounce sets how long to wait after the last change before reloading.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithReloadHook registers a function called after each successful reload.
func WithReloadHook(fn func(Rules)) WatcherOption {
	return func(w *Watcher) { w.onReload = fn }
}

// WithAdjust applies fn to every loaded rule set before it takes effect.
func WithAdjust(fn func(Rules) Rules) WatcherOption {
	return func(w *Watcher) { w.adjust = fn }
}

// NewWatcher loads path and starts watching it for changes.
// The file's directory is watched so that atomic saves (rename over the
// original) are noticed.
func NewWatcher(path string, opts ...WatcherOption) (*Watcher, error) {
	rules, err := LoadRules(path)
	if err != nil {
		return nil, err
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve rules path: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(absPath)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to watch rules directory: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &Watcher{
		path:     absPath,
		debounce: defaultDebounce,
		logger:   zerolog.Nop(),
		watcher:  fsw,
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(w)
	}
	w.current.Store(New(w.apply(rules)))

	w.wg.Add(1)
	go w.processEvents()
	return w, nil
}

// Classify classifies raw with the most recently loaded rules.
func (w *Watcher) Classify(raw string) Verdict {
	return w.current.Load().Classify(raw)
}

// Rules returns the rules in effect.
func (w *Watcher) Rules() Rules {
	return w.current.Load().Rules()
}

// Reload re-reads the rules file now.
func (w *Watcher) Reload() error {
	rules, err := LoadRules(w.path)
	if err != nil {
		w.logger.Warn().Err(err).Str("path", w.path).Msg("rules_reload_failed")
		return err
	}
	rules = w.apply(rules)
	w.current.Store(New(rules))
	w.logger.Info().Str("path", w.path).Msg("rules_reloaded")
	if w.onReload != nil {
		w.onReload(rules)
	}
	return nil
}

// Close stops watching. Rules stay usable after Close.
func (w *Watcher) Close() error {
	w.cancel()
	err := w.watcher.Close()
	w.wg.Wait()

	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
	return err
}

func (w *Watcher) apply(r Rules) Rules {
	if w.adjust == nil {
		return r
	}
	return w.adjust(r).WithDefaults()
}

func (w *Watcher) processEvents() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				w.schedule()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn().Err(err).Msg("rules_watch_error")
		}
	}
}

// schedule arms (or re-arms) the debounced reload.
func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.ctx.Err() != nil {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		if w.ctx.Err() != nil {
			return
		}
		_ = w.Reload()
	})
}
