// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog"

	"github.com/jeranaias/campusbot/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete campusbot configuration.
type Config struct {
	Version string `toml:"version" json:"version"`

	Service    ServiceConfig    `toml:"service" json:"service"`
	Streaming  StreamingConfig  `toml:"streaming" json:"streaming"`
	Moderation ModerationConfig `toml:"moderation" json:"moderation"`
	UI         UIConfig         `toml:"ui" json:"ui"`
	Storage    StorageConfig    `toml:"storage" json:"storage"`
	Logging    LoggingConfig    `toml:"logging" json:"logging"`

	// Screens lists the chat screens. An empty list means the built-in three.
	Screens []ScreenConfig `toml:"screens" json:"screens"`
}

// ServiceConfig locates the answer service.
type ServiceConfig struct {
	BaseURL           string  `toml:"base_url" json:"base_url"`
	Secret            string  `toml:"secret" json:"secret,omitempty"`
	TimeoutSeconds    int     `toml:"timeout_seconds" json:"timeout_seconds"`
	RequestsPerSecond float64 `toml:"requests_per_second" json:"requests_per_second"`
	Burst             int     `toml:"burst" json:"burst"`
	FeedbackPath      string  `toml:"feedback_path" json:"feedback_path"`
	UserAgent         string  `toml:"user_agent" json:"user_agent,omitempty"`
}

// StreamingConfig controls the typewriter reveal.
type StreamingConfig struct {
	IntervalMS int `toml:"interval_ms" json:"interval_ms"`
}

// ModerationConfig points at an optional rules file and overrides a few of
// its numbers. Zero overrides keep the rules file (or built-in) values.
type ModerationConfig struct {
	RulesFile      string `toml:"rules_file" json:"rules_file,omitempty"`
	Watch          bool   `toml:"watch" json:"watch"`
	ReplyDelayMS   int    `toml:"reply_delay_ms" json:"reply_delay_ms"`
	MaxLength      int    `toml:"max_length" json:"max_length,omitempty"`
	LockoutSeconds int    `toml:"lockout_seconds" json:"lockout_seconds,omitempty"`
	MinWords       int    `toml:"min_words" json:"min_words,omitempty"`
}

// ScreenConfig describes one chat screen.
type ScreenConfig struct {
	Name        string   `toml:"name" json:"name"`
	Title       string   `toml:"title" json:"title"`
	Welcome     string   `toml:"welcome" json:"welcome"`
	Path        string   `toml:"path" json:"path"`
	Format      string   `toml:"format" json:"format"`
	IntervalMS  int      `toml:"interval_ms" json:"interval_ms,omitempty"`
	Suggestions []string `toml:"suggestions" json:"suggestions"`
}

// UIConfig holds presentation settings.
type UIConfig struct {
	Theme         string `toml:"theme" json:"theme"`
	DefaultScreen string `toml:"default_screen" json:"default_screen"`
	FallbackText  string `toml:"fallback_text" json:"fallback_text"`
	Markdown      bool   `toml:"markdown" json:"markdown"`
}

// StorageConfig controls the local archive of settled exchanges.
type StorageConfig struct {
	Enabled    bool   `toml:"enabled" json:"enabled"`
	Path       string `toml:"path" json:"path,omitempty"`
	MaxRecords int    `toml:"max_records" json:"max_records"`
}

// LoggingConfig controls the log file.
type LoggingConfig struct {
	Level string `toml:"level" json:"level"`
	Path  string `toml:"path" json:"path,omitempty"`
}

// Screen formats.
const (
	FormatText   = "text"
	FormatPapers = "papers"
)

// Themes.
const (
	ThemeAuto  = "auto"
	ThemeDark  = "dark"
	ThemeLight = "light"
)

// CurrentVersion is written into new config files.
const CurrentVersion = "1"

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Version: CurrentVersion,
		Service: ServiceConfig{
			BaseURL:           "http://127.0.0.1:8000",
			TimeoutSeconds:    60,
			RequestsPerSecond: 1,
			Burst:             3,
			FeedbackPath:      "/api/feedback",
		},
		Streaming: StreamingConfig{
			IntervalMS: 30,
		},
		UI: UIConfig{
			Theme:         ThemeAuto,
			DefaultScreen: "assistant",
			FallbackText:  "Error fetching response",
			Markdown:      true,
		},
		Storage: StorageConfig{
			Enabled:    true,
			MaxRecords: 500,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Screens: DefaultScreens(),
	}
}

// DefaultScreens returns the built-in assistant, notices and papers screens.
func DefaultScreens() []ScreenConfig {
	return []ScreenConfig{
		{
			Name:    "assistant",
			Title:   "DTU Assistant",
			Welcome: "Welcome to DTU Assistant!",
			Path:    "/chat/result",
			Format:  FormatText,
			Suggestions: []string{
				"Tell me about DTU's history",
				"I want to complete my BTech Project, recommend professors in CSE department.",
				"Who is HOD of IT?",
				"What departments are available at DTU?",
				"I want to do research in Blockchain. Which Faculty is specialized in this domain?",
				"What are the placement statistics for DTU?",
				"Tell me about hostel facilities at DTU",
				"What sports facilities are available at DTU?",
				"What clubs and societies are active in DTU?",
			},
		},
		{
			Name:    "notices",
			Title:   "DTU Notice",
			Welcome: "DTU Notifier with latest notices!",
			Path:    "/chat/information",
			Format:  FormatText,
		},
		{
			Name:    "papers",
			Title:   "Past Papers",
			Welcome: "Welcome to Pyq's Section",
			Path:    "/api/pyq_papers",
			Format:  FormatPapers,
			Suggestions: []string{
				"Pyq of computer networks",
				"Pyq of compiler design 2023",
				"Pyq of end sem of dbms",
				"Pyq of Operating System Design endsem",
				"Pyq of IT branch",
				"Pyq of 'subject_name'",
			},
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns ~/.campusbot.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".campusbot"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// EnsureConfigDir creates the config directory if needed.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0700)
}

// The config may hold the service secret, so it stays owner-only.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode := info.Mode().Perm(); mode&0077 != 0 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load reads ~/.campusbot/config.toml, falling back to config.json and then
// to defaults. Environment overrides are applied last. A file that exists
// but cannot be decoded is reported alongside the defaults.
func Load() (*Config, error) {
	var loadErr error

	if path, err := ConfigPathTOML(); err == nil {
		if _, statErr := os.Stat(path); statErr == nil {
			cfg := Default()
			if err := LoadTOML(cfg, path); err != nil {
				loadErr = fmt.Errorf("failed to load TOML config: %w", err)
			} else {
				return finalize(cfg)
			}
		}
	}

	if path, err := ConfigPathJSON(); err == nil {
		if _, statErr := os.Stat(path); statErr == nil {
			cfg := Default()
			if err := LoadJSON(cfg, path); err != nil {
				loadErr = errors.Join(loadErr, fmt.Errorf("failed to load JSON config: %w", err))
			} else {
				return finalize(cfg)
			}
		}
	}

	cfg, err := finalize(Default())
	if err != nil {
		return nil, err
	}
	return cfg, loadErr
}

// LoadFromPath loads a specific file. Files ending in .json are read as
// JSON, anything else as TOML.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()
	if strings.HasSuffix(strings.ToLower(path), ".json") {
		if err := LoadJSON(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load JSON config from %s: %w", path, err)
		}
	} else {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load TOML config from %s: %w", path, err)
		}
	}
	return finalize(cfg)
}

// LoadTOML decodes a TOML file over cfg. Screens in the file replace the
// built-in list rather than merging into it, and an unset ui.default_screen
// becomes the first screen.
func LoadTOML(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}
	resetScreens(cfg)
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	return nil
}

// LoadJSON decodes a JSON file over cfg.
func LoadJSON(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	resetScreens(cfg)
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	return nil
}

// resetScreens clears the screen list and the default screen before a file
// is decoded, so a file's screens are not checked against the built-in
// default. SetDefaults fills both back in when the file leaves them out.
func resetScreens(cfg *Config) {
	cfg.Screens = nil
	cfg.UI.DefaultScreen = ""
}

func finalize(cfg *Config) (*Config, error) {
	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save writes cfg to ~/.campusbot/config.toml.
func Save(cfg *Config) error {
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes cfg as TOML with owner-only permissions.
func SaveTOML(cfg *Config, path string) error {
	var buf bytes.Buffer
	buf.WriteString("# campusbot configuration file\n")
	buf.WriteString("# Values left out fall back to built-in defaults.\n\n")
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.WriteFileAtomic(path, buf.Bytes(), 0600, 0700); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// SaveJSON writes cfg as indented JSON with owner-only permissions.
func SaveJSON(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.WriteFileAtomic(path, data, 0600, 0700); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// DEFAULTS AND VALIDATION
// =============================================================================

// SetDefaults fills zero values with built-in defaults. A configured screen
// that shares a built-in name inherits the built-in's unset fields.
func (c *Config) SetDefaults() {
	d := Default()

	if c.Version == "" {
		c.Version = d.Version
	}

	if c.Service.BaseURL == "" {
		c.Service.BaseURL = d.Service.BaseURL
	}
	c.Service.BaseURL = strings.TrimRight(c.Service.BaseURL, "/")
	if c.Service.TimeoutSeconds == 0 {
		c.Service.TimeoutSeconds = d.Service.TimeoutSeconds
	}
	if c.Service.RequestsPerSecond == 0 {
		c.Service.RequestsPerSecond = d.Service.RequestsPerSecond
	}
	if c.Service.Burst == 0 {
		c.Service.Burst = d.Service.Burst
	}
	if c.Service.FeedbackPath == "" {
		c.Service.FeedbackPath = d.Service.FeedbackPath
	}

	if c.Streaming.IntervalMS == 0 {
		c.Streaming.IntervalMS = d.Streaming.IntervalMS
	}

	if c.UI.Theme == "" {
		c.UI.Theme = d.UI.Theme
	}
	if c.UI.FallbackText == "" {
		c.UI.FallbackText = d.UI.FallbackText
	}

	if c.Storage.MaxRecords == 0 {
		c.Storage.MaxRecords = d.Storage.MaxRecords
	}

	if c.Logging.Level == "" {
		c.Logging.Level = d.Logging.Level
	}

	if len(c.Screens) == 0 {
		c.Screens = d.Screens
	}
	builtin := make(map[string]ScreenConfig, len(d.Screens))
	for _, s := range d.Screens {
		builtin[s.Name] = s
	}
	for i := range c.Screens {
		s := &c.Screens[i]
		s.Name = strings.ToLower(strings.TrimSpace(s.Name))
		b, ok := builtin[s.Name]
		if !ok {
			if s.Format == "" {
				s.Format = FormatText
			}
			if s.Title == "" {
				s.Title = s.Name
			}
			continue
		}
		if s.Title == "" {
			s.Title = b.Title
		}
		if s.Welcome == "" {
			s.Welcome = b.Welcome
		}
		if s.Path == "" {
			s.Path = b.Path
		}
		if s.Format == "" {
			s.Format = b.Format
		}
		if s.Suggestions == nil {
			s.Suggestions = b.Suggestions
		}
	}

	if c.UI.DefaultScreen == "" {
		c.UI.DefaultScreen = c.Screens[0].Name
	}
}

// ValidationError describes one invalid field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors collects every validation failure.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate checks every section and returns ValidateErrors on failure.
func (c *Config) Validate() error {
	var errs ValidateErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	// Service
	if u, err := url.Parse(c.Service.BaseURL); err != nil || u.Host == "" {
		add("service.base_url", "invalid URL '%s'", c.Service.BaseURL)
	} else if u.Scheme != "http" && u.Scheme != "https" {
		add("service.base_url", "scheme must be http or https, got '%s'", u.Scheme)
	}
	if c.Service.TimeoutSeconds < 1 || c.Service.TimeoutSeconds > 600 {
		add("service.timeout_seconds", "must be between 1 and 600, got %d", c.Service.TimeoutSeconds)
	}
	if c.Service.RequestsPerSecond <= 0 {
		add("service.requests_per_second", "must be positive, got %g", c.Service.RequestsPerSecond)
	}
	if c.Service.Burst < 1 {
		add("service.burst", "must be at least 1, got %d", c.Service.Burst)
	}
	if !strings.HasPrefix(c.Service.FeedbackPath, "/") {
		add("service.feedback_path", "must start with '/', got '%s'", c.Service.FeedbackPath)
	}

	// Streaming
	if c.Streaming.IntervalMS < 1 || c.Streaming.IntervalMS > 1000 {
		add("streaming.interval_ms", "must be between 1 and 1000, got %d", c.Streaming.IntervalMS)
	}

	// Moderation
	if c.Moderation.ReplyDelayMS < 0 || c.Moderation.ReplyDelayMS > 10000 {
		add("moderation.reply_delay_ms", "must be between 0 and 10000, got %d", c.Moderation.ReplyDelayMS)
	}
	if c.Moderation.MaxLength < 0 {
		add("moderation.max_length", "must not be negative, got %d", c.Moderation.MaxLength)
	}
	if c.Moderation.LockoutSeconds < 0 {
		add("moderation.lockout_seconds", "must not be negative, got %d", c.Moderation.LockoutSeconds)
	}
	if c.Moderation.MinWords < 0 {
		add("moderation.min_words", "must not be negative, got %d", c.Moderation.MinWords)
	}

	// Screens
	seen := make(map[string]bool, len(c.Screens))
	for i, s := range c.Screens {
		field := fmt.Sprintf("screens[%d]", i)
		if s.Name == "" {
			add(field+".name", "must not be empty")
		} else if seen[s.Name] {
			add(field+".name", "duplicate screen '%s'", s.Name)
		}
		seen[s.Name] = true
		if !strings.HasPrefix(s.Path, "/") {
			add(field+".path", "must start with '/', got '%s'", s.Path)
		}
		if s.Format != FormatText && s.Format != FormatPapers {
			add(field+".format", "invalid format '%s', must be one of: text, papers", s.Format)
		}
		if s.IntervalMS < 0 || s.IntervalMS > 1000 {
			add(field+".interval_ms", "must be between 0 and 1000, got %d", s.IntervalMS)
		}
	}
	if !seen[c.UI.DefaultScreen] {
		add("ui.default_screen", "unknown screen '%s'", c.UI.DefaultScreen)
	}

	// UI
	switch c.UI.Theme {
	case ThemeAuto, ThemeDark, ThemeLight:
	default:
		add("ui.theme", "invalid theme '%s', must be one of: auto, dark, light", c.UI.Theme)
	}

	// Storage
	if c.Storage.MaxRecords < 0 {
		add("storage.max_records", "must not be negative, got %d", c.Storage.MaxRecords)
	}

	// Logging
	if _, err := zerolog.ParseLevel(strings.ToLower(c.Logging.Level)); err != nil {
		add("logging.level", "invalid level '%s'", c.Logging.Level)
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides.
//
// Supported environment variables:
//   - CAMPUSBOT_SERVICE_URL: service.base_url
//   - CAMPUSBOT_SECRET: service.secret
//   - CAMPUSBOT_LOG_LEVEL: logging.level
//   - CAMPUSBOT_STREAM_INTERVAL_MS: streaming.interval_ms
//   - CAMPUSBOT_THEME: ui.theme
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("CAMPUSBOT_SERVICE_URL"); v != "" {
		c.Service.BaseURL = v
	}
	if v := os.Getenv("CAMPUSBOT_SECRET"); v != "" {
		c.Service.Secret = v
	}
	if v := os.Getenv("CAMPUSBOT_LOG_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv("CAMPUSBOT_STREAM_INTERVAL_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			c.Streaming.IntervalMS = ms
		}
	}
	if v := os.Getenv("CAMPUSBOT_THEME"); v != "" {
		c.UI.Theme = strings.ToLower(v)
	}
}

// =============================================================================
// ACCESSORS
// =============================================================================

// Screen returns the screen named name.
func (c *Config) Screen(name string) (ScreenConfig, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, s := range c.Screens {
		if s.Name == name {
			return s, true
		}
	}
	return ScreenConfig{}, false
}

// ScreenNames returns screen names in configured order.
func (c *Config) ScreenNames() []string {
	names := make([]string, len(c.Screens))
	for i, s := range c.Screens {
		names[i] = s.Name
	}
	return names
}

// Timeout returns the per-request timeout.
func (s ServiceConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}

// Interval returns the reveal interval for screen s, falling back to the
// global streaming interval.
func (c *Config) Interval(s ScreenConfig) time.Duration {
	if s.IntervalMS > 0 {
		return time.Duration(s.IntervalMS) * time.Millisecond
	}
	return time.Duration(c.Streaming.IntervalMS) * time.Millisecond
}

// ReplyDelay returns the delay before canned moderation replies.
func (m ModerationConfig) ReplyDelay() time.Duration {
	return time.Duration(m.ReplyDelayMS) * time.Millisecond
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a value by dotted key, e.g. "service.base_url".
func (c *Config) Get(key string) (any, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// Set assigns a value by dotted key. String values are converted to the
// field's type.
func (c *Config) Set(key string, value any) error {
	field, err := c.lookup(key)
	if err != nil {
		return err
	}
	if !field.CanSet() {
		return fmt.Errorf("cannot set field: %s", key)
	}
	return setFieldValue(field, value)
}

func (c *Config) lookup(key string) (reflect.Value, error) {
	if strings.TrimSpace(key) == "" {
		return reflect.Value{}, errors.New("empty key")
	}
	parts := strings.Split(key, ".")
	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		field, ok := fieldByTag(v, part)
		if !ok {
			return reflect.Value{}, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
		if i == len(parts)-1 {
			if field.Kind() == reflect.Struct || field.Kind() == reflect.Slice {
				return reflect.Value{}, fmt.Errorf("field '%s' is not a scalar", key)
			}
			return field, nil
		}
		if field.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("field '%s' is not a section", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return reflect.Value{}, fmt.Errorf("invalid key: %s", key)
}

// fieldByTag finds the struct field whose toml tag is name.
func fieldByTag(v reflect.Value, name string) (reflect.Value, bool) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		tag := strings.Split(t.Field(i).Tag.Get("toml"), ",")[0]
		if tag == name {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}

func setFieldValue(field reflect.Value, value any) error {
	if s, ok := value.(string); ok {
		switch field.Kind() {
		case reflect.String:
			field.SetString(s)
			return nil
		case reflect.Int, reflect.Int64:
			n, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer value: %w", err)
			}
			field.SetInt(n)
			return nil
		case reflect.Float64:
			f, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return fmt.Errorf("invalid float value: %w", err)
			}
			field.SetFloat(f)
			return nil
		case reflect.Bool:
			b, err := strconv.ParseBool(s)
			if err != nil {
				return fmt.Errorf("invalid boolean value: %w", err)
			}
			field.SetBool(b)
			return nil
		}
	}

	val := reflect.ValueOf(value)
	if !val.IsValid() {
		return fmt.Errorf("cannot assign nil to %s", field.Type())
	}
	if val.Type().AssignableTo(field.Type()) {
		field.Set(val)
		return nil
	}
	if val.Type().ConvertibleTo(field.Type()) && val.Kind() != reflect.String {
		field.Set(val.Convert(field.Type()))
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", value, field.Type())
}

// Keys returns every settable dotted key.
func Keys() []string {
	var keys []string
	var walk func(t reflect.Type, prefix string)
	walk = func(t reflect.Type, prefix string) {
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			tag := strings.Split(f.Tag.Get("toml"), ",")[0]
			if tag == "" || tag == "-" {
				continue
			}
			switch f.Type.Kind() {
			case reflect.Struct:
				walk(f.Type, prefix+tag+".")
			case reflect.Slice:
			default:
				keys = append(keys, prefix+tag)
			}
		}
	}
	walk(reflect.TypeOf(Config{}), "")
	return keys
}

// =============================================================================
// COPY AND DISPLAY
// =============================================================================

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	clone := *c
	if c.Screens != nil {
		clone.Screens = make([]ScreenConfig, len(c.Screens))
		for i, s := range c.Screens {
			s.Suggestions = append([]string(nil), s.Suggestions...)
			clone.Screens[i] = s
		}
	}
	return &clone
}

// String renders the config as JSON with the service secret redacted.
func (c *Config) String() string {
	safe := c.Clone()
	if safe.Service.Secret != "" {
		safe.Service.Secret = "[REDACTED]"
	}
	data, _ := json.MarshalIndent(safe, "", "  ")
	return string(data)
}
