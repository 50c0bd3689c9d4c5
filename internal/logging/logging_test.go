// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{" WARN ", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"", zerolog.InfoLevel},
		{"chatty", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNew_WritesJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", FileName)

	logger, closer, err := New(Options{Level: "debug", Path: path})
	require.NoError(t, err)

	cl := Component(logger, "conversation")
	cl.Info().
		Str("screen", "papers").
		Int("tokens", 12).
		Msg("stream_complete")
	logger.Trace().Msg("dropped")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "stream_complete", entry["message"])
	assert.Equal(t, "conversation", entry["component"])
	assert.Equal(t, "campusbot", entry["app"])
	assert.Equal(t, "papers", entry["screen"])
	assert.EqualValues(t, 12, entry["tokens"])
}

func TestNew_LevelFilters(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	logger, closer, err := New(Options{Level: "warn", Path: path})
	require.NoError(t, err)

	logger.Info().Msg("submit")
	logger.Warn().Msg("service_error")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "submit")
	assert.Contains(t, string(data), "service_error")
}

func TestNew_ConsoleOnly(t *testing.T) {
	var buf bytes.Buffer
	logger, closer, err := New(Options{Discard: true, Console: &buf})
	require.NoError(t, err)
	defer closer.Close()

	logger.Info().Str("rule", "greeting").Msg("moderation_reject")
	assert.Contains(t, buf.String(), "moderation_reject")
	assert.Contains(t, buf.String(), "greeting")
}

func TestNew_DiscardEverything(t *testing.T) {
	logger, closer, err := New(Options{Discard: true})
	require.NoError(t, err)
	assert.NoError(t, closer.Close())
	assert.Equal(t, zerolog.Disabled, logger.GetLevel())
}
