// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/jeranaias/campusbot/internal/storage"
	"github.com/jeranaias/campusbot/internal/util"
)

// ErrEmpty is returned when there is nothing to export.
var ErrEmpty = errors.New("no exchanges to export")

// =============================================================================
// EXPORT INTERFACE
// =============================================================================

// Transcript is a titled list of exchanges, oldest first.
type Transcript struct {
	Title     string
	Screen    string
	Exchanges []storage.Exchange
}

// Exporter converts a transcript to one file format.
type Exporter interface {
	Export(t Transcript) ([]byte, error)

	// FileExtension includes the dot, e.g. ".md".
	FileExtension() string
}

// Format names an exporter.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
	FormatHTML     Format = "html"
)

// Formats lists the supported formats.
func Formats() []Format {
	return []Format{FormatMarkdown, FormatJSON, FormatHTML}
}

// ForFormat returns the exporter for f, or nil when f is unknown. "md" is
// accepted for markdown.
func ForFormat(f Format) Exporter {
	switch Format(strings.ToLower(string(f))) {
	case FormatMarkdown, "md":
		return MarkdownExporter{}
	case FormatJSON:
		return JSONExporter{}
	case FormatHTML:
		return HTMLExporter{}
	}
	return nil
}

// =============================================================================
// FILE OUTPUT
// =============================================================================

// Options configures ToFile.
type Options struct {
	// OutputDir is where the file is written. Default: current directory.
	OutputDir string

	// Now stamps the file name; zero means time.Now().
	Now time.Time
}

// ToFile exports t and writes it under opts.OutputDir. It returns the path
// written.
func ToFile(t Transcript, exporter Exporter, opts Options) (string, error) {
	if len(t.Exchanges) == 0 {
		return "", ErrEmpty
	}
	content, err := exporter.Export(t)
	if err != nil {
		return "", fmt.Errorf("export failed: %w", err)
	}

	dir := opts.OutputDir
	if dir == "" {
		dir = "."
	}
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	name := fmt.Sprintf("campusbot_%s_%s%s",
		sanitizeFilename(t.Title),
		now.Format("20060102_150405"),
		exporter.FileExtension(),
	)
	path := filepath.Join(dir, name)
	if err := util.WriteFileAtomic(path, content, 0644, 0755); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	return path, nil
}

// =============================================================================
// HELPERS
// =============================================================================

var filenameReplacer = strings.NewReplacer(
	"/", "-", "\\", "-", ":", "-", "*", "-", "?", "-",
	"\"", "-", "<", "-", ">", "-", "|", "-",
	" ", "_", "\t", "_", "\n", "_", "\r", "_",
)

// sanitizeFilename makes s safe as a file name on Windows and Unix.
func sanitizeFilename(s string) string {
	const maxLen = 50
	if runes := []rune(s); len(runes) > maxLen {
		s = string(runes[:maxLen])
	}
	s = filenameReplacer.Replace(s)
	s = strings.Map(func(r rune) rune {
		if r < 32 || r == 127 {
			return '-'
		}
		return r
	}, s)
	if s == "" {
		return "transcript"
	}
	return s
}

func formatTimestamp(t time.Time) string {
	return t.Format("2006-01-02 15:04:05")
}
