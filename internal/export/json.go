// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"

	"github.com/jeranaias/campusbot/internal/storage"
)

// JSONExporter writes the archived records unchanged.
type JSONExporter struct{}

type jsonTranscript struct {
	Title     string             `json:"title"`
	Screen    string             `json:"screen,omitempty"`
	Exchanges []storage.Exchange `json:"exchanges"`
}

func (JSONExporter) Export(t Transcript) ([]byte, error) {
	if len(t.Exchanges) == 0 {
		return nil, ErrEmpty
	}
	return json.MarshalIndent(jsonTranscript{Title: t.Title, Screen: t.Screen, Exchanges: t.Exchanges}, "", "  ")
}

func (JSONExporter) FileExtension() string { return ".json" }
