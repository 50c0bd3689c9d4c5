// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config loads and validates campusbot configuration.
//
// TOML is the primary format, JSON is accepted as a fallback, and every
// value has a built-in default so an empty or missing file is valid.
//
// # Key Types
//
//   - Config: the complete configuration
//   - ServiceConfig: answer service location, secret and pacing
//   - ScreenConfig: one chat screen (endpoint, welcome line, suggestions)
//   - ModerationConfig: rules file and overrides for the input moderator
//   - StorageConfig: the local exchange archive
//
// # Configuration Precedence
//
//   - Environment variables (CAMPUSBOT_*)
//   - ~/.campusbot/config.toml
//   - ~/.campusbot/config.json
//   - Built-in defaults
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    return err
//	}
//	screen, ok := cfg.Screen("papers")
package config
