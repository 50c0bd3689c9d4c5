// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"github.com/jeranaias/campusbot/internal/answer"
	"github.com/jeranaias/campusbot/internal/config"
	"github.com/jeranaias/campusbot/internal/conversation"
	"github.com/jeranaias/campusbot/internal/moderation"
)

// ClientConfig maps the service section onto the answer client.
func ClientConfig(cfg *config.Config) *answer.ClientConfig {
	return &answer.ClientConfig{
		BaseURL:           cfg.Service.BaseURL,
		Secret:            cfg.Service.Secret,
		Timeout:           cfg.Service.Timeout(),
		RequestsPerSecond: cfg.Service.RequestsPerSecond,
		Burst:             cfg.Service.Burst,
		FeedbackPath:      cfg.Service.FeedbackPath,
		UserAgent:         cfg.Service.UserAgent,
	}
}

// Endpoint maps a screen onto its answer service endpoint.
func Endpoint(sc config.ScreenConfig) answer.Endpoint {
	format := answer.FormatText
	if sc.Format == config.FormatPapers {
		format = answer.FormatPapers
	}
	return answer.Endpoint{Name: sc.Name, Path: sc.Path, Format: format}
}

// MachineConfig builds a screen's conversation settings.
func MachineConfig(cfg *config.Config, sc config.ScreenConfig) conversation.Config {
	mc := conversation.DefaultConfig()
	mc.Screen = sc.Name
	mc.Interval = cfg.Interval(sc)
	mc.ReplyDelay = cfg.Moderation.ReplyDelay()
	if cfg.UI.FallbackText != "" {
		mc.FallbackText = cfg.UI.FallbackText
	}
	return mc
}

// ApplyOverrides applies the non-zero moderation numbers from the config.
func ApplyOverrides(r moderation.Rules, mc config.ModerationConfig) moderation.Rules {
	if mc.MaxLength > 0 {
		r.MaxLength = mc.MaxLength
	}
	if mc.LockoutSeconds > 0 {
		r.LockoutSeconds = mc.LockoutSeconds
	}
	if mc.MinWords > 0 {
		r.MinWords = mc.MinWords
	}
	return r
}
