// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server is a local stand-in for the campus answer service, used
// for development and tests.
//
// Endpoints:
//   - POST /chat/result       - general campus questions
//   - POST /chat/information  - notices
//   - POST /api/pyq_papers    - past question paper rows
//   - POST /api/feedback      - answer feedback
//   - GET  /health            - liveness
//
// Every POST endpoint is rate limited per client address and reports the
// remaining allowance in X-RateLimit-Remaining. Exceeding it yields 429 with
// Retry-After, the same contract the real service has.
package server
