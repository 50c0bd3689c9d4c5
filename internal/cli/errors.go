// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/jeranaias/campusbot/internal/answer"
	"github.com/jeranaias/campusbot/internal/config"
	"github.com/jeranaias/campusbot/internal/storage"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	ExitSuccess      = 0
	ExitGeneralError = 1
	// ExitUsageError covers bad arguments and queries rejected by moderation.
	ExitUsageError   = 2
	ExitConfigError  = 3
	ExitNetworkError = 5
	ExitNotFound     = 7
	ExitTimeoutError = 8
	// ExitInterrupted follows the shell convention for SIGINT.
	ExitInterrupted = 130
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// CommandError wraps a failure with the command and action that hit it.
type CommandError struct {
	Command string
	Action  string
	Reason  string
	Err     error
}

func (e *CommandError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s failed: %s: %v", e.Command, e.Action, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s %s failed: %s", e.Command, e.Action, e.Reason)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// UsageError reports bad arguments.
type UsageError struct {
	Message string
}

func (e *UsageError) Error() string { return e.Message }

// RejectedError is returned when moderation refuses a query outright.
type RejectedError struct {
	Reason string
}

func (e *RejectedError) Error() string { return "query rejected: " + e.Reason }

// TTYRequiredError is returned by commands that need an interactive terminal.
type TTYRequiredError struct {
	Action string
}

func (e *TTYRequiredError) Error() string {
	return fmt.Sprintf("cannot %s: not a terminal (try 'campusbot chat' or 'campusbot ask')", e.Action)
}

// errStopped marks an answer the user interrupted.
var errStopped = errors.New("answer stopped")

// =============================================================================
// EXIT CODE MAPPING
// =============================================================================

// ExitCode picks the process exit code for err.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var (
		usage    *UsageError
		rejected *RejectedError
		tty      *TTYRequiredError
		invalid  config.ValidateErrors
		svc      *answer.ServiceError
	)
	switch {
	case errors.Is(err, errStopped), errors.Is(err, context.Canceled):
		return ExitInterrupted
	case errors.As(err, &usage), errors.As(err, &rejected), errors.As(err, &tty):
		return ExitUsageError
	case errors.As(err, &invalid):
		return ExitConfigError
	case errors.Is(err, storage.ErrNotFound):
		return ExitNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return ExitTimeoutError
	case errors.As(err, &svc):
		return ExitNetworkError
	}
	return ExitGeneralError
}
