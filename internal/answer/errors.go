// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package answer

import (
	"fmt"
	"time"
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// ErrorType classifies a ServiceError.
type ErrorType int

const (
	ErrTypeUnknown ErrorType = iota
	ErrTypeConnection
	ErrTypeTimeout
	ErrTypeRateLimited
	ErrTypeBadStatus
	ErrTypeInvalidResponse
	ErrTypeCanceled
)

// String returns a short name for the error type.
func (t ErrorType) String() string {
	switch t {
	case ErrTypeConnection:
		return "connection"
	case ErrTypeTimeout:
		return "timeout"
	case ErrTypeRateLimited:
		return "rate_limited"
	case ErrTypeBadStatus:
		return "bad_status"
	case ErrTypeInvalidResponse:
		return "invalid_response"
	case ErrTypeCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// ServiceError is returned for every failed call to the answer service.
type ServiceError struct {
	Type    ErrorType
	Message string
	Cause   error

	// Status is the HTTP status code, when a response was received.
	Status int

	// RetryAfter is the wait requested by a 429 response.
	RetryAfter time.Duration
}

func (e *ServiceError) Error() string {
	msg := e.Message
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	if e.Cause != nil {
		return msg + ": " + e.Cause.Error()
	}
	return msg
}

func (e *ServiceError) Unwrap() error {
	return e.Cause
}

// Is matches any ServiceError of the same Type, so the sentinels below work
// with errors.Is.
func (e *ServiceError) Is(target error) bool {
	t, ok := target.(*ServiceError)
	return ok && t.Type == e.Type
}

// Sentinel errors for easy checking.
var (
	ErrConnection      = &ServiceError{Type: ErrTypeConnection, Message: "answer service unreachable"}
	ErrTimeout         = &ServiceError{Type: ErrTypeTimeout, Message: "request timed out"}
	ErrRateLimited     = &ServiceError{Type: ErrTypeRateLimited, Message: "too many requests"}
	ErrBadStatus       = &ServiceError{Type: ErrTypeBadStatus, Message: "unexpected status"}
	ErrInvalidResponse = &ServiceError{Type: ErrTypeInvalidResponse, Message: "invalid response"}
	ErrCanceled        = &ServiceError{Type: ErrTypeCanceled, Message: "request canceled"}
)
