// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package apperr is the error vocabulary shared by the credential flows and the
HTTP layer.

Flows return an [*AppError] whenever the outcome is the caller's fault (a wrong
code, an exhausted bucket, a missing session). Anything else travels as a plain
wrapped error and is rendered as a 500 by the respond package.
*/
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError carries everything the HTTP layer needs to answer a client.
//
// Cause is for server logs only and is never serialised.
type AppError struct {
	Code       string       `json:"code"`
	Message    string       `json:"error"`
	HTTPStatus int          `json:"-"`
	Cause      error        `json:"-"`
	Details    []FieldError `json:"details,omitempty"`

	// RetryAfter, in seconds, becomes a Retry-After header when positive.
	RetryAfter int `json:"-"`
}

// FieldError is one rejected input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *AppError) Error() string { return e.Message }

func (e *AppError) Unwrap() error { return e.Cause }

func newError(status int, code, message string) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: status}
}

// # Client Errors (4xx)

// NotFound creates a 404 for a named resource ("Session" becomes
// "Session not found").
func NotFound(resource string) *AppError {
	return newError(http.StatusNotFound, "NOT_FOUND", resource+" not found")
}

// Unauthorized creates a 401. Used when no valid session or reset session
// backs the request.
func Unauthorized(msg string) *AppError {
	return newError(http.StatusUnauthorized, "UNAUTHORIZED", msg)
}

// Forbidden creates a 403. Used when the caller is known but the flow is in the
// wrong state, such as resetting a password before the code was verified.
func Forbidden(msg string) *AppError {
	return newError(http.StatusForbidden, "FORBIDDEN", msg)
}

// BadRequest creates a 400 with a caller-chosen code, for failures such as a
// mismatched one-time code.
func BadRequest(code, msg string) *AppError {
	return newError(http.StatusBadRequest, code, msg)
}

// Conflict creates a 409 for unique-constraint violations.
func Conflict(msg string) *AppError {
	return newError(http.StatusConflict, "CONFLICT", msg)
}

// ValidationError creates a 400 with optional per-field details.
func ValidationError(msg string, details ...FieldError) *AppError {
	appErr := newError(http.StatusBadRequest, "VALIDATION_ERROR", msg)
	appErr.Details = details
	return appErr
}

// RateLimited creates a 429. A non-positive retryAfterSeconds omits the hint.
func RateLimited(retryAfterSeconds int) *AppError {
	appErr := newError(http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests")
	if retryAfterSeconds > 0 {
		appErr.Message = fmt.Sprintf("Too many requests. Try again in %ds.", retryAfterSeconds)
		appErr.RetryAfter = retryAfterSeconds
	}
	return appErr
}

// # Server Errors (5xx)

// Internal creates a 500 that keeps cause for logging.
func Internal(cause error) *AppError {
	appErr := newError(http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred")
	appErr.Cause = cause
	return appErr
}

// # Helpers

// As extracts the [*AppError] from err's chain, or nil.
func As(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}
