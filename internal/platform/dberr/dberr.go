// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package dberr classifies pgx errors for the auth store: missing rows and
// unique violations become [apperr.AppError] values, everything else a 500.
package dberr

import (
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/taibuivan/giftlist/internal/platform/apperr"
)

var (
	// ErrNotFound is what every repository returns for a missing row.
	ErrNotFound = apperr.NotFound("Resource")
)

// Wrap classifies err. action completes "while ..." in the 500 message.
func Wrap(err error, action string) error {
	if err == nil {
		return nil
	}

	// 1. Not Found mapping
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}

	// 2. Unique constraint violations become conflicts
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		conflict := apperr.Conflict("Resource already exists")
		conflict.Cause = err
		return conflict
	}

	// 3. Unknown query errors become Internal Server Errors
	internal := apperr.Internal(err)
	internal.Message = "An unexpected error occurred while " + action
	return internal
}

// IsNotFound reports whether err is (or wraps) [ErrNotFound] or [pgx.ErrNoRows].
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, pgx.ErrNoRows)
}

// IsConflict reports whether err carries a unique constraint violation.
func IsConflict(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		return true
	}
	appErr := apperr.As(err)
	return appErr != nil && appErr.Code == "CONFLICT"
}
