// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/taibuivan/giftlist/internal/platform/constants"
	"github.com/taibuivan/giftlist/internal/platform/ctxutil"
	"github.com/taibuivan/giftlist/internal/platform/dberr"
	"github.com/taibuivan/giftlist/internal/platform/metrics"
	"github.com/taibuivan/giftlist/internal/platform/sec"
)

// # Session Manager

/*
SessionManager issues, validates and renews login sessions.

Only hex(SHA-256(token)) is ever persisted; the raw token exists on the client
and in the return value of [GenerateSessionToken].
*/
type SessionManager struct {
	store Store
	clock func() time.Time
}

// NewSessionManager constructs a [SessionManager] over store.
func NewSessionManager(store Store, opts ...Option) *SessionManager {
	built := buildOptions(opts)
	return &SessionManager{store: store, clock: built.clock}
}

// GenerateSessionToken returns a fresh 160-bit token encoded as lowercase
// unpadded base32.
func GenerateSessionToken() (string, error) {
	token, err := sec.GenerateSecureToken()
	if err != nil {
		return "", fmt.Errorf("session_token_generation_failed: %w", err)
	}
	return token, nil
}

/*
CreateSession persists a session derived from token.

Parameters:
  - context: context.Context
  - token: string (from [GenerateSessionToken])
  - userID: string
  - flags: SessionFlags

Returns:
  - *Session: The stored record, expiring 30 days from now
  - error: Persistence failures
*/
func (manager *SessionManager) CreateSession(context context.Context, token, userID string, flags SessionFlags) (*Session, error) {
	return manager.createSession(context, manager.store, token, userID, flags)
}

// createSession writes through store so callers can enlist it in a transaction.
func (manager *SessionManager) createSession(context context.Context, store Store, token, userID string, flags SessionFlags) (*Session, error) {
	session := &Session{
		ID:                sec.HashToken(token),
		UserID:            userID,
		ExpiresAt:         manager.clock().Add(constants.SessionTTL),
		TwoFactorVerified: flags.TwoFactorVerified,
	}

	if err := store.Sessions().Create(context, session); err != nil {
		return nil, fmt.Errorf("session_create_failed: %w", err)
	}

	return session, nil
}

/*
ValidateSessionToken resolves token to its session and owner.

Description: Unknown tokens and expired sessions yield the absent result.
Expired sessions are deleted on the way out. A session with less than 15 days
left is renewed to a full 30 days.

Parameters:
  - context: context.Context
  - token: string

Returns:
  - SessionValidation: Present with session and user, or absent
  - error: Persistence failures only
*/
func (manager *SessionManager) ValidateSessionToken(context context.Context, token string) (SessionValidation, error) {
	sessions := manager.store.Sessions()
	id := sec.HashToken(token)

	// 1. Lookup
	session, user, err := sessions.FindWithUser(context, id)
	if dberr.IsNotFound(err) {
		metrics.RecordSessionValidation(metrics.OutcomeUnknown)
		return SessionValidation{}, nil
	}
	if err != nil {
		return SessionValidation{}, fmt.Errorf("session_lookup_failed: %w", err)
	}

	now := manager.clock()

	// 2. Expiry (fail closed)
	if !now.Before(session.ExpiresAt) {
		if err := sessions.Delete(context, session.ID); err != nil {
			return SessionValidation{}, fmt.Errorf("session_expire_failed: %w", err)
		}
		metrics.RecordSessionValidation(metrics.OutcomeExpired)
		return SessionValidation{}, nil
	}

	// 3. Rolling renewal
	if !now.Before(session.ExpiresAt.Add(-constants.SessionRenewThreshold)) {
		session.ExpiresAt = now.Add(constants.SessionTTL)
		if err := sessions.UpdateExpiry(context, session.ID, session.ExpiresAt); err != nil {
			return SessionValidation{}, fmt.Errorf("session_renew_failed: %w", err)
		}

		ctxutil.GetLogger(context).DebugContext(context, "session_renewed",
			slog.String("user_id", session.UserID),
			slog.Time("expires_at", session.ExpiresAt),
		)
		metrics.RecordSessionValidation(metrics.OutcomeRenewed)
		return resolved(*session, *user), nil
	}

	metrics.RecordSessionValidation(metrics.OutcomeValid)
	return resolved(*session, *user), nil
}

// InvalidateSession deletes one session. Unknown ids are not an error.
func (manager *SessionManager) InvalidateSession(context context.Context, sessionID string) error {
	if err := manager.store.Sessions().Delete(context, sessionID); err != nil {
		return fmt.Errorf("session_invalidate_failed: %w", err)
	}
	return nil
}

// InvalidateUserSessions deletes every session of userID.
func (manager *SessionManager) InvalidateUserSessions(context context.Context, userID string) error {
	if err := manager.store.Sessions().DeleteByUser(context, userID); err != nil {
		return fmt.Errorf("session_invalidate_user_failed: %w", err)
	}
	return nil
}

// SetSessionAs2FAVerified marks the session as having passed the second
// factor. There is no inverse operation.
func (manager *SessionManager) SetSessionAs2FAVerified(context context.Context, sessionID string) error {
	if err := manager.store.Sessions().SetTwoFactorVerified(context, sessionID); err != nil {
		return fmt.Errorf("session_set_2fa_failed: %w", err)
	}
	return nil
}
