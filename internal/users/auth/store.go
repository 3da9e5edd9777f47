// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"time"
)

// # Store Contract

/*
Store groups the repositories of the auth domain behind one transactional
scope.

Single calls are atomic on their own. Multi-step mutations that must apply
all-or-nothing (completing a reset, confirming an email) run inside
[Store.WithinTx]; the Store handed to fn routes every call through the same
transaction, and any error rolls the whole sequence back.
*/
type Store interface {
	Users() UserRepository
	Sessions() SessionRepository
	PasswordResets() PasswordResetRepository
	EmailVerifications() EmailVerificationRepository

	/*
		WithinTx runs fn in a single transaction.

		Parameters:
		  - context: context.Context
		  - fn: func(context.Context, Store) error

		Returns:
		  - error: fn's error (after rollback) or a commit failure
	*/
	WithinTx(context context.Context, fn func(context context.Context, tx Store) error) error
}

// # User Data Access

// UserRepository defines the data access contract for user accounts.
// Lookups return dberr.ErrNotFound when the row does not exist.
type UserRepository interface {

	/*
		Create persists a brand-new user account.

		Parameters:
		  - context: context.Context
		  - user: *User

		Returns:
		  - error: apperr Conflict when the email is taken, or persistence failures
	*/
	Create(context context.Context, user *User) error

	/*
		FindByID returns the account with the given ID.

		Parameters:
		  - context: context.Context
		  - id: string

		Returns:
		  - *User: Hydrated entity
		  - error: dberr.ErrNotFound or retrieval failures
	*/
	FindByID(context context.Context, id string) (*User, error)

	/*
		FindByEmail returns the account registered with email.

		Parameters:
		  - context: context.Context
		  - email: string

		Returns:
		  - *User: Hydrated entity
		  - error: dberr.ErrNotFound or retrieval failures
	*/
	FindByEmail(context context.Context, email string) (*User, error)

	// EmailExists reports whether any account uses email.
	EmailExists(context context.Context, email string) (bool, error)

	// UpdatePassword replaces only the password hash.
	UpdatePassword(context context.Context, userID, passwordHash string) error

	/*
		UpdateEmailAndSetVerified stores email and marks it verified. A non-empty
		username is written in the same statement.

		Parameters:
		  - context: context.Context
		  - userID: string
		  - email: string
		  - username: string (optional)

		Returns:
		  - error: Persistence failures
	*/
	UpdateEmailAndSetVerified(context context.Context, userID, email, username string) error

	// UpdateRecoveryCode replaces the sealed recovery code.
	UpdateRecoveryCode(context context.Context, userID string, sealed []byte) error

	// ClearTOTP removes the second-factor registration.
	ClearTOTP(context context.Context, userID string) error
}

// # Session Data Access

// SessionRepository defines the data access contract for login sessions.
type SessionRepository interface {

	// Create persists a new session.
	Create(context context.Context, session *Session) error

	/*
		FindWithUser returns the session with id joined to its owner.

		Parameters:
		  - context: context.Context
		  - id: string (hex SHA-256 of the token)

		Returns:
		  - *Session, *UserView: Hydrated pair
		  - error: dberr.ErrNotFound or retrieval failures
	*/
	FindWithUser(context context.Context, id string) (*Session, *UserView, error)

	// UpdateExpiry moves the expiry of a session.
	UpdateExpiry(context context.Context, id string, expiresAt time.Time) error

	// SetTwoFactorVerified flips the second-factor flag on.
	SetTwoFactorVerified(context context.Context, id string) error

	// Delete removes one session. Missing rows are not an error.
	Delete(context context.Context, id string) error

	// DeleteByUser removes every session of a user. Missing rows are not an error.
	DeleteByUser(context context.Context, userID string) error
}

// # Password Reset Data Access

// PasswordResetRepository defines the data access contract for reset sessions.
type PasswordResetRepository interface {

	/*
		Replace stores reset as the only reset session of its user, discarding
		any previous one in the same atomic operation.

		Parameters:
		  - context: context.Context
		  - reset: *PasswordResetSession

		Returns:
		  - error: Persistence failures
	*/
	Replace(context context.Context, reset *PasswordResetSession) error

	// FindWithUser returns the reset session joined to its owner.
	FindWithUser(context context.Context, id string) (*PasswordResetSession, *UserView, error)

	// SetEmailVerified marks the reset code as confirmed.
	SetEmailVerified(context context.Context, id string) error

	// Delete removes one reset session. Missing rows are not an error.
	Delete(context context.Context, id string) error

	// DeleteByUser removes every reset session of a user.
	DeleteByUser(context context.Context, userID string) error
}

// # Email Verification Data Access

// EmailVerificationRepository defines the data access contract for
// verification requests.
type EmailVerificationRepository interface {

	// Replace stores request as the only request of its user, discarding any
	// previous one in the same atomic operation.
	Replace(context context.Context, request *EmailVerificationRequest) error

	/*
		FindForUser returns the request id only if it belongs to userID.

		Parameters:
		  - context: context.Context
		  - userID: string
		  - id: string

		Returns:
		  - *EmailVerificationRequest: Hydrated entity
		  - error: dberr.ErrNotFound or retrieval failures
	*/
	FindForUser(context context.Context, userID, id string) (*EmailVerificationRequest, error)

	// DeleteByUser removes the request of a user. Missing rows are not an error.
	DeleteByUser(context context.Context, userID string) error
}
