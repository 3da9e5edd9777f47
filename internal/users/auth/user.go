// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package auth implements the authentication and credential-lifecycle core.

It issues, validates and renews login sessions, drives the password-reset and
email-verification state machines, and resolves the caller's identity for
every inbound request.

# Architecture

  - Entities: [User], [Session], [PasswordResetSession], [EmailVerificationRequest].
  - Store: a narrow persistence contract with an explicit transactional scope.
  - Services: [SessionManager], [PasswordResetFlow], [EmailVerificationFlow], [Service].
  - Transport: [Gateway] (session resolution) and [Handler] (HTTP routes).

Secrets never reach the store in plain form: session and reset ids are the
SHA-256 of the client token, and recovery codes are sealed at rest.
*/
package auth

import (
	"time"
)

// # Domain Entities

// User is a registered account, including its secrets. It never leaves the
// service layer; transports receive a [UserView].
type User struct {
	ID             string
	Username       string
	Email          string
	PasswordHash   string
	EmailVerified  bool
	RegisteredTOTP bool
	RecoveryCode   []byte // sealed by sec.Cipher
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// View returns the public projection of the account.
func (user *User) View() UserView {
	return UserView{
		ID:             user.ID,
		Email:          user.Email,
		Username:       user.Username,
		EmailVerified:  user.EmailVerified,
		RegisteredTOTP: user.RegisteredTOTP,
	}
}

// UserView is the denormalised identity returned alongside a validated
// credential.
type UserView struct {
	ID             string `json:"id"`
	Email          string `json:"email"`
	Username       string `json:"username"`
	EmailVerified  bool   `json:"email_verified"`
	RegisteredTOTP bool   `json:"registered_2fa"`
}

// Session is a login session. ID is hex(SHA-256(token)).
type Session struct {
	ID                string    `json:"id"`
	UserID            string    `json:"user_id"`
	ExpiresAt         time.Time `json:"expires_at"`
	TwoFactorVerified bool      `json:"two_factor_verified"`
}

// SessionFlags are the initial flags of a new session.
type SessionFlags struct {
	TwoFactorVerified bool
}

// PasswordResetSession is a one-time reset in progress. EmailVerified records
// that the emailed code was confirmed; it is unrelated to [User.EmailVerified].
type PasswordResetSession struct {
	ID            string    `json:"-"`
	UserID        string    `json:"-"`
	Email         string    `json:"email"`
	Code          string    `json:"-"`
	ExpiresAt     time.Time `json:"expires_at"`
	EmailVerified bool      `json:"email_verified"`
}

// EmailVerificationRequest is the single live verification request of a user.
// ID is random and doubles as the cookie value.
type EmailVerificationRequest struct {
	ID        string    `json:"-"`
	UserID    string    `json:"-"`
	Email     string    `json:"email"`
	Code      string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
}

// # Validation Results

// Resolved is the outcome of validating a credential: either both the record
// and its owner are present, or neither is. The zero value is the absent
// variant.
type Resolved[T any] struct {
	record  T
	user    UserView
	present bool
}

// SessionValidation is the result of [SessionManager.ValidateSessionToken].
type SessionValidation = Resolved[Session]

// PasswordResetValidation is the result of
// [PasswordResetFlow.ValidatePasswordResetSessionToken].
type PasswordResetValidation = Resolved[PasswordResetSession]

func resolved[T any](record T, user UserView) Resolved[T] {
	return Resolved[T]{record: record, user: user, present: true}
}

// Present reports whether the credential resolved.
func (result Resolved[T]) Present() bool { return result.present }

// Get returns the record, its owner and whether they are present.
func (result Resolved[T]) Get() (T, UserView, bool) {
	return result.record, result.user, result.present
}

// Record returns the record, or the zero value when absent.
func (result Resolved[T]) Record() T { return result.record }

// User returns the owner, or the zero value when absent.
func (result Resolved[T]) User() UserView { return result.user }

// # Field Identifiers

// Field names used in validation errors and JSON payloads.
const (
	FieldUsername        = "username"
	FieldEmail           = "email"
	FieldPassword        = "password"
	FieldConfirmPassword = "confirm_password"
	FieldCode            = "code"
	FieldRecoveryCode    = "recovery_code"
)
