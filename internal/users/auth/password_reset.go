// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/taibuivan/giftlist/internal/platform/apperr"
	"github.com/taibuivan/giftlist/internal/platform/constants"
	"github.com/taibuivan/giftlist/internal/platform/ctxutil"
	"github.com/taibuivan/giftlist/internal/platform/dberr"
	"github.com/taibuivan/giftlist/internal/platform/metrics"
	"github.com/taibuivan/giftlist/internal/platform/notify"
	"github.com/taibuivan/giftlist/internal/platform/sec"
	"github.com/taibuivan/giftlist/internal/platform/throttle"
	"github.com/taibuivan/giftlist/internal/platform/validate"
)

// # Password Reset Flow

/*
PasswordResetFlow drives the forgot-password state machine.

States per user: none, created, code verified, consumed. A reset session is
created with EmailVerified=false, flipped once the emailed code is confirmed,
and deleted when the password changes or the session expires at read time.
At most one reset session exists per user.
*/
type PasswordResetFlow struct {
	store      Store
	notifier   notify.Notifier
	codeChecks throttle.Bucket[string]
	requests   throttle.Bucket[string]
	clock      func() time.Time
}

/*
NewPasswordResetFlow constructs the flow.

Parameters:
  - store: Store
  - notifier: notify.Notifier (receives reset codes)
  - codeChecks: throttle.Bucket[string] (code attempts, keyed by reset session id)
  - requests: throttle.Bucket[string] (forgot-password requests, keyed by user id)
  - opts: ...Option

Returns:
  - *PasswordResetFlow
*/
func NewPasswordResetFlow(
	store Store,
	notifier notify.Notifier,
	codeChecks throttle.Bucket[string],
	requests throttle.Bucket[string],
	opts ...Option,
) *PasswordResetFlow {
	built := buildOptions(opts)
	return &PasswordResetFlow{
		store:      store,
		notifier:   notifier,
		codeChecks: codeChecks,
		requests:   requests,
		clock:      built.clock,
	}
}

// # Records

/*
CreatePasswordResetSession stores a new reset session for userID, superseding
any previous one.

Parameters:
  - context: context.Context
  - token: string (client secret; only its hash is stored)
  - userID: string
  - email: string

Returns:
  - *PasswordResetSession: The stored record with a fresh 8-digit code
  - error: Generation or persistence failures
*/
func (flow *PasswordResetFlow) CreatePasswordResetSession(context context.Context, token, userID, email string) (*PasswordResetSession, error) {
	code, err := sec.GenerateOTP(constants.OTPDigits)
	if err != nil {
		return nil, fmt.Errorf("password_reset_code_generation_failed: %w", err)
	}

	reset := &PasswordResetSession{
		ID:            sec.HashToken(token),
		UserID:        userID,
		Email:         email,
		Code:          code,
		ExpiresAt:     flow.clock().Add(constants.PasswordResetTTL),
		EmailVerified: false,
	}

	if err := flow.store.PasswordResets().Replace(context, reset); err != nil {
		return nil, fmt.Errorf("password_reset_create_failed: %w", err)
	}

	return reset, nil
}

// ValidatePasswordResetSessionToken resolves token to its reset session and
// owner. Expired sessions are deleted and reported as absent.
func (flow *PasswordResetFlow) ValidatePasswordResetSessionToken(context context.Context, token string) (PasswordResetValidation, error) {
	resets := flow.store.PasswordResets()

	reset, user, err := resets.FindWithUser(context, sec.HashToken(token))
	if dberr.IsNotFound(err) {
		return PasswordResetValidation{}, nil
	}
	if err != nil {
		return PasswordResetValidation{}, fmt.Errorf("password_reset_lookup_failed: %w", err)
	}

	if !flow.clock().Before(reset.ExpiresAt) {
		if err := resets.Delete(context, reset.ID); err != nil {
			return PasswordResetValidation{}, fmt.Errorf("password_reset_expire_failed: %w", err)
		}
		return PasswordResetValidation{}, nil
	}

	return resolved(*reset, *user), nil
}

// SetPasswordResetSessionAsEmailVerified opens the code gate of a reset
// session. The account's own verified flag is untouched.
func (flow *PasswordResetFlow) SetPasswordResetSessionAsEmailVerified(context context.Context, id string) error {
	if err := flow.store.PasswordResets().SetEmailVerified(context, id); err != nil {
		return fmt.Errorf("password_reset_set_verified_failed: %w", err)
	}
	return nil
}

// InvalidateUserPasswordResetSessions deletes every reset session of userID.
func (flow *PasswordResetFlow) InvalidateUserPasswordResetSessions(context context.Context, userID string) error {
	if err := flow.store.PasswordResets().DeleteByUser(context, userID); err != nil {
		return fmt.Errorf("password_reset_invalidate_failed: %w", err)
	}
	return nil
}

// # Use Cases

// ResetTicket is the outcome of a forgot-password request. Token is the
// cookie value; it is never stored.
type ResetTicket struct {
	Token   string
	Session *PasswordResetSession
}

/*
RequestReset starts a reset for the account registered with email.

Description: Unknown emails return a nil ticket and no error so the response
cannot be used to enumerate accounts.

Parameters:
  - context: context.Context
  - email: string

Returns:
  - *ResetTicket: nil when no account matches
  - error: Validation, throttling or persistence failures
*/
func (flow *PasswordResetFlow) RequestReset(context context.Context, email string) (*ResetTicket, error) {
	email = NormalizeEmail(email)

	// 1. Input
	if err := new(validate.Validator).Required(FieldEmail, email).Email(FieldEmail, email).Err(); err != nil {
		return nil, err
	}

	// 2. Account lookup
	user, err := flow.store.Users().FindByEmail(context, email)
	if dberr.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("password_reset_user_lookup_failed: %w", err)
	}

	// 3. Throttle per account
	if !flow.requests.Check(user.ID, 1) {
		return nil, rateLimited(constants.ResetRequestWindow)
	}
	if !flow.requests.Consume(user.ID, 1) {
		return nil, rateLimited(constants.ResetRequestWindow)
	}

	// 4. Supersede and notify
	token, err := sec.GenerateSecureToken()
	if err != nil {
		return nil, fmt.Errorf("password_reset_token_generation_failed: %w", err)
	}

	reset, err := flow.CreatePasswordResetSession(context, token, user.ID, user.Email)
	if err != nil {
		return nil, err
	}

	flow.notifier.SendPasswordResetCode(context, reset.Email, reset.Code)
	metrics.RecordCredentialEvent("password_reset_requested")

	return &ResetTicket{Token: token, Session: reset}, nil
}

/*
VerifyCode confirms the emailed code of a reset session.

Description: The bucket is checked before anything else so exhausted callers
learn nothing about the code. A match opens the reset gate.

Parameters:
  - context: context.Context
  - reset: PasswordResetSession (already validated)
  - code: string

Returns:
  - error: RateLimited, validation, [ErrIncorrectCode] or persistence failures
*/
func (flow *PasswordResetFlow) VerifyCode(context context.Context, reset PasswordResetSession, code string) error {
	if reset.EmailVerified {
		return apperr.Forbidden(MsgForbidden)
	}

	if !flow.codeChecks.Check(reset.ID, 1) {
		return rateLimited(constants.CodeCheckWindow)
	}

	code = strings.TrimSpace(code)
	if code == "" {
		return validate.RequiredError(FieldCode, MsgEnterCode)
	}

	if !flow.codeChecks.Consume(reset.ID, 1) {
		return rateLimited(constants.CodeCheckWindow)
	}

	if !sec.EqualConstantTime(code, reset.Code) {
		return ErrIncorrectCode
	}

	if err := flow.SetPasswordResetSessionAsEmailVerified(context, reset.ID); err != nil {
		return err
	}

	metrics.RecordCredentialEvent("password_reset_code_verified")
	return nil
}

// ResendCode mails the existing code of reset again. Resends draw from the
// same bucket as code attempts.
func (flow *PasswordResetFlow) ResendCode(context context.Context, reset PasswordResetSession) error {
	if reset.EmailVerified {
		return apperr.Forbidden(MsgForbidden)
	}

	if !flow.codeChecks.Check(reset.ID, 1) || !flow.codeChecks.Consume(reset.ID, 1) {
		return rateLimited(constants.CodeCheckWindow)
	}

	flow.notifier.SendPasswordResetCode(context, reset.Email, reset.Code)
	return nil
}

/*
CompleteReset sets the new password of a verified reset session.

Description: The password update and the deletion of every login session and
every reset session of the user commit together or not at all. The caller
clears the reset cookie after a nil return.

Parameters:
  - ctx: context.Context
  - reset: PasswordResetSession (already validated)
  - password: string
  - confirm: string

Returns:
  - error: Forbidden (code not confirmed), validation or persistence failures
*/
func (flow *PasswordResetFlow) CompleteReset(ctx context.Context, reset PasswordResetSession, password, confirm string) error {

	// 1. Gate
	if !reset.EmailVerified {
		return apperr.Forbidden(MsgEmailNotVerified)
	}

	// 2. Input
	if password == "" {
		return validate.RequiredError(FieldPassword, MsgEnterNewPassword)
	}
	err := new(validate.Validator).
		Custom(FieldPassword, len(password) < constants.MinPasswordLength, MsgPasswordTooShort).
		MaxBytes(FieldPassword, password, constants.MaxPasswordLength).
		Custom(FieldConfirmPassword, password != confirm, MsgPasswordsDoNotMatch).
		Err()
	if err != nil {
		return err
	}

	passwordHash, err := sec.HashPassword(password)
	if err != nil {
		return fmt.Errorf("password_reset_hash_failed: %w", err)
	}

	// 3. Atomic apply
	err = flow.store.WithinTx(ctx, func(txCtx context.Context, tx Store) error {
		if err := tx.Users().UpdatePassword(txCtx, reset.UserID, passwordHash); err != nil {
			return err
		}
		if err := tx.Sessions().DeleteByUser(txCtx, reset.UserID); err != nil {
			return err
		}
		return tx.PasswordResets().DeleteByUser(txCtx, reset.UserID)
	})
	if err != nil {
		return fmt.Errorf("password_reset_complete_failed: %w", err)
	}

	ctxutil.GetLogger(ctx).InfoContext(ctx, "password_reset_completed",
		slog.String("user_id", reset.UserID),
	)
	metrics.RecordCredentialEvent("password_reset_completed")

	return nil
}
