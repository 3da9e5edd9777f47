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

// # Email Verification Flow

/*
EmailVerificationFlow confirms that a user controls an email address.

Each user has at most one live request. The request id travels in a cookie but
is only honoured together with the authenticated user id, so a leaked id is
useless on its own.
*/
type EmailVerificationFlow struct {
	store      Store
	notifier   notify.Notifier
	codeChecks throttle.Bucket[string]
	sends      throttle.Bucket[string]
	clock      func() time.Time
}

/*
NewEmailVerificationFlow constructs the flow.

Parameters:
  - store: Store
  - notifier: notify.Notifier
  - codeChecks: throttle.Bucket[string] (code attempts, keyed by user id)
  - sends: throttle.Bucket[string] (outgoing emails, keyed by user id)
  - opts: ...Option
*/
func NewEmailVerificationFlow(
	store Store,
	notifier notify.Notifier,
	codeChecks throttle.Bucket[string],
	sends throttle.Bucket[string],
	opts ...Option,
) *EmailVerificationFlow {
	built := buildOptions(opts)
	return &EmailVerificationFlow{
		store:      store,
		notifier:   notifier,
		codeChecks: codeChecks,
		sends:      sends,
		clock:      built.clock,
	}
}

// # Records

/*
CreateEmailVerificationRequest stores a new request for userID, superseding
any previous one.

Parameters:
  - context: context.Context
  - userID: string
  - email: string (address to confirm)

Returns:
  - *EmailVerificationRequest: The stored request with a fresh 8-digit code
  - error: Generation or persistence failures
*/
func (flow *EmailVerificationFlow) CreateEmailVerificationRequest(context context.Context, userID, email string) (*EmailVerificationRequest, error) {
	return flow.createRequest(context, flow.store, userID, email)
}

// createRequest writes through store so callers can enlist it in a transaction.
func (flow *EmailVerificationFlow) createRequest(context context.Context, store Store, userID, email string) (*EmailVerificationRequest, error) {
	id, err := sec.GenerateSecureToken()
	if err != nil {
		return nil, fmt.Errorf("email_verification_id_generation_failed: %w", err)
	}

	code, err := sec.GenerateOTP(constants.OTPDigits)
	if err != nil {
		return nil, fmt.Errorf("email_verification_code_generation_failed: %w", err)
	}

	request := &EmailVerificationRequest{
		ID:        id,
		UserID:    userID,
		Email:     email,
		Code:      code,
		ExpiresAt: flow.clock().Add(constants.EmailVerificationTTL),
	}

	if err := store.EmailVerifications().Replace(context, request); err != nil {
		return nil, fmt.Errorf("email_verification_create_failed: %w", err)
	}

	return request, nil
}

// GetUserEmailVerificationRequest returns the request id if it belongs to
// userID, or nil. Expiry is left to the caller.
func (flow *EmailVerificationFlow) GetUserEmailVerificationRequest(context context.Context, userID, id string) (*EmailVerificationRequest, error) {
	if id == "" {
		return nil, nil
	}

	request, err := flow.store.EmailVerifications().FindForUser(context, userID, id)
	if dberr.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("email_verification_lookup_failed: %w", err)
	}

	return request, nil
}

// DeleteUserEmailVerificationRequest removes the request of userID.
func (flow *EmailVerificationFlow) DeleteUserEmailVerificationRequest(context context.Context, userID string) error {
	if err := flow.store.EmailVerifications().DeleteByUser(context, userID); err != nil {
		return fmt.Errorf("email_verification_delete_failed: %w", err)
	}
	return nil
}

// issue creates a request and mails its code.
func (flow *EmailVerificationFlow) issue(context context.Context, userID, email string) (*EmailVerificationRequest, error) {
	request, err := flow.CreateEmailVerificationRequest(context, userID, email)
	if err != nil {
		return nil, err
	}

	flow.send(context, request)
	return request, nil
}

// send mails the code of request. Callers inside a transaction wait for the
// commit before calling it.
func (flow *EmailVerificationFlow) send(context context.Context, request *EmailVerificationRequest) {
	flow.notifier.SendVerificationCode(context, request.Email, request.Code)
}

// # Use Cases

/*
Ensure returns a live request for user, issuing a new one when the cookie
points at nothing or at an expired request.

Description: Regeneration reuses the address of the expired request when
there is one. An already-verified user with no live request gets nil.

Parameters:
  - context: context.Context
  - user: UserView
  - cookieID: string (may be empty)

Returns:
  - *EmailVerificationRequest: Live request, or nil when nothing is pending
  - bool: true when a new request was issued and the cookie must be set
  - error: Persistence failures
*/
func (flow *EmailVerificationFlow) Ensure(context context.Context, user UserView, cookieID string) (*EmailVerificationRequest, bool, error) {
	request, err := flow.GetUserEmailVerificationRequest(context, user.ID, cookieID)
	if err != nil {
		return nil, false, err
	}

	if request != nil && flow.clock().Before(request.ExpiresAt) {
		return request, false, nil
	}

	if user.EmailVerified {
		return nil, false, nil
	}

	email := user.Email
	if request != nil {
		email = request.Email
	}

	issued, err := flow.issue(context, user.ID, email)
	if err != nil {
		return nil, false, err
	}

	return issued, true, nil
}

// VerifyOutcome describes a successful [EmailVerificationFlow.Verify] call.
type VerifyOutcome struct {
	// Verified is true when the address was confirmed.
	Verified bool

	// Regenerated is set when the code had expired and a new request was
	// mailed instead. The cookie must point at it.
	Regenerated *EmailVerificationRequest
}

/*
Verify checks code against the live request of user.

Description: Attempts are throttled per user before the request is even
read. A mismatch leaves the request untouched. A match deletes the request,
drops every password reset session of the user and stores the address as
verified, in one transaction.

Parameters:
  - ctx: context.Context
  - user: UserView
  - cookieID: string
  - code: string

Returns:
  - VerifyOutcome
  - error: RateLimited, Unauthorized (no request), validation,
    [ErrIncorrectCode] or persistence failures
*/
func (flow *EmailVerificationFlow) Verify(ctx context.Context, user UserView, cookieID, code string) (VerifyOutcome, error) {

	// 1. Cheap refusal first
	if !flow.codeChecks.Check(user.ID, 1) {
		return VerifyOutcome{}, rateLimited(constants.CodeCheckWindow)
	}

	// 2. Request lookup
	request, err := flow.GetUserEmailVerificationRequest(ctx, user.ID, cookieID)
	if err != nil {
		return VerifyOutcome{}, err
	}
	if request == nil {
		return VerifyOutcome{}, apperr.Unauthorized(MsgNotAuthenticated)
	}

	// 3. Input
	code = strings.TrimSpace(code)
	if code == "" {
		return VerifyOutcome{}, validate.RequiredError(FieldCode, MsgEnterCode)
	}

	if !flow.codeChecks.Consume(user.ID, 1) {
		return VerifyOutcome{}, rateLimited(constants.CodeCheckWindow)
	}

	// 4. Expired: issue a replacement instead of comparing
	if !flow.clock().Before(request.ExpiresAt) {
		issued, err := flow.issue(ctx, user.ID, request.Email)
		if err != nil {
			return VerifyOutcome{}, err
		}
		return VerifyOutcome{Regenerated: issued}, nil
	}

	// 5. Compare
	if !sec.EqualConstantTime(code, request.Code) {
		return VerifyOutcome{}, ErrIncorrectCode
	}

	// 6. Atomic apply
	err = flow.store.WithinTx(ctx, func(txCtx context.Context, tx Store) error {
		if err := tx.EmailVerifications().DeleteByUser(txCtx, user.ID); err != nil {
			return err
		}
		if err := tx.PasswordResets().DeleteByUser(txCtx, user.ID); err != nil {
			return err
		}
		return tx.Users().UpdateEmailAndSetVerified(txCtx, user.ID, request.Email, "")
	})
	if err != nil {
		return VerifyOutcome{}, fmt.Errorf("email_verification_apply_failed: %w", err)
	}

	ctxutil.GetLogger(ctx).InfoContext(ctx, "email_verified",
		slog.String("user_id", user.ID),
	)
	metrics.RecordCredentialEvent("email_verified")

	return VerifyOutcome{Verified: true}, nil
}

/*
Resend issues a new request for user and mails it.

Parameters:
  - context: context.Context
  - user: UserView
  - cookieID: string

Returns:
  - *EmailVerificationRequest: The new request (cookie must point at it)
  - error: RateLimited, Forbidden (already verified) or persistence failures
*/
func (flow *EmailVerificationFlow) Resend(context context.Context, user UserView, cookieID string) (*EmailVerificationRequest, error) {
	if !flow.sends.Check(user.ID, 1) {
		return nil, rateLimited(constants.EmailSendWindow)
	}

	request, err := flow.GetUserEmailVerificationRequest(context, user.ID, cookieID)
	if err != nil {
		return nil, err
	}

	email := user.Email
	if request != nil {
		email = request.Email
	} else if user.EmailVerified {
		return nil, apperr.Forbidden(MsgForbidden)
	}

	if !flow.sends.Consume(user.ID, 1) {
		return nil, rateLimited(constants.EmailSendWindow)
	}

	return flow.issue(context, user.ID, email)
}
