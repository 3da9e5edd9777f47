// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/taibuivan/giftlist/internal/platform/apperr"
	"github.com/taibuivan/giftlist/internal/platform/constants"
	"github.com/taibuivan/giftlist/internal/platform/ctxutil"
	"github.com/taibuivan/giftlist/internal/platform/dberr"
	"github.com/taibuivan/giftlist/internal/platform/metrics"
	"github.com/taibuivan/giftlist/internal/platform/sec"
	"github.com/taibuivan/giftlist/internal/platform/throttle"
	"github.com/taibuivan/giftlist/internal/platform/validate"
	"github.com/taibuivan/giftlist/pkg/uuid"
)

// # Contracts & Types

// TokenIssuer signs bearer tokens. Implemented by [sec.TokenService].
type TokenIssuer interface {
	GenerateAccessToken(userID, username string, emailVerified bool, timeToLive time.Duration) (string, error)
}

// Service implements the account use cases that sit around the credential
// flows: registration, login, logout and second-factor recovery.
type Service struct {
	store          Store
	sessions       *SessionManager
	verifications  *EmailVerificationFlow
	tokens         TokenIssuer
	cipher         *sec.Cipher
	recoveryChecks throttle.Bucket[string]
}

// NewService constructs a new [Service] with necessary dependencies.
func NewService(
	store Store,
	sessions *SessionManager,
	verifications *EmailVerificationFlow,
	tokens TokenIssuer,
	cipher *sec.Cipher,
	recoveryChecks throttle.Bucket[string],
) *Service {
	return &Service{
		store:          store,
		sessions:       sessions,
		verifications:  verifications,
		tokens:         tokens,
		cipher:         cipher,
		recoveryChecks: recoveryChecks,
	}
}

// NormalizeUsername applies NFKC so visually identical names compare equal.
func NormalizeUsername(username string) string {
	return norm.NFKC.String(username)
}

// NormalizeEmail trims and lowercases email. Every address is stored and
// looked up in this form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// # User Helpers

/*
CreateUser persists a new, unverified account with a fresh recovery code.

Parameters:
  - context: context.Context
  - email: string
  - username: string
  - password: string (plain text)

Returns:
  - *User: Created entity
  - error: Conflict (email taken) or persistence failures
*/
func (service *Service) CreateUser(context context.Context, email, username, password string) (*User, error) {
	user, err := service.newUser(email, username, password)
	if err != nil {
		return nil, err
	}

	if err := insertUser(context, service.store, user); err != nil {
		return nil, err
	}
	return user, nil
}

// newUser hashes the password and seals a fresh recovery code. Nothing is
// written yet.
func (service *Service) newUser(email, username, password string) (*User, error) {
	passwordHash, err := sec.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("auth_service_hash_failed: %w", err)
	}

	_, sealed, err := service.newRecoveryCode()
	if err != nil {
		return nil, err
	}

	return &User{
		ID:             uuid.New(),
		Username:       username,
		Email:          email,
		PasswordHash:   passwordHash,
		EmailVerified:  false,
		RegisteredTOTP: false,
		RecoveryCode:   sealed,
	}, nil
}

func insertUser(context context.Context, store Store, user *User) error {
	if err := store.Users().Create(context, user); err != nil {
		if dberr.IsConflict(err) {
			return apperr.Conflict(MsgEmailAlreadyUsed)
		}
		return fmt.Errorf("auth_service_create_user_failed: %w", err)
	}
	return nil
}

// CheckEmailAvailability reports whether no account uses email.
func (service *Service) CheckEmailAvailability(context context.Context, email string) (bool, error) {
	exists, err := service.store.Users().EmailExists(context, email)
	if err != nil {
		return false, fmt.Errorf("auth_service_email_check_failed: %w", err)
	}
	return !exists, nil
}

// GetUserRecoveryCode returns the plain recovery code of userID.
func (service *Service) GetUserRecoveryCode(context context.Context, userID string) (string, error) {
	user, err := service.store.Users().FindByID(context, userID)
	if err != nil {
		return "", fmt.Errorf("auth_service_recovery_lookup_failed: %w", err)
	}

	code, err := service.cipher.DecryptToString(user.RecoveryCode)
	if err != nil {
		return "", fmt.Errorf("auth_service_recovery_open_failed: %w", err)
	}
	return code, nil
}

// ResetUserRecoveryCode rotates the recovery code of userID and returns the
// new plain value. The previous code stops working immediately.
func (service *Service) ResetUserRecoveryCode(context context.Context, userID string) (string, error) {
	code, sealed, err := service.newRecoveryCode()
	if err != nil {
		return "", err
	}

	if err := service.store.Users().UpdateRecoveryCode(context, userID, sealed); err != nil {
		return "", fmt.Errorf("auth_service_recovery_rotate_failed: %w", err)
	}
	return code, nil
}

func (service *Service) newRecoveryCode() (string, []byte, error) {
	code, err := sec.GenerateRecoveryCode()
	if err != nil {
		return "", nil, fmt.Errorf("auth_service_recovery_code_failed: %w", err)
	}
	sealed, err := service.cipher.EncryptString(code)
	if err != nil {
		return "", nil, fmt.Errorf("auth_service_recovery_code_seal_failed: %w", err)
	}
	return code, sealed, nil
}

// # Registration Flow

// RegisterInput holds the data required to enroll a new member.
type RegisterInput struct {
	Username string
	Email    string
	Password string
}

// Registration is the result of [Service.Register].
type Registration struct {
	User         UserView
	SessionToken string
	Session      *Session
	Verification *EmailVerificationRequest
}

/*
Register validates input, creates the account, opens a session and mails the
first verification code.

Description: The account, its verification request and its session are
written in one transaction. The code is mailed only after the commit.

Parameters:
  - ctx: context.Context
  - input: RegisterInput

Returns:
  - *Registration: Account view, session token and verification request
  - error: Validation, Conflict or persistence failures
*/
func (service *Service) Register(ctx context.Context, input RegisterInput) (*Registration, error) {
	username := NormalizeUsername(input.Username)
	email := NormalizeEmail(input.Email)

	// 1. Input
	err := new(validate.Validator).
		Username(FieldUsername, username).
		Required(FieldEmail, email).
		MaxLen(FieldEmail, email, 255).
		Email(FieldEmail, email).
		Custom(FieldPassword, len(input.Password) < constants.MinPasswordLength, MsgPasswordTooShort).
		MaxBytes(FieldPassword, input.Password, constants.MaxPasswordLength).
		Err()
	if err != nil {
		return nil, err
	}

	// 2. Availability
	available, err := service.CheckEmailAvailability(ctx, email)
	if err != nil {
		return nil, err
	}
	if !available {
		return nil, apperr.Conflict(MsgEmailAlreadyUsed)
	}

	// 3. Secrets, prepared outside the transaction
	user, err := service.newUser(email, username, input.Password)
	if err != nil {
		return nil, err
	}
	token, err := GenerateSessionToken()
	if err != nil {
		return nil, err
	}

	// 4. Account, verification request and session
	var (
		verification *EmailVerificationRequest
		session      *Session
	)
	err = service.store.WithinTx(ctx, func(txCtx context.Context, tx Store) error {
		var err error
		if err = insertUser(txCtx, tx, user); err != nil {
			return err
		}
		if verification, err = service.verifications.createRequest(txCtx, tx, user.ID, user.Email); err != nil {
			return err
		}
		session, err = service.sessions.createSession(txCtx, tx, token, user.ID, SessionFlags{TwoFactorVerified: false})
		return err
	})
	if err != nil {
		return nil, err
	}

	// 5. Mail
	service.verifications.send(ctx, verification)

	ctxutil.GetLogger(ctx).InfoContext(ctx, "user_registered", slog.String("user_id", user.ID))
	metrics.RecordCredentialEvent("user_registered")

	return &Registration{
		User:         user.View(),
		SessionToken: token,
		Session:      session,
		Verification: verification,
	}, nil
}

// # Authentication Flow

// LoginInput defines credentials for an authentication attempt.
type LoginInput struct {
	Email    string
	Password string
}

// LoginResult carries both credentials issued at login: the session cookie
// token and a bearer token for non-cookie clients.
type LoginResult struct {
	User         UserView
	SessionToken string
	Session      *Session
	AccessToken  string
	ExpiresIn    time.Duration
}

/*
Login validates user credentials and issues a session and a bearer token.

Description: Unknown email and wrong password produce the same error, and
both pay for one bcrypt comparison.

Parameters:
  - context: context.Context
  - input: LoginInput

Returns:
  - *LoginResult: Transport-ready credentials
  - error: Validation, Unauthorized or internal failures
*/
func (service *Service) Login(context context.Context, input LoginInput) (*LoginResult, error) {
	email := NormalizeEmail(input.Email)

	err := new(validate.Validator).
		Required(FieldEmail, email).
		Required(FieldPassword, input.Password).
		Err()
	if err != nil {
		return nil, err
	}

	user, err := service.store.Users().FindByEmail(context, email)
	if dberr.IsNotFound(err) {
		sec.CheckPasswordHash(input.Password, sec.DummyPasswordHash())
		return nil, apperr.Unauthorized(MsgInvalidCredentials)
	}
	if err != nil {
		return nil, fmt.Errorf("auth_service_login_lookup_failed: %w", err)
	}

	// Constant-time comparison in bcrypt
	if !sec.CheckPasswordHash(input.Password, user.PasswordHash) {
		return nil, apperr.Unauthorized(MsgInvalidCredentials)
	}

	token, session, err := service.openSession(context, user.ID)
	if err != nil {
		return nil, err
	}

	accessToken, err := service.tokens.GenerateAccessToken(user.ID, user.Username, user.EmailVerified, constants.AccessTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("auth_service_token_generation_failed: %w", err)
	}

	metrics.RecordCredentialEvent("user_logged_in")

	return &LoginResult{
		User:         user.View(),
		SessionToken: token,
		Session:      session,
		AccessToken:  accessToken,
		ExpiresIn:    constants.AccessTokenTTL,
	}, nil
}

func (service *Service) openSession(context context.Context, userID string) (string, *Session, error) {
	token, err := GenerateSessionToken()
	if err != nil {
		return "", nil, err
	}

	session, err := service.sessions.CreateSession(context, token, userID, SessionFlags{TwoFactorVerified: false})
	if err != nil {
		return "", nil, err
	}

	return token, session, nil
}

// Logout deletes the current session. Repeating it is harmless.
func (service *Service) Logout(context context.Context, sessionID string) error {
	return service.sessions.InvalidateSession(context, sessionID)
}

// LogoutAll deletes every session of userID.
func (service *Service) LogoutAll(context context.Context, userID string) error {
	if err := service.sessions.InvalidateUserSessions(context, userID); err != nil {
		return err
	}
	metrics.RecordCredentialEvent("user_logged_out_everywhere")
	return nil
}

// # Second Factor Recovery

/*
UseRecoveryCode spends the recovery code of the session owner.

Description: On a match the second factor registration is removed, the
session is marked as second-factor verified and a new recovery code replaces
the spent one, atomically.

Parameters:
  - ctx: context.Context
  - session: Session (current, validated)
  - code: string

Returns:
  - string: The new recovery code
  - error: RateLimited, validation, Unauthorized or persistence failures
*/
func (service *Service) UseRecoveryCode(ctx context.Context, session Session, code string) (string, error) {
	if !service.recoveryChecks.Check(session.UserID, 1) {
		return "", rateLimited(constants.RecoveryCheckRefill)
	}

	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return "", validate.RequiredError(FieldRecoveryCode, MsgEnterRecoveryCode)
	}

	if !service.recoveryChecks.Consume(session.UserID, 1) {
		return "", rateLimited(constants.RecoveryCheckRefill)
	}

	current, err := service.GetUserRecoveryCode(ctx, session.UserID)
	if err != nil {
		return "", err
	}
	if !sec.EqualConstantTime(code, current) {
		return "", apperr.BadRequest("INVALID_RECOVERY_CODE", MsgInvalidRecoveryCode)
	}

	next, sealed, err := service.newRecoveryCode()
	if err != nil {
		return "", err
	}

	err = service.store.WithinTx(ctx, func(txCtx context.Context, tx Store) error {
		if err := tx.Users().ClearTOTP(txCtx, session.UserID); err != nil {
			return err
		}
		if err := tx.Sessions().SetTwoFactorVerified(txCtx, session.ID); err != nil {
			return err
		}
		return tx.Users().UpdateRecoveryCode(txCtx, session.UserID, sealed)
	})
	if err != nil {
		return "", fmt.Errorf("auth_service_recovery_apply_failed: %w", err)
	}

	metrics.RecordCredentialEvent("recovery_code_used")
	return next, nil
}
