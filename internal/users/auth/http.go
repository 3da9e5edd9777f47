// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/giftlist/internal/platform/apperr"
	"github.com/taibuivan/giftlist/internal/platform/constants"
	"github.com/taibuivan/giftlist/internal/platform/ctxutil"
	"github.com/taibuivan/giftlist/internal/platform/middleware"
	requestutil "github.com/taibuivan/giftlist/internal/platform/request"
	"github.com/taibuivan/giftlist/internal/platform/respond"
)

// # Definitions & Constructors

// Handler implements the authentication HTTP endpoints.
//
// # Scope
//
// The handler is transport only: it decodes payloads, picks the credential
// branch from cookies and writes cookies back. Every rule lives in the
// services.
type Handler struct {
	service       *Service
	resets        *PasswordResetFlow
	verifications *EmailVerificationFlow
	gateway       *Gateway
	cookies       CookieJar
}

// NewHandler constructs a new [Handler].
func NewHandler(
	service *Service,
	resets *PasswordResetFlow,
	verifications *EmailVerificationFlow,
	gateway *Gateway,
	cookies CookieJar,
) *Handler {
	return &Handler{
		service:       service,
		resets:        resets,
		verifications: verifications,
		gateway:       gateway,
		cookies:       cookies,
	}
}

// Routes returns a [chi.Router] with the authentication routes. It expects
// [Gateway.ResolveSession] to run earlier in the chain.
//
// # Endpoints
//   - POST /register, /login, /forgot-password, /reset-password
//   - GET|POST /verify-email, POST /verify-email/resend
//   - POST /logout, /logout-all, /2fa/recovery, /2fa/recovery-code and
//     GET /me (session required)
//   - GET /identity (session or bearer token)
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	// Public endpoints
	router.Post("/register", handler.register)
	router.Post("/login", handler.login)
	router.Post("/forgot-password", handler.forgotPassword)
	router.Post("/reset-password", handler.resetPassword)

	// Reset cookie or session, chosen per request
	router.Get("/verify-email", handler.verifyEmailPage)
	router.Post("/verify-email", handler.verifyEmail)
	router.Post("/verify-email/resend", handler.resendCode)

	// Session endpoints
	router.Group(func(r chi.Router) {
		r.Use(handler.gateway.RequireSession(APIMode))
		r.Get("/me", handler.me)
		r.Post("/logout", handler.logout)
		r.Post("/logout-all", handler.logoutAll)
		r.Post("/2fa/recovery", handler.useRecoveryCode)
		r.Post("/2fa/recovery-code", handler.rotateRecoveryCode)
	})

	// Either credential
	router.With(middleware.RequireAuth).Get("/identity", handler.identity)

	return router
}

// # Payloads

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type codeRequest struct {
	Code string `json:"code"`
}

type resetPasswordRequest struct {
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

type recoveryRequest struct {
	RecoveryCode string `json:"recovery_code"`
}

type loginResponse struct {
	AccessToken string   `json:"access_token"`
	TokenType   string   `json:"token_type"`
	ExpiresIn   int64    `json:"expires_in"`
	User        UserView `json:"user"`
}

type identityView struct {
	UserID        string `json:"user_id"`
	Username      string `json:"username"`
	EmailVerified bool   `json:"email_verified"`
}

type verifyEmailView struct {
	Email           string `json:"email"`
	IsPasswordReset bool   `json:"is_password_reset"`
	Verified        bool   `json:"verified"`
}

type messageView struct {
	Message  string `json:"message"`
	Verified bool   `json:"verified,omitempty"`
}

// # Account

/*
register creates an account and signs it in.

POST /api/v1/auth/register

Response:
  - 201: UserView, with session and email_verification cookies set
  - 400: Validation failure
  - 409: Email already used
*/
func (handler *Handler) register(writer http.ResponseWriter, request *http.Request) {
	var input registerRequest
	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	registration, err := handler.service.Register(request.Context(), RegisterInput{
		Username: input.Username,
		Email:    input.Email,
		Password: input.Password,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	handler.cookies.SetSession(writer, registration.SessionToken, registration.Session.ExpiresAt)
	handler.cookies.SetEmailVerification(writer, registration.Verification)
	respond.Created(writer, registration.User)
}

/*
login authenticates with email and password.

POST /api/v1/auth/login

Response:
  - 200: loginResponse, with the session cookie set
  - 401: Invalid credentials (same message for unknown email)
*/
func (handler *Handler) login(writer http.ResponseWriter, request *http.Request) {
	var input loginRequest
	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	result, err := handler.service.Login(request.Context(), LoginInput{
		Email:    input.Email,
		Password: input.Password,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	handler.cookies.SetSession(writer, result.SessionToken, result.Session.ExpiresAt)
	respond.OK(writer, loginResponse{
		AccessToken: result.AccessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int64(result.ExpiresIn.Seconds()),
		User:        result.User,
	})
}

func (handler *Handler) me(writer http.ResponseWriter, request *http.Request) {
	_, user, _ := SessionFromContext(request.Context())
	respond.OK(writer, user)
}

func (handler *Handler) logout(writer http.ResponseWriter, request *http.Request) {
	session, _, _ := SessionFromContext(request.Context())

	if err := handler.service.Logout(request.Context(), session.ID); err != nil {
		respond.Error(writer, request, err)
		return
	}

	handler.cookies.ClearSession(writer)
	respond.NoContent(writer)
}

func (handler *Handler) logoutAll(writer http.ResponseWriter, request *http.Request) {
	session, _, _ := SessionFromContext(request.Context())

	if err := handler.service.LogoutAll(request.Context(), session.UserID); err != nil {
		respond.Error(writer, request, err)
		return
	}

	handler.cookies.ClearSession(writer)
	respond.NoContent(writer)
}

// useRecoveryCode answers with the replacement recovery code.
func (handler *Handler) useRecoveryCode(writer http.ResponseWriter, request *http.Request) {
	var input recoveryRequest
	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	session, _, _ := SessionFromContext(request.Context())
	next, err := handler.service.UseRecoveryCode(request.Context(), session, input.RecoveryCode)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]string{FieldRecoveryCode: next})
}

// rotateRecoveryCode replaces the recovery code without spending it.
func (handler *Handler) rotateRecoveryCode(writer http.ResponseWriter, request *http.Request) {
	session, _, _ := SessionFromContext(request.Context())

	next, err := handler.service.ResetUserRecoveryCode(request.Context(), session.UserID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]string{FieldRecoveryCode: next})
}

// identity reports the caller as seen by the token layer. Bearer clients
// have no session, so this is their equivalent of /me.
func (handler *Handler) identity(writer http.ResponseWriter, request *http.Request) {
	claims := ctxutil.GetAuthUser(request.Context())
	respond.OK(writer, identityView{
		UserID:        claims.UserID,
		Username:      claims.Username,
		EmailVerified: claims.EmailVerified,
	})
}

// # Password Reset

/*
forgotPassword starts a reset.

POST /api/v1/auth/forgot-password

Response:
  - 200: Generic message whether or not the account exists
  - 429: Too many reset requests for this account (plain text)
*/
func (handler *Handler) forgotPassword(writer http.ResponseWriter, request *http.Request) {
	var input emailRequest
	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	ticket, err := handler.resets.RequestReset(request.Context(), input.Email)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	if ticket != nil {
		handler.cookies.SetPasswordReset(writer, ticket.Token, ticket.Session.ExpiresAt)
	}
	respond.OK(writer, messageView{Message: MsgResetRequested})
}

/*
resetPassword sets the new password once the reset code was confirmed.

POST /api/v1/auth/reset-password

Response:
  - 204: Password changed; every session and reset session of the user is gone
  - 401: No valid reset session
  - 403: Reset code not confirmed yet
*/
func (handler *Handler) resetPassword(writer http.ResponseWriter, request *http.Request) {
	reset, ok, err := handler.resetFromCookie(writer, request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	if !ok {
		respond.Error(writer, request, apperr.Unauthorized(MsgNotAuthenticated))
		return
	}

	var input resetPasswordRequest
	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.resets.CompleteReset(request.Context(), reset, input.Password, input.ConfirmPassword); err != nil {
		respond.Error(writer, request, err)
		return
	}

	handler.cookies.ClearPasswordReset(writer)
	handler.cookies.ClearSession(writer)
	respond.NoContent(writer)
}

// resetFromCookie validates the reset cookie. A stale cookie is cleared.
func (handler *Handler) resetFromCookie(writer http.ResponseWriter, request *http.Request) (PasswordResetSession, bool, error) {
	token := cookieValue(request, constants.PasswordResetCookie)
	if token == "" {
		return PasswordResetSession{}, false, nil
	}

	result, err := handler.resets.ValidatePasswordResetSessionToken(request.Context(), token)
	if err != nil {
		return PasswordResetSession{}, false, err
	}

	if !result.Present() {
		handler.cookies.ClearPasswordReset(writer)
		return PasswordResetSession{}, false, nil
	}

	return result.Record(), true, nil
}

// # Email Verification

// The verify-email routes serve two flows. A live reset session takes
// precedence; otherwise the caller must hold a login session.

/*
verifyEmailPage describes what the verification form is for.

GET /api/v1/auth/verify-email

Response:
  - 200: verifyEmailView (a fresh code is mailed if the previous one expired)
  - 401: Neither a reset session nor a login session
*/
func (handler *Handler) verifyEmailPage(writer http.ResponseWriter, request *http.Request) {
	reset, ok, err := handler.resetFromCookie(writer, request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	if ok {
		respond.OK(writer, verifyEmailView{Email: reset.Email, IsPasswordReset: true, Verified: reset.EmailVerified})
		return
	}

	_, user, ok := SessionFromContext(request.Context())
	if !ok {
		respond.Error(writer, request, apperr.Unauthorized(MsgNotAuthenticated))
		return
	}

	pending, issued, err := handler.verifications.Ensure(request.Context(), user, cookieValue(request, constants.EmailVerificationCookie))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	if pending == nil {
		handler.cookies.ClearEmailVerification(writer)
		respond.OK(writer, verifyEmailView{Email: user.Email, Verified: true})
		return
	}
	if issued {
		handler.cookies.SetEmailVerification(writer, pending)
	}

	respond.OK(writer, verifyEmailView{Email: pending.Email})
}

/*
verifyEmail checks a submitted code against the active branch.

POST /api/v1/auth/verify-email

Response:
  - 200: messageView
  - 400: Missing or incorrect code
  - 401: Neither a reset session nor a verification request
  - 429: Too many attempts (plain text)
*/
func (handler *Handler) verifyEmail(writer http.ResponseWriter, request *http.Request) {
	var input codeRequest
	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	reset, ok, err := handler.resetFromCookie(writer, request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	if ok {
		if err := handler.resets.VerifyCode(request.Context(), reset, input.Code); err != nil {
			respond.Error(writer, request, err)
			return
		}
		respond.OK(writer, messageView{Message: "Code verified", Verified: true})
		return
	}

	_, user, ok := SessionFromContext(request.Context())
	if !ok {
		respond.Error(writer, request, apperr.Unauthorized(MsgNotAuthenticated))
		return
	}

	outcome, err := handler.verifications.Verify(request.Context(), user, cookieValue(request, constants.EmailVerificationCookie), input.Code)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	if outcome.Regenerated != nil {
		handler.cookies.SetEmailVerification(writer, outcome.Regenerated)
		respond.OK(writer, messageView{Message: MsgCodeExpiredResent})
		return
	}

	handler.cookies.ClearEmailVerification(writer)
	respond.OK(writer, messageView{Message: "Email verified", Verified: true})
}

/*
resendCode mails a code again on the active branch.

POST /api/v1/auth/verify-email/resend

Response:
  - 200: messageView
  - 401: Neither a reset session nor a login session
  - 403: Nothing to verify
  - 429: Too many emails (plain text)
*/
func (handler *Handler) resendCode(writer http.ResponseWriter, request *http.Request) {
	reset, ok, err := handler.resetFromCookie(writer, request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	if ok {
		if err := handler.resets.ResendCode(request.Context(), reset); err != nil {
			respond.Error(writer, request, err)
			return
		}
		respond.OK(writer, messageView{Message: MsgCodeSent})
		return
	}

	_, user, ok := SessionFromContext(request.Context())
	if !ok {
		respond.Error(writer, request, apperr.Unauthorized(MsgNotAuthenticated))
		return
	}

	issued, err := handler.verifications.Resend(request.Context(), user, cookieValue(request, constants.EmailVerificationCookie))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	handler.cookies.SetEmailVerification(writer, issued)
	respond.OK(writer, messageView{Message: MsgCodeSent})
}
