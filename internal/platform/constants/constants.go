// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package constants collects the tunables of the auth service: listener
// timeouts, bucket sizes, credential lifetimes and wire names.
package constants

import "time"

// # Metadata

const (
	AppName    = "giftlist-auth"
	AppVersion = "0.3.0"
)

// # Listener

// Auth requests carry small JSON bodies, so read deadlines are tight. The
// write deadline covers a bcrypt hash plus a store round trip.
const (
	DefaultReadHeaderTimeout = 2 * time.Second
	DefaultReadTimeout       = 5 * time.Second
	DefaultWriteTimeout      = 10 * time.Second
	DefaultIdleTimeout       = 90 * time.Second

	// GlobalRequestTimeout cancels the handler context.
	GlobalRequestTimeout = 8 * time.Second

	ShutdownTimeout = 15 * time.Second
)

// # Throttling

const (
	// IPBucketMax is the request capacity per client IP.
	IPBucketMax = 100

	// IPBucketRefill regenerates one IP token.
	IPBucketRefill = time.Second

	// IPCostSafe is charged for GET, HEAD and OPTIONS.
	IPCostSafe = 1

	// IPCostMutating is charged for every other method.
	IPCostMutating = 3

	// CodeCheckMax bounds reset and verification code attempts per window.
	CodeCheckMax = 5

	// CodeCheckWindow is the fixed window for code attempts.
	CodeCheckWindow = 30 * time.Minute

	// EmailSendMax bounds verification emails per window.
	EmailSendMax = 3

	// EmailSendWindow is the fixed window for verification emails.
	EmailSendWindow = 10 * time.Minute

	// ResetRequestMax bounds forgot-password requests per user per window.
	ResetRequestMax = 3

	// ResetRequestWindow is the fixed window for forgot-password requests.
	ResetRequestWindow = 10 * time.Minute

	// RecoveryCheckMax is the recovery code attempt capacity per user.
	RecoveryCheckMax = 5

	// RecoveryCheckRefill regenerates one recovery attempt.
	RecoveryCheckRefill = time.Minute

	// ThrottleSweepInterval is how often idle bucket entries are reclaimed.
	ThrottleSweepInterval = 1 * time.Minute
)

// # Credentials

const (
	// AuthIssuer is the iss claim of bearer tokens.
	AuthIssuer = "giftlist.app"

	// AccessTokenTTL is the lifetime of bearer tokens issued at login.
	AccessTokenTTL = 24 * time.Hour

	// SessionTTL is the lifetime of a login session.
	SessionTTL = 30 * 24 * time.Hour

	// SessionRenewThreshold triggers rolling renewal when less time remains.
	SessionRenewThreshold = 15 * 24 * time.Hour

	// PasswordResetTTL is the lifetime of a password reset session.
	PasswordResetTTL = 10 * time.Minute

	// EmailVerificationTTL is the lifetime of an email verification request.
	EmailVerificationTTL = 10 * time.Minute

	// MinPasswordLength is the shortest accepted password.
	MinPasswordLength = 8

	// MaxPasswordLength keeps inputs within bcrypt's 72 byte limit.
	MaxPasswordLength = 72

	// OTPDigits is the length of reset and verification codes.
	OTPDigits = 8
)

// # Cookies

const (
	SessionCookie           = "session"
	PasswordResetCookie     = "password_reset_session"
	EmailVerificationCookie = "email_verification"
)

// # HTTP Headers

const (
	HeaderXRequestID    = "X-Request-ID"
	HeaderOrigin        = "Origin"
	HeaderXRealIP       = "X-Real-IP"
	HeaderXForwardedFor = "X-Forwarded-For"
	HeaderAuthorization = "Authorization"
)

// # Probe Fields

const (
	FieldStatus  = "status"
	FieldApp     = "app"
	FieldVersion = "version"
	FieldChecks  = "checks"
)

// # Redis Keys

const (
	// MailOutboxStream is the stream consumed by the mail delivery worker.
	MailOutboxStream = "mail:outbox"
)
