// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"time"

	"github.com/taibuivan/giftlist/internal/platform/apperr"
)

// # Client Messages

// Messages returned verbatim to clients. Code-related failures never say
// whether the underlying session or request was valid.
const (
	MsgEnterCode           = "Enter your code"
	MsgIncorrectCode       = "Incorrect code"
	MsgCodeSent            = "A new code was sent to your inbox."
	MsgCodeExpiredResent   = "The verification code was expired. We sent another code to your inbox."
	MsgEnterNewPassword    = "Enter your new password"
	MsgPasswordTooShort    = "Password must be at least 8 characters long"
	MsgPasswordsDoNotMatch = "Passwords do not match"
	MsgEmailNotVerified    = "Email not verified"
	MsgNotAuthenticated    = "Not authenticated"
	MsgForbidden           = "Forbidden"
	MsgInvalidCredentials  = "Invalid email or password"
	MsgEmailAlreadyUsed    = "Email is already used"
	MsgResetRequested      = "If an account exists for this email, a reset code was sent."
	MsgEnterRecoveryCode   = "Enter your recovery code"
	MsgInvalidRecoveryCode = "Invalid recovery code"
)

// ErrIncorrectCode is returned when a submitted one-time code does not match.
var ErrIncorrectCode = apperr.BadRequest("INCORRECT_CODE", MsgIncorrectCode)

// rateLimited reports an exhausted bucket. wait is the longest the caller may
// have to wait: a full window, or one refill interval.
func rateLimited(wait time.Duration) error {
	return apperr.RateLimited(int(wait / time.Second))
}

// # Options

type options struct {
	clock func() time.Time
}

// Option customises a flow or manager at construction time.
type Option func(*options)

// WithClock overrides the time source. Tests use it to step across expiry
// boundaries.
func WithClock(clock func() time.Time) Option {
	return func(opts *options) {
		if clock != nil {
			opts.clock = clock
		}
	}
}

func buildOptions(opts []Option) options {
	built := options{clock: time.Now}
	for _, opt := range opts {
		opt(&built)
	}
	return built
}
