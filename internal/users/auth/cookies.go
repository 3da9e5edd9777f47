// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"net/http"
	"time"

	"github.com/taibuivan/giftlist/internal/platform/constants"
)

// CookieJar writes the three credential cookies with a uniform policy:
// HttpOnly, SameSite=Lax, Path=/ and Secure in production.
type CookieJar struct {
	secure bool
}

// NewCookieJar returns a jar. secure should follow config.IsProduction.
func NewCookieJar(secure bool) CookieJar {
	return CookieJar{secure: secure}
}

func (jar CookieJar) set(writer http.ResponseWriter, name, value string, expires time.Time) {
	http.SetCookie(writer, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   jar.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (jar CookieJar) clear(writer http.ResponseWriter, name string) {
	http.SetCookie(writer, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   jar.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// SetSession stores the session token until the session expires.
func (jar CookieJar) SetSession(writer http.ResponseWriter, token string, expiresAt time.Time) {
	jar.set(writer, constants.SessionCookie, token, expiresAt)
}

// ClearSession removes the session cookie.
func (jar CookieJar) ClearSession(writer http.ResponseWriter) {
	jar.clear(writer, constants.SessionCookie)
}

// SetPasswordReset stores the reset token.
func (jar CookieJar) SetPasswordReset(writer http.ResponseWriter, token string, expiresAt time.Time) {
	jar.set(writer, constants.PasswordResetCookie, token, expiresAt)
}

// ClearPasswordReset removes the reset cookie.
func (jar CookieJar) ClearPasswordReset(writer http.ResponseWriter) {
	jar.clear(writer, constants.PasswordResetCookie)
}

// SetEmailVerification stores the verification request id.
func (jar CookieJar) SetEmailVerification(writer http.ResponseWriter, request *EmailVerificationRequest) {
	jar.set(writer, constants.EmailVerificationCookie, request.ID, request.ExpiresAt)
}

// ClearEmailVerification removes the verification cookie.
func (jar CookieJar) ClearEmailVerification(writer http.ResponseWriter) {
	jar.clear(writer, constants.EmailVerificationCookie)
}

// cookieValue returns the value of name, or "".
func cookieValue(request *http.Request, name string) string {
	cookie, err := request.Cookie(name)
	if err != nil {
		return ""
	}
	return cookie.Value
}
