// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"net/http"

	"github.com/taibuivan/giftlist/internal/platform/apperr"
	"github.com/taibuivan/giftlist/internal/platform/constants"
	"github.com/taibuivan/giftlist/internal/platform/ctxkey"
	"github.com/taibuivan/giftlist/internal/platform/ctxutil"
	"github.com/taibuivan/giftlist/internal/platform/respond"
	"github.com/taibuivan/giftlist/internal/platform/sec"
)

// # Request Identity

type sessionContext struct {
	session Session
	user    UserView
}

// WithSession attaches a resolved cookie session to ctx.
func WithSession(ctx context.Context, session Session, user UserView) context.Context {
	return context.WithValue(ctx, ctxkey.KeySession, &sessionContext{session: session, user: user})
}

// SessionFromContext returns the cookie session resolved by
// [Gateway.ResolveSession], if any.
func SessionFromContext(ctx context.Context) (Session, UserView, bool) {
	value, ok := ctx.Value(ctxkey.KeySession).(*sessionContext)
	if !ok || value == nil {
		return Session{}, UserView{}, false
	}
	return value.session, value.user, true
}

// # Gateway

// Mode selects how [Gateway.RequireSession] answers anonymous callers.
type Mode int

const (
	// APIMode answers 401 with a JSON error.
	APIMode Mode = iota

	// PageMode redirects to the login page.
	PageMode
)

/*
Gateway is the session stage of the request chain. It runs after the rate
limiter and the origin check, so no credential work happens for throttled or
cross-origin requests.
*/
type Gateway struct {
	sessions  *SessionManager
	cookies   CookieJar
	loginPath string
}

// NewGateway constructs a [Gateway].
func NewGateway(sessions *SessionManager, cookies CookieJar, loginPath string) *Gateway {
	return &Gateway{sessions: sessions, cookies: cookies, loginPath: loginPath}
}

/*
ResolveSession validates the session cookie of every request.

# Flow
 1. No cookie: pass through anonymously.
 2. Unknown or expired token: clear the cookie and pass through anonymously.
 3. Valid token: rewrite the cookie with the (possibly renewed) expiry and
    attach the session, the user and equivalent [sec.AuthClaims] to the context.

Store failures answer 500.
*/
func (gateway *Gateway) ResolveSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		token := cookieValue(request, constants.SessionCookie)
		if token == "" {
			next.ServeHTTP(writer, request)
			return
		}

		ctx := request.Context()
		result, err := gateway.sessions.ValidateSessionToken(ctx, token)
		if err != nil {
			respond.Error(writer, request, err)
			return
		}

		session, user, ok := result.Get()
		if !ok {
			gateway.cookies.ClearSession(writer)
			next.ServeHTTP(writer, request)
			return
		}

		gateway.cookies.SetSession(writer, token, session.ExpiresAt)

		ctx = WithSession(ctx, session, user)
		ctx = ctxutil.Identify(ctx, &sec.AuthClaims{
			UserID:        user.ID,
			Username:      user.Username,
			EmailVerified: user.EmailVerified,
		})

		next.ServeHTTP(writer, request.WithContext(ctx))
	})
}

// RequireSession rejects requests without a resolved cookie session, with a
// JSON 401 in [APIMode] or a redirect to the login path in [PageMode].
func (gateway *Gateway) RequireSession(mode Mode) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			if _, _, ok := SessionFromContext(request.Context()); ok {
				next.ServeHTTP(writer, request)
				return
			}

			if mode == PageMode {
				http.Redirect(writer, request, gateway.loginPath, http.StatusFound)
				return
			}
			respond.Error(writer, request, apperr.Unauthorized(MsgNotAuthenticated))
		})
	}
}
