// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package middleware

import (
	"net/http"
	"strings"

	"github.com/taibuivan/giftlist/internal/platform/apperr"
	"github.com/taibuivan/giftlist/internal/platform/constants"
	"github.com/taibuivan/giftlist/internal/platform/ctxutil"
	"github.com/taibuivan/giftlist/internal/platform/respond"
	"github.com/taibuivan/giftlist/internal/platform/sec"
)

// TokenVerifier verifies bearer tokens. Implemented by [sec.TokenService].
type TokenVerifier interface {
	VerifyToken(tokenStr string) (*sec.AuthClaims, error)
}

// Authenticate resolves an `Authorization: Bearer <token>` header.
//
// # Flow
//  1. No header: the request proceeds with whatever identity the session
//     cookie produced.
//  2. Malformed header or invalid token: 401.
//  3. Valid token: [*sec.AuthClaims] replaces any cookie-derived claims.
//
// The bearer path is independent of the session cookie; neither one renews or
// clears the other.
func Authenticate(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			authHeader := request.Header.Get(constants.HeaderAuthorization)

			// 1. Anonymous or cookie-only access
			if authHeader == "" {
				next.ServeHTTP(writer, request)
				return
			}

			// 2. Format validation
			scheme, token, found := strings.Cut(authHeader, " ")
			if !found || !strings.EqualFold(scheme, "bearer") || strings.TrimSpace(token) == "" {
				respond.Error(writer, request, apperr.Unauthorized("Invalid authorization format"))
				return
			}

			// 3. Token verification
			claims, err := verifier.VerifyToken(strings.TrimSpace(token))
			if err != nil {
				respond.Error(writer, request, apperr.Unauthorized("Invalid or expired token"))
				return
			}

			// 4. Context injection
			ctx := ctxutil.Identify(request.Context(), claims)
			next.ServeHTTP(writer, request.WithContext(ctx))
		})
	}
}

// RequireAuth blocks requests carrying neither a valid session nor a valid
// bearer token. Mount it after the session resolver and [Authenticate].
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if ctxutil.GetAuthUser(request.Context()) == nil {
			respond.Error(writer, request, apperr.Unauthorized("Authentication required"))
			return
		}
		next.ServeHTTP(writer, request)
	})
}
