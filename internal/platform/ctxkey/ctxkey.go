// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package ctxkey holds the context keys shared by middleware, the session
// gateway and handlers. The unexported key type keeps them from colliding with
// string keys set by other packages.
package ctxkey

type key string

const (
	// KeyRequestID holds the X-Request-ID correlation value.
	KeyRequestID key = "request_id"

	// KeyUser holds the caller's [sec.AuthClaims], whether they came from a
	// session cookie or a bearer token.
	KeyUser key = "user"

	// KeySession holds the resolved cookie session together with its user.
	KeySession key = "session"

	// KeyLogger holds the request-scoped *slog.Logger.
	KeyLogger key = "logger"

	// KeyTrace holds the mutable outcome record read by the access log.
	KeyTrace key = "trace"
)
