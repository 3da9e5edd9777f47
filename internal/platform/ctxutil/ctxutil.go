// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package ctxutil reads and writes the per-request values kept in
// [context.Context]: correlation ID, logger and caller identity.
package ctxutil

import (
	"context"
	"log/slog"

	"github.com/taibuivan/giftlist/internal/platform/ctxkey"
	"github.com/taibuivan/giftlist/internal/platform/sec"
)

// # Request Tracing

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxkey.KeyRequestID, id)
}

// GetRequestID returns the correlation ID, or "" outside a request.
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(ctxkey.KeyRequestID).(string)
	return id
}

// # Structured Logging

func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxkey.KeyLogger, logger)
}

// GetLogger returns the request logger, falling back to [slog.Default] so
// callers never need a nil check.
func GetLogger(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(ctxkey.KeyLogger).(*slog.Logger); ok && logger != nil {
		return logger
	}
	return slog.Default()
}

// # Identity

func WithAuthUser(ctx context.Context, claims *sec.AuthClaims) context.Context {
	return context.WithValue(ctx, ctxkey.KeyUser, claims)
}

// GetAuthUser returns the caller's claims, or nil for anonymous requests.
func GetAuthUser(ctx context.Context) *sec.AuthClaims {
	claims, _ := ctx.Value(ctxkey.KeyUser).(*sec.AuthClaims)
	return claims
}

// Identify attaches claims and tags the request logger with user_id. The
// user is also recorded on the request [Trace], if any, for the access log.
func Identify(ctx context.Context, claims *sec.AuthClaims) context.Context {
	if trace := GetTrace(ctx); trace != nil {
		trace.UserID = claims.UserID
	}
	ctx = WithAuthUser(ctx, claims)
	return WithLogger(ctx, GetLogger(ctx).With(slog.String("user_id", claims.UserID)))
}

// # Access Trace

// Trace is filled in while a request is handled and read once it finishes.
// Values set on a derived context are invisible to outer middleware, so the
// access logger shares this pointer instead.
type Trace struct {
	UserID string
}

func WithTrace(ctx context.Context) (context.Context, *Trace) {
	trace := &Trace{}
	return context.WithValue(ctx, ctxkey.KeyTrace, trace), trace
}

// GetTrace returns the request trace, or nil outside the access logger.
func GetTrace(ctx context.Context) *Trace {
	trace, _ := ctx.Value(ctxkey.KeyTrace).(*Trace)
	return trace
}
