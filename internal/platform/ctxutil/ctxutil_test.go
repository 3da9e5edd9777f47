// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package ctxutil_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/giftlist/internal/platform/ctxutil"
	"github.com/taibuivan/giftlist/internal/platform/sec"
)

/*
TestContext_Defaults checks what an empty context yields.
*/
func TestContext_Defaults(t *testing.T) {
	ctx := context.Background()

	assert.Empty(t, ctxutil.GetRequestID(ctx))
	assert.Equal(t, slog.Default(), ctxutil.GetLogger(ctx))
	assert.Nil(t, ctxutil.GetAuthUser(ctx))

	// A typed nil logger still falls back
	ctx = ctxutil.WithLogger(ctx, nil)
	assert.Equal(t, slog.Default(), ctxutil.GetLogger(ctx))
}

/*
TestContext_RoundTrip stores and reads each value.
*/
func TestContext_RoundTrip(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	claims := &sec.AuthClaims{UserID: "user-123", Username: "alice", EmailVerified: true}

	ctx := ctxutil.WithRequestID(context.Background(), "0190b8a4-6f2e-7c3a-9d4b-1e2f3a4b5c6d")
	ctx = ctxutil.WithLogger(ctx, logger)
	ctx = ctxutil.WithAuthUser(ctx, claims)

	assert.Equal(t, "0190b8a4-6f2e-7c3a-9d4b-1e2f3a4b5c6d", ctxutil.GetRequestID(ctx))
	assert.Same(t, logger, ctxutil.GetLogger(ctx))
	assert.Same(t, claims, ctxutil.GetAuthUser(ctx))
}

/*
TestIdentify tags later log lines with the user ID.
*/
func TestIdentify(t *testing.T) {
	var buffer bytes.Buffer
	ctx := ctxutil.WithLogger(context.Background(), slog.New(slog.NewTextHandler(&buffer, nil)))

	ctx = ctxutil.Identify(ctx, &sec.AuthClaims{UserID: "user-123"})
	ctxutil.GetLogger(ctx).Info("session_resolved")

	require.NotNil(t, ctxutil.GetAuthUser(ctx))
	assert.Equal(t, "user-123", ctxutil.GetAuthUser(ctx).UserID)
	assert.Contains(t, buffer.String(), "user_id=user-123")
}

/*
TestIdentify_RecordsTrace lets outer middleware see the user resolved deeper
in the chain.
*/
func TestIdentify_RecordsTrace(t *testing.T) {
	// 1. No trace outside the access logger
	assert.Nil(t, ctxutil.GetTrace(context.Background()))

	// 2. Identify on a derived context fills the shared trace
	outer, trace := ctxutil.WithTrace(context.Background())
	inner := context.WithValue(outer, struct{}{}, "derived")
	ctxutil.Identify(inner, &sec.AuthClaims{UserID: "user-456"})

	assert.Equal(t, "user-456", trace.UserID)
	assert.Same(t, trace, ctxutil.GetTrace(outer))
}
