// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/giftlist/internal/platform/constants"
	"github.com/taibuivan/giftlist/internal/platform/sec"
	"github.com/taibuivan/giftlist/internal/users/auth"
)

/*
TestGenerateSessionToken checks the cookie encoding of session tokens.
*/
func TestGenerateSessionToken(t *testing.T) {
	token, err := auth.GenerateSessionToken()
	require.NoError(t, err)
	assert.Regexp(t, `^[a-z2-7]{32}$`, token)
}

/*
TestSessionManager_CreateSession verifies that only the token hash is stored.
*/
func TestSessionManager_CreateSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.seedUser(t, "alice@example.com")

	session, err := f.sessions.CreateSession(ctx, "raw-token", user.ID, auth.SessionFlags{TwoFactorVerified: true})
	require.NoError(t, err)

	assert.Equal(t, sec.HashToken("raw-token"), session.ID)
	assert.NotEqual(t, "raw-token", session.ID)
	assert.Equal(t, f.clock.Now().Add(constants.SessionTTL), session.ExpiresAt)
	assert.True(t, session.TwoFactorVerified)

	result, err := f.sessions.ValidateSessionToken(ctx, "raw-token")
	require.NoError(t, err)
	got, view, ok := result.Get()
	require.True(t, ok)
	assert.Equal(t, session.ID, got.ID)
	assert.Equal(t, user.ID, view.ID)
	assert.Equal(t, "alice@example.com", view.Email)
	assert.False(t, view.EmailVerified)
}

/*
TestSessionManager_ValidateAroundExpiry walks the renewal and expiry
boundaries of a 30 day session.
*/
func TestSessionManager_ValidateAroundExpiry(t *testing.T) {
	tests := []struct {
		name        string
		advance     time.Duration
		present     bool
		wantRenewal bool
	}{
		{"fresh_session_untouched", time.Hour, true, false},
		{"just_before_threshold", 15*24*time.Hour - time.Second, true, false},
		{"at_threshold_renews", 15 * 24 * time.Hour, true, true},
		{"one_second_before_expiry_renews", constants.SessionTTL - time.Second, true, true},
		{"exactly_at_expiry_deletes", constants.SessionTTL, false, false},
		{"one_second_after_expiry_deletes", constants.SessionTTL + time.Second, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			user := f.seedUser(t, "alice@example.com")
			token := f.openSession(t, user.ID)
			originalExpiry := f.clock.Now().Add(constants.SessionTTL)

			f.clock.Advance(tt.advance)

			result, err := f.sessions.ValidateSessionToken(ctx, token)
			require.NoError(t, err)
			require.Equal(t, tt.present, result.Present())

			if !tt.present {
				assert.Equal(t, auth.UserView{}, result.User())

				// 1. The expired row is gone for good
				f.clock.Advance(-tt.advance)
				again, err := f.sessions.ValidateSessionToken(ctx, token)
				require.NoError(t, err)
				assert.False(t, again.Present())
				return
			}

			expected := originalExpiry
			if tt.wantRenewal {
				expected = f.clock.Now().Add(constants.SessionTTL)
			}
			assert.Equal(t, expected, result.Record().ExpiresAt)

			// 2. Renewal is persisted
			stored, err := f.sessions.ValidateSessionToken(ctx, token)
			require.NoError(t, err)
			assert.Equal(t, expected, stored.Record().ExpiresAt)
		})
	}
}

/*
TestSessionManager_UnknownToken treats unknown tokens as absence, not failure.
*/
func TestSessionManager_UnknownToken(t *testing.T) {
	f := newFixture(t)

	result, err := f.sessions.ValidateSessionToken(context.Background(), "never-issued")
	require.NoError(t, err)
	assert.False(t, result.Present())
}

/*
TestSessionManager_Invalidate covers single and bulk invalidation.
*/
func TestSessionManager_Invalidate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.seedUser(t, "alice@example.com")
	bob := f.seedUser(t, "bob@example.com")

	first := f.openSession(t, alice.ID)
	second := f.openSession(t, alice.ID)
	other := f.openSession(t, bob.ID)

	// 1. Single session, repeated calls are harmless
	require.NoError(t, f.sessions.InvalidateSession(ctx, sec.HashToken(first)))
	require.NoError(t, f.sessions.InvalidateSession(ctx, sec.HashToken(first)))

	result, err := f.sessions.ValidateSessionToken(ctx, first)
	require.NoError(t, err)
	assert.False(t, result.Present())

	// 2. Every session of one user, others untouched
	require.NoError(t, f.sessions.InvalidateUserSessions(ctx, alice.ID))

	result, err = f.sessions.ValidateSessionToken(ctx, second)
	require.NoError(t, err)
	assert.False(t, result.Present())

	result, err = f.sessions.ValidateSessionToken(ctx, other)
	require.NoError(t, err)
	assert.True(t, result.Present())
}

/*
TestSessionManager_SetSessionAs2FAVerified flips the second-factor flag.
*/
func TestSessionManager_SetSessionAs2FAVerified(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.seedUser(t, "alice@example.com")
	token := f.openSession(t, user.ID)

	require.NoError(t, f.sessions.SetSessionAs2FAVerified(ctx, sec.HashToken(token)))

	result, err := f.sessions.ValidateSessionToken(ctx, token)
	require.NoError(t, err)
	assert.True(t, result.Record().TwoFactorVerified)
}
