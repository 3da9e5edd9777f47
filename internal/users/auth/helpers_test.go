// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/taibuivan/giftlist/internal/platform/apperr"
	"github.com/taibuivan/giftlist/internal/platform/constants"
	"github.com/taibuivan/giftlist/internal/platform/sec"
	"github.com/taibuivan/giftlist/internal/platform/throttle"
	"github.com/taibuivan/giftlist/internal/users/auth"
)

// # Test Doubles

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

// newFakeClock starts at the wall clock so cookie expiries stay meaningful to
// real HTTP clients.
func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Now().UTC().Truncate(time.Second)}
}

func (clock *fakeClock) Now() time.Time {
	clock.mu.Lock()
	defer clock.mu.Unlock()
	return clock.now
}

func (clock *fakeClock) Advance(d time.Duration) {
	clock.mu.Lock()
	defer clock.mu.Unlock()
	clock.now = clock.now.Add(d)
}

type sentCode struct {
	email string
	code  string
}

// recordingNotifier keeps every code it was asked to deliver.
type recordingNotifier struct {
	mu            sync.Mutex
	verifications []sentCode
	resets        []sentCode
}

func (notifier *recordingNotifier) SendVerificationCode(_ context.Context, email, code string) {
	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	notifier.verifications = append(notifier.verifications, sentCode{email, code})
}

func (notifier *recordingNotifier) SendPasswordResetCode(_ context.Context, email, code string) {
	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	notifier.resets = append(notifier.resets, sentCode{email, code})
}

func (notifier *recordingNotifier) lastVerification(t *testing.T) sentCode {
	t.Helper()
	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	require.NotEmpty(t, notifier.verifications)
	return notifier.verifications[len(notifier.verifications)-1]
}

func (notifier *recordingNotifier) verificationCount() int {
	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	return len(notifier.verifications)
}

func (notifier *recordingNotifier) resetCount() int {
	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	return len(notifier.resets)
}

// # Fixture

type fixture struct {
	clock         *fakeClock
	store         *auth.MemoryStore
	notifier      *recordingNotifier
	tokens        *sec.TokenService
	sessions      *auth.SessionManager
	resets        *auth.PasswordResetFlow
	verifications *auth.EmailVerificationFlow
	service       *auth.Service
}

var (
	signingKeyOnce sync.Once
	signingKey     *rsa.PrivateKey
)

func testSigningKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	signingKeyOnce.Do(func() {
		key, err := rsa.GenerateKey(rand.Reader, 2048)
		if err == nil {
			signingKey = key
		}
	})
	require.NotNil(t, signingKey)
	return signingKey
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	clock := newFakeClock()
	store := auth.NewMemoryStore()
	notifier := &recordingNotifier{}
	withClock := throttle.WithClock(clock.Now)

	codeChecks := throttle.NewExpiringBucket[string](constants.CodeCheckMax, constants.CodeCheckWindow, withClock)
	sends := throttle.NewExpiringBucket[string](constants.EmailSendMax, constants.EmailSendWindow, withClock)
	requests := throttle.NewExpiringBucket[string](constants.ResetRequestMax, constants.ResetRequestWindow, withClock)
	recovery := throttle.NewRefillingBucket[string](constants.RecoveryCheckMax, constants.RecoveryCheckRefill, withClock)

	cipher, err := sec.NewCipher(make([]byte, 32))
	require.NoError(t, err)

	key := testSigningKey(t)
	tokens := sec.NewTokenServiceFromKeys(key, &key.PublicKey, constants.AuthIssuer)

	sessions := auth.NewSessionManager(store, auth.WithClock(clock.Now))
	resets := auth.NewPasswordResetFlow(store, notifier, codeChecks, requests, auth.WithClock(clock.Now))
	verifications := auth.NewEmailVerificationFlow(store, notifier, codeChecks, sends, auth.WithClock(clock.Now))

	return &fixture{
		clock:         clock,
		store:         store,
		notifier:      notifier,
		tokens:        tokens,
		sessions:      sessions,
		resets:        resets,
		verifications: verifications,
		service:       auth.NewService(store, sessions, verifications, tokens, cipher, recovery),
	}
}

// seedUser creates an unverified account.
func (f *fixture) seedUser(t *testing.T, email string) *auth.User {
	t.Helper()
	user, err := f.service.CreateUser(context.Background(), email, "member", "correct horse")
	require.NoError(t, err)
	return user
}

// openSession creates a session for userID and returns its token.
func (f *fixture) openSession(t *testing.T, userID string) string {
	t.Helper()
	token, err := auth.GenerateSessionToken()
	require.NoError(t, err)
	_, err = f.sessions.CreateSession(context.Background(), token, userID, auth.SessionFlags{})
	require.NoError(t, err)
	return token
}

// statusOf returns the HTTP status carried by err.
func statusOf(t *testing.T, err error) int {
	t.Helper()
	appErr := apperr.As(err)
	require.NotNil(t, appErr, "expected an AppError, got %v", err)
	return appErr.HTTPStatus
}

// statusMessage returns the client message carried by err.
func statusMessage(t *testing.T, err error) string {
	t.Helper()
	appErr := apperr.As(err)
	require.NotNil(t, appErr, "expected an AppError, got %v", err)
	return appErr.Message
}
