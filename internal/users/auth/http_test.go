// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/giftlist/internal/platform/constants"
	"github.com/taibuivan/giftlist/internal/users/auth"
)

// client is a cookie-keeping JSON client against a test server.
type client struct {
	t      *testing.T
	base   string
	client *http.Client
}

func newClient(t *testing.T, f *fixture) *client {
	t.Helper()

	cookies := auth.NewCookieJar(false)
	gateway := auth.NewGateway(f.sessions, cookies, "/login")
	handler := auth.NewHandler(f.service, f.resets, f.verifications, gateway, cookies)

	router := chi.NewRouter()
	router.Use(gateway.ResolveSession)
	router.Mount("/api/v1/auth", handler.Routes())

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	return &client{t: t, base: server.URL + "/api/v1/auth", client: &http.Client{Jar: jar}}
}

// do sends body as JSON and decodes the data envelope into out when given.
func (c *client) do(method, path string, body any, out any) int {
	c.t.Helper()

	var payload bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&payload).Encode(body))
	}

	request, err := http.NewRequest(method, c.base+path, &payload)
	require.NoError(c.t, err)
	request.Header.Set("Content-Type", "application/json")

	response, err := c.client.Do(request)
	require.NoError(c.t, err)
	defer response.Body.Close()

	if out != nil && response.StatusCode < 300 {
		envelope := struct {
			Data any `json:"data"`
		}{Data: out}
		require.NoError(c.t, json.NewDecoder(response.Body).Decode(&envelope))
	}
	return response.StatusCode
}

type userPayload struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
}

/*
TestHandler_RegisterAndVerifyEmail walks registration through email
confirmation using only cookies.
*/
func TestHandler_RegisterAndVerifyEmail(t *testing.T) {
	f := newFixture(t)
	c := newClient(t, f)

	// 1. Register
	var created userPayload
	status := c.do(http.MethodPost, "/register", map[string]string{
		"username": "alice",
		"email":    "alice@example.com",
		"password": "correct horse",
	}, &created)
	require.Equal(t, http.StatusCreated, status)
	assert.False(t, created.EmailVerified)

	// 2. The form describes the email branch
	var page struct {
		Email           string `json:"email"`
		IsPasswordReset bool   `json:"is_password_reset"`
	}
	require.Equal(t, http.StatusOK, c.do(http.MethodGet, "/verify-email", nil, &page))
	assert.Equal(t, "alice@example.com", page.Email)
	assert.False(t, page.IsPasswordReset)

	// 3. Wrong code, then the mailed one
	assert.Equal(t, http.StatusBadRequest, c.do(http.MethodPost, "/verify-email", map[string]string{"code": "00000000"}, nil))

	code := f.notifier.lastVerification(t).code
	require.Equal(t, http.StatusOK, c.do(http.MethodPost, "/verify-email", map[string]string{"code": code}, nil))

	// 4. The session now reports a verified address
	var me userPayload
	require.Equal(t, http.StatusOK, c.do(http.MethodGet, "/me", nil, &me))
	assert.True(t, me.EmailVerified)
	assert.Equal(t, created.ID, me.ID)
}

/*
TestHandler_PasswordReset walks forgot-password to a changed password and
checks that the old session stops working.
*/
func TestHandler_PasswordReset(t *testing.T) {
	f := newFixture(t)
	c := newClient(t, f)

	require.Equal(t, http.StatusCreated, c.do(http.MethodPost, "/register", map[string]string{
		"username": "alice",
		"email":    "alice@example.com",
		"password": "correct horse",
	}, nil))
	require.Equal(t, http.StatusOK, c.do(http.MethodGet, "/me", nil, nil))

	// 1. Reset before requesting one
	assert.Equal(t, http.StatusUnauthorized, c.do(http.MethodPost, "/reset-password", map[string]string{
		"password": "brand new pass", "confirm_password": "brand new pass",
	}, nil))

	// 2. Request, then try to skip the code
	require.Equal(t, http.StatusOK, c.do(http.MethodPost, "/forgot-password", map[string]string{"email": "alice@example.com"}, nil))
	assert.Equal(t, http.StatusForbidden, c.do(http.MethodPost, "/reset-password", map[string]string{
		"password": "brand new pass", "confirm_password": "brand new pass",
	}, nil))

	// 3. The reset branch takes precedence on verify-email
	var page struct {
		IsPasswordReset bool `json:"is_password_reset"`
	}
	require.Equal(t, http.StatusOK, c.do(http.MethodGet, "/verify-email", nil, &page))
	assert.True(t, page.IsPasswordReset)

	f.notifier.mu.Lock()
	code := f.notifier.resets[len(f.notifier.resets)-1].code
	f.notifier.mu.Unlock()
	require.Equal(t, http.StatusOK, c.do(http.MethodPost, "/verify-email", map[string]string{"code": code}, nil))

	// 4. Complete
	require.Equal(t, http.StatusNoContent, c.do(http.MethodPost, "/reset-password", map[string]string{
		"password": "brand new pass", "confirm_password": "brand new pass",
	}, nil))
	assert.Equal(t, http.StatusUnauthorized, c.do(http.MethodGet, "/me", nil, nil))

	// 5. The new password works
	require.Equal(t, http.StatusOK, c.do(http.MethodPost, "/login", map[string]string{
		"email": "alice@example.com", "password": "brand new pass",
	}, nil))
	assert.Equal(t, http.StatusOK, c.do(http.MethodGet, "/me", nil, nil))
}

/*
TestHandler_LogoutClearsSession checks that logout ends the session.
*/
func TestHandler_LogoutClearsSession(t *testing.T) {
	f := newFixture(t)
	c := newClient(t, f)
	f.seedUser(t, "alice@example.com")

	var login struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	require.Equal(t, http.StatusOK, c.do(http.MethodPost, "/login", map[string]string{
		"email": "alice@example.com", "password": "correct horse",
	}, &login))
	assert.Equal(t, "Bearer", login.TokenType)
	assert.Equal(t, int64(86400), login.ExpiresIn)
	assert.NotEmpty(t, login.AccessToken)

	require.Equal(t, http.StatusNoContent, c.do(http.MethodPost, "/logout", nil, nil))
	assert.Equal(t, http.StatusUnauthorized, c.do(http.MethodGet, "/me", nil, nil))
	assert.Equal(t, http.StatusUnauthorized, c.do(http.MethodPost, "/logout", nil, nil))
}

/*
TestHandler_RecoveryCodeRotation replaces the code on request and only the
newest one is accepted afterwards.
*/
func TestHandler_RecoveryCodeRotation(t *testing.T) {
	f := newFixture(t)
	c := newClient(t, f)
	user := f.seedUser(t, "alice@example.com")

	// 1. Session required
	assert.Equal(t, http.StatusUnauthorized, c.do(http.MethodPost, "/2fa/recovery-code", nil, nil))

	require.Equal(t, http.StatusOK, c.do(http.MethodPost, "/login", map[string]string{
		"email": "alice@example.com", "password": "correct horse",
	}, nil))

	original, err := f.service.GetUserRecoveryCode(context.Background(), user.ID)
	require.NoError(t, err)

	// 2. Rotate
	var rotated map[string]string
	require.Equal(t, http.StatusOK, c.do(http.MethodPost, "/2fa/recovery-code", nil, &rotated))
	assert.Regexp(t, `^[A-Z2-7]{16}$`, rotated[auth.FieldRecoveryCode])
	assert.NotEqual(t, original, rotated[auth.FieldRecoveryCode])

	// 3. The old code is dead, the new one works
	assert.Equal(t, http.StatusBadRequest, c.do(http.MethodPost, "/2fa/recovery", map[string]string{
		"recovery_code": original,
	}, nil))
	assert.Equal(t, http.StatusOK, c.do(http.MethodPost, "/2fa/recovery", map[string]string{
		"recovery_code": rotated[auth.FieldRecoveryCode],
	}, nil))
}

/*
TestHandler_Identity answers for a cookie session and rejects anonymous
callers.
*/
func TestHandler_Identity(t *testing.T) {
	f := newFixture(t)
	c := newClient(t, f)
	user := f.seedUser(t, "alice@example.com")

	assert.Equal(t, http.StatusUnauthorized, c.do(http.MethodGet, "/identity", nil, nil))

	require.Equal(t, http.StatusOK, c.do(http.MethodPost, "/login", map[string]string{
		"email": "alice@example.com", "password": "correct horse",
	}, nil))

	var identity struct {
		UserID        string `json:"user_id"`
		EmailVerified bool   `json:"email_verified"`
	}
	require.Equal(t, http.StatusOK, c.do(http.MethodGet, "/identity", nil, &identity))
	assert.Equal(t, user.ID, identity.UserID)
	assert.False(t, identity.EmailVerified)
}

/*
TestHandler_RetryAfter advertises how long a throttled caller must wait.
*/
func TestHandler_RetryAfter(t *testing.T) {
	f := newFixture(t)
	c := newClient(t, f)
	f.seedUser(t, "alice@example.com")

	forgot := func() *http.Response {
		request, err := http.NewRequest(http.MethodPost, c.base+"/forgot-password",
			strings.NewReader(`{"email":"alice@example.com"}`))
		require.NoError(t, err)
		request.Header.Set("Content-Type", "application/json")

		response, err := c.client.Do(request)
		require.NoError(t, err)
		response.Body.Close()
		return response
	}

	// 1. Spend the allowance
	for i := 0; i < constants.ResetRequestMax; i++ {
		response := forgot()
		require.Equal(t, http.StatusOK, response.StatusCode)
		assert.Empty(t, response.Header.Get("Retry-After"))
	}

	// 2. Refused with the window length
	response := forgot()
	assert.Equal(t, http.StatusTooManyRequests, response.StatusCode)
	assert.Equal(t, strconv.Itoa(int(constants.ResetRequestWindow.Seconds())), response.Header.Get("Retry-After"))
}
