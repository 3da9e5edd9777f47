// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package middleware_test

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/giftlist/internal/platform/constants"
	"github.com/taibuivan/giftlist/internal/platform/ctxutil"
	"github.com/taibuivan/giftlist/internal/platform/middleware"
	"github.com/taibuivan/giftlist/internal/platform/sec"
	"github.com/taibuivan/giftlist/internal/platform/throttle"
	"github.com/taibuivan/giftlist/pkg/uuid"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

/*
TestProxySet_ClientIP only believes forwarding headers sent by a trusted peer.
*/
func TestProxySet_ClientIP(t *testing.T) {
	proxies, err := middleware.ParseProxySet([]string{"10.0.0.0/8", " 192.168.1.1 ", ""})
	require.NoError(t, err)

	tests := []struct {
		name       string
		proxies    middleware.ProxySet
		remoteAddr string
		realIP     string
		forwarded  string
		expected   string
	}{
		{"remote_addr", nil, "203.0.113.7:5555", "", "", "203.0.113.7"},
		{"untrusted_peer_ignores_x_real_ip", nil, "203.0.113.7:5555", "198.51.100.1", "", "203.0.113.7"},
		{"untrusted_peer_ignores_forwarded", proxies, "203.0.113.7:5555", "", "192.0.2.9", "203.0.113.7"},
		{"trusted_peer_x_real_ip", proxies, "10.1.2.3:5555", "198.51.100.1", "192.0.2.9", "198.51.100.1"},
		{"trusted_peer_rightmost_untrusted_hop", proxies, "10.1.2.3:5555", "", "6.6.6.6, 192.0.2.9, 10.0.0.1", "192.0.2.9"},
		{"trusted_single_address", proxies, "192.168.1.1:5555", "", "192.0.2.9", "192.0.2.9"},
		{"trusted_peer_garbage_falls_back", proxies, "10.1.2.3:5555", "nope", "also-nope", "10.1.2.3"},
		{"ipv4_mapped_peer", nil, "[::ffff:203.0.113.7]:5555", "", "", "203.0.113.7"},
		{"nothing_usable", nil, "", "", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			request := httptest.NewRequest(http.MethodGet, "/", nil)
			request.RemoteAddr = tt.remoteAddr
			if tt.realIP != "" {
				request.Header.Set(constants.HeaderXRealIP, tt.realIP)
			}
			if tt.forwarded != "" {
				request.Header.Set(constants.HeaderXForwardedFor, tt.forwarded)
			}

			assert.Equal(t, tt.expected, tt.proxies.ClientIP(request))
		})
	}
}

/*
TestParseProxySet rejects malformed entries.
*/
func TestParseProxySet(t *testing.T) {
	tests := []struct {
		name    string
		entries []string
		valid   bool
	}{
		{"empty", nil, true},
		{"cidr_and_address", []string{"10.0.0.0/8", "::1"}, true},
		{"bad_cidr", []string{"10.0.0.0/99"}, false},
		{"hostname", []string{"proxy.internal"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := middleware.ParseProxySet(tt.entries)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

/*
TestRateLimit covers the missing-IP and exhausted-bucket refusals.
*/
func TestRateLimit(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	bucket := throttle.NewRefillingBucket[string](5, time.Minute, throttle.WithClock(func() time.Time { return now }))
	handler := middleware.RateLimit(bucket, nil)(okHandler)

	serve := func(method, remoteAddr string) *httptest.ResponseRecorder {
		request := httptest.NewRequest(method, "/", nil)
		request.RemoteAddr = remoteAddr
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, request)
		return recorder
	}

	// 1. No identifiable client
	recorder := serve(http.MethodGet, "")
	assert.Equal(t, http.StatusForbidden, recorder.Code)
	assert.Contains(t, recorder.Header().Get("Content-Type"), "text/plain")

	// 2. A mutating request costs three of five tokens
	assert.Equal(t, http.StatusOK, serve(http.MethodPost, "203.0.113.7:1").Code)
	assert.Equal(t, http.StatusOK, serve(http.MethodGet, "203.0.113.7:1").Code)
	assert.Equal(t, http.StatusOK, serve(http.MethodGet, "203.0.113.7:1").Code)

	// 3. Empty bucket
	recorder = serve(http.MethodGet, "203.0.113.7:1")
	assert.Equal(t, http.StatusTooManyRequests, recorder.Code)
	assert.Contains(t, recorder.Header().Get("Content-Type"), "text/plain")

	// 4. Other clients are unaffected
	assert.Equal(t, http.StatusOK, serve(http.MethodGet, "198.51.100.1:1").Code)
}

/*
TestRateLimit_SpoofedHeaders keeps charging the connecting peer when it
rotates forwarding headers it is not trusted to send.
*/
func TestRateLimit_SpoofedHeaders(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	bucket := throttle.NewRefillingBucket[string](5, time.Minute, throttle.WithClock(func() time.Time { return now }))
	proxies, err := middleware.ParseProxySet([]string{"10.0.0.0/8"})
	require.NoError(t, err)
	handler := middleware.RateLimit(bucket, proxies)(okHandler)

	serve := func(remoteAddr, forwarded string) int {
		request := httptest.NewRequest(http.MethodGet, "/", nil)
		request.RemoteAddr = remoteAddr
		request.Header.Set(constants.HeaderXForwardedFor, forwarded)
		request.Header.Set(constants.HeaderXRealIP, forwarded)
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, request)
		return recorder.Code
	}

	// 1. A direct client inventing a new address per request
	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, serve("203.0.113.7:1", fmt.Sprintf("192.0.2.%d", i+1)))
	}
	assert.Equal(t, http.StatusTooManyRequests, serve("203.0.113.7:1", "192.0.2.99"))

	// 2. Behind a trusted proxy, each forwarded client has its own allowance
	assert.Equal(t, http.StatusOK, serve("10.0.0.5:1", "198.51.100.1"))
	assert.Equal(t, http.StatusOK, serve("10.0.0.5:1", "198.51.100.2"))
}

/*
TestRequestCost prices safe and mutating methods.
*/
func TestRequestCost(t *testing.T) {
	assert.Equal(t, constants.IPCostSafe, middleware.RequestCost(http.MethodGet))
	assert.Equal(t, constants.IPCostSafe, middleware.RequestCost(http.MethodOptions))
	assert.Equal(t, constants.IPCostMutating, middleware.RequestCost(http.MethodPost))
	assert.Equal(t, constants.IPCostMutating, middleware.RequestCost(http.MethodDelete))
}

/*
TestVerifyOrigin rejects untrusted origins on state-changing methods only.
*/
func TestVerifyOrigin(t *testing.T) {
	handler := middleware.VerifyOrigin(middleware.NewOriginSet("https://giftlist.app/", "http://localhost:3000"))(okHandler)

	tests := []struct {
		name   string
		method string
		origin string
		status int
	}{
		{"trusted_post", http.MethodPost, "https://giftlist.app", http.StatusOK},
		{"trusted_case_insensitive", http.MethodPost, "HTTPS://GIFTLIST.APP", http.StatusOK},
		{"untrusted_post", http.MethodPost, "https://evil.example", http.StatusForbidden},
		{"untrusted_get", http.MethodGet, "https://evil.example", http.StatusOK},
		{"no_origin_post", http.MethodPost, "", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			request := httptest.NewRequest(tt.method, "/", nil)
			if tt.origin != "" {
				request.Header.Set(constants.HeaderOrigin, tt.origin)
			}
			recorder := httptest.NewRecorder()
			handler.ServeHTTP(recorder, request)

			assert.Equal(t, tt.status, recorder.Code)
		})
	}
}

/*
TestCORS answers trusted preflights with credentialed headers.
*/
func TestCORS(t *testing.T) {
	handler := middleware.CORS(middleware.NewOriginSet("https://giftlist.app"))(okHandler)

	request := httptest.NewRequest(http.MethodOptions, "/", nil)
	request.Header.Set(constants.HeaderOrigin, "https://giftlist.app")
	request.Header.Set("Access-Control-Request-Method", http.MethodPost)
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)

	assert.Equal(t, http.StatusNoContent, recorder.Code)
	assert.Equal(t, "https://giftlist.app", recorder.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", recorder.Header().Get("Access-Control-Allow-Credentials"))

	// Untrusted origins get no CORS headers
	request = httptest.NewRequest(http.MethodGet, "/", nil)
	request.Header.Set(constants.HeaderOrigin, "https://evil.example")
	recorder = httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Empty(t, recorder.Header().Get("Access-Control-Allow-Origin"))
}

/*
TestRequestID echoes a well-formed supplied ID and generates one otherwise.
*/
func TestRequestID(t *testing.T) {
	var seen string
	handler := middleware.RequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = ctxutil.GetRequestID(r.Context())
	}))

	request := httptest.NewRequest(http.MethodGet, "/", nil)
	request.Header.Set(constants.HeaderXRequestID, "0190b8a4-6f2e-7c3a-9d4b-1e2f3a4b5c6d")
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)
	assert.Equal(t, "0190b8a4-6f2e-7c3a-9d4b-1e2f3a4b5c6d", seen)
	assert.Equal(t, seen, recorder.Header().Get(constants.HeaderXRequestID))

	// Malformed and missing IDs are replaced
	for _, supplied := range []string{"", "not-a-request-id"} {
		request = httptest.NewRequest(http.MethodGet, "/", nil)
		if supplied != "" {
			request.Header.Set(constants.HeaderXRequestID, supplied)
		}
		recorder = httptest.NewRecorder()
		handler.ServeHTTP(recorder, request)
		assert.True(t, uuid.Valid(seen))
		assert.Equal(t, seen, recorder.Header().Get(constants.HeaderXRequestID))
	}
}

/*
TestAuthenticate covers the bearer header outcomes and RequireAuth.
*/
func TestAuthenticate(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	tokens := sec.NewTokenServiceFromKeys(key, &key.PublicKey, constants.AuthIssuer)

	token, err := tokens.GenerateAccessToken("uid", "alice", true, time.Hour)
	require.NoError(t, err)

	handler := middleware.Authenticate(tokens)(middleware.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "uid", ctxutil.GetAuthUser(r.Context()).UserID)
		w.WriteHeader(http.StatusOK)
	})))

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"valid_bearer", "Bearer " + token, http.StatusOK},
		{"lowercase_scheme", "bearer " + token, http.StatusOK},
		{"no_header", "", http.StatusUnauthorized},
		{"wrong_scheme", "Basic " + token, http.StatusUnauthorized},
		{"empty_token", "Bearer ", http.StatusUnauthorized},
		{"tampered_token", "Bearer " + token + "x", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			request := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				request.Header.Set(constants.HeaderAuthorization, tt.header)
			}
			recorder := httptest.NewRecorder()
			handler.ServeHTTP(recorder, request)

			assert.Equal(t, tt.status, recorder.Code)
		})
	}
}

/*
TestPanicRecovery answers a panicking handler with a JSON 500 and logs it.
*/
func TestPanicRecovery(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))

	handler := middleware.PanicRecovery(logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	recorder := httptest.NewRecorder()
	assert.NotPanics(t, func() {
		handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/", nil))
	})

	assert.Equal(t, http.StatusInternalServerError, recorder.Code)
	assert.Contains(t, recorder.Body.String(), `"code":"INTERNAL_ERROR"`)
	assert.NotContains(t, recorder.Body.String(), "boom")
	assert.Contains(t, logs.String(), "panic_recovered")
}

/*
TestStructuredLogger logs the final status and exposes the request logger.
*/
func TestStructuredLogger(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))

	handler := middleware.StructuredLogger(logger, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := ctxutil.Identify(r.Context(), &sec.AuthClaims{UserID: "user-789"})
		ctxutil.GetLogger(ctx).InfoContext(ctx, "inside_handler")
		w.WriteHeader(http.StatusTeapot)
	}))

	request := httptest.NewRequest(http.MethodGet, "/status", nil)
	request.RemoteAddr = "198.51.100.4:1234"
	handler.ServeHTTP(httptest.NewRecorder(), request)

	output, err := io.ReadAll(&logs)
	require.NoError(t, err)
	assert.Contains(t, string(output), `"msg":"inside_handler"`)
	assert.Contains(t, string(output), `"ip":"198.51.100.4"`)
	assert.Contains(t, string(output), `"msg":"http_request_finished"`)
	assert.Contains(t, string(output), `"status":418`)
	assert.Contains(t, string(output), `"level":"WARN"`)
	assert.Equal(t, 2, strings.Count(string(output), `"user_id":"user-789"`))
}
