// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package middleware holds the HTTP chain shared by every auth route.
//
// Order matters: RequestID and StructuredLogger run first so later guards
// (per-IP throttle, origin check, CORS, bearer auth) log with a correlated
// request-scoped logger. PanicRecovery sits inside the logger so a recovered
// panic is still counted as a 500.
package middleware

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"runtime"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/giftlist/internal/platform/apperr"
	"github.com/taibuivan/giftlist/internal/platform/constants"
	"github.com/taibuivan/giftlist/internal/platform/ctxutil"
	"github.com/taibuivan/giftlist/internal/platform/metrics"
	"github.com/taibuivan/giftlist/internal/platform/respond"
	"github.com/taibuivan/giftlist/internal/platform/throttle"
	"github.com/taibuivan/giftlist/pkg/uuid"
)

// # Request Tracing

// RequestID attaches a correlation ID to every request for log tracing.
func RequestID() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {

			// 1. Reuse a well-formed client ID, otherwise mint a UUIDv7
			requestID := request.Header.Get(constants.HeaderXRequestID)
			if !uuid.Valid(requestID) {
				requestID = uuid.New()
			}

			// 2. Inject into context and response headers
			ctx := ctxutil.WithRequestID(request.Context(), requestID)
			writer.Header().Set(constants.HeaderXRequestID, requestID)

			next.ServeHTTP(writer, request.WithContext(ctx))
		})
	}
}

// # Activity Logging

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (recorder *statusRecorder) WriteHeader(code int) {
	recorder.status = code
	recorder.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (recorder *statusRecorder) Unwrap() http.ResponseWriter {
	return recorder.ResponseWriter
}

/*
StructuredLogger installs a request-scoped logger and writes one
http_request_finished line per request.

Description: The line is logged at warn for 4xx and error for 5xx, so failed
logins and throttled clients stand out. The same numbers feed the request
duration histogram, labelled by chi route pattern rather than raw path to keep
cardinality bounded.
*/
func StructuredLogger(logger *slog.Logger, proxies ProxySet) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			started := time.Now()

			// 1. Per-request logger
			requestLogger := logger.With(
				slog.String("request_id", ctxutil.GetRequestID(request.Context())),
				slog.String("method", request.Method),
				slog.String("path", request.URL.Path),
				slog.String("ip", proxies.ClientIP(request)),
			)
			ctx, trace := ctxutil.WithTrace(ctxutil.WithLogger(request.Context(), requestLogger))
			recorder := &statusRecorder{ResponseWriter: writer, status: http.StatusOK}

			next.ServeHTTP(recorder, request.WithContext(ctx))

			// 2. Outcome
			elapsed := time.Since(started)
			level := slog.LevelInfo
			switch {
			case recorder.status >= http.StatusInternalServerError:
				level = slog.LevelError
			case recorder.status >= http.StatusBadRequest:
				level = slog.LevelWarn
			}

			attributes := []any{
				slog.Int("status", recorder.status),
				slog.Int64("latency_ms", elapsed.Milliseconds()),
				slog.String("user_agent", request.UserAgent()),
			}
			if trace.UserID != "" {
				attributes = append(attributes, slog.String("user_id", trace.UserID))
			}
			requestLogger.Log(ctx, level, "http_request_finished", attributes...)

			metrics.ObserveRequest(request.Method, routePattern(request), recorder.status, elapsed)
		})
	}
}

// routePattern returns the matched chi pattern, or "unmatched".
func routePattern(request *http.Request) string {
	if routeContext := chi.RouteContext(request.Context()); routeContext != nil {
		if pattern := routeContext.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}

// # Rate Limiting

// RequestCost is the IP bucket charge for a request method: safe methods cost
// one token, everything else three.
func RequestCost(method string) int {
	if isSafeMethod(method) {
		return constants.IPCostSafe
	}
	return constants.IPCostMutating
}

/*
RateLimit throttles requests per client IP using an injected bucket.

Description: The bucket is built once at startup and shared by every request.
A request whose client IP cannot be determined is rejected with 403. An
exhausted bucket yields 429 with a plain-text body.

Parameters:
  - bucket: throttle.Bucket[string] (keyed by client IP)
  - proxies: ProxySet (peers whose forwarding headers are believed)

Returns:
  - func(http.Handler) http.Handler
*/
func RateLimit(bucket throttle.Bucket[string], proxies ProxySet) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {

			// 1. Identify the client; no identity, no service
			clientIP := proxies.ClientIP(request)
			if clientIP == "" {
				respond.Text(writer, http.StatusForbidden, "Forbidden")
				return
			}

			// 2. Charge the bucket by method
			if !bucket.Consume(clientIP, RequestCost(request.Method)) {
				ctxutil.GetLogger(request.Context()).WarnContext(request.Context(), "ip_rate_limited",
					slog.String("ip", clientIP),
				)
				respond.Text(writer, http.StatusTooManyRequests, "Too many requests")
				return
			}

			next.ServeHTTP(writer, request)
		})
	}
}

// # Origin Verification

// OriginSet is a normalised set of trusted origins.
type OriginSet map[string]struct{}

// NewOriginSet builds a set from scheme://host[:port] strings.
func NewOriginSet(origins ...string) OriginSet {
	set := make(OriginSet, len(origins))
	for _, origin := range origins {
		if normalised := normaliseOrigin(origin); normalised != "" {
			set[normalised] = struct{}{}
		}
	}
	return set
}

// Contains reports whether origin is trusted.
func (set OriginSet) Contains(origin string) bool {
	_, found := set[normaliseOrigin(origin)]
	return found
}

func normaliseOrigin(origin string) string {
	return strings.ToLower(strings.TrimRight(strings.TrimSpace(origin), "/"))
}

// VerifyOrigin rejects state-changing requests that declare an Origin outside
// trusted with 403. Safe methods and requests without an Origin header pass.
func VerifyOrigin(trusted OriginSet) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			origin := request.Header.Get(constants.HeaderOrigin)

			if !isSafeMethod(request.Method) && origin != "" && !trusted.Contains(origin) {
				ctxutil.GetLogger(request.Context()).WarnContext(request.Context(), "untrusted_origin_rejected",
					slog.String("origin", origin),
				)
				respond.Text(writer, http.StatusForbidden, "Forbidden")
				return
			}

			next.ServeHTTP(writer, request)
		})
	}
}

// # Reliability & Safety

// PanicRecovery turns a panic into a logged stack trace and a generic 500.
func PanicRecovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			defer func() {
				recovered := recover()
				if recovered == nil {
					return
				}
				if recovered == http.ErrAbortHandler {
					panic(recovered)
				}

				stack := make([]byte, 4096)
				stack = stack[:runtime.Stack(stack, false)]

				logger.ErrorContext(request.Context(), "panic_recovered",
					slog.String("request_id", ctxutil.GetRequestID(request.Context())),
					slog.Any("error", recovered),
					slog.String("stack", string(stack)),
				)

				respond.Error(writer, request, apperr.Internal(fmt.Errorf("panic: %v", recovered)))
			}()

			next.ServeHTTP(writer, request)
		})
	}
}

// # Cross-Origin Resource Sharing

// corsHeaders are sent to trusted origins. Credentials are allowed because the
// session travels in a cookie.
var corsHeaders = [][2]string{
	{"Access-Control-Allow-Methods", "GET, POST, OPTIONS"},
	{"Access-Control-Allow-Headers", "Accept, Content-Type, Authorization, " + constants.HeaderXRequestID},
	{"Access-Control-Expose-Headers", constants.HeaderXRequestID + ", Retry-After"},
	{"Access-Control-Allow-Credentials", "true"},
	{"Access-Control-Max-Age", "300"},
}

// CORS echoes a trusted Origin back with credentialed CORS headers and
// short-circuits preflights. Untrusted origins get no CORS headers, so the
// browser blocks the response.
func CORS(trusted OriginSet) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			origin := request.Header.Get(constants.HeaderOrigin)
			if origin == "" {
				next.ServeHTTP(writer, request)
				return
			}

			header := writer.Header()
			header.Add("Vary", constants.HeaderOrigin)
			if trusted.Contains(origin) {
				header.Set("Access-Control-Allow-Origin", origin)
				for _, pair := range corsHeaders {
					header.Set(pair[0], pair[1])
				}
			}

			if request.Method == http.MethodOptions && request.Header.Get("Access-Control-Request-Method") != "" {
				writer.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(writer, request)
		})
	}
}

// # Middleware Helpers

// ProxySet holds the networks allowed to speak for a client through
// X-Real-IP and X-Forwarded-For. The zero value trusts nobody.
type ProxySet []netip.Prefix

// ParseProxySet parses CIDRs ("10.0.0.0/8") or bare addresses. Blank entries
// are skipped.
func ParseProxySet(entries []string) (ProxySet, error) {
	proxies := make(ProxySet, 0, len(entries))
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		if !strings.Contains(entry, "/") {
			addr, err := netip.ParseAddr(entry)
			if err != nil {
				return nil, fmt.Errorf("middleware_trusted_proxy_invalid: %q: %w", entry, err)
			}
			addr = addr.Unmap()
			proxies = append(proxies, netip.PrefixFrom(addr, addr.BitLen()))
			continue
		}

		prefix, err := netip.ParsePrefix(entry)
		if err != nil {
			return nil, fmt.Errorf("middleware_trusted_proxy_invalid: %q: %w", entry, err)
		}
		proxies = append(proxies, prefix.Masked())
	}
	return proxies, nil
}

func (proxies ProxySet) contains(addr netip.Addr) bool {
	for _, prefix := range proxies {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

/*
ClientIP resolves the caller's address. It returns "" when nothing usable is
found.

Description: The TCP peer is the client unless it is a trusted proxy. Only
then is X-Real-IP honoured, followed by X-Forwarded-For read from the right:
the first hop outside the set is the client, since anything left of it was
written by the client itself.
*/
func (proxies ProxySet) ClientIP(request *http.Request) string {
	host, _, err := net.SplitHostPort(request.RemoteAddr)
	if err != nil {
		host = request.RemoteAddr
	}

	peer, ok := parseAddr(host)
	if !ok {
		return ""
	}
	if !proxies.contains(peer) {
		return peer.String()
	}

	if addr, ok := parseAddr(request.Header.Get(constants.HeaderXRealIP)); ok {
		return addr.String()
	}

	hops := strings.Split(request.Header.Get(constants.HeaderXForwardedFor), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		addr, ok := parseAddr(hops[i])
		if !ok {
			break
		}
		if !proxies.contains(addr) {
			return addr.String()
		}
	}

	return peer.String()
}

func parseAddr(raw string) (netip.Addr, bool) {
	addr, err := netip.ParseAddr(strings.TrimSpace(raw))
	if err != nil {
		return netip.Addr{}, false
	}
	return addr.Unmap(), true
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}
