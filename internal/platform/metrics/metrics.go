// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package metrics declares the Prometheus instruments of the auth service.
//
// Instruments are registered on the default registry and exposed by
// [Handler] at /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// throttleRejections counts refused consumes per bucket.
	throttleRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "giftlist_throttle_rejections_total",
		Help: "Total number of requests refused by a token bucket",
	}, []string{"bucket"})

	// sessionValidations counts session token validations by outcome.
	sessionValidations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "giftlist_session_validations_total",
		Help: "Total number of session token validations",
	}, []string{"outcome"})

	// credentialEvents counts completed credential lifecycle transitions.
	credentialEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "giftlist_credential_events_total",
		Help: "Total number of credential lifecycle events",
	}, []string{"event"})

	// requestDuration tracks HTTP latency per route pattern and status.
	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "giftlist_http_request_duration_seconds",
		Help:    "HTTP request latency by method, route and status",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)

// Session validation outcomes.
const (
	OutcomeValid   = "valid"
	OutcomeRenewed = "renewed"
	OutcomeExpired = "expired"
	OutcomeUnknown = "unknown"
)

// RecordThrottleRejection increments the rejection counter for bucket.
func RecordThrottleRejection(bucket string) {
	throttleRejections.WithLabelValues(bucket).Inc()
}

// RecordSessionValidation increments the validation counter for outcome.
func RecordSessionValidation(outcome string) {
	sessionValidations.WithLabelValues(outcome).Inc()
}

// RecordCredentialEvent increments the lifecycle counter for event
// (e.g. "password_reset_completed").
func RecordCredentialEvent(event string) {
	credentialEvents.WithLabelValues(event).Inc()
}

// ObserveRequest records one finished HTTP request.
func ObserveRequest(method, route string, status int, elapsed time.Duration) {
	requestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
