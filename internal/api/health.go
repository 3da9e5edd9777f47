// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package api

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/taibuivan/giftlist/internal/platform/constants"
	"github.com/taibuivan/giftlist/internal/platform/respond"
)

// Check pings one dependency.
type Check func(ctx context.Context) error

// HealthDependencies lists what /ready probes. A nil check is skipped, which
// is how a deployment without the Redis outbox stays ready.
type HealthDependencies struct {
	Database Check
	Outbox   Check
}

// probeTimeout bounds the whole readiness round.
const probeTimeout = 3 * time.Second

// dependencyStatus is one entry of the "checks" object.
type dependencyStatus struct {
	Healthy bool   `json:"ok"`
	Error   string `json:"error,omitempty"`
}

// NewHealthHandlers returns the /health and /ready handlers.
func NewHealthHandlers(dependencies HealthDependencies, logger *slog.Logger) (liveness, readiness http.HandlerFunc) {
	checks := map[string]Check{
		"postgres": dependencies.Database,
		"redis":    dependencies.Outbox,
	}
	for name, check := range checks {
		if check == nil {
			delete(checks, name)
		}
	}

	liveness = func(writer http.ResponseWriter, _ *http.Request) {
		respond.OK(writer, map[string]string{
			constants.FieldStatus:  "ok",
			constants.FieldApp:     constants.AppName,
			constants.FieldVersion: constants.AppVersion,
		})
	}

	readiness = func(writer http.ResponseWriter, request *http.Request) {
		statuses := probe(request.Context(), checks, logger)

		state, code := "ready", http.StatusOK
		for _, status := range statuses {
			if !status.Healthy {
				state, code = "degraded", http.StatusServiceUnavailable
				break
			}
		}

		respond.JSON(writer, code, respond.SuccessEnvelope{Data: map[string]any{
			constants.FieldStatus: state,
			constants.FieldChecks: statuses,
		}})
	}

	return liveness, readiness
}

// probe runs every check concurrently under one deadline.
func probe(ctx context.Context, checks map[string]Check, logger *slog.Logger) map[string]dependencyStatus {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	var (
		mutex    sync.Mutex
		wait     sync.WaitGroup
		statuses = make(map[string]dependencyStatus, len(checks))
	)

	for name, check := range checks {
		wait.Add(1)
		go func() {
			defer wait.Done()

			status := dependencyStatus{Healthy: true}
			if err := check(ctx); err != nil {
				status = dependencyStatus{Error: err.Error()}
				logger.ErrorContext(ctx, "readiness_check_failed",
					slog.String("dependency", name),
					slog.Any("error", err),
				)
			}

			mutex.Lock()
			statuses[name] = status
			mutex.Unlock()
		}()
	}

	wait.Wait()
	return statuses
}
