// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package api assembles the public HTTP surface: probes, metrics and the
// /api/v1/auth routes behind the shared guard chain.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/taibuivan/giftlist/internal/platform/config"
	"github.com/taibuivan/giftlist/internal/platform/constants"
	"github.com/taibuivan/giftlist/internal/platform/metrics"
	"github.com/taibuivan/giftlist/internal/platform/middleware"
	"github.com/taibuivan/giftlist/internal/platform/throttle"
	"github.com/taibuivan/giftlist/internal/users/auth"
)

// # Server Definitions

// Server owns the router and the listening [http.Server].
type Server struct {
	httpServer *http.Server
	router     chi.Router
	logger     *slog.Logger
}

// # Handler Registry

// Handlers groups the HTTP handler sets and the request guards they rely on.
type Handlers struct {
	// Liveness is the /health handler. Always 200 while the process is alive.
	Liveness http.HandlerFunc

	// Readiness is the /ready handler. 200 only when every dependency answers.
	Readiness http.HandlerFunc

	// Auth serves /api/v1/auth.
	Auth *auth.Handler

	// Gateway resolves the session cookie on every request.
	Gateway *auth.Gateway

	// Tokens verifies bearer tokens.
	Tokens middleware.TokenVerifier

	// IPBucket throttles every request by client IP.
	IPBucket throttle.Bucket[string]

	// Proxies may set X-Real-IP and X-Forwarded-For. Nil trusts no one.
	Proxies middleware.ProxySet
}

// # Server Initialization

// NewServer builds the router and binds it to cfg.ServerPort.
func NewServer(cfg *config.Config, logger *slog.Logger, handlers Handlers) *Server {
	router := newRouter(middleware.NewOriginSet(cfg.TrustedOrigins()...), logger, handlers)

	return &Server{
		router: router,
		logger: logger,
		httpServer: &http.Server{
			Addr:              net.JoinHostPort("", cfg.ServerPort),
			Handler:           router,
			ReadHeaderTimeout: constants.DefaultReadHeaderTimeout,
			ReadTimeout:       constants.DefaultReadTimeout,
			WriteTimeout:      constants.DefaultWriteTimeout,
			IdleTimeout:       constants.DefaultIdleTimeout,
			ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
		},
	}
}

// newRouter applies the guard chain before any route, so throttling and origin
// checks run before a handler touches the store.
func newRouter(trusted middleware.OriginSet, logger *slog.Logger, handlers Handlers) chi.Router {
	router := chi.NewRouter()

	router.Use(
		middleware.RequestID(),
		middleware.StructuredLogger(logger, handlers.Proxies),
		middleware.PanicRecovery(logger),
		chimw.Timeout(constants.GlobalRequestTimeout),
		middleware.RateLimit(handlers.IPBucket, handlers.Proxies),
		middleware.VerifyOrigin(trusted),
		middleware.CORS(trusted),
		chimw.CleanPath,
	)

	router.Get("/health", handlers.Liveness)
	router.Get("/ready", handlers.Readiness)
	router.Method(http.MethodGet, "/metrics", metrics.Handler())

	router.Route("/api/v1", func(v1 chi.Router) {
		v1.Use(handlers.Gateway.ResolveSession, middleware.Authenticate(handlers.Tokens))
		v1.Mount("/auth", handlers.Auth.Routes())
	})

	return router
}

// Handler returns the router without the listener.
func (server *Server) Handler() http.Handler {
	return server.router
}

// # Server Lifecycle

// ListenAndServe blocks until Shutdown is called or the listener fails.
// [http.ErrServerClosed] is reported as nil.
func (server *Server) ListenAndServe() error {
	server.logger.Info("http_server_listening", slog.String("addr", server.httpServer.Addr))

	if err := server.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http_listen: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests for at most timeout.
func (server *Server) Shutdown(timeout time.Duration) error {
	context, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return server.httpServer.Shutdown(context)
}
