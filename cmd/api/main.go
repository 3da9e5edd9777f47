// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Command api is the entry point for the Giftlist auth server.
//
// # Startup Sequence
//
//  1. Initialize structured logger.
//  2. Load configuration from environment variables.
//  3. Connect to PostgreSQL (pgxpool) and run migrations.
//  4. Connect to Redis when an outbox URL is configured.
//  5. Build the throttle buckets and start their sweeper.
//  6. Wire the credential flows, gateway and handlers.
//  7. Start HTTP server with graceful shutdown.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/taibuivan/giftlist/internal/api"
	"github.com/taibuivan/giftlist/internal/platform/config"
	"github.com/taibuivan/giftlist/internal/platform/constants"
	"github.com/taibuivan/giftlist/internal/platform/middleware"
	"github.com/taibuivan/giftlist/internal/platform/migration"
	"github.com/taibuivan/giftlist/internal/platform/notify"
	pgstore "github.com/taibuivan/giftlist/internal/platform/postgres"
	redisstore "github.com/taibuivan/giftlist/internal/platform/redis"
	"github.com/taibuivan/giftlist/internal/platform/sec"
	"github.com/taibuivan/giftlist/internal/platform/throttle"
	"github.com/taibuivan/giftlist/internal/users/auth"
)

func main() {
	// ── 1. Logger ──────────────────────────────────────────────────────────
	log := newLogger(slog.LevelInfo)
	log.Info("service_initializing", slog.String("version", constants.AppVersion))

	// ── 2. Configuration ──────────────────────────────────────────────────
	cfg, err := config.Load()
	must(log, err, "load configuration")

	if cfg.Debug {
		log = newLogger(slog.LevelDebug)
		log.Debug("debug_logging_enabled")
	}

	log.Info("configuration_loaded",
		slog.String("environment", cfg.Environment),
		slog.String("port", cfg.ServerPort),
		slog.Bool("outbox_enabled", cfg.RedisURL != ""),
	)

	// Misconfiguration should fail fast rather than hang.
	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	// ── 3. PostgreSQL ─────────────────────────────────────────────────────
	pool, err := pgstore.NewPool(startupCtx, cfg.DatabaseURL, pgstore.PoolOptions{
		MaxConns:         cfg.DatabaseMaxConns,
		MinConns:         cfg.DatabaseMinConns,
		StatementTimeout: cfg.StatementTimeout,
	}, log)
	must(log, err, "connect to postgres")
	defer func() {
		log.Info("closing_postgres_pool")
		pool.Close()
	}()

	must(log, migration.RunUp(cfg.DatabaseURL, cfg.MigrationPath, log), "run migrations")

	health := api.HealthDependencies{
		Database: func(ctx context.Context) error { return pgstore.Ping(ctx, pool) },
	}

	// ── 4. Mail Outbox ────────────────────────────────────────────────────
	var notifier notify.Notifier = notify.NewLogNotifier(log)

	if cfg.RedisURL != "" {
		rdb, err := redisstore.NewClient(startupCtx, cfg.RedisURL, log)
		must(log, err, "connect to redis")
		defer closeRedis(log, rdb)

		notifier = notify.NewRedisNotifier(rdb, constants.MailOutboxStream)
		health.Outbox = func(ctx context.Context) error { return redisstore.Ping(ctx, rdb) }
	}

	// ── 5. Secrets ────────────────────────────────────────────────────────
	tokens, err := sec.NewTokenService(cfg.JWTPrivKeyPath, cfg.JWTPubKeyPath, constants.AuthIssuer)
	must(log, err, "initialize jwt service")

	cipher, err := sec.NewCipherFromBase64(cfg.RecoveryCodeKey)
	must(log, err, "initialize recovery code cipher")

	// ── 6. Throttling ─────────────────────────────────────────────────────
	// codeChecks serves both flows: reset checks are keyed by reset session
	// id and verification checks by user id, so the keys never collide.
	ipBucket := throttle.NewRefillingBucket[string](constants.IPBucketMax, constants.IPBucketRefill, throttle.WithName("ip"))
	codeChecks := throttle.NewExpiringBucket[string](constants.CodeCheckMax, constants.CodeCheckWindow, throttle.WithName("code_check"))
	emailSends := throttle.NewExpiringBucket[string](constants.EmailSendMax, constants.EmailSendWindow, throttle.WithName("email_send"))
	resetRequests := throttle.NewExpiringBucket[string](constants.ResetRequestMax, constants.ResetRequestWindow, throttle.WithName("reset_request"))
	recoveryChecks := throttle.NewRefillingBucket[string](constants.RecoveryCheckMax, constants.RecoveryCheckRefill, throttle.WithName("recovery_check"))

	// The IP bucket keys on the TCP peer unless it is one of these.
	proxies, err := middleware.ParseProxySet(cfg.TrustedProxies)
	must(log, err, "parse trusted proxies")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()
	sweeperDone := throttle.StartSweeper(rootCtx, constants.ThrottleSweepInterval, time.Now,
		ipBucket, codeChecks, emailSends, resetRequests, recoveryChecks)

	// ── 7. Domain Wiring ──────────────────────────────────────────────────
	store := auth.NewPostgresStore(pool)
	sessions := auth.NewSessionManager(store)
	resets := auth.NewPasswordResetFlow(store, notifier, codeChecks, resetRequests)
	verifications := auth.NewEmailVerificationFlow(store, notifier, codeChecks, emailSends)
	service := auth.NewService(store, sessions, verifications, tokens, cipher, recoveryChecks)

	cookies := auth.NewCookieJar(cfg.IsProduction())
	gateway := auth.NewGateway(sessions, cookies, cfg.LoginPath)

	liveness, readiness := api.NewHealthHandlers(health, log)

	server := api.NewServer(cfg, log, api.Handlers{
		Liveness:  liveness,
		Readiness: readiness,
		Auth:      auth.NewHandler(service, resets, verifications, gateway, cookies),
		Gateway:   gateway,
		Tokens:    tokens,
		IPBucket:  ipBucket,
		Proxies:   proxies,
	})

	// ── 8. Graceful Shutdown ──────────────────────────────────────────────
	serverErr := make(chan error, 1)
	go func() { serverErr <- server.ListenAndServe() }()

	select {
	case <-rootCtx.Done():
		log.Info("shutdown_signal_received")
	case err := <-serverErr:
		if err != nil {
			log.Error("http_server_failed", slog.Any("error", err))
		}
	}

	// Stops the sweeper too; the signal context is its parent.
	stop()
	log.Info("shutting_down_server", slog.Duration("timeout", constants.ShutdownTimeout))
	shutdownErr := server.Shutdown(constants.ShutdownTimeout)
	<-sweeperDone

	if shutdownErr != nil {
		log.Error("shutdown_error", slog.Any("error", shutdownErr))
		return
	}

	log.Info("server_stopped_cleanly")
}

// newLogger builds the JSON logger tagged with the application name and
// installs it as the default.
func newLogger(level slog.Level) *slog.Logger {
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})).With(slog.String(constants.FieldApp, constants.AppName))
	slog.SetDefault(log)
	return log
}

func closeRedis(log *slog.Logger, client *goredis.Client) {
	log.Info("closing_redis_client")
	if err := client.Close(); err != nil {
		log.Error("redis_close_error", slog.Any("error", err))
	}
}

// must exits the process when a startup step fails.
func must(log *slog.Logger, err error, step string) {
	if err != nil {
		log.Error("startup_failure",
			slog.String("step", step),
			slog.Any("error", err),
		)
		os.Exit(1)
	}
}
