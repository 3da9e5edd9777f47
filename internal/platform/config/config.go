// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package config maps environment variables onto [Config] with caarlos0/env.
// Required keys fail Load; everything else has a development default.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// # Configuration Schema

// Config holds all runtime configuration for the Giftlist auth server.
type Config struct {

	// Server settings
	ServerPort  string `env:"SERVER_PORT"  envDefault:"8080"`
	Environment string `env:"ENVIRONMENT"  envDefault:"development"`
	Debug       bool   `env:"DEBUG"        envDefault:"false"`

	// Relational Database (PostgreSQL)
	DatabaseURL      string        `env:"DATABASE_URL,required,notEmpty"`
	DatabaseMaxConns int32         `env:"DATABASE_MAX_CONNS" envDefault:"20"`
	DatabaseMinConns int32         `env:"DATABASE_MIN_CONNS" envDefault:"2"`
	StatementTimeout time.Duration `env:"DATABASE_STATEMENT_TIMEOUT" envDefault:"5s"`

	// MigrationPath overrides the embedded migrations with a directory on disk.
	MigrationPath string `env:"MIGRATION_PATH"`

	// Mail outbox (Redis). Empty means codes are logged instead of published.
	RedisURL string `env:"REDIS_URL"`

	// Cryptographic keys for bearer tokens and recovery code sealing
	JWTPrivKeyPath  string `env:"JWT_PRIVATE_KEY_PATH,required,notEmpty"`
	JWTPubKeyPath   string `env:"JWT_PUBLIC_KEY_PATH,required,notEmpty"`
	RecoveryCodeKey string `env:"RECOVERY_CODE_KEY,required,notEmpty"`

	// Origins allowed to issue state-changing requests
	PublicOrigin string `env:"PUBLIC_ORIGIN" envDefault:"http://localhost:8080"`
	ExtraOrigins string `env:"EXTRA_ORIGINS"`

	// TrustedProxies lists the CIDRs whose X-Real-IP and X-Forwarded-For
	// headers are honoured. Empty means the peer address is the client.
	TrustedProxies []string `env:"TRUSTED_PROXIES" envSeparator:","`

	// LoginPath is where page-style callers are redirected when unauthenticated.
	LoginPath string `env:"LOGIN_PATH" envDefault:"/login"`
}

// # Configuration Loading

// Load reads the process environment.
func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("config_parse_env: %w", err)
	}
	return &cfg, nil
}

// IsDevelopment reports whether the server is running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction reports whether the server is running in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// TrustedOrigins returns PublicOrigin followed by every EXTRA_ORIGINS entry,
// trimmed of trailing slashes and deduplicated.
func (c *Config) TrustedOrigins() []string {
	seen := make(map[string]struct{})
	origins := make([]string, 0, 4)

	candidates := append([]string{c.PublicOrigin}, strings.Split(c.ExtraOrigins, ",")...)
	for _, origin := range candidates {
		origin = strings.TrimRight(strings.TrimSpace(origin), "/")
		if origin == "" {
			continue
		}
		if _, dup := seen[origin]; dup {
			continue
		}
		seen[origin] = struct{}{}
		origins = append(origins, origin)
	}

	return origins
}
