// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package migration

import (
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"testing"

	"github.com/golang-migrate/migrate/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/giftlist/data"
)

type fakeMigrator struct {
	version uint
	dirty   bool
	upErr   error
	ups     int
	closed  bool
}

func (m *fakeMigrator) Up() error {
	m.ups++
	if m.upErr == nil {
		m.version++
	}
	return m.upErr
}

func (m *fakeMigrator) Version() (uint, bool, error) {
	if m.version == 0 {
		return 0, false, migrate.ErrNilVersion
	}
	return m.version, m.dirty, nil
}

func (m *fakeMigrator) Close() (error, error) {
	m.closed = true
	return nil, nil
}

/*
TestApply covers the outcomes of a startup migration run.
*/
func TestApply(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name    string
		m       *fakeMigrator
		wantErr bool
		wantUps int
	}{
		{"fresh_database", &fakeMigrator{}, false, 1},
		{"already_current", &fakeMigrator{version: 1, upErr: migrate.ErrNoChange}, false, 1},
		{"dirty_stops_startup", &fakeMigrator{version: 1, dirty: true}, true, 0},
		{"apply_failure", &fakeMigrator{upErr: errors.New("syntax error")}, true, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := apply(tt.m, logger)

			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantUps, tt.m.ups)
			assert.True(t, tt.m.closed)
		})
	}
}

/*
TestEmbeddedMigrations checks that every up script has its down pair.
*/
func TestEmbeddedMigrations(t *testing.T) {
	ups, err := fs.Glob(data.Migrations, "migrations/*.up.sql")
	require.NoError(t, err)
	require.NotEmpty(t, ups)

	for _, up := range ups {
		down := up[:len(up)-len(".up.sql")] + ".down.sql"
		_, err := fs.Stat(data.Migrations, down)
		assert.NoError(t, err, "missing %s", down)
	}
}

/*
TestConvertToPgx5DSN verifies the scheme rewrite for golang-migrate.
*/
func TestConvertToPgx5DSN(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"postgres://u:p@db:5432/giftlist", "pgx5://u:p@db:5432/giftlist"},
		{"postgresql://u:p@db/giftlist?sslmode=disable", "pgx5://u:p@db/giftlist?sslmode=disable"},
		{"pgx5://db/giftlist", "pgx5://db/giftlist"},
		{"host=db dbname=giftlist", "host=db dbname=giftlist"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, convertToPgx5DSN(tt.in))
	}
}
