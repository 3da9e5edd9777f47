// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package data ships the SQL migrations inside the binary.
package data

import "embed"

// Migrations holds migrations/*.sql for the golang-migrate iofs source.
//
//go:embed migrations/*.sql
var Migrations embed.FS
