// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package schema names the tables and columns of the users schema so that
// repositories never spell identifiers inline.
package schema

// UserAccountTable represents the 'users.account' table
type UserAccountTable struct {
	Table          string
	ID             string
	Username       string
	Email          string
	Password       string
	EmailVerified  string
	TOTPRegistered string
	RecoveryCode   string
	CreatedAt      string
	UpdatedAt      string
}

// UserAccount is the schema definition for users.account
var UserAccount = UserAccountTable{
	Table:          "users.account",
	ID:             "id",
	Username:       "username",
	Email:          "email",
	Password:       "passwordhash",
	EmailVerified:  "emailverified",
	TOTPRegistered: "totpregistered",
	RecoveryCode:   "recoverycode",
	CreatedAt:      "createdat",
	UpdatedAt:      "updatedat",
}

// Columns returns the public view columns (no secrets).
func (t UserAccountTable) Columns() []string {
	return []string{t.ID, t.Email, t.Username, t.EmailVerified, t.TOTPRegistered}
}
