// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package schema

// UserPasswordResetTable represents the 'users.passwordreset' table
type UserPasswordResetTable struct {
	Table         string
	ID            string
	UserID        string
	Email         string
	Code          string
	ExpiresAt     string
	EmailVerified string
	CreatedAt     string
}

// UserPasswordReset is the schema definition for users.passwordreset
var UserPasswordReset = UserPasswordResetTable{
	Table:         "users.passwordreset",
	ID:            "id",
	UserID:        "userid",
	Email:         "email",
	Code:          "code",
	ExpiresAt:     "expiresat",
	EmailVerified: "emailverified",
	CreatedAt:     "createdat",
}

// Columns returns all standard column names
func (t UserPasswordResetTable) Columns() []string {
	return []string{t.ID, t.UserID, t.Email, t.Code, t.ExpiresAt, t.EmailVerified}
}
