// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package schema

// UserEmailVerificationTable represents the 'users.emailverification' table
type UserEmailVerificationTable struct {
	Table     string
	ID        string
	UserID    string
	Email     string
	Code      string
	ExpiresAt string
	CreatedAt string
}

// UserEmailVerification is the schema definition for users.emailverification
var UserEmailVerification = UserEmailVerificationTable{
	Table:     "users.emailverification",
	ID:        "id",
	UserID:    "userid",
	Email:     "email",
	Code:      "code",
	ExpiresAt: "expiresat",
	CreatedAt: "createdat",
}

// Columns returns all standard column names
func (t UserEmailVerificationTable) Columns() []string {
	return []string{t.ID, t.UserID, t.Email, t.Code, t.ExpiresAt}
}
