// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package validate_test

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/giftlist/internal/platform/apperr"
	"github.com/taibuivan/giftlist/internal/platform/validate"
)

/*
TestValidator_Rules runs each rule against passing and failing input.
*/
func TestValidator_Rules(t *testing.T) {
	tests := []struct {
		name   string
		apply  func(v *validate.Validator)
		failed bool
	}{
		{"required_ok", func(v *validate.Validator) { v.Required("email", "a@b.co") }, false},
		{"required_blank", func(v *validate.Validator) { v.Required("email", "   ") }, true},

		{"email_ok", func(v *validate.Validator) { v.Email("email", "alice@example.com") }, false},
		{"email_empty_left_to_required", func(v *validate.Validator) { v.Email("email", "") }, false},
		{"email_no_dot", func(v *validate.Validator) { v.Email("email", "alice@localhost") }, true},
		{"email_no_at", func(v *validate.Validator) { v.Email("email", "alice.example.com") }, true},
		{"email_display_name", func(v *validate.Validator) { v.Email("email", "Alice <alice@example.com> x") }, true},

		{"username_ok", func(v *validate.Validator) { v.Username("username", "alice") }, false},
		{"username_three_chars", func(v *validate.Validator) { v.Username("username", "abc") }, true},
		{"username_32_chars", func(v *validate.Validator) { v.Username("username", strings.Repeat("a", 32)) }, true},
		{"username_padded", func(v *validate.Validator) { v.Username("username", " alice ") }, true},

		{"max_len_counts_runes", func(v *validate.Validator) { v.MaxLen("username", "ｅｅｅ", 3) }, false},
		{"max_bytes_counts_bytes", func(v *validate.Validator) { v.MaxBytes("password", "ｅｅｅ", 3) }, true},
		{"max_bytes_bcrypt_limit", func(v *validate.Validator) { v.MaxBytes("password", strings.Repeat("a", 72), 72) }, false},

		{"custom_failed", func(v *validate.Validator) { v.Custom("confirm_password", true, "Passwords do not match") }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := &validate.Validator{}
			tt.apply(v)

			assert.Equal(t, tt.failed, v.HasErrors())
			if !tt.failed {
				assert.NoError(t, v.Err())
			}
		})
	}
}

/*
TestValidator_Err checks how failures surface to clients.
*/
func TestValidator_Err(t *testing.T) {
	// 1. One failure promotes its message
	err := new(validate.Validator).Custom("password", true, "Password must be at least 8 characters long").Err()
	appErr := apperr.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, http.StatusBadRequest, appErr.HTTPStatus)
	assert.Equal(t, "Password must be at least 8 characters long", appErr.Message)
	assert.Len(t, appErr.Details, 1)

	// 2. Several failures are listed in order
	err = new(validate.Validator).
		Required("email", "").
		Username("username", "ab").
		Err()
	appErr = apperr.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, "Validation failed", appErr.Message)
	require.Len(t, appErr.Details, 2)
	assert.Equal(t, "email", appErr.Details[0].Field)
	assert.Equal(t, "username", appErr.Details[1].Field)
}

/*
TestRequiredError uses the field message as the headline.
*/
func TestRequiredError(t *testing.T) {
	appErr := validate.RequiredError("code", "Enter your code")

	assert.Equal(t, "VALIDATION_ERROR", appErr.Code)
	assert.Equal(t, "Enter your code", appErr.Message)
	assert.Equal(t, []apperr.FieldError{{Field: "code", Message: "Enter your code"}}, appErr.Details)
}
