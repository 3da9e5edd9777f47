// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package validate checks auth form input and reports every failed field in a
// single [apperr.AppError].
package validate

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/taibuivan/giftlist/internal/platform/apperr"
)

var (
	// emailShape requires a dot after the @, which net/mail alone does not.
	emailShape = regexp.MustCompile(`^.+@.+\..+$`)

	// ErrInvalidJSON is returned when the request body cannot be decoded.
	ErrInvalidJSON = apperr.ValidationError("Invalid JSON payload")
)

// Validator accumulates field failures. Use one per operation.
//
//	err := new(validate.Validator).
//		Required(FieldEmail, email).
//		Email(FieldEmail, email).
//		Err()
type Validator struct {
	errs []apperr.FieldError
}

// Required fails if the trimmed value is empty.
func (v *Validator) Required(field, value string) *Validator {
	if strings.TrimSpace(value) == "" {
		v.add(field, "This field is required")
	}
	return v
}

// MaxLen fails if value has more than max characters.
func (v *Validator) MaxLen(field, value string, max int) *Validator {
	if utf8.RuneCountInString(value) > max {
		v.add(field, fmt.Sprintf("Maximum %d characters", max))
	}
	return v
}

// MaxBytes fails if value is longer than max bytes. Passwords use it because
// bcrypt ignores everything past 72 bytes.
func (v *Validator) MaxBytes(field, value string, max int) *Validator {
	if len(value) > max {
		v.add(field, fmt.Sprintf("Maximum %d bytes", max))
	}
	return v
}

// Email fails unless value has the x@y.z shape and parses as an RFC 5322
// address. Empty values are left to [Validator.Required].
func (v *Validator) Email(field, value string) *Validator {
	if value == "" {
		return v
	}
	if !emailShape.MatchString(value) {
		v.add(field, "Invalid email")
		return v
	}
	if _, err := mail.ParseAddress(value); err != nil {
		v.add(field, "Invalid email")
	}
	return v
}

// Username fails unless value is 4 to 31 characters with no surrounding
// whitespace.
func (v *Validator) Username(field, value string) *Validator {
	length := utf8.RuneCountInString(value)
	if length <= 3 || length >= 32 || strings.TrimSpace(value) != value {
		v.add(field, "Invalid username")
	}
	return v
}

// Custom records message against field when failed is true.
func (v *Validator) Custom(field string, failed bool, message string) *Validator {
	if failed {
		v.add(field, message)
	}
	return v
}

// Err returns nil when every rule passed. A single failure surfaces its own
// message at the top level so forms can show it directly.
func (v *Validator) Err() error {
	switch len(v.errs) {
	case 0:
		return nil
	case 1:
		return apperr.ValidationError(v.errs[0].Message, v.errs...)
	default:
		return apperr.ValidationError("Validation failed", v.errs...)
	}
}

func (v *Validator) HasErrors() bool {
	return len(v.errs) > 0
}

func (v *Validator) add(field, message string) {
	v.errs = append(v.errs, apperr.FieldError{Field: field, Message: message})
}

// RequiredError builds the error for one missing field whose message is also
// the top-level message ("Enter your code").
func RequiredError(field, message string) *apperr.AppError {
	return apperr.ValidationError(message, apperr.FieldError{Field: field, Message: message})
}
