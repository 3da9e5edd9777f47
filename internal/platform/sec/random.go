// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sec

import (
	"crypto/rand"
	"encoding/base32"
	"fmt"
	"math/big"
	"strings"
)

// tokenBytes is the entropy of session tokens and request ids.
const tokenBytes = 20

// recoveryCodeBytes is the entropy of second-factor recovery codes.
const recoveryCodeBytes = 10

var (
	lowerNoPad = base32.NewEncoding("abcdefghijklmnopqrstuvwxyz234567").WithPadding(base32.NoPadding)
	upperNoPad = base32.StdEncoding.WithPadding(base32.NoPadding)
)

// GenerateSecureToken returns 20 random bytes encoded as lowercase base32
// without padding (32 characters), safe to place in a cookie.
func GenerateSecureToken() (string, error) {
	buffer, err := randomBytes(tokenBytes)
	if err != nil {
		return "", err
	}
	return lowerNoPad.EncodeToString(buffer), nil
}

// GenerateOTP returns a uniformly random numeric code of the given length.
func GenerateOTP(digits int) (string, error) {
	var builder strings.Builder
	builder.Grow(digits)

	ten := big.NewInt(10)
	for i := 0; i < digits; i++ {
		digit, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", fmt.Errorf("sec: failed to generate otp: %w", err)
		}
		builder.WriteByte(byte('0' + digit.Int64()))
	}

	return builder.String(), nil
}

// GenerateRecoveryCode returns a 16 character uppercase base32 code.
func GenerateRecoveryCode() (string, error) {
	buffer, err := randomBytes(recoveryCodeBytes)
	if err != nil {
		return "", err
	}
	return upperNoPad.EncodeToString(buffer), nil
}

func randomBytes(n int) ([]byte, error) {
	buffer := make([]byte, n)
	if _, err := rand.Read(buffer); err != nil {
		return nil, fmt.Errorf("sec: failed to read random bytes: %w", err)
	}
	return buffer, nil
}
