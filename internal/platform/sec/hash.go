// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sec

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword hashes a plain-text password using the bcrypt algorithm.
func HashPassword(plainTextPassword string) (string, error) {
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(plainTextPassword), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("sec: failed to hash password: %w", err)
	}
	return string(hashedBytes), nil
}

// CheckPasswordHash compares a plain-text password with its hashed version.
func CheckPasswordHash(plainTextPassword, existingHash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(existingHash), []byte(plainTextPassword))
	return err == nil
}

// dummyHash is computed once, at the same cost as real password hashes.
var dummyHash = sync.OnceValue(func() string {
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(HashToken("giftlist-dummy-password")), bcrypt.DefaultCost)
	if err != nil {
		panic(fmt.Sprintf("sec: dummy password hash: %v", err))
	}
	return string(hashedBytes)
})

// DummyPasswordHash returns a bcrypt hash no user password matches. Comparing
// against it costs the same as checking a real account.
func DummyPasswordHash() string {
	return dummyHash()
}

// HashToken derives the storage key of a bearer secret: the lowercase hex
// SHA-256 digest of the token text. The digest is one-way; the raw token is
// never persisted.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// EqualConstantTime compares two secrets without leaking the position of the
// first difference.
func EqualConstantTime(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
