// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sec

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// ErrCiphertext is returned when a sealed value is malformed or was tampered with.
var ErrCiphertext = errors.New("sec: invalid ciphertext")

// Cipher seals small secrets (recovery codes) at rest with
// XChaCha20-Poly1305. The output layout is nonce || ciphertext || tag.
type Cipher struct {
	key []byte
}

// NewCipher builds a Cipher from a 32 byte key.
func NewCipher(key []byte) (*Cipher, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("sec: cipher key must be %d bytes, got %d", chacha20poly1305.KeySize, len(key))
	}
	return &Cipher{key: append([]byte(nil), key...)}, nil
}

// NewCipherFromBase64 decodes a standard base64 key, as found in RECOVERY_CODE_KEY.
func NewCipherFromBase64(encoded string) (*Cipher, error) {
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("sec: failed to decode cipher key: %w", err)
	}
	return NewCipher(key)
}

// EncryptString seals plaintext with a fresh random nonce.
func (cipher *Cipher) EncryptString(plaintext string) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(cipher.key)
	if err != nil {
		return nil, fmt.Errorf("sec: failed to init aead: %w", err)
	}

	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("sec: failed to read nonce: %w", err)
	}

	return aead.Seal(nonce, nonce, []byte(plaintext), nil), nil
}

// DecryptToString opens a value produced by [Cipher.EncryptString].
func (cipher *Cipher) DecryptToString(sealed []byte) (string, error) {
	aead, err := chacha20poly1305.NewX(cipher.key)
	if err != nil {
		return "", fmt.Errorf("sec: failed to init aead: %w", err)
	}

	if len(sealed) < aead.NonceSize()+aead.Overhead() {
		return "", ErrCiphertext
	}

	nonce, body := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, body, nil)
	if err != nil {
		return "", ErrCiphertext
	}

	return string(plaintext), nil
}
