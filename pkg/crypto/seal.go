// SPDX-FileCopyrightText: Copyright 2025 Janee Authors
// SPDX-License-Identifier: Apache-2.0

// Package crypto provides AES-256-GCM sealing for secrets at rest and
// generation of the key material janee depends on. Sealed values travel as
// base64(iv || tag || ciphertext) so they can live inside YAML config files.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"

	"github.com/janee-ai/janee/pkg/errors"
)

const (
	// NonceSize is the GCM standard nonce size (12 bytes).
	NonceSize = 12
	// TagSize is the GCM authentication tag size (16 bytes).
	TagSize = 16
	// KeySize is the required key length for AES-256-GCM (32 bytes).
	KeySize = 32
)

// Seal encrypts plaintext with AES-256-GCM under the given 32-byte key and
// returns base64(iv || tag || ciphertext).
func Seal(plaintext string, key []byte) (string, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}

	iv := make([]byte, NonceSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", errors.NewCryptoError("generating iv", err)
	}

	// Seal emits ciphertext || tag; the wire format wants the tag between
	// the iv and the ciphertext.
	sealed := gcm.Seal(nil, iv, []byte(plaintext), nil)
	ct, tag := sealed[:len(sealed)-TagSize], sealed[len(sealed)-TagSize:]

	buf := make([]byte, 0, NonceSize+TagSize+len(ct))
	buf = append(buf, iv...)
	buf = append(buf, tag...)
	buf = append(buf, ct...)

	return base64.StdEncoding.EncodeToString(buf), nil
}

// Open decrypts a value produced by Seal using the same 32-byte key.
func Open(sealed string, key []byte) (string, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}

	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", errors.NewCryptoError("decoding sealed value", err)
	}
	if len(raw) < NonceSize+TagSize {
		return "", errors.NewCryptoError(
			fmt.Sprintf("sealed value too short: %d bytes", len(raw)), nil)
	}

	iv := raw[:NonceSize]
	tag := raw[NonceSize : NonceSize+TagSize]
	ct := raw[NonceSize+TagSize:]

	// Reassemble the ciphertext || tag layout Open expects.
	sealedBytes := make([]byte, 0, len(ct)+TagSize)
	sealedBytes = append(sealedBytes, ct...)
	sealedBytes = append(sealedBytes, tag...)

	plaintext, err := gcm.Open(nil, iv, sealedBytes, nil)
	if err != nil {
		return "", errors.NewCryptoError("opening sealed value", err)
	}

	return string(plaintext), nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, errors.NewCryptoError(
			fmt.Sprintf("key must be exactly %d bytes, got %d", KeySize, len(key)), nil)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.NewCryptoError("creating cipher", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errors.NewCryptoError("creating gcm", err)
	}

	return gcm, nil
}
