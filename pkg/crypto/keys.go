// SPDX-FileCopyrightText: Copyright 2025 Janee Authors
// SPDX-License-Identifier: Apache-2.0

package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/janee-ai/janee/pkg/errors"
)

// defaultTokenBytes is the entropy used for generated tokens when the caller
// does not specify a length.
const defaultTokenBytes = 32

// GenerateMasterKey returns a fresh base64-encoded 32-byte master key.
func GenerateMasterKey() (string, error) {
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return "", errors.NewCryptoError("generating master key", err)
	}
	return base64.StdEncoding.EncodeToString(key), nil
}

// DecodeMasterKey decodes a base64 master key and validates its length.
func DecodeMasterKey(encoded string) ([]byte, error) {
	raw := strings.TrimSpace(encoded)
	if raw == "" {
		return nil, errors.NewCryptoError("master key is empty", nil)
	}

	key, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, errors.NewCryptoError("master key is not valid base64", err)
	}
	if len(key) != KeySize {
		return nil, errors.NewCryptoError(
			fmt.Sprintf("master key must be %d bytes, got %d", KeySize, len(key)), nil)
	}

	return key, nil
}

// NewToken returns "<prefix>_<hex>" with n random bytes of entropy. Values of
// n below one fall back to the default of 32 bytes.
func NewToken(prefix string, n int) (string, error) {
	if n <= 0 {
		n = defaultTokenBytes
	}

	raw := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, raw); err != nil {
		return "", errors.NewCryptoError("generating token", err)
	}

	return fmt.Sprintf("%s_%s", prefix, hex.EncodeToString(raw)), nil
}

// FingerprintSHA256 returns the first 8 hex characters of the SHA-256 digest
// of data. Used to log which master key is loaded without revealing it.
func FingerprintSHA256(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:8]
}
