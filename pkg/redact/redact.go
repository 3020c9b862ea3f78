// SPDX-FileCopyrightText: Copyright 2025 Janee Authors
// SPDX-License-Identifier: Apache-2.0

// Package redact strips credential material from output that leaves the
// process boundary: subprocess stdout/stderr, log lines, and debug dumps.
//
// Redaction is best-effort: it operates on string representations and relies
// on callers to pass the right set of sensitive terms. It is NOT a substitute
// for keeping secrets out of call-sites in the first place.
package redact

import (
	"strings"
)

const placeholder = "[REDACTED]"

// minLen is the shortest value that gets redacted. Shorter values would cause
// spurious redaction of common substrings.
const minLen = 8

// String replaces every occurrence of each sensitive value in s with
// [REDACTED]. Values are processed in the order given; values shorter than
// 8 characters are skipped.
func String(s string, sensitiveValues ...string) string {
	for _, v := range sensitiveValues {
		if len(v) < minLen {
			continue
		}
		s = strings.ReplaceAll(s, v, placeholder)
	}
	return s
}

// Map returns a shallow copy of m with string values replaced by [REDACTED]
// for every key whose name suggests it holds a secret. Non-string values are
// left unchanged.
func Map(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if isSensitiveKey(k) {
			if str, ok := v.(string); ok && str != "" {
				out[k] = placeholder
				continue
			}
		}
		out[k] = v
	}
	return out
}

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, word := range []string{"password", "passwd", "token", "secret", "key", "credential", "auth", "passphrase"} {
		if strings.Contains(lower, word) {
			return true
		}
	}
	return false
}
