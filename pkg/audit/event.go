// SPDX-FileCopyrightText: Copyright 2025 Janee Authors
// SPDX-License-Identifier: Apache-2.0

// Package audit provides the append-only audit trail for janee. Every
// mediated request — proxied, executed, or denied — produces one Event in a
// daily JSONL file under the log directory.
package audit

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

// MaxBodyBytes is the largest request body captured in an audit event.
// Longer bodies are truncated with a marker suffix.
const MaxBodyBytes = 10240

// Event represents one audited request. Events are immutable after write.
type Event struct {
	// ID is a unique identifier for the event.
	ID string `json:"id"`
	// Timestamp is when the event was recorded, in UTC.
	Timestamp time.Time `json:"timestamp"`
	// Service is the upstream service the request targeted.
	Service string `json:"service"`
	// Method is the HTTP verb, or "EXEC" for subprocess invocations.
	Method string `json:"method"`
	// Path is the request path including any query string, or the joined
	// command line for EXEC events.
	Path string `json:"path"`
	// StatusCode is the upstream status, 403 for denials, or 200/500
	// for EXEC events depending on the exit code.
	StatusCode int `json:"statusCode"`
	// DurationMs is the wall time spent handling the request.
	DurationMs int64 `json:"durationMs"`
	// Reason is the agent-supplied justification, when one was given.
	Reason string `json:"reason,omitempty"`
	// AgentID identifies the calling agent, when known.
	AgentID string `json:"agentId,omitempty"`
	// Denied marks requests rejected by policy or a security check.
	Denied bool `json:"denied,omitempty"`
	// DenyReason is the policy or security reason for the denial.
	DenyReason string `json:"denyReason,omitempty"`
	// RequestBody is the captured request body, when body logging is
	// enabled. Only write methods are captured.
	RequestBody string `json:"requestBody,omitempty"`
}

// CaptureBody returns the loggable form of a request body. Only bodies of
// write methods (POST, PUT, PATCH) are captured; anything over MaxBodyBytes
// is cut with a marker recording the original length.
func CaptureBody(method, body string) string {
	switch strings.ToUpper(method) {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
	default:
		return ""
	}

	if len(body) <= MaxBodyBytes {
		return body
	}
	return fmt.Sprintf("%s... [truncated, original length: %d]", body[:MaxBodyBytes], len(body))
}
