// SPDX-FileCopyrightText: Copyright 2025 Janee Authors
// SPDX-License-Identifier: Apache-2.0

// Package sessions tracks the TTL-bounded grants issued for each successful
// dispatch. The in-memory map is authoritative; a JSON file under the config
// directory carries sessions across restarts.
package sessions

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// Session is one live grant derived from a capability.
type Session struct {
	ID         string    `json:"id"`
	Capability string    `json:"capability"`
	Service    string    `json:"service"`
	AgentID    string    `json:"agentId,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	ExpiresAt  time.Time `json:"expiresAt"`
	Revoked    bool      `json:"revoked"`
}

// Live reports whether the session is usable at the given instant. A session
// is live up to and including its expiry time, unless revoked.
func (s *Session) Live(now time.Time) bool {
	return !s.Revoked && !now.After(s.ExpiresAt)
}

var ttlRe = regexp.MustCompile(`^(\d+)([smhd])$`)

// ParseTTL converts a TTL string of the form N{s|m|h|d} into a duration.
func ParseTTL(ttl string) (time.Duration, error) {
	m := ttlRe.FindStringSubmatch(ttl)
	if m == nil {
		return 0, fmt.Errorf("invalid ttl %q: want N followed by s, m, h or d", ttl)
	}

	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid ttl %q: %w", ttl, err)
	}

	var unit time.Duration
	switch m[2] {
	case "s":
		unit = time.Second
	case "m":
		unit = time.Minute
	case "h":
		unit = time.Hour
	case "d":
		unit = 24 * time.Hour
	}

	return time.Duration(n) * unit, nil
}
