// SPDX-FileCopyrightText: Copyright 2025 Janee Authors
// SPDX-License-Identifier: Apache-2.0

// Package policy evaluates capability rules against outbound requests.
//
// A rule is a "METHOD PATH" pattern: METHOD is an HTTP verb or "*", PATH is a
// literal path where "*" matches any run of characters, slashes included.
// Deny rules always win over allow rules.
package policy

import (
	"fmt"
	"regexp"
	"strings"
)

// Rules is the allow/deny rule pair attached to a capability. Both arms are
// optional.
type Rules struct {
	Allow []string `yaml:"allow,omitempty" json:"allow,omitempty"`
	Deny  []string `yaml:"deny,omitempty" json:"deny,omitempty"`
}

// Decision is the outcome of a policy check.
type Decision struct {
	Allowed     bool
	MatchedRule string
	Reason      string
}

// Check evaluates method and path against the rules. The contract:
//
//  1. nil rules or both arms empty: allow.
//  2. Deny rules are evaluated in order; the first match denies.
//  3. Allow rules are evaluated in order; the first match allows.
//  4. A non-empty allow list with no match denies.
//  5. Deny-only rules with no match allow.
func Check(rules *Rules, method, path string) Decision {
	if rules == nil || (len(rules.Allow) == 0 && len(rules.Deny) == 0) {
		return Decision{Allowed: true}
	}

	for _, pattern := range rules.Deny {
		if matches(pattern, method, path) {
			return Decision{
				Allowed:     false,
				MatchedRule: pattern,
				Reason:      fmt.Sprintf("Denied by rule: %s", pattern),
			}
		}
	}

	if len(rules.Allow) > 0 {
		for _, pattern := range rules.Allow {
			if matches(pattern, method, path) {
				return Decision{Allowed: true, MatchedRule: pattern}
			}
		}
		return Decision{Allowed: false, Reason: "No matching allow rule"}
	}

	return Decision{Allowed: true}
}

// Validate reports the first malformed pattern in the rule set. Called at
// config load so a bad rule fails fast instead of silently never matching.
func Validate(rules *Rules) error {
	if rules == nil {
		return nil
	}
	for _, pattern := range rules.Deny {
		if len(strings.Fields(pattern)) != 2 {
			return fmt.Errorf("malformed deny rule %q: want \"METHOD PATH\"", pattern)
		}
	}
	for _, pattern := range rules.Allow {
		if len(strings.Fields(pattern)) != 2 {
			return fmt.Errorf("malformed allow rule %q: want \"METHOD PATH\"", pattern)
		}
	}
	return nil
}

// matches reports whether a single "METHOD PATH" pattern matches the request.
// Malformed patterns never match.
func matches(pattern, method, path string) bool {
	fields := strings.Fields(pattern)
	if len(fields) != 2 {
		return false
	}
	methodPat, pathPat := fields[0], fields[1]

	if methodPat != "*" && !strings.EqualFold(methodPat, method) {
		return false
	}

	return pathRegexp(pathPat).MatchString(path)
}

// pathRegexp compiles a path glob: every regex metacharacter is escaped
// except "*", which expands to ".*".
func pathRegexp(glob string) *regexp.Regexp {
	escaped := regexp.QuoteMeta(glob)
	expr := "^" + strings.ReplaceAll(escaped, `\*`, ".*") + "$"
	return regexp.MustCompile(expr)
}
