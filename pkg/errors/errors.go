// Package errors provides the typed errors used across janee. Every failure
// that crosses a component boundary carries one of the kinds below so the
// dispatch layer can map it to a tool error payload.
package errors

import (
	"errors"
	"fmt"
)

// Error kinds.
const (
	// ErrConfig is returned when configuration is missing or malformed
	ErrConfig = "config"

	// ErrSecurity is returned when a request violates a security boundary
	// (origin pinning, command whitelisting, path containment)
	ErrSecurity = "security"

	// ErrPolicy is returned when a policy rule denies a request
	ErrPolicy = "policy"

	// ErrUpstream is returned when the upstream API cannot be reached or
	// fails at the transport level
	ErrUpstream = "upstream"

	// ErrAuth is returned when credentials are missing, malformed, or
	// rejected during signing or token exchange
	ErrAuth = "auth"

	// ErrCrypto is returned when sealing or opening a secret fails
	ErrCrypto = "crypto"

	// ErrInternal is returned for everything else
	ErrInternal = "internal"
)

// Error represents an error in the application
type Error struct {
	// Type is the error kind
	Type string

	// Message is the error message
	Message string

	// Cause is the underlying error
	Cause error
}

// Error returns the error message
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %s", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new error
func NewError(errorType, message string, cause error) *Error {
	return &Error{
		Type:    errorType,
		Message: message,
		Cause:   cause,
	}
}

// NewConfigError creates a new config error
func NewConfigError(message string, cause error) *Error {
	return NewError(ErrConfig, message, cause)
}

// NewSecurityError creates a new security error
func NewSecurityError(message string, cause error) *Error {
	return NewError(ErrSecurity, message, cause)
}

// NewPolicyError creates a new policy error
func NewPolicyError(message string, cause error) *Error {
	return NewError(ErrPolicy, message, cause)
}

// NewUpstreamError creates a new upstream error
func NewUpstreamError(message string, cause error) *Error {
	return NewError(ErrUpstream, message, cause)
}

// NewAuthError creates a new auth error
func NewAuthError(message string, cause error) *Error {
	return NewError(ErrAuth, message, cause)
}

// NewCryptoError creates a new crypto error
func NewCryptoError(message string, cause error) *Error {
	return NewError(ErrCrypto, message, cause)
}

// NewInternalError creates a new internal error
func NewInternalError(message string, cause error) *Error {
	return NewError(ErrInternal, message, cause)
}

func isKind(err error, kind string) bool {
	var e *Error
	return errors.As(err, &e) && e.Type == kind
}

// IsConfig checks if the error is a config error
func IsConfig(err error) bool {
	return isKind(err, ErrConfig)
}

// IsSecurity checks if the error is a security error
func IsSecurity(err error) bool {
	return isKind(err, ErrSecurity)
}

// IsPolicy checks if the error is a policy error
func IsPolicy(err error) bool {
	return isKind(err, ErrPolicy)
}

// IsUpstream checks if the error is an upstream error
func IsUpstream(err error) bool {
	return isKind(err, ErrUpstream)
}

// IsAuth checks if the error is an auth error
func IsAuth(err error) bool {
	return isKind(err, ErrAuth)
}

// IsCrypto checks if the error is a crypto error
func IsCrypto(err error) bool {
	return isKind(err, ErrCrypto)
}

// IsInternal checks if the error is an internal error
func IsInternal(err error) bool {
	return isKind(err, ErrInternal)
}

// Kind extracts the error kind, walking the wrap chain. Errors that do not
// carry a kind are reported as internal.
func Kind(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Type
	}
	return ErrInternal
}
