// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import (
	"errors"
	"fmt"
)

// Common sentinels across repo/service layers.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates a unique constraint violation (e.g., email taken).
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidID indicates an identifier that is not well-formed for the storage engine.
	// Callers treat it like ErrNotFound.
	ErrInvalidID = errors.New("invalid identifier")

	// ErrValidation indicates bad input shape or content.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidCredentials is returned for both unknown email and wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrForbidden indicates the caller does not own the resource.
	ErrForbidden = errors.New("forbidden")

	// ErrConnection indicates the storage backend is unreachable or misconfigured.
	ErrConnection = errors.New("storage connection failed")

	// ErrRateLimited indicates too many failed logins for an (email, client) pair.
	ErrRateLimited = errors.New("too many attempts")

	// ErrNotInitialized indicates an engine operation was invoked before Connect succeeded.
	ErrNotInitialized = errors.New("storage engine not initialized")
)

// Validation rules reported by ValidationError.Rule.
const (
	RuleRequired       = "required"
	RulePasswordLength = "password_length"
	RulePasswordMatch  = "password_match"
	RuleEmailTaken     = "email_taken"
)

// ValidationError names the rule an input violated. Message is safe to show to end users.
type ValidationError struct {
	Rule    string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%v: %s: %s", ErrValidation, e.Rule, e.Message)
}

// Is matches ErrValidation for every rule and ErrAlreadyExists for the email_taken rule.
func (e *ValidationError) Is(target error) bool {
	if target == ErrValidation {
		return true
	}
	return target == ErrAlreadyExists && e.Rule == RuleEmailTaken
}

// Invalid constructs a ValidationError.
func Invalid(rule, msg string) *ValidationError {
	return &ValidationError{Rule: rule, Message: msg}
}

// IsNotFound reports whether err means the record is absent, including malformed ids.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidID)
}
