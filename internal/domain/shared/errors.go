// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")
	ErrInvalidEntity = errors.New("invalid entity")

	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrNegativeValue   = errors.New("value cannot be negative")
	ErrValueOutOfRange = errors.New("value out of range")
	ErrInvalidFormat   = errors.New("invalid format")

	// State errors
	ErrInvalidState     = errors.New("invalid state")
	ErrAlreadyProcessed = errors.New("already processed")

	// Concurrency errors
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// External service errors
	ErrExternalService    = errors.New("external service error")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("operation timeout")
	ErrRateLimited        = errors.New("rate limited")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "loyalty", "purchase", "payment"
	Op      string // Operation that failed, e.g., "Unlock", "Disburse"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Purchase domain errors
var (
	ErrInvalidUserID       = NewDomainError("purchase", "Validate", ErrInvalidID, "invalid user ID")
	ErrInvalidAmount       = NewDomainError("purchase", "Validate", ErrValueOutOfRange, "amount must be greater than zero")
	ErrPurchaseExists      = NewDomainError("purchase", "Record", ErrAlreadyExists, "purchase already recorded")
	ErrUserNotFound        = NewDomainError("purchase", "Find", ErrNotFound, "user not found")
	ErrPurchaseNotRecorded = NewDomainError("purchase", "Record", ErrInvalidState, "purchase could not be recorded")
)

// Loyalty domain errors
var (
	ErrAchievementNotFound   = NewDomainError("loyalty", "Find", ErrNotFound, "achievement not found")
	ErrBadgeNotFound         = NewDomainError("loyalty", "Find", ErrNotFound, "badge not found")
	ErrUnknownRuleType       = NewDomainError("loyalty", "Evaluate", ErrInvalidInput, "unknown achievement rule type")
	ErrAlreadyUnlocked       = NewDomainError("loyalty", "Unlock", ErrAlreadyExists, "already unlocked")
	ErrBadgeUnlockNotFound   = NewDomainError("loyalty", "FindUnlock", ErrNotFound, "badge unlock record not found")
	ErrCashbackAlreadyPaid   = NewDomainError("loyalty", "Disburse", ErrAlreadyProcessed, "cashback already awarded")
	ErrInvalidBadgeThreshold = NewDomainError("loyalty", "Validate", ErrValueOutOfRange, "invalid badge points threshold")
)

// Payment gateway errors
var (
	ErrGatewayUnavailable     = NewDomainError("payment", "Disburse", ErrServiceUnavailable, "payment gateway is unavailable")
	ErrGatewayTimeout         = NewDomainError("payment", "Disburse", ErrTimeout, "payment gateway request timeout")
	ErrGatewayRateLimited     = NewDomainError("payment", "Disburse", ErrRateLimited, "payment gateway rate limit exceeded")
	ErrGatewayInvalidResponse = NewDomainError("payment", "Parse", ErrInvalidFormat, "invalid response from payment gateway")
	ErrGatewayDeclined        = NewDomainError("payment", "Disburse", ErrExternalService, "payment declined by gateway")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if the error is an "already exists" error.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrNegativeValue) ||
		errors.Is(err, ErrValueOutOfRange) ||
		errors.Is(err, ErrInvalidFormat)
}

// IsExternalService checks if the error is from an external service.
func IsExternalService(err error) bool {
	return errors.Is(err, ErrExternalService) ||
		errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrRateLimited)
}

// IsRetryable checks if the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrConcurrentModification)
}
