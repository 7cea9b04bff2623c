// Package apperr defines the error taxonomy shared by the billing and
// listing services. Services wrap these sentinels with context; the HTTP
// layer maps them to status codes with errors.Is.
package apperr

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

var (
	// ErrValidation marks a malformed or incomplete payload.
	ErrValidation = errors.New("validation failed")
	// ErrUnauthorized marks a missing or foreign identity.
	ErrUnauthorized = errors.New("not authorized")
	// ErrNotFound marks a missing listing, package or request.
	ErrNotFound = errors.New("not found")
	// ErrConflict marks exhausted retries on a unique resource.
	ErrConflict = errors.New("conflict")
	// ErrPaymentVerification marks any mismatch while verifying a checkout.
	ErrPaymentVerification = errors.New("payment verification failed")
	// ErrPolicyViolation marks a transition the business rules forbid.
	ErrPolicyViolation = errors.New("policy violation")
)

// Validation wraps ErrValidation with a message.
func Validation(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// PolicyViolation wraps ErrPolicyViolation with a message.
func PolicyViolation(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrPolicyViolation, fmt.Sprintf(format, args...))
}

// PaymentVerification wraps ErrPaymentVerification with a message.
func PaymentVerification(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrPaymentVerification, fmt.Sprintf(format, args...))
}

// NotFound translates gorm.ErrRecordNotFound into ErrNotFound for what and
// passes every other error through with context.
func NotFound(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) || errors.Is(err, ErrNotFound) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return fmt.Errorf("load %s: %w", what, err)
}
