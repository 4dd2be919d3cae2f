// Package errors defines the service error taxonomy shared by the custody
// services and the HTTP layer.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for the custody core. Services wrap these with context via
// fmt.Errorf("...: %w", err); callers branch with errors.Is.
var (
	// ErrIntegrityViolation is returned by the envelope cipher when an
	// envelope fails authentication or is structurally malformed.
	ErrIntegrityViolation = errors.New("envelope integrity violation")

	// ErrSecretCorrupted is the vault-level form of an integrity failure on
	// a persisted secret. It is fatal for the call and never retried.
	ErrSecretCorrupted = errors.New("stored secret corrupted")

	// ErrInvalidPasscode covers both an unknown device and a wrong passcode
	// so unauthenticated callers cannot tell the two apart.
	ErrInvalidPasscode = errors.New("invalid device passcode")

	// ErrVerificationFailed indicates a backup quiz mismatch; wallet state
	// is left unchanged.
	ErrVerificationFailed = errors.New("backup verification failed")

	// ErrSecretExists rejects a second vault store for the same wallet.
	ErrSecretExists = errors.New("secret already stored for wallet")

	// ErrWalletNotFound is returned when a wallet id resolves to nothing.
	ErrWalletNotFound = errors.New("wallet not found")

	// ErrSecretNotFound is returned when a wallet has no vault entry yet.
	ErrSecretNotFound = errors.New("no secret stored for wallet")
)

// Is reports whether any error in err's chain matches target. Re-exported so
// callers importing this package do not also need the standard library one.
func Is(err, target error) bool { return errors.Is(err, target) }

// As finds the first error in err's chain matching target.
func As(err error, target any) bool { return errors.As(err, target) }

// ServiceError carries an error code and HTTP status alongside the message.
// Only Code and Message are ever serialized to clients; wrapped internal
// detail stays on the server side.
type ServiceError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	err        error
}

func (e *ServiceError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ServiceError) Unwrap() error { return e.err }

// Validation builds a malformed-input error. No audit entry is required for
// these.
func Validation(format string, args ...any) *ServiceError {
	return &ServiceError{
		Code:       "validation_error",
		Message:    fmt.Sprintf(format, args...),
		HTTPStatus: http.StatusBadRequest,
	}
}

// Unauthorized builds an authorization failure visible to the caller.
func Unauthorized(message string) *ServiceError {
	return &ServiceError{
		Code:       "unauthorized",
		Message:    message,
		HTTPStatus: http.StatusUnauthorized,
	}
}

// RateLimitExceeded reports request throttling.
func RateLimitExceeded(limit int, window string) *ServiceError {
	return &ServiceError{
		Code:       "rate_limit_exceeded",
		Message:    fmt.Sprintf("rate limit of %d per %s exceeded", limit, window),
		HTTPStatus: http.StatusTooManyRequests,
	}
}

// Persistence wraps a storage failure. These are transient; callers may
// retry the operation.
func Persistence(op string, err error) *ServiceError {
	return &ServiceError{
		Code:       "persistence_error",
		Message:    fmt.Sprintf("storage unavailable during %s", op),
		HTTPStatus: http.StatusServiceUnavailable,
		err:        err,
	}
}

// HTTPStatusFor maps any error to the status code the HTTP layer should
// return. Cryptographic and authorization failures keep their exact
// granularity; everything unrecognized becomes a 500 without leaking detail.
func HTTPStatusFor(err error) int {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return svcErr.HTTPStatus
	}
	switch {
	case errors.Is(err, ErrWalletNotFound), errors.Is(err, ErrSecretNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidPasscode):
		return http.StatusUnauthorized
	case errors.Is(err, ErrVerificationFailed):
		return http.StatusConflict
	case errors.Is(err, ErrSecretExists):
		return http.StatusConflict
	case errors.Is(err, ErrSecretCorrupted), errors.Is(err, ErrIntegrityViolation):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the client-safe message for an error. Internal
// detail (wrapped causes, hashes, key material) is never included.
func PublicMessage(err error) string {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return svcErr.Message
	}
	switch {
	case errors.Is(err, ErrWalletNotFound):
		return "wallet not found"
	case errors.Is(err, ErrSecretNotFound):
		return "no secret stored for wallet"
	case errors.Is(err, ErrInvalidPasscode):
		return "invalid device passcode"
	case errors.Is(err, ErrVerificationFailed):
		return "backup verification failed"
	case errors.Is(err, ErrSecretExists):
		return "secret already stored for wallet"
	case errors.Is(err, ErrSecretCorrupted), errors.Is(err, ErrIntegrityViolation):
		return "stored secret could not be decrypted"
	default:
		return "internal error"
	}
}
