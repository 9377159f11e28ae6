// Package apperror holds the closed set of error kinds the backend reports.
// Every kind wraps its cause so errors.Is / errors.As see through it.
package apperror

import (
	"errors"
	"fmt"
)

// ValidationError reports input that was rejected before any side effect ran.
type ValidationError struct {
	Field string
	Value string
	Err   error
}

func (e *ValidationError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("invalid %s", e.Field)
	}
	return fmt.Sprintf("invalid %s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// StorageError reports a database or transaction failure.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// TransportError reports a failed outbound email send.
// StatusCode is zero when no HTTP response was received.
type TransportError struct {
	Recipient  string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("transport: send to %s: status %d: %v", e.Recipient, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("transport: send to %s: %v", e.Recipient, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func Validation(field, value string, err error) error {
	return &ValidationError{Field: field, Value: value, Err: err}
}

// Storage wraps err as a StorageError. A nil err stays nil and an existing
// StorageError is returned unchanged so the innermost operation name wins.
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

func Transport(recipient string, status int, err error) error {
	return &TransportError{Recipient: recipient, StatusCode: status, Err: err}
}

// IsValidation reports whether err is, or wraps, a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func IsStorage(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}

func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
