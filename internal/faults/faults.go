// Package faults defines the error taxonomy shared by the orchestration and
// delivery layers.
package faults

import (
	"errors"
	"fmt"
)

// Error kinds. LOGIN_REQUIRED and CONTACT_NOT_FOUND are reported, never
// retried; DELIVERY_FAILURE is swallowed at the notification sink.
const (
	KindLoadTimeout       = "LOAD_TIMEOUT"
	KindLoginRequired     = "LOGIN_REQUIRED"
	KindContactNotFound   = "CONTACT_NOT_FOUND"
	KindExtractionTimeout = "EXTRACTION_TIMEOUT"
	KindDeliveryFailure   = "DELIVERY_FAILURE"
	KindUnauthorized      = "UNAUTHORIZED"
)

// Error is an error with an associated kind, so callers branch on the kind
// instead of string-matching messages.
type Error struct {
	Kind    string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates an error of the given kind.
func New(kind, message string) error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates an error of the given kind wrapping a cause.
func Wrap(kind, message string, cause error) error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Kind returns the kind of err, or "" when err carries none.
func Kind(err error) string {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}
