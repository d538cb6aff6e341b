// Package apierr defines the failure taxonomy shared by the checkout
// workflow and the bookshop API client.
package apierr

import (
	"fmt"
	"net/http"

	"github.com/go-faster/errors"
)

// ErrAuthRequired is returned when an operation needs an active session.
var ErrAuthRequired = errors.New("authentication required")

// NetworkError is a transport failure or a non-2xx response that carried no
// structured error body.
type NetworkError struct {
	Op     string
	Status int
	Err    error
}

func (e *NetworkError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: unexpected status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// RejectedError is a non-2xx response with a structured {"error": "..."}
// body. Message is shown to the user verbatim.
type RejectedError struct {
	Op      string
	Status  int
	Message string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("%s: rejected (%d): %s", e.Op, e.Status, e.Message)
}

// Is lets a rejected 401 match ErrAuthRequired while keeping the server
// message.
func (e *RejectedError) Is(target error) bool {
	return target == ErrAuthRequired && e.Status == http.StatusUnauthorized
}

// Validation is implemented by errors detected client-side before any
// request is sent.
type Validation interface {
	error
	Validation() bool
}

// ValidationError is a client-side validation failure identified by the
// offending field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Validation() bool { return true }

// IsValidation reports whether err is a client-side validation failure.
func IsValidation(err error) bool {
	var v Validation
	return errors.As(err, &v) && v.Validation()
}

// IsNetwork reports whether err is a transport-level failure.
func IsNetwork(err error) bool {
	var n *NetworkError
	return errors.As(err, &n)
}

// ServerMessage returns the server-provided message carried by err, if any.
func ServerMessage(err error) (string, bool) {
	var r *RejectedError
	if errors.As(err, &r) && r.Message != "" {
		return r.Message, true
	}
	return "", false
}
