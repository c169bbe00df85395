// Package sdkerrors classifies execution chain failures.
package sdkerrors

import (
	"errors"
	"fmt"
)

// TransientError is a failure that may succeed when retried, e.g. a network error or a timeout.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient execution error: %v", e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

func NewTransientError(err error) *TransientError {
	return &TransientError{Err: err}
}

// PermanentError is a failure that will not change when retried, e.g. the target contract
// rejected the call.
type PermanentError struct {
	Reason string
	Err    error
}

func (e *PermanentError) Error() string {
	if e.Err == nil {
		return "permanent execution error: " + e.Reason
	}

	return fmt.Sprintf("permanent execution error: %s: %v", e.Reason, e.Err)
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

func NewPermanentError(reason string, err error) *PermanentError {
	return &PermanentError{Reason: reason, Err: err}
}

// IsTransient reports whether err may succeed on retry. Unclassified errors are treated as
// transient, a permanent failure has to be declared.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var permanent *PermanentError

	return !errors.As(err, &permanent)
}

// IsPermanent reports whether err was classified as permanent.
func IsPermanent(err error) bool {
	var permanent *PermanentError

	return errors.As(err, &permanent)
}
