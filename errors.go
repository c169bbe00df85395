package corks

import (
	"errors"
	"fmt"
)

// ErrNoExecutor is returned when dispatching without an execution chain client.
var ErrNoExecutor = errors.New("no executor configured")

// InvalidProposalError is returned when a proposal file is structurally valid but cannot be
// scheduled.
type InvalidProposalError struct {
	Reason string
}

// NewInvalidProposalError creates a new InvalidProposalError.
func NewInvalidProposalError(reason string) *InvalidProposalError {
	return &InvalidProposalError{Reason: reason}
}

func (e *InvalidProposalError) Error() string {
	return fmt.Sprintf("invalid cork proposal: %s", e.Reason)
}
