package scheduler

import (
	"fmt"

	"github.com/smartcontractkit/corks/types"
)

// CancelTooLateError is returned when a cancellation arrives after the cork was handed to the
// dispatcher, or after it reached a terminal state.
type CancelTooLateError struct {
	ID    types.CorkID
	State types.CorkState
}

func NewCancelTooLateError(id types.CorkID, state types.CorkState) *CancelTooLateError {
	return &CancelTooLateError{ID: id, State: state}
}

func (e *CancelTooLateError) Error() string {
	return fmt.Sprintf("cannot cancel cork %s: already %s", e.ID, e.State)
}
