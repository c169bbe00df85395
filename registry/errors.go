package registry

import (
	"errors"
	"fmt"

	"github.com/smartcontractkit/corks/types"
)

var (
	// ErrEmptyPayload is returned when a proposal carries no call data.
	ErrEmptyPayload = errors.New("cork payload is empty")
	// ErrImmutableField is returned when an update tries to change the identity or payload.
	ErrImmutableField = errors.New("cork identity and payload are immutable")
)

// NotFoundError is returned when no cork with the identity is known.
type NotFoundError struct {
	ID types.CorkID
}

func NewNotFoundError(id types.CorkID) *NotFoundError {
	return &NotFoundError{ID: id}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("cork not found: %s", e.ID)
}

// PastHeightError is returned when a proposal's trigger height is not above the final height.
type PastHeightError struct {
	Height      uint64
	FinalHeight uint64
}

func NewPastHeightError(height, finalHeight uint64) *PastHeightError {
	return &PastHeightError{Height: height, FinalHeight: finalHeight}
}

func (e *PastHeightError) Error() string {
	return fmt.Sprintf("trigger height %d is not above final height %d", e.Height, e.FinalHeight)
}
