package quorum

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/smartcontractkit/corks/types"
)

// ValidatorNotEligibleError is returned when the endorser is not a member of the validator set
// that applies to the cork.
type ValidatorNotEligibleError struct {
	Validator common.Address
	SetHeight uint64
}

func NewValidatorNotEligibleError(validator common.Address, setHeight uint64) *ValidatorNotEligibleError {
	return &ValidatorNotEligibleError{Validator: validator, SetHeight: setHeight}
}

func (e *ValidatorNotEligibleError) Error() string {
	return fmt.Sprintf("validator %s is not eligible: not in the validator set of height %d", e.Validator.Hex(), e.SetHeight)
}

// InvalidProofError is returned when the endorsement proof is malformed or was not produced by
// the validator.
type InvalidProofError struct {
	Validator common.Address
	Err       error
}

func NewInvalidProofError(validator common.Address, err error) *InvalidProofError {
	return &InvalidProofError{Validator: validator, Err: err}
}

func (e *InvalidProofError) Error() string {
	return fmt.Sprintf("invalid endorsement proof from %s: %v", e.Validator.Hex(), e.Err)
}

func (e *InvalidProofError) Unwrap() error {
	return e.Err
}

// ConflictingEndorsementError is returned when a validator endorses the same cork again with a
// different proof.
type ConflictingEndorsementError struct {
	ID        types.CorkID
	Validator common.Address
}

func NewConflictingEndorsementError(id types.CorkID, validator common.Address) *ConflictingEndorsementError {
	return &ConflictingEndorsementError{ID: id, Validator: validator}
}

func (e *ConflictingEndorsementError) Error() string {
	return fmt.Sprintf("validator %s already endorsed cork %s with a different proof", e.Validator.Hex(), e.ID)
}

// EndorsementClosedError is returned when the cork was already handed to the dispatcher.
type EndorsementClosedError struct {
	ID    types.CorkID
	State types.CorkState
}

func NewEndorsementClosedError(id types.CorkID, state types.CorkState) *EndorsementClosedError {
	return &EndorsementClosedError{ID: id, State: state}
}

func (e *EndorsementClosedError) Error() string {
	return fmt.Sprintf("cork %s no longer accepts endorsements in state %s", e.ID, e.State)
}
