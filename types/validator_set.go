package types

import (
	"errors"
	"fmt"
	"slices"

	"github.com/ethereum/go-ethereum/common"
)

var ErrInvalidValidatorSet = errors.New("invalid validator set")

// Validator is a member of the validator set with its voting power.
type Validator struct {
	Address common.Address `json:"address" yaml:"address" validate:"required"`
	Power   uint64         `json:"power" yaml:"power" validate:"gt=0"`
}

// ValidatorSet is the mapping from validator identity to voting power as of a consensus height.
type ValidatorSet struct {
	Height     uint64      `json:"height" yaml:"height"`
	Validators []Validator `json:"validators" yaml:"validators" validate:"required,min=1,dive"`
}

// NewValidatorSet returns a new validator set and ensures it is valid.
func NewValidatorSet(height uint64, validators []Validator) (ValidatorSet, error) {
	set := ValidatorSet{
		Height:     height,
		Validators: validators,
	}

	if err := set.Validate(); err != nil {
		return ValidatorSet{}, err
	}

	return set, nil
}

// Validate checks the set is non-empty, has no duplicate validators and no zero power entries.
func (s *ValidatorSet) Validate() error {
	if len(s.Validators) == 0 {
		return fmt.Errorf("%w: must have at least one validator", ErrInvalidValidatorSet)
	}

	seen := make(map[common.Address]struct{}, len(s.Validators))
	for _, v := range s.Validators {
		if v.Power == 0 {
			return fmt.Errorf("%w: validator %s has zero power", ErrInvalidValidatorSet, v.Address)
		}
		if _, ok := seen[v.Address]; ok {
			return fmt.Errorf("%w: duplicate validator %s", ErrInvalidValidatorSet, v.Address)
		}
		seen[v.Address] = struct{}{}
	}

	return nil
}

// Power returns the voting power of the validator and whether it is a member of the set.
func (s *ValidatorSet) Power(addr common.Address) (uint64, bool) {
	for _, v := range s.Validators {
		if v.Address == addr {
			return v.Power, true
		}
	}

	return 0, false
}

// Contains reports whether the validator is a member of the set.
func (s *ValidatorSet) Contains(addr common.Address) bool {
	_, ok := s.Power(addr)

	return ok
}

// Addresses returns the validator addresses in set order.
func (s *ValidatorSet) Addresses() []common.Address {
	out := make([]common.Address, 0, len(s.Validators))
	for _, v := range s.Validators {
		out = append(out, v.Address)
	}

	return out
}

// Equals checks if two sets have the same members with the same power, regardless of order.
func (s *ValidatorSet) Equals(other *ValidatorSet) bool {
	if len(s.Validators) != len(other.Validators) {
		return false
	}

	for _, v := range s.Validators {
		if !slices.Contains(other.Validators, v) {
			return false
		}
	}

	return true
}

// Clone returns a deep copy of the set.
func (s *ValidatorSet) Clone() ValidatorSet {
	return ValidatorSet{
		Height:     s.Height,
		Validators: slices.Clone(s.Validators),
	}
}
