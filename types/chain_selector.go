package types //nolint:revive,nolintlint // allow pkg name 'types'

import (
	"errors"
	"fmt"

	chainsel "github.com/smartcontractkit/chain-selectors"
)

// ChainSelector is a unique identifier for the execution chain.
//
// These values are defined in the chain-selectors dependency.
// https://github.com/smartcontractkit/chain-selectors
type ChainSelector uint64

var (
	// ErrChainFamilyNotFound is returned when the chain family is not found for a selector
	ErrChainFamilyNotFound = errors.New("chain family not found")

	// ErrUnsupportedChainFamily is returned when the selector does not name an EVM chain. Cellar
	// contracts are only deployed on EVM chains.
	ErrUnsupportedChainFamily = errors.New("unsupported chain family")
)

// GetChainSelectorFamily returns the family of the chain selector.
func GetChainSelectorFamily(sel ChainSelector) (string, error) {
	family, err := chainsel.GetSelectorFamily(uint64(sel))
	if err != nil {
		return "", fmt.Errorf("%w for selector %d", ErrChainFamilyNotFound, sel)
	}

	return family, nil
}

// EVMChainID resolves the EVM chain id of the selector, failing for non EVM families.
func EVMChainID(sel ChainSelector) (uint64, error) {
	family, err := GetChainSelectorFamily(sel)
	if err != nil {
		return 0, err
	}
	if family != chainsel.FamilyEVM {
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedChainFamily, family)
	}

	chain, exists := chainsel.ChainBySelector(uint64(sel))
	if !exists {
		return 0, fmt.Errorf("%w for selector %d", ErrChainFamilyNotFound, sel)
	}

	return chain.EvmChainID, nil
}
