package testutils

import (
	"crypto/ecdsa"
	"slices"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/smartcontractkit/corks/types"
)

// Note: should only be used for testing purposes
type ECDSASigner struct {
	Key *ecdsa.PrivateKey
}

func NewECDSASigner() *ECDSASigner {
	key, _ := crypto.GenerateKey()
	return &ECDSASigner{Key: key}
}

func (s *ECDSASigner) Address() common.Address {
	return crypto.PubkeyToAddress(s.Key.PublicKey)
}

// Endorse signs the cork identity, panicking on failure.
func (s *ECDSASigner) Endorse(id types.CorkID) []byte {
	sig, err := crypto.Sign(id.SigningHash().Bytes(), s.Key)
	if err != nil {
		panic(err)
	}

	return sig
}

func MakeNewECDSASigners(n int) []ECDSASigner {
	signers := make([]ECDSASigner, n)
	for i := range n {
		signers[i] = *NewECDSASigner()
	}
	// Signers need to be sorted alphabetically
	slices.SortFunc(signers[:], func(a, b ECDSASigner) int {
		return strings.Compare(strings.ToLower(a.Address().Hex()), strings.ToLower(b.Address().Hex()))
	})
	return signers
}

// ValidatorSet gives every signer the same voting power.
func ValidatorSet(height uint64, power uint64, signers []ECDSASigner) types.ValidatorSet {
	validators := make([]types.Validator, 0, len(signers))
	for _, s := range signers {
		validators = append(validators, types.Validator{Address: s.Address(), Power: power})
	}

	return types.ValidatorSet{Height: height, Validators: validators}
}
