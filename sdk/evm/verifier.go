package evm

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/smartcontractkit/corks/sdk"
	"github.com/smartcontractkit/corks/types"
)

var _ sdk.ProofVerifier = SignatureVerifier{}

// SignatureVerifier accepts an endorsement proof when it is an EIP-712 signature of the cork
// identity made by the endorsing validator's key.
type SignatureVerifier struct{}

func (SignatureVerifier) VerifyEndorsement(_ context.Context, id types.CorkID, validator common.Address, proof []byte) error {
	sig, err := types.NewSignatureFromBytes(proof)
	if err != nil {
		return err
	}

	signer, err := sig.RecoverEndorser(id)
	if err != nil {
		return err
	}
	if signer != validator {
		return fmt.Errorf("%w: recovered %s", ErrSignerMismatch, signer.Hex())
	}

	return nil
}
