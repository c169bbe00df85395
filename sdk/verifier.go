package sdk

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/smartcontractkit/corks/types"
)

// ProofVerifier checks that a validator authorized an endorsement of a cork identity. The proof
// is opaque to the core.
type ProofVerifier interface {
	VerifyEndorsement(ctx context.Context, id types.CorkID, validator common.Address, proof []byte) error
}
