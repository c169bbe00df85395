package scheduler

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/smartcontractkit/corks/types"
)

// acceptingVerifier accepts every endorsement proof.
type acceptingVerifier struct{}

func (acceptingVerifier) VerifyEndorsement(context.Context, types.CorkID, common.Address, []byte) error {
	return nil
}
