package sdk

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/smartcontractkit/corks/types"
)

// Executor submits encoded cork payloads to the execution chain.
//
// Submitting is not idempotent, which is why preparing and sending are split: the dispatcher
// durably records the prepared call before it is sent, and only ever re-sends the exact same
// signed bytes.
type Executor interface {
	// Prepare builds and signs the call of payload on contract without sending it.
	Prepare(ctx context.Context, contract types.Address, payload []byte) (types.PreparedCall, error)

	// Send broadcasts a prepared call. Errors are classified with the sdkerrors package.
	Send(ctx context.Context, call types.PreparedCall) error

	// Outcome reports what the execution chain knows about the transaction. OutcomeUnknown means
	// the chain has never seen it.
	Outcome(ctx context.Context, hash common.Hash) (types.TransactionResult, error)
}
