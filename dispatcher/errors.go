package dispatcher

import (
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/smartcontractkit/corks/types"
)

// ErrNoDispatchRecord is returned when a dispatching cork carries no in-flight record.
var ErrNoDispatchRecord = errors.New("dispatching cork has no in-flight record")

// NotExecutableError is returned when a cork handed to the dispatcher is not executable, e.g.
// because it was cancelled or reverted by a reorg after it was queued.
type NotExecutableError struct {
	ID    types.CorkID
	State types.CorkState
}

func (e *NotExecutableError) Error() string {
	return fmt.Sprintf("cork %s is not executable: %s", e.ID, e.State)
}

func NewNotExecutableError(id types.CorkID, state types.CorkState) *NotExecutableError {
	return &NotExecutableError{ID: id, State: state}
}

// OutcomeTimeoutError is returned when the execution chain did not report a final outcome in
// time. The cork stays in flight and is picked up again by Recover.
type OutcomeTimeoutError struct {
	ID      types.CorkID
	TxHash  common.Hash
	Timeout time.Duration
}

func (e *OutcomeTimeoutError) Error() string {
	return fmt.Sprintf("no final outcome for cork %s (tx %s) after %s", e.ID, e.TxHash.Hex(), e.Timeout)
}

func NewOutcomeTimeoutError(id types.CorkID, hash common.Hash, timeout time.Duration) *OutcomeTimeoutError {
	return &OutcomeTimeoutError{ID: id, TxHash: hash, Timeout: timeout}
}
