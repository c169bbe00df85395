package types

// HeightEvent is one item of the chain-state feed.
//
// Height is the new height. When Final is set the height is irreversible, otherwise it is
// provisional. ReorgFrom is set when the chain retracted previously reported progress: the final
// height retreats from *ReorgFrom to Height.
type HeightEvent struct {
	Height           uint64        `json:"height"`
	Final            bool          `json:"final"`
	ReorgFrom        *uint64       `json:"reorgFrom,omitempty"`
	ValidatorSet     *ValidatorSet `json:"validatorSet,omitempty"`
	RevokedContracts []Address     `json:"revokedContracts,omitempty"`
}

// IsReorg reports whether the event retracts earlier height progress.
func (e HeightEvent) IsReorg() bool {
	return e.ReorgFrom != nil
}

// StateChange is emitted for every cork lifecycle transition, including reverts caused by a
// reorganization.
type StateChange struct {
	ID     CorkID    `json:"id"`
	Seq    uint64    `json:"seq"`
	From   CorkState `json:"from"`
	To     CorkState `json:"to"`
	Height uint64    `json:"height"`
}

// AlertKind classifies operator-facing failures.
type AlertKind string

const (
	// AlertDispatchFailed is raised when the execution chain permanently rejected the call.
	AlertDispatchFailed AlertKind = "dispatch_failed"
	// AlertRetriesExhausted is raised when transient failures exceeded the retry budget.
	AlertRetriesExhausted AlertKind = "retries_exhausted"
)

// Alert is a failure that needs operator attention.
type Alert struct {
	ID     CorkID    `json:"id"`
	Kind   AlertKind `json:"kind"`
	Reason string    `json:"reason"`
}
