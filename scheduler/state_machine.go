// Package scheduler drives corks through their lifecycle from the consensus chain's height
// stream and feeds executable corks to the dispatcher in a deterministic order.
package scheduler

import (
	"errors"

	"github.com/smartcontractkit/corks/chainstate"
	"github.com/smartcontractkit/corks/quorum"
	"github.com/smartcontractkit/corks/types"
)

// ChainView is the read side of the chain state.
type ChainView interface {
	FinalHeight() uint64
	ValidatorSetAt(height uint64) (types.ValidatorSet, error)
}

// StateMachine derives the state of a pre-dispatch cork from two inputs: whether its endorsements
// meet quorum against the validator set of its trigger height, and whether the final height has
// reached the trigger height. Either input may be satisfied first.
type StateMachine struct {
	chain     ChainView
	threshold quorum.Threshold
}

// NewStateMachine creates a new StateMachine.
func NewStateMachine(chain ChainView, threshold quorum.Threshold) *StateMachine {
	return &StateMachine{chain: chain, threshold: threshold}
}

// Evaluate implements registry.Evaluator. States at or past Dispatching are returned unchanged.
func (m *StateMachine) Evaluate(cork *types.Cork) (types.CorkState, error) {
	if !cork.State.IsPreDispatch() {
		return cork.State, nil
	}

	met, err := m.quorumMet(cork)
	if err != nil {
		return "", err
	}
	reached := m.chain.FinalHeight() >= cork.ID.Height

	switch {
	case met && reached:
		return types.CorkStateExecutable, nil
	case met:
		return types.CorkStateReady, nil
	case len(cork.Endorsements) > 0:
		return types.CorkStateEndorsed, nil
	default:
		return types.CorkStateProposed, nil
	}
}

func (m *StateMachine) quorumMet(cork *types.Cork) (bool, error) {
	if len(cork.Endorsements) == 0 {
		return false, nil
	}

	set, err := m.chain.ValidatorSetAt(cork.ID.Height)
	if errors.Is(err, chainstate.ErrNoValidatorSet) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	return quorum.NewTally(set, cork.Endorsers()).Met(m.threshold), nil
}
