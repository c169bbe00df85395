package quorum

import (
	"bytes"
	"context"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/smartcontractkit/corks/sdk"
	"github.com/smartcontractkit/corks/types"
)

// CorkUpdater serializes mutations of one cork identity.
type CorkUpdater interface {
	Update(ctx context.Context, id types.CorkID, fn func(*types.Cork) error) (types.Cork, error)
}

// SnapshotSource resolves the validator set that applies at a height.
type SnapshotSource interface {
	ValidatorSetAt(height uint64) (types.ValidatorSet, error)
}

// EndorsementResult describes the outcome of one endorsement.
type EndorsementResult struct {
	ID        types.CorkID
	Validator common.Address
	// Recorded is false when the same endorsement was already present.
	Recorded  bool
	State     types.CorkState
	Tally     Tally
	QuorumMet bool
}

// Tracker records endorsements. Quorum itself is never cached: it is recomputed against the
// current snapshot for the cork's trigger height every time the cork is evaluated.
type Tracker struct {
	lggr      *zap.Logger
	corks     CorkUpdater
	snapshots SnapshotSource
	verifier  sdk.ProofVerifier
	threshold Threshold
}

// NewTracker creates a new Tracker.
func NewTracker(
	lggr *zap.Logger,
	corks CorkUpdater,
	snapshots SnapshotSource,
	verifier sdk.ProofVerifier,
	threshold Threshold,
) (*Tracker, error) {
	if err := threshold.Validate(); err != nil {
		return nil, err
	}

	return &Tracker{
		lggr:      lggr.Named("quorum"),
		corks:     corks,
		snapshots: snapshots,
		verifier:  verifier,
		threshold: threshold,
	}, nil
}

// Threshold returns the configured threshold.
func (t *Tracker) Threshold() Threshold {
	return t.threshold
}

// TallyOf computes the tally of a cork against the validator set of its trigger height.
func (t *Tracker) TallyOf(cork *types.Cork) (Tally, error) {
	set, err := t.snapshots.ValidatorSetAt(cork.ID.Height)
	if err != nil {
		return Tally{}, err
	}

	return NewTally(set, cork.Endorsers()), nil
}

// Endorse records the validator's endorsement of the cork.
//
// The proof is verified before the cork is locked. Endorsing again with the same proof is a no-op,
// with a different proof it is a ConflictingEndorsementError.
func (t *Tracker) Endorse(ctx context.Context, id types.CorkID, validator common.Address, proof []byte) (EndorsementResult, error) {
	lggr := t.lggr.With(zap.Stringer("cork", id), zap.Stringer("validator", validator))

	if err := t.verifier.VerifyEndorsement(ctx, id, validator, proof); err != nil {
		return EndorsementResult{}, NewInvalidProofError(validator, err)
	}

	result := EndorsementResult{ID: id, Validator: validator}
	cork, err := t.corks.Update(ctx, id, func(c *types.Cork) error {
		if !c.State.IsPreDispatch() {
			return NewEndorsementClosedError(id, c.State)
		}

		set, err := t.snapshots.ValidatorSetAt(id.Height)
		if err != nil {
			return err
		}
		if !set.Contains(validator) {
			return NewValidatorNotEligibleError(validator, set.Height)
		}

		if existing, ok := c.Endorsement(validator); ok {
			if !bytes.Equal(existing.Proof, proof) {
				return NewConflictingEndorsementError(id, validator)
			}
		} else {
			c.Endorsements = append(c.Endorsements, types.Endorsement{Validator: validator, Proof: bytes.Clone(proof)})
			result.Recorded = true
		}

		result.Tally = NewTally(set, c.Endorsers())

		return nil
	})
	if err != nil {
		lggr.Debug("endorsement rejected", zap.Error(err))
		return EndorsementResult{}, err
	}

	result.State = cork.State
	result.QuorumMet = result.Tally.Met(t.threshold)

	if result.Recorded {
		lggr.Info("endorsement recorded",
			zap.Stringer("power", result.Tally),
			zap.Bool("quorum", result.QuorumMet),
			zap.String("state", string(cork.State)),
		)
	}

	return result, nil
}
