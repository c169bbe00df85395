// Package quorum records validator endorsements and decides whether the endorsing voting power
// meets the quorum threshold.
package quorum

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/smartcontractkit/corks/types"
)

var ErrInvalidThreshold = errors.New("invalid quorum threshold")

// Threshold is the fraction of total voting power that endorsing power must strictly exceed.
type Threshold struct {
	Numerator   uint64 `json:"numerator" yaml:"numerator" validate:"gt=0,ltfield=Denominator"`
	Denominator uint64 `json:"denominator" yaml:"denominator" validate:"gt=0"`
}

var (
	// TwoThirds is the exact BFT threshold, strictly more than 2/3 of the power must endorse.
	TwoThirds = Threshold{Numerator: 2, Denominator: 3}
	// DefaultThreshold is the two-thirds vote threshold in the 0.66 decimal form used by chain
	// parameters. Two of three equal validators meet it.
	DefaultThreshold = Threshold{Numerator: 66, Denominator: 100}
)

// Validate checks 0 < Numerator < Denominator.
func (t Threshold) Validate() error {
	if t.Denominator == 0 || t.Numerator == 0 || t.Numerator >= t.Denominator {
		return fmt.Errorf("%w: %d/%d", ErrInvalidThreshold, t.Numerator, t.Denominator)
	}

	return nil
}

func (t Threshold) String() string {
	return fmt.Sprintf("%d/%d", t.Numerator, t.Denominator)
}

// Met reports endorsed·Denominator > total·Numerator.
func (t Threshold) Met(endorsed, total *uint256.Int) bool {
	if total.IsZero() {
		return false
	}

	lhs := new(uint256.Int).Mul(endorsed, uint256.NewInt(t.Denominator))
	rhs := new(uint256.Int).Mul(total, uint256.NewInt(t.Numerator))

	return lhs.Gt(rhs)
}

// Tally is the endorsing and total voting power of a cork against one validator set.
type Tally struct {
	Endorsed *uint256.Int
	Total    *uint256.Int
	// Counted are the endorsers that are members of the set.
	Counted int
}

// NewTally sums the power of the endorsers found in the set. Endorsers that are no longer
// members contribute nothing.
func NewTally(set types.ValidatorSet, endorsers []common.Address) Tally {
	t := Tally{Endorsed: new(uint256.Int), Total: new(uint256.Int)}

	for _, v := range set.Validators {
		t.Total.Add(t.Total, uint256.NewInt(v.Power))
	}

	seen := make(map[common.Address]struct{}, len(endorsers))
	for _, e := range endorsers {
		if _, dup := seen[e]; dup {
			continue
		}
		seen[e] = struct{}{}

		if power, ok := set.Power(e); ok {
			t.Endorsed.Add(t.Endorsed, uint256.NewInt(power))
			t.Counted++
		}
	}

	return t
}

// Met reports whether the tally satisfies the threshold.
func (t Tally) Met(th Threshold) bool {
	return th.Met(t.Endorsed, t.Total)
}

func (t Tally) String() string {
	return fmt.Sprintf("%s/%s", t.Endorsed.Dec(), t.Total.Dec())
}
