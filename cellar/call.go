// Package cellar encodes the closed set of cellar contract calls that can be scheduled as corks.
package cellar

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/smartcontractkit/corks/types"
)

const (
	// FeeDenominator is the fee precision of the cellar contract, a fee of FeeDenominator is 100%.
	FeeDenominator = 10000
	// MaxRebalanceTicks bounds the number of tick ranges of a single rebalance call.
	MaxRebalanceTicks = 16

	minInt24  = -(1 << 23)
	maxInt24  = 1<<23 - 1
	maxUint24 = 1<<24 - 1
)

var maxUint184 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 184), big.NewInt(1))

// Call is one of the permitted cellar operations. The set of implementations is closed.
type Call interface {
	// Method is the solidity function name of the call.
	Method() string

	// abiArgs validates the call and returns its arguments in ABI order.
	abiArgs() ([]any, error)
}

// SetFeesDistributor sets the Cosmos address the cellar bridges its fees to.
type SetFeesDistributor struct {
	NewFeesDistributor types.Address `json:"newFeesDistributor"`
}

func (SetFeesDistributor) Method() string { return "setFeesDistributor" }

func (c SetFeesDistributor) abiArgs() ([]any, error) {
	return []any{[32]byte(c.NewFeesDistributor)}, nil
}

// SetFee sets the cellar fee in FeeDenominator units.
type SetFee struct {
	NewFee uint16 `json:"newFee"`
}

func (SetFee) Method() string { return "setFee" }

func (c SetFee) abiArgs() ([]any, error) {
	if c.NewFee > FeeDenominator {
		return nil, NewEncodingError(c.Method(), "newFee", fmt.Sprintf("%d exceeds %d", c.NewFee, FeeDenominator))
	}

	return []any{c.NewFee}, nil
}

// SetValidator sets or clears the validator flag of an address.
type SetValidator struct {
	Validator types.Address `json:"validator"`
	Value     bool          `json:"value"`
}

func (SetValidator) Method() string { return "setValidator" }

func (c SetValidator) abiArgs() ([]any, error) {
	addr, err := c.Validator.EVM()
	if err != nil {
		return nil, NewEncodingError(c.Method(), "validator", err.Error())
	}

	return []any{addr, c.Value}, nil
}

// TransferOwnership hands the cellar over to a new owner.
type TransferOwnership struct {
	NewOwner types.Address `json:"newOwner"`
}

func (TransferOwnership) Method() string { return "transferOwnership" }

func (c TransferOwnership) abiArgs() ([]any, error) {
	if c.NewOwner.IsZero() {
		return nil, NewEncodingError(c.Method(), "newOwner", "zero address")
	}
	addr, err := c.NewOwner.EVM()
	if err != nil {
		return nil, NewEncodingError(c.Method(), "newOwner", err.Error())
	}

	return []any{addr}, nil
}

// Reinvest compounds the cellar's collected fees.
type Reinvest struct{}

func (Reinvest) Method() string { return "reinvest" }

func (Reinvest) abiArgs() ([]any, error) {
	return nil, nil
}

// TickInfo is one Uniswap V3 position of a rebalance.
type TickInfo struct {
	TokenID   *big.Int `json:"tokenId"`
	TickUpper int32    `json:"tickUpper"`
	TickLower int32    `json:"tickLower"`
	Weight    uint32   `json:"weight"`
}

// Rebalance replaces the cellar's liquidity positions.
type Rebalance struct {
	Ticks []TickInfo `json:"ticks"`
}

func (Rebalance) Method() string { return "rebalance" }

// abiTickInfo mirrors the ABI tuple, field names follow the abi package naming rules.
type abiTickInfo struct {
	TokenId   *big.Int //nolint:revive // must match the ABI component name
	TickUpper *big.Int
	TickLower *big.Int
	Weight    *big.Int
}

func (c Rebalance) abiArgs() ([]any, error) {
	if len(c.Ticks) == 0 {
		return nil, NewEncodingError(c.Method(), "ticks", "at least one tick range is required")
	}
	if len(c.Ticks) > MaxRebalanceTicks {
		return nil, NewEncodingError(c.Method(), "ticks",
			fmt.Sprintf("%d tick ranges exceed the maximum of %d", len(c.Ticks), MaxRebalanceTicks))
	}

	out := make([]abiTickInfo, 0, len(c.Ticks))
	for i, tick := range c.Ticks {
		if err := tick.validate(); err != nil {
			return nil, NewEncodingError(c.Method(), fmt.Sprintf("ticks[%d]", i), err.Error())
		}

		out = append(out, abiTickInfo{
			TokenId:   new(big.Int).Set(tick.TokenID),
			TickUpper: big.NewInt(int64(tick.TickUpper)),
			TickLower: big.NewInt(int64(tick.TickLower)),
			Weight:    new(big.Int).SetUint64(uint64(tick.Weight)),
		})
	}

	return []any{out}, nil
}

func (t TickInfo) validate() error {
	switch {
	case t.TokenID == nil:
		return errors.New("tokenId is required")
	case t.TokenID.Sign() < 0 || t.TokenID.Cmp(maxUint184) > 0:
		return fmt.Errorf("tokenId %s out of uint184 range", t.TokenID)
	case t.TickUpper < minInt24 || t.TickUpper > maxInt24:
		return fmt.Errorf("tickUpper %d out of int24 range", t.TickUpper)
	case t.TickLower < minInt24 || t.TickLower > maxInt24:
		return fmt.Errorf("tickLower %d out of int24 range", t.TickLower)
	case t.TickLower >= t.TickUpper:
		return fmt.Errorf("tickLower %d must be below tickUpper %d", t.TickLower, t.TickUpper)
	case t.Weight == 0:
		return errors.New("weight must be positive")
	case t.Weight > maxUint24:
		return fmt.Errorf("weight %d out of uint24 range", t.Weight)
	}

	return nil
}

var (
	_ Call = SetFeesDistributor{}
	_ Call = SetFee{}
	_ Call = SetValidator{}
	_ Call = TransferOwnership{}
	_ Call = Reinvest{}
	_ Call = Rebalance{}
)

// evmToAddress is shared by the decoders of address typed arguments.
func evmToAddress(a common.Address) types.Address {
	return types.AddressFromEVM(a)
}
