package cellar

import (
	"bytes"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/smartcontractkit/corks/internal/utils/safecast"
)

// Encode serializes the call into the calldata expected by the cellar: the 4 byte selector
// followed by the ABI encoded arguments. Encoding is deterministic.
func Encode(call Call) ([]byte, error) {
	if call == nil {
		return nil, fmt.Errorf("%w: <nil>", ErrUnknownCallVariant)
	}

	method, ok := cellarABI.Methods[call.Method()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCallVariant, call.Method())
	}

	args, err := call.abiArgs()
	if err != nil {
		return nil, err
	}

	packed, err := method.Inputs.Pack(args...)
	if err != nil {
		return nil, NewEncodingError(method.Name, "", err.Error())
	}

	return append(bytes.Clone(method.ID), packed...), nil
}

// Selector returns the 4 byte function selector of the call.
func Selector(call Call) ([]byte, error) {
	method, ok := cellarABI.Methods[call.Method()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCallVariant, call.Method())
	}

	return bytes.Clone(method.ID), nil
}

// Decode parses calldata produced by Encode back into its call variant. The decoded call is
// validated with the same rules as Encode.
func Decode(payload []byte) (Call, error) {
	if len(payload) < 4 {
		return nil, fmt.Errorf("%w: payload of %d bytes has no selector", ErrUnknownCallVariant, len(payload))
	}

	method, err := cellarABI.MethodById(payload[:4])
	if err != nil {
		return nil, fmt.Errorf("%w: selector %x", ErrUnknownCallVariant, payload[:4])
	}

	values, err := method.Inputs.Unpack(payload[4:])
	if err != nil {
		return nil, NewEncodingError(method.Name, "", err.Error())
	}

	call, err := fromValues(method.Name, values)
	if err != nil {
		return nil, err
	}
	if _, err := call.abiArgs(); err != nil {
		return nil, err
	}

	return call, nil
}

func fromValues(method string, values []any) (Call, error) {
	switch method {
	case SetFeesDistributor{}.Method():
		return SetFeesDistributor{NewFeesDistributor: values[0].([32]byte)}, nil
	case SetFee{}.Method():
		return SetFee{NewFee: values[0].(uint16)}, nil
	case SetValidator{}.Method():
		return SetValidator{
			Validator: evmToAddress(values[0].(common.Address)),
			Value:     values[1].(bool),
		}, nil
	case TransferOwnership{}.Method():
		return TransferOwnership{NewOwner: evmToAddress(values[0].(common.Address))}, nil
	case Reinvest{}.Method():
		return Reinvest{}, nil
	case Rebalance{}.Method():
		raw := *abi.ConvertType(values[0], new([]abiTickInfo)).(*[]abiTickInfo)

		ticks := make([]TickInfo, 0, len(raw))
		for i, r := range raw {
			tick, err := fromABITick(r)
			if err != nil {
				return nil, NewEncodingError(method, fmt.Sprintf("ticks[%d]", i), err.Error())
			}
			ticks = append(ticks, tick)
		}

		return Rebalance{Ticks: ticks}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownCallVariant, method)
	}
}

func fromABITick(r abiTickInfo) (TickInfo, error) {
	upper, err := safecast.BigToInt32(r.TickUpper)
	if err != nil {
		return TickInfo{}, err
	}
	lower, err := safecast.BigToInt32(r.TickLower)
	if err != nil {
		return TickInfo{}, err
	}
	weight, err := safecast.BigToUint32(r.Weight)
	if err != nil {
		return TickInfo{}, err
	}

	return TickInfo{
		TokenID:   new(big.Int).Set(r.TokenId),
		TickUpper: upper,
		TickLower: lower,
		Weight:    weight,
	}, nil
}
