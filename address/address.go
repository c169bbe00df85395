// Package address converts chain-native account and contract identifiers into the fixed-width
// types.Address used in cork identities and call arguments.
package address

import (
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil/bech32"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/smartcontractkit/corks/types"
)

// ErrInvalidAddress is the sentinel wrapped by every InvalidAddressError.
var ErrInvalidAddress = errors.New("invalid address")

// InvalidAddressError is returned when a native address cannot be normalized.
type InvalidAddressError struct {
	Input  string
	Reason string
}

// NewInvalidAddressError creates a new InvalidAddressError.
func NewInvalidAddressError(input, reason string) *InvalidAddressError {
	return &InvalidAddressError{Input: input, Reason: reason}
}

func (e *InvalidAddressError) Error() string {
	return fmt.Sprintf("invalid address %q: %s", e.Input, e.Reason)
}

func (e *InvalidAddressError) Unwrap() error {
	return ErrInvalidAddress
}

// Normalize left-pads a native address with zero bytes to types.AddressLength. Inputs that are
// empty or wider than the fixed width are rejected, they are never truncated.
//
// Normalization is injective among inputs of the same native width, which is what every chain
// uses for its accounts (20 bytes for EVM and Cosmos accounts, 32 bytes for module accounts).
func Normalize(native []byte) (types.Address, error) {
	if len(native) == 0 {
		return types.Address{}, NewInvalidAddressError("", "empty address")
	}
	if len(native) > types.AddressLength {
		return types.Address{}, NewInvalidAddressError(
			hexutil.Encode(native),
			fmt.Sprintf("length %d exceeds %d bytes", len(native), types.AddressLength),
		)
	}

	var out types.Address
	copy(out[types.AddressLength-len(native):], native)

	return out, nil
}

// Parse normalizes an address given as text. 0x-prefixed input is treated as hex (an EVM address or
// an already normalized 32 byte address), anything else as a bech32 Cosmos address.
func Parse(s string) (types.Address, error) {
	if has0xPrefix(s) {
		return ParseHex(s)
	}

	return ParseBech32(s, "")
}

// ParseHex normalizes a 0x-prefixed hex address. Mixed-case input must carry a valid EIP-55
// checksum.
func ParseHex(s string) (types.Address, error) {
	if !has0xPrefix(s) {
		return types.Address{}, NewInvalidAddressError(s, "missing 0x prefix")
	}

	b, err := hexutil.Decode(s)
	if err != nil {
		return types.Address{}, NewInvalidAddressError(s, err.Error())
	}

	switch len(b) {
	case common.AddressLength:
		if err := validateChecksum(s); err != nil {
			return types.Address{}, err
		}
	case types.AddressLength:
	default:
		return types.Address{}, NewInvalidAddressError(s, fmt.Sprintf("unexpected length %d", len(b)))
	}

	return Normalize(b)
}

// ParseBech32 normalizes a bech32 encoded 20 or 32 byte address. When hrp is not empty the human
// readable part must match it.
func ParseBech32(s string, hrp string) (types.Address, error) {
	gotHRP, data, err := bech32.Decode(s)
	if err != nil {
		return types.Address{}, NewInvalidAddressError(s, err.Error())
	}
	if hrp != "" && gotHRP != hrp {
		return types.Address{}, NewInvalidAddressError(s, fmt.Sprintf("expected prefix %q, got %q", hrp, gotHRP))
	}

	raw, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return types.Address{}, NewInvalidAddressError(s, err.Error())
	}

	// Cosmos accounts are 20 bytes, module and contract accounts 32.
	switch len(raw) {
	case common.AddressLength, types.AddressLength:
	default:
		return types.Address{}, NewInvalidAddressError(s, fmt.Sprintf("unexpected length %d", len(raw)))
	}

	return Normalize(raw)
}

// FromEVM normalizes an EVM address.
func FromEVM(a common.Address) types.Address {
	return types.AddressFromEVM(a)
}

// ValidateCellarID checks that a cellar (target contract) id is a 0x-prefixed 20 byte hex address
// with a valid checksum when given in mixed case.
func ValidateCellarID(id string) error {
	if !common.IsHexAddress(id) || !has0xPrefix(id) {
		return NewInvalidAddressError(id, "cellar id must be a 0x-prefixed 20 byte hex address")
	}

	return validateChecksum(id)
}

// ParseCellarID validates and normalizes a cellar id.
func ParseCellarID(id string) (types.Address, error) {
	if err := ValidateCellarID(id); err != nil {
		return types.Address{}, err
	}

	return FromEVM(common.HexToAddress(id)), nil
}

// validateChecksum enforces EIP-55 for mixed-case hex. All lower or all upper case input carries
// no checksum and is accepted as is.
func validateChecksum(s string) error {
	body := s[2:]
	if strings.ToLower(body) == body || strings.ToUpper(body) == body {
		return nil
	}
	if common.HexToAddress(s).Hex() != s {
		return NewInvalidAddressError(s, "bad EIP-55 checksum")
	}

	return nil
}

func has0xPrefix(s string) bool {
	return len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X')
}
