package types

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// AddressLength is the fixed width of a normalized address in bytes.
const AddressLength = 32

// evmPadding is the number of leading zero bytes of a normalized 20-byte EVM address.
const evmPadding = AddressLength - common.AddressLength

// ErrNotEVMAddress is returned when a normalized address does not fit into 20 bytes.
var ErrNotEVMAddress = errors.New("address is wider than an EVM address")

// Address is a chain-independent, fixed-width (32 byte) account or contract identifier.
//
// Native addresses shorter than 32 bytes are left-padded with zero bytes. Use the address
// package to construct one from a native representation.
type Address [AddressLength]byte

// AddressFromEVM left-pads an EVM address to the normalized width.
func AddressFromEVM(a common.Address) Address {
	var out Address
	copy(out[evmPadding:], a.Bytes())

	return out
}

// Bytes returns a copy of the address bytes.
func (a Address) Bytes() []byte {
	return bytes.Clone(a[:])
}

// Hex returns the 0x-prefixed hex encoding of the full 32 bytes.
func (a Address) Hex() string {
	return hexutil.Encode(a[:])
}

// String implements fmt.Stringer.
func (a Address) String() string {
	return a.Hex()
}

// IsZero reports whether all bytes are zero.
func (a Address) IsZero() bool {
	return a == Address{}
}

// IsEVM reports whether the address fits into a 20-byte EVM address.
func (a Address) IsEVM() bool {
	for _, b := range a[:evmPadding] {
		if b != 0 {
			return false
		}
	}

	return true
}

// EVM returns the 20-byte EVM address. It fails if any of the leading 12 bytes is set, since
// truncating would map distinct addresses onto the same EVM address.
func (a Address) EVM() (common.Address, error) {
	if !a.IsEVM() {
		return common.Address{}, fmt.Errorf("%w: %s", ErrNotEVMAddress, a.Hex())
	}

	return common.BytesToAddress(a[evmPadding:]), nil
}

// MarshalText implements encoding.TextMarshaler.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.Hex()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Only the full 32-byte hex form is accepted,
// native addresses must go through the address package.
func (a *Address) UnmarshalText(input []byte) error {
	b, err := hexutil.Decode(string(input))
	if err != nil {
		return fmt.Errorf("invalid address %q: %w", input, err)
	}
	if len(b) != AddressLength {
		return fmt.Errorf("invalid address length: %d", len(b))
	}
	copy(a[:], b)

	return nil
}
