package cellar

import (
	"bytes"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartcontractkit/corks/types"
)

var testAddr = types.AddressFromEVM(common.HexToAddress("0x0102030405060708090a0b0c0d0e0f1011121314"))

const (
	setFeeVector             = "0x8e0055530000000000000000000000000000000000000000000000000000000000000064"
	setFeesDistributorVector = "0x6e85f1830000000000000000000000000102030405060708090a0b0c0d0e0f1011121314"
	setValidatorVector       = "0x4623c91d0000000000000000000000000102030405060708090a0b0c0d0e0f1011121314" +
		"0000000000000000000000000000000000000000000000000000000000000001"
	transferOwnershipVector = "0xf2fde38b0000000000000000000000000102030405060708090a0b0c0d0e0f1011121314"
	reinvestVector          = "0xfdb5a03e"
	rebalanceVector         = "0x135d4f24" +
		"0000000000000000000000000000000000000000000000000000000000000020" +
		"0000000000000000000000000000000000000000000000000000000000000001" +
		"0000000000000000000000000000000000000000000000000000000000000001" +
		"0000000000000000000000000000000000000000000000000000000000000064" +
		"ffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff9c" +
		"0000000000000000000000000000000000000000000000000000000000000032"
)

func testRebalance() Rebalance {
	return Rebalance{Ticks: []TickInfo{
		{TokenID: big.NewInt(1), TickUpper: 100, TickLower: -100, Weight: 50},
	}}
}

func Test_Encode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		give Call
		want string
	}{
		{name: "setFee", give: SetFee{NewFee: 100}, want: setFeeVector},
		{name: "setFeesDistributor", give: SetFeesDistributor{NewFeesDistributor: testAddr}, want: setFeesDistributorVector},
		{name: "setValidator", give: SetValidator{Validator: testAddr, Value: true}, want: setValidatorVector},
		{name: "transferOwnership", give: TransferOwnership{NewOwner: testAddr}, want: transferOwnershipVector},
		{name: "reinvest", give: Reinvest{}, want: reinvestVector},
		{name: "rebalance", give: testRebalance(), want: rebalanceVector},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := Encode(tt.give)
			require.NoError(t, err)
			assert.Equal(t, tt.want, hexutil.Encode(got))

			again, err := Encode(tt.give)
			require.NoError(t, err)
			assert.True(t, bytes.Equal(got, again), "encoding must be deterministic")

			selector, err := Selector(tt.give)
			require.NoError(t, err)
			assert.Equal(t, got[:4], selector)
		})
	}
}

func Test_Encode_DoesNotMutateArguments(t *testing.T) {
	t.Parallel()

	call := testRebalance()
	tokenID := new(big.Int).Set(call.Ticks[0].TokenID)

	_, err := Encode(call)
	require.NoError(t, err)
	assert.Equal(t, tokenID, call.Ticks[0].TokenID)
}

func Test_Encode_Validation(t *testing.T) {
	t.Parallel()

	wide := types.Address(common.HexToHash("0x0100000000000000000000000102030405060708090a0b0c0d0e0f1011121314"))
	maxTokenID := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 184), big.NewInt(1))

	tick := func(mutate func(*TickInfo)) Rebalance {
		ti := TickInfo{TokenID: big.NewInt(1), TickUpper: 10, TickLower: -10, Weight: 1}
		mutate(&ti)

		return Rebalance{Ticks: []TickInfo{ti}}
	}

	tests := []struct {
		name    string
		give    Call
		wantErr string
	}{
		{
			name:    "nil call",
			give:    nil,
			wantErr: "unknown call variant: <nil>",
		},
		{
			name:    "fee above denominator",
			give:    SetFee{NewFee: 10001},
			wantErr: "encoding setFee: field newFee: 10001 exceeds 10000",
		},
		{
			name:    "validator wider than an evm address",
			give:    SetValidator{Validator: wide},
			wantErr: "encoding setValidator: field validator: address is wider than an EVM address: " + wide.Hex(),
		},
		{
			name:    "zero owner",
			give:    TransferOwnership{},
			wantErr: "encoding transferOwnership: field newOwner: zero address",
		},
		{
			name:    "no ticks",
			give:    Rebalance{},
			wantErr: "encoding rebalance: field ticks: at least one tick range is required",
		},
		{
			name:    "too many ticks",
			give:    Rebalance{Ticks: make([]TickInfo, MaxRebalanceTicks+1)},
			wantErr: "encoding rebalance: field ticks: 17 tick ranges exceed the maximum of 16",
		},
		{
			name:    "missing token id",
			give:    tick(func(ti *TickInfo) { ti.TokenID = nil }),
			wantErr: "encoding rebalance: field ticks[0]: tokenId is required",
		},
		{
			name:    "token id above uint184",
			give:    tick(func(ti *TickInfo) { ti.TokenID = new(big.Int).Add(maxTokenID, big.NewInt(1)) }),
			wantErr: "encoding rebalance: field ticks[0]: tokenId 24519928653854221733733552434404946937899825954937634816 out of uint184 range",
		},
		{
			name:    "negative token id",
			give:    tick(func(ti *TickInfo) { ti.TokenID = big.NewInt(-1) }),
			wantErr: "encoding rebalance: field ticks[0]: tokenId -1 out of uint184 range",
		},
		{
			name:    "tick upper above int24",
			give:    tick(func(ti *TickInfo) { ti.TickUpper = 1 << 23 }),
			wantErr: "encoding rebalance: field ticks[0]: tickUpper 8388608 out of int24 range",
		},
		{
			name:    "tick lower below int24",
			give:    tick(func(ti *TickInfo) { ti.TickLower = -(1 << 23) - 1 }),
			wantErr: "encoding rebalance: field ticks[0]: tickLower -8388609 out of int24 range",
		},
		{
			name:    "inverted range",
			give:    tick(func(ti *TickInfo) { ti.TickLower, ti.TickUpper = 10, -10 }),
			wantErr: "encoding rebalance: field ticks[0]: tickLower 10 must be below tickUpper -10",
		},
		{
			name:    "zero weight",
			give:    tick(func(ti *TickInfo) { ti.Weight = 0 }),
			wantErr: "encoding rebalance: field ticks[0]: weight must be positive",
		},
		{
			name:    "weight above uint24",
			give:    tick(func(ti *TickInfo) { ti.Weight = 1 << 24 }),
			wantErr: "encoding rebalance: field ticks[0]: weight 16777216 out of uint24 range",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := Encode(tt.give)
			require.EqualError(t, err, tt.wantErr)
			assert.Nil(t, got)
		})
	}
}

func Test_Encode_MaxTokenID(t *testing.T) {
	t.Parallel()

	maxTokenID := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 184), big.NewInt(1))
	call := Rebalance{Ticks: []TickInfo{{TokenID: maxTokenID, TickUpper: maxInt24, TickLower: minInt24, Weight: maxUint24}}}

	got, err := Encode(call)
	require.NoError(t, err)

	decoded, err := Decode(got)
	require.NoError(t, err)
	assert.Equal(t, call, decoded)
}

func Test_Decode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		give string
		want Call
	}{
		{name: "setFee", give: setFeeVector, want: SetFee{NewFee: 100}},
		{name: "setFeesDistributor", give: setFeesDistributorVector, want: SetFeesDistributor{NewFeesDistributor: testAddr}},
		{name: "setValidator", give: setValidatorVector, want: SetValidator{Validator: testAddr, Value: true}},
		{name: "transferOwnership", give: transferOwnershipVector, want: TransferOwnership{NewOwner: testAddr}},
		{name: "reinvest", give: reinvestVector, want: Reinvest{}},
		{name: "rebalance", give: rebalanceVector, want: testRebalance()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := Decode(hexutil.MustDecode(tt.give))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func Test_Decode_Errors(t *testing.T) {
	t.Parallel()

	_, err := Decode([]byte{0x01, 0x02})
	require.ErrorIs(t, err, ErrUnknownCallVariant)
	require.EqualError(t, err, "unknown call variant: payload of 2 bytes has no selector")

	_, err = Decode(hexutil.MustDecode("0xa9059cbb"))
	require.ErrorIs(t, err, ErrUnknownCallVariant)

	// setFee with 20000 is well formed ABI but fails validation.
	_, err = Decode(hexutil.MustDecode("0x8e0055530000000000000000000000000000000000000000000000000000000000004e20"))
	require.EqualError(t, err, "encoding setFee: field newFee: 20000 exceeds 10000")

	var encErr *EncodingError
	_, err = Decode(hexutil.MustDecode("0x8e005553"))
	require.ErrorAs(t, err, &encErr)
	assert.Equal(t, "setFee", encErr.Method)
}
