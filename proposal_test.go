package corks

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartcontractkit/corks/cellar"
	"github.com/smartcontractkit/corks/internal/testutils"
	"github.com/smartcontractkit/corks/types"
)

var contractC = types.AddressFromEVM(common.HexToAddress("0xc0ffee"))

func mustEncode(t *testing.T, call cellar.Call) []byte {
	t.Helper()

	payload, err := cellar.Encode(call)
	require.NoError(t, err)

	return payload
}

func TestNewCorkProposal(t *testing.T) {
	t.Parallel()

	p, err := NewCorkProposal(contractC, cellar.SetFee{NewFee: 250}, 100, "lower fee")
	require.NoError(t, err)

	assert.Equal(t, ProposalVersion, p.Version)
	assert.Equal(t, "setFee", p.Method)
	assert.Equal(t, types.NewCorkID(contractC, 100, mustEncode(t, cellar.SetFee{NewFee: 250})), p.ID())

	call, err := p.Call()
	require.NoError(t, err)
	assert.Equal(t, cellar.SetFee{NewFee: 250}, call)

	_, err = NewCorkProposal(contractC, cellar.SetFee{NewFee: cellar.FeeDenominator + 1}, 100, "")
	var encErr *cellar.EncodingError
	require.ErrorAs(t, err, &encErr)
}

func TestCorkProposal_Validate(t *testing.T) {
	t.Parallel()

	valid := func() CorkProposal {
		return CorkProposal{
			Version:  ProposalVersion,
			Contract: contractC,
			Height:   100,
			Method:   "reinvest",
			Payload:  mustEncode(t, cellar.Reinvest{}),
		}
	}

	var wide types.Address
	wide[0] = 0x01

	tests := []struct {
		name    string
		give    func(p *CorkProposal)
		wantErr string
	}{
		{
			name: "valid",
			give: func(*CorkProposal) {},
		},
		{
			name:    "failure: unknown version",
			give:    func(p *CorkProposal) { p.Version = "v2" },
			wantErr: "Key: 'CorkProposal.Version' Error:Field validation for 'Version' failed on the 'eq' tag",
		},
		{
			name:    "failure: missing height",
			give:    func(p *CorkProposal) { p.Height = 0 },
			wantErr: "Key: 'CorkProposal.Height' Error:Field validation for 'Height' failed on the 'required' tag",
		},
		{
			name:    "failure: zero contract",
			give:    func(p *CorkProposal) { p.Contract = types.Address{} },
			wantErr: "Key: 'CorkProposal.Contract' Error:Field validation for 'Contract' failed on the 'required' tag",
		},
		{
			name:    "failure: contract wider than EVM",
			give:    func(p *CorkProposal) { p.Contract = wide },
			wantErr: "invalid cork proposal: contract " + wide.Hex() + " is not an EVM address",
		},
		{
			name:    "failure: unknown selector",
			give:    func(p *CorkProposal) { p.Payload = []byte{0xde, 0xad, 0xbe, 0xef} },
			wantErr: "invalid cork proposal:",
		},
		{
			name:    "failure: method does not match payload",
			give:    func(p *CorkProposal) { p.Method = "setFee" },
			wantErr: `invalid cork proposal: method "setFee" does not match payload method "reinvest"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p := valid()
			tt.give(&p)

			err := p.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}

			require.Error(t, err)
			assert.True(t, strings.HasPrefix(err.Error(), tt.wantErr), err.Error())

			var verr validator.ValidationErrors
			var perr *InvalidProposalError
			assert.True(t, errors.As(err, &verr) || errors.As(err, &perr))
		})
	}
}

func TestCorkProposal_WriteAndLoad(t *testing.T) {
	t.Parallel()

	signers := testutils.MakeNewECDSASigners(2)

	p, err := NewCorkProposal(contractC, cellar.SetValidator{
		Validator: types.AddressFromEVM(common.HexToAddress("0xbeef")),
		Value:     true,
	}, 120, "allow keeper")
	require.NoError(t, err)

	for _, s := range signers {
		require.NoError(t, Sign(p, NewPrivateKeySigner(s.Key)))
	}

	var buf bytes.Buffer
	require.NoError(t, p.Write(&buf))

	path := filepath.Join(t.TempDir(), "cork.json")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))

	got, err := LoadProposal(path)
	require.NoError(t, err)
	assert.Equal(t, p, got)

	endorsers, err := got.Endorsers()
	require.NoError(t, err)
	assert.Equal(t, []common.Address{signers[0].Address(), signers[1].Address()}, endorsers)
}

func TestCorkProposal_Write_Errors(t *testing.T) {
	t.Parallel()

	p, err := NewCorkProposal(contractC, cellar.Reinvest{}, 100, "")
	require.NoError(t, err)

	require.EqualError(t, p.Write(newFakeWriter(0, errors.New("disk full"))), "disk full")

	var nilProposal *CorkProposal
	require.EqualError(t, nilProposal.Write(&bytes.Buffer{}), "nil proposal")
}

func TestLoadProposal_Errors(t *testing.T) {
	t.Parallel()

	_, err := LoadProposal(filepath.Join(t.TempDir(), "missing.json"))
	require.ErrorContains(t, err, "failed to open proposal file")

	_, err = NewProposal(strings.NewReader(`{"version":"v1"`))
	require.Error(t, err)

	_, err = NewProposal(strings.NewReader(`{"version":"v1","height":1}`))
	require.ErrorContains(t, err, "'Contract' failed on the 'required' tag")
}

func TestCorkProposal_AppendSignature(t *testing.T) {
	t.Parallel()

	signers := testutils.MakeNewECDSASigners(2)

	p, err := NewCorkProposal(contractC, cellar.Reinvest{}, 100, "")
	require.NoError(t, err)

	first, err := types.NewSignatureFromBytes(signers[0].Endorse(p.ID()))
	require.NoError(t, err)
	second, err := types.NewSignatureFromBytes(signers[1].Endorse(p.ID()))
	require.NoError(t, err)

	require.NoError(t, p.AppendSignature(first))
	require.NoError(t, p.AppendSignature(second))
	require.NoError(t, p.AppendSignature(first))

	assert.Len(t, p.Signatures, 2)
}
