package corks

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/go-playground/validator/v10"

	"github.com/smartcontractkit/corks/cellar"
	"github.com/smartcontractkit/corks/types"
)

// ProposalVersion is the current version of the cork proposal file format.
const ProposalVersion = "v1"

// CorkProposal is the file form of a cork, exchanged between the operator that schedules it and
// the validators that endorse it.
type CorkProposal struct {
	Version     string            `json:"version" validate:"required,eq=v1"`
	Description string            `json:"description"`
	Contract    types.Address     `json:"contract" validate:"required"`
	Height      uint64            `json:"height" validate:"required"`
	Method      string            `json:"method"`
	Payload     hexutil.Bytes     `json:"payload" validate:"required,min=4"`
	Signatures  []types.Signature `json:"signatures" validate:"omitempty,dive"`
}

// NewCorkProposal encodes the call and returns a proposal without signatures.
func NewCorkProposal(contract types.Address, call cellar.Call, height uint64, description string) (*CorkProposal, error) {
	payload, err := cellar.Encode(call)
	if err != nil {
		return nil, err
	}

	p := &CorkProposal{
		Version:     ProposalVersion,
		Description: description,
		Contract:    contract,
		Height:      height,
		Method:      call.Method(),
		Payload:     payload,
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	return p, nil
}

// NewProposal decodes and validates a proposal.
func NewProposal(reader io.Reader) (*CorkProposal, error) {
	var out CorkProposal
	if err := json.NewDecoder(reader).Decode(&out); err != nil {
		return nil, err
	}

	if err := out.Validate(); err != nil {
		return nil, err
	}

	return &out, nil
}

// LoadProposal reads a proposal file.
func LoadProposal(path string) (*CorkProposal, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open proposal file: %w", err)
	}
	defer f.Close()

	return NewProposal(f)
}

// Validate runs the tag validation, checks the target is an EVM contract and the payload decodes
// to a known call.
func (p *CorkProposal) Validate() error {
	if err := validator.New().Struct(p); err != nil {
		return err
	}

	if !p.Contract.IsEVM() {
		return NewInvalidProposalError(fmt.Sprintf("contract %s is not an EVM address", p.Contract))
	}

	call, err := cellar.Decode(p.Payload)
	if err != nil {
		return NewInvalidProposalError(err.Error())
	}
	if p.Method != "" && p.Method != call.Method() {
		return NewInvalidProposalError(fmt.Sprintf("method %q does not match payload method %q", p.Method, call.Method()))
	}

	return nil
}

// ID returns the identity of the proposed cork.
func (p *CorkProposal) ID() types.CorkID {
	return types.NewCorkID(p.Contract, p.Height, p.Payload)
}

// Call decodes the payload.
func (p *CorkProposal) Call() (cellar.Call, error) {
	return cellar.Decode(p.Payload)
}

// Endorsers recovers the validator of every signature, in signature order.
func (p *CorkProposal) Endorsers() ([]common.Address, error) {
	id := p.ID()

	out := make([]common.Address, 0, len(p.Signatures))
	for _, sig := range p.Signatures {
		addr, err := sig.RecoverEndorser(id)
		if err != nil {
			return nil, err
		}
		out = append(out, addr)
	}

	return out, nil
}

// AppendSignature adds a signature, replacing an earlier one of the same validator.
func (p *CorkProposal) AppendSignature(sig types.Signature) error {
	id := p.ID()

	signer, err := sig.RecoverEndorser(id)
	if err != nil {
		return err
	}

	for i, existing := range p.Signatures {
		addr, err := existing.RecoverEndorser(id)
		if err != nil {
			return err
		}
		if addr == signer {
			p.Signatures[i] = sig

			return nil
		}
	}
	p.Signatures = append(p.Signatures, sig)

	return nil
}

// Write encodes the proposal as indented JSON.
func (p *CorkProposal) Write(w io.Writer) error {
	if p == nil {
		return errors.New("nil proposal")
	}
	if err := p.Validate(); err != nil {
		return err
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(p)
}
