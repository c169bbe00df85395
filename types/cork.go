package types

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"slices"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// CorkIDKeyLength is the length of the binary key of a CorkID.
const CorkIDKeyLength = AddressLength + 8 + common.HashLength

// EIP-712 domain of endorsement signatures.
const (
	EndorsementDomainName    = "Corks"
	EndorsementDomainVersion = "1"
)

var (
	eip712DomainTypeHash = crypto.Keccak256Hash([]byte("EIP712Domain(string name,string version)"))
	endorsementTypeHash  = crypto.Keccak256Hash([]byte("CorkEndorsement(bytes32 contract,uint64 height,bytes32 payloadHash)"))

	endorsementDomainSeparator = crypto.Keccak256Hash(
		eip712DomainTypeHash.Bytes(),
		crypto.Keccak256([]byte(EndorsementDomainName)),
		crypto.Keccak256([]byte(EndorsementDomainVersion)),
	)
)

// CorkID uniquely identifies one scheduling intent: a payload to be called on a target contract
// at a trigger height. Two proposals with an equal CorkID are the same cork.
type CorkID struct {
	Contract    Address     `json:"contract"`
	Height      uint64      `json:"height"`
	PayloadHash common.Hash `json:"payloadHash"`
}

// NewCorkID derives the identity of a cork from its target, trigger height and encoded payload.
func NewCorkID(contract Address, height uint64, payload []byte) CorkID {
	return CorkID{
		Contract:    contract,
		Height:      height,
		PayloadHash: crypto.Keccak256Hash(payload),
	}
}

// CorkIDFromKey parses the binary key produced by Key.
func CorkIDFromKey(key []byte) (CorkID, error) {
	if len(key) != CorkIDKeyLength {
		return CorkID{}, fmt.Errorf("invalid cork key length: %d", len(key))
	}

	var id CorkID
	copy(id.Contract[:], key[:AddressLength])
	id.Height = binary.BigEndian.Uint64(key[AddressLength : AddressLength+8])
	copy(id.PayloadHash[:], key[AddressLength+8:])

	return id, nil
}

// Key returns the binary key: contract || big endian height || payload hash.
func (id CorkID) Key() []byte {
	key := make([]byte, 0, CorkIDKeyLength)
	key = append(key, id.Contract[:]...)
	key = binary.BigEndian.AppendUint64(key, id.Height)

	return append(key, id.PayloadHash[:]...)
}

// TypedData returns the EIP-712 encoded endorsement of the cork:
// 0x1901 || domain separator || hashStruct(CorkEndorsement).
func (id CorkID) TypedData() []byte {
	var height common.Hash
	binary.BigEndian.PutUint64(height[common.HashLength-8:], id.Height)

	structHash := crypto.Keccak256(endorsementTypeHash.Bytes(), id.Contract[:], height.Bytes(), id.PayloadHash.Bytes())

	return slices.Concat([]byte{0x19, 0x01}, endorsementDomainSeparator.Bytes(), structHash)
}

// SigningHash is the EIP-712 digest a validator signs to endorse the cork.
func (id CorkID) SigningHash() common.Hash {
	return crypto.Keccak256Hash(id.TypedData())
}

// Compare orders identities by their binary key.
func (id CorkID) Compare(other CorkID) int {
	return bytes.Compare(id.Key(), other.Key())
}

// String implements fmt.Stringer.
func (id CorkID) String() string {
	return fmt.Sprintf("%s@%d/%s", id.Contract.Hex(), id.Height, id.PayloadHash.Hex())
}

// CorkState is the lifecycle state of a cork.
type CorkState string

const (
	CorkStateProposed    CorkState = "proposed"
	CorkStateEndorsed    CorkState = "endorsed"
	CorkStateReady       CorkState = "ready"
	CorkStateExecutable  CorkState = "executable"
	CorkStateDispatching CorkState = "dispatching"
	CorkStateExecuted    CorkState = "executed"
	CorkStateFailed      CorkState = "failed"
	CorkStateInvalidated CorkState = "invalidated"
)

// IsTerminal reports whether no further transition is possible.
func (s CorkState) IsTerminal() bool {
	switch s {
	case CorkStateExecuted, CorkStateFailed, CorkStateInvalidated:
		return true
	default:
		return false
	}
}

// IsPreDispatch reports whether the state is still driven by endorsements and height, i.e. the
// dispatcher has not accepted the cork yet.
func (s CorkState) IsPreDispatch() bool {
	switch s {
	case CorkStateProposed, CorkStateEndorsed, CorkStateReady, CorkStateExecutable:
		return true
	default:
		return false
	}
}

// Endorsement is a validator's recorded approval of a cork identity.
type Endorsement struct {
	Validator common.Address `json:"validator"`
	Proof     []byte         `json:"proof"`
}

// Outcome is the result of a submitted call as reported by the execution chain.
type Outcome string

const (
	OutcomeUnknown   Outcome = "unknown"
	OutcomePending   Outcome = "pending"
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeReverted  Outcome = "reverted"
)

// Dispatch is the durable in-flight marker of a cork accepted by the dispatcher.
type Dispatch struct {
	TxHash      common.Hash `json:"txHash"`
	RawTx       []byte      `json:"rawTx"`
	Submissions int         `json:"submissions"`
	Outcome     Outcome     `json:"outcome"`
	Reason      string      `json:"reason,omitempty"`
	AcceptedAt  time.Time   `json:"acceptedAt"`
}

// Cork is a scheduled, quorum-gated, height-triggered contract call.
type Cork struct {
	ID           CorkID         `json:"id"`
	Payload      []byte         `json:"payload"`
	Proposer     common.Address `json:"proposer"`
	Seq          uint64         `json:"seq"`
	ProposedAt   time.Time      `json:"proposedAt"`
	State        CorkState      `json:"state"`
	Endorsements []Endorsement  `json:"endorsements"`
	Dispatch     *Dispatch      `json:"dispatch,omitempty"`
}

// Endorsement returns the endorsement recorded for the validator, if any.
func (c *Cork) Endorsement(validator common.Address) (Endorsement, bool) {
	for _, e := range c.Endorsements {
		if e.Validator == validator {
			return e, true
		}
	}

	return Endorsement{}, false
}

// Endorsers returns the addresses of all endorsing validators in endorsement order.
func (c *Cork) Endorsers() []common.Address {
	out := make([]common.Address, 0, len(c.Endorsements))
	for _, e := range c.Endorsements {
		out = append(out, e.Validator)
	}

	return out
}

// Clone returns a deep copy, safe to hand out to readers.
func (c *Cork) Clone() Cork {
	out := *c
	out.Payload = bytes.Clone(c.Payload)
	out.Endorsements = slices.Clone(c.Endorsements)
	for i := range out.Endorsements {
		out.Endorsements[i].Proof = bytes.Clone(c.Endorsements[i].Proof)
	}
	if c.Dispatch != nil {
		d := *c.Dispatch
		d.RawTx = bytes.Clone(c.Dispatch.RawTx)
		out.Dispatch = &d
	}

	return out
}

// Less orders corks for execution: trigger height first, then proposal sequence, then identity.
func (c *Cork) Less(other *Cork) bool {
	if c.ID.Height != other.ID.Height {
		return c.ID.Height < other.ID.Height
	}
	if c.Seq != other.Seq {
		return c.Seq < other.Seq
	}

	return c.ID.Compare(other.ID) < 0
}
