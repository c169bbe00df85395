package types

import "github.com/ethereum/go-ethereum/common"

// PreparedCall is a signed but not yet broadcast execution-chain transaction. Re-sending the same
// raw bytes can never execute the call twice.
type PreparedCall struct {
	Hash common.Hash `json:"hash"`
	Raw  []byte      `json:"raw"`
}

// TransactionResult represents a generic execution-chain transaction outcome.
type TransactionResult struct {
	Hash    common.Hash `json:"hash"`
	Outcome Outcome     `json:"outcome"`
	Reason  string      `json:"reason,omitempty"`
	// RawData holds the chain specific receipt. Users should cast it to the appropriate type.
	RawData any `json:"rawData,omitempty"`
}
