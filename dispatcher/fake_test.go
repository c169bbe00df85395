package dispatcher

import (
	"context"
	"encoding/binary"
	"slices"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/smartcontractkit/corks/types"
)

// fakeChain is an execution chain that executes every distinct signed transaction once.
type fakeChain struct {
	mu       sync.Mutex
	nonce    uint64
	txs      map[common.Hash]types.Outcome
	sent     [][]byte
	prepares int
	revert   bool

	// onSend runs before a transaction is accepted. Returning an error drops it.
	onSend func(ctx context.Context, call types.PreparedCall, accept func()) error
}

func newFakeChain() *fakeChain {
	return &fakeChain{txs: make(map[common.Hash]types.Outcome)}
}

func (c *fakeChain) Prepare(_ context.Context, contract types.Address, payload []byte) (types.PreparedCall, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.prepares++
	c.nonce++
	raw := binary.BigEndian.AppendUint64(slices.Concat(contract.Bytes(), payload), c.nonce)

	return types.PreparedCall{Hash: crypto.Keccak256Hash(raw), Raw: raw}, nil
}

func (c *fakeChain) Send(ctx context.Context, call types.PreparedCall) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	c.sent = append(c.sent, slices.Clone(call.Raw))
	hook := c.onSend
	c.mu.Unlock()

	if hook != nil {
		return hook(ctx, call, func() { c.accept(call) })
	}
	c.accept(call)

	return nil
}

func (c *fakeChain) accept(call types.PreparedCall) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.txs[call.Hash]; ok {
		return
	}
	if c.revert {
		c.txs[call.Hash] = types.OutcomeReverted
	} else {
		c.txs[call.Hash] = types.OutcomeSucceeded
	}
}

func (c *fakeChain) Outcome(_ context.Context, hash common.Hash) (types.TransactionResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	outcome, ok := c.txs[hash]
	if !ok {
		return types.TransactionResult{Hash: hash, Outcome: types.OutcomeUnknown}, nil
	}
	res := types.TransactionResult{Hash: hash, Outcome: outcome}
	if outcome == types.OutcomeReverted {
		res.Reason = "execution reverted"
	}

	return res, nil
}

func (c *fakeChain) executed() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.txs)
}

func (c *fakeChain) sends() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()

	return slices.Clone(c.sent)
}
