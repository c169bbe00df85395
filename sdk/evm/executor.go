package evm

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/smartcontractkit/corks/sdk"
	sdkerrors "github.com/smartcontractkit/corks/sdk/errors"
	"github.com/smartcontractkit/corks/types"
)

// baseFeeMultiplier leaves room for the base fee to rise while the transaction waits.
const baseFeeMultiplier = 2

var _ sdk.Executor = (*Executor)(nil)

// Executor signs cork calls as EIP-1559 transactions with the operator key and tracks them by
// hash.
type Executor struct {
	client   ExecutionClient
	auth     *bind.TransactOpts
	chainID  *big.Int
	gasLimit uint64
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithGasLimit sets a fixed gas limit instead of estimating it. Estimation rejects calls that
// would revert before anything is signed.
func WithGasLimit(limit uint64) ExecutorOption {
	return func(e *Executor) { e.gasLimit = limit }
}

// NewExecutor creates a new Executor for the EVM chain with the given chain id.
func NewExecutor(client ExecutionClient, auth *bind.TransactOpts, chainID uint64, opts ...ExecutorOption) *Executor {
	e := &Executor{
		client:  client,
		auth:    auth,
		chainID: new(big.Int).SetUint64(chainID),
	}
	for _, opt := range opts {
		opt(e)
	}

	return e
}

// NewExecutorForSelector resolves the EVM chain id of the selector and creates an Executor.
func NewExecutorForSelector(client ExecutionClient, auth *bind.TransactOpts, sel types.ChainSelector, opts ...ExecutorOption) (*Executor, error) {
	chainID, err := types.EVMChainID(sel)
	if err != nil {
		return nil, err
	}

	return NewExecutor(client, auth, chainID, opts...), nil
}

func (e *Executor) Prepare(ctx context.Context, contract types.Address, payload []byte) (types.PreparedCall, error) {
	to, err := contract.EVM()
	if err != nil {
		return types.PreparedCall{}, sdkerrors.NewPermanentError("target is not an EVM contract", err)
	}

	nonce, err := e.client.PendingNonceAt(ctx, e.auth.From)
	if err != nil {
		return types.PreparedCall{}, sdkerrors.NewTransientError(fmt.Errorf("failed to get nonce: %w", err))
	}

	tip, err := e.client.SuggestGasTipCap(ctx)
	if err != nil {
		return types.PreparedCall{}, sdkerrors.NewTransientError(fmt.Errorf("failed to suggest gas tip: %w", err))
	}
	head, err := e.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return types.PreparedCall{}, sdkerrors.NewTransientError(fmt.Errorf("failed to get head: %w", err))
	}
	feeCap := new(big.Int).Set(tip)
	if head.BaseFee != nil {
		feeCap.Add(feeCap, new(big.Int).Mul(head.BaseFee, big.NewInt(baseFeeMultiplier)))
	}

	gas := e.gasLimit
	if gas == 0 {
		gas, err = e.client.EstimateGas(ctx, ethereum.CallMsg{
			From:      e.auth.From,
			To:        &to,
			GasTipCap: tip,
			GasFeeCap: feeCap,
			Data:      payload,
		})
		if err != nil {
			return types.PreparedCall{}, classifyEstimateError(err)
		}
	}

	tx := gethtypes.NewTx(&gethtypes.DynamicFeeTx{
		ChainID:   e.chainID,
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Gas:       gas,
		To:        &to,
		Data:      payload,
	})
	signed, err := e.auth.Signer(e.auth.From, tx)
	if err != nil {
		return types.PreparedCall{}, sdkerrors.NewPermanentError("failed to sign", err)
	}

	raw, err := signed.MarshalBinary()
	if err != nil {
		return types.PreparedCall{}, err
	}

	return types.PreparedCall{Hash: signed.Hash(), Raw: raw}, nil
}

func (e *Executor) Send(ctx context.Context, call types.PreparedCall) error {
	tx := new(gethtypes.Transaction)
	if err := tx.UnmarshalBinary(call.Raw); err != nil {
		return sdkerrors.NewPermanentError("malformed prepared call", err)
	}
	if tx.Hash() != call.Hash {
		return sdkerrors.NewPermanentError(fmt.Sprintf("prepared call hash mismatch: %s != %s", tx.Hash().Hex(), call.Hash.Hex()), nil)
	}

	err := e.client.SendTransaction(ctx, tx)
	if err != nil && isAlreadyKnown(err) {
		return nil
	}

	return classifySendError(err)
}

func (e *Executor) Outcome(ctx context.Context, hash common.Hash) (types.TransactionResult, error) {
	receipt, err := e.client.TransactionReceipt(ctx, hash)
	switch {
	case err == nil:
		res := types.TransactionResult{Hash: hash, Outcome: types.OutcomeSucceeded, RawData: receipt}
		if receipt.Status != gethtypes.ReceiptStatusSuccessful {
			res.Outcome = types.OutcomeReverted
			res.Reason = fmt.Sprintf("execution reverted in block %s", receipt.BlockNumber)
		}

		return res, nil
	case !errors.Is(err, ethereum.NotFound):
		return types.TransactionResult{}, sdkerrors.NewTransientError(fmt.Errorf("failed to get receipt: %w", err))
	}

	_, pending, err := e.client.TransactionByHash(ctx, hash)
	switch {
	case errors.Is(err, ethereum.NotFound):
		return types.TransactionResult{Hash: hash, Outcome: types.OutcomeUnknown}, nil
	case err != nil:
		return types.TransactionResult{}, sdkerrors.NewTransientError(fmt.Errorf("failed to get transaction: %w", err))
	case pending:
		return types.TransactionResult{Hash: hash, Outcome: types.OutcomePending}, nil
	default:
		// mined but the receipt is not indexed yet
		return types.TransactionResult{Hash: hash, Outcome: types.OutcomePending}, nil
	}
}
