package evm

import (
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/core"
	"github.com/ethereum/go-ethereum/core/txpool"

	sdkerrors "github.com/smartcontractkit/corks/sdk/errors"
)

// ErrSignerMismatch is returned when an endorsement proof was not signed by the endorsing
// validator.
var ErrSignerMismatch = errors.New("endorsement signed by another key")

// rejections are node errors that do not change when the same transaction is sent again.
var rejections = []string{
	core.ErrNonceTooLow.Error(),
	core.ErrInsufficientFunds.Error(),
	core.ErrIntrinsicGas.Error(),
	core.ErrGasLimitReached.Error(),
	txpool.ErrReplaceUnderpriced.Error(),
	txpool.ErrUnderpriced.Error(),
	"invalid sender",
}

// isAlreadyKnown reports whether the node already has the transaction, which makes a re-send a
// success.
func isAlreadyKnown(err error) bool {
	return strings.Contains(err.Error(), txpool.ErrAlreadyKnown.Error())
}

// classifySendError sorts a SendTransaction failure into permanent and transient.
func classifySendError(err error) error {
	if err == nil {
		return nil
	}

	msg := err.Error()
	for _, r := range rejections {
		if strings.Contains(msg, r) {
			return sdkerrors.NewPermanentError(r, err)
		}
	}

	return sdkerrors.NewTransientError(err)
}

// classifyEstimateError marks calls that the target contract rejects as permanent.
func classifyEstimateError(err error) error {
	if strings.Contains(err.Error(), "revert") {
		return sdkerrors.NewPermanentError("call reverts", err)
	}

	return classifySendError(err)
}
