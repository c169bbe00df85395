// Package dispatcher submits executable corks to the execution chain at most once.
//
// Before a transaction leaves the process the signed call is stored with the cork as its
// in-flight record (state Dispatching). After a crash, Recover asks the execution chain about the
// recorded transaction first and only re-broadcasts the very same signed bytes when the chain has
// never seen them. A replayed transaction reuses its nonce and can never execute twice.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/ratelimit"
	"go.uber.org/zap"

	"github.com/smartcontractkit/corks/internal/metrics"
	"github.com/smartcontractkit/corks/registry"
	"github.com/smartcontractkit/corks/scheduler"
	"github.com/smartcontractkit/corks/sdk"
	sdkerrors "github.com/smartcontractkit/corks/sdk/errors"
	"github.com/smartcontractkit/corks/types"
)

// Corks is the registry surface used by the dispatcher.
type Corks interface {
	Get(id types.CorkID) (types.Cork, error)
	Update(ctx context.Context, id types.CorkID, fn func(*types.Cork) error) (types.Cork, error)
	List(states ...types.CorkState) ([]types.Cork, error)
}

// Source yields executable corks in execution order.
type Source interface {
	Pop() (scheduler.Item, bool)
	Notify() <-chan struct{}
}

// Result is the outcome of one dispatch.
type Result struct {
	ID      types.CorkID
	State   types.CorkState
	TxHash  common.Hash
	Outcome types.Outcome
	Reason  string
}

// Dispatcher drives executable corks through submission to a terminal state.
type Dispatcher struct {
	lggr     *zap.Logger
	corks    Corks
	executor sdk.Executor
	alerter  sdk.Alerter
	cfg      Config
	limiter  ratelimit.Limiter
	now      func() time.Time
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithConfig overrides DefaultConfig.
func WithConfig(cfg Config) Option {
	return func(d *Dispatcher) { d.cfg = cfg }
}

// WithClock overrides the time source of in-flight records.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

// New creates a Dispatcher.
func New(lggr *zap.Logger, corks Corks, executor sdk.Executor, alerter sdk.Alerter, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		lggr:     lggr.Named("dispatcher"),
		corks:    corks,
		executor: executor,
		alerter:  alerter,
		cfg:      DefaultConfig(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}

	if d.cfg.PollInterval.Duration <= 0 {
		d.cfg.PollInterval = DefaultConfig().PollInterval
	}
	if d.cfg.RatePerSecond > 0 {
		d.limiter = ratelimit.New(d.cfg.RatePerSecond)
	} else {
		d.limiter = ratelimit.NewUnlimited()
	}

	return d
}

// Dispatch submits an executable cork and waits for its outcome.
//
// A cork that is no longer executable when the in-flight record is written is not submitted and
// NotExecutableError is returned. Permanent failures and exhausted retries end in the Failed state
// with an operator alert and are reported through the Result, not as an error.
func (d *Dispatcher) Dispatch(ctx context.Context, id types.CorkID) (Result, error) {
	lggr := d.lggr.With(zap.Stringer("cork", id))

	cork, err := d.corks.Get(id)
	if err != nil {
		return Result{}, err
	}
	if cork.State != types.CorkStateExecutable {
		return Result{}, NewNotExecutableError(id, cork.State)
	}

	started := time.Now()
	var prepared types.PreparedCall
	err = d.retry(ctx, lggr, "prepare", func() error {
		var prepErr error
		prepared, prepErr = d.executor.Prepare(ctx, id.Contract, cork.Payload)

		return prepErr
	})
	metrics.ObserveDispatch("prepare", err, started)
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		// nothing left the process yet
		return d.fail(ctx, id, failureKind(err), fmt.Sprintf("prepare: %v", err))
	}

	cork, err = d.corks.Update(ctx, id, func(c *types.Cork) error {
		if c.State != types.CorkStateExecutable {
			return NewNotExecutableError(id, c.State)
		}
		c.State = types.CorkStateDispatching
		c.Dispatch = &types.Dispatch{
			TxHash:     prepared.Hash,
			RawTx:      prepared.Raw,
			Outcome:    types.OutcomePending,
			AcceptedAt: d.now().UTC(),
		}

		return nil
	})
	if err != nil {
		return Result{}, err
	}
	lggr.Info("cork in flight", zap.Stringer("tx", prepared.Hash))

	return d.submit(ctx, cork)
}

// Recover resumes every cork left in flight by a previous run. The execution chain is always
// asked about the recorded transaction before anything is sent again.
func (d *Dispatcher) Recover(ctx context.Context) error {
	inFlight, err := d.corks.List(types.CorkStateDispatching)
	if err != nil {
		return err
	}
	if len(inFlight) > 0 {
		d.lggr.Info("recovering in-flight corks", zap.Int("corks", len(inFlight)))
	}

	var errs []error
	for _, cork := range inFlight {
		if _, err := d.resume(ctx, cork); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			d.lggr.Error("failed to recover cork", zap.Stringer("cork", cork.ID), zap.Error(err))
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// Run dispatches queued corks one at a time in queue order until ctx is done.
func (d *Dispatcher) Run(ctx context.Context, queue Source) error {
	for {
		for {
			item, ok := queue.Pop()
			if !ok {
				break
			}
			if err := ctx.Err(); err != nil {
				return err
			}

			d.limiter.Take()
			res, err := d.Dispatch(ctx, item.ID)

			var notExecutable *NotExecutableError
			switch {
			case err == nil:
				d.lggr.Info("cork dispatched",
					zap.Stringer("cork", res.ID),
					zap.String("state", string(res.State)),
					zap.Stringer("tx", res.TxHash),
				)
			case errors.As(err, &notExecutable):
				d.lggr.Debug("skipping cork", zap.Stringer("cork", item.ID), zap.Error(err))
			case ctx.Err() != nil:
				return ctx.Err()
			default:
				d.lggr.Error("dispatch failed", zap.Stringer("cork", item.ID), zap.Error(err))
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-queue.Notify():
		}
	}
}

func (d *Dispatcher) resume(ctx context.Context, cork types.Cork) (Result, error) {
	if cork.Dispatch == nil {
		return Result{}, fmt.Errorf("%w: %s", ErrNoDispatchRecord, cork.ID)
	}
	lggr := d.lggr.With(zap.Stringer("cork", cork.ID), zap.Stringer("tx", cork.Dispatch.TxHash))

	started := time.Now()
	var res types.TransactionResult
	err := d.retry(ctx, lggr, "outcome", func() error {
		var outErr error
		res, outErr = d.executor.Outcome(ctx, cork.Dispatch.TxHash)

		return outErr
	})
	metrics.ObserveDispatch("recover", err, started)
	if err != nil {
		return Result{}, err
	}

	switch res.Outcome {
	case types.OutcomeSucceeded, types.OutcomeReverted:
		lggr.Info("in-flight cork already has an outcome", zap.String("outcome", string(res.Outcome)))
		return d.finish(ctx, cork.ID, res)
	case types.OutcomePending:
		lggr.Info("in-flight cork is pending")
		return d.await(ctx, cork)
	default:
		lggr.Info("in-flight cork unknown to the execution chain, re-broadcasting")
		return d.submit(ctx, cork)
	}
}

// submit sends the recorded signed transaction and waits for its outcome.
func (d *Dispatcher) submit(ctx context.Context, cork types.Cork) (Result, error) {
	lggr := d.lggr.With(zap.Stringer("cork", cork.ID), zap.Stringer("tx", cork.Dispatch.TxHash))
	call := types.PreparedCall{Hash: cork.Dispatch.TxHash, Raw: cork.Dispatch.RawTx}

	started := time.Now()
	err := d.retry(ctx, lggr, "send", func() error {
		return d.executor.Send(ctx, call)
	})
	metrics.ObserveDispatch("send", err, started)

	if err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}

		// The transaction may have been mined between the outcome query and the send, in which
		// case the node rejects the replay.
		res, outErr := d.executor.Outcome(ctx, call.Hash)
		if outErr != nil || res.Outcome == types.OutcomeUnknown {
			return d.fail(ctx, cork.ID, failureKind(err), fmt.Sprintf("send: %v", err))
		}
		lggr.Info("send rejected but the transaction is known", zap.String("outcome", string(res.Outcome)), zap.Error(err))
	} else {
		cork, err = d.corks.Update(ctx, cork.ID, func(c *types.Cork) error {
			if c.Dispatch == nil {
				return fmt.Errorf("%w: %s", ErrNoDispatchRecord, c.ID)
			}
			c.Dispatch.Submissions++

			return nil
		})
		if err != nil {
			return Result{}, err
		}
	}

	return d.await(ctx, cork)
}

// await polls the outcome of the in-flight transaction until it is final.
func (d *Dispatcher) await(ctx context.Context, cork types.Cork) (Result, error) {
	hash := cork.Dispatch.TxHash
	lggr := d.lggr.With(zap.Stringer("cork", cork.ID), zap.Stringer("tx", hash))

	pollCtx := ctx
	if timeout := d.cfg.OutcomeTimeout.Duration; timeout > 0 {
		var cancel context.CancelFunc
		pollCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	ticker := time.NewTicker(d.cfg.PollInterval.Duration)
	defer ticker.Stop()

	for {
		res, err := d.executor.Outcome(pollCtx, hash)
		switch {
		case err != nil && sdkerrors.IsPermanent(err):
			return d.fail(ctx, cork.ID, types.AlertDispatchFailed, fmt.Sprintf("outcome: %v", err))
		case err != nil:
			lggr.Warn("outcome query failed", zap.Error(err))
		case res.Outcome == types.OutcomeSucceeded || res.Outcome == types.OutcomeReverted:
			return d.finish(ctx, cork.ID, res)
		}

		select {
		case <-pollCtx.Done():
			if ctx.Err() != nil {
				return Result{}, ctx.Err()
			}
			timeoutErr := NewOutcomeTimeoutError(cork.ID, hash, d.cfg.OutcomeTimeout.Duration)
			d.alert(ctx, types.Alert{ID: cork.ID, Kind: types.AlertRetriesExhausted, Reason: timeoutErr.Error()})

			return Result{}, timeoutErr
		case <-ticker.C:
		}
	}
}

// finish records the final outcome reported by the execution chain.
func (d *Dispatcher) finish(ctx context.Context, id types.CorkID, res types.TransactionResult) (Result, error) {
	state := types.CorkStateExecuted
	if res.Outcome != types.OutcomeSucceeded {
		state = types.CorkStateFailed
	}

	cork, err := d.corks.Update(ctx, id, func(c *types.Cork) error {
		if c.State != types.CorkStateDispatching || c.Dispatch == nil {
			return fmt.Errorf("%w: %s in state %s", ErrNoDispatchRecord, id, c.State)
		}
		c.State = state
		c.Dispatch.Outcome = res.Outcome
		c.Dispatch.Reason = res.Reason

		return nil
	})
	if err != nil {
		return Result{}, err
	}

	if state == types.CorkStateFailed {
		d.alert(ctx, types.Alert{ID: id, Kind: types.AlertDispatchFailed, Reason: res.Reason})
	}

	return resultOf(cork), nil
}

// fail moves the cork to Failed, keeping any in-flight record, and raises an alert.
func (d *Dispatcher) fail(ctx context.Context, id types.CorkID, kind types.AlertKind, reason string) (Result, error) {
	cork, err := d.corks.Update(ctx, id, func(c *types.Cork) error {
		if c.State != types.CorkStateExecutable && c.State != types.CorkStateDispatching {
			return NewNotExecutableError(id, c.State)
		}
		c.State = types.CorkStateFailed
		if c.Dispatch == nil {
			c.Dispatch = &types.Dispatch{AcceptedAt: d.now().UTC()}
		}
		c.Dispatch.Outcome = types.OutcomeUnknown
		c.Dispatch.Reason = reason

		return nil
	})
	if err != nil {
		return Result{}, err
	}

	d.alert(ctx, types.Alert{ID: id, Kind: kind, Reason: reason})

	return resultOf(cork), nil
}

func (d *Dispatcher) alert(ctx context.Context, alert types.Alert) {
	metrics.ObserveAlert(alert.Kind)
	if err := d.alerter.Alert(ctx, alert); err != nil {
		d.lggr.Error("failed to raise alert", zap.Stringer("cork", alert.ID), zap.Error(err))
	}
}

// retry runs op with bounded exponential backoff. Permanent errors stop immediately.
func (d *Dispatcher) retry(ctx context.Context, lggr *zap.Logger, operation string, op func() error) error {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = d.cfg.InitialBackoff.Duration
	eb.MaxInterval = d.cfg.MaxBackoff.Duration
	eb.MaxElapsedTime = 0

	b := backoff.WithContext(backoff.WithMaxRetries(eb, d.cfg.MaxRetries), ctx)

	return backoff.RetryNotify(func() error {
		if err := op(); err != nil {
			if sdkerrors.IsPermanent(err) {
				return backoff.Permanent(err)
			}

			return err
		}

		return nil
	}, b, func(err error, wait time.Duration) {
		lggr.Warn("transient failure, retrying",
			zap.String("operation", operation),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	})
}

func failureKind(err error) types.AlertKind {
	if sdkerrors.IsPermanent(err) {
		return types.AlertDispatchFailed
	}

	return types.AlertRetriesExhausted
}

func resultOf(c types.Cork) Result {
	res := Result{ID: c.ID, State: c.State}
	if c.Dispatch != nil {
		res.TxHash = c.Dispatch.TxHash
		res.Outcome = c.Dispatch.Outcome
		res.Reason = c.Dispatch.Reason
	}

	return res
}

var _ Corks = (*registry.Registry)(nil)
