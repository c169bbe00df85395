package dispatcher

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/smartcontractkit/corks/chainstate"
	"github.com/smartcontractkit/corks/internal/testutils"
	"github.com/smartcontractkit/corks/quorum"
	"github.com/smartcontractkit/corks/registry"
	"github.com/smartcontractkit/corks/scheduler"
	sdkerrors "github.com/smartcontractkit/corks/sdk/errors"
	"github.com/smartcontractkit/corks/sdk/mocks"
	"github.com/smartcontractkit/corks/store"
	"github.com/smartcontractkit/corks/store/boltdb"
	"github.com/smartcontractkit/corks/store/memorydb"
	"github.com/smartcontractkit/corks/types"
)

var (
	contractC = types.AddressFromEVM(common.HexToAddress("0xc0ffee"))
	proposer  = common.HexToAddress("0x1")
	preparedA = types.PreparedCall{Hash: common.HexToHash("0xaa"), Raw: []byte{0xaa}}
)

func ptr[T any](v T) *T { return &v }

func testConfig() Config {
	return Config{
		MaxRetries:     2,
		InitialBackoff: types.NewDuration(time.Millisecond),
		MaxBackoff:     types.NewDuration(2 * time.Millisecond),
		PollInterval:   types.NewDuration(time.Millisecond),
		OutcomeTimeout: types.NewDuration(5 * time.Second),
	}
}

func newRegistry(t *testing.T, st store.Store) *registry.Registry {
	t.Helper()

	reg, err := registry.New(zap.NewNop(), st, chainstate.New(chainstate.WithFinalHeight(50)))
	require.NoError(t, err)

	return reg
}

func executableCork(t *testing.T, reg *registry.Registry, payload byte) types.CorkID {
	t.Helper()

	ctx := context.Background()
	id, err := reg.Propose(ctx, contractC, 100, []byte{payload}, proposer)
	require.NoError(t, err)

	_, err = reg.Update(ctx, id, func(c *types.Cork) error {
		c.State = types.CorkStateExecutable
		return nil
	})
	require.NoError(t, err)

	return id
}

func alertOf(id types.CorkID, kind types.AlertKind) any {
	return mock.MatchedBy(func(a types.Alert) bool {
		return a.ID == id && a.Kind == kind
	})
}

func TestDispatcher_Dispatch(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	reg := newRegistry(t, memorydb.New())
	id := executableCork(t, reg, 0x01)
	chain := newFakeChain()

	d := New(zap.NewNop(), reg, chain, mocks.NewAlerter(t), WithConfig(testConfig()))
	res, err := d.Dispatch(ctx, id)
	require.NoError(t, err)

	assert.Equal(t, id, res.ID)
	assert.Equal(t, types.CorkStateExecuted, res.State)
	assert.Equal(t, types.OutcomeSucceeded, res.Outcome)
	assert.Equal(t, 1, chain.executed())

	cork, err := reg.Get(id)
	require.NoError(t, err)
	assert.Equal(t, types.CorkStateExecuted, cork.State)
	require.NotNil(t, cork.Dispatch)
	assert.Equal(t, 1, cork.Dispatch.Submissions)
	assert.Empty(t, reg.LiveIDs(), "executed corks are archived")

	_, err = d.Dispatch(ctx, id)
	var notExecutable *NotExecutableError
	require.ErrorAs(t, err, &notExecutable)
	assert.Equal(t, types.CorkStateExecuted, notExecutable.State)
	assert.Len(t, chain.sends(), 1)
}

func TestDispatcher_Dispatch_Reverted(t *testing.T) {
	t.Parallel()

	reg := newRegistry(t, memorydb.New())
	id := executableCork(t, reg, 0x01)
	chain := newFakeChain()
	chain.revert = true

	alerter := mocks.NewAlerter(t)
	alerter.EXPECT().Alert(mock.Anything, alertOf(id, types.AlertDispatchFailed)).Return(nil).Once()

	d := New(zap.NewNop(), reg, chain, alerter, WithConfig(testConfig()))
	res, err := d.Dispatch(context.Background(), id)
	require.NoError(t, err)

	assert.Equal(t, types.CorkStateFailed, res.State)
	assert.Equal(t, types.OutcomeReverted, res.Outcome)
	assert.Equal(t, "execution reverted", res.Reason)
	assert.Len(t, chain.sends(), 1, "permanent failures are not retried")
}

func TestDispatcher_Dispatch_SendFailures(t *testing.T) {
	t.Parallel()

	transient := sdkerrors.NewTransientError(errors.New("connection reset"))

	tests := []struct {
		name      string
		sendErrs  []error
		wantSends int
		wantState types.CorkState
		wantAlert types.AlertKind
	}{
		{
			name:      "transient failures are retried",
			sendErrs:  []error{transient, transient, nil},
			wantSends: 3,
			wantState: types.CorkStateExecuted,
		},
		{
			name:      "retries are bounded",
			sendErrs:  []error{transient, transient, transient},
			wantSends: 3,
			wantState: types.CorkStateFailed,
			wantAlert: types.AlertRetriesExhausted,
		},
		{
			name:      "permanent failure is not retried",
			sendErrs:  []error{sdkerrors.NewPermanentError("insufficient funds", nil)},
			wantSends: 1,
			wantState: types.CorkStateFailed,
			wantAlert: types.AlertDispatchFailed,
		},
		{
			name:      "unclassified errors are retried",
			sendErrs:  []error{errors.New("i/o timeout"), nil},
			wantSends: 2,
			wantState: types.CorkStateExecuted,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			reg := newRegistry(t, memorydb.New())
			id := executableCork(t, reg, 0x01)

			executor := mocks.NewExecutor(t)
			executor.EXPECT().Prepare(mock.Anything, contractC, []byte{0x01}).Return(preparedA, nil).Once()

			sends := 0
			delivered := false
			executor.EXPECT().Send(mock.Anything, preparedA).RunAndReturn(func(context.Context, types.PreparedCall) error {
				err := tt.sendErrs[sends]
				sends++
				if err == nil {
					delivered = true
				}

				return err
			}).Times(tt.wantSends)
			executor.EXPECT().Outcome(mock.Anything, preparedA.Hash).RunAndReturn(func(context.Context, common.Hash) (types.TransactionResult, error) {
				if delivered {
					return types.TransactionResult{Hash: preparedA.Hash, Outcome: types.OutcomeSucceeded}, nil
				}

				return types.TransactionResult{Hash: preparedA.Hash, Outcome: types.OutcomeUnknown}, nil
			})

			alerter := mocks.NewAlerter(t)
			if tt.wantAlert != "" {
				alerter.EXPECT().Alert(mock.Anything, alertOf(id, tt.wantAlert)).Return(nil).Once()
			}

			d := New(zap.NewNop(), reg, executor, alerter, WithConfig(testConfig()))
			res, err := d.Dispatch(context.Background(), id)
			require.NoError(t, err)
			assert.Equal(t, tt.wantState, res.State)
			assert.Equal(t, tt.wantSends, sends)
		})
	}
}

func TestDispatcher_Dispatch_ReplayRejectedButMined(t *testing.T) {
	t.Parallel()

	reg := newRegistry(t, memorydb.New())
	id := executableCork(t, reg, 0x01)

	executor := mocks.NewExecutor(t)
	executor.EXPECT().Prepare(mock.Anything, mock.Anything, mock.Anything).Return(preparedA, nil).Once()
	executor.EXPECT().Send(mock.Anything, preparedA).Return(sdkerrors.NewPermanentError("nonce too low", nil)).Once()
	executor.EXPECT().Outcome(mock.Anything, preparedA.Hash).
		Return(types.TransactionResult{Hash: preparedA.Hash, Outcome: types.OutcomeSucceeded}, nil)

	d := New(zap.NewNop(), reg, executor, mocks.NewAlerter(t), WithConfig(testConfig()))
	res, err := d.Dispatch(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, types.CorkStateExecuted, res.State)
}

func TestDispatcher_Dispatch_NotExecutable(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	reg := newRegistry(t, memorydb.New())
	id, err := reg.Propose(ctx, contractC, 100, []byte{0x01}, proposer)
	require.NoError(t, err)

	d := New(zap.NewNop(), reg, mocks.NewExecutor(t), mocks.NewAlerter(t), WithConfig(testConfig()))

	_, err = d.Dispatch(ctx, id)
	require.ErrorAs(t, err, new(*NotExecutableError))

	_, err = d.Dispatch(ctx, types.NewCorkID(contractC, 100, []byte{0x09}))
	require.ErrorAs(t, err, new(*registry.NotFoundError))
}

func TestDispatcher_Dispatch_CancelledWhilePreparing(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	reg := newRegistry(t, memorydb.New())
	id := executableCork(t, reg, 0x01)

	executor := mocks.NewExecutor(t)
	executor.EXPECT().Prepare(mock.Anything, mock.Anything, mock.Anything).
		RunAndReturn(func(context.Context, types.Address, []byte) (types.PreparedCall, error) {
			_, err := reg.Update(ctx, id, func(c *types.Cork) error {
				c.State = types.CorkStateInvalidated
				return nil
			})

			return preparedA, err
		}).Once()

	d := New(zap.NewNop(), reg, executor, mocks.NewAlerter(t), WithConfig(testConfig()))
	_, err := d.Dispatch(ctx, id)
	require.ErrorAs(t, err, new(*registry.NotFoundError), "the invalidated cork is archived")

	cork, err := reg.Get(id)
	require.NoError(t, err)
	assert.Equal(t, types.CorkStateInvalidated, cork.State)
	assert.Nil(t, cork.Dispatch)
}

func TestDispatcher_Dispatch_OutcomeTimeout(t *testing.T) {
	t.Parallel()

	reg := newRegistry(t, memorydb.New())
	id := executableCork(t, reg, 0x01)

	executor := mocks.NewExecutor(t)
	executor.EXPECT().Prepare(mock.Anything, mock.Anything, mock.Anything).Return(preparedA, nil).Once()
	executor.EXPECT().Send(mock.Anything, preparedA).Return(nil).Once()
	executor.EXPECT().Outcome(mock.Anything, preparedA.Hash).
		Return(types.TransactionResult{Hash: preparedA.Hash, Outcome: types.OutcomePending}, nil)

	alerter := mocks.NewAlerter(t)
	alerter.EXPECT().Alert(mock.Anything, alertOf(id, types.AlertRetriesExhausted)).Return(nil).Once()

	cfg := testConfig()
	cfg.OutcomeTimeout = types.NewDuration(20 * time.Millisecond)

	d := New(zap.NewNop(), reg, executor, alerter, WithConfig(cfg))
	_, err := d.Dispatch(context.Background(), id)
	require.ErrorAs(t, err, new(*OutcomeTimeoutError))

	cork, err := reg.Get(id)
	require.NoError(t, err)
	assert.Equal(t, types.CorkStateDispatching, cork.State, "stays in flight until recovered")
}

func TestDispatcher_CrashRecovery(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		// reached reports whether the transaction reached the chain before the crash
		reached   bool
		wantSends int
	}{
		{name: "crash after the transaction left the process", reached: true, wantSends: 1},
		{name: "crash before the transaction left the process", reached: false, wantSends: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			path := filepath.Join(t.TempDir(), "corks.db")
			st, err := boltdb.New(path)
			require.NoError(t, err)

			reg := newRegistry(t, st)
			id := executableCork(t, reg, 0x01)

			chain := newFakeChain()
			crashCtx, crash := context.WithCancel(context.Background())
			chain.onSend = func(_ context.Context, _ types.PreparedCall, accept func()) error {
				if tt.reached {
					accept()
				}
				crash()

				return context.Canceled
			}

			_, err = New(zap.NewNop(), reg, chain, mocks.NewAlerter(t), WithConfig(testConfig())).Dispatch(crashCtx, id)
			require.ErrorIs(t, err, context.Canceled)
			require.NoError(t, st.Close())

			// restart on the same database
			st, err = boltdb.New(path)
			require.NoError(t, err)
			t.Cleanup(func() { _ = st.Close() })

			reg = newRegistry(t, st)
			cork, err := reg.Get(id)
			require.NoError(t, err)
			require.Equal(t, types.CorkStateDispatching, cork.State)
			require.NotNil(t, cork.Dispatch)

			chain.onSend = nil
			d := New(zap.NewNop(), reg, chain, mocks.NewAlerter(t), WithConfig(testConfig()))
			require.NoError(t, d.Recover(context.Background()))

			cork, err = reg.Get(id)
			require.NoError(t, err)
			assert.Equal(t, types.CorkStateExecuted, cork.State)

			assert.Equal(t, 1, chain.prepares, "the call is signed once")
			assert.Equal(t, 1, chain.executed(), "the call executes once")

			sends := chain.sends()
			require.Len(t, sends, tt.wantSends)
			for _, raw := range sends {
				assert.Equal(t, cork.Dispatch.RawTx, raw, "only the recorded transaction is sent")
			}

			// a second recovery finds nothing in flight
			require.NoError(t, d.Recover(context.Background()))
			assert.Len(t, chain.sends(), tt.wantSends)
		})
	}
}

func TestDispatcher_Recover_Pending(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	reg := newRegistry(t, memorydb.New())
	id := executableCork(t, reg, 0x01)
	_, err := reg.Update(ctx, id, func(c *types.Cork) error {
		c.State = types.CorkStateDispatching
		c.Dispatch = &types.Dispatch{TxHash: preparedA.Hash, RawTx: preparedA.Raw, Submissions: 1, Outcome: types.OutcomePending}
		return nil
	})
	require.NoError(t, err)

	executor := mocks.NewExecutor(t)
	executor.EXPECT().Outcome(mock.Anything, preparedA.Hash).
		Return(types.TransactionResult{Hash: preparedA.Hash, Outcome: types.OutcomePending}, nil).Twice()
	executor.EXPECT().Outcome(mock.Anything, preparedA.Hash).
		Return(types.TransactionResult{Hash: preparedA.Hash, Outcome: types.OutcomeSucceeded}, nil).Once()

	d := New(zap.NewNop(), reg, executor, mocks.NewAlerter(t), WithConfig(testConfig()))
	require.NoError(t, d.Recover(ctx))

	cork, err := reg.Get(id)
	require.NoError(t, err)
	assert.Equal(t, types.CorkStateExecuted, cork.State)
	assert.Equal(t, 1, cork.Dispatch.Submissions)
}

func TestDispatcher_Run(t *testing.T) {
	t.Parallel()

	reg := newRegistry(t, memorydb.New())
	queue := scheduler.NewQueue()
	var ids []types.CorkID
	for _, p := range []byte{0x03, 0x01, 0x02} {
		ids = append(ids, executableCork(t, reg, p))
	}
	// pushed out of order
	for _, id := range []types.CorkID{ids[2], ids[0], ids[1]} {
		cork, err := reg.Get(id)
		require.NoError(t, err)
		queue.Push(scheduler.Item{ID: id, Seq: cork.Seq})
	}

	chain := newFakeChain()
	d := New(zap.NewNop(), reg, chain, mocks.NewAlerter(t), WithConfig(testConfig()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx, queue) }()

	require.Eventually(t, func() bool { return len(reg.LiveIDs()) == 0 }, 5*time.Second, 5*time.Millisecond)
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)

	// dispatched in proposal order
	sends := chain.sends()
	require.Len(t, sends, 3)
	for i, p := range []byte{0x03, 0x01, 0x02} {
		assert.Equal(t, p, sends[i][types.AddressLength], "send %d", i)
	}
}

func TestDispatcher_Dispatch_AfterReorg(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	validators := testutils.MakeNewECDSASigners(3)
	chain := chainstate.New(
		chainstate.WithFinalHeight(50),
		chainstate.WithValidatorSet(testutils.ValidatorSet(0, 10, validators)),
	)
	reg, err := registry.New(zap.NewNop(), memorydb.New(), chain,
		registry.WithEvaluator(scheduler.NewStateMachine(chain, quorum.DefaultThreshold)))
	require.NoError(t, err)

	id, err := reg.Propose(ctx, contractC, 100, []byte{0x01}, proposer)
	require.NoError(t, err)
	for _, v := range validators {
		_, err = reg.Update(ctx, id, func(c *types.Cork) error {
			c.Endorsements = append(c.Endorsements, types.Endorsement{Validator: v.Address(), Proof: v.Endorse(id)})
			return nil
		})
		require.NoError(t, err)
	}

	_, err = chain.Apply(types.HeightEvent{Height: 100, Final: true})
	require.NoError(t, err)
	cork, err := reg.Refresh(ctx, id)
	require.NoError(t, err)
	require.Equal(t, types.CorkStateExecutable, cork.State)

	// the reorg is applied but the scheduler has not re-evaluated the cork yet
	_, err = chain.Apply(types.HeightEvent{Height: 90, Final: true, ReorgFrom: ptr(uint64(100))})
	require.NoError(t, err)

	exec := newFakeChain()
	d := New(zap.NewNop(), reg, exec, mocks.NewAlerter(t), WithConfig(testConfig()))

	_, err = d.Dispatch(ctx, id)
	var notExecutable *NotExecutableError
	require.ErrorAs(t, err, &notExecutable)
	assert.Equal(t, types.CorkStateReady, notExecutable.State)
	assert.Empty(t, exec.sends())

	cork, err = reg.Get(id)
	require.NoError(t, err)
	assert.Equal(t, types.CorkStateReady, cork.State)
	assert.Nil(t, cork.Dispatch)
}
