package e2e

import (
	"context"
	"sync"
	"testing"
	"time"

	gethTypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"

	"github.com/smartcontractkit/corks"
	"github.com/smartcontractkit/corks/cellar"
	"github.com/smartcontractkit/corks/dispatcher"
	"github.com/smartcontractkit/corks/internal/testutils"
	"github.com/smartcontractkit/corks/internal/testutils/evmsim"
	"github.com/smartcontractkit/corks/sdk/evm"
	"github.com/smartcontractkit/corks/store/memorydb"
	"github.com/smartcontractkit/corks/types"
)

const blockTime = 5 * time.Millisecond

func TestStewardSuite(t *testing.T) {
	t.Parallel()

	suite.Run(t, new(StewardTestSuite))
}

// recordingAlerter keeps every alert raised by the dispatcher.
type recordingAlerter struct {
	mu     sync.Mutex
	alerts []types.Alert
}

func (a *recordingAlerter) Alert(_ context.Context, alert types.Alert) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.alerts = append(a.alerts, alert)

	return nil
}

func (a *recordingAlerter) all() []types.Alert {
	a.mu.Lock()
	defer a.mu.Unlock()

	return append([]types.Alert(nil), a.alerts...)
}

// StewardTestSuite runs validator nodes against a simulated execution chain whose blocks are also
// the consensus heights.
type StewardTestSuite struct {
	suite.Suite

	chain      evmsim.SimulatedChain
	validators []testutils.ECDSASigner
	accepting  types.Address
	reverting  types.Address

	cancelMining context.CancelFunc
	mining       sync.WaitGroup
}

// SetupTest deploys the target contracts and starts producing a block every blockTime.
func (s *StewardTestSuite) SetupTest() {
	t := s.T()

	s.chain = evmsim.NewSimulatedChain(t, 1)
	s.validators = testutils.MakeNewECDSASigners(3)
	s.accepting = types.AddressFromEVM(s.chain.DeployBytecode(t, s.chain.Signers[0], evmsim.AcceptingContractCode))
	s.reverting = types.AddressFromEVM(s.chain.DeployBytecode(t, s.chain.Signers[0], evmsim.RevertingContractCode))

	ctx, cancel := context.WithCancel(context.Background())
	s.cancelMining = cancel
	s.mining.Add(1)
	go func() {
		defer s.mining.Done()

		ticker := time.NewTicker(blockTime)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.chain.Backend.Commit()
			}
		}
	}()
}

func (s *StewardTestSuite) TearDownTest() {
	s.cancelMining()
	s.mining.Wait()
}

func (s *StewardTestSuite) head() uint64 {
	header, err := s.chain.Backend.Client().HeaderByNumber(context.Background(), nil)
	s.Require().NoError(err)

	return header.Number.Uint64()
}

// startNode runs a steward until the test ends.
func (s *StewardTestSuite) startNode(alerter *recordingAlerter, execOpts ...evm.ExecutorOption) *corks.Steward {
	lggr := zap.NewNop()
	client := s.chain.Backend.Client()
	set := testutils.ValidatorSet(0, 100, s.validators)

	executor := evm.NewExecutor(client, s.chain.Signers[0].NewTransactOpts(s.T()), evmsim.SimulatedChainID, execOpts...)
	feed := evm.NewHeightFeed(lggr, client, blockTime, evm.WithConfirmations(0), evm.WithValidatorSet(set))

	steward, err := corks.NewSteward(lggr, memorydb.New(), evm.SignatureVerifier{},
		corks.WithValidatorSet(set),
		corks.WithStartHeight(s.head()),
		corks.WithExecutor(executor),
		corks.WithAlerter(alerter),
		corks.WithHeightFeed(feed),
		corks.WithDispatchConfig(dispatcher.Config{
			MaxRetries:     3,
			InitialBackoff: types.NewDuration(blockTime),
			MaxBackoff:     types.NewDuration(4 * blockTime),
			PollInterval:   types.NewDuration(blockTime),
			OutcomeTimeout: types.NewDuration(10 * time.Second),
		}),
	)
	s.Require().NoError(err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- steward.Run(ctx) }()

	s.T().Cleanup(func() {
		cancel()
		<-done
	})

	return steward
}

// submit schedules call on contract a few blocks ahead, endorsed by the first n validators.
func (s *StewardTestSuite) submit(steward *corks.Steward, contract types.Address, call cellar.Call, n int) types.CorkID {
	proposal, err := corks.NewCorkProposal(contract, call, s.head()+20, "e2e")
	s.Require().NoError(err)

	for _, v := range s.validators[:n] {
		s.Require().NoError(corks.Sign(proposal, corks.NewPrivateKeySigner(v.Key)))
	}

	id, err := steward.SubmitProposal(context.Background(), proposal, s.validators[0].Address())
	s.Require().NoError(err)

	return id
}

func (s *StewardTestSuite) waitForState(steward *corks.Steward, id types.CorkID, want types.CorkState) types.Cork {
	var cork types.Cork
	s.Require().Eventually(func() bool {
		var err error
		cork, err = steward.QueryCork(id)

		return err == nil && cork.State == want
	}, 10*time.Second, blockTime, "cork never reached %s", want)

	return cork
}

func (s *StewardTestSuite) TestQuorumCorkExecutesAtTriggerHeight() {
	alerter := &recordingAlerter{}
	steward := s.startNode(alerter)

	id := s.submit(steward, s.accepting, cellar.SetFee{NewFee: 500}, 2)

	cork := s.waitForState(steward, id, types.CorkStateExecuted)
	s.Require().NotNil(cork.Dispatch)
	s.Equal(types.OutcomeSucceeded, cork.Dispatch.Outcome)

	receipt, err := s.chain.Backend.Client().TransactionReceipt(context.Background(), cork.Dispatch.TxHash)
	s.Require().NoError(err)
	s.Equal(gethTypes.ReceiptStatusSuccessful, receipt.Status)
	s.Greater(receipt.BlockNumber.Uint64(), id.Height)

	tx, _, err := s.chain.Backend.Client().TransactionByHash(context.Background(), cork.Dispatch.TxHash)
	s.Require().NoError(err)
	target, err := id.Contract.EVM()
	s.Require().NoError(err)
	s.Equal(&target, tx.To())

	s.Empty(alerter.all())
}

func (s *StewardTestSuite) TestSingleEndorsementIsNeverSent() {
	steward := s.startNode(&recordingAlerter{})

	id := s.submit(steward, s.accepting, cellar.Reinvest{}, 1)

	s.Require().Eventually(func() bool {
		return steward.FinalHeight() > id.Height+10
	}, 10*time.Second, blockTime)

	cork, err := steward.QueryCork(id)
	s.Require().NoError(err)
	s.Equal(types.CorkStateEndorsed, cork.State)

	nonce, err := s.chain.Backend.Client().NonceAt(context.Background(), s.chain.Signers[0].Address(s.T()), nil)
	s.Require().NoError(err)
	s.Equal(uint64(2), nonce, "only the contract deployments were sent")
}

func (s *StewardTestSuite) TestRevertedCorkFails() {
	alerter := &recordingAlerter{}
	steward := s.startNode(alerter, evm.WithGasLimit(100_000))

	id := s.submit(steward, s.reverting, cellar.Reinvest{}, 3)

	cork := s.waitForState(steward, id, types.CorkStateFailed)
	s.Require().NotNil(cork.Dispatch)
	s.Equal(types.OutcomeReverted, cork.Dispatch.Outcome)

	alerts := alerter.all()
	s.Require().Len(alerts, 1)
	s.Equal(types.Alert{ID: id, Kind: types.AlertDispatchFailed, Reason: alerts[0].Reason}, alerts[0])
}

func (s *StewardTestSuite) TestCancelledCorkIsNeverSent() {
	steward := s.startNode(&recordingAlerter{})

	id := s.submit(steward, s.accepting, cellar.Reinvest{}, 3)
	s.Require().NoError(steward.CancelCork(context.Background(), id))

	s.Require().Eventually(func() bool {
		return steward.FinalHeight() > id.Height+5
	}, 10*time.Second, blockTime)

	cork, err := steward.QueryCork(id)
	s.Require().NoError(err)
	s.Equal(types.CorkStateInvalidated, cork.State)
	s.Nil(cork.Dispatch)
}

