// Package corks schedules quorum-gated, height-triggered cellar contract calls and dispatches them
// to the execution chain exactly once.
package corks

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/smartcontractkit/corks/cellar"
	"github.com/smartcontractkit/corks/chainstate"
	"github.com/smartcontractkit/corks/dispatcher"
	"github.com/smartcontractkit/corks/quorum"
	"github.com/smartcontractkit/corks/registry"
	"github.com/smartcontractkit/corks/scheduler"
	"github.com/smartcontractkit/corks/sdk"
	"github.com/smartcontractkit/corks/store"
	"github.com/smartcontractkit/corks/types"
)

// Steward is the node facing API: it accepts proposals and endorsements, consumes the chain-state
// feed and drives executable corks through the dispatcher.
type Steward struct {
	lggr       *zap.Logger
	chain      *chainstate.State
	registry   *registry.Registry
	tracker    *quorum.Tracker
	scheduler  *scheduler.Scheduler
	dispatcher *dispatcher.Dispatcher
	feed       sdk.HeightFeed
}

type stewardOptions struct {
	threshold    quorum.Threshold
	chainOpts    []chainstate.Option
	concurrency  int
	executor     sdk.Executor
	alerter      sdk.Alerter
	dispatchOpts []dispatcher.Option
	feed         sdk.HeightFeed
}

// Option configures a Steward.
type Option func(*stewardOptions)

// WithThreshold overrides quorum.DefaultThreshold.
func WithThreshold(th quorum.Threshold) Option {
	return func(o *stewardOptions) { o.threshold = th }
}

// WithValidatorSet records the validator set known at startup.
func WithValidatorSet(set types.ValidatorSet) Option {
	return func(o *stewardOptions) { o.chainOpts = append(o.chainOpts, chainstate.WithValidatorSet(set)) }
}

// WithStartHeight sets the final height known at startup.
func WithStartHeight(height uint64) Option {
	return func(o *stewardOptions) { o.chainOpts = append(o.chainOpts, chainstate.WithFinalHeight(height)) }
}

// WithConcurrency bounds the number of corks re-evaluated in parallel on a height event.
func WithConcurrency(n int) Option {
	return func(o *stewardOptions) { o.concurrency = n }
}

// WithExecutor sets the execution chain client. Without one the steward schedules corks but
// cannot dispatch them.
func WithExecutor(e sdk.Executor) Option {
	return func(o *stewardOptions) { o.executor = e }
}

// WithAlerter overrides the default log alerter.
func WithAlerter(a sdk.Alerter) Option {
	return func(o *stewardOptions) { o.alerter = a }
}

// WithDispatchConfig overrides dispatcher.DefaultConfig.
func WithDispatchConfig(cfg dispatcher.Config) Option {
	return func(o *stewardOptions) { o.dispatchOpts = append(o.dispatchOpts, dispatcher.WithConfig(cfg)) }
}

// WithHeightFeed subscribes Run to a chain-state feed.
func WithHeightFeed(feed sdk.HeightFeed) Option {
	return func(o *stewardOptions) { o.feed = feed }
}

// NewSteward loads the live corks from the store and wires the pipeline.
func NewSteward(lggr *zap.Logger, st store.Store, verifier sdk.ProofVerifier, opts ...Option) (*Steward, error) {
	o := stewardOptions{
		threshold: quorum.DefaultThreshold,
		alerter:   sdk.LogAlerter{},
	}
	for _, opt := range opts {
		opt(&o)
	}

	chain := chainstate.New(o.chainOpts...)

	reg, err := registry.New(lggr, st, chain,
		registry.WithEvaluator(scheduler.NewStateMachine(chain, o.threshold)),
	)
	if err != nil {
		return nil, err
	}

	tracker, err := quorum.NewTracker(lggr, reg, chain, verifier, o.threshold)
	if err != nil {
		return nil, err
	}

	var schedOpts []scheduler.Option
	if o.concurrency > 0 {
		schedOpts = append(schedOpts, scheduler.WithConcurrency(o.concurrency))
	}

	s := &Steward{
		lggr:      lggr.Named("steward"),
		chain:     chain,
		registry:  reg,
		tracker:   tracker,
		scheduler: scheduler.New(lggr, chain, reg, schedOpts...),
		feed:      o.feed,
	}
	if o.executor != nil {
		s.dispatcher = dispatcher.New(lggr, reg, o.executor, o.alerter, o.dispatchOpts...)
	}

	return s, nil
}

// ProposeCork encodes the call and proposes it on contract at the trigger height. Proposing a
// known cork again returns its identity.
func (s *Steward) ProposeCork(
	ctx context.Context, contract types.Address, call cellar.Call, height uint64, proposer common.Address,
) (types.CorkID, error) {
	payload, err := cellar.Encode(call)
	if err != nil {
		return types.CorkID{}, err
	}

	return s.registry.Propose(ctx, contract, height, payload, proposer)
}

// SubmitProposal proposes the cork of a proposal file and records every signature it carries as
// an endorsement. The cork stays proposed when some signatures are rejected, the rejections are
// returned joined.
func (s *Steward) SubmitProposal(ctx context.Context, p *CorkProposal, proposer common.Address) (types.CorkID, error) {
	if err := p.Validate(); err != nil {
		return types.CorkID{}, err
	}

	id, err := s.registry.Propose(ctx, p.Contract, p.Height, p.Payload, proposer)
	if err != nil {
		return types.CorkID{}, err
	}

	var errs []error
	for _, sig := range p.Signatures {
		validator, err := sig.RecoverEndorser(id)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if _, err := s.tracker.Endorse(ctx, id, validator, sig.ToBytes()); err != nil {
			errs = append(errs, err)
		}
	}

	return id, errors.Join(errs...)
}

// EndorseCork records the validator's endorsement and re-evaluates the cork.
func (s *Steward) EndorseCork(ctx context.Context, id types.CorkID, validator common.Address, proof []byte) (quorum.EndorsementResult, error) {
	return s.tracker.Endorse(ctx, id, validator, proof)
}

// QueryCork returns the cork, including archived ones.
func (s *Steward) QueryCork(id types.CorkID) (types.Cork, error) {
	return s.registry.Get(id)
}

// ListCorks returns the corks in any of the states in execution order, or all corks.
func (s *Steward) ListCorks(states ...types.CorkState) ([]types.Cork, error) {
	return s.registry.List(states...)
}

// Tally returns the current endorsement weight of the cork.
func (s *Steward) Tally(id types.CorkID) (quorum.Tally, error) {
	cork, err := s.registry.Get(id)
	if err != nil {
		return quorum.Tally{}, err
	}

	return s.tracker.TallyOf(&cork)
}

// OnChainHeightEvent applies one chain-state event.
func (s *Steward) OnChainHeightEvent(ctx context.Context, ev types.HeightEvent) error {
	return s.scheduler.OnHeightEvent(ctx, ev)
}

// CancelCork invalidates a cork that has not been dispatched.
func (s *Steward) CancelCork(ctx context.Context, id types.CorkID) error {
	return s.scheduler.Cancel(ctx, id)
}

// FinalHeight returns the final height of the consensus chain.
func (s *Steward) FinalHeight() uint64 {
	return s.chain.FinalHeight()
}

// Queue returns the executable corks in execution order.
func (s *Steward) Queue() []scheduler.Item {
	return s.scheduler.Queue().Items()
}

// Dispatch submits one executable cork and waits for its outcome.
func (s *Steward) Dispatch(ctx context.Context, id types.CorkID) (dispatcher.Result, error) {
	if s.dispatcher == nil {
		return dispatcher.Result{}, ErrNoExecutor
	}

	return s.dispatcher.Dispatch(ctx, id)
}

// Run recovers in-flight corks, then dispatches executable corks in queue order and, when a feed
// is configured, applies its events. It blocks until ctx is done.
func (s *Steward) Run(ctx context.Context) error {
	if s.dispatcher == nil {
		return ErrNoExecutor
	}

	if err := s.dispatcher.Recover(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.lggr.Error("crash recovery incomplete", zap.Error(err))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.dispatcher.Run(gctx, s.scheduler.Queue())
	})
	if s.feed != nil {
		g.Go(func() error {
			return s.feed.Run(gctx, s.handleFeedEvent)
		})
	}

	return g.Wait()
}

// handleFeedEvent stops the feed only when ctx is done. Rejected events are logged by the
// scheduler and skipped.
func (s *Steward) handleFeedEvent(ctx context.Context, ev types.HeightEvent) error {
	err := s.OnChainHeightEvent(ctx, ev)
	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil:
		return ctx.Err()
	case errors.Is(err, chainstate.ErrNonMonotonicHeight):
		s.lggr.Debug("skipping stale height event", zap.Uint64("height", ev.Height))
	default:
		s.lggr.Error("failed to apply height event", zap.Uint64("height", ev.Height), zap.Error(err))
	}

	return nil
}
