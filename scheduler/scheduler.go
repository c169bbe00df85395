package scheduler

import (
	"context"
	"errors"
	"slices"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/smartcontractkit/corks/chainstate"
	"github.com/smartcontractkit/corks/internal/metrics"
	"github.com/smartcontractkit/corks/registry"
	"github.com/smartcontractkit/corks/types"
)

const defaultConcurrency = 8

// ChainState is the chain view the scheduler advances.
type ChainState interface {
	Apply(ev types.HeightEvent) (chainstate.Transition, error)
	FinalHeight() uint64
	ProvisionalHeight() uint64
	CurrentValidatorSet() (types.ValidatorSet, error)
}

// Corks is the registry surface used by the scheduler.
type Corks interface {
	Get(id types.CorkID) (types.Cork, error)
	Update(ctx context.Context, id types.CorkID, fn func(*types.Cork) error) (types.Cork, error)
	Refresh(ctx context.Context, id types.CorkID) (types.Cork, error)
	LiveIDs() []types.CorkID
	Subscribe(l registry.Listener)
}

// Scheduler applies chain-state events and keeps the executable queue in sync with the
// registry.
type Scheduler struct {
	lggr        *zap.Logger
	chain       ChainState
	corks       Corks
	queue       *Queue
	concurrency int

	// eventMu serializes chain-state events in arrival order.
	eventMu sync.Mutex
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithConcurrency bounds the number of corks re-evaluated in parallel.
func WithConcurrency(n int) Option {
	return func(s *Scheduler) { s.concurrency = n }
}

// New creates a Scheduler and subscribes its queue to registry state changes. Corks that are
// already executable, e.g. after a restart, are queued immediately.
func New(lggr *zap.Logger, chain ChainState, corks Corks, opts ...Option) *Scheduler {
	s := &Scheduler{
		lggr:        lggr.Named("scheduler"),
		chain:       chain,
		corks:       corks,
		queue:       NewQueue(),
		concurrency: defaultConcurrency,
	}
	for _, opt := range opts {
		opt(s)
	}

	corks.Subscribe(s.onStateChange)

	for _, id := range corks.LiveIDs() {
		cork, err := corks.Get(id)
		if err == nil && cork.State == types.CorkStateExecutable {
			s.queue.Push(Item{ID: id, Seq: cork.Seq})
		}
	}
	metrics.SetQueueLength(s.queue.Len())

	return s
}

// Queue returns the executable queue consumed by the dispatcher.
func (s *Scheduler) Queue() *Queue {
	return s.queue
}

func (s *Scheduler) onStateChange(change types.StateChange) {
	metrics.ObserveTransition(change)

	switch {
	case change.To == types.CorkStateExecutable:
		s.queue.Push(Item{ID: change.ID, Seq: change.Seq})
	case change.From == types.CorkStateExecutable:
		s.queue.Remove(change.ID)
	}
	metrics.SetQueueLength(s.queue.Len())
}

// OnHeightEvent applies one chain-state event and re-evaluates the affected corks.
//
// Events must be delivered in order and are processed one at a time. A reorg reverts executable
// corks that were not yet dispatched, these are state changes and not errors. Failures to
// re-evaluate one cork are logged and never affect other corks.
func (s *Scheduler) OnHeightEvent(ctx context.Context, ev types.HeightEvent) error {
	s.eventMu.Lock()
	defer s.eventMu.Unlock()

	lggr := s.lggr.With(zap.Uint64("height", ev.Height), zap.Bool("final", ev.Final))

	tr, err := s.chain.Apply(ev)
	metrics.ObserveHeightEvent(ev, s.chain.FinalHeight(), err)
	if err != nil {
		lggr.Warn("rejected height event", zap.Error(err))
		return err
	}
	metrics.SetProvisionalHeight(s.chain.ProvisionalHeight())
	if tr.Reorg {
		lggr.Info("consensus chain reorganized", zap.Uint64("from", tr.PrevFinal), zap.Uint64("to", tr.Final))
	}
	if tr.SetChanged {
		if set, err := s.chain.CurrentValidatorSet(); err == nil {
			metrics.SetValidators(len(set.Validators))
			lggr.Info("validator set changed",
				zap.Uint64("effective", set.Height),
				zap.Stringers("validators", set.Addresses()),
			)
		}
	}

	if len(ev.RevokedContracts) > 0 {
		s.invalidateContracts(ctx, ev.RevokedContracts)
	}

	if !tr.Advanced() && !tr.Reorg && !tr.SetChanged {
		return nil
	}

	return s.reevaluate(ctx)
}

// OnQuorumChange re-evaluates one cork after its endorsements changed.
func (s *Scheduler) OnQuorumChange(ctx context.Context, id types.CorkID) (types.Cork, error) {
	return s.corks.Refresh(ctx, id)
}

// Cancel invalidates the cork. It fails with CancelTooLateError once the dispatcher has recorded
// the cork as in flight, or when it is already terminal. Cancelling an invalidated cork is a
// no-op.
func (s *Scheduler) Cancel(ctx context.Context, id types.CorkID) error {
	_, err := s.corks.Update(ctx, id, func(c *types.Cork) error {
		if !c.State.IsPreDispatch() {
			return NewCancelTooLateError(id, c.State)
		}
		c.State = types.CorkStateInvalidated

		return nil
	})

	var notFound *registry.NotFoundError
	if errors.As(err, &notFound) {
		cork, getErr := s.corks.Get(id)
		if getErr != nil {
			return err
		}
		if cork.State == types.CorkStateInvalidated {
			return nil
		}

		return NewCancelTooLateError(id, cork.State)
	}
	if err != nil {
		return err
	}

	s.lggr.Info("cork cancelled", zap.Stringer("cork", id))

	return nil
}

func (s *Scheduler) invalidateContracts(ctx context.Context, contracts []types.Address) {
	for _, id := range s.corks.LiveIDs() {
		if !slices.Contains(contracts, id.Contract) {
			continue
		}

		if err := s.Cancel(ctx, id); err != nil {
			s.lggr.Warn("could not invalidate cork of revoked contract", zap.Stringer("cork", id), zap.Error(err))
			continue
		}
		s.lggr.Info("invalidated cork of revoked contract", zap.Stringer("cork", id))
	}
}

func (s *Scheduler) reevaluate(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for _, id := range s.corks.LiveIDs() {
		g.Go(func() error {
			_, err := s.corks.Refresh(gctx, id)
			var notFound *registry.NotFoundError
			switch {
			case err == nil:
			case errors.As(err, &notFound):
				// archived after the identities were listed
			case gctx.Err() != nil:
				return gctx.Err()
			default:
				s.lggr.Error("failed to re-evaluate cork", zap.Stringer("cork", id), zap.Error(err))
			}

			return nil
		})
	}

	return g.Wait()
}
