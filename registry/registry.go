// Package registry keeps the cork records shared by proposal intake, endorsement intake, the
// scheduler and the dispatcher.
//
// All mutations of one identity are serialized through Update, distinct identities never block
// each other. The state of a pre-dispatch cork is always re-derived by the configured Evaluator
// inside the same critical section, so readers never see a state that disagrees with the
// recorded endorsements and the chain height.
package registry

import (
	"bytes"
	"context"
	"errors"
	"reflect"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/smartcontractkit/corks/store"
	"github.com/smartcontractkit/corks/types"
)

// HeightSource exposes the final height of the consensus chain.
type HeightSource interface {
	FinalHeight() uint64
}

// Evaluator derives the lifecycle state of a pre-dispatch cork.
type Evaluator interface {
	Evaluate(cork *types.Cork) (types.CorkState, error)
}

// Listener receives every state change. It is called while the identity is locked and must not
// call back into the registry for the same identity.
type Listener func(types.StateChange)

type entry struct {
	mu   sync.Mutex
	cork types.Cork
	// pending is set while Propose persists a new identity. Readers treat it as absent.
	pending  atomic.Bool
	archived bool
}

// Registry is the in-memory view of the store.
type Registry struct {
	lggr    *zap.Logger
	store   store.Store
	heights HeightSource
	now     func() time.Time

	mu        sync.RWMutex
	entries   map[types.CorkID]*entry
	seq       uint64
	evaluator Evaluator

	listenersMu sync.RWMutex
	listeners   []Listener
}

// Option configures a Registry.
type Option func(*Registry)

// WithEvaluator sets the state evaluator applied on every update.
func WithEvaluator(e Evaluator) Option {
	return func(r *Registry) { r.evaluator = e }
}

// WithClock overrides the time source used for proposal timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// New loads all live corks from the store.
func New(lggr *zap.Logger, st store.Store, heights HeightSource, opts ...Option) (*Registry, error) {
	r := &Registry{
		lggr:    lggr.Named("registry"),
		store:   st,
		heights: heights,
		now:     time.Now,
		entries: make(map[types.CorkID]*entry),
	}
	for _, opt := range opts {
		opt(r)
	}

	if err := st.ForEach(func(c types.Cork) error {
		r.entries[c.ID] = &entry{cork: c}
		r.seq = max(r.seq, c.Seq)

		return nil
	}); err != nil {
		return nil, err
	}
	if err := st.ForEachArchived(func(c types.Cork) error {
		r.seq = max(r.seq, c.Seq)
		return nil
	}); err != nil {
		return nil, err
	}

	r.lggr.Info("registry loaded", zap.Int("corks", len(r.entries)), zap.Uint64("seq", r.seq))

	return r, nil
}

// SetEvaluator sets the evaluator after construction, for evaluators that depend on the
// registry themselves.
func (r *Registry) SetEvaluator(e Evaluator) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.evaluator = e
}

// Subscribe registers a state change listener.
func (r *Registry) Subscribe(l Listener) {
	r.listenersMu.Lock()
	defer r.listenersMu.Unlock()

	r.listeners = append(r.listeners, l)
}

// Propose records a new cork in the Proposed state.
//
// Proposing an identity that is already known, live or archived, returns that identity and leaves
// the record untouched. A new cork must trigger strictly above the current final height.
func (r *Registry) Propose(ctx context.Context, contract types.Address, height uint64, payload []byte, proposer common.Address) (types.CorkID, error) {
	if err := ctx.Err(); err != nil {
		return types.CorkID{}, err
	}
	if len(payload) == 0 {
		return types.CorkID{}, ErrEmptyPayload
	}

	id := types.NewCorkID(contract, height, payload)
	lggr := r.lggr.With(zap.Stringer("cork", id))

	e := r.reserve(id)
	if e == nil {
		lggr.Debug("duplicate proposal of live cork")
		return id, nil
	}
	// e.mu is held: the identity is invisible to readers until it is persisted or released.
	defer e.mu.Unlock()

	release := func() { r.release(id, e) }

	if _, err := r.store.GetArchived(id); err == nil {
		release()
		lggr.Debug("duplicate proposal of archived cork")

		return id, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		release()
		return types.CorkID{}, err
	}

	if final := r.heights.FinalHeight(); height <= final {
		release()
		return types.CorkID{}, NewPastHeightError(height, final)
	}

	cork := types.Cork{
		ID:         id,
		Payload:    bytes.Clone(payload),
		Proposer:   proposer,
		Seq:        r.nextSeq(),
		ProposedAt: r.now().UTC(),
		State:      types.CorkStateProposed,
	}
	if err := r.store.Put(cork); err != nil {
		release()
		return types.CorkID{}, err
	}

	e.cork = cork
	e.pending.Store(false)

	lggr.Info("cork proposed", zap.Uint64("seq", cork.Seq), zap.Stringer("proposer", proposer))
	r.emit(types.StateChange{ID: id, Seq: cork.Seq, To: types.CorkStateProposed, Height: r.heights.FinalHeight()})

	return id, nil
}

// Get returns a snapshot of the cork. Archived corks are served from the store.
func (r *Registry) Get(id types.CorkID) (types.Cork, error) {
	if e, ok := r.lookup(id); ok && !e.pending.Load() {
		e.mu.Lock()
		cork, archived := e.cork.Clone(), e.archived
		e.mu.Unlock()

		if !archived {
			return r.view(cork), nil
		}
	}

	cork, err := r.store.GetArchived(id)
	if errors.Is(err, store.ErrNotFound) {
		return types.Cork{}, NewNotFoundError(id)
	}

	return cork, err
}

// List returns snapshots of the corks in any of the states, or all of them when no state is given,
// in execution order. Archived corks are included when a terminal state is requested or no filter
// is given.
func (r *Registry) List(states ...types.CorkState) ([]types.Cork, error) {
	match := func(s types.CorkState) bool {
		return len(states) == 0 || slices.Contains(states, s)
	}

	var out []types.Cork
	seen := make(map[types.CorkID]struct{})
	for _, e := range r.snapshotEntries() {
		if e.pending.Load() {
			continue
		}

		e.mu.Lock()
		cork, live := e.cork.Clone(), !e.archived
		e.mu.Unlock()

		if !live {
			continue
		}
		if cork = r.view(cork); match(cork.State) {
			out = append(out, cork)
			seen[cork.ID] = struct{}{}
		}
	}

	if len(states) == 0 || slices.ContainsFunc(states, types.CorkState.IsTerminal) {
		if err := r.store.ForEachArchived(func(c types.Cork) error {
			// archived between the two passes
			if _, ok := seen[c.ID]; ok {
				return nil
			}
			if match(c.State) {
				out = append(out, c)
			}

			return nil
		}); err != nil {
			return nil, err
		}
	}

	slices.SortFunc(out, func(a, b types.Cork) int {
		switch {
		case a.Less(&b):
			return -1
		case b.Less(&a):
			return 1
		default:
			return 0
		}
	})

	return out, nil
}

// LiveIDs returns the identities of all non-archived corks.
func (r *Registry) LiveIDs() []types.CorkID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]types.CorkID, 0, len(r.entries))
	for id, e := range r.entries {
		if !e.pending.Load() {
			ids = append(ids, id)
		}
	}
	slices.SortFunc(ids, types.CorkID.Compare)

	return ids
}

// Update applies fn to a working copy of the cork while holding the identity lock. A pre-dispatch
// cork is evaluated before fn sees it, so fn always acts on the state implied by the current chain
// height. When fn succeeds, the state of a pre-dispatch cork is re-evaluated, the result is
// persisted and the state change is emitted. Corks reaching a terminal state are archived. On any error nothing
// changes.
func (r *Registry) Update(ctx context.Context, id types.CorkID, fn func(*types.Cork) error) (types.Cork, error) {
	if err := ctx.Err(); err != nil {
		return types.Cork{}, err
	}

	e, ok := r.lookup(id)
	if !ok || e.pending.Load() {
		return types.Cork{}, NewNotFoundError(id)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.archived || e.pending.Load() {
		return types.Cork{}, NewNotFoundError(id)
	}

	evaluator := r.getEvaluator()
	before := e.cork
	work := e.cork.Clone()
	if evaluator != nil && work.State.IsPreDispatch() {
		state, err := evaluator.Evaluate(&work)
		if err != nil {
			return types.Cork{}, err
		}
		work.State = state
	}
	if err := fn(&work); err != nil {
		return types.Cork{}, err
	}
	if work.ID != before.ID || !bytes.Equal(work.Payload, before.Payload) {
		return types.Cork{}, ErrImmutableField
	}

	if evaluator != nil && work.State.IsPreDispatch() {
		state, err := evaluator.Evaluate(&work)
		if err != nil {
			return types.Cork{}, err
		}
		work.State = state
	}

	if reflect.DeepEqual(before, work) {
		return work, nil
	}

	if work.State.IsTerminal() {
		if err := r.store.Archive(work); err != nil {
			return types.Cork{}, err
		}
		e.archived = true
		r.remove(id)
	} else if err := r.store.Put(work); err != nil {
		return types.Cork{}, err
	}

	e.cork = work

	if before.State != work.State {
		r.lggr.Debug("cork state changed",
			zap.Stringer("cork", id),
			zap.String("from", string(before.State)),
			zap.String("to", string(work.State)),
		)
		r.emit(types.StateChange{
			ID:     id,
			Seq:    work.Seq,
			From:   before.State,
			To:     work.State,
			Height: r.heights.FinalHeight(),
		})
	}

	return work.Clone(), nil
}

// Refresh re-evaluates the cork without changing its endorsements.
func (r *Registry) Refresh(ctx context.Context, id types.CorkID) (types.Cork, error) {
	return r.Update(ctx, id, func(*types.Cork) error { return nil })
}

// reserve inserts a locked placeholder for a new identity. It returns nil when the identity is
// already live. A concurrent proposal of the same identity waits for the first one to settle.
func (r *Registry) reserve(id types.CorkID) *entry {
	for {
		r.mu.Lock()
		existing, ok := r.entries[id]
		if !ok {
			e := &entry{}
			e.pending.Store(true)
			e.mu.Lock()
			r.entries[id] = e
			r.mu.Unlock()

			return e
		}
		r.mu.Unlock()

		existing.mu.Lock()
		released := existing.pending.Load()
		existing.mu.Unlock()

		if !released {
			return nil
		}
	}
}

func (r *Registry) nextSeq() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++

	return r.seq
}

// release drops a placeholder whose proposal was not persisted.
func (r *Registry) release(id types.CorkID, e *entry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.entries[id] == e {
		delete(r.entries, id)
	}
}

// view returns the cork with the state the evaluator derives for it now. Nothing is persisted.
func (r *Registry) view(c types.Cork) types.Cork {
	evaluator := r.getEvaluator()
	if evaluator == nil || !c.State.IsPreDispatch() {
		return c
	}
	if state, err := evaluator.Evaluate(&c); err == nil {
		c.State = state
	}

	return c
}

func (r *Registry) lookup(id types.CorkID) (*entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[id]

	return e, ok
}

func (r *Registry) remove(id types.CorkID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.entries, id)
}

func (r *Registry) snapshotEntries() []*entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}

	return out
}

func (r *Registry) getEvaluator() Evaluator {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.evaluator
}

func (r *Registry) emit(change types.StateChange) {
	r.listenersMu.RLock()
	defer r.listenersMu.RUnlock()

	for _, l := range r.listeners {
		l(change)
	}
}
