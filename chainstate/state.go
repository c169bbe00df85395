// Package chainstate holds the consensus chain view shared by the quorum tracker and the
// scheduler: the height cursor and the validator set snapshots.
package chainstate

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/smartcontractkit/corks/types"
)

var (
	// ErrNonMonotonicHeight is returned for a height event that retreats without a reorg marker.
	ErrNonMonotonicHeight = errors.New("height event is not monotonic")
	// ErrInvalidReorg is returned for a reorg event that does not retreat.
	ErrInvalidReorg = errors.New("invalid reorg event")
	// ErrNoValidatorSet is returned when no snapshot covers the requested height.
	ErrNoValidatorSet = errors.New("no validator set snapshot")
	// ErrStaleValidatorSet is returned when a snapshot older than the latest recorded one arrives.
	ErrStaleValidatorSet = errors.New("stale validator set snapshot")
)

// Transition describes the effect of one applied height event.
type Transition struct {
	PrevFinal  uint64
	Final      uint64
	Reorg      bool
	SetChanged bool
}

// Advanced reports whether the final height moved up.
func (t Transition) Advanced() bool {
	return t.Final > t.PrevFinal
}

// State is the process-wide HeightCursor plus the validator set history. It is safe for
// concurrent use and is meant to be constructed once per chain and injected.
type State struct {
	mu          sync.RWMutex
	final       uint64
	provisional uint64
	// snapshots are kept sorted by effective height.
	snapshots []types.ValidatorSet
}

// Option configures a State.
type Option func(*State)

// WithFinalHeight sets the initial final height.
func WithFinalHeight(height uint64) Option {
	return func(s *State) {
		s.final = height
		s.provisional = height
	}
}

// WithValidatorSet records an initial snapshot.
func WithValidatorSet(set types.ValidatorSet) Option {
	return func(s *State) {
		s.snapshots = append(s.snapshots, set.Clone())
		slices.SortFunc(s.snapshots, func(a, b types.ValidatorSet) int {
			return cmp.Compare(a.Height, b.Height)
		})
	}
}

// New creates a new State.
func New(opts ...Option) *State {
	s := &State{}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// FinalHeight returns the highest irreversible height.
func (s *State) FinalHeight() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.final
}

// ProvisionalHeight returns the highest height observed, final or not.
func (s *State) ProvisionalHeight() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return max(s.final, s.provisional)
}

// ValidatorSetAt returns the latest snapshot effective at or below the height.
func (s *State) ValidatorSetAt(height uint64) (types.ValidatorSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := len(s.snapshots) - 1; i >= 0; i-- {
		if s.snapshots[i].Height <= height {
			return s.snapshots[i].Clone(), nil
		}
	}

	return types.ValidatorSet{}, fmt.Errorf("%w: at height %d", ErrNoValidatorSet, height)
}

// CurrentValidatorSet returns the latest recorded snapshot.
func (s *State) CurrentValidatorSet() (types.ValidatorSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.snapshots) == 0 {
		return types.ValidatorSet{}, ErrNoValidatorSet
	}

	return s.snapshots[len(s.snapshots)-1].Clone(), nil
}

// Apply validates the event against the cursor and records it. The state is left untouched
// when an error is returned.
//
// Final heights never retreat except through a reorg event, which also drops provisional progress
// and every snapshot recorded above the new final height.
func (s *State) Apply(ev types.HeightEvent) (Transition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tr := Transition{PrevFinal: s.final, Final: s.final, Reorg: ev.IsReorg()}

	var set *types.ValidatorSet
	if ev.ValidatorSet != nil {
		clone := ev.ValidatorSet.Clone()
		if clone.Height == 0 {
			clone.Height = ev.Height
		}
		if err := clone.Validate(); err != nil {
			return Transition{}, err
		}
		set = &clone
	}

	switch {
	case ev.IsReorg():
		if *ev.ReorgFrom < ev.Height || ev.Height > s.final {
			return Transition{}, fmt.Errorf("%w: from %d to %d with final height %d",
				ErrInvalidReorg, *ev.ReorgFrom, ev.Height, s.final)
		}
	case ev.Final:
		if ev.Height < s.final {
			return Transition{}, fmt.Errorf("%w: final height %d below %d", ErrNonMonotonicHeight, ev.Height, s.final)
		}
	default:
		if ev.Height < s.final {
			return Transition{}, fmt.Errorf("%w: provisional height %d below final %d",
				ErrNonMonotonicHeight, ev.Height, s.final)
		}
	}

	if set != nil && !ev.IsReorg() && len(s.snapshots) > 0 && set.Height < s.snapshots[len(s.snapshots)-1].Height {
		return Transition{}, fmt.Errorf("%w: height %d below %d",
			ErrStaleValidatorSet, set.Height, s.snapshots[len(s.snapshots)-1].Height)
	}

	switch {
	case ev.IsReorg():
		s.final = ev.Height
		s.provisional = ev.Height
		before := len(s.snapshots)
		s.snapshots = slices.DeleteFunc(s.snapshots, func(vs types.ValidatorSet) bool {
			return vs.Height > ev.Height
		})
		tr.SetChanged = len(s.snapshots) != before
	case ev.Final:
		s.final = ev.Height
		s.provisional = max(s.provisional, ev.Height)
	default:
		s.provisional = max(s.provisional, ev.Height)
	}
	tr.Final = s.final

	if set != nil && s.record(*set) {
		tr.SetChanged = true
	}

	return tr, nil
}

// record inserts or replaces the snapshot at its height, reporting whether anything changed.
func (s *State) record(set types.ValidatorSet) bool {
	i, found := slices.BinarySearchFunc(s.snapshots, set.Height, func(vs types.ValidatorSet, h uint64) int {
		return cmp.Compare(vs.Height, h)
	})
	if found {
		if s.snapshots[i].Equals(&set) {
			return false
		}
		s.snapshots[i] = set

		return true
	}

	if i > 0 && s.snapshots[i-1].Equals(&set) {
		return false
	}
	s.snapshots = slices.Insert(s.snapshots, i, set)

	return true
}
