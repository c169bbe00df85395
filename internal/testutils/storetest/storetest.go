// Package storetest holds the behaviour every store.Store implementation must share.
package storetest

import (
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartcontractkit/corks/store"
	"github.com/smartcontractkit/corks/types"
)

// NewCork returns a populated cork record for the height.
func NewCork(height uint64, payload ...byte) types.Cork {
	contract := types.AddressFromEVM(common.HexToAddress("0xc0ffee"))

	return types.Cork{
		ID:         types.NewCorkID(contract, height, payload),
		Payload:    payload,
		Proposer:   common.HexToAddress("0x1"),
		Seq:        height,
		ProposedAt: time.Date(2024, 5, 1, 12, 0, 0, 123456789, time.UTC),
		State:      types.CorkStateEndorsed,
		Endorsements: []types.Endorsement{
			{Validator: common.HexToAddress("0x1"), Proof: []byte{0x01, 0x02}},
		},
	}
}

// Run exercises a Store created by newStore.
func Run(t *testing.T, newStore func(t *testing.T) store.Store) {
	t.Helper()

	t.Run("put and get", func(t *testing.T) {
		s := newStore(t)
		cork := NewCork(100, 0xaa)

		_, err := s.Get(cork.ID)
		require.ErrorIs(t, err, store.ErrNotFound)

		require.NoError(t, s.Put(cork))

		got, err := s.Get(cork.ID)
		require.NoError(t, err)
		if diff := cmp.Diff(cork, got); diff != "" {
			t.Errorf("stored cork mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("put replaces and keeps the dispatch marker", func(t *testing.T) {
		s := newStore(t)
		cork := NewCork(100, 0xaa)
		require.NoError(t, s.Put(cork))

		cork.State = types.CorkStateDispatching
		cork.Dispatch = &types.Dispatch{
			TxHash:      common.HexToHash("0xabc"),
			RawTx:       []byte{0xde, 0xad},
			Submissions: 1,
			Outcome:     types.OutcomeUnknown,
			AcceptedAt:  time.Date(2024, 5, 1, 12, 0, 1, 0, time.UTC),
		}
		require.NoError(t, s.Put(cork))

		got, err := s.Get(cork.ID)
		require.NoError(t, err)
		assert.Equal(t, types.CorkStateDispatching, got.State)
		require.NotNil(t, got.Dispatch)
		assert.Equal(t, *cork.Dispatch, *got.Dispatch)
	})

	t.Run("archive moves the record", func(t *testing.T) {
		s := newStore(t)
		cork := NewCork(100, 0xaa)
		require.NoError(t, s.Put(cork))

		cork.State = types.CorkStateExecuted
		require.NoError(t, s.Archive(cork))

		_, err := s.Get(cork.ID)
		require.ErrorIs(t, err, store.ErrNotFound)

		got, err := s.GetArchived(cork.ID)
		require.NoError(t, err)
		assert.Equal(t, types.CorkStateExecuted, got.State)

		var archived []types.CorkID
		require.NoError(t, s.ForEachArchived(func(c types.Cork) error {
			archived = append(archived, c.ID)
			return nil
		}))
		assert.Equal(t, []types.CorkID{cork.ID}, archived)
	})

	t.Run("for each in key order", func(t *testing.T) {
		s := newStore(t)
		want := []types.Cork{NewCork(1, 0x01), NewCork(2, 0x01), NewCork(300, 0x01)}
		for _, i := range []int{2, 0, 1} {
			require.NoError(t, s.Put(want[i]))
		}

		var got []types.CorkID
		require.NoError(t, s.ForEach(func(c types.Cork) error {
			got = append(got, c.ID)
			return nil
		}))
		assert.Equal(t, []types.CorkID{want[0].ID, want[1].ID, want[2].ID}, got)
	})

	t.Run("for each stops on error", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Put(NewCork(1, 0x01)))
		require.NoError(t, s.Put(NewCork(2, 0x01)))

		stop := errors.New("stop")
		calls := 0
		err := s.ForEach(func(types.Cork) error {
			calls++
			return stop
		})
		require.ErrorIs(t, err, stop)
		assert.Equal(t, 1, calls)
	})
}
