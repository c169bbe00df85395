// Package memorydb implements store.Store in memory, for tests and dry runs.
package memorydb

import (
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/smartcontractkit/corks/store"
	"github.com/smartcontractkit/corks/types"
)

type MemoryDB struct {
	live    map[types.CorkID]types.Cork
	archive map[types.CorkID]types.Cork
	limit   int
	lock    sync.RWMutex
}

var _ store.Store = (*MemoryDB)(nil)

// New creates an empty in-memory store.
func New() *MemoryDB {
	return &MemoryDB{
		live:    make(map[types.CorkID]types.Cork),
		archive: make(map[types.CorkID]types.Cork),
	}
}

// NewWithLimiter can be used to test disk full scenarios
func NewWithLimiter(limit int) *MemoryDB {
	db := New()
	db.limit = limit

	return db
}

// Empty returns true if no live records are stored
func (db *MemoryDB) Empty() bool {
	db.lock.RLock()
	defer db.lock.RUnlock()

	return len(db.live) == 0
}

func (db *MemoryDB) Put(cork types.Cork) error {
	db.lock.Lock()
	defer db.lock.Unlock()

	if _, ok := db.live[cork.ID]; !ok && db.limit > 0 && len(db.live)+len(db.archive) >= db.limit {
		return fmt.Errorf("write failed, disk is full")
	}
	db.live[cork.ID] = cork.Clone()

	return nil
}

func (db *MemoryDB) Get(id types.CorkID) (types.Cork, error) {
	db.lock.RLock()
	defer db.lock.RUnlock()

	return get(db.live, id)
}

func (db *MemoryDB) GetArchived(id types.CorkID) (types.Cork, error) {
	db.lock.RLock()
	defer db.lock.RUnlock()

	return get(db.archive, id)
}

func get(m map[types.CorkID]types.Cork, id types.CorkID) (types.Cork, error) {
	cork, ok := m[id]
	if !ok {
		return types.Cork{}, fmt.Errorf("%w: %s", store.ErrNotFound, id)
	}

	return cork.Clone(), nil
}

func (db *MemoryDB) Archive(cork types.Cork) error {
	db.lock.Lock()
	defer db.lock.Unlock()

	delete(db.live, cork.ID)
	db.archive[cork.ID] = cork.Clone()

	return nil
}

func (db *MemoryDB) ForEach(fn func(types.Cork) error) error {
	return db.forEach(db.live, fn)
}

func (db *MemoryDB) ForEachArchived(fn func(types.Cork) error) error {
	return db.forEach(db.archive, fn)
}

func (db *MemoryDB) forEach(m map[types.CorkID]types.Cork, fn func(types.Cork) error) error {
	db.lock.RLock()
	ids := slices.SortedFunc(maps.Keys(m), types.CorkID.Compare)
	corks := make([]types.Cork, 0, len(ids))
	for _, id := range ids {
		cork := m[id]
		corks = append(corks, cork.Clone())
	}
	db.lock.RUnlock()

	for _, c := range corks {
		if err := fn(c); err != nil {
			return err
		}
	}

	return nil
}

func (db *MemoryDB) Close() error {
	return nil
}
