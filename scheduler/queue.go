package scheduler

import (
	"slices"
	"sync"

	"github.com/smartcontractkit/corks/types"
)

// Item is a queued executable cork.
type Item struct {
	ID  types.CorkID
	Seq uint64
}

// less orders by trigger height, then proposal sequence, then identity bytes. Every validator
// observing the same height stream derives the same order.
func (i Item) less(other Item) bool {
	if i.ID.Height != other.ID.Height {
		return i.ID.Height < other.ID.Height
	}
	if i.Seq != other.Seq {
		return i.Seq < other.Seq
	}

	return i.ID.Compare(other.ID) < 0
}

// Queue holds executable corks in execution order.
type Queue struct {
	mu     sync.Mutex
	items  []Item
	notify chan struct{}
}

// NewQueue creates an empty Queue.
func NewQueue() *Queue {
	return &Queue{notify: make(chan struct{}, 1)}
}

// Push inserts the item at its ordered position. Pushing a queued identity is a no-op.
func (q *Queue) Push(item Item) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if slices.ContainsFunc(q.items, func(i Item) bool { return i.ID == item.ID }) {
		return
	}

	idx, _ := slices.BinarySearchFunc(q.items, item, func(a, b Item) int {
		switch {
		case a.less(b):
			return -1
		case b.less(a):
			return 1
		default:
			return 0
		}
	})
	q.items = slices.Insert(q.items, idx, item)

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Remove drops the identity, reporting whether it was queued.
func (q *Queue) Remove(id types.CorkID) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := len(q.items)
	q.items = slices.DeleteFunc(q.items, func(i Item) bool { return i.ID == id })

	return len(q.items) != n
}

// Pop removes and returns the first item.
func (q *Queue) Pop() (Item, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return Item{}, false
	}
	item := q.items[0]
	q.items = q.items[1:]

	return item, true
}

// Items returns the queued items in order.
func (q *Queue) Items() []Item {
	q.mu.Lock()
	defer q.mu.Unlock()

	return slices.Clone(q.items)
}

// Len returns the number of queued items.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.items)
}

// Notify is signalled after a push.
func (q *Queue) Notify() <-chan struct{} {
	return q.notify
}
