// Package store defines the durable keyed storage of cork records.
package store

import (
	"errors"

	"github.com/smartcontractkit/corks/types"
)

// ErrNotFound is returned when no record exists for the identity.
var ErrNotFound = errors.New("cork not found in store")

// Store persists cork records by identity. Live corks and archived (terminal) corks are kept
// apart so that a restart only has to load live corks.
//
// Every write must be durable when it returns, the dispatcher relies on this for its in-flight
// marker.
type Store interface {
	// Put inserts or replaces the live record.
	Put(cork types.Cork) error
	// Get returns the live record.
	Get(id types.CorkID) (types.Cork, error)
	// Archive atomically moves the record from the live set into the archive.
	Archive(cork types.Cork) error
	// GetArchived returns an archived record.
	GetArchived(id types.CorkID) (types.Cork, error)
	// ForEach calls fn for every live record in key order.
	ForEach(fn func(types.Cork) error) error
	// ForEachArchived calls fn for every archived record in key order.
	ForEachArchived(fn func(types.Cork) error) error
	Close() error
}
