// Package boltdb implements store.Store on top of a bbolt database file.
package boltdb

import (
	"errors"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
	bolt "go.etcd.io/bbolt"

	"github.com/smartcontractkit/corks/store"
	"github.com/smartcontractkit/corks/types"
)

var (
	corksBucket   = []byte("corks")
	archiveBucket = []byte("archive")
)

type (
	EncodeFn func(v any) ([]byte, error)
	DecodeFn func(data []byte, v any) error

	BoltDB struct {
		db      *bolt.DB
		encoder EncodeFn
		decoder DecodeFn
	}
)

var _ store.Store = (*BoltDB)(nil)

// New opens (creating if needed) the database file. Records are CBOR encoded, timestamps keep
// nanosecond precision.
func New(dbFile string) (*BoltDB, error) {
	encMode, err := cbor.EncOptions{Time: cbor.TimeRFC3339Nano}.EncMode()
	if err != nil {
		return nil, err
	}
	db, err := bolt.Open(dbFile, 0600, &bolt.Options{Timeout: 3 * time.Second})
	if err != nil {
		return nil, err
	}
	s := &BoltDB{
		db:      db,
		encoder: encMode.Marshal,
		decoder: cbor.Unmarshal,
	}
	if err = s.createBuckets(); err != nil {
		return nil, errors.Join(err, db.Close())
	}

	return s, nil
}

func (db *BoltDB) Path() string {
	return db.db.Path()
}

func (db *BoltDB) createBuckets() error {
	return db.db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{corksBucket, archiveBucket} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}

		return nil
	})
}

func (db *BoltDB) Put(cork types.Cork) error {
	b, err := db.encoder(cork)
	if err != nil {
		return err
	}
	if err = db.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(corksBucket).Put(cork.ID.Key(), b)
	}); err != nil {
		return fmt.Errorf("bolt db write failed, %w", err)
	}

	return nil
}

func (db *BoltDB) Get(id types.CorkID) (types.Cork, error) {
	return db.read(corksBucket, id)
}

func (db *BoltDB) GetArchived(id types.CorkID) (types.Cork, error) {
	return db.read(archiveBucket, id)
}

func (db *BoltDB) read(bucket []byte, id types.CorkID) (types.Cork, error) {
	var cork types.Cork
	if err := db.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucket).Get(id.Key())
		if data == nil {
			return store.ErrNotFound
		}

		return db.decoder(data, &cork)
	}); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Cork{}, fmt.Errorf("%w: %s", store.ErrNotFound, id)
		}

		return types.Cork{}, fmt.Errorf("bolt db read failed, %w", err)
	}

	return cork, nil
}

func (db *BoltDB) Archive(cork types.Cork) error {
	b, err := db.encoder(cork)
	if err != nil {
		return err
	}
	key := cork.ID.Key()
	if err = db.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(corksBucket).Delete(key); err != nil {
			return err
		}

		return tx.Bucket(archiveBucket).Put(key, b)
	}); err != nil {
		return fmt.Errorf("bolt db archive failed, %w", err)
	}

	return nil
}

func (db *BoltDB) ForEach(fn func(types.Cork) error) error {
	return db.forEach(corksBucket, fn)
}

func (db *BoltDB) ForEachArchived(fn func(types.Cork) error) error {
	return db.forEach(archiveBucket, fn)
}

func (db *BoltDB) forEach(bucket []byte, fn func(types.Cork) error) error {
	return db.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).ForEach(func(k, v []byte) error {
			var cork types.Cork
			if err := db.decoder(v, &cork); err != nil {
				return fmt.Errorf("decoding record %x: %w", k, err)
			}

			return fn(cork)
		})
	})
}

func (db *BoltDB) Close() error {
	if db.db == nil {
		return nil
	}

	return db.db.Close()
}
