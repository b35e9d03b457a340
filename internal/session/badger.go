package session

import (
	"errors"

	"github.com/dgraph-io/badger/v4"
)

// BadgerBackend persists session fields in an embedded badger database.
// This is the default on-disk store for a scanning station.
type BadgerBackend struct {
	db *badger.DB
}

// OpenBadgerBackend opens (or creates) the badger database at path. An empty
// path opens an in-memory database, which is handy in tests.
func OpenBadgerBackend(path string) (*BadgerBackend, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &BadgerBackend{db: db}, nil
}

func (b *BadgerBackend) Get(key string) ([]byte, bool, error) {
	var out []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return out, true, nil
}

func (b *BadgerBackend) Put(key string, value []byte) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
}

func (b *BadgerBackend) Close() error { return b.db.Close() }

var _ Backend = (*BadgerBackend)(nil)
