package state

import (
	"encoding/json"
	"net/url"
	"strconv"

	"github.com/dgraph-io/badger/v4"
)

// badgerState stores JSON encoded keys and values. Use
// badger:///path/to/dir, or badger://?in_memory=true for a throwaway store.
type badgerState[K comparable, V any] struct {
	memory    memoryState[K, V]
	urlParsed *url.URL
	db        *badger.DB
}

func (b *badgerState[K, V]) options() (badger.Options, error) {
	opts := badger.DefaultOptions(b.urlParsed.Path).WithLogger(nil)
	if v := b.urlParsed.Query().Get("in_memory"); v != "" {
		inMemory, err := strconv.ParseBool(v)
		if err != nil {
			return opts, err
		}
		if inMemory {
			opts = opts.WithDir("").WithValueDir("").WithInMemory(true)
		}
	}
	return opts, nil
}

func (b *badgerState[K, V]) init() error {
	opts, err := b.options()
	if err != nil {
		return err
	}
	db, err := badger.Open(opts)
	if err != nil {
		return err
	}
	b.db = db
	// pre-populate local memory copy from existing badger data
	if err = b.load(); err != nil {
		db.Close()
		return err
	}
	return nil
}

func (b *badgerState[K, V]) load() error {
	return b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			kRaw := item.Key()
			err := item.Value(func(vRaw []byte) error {
				var k K
				var v V
				if err := json.Unmarshal(kRaw, &k); err != nil {
					return err
				}
				if err := json.Unmarshal(vRaw, &v); err != nil {
					return err
				}
				return b.memory.Add(k, v)
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (b *badgerState[K, V]) Close() error {
	return b.db.Close()
}

func (b *badgerState[K, V]) Get(key K) (V, error) {
	return b.memory.Get(key)
}

func (b *badgerState[K, V]) All() map[K]V {
	return b.memory.All()
}

func (b *badgerState[K, V]) Add(key K, value V) error {
	k, err := json.Marshal(key)
	if err != nil {
		return err
	}
	v, err := json.Marshal(value)
	if err != nil {
		return err
	}
	err = b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(k, v)
	})
	if err != nil {
		return err
	}
	return b.memory.Add(key, value)
}

func (b *badgerState[K, V]) Delete(key K) error {
	k, err := json.Marshal(key)
	if err != nil {
		return err
	}
	err = b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(k)
	})
	if err != nil {
		return err
	}
	return b.memory.Delete(key)
}

func (b *badgerState[K, V]) Pop(key K) (V, error) {
	v, err := b.memory.Get(key)
	if err != nil {
		return v, err
	}
	return v, b.Delete(key)
}
