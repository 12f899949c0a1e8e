// Package state keeps small key/value tables in memory, optionally backed
// by badger or redis so they survive restarts.
package state

import (
	"context"
	"fmt"
	"net/url"
	"sync"
)

var (
	SupportedSchemes = []string{"memory", "badger", "redis", "rediss"}
	ErrorKeyNotFound = fmt.Errorf("key not found")
)

// State is read from memory. Writes go to the backend first.
type State[K comparable, V any] interface {
	Close() error
	Get(key K) (V, error)
	Add(key K, value V) error
	Delete(key K) error
	Pop(key K) (V, error)
	// All returns a snapshot of the table.
	All() map[K]V
}

func newMemoryState[K comparable, V any]() memoryState[K, V] {
	return memoryState[K, V]{
		data: make(map[K]V),
		lock: new(sync.RWMutex),
	}
}

// NewState opens memory://, badger:///path/to/dir or redis://host/db?prefix=p.
func NewState[K comparable, V any](rawUrl string) (State[K, V], error) {
	urlParsed, err := url.Parse(rawUrl)
	if err != nil {
		return nil, err
	}
	memory := newMemoryState[K, V]()
	switch urlParsed.Scheme {
	case "memory":
		return &memory, nil
	case "badger":
		bd := &badgerState[K, V]{
			memory:    memory,
			urlParsed: urlParsed,
		}
		if err = bd.init(); err != nil {
			return nil, err
		}
		return bd, nil
	case "redis", "rediss":
		ctx, cancel := context.WithCancel(context.Background())
		rd := &redisState[K, V]{
			memory:    memory,
			urlParsed: urlParsed,
			ctx:       ctx,
			cancel:    cancel,
			wg:        new(sync.WaitGroup),
		}
		if err = rd.init(); err != nil {
			cancel()
			return nil, err
		}
		return rd, nil
	default:
		return nil, fmt.Errorf("unknown state name %s", urlParsed.Scheme)
	}
}
