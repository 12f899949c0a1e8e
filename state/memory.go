package state

import (
	"maps"
	"sync"
)

type memoryState[K comparable, V any] struct {
	data map[K]V
	lock *sync.RWMutex
}

func (m *memoryState[K, V]) Close() error {
	return nil
}

func (m *memoryState[K, V]) Get(key K) (V, error) {
	m.lock.RLock()
	defer m.lock.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return v, ErrorKeyNotFound
	}
	return v, nil
}

func (m *memoryState[K, V]) Add(key K, value V) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.data[key] = value
	return nil
}

func (m *memoryState[K, V]) Delete(key K) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	delete(m.data, key)
	return nil
}

func (m *memoryState[K, V]) Pop(key K) (V, error) {
	m.lock.Lock()
	defer m.lock.Unlock()
	v, ok := m.data[key]
	if !ok {
		return v, ErrorKeyNotFound
	}
	delete(m.data, key)
	return v, nil
}

func (m *memoryState[K, V]) All() map[K]V {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return maps.Clone(m.data)
}
