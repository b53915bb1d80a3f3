package storage

import (
	"sort"
	"sync"
)

// Backend stores encoded sketch snapshots keyed by series name.
type Backend interface {
	Get(series string) ([]byte, error)
	Put(series string, buf []byte) error
	Delete(series string) error
	// Iterate calls fn for every stored snapshot. A non-nil error from fn
	// stops the iteration and is returned.
	Iterate(fn func(series string, buf []byte) error) error

	Close() error
}

type InMemoryBackend struct {
	snapshots map[string][]byte
	mu        sync.Mutex
}

func NewInMemoryBackend() *InMemoryBackend {
	return &InMemoryBackend{
		snapshots: make(map[string][]byte),
	}
}

func (backend *InMemoryBackend) Get(series string) ([]byte, error) {
	backend.mu.Lock()
	defer backend.mu.Unlock()
	buf, ok := backend.snapshots[string(GetKey(series))]
	if !ok {
		return nil, ErrNotFound
	}
	return copyBytes(buf), nil
}

func (backend *InMemoryBackend) Put(series string, buf []byte) error {
	backend.mu.Lock()
	defer backend.mu.Unlock()
	backend.snapshots[string(GetKey(series))] = copyBytes(buf)
	return nil
}

func (backend *InMemoryBackend) Delete(series string) error {
	backend.mu.Lock()
	defer backend.mu.Unlock()
	delete(backend.snapshots, string(GetKey(series)))
	return nil
}

// Iterate visits snapshots in key order, on a copy taken under the lock, so
// fn may call back into the backend.
func (backend *InMemoryBackend) Iterate(fn func(string, []byte) error) error {
	backend.mu.Lock()
	keys := make([]string, 0, len(backend.snapshots))
	copied := make(map[string][]byte, len(backend.snapshots))
	for k, buf := range backend.snapshots {
		keys = append(keys, k)
		copied[k] = copyBytes(buf)
	}
	backend.mu.Unlock()

	sort.Strings(keys)
	for _, k := range keys {
		key := []byte(k)
		if !isSnapshotKey(key) {
			continue
		}
		if err := fn(GetSeriesFromKey(key), copied[k]); err != nil {
			return err
		}
	}
	return nil
}

func (backend *InMemoryBackend) Close() error {
	backend.mu.Lock()
	defer backend.mu.Unlock()
	backend.snapshots = make(map[string][]byte)
	return nil
}
