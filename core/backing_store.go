package core

import (
	"strconv"
	"sync"

	"github.com/dgraph-io/ristretto"

	"sketchdb/sketch"
	"sketchdb/storage"
)

// BackingStore keeps the latest committed sketch of each series: encoded in
// the backend, decoded in a ristretto cache in front of it.
//
// Cache entries are keyed by series and write version. Every Put or Delete
// bumps the version, so an entry is never overwritten in place and a Set
// that ristretto drops or admits late can only leave an unreachable entry
// behind.
type BackingStore struct {
	backend       storage.Backend
	cacheEnabled  bool
	snapshotCache *ristretto.Cache

	mu       sync.Mutex
	versions map[string]uint64
}

func NewBackingStore(backend storage.Backend, cacheEnabled bool) (*BackingStore, error) {
	store := &BackingStore{
		backend:      backend,
		cacheEnabled: cacheEnabled,
		versions:     make(map[string]uint64),
	}
	if cacheEnabled {
		cache, err := ristretto.NewCache(&ristretto.Config{
			NumCounters: 1e5,
			MaxCost:     1 << 26,
			BufferItems: 64,
		})
		if err != nil {
			return nil, err
		}
		store.snapshotCache = cache
	}
	return store, nil
}

func cacheKey(series string, version uint64) string {
	return strconv.FormatUint(version, 10) + "/" + series
}

func (store *BackingStore) version(series string) uint64 {
	store.mu.Lock()
	defer store.mu.Unlock()
	return store.versions[series]
}

func (store *BackingStore) Get(series string) (*sketch.Sketch, error) {
	if !store.cacheEnabled {
		return store.load(series)
	}

	key := cacheKey(series, store.version(series))
	if s, found := store.snapshotCache.Get(key); found {
		return s.(*sketch.Sketch), nil
	}
	buf, err := store.backend.Get(series)
	if err != nil {
		return nil, err
	}
	s, err := sketch.Decode(buf)
	if err != nil {
		return nil, err
	}
	// A concurrent Put may have landed a newer snapshot under an older
	// version key. That is still a snapshot at least as new as key.
	store.snapshotCache.Set(key, s, int64(len(buf)))
	return s, nil
}

func (store *BackingStore) load(series string) (*sketch.Sketch, error) {
	buf, err := store.backend.Get(series)
	if err != nil {
		return nil, err
	}
	return sketch.Decode(buf)
}

// Put writes s through to the backend. The version is bumped under the lock
// together with the backend write, so versions follow the backend order.
func (store *BackingStore) Put(series string, s *sketch.Sketch) error {
	buf, err := s.MarshalBinary()
	if err != nil {
		return err
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	if err := store.backend.Put(series, buf); err != nil {
		return err
	}
	store.versions[series]++
	if store.cacheEnabled {
		store.snapshotCache.Set(cacheKey(series, store.versions[series]), s, int64(len(buf)))
	}
	return nil
}

func (store *BackingStore) Delete(series string) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	if err := store.backend.Delete(series); err != nil {
		return err
	}
	store.versions[series]++
	return nil
}

// Iterate decodes every stored snapshot, bypassing the cache.
func (store *BackingStore) Iterate(fn func(string, *sketch.Sketch) error) error {
	return store.backend.Iterate(func(series string, buf []byte) error {
		s, err := sketch.Decode(buf)
		if err != nil {
			return err
		}
		return fn(series, s)
	})
}

func (store *BackingStore) Close() error {
	if store.cacheEnabled {
		store.snapshotCache.Close()
	}
	return store.backend.Close()
}
