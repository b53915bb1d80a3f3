package core

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/exp/slices"

	"sketchdb/config"
	"sketchdb/sketch"
	"sketchdb/storage"
)

// Registry keeps one Updater per named series, all at the configured
// resolution, and publishes every commit to a BackingStore.
type Registry[V any] struct {
	resolution int
	store      *BackingStore
	log        *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	series map[string]*Updater[V]
	closed bool
}

func NewRegistry[V any](cfg *config.Config, log *zap.Logger) (*Registry[V], error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if log == nil {
		var err error
		if log, err = cfg.NewLogger(); err != nil {
			return nil, err
		}
	}
	// Fails fast on an unsupported V.
	if _, err := NewBuilder[V](cfg.Sketch.ResolutionLevel); err != nil {
		return nil, err
	}

	backend, err := newBackend(cfg.Store, log)
	if err != nil {
		return nil, err
	}
	store, err := NewBackingStore(backend, cfg.Store.CacheEnabled)
	if err != nil {
		return nil, multierr.Append(err, backend.Close())
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Registry[V]{
		resolution: cfg.Sketch.ResolutionLevel,
		store:      store,
		log:        log,
		ctx:        ctx,
		cancel:     cancel,
		series:     make(map[string]*Updater[V]),
	}, nil
}

func newBackend(cfg config.StoreConfig, log *zap.Logger) (storage.Backend, error) {
	switch cfg.Backend {
	case config.BackendBadger:
		return storage.NewBadgerBackend(&storage.BadgerBackendConfig{InMemory: true, Logger: log})
	default:
		return storage.NewInMemoryBackend(), nil
	}
}

func (r *Registry[V]) Resolution() int {
	return r.resolution
}

// Series returns the updater for name, creating and starting it on first
// use. It fails with ErrUpdaterClosed once the registry is closed.
func (r *Registry[V]) Series(name string) (*Updater[V], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrUpdaterClosed
	}
	if u, ok := r.series[name]; ok {
		return u, nil
	}

	log := r.log.With(zap.String("series", name))
	u, err := NewUpdater[V](UpdaterOptions{
		Resolution: r.resolution,
		Logger:     log,
		OnCommit: func(s *sketch.Sketch) {
			if err := r.store.Put(name, s); err != nil {
				log.Error("Failed to publish snapshot", zap.Error(err))
			}
		},
	})
	if err != nil {
		return nil, err
	}
	r.series[name] = u

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		u.Run(r.ctx)
	}()
	log.Debug("Started series updater")
	return u, nil
}

func (r *Registry[V]) Alter(name string, values []V) *Future {
	u, err := r.Series(name)
	if err != nil {
		return failedFuture(err)
	}
	return u.Alter(values)
}

// Snapshot returns the last sketch published for name, or
// storage.ErrNotFound if nothing was committed yet.
func (r *Registry[V]) Snapshot(name string) (*sketch.Sketch, error) {
	return r.store.Get(name)
}

// Snapshots decodes every published snapshot.
func (r *Registry[V]) Snapshots() (map[string]*sketch.Sketch, error) {
	snapshots := make(map[string]*sketch.Sketch)
	err := r.store.Iterate(func(name string, s *sketch.Sketch) error {
		snapshots[name] = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snapshots, nil
}

// Names lists the series in sorted order.
func (r *Registry[V]) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.series))
	for name := range r.series {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Close drains every series, stops the workers and closes the store.
func (r *Registry[V]) Close(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	updaters := make([]*Updater[V], 0, len(r.series))
	for _, u := range r.series {
		updaters = append(updaters, u)
	}
	r.mu.Unlock()

	var err error
	for _, u := range updaters {
		// Flush first: a series created just before Close may not have
		// reached Run yet.
		err = multierr.Append(err, u.Flush(ctx))
		err = multierr.Append(err, u.Close(ctx))
	}
	r.cancel()
	r.wg.Wait()
	return multierr.Append(err, r.store.Close())
}
