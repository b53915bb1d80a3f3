package core

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"sketchdb/sketch"
)

type UpdaterOptions struct {
	// Resolution is read once, at construction.
	Resolution int
	// Initial replaces the zero sketch as the starting state. It must have
	// the same resolution.
	Initial *sketch.Sketch
	Logger  *zap.Logger
	// OnCommit runs on the worker after each successful transition, before
	// the transition's future resolves.
	OnCommit func(*sketch.Sketch)
}

type operation struct {
	build  func() (*sketch.Sketch, error)
	future *Future
}

// Updater owns one logical sketch. Alter calls from any goroutine are
// queued in arrival order and applied one at a time by the goroutine
// running Run. Current never waits for the queue.
type Updater[V any] struct {
	builder  *Builder[V]
	current  atomic.Pointer[sketch.Sketch]
	log      *zap.Logger
	onCommit func(*sketch.Sketch)

	mu      sync.Mutex
	queue   []*operation
	started bool
	closed  bool
	wake    chan struct{}
	stopped chan struct{}
}

func NewUpdater[V any](opts UpdaterOptions) (*Updater[V], error) {
	builder, err := NewBuilder[V](opts.Resolution)
	if err != nil {
		return nil, err
	}

	initial := sketch.Empty(builder.Resolution())
	if opts.Initial != nil {
		if opts.Initial.Resolution() != builder.Resolution() {
			return nil, fmt.Errorf("%w: initial sketch has %d, updater %d",
				sketch.ErrIncompatibleResolution, opts.Initial.Resolution(), builder.Resolution())
		}
		initial = opts.Initial
	}

	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	u := &Updater[V]{
		builder:  builder,
		log:      log.With(zap.Int("resolution", builder.Resolution())),
		onCommit: opts.OnCommit,
		wake:     make(chan struct{}, 1),
		stopped:  make(chan struct{}),
	}
	u.current.Store(initial)
	return u, nil
}

func (u *Updater[V]) Resolution() int {
	return u.builder.Resolution()
}

// Current returns the last committed sketch.
func (u *Updater[V]) Current() *sketch.Sketch {
	return u.current.Load()
}

// Alter queues the merge of values into the current sketch. The returned
// future resolves with the sketch committed by this update, which includes
// every update queued before it. values is copied.
func (u *Updater[V]) Alter(values []V) *Future {
	batch := make([]V, len(values))
	copy(batch, values)
	return u.enqueue(func() (*sketch.Sketch, error) {
		return u.builder.BuildSketch(batch)
	})
}

// AlterSketch queues the merge of a prebuilt sketch.
func (u *Updater[V]) AlterSketch(s *sketch.Sketch) *Future {
	if s == nil {
		return failedFuture(ErrNilSketch)
	}
	return u.enqueue(func() (*sketch.Sketch, error) {
		return s, nil
	})
}

func (u *Updater[V]) enqueue(build func() (*sketch.Sketch, error)) *Future {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.closed {
		return failedFuture(ErrUpdaterClosed)
	}
	op := &operation{build: build, future: newFuture()}
	op.future.onCancel = func() { u.remove(op) }
	u.queue = append(u.queue, op)
	u.signal()
	return op.future
}

// remove drops a cancelled op from the queue. The worker may already have
// popped it, in which case apply skips it.
func (u *Updater[V]) remove(op *operation) {
	u.mu.Lock()
	defer u.mu.Unlock()
	for i, queued := range u.queue {
		if queued == op {
			copy(u.queue[i:], u.queue[i+1:])
			u.queue[len(u.queue)-1] = nil
			u.queue = u.queue[:len(u.queue)-1]
			return
		}
	}
}

// Pending is the number of queued updates not yet picked up by the worker.
func (u *Updater[V]) Pending() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.queue)
}

func (u *Updater[V]) signal() {
	select {
	case u.wake <- struct{}{}:
	default:
	}
}

// Flush waits until every update queued before it has been applied.
func (u *Updater[V]) Flush(ctx context.Context) error {
	_, err := u.Alter(nil).Get(ctx)
	return err
}

// Quantile estimates the q-th quantile of the current sketch, converted
// back to V.
func (u *Updater[V]) Quantile(q float64) (V, error) {
	var zero V
	f, err := u.Current().Quantile(q)
	if err != nil {
		return zero, err
	}
	return u.builder.Adapter().FromFloat(f), nil
}

// Rank bounds the number of observations in the current sketch that are
// less than or equal to v.
func (u *Updater[V]) Rank(v V) (uint64, uint64, error) {
	x := u.builder.Adapter().ToFloat(v)
	if math.IsNaN(x) {
		return 0, 0, fmt.Errorf("%w: %v", sketch.ErrValueOutOfRange, x)
	}
	lo, hi := u.Current().Rank(x)
	return lo, hi, nil
}

// Run applies queued updates until Close drains the queue or ctx is done.
// Updates still queued when ctx ends fail with ErrUpdaterClosed.
func (u *Updater[V]) Run(ctx context.Context) {
	u.mu.Lock()
	if u.started {
		u.mu.Unlock()
		return
	}
	u.started = true
	u.mu.Unlock()
	defer close(u.stopped)

	for {
		if ctx.Err() != nil {
			u.abort()
			return
		}
		op, closed := u.next()
		if op != nil {
			u.apply(op)
			continue
		}
		if closed {
			return
		}
		select {
		case <-u.wake:
		case <-ctx.Done():
			u.abort()
			return
		}
	}
}

func (u *Updater[V]) next() (*operation, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if len(u.queue) == 0 {
		return nil, u.closed
	}
	op := u.queue[0]
	u.queue[0] = nil
	u.queue = u.queue[1:]
	return op, u.closed
}

func (u *Updater[V]) apply(op *operation) {
	if !op.future.start() {
		u.log.Debug("Skipping cancelled update")
		return
	}

	batch, err := op.build()
	if err == nil {
		var next *sketch.Sketch
		next, err = sketch.Merge(u.current.Load(), batch)
		if err == nil {
			u.current.Store(next)
			if u.onCommit != nil {
				u.onCommit(next)
			}
			u.log.Debug("Committed update", zap.Uint64("count", next.Count()),
				zap.Int("nodes", next.NodeCount()))
			op.future.complete(next, nil)
			return
		}
	}
	u.log.Warn("Update failed, state unchanged", zap.Error(err))
	op.future.complete(nil, err)
}

func (u *Updater[V]) abort() {
	u.mu.Lock()
	u.closed = true
	pending := u.queue
	u.queue = nil
	u.mu.Unlock()

	for _, op := range pending {
		if op.future.start() {
			op.future.complete(nil, ErrUpdaterClosed)
		}
	}
	if len(pending) > 0 {
		u.log.Warn("Updater stopped with pending updates", zap.Int("pending", len(pending)))
	}
}

// Close stops accepting updates and waits for the queued ones to be
// applied. If Run was never started the queued updates fail.
func (u *Updater[V]) Close(ctx context.Context) error {
	u.mu.Lock()
	u.closed = true
	started := u.started
	u.signal()
	u.mu.Unlock()

	if !started {
		u.abort()
		return nil
	}
	select {
	case <-u.stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
