package core

import (
	"context"
	"errors"
	"sync/atomic"

	"sketchdb/sketch"
)

var (
	ErrUpdaterClosed = errors.New("updater closed")
	ErrCancelled     = errors.New("update cancelled")
	ErrNilSketch     = errors.New("nil sketch")
)

const (
	futurePending int32 = iota
	futureRunning
	futureCancelled
	futureDone
)

// Future is the eventual result of one queued update: the sketch committed
// by that update, or the error that stopped it.
type Future struct {
	state  atomic.Int32
	done   chan struct{}
	result *sketch.Sketch
	err    error

	// onCancel withdraws the update from its queue.
	onCancel func()
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

func failedFuture(err error) *Future {
	f := newFuture()
	f.state.Store(futureRunning)
	f.complete(nil, err)
	return f
}

// Done is closed once the result is available.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Get waits for the result or for ctx. A ctx error leaves the update queued.
func (f *Future) Get(ctx context.Context) (*sketch.Sketch, error) {
	select {
	case <-f.done:
		return f.result, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Cancel withdraws the update if it has not started. It reports whether the
// update was withdrawn; once withdrawn, Get returns ErrCancelled.
func (f *Future) Cancel() bool {
	if !f.state.CompareAndSwap(futurePending, futureCancelled) {
		return false
	}
	f.err = ErrCancelled
	close(f.done)
	if f.onCancel != nil {
		f.onCancel()
	}
	return true
}

// start claims the future for the worker. It fails if Cancel won.
func (f *Future) start() bool {
	return f.state.CompareAndSwap(futurePending, futureRunning)
}

func (f *Future) complete(result *sketch.Sketch, err error) {
	f.result = result
	f.err = err
	f.state.Store(futureDone)
	close(f.done)
}
