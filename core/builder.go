package core

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"sketchdb/numeric"
	"sketchdb/sketch"
)

// Builder folds batches of V into sketches of one resolution.
type Builder[V any] struct {
	resolution int
	adapter    numeric.Adapter[V]
}

func NewBuilder[V any](resolution int) (*Builder[V], error) {
	adapter, err := numeric.AdapterFor[V]()
	if err != nil {
		return nil, err
	}
	if resolution < 0 {
		resolution = 0
	}
	return &Builder[V]{resolution: resolution, adapter: adapter}, nil
}

func (b *Builder[V]) Resolution() int {
	return b.resolution
}

func (b *Builder[V]) Adapter() numeric.Adapter[V] {
	return b.adapter
}

// BuildSketch inserts values in order into the zero sketch. An empty batch
// yields the zero sketch.
func (b *Builder[V]) BuildSketch(values []V) (*sketch.Sketch, error) {
	return b.fold(context.Background(), values)
}

func (b *Builder[V]) fold(ctx context.Context, values []V) (*sketch.Sketch, error) {
	s := sketch.Empty(b.resolution)
	for i, v := range values {
		if i%4096 == 4095 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		var err error
		s, err = s.Insert(b.adapter.ToFloat(v))
		if err != nil {
			return nil, fmt.Errorf("value %d: %w", i, err)
		}
	}
	return s, nil
}

// BuildSketches returns one single-observation sketch per value.
func (b *Builder[V]) BuildSketches(values []V) ([]*sketch.Sketch, error) {
	sketches := make([]*sketch.Sketch, 0, len(values))
	zero := sketch.Empty(b.resolution)
	for i, v := range values {
		s, err := zero.Insert(b.adapter.ToFloat(v))
		if err != nil {
			return nil, fmt.Errorf("value %d: %w", i, err)
		}
		sketches = append(sketches, s)
	}
	return sketches, nil
}

// BuildSketchParallel splits values into one chunk per worker, builds the
// chunks concurrently and merges the results. The first failure cancels the
// remaining chunks.
func (b *Builder[V]) BuildSketchParallel(ctx context.Context, values []V, workers int) (*sketch.Sketch, error) {
	if workers <= 1 || len(values) < 2*workers {
		return b.fold(ctx, values)
	}

	chunk := (len(values) + workers - 1) / workers
	parts := make([]*sketch.Sketch, workers)
	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		lo := w * chunk
		if lo >= len(values) {
			break
		}
		hi := lo + chunk
		if hi > len(values) {
			hi = len(values)
		}
		w := w
		g.Go(func() error {
			part, err := b.fold(gctx, values[lo:hi])
			if err != nil {
				return fmt.Errorf("chunk [%d, %d): %w", lo, hi, err)
			}
			parts[w] = part
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	built := parts[:0]
	for _, part := range parts {
		if part != nil {
			built = append(built, part)
		}
	}
	return sketch.MergeAll(b.resolution, built...)
}
