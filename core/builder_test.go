package core

import (
	"context"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sketchdb/numeric"
	"sketchdb/sketch"
	"sketchdb/utils"
)

func TestNewBuilder_Unsupported(t *testing.T) {
	_, err := NewBuilder[string](10)
	assert.ErrorIs(t, err, numeric.ErrUnsupportedNumericKind)

	b, err := NewBuilder[int](-4)
	require.NoError(t, err)
	assert.Equal(t, 0, b.Resolution())
}

func TestBuilder_BuildSketch(t *testing.T) {
	b, err := NewBuilder[int](10)
	require.NoError(t, err)

	zero, err := b.BuildSketch(nil)
	require.NoError(t, err)
	assert.True(t, zero.IsZero())
	assert.Equal(t, 10, zero.Resolution())

	s, err := b.BuildSketch([]int{5, 1, 4, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, uint64(5), s.Count())
	assert.Equal(t, 1.0, s.Moments().Min())
	assert.Equal(t, 5.0, s.Moments().Max())

	_, err = b.BuildSketch([]int{1, math.MaxInt64})
	assert.ErrorIs(t, err, sketch.ErrValueOutOfRange)
}

func TestBuilder_BuildSketches(t *testing.T) {
	b, err := NewBuilder[float64](10)
	require.NoError(t, err)

	values := []float64{3.5, -1, 7}
	sketches, err := b.BuildSketches(values)
	require.NoError(t, err)
	require.Len(t, sketches, 3)
	for i, s := range sketches {
		assert.Equal(t, uint64(1), s.Count())
		assert.Equal(t, values[i], s.Moments().Min())
	}

	merged, err := sketch.MergeAll(10, sketches...)
	require.NoError(t, err)
	folded, err := b.BuildSketch(values)
	require.NoError(t, err)
	assert.True(t, cmp.Equal(folded, merged))

	_, err = b.BuildSketches([]float64{1, math.NaN()})
	assert.ErrorIs(t, err, sketch.ErrValueOutOfRange)
}

func TestBuilder_Decimal(t *testing.T) {
	b, err := NewBuilder[decimal.Decimal](10)
	require.NoError(t, err)

	s, err := b.BuildSketch([]decimal.Decimal{
		decimal.RequireFromString("1.25"),
		decimal.RequireFromString("2.50"),
		decimal.RequireFromString("3.75"),
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(3), s.Count())
	assert.InDelta(t, 2.5, s.Moments().Mean(), 1e-12)
}

func TestBuilder_BuildSketchParallel(t *testing.T) {
	b, err := NewBuilder[float64](10)
	require.NoError(t, err)
	ctx := context.Background()

	// Small enough to stay uncompressed, so the trees are canonical.
	values := utils.UniformValues(21, 1000, -100, 100)
	folded, err := b.BuildSketch(values)
	require.NoError(t, err)
	for _, workers := range []int{1, 3, 8} {
		parallel, err := b.BuildSketchParallel(ctx, values, workers)
		require.NoError(t, err)
		assert.True(t, cmp.Equal(folded, parallel), "workers=%d", workers)
	}

	large := utils.UniformValues(22, 50000, 0, 1000)
	parallel, err := b.BuildSketchParallel(ctx, large, 4)
	require.NoError(t, err)
	assert.Equal(t, uint64(len(large)), parallel.Count())

	bad := append(utils.Sequence(100), math.Inf(1))
	_, err = b.BuildSketchParallel(ctx, bad, 4)
	assert.ErrorIs(t, err, sketch.ErrValueOutOfRange)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = b.BuildSketchParallel(cancelled, large, 4)
	assert.ErrorIs(t, err, context.Canceled)
}
