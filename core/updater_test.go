package core

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"sketchdb/numeric"
	"sketchdb/sketch"
)

func startUpdater[V any](t *testing.T, opts UpdaterOptions) *Updater[V] {
	if opts.Logger == nil {
		opts.Logger = zaptest.NewLogger(t)
	}
	u, err := NewUpdater[V](opts)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		u.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return u
}

func get(t *testing.T, f *Future) *sketch.Sketch {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s, err := f.Get(ctx)
	require.NoError(t, err)
	return s
}

func TestUpdater_SequentialExample(t *testing.T) {
	u := startUpdater[float64](t, UpdaterOptions{Resolution: 10})

	first := get(t, u.Alter([]float64{1.0, 2.0, 3.0}))
	assert.Equal(t, uint64(3), first.Count())
	final := get(t, u.Alter([]float64{4.0, 5.0}))
	assert.Equal(t, uint64(5), final.Count())
	assert.Same(t, final, u.Current())

	median, err := u.Quantile(0.5)
	require.NoError(t, err)
	assert.InDelta(t, 3.0, median, 1e-3)

	lo, hi, err := u.Rank(3.0)
	require.NoError(t, err)
	assert.LessOrEqual(t, lo, uint64(3))
	assert.GreaterOrEqual(t, hi, uint64(3))
}

func TestUpdater_ConcurrentSingletons(t *testing.T) {
	const k = 500
	u := startUpdater[int](t, UpdaterOptions{Resolution: 10})

	futures := make([]*Future, k)
	var wg sync.WaitGroup
	for i := 0; i < k; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			futures[i] = u.Alter([]int{i})
		}(i)
	}
	wg.Wait()

	seen := make(map[uint64]bool, k)
	for _, f := range futures {
		s := get(t, f)
		// Every commit adds exactly one observation, so each count is
		// observed by exactly one caller.
		assert.False(t, seen[s.Count()], "count %d resolved twice", s.Count())
		seen[s.Count()] = true
	}
	assert.Len(t, seen, k)
	assert.Equal(t, uint64(k), u.Current().Count())
}

func TestUpdater_FIFO(t *testing.T) {
	u, err := NewUpdater[int](UpdaterOptions{Resolution: 10})
	require.NoError(t, err)

	// Queue before Run so the order is fixed by submission.
	futures := make([]*Future, 20)
	for i := range futures {
		futures[i] = u.Alter([]int{i, i})
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go u.Run(ctx)

	for i, f := range futures {
		s := get(t, f)
		assert.Equal(t, uint64(2*(i+1)), s.Count())
		assert.Equal(t, float64(i), s.Moments().Max())
	}
}

func TestUpdater_OrderIndependence(t *testing.T) {
	batches := [][]float64{{1, 2, 3}, {4, 5}, {}, {6}, {7, 8, 9, 10}}

	finals := make([]*sketch.Sketch, 0, 3)
	for seed := int64(0); seed < 3; seed++ {
		order := rand.New(rand.NewSource(seed)).Perm(len(batches))
		u := startUpdater[float64](t, UpdaterOptions{Resolution: 10})
		for _, i := range order {
			u.Alter(batches[i])
		}
		require.NoError(t, u.Flush(context.Background()))
		assert.Equal(t, uint64(10), u.Current().Count())
		finals = append(finals, u.Current())
	}
	assert.True(t, cmp.Equal(finals[0], finals[1]))
	assert.True(t, cmp.Equal(finals[0], finals[2]))
}

func TestUpdater_ZeroBatch(t *testing.T) {
	u := startUpdater[float64](t, UpdaterOptions{Resolution: 10})

	zero := get(t, u.Alter(nil))
	assert.True(t, zero.IsZero())

	s := get(t, u.Alter([]float64{1, 2}))
	assert.Same(t, s, get(t, u.Alter([]float64{})))
}

func TestUpdater_FailedTransitionLeavesState(t *testing.T) {
	u := startUpdater[float64](t, UpdaterOptions{Resolution: 10})
	before := get(t, u.Alter([]float64{1, 2, 3}))

	mismatched := u.AlterSketch(sketch.Empty(4))
	outOfRange := u.Alter([]float64{4, 1e300})
	after := u.Alter([]float64{4})

	_, err := mismatched.Get(context.Background())
	assert.ErrorIs(t, err, sketch.ErrIncompatibleResolution)
	_, err = outOfRange.Get(context.Background())
	assert.ErrorIs(t, err, sketch.ErrValueOutOfRange)

	s := get(t, after)
	assert.Equal(t, before.Count()+1, s.Count())
}

func TestUpdater_AlterSketch(t *testing.T) {
	u := startUpdater[float64](t, UpdaterOptions{Resolution: 10})
	b, err := NewBuilder[float64](10)
	require.NoError(t, err)

	part, err := b.BuildSketch([]float64{1, 2, 3})
	require.NoError(t, err)
	assert.Same(t, part, get(t, u.AlterSketch(part)))

	s := get(t, u.AlterSketch(part))
	assert.Equal(t, uint64(6), s.Count())
}

func TestUpdater_AlterSketchNil(t *testing.T) {
	u := startUpdater[float64](t, UpdaterOptions{Resolution: 10})

	_, err := u.AlterSketch(nil).Get(context.Background())
	assert.ErrorIs(t, err, ErrNilSketch)

	s := get(t, u.Alter([]float64{1}))
	assert.Equal(t, uint64(1), s.Count())
}

func TestUpdater_Initial(t *testing.T) {
	b, err := NewBuilder[float64](8)
	require.NoError(t, err)
	initial, err := b.BuildSketch([]float64{10, 20})
	require.NoError(t, err)

	_, err = NewUpdater[float64](UpdaterOptions{Resolution: 10, Initial: initial})
	assert.ErrorIs(t, err, sketch.ErrIncompatibleResolution)

	u := startUpdater[float64](t, UpdaterOptions{Resolution: 8, Initial: initial})
	assert.Same(t, initial, u.Current())
	s := get(t, u.Alter([]float64{30}))
	assert.Equal(t, uint64(3), s.Count())
}

func TestUpdater_UnsupportedKind(t *testing.T) {
	_, err := NewUpdater[string](UpdaterOptions{Resolution: 10})
	assert.ErrorIs(t, err, numeric.ErrUnsupportedNumericKind)
}

func TestUpdater_CancelBeforeStart(t *testing.T) {
	u, err := NewUpdater[float64](UpdaterOptions{Resolution: 10})
	require.NoError(t, err)

	kept := u.Alter([]float64{1})
	cancelled := u.Alter([]float64{2, 3})
	last := u.Alter([]float64{4})
	assert.Equal(t, 3, u.Pending())
	assert.True(t, cancelled.Cancel())
	assert.False(t, cancelled.Cancel())
	assert.Equal(t, 2, u.Pending())

	_, err = cancelled.Get(context.Background())
	assert.ErrorIs(t, err, ErrCancelled)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go u.Run(ctx)

	s := get(t, kept)
	assert.Equal(t, uint64(1), s.Count())
	s = get(t, last)
	assert.Equal(t, uint64(2), s.Count())
	assert.Equal(t, 4.0, s.Moments().Max())

	assert.False(t, kept.Cancel())
}

func TestUpdater_Close(t *testing.T) {
	u, err := NewUpdater[float64](UpdaterOptions{Resolution: 10})
	require.NoError(t, err)
	go u.Run(context.Background())
	require.NoError(t, u.Flush(context.Background()))

	pending := u.Alter([]float64{1, 2})
	require.NoError(t, u.Close(context.Background()))

	s := get(t, pending)
	assert.Equal(t, uint64(2), s.Count())

	_, err = u.Alter([]float64{3}).Get(context.Background())
	assert.ErrorIs(t, err, ErrUpdaterClosed)
	assert.ErrorIs(t, u.Flush(context.Background()), ErrUpdaterClosed)
	assert.Equal(t, uint64(2), u.Current().Count())
}

func TestUpdater_CloseWithoutRun(t *testing.T) {
	u, err := NewUpdater[float64](UpdaterOptions{Resolution: 10})
	require.NoError(t, err)

	pending := u.Alter([]float64{1})
	require.NoError(t, u.Close(context.Background()))
	_, err = pending.Get(context.Background())
	assert.ErrorIs(t, err, ErrUpdaterClosed)
}

func TestUpdater_RunContextCancelled(t *testing.T) {
	u, err := NewUpdater[float64](UpdaterOptions{Resolution: 10})
	require.NoError(t, err)
	pending := u.Alter([]float64{1})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	u.Run(ctx)

	_, err = pending.Get(context.Background())
	assert.ErrorIs(t, err, ErrUpdaterClosed)
	assert.True(t, u.Current().IsZero())
}

func TestUpdater_OnCommit(t *testing.T) {
	var committed []uint64
	u := startUpdater[float64](t, UpdaterOptions{
		Resolution: 10,
		OnCommit: func(s *sketch.Sketch) {
			committed = append(committed, s.Count())
		},
	})

	get(t, u.Alter([]float64{1}))
	_, err := u.AlterSketch(sketch.Empty(3)).Get(context.Background())
	require.Error(t, err)
	get(t, u.Alter([]float64{2, 3}))

	// OnCommit runs on the worker before each future resolves.
	assert.Equal(t, []uint64{1, 3}, committed)
}

func TestUpdater_QuantileEmpty(t *testing.T) {
	u := startUpdater[int](t, UpdaterOptions{Resolution: 10})
	_, err := u.Quantile(0.5)
	assert.ErrorIs(t, err, sketch.ErrEmptySketch)

	get(t, u.Alter([]int{10, 20, 30, 40}))
	p, err := u.Quantile(1)
	require.NoError(t, err)
	assert.Equal(t, 40, p)
}

func TestFuture_GetContext(t *testing.T) {
	f := newFuture()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := f.Get(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	select {
	case <-f.Done():
		t.Fatal("future resolved without a result")
	default:
	}
}
