package sketch

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMoments(t *testing.T) {
	m := NewMoments()

	assert.Equal(t, 0.0, m.Mean())
	assert.Equal(t, 0.0, m.Variance())
	assert.Equal(t, 0.0, m.SampleVariance())
	assert.True(t, math.IsInf(m.Min(), 1))
	assert.True(t, math.IsInf(m.Max(), -1))

	for i := 1; i < 100; i++ {
		m = m.Update(float64(i))
	}

	assert.InDelta(t, 50.0, m.Mean(), 1e-9)
	assert.InDelta(t, 816.666667, m.Variance(), 1e-4)
	assert.InDelta(t, 825.0000, m.SampleVariance(), 1e-4)
	assert.InDelta(t, 28.7228132, m.SD(), 1e-4)
	assert.Equal(t, 1.0, m.Min())
	assert.Equal(t, 99.0, m.Max())
}

func TestMoments_Merge(t *testing.T) {
	whole, left, right := NewMoments(), NewMoments(), NewMoments()
	for i := 1; i < 100; i++ {
		whole = whole.Update(float64(i))
		if i < 30 {
			left = left.Update(float64(i))
		} else {
			right = right.Update(float64(i))
		}
	}

	merged := left.Merge(right)
	assert.Equal(t, whole.Count(), merged.Count())
	assert.InDelta(t, whole.Mean(), merged.Mean(), 1e-9)
	assert.InDelta(t, whole.Variance(), merged.Variance(), 1e-9)
	assert.Equal(t, whole.Min(), merged.Min())
	assert.Equal(t, whole.Max(), merged.Max())

	assert.Equal(t, left, left.Merge(NewMoments()))
	assert.Equal(t, left, NewMoments().Merge(left))
}
