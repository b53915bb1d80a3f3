package sketch

import "math"

// Moments keeps exact extremes and running mean/variance (Welford) next to
// the range tree. Two Moments combine with the parallel update of Chan et
// al., so they follow the sketch through every merge.
type Moments struct {
	count uint64
	mean  float64
	m2    float64
	min   float64
	max   float64
}

func NewMoments() Moments {
	return Moments{
		count: 0,
		mean:  0,
		m2:    0,
		min:   math.Inf(1),
		max:   math.Inf(-1),
	}
}

func (m Moments) Update(value float64) Moments {
	m.count++
	delta := value - m.mean
	m.mean += delta / float64(m.count)
	delta2 := value - m.mean
	m.m2 += delta * delta2
	m.min = math.Min(m.min, value)
	m.max = math.Max(m.max, value)
	return m
}

func (m Moments) Merge(other Moments) Moments {
	if other.count == 0 {
		return m
	}
	if m.count == 0 {
		return other
	}
	count := m.count + other.count
	delta := other.mean - m.mean
	ratio := float64(other.count) / float64(count)
	return Moments{
		count: count,
		mean:  m.mean + delta*ratio,
		m2:    m.m2 + other.m2 + delta*delta*float64(m.count)*ratio,
		min:   math.Min(m.min, other.min),
		max:   math.Max(m.max, other.max),
	}
}

func (m Moments) Count() uint64 {
	return m.count
}

func (m Moments) Mean() float64 {
	return m.mean
}

func (m Moments) Variance() float64 {
	if m.count < 2 {
		return 0
	}
	return m.m2 / float64(m.count)
}

func (m Moments) SampleVariance() float64 {
	if m.count < 2 {
		return 0
	}
	return m.m2 / float64(m.count-1)
}

func (m Moments) SD() float64 {
	return math.Sqrt(m.SampleVariance())
}

// Min and Max are +Inf and -Inf respectively when nothing was observed.
func (m Moments) Min() float64 {
	return m.min
}

func (m Moments) Max() float64 {
	return m.max
}
