package utils

import (
	"math/rand"
	"sort"
)

// UniformValues returns n reproducible values drawn uniformly from [lo, hi).
func UniformValues(seed int64, n int, lo, hi float64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	values := make([]float64, n)
	for i := range values {
		values[i] = lo + rng.Float64()*(hi-lo)
	}
	return values
}

// NormalValues returns n reproducible values from N(mean, sd^2).
func NormalValues(seed int64, n int, mean, sd float64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	values := make([]float64, n)
	for i := range values {
		values[i] = mean + rng.NormFloat64()*sd
	}
	return values
}

// Sequence returns 1, 2, ..., n as float64.
func Sequence(n int) []float64 {
	values := make([]float64, n)
	for i := range values {
		values[i] = float64(i + 1)
	}
	return values
}

// TrueRank counts the values less than or equal to x.
func TrueRank(values []float64, x float64) uint64 {
	rank := uint64(0)
	for _, v := range values {
		if v <= x {
			rank++
		}
	}
	return rank
}

// TrueQuantile is the exact value at rank floor(q*n), the same target rank
// the sketch uses.
func TrueQuantile(values []float64, q float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	rank := int(q * float64(len(sorted)))
	if rank >= len(sorted) {
		rank = len(sorted) - 1
	}
	return sorted[rank]
}
