package sketch

import (
	"fmt"
	"math"
)

// countBounds bounds the number of observations below x (or at most x when
// inclusive) held by the subtree rooted at n.
func (n *node) countBounds(x float64, inclusive bool) (uint64, uint64) {
	if n.upperBound() <= x {
		return n.count, n.count
	}
	lb := n.lowerBound()
	if lb > x || (!inclusive && lb == x) {
		return 0, 0
	}

	lower, upper := uint64(0), n.parentCount()
	for _, child := range [2]*node{n.lower, n.upper} {
		if child == nil {
			continue
		}
		l, u := child.countBounds(x, inclusive)
		lower += l
		upper += u
	}
	return lower, upper
}

// Rank bounds the number of observations less than or equal to x.
func (s *Sketch) Rank(x float64) (uint64, uint64) {
	if s.root == nil || math.IsNaN(x) {
		return 0, 0
	}
	return s.root.countBounds(x, true)
}

// RangeCount bounds the number of observations within [lo, hi].
func (s *Sketch) RangeCount(lo, hi float64) (uint64, uint64) {
	if s.root == nil || math.IsNaN(lo) || math.IsNaN(hi) || lo > hi {
		return 0, 0
	}
	atMostLower, atMostUpper := s.root.countBounds(hi, true)
	belowLower, belowUpper := s.root.countBounds(lo, false)

	lower := uint64(0)
	if atMostLower > belowUpper {
		lower = atMostLower - belowUpper
	}
	upper := uint64(0)
	if atMostUpper > belowLower {
		upper = atMostUpper - belowLower
	}
	return lower, upper
}

// smallest possible value of the observation at 0-based rank r, assuming
// observations whose position was forgotten sit at the bottom of their range.
func (n *node) rankLowerBound(r uint64) float64 {
	parent := n.parentCount()
	if r < parent {
		return n.lowerBound()
	}
	r -= parent
	if n.lower != nil {
		if r < n.lower.count {
			return n.lower.rankLowerBound(r)
		}
		r -= n.lower.count
	}
	if n.upper != nil && r < n.upper.count {
		return n.upper.rankLowerBound(r)
	}
	return n.lowerBound()
}

// largest possible value of the observation at 0-based rank r, assuming
// forgotten observations sit at the top of their range.
func (n *node) rankUpperBound(r uint64) float64 {
	if n.lower != nil {
		if r < n.lower.count {
			return n.lower.rankUpperBound(r)
		}
		r -= n.lower.count
	}
	if n.upper != nil && r < n.upper.count {
		return n.upper.rankUpperBound(r)
	}
	return n.upperBound()
}

func (s *Sketch) targetRank(q float64) (uint64, error) {
	if math.IsNaN(q) || q < 0 || q > 1 {
		return 0, fmt.Errorf("%w: %v", ErrInvalidQuantile, q)
	}
	if s.root == nil {
		return 0, ErrEmptySketch
	}
	count := s.root.count
	rank := uint64(math.Floor(q * float64(count)))
	if rank >= count {
		rank = count - 1
	}
	return rank, nil
}

// QuantileBounds returns an interval holding the q-th quantile.
func (s *Sketch) QuantileBounds(q float64) (float64, float64, error) {
	rank, err := s.targetRank(q)
	if err != nil {
		return 0, 0, err
	}
	lower := math.Max(s.root.rankLowerBound(rank), s.moments.min)
	upper := math.Min(s.root.rankUpperBound(rank), s.moments.max)
	if lower > upper {
		lower, upper = upper, lower
	}
	return lower, upper, nil
}

// Quantile estimates the q-th quantile as the midpoint of QuantileBounds.
func (s *Sketch) Quantile(q float64) (float64, error) {
	lower, upper, err := s.QuantileBounds(q)
	if err != nil {
		return 0, err
	}
	return lower + (upper-lower)/2, nil
}
