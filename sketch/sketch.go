package sketch

import (
	"fmt"
	"math"
)

// Sketch is an immutable approximate histogram over float64 observations,
// stored as a binary tree of value ranges. Every operation that adds
// observations returns a new Sketch; the receiver stays valid and unchanged.
//
// The resolution level k bounds the tree: after each insert or merge, nodes
// holding fewer than count/2^k observations forget how those observations
// are split between their children. Rank queries are therefore off by at
// most a small multiple of count/2^k.
type Sketch struct {
	resolution int
	root       *node
	moments    Moments
}

// Empty returns the zero sketch for resolution level k, the identity of
// Merge. Negative levels are treated as 0.
func Empty(resolution int) *Sketch {
	if resolution < 0 {
		resolution = 0
	}
	return &Sketch{
		resolution: resolution,
		root:       nil,
		moments:    NewMoments(),
	}
}

func checkValue(value float64) error {
	if math.IsNaN(value) || math.IsInf(value, 0) ||
		value <= -MaxMagnitude || value >= MaxMagnitude {
		return fmt.Errorf("%w: %v", ErrValueOutOfRange, value)
	}
	return nil
}

// Insert returns a sketch holding the receiver's observations plus value.
func (s *Sketch) Insert(value float64) (*Sketch, error) {
	if err := checkValue(value); err != nil {
		return nil, err
	}
	return &Sketch{
		resolution: s.resolution,
		root:       compress(mergeNodes(s.root, newLeaf(value)), s.resolution),
		moments:    s.moments.Update(value),
	}, nil
}

// Merge combines two sketches of the same resolution. It is associative and
// commutative, and the zero sketch is its identity.
func Merge(a, b *Sketch) (*Sketch, error) {
	if a.resolution != b.resolution {
		return nil, fmt.Errorf("%w: %d != %d",
			ErrIncompatibleResolution, a.resolution, b.resolution)
	}
	if b.IsZero() {
		return a, nil
	}
	if a.IsZero() {
		return b, nil
	}
	return &Sketch{
		resolution: a.resolution,
		root:       compress(mergeNodes(a.root, b.root), a.resolution),
		moments:    a.moments.Merge(b.moments),
	}, nil
}

func (s *Sketch) Resolution() int {
	return s.resolution
}

// Count is the total number of observations.
func (s *Sketch) Count() uint64 {
	if s.root == nil {
		return 0
	}
	return s.root.count
}

func (s *Sketch) IsZero() bool {
	return s.root == nil
}

// NodeCount is the number of tree nodes, a proxy for memory use and merge
// cost.
func (s *Sketch) NodeCount() int {
	return s.root.size()
}

func (s *Sketch) Moments() Moments {
	return s.moments
}

// Equal reports structural equality. Mean and variance are left out: they
// are floating point sums whose last bits depend on merge order.
func (s *Sketch) Equal(other *Sketch) bool {
	if s == nil || other == nil {
		return s == other
	}
	return s.resolution == other.resolution &&
		s.moments.count == other.moments.count &&
		s.moments.min == other.moments.min &&
		s.moments.max == other.moments.max &&
		equalNodes(s.root, other.root)
}

func (s *Sketch) String() string {
	if s.IsZero() {
		return fmt.Sprintf("<Sketch: k=%d empty>", s.resolution)
	}
	return fmt.Sprintf("<Sketch: k=%d count=%d nodes=%d range [%g, %g]>",
		s.resolution,
		s.Count(),
		s.NodeCount(),
		s.moments.min,
		s.moments.max)
}
