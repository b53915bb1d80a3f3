package sketch

import "math"

const (
	// Leaves are 2^LeafLevel wide.
	LeafLevel = -16

	// Largest magnitude (exclusive) a value may have and still get a leaf
	// offset that fits comfortably inside an int64.
	MaxMagnitude = float64(1 << 40)

	// Leaf offsets are shifted by MaxMagnitude (in leaf units) so every
	// offset is non-negative and any two nodes share an ancestor.
	leafBiasShift = 56
	leafBias      = int64(1) << leafBiasShift
)

// node covers the value range [edge(offset, level), edge(offset+1, level)). Its
// children, when present, sit exactly one level below: the lower child has
// offset 2*offset and the upper child 2*offset+1. A node's count includes
// the counts of its children; whatever is left over belongs to observations
// whose position inside the range has been forgotten by compression.
//
// Nodes are never modified once built, so sketches share subtrees freely.
type node struct {
	offset int64
	level  int
	count  uint64
	lower  *node
	upper  *node
}

func newLeaf(value float64) *node {
	return &node{
		offset: int64(math.Floor(math.Ldexp(value, -LeafLevel))) + leafBias,
		level:  LeafLevel,
		count:  1,
	}
}

func (n *node) lowerBound() float64 {
	return edge(n.offset, n.level)
}

func (n *node) upperBound() float64 {
	return edge(n.offset+1, n.level)
}

// edge converts a biased offset at the given level back into a value.
func edge(offset int64, level int) float64 {
	shift := level - LeafLevel
	if shift >= leafBiasShift {
		return math.Ldexp(float64(offset), level) - MaxMagnitude
	}
	return math.Ldexp(float64(offset-leafBias>>uint(shift)), level)
}

func (n *node) childCount() uint64 {
	c := uint64(0)
	if n.lower != nil {
		c += n.lower.count
	}
	if n.upper != nil {
		c += n.upper.count
	}
	return c
}

// parentCount is the number of observations held by n itself rather than by
// one of its children.
func (n *node) parentCount() uint64 {
	return n.count - n.childCount()
}

func (n *node) size() int {
	if n == nil {
		return 0
	}
	return 1 + n.lower.size() + n.upper.size()
}

// extendToLevel wraps n in ancestors until the root sits at the given level.
func (n *node) extendToLevel(level int) *node {
	cur := n
	for cur.level < level {
		parent := &node{
			offset: cur.offset >> 1,
			level:  cur.level + 1,
			count:  cur.count,
		}
		if cur.offset&1 == 0 {
			parent.lower = cur
		} else {
			parent.upper = cur
		}
		cur = parent
	}
	return cur
}

func commonAncestorLevel(a, b *node) int {
	level := a.level
	if b.level > level {
		level = b.level
	}
	ao := a.offset >> uint(level-a.level)
	bo := b.offset >> uint(level-b.level)
	for ao != bo {
		ao >>= 1
		bo >>= 1
		level++
	}
	return level
}

func mergeNodes(a, b *node) *node {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	level := commonAncestorLevel(a, b)
	return mergePeers(a.extendToLevel(level), b.extendToLevel(level))
}

// mergePeers merges two nodes covering the same range.
func mergePeers(a, b *node) *node {
	return &node{
		offset: a.offset,
		level:  a.level,
		count:  a.count + b.count,
		lower:  mergeChildren(a.lower, b.lower),
		upper:  mergeChildren(a.upper, b.upper),
	}
}

func mergeChildren(a, b *node) *node {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return mergePeers(a, b)
}

// compress drops the children of every node holding fewer than
// count>>resolution observations. Counts are untouched.
func compress(root *node, resolution int) *node {
	if root == nil {
		return nil
	}
	minCount := root.count >> uint(resolution)
	if minCount <= 1 {
		return root
	}
	return prune(root, minCount)
}

func prune(n *node, minCount uint64) *node {
	if n == nil {
		return nil
	}
	if n.lower == nil && n.upper == nil {
		return n
	}
	if n.count < minCount {
		return &node{offset: n.offset, level: n.level, count: n.count}
	}
	lower := prune(n.lower, minCount)
	upper := prune(n.upper, minCount)
	if lower == n.lower && upper == n.upper {
		return n
	}
	return &node{offset: n.offset, level: n.level, count: n.count, lower: lower, upper: upper}
}

func equalNodes(a, b *node) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.offset == b.offset &&
		a.level == b.level &&
		a.count == b.count &&
		equalNodes(a.lower, b.lower) &&
		equalNodes(a.upper, b.upper)
}
