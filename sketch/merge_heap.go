package sketch

import (
	"container/heap"
	"fmt"
)

type heapItem struct {
	sketch   *Sketch
	priority int
	index    int
}

// mergeHeap orders sketches by node count so MergeAll always combines the two
// smallest trees, keeping the intermediate trees small.
type mergeHeap []*heapItem

func (mh mergeHeap) Len() int {
	return len(mh)
}

func (mh mergeHeap) Less(i, j int) bool {
	return mh[i].priority < mh[j].priority
}

func (mh mergeHeap) Swap(i, j int) {
	mh[i], mh[j] = mh[j], mh[i]
	mh[i].index = i
	mh[j].index = j
}

func (mh *mergeHeap) Push(x interface{}) {
	item := x.(*heapItem)
	item.index = len(*mh)
	*mh = append(*mh, item)
}

func (mh *mergeHeap) Pop() interface{} {
	old := *mh
	n := len(old)
	item := old[n-1]
	old[n-1] = nil // avoid memory leak
	item.index = -1
	*mh = old[0 : n-1]
	return item
}

// MergeAll merges any number of sketches of resolution k. With no input it
// returns the zero sketch.
func MergeAll(resolution int, sketches ...*Sketch) (*Sketch, error) {
	mh := make(mergeHeap, 0, len(sketches))
	for _, s := range sketches {
		if s.resolution != resolution {
			return nil, fmt.Errorf("%w: %d != %d",
				ErrIncompatibleResolution, resolution, s.resolution)
		}
		if s.IsZero() {
			continue
		}
		mh = append(mh, &heapItem{sketch: s, priority: s.NodeCount(), index: len(mh)})
	}
	if len(mh) == 0 {
		return Empty(resolution), nil
	}
	heap.Init(&mh)

	for mh.Len() > 1 {
		a := heap.Pop(&mh).(*heapItem)
		b := heap.Pop(&mh).(*heapItem)
		merged, err := Merge(a.sketch, b.sketch)
		if err != nil {
			return nil, err
		}
		heap.Push(&mh, &heapItem{sketch: merged, priority: merged.NodeCount()})
	}
	return mh[0].sketch, nil
}
