package dci

// gapEntry is an item in the global priority queue driving the search.
// It refers to one concrete entry of one simple index (comp, simp) and
// carries the cursor pair needed to generate that simple index's
// successor entry after this one is consumed.
type gapEntry struct {
	gap   float64
	comp  int // composite index l
	simp  int // simple index j within the composite
	local int32
	left  int
	right int
	seq   uint64 // insertion order, breaks equal-gap ties
}

// gapHeap is a min-heap of gapEntry keyed on projection gap. Equal gaps
// pop in insertion order.
type gapHeap []gapEntry

func (h gapHeap) Len() int { return len(h) }
func (h gapHeap) Less(i, j int) bool {
	if h[i].gap != h[j].gap {
		return h[i].gap < h[j].gap
	}
	return h[i].seq < h[j].seq
}
func (h gapHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *gapHeap) Push(x interface{}) {
	*h = append(*h, x.(gapEntry))
}

func (h *gapHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[0 : n-1]
	return x
}

// candidate is a promoted point with its true squared distance to the query.
type candidate struct {
	dist2 float64
	id    int32
	local int32
}

// candMaxHeap is a bounded max-heap over candidates: the worst candidate
// (largest distance, then largest id) sits on top so it can be evicted
// when a better one arrives. Equal distances rank by ascending id.
type candMaxHeap []candidate

func (h candMaxHeap) Len() int { return len(h) }
func (h candMaxHeap) Less(i, j int) bool {
	if h[i].dist2 != h[j].dist2 {
		return h[i].dist2 > h[j].dist2
	}
	return h[i].id > h[j].id
}
func (h candMaxHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *candMaxHeap) Push(x interface{}) {
	*h = append(*h, x.(candidate))
}

func (h *candMaxHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[0 : n-1]
	return x
}

// better reports whether c should displace the current worst entry w.
func (c candidate) better(w candidate) bool {
	if c.dist2 != w.dist2 {
		return c.dist2 < w.dist2
	}
	return c.id < w.id
}
