package dci

import "sort"

// projEntry pairs a projected value with the position of the point in the
// owning level's id list.
type projEntry struct {
	val   float64
	local int32
}

// simpleIndex is one sorted array of 1-D projections of a level's points
// through a single random direction. Entries are ordered by ascending
// projected value, ties broken by ascending point id.
type simpleIndex struct {
	entries []projEntry
}

// newSimpleIndex builds a simple index from per-point projected values.
// vals[i] is the projection of the point stored at local position i, and
// ids[i] is that point's global id (used only for tie-breaking).
func newSimpleIndex(vals []float64, ids []int32) simpleIndex {
	entries := make([]projEntry, len(vals))
	for i := range vals {
		entries[i] = projEntry{val: vals[i], local: int32(i)}
	}

	sort.Slice(entries, func(a, b int) bool {
		if entries[a].val != entries[b].val {
			return entries[a].val < entries[b].val
		}
		return ids[entries[a].local] < ids[entries[b].local]
	})

	return simpleIndex{entries: entries}
}

// lowerBound returns the smallest position p such that entries[p].val >= v,
// or len(entries) if no such position exists.
func (s *simpleIndex) lowerBound(v float64) int {
	return sort.Search(len(s.entries), func(i int) bool {
		return s.entries[i].val >= v
	})
}

// next yields the unvisited entry whose projected value is closest to v,
// given the two outward cursors (left counts down from the lower-bound
// position, right counts up). It returns the entry's local position, its
// absolute projection gap, and the advanced cursor pair. ok is false once
// both cursors have run off the ends of the array.
func (s *simpleIndex) next(v float64, left, right int) (local int32, gap float64, nl, nr int, ok bool) {
	leftOK := left >= 0
	rightOK := right < len(s.entries)

	switch {
	case leftOK && rightOK:
		lg := v - s.entries[left].val
		rg := s.entries[right].val - v
		if lg < rg {
			return s.entries[left].local, lg, left - 1, right, true
		}
		return s.entries[right].local, rg, left, right + 1, true
	case leftOK:
		return s.entries[left].local, v - s.entries[left].val, left - 1, right, true
	case rightOK:
		return s.entries[right].local, s.entries[right].val - v, left, right + 1, true
	default:
		return 0, 0, left, right, false
	}
}
