package dci

import (
	"container/heap"

	"gonum.org/v1/gonum/mat"
)

// searchLevel runs the prioritized search over one level.
//
// qproj holds the query's projections onto all L*m directions, query the
// raw query vector (used for true-distance evaluation of promoted
// candidates). maxVisit caps the heap pops charged to each simple index,
// maxRetrieve the number of candidates promoted to true-distance
// evaluation. When allowed is non-nil, only points in the set may be
// counted and promoted; other entries are stepped over.
//
// Results come back sorted by ascending true squared distance, ties by
// ascending id, at most k of them.
func (ix *Index) searchLevel(data *mat.Dense, lv *level, qproj, query []float64, k, maxVisit, maxRetrieve int, allowed map[int32]struct{}) []candidate {
	n := len(lv.ids)
	if n == 0 || k < 1 || maxVisit < 1 || maxRetrieve < 1 {
		return nil
	}

	numComp, numSimp := ix.numComp, ix.numSimp
	numIndices := numComp * numSimp

	// One live heap entry per simple index: the closest not-yet-visited
	// entry on either side of the query's projection.
	pq := make(gapHeap, 0, numIndices)
	var seq uint64
	for idx := 0; idx < numIndices; idx++ {
		si := &lv.simp[idx]
		v := qproj[idx]
		p := si.lowerBound(v)
		if local, gap, nl, nr, ok := si.next(v, p-1, p); ok {
			pq = append(pq, gapEntry{
				gap:   gap,
				comp:  idx / numSimp,
				simp:  idx % numSimp,
				local: local,
				left:  nl,
				right: nr,
				seq:   seq,
			})
			seq++
		}
	}
	heap.Init(&pq)

	hits := make([]uint16, numComp*n)
	promoted := make([]bool, n)
	visits := make([]int, numIndices)

	totalVisits := 0
	totalCap := numIndices * maxVisit
	retrieved := 0

	top := make(candMaxHeap, 0, k)

	for pq.Len() > 0 && retrieved < maxRetrieve && totalVisits < totalCap {
		e := heap.Pop(&pq).(gapEntry)
		idx := e.comp*numSimp + e.simp

		// Per-simple-index visit budget: once exhausted the simple index
		// is dropped from the queue entirely.
		if visits[idx] >= maxVisit {
			continue
		}
		visits[idx]++
		totalVisits++

		// Schedule the successor entry from the same simple index before
		// anything else, so the ordering guarantee holds even when this
		// entry is filtered out below.
		si := &lv.simp[idx]
		if local, gap, nl, nr, ok := si.next(qproj[idx], e.left, e.right); ok {
			heap.Push(&pq, gapEntry{
				gap:   gap,
				comp:  e.comp,
				simp:  e.simp,
				local: local,
				left:  nl,
				right: nr,
				seq:   seq,
			})
			seq++
		}

		id := lv.ids[e.local]
		if allowed != nil {
			if _, ok := allowed[id]; !ok {
				continue
			}
		}

		// Candidate counting: a point becomes a candidate once all m
		// simple indices of some composite have seen it. Promotion is
		// idempotent across composites.
		h := e.comp*n + int(e.local)
		hits[h]++
		if int(hits[h]) != numSimp || promoted[e.local] {
			continue
		}
		promoted[e.local] = true
		retrieved++

		c := candidate{
			dist2: SquaredDistance(query, data.RawRowView(int(id))),
			id:    id,
			local: e.local,
		}
		if top.Len() < k {
			heap.Push(&top, c)
		} else if c.better(top[0]) {
			top[0] = c
			heap.Fix(&top, 0)
		}
	}

	// Drain the bounded max-heap into ascending order.
	results := make([]candidate, top.Len())
	for i := len(results) - 1; i >= 0; i-- {
		results[i] = heap.Pop(&top).(candidate)
	}

	return results
}
